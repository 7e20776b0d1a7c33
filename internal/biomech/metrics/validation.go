package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/stridelabs/kneemetry/internal/biomech/series"
)

// ICC agreement bands.
const (
	ICCExcellent = 0.90
	ICCGood      = 0.75
)

// ValidationMetrics quantifies agreement between a measured signal and a
// reference signal of equal length.
type ValidationMetrics struct {
	RMSE  float64 `json:"rmse"`
	MAE   float64 `json:"mae"`
	ICC   float64 `json:"icc"`
	R2    float64 `json:"r2"`
	CVPct float64 `json:"cv_pct"`
}

// AgreementBand names the ICC band the score falls into.
func AgreementBand(icc float64) string {
	switch {
	case icc > ICCExcellent:
		return "excellent"
	case icc >= ICCGood:
		return "good"
	default:
		return "poor"
	}
}

// Validate compares measured against reference. ICC is the two-way
// random-effects single-measure coefficient, ICC(2,1), with the degenerate
// zero-variance case returning 0 instead of dividing by zero.
func Validate(measured, reference []float64) (ValidationMetrics, error) {
	if len(measured) == 0 || len(reference) == 0 {
		return ValidationMetrics{}, &series.ValidationError{Op: "validate", Msg: "empty input"}
	}
	if len(measured) != len(reference) {
		return ValidationMetrics{}, &series.ValidationError{Op: "validate", Msg: "measured and reference lengths differ"}
	}
	if series.CountInvalid(measured) > 0 || series.CountInvalid(reference) > 0 {
		return ValidationMetrics{}, &series.DataQualityError{
			Channel:   "validate",
			Condition: series.QualityNaN,
			Detail:    "non-finite samples in validation input",
		}
	}

	n := len(measured)
	var sumSq, sumAbs float64
	for i := range measured {
		d := measured[i] - reference[i]
		sumSq += d * d
		sumAbs += math.Abs(d)
	}

	m := ValidationMetrics{
		RMSE: math.Sqrt(sumSq / float64(n)),
		MAE:  sumAbs / float64(n),
		ICC:  icc21(measured, reference),
		R2:   rSquared(measured, reference),
	}

	// CV is the dispersion of the measured signal itself relative to its
	// mean; a zero mean reports 0 rather than an infinity.
	measMean := stat.Mean(measured, nil)
	if n > 1 && math.Abs(measMean) > 1e-12 {
		m.CVPct = stat.StdDev(measured, nil) / measMean * 100
	}
	return m, nil
}

// icc21 computes ICC(2,1) treating each index as a subject rated by two
// raters (measured, reference).
func icc21(measured, reference []float64) float64 {
	n := float64(len(measured))
	const k = 2.0

	grand := (stat.Mean(measured, nil) + stat.Mean(reference, nil)) / 2
	colM := stat.Mean(measured, nil)
	colR := stat.Mean(reference, nil)

	var ssRows, ssCols, ssErr float64
	ssCols = n * ((colM-grand)*(colM-grand) + (colR-grand)*(colR-grand))
	for i := range measured {
		rowMean := (measured[i] + reference[i]) / 2
		ssRows += k * (rowMean - grand) * (rowMean - grand)
		em := measured[i] - rowMean - colM + grand
		er := reference[i] - rowMean - colR + grand
		ssErr += em*em + er*er
	}

	if len(measured) < 2 {
		return 0
	}
	msRows := ssRows / (n - 1)
	msCols := ssCols / (k - 1)
	msErr := ssErr / ((n - 1) * (k - 1))

	if msRows+msErr < 1e-12 {
		return 0
	}
	denom := msRows + (k-1)*msErr + k*(msCols-msErr)/n
	if math.Abs(denom) < 1e-12 {
		return 0
	}
	return (msRows - msErr) / denom
}

// rSquared measures how much of the reference variance the measured signal
// explains. A constant reference has no variance to explain: the result is
// 1 for an exact match and 0 otherwise.
func rSquared(measured, reference []float64) float64 {
	refMean := stat.Mean(reference, nil)
	var ssRes, ssTot float64
	for i := range measured {
		d := measured[i] - reference[i]
		ssRes += d * d
		ssTot += (reference[i] - refMean) * (reference[i] - refMean)
	}
	if ssTot < 1e-12 {
		if ssRes < 1e-12 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}
