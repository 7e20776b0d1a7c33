package series

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ConstantSignalEpsilon is the standard deviation below which a signal is
// treated as constant, the signature of a disconnected or frozen sensor.
const ConstantSignalEpsilon = 1e-6

// OutlierZScore is the |z| beyond which a sample counts as an extreme
// outlier for quality scoring.
const OutlierZScore = 5.0

// CountInvalid returns the number of NaN or Inf samples in values.
func CountInvalid(values []float64) int {
	n := 0
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			n++
		}
	}
	return n
}

// ScanQuality inspects a signal for the defects the alert engine reports:
// NaN/Inf samples, a near-constant signal, and an excessive outlier
// fraction. It returns the first condition found, or nil when the signal is
// clean. The check order matters: invalid samples poison the statistics the
// later checks rely on.
func ScanQuality(name string, values []float64) *DataQualityError {
	if len(values) == 0 {
		return &DataQualityError{Channel: name, Condition: QualityNaN, Detail: "empty signal"}
	}
	if n := CountInvalid(values); n > 0 {
		return &DataQualityError{Channel: name, Condition: QualityNaN,
			Detail: invalidDetail(n, len(values))}
	}
	sd := stat.StdDev(values, nil)
	if sd < ConstantSignalEpsilon {
		return &DataQualityError{Channel: name, Condition: QualityConstant,
			Detail: "standard deviation below 1e-6"}
	}
	if frac := OutlierFraction(values); frac > 0.05 {
		return &DataQualityError{Channel: name, Condition: QualityOutliers,
			Detail: outlierDetail(frac)}
	}
	return nil
}

// OutlierFraction returns the fraction of samples whose deviation from the
// median exceeds OutlierZScore robust standard deviations (1.4826×MAD). The
// robust scale matters: a moment-based z-score can never flag more than
// 1/z² of the samples, so a 5% outlier budget would be unreachable.
// A constant signal has no outliers by definition.
func OutlierFraction(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	med := medianOf(values)
	dev := make([]float64, len(values))
	for i, v := range values {
		dev[i] = math.Abs(v - med)
	}
	scale := 1.4826 * medianOf(dev)
	if scale < ConstantSignalEpsilon {
		// Degenerate spread; fall back to the classic deviation so a
		// half-constant signal does not flag everything.
		scale = stat.StdDev(values, nil)
		if scale < ConstantSignalEpsilon {
			return 0
		}
	}
	count := 0
	for _, d := range dev {
		if d/scale > OutlierZScore {
			count++
		}
	}
	return float64(count) / float64(len(values))
}

func medianOf(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func invalidDetail(n, total int) string {
	return fmt.Sprintf("%d of %d invalid samples", n, total)
}

func outlierDetail(frac float64) string {
	return fmt.Sprintf("%.1f%% extreme outliers", frac*100)
}
