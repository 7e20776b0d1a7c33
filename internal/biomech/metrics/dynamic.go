package metrics

import (
	"math"

	"gonum.org/v1/gonum/integrate"

	"github.com/stridelabs/kneemetry/internal/biomech/series"
	"github.com/stridelabs/kneemetry/internal/units"
)

// DynamicMetrics summarizes joint loading, normalized by body mass.
type DynamicMetrics struct {
	PeakMomentNmKg float64 `json:"peak_moment_nm_kg"`
	MeanMomentNmKg float64 `json:"mean_moment_nm_kg"`
	PeakPowerWKg   float64 `json:"peak_power_w_kg"`
	WorkJKg        float64 `json:"work_j_kg"`
	ImpulseNmsKg   float64 `json:"impulse_nms_kg"`
}

// Dynamic computes mass-normalized loading metrics from a joint moment
// trace (Nm) and the matching angular velocity trace (deg/s). Power uses
// the angular velocity in rad/s.
func Dynamic(time, momentNm, angularVelDegS []float64, massKg float64) (DynamicMetrics, error) {
	if massKg <= 0 {
		return DynamicMetrics{}, &series.ValidationError{Op: "dynamic", Msg: "mass must be positive"}
	}
	if err := checkSeries("dynamic", time, momentNm); err != nil {
		return DynamicMetrics{}, err
	}
	if len(angularVelDegS) != len(momentNm) {
		return DynamicMetrics{}, &series.ValidationError{Op: "dynamic", Msg: "moment and angular velocity lengths differ"}
	}

	n := len(momentNm)
	absMoment := make([]float64, n)
	absPower := make([]float64, n)
	for i := range momentNm {
		absMoment[i] = math.Abs(momentNm[i])
		omega := units.DegToRad(angularVelDegS[i])
		absPower[i] = math.Abs(momentNm[i] * omega)
	}

	var meanMoment float64
	for _, m := range absMoment {
		meanMoment += m
	}
	meanMoment /= float64(n)

	var work, impulse float64
	if n > 1 {
		work = integrate.Trapezoidal(time, absPower)
		impulse = integrate.Trapezoidal(time, absMoment)
	}

	return DynamicMetrics{
		PeakMomentNmKg: peakAbs(momentNm) / massKg,
		MeanMomentNmKg: meanMoment / massKg,
		PeakPowerWKg:   peakAbs(absPower) / massKg,
		WorkJKg:        work / massKg,
		ImpulseNmsKg:   impulse / massKg,
	}, nil
}
