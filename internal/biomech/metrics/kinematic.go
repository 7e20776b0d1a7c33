// Package metrics computes the five summary metric families from processed,
// segmented signals: kinematic, dynamic, force, validation, and symmetry.
// Every function here is pure: inputs in, a metric record out, no shared
// state between calls.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/stridelabs/kneemetry/internal/biomech/series"
)

// KinematicMetrics summarizes a joint angle trace.
type KinematicMetrics struct {
	ROMDeg                  float64 `json:"rom_deg"`
	PeakFlexionDeg          float64 `json:"peak_flexion_deg"`
	PeakExtensionDeg        float64 `json:"peak_extension_deg"`
	MeanAngleDeg            float64 `json:"mean_angle_deg"`
	PeakAngularVelocityDegS float64 `json:"peak_angular_velocity_deg_s"`
	PeakAngularAccelDegS2   float64 `json:"peak_angular_accel_deg_s2"`
}

// Kinematic computes angle-trace metrics. The angle is in degrees; angular
// velocity and acceleration are derived by finite differences on the time
// grid.
func Kinematic(time, angleDeg []float64) (KinematicMetrics, error) {
	if err := checkSeries("kinematic", time, angleDeg); err != nil {
		return KinematicMetrics{}, err
	}

	velocity := differentiate(time, angleDeg)
	accel := differentiate(time, velocity)

	return KinematicMetrics{
		ROMDeg:                  floats.Max(angleDeg) - floats.Min(angleDeg),
		PeakFlexionDeg:          floats.Max(angleDeg),
		PeakExtensionDeg:        floats.Min(angleDeg),
		MeanAngleDeg:            stat.Mean(angleDeg, nil),
		PeakAngularVelocityDegS: peakAbs(velocity),
		PeakAngularAccelDegS2:   peakAbs(accel),
	}, nil
}

// differentiate returns the derivative of values on the (possibly
// non-uniform) time grid: central differences inside, one-sided at the ends.
func differentiate(time, values []float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n < 2 {
		return out
	}
	out[0] = (values[1] - values[0]) / (time[1] - time[0])
	out[n-1] = (values[n-1] - values[n-2]) / (time[n-1] - time[n-2])
	for i := 1; i < n-1; i++ {
		out[i] = (values[i+1] - values[i-1]) / (time[i+1] - time[i-1])
	}
	return out
}

func peakAbs(values []float64) float64 {
	var peak float64
	for _, v := range values {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}

// checkSeries rejects empty, mismatched, or non-finite inputs. Non-finite
// samples come back as a data-quality error so the caller can degrade into
// an alert instead of aborting.
func checkSeries(op string, time, values []float64) error {
	if len(values) == 0 {
		return &series.ValidationError{Op: op, Msg: "empty input"}
	}
	if len(time) != len(values) {
		return &series.ValidationError{Op: op, Msg: "time and value lengths differ"}
	}
	if n := series.CountInvalid(values); n > 0 {
		return &series.DataQualityError{
			Channel:   op,
			Condition: series.QualityNaN,
			Detail:    "non-finite samples in metric input",
		}
	}
	return nil
}
