package dsp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/interp"

	"github.com/stridelabs/kneemetry/internal/biomech/series"
)

// CumTrapezoid returns the cumulative trapezoidal integral of values on a
// uniform grid with spacing dt. Element i is the integral from sample 0 to
// sample i, so the first element is always zero.
func CumTrapezoid(values []float64, dt float64) []float64 {
	out := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		out[i] = out[i-1] + 0.5*(values[i-1]+values[i])*dt
	}
	return out
}

// IntegrateVelocity integrates angular rate (or linear acceleration) into
// velocity over a uniform grid.
func IntegrateVelocity(rate []float64, dt float64) []float64 {
	return CumTrapezoid(rate, dt)
}

// IntegrateDisplacement integrates velocity into displacement over a
// uniform grid.
func IntegrateDisplacement(velocity []float64, dt float64) []float64 {
	return CumTrapezoid(velocity, dt)
}

// TakeoffVelocity integrates net vertical acceleration (fz/m - g) over the
// contact event and returns the velocity at takeoff, per the
// impulse-momentum theorem.
func TakeoffVelocity(fz []float64, time []float64, ev series.Event, massKg, gravity float64) (float64, error) {
	if massKg <= 0 {
		return 0, fmt.Errorf("mass must be positive, got %g kg", massKg)
	}
	if ev.Start < 0 || ev.End >= len(fz) || ev.End <= ev.Start {
		return 0, fmt.Errorf("event [%d, %d] outside signal of %d samples", ev.Start, ev.End, len(fz))
	}
	t := time[ev.Start : ev.End+1]
	netAccel := make([]float64, ev.End-ev.Start+1)
	for i := range netAccel {
		netAccel[i] = fz[ev.Start+i]/massKg - gravity
	}
	return integrate.Trapezoidal(t, netAccel), nil
}

// JumpHeight converts a takeoff velocity into jump height. Negative takeoff
// velocities (no actual takeoff) yield zero.
func JumpHeight(takeoffVelocity, gravity float64) float64 {
	if takeoffVelocity <= 0 {
		return 0
	}
	return takeoffVelocity * takeoffVelocity / (2 * gravity)
}

// Downsample reduces values from fromRateHz to toRateHz. The signal is
// low-passed below the new Nyquist frequency first so the decimation does
// not alias, then evaluated on the new grid with a cubic spline.
func Downsample(values []float64, fromRateHz, toRateHz float64, order int) ([]float64, error) {
	if toRateHz >= fromRateHz {
		return nil, fmt.Errorf("target rate %g Hz must be below source rate %g Hz", toRateHz, fromRateHz)
	}
	// Cutoff at 80% of the new Nyquist leaves transition-band headroom.
	filtered, err := LowPass(values, 0.4*toRateHz, fromRateHz, order)
	if err != nil {
		return nil, err
	}

	n := len(filtered)
	srcTime := make([]float64, n)
	for i := range srcTime {
		srcTime[i] = float64(i) / fromRateHz
	}
	var spline interp.NaturalCubic
	if err := spline.Fit(srcTime, filtered); err != nil {
		return nil, fmt.Errorf("downsample fit: %w", err)
	}

	span := srcTime[n-1]
	m := int(math.Floor(span*toRateHz)) + 1
	out := make([]float64, m)
	for i := range out {
		out[i] = spline.Predict(float64(i) / toRateHz)
	}
	return out, nil
}
