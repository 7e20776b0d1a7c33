package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stridelabs/kneemetry/internal/biomech/series"
)

func sine(freq, rate float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / rate)
	}
	return out
}

func TestLowPassAttenuatesAboveCutoff(t *testing.T) {
	t.Parallel()
	const rate = 1000.0
	noisy := sine(50, rate, 4000)

	filtered, err := LowPass(noisy, 10, rate, 4)
	require.NoError(t, err)
	require.Len(t, filtered, len(noisy))

	// 50 Hz against a 10 Hz fourth-order cutoff, applied twice, should
	// leave essentially nothing. Skip the edges.
	for i := 200; i < len(filtered)-200; i++ {
		assert.Less(t, math.Abs(filtered[i]), 0.05, "sample %d", i)
	}
}

func TestLowPassPreservesPassband(t *testing.T) {
	t.Parallel()
	const rate = 1000.0
	slow := sine(1, rate, 4000)

	filtered, err := LowPass(slow, 10, rate, 4)
	require.NoError(t, err)

	for i := 200; i < len(filtered)-200; i++ {
		assert.InDelta(t, slow[i], filtered[i], 0.02, "sample %d", i)
	}
}

func TestLowPassZeroPhase(t *testing.T) {
	t.Parallel()
	const rate = 1000.0
	// A 2 Hz sine peaks at sample 125. Forward-backward filtering must not
	// move that peak; a single forward pass would.
	slow := sine(2, rate, 2000)

	filtered, err := LowPass(slow, 10, rate, 4)
	require.NoError(t, err)

	peakIdx := 0
	for i, v := range filtered[:500] {
		if v > filtered[peakIdx] {
			peakIdx = i
		}
	}
	assert.InDelta(t, 125, peakIdx, 2)
}

func TestLowPassRejectsBadParams(t *testing.T) {
	t.Parallel()

	t.Run("cutoff at nyquist", func(t *testing.T) {
		t.Parallel()
		_, err := LowPass(sine(1, 100, 100), 50, 100, 4)
		assert.ErrorContains(t, err, "Nyquist")
	})
	t.Run("cutoff above nyquist", func(t *testing.T) {
		t.Parallel()
		_, err := LowPass(sine(1, 100, 100), 80, 100, 4)
		assert.ErrorContains(t, err, "Nyquist")
	})
	t.Run("odd order", func(t *testing.T) {
		t.Parallel()
		_, err := LowPass(sine(1, 100, 100), 10, 100, 3)
		assert.ErrorContains(t, err, "even")
	})
	t.Run("zero cutoff", func(t *testing.T) {
		t.Parallel()
		_, err := LowPass(sine(1, 100, 100), 0, 100, 4)
		assert.ErrorContains(t, err, "positive")
	})
}

// pulseSignal builds quiet-pulse-quiet at 100 Hz with the pulse at height
// 100 for pulseSamples samples.
func pulseSignal(pulseSamples int) []float64 {
	out := make([]float64, 200+pulseSamples)
	for i := 100; i < 100+pulseSamples; i++ {
		out[i] = 100
	}
	return out
}

func TestDetectEventsMinDuration(t *testing.T) {
	t.Parallel()
	const rate = 100.0

	t.Run("200ms pulse detected", func(t *testing.T) {
		t.Parallel()
		events := DetectEvents(pulseSignal(20), rate, 50, 0.1)
		require.Len(t, events, 1)
		assert.Equal(t, series.Contact, events[0].Kind)
		assert.Equal(t, 100, events[0].Start)
		assert.Equal(t, 119, events[0].End)
		assert.InDelta(t, 0.19, events[0].Duration(1/rate), 1e-9)
	})

	t.Run("50ms pulse rejected", func(t *testing.T) {
		t.Parallel()
		events := DetectEvents(pulseSignal(5), rate, 50, 0.1)
		assert.Empty(t, events)
	})
}

func TestDetectEventsRequiresCompleteCrossings(t *testing.T) {
	t.Parallel()
	const rate = 100.0

	t.Run("starts above threshold", func(t *testing.T) {
		t.Parallel()
		sig := make([]float64, 100)
		for i := 0; i < 50; i++ {
			sig[i] = 100
		}
		assert.Empty(t, DetectEvents(sig, rate, 50, 0.1))
	})

	t.Run("ends above threshold", func(t *testing.T) {
		t.Parallel()
		sig := make([]float64, 100)
		for i := 50; i < 100; i++ {
			sig[i] = 100
		}
		assert.Empty(t, DetectEvents(sig, rate, 50, 0.1))
	})

	t.Run("two complete pulses", func(t *testing.T) {
		t.Parallel()
		sig := make([]float64, 400)
		for i := 50; i < 100; i++ {
			sig[i] = 100
		}
		for i := 200; i < 300; i++ {
			sig[i] = 100
		}
		events := DetectEvents(sig, rate, 50, 0.1)
		require.Len(t, events, 2)

		flights := FlightPhases(events)
		require.Len(t, flights, 1)
		assert.Equal(t, series.Flight, flights[0].Kind)
		assert.Equal(t, 100, flights[0].Start)
		assert.Equal(t, 199, flights[0].End)
	})
}

func TestCumTrapezoid(t *testing.T) {
	t.Parallel()
	// Integrating a constant 2.0 at dt=0.5 accumulates 1.0 per step.
	out := CumTrapezoid([]float64{2, 2, 2, 2}, 0.5)
	assert.InDeltaSlice(t, []float64{0, 1, 2, 3}, out, 1e-12)

	// Integrating a ramp t over [0, 1] gives t^2/2.
	ramp := make([]float64, 101)
	for i := range ramp {
		ramp[i] = float64(i) / 100
	}
	integ := CumTrapezoid(ramp, 0.01)
	assert.InDelta(t, 0.5, integ[100], 1e-4)
	assert.InDelta(t, 0.125, integ[50], 1e-4)
}

func TestTakeoffVelocityAndJumpHeight(t *testing.T) {
	t.Parallel()
	const (
		rate    = 1000.0
		mass    = 70.0
		gravity = 9.81
	)
	// Constant net upward force of one extra bodyweight for 0.25s:
	// a = g, so takeoff velocity = g * 0.25 and height = v^2 / (2g).
	n := 251
	fz := make([]float64, n)
	time := make([]float64, n)
	for i := range fz {
		fz[i] = 2 * mass * gravity
		time[i] = float64(i) / rate
	}
	ev := series.Event{Start: 0, End: n - 1, Kind: series.Contact}

	v, err := TakeoffVelocity(fz, time, ev, mass, gravity)
	require.NoError(t, err)
	assert.InDelta(t, gravity*0.25, v, 1e-6)

	wantHeight := (gravity * 0.25) * (gravity * 0.25) / (2 * gravity)
	assert.InDelta(t, wantHeight, JumpHeight(v, gravity), 1e-6)
}

func TestJumpHeightNoTakeoff(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0.0, JumpHeight(-0.5, 9.81))
	assert.Equal(t, 0.0, JumpHeight(0, 9.81))
}

func TestTakeoffVelocityRejectsBadInput(t *testing.T) {
	t.Parallel()
	fz := []float64{1, 2, 3}
	time := []float64{0, 0.001, 0.002}

	_, err := TakeoffVelocity(fz, time, series.Event{Start: 0, End: 10}, 70, 9.81)
	assert.Error(t, err)

	_, err = TakeoffVelocity(fz, time, series.Event{Start: 0, End: 2}, 0, 9.81)
	assert.ErrorContains(t, err, "mass")
}

func TestDownsamplePreservesSlowSignal(t *testing.T) {
	t.Parallel()
	// A 1 Hz sine sampled at 1000 Hz downsampled to 100 Hz keeps its shape.
	src := sine(1, 1000, 5000)

	out, err := Downsample(src, 1000, 100, 4)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	for i := 50; i < len(out)-50; i++ {
		want := math.Sin(2 * math.Pi * float64(i) / 100)
		assert.InDelta(t, want, out[i], 0.03, "sample %d", i)
	}
}

func TestDownsampleRejectsUpsampling(t *testing.T) {
	t.Parallel()
	_, err := Downsample(sine(1, 100, 100), 100, 200, 4)
	assert.Error(t, err)
}
