package sync

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stridelabs/kneemetry/internal/biomech/series"
)

// makeBundle samples each channel function on a uniform grid at rate Hz
// over [start, end).
func makeBundle(rate, start, end float64, channels map[string]func(float64) float64) *series.Bundle {
	n := int((end - start) * rate)
	b := &series.Bundle{
		Rate:     rate,
		Time:     make([]float64, n),
		Channels: make(map[string][]float64, len(channels)),
	}
	for i := range b.Time {
		b.Time[i] = start + float64(i)/rate
	}
	for name, fn := range channels {
		values := make([]float64, n)
		for i, t := range b.Time {
			values[i] = fn(t)
		}
		b.Channels[name] = values
	}
	return b
}

// squatWave is a 0.5 Hz loading pattern standing in for repeated squats.
func squatWave(t float64) float64 {
	return math.Sin(2 * math.Pi * 0.5 * t)
}

// squatPair builds a 10s recording of a squat session: a 60 Hz IMU bundle
// and a 1000 Hz force bundle driven by the same loading pattern, with the
// IMU clock leading the platform clock by lead seconds.
func squatPair(lead float64) (imu, force *series.Bundle) {
	imu = makeBundle(60, 0, 10, map[string]func(float64) float64{
		"femur_right_acc_y": func(t float64) float64 { return 9.81 + 2.0*squatWave(t+lead) },
		"femur_right_acc_x": func(t float64) float64 { return 0.4 * squatWave(t+lead) },
		"tibia_right_gyro_y": func(t float64) float64 {
			return 120 * math.Cos(2*math.Pi*0.5*(t+lead))
		},
	})
	force = makeBundle(1000, 0, 10, map[string]func(float64) float64{
		"fz": func(t float64) float64 { return 700 + 400*squatWave(t) },
		"fx": func(t float64) float64 { return 30 * squatWave(t) },
	})
	return imu, force
}

func TestAlignRecoversInjectedOffset(t *testing.T) {
	t.Parallel()
	imu, force := squatPair(0.05)

	res, err := New(DefaultConfig()).Align(imu, force)
	require.NoError(t, err)

	assert.InDelta(t, 0.05, res.Offset, 0.02, "injected 50ms lead should be recovered")
	assert.Greater(t, res.Quality, 0.7)
	assert.False(t, res.LowQuality)
	assert.Equal(t, 100.0, res.Rate)
}

func TestAlignCorrectionRealignsStreams(t *testing.T) {
	t.Parallel()
	imu, force := squatPair(0.05)

	res, err := New(DefaultConfig()).Align(imu, force)
	require.NoError(t, err)

	// After correction the IMU channel must line up with the platform
	// clock: the corrected femur signal at time t tracks squatWave(t),
	// not squatWave(t+0.05). Skip the edges where the spline clamps.
	acc := res.IMU.Channels["femur_right_acc_y"]
	for i := 20; i < len(res.Time)-20; i += 50 {
		want := 9.81 + 2.0*squatWave(res.Time[i])
		assert.InDelta(t, want, acc[i], 0.15, "sample %d at t=%.2f", i, res.Time[i])
	}
}

func TestAlignZeroOffsetNotCorrected(t *testing.T) {
	t.Parallel()
	imu, force := squatPair(0)

	res, err := New(DefaultConfig()).Align(imu, force)
	require.NoError(t, err)

	assert.InDelta(t, 0, res.Offset, 0.011)
	assert.Greater(t, res.Quality, 0.7)
	// Streams fully overlap, so the common grid starts at the recording start.
	assert.InDelta(t, 0, res.Time[0], 1e-9)
	assert.Len(t, res.IMU.Channels, 3)
	assert.Len(t, res.Force.Channels, 2)
	for name, values := range res.IMU.Channels {
		assert.Len(t, values, len(res.Time), "channel %s", name)
	}
}

func TestAlignExcessiveOffsetFails(t *testing.T) {
	t.Parallel()
	imu, force := squatPair(0.8) // beyond the 0.5s ceiling

	_, err := New(DefaultConfig()).Align(imu, force)
	require.Error(t, err)
	assert.ErrorIs(t, err, series.ErrTemporalMisalignment)
}

func TestAlignInsufficientOverlapFails(t *testing.T) {
	t.Parallel()
	imu := makeBundle(60, 0, 10, map[string]func(float64) float64{
		"femur_right_acc_y": squatWave,
	})
	// Force recording only covers the last second of the IMU recording.
	force := makeBundle(1000, 9, 12, map[string]func(float64) float64{
		"fz": squatWave,
	})

	_, err := New(DefaultConfig()).Align(imu, force)
	require.Error(t, err)
	assert.True(t, series.IsValidation(err))
	assert.ErrorContains(t, err, "overlap")
}

func TestAlignDisjointStreamsFail(t *testing.T) {
	t.Parallel()
	imu := makeBundle(60, 0, 5, map[string]func(float64) float64{
		"femur_right_acc_y": squatWave,
	})
	force := makeBundle(1000, 6, 10, map[string]func(float64) float64{
		"fz": squatWave,
	})

	_, err := New(DefaultConfig()).Align(imu, force)
	require.Error(t, err)
	assert.True(t, series.IsValidation(err))
}

func TestAlignRejectsInvalidInput(t *testing.T) {
	t.Parallel()
	force := makeBundle(1000, 0, 10, map[string]func(float64) float64{
		"fz": squatWave,
	})

	t.Run("too few samples", func(t *testing.T) {
		t.Parallel()
		imu := makeBundle(60, 0, 0.1, map[string]func(float64) float64{
			"femur_right_acc_y": squatWave,
		})
		_, err := New(DefaultConfig()).Align(imu, force)
		assert.Error(t, err)
	})

	t.Run("no channels", func(t *testing.T) {
		t.Parallel()
		imu := makeBundle(60, 0, 10, nil)
		_, err := New(DefaultConfig()).Align(imu, force)
		assert.Error(t, err)
	})
}

func TestResampleIsExactOnLinearData(t *testing.T) {
	t.Parallel()
	b := makeBundle(60, 0, 5, map[string]func(float64) float64{
		"ramp": func(t float64) float64 { return 3*t + 1 },
	})
	grid := timeGrid(0.5, 4.5, 100)

	ds, err := resampleBundle(b, grid, 0)
	require.NoError(t, err)

	for i, tt := range grid {
		assert.InDelta(t, 3*tt+1, ds.Channels["ramp"][i], 1e-6)
	}
}

func TestQualityScoreClamped(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 1.0, qualityScore(1.0, 1.0), 1e-12)
	assert.InDelta(t, 0.3, qualityScore(0, 1.0), 1e-12)
	assert.InDelta(t, 0.7, qualityScore(-1.0, 0), 1e-12, "correlation magnitude counts, not sign")
	assert.Equal(t, 1.0, qualityScore(1.5, 2.0), "never above one")
}
