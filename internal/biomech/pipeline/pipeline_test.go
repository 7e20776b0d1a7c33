package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stridelabs/kneemetry/internal/biomech/alerts"
	"github.com/stridelabs/kneemetry/internal/biomech/series"
	"github.com/stridelabs/kneemetry/internal/biomech/sync"
	"github.com/stridelabs/kneemetry/internal/config"
)

func sampleBundle(rate, duration float64, channels map[string]func(float64) float64) *series.Bundle {
	n := int(duration * rate)
	b := &series.Bundle{
		Rate:     rate,
		Time:     make([]float64, n),
		Channels: make(map[string][]float64, len(channels)),
	}
	for i := range b.Time {
		b.Time[i] = float64(i) / rate
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

// kneeVelocity is the relative femur-tibia angular rate producing a 0 to
// 90 degree flexion cycle at 0.5 Hz: the integral of 45*pi*sin(pi*t).
func kneeVelocity(t float64) float64 {
	return 45 * math.Pi * math.Sin(math.Pi*t)
}

// stepForce is a walking-style force pattern: 800 N half-sine pulses at
// 1 Hz separated by full unloading.
func stepForce(t float64) float64 {
	return 800 * math.Max(0, math.Sin(2*math.Pi*t))
}

// walkSession builds a clean 10s walking recording with correlated IMU and
// force streams.
func walkSession() Session {
	imu := sampleBundle(60, 10, map[string]func(float64) float64{
		"femur_right_gyro_y": func(t float64) float64 { return 0.8 * kneeVelocity(t) },
		"tibia_right_gyro_y": func(t float64) float64 { return -0.2 * kneeVelocity(t) },
		"femur_left_gyro_y":  func(t float64) float64 { return 0.8 * kneeVelocity(t) },
		"tibia_left_gyro_y":  func(t float64) float64 { return -0.2 * kneeVelocity(t) },
		"femur_right_acc_y":  func(t float64) float64 { return 9.81 + 2*math.Sin(2*math.Pi*t) },
		"tibia_right_acc_y":  func(t float64) float64 { return 9.81 + 1.5*math.Sin(2*math.Pi*t) },
	})
	force := sampleBundle(1000, 10, map[string]func(float64) float64{
		"fz": stepForce,
		"fx": func(t float64) float64 { return 25 * math.Sin(2*math.Pi*t) },
	})
	return Session{
		ID:         "walk-001",
		Exercise:   "walk",
		MassKg:     70,
		CapturedAt: time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC),
		IMU:        imu,
		Force:      force,
	}
}

func newTestOrchestrator(model JointModelProvider) *Orchestrator {
	return NewOrchestrator(config.EmptyAnalysisConfig(), model)
}

func TestRunFullSession(t *testing.T) {
	t.Parallel()
	res, err := newTestOrchestrator(nil).Run(context.Background(), walkSession())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, Done, res.Phase)
	require.NotNil(t, res.Sync)
	assert.Greater(t, res.SyncQuality, 0.7)
	assert.InDelta(t, 0, res.SyncOffsetS, 0.011)

	// Both knees produce kinematics with the expected 90 degree ROM.
	require.Contains(t, res.Kinematic, "knee_right")
	require.Contains(t, res.Kinematic, "knee_left")
	assert.InDelta(t, 90, res.Kinematic["knee_right"].ROMDeg, 5)

	// Walking pulses produce repeated contacts with in-band peak force.
	assert.NotEmpty(t, res.Events)
	require.NotEmpty(t, res.Force)
	stats, ok := res.ForceStats["peak_force_bw"]
	require.True(t, ok)
	assert.InDelta(t, 800/(70*9.81), stats.Max, 0.1)

	// Identical sides are symmetric.
	require.Contains(t, res.Symmetry, "rom_deg")
	assert.Less(t, res.Symmetry["rom_deg"].SymmetryIndexPct, 1.0)

	assert.False(t, res.ModeledJoints)
	assert.Empty(t, res.Dynamic, "no moments without a joint model")
	assert.NotEmpty(t, res.Summary)
	assert.Greater(t, res.FunctionalScore, 50.0)
}

func TestRunSurvivesAllNaNForceChannel(t *testing.T) {
	t.Parallel()
	s := walkSession()
	for i := range s.Force.Channels["fz"] {
		s.Force.Channels["fz"][i] = math.NaN()
	}
	for i := range s.Force.Channels["fx"] {
		s.Force.Channels["fx"][i] = math.NaN()
	}

	res, err := newTestOrchestrator(nil).Run(context.Background(), s)
	require.NoError(t, err)

	// Kinematic metrics are still computable from the IMU alone, so the
	// run succeeds in degraded form.
	assert.True(t, res.Success)
	assert.Equal(t, Done, res.Phase)
	assert.Nil(t, res.Sync)
	assert.NotEmpty(t, res.Kinematic)
	assert.Empty(t, res.Force)

	var critical bool
	for _, a := range res.Alerts {
		if a.Severity == alerts.Critical && a.Category == alerts.Technical {
			critical = true
		}
	}
	assert.True(t, critical, "invalid force data must surface as a critical technical alert")
}

func TestRunStructuralFailures(t *testing.T) {
	t.Parallel()

	t.Run("zero mass", func(t *testing.T) {
		t.Parallel()
		s := walkSession()
		s.MassKg = 0
		res, err := newTestOrchestrator(nil).Run(context.Background(), s)
		require.Error(t, err)
		assert.Equal(t, Failed, res.Phase)
		assert.False(t, res.Success)
	})

	t.Run("no sensor data", func(t *testing.T) {
		t.Parallel()
		res, err := newTestOrchestrator(nil).Run(context.Background(), Session{ID: "x", Exercise: "walk", MassKg: 70})
		require.Error(t, err)
		assert.Equal(t, Failed, res.Phase)
	})

	t.Run("disjoint time spans", func(t *testing.T) {
		t.Parallel()
		s := walkSession()
		for i := range s.Force.Time {
			s.Force.Time[i] += 100
		}
		res, err := newTestOrchestrator(nil).Run(context.Background(), s)
		require.Error(t, err)
		assert.Equal(t, Failed, res.Phase)
		assert.True(t, series.IsValidation(err))
	})
}

type fakeJointModel struct {
	fail bool
}

func (f fakeJointModel) JointChannels(_ context.Context, syncRes *sync.Result) (map[string][]float64, map[string][]float64, error) {
	if f.fail {
		return nil, nil, errors.New("model service unreachable")
	}
	n := len(syncRes.Time)
	angle := make([]float64, n)
	moment := make([]float64, n)
	for i, t := range syncRes.Time {
		angle[i] = 45 * (1 - math.Cos(math.Pi*t))
		moment[i] = 120 * math.Sin(math.Pi*t)
	}
	return map[string][]float64{"knee_right": angle, "knee_left": angle},
		map[string][]float64{"knee_right": moment, "knee_left": moment}, nil
}

func TestRunWithJointModel(t *testing.T) {
	t.Parallel()
	res, err := newTestOrchestrator(fakeJointModel{}).Run(context.Background(), walkSession())
	require.NoError(t, err)

	assert.True(t, res.ModeledJoints)
	require.Contains(t, res.Dynamic, "knee_right")
	assert.InDelta(t, 120.0/70, res.Dynamic["knee_right"].PeakMomentNmKg, 0.05)

	// The IMU approximation is validated against the modeled reference.
	require.Contains(t, res.Validation, "knee_right")
	assert.Greater(t, res.Validation["knee_right"].ICC, 0.8,
		"IMU approximation should agree closely with the model on clean data")

	require.Contains(t, res.Symmetry, "peak_moment_nm_kg")
}

func TestRunJointModelFailureDegrades(t *testing.T) {
	t.Parallel()
	res, err := newTestOrchestrator(fakeJointModel{fail: true}).Run(context.Background(), walkSession())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.False(t, res.ModeledJoints)
	assert.NotEmpty(t, res.Kinematic, "IMU approximation still provides kinematics")
	assert.Empty(t, res.Dynamic)

	var degraded bool
	for _, a := range res.Alerts {
		if a.Category == alerts.Technical {
			degraded = true
		}
	}
	assert.True(t, degraded, "model failure must be visible in the alerts")
}

func TestRunJumpSessionEstimatesHeight(t *testing.T) {
	t.Parallel()
	s := walkSession()
	s.Exercise = "jump"
	// Push-off: 2 BW for 0.3s starting at t=2, then flight.
	fz := s.Force.Channels["fz"]
	for i := range fz {
		t := s.Force.Time[i]
		switch {
		case t >= 2.0 && t < 2.3:
			fz[i] = 2 * 70 * 9.81
		case t >= 2.3 && t < 2.8:
			fz[i] = 0
		}
	}

	res, err := newTestOrchestrator(nil).Run(context.Background(), s)
	require.NoError(t, err)
	require.True(t, res.Success)
	if assert.NotEmpty(t, res.Events) {
		assert.Greater(t, res.JumpHeightM, 0.0)
	}
}

func TestSummaryMentionsKeyFindings(t *testing.T) {
	t.Parallel()
	res, err := newTestOrchestrator(nil).Run(context.Background(), walkSession())
	require.NoError(t, err)

	assert.Contains(t, res.Summary, "walk-001")
	assert.Contains(t, res.Summary, "knee_right")
	assert.Contains(t, res.Summary, "Functional score")
	assert.Contains(t, res.Summary, "Synchronization")
}

func TestHighestSeverity(t *testing.T) {
	t.Parallel()
	r := &Result{}
	assert.Equal(t, alerts.Info, r.HighestSeverity())

	r.Alerts = []alerts.Alert{
		{Severity: alerts.Warning},
		{Severity: alerts.Critical},
		{Severity: alerts.Error},
	}
	assert.Equal(t, alerts.Critical, r.HighestSeverity())
	assert.Equal(t, 1, r.CountBySeverity()[alerts.Error])
}
