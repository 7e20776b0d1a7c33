package sessionfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stridelabs/kneemetry/internal/biomech/pipeline"
	"github.com/stridelabs/kneemetry/internal/biomech/series"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.json")
	want := pipeline.Session{
		ID:         "sess-42",
		Exercise:   "squat",
		MassKg:     71.5,
		CapturedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		IMU: &series.Bundle{
			Rate: 60,
			Time: []float64{0, 1.0 / 60, 2.0 / 60},
			Channels: map[string][]float64{
				"femur_right_gyro_y": {1, 2, 3},
			},
		},
		Force: &series.Bundle{
			Rate: 1000,
			Time: []float64{0, 0.001, 0.002},
			Channels: map[string][]float64{
				"fz": {700, 710, 705},
			},
		},
	}

	require.NoError(t, Save(path, want))
	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Exercise, got.Exercise)
	assert.Equal(t, want.MassKg, got.MassKg)
	assert.True(t, want.CapturedAt.Equal(got.CapturedAt))
	require.NotNil(t, got.IMU)
	require.NotNil(t, got.Force)
	if diff := cmp.Diff(want.IMU, got.IMU); diff != "" {
		t.Errorf("IMU bundle mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.Force, got.Force); diff != "" {
		t.Errorf("force bundle mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveLoadNilForce(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "imu-only.json")
	s := pipeline.Session{
		ID:     "imu-only",
		MassKg: 80,
		IMU: &series.Bundle{
			Rate:     60,
			Time:     []float64{0},
			Channels: map[string][]float64{"tibia_left_gyro_y": {0}},
		},
	}
	require.NoError(t, Save(path, s))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Nil(t, got.Force)
	require.NotNil(t, got.IMU)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadBadJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
