package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stridelabs/kneemetry/internal/biomech/alerts"
	"github.com/stridelabs/kneemetry/internal/biomech/metrics"
	"github.com/stridelabs/kneemetry/internal/biomech/pipeline"
)

const migrationsDir = "../../../db/migrations"

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, MigrateUp(db, migrationsDir))
	return db
}

func sampleResult(id string) *pipeline.Result {
	return &pipeline.Result{
		SessionID:   id,
		Exercise:    "squat",
		MassKg:      70,
		CapturedAt:  time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
		AnalyzedAt:  time.Date(2026, 2, 10, 9, 5, 0, 0, time.UTC),
		Success:     true,
		Phase:       pipeline.Done,
		SyncQuality: 0.92,
		SyncOffsetS: 0.03,
		Kinematic: map[string]metrics.KinematicMetrics{
			"knee_right": {ROMDeg: 95, PeakFlexionDeg: 110, PeakExtensionDeg: 15},
			"knee_left":  {ROMDeg: 88, PeakFlexionDeg: 105, PeakExtensionDeg: 17},
		},
		Symmetry: map[string]metrics.SymmetryMetrics{
			"rom_deg": {SymmetryIndexPct: 7.7, AsymmetryRatio: 1.08, AbsoluteDiff: 7},
		},
		Alerts: []alerts.Alert{
			{
				ID:        "alert-1",
				Timestamp: time.Date(2026, 2, 10, 9, 5, 0, 0, time.UTC),
				Severity:  alerts.Warning,
				Category:  alerts.Symmetry,
				Title:     "Moderate left/right asymmetry",
				Message:   "rom_deg symmetry index 7.7%",
				Value:     7.7,
				Threshold: 10,
			},
			{
				ID:        "alert-2",
				Timestamp: time.Date(2026, 2, 10, 9, 5, 1, 0, time.UTC),
				Severity:  alerts.Critical,
				Category:  alerts.Technical,
				Title:     "Invalid samples in signal",
				Message:   "channel fz: non-finite samples",
			},
		},
		FunctionalScore: 82,
		Summary:         "Session squat-001 (squat)\n",
	}
}

func TestMigrations(t *testing.T) {
	t.Parallel()
	db, err := Open(filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, MigrateUp(db, migrationsDir))
	version, dirty, err := MigrateVersion(db, migrationsDir)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)

	// Down then up again must round-trip cleanly.
	require.NoError(t, MigrateDown(db, migrationsDir))
	require.NoError(t, MigrateUp(db, migrationsDir))
}

func TestSaveAndLoadResult(t *testing.T) {
	t.Parallel()
	store := NewResultStore(testDB(t))

	require.NoError(t, store.SaveResult(sampleResult("squat-001")))

	rec, err := store.GetSession("squat-001")
	require.NoError(t, err)
	assert.Equal(t, "squat", rec.Exercise)
	assert.True(t, rec.Success)
	assert.Equal(t, "done", rec.Phase)
	assert.InDelta(t, 0.92, rec.SyncQuality, 1e-9)
	assert.Equal(t, 2026, rec.CapturedAt.Year())

	mrecs, err := store.ListMetrics("squat-001")
	require.NoError(t, err)
	// 2 segments x 6 kinematic rows + 1 symmetry pair x 3 rows.
	assert.Len(t, mrecs, 15)

	var foundROM bool
	for _, m := range mrecs {
		if m.Family == "kinematic" && m.Segment == "knee_right" && m.Name == "rom_deg" {
			foundROM = true
			assert.InDelta(t, 95, m.Value, 1e-9)
		}
	}
	assert.True(t, foundROM)
}

func TestListSessionsNewestFirst(t *testing.T) {
	t.Parallel()
	store := NewResultStore(testDB(t))

	require.NoError(t, store.SaveResult(sampleResult("s-1")))
	require.NoError(t, store.SaveResult(sampleResult("s-2")))
	require.NoError(t, store.SaveResult(sampleResult("s-3")))

	sessions, err := store.ListSessions(2)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "s-3", sessions[0].SessionID)
	assert.Equal(t, "s-2", sessions[1].SessionID)
}

func TestListAlertsSeverityOrder(t *testing.T) {
	t.Parallel()
	store := NewResultStore(testDB(t))
	require.NoError(t, store.SaveResult(sampleResult("squat-001")))

	recs, err := store.ListAlerts("squat-001")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	// Critical sorts before warning regardless of insertion order.
	assert.Equal(t, alerts.Critical, recs[0].Severity)
	assert.Equal(t, alerts.Technical, recs[0].Category)
	assert.Equal(t, alerts.Warning, recs[1].Severity)
	assert.False(t, recs[0].Acknowledged)
}

func TestAcknowledgeAlert(t *testing.T) {
	t.Parallel()
	store := NewResultStore(testDB(t))
	require.NoError(t, store.SaveResult(sampleResult("squat-001")))

	require.NoError(t, store.AcknowledgeAlert("alert-1"))

	recs, err := store.ListAlerts("squat-001")
	require.NoError(t, err)
	var acked int
	for _, r := range recs {
		if r.Acknowledged {
			acked++
			assert.Equal(t, "alert-1", r.ID)
		}
	}
	assert.Equal(t, 1, acked)

	assert.Error(t, store.AcknowledgeAlert("no-such-alert"))
}

func TestDeleteSessionCascades(t *testing.T) {
	t.Parallel()
	store := NewResultStore(testDB(t))
	require.NoError(t, store.SaveResult(sampleResult("squat-001")))

	require.NoError(t, store.DeleteSession("squat-001"))

	_, err := store.GetSession("squat-001")
	assert.Error(t, err)

	mrecs, err := store.ListMetrics("squat-001")
	require.NoError(t, err)
	assert.Empty(t, mrecs)

	arecs, err := store.ListAlerts("squat-001")
	require.NoError(t, err)
	assert.Empty(t, arecs)
}

func TestDuplicateSessionRejected(t *testing.T) {
	t.Parallel()
	store := NewResultStore(testDB(t))
	require.NoError(t, store.SaveResult(sampleResult("squat-001")))
	assert.Error(t, store.SaveResult(sampleResult("squat-001")))
}
