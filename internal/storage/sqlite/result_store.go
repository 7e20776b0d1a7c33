package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/stridelabs/kneemetry/internal/biomech/alerts"
	"github.com/stridelabs/kneemetry/internal/biomech/pipeline"
)

// SessionRecord is the persisted header row for one analyzed session.
type SessionRecord struct {
	SessionID       string    `json:"session_id"`
	Exercise        string    `json:"exercise"`
	MassKg          float64   `json:"mass_kg"`
	CapturedAt      time.Time `json:"captured_at"`
	AnalyzedAt      time.Time `json:"analyzed_at"`
	Success         bool      `json:"success"`
	Phase           string    `json:"phase"`
	SyncQuality     float64   `json:"sync_quality"`
	SyncOffsetS     float64   `json:"sync_offset_s"`
	ModeledJoints   bool      `json:"modeled_joints"`
	FunctionalScore float64   `json:"functional_score"`
	JumpHeightM     float64   `json:"jump_height_m"`
	Summary         string    `json:"summary"`
	CreatedAt       int64     `json:"created_at"`
}

// MetricRecord is one flattened scalar metric row.
type MetricRecord struct {
	Family  string  `json:"family"`
	Segment string  `json:"segment"`
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
}

// AlertRecord is a persisted alert plus its acknowledgement state, which is
// the only field that changes after insertion.
type AlertRecord struct {
	alerts.Alert
	SessionID    string `json:"session_id"`
	Acknowledged bool   `json:"acknowledged"`
}

// ResultStore provides persistence for analysis results.
type ResultStore struct {
	db *sql.DB
}

// NewResultStore creates a ResultStore backed by the given database.
func NewResultStore(db *sql.DB) *ResultStore {
	return &ResultStore{db: db}
}

// SaveResult persists a full analysis result: the session header, every
// scalar metric flattened to (family, segment, name, value) rows, and all
// alerts. The whole write is one transaction.
func (s *ResultStore) SaveResult(res *pipeline.Result) error {
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			INSERT INTO sessions (
				session_id, exercise, mass_kg, captured_at, analyzed_at,
				success, phase, sync_quality, sync_offset_s, modeled_joints,
				functional_score, jump_height_m, summary, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.SessionID, res.Exercise, res.MassKg,
			res.CapturedAt.UTC().Format(time.RFC3339),
			res.AnalyzedAt.UTC().Format(time.RFC3339),
			res.Success, res.Phase.String(), res.SyncQuality, res.SyncOffsetS,
			res.ModeledJoints, res.FunctionalScore, res.JumpHeightM,
			res.Summary, time.Now().UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		for _, rec := range flattenMetrics(res) {
			_, err := tx.Exec(`
				INSERT INTO session_metrics (session_id, family, segment, name, value)
				VALUES (?, ?, ?, ?, ?)`,
				res.SessionID, rec.Family, rec.Segment, rec.Name, rec.Value)
			if err != nil {
				return fmt.Errorf("insert metric %s/%s/%s: %w", rec.Family, rec.Segment, rec.Name, err)
			}
		}

		for _, a := range res.Alerts {
			_, err := tx.Exec(`
				INSERT INTO session_alerts (
					alert_id, session_id, created_at, severity, category,
					title, message, value, threshold, recommendation
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				a.ID, res.SessionID, a.Timestamp.UTC().Format(time.RFC3339),
				a.Severity.String(), a.Category.String(),
				a.Title, a.Message, a.Value, a.Threshold, a.Recommendation)
			if err != nil {
				return fmt.Errorf("insert alert %s: %w", a.ID, err)
			}
		}

		return tx.Commit()
	})
}

// GetSession returns the persisted header for one session.
func (s *ResultStore) GetSession(sessionID string) (*SessionRecord, error) {
	row := s.db.QueryRow(`
		SELECT session_id, exercise, mass_kg, captured_at, analyzed_at,
		       success, phase, sync_quality, sync_offset_s, modeled_joints,
		       functional_score, jump_height_m, summary, created_at
		FROM sessions WHERE session_id = ?`, sessionID)
	return scanSession(row)
}

// ListSessions returns session headers newest-first, up to limit.
func (s *ResultStore) ListSessions(limit int) ([]*SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT session_id, exercise, mass_kg, captured_at, analyzed_at,
		       success, phase, sync_quality, sync_offset_s, modeled_joints,
		       functional_score, jump_height_m, summary, created_at
		FROM sessions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, rec)
	}
	return sessions, rows.Err()
}

// ListMetrics returns the flattened metrics for one session, ordered by
// family then segment then name.
func (s *ResultStore) ListMetrics(sessionID string) ([]*MetricRecord, error) {
	rows, err := s.db.Query(`
		SELECT family, segment, name, value
		FROM session_metrics WHERE session_id = ?
		ORDER BY family, segment, name`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	var recs []*MetricRecord
	for rows.Next() {
		rec := &MetricRecord{}
		if err := rows.Scan(&rec.Family, &rec.Segment, &rec.Name, &rec.Value); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// ListAlerts returns the alerts for one session, most severe first.
func (s *ResultStore) ListAlerts(sessionID string) ([]*AlertRecord, error) {
	rows, err := s.db.Query(`
		SELECT alert_id, session_id, created_at, severity, category,
		       title, message, value, threshold, recommendation, acknowledged
		FROM session_alerts WHERE session_id = ?
		ORDER BY CASE severity
			WHEN 'critical' THEN 0
			WHEN 'error' THEN 1
			WHEN 'warning' THEN 2
			ELSE 3 END, created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var recs []*AlertRecord
	for rows.Next() {
		rec := &AlertRecord{}
		var created, severity, category string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &created, &severity, &category,
			&rec.Title, &rec.Message, &rec.Value, &rec.Threshold,
			&rec.Recommendation, &rec.Acknowledged); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		rec.Timestamp, _ = time.Parse(time.RFC3339, created)
		rec.Severity = parseSeverity(severity)
		rec.Category = parseCategory(category)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// AcknowledgeAlert marks one alert as acknowledged. Acknowledgement is the
// only post-creation mutation alerts permit.
func (s *ResultStore) AcknowledgeAlert(alertID string) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(
			`UPDATE session_alerts SET acknowledged = 1 WHERE alert_id = ?`, alertID)
		if err != nil {
			return fmt.Errorf("acknowledge alert: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("alert %s not found", alertID)
		}
		return nil
	})
}

// DeleteSession removes a session and, through the cascade, its metrics
// and alerts.
func (s *ResultStore) DeleteSession(sessionID string) error {
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`DELETE FROM sessions WHERE session_id = ?`, sessionID)
		return err
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*SessionRecord, error) {
	rec := &SessionRecord{}
	var captured, analyzed string
	err := row.Scan(&rec.SessionID, &rec.Exercise, &rec.MassKg, &captured, &analyzed,
		&rec.Success, &rec.Phase, &rec.SyncQuality, &rec.SyncOffsetS, &rec.ModeledJoints,
		&rec.FunctionalScore, &rec.JumpHeightM, &rec.Summary, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	rec.CapturedAt, _ = time.Parse(time.RFC3339, captured)
	rec.AnalyzedAt, _ = time.Parse(time.RFC3339, analyzed)
	return rec, nil
}

func parseSeverity(s string) alerts.Severity {
	switch s {
	case "critical":
		return alerts.Critical
	case "error":
		return alerts.Error
	case "warning":
		return alerts.Warning
	default:
		return alerts.Info
	}
}

func parseCategory(s string) alerts.Category {
	switch s {
	case "kinematic":
		return alerts.Kinematic
	case "dynamic":
		return alerts.Dynamic
	case "force":
		return alerts.Force
	case "symmetry":
		return alerts.Symmetry
	case "validation":
		return alerts.Validation
	default:
		return alerts.Technical
	}
}

// flattenMetrics turns every metric family in the result into scalar rows.
func flattenMetrics(res *pipeline.Result) []MetricRecord {
	var recs []MetricRecord
	add := func(family, segment, name string, value float64) {
		recs = append(recs, MetricRecord{Family: family, Segment: segment, Name: name, Value: value})
	}

	for segment, m := range res.Kinematic {
		add("kinematic", segment, "rom_deg", m.ROMDeg)
		add("kinematic", segment, "peak_flexion_deg", m.PeakFlexionDeg)
		add("kinematic", segment, "peak_extension_deg", m.PeakExtensionDeg)
		add("kinematic", segment, "mean_angle_deg", m.MeanAngleDeg)
		add("kinematic", segment, "peak_angular_velocity_deg_s", m.PeakAngularVelocityDegS)
		add("kinematic", segment, "peak_angular_accel_deg_s2", m.PeakAngularAccelDegS2)
	}
	for segment, m := range res.Dynamic {
		add("dynamic", segment, "peak_moment_nm_kg", m.PeakMomentNmKg)
		add("dynamic", segment, "mean_moment_nm_kg", m.MeanMomentNmKg)
		add("dynamic", segment, "peak_power_w_kg", m.PeakPowerWKg)
		add("dynamic", segment, "work_j_kg", m.WorkJKg)
		add("dynamic", segment, "impulse_nms_kg", m.ImpulseNmsKg)
	}
	for i, m := range res.Force {
		segment := fmt.Sprintf("contact_%d", i)
		add("force", segment, "peak_force_bw", m.PeakForceBW)
		add("force", segment, "mean_force_bw", m.MeanForceBW)
		add("force", segment, "loading_rate_bw_s", m.LoadingRateBWs)
		add("force", segment, "impulse_ns", m.ImpulseNs)
		add("force", segment, "contact_duration_s", m.ContactDurationS)
		add("force", segment, "time_to_peak_s", m.TimeToPeakS)
	}
	for name, stats := range res.ForceStats {
		add("force_stats", name, "mean", stats.Mean)
		add("force_stats", name, "std", stats.Std)
		add("force_stats", name, "min", stats.Min)
		add("force_stats", name, "max", stats.Max)
		add("force_stats", name, "count", float64(stats.Count))
	}
	for segment, m := range res.Validation {
		add("validation", segment, "rmse", m.RMSE)
		add("validation", segment, "mae", m.MAE)
		add("validation", segment, "icc", m.ICC)
		add("validation", segment, "r2", m.R2)
		add("validation", segment, "cv_pct", m.CVPct)
	}
	for name, m := range res.Symmetry {
		add("symmetry", name, "symmetry_index_pct", m.SymmetryIndexPct)
		add("symmetry", name, "asymmetry_ratio", m.AsymmetryRatio)
		add("symmetry", name, "absolute_diff", m.AbsoluteDiff)
	}
	return recs
}
