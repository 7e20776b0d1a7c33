package pipeline

import (
	"context"
	"time"

	"github.com/stridelabs/kneemetry/internal/biomech/alerts"
	"github.com/stridelabs/kneemetry/internal/biomech/metrics"
	"github.com/stridelabs/kneemetry/internal/biomech/series"
	"github.com/stridelabs/kneemetry/internal/biomech/sync"
)

// Session is one captured recording handed to the orchestrator: the raw
// dual-rate bundles plus the subject and exercise context the metrics
// need.
type Session struct {
	ID         string
	Exercise   string // squat, jump, or walk
	MassKg     float64
	CapturedAt time.Time

	// IMU holds the inertial channels, named {segment}_{side}_{sensor}_{axis},
	// e.g. femur_right_gyro_y. Accelerations are m/s^2, angular rates deg/s.
	IMU *series.Bundle
	// Force holds the platform channels (fz, fx, fy) in newtons.
	Force *series.Bundle
}

// JointModelProvider is an optional external service that supplies modeled
// joint angle and moment channels on the synchronized time grid, replacing
// the IMU-derived approximations. Keys are segment identifiers such as
// knee_right.
type JointModelProvider interface {
	JointChannels(ctx context.Context, syncResult *sync.Result) (angleDeg, momentNm map[string][]float64, err error)
}

// Result is the immutable outcome of one orchestrated run. A new run
// builds an entirely new Result; nothing here is shared across runs.
type Result struct {
	SessionID  string    `json:"session_id"`
	Exercise   string    `json:"exercise"`
	MassKg     float64   `json:"mass_kg"`
	CapturedAt time.Time `json:"captured_at"`
	AnalyzedAt time.Time `json:"analyzed_at"`

	// Success is false only when no usable metrics could be produced.
	Success bool  `json:"success"`
	Phase   Phase `json:"phase"`

	// Sync is nil when one stream was unusable and the run degraded to
	// single-stream analysis.
	Sync *sync.Result `json:"-"`
	// SyncQuality and SyncOffset survive serialization even when the full
	// sync result is not persisted.
	SyncQuality float64 `json:"sync_quality"`
	SyncOffsetS float64 `json:"sync_offset_s"`

	// Processed holds the filtered common-rate channels plus derived ones
	// (knee angle traces).
	Processed *series.Dataset `json:"-"`

	// Events are the contacts detected on the vertical force channel.
	Events []series.Event `json:"events,omitempty"`

	Kinematic  map[string]metrics.KinematicMetrics  `json:"kinematic,omitempty"`
	Dynamic    map[string]metrics.DynamicMetrics    `json:"dynamic,omitempty"`
	Force      []metrics.ForceMetrics               `json:"force,omitempty"`
	ForceStats map[string]metrics.EventStats        `json:"force_stats,omitempty"`
	Validation map[string]metrics.ValidationMetrics `json:"validation,omitempty"`
	Symmetry   map[string]metrics.SymmetryMetrics   `json:"symmetry,omitempty"`

	// ModeledJoints reports whether an external joint model supplied the
	// angle and moment channels; false means IMU-derived approximations.
	ModeledJoints bool `json:"modeled_joints"`

	// JumpHeightM is the impulse-momentum jump height estimate, only set
	// for jump sessions with a detected push-off contact.
	JumpHeightM float64 `json:"jump_height_m,omitempty"`

	Alerts          []alerts.Alert `json:"alerts,omitempty"`
	FunctionalScore float64        `json:"functional_score"`
	Summary         string         `json:"summary"`
}

// HighestSeverity returns the most severe alert level present, or Info
// when there are no alerts at all.
func (r *Result) HighestSeverity() alerts.Severity {
	highest := alerts.Info
	for _, a := range r.Alerts {
		if a.Severity > highest {
			highest = a.Severity
		}
	}
	return highest
}

// CountBySeverity tallies alerts per severity level.
func (r *Result) CountBySeverity() map[alerts.Severity]int {
	counts := make(map[alerts.Severity]int)
	for _, a := range r.Alerts {
		counts[a.Severity]++
	}
	return counts
}
