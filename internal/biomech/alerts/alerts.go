// Package alerts turns metric values and signal-quality indicators into
// severity-tagged clinical findings. Every rule is stateless: the engine
// reads thresholds from its configuration, compares, and appends — it never
// mutates the metrics it is handed.
package alerts

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Severity orders alert levels from informational to critical.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Critical
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Critical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Category tags an alert with the metric family it came from.
type Category int

const (
	Kinematic Category = iota
	Dynamic
	Force
	Symmetry
	Validation
	Technical
)

func (c Category) String() string {
	switch c {
	case Kinematic:
		return "kinematic"
	case Dynamic:
		return "dynamic"
	case Force:
		return "force"
	case Symmetry:
		return "symmetry"
	case Validation:
		return "validation"
	case Technical:
		return "technical"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Alert is one finding. It is created once by the engine and never mutated
// afterwards; acknowledgement is tracked by external consumers.
type Alert struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Severity       Severity  `json:"severity"`
	Category       Category  `json:"category"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Value          float64   `json:"value"`
	Threshold      float64   `json:"threshold"`
	Recommendation string    `json:"recommendation"`
}

func newAlert(now time.Time, sev Severity, cat Category, title, message string, value, threshold float64, rec string) Alert {
	return Alert{
		ID:             uuid.NewString(),
		Timestamp:      now,
		Severity:       sev,
		Category:       cat,
		Title:          title,
		Message:        message,
		Value:          value,
		Threshold:      threshold,
		Recommendation: rec,
	}
}
