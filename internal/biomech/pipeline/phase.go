package pipeline

import "fmt"

// Phase is the orchestrator's position in the analysis sequence. Phases
// advance strictly forward; Failed is terminal and reachable from any
// phase.
type Phase int

const (
	Idle Phase = iota
	Synchronizing
	Processing
	EventDetection
	MetricComputation
	AlertGeneration
	Summarizing
	Done
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Synchronizing:
		return "synchronizing"
	case Processing:
		return "processing"
	case EventDetection:
		return "event_detection"
	case MetricComputation:
		return "metric_computation"
	case AlertGeneration:
		return "alert_generation"
	case Summarizing:
		return "summarizing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}
