package series

import (
	"errors"
	"fmt"
)

// ErrTemporalMisalignment reports that the estimated offset between the two
// sensor streams exceeds the configured ceiling. The capture should be
// repeated; applying such a large shift silently would corrupt every
// downstream metric.
var ErrTemporalMisalignment = errors.New("temporal misalignment exceeds configured ceiling")

// ValidationError reports malformed or insufficient input. It is fatal for
// the operation that raised it.
type ValidationError struct {
	Op  string
	Msg string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

// ConfigError reports an invalid configuration value, such as a filter
// cutoff at or above Nyquist. Rejected before any processing happens.
type ConfigError struct {
	Param string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Param, e.Msg)
}

// QualityCondition enumerates the recoverable data-quality defects a signal
// can exhibit.
type QualityCondition int

const (
	// QualityNaN means the signal contains NaN or Inf samples.
	QualityNaN QualityCondition = iota
	// QualityConstant means the signal shows no variation (sensor fault).
	QualityConstant
	// QualityOutliers means an excessive fraction of extreme samples.
	QualityOutliers
	// QualityPoorSync means synchronization quality is below threshold.
	QualityPoorSync
)

// String returns a short name for the condition.
func (c QualityCondition) String() string {
	switch c {
	case QualityNaN:
		return "nan-or-inf"
	case QualityConstant:
		return "constant-signal"
	case QualityOutliers:
		return "excessive-outliers"
	case QualityPoorSync:
		return "poor-sync"
	default:
		return fmt.Sprintf("QualityCondition(%d)", int(c))
	}
}

// DataQualityError reports a recoverable signal defect. The pipeline
// converts these into alerts and continues with the remaining channels
// rather than aborting the run.
type DataQualityError struct {
	Channel   string
	Condition QualityCondition
	Detail    string
}

func (e *DataQualityError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("channel %q: %s", e.Channel, e.Condition)
	}
	return fmt.Sprintf("channel %q: %s (%s)", e.Channel, e.Condition, e.Detail)
}

// IsDataQuality reports whether err is (or wraps) a DataQualityError.
func IsDataQuality(err error) bool {
	var dq *DataQualityError
	return errors.As(err, &dq)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConfig reports whether err is (or wraps) a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
