// Package series defines the time-series data model shared by every stage of
// the knee analysis pipeline: raw capture bundles, synchronized datasets,
// detected events, and the error kinds that separate fatal structural
// problems from recoverable data-quality conditions.
package series

import (
	"fmt"
	"sort"
)

// EventKind identifies the phase a detected interval represents.
type EventKind int

const (
	// Contact is an interval where the foot loads the force platform.
	Contact EventKind = iota
	// Flight is an interval between contacts (airborne or unloaded).
	Flight
)

// String returns the lower-case name of the event kind.
func (k EventKind) String() string {
	switch k {
	case Contact:
		return "contact"
	case Flight:
		return "flight"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event marks a contiguous [Start, End] index interval in a signal.
// Indices refer to the unified time vector of the dataset the event was
// detected on. Events are created once and never mutated.
type Event struct {
	Start int
	End   int
	Kind  EventKind
}

// Duration returns the event length in seconds given the sample period.
func (e Event) Duration(dt float64) float64 {
	return float64(e.End-e.Start) * dt
}

// Bundle is one raw capture stream as delivered by an acquisition
// collaborator: a single time vector shared by all named channels, plus the
// stream's nominal sample rate. The IMU array and the force platform each
// arrive as one Bundle.
type Bundle struct {
	// Rate is the nominal sampling rate in Hz.
	Rate float64
	// Time holds sample timestamps in seconds, strictly increasing.
	Time []float64
	// Channels maps channel name to its value array. Every array must have
	// the same length as Time.
	Channels map[string][]float64
}

// Validate checks the structural invariants of a raw bundle: a positive
// rate, at least minSamples samples, a strictly increasing time vector, and
// channel arrays matching the time vector length.
func (b *Bundle) Validate(minSamples int) error {
	if b.Rate <= 0 {
		return &ValidationError{Op: "bundle", Msg: fmt.Sprintf("nominal rate must be positive, got %g Hz", b.Rate)}
	}
	if len(b.Time) < minSamples {
		return &ValidationError{Op: "bundle", Msg: fmt.Sprintf("need at least %d samples, got %d", minSamples, len(b.Time))}
	}
	for i := 1; i < len(b.Time); i++ {
		if b.Time[i] <= b.Time[i-1] {
			return &ValidationError{Op: "bundle", Msg: fmt.Sprintf("time vector not strictly increasing at index %d (%g -> %g)", i, b.Time[i-1], b.Time[i])}
		}
	}
	if len(b.Channels) == 0 {
		return &ValidationError{Op: "bundle", Msg: "bundle has no channels"}
	}
	for name, values := range b.Channels {
		if len(values) != len(b.Time) {
			return &ValidationError{Op: "bundle", Msg: fmt.Sprintf("channel %q has %d samples, time vector has %d", name, len(values), len(b.Time))}
		}
	}
	return nil
}

// Span returns the first and last timestamps of the bundle.
func (b *Bundle) Span() (start, end float64) {
	if len(b.Time) == 0 {
		return 0, 0
	}
	return b.Time[0], b.Time[len(b.Time)-1]
}

// ChannelNames returns the bundle's channel names in sorted order so
// iteration is deterministic regardless of map layout.
func (b *Bundle) ChannelNames() []string {
	names := make([]string, 0, len(b.Channels))
	for name := range b.Channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dataset is a synchronized multi-channel recording: every channel shares
// the same time vector and sampling rate. Produced by the synchronizer and
// consumed read-only by all later stages.
type Dataset struct {
	// Rate is the common sampling rate in Hz.
	Rate float64
	// Time is the unified time vector in seconds, strictly increasing.
	Time []float64
	// Channels maps channel name to values; all arrays share len(Time).
	Channels map[string][]float64
}

// Dt returns the nominal sample period in seconds.
func (d *Dataset) Dt() float64 {
	if d.Rate <= 0 {
		return 0
	}
	return 1.0 / d.Rate
}

// ChannelNames returns channel names in sorted order for deterministic
// iteration and merging.
func (d *Dataset) ChannelNames() []string {
	names := make([]string, 0, len(d.Channels))
	for name := range d.Channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Channel returns the named value array and whether it exists.
func (d *Dataset) Channel(name string) ([]float64, bool) {
	values, ok := d.Channels[name]
	return values, ok
}

// Clone returns a deep copy so callers can hold a snapshot that later
// processing cannot alias.
func (d *Dataset) Clone() Dataset {
	out := Dataset{
		Rate:     d.Rate,
		Time:     append([]float64(nil), d.Time...),
		Channels: make(map[string][]float64, len(d.Channels)),
	}
	for name, values := range d.Channels {
		out.Channels[name] = append([]float64(nil), values...)
	}
	return out
}
