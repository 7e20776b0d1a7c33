package dsp

import (
	"github.com/stridelabs/kneemetry/internal/biomech/series"
)

// DetectEvents finds contact events: maximal runs where values stays at or
// above threshold. Only complete events count, so a run already in progress
// at the first sample or still open at the last sample is dropped, as is
// any run shorter than minDuration seconds.
func DetectEvents(values []float64, rateHz, threshold, minDuration float64) []series.Event {
	var events []series.Event
	start := -1
	for i := 1; i < len(values); i++ {
		rising := values[i-1] < threshold && values[i] >= threshold
		falling := values[i-1] >= threshold && values[i] < threshold
		switch {
		case rising:
			start = i
		case falling && start >= 0:
			ev := series.Event{Start: start, End: i - 1, Kind: series.Contact}
			if ev.Duration(1/rateHz) >= minDuration {
				events = append(events, ev)
			}
			start = -1
		}
	}
	return events
}

// FlightPhases returns the gaps between consecutive contact events as
// flight events. The lead-in before the first contact and the tail after
// the last are not flight phases.
func FlightPhases(contacts []series.Event) []series.Event {
	var flights []series.Event
	for i := 1; i < len(contacts); i++ {
		start := contacts[i-1].End + 1
		end := contacts[i].Start - 1
		if end > start {
			flights = append(flights, series.Event{Start: start, End: end, Kind: series.Flight})
		}
	}
	return flights
}
