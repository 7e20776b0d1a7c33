package metrics

import (
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/stridelabs/kneemetry/internal/biomech/series"
	"github.com/stridelabs/kneemetry/internal/units"
)

// ForceMetrics summarizes the vertical ground reaction force over one
// contact event. Peak and mean are in body weights; impulse stays in
// newton-seconds.
type ForceMetrics struct {
	PeakForceBW      float64 `json:"peak_force_bw"`
	MeanForceBW      float64 `json:"mean_force_bw"`
	LoadingRateBWs   float64 `json:"loading_rate_bw_s"`
	ImpulseNs        float64 `json:"impulse_ns"`
	ContactDurationS float64 `json:"contact_duration_s"`
	TimeToPeakS      float64 `json:"time_to_peak_s"`
}

// Force computes contact metrics for one event. bodyWeightN is mass times
// gravity. Loading rate is the force rise from contact onset to the peak
// divided by the time to reach it, in body weights per second; a peak at
// the very first sample yields a zero loading rate rather than a division
// by zero.
func Force(time, fz []float64, ev series.Event, bodyWeightN float64) (ForceMetrics, error) {
	if bodyWeightN <= 0 {
		return ForceMetrics{}, &series.ValidationError{Op: "force", Msg: "body weight must be positive"}
	}
	if err := checkSeries("force", time, fz); err != nil {
		return ForceMetrics{}, err
	}
	if ev.Start < 0 || ev.End >= len(fz) || ev.End <= ev.Start {
		return ForceMetrics{}, &series.ValidationError{Op: "force", Msg: "event bounds outside signal"}
	}

	segT := time[ev.Start : ev.End+1]
	segF := fz[ev.Start : ev.End+1]

	peakIdx := 0
	for i, v := range segF {
		if v > segF[peakIdx] {
			peakIdx = i
		}
	}
	peak := segF[peakIdx]
	timeToPeak := segT[peakIdx] - segT[0]

	var loadingRate float64
	if timeToPeak > 0 {
		loadingRate = units.ToBodyWeights((peak-segF[0])/timeToPeak, bodyWeightN)
	}

	return ForceMetrics{
		PeakForceBW:      units.ToBodyWeights(peak, bodyWeightN),
		MeanForceBW:      units.ToBodyWeights(stat.Mean(segF, nil), bodyWeightN),
		LoadingRateBWs:   loadingRate,
		ImpulseNs:        integrate.Trapezoidal(segT, segF),
		ContactDurationS: segT[len(segT)-1] - segT[0],
		TimeToPeakS:      timeToPeak,
	}, nil
}

// EventStats aggregates one scalar across repeated events.
type EventStats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Aggregate summarizes a scalar collected over repeated cycles or contacts.
// A single value reports zero spread.
func Aggregate(values []float64) (EventStats, error) {
	if len(values) == 0 {
		return EventStats{}, &series.ValidationError{Op: "aggregate", Msg: "empty input"}
	}
	s := EventStats{
		Count: len(values),
		Mean:  stat.Mean(values, nil),
		Min:   values[0],
		Max:   values[0],
	}
	for _, v := range values {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	if len(values) > 1 {
		s.Std = stat.StdDev(values, nil)
	}
	return s, nil
}
