// Package sync aligns the IMU and force-platform streams onto a common time
// base. The two sources run at very different native rates (tens of hertz
// for the IMU array, a kilohertz for the platform) and free-running clocks,
// so alignment has three steps: find the overlap window, resample both
// streams to the target rate with cubic splines, then estimate and correct
// the residual clock offset by cross-correlating a motion signature from
// each stream.
package sync

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"

	"github.com/stridelabs/kneemetry/internal/biomech/series"
)

// MinSamplesPerStream is the minimum number of samples each input stream
// must carry before synchronization is attempted.
const MinSamplesPerStream = 10

// Config holds the synchronization parameters. Zero values are replaced by
// the documented defaults; use DefaultConfig for an explicit starting point.
type Config struct {
	// TargetRate is the common sampling rate in Hz both streams are
	// resampled to.
	TargetRate float64
	// MaxOffset is the largest clock offset in seconds the estimator will
	// accept. An estimate beyond this is reported as temporal misalignment.
	MaxOffset float64
	// MinOverlapFrac is the minimum fraction of the shorter stream's span
	// that must overlap the other stream.
	MinOverlapFrac float64
	// OffsetApplyThreshold is the offset magnitude in seconds below which
	// the estimated offset is recorded but not corrected.
	OffsetApplyThreshold float64
	// QualityFloor marks results below this quality score as low quality.
	QualityFloor float64
}

// DefaultConfig returns the standard synchronization parameters.
func DefaultConfig() Config {
	return Config{
		TargetRate:           100,
		MaxOffset:            0.5,
		MinOverlapFrac:       0.5,
		OffsetApplyThreshold: 0.01,
		QualityFloor:         0.7,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TargetRate <= 0 {
		c.TargetRate = d.TargetRate
	}
	if c.MaxOffset <= 0 {
		c.MaxOffset = d.MaxOffset
	}
	if c.MinOverlapFrac <= 0 {
		c.MinOverlapFrac = d.MinOverlapFrac
	}
	if c.OffsetApplyThreshold <= 0 {
		c.OffsetApplyThreshold = d.OffsetApplyThreshold
	}
	if c.QualityFloor <= 0 {
		c.QualityFloor = d.QualityFloor
	}
	return c
}

// Result is the outcome of a synchronization pass. IMU and Force share the
// same time vector and rate.
type Result struct {
	// Time is the common time base in seconds.
	Time []float64
	// Rate is the common sampling rate in Hz.
	Rate float64
	// IMU holds the resampled inertial channels.
	IMU *series.Dataset
	// Force holds the resampled platform channels.
	Force *series.Dataset
	// Offset is the estimated clock offset in seconds. Positive means the
	// IMU clock leads the platform clock.
	Offset float64
	// Quality scores the alignment in [0, 1].
	Quality float64
	// LowQuality is set when Quality falls below the configured floor.
	LowQuality bool
}

// Synchronizer aligns stream pairs under a fixed configuration.
type Synchronizer struct {
	cfg Config
}

// New returns a Synchronizer using cfg, filling unset fields with defaults.
func New(cfg Config) *Synchronizer {
	return &Synchronizer{cfg: cfg.withDefaults()}
}

// Align synchronizes an IMU bundle with a force bundle. It validates both
// inputs, rejects insufficient overlap, resamples to the target rate,
// estimates the clock offset, and applies the correction when it exceeds
// the apply threshold.
func (s *Synchronizer) Align(imu, force *series.Bundle) (*Result, error) {
	if err := imu.Validate(MinSamplesPerStream); err != nil {
		return nil, fmt.Errorf("imu stream: %w", err)
	}
	if err := force.Validate(MinSamplesPerStream); err != nil {
		return nil, fmt.Errorf("force stream: %w", err)
	}

	imuStart, imuEnd := imu.Span()
	forceStart, forceEnd := force.Span()

	start := math.Max(imuStart, forceStart)
	end := math.Min(imuEnd, forceEnd)
	if end <= start {
		return nil, &series.ValidationError{
			Op:  "sync.Align",
			Msg: fmt.Sprintf("streams do not overlap: imu [%g, %g], force [%g, %g]", imuStart, imuEnd, forceStart, forceEnd),
		}
	}

	shorter := math.Min(imuEnd-imuStart, forceEnd-forceStart)
	overlapFrac := (end - start) / shorter
	if overlapFrac < s.cfg.MinOverlapFrac {
		return nil, &series.ValidationError{
			Op:  "sync.Align",
			Msg: fmt.Sprintf("overlap %.2f below minimum %.2f", overlapFrac, s.cfg.MinOverlapFrac),
		}
	}

	grid := timeGrid(start, end, s.cfg.TargetRate)
	if len(grid) < MinSamplesPerStream {
		return nil, &series.ValidationError{
			Op:  "sync.Align",
			Msg: fmt.Sprintf("overlap window yields only %d samples at %g Hz", len(grid), s.cfg.TargetRate),
		}
	}

	imuRes, err := resampleBundle(imu, grid, 0)
	if err != nil {
		return nil, err
	}
	forceRes, err := resampleBundle(force, grid, 0)
	if err != nil {
		return nil, err
	}

	imuSig := motionSignature(imuRes, isAccelChannel)
	forceSig := motionSignature(forceRes, isVerticalForceChannel)

	offset, peak, err := estimateOffset(imuSig, forceSig, s.cfg.TargetRate, s.cfg.MaxOffset)
	if err != nil {
		return nil, err
	}

	if math.Abs(offset) > s.cfg.OffsetApplyThreshold {
		// Shifting the IMU samples by the offset narrows the usable window:
		// clamp so the shifted grid never reads outside the recorded IMU
		// span, then resample both streams on the corrected window.
		corrStart := math.Max(forceStart, imuStart+offset)
		corrEnd := math.Min(forceEnd, imuEnd+offset)
		if corrEnd <= corrStart {
			return nil, &series.ValidationError{
				Op:  "sync.Align",
				Msg: fmt.Sprintf("offset correction %.3fs leaves no usable overlap", offset),
			}
		}
		grid = timeGrid(corrStart, corrEnd, s.cfg.TargetRate)
		if len(grid) < MinSamplesPerStream {
			return nil, &series.ValidationError{
				Op:  "sync.Align",
				Msg: fmt.Sprintf("offset-corrected window yields only %d samples", len(grid)),
			}
		}
		imuRes, err = resampleBundle(imu, grid, -offset)
		if err != nil {
			return nil, err
		}
		forceRes, err = resampleBundle(force, grid, 0)
		if err != nil {
			return nil, err
		}
	}

	quality := qualityScore(peak, overlapFrac)

	return &Result{
		Time:       grid,
		Rate:       s.cfg.TargetRate,
		IMU:        imuRes,
		Force:      forceRes,
		Offset:     offset,
		Quality:    quality,
		LowQuality: quality < s.cfg.QualityFloor,
	}, nil
}

// timeGrid builds a uniform grid at rate Hz covering [start, end].
func timeGrid(start, end, rate float64) []float64 {
	dt := 1.0 / rate
	n := int(math.Floor((end-start)/dt)) + 1
	if n < 0 {
		n = 0
	}
	grid := make([]float64, n)
	for i := range grid {
		grid[i] = start + float64(i)*dt
	}
	return grid
}

// resampleBundle evaluates every channel of b on grid shifted by offset,
// using a natural cubic spline fitted to the original samples.
func resampleBundle(b *series.Bundle, grid []float64, offset float64) (*series.Dataset, error) {
	ds := &series.Dataset{
		Rate:     0,
		Time:     grid,
		Channels: make(map[string][]float64, len(b.Channels)),
	}
	if len(grid) > 1 {
		ds.Rate = 1.0 / (grid[1] - grid[0])
	}
	for name, values := range b.Channels {
		var spline interp.NaturalCubic
		if err := spline.Fit(b.Time, values); err != nil {
			return nil, fmt.Errorf("resample %s: %w", name, err)
		}
		first, last := b.Time[0], b.Time[len(b.Time)-1]
		out := make([]float64, len(grid))
		for i, t := range grid {
			at := t + offset
			// Clamp rather than extrapolate past the recorded span; the
			// grid is built to stay inside it, this guards rounding.
			if at < first {
				at = first
			} else if at > last {
				at = last
			}
			out[i] = spline.Predict(at)
		}
		ds.Channels[name] = out
	}
	return ds, nil
}

func isAccelChannel(name string) bool {
	return strings.Contains(name, "acc")
}

func isVerticalForceChannel(name string) bool {
	return name == "fz" || strings.HasSuffix(name, "_fz")
}

// motionSignature reduces a dataset to a single representative signal: the
// euclidean magnitude across all channels selected by match. When nothing
// matches it falls back to the magnitude over every channel.
func motionSignature(ds *series.Dataset, match func(string) bool) []float64 {
	names := make([]string, 0, len(ds.Channels))
	for _, name := range ds.ChannelNames() {
		if match(name) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		names = ds.ChannelNames()
	}
	sig := make([]float64, len(ds.Time))
	for _, name := range names {
		values := ds.Channels[name]
		for i, v := range values {
			sig[i] += v * v
		}
	}
	for i := range sig {
		sig[i] = math.Sqrt(sig[i])
	}
	return sig
}

// estimateOffset finds the lag in seconds that maximizes the normalized
// cross-correlation between the two signals, searched over lags up to
// twice maxOffset so an estimate just past the ceiling is still seen and
// rejected rather than aliased to the edge.
func estimateOffset(a, b []float64, rate, maxOffset float64) (offset, peak float64, err error) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < MinSamplesPerStream {
		return 0, 0, &series.ValidationError{Op: "sync.estimateOffset", Msg: "signals too short for correlation"}
	}

	a = normalize(a[:n])
	b = normalize(b[:n])

	maxLag := int(math.Round(2 * maxOffset * rate))
	if maxLag >= n {
		maxLag = n - 1
	}

	bestLag := 0
	bestCorr := math.Inf(-1)
	for lag := -maxLag; lag <= maxLag; lag++ {
		var sum float64
		var count int
		for i := 0; i < n; i++ {
			j := i + lag
			if j < 0 || j >= n {
				continue
			}
			sum += a[i] * b[j]
			count++
		}
		if count == 0 {
			continue
		}
		corr := sum / float64(count)
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}

	offset = float64(bestLag) / rate
	if math.Abs(offset) > maxOffset {
		return 0, 0, fmt.Errorf("%w: estimated offset %.3fs exceeds maximum %.3fs",
			series.ErrTemporalMisalignment, offset, maxOffset)
	}
	return offset, bestCorr, nil
}

// normalize returns a zero-mean unit-variance copy of values. A constant
// signal normalizes to all zeros, which yields zero correlation rather
// than a division blowup.
func normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	mean := floats.Sum(out) / float64(len(out))
	var ss float64
	for i := range out {
		out[i] -= mean
		ss += out[i] * out[i]
	}
	std := math.Sqrt(ss / float64(len(out)))
	if std < 1e-12 {
		return make([]float64, len(values))
	}
	floats.Scale(1/std, out)
	return out
}

// qualityScore blends correlation strength with overlap coverage into a
// single score in [0, 1].
func qualityScore(peakCorr, overlapFrac float64) float64 {
	q := 0.7*math.Abs(peakCorr) + 0.3*math.Min(overlapFrac, 1)
	return math.Max(0, math.Min(1, q))
}
