// Package pipeline sequences one session through the analysis phases:
// synchronization, filtering, event detection, metric computation, alert
// generation, and summarization. A run is a single deterministic pass; the
// orchestrator never retries, and data-quality defects degrade the run
// into alerts instead of aborting it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/stridelabs/kneemetry/internal/biomech/alerts"
	"github.com/stridelabs/kneemetry/internal/biomech/dsp"
	"github.com/stridelabs/kneemetry/internal/biomech/metrics"
	"github.com/stridelabs/kneemetry/internal/biomech/series"
	"github.com/stridelabs/kneemetry/internal/biomech/sync"
	"github.com/stridelabs/kneemetry/internal/config"
	"github.com/stridelabs/kneemetry/internal/units"
)

// Orchestrator runs the full analysis sequence under one immutable
// configuration. It holds no per-run state, so a single orchestrator can
// analyze any number of sessions, including concurrently.
type Orchestrator struct {
	cfg    *config.AnalysisConfig
	engine *alerts.Engine
	syncer *sync.Synchronizer
	model  JointModelProvider
}

// NewOrchestrator builds an orchestrator. model may be nil, in which case
// joint angles are approximated from the IMU gyroscopes and joint moments
// are unavailable.
func NewOrchestrator(cfg *config.AnalysisConfig, model JointModelProvider) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		engine: alerts.NewEngine(cfg),
		syncer: sync.New(sync.Config{
			TargetRate:           cfg.GetTargetRateHz(),
			MaxOffset:            cfg.GetMaxOffsetS(),
			MinOverlapFrac:       cfg.GetMinOverlapFrac(),
			OffsetApplyThreshold: cfg.GetOffsetApplyS(),
			QualityFloor:         cfg.GetSyncQualityFloor(),
		}),
		model: model,
	}
}

// Run analyzes one session. The returned Result is complete even on
// degraded runs; a non-nil error means the run hit a structural failure
// and the Result carries the Failed phase.
func (o *Orchestrator) Run(ctx context.Context, s Session) (*Result, error) {
	res := &Result{
		SessionID:  s.ID,
		Exercise:   s.Exercise,
		MassKg:     s.MassKg,
		CapturedAt: s.CapturedAt,
		AnalyzedAt: time.Now(),
		Phase:      Idle,
		Kinematic:  make(map[string]metrics.KinematicMetrics),
		Dynamic:    make(map[string]metrics.DynamicMetrics),
		ForceStats: make(map[string]metrics.EventStats),
		Validation: make(map[string]metrics.ValidationMetrics),
		Symmetry:   make(map[string]metrics.SymmetryMetrics),
	}

	if s.MassKg <= 0 {
		res.Phase = Failed
		return res, &series.ValidationError{Op: "pipeline.Run", Msg: "session mass must be positive"}
	}
	if s.IMU == nil && s.Force == nil {
		res.Phase = Failed
		return res, &series.ValidationError{Op: "pipeline.Run", Msg: "session carries no sensor data"}
	}

	var issues []*series.DataQualityError

	// Synchronizing. Channels with invalid samples are dropped here (and
	// reported) so one dead channel cannot poison the cross-correlation.
	// Filtering happens at each stream's native rate: the force stream's
	// 50 Hz cutoff sits exactly at the common-rate Nyquist frequency, and
	// the resampling step doubles as decimation for the platform, which
	// requires the anti-alias filter to run before it.
	res.Phase = Synchronizing
	imuClean := o.sanitizeBundle(s.IMU, &issues)
	forceClean := o.sanitizeBundle(s.Force, &issues)

	var err error
	if imuClean != nil {
		if imuClean, err = o.filterBundle(imuClean); err != nil {
			res.Phase = Failed
			return res, err
		}
	}
	if forceClean != nil {
		if forceClean, err = o.filterBundle(forceClean); err != nil {
			res.Phase = Failed
			return res, err
		}
	}

	var dataset *series.Dataset
	switch {
	case imuClean != nil && forceClean != nil:
		syncRes, err := o.syncer.Align(imuClean, forceClean)
		if err != nil {
			opsf("session %s: synchronization failed: %v", s.ID, err)
			res.Phase = Failed
			return res, err
		}
		res.Sync = syncRes
		res.SyncQuality = syncRes.Quality
		res.SyncOffsetS = syncRes.Offset
		dataset = mergeDatasets(syncRes)
		diagf("session %s: synchronized at %g Hz, offset %.3fs, quality %.2f",
			s.ID, syncRes.Rate, syncRes.Offset, syncRes.Quality)
	case imuClean != nil:
		opsf("session %s: force stream unusable, degrading to IMU-only analysis", s.ID)
		dataset = bundleDataset(imuClean)
	case forceClean != nil:
		opsf("session %s: IMU stream unusable, degrading to force-only analysis", s.ID)
		dataset = bundleDataset(forceClean)
	default:
		res.Phase = Failed
		return res, &series.ValidationError{Op: "pipeline.Run", Msg: "no usable channels in either stream"}
	}

	// Processing: derive joint angle traces, preferring the external model
	// when one is wired in.
	res.Phase = Processing
	imuAngles := deriveKneeAngles(dataset)
	angles := imuAngles
	var moments map[string][]float64
	if o.model != nil && res.Sync != nil {
		modelAngles, modelMoments, err := o.model.JointChannels(ctx, res.Sync)
		if err != nil {
			opsf("session %s: joint model unavailable, using IMU approximation: %v", s.ID, err)
			issues = append(issues, &series.DataQualityError{
				Channel:   "joint_model",
				Condition: series.QualityPoorSync,
				Detail:    fmt.Sprintf("external joint model failed: %v", err),
			})
		} else if len(modelAngles) > 0 {
			angles = modelAngles
			moments = modelMoments
			res.ModeledJoints = true
		}
	}
	for segment, trace := range angles {
		dataset.Channels[segment+"_angle_deg"] = trace
	}

	// EventDetection on the filtered vertical force.
	res.Phase = EventDetection
	fz, hasForce := dataset.Channels["fz"]
	if hasForce {
		threshold := o.cfg.GetContactThresholdN(s.Exercise)
		res.Events = dsp.DetectEvents(fz, dataset.Rate, threshold, o.cfg.GetMinContactS())
		diagf("session %s: %d contact events above %.0f N", s.ID, len(res.Events), threshold)
	}

	// MetricComputation, per family. Data-quality failures inside one
	// family surface as alerts and leave the other families standing.
	res.Phase = MetricComputation
	o.computeKinematics(res, dataset, angles, &issues)
	o.computeDynamics(res, dataset, angles, moments, &issues)
	o.computeForce(res, dataset, s, &issues)
	o.computeValidation(res, imuAngles, angles, &issues)
	o.computeSymmetry(res)

	// AlertGeneration. Iteration over sorted keys keeps the alert order
	// deterministic run to run.
	res.Phase = AlertGeneration
	for _, segment := range sortedKeys(res.Kinematic) {
		res.Alerts = append(res.Alerts, o.engine.CheckKinematic(segment, res.Kinematic[segment])...)
	}
	for _, segment := range sortedKeys(res.Dynamic) {
		res.Alerts = append(res.Alerts, o.engine.CheckDynamic(segment, res.Dynamic[segment])...)
	}
	if worst, ok := worstContact(res.Force); ok {
		res.Alerts = append(res.Alerts, o.engine.CheckForce(s.Exercise, worst)...)
	}
	for _, key := range sortedKeys(res.Symmetry) {
		res.Alerts = append(res.Alerts, o.engine.CheckSymmetry(key, res.Symmetry[key])...)
	}
	res.Alerts = append(res.Alerts, o.engine.CheckDataQuality(issues)...)
	if res.Sync != nil {
		res.Alerts = append(res.Alerts, o.engine.CheckSyncQuality(res.SyncQuality)...)
	}

	// Summarizing.
	res.Phase = Summarizing
	res.Processed = dataset
	res.FunctionalScore = o.functionalScore(res)
	res.Summary = buildSummary(res)

	res.Phase = Done
	res.Success = len(res.Kinematic) > 0 || len(res.Dynamic) > 0 || len(res.Force) > 0
	if !res.Success {
		opsf("session %s: completed without any usable metrics", s.ID)
	}
	return res, nil
}

// sanitizeBundle returns a copy of b without channels carrying invalid or
// flat samples, recording each defect. Outlier-heavy channels are reported
// but kept: spikes degrade confidence, they do not invalidate the trace.
func (o *Orchestrator) sanitizeBundle(b *series.Bundle, issues *[]*series.DataQualityError) *series.Bundle {
	if b == nil {
		return nil
	}
	clean := &series.Bundle{
		Rate:     b.Rate,
		Time:     b.Time,
		Channels: make(map[string][]float64, len(b.Channels)),
	}
	for _, name := range b.ChannelNames() {
		values := b.Channels[name]
		if dq := series.ScanQuality(name, values); dq != nil {
			*issues = append(*issues, dq)
			tracef("channel %s: %s", name, dq.Detail)
			if dq.Condition != series.QualityOutliers {
				continue
			}
		}
		clean.Channels[name] = values
	}
	if len(clean.Channels) == 0 {
		return nil
	}
	return clean
}

// filterBundle zero-phase low-passes every channel at the bundle's native
// rate, with the cutoff chosen by channel family.
func (o *Orchestrator) filterBundle(b *series.Bundle) (*series.Bundle, error) {
	out := &series.Bundle{
		Rate:     b.Rate,
		Time:     b.Time,
		Channels: make(map[string][]float64, len(b.Channels)),
	}
	order := o.cfg.GetFilterOrder()
	for _, name := range b.ChannelNames() {
		cutoff := o.cutoffFor(name)
		filtered, err := dsp.LowPass(b.Channels[name], cutoff, b.Rate, order)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", name, err)
		}
		out.Channels[name] = filtered
	}
	return out, nil
}

func (o *Orchestrator) cutoffFor(channel string) float64 {
	switch {
	case strings.Contains(channel, "acc"):
		return o.cfg.GetAccelCutoffHz()
	case strings.Contains(channel, "gyro"):
		return o.cfg.GetGyroCutoffHz()
	default:
		return o.cfg.GetForceCutoffHz()
	}
}

// deriveKneeAngles approximates the knee flexion angle per side by
// integrating the difference between the femur and tibia sagittal angular
// rates. Sides missing either sensor are skipped.
func deriveKneeAngles(ds *series.Dataset) map[string][]float64 {
	angles := make(map[string][]float64)
	dt := ds.Dt()
	if dt <= 0 {
		return angles
	}
	for _, side := range []string{"right", "left"} {
		femur, okF := ds.Channels["femur_"+side+"_gyro_y"]
		tibia, okT := ds.Channels["tibia_"+side+"_gyro_y"]
		if !okF || !okT {
			continue
		}
		rel := make([]float64, len(femur))
		for i := range rel {
			rel[i] = femur[i] - tibia[i]
		}
		angles["knee_"+side] = dsp.IntegrateVelocity(rel, dt)
	}
	return angles
}

func (o *Orchestrator) computeKinematics(res *Result, ds *series.Dataset, angles map[string][]float64, issues *[]*series.DataQualityError) {
	for _, segment := range sortedKeys(angles) {
		m, err := metrics.Kinematic(ds.Time, angles[segment])
		if err != nil {
			recordMetricFailure(segment+" kinematics", err, issues)
			continue
		}
		res.Kinematic[segment] = m
		tracef("%s: ROM %.1f deg, peak velocity %.0f deg/s", segment, m.ROMDeg, m.PeakAngularVelocityDegS)
	}
}

func (o *Orchestrator) computeDynamics(res *Result, ds *series.Dataset, angles, moments map[string][]float64, issues *[]*series.DataQualityError) {
	for _, segment := range sortedKeys(moments) {
		angle, ok := angles[segment]
		if !ok {
			continue
		}
		// The relative angular rate is the derivative of the angle trace.
		vel := make([]float64, len(angle))
		if len(angle) > 1 {
			dt := ds.Dt()
			vel[0] = (angle[1] - angle[0]) / dt
			vel[len(vel)-1] = (angle[len(angle)-1] - angle[len(angle)-2]) / dt
			for i := 1; i < len(angle)-1; i++ {
				vel[i] = (angle[i+1] - angle[i-1]) / (2 * dt)
			}
		}
		m, err := metrics.Dynamic(ds.Time, moments[segment], vel, res.MassKg)
		if err != nil {
			recordMetricFailure(segment+" dynamics", err, issues)
			continue
		}
		res.Dynamic[segment] = m
	}
}

func (o *Orchestrator) computeForce(res *Result, ds *series.Dataset, s Session, issues *[]*series.DataQualityError) {
	fz, ok := ds.Channels["fz"]
	if !ok || len(res.Events) == 0 {
		return
	}
	bodyWeight := units.BodyWeightN(s.MassKg, o.cfg.GetGravityMps2())

	var peaks, rates, durations []float64
	for _, ev := range res.Events {
		m, err := metrics.Force(ds.Time, fz, ev, bodyWeight)
		if err != nil {
			recordMetricFailure("contact force", err, issues)
			continue
		}
		res.Force = append(res.Force, m)
		peaks = append(peaks, m.PeakForceBW)
		rates = append(rates, m.LoadingRateBWs)
		durations = append(durations, m.ContactDurationS)
	}
	for key, values := range map[string][]float64{
		"peak_force_bw":      peaks,
		"loading_rate_bw_s":  rates,
		"contact_duration_s": durations,
	} {
		if stats, err := metrics.Aggregate(values); err == nil {
			res.ForceStats[key] = stats
		}
	}

	if s.Exercise == "jump" {
		// The push-off is the contact with the greatest upward impulse;
		// other contacts (landings, steps) integrate to nothing or less.
		var best float64
		for _, ev := range res.Events {
			v, err := dsp.TakeoffVelocity(fz, ds.Time, ev, s.MassKg, o.cfg.GetGravityMps2())
			if err == nil && v > best {
				best = v
			}
		}
		res.JumpHeightM = dsp.JumpHeight(best, o.cfg.GetGravityMps2())
	}
}

func (o *Orchestrator) computeValidation(res *Result, imuAngles, angles map[string][]float64, issues *[]*series.DataQualityError) {
	if !res.ModeledJoints {
		return
	}
	for _, segment := range sortedKeys(imuAngles) {
		reference, ok := angles[segment]
		if !ok || len(reference) != len(imuAngles[segment]) {
			continue
		}
		m, err := metrics.Validate(imuAngles[segment], reference)
		if err != nil {
			recordMetricFailure(segment+" validation", err, issues)
			continue
		}
		res.Validation[segment] = m
	}
}

func (o *Orchestrator) computeSymmetry(res *Result) {
	right, okR := res.Kinematic["knee_right"]
	left, okL := res.Kinematic["knee_left"]
	if okR && okL {
		res.Symmetry["rom_deg"] = metrics.Symmetry(right.ROMDeg, left.ROMDeg)
		res.Symmetry["peak_angular_velocity_deg_s"] = metrics.Symmetry(right.PeakAngularVelocityDegS, left.PeakAngularVelocityDegS)
	}
	dynRight, okR := res.Dynamic["knee_right"]
	dynLeft, okL := res.Dynamic["knee_left"]
	if okR && okL {
		res.Symmetry["peak_moment_nm_kg"] = metrics.Symmetry(dynRight.PeakMomentNmKg, dynLeft.PeakMomentNmKg)
	}
}

func (o *Orchestrator) functionalScore(res *Result) float64 {
	var in metrics.ScoreInputs
	var romSum float64
	var n int
	for _, m := range res.Kinematic {
		romSum += m.ROMDeg
		n++
	}
	if n > 0 {
		in.ROMDeg = romSum / float64(n)
	}
	if si, ok := res.Symmetry["rom_deg"]; ok {
		in.SymmetryIndexPct = si.SymmetryIndexPct
	}
	// A run without force data scores zero on the force component.
	if stats, ok := res.ForceStats["peak_force_bw"]; ok {
		in.PeakForceBW = stats.Max
	}
	return metrics.FunctionalScore(in)
}

// recordMetricFailure downgrades a data-quality failure into a recorded
// issue; validation failures are logged and dropped, since the defect is
// in the derived inputs, not the session data.
func recordMetricFailure(what string, err error, issues *[]*series.DataQualityError) {
	var dq *series.DataQualityError
	if errors.As(err, &dq) {
		*issues = append(*issues, dq)
		return
	}
	opsf("%s: %v", what, err)
}

// mergeDatasets combines the synchronized IMU and force channels into one
// dataset on the common grid.
func mergeDatasets(syncRes *sync.Result) *series.Dataset {
	merged := &series.Dataset{
		Rate:     syncRes.Rate,
		Time:     syncRes.Time,
		Channels: make(map[string][]float64, len(syncRes.IMU.Channels)+len(syncRes.Force.Channels)),
	}
	for name, values := range syncRes.IMU.Channels {
		merged.Channels[name] = values
	}
	for name, values := range syncRes.Force.Channels {
		merged.Channels[name] = values
	}
	return merged
}

func bundleDataset(b *series.Bundle) *series.Dataset {
	return &series.Dataset{Rate: b.Rate, Time: b.Time, Channels: b.Channels}
}

// worstContact condenses per-contact metrics to the single worst case for
// alerting: the highest peak force paired with the highest loading rate.
func worstContact(contacts []metrics.ForceMetrics) (metrics.ForceMetrics, bool) {
	if len(contacts) == 0 {
		return metrics.ForceMetrics{}, false
	}
	worst := contacts[0]
	for _, c := range contacts[1:] {
		worst.PeakForceBW = math.Max(worst.PeakForceBW, c.PeakForceBW)
		worst.LoadingRateBWs = math.Max(worst.LoadingRateBWs, c.LoadingRateBWs)
	}
	return worst, true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
