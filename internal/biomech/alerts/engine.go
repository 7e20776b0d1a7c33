package alerts

import (
	"fmt"

	"github.com/stridelabs/kneemetry/internal/biomech/metrics"
	"github.com/stridelabs/kneemetry/internal/biomech/series"
	"github.com/stridelabs/kneemetry/internal/config"
	"github.com/stridelabs/kneemetry/internal/timeutil"
)

// Engine evaluates metric records against configured thresholds. It holds
// no per-run state; the same engine can evaluate any number of sessions.
type Engine struct {
	cfg *config.AnalysisConfig

	// clock is swappable so tests get deterministic timestamps.
	clock timeutil.Clock
}

// NewEngine returns an engine reading thresholds from cfg.
func NewEngine(cfg *config.AnalysisConfig) *Engine {
	return &Engine{cfg: cfg, clock: timeutil.RealClock{}}
}

// CheckKinematic evaluates a joint angle metric set for one segment.
func (e *Engine) CheckKinematic(segment string, m metrics.KinematicMetrics) []Alert {
	var out []Alert
	romMin := e.cfg.GetNormalROMMinDeg()
	romMax := e.cfg.GetNormalROMMaxDeg()

	switch {
	case m.ROMDeg < 0.7*romMin:
		out = append(out, newAlert(e.clock.Now(), Error, Kinematic,
			"Severely restricted range of motion",
			fmt.Sprintf("%s ROM %.1f° is below 70%% of the normal minimum %.1f°", segment, m.ROMDeg, romMin),
			m.ROMDeg, 0.7*romMin,
			"Assess for joint stiffness or capsular restriction before loading further"))
	case m.ROMDeg < romMin:
		out = append(out, newAlert(e.clock.Now(), Warning, Kinematic,
			"Restricted range of motion",
			fmt.Sprintf("%s ROM %.1f° is below the normal minimum %.1f°", segment, m.ROMDeg, romMin),
			m.ROMDeg, romMin,
			"Add mobility work and re-test"))
	case m.ROMDeg > 1.2*romMax:
		out = append(out, newAlert(e.clock.Now(), Warning, Kinematic,
			"Excessive range of motion",
			fmt.Sprintf("%s ROM %.1f° exceeds 120%% of the normal maximum %.1f°", segment, m.ROMDeg, romMax),
			m.ROMDeg, 1.2*romMax,
			"Check sensor placement; if confirmed, screen for hypermobility"))
	}

	velMax := e.cfg.GetMaxAngularVelocityDegS()
	if m.PeakAngularVelocityDegS > velMax {
		sev := Warning
		if m.PeakAngularVelocityDegS > 1.5*velMax {
			sev = Critical
		}
		out = append(out, newAlert(e.clock.Now(), sev, Kinematic,
			"Excessive angular velocity",
			fmt.Sprintf("%s peak angular velocity %.0f°/s exceeds the %.0f°/s ceiling", segment, m.PeakAngularVelocityDegS, velMax),
			m.PeakAngularVelocityDegS, velMax,
			"Reduce movement speed or verify gyroscope calibration"))
	}
	return out
}

// CheckDynamic evaluates mass-normalized loading for one segment.
func (e *Engine) CheckDynamic(segment string, m metrics.DynamicMetrics) []Alert {
	var out []Alert
	momentMax := e.cfg.GetMaxKneeMomentNmKg()
	if m.PeakMomentNmKg > momentMax {
		sev := Warning
		if m.PeakMomentNmKg > 1.3*momentMax {
			sev = Error
		}
		out = append(out, newAlert(e.clock.Now(), sev, Dynamic,
			"Knee moment above safe ceiling",
			fmt.Sprintf("%s peak moment %.2f Nm/kg exceeds the %.2f Nm/kg ceiling", segment, m.PeakMomentNmKg, momentMax),
			m.PeakMomentNmKg, momentMax,
			"Reduce external load and review movement technique"))
	}
	return out
}

// CheckForce evaluates contact metrics against the exercise's GRF band and
// the loading-rate ceiling.
func (e *Engine) CheckForce(exercise string, m metrics.ForceMetrics) []Alert {
	var out []Alert

	band := e.cfg.GetGRFBand(exercise)
	if m.PeakForceBW < band.MinBW {
		out = append(out, newAlert(e.clock.Now(), Warning, Force,
			"Peak force below expected band",
			fmt.Sprintf("peak %.2f BW is below the %s band %.1f-%.1f BW", m.PeakForceBW, exercise, band.MinBW, band.MaxBW),
			m.PeakForceBW, band.MinBW,
			"Check platform contact and effort level"))
	} else if m.PeakForceBW > band.MaxBW {
		sev := Error
		if m.PeakForceBW > 1.5*band.MaxBW {
			sev = Critical
		}
		out = append(out, newAlert(e.clock.Now(), sev, Force,
			"Peak force above expected band",
			fmt.Sprintf("peak %.2f BW is above the %s band %.1f-%.1f BW", m.PeakForceBW, exercise, band.MinBW, band.MaxBW),
			m.PeakForceBW, band.MaxBW,
			"Reduce intensity or drop height; coach soft-landing force absorption"))
	}

	rateMax := e.cfg.GetMaxLoadingRateBWs()
	if m.LoadingRateBWs > rateMax {
		sev := Error
		if m.LoadingRateBWs > 1.5*rateMax {
			sev = Critical
		}
		out = append(out, newAlert(e.clock.Now(), sev, Force,
			"Excessive loading rate",
			fmt.Sprintf("loading rate %.0f BW/s exceeds the %.0f BW/s ceiling", m.LoadingRateBWs, rateMax),
			m.LoadingRateBWs, rateMax,
			"Coach a softer landing strategy; high loading rates are an injury risk marker"))
	}
	return out
}

// CheckSymmetry evaluates a paired left/right comparison for one metric.
func (e *Engine) CheckSymmetry(metric string, m metrics.SymmetryMetrics) []Alert {
	var out []Alert
	moderate := e.cfg.GetModerateAsymmetryPct()
	severe := e.cfg.GetSevereAsymmetryPct()

	switch {
	case m.SymmetryIndexPct > severe:
		out = append(out, newAlert(e.clock.Now(), Error, Symmetry,
			"Severe left/right asymmetry",
			fmt.Sprintf("%s symmetry index %.1f%% exceeds the severe threshold %.1f%%", metric, m.SymmetryIndexPct, severe),
			m.SymmetryIndexPct, severe,
			"Prioritize unilateral strengthening of the weaker side"))
	case m.SymmetryIndexPct > moderate:
		out = append(out, newAlert(e.clock.Now(), Warning, Symmetry,
			"Moderate left/right asymmetry",
			fmt.Sprintf("%s symmetry index %.1f%% exceeds the moderate threshold %.1f%%", metric, m.SymmetryIndexPct, moderate),
			m.SymmetryIndexPct, moderate,
			"Monitor the asymmetry across sessions"))
	}
	return out
}

// CheckDataQuality converts signal defects found during processing into
// technical alerts so the report carries them.
func (e *Engine) CheckDataQuality(issues []*series.DataQualityError) []Alert {
	var out []Alert
	for _, issue := range issues {
		if issue == nil {
			continue
		}
		sev := Error
		title := "Signal quality defect"
		rec := "Inspect the sensor and re-capture the session"
		switch issue.Condition {
		case series.QualityNaN:
			sev = Critical
			title = "Invalid samples in signal"
			rec = "Re-capture the session; the channel contains non-finite samples"
		case series.QualityConstant:
			title = "Flat signal"
			rec = "Sensor fault signature: check connections and power"
		case series.QualityOutliers:
			sev = Warning
			title = "Excessive outliers in signal"
			rec = "Check sensor mounting; spikes suggest impacts or loose fixation"
		case series.QualityPoorSync:
			title = "Poor stream alignment"
			rec = "Re-capture with both systems restarted"
		}
		out = append(out, newAlert(e.clock.Now(), sev, Technical,
			title,
			fmt.Sprintf("channel %s: %s", issue.Channel, issue.Detail),
			0, 0, rec))
	}
	return out
}

// CheckSyncQuality flags weak temporal alignment between the streams.
func (e *Engine) CheckSyncQuality(quality float64) []Alert {
	var out []Alert
	errFloor := e.cfg.GetSyncQualityError()
	warnFloor := e.cfg.GetSyncQualityWarn()

	switch {
	case quality < errFloor:
		out = append(out, newAlert(e.clock.Now(), Error, Technical,
			"Unreliable stream synchronization",
			fmt.Sprintf("synchronization quality %.2f is below the reliability floor %.2f", quality, errFloor),
			quality, errFloor,
			"Metrics mixing IMU and force data are unreliable; re-capture the session"))
	case quality < warnFloor:
		out = append(out, newAlert(e.clock.Now(), Warning, Technical,
			"Marginal stream synchronization",
			fmt.Sprintf("synchronization quality %.2f is below the target %.2f", quality, warnFloor),
			quality, warnFloor,
			"Interpret cross-stream metrics with caution"))
	}
	return out
}
