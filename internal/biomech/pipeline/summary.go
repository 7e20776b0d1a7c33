package pipeline

import (
	"fmt"
	"strings"

	"github.com/stridelabs/kneemetry/internal/biomech/alerts"
)

// buildSummary renders the human-readable session report. The layout is
// stable so downstream consumers can diff summaries across sessions.
func buildSummary(res *Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Session %s (%s)\n", res.SessionID, res.Exercise)
	if res.Sync != nil {
		fmt.Fprintf(&b, "Synchronization: quality %.2f, offset %+.0f ms\n",
			res.SyncQuality, res.SyncOffsetS*1000)
	} else {
		b.WriteString("Synchronization: skipped (single usable stream)\n")
	}
	if res.ModeledJoints {
		b.WriteString("Joint angles: external model\n")
	} else {
		b.WriteString("Joint angles: IMU approximation\n")
	}

	for _, segment := range sortedKeys(res.Kinematic) {
		m := res.Kinematic[segment]
		fmt.Fprintf(&b, "%s: ROM %.1f deg (%.1f to %.1f), peak velocity %.0f deg/s\n",
			segment, m.ROMDeg, m.PeakExtensionDeg, m.PeakFlexionDeg, m.PeakAngularVelocityDegS)
	}
	for _, segment := range sortedKeys(res.Dynamic) {
		m := res.Dynamic[segment]
		fmt.Fprintf(&b, "%s: peak moment %.2f Nm/kg, peak power %.1f W/kg\n",
			segment, m.PeakMomentNmKg, m.PeakPowerWKg)
	}

	if len(res.Force) > 0 {
		fmt.Fprintf(&b, "Contacts: %d", len(res.Force))
		if stats, ok := res.ForceStats["peak_force_bw"]; ok {
			fmt.Fprintf(&b, ", peak force %.2f BW (mean %.2f)", stats.Max, stats.Mean)
		}
		if stats, ok := res.ForceStats["loading_rate_bw_s"]; ok {
			fmt.Fprintf(&b, ", max loading rate %.0f BW/s", stats.Max)
		}
		b.WriteString("\n")
	}
	if res.JumpHeightM > 0 {
		fmt.Fprintf(&b, "Jump height: %.2f m\n", res.JumpHeightM)
	}

	if si, ok := res.Symmetry["rom_deg"]; ok {
		fmt.Fprintf(&b, "ROM symmetry index: %.1f%%\n", si.SymmetryIndexPct)
	}

	counts := res.CountBySeverity()
	if len(res.Alerts) == 0 {
		b.WriteString("Alerts: none\n")
	} else {
		fmt.Fprintf(&b, "Alerts: %d", len(res.Alerts))
		for _, sev := range []alerts.Severity{alerts.Critical, alerts.Error, alerts.Warning, alerts.Info} {
			if n := counts[sev]; n > 0 {
				fmt.Fprintf(&b, " %d %s", n, sev)
			}
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Functional score: %.0f/100\n", res.FunctionalScore)
	return b.String()
}
