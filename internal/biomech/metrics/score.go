package metrics

import "math"

// Reference bands of the composite functional score.
const (
	// ScoreROMReferenceDeg is the full knee range of motion the ROM
	// component is scored against.
	ScoreROMReferenceDeg = 135.0
	// ScoreSymmetryZeroPct is the symmetry index at which the symmetry
	// component bottoms out.
	ScoreSymmetryZeroPct = 15.0
	// ScoreGRFBandLowBW and ScoreGRFBandHighBW bound the peak-force band
	// that earns the full force component.
	ScoreGRFBandLowBW  = 1.5
	ScoreGRFBandHighBW = 3.0
)

// ScoreInputs collects the per-session values the functional score blends.
type ScoreInputs struct {
	ROMDeg           float64
	SymmetryIndexPct float64
	PeakForceBW      float64
}

// FunctionalScore condenses a session into a single 0-100 number: up to 40
// points for range of motion against the full 135° knee ROM, up to 30 for
// symmetry (zero points at a 15% symmetry index), and up to 30 for a peak
// ground reaction force inside the 1.5-3.0 BW band, tapering linearly on
// either side. It is a coarse triage figure, not a clinical measurement.
func FunctionalScore(in ScoreInputs) float64 {
	romScore := math.Min(in.ROMDeg/ScoreROMReferenceDeg*40, 40)
	if romScore < 0 {
		romScore = 0
	}

	symScore := math.Max(30-(in.SymmetryIndexPct/ScoreSymmetryZeroPct)*30, 0)

	var grfScore float64
	switch {
	case in.PeakForceBW >= ScoreGRFBandLowBW && in.PeakForceBW <= ScoreGRFBandHighBW:
		grfScore = 30
	case in.PeakForceBW < ScoreGRFBandLowBW:
		grfScore = math.Max(in.PeakForceBW/ScoreGRFBandLowBW*30, 0)
	default:
		grfScore = math.Max(30-(in.PeakForceBW-ScoreGRFBandHighBW)/ScoreGRFBandHighBW*30, 0)
	}

	return math.Round(romScore + symScore + grfScore)
}
