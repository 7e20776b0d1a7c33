package metrics

import (
	"math"
)

// Symmetry bands in percent.
const (
	SymmetryModeratePct = 10.0
	SymmetrySeverePct   = 20.0
)

// Acceptable asymmetry ratio band around the ideal 1.0.
const (
	RatioAcceptableLow  = 0.85
	RatioAcceptableHigh = 1.15
)

// SymmetryMetrics compares a paired right/left scalar.
type SymmetryMetrics struct {
	SymmetryIndexPct float64 `json:"symmetry_index_pct"`
	AsymmetryRatio   float64 `json:"asymmetry_ratio"`
	AbsoluteDiff     float64 `json:"absolute_diff"`
}

// Symmetry computes paired right/left comparisons. Both sides at zero give
// a fully symmetric result; a zero left side makes the ratio the neutral
// 1.0 rather than infinite.
func Symmetry(right, left float64) SymmetryMetrics {
	m := SymmetryMetrics{
		AbsoluteDiff:   math.Abs(right - left),
		AsymmetryRatio: 1.0,
	}
	if mean := (right + left) / 2; mean != 0 {
		m.SymmetryIndexPct = math.Abs(right-left) / mean * 100
	}
	if left != 0 {
		m.AsymmetryRatio = right / left
	}
	return m
}

// SymmetryBand names the band a symmetry index falls into.
func SymmetryBand(siPct float64) string {
	switch {
	case siPct < SymmetryModeratePct:
		return "symmetric"
	case siPct <= SymmetrySeverePct:
		return "moderate"
	default:
		return "severe"
	}
}

// BilateralDeficit is the percentage shortfall of bilateral-task
// performance against the sum of the two unilateral performances. A
// negative value means the bilateral task underperformed the unilateral
// sum. Zero unilateral performance yields zero.
func BilateralDeficit(bilateral, right, left float64) float64 {
	sum := right + left
	if sum == 0 {
		return 0
	}
	return (bilateral/sum - 1) * 100
}
