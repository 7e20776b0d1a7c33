// Package config loads and validates the analysis configuration: filter
// cutoffs, synchronization limits, and every alert threshold. Values are
// optional in the JSON file; omitted fields fall back to the documented
// defaults through the Get* accessors, so partial configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical analysis defaults file.
// This is the single source of truth for all default threshold values.
const DefaultConfigPath = "config/analysis.defaults.json"

// GRFBand is the acceptable peak ground reaction force range for one
// exercise, expressed in body weights.
type GRFBand struct {
	MinBW float64 `json:"min_bw"`
	MaxBW float64 `json:"max_bw"`
}

// AnalysisConfig is the root configuration for an analysis run. All fields
// are pointers so a JSON file only needs to mention the values it changes.
type AnalysisConfig struct {
	// Synchronization params
	TargetRateHz     *float64 `json:"target_rate_hz,omitempty"`
	MaxOffsetS       *float64 `json:"max_offset_s,omitempty"`
	MinOverlapFrac   *float64 `json:"min_overlap_frac,omitempty"`
	OffsetApplyS     *float64 `json:"offset_apply_s,omitempty"`
	SyncQualityFloor *float64 `json:"sync_quality_floor,omitempty"`

	// Filtering params
	FilterOrder   *int     `json:"filter_order,omitempty"`
	AccelCutoffHz *float64 `json:"accel_cutoff_hz,omitempty"`
	GyroCutoffHz  *float64 `json:"gyro_cutoff_hz,omitempty"`
	ForceCutoffHz *float64 `json:"force_cutoff_hz,omitempty"`

	// Event detection params. ContactThresholds maps exercise name to the
	// vertical-force threshold in newtons used for contact detection.
	ContactThresholds map[string]float64 `json:"contact_thresholds_n,omitempty"`
	MinContactS       *float64           `json:"min_contact_s,omitempty"`

	// Alert thresholds
	NormalROMMinDeg        *float64 `json:"normal_rom_min_deg,omitempty"`
	NormalROMMaxDeg        *float64 `json:"normal_rom_max_deg,omitempty"`
	MaxAngularVelocityDegS *float64 `json:"max_angular_velocity_deg_s,omitempty"`
	MaxKneeMomentNmKg      *float64 `json:"max_knee_moment_nm_kg,omitempty"`
	MaxLoadingRateBWs      *float64 `json:"max_loading_rate_bw_s,omitempty"`
	ModerateAsymmetryPct   *float64 `json:"moderate_asymmetry_pct,omitempty"`
	SevereAsymmetryPct     *float64 `json:"severe_asymmetry_pct,omitempty"`
	SyncQualityWarn        *float64 `json:"sync_quality_warn,omitempty"`
	SyncQualityError       *float64 `json:"sync_quality_error,omitempty"`

	// GRFBands maps exercise name (squat, jump, walk) to its acceptable
	// peak-force band.
	GRFBands map[string]GRFBand `json:"grf_bands,omitempty"`

	// Physical constants
	GravityMps2 *float64 `json:"gravity_mps2,omitempty"`
}

// EmptyAnalysisConfig returns an AnalysisConfig with all fields unset.
// Use LoadAnalysisConfig to load actual values from a file.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON file. The file must
// have a .json extension and stay under the max file size. Fields omitted
// from the JSON retain their defaults, so partial configs are safe.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAnalysisConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical analysis defaults from
// DefaultConfigPath, searching the current directory and common parents.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *AnalysisConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/biomech/*
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadAnalysisConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that configured values are internally consistent. Cutoff
// versus Nyquist is checked per channel at filter time, because it depends
// on the channel's actual sampling rate.
func (c *AnalysisConfig) Validate() error {
	if c.TargetRateHz != nil && *c.TargetRateHz <= 0 {
		return fmt.Errorf("target_rate_hz must be positive, got %g", *c.TargetRateHz)
	}
	if c.MaxOffsetS != nil && *c.MaxOffsetS <= 0 {
		return fmt.Errorf("max_offset_s must be positive, got %g", *c.MaxOffsetS)
	}
	if c.MinOverlapFrac != nil && (*c.MinOverlapFrac <= 0 || *c.MinOverlapFrac > 1) {
		return fmt.Errorf("min_overlap_frac must be in (0, 1], got %g", *c.MinOverlapFrac)
	}
	if c.FilterOrder != nil && (*c.FilterOrder < 2 || *c.FilterOrder%2 != 0) {
		return fmt.Errorf("filter_order must be a positive even number, got %d", *c.FilterOrder)
	}
	for _, cutoff := range []struct {
		name  string
		value *float64
	}{
		{"accel_cutoff_hz", c.AccelCutoffHz},
		{"gyro_cutoff_hz", c.GyroCutoffHz},
		{"force_cutoff_hz", c.ForceCutoffHz},
	} {
		if cutoff.value != nil && *cutoff.value <= 0 {
			return fmt.Errorf("%s must be positive, got %g", cutoff.name, *cutoff.value)
		}
	}
	for name, v := range c.ContactThresholds {
		if v <= 0 {
			return fmt.Errorf("contact threshold %q must be positive, got %g", name, v)
		}
	}
	if c.MinContactS != nil && *c.MinContactS < 0 {
		return fmt.Errorf("min_contact_s must be non-negative, got %g", *c.MinContactS)
	}
	if c.NormalROMMinDeg != nil && c.NormalROMMaxDeg != nil && *c.NormalROMMinDeg >= *c.NormalROMMaxDeg {
		return fmt.Errorf("normal ROM band inverted: min %g >= max %g", *c.NormalROMMinDeg, *c.NormalROMMaxDeg)
	}
	if c.ModerateAsymmetryPct != nil && c.SevereAsymmetryPct != nil && *c.ModerateAsymmetryPct >= *c.SevereAsymmetryPct {
		return fmt.Errorf("asymmetry bands inverted: moderate %g >= severe %g", *c.ModerateAsymmetryPct, *c.SevereAsymmetryPct)
	}
	if c.SyncQualityError != nil && c.SyncQualityWarn != nil && *c.SyncQualityError >= *c.SyncQualityWarn {
		return fmt.Errorf("sync quality bands inverted: error %g >= warn %g", *c.SyncQualityError, *c.SyncQualityWarn)
	}
	for name, band := range c.GRFBands {
		if band.MinBW < 0 || band.MaxBW <= band.MinBW {
			return fmt.Errorf("grf band %q invalid: min %g max %g", name, band.MinBW, band.MaxBW)
		}
	}
	return nil
}

// GetTargetRateHz returns the common resampling rate or the default.
func (c *AnalysisConfig) GetTargetRateHz() float64 {
	if c.TargetRateHz == nil {
		return 100
	}
	return *c.TargetRateHz
}

// GetMaxOffsetS returns the temporal offset ceiling or the default.
func (c *AnalysisConfig) GetMaxOffsetS() float64 {
	if c.MaxOffsetS == nil {
		return 0.5
	}
	return *c.MaxOffsetS
}

// GetMinOverlapFrac returns the minimum overlap fraction or the default.
func (c *AnalysisConfig) GetMinOverlapFrac() float64 {
	if c.MinOverlapFrac == nil {
		return 0.5
	}
	return *c.MinOverlapFrac
}

// GetOffsetApplyS returns the offset magnitude above which the correction
// is actually applied to the resampling grid, or the default (10 ms).
func (c *AnalysisConfig) GetOffsetApplyS() float64 {
	if c.OffsetApplyS == nil {
		return 0.01
	}
	return *c.OffsetApplyS
}

// GetSyncQualityFloor returns the quality below which a sync result is
// flagged as low quality, or the default.
func (c *AnalysisConfig) GetSyncQualityFloor() float64 {
	if c.SyncQualityFloor == nil {
		return 0.7
	}
	return *c.SyncQualityFloor
}

// GetFilterOrder returns the Butterworth filter order or the default.
func (c *AnalysisConfig) GetFilterOrder() int {
	if c.FilterOrder == nil {
		return 4
	}
	return *c.FilterOrder
}

// GetAccelCutoffHz returns the acceleration low-pass cutoff or the default.
func (c *AnalysisConfig) GetAccelCutoffHz() float64 {
	if c.AccelCutoffHz == nil {
		return 20
	}
	return *c.AccelCutoffHz
}

// GetGyroCutoffHz returns the angular-rate low-pass cutoff or the default.
func (c *AnalysisConfig) GetGyroCutoffHz() float64 {
	if c.GyroCutoffHz == nil {
		return 15
	}
	return *c.GyroCutoffHz
}

// GetForceCutoffHz returns the force-channel low-pass cutoff or the default.
func (c *AnalysisConfig) GetForceCutoffHz() float64 {
	if c.ForceCutoffHz == nil {
		return 50
	}
	return *c.ForceCutoffHz
}

// GetContactThresholdN returns the contact detection threshold in newtons
// for the exercise. Squats use a higher threshold because the athlete never
// fully unloads the platform.
func (c *AnalysisConfig) GetContactThresholdN(exercise string) float64 {
	if v, ok := c.ContactThresholds[exercise]; ok {
		return v
	}
	if exercise == "squat" {
		return 50
	}
	return 20
}

// GetMinContactS returns the minimum contact duration or the default.
func (c *AnalysisConfig) GetMinContactS() float64 {
	if c.MinContactS == nil {
		return 0.1
	}
	return *c.MinContactS
}

// GetNormalROMMinDeg returns the lower bound of normal knee ROM or the default.
func (c *AnalysisConfig) GetNormalROMMinDeg() float64 {
	if c.NormalROMMinDeg == nil {
		return 60
	}
	return *c.NormalROMMinDeg
}

// GetNormalROMMaxDeg returns the upper bound of normal knee ROM or the default.
func (c *AnalysisConfig) GetNormalROMMaxDeg() float64 {
	if c.NormalROMMaxDeg == nil {
		return 130
	}
	return *c.NormalROMMaxDeg
}

// GetMaxAngularVelocityDegS returns the angular velocity ceiling or the default.
func (c *AnalysisConfig) GetMaxAngularVelocityDegS() float64 {
	if c.MaxAngularVelocityDegS == nil {
		return 500
	}
	return *c.MaxAngularVelocityDegS
}

// GetMaxKneeMomentNmKg returns the knee moment ceiling or the default.
func (c *AnalysisConfig) GetMaxKneeMomentNmKg() float64 {
	if c.MaxKneeMomentNmKg == nil {
		return 3.5
	}
	return *c.MaxKneeMomentNmKg
}

// GetMaxLoadingRateBWs returns the loading rate ceiling or the default.
func (c *AnalysisConfig) GetMaxLoadingRateBWs() float64 {
	if c.MaxLoadingRateBWs == nil {
		return 75
	}
	return *c.MaxLoadingRateBWs
}

// GetModerateAsymmetryPct returns the moderate asymmetry band edge or the default.
func (c *AnalysisConfig) GetModerateAsymmetryPct() float64 {
	if c.ModerateAsymmetryPct == nil {
		return 10
	}
	return *c.ModerateAsymmetryPct
}

// GetSevereAsymmetryPct returns the severe asymmetry band edge or the default.
func (c *AnalysisConfig) GetSevereAsymmetryPct() float64 {
	if c.SevereAsymmetryPct == nil {
		return 20
	}
	return *c.SevereAsymmetryPct
}

// GetSyncQualityWarn returns the sync quality warning threshold or the default.
func (c *AnalysisConfig) GetSyncQualityWarn() float64 {
	if c.SyncQualityWarn == nil {
		return 0.85
	}
	return *c.SyncQualityWarn
}

// GetSyncQualityError returns the sync quality error threshold or the default.
func (c *AnalysisConfig) GetSyncQualityError() float64 {
	if c.SyncQualityError == nil {
		return 0.7
	}
	return *c.SyncQualityError
}

// GetGRFBand returns the acceptable peak-force band for the exercise.
// Unknown exercises fall back to a permissive generic band.
func (c *AnalysisConfig) GetGRFBand(exercise string) GRFBand {
	if band, ok := c.GRFBands[exercise]; ok {
		return band
	}
	switch exercise {
	case "squat":
		return GRFBand{MinBW: 0.8, MaxBW: 2.5}
	case "jump":
		return GRFBand{MinBW: 1.5, MaxBW: 5.0}
	case "walk":
		return GRFBand{MinBW: 0.8, MaxBW: 1.5}
	default:
		return GRFBand{MinBW: 0.5, MaxBW: 3.0}
	}
}

// GetGravityMps2 returns the gravitational acceleration or the default.
func (c *AnalysisConfig) GetGravityMps2() float64 {
	if c.GravityMps2 == nil {
		return 9.81
	}
	return *c.GravityMps2
}
