// Package sessionfile reads and writes captured sessions as JSON files:
// the interchange format between acquisition tooling and the analyzer.
package sessionfile

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/stridelabs/kneemetry/internal/biomech/pipeline"
	"github.com/stridelabs/kneemetry/internal/biomech/series"
)

// Stream is the serialized form of one sensor bundle.
type Stream struct {
	RateHz   float64              `json:"rate_hz"`
	Time     []float64            `json:"time_s"`
	Channels map[string][]float64 `json:"channels"`
}

// File is the on-disk session layout.
type File struct {
	ID         string    `json:"id"`
	Exercise   string    `json:"exercise"`
	MassKg     float64   `json:"mass_kg"`
	CapturedAt time.Time `json:"captured_at"`
	IMU        *Stream   `json:"imu,omitempty"`
	Force      *Stream   `json:"force,omitempty"`
}

// Load reads a session file.
func Load(path string) (pipeline.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Session{}, fmt.Errorf("read session file: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return pipeline.Session{}, fmt.Errorf("parse session file: %w", err)
	}
	return pipeline.Session{
		ID:         f.ID,
		Exercise:   f.Exercise,
		MassKg:     f.MassKg,
		CapturedAt: f.CapturedAt,
		IMU:        toBundle(f.IMU),
		Force:      toBundle(f.Force),
	}, nil
}

// Save writes a session file with indented JSON.
func Save(path string, s pipeline.Session) error {
	f := File{
		ID:         s.ID,
		Exercise:   s.Exercise,
		MassKg:     s.MassKg,
		CapturedAt: s.CapturedAt,
		IMU:        fromBundle(s.IMU),
		Force:      fromBundle(s.Force),
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

func toBundle(s *Stream) *series.Bundle {
	if s == nil {
		return nil
	}
	return &series.Bundle{Rate: s.RateHz, Time: s.Time, Channels: s.Channels}
}

func fromBundle(b *series.Bundle) *Stream {
	if b == nil {
		return nil
	}
	return &Stream{RateHz: b.Rate, Time: b.Time, Channels: b.Channels}
}
