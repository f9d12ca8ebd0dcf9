// Package patterns classifies derived fields and groups into named pattern
// events. Resonance patterns compare field pairs; emergence patterns look for
// intelligence clusters and the organizational form of the population.
// Classification is deterministic for fixed inputs.
package patterns

import (
	"io"
	"log/slog"
	"time"

	"github.com/nvandessel/socioscope/internal/constants"
	"github.com/nvandessel/socioscope/internal/models"
)

// Config holds tunable parameters for pattern detection.
type Config struct {
	// ProximityThreshold is the maximum anchor-to-member distance for
	// intelligence clusters. Default: 150.
	ProximityThreshold float64
}

// DefaultConfig returns the default detection configuration.
func DefaultConfig() Config {
	return Config{ProximityThreshold: constants.DefaultProximityThreshold}
}

// Detector runs both pattern classes over one pass.
type Detector struct {
	config Config
	logger *slog.Logger
}

// NewDetector creates a detector. A nil logger discards output.
func NewDetector(config Config, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.ProximityThreshold <= 0 {
		config.ProximityThreshold = constants.DefaultProximityThreshold
	}
	return &Detector{config: config, logger: logger}
}

// Detect returns resonance events for the fields followed by emergence events
// for the snapshot. Each class is capped independently.
func (d *Detector) Detect(fields []models.Field, snap models.Snapshot, now time.Time) []models.AnalysisEvent {
	resonance := DetectResonance(fields, now)
	emergence := DetectEmergence(snap, d.config.ProximityThreshold, now)

	d.logger.Debug("pattern detection",
		"fields", len(fields),
		"agents", len(snap.Agents),
		"resonance", len(resonance),
		"emergence", len(emergence))

	out := make([]models.AnalysisEvent, 0, len(resonance)+len(emergence))
	out = append(out, resonance...)
	out = append(out, emergence...)
	return out
}
