package world

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/socioscope/internal/models"
)

// ErrInvalidSnapshot is wrapped by LoadSnapshot for structurally broken input.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Format is a snapshot file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFor picks a format from a file extension. Anything but .json is YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// LoadSnapshot reads a population snapshot from a YAML or JSON file.
func LoadSnapshot(path string) (models.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	snap, err := DecodeSnapshot(f, FormatFor(path))
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("loading %s: %w", path, err)
	}
	return snap, nil
}

// DecodeSnapshot decodes and checks a snapshot.
func DecodeSnapshot(r io.Reader, format Format) (models.Snapshot, error) {
	var snap models.Snapshot
	var err error
	switch format {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&snap)
	default:
		err = yaml.NewDecoder(r).Decode(&snap)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return models.Snapshot{}, fmt.Errorf("decoding %s snapshot: %w", format, err)
	}
	if err := validate(snap); err != nil {
		return models.Snapshot{}, err
	}
	return snap, nil
}

// EncodeSnapshot writes snap in the given format.
func EncodeSnapshot(w io.Writer, snap models.Snapshot, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return err
		}
		return enc.Close()
	}
}

// validate rejects snapshots the analysis passes cannot attribute events to.
// Attribute ranges are not checked here; out-of-range values lower the
// report's data quality instead.
func validate(snap models.Snapshot) error {
	seen := make(map[string]bool, len(snap.Agents))
	for i, a := range snap.Agents {
		if a.ID == "" {
			return fmt.Errorf("%w: agent %d has no id", ErrInvalidSnapshot, i)
		}
		if seen[a.ID] {
			return fmt.Errorf("%w: duplicate agent id %q", ErrInvalidSnapshot, a.ID)
		}
		seen[a.ID] = true
	}
	return nil
}
