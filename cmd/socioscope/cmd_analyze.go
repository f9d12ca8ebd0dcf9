package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/socioscope/internal/config"
	"github.com/nvandessel/socioscope/internal/engine"
	"github.com/nvandessel/socioscope/internal/logging"
	"github.com/nvandessel/socioscope/internal/models"
	"github.com/nvandessel/socioscope/internal/relational"
	"github.com/nvandessel/socioscope/internal/world"
)

// AnalysisOutput is the result of analyzing one snapshot.
type AnalysisOutput struct {
	At       time.Time              `json:"at"`
	Groups   []models.DerivedGroup  `json:"groups"`
	Fields   []models.Field         `json:"fields"`
	Events   []models.AnalysisEvent `json:"events"`
	Rejected int                    `json:"rejected,omitempty"`
	Metrics  relational.Metrics     `json:"metrics"`
}

// snapshotEngine builds a one-shot engine for a saved snapshot. The session
// starts `elapsed` before the snapshot was taken and the clock stays at the
// snapshot time.
func snapshotEngine(cmd *cobra.Command, cfg *config.SocioConfig, snap models.Snapshot, elapsed time.Duration) (*engine.Engine, time.Time, error) {
	at := snap.TakenAt
	if at.IsZero() {
		at = time.Now()
	}
	seed, _ := cmd.Flags().GetUint64("seed")
	eng, err := engine.New(engine.Options{
		Config:       cfg,
		SessionStart: at.Add(-elapsed),
		Rand:         engineRand(seed),
		Clock:        func() time.Time { return at },
		Logger:       logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr()),
	})
	return eng, at, err
}

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <snapshot>",
		Short: "Group, score and detect patterns in a saved snapshot",
		Long: `Run one cluster pass and one telemetry pass over a population snapshot
stored as YAML or JSON (by file extension).

Examples:
  socioscope analyze population.yaml
  socioscope analyze population.json --json
  socioscope analyze population.yaml --max-distance 120`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-distance") {
				cfg.Engine.MaxDistance, _ = cmd.Flags().GetFloat64("max-distance")
			}

			snap, err := world.LoadSnapshot(args[0])
			if err != nil {
				return err
			}
			eng, at, err := snapshotEngine(cmd, cfg, snap, 0)
			if err != nil {
				return err
			}

			pass := eng.ClusterPass(at, snap)
			out := AnalysisOutput{
				At:       at,
				Groups:   pass.Groups,
				Fields:   pass.Fields,
				Events:   pass.Events,
				Rejected: pass.Rejected,
				Metrics:  eng.TelemetryPass(at, snap),
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			printAnalysis(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().Uint64("seed", 1, "Seed for field phases")
	cmd.Flags().Float64("max-distance", 0, "Spatial grouping threshold (overrides engine.max_distance)")
	return cmd
}

func printAnalysis(w io.Writer, out AnalysisOutput) {
	m := out.Metrics
	fmt.Fprintf(w, "Population of %d at %s\n\n", m.Population, out.At.Format(time.RFC3339))
	fmt.Fprintln(w, "Metrics:")
	fmt.Fprintf(w, "  entanglement:  %5.1f\n", m.Entanglement)
	fmt.Fprintf(w, "  coherence:     %5.1f\n", m.Coherence)
	fmt.Fprintf(w, "  superposition: %5.1f\n", m.Superposition)
	fmt.Fprintf(w, "  decoherence:   %5.1f\n", m.Decoherence)
	fmt.Fprintf(w, "  tunneling:     %5.1f\n", m.Tunneling)

	fmt.Fprintf(w, "\nGroups (%d):\n", len(out.Groups))
	for _, g := range out.Groups {
		fmt.Fprintf(w, "  %-14s %d members\n", g.ID, len(g.Members))
	}

	fmt.Fprintf(w, "\nFields (%d):\n", len(out.Fields))
	for _, f := range out.Fields {
		fmt.Fprintf(w, "  %-14s %-10s freq=%.3f amp=%.1f\n", f.ID, f.Kind, f.Frequency, f.Amplitude)
	}

	fmt.Fprintf(w, "\nEvents (%d):\n", len(out.Events))
	for _, ev := range out.Events {
		label := string(ev.Category)
		if ev.Subtype != "" {
			label += "/" + ev.Subtype
		}
		fmt.Fprintf(w, "  %-34s %-8s %5.1f  %s\n", label, ev.Severity, ev.Strength, ev.Description)
	}
	if out.Rejected > 0 {
		fmt.Fprintf(w, "\n%d events rejected\n", out.Rejected)
	}
}
