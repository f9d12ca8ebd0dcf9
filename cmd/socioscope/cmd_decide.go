package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/socioscope/internal/engine"
	"github.com/nvandessel/socioscope/internal/world"
)

func newDecideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decide <snapshot>",
		Short: "Run one disruption decision against a saved snapshot",
		Long: `Evaluate whether the disruption engine would act on a population
snapshot. By default the last disruption is assumed to be an hour old, so
the cooldown has elapsed. Use --since to test the cooldown and --force to
emit regardless of probability.

Examples:
  socioscope decide population.yaml
  socioscope decide population.yaml --level 5 --json
  socioscope decide population.yaml --since 15s
  socioscope decide population.yaml --force`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			force, _ := cmd.Flags().GetBool("force")
			since, _ := cmd.Flags().GetDuration("since")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("level") {
				cfg.Engine.IntelligenceLevel, _ = cmd.Flags().GetInt("level")
			}
			// A one-shot decision is an explicit request.
			cfg.Engine.AutoMode = true

			snap, err := world.LoadSnapshot(args[0])
			if err != nil {
				return err
			}
			eng, at, err := snapshotEngine(cmd, cfg, snap, since)
			if err != nil {
				return err
			}

			var res engine.DisruptionResult
			if force {
				res = eng.ForceTrigger(at, snap)
			} else {
				res = eng.DecisionPass(at, snap)
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printDecision(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().Uint64("seed", 1, "Seed for the probability draw")
	cmd.Flags().Int("level", 0, "Intelligence level 1..5 (overrides engine.intelligence_level)")
	cmd.Flags().Duration("since", time.Hour, "Time since the last disruption")
	cmd.Flags().Bool("force", false, "Emit a disruption regardless of cooldown and probability")
	return cmd
}

func printDecision(w io.Writer, res engine.DisruptionResult) {
	d := res.Decision
	t := d.Telemetry
	fmt.Fprintf(w, "Telemetry: stability=%.1f stress=%.1f innovation=%.1f coalitions=%d active=%d\n",
		t.Stability, t.MeanStress, t.MeanInnovation, t.CoalitionCount, t.ActiveDisruptions)
	fmt.Fprintf(w, "Interval:  %s\n", d.Interval)
	fmt.Fprintf(w, "Decision:  %s", d.State)
	if d.Reason != "" {
		fmt.Fprintf(w, " (%s)", d.Reason)
	}
	fmt.Fprintln(w)
	if d.Probability > 0 || d.Draw > 0 {
		fmt.Fprintf(w, "Draw:      %.3f against probability %.3f\n", d.Draw, d.Probability)
	}

	ev := res.Event
	if ev == nil {
		return
	}
	fmt.Fprintf(w, "\n%s (%s)\n", ev.Name, ev.Type)
	fmt.Fprintf(w, "  %s\n", ev.Description)
	fmt.Fprintf(w, "  intensity: %.1f\n", ev.Intensity)
	fmt.Fprintf(w, "  duration:  %s\n", ev.Duration)
	fmt.Fprintf(w, "  effects:   trust %+.1f, energy %+.1f, cooperation %+.1f, innovation %+.1f\n",
		ev.Effects.Trust, ev.Effects.Energy, ev.Effects.Cooperation, ev.Effects.Innovation)
	if ev.Forced {
		fmt.Fprintln(w, "  forced:    yes")
	}
}
