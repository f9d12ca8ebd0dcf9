package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/socioscope/internal/config"
	"github.com/nvandessel/socioscope/internal/engine"
	"github.com/nvandessel/socioscope/internal/feed"
	"github.com/nvandessel/socioscope/internal/logging"
	"github.com/nvandessel/socioscope/internal/models"
	"github.com/nvandessel/socioscope/internal/scheduler"
	"github.com/nvandessel/socioscope/internal/world"
)

// runtime is a demo world wired to a live engine.
type runtime struct {
	cfg       *config.SocioConfig
	logger    *slog.Logger
	decisions *logging.DecisionLogger
	world     *world.World
	engine    *engine.Engine
}

// newRuntime seeds the world and builds an engine whose disruptions feed
// back into it. Decision tracing follows the configured log level.
func newRuntime(cfg *config.SocioConfig, logger *slog.Logger, start time.Time) (*runtime, error) {
	var decisions *logging.DecisionLogger
	if dir, err := config.Dir(); err == nil {
		decisions = logging.NewDecisionLogger(dir, cfg.Logging.Level)
	}

	w := world.New(world.Config{
		Population: cfg.World.Population,
		Seed:       cfg.World.Seed,
		Width:      cfg.World.Width,
		Height:     cfg.World.Height,
	}, start)

	eng, err := engine.New(engine.Options{
		Config:       cfg,
		SessionStart: start,
		Rand:         engineRand(cfg.World.Seed),
		Logger:       logger,
		Decisions:    decisions,
	})
	if err != nil {
		decisions.Close()
		return nil, err
	}
	eng.Subscribe(w)

	return &runtime{cfg: cfg, logger: logger, decisions: decisions, world: w, engine: eng}, nil
}

func (r *runtime) Close() {
	r.decisions.Close()
}

// engineRand derives the engine's random stream from the world seed so a
// whole run is reproducible from one number.
func engineRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed^0xa0761d6478bd642f, seed))
}

// signalContext returns a context cancelled on interrupt.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a demo population under the live engine",
		Long: `Seed a demo population and run the engine against it on the configured
cadences until interrupted. Disruptions the engine emits are applied back
to the population. With --feed, events, metrics and disruptions stream to
websocket clients.

Examples:
  socioscope run                         # Run until Ctrl+C
  socioscope run --for 2m --json         # Run two minutes, print the report as JSON
  socioscope run --feed --population 120 # Bigger population with a live feed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg); err != nil {
				return err
			}
			runFor, _ := cmd.Flags().GetDuration("for")

			logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
			rt, err := newRuntime(cfg, logger, time.Now())
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			if runFor > 0 {
				ctx, cancel = context.WithTimeout(ctx, runFor)
				defer cancel()
			}

			report, err := rt.run(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().Int("population", 0, "Number of agents (overrides world.population)")
	cmd.Flags().Uint64("seed", 0, "Random seed (overrides world.seed)")
	cmd.Flags().Bool("feed", false, "Serve the websocket feed (overrides feed.enabled)")
	cmd.Flags().String("feed-addr", "", "Feed listen address (overrides feed.addr)")
	cmd.Flags().Duration("for", 0, "Stop after this long (default: run until interrupted)")
	return cmd
}

func applyRunFlags(cmd *cobra.Command, cfg *config.SocioConfig) error {
	if cmd.Flags().Changed("population") {
		n, _ := cmd.Flags().GetInt("population")
		cfg.World.Population = n
	}
	if cmd.Flags().Changed("seed") {
		seed, _ := cmd.Flags().GetUint64("seed")
		cfg.World.Seed = seed
	}
	if cmd.Flags().Changed("feed") {
		cfg.Feed.Enabled, _ = cmd.Flags().GetBool("feed")
	}
	if cmd.Flags().Changed("feed-addr") {
		cfg.Feed.Addr, _ = cmd.Flags().GetString("feed-addr")
		cfg.Feed.Enabled = true
	}
	return cfg.Validate()
}

// run drives the world and the engine until ctx is done, then returns the
// session report.
func (r *runtime) run(ctx context.Context) (models.SessionReport, error) {
	sched, err := scheduler.New(r.cfg.Schedule, r.cfg.World.Step, r.engine, r.world, r.logger)
	if err != nil {
		return models.SessionReport{}, err
	}

	var feedErr chan error
	if r.cfg.Feed.Enabled {
		hub := feed.NewHub(r.logger)
		r.engine.Subscribe(hub)
		srv := feed.NewServer(hub, nil, r.logger)
		feedErr = make(chan error, 1)
		go func() { feedErr <- srv.ListenAndServe(ctx, r.cfg.Feed.Addr) }()
		r.logger.Info("feed listening", "addr", r.cfg.Feed.Addr)
	}

	r.logger.Info("session started",
		"population", r.cfg.World.Population,
		"seed", r.cfg.World.Seed,
		"auto_mode", r.cfg.Engine.AutoMode,
		"level", r.cfg.Engine.IntelligenceLevel)
	sched.Run(ctx)

	if feedErr != nil {
		if err := <-feedErr; err != nil {
			return models.SessionReport{}, fmt.Errorf("feed: %w", err)
		}
	}
	return r.engine.Report(time.Now(), r.world.Snapshot()), nil
}

func printReport(w io.Writer, r models.SessionReport) {
	fmt.Fprintf(w, "Session report (%s)\n\n", r.SessionDuration.Round(time.Second))
	fmt.Fprintf(w, "  population:       %d agents, %d coalitions\n", r.Population, r.CoalitionCount)
	fmt.Fprintf(w, "  events:           %d accepted, %d rejected, %d evicted\n", r.TotalEvents, r.RejectedEvents, r.EvictedEvents)
	fmt.Fprintf(w, "  disruptions:      %d\n", r.Disruptions)
	fmt.Fprintf(w, "  average strength: %.1f\n", r.AverageStrength)
	fmt.Fprintf(w, "  metric samples:   %d\n", r.MetricSamples)
	fmt.Fprintf(w, "  data quality:     %.1f\n", r.DataQuality)
	fmt.Fprintf(w, "  confidence:       %.1f\n", r.ConfidenceLevel)

	if len(r.ByCategory) > 0 {
		fmt.Fprintln(w, "\nEvents by category:")
		for _, c := range models.EventCategories {
			if n := r.ByCategory[string(c)]; n > 0 {
				fmt.Fprintf(w, "  %-22s %d\n", c, n)
			}
		}
	}
	if len(r.DominantBehaviors) > 0 {
		fmt.Fprintln(w, "\nDominant behaviors:")
		for _, b := range r.DominantBehaviors {
			fmt.Fprintf(w, "  %-10s %d\n", b.Type, b.Count)
		}
	}
	if len(r.Trends) > 0 {
		fmt.Fprintln(w, "\nTrends:")
		for _, name := range []string{"entanglement", "coherence", "superposition", "decoherence", "tunneling"} {
			if tr, ok := r.Trends[name]; ok {
				fmt.Fprintf(w, "  %-14s %-11s %.1f\n", name, tr.Trend, tr.Last)
			}
		}
	}
}
