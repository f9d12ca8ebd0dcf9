package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/socioscope/internal/config"
	"github.com/nvandessel/socioscope/internal/logging"
	"github.com/nvandessel/socioscope/internal/mcp"
	"github.com/nvandessel/socioscope/internal/scheduler"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve the engine to an assistant over MCP (stdio)",
		Long: `Run a demo population under the live engine and expose it as MCP tools
over stdin/stdout:

  socio_report         session report
  socio_events         query the analysis event log
  socio_metrics        latest relational metrics
  socio_force_trigger  emit a disruption now
  socio_controller     read or change the disruption controller

Logs go to stderr. Tool calls are audited to ~/.socioscope/audit.jsonl.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			manual, _ := cmd.Flags().GetBool("manual")
			if manual {
				cfg.Engine.AutoMode = false
			}
			noAudit, _ := cmd.Flags().GetBool("no-audit")

			// stdout carries the protocol.
			logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
			rt, err := newRuntime(cfg, logger, time.Now())
			if err != nil {
				return err
			}
			defer rt.Close()

			sched, err := scheduler.New(cfg.Schedule, cfg.World.Step, rt.engine, rt.world, logger)
			if err != nil {
				return err
			}

			auditDir := ""
			if !noAudit {
				if auditDir, err = config.Dir(); err != nil {
					return err
				}
			}
			server, err := mcp.NewServer(&mcp.Config{
				Name:     "socioscope",
				Version:  version,
				AuditDir: auditDir,
				Logger:   logger,
			}, rt.engine, rt.world)
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			done := make(chan struct{})
			go func() {
				defer close(done)
				sched.Run(ctx)
			}()

			logger.Info("mcp server ready", "population", cfg.World.Population, "auto_mode", cfg.Engine.AutoMode)
			err = server.Run(ctx)
			cancel()
			<-done
			return err
		},
	}

	cmd.Flags().Bool("manual", false, "Disable scheduled disruptions; only socio_force_trigger emits")
	cmd.Flags().Bool("no-audit", false, "Do not write the tool audit log")
	return cmd
}
