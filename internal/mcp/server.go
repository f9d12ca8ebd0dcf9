package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/socioscope/internal/engine"
	"github.com/nvandessel/socioscope/internal/logging"
	"github.com/nvandessel/socioscope/internal/models"
	"github.com/nvandessel/socioscope/internal/ratelimit"
)

// Source provides the population the tools analyze.
type Source interface {
	Snapshot() models.Snapshot
}

// Server wraps the MCP SDK server and exposes the analysis engine as tools.
type Server struct {
	server       *sdk.Server
	engine       *engine.Engine
	source       Source
	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
	logger       *slog.Logger
	nowFunc      func() time.Time
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "socioscope")
	Version string // Server version

	// AuditDir receives audit.jsonl. Empty disables auditing.
	AuditDir string

	Logger *slog.Logger
}

// NewServer creates a new MCP server with the socio_* tools.
func NewServer(cfg *Config, eng *engine.Engine, src Source) (*Server, error) {
	if eng == nil || src == nil {
		return nil, fmt.Errorf("mcp server needs an engine and a population source")
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{})

	s := &Server{
		server:       mcpServer,
		engine:       eng,
		source:       src,
		toolLimiters: ratelimit.NewToolLimiters(),
		logger:       logging.OrDiscard(cfg.Logger),
		nowFunc:      time.Now,
	}
	if cfg.AuditDir != "" {
		s.auditLogger = NewAuditLogger(cfg.AuditDir)
	}

	s.registerTools()
	return s, nil
}

// registerTools registers all socio MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolReport,
		Description: "Get the session report: event counts, coalition lifespan, dominant behaviors, metric trends, data quality and confidence",
	}, s.handleReport)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolEvents,
		Description: "List logged analysis events, filtered by category, severity and age",
	}, s.handleEvents)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolMetrics,
		Description: "Get the relational metrics (entanglement, coherence, superposition, decoherence, tunneling) and decision telemetry",
	}, s.handleMetrics)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolForceTrigger,
		Description: "Emit a disruption immediately, bypassing the cooldown and the probability draw",
	}, s.handleForceTrigger)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolController,
		Description: "Read or change the disruption controller settings (enabled, intelligence level, adaptive frequency, contextual triggers)",
	}, s.handleController)
}

// Run serves MCP over stdio. It blocks until the client disconnects or ctx
// is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()
	return s.server.Run(ctx, &sdk.StdioTransport{})
}

// Connect serves one session over the given transport. Used by tests and
// embedders with their own transport.
func (s *Server) Connect(ctx context.Context, t sdk.Transport) (*sdk.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

// Close releases the audit log.
func (s *Server) Close() error {
	err := s.auditLogger.Close()
	s.auditLogger = nil
	return err
}
