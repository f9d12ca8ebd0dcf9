package mcp

import (
	"context"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/socioscope/internal/disruption"
	"github.com/nvandessel/socioscope/internal/eventlog"
	"github.com/nvandessel/socioscope/internal/models"
	"github.com/nvandessel/socioscope/internal/ratelimit"
	"github.com/nvandessel/socioscope/internal/relational"
)

// defaultEventLimit caps socio_events when no limit is given.
const defaultEventLimit = 50

func (s *Server) handleReport(ctx context.Context, req *sdk.CallToolRequest, args ReportInput) (_ *sdk.CallToolResult, _ ReportOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolReport, start, retErr, sanitizeToolParams(map[string]interface{}{}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolReport); err != nil {
		return nil, ReportOutput{}, err
	}

	report := s.engine.Report(s.nowFunc(), s.source.Snapshot())
	return nil, ReportOutput{Report: report}, nil
}

func (s *Server) handleEvents(ctx context.Context, req *sdk.CallToolRequest, args EventsInput) (_ *sdk.CallToolResult, _ EventsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolEvents, start, retErr, sanitizeToolParams(map[string]interface{}{
			"category":      optional(args.Category != "", args.Category),
			"min_severity":  optional(args.MinSeverity != "", args.MinSeverity),
			"since_seconds": optional(args.SinceSeconds != 0, args.SinceSeconds),
			"limit":         optional(args.Limit != 0, args.Limit),
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolEvents); err != nil {
		return nil, EventsOutput{}, err
	}

	filter := eventlog.Filter{Limit: defaultEventLimit}
	if args.Limit < 0 || args.SinceSeconds < 0 {
		return nil, EventsOutput{}, fmt.Errorf("limit and since_seconds must not be negative")
	}
	if args.Limit > 0 {
		filter.Limit = args.Limit
	}
	if args.Category != "" {
		cat := models.EventCategory(args.Category)
		if !cat.IsValid() {
			return nil, EventsOutput{}, fmt.Errorf("unknown category %q (valid: %v)", args.Category, models.EventCategories)
		}
		filter.Categories = []models.EventCategory{cat}
	}
	if args.MinSeverity != "" {
		sev := models.ParseSeverity(args.MinSeverity)
		if sev.String() != args.MinSeverity {
			return nil, EventsOutput{}, fmt.Errorf("unknown severity %q (valid: low, medium, high, critical)", args.MinSeverity)
		}
		filter.MinSeverity = sev
	}
	if args.SinceSeconds > 0 {
		filter.Since = s.nowFunc().Add(-time.Duration(args.SinceSeconds) * time.Second)
	}

	events := s.engine.Events(filter)
	if events == nil {
		events = []models.AnalysisEvent{}
	}
	return nil, EventsOutput{Events: events, Count: len(events)}, nil
}

func (s *Server) handleMetrics(ctx context.Context, req *sdk.CallToolRequest, args MetricsInput) (_ *sdk.CallToolResult, _ MetricsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolMetrics, start, retErr, sanitizeToolParams(map[string]interface{}{
			"refresh": optional(args.Refresh, args.Refresh),
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolMetrics); err != nil {
		return nil, MetricsOutput{}, err
	}

	snap := s.source.Snapshot()
	out := MetricsOutput{Telemetry: disruption.AnalyzeTelemetry(snap)}

	var m relational.Metrics
	var ok bool
	if !args.Refresh {
		m, ok = s.engine.Metrics()
	}
	if !ok {
		m = s.engine.TelemetryPass(s.nowFunc(), snap)
		out.Refreshed = true
	}
	out.Metrics = m
	return nil, out, nil
}

func (s *Server) handleForceTrigger(ctx context.Context, req *sdk.CallToolRequest, args ForceTriggerInput) (_ *sdk.CallToolResult, _ ForceTriggerOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolForceTrigger, start, retErr, sanitizeToolParams(map[string]interface{}{}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolForceTrigger); err != nil {
		return nil, ForceTriggerOutput{}, err
	}

	res := s.engine.ForceTrigger(s.nowFunc(), s.source.Snapshot())
	s.logger.Info("forced disruption", "type", res.Event.Type, "intensity", res.Event.Intensity)
	return nil, ForceTriggerOutput{
		Event:    *res.Event,
		Template: res.Decision.Template,
		Message:  fmt.Sprintf("Emitted %s (intensity %.0f, %s)", res.Event.Name, res.Event.Intensity, res.Event.Duration),
	}, nil
}

func (s *Server) handleController(ctx context.Context, req *sdk.CallToolRequest, args ControllerInput) (_ *sdk.CallToolResult, _ ControllerOutput, retErr error) {
	start := time.Now()
	params := map[string]interface{}{}
	if args.Enabled != nil {
		params["enabled"] = *args.Enabled
	}
	if args.IntelligenceLevel != nil {
		params["intelligence_level"] = *args.IntelligenceLevel
	}
	if args.AdaptiveFrequency != nil {
		params["adaptive_frequency"] = *args.AdaptiveFrequency
	}
	if args.ContextualTriggers != nil {
		params["contextual_triggers"] = *args.ContextualTriggers
	}
	defer func() {
		s.auditTool(ratelimit.ToolController, start, retErr, sanitizeToolParams(params))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolController); err != nil {
		return nil, ControllerOutput{}, err
	}

	ctrl := s.engine.Controller()
	var changed []string

	// Validate the level first so a bad request changes nothing.
	if args.IntelligenceLevel != nil {
		if err := ctrl.SetLevel(*args.IntelligenceLevel); err != nil {
			return nil, ControllerOutput{}, err
		}
		changed = append(changed, "intelligence_level")
	}
	if args.Enabled != nil {
		ctrl.SetEnabled(*args.Enabled)
		changed = append(changed, "enabled")
	}
	if args.AdaptiveFrequency != nil {
		ctrl.SetAdaptive(*args.AdaptiveFrequency)
		changed = append(changed, "adaptive_frequency")
	}
	if args.ContextualTriggers != nil {
		ctrl.SetContextual(*args.ContextualTriggers)
		changed = append(changed, "contextual_triggers")
	}
	if len(changed) > 0 {
		s.logger.Info("controller updated", "changed", changed)
	}

	return nil, ControllerOutput{Status: ctrl.Status(), Changed: changed, At: s.nowFunc()}, nil
}

// optional returns v when set is true and nil otherwise, so unset
// parameters are left out of the audit entry.
func optional(set bool, v interface{}) interface{} {
	if !set {
		return nil
	}
	return v
}
