// Package mcp provides an MCP (Model Context Protocol) server for socioscope.
package mcp

import (
	"time"

	"github.com/nvandessel/socioscope/internal/disruption"
	"github.com/nvandessel/socioscope/internal/models"
	"github.com/nvandessel/socioscope/internal/relational"
)

// ReportInput defines the input for the socio_report tool.
type ReportInput struct{}

// ReportOutput defines the output for the socio_report tool.
type ReportOutput struct {
	Report models.SessionReport `json:"report" jsonschema:"Session report over the retained analysis events"`
}

// EventsInput defines the input for the socio_events tool.
type EventsInput struct {
	Category     string `json:"category,omitempty" jsonschema:"Only return events of this category (e.g. 'synchronization', 'intelligence_cluster', 'disruption')"`
	MinSeverity  string `json:"min_severity,omitempty" jsonschema:"Minimum severity: low, medium, high or critical"`
	SinceSeconds int    `json:"since_seconds,omitempty" jsonschema:"Only return events from the last N seconds"`
	Limit        int    `json:"limit,omitempty" jsonschema:"Maximum number of events, most recent kept (default: 50)"`
}

// EventsOutput defines the output for the socio_events tool.
type EventsOutput struct {
	Events []models.AnalysisEvent `json:"events" jsonschema:"Matching analysis events in timestamp order"`
	Count  int                    `json:"count" jsonschema:"Number of events returned"`
}

// MetricsInput defines the input for the socio_metrics tool.
type MetricsInput struct {
	Refresh bool `json:"refresh,omitempty" jsonschema:"Run a telemetry pass on the current population instead of returning the last one"`
}

// MetricsOutput defines the output for the socio_metrics tool.
type MetricsOutput struct {
	Metrics   relational.Metrics   `json:"metrics" jsonschema:"Relational metrics of the population"`
	Telemetry disruption.Telemetry `json:"telemetry" jsonschema:"Decision telemetry of the population"`
	Refreshed bool                 `json:"refreshed" jsonschema:"Whether a new telemetry pass was run"`
}

// ForceTriggerInput defines the input for the socio_force_trigger tool.
type ForceTriggerInput struct{}

// ForceTriggerOutput defines the output for the socio_force_trigger tool.
type ForceTriggerOutput struct {
	Event    models.DisruptiveEvent `json:"event" jsonschema:"The emitted disruption"`
	Template string                 `json:"template" jsonschema:"Template the disruption was built from"`
	Message  string                 `json:"message" jsonschema:"Human-readable result message"`
}

// ControllerInput defines the input for the socio_controller tool. Omitted
// fields leave the setting unchanged.
type ControllerInput struct {
	Enabled            *bool `json:"enabled,omitempty" jsonschema:"Turn automatic disruptions on or off"`
	IntelligenceLevel  *int  `json:"intelligence_level,omitempty" jsonschema:"Operator intelligence level from 1 to 5"`
	AdaptiveFrequency  *bool `json:"adaptive_frequency,omitempty" jsonschema:"Scale the cooldown by population telemetry"`
	ContextualTriggers *bool `json:"contextual_triggers,omitempty" jsonschema:"Pick templates by telemetry instead of uniformly"`
}

// ControllerOutput defines the output for the socio_controller tool.
type ControllerOutput struct {
	Status  disruption.Status `json:"status" jsonschema:"Controller settings and counters after the update"`
	Changed []string          `json:"changed,omitempty" jsonschema:"Settings that were changed"`
	At      time.Time         `json:"at" jsonschema:"Time of the update"`
}
