// Package config provides unified configuration loading for socioscope.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nvandessel/socioscope/internal/constants"
	"gopkg.in/yaml.v3"
)

// SocioConfig contains all socioscope configuration settings.
type SocioConfig struct {
	// Engine contains analysis and decision engine settings.
	Engine EngineConfig `json:"engine" yaml:"engine"`

	// Schedule sets the cadence of each pass.
	Schedule ScheduleConfig `json:"schedule" yaml:"schedule"`

	// World configures the demo population driven by `socioscope run`.
	World WorldConfig `json:"world" yaml:"world"`

	// Feed configures the live websocket event feed.
	Feed FeedConfig `json:"feed" yaml:"feed"`

	// Logging contains settings for operational and decision logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// EngineConfig configures grouping, pattern detection and the disruption engine.
type EngineConfig struct {
	// IntelligenceLevel scales disruption probability and strength. Range 1..5.
	IntelligenceLevel int `json:"intelligence_level" yaml:"intelligence_level"`

	// AdaptiveFrequency derives the disruption cooldown from telemetry.
	AdaptiveFrequency bool `json:"adaptive_frequency" yaml:"adaptive_frequency"`

	// ContextualTriggers selects disruption templates from telemetry instead
	// of drawing them uniformly.
	ContextualTriggers bool `json:"contextual_triggers" yaml:"contextual_triggers"`

	// AutoMode enables scheduled disruption decisions. When false only manual
	// force triggers emit.
	AutoMode bool `json:"auto_mode" yaml:"auto_mode"`

	// MaxDistance is the spatial grouping threshold.
	MaxDistance float64 `json:"max_distance" yaml:"max_distance"`

	// ProximityThreshold is the intelligence cluster radius.
	ProximityThreshold float64 `json:"proximity_threshold" yaml:"proximity_threshold"`

	// Retention is the number of analysis events kept in memory.
	Retention int `json:"retention" yaml:"retention"`
}

// ScheduleConfig sets independent cadences for each pass.
type ScheduleConfig struct {
	Cluster   time.Duration `json:"cluster" yaml:"cluster"`
	Decision  time.Duration `json:"decision" yaml:"decision"`
	Telemetry time.Duration `json:"telemetry" yaml:"telemetry"`
}

// WorldConfig configures the demo population.
type WorldConfig struct {
	Population int           `json:"population" yaml:"population"`
	Seed       uint64        `json:"seed" yaml:"seed"`
	Step       time.Duration `json:"step" yaml:"step"`
	Width      float64       `json:"width" yaml:"width"`
	Height     float64       `json:"height" yaml:"height"`
}

// FeedConfig configures the websocket feed.
type FeedConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

// LoggingConfig configures socioscope's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables decision logging to ~/.socioscope/decisions.jsonl.
	Level string `json:"level" yaml:"level"`
}

// Default returns a SocioConfig with sensible defaults.
func Default() *SocioConfig {
	return &SocioConfig{
		Engine: EngineConfig{
			IntelligenceLevel:  constants.DefaultIntelligenceLevel,
			AdaptiveFrequency:  true,
			ContextualTriggers: true,
			AutoMode:           true,
			MaxDistance:        constants.DefaultMaxDistance,
			ProximityThreshold: constants.DefaultProximityThreshold,
			Retention:          constants.DefaultEventRetention,
		},
		Schedule: ScheduleConfig{
			Cluster:   5 * time.Second,
			Decision:  2 * time.Second,
			Telemetry: time.Second,
		},
		World: WorldConfig{
			Population: 60,
			Seed:       42,
			Step:       time.Second,
			Width:      800,
			Height:     600,
		},
		Feed: FeedConfig{
			Enabled: false,
			Addr:    "127.0.0.1:8765",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Dir returns the socioscope state directory: $SOCIOSCOPE_HOME when set,
// otherwise ~/.socioscope.
func Dir() (string, error) {
	if v := os.Getenv("SOCIOSCOPE_HOME"); v != "" {
		return v, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(homeDir, ".socioscope"), nil
}

// Path returns the default config file location.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.socioscope/config.yaml -> environment variables
func Load() (*SocioConfig, error) {
	config := Default()

	if configPath, err := Path(); err == nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Keys missing
// from the file keep their defaults.
func LoadFromFile(path string) (*SocioConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	config.Feed.Addr = expandEnvVars(config.Feed.Addr)

	return config, nil
}

// Save writes the configuration to path, creating the directory if needed.
func (c *SocioConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *SocioConfig) Validate() error {
	if c.Engine.IntelligenceLevel < constants.MinIntelligenceLevelSetting ||
		c.Engine.IntelligenceLevel > constants.MaxIntelligenceLevelSetting {
		return fmt.Errorf("intelligence_level must be between %d and %d, got %d",
			constants.MinIntelligenceLevelSetting, constants.MaxIntelligenceLevelSetting, c.Engine.IntelligenceLevel)
	}
	if c.Engine.MaxDistance <= 0 {
		return fmt.Errorf("max_distance must be positive, got %f", c.Engine.MaxDistance)
	}
	if c.Engine.ProximityThreshold <= 0 {
		return fmt.Errorf("proximity_threshold must be positive, got %f", c.Engine.ProximityThreshold)
	}
	if c.Engine.Retention <= 0 {
		return fmt.Errorf("retention must be positive, got %d", c.Engine.Retention)
	}

	// The scheduler runs at one-second resolution.
	for name, d := range map[string]time.Duration{
		"schedule.cluster":   c.Schedule.Cluster,
		"schedule.decision":  c.Schedule.Decision,
		"schedule.telemetry": c.Schedule.Telemetry,
	} {
		if d < time.Second {
			return fmt.Errorf("%s must be at least 1s, got %v", name, d)
		}
	}

	if c.World.Population < 0 {
		return fmt.Errorf("world.population must be non-negative, got %d", c.World.Population)
	}
	if c.World.Step <= 0 {
		return fmt.Errorf("world.step must be positive, got %v", c.World.Step)
	}
	if c.World.Width <= 0 || c.World.Height <= 0 {
		return fmt.Errorf("world dimensions must be positive, got %gx%g", c.World.Width, c.World.Height)
	}

	if c.Feed.Enabled && c.Feed.Addr == "" {
		return fmt.Errorf("feed.addr is required when the feed is enabled")
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// Keys lists every key accepted by Get and Set, in display order.
var Keys = []string{
	"engine.intelligence_level",
	"engine.adaptive_frequency",
	"engine.contextual_triggers",
	"engine.auto_mode",
	"engine.max_distance",
	"engine.proximity_threshold",
	"engine.retention",
	"schedule.cluster",
	"schedule.decision",
	"schedule.telemetry",
	"world.population",
	"world.seed",
	"world.step",
	"feed.enabled",
	"feed.addr",
	"logging.level",
}

// Get retrieves a configuration value by dot-notation key.
func (c *SocioConfig) Get(key string) (any, bool) {
	switch key {
	case "engine.intelligence_level":
		return c.Engine.IntelligenceLevel, true
	case "engine.adaptive_frequency":
		return c.Engine.AdaptiveFrequency, true
	case "engine.contextual_triggers":
		return c.Engine.ContextualTriggers, true
	case "engine.auto_mode":
		return c.Engine.AutoMode, true
	case "engine.max_distance":
		return c.Engine.MaxDistance, true
	case "engine.proximity_threshold":
		return c.Engine.ProximityThreshold, true
	case "engine.retention":
		return c.Engine.Retention, true
	case "schedule.cluster":
		return c.Schedule.Cluster.String(), true
	case "schedule.decision":
		return c.Schedule.Decision.String(), true
	case "schedule.telemetry":
		return c.Schedule.Telemetry.String(), true
	case "world.population":
		return c.World.Population, true
	case "world.seed":
		return c.World.Seed, true
	case "world.step":
		return c.World.Step.String(), true
	case "feed.enabled":
		return c.Feed.Enabled, true
	case "feed.addr":
		return c.Feed.Addr, true
	case "logging.level":
		return c.Logging.Level, true
	default:
		return nil, false
	}
}

// Set assigns a configuration value by dot-notation key, then validates the
// result. On error the config is left unchanged.
func (c *SocioConfig) Set(key, value string) error {
	next := *c
	if err := next.set(key, value); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

func (c *SocioConfig) set(key, value string) error {
	switch key {
	case "engine.intelligence_level":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid intelligence level: %s", value)
		}
		c.Engine.IntelligenceLevel = n
	case "engine.adaptive_frequency":
		c.Engine.AdaptiveFrequency = parseBool(value)
	case "engine.contextual_triggers":
		c.Engine.ContextualTriggers = parseBool(value)
	case "engine.auto_mode":
		c.Engine.AutoMode = parseBool(value)
	case "engine.max_distance":
		return setFloat(&c.Engine.MaxDistance, value)
	case "engine.proximity_threshold":
		return setFloat(&c.Engine.ProximityThreshold, value)
	case "engine.retention":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid retention: %s", value)
		}
		c.Engine.Retention = n
	case "schedule.cluster":
		return setDuration(&c.Schedule.Cluster, value)
	case "schedule.decision":
		return setDuration(&c.Schedule.Decision, value)
	case "schedule.telemetry":
		return setDuration(&c.Schedule.Telemetry, value)
	case "world.population":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid population: %s", value)
		}
		c.World.Population = n
	case "world.seed":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid seed: %s", value)
		}
		c.World.Seed = n
	case "world.step":
		return setDuration(&c.World.Step, value)
	case "feed.enabled":
		c.Feed.Enabled = parseBool(value)
	case "feed.addr":
		c.Feed.Addr = value
	case "logging.level":
		c.Logging.Level = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func parseBool(v string) bool {
	return v == "true" || v == "1"
}

func setFloat(dst *float64, value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid number: %s", value)
	}
	*dst = f
	return nil
}

func setDuration(dst *time.Duration, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration: %s", value)
	}
	*dst = d
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *SocioConfig) {
	if v := os.Getenv("SOCIOSCOPE_INTELLIGENCE_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Engine.IntelligenceLevel = n
		}
	}
	if v := os.Getenv("SOCIOSCOPE_ADAPTIVE_FREQUENCY"); v != "" {
		config.Engine.AdaptiveFrequency = parseBool(v)
	}
	if v := os.Getenv("SOCIOSCOPE_CONTEXTUAL_TRIGGERS"); v != "" {
		config.Engine.ContextualTriggers = parseBool(v)
	}
	if v := os.Getenv("SOCIOSCOPE_AUTO_MODE"); v != "" {
		config.Engine.AutoMode = parseBool(v)
	}
	if v := os.Getenv("SOCIOSCOPE_POPULATION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.World.Population = n
		}
	}
	if v := os.Getenv("SOCIOSCOPE_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.World.Seed = n
		}
	}
	if v := os.Getenv("SOCIOSCOPE_FEED_ENABLED"); v != "" {
		config.Feed.Enabled = parseBool(v)
	}
	if v := os.Getenv("SOCIOSCOPE_FEED_ADDR"); v != "" {
		config.Feed.Addr = v
	}
	if v := os.Getenv("SOCIOSCOPE_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
