// Package config loads agent settings from a YAML file and overlays
// GRIDSWAP_* environment variables on top, so a container can run from
// a shared file while the compose environment pins per-agent identity.
//
// Environment keys map onto the file layout by section: the first
// underscore after the prefix splits section from field, so
// GRIDSWAP_AGENT_ID sets agent.id and GRIDSWAP_SIM_INTERVAL_SECONDS
// sets sim.interval_seconds.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/gridswap/gridswap/pkg/domain"
)

// EnvPrefix marks the environment variables this package reads.
const EnvPrefix = "GRIDSWAP_"

// Config is the full runtime configuration of one agent process. The
// zero value is not usable; start from Default and overlay.
type Config struct {
	Agent   AgentConfig   `yaml:"agent"`
	Profile ProfileConfig `yaml:"profile"`
	Gateway GatewayConfig `yaml:"gateway"`
	Redis   RedisConfig   `yaml:"redis"`
	Sim     SimConfig     `yaml:"sim"`
	Report  ReportConfig  `yaml:"report"`
	Log     LogConfig     `yaml:"log"`
}

// AgentConfig identifies the agent and where it is reachable.
type AgentConfig struct {
	ID         string           `yaml:"id"`
	Type       domain.AgentType `yaml:"type"`
	ListenAddr string           `yaml:"listen_addr"`
	// PublicURL is the base URL peers use to reach this agent. It is
	// stamped into outgoing envelopes and registered with the gateway.
	PublicURL string `yaml:"public_url"`
	// Metrics toggles the /metrics endpoint.
	Metrics bool `yaml:"metrics"`
}

// ProfileConfig seeds the agent's energy position at startup.
type ProfileConfig struct {
	InitialKWh        float64 `yaml:"initial_kwh"`
	CapacityKWh       float64 `yaml:"capacity_kwh"`
	GenerationRateKW  float64 `yaml:"generation_rate_kw"`
	ConsumptionRateKW float64 `yaml:"consumption_rate_kw"`
}

// GatewayConfig covers both roles: URL and retry cadence for agents
// registering with a gateway, ListenAddr for running one.
type GatewayConfig struct {
	URL                  string `yaml:"url"`
	ListenAddr           string `yaml:"listen_addr"`
	RegisterRetrySeconds int    `yaml:"register_retry_seconds"`
}

// RedisConfig selects the session store backend. Disabled means the
// in-memory store, which is the right choice for a single process.
type RedisConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Address         string `yaml:"address"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	StateTTLSeconds int    `yaml:"state_ttl_seconds"`
}

// SimConfig shapes the background simulation loop.
type SimConfig struct {
	IntervalSeconds   int `yaml:"interval_seconds"`
	StartDelaySeconds int `yaml:"start_delay_seconds"`
	// DriftKWh is applied to the ledger each cycle before the tick:
	// positive models generation, negative consumption.
	DriftKWh float64 `yaml:"drift_kwh"`
}

// ReportConfig lists the fleet the report and MCP commands poll.
type ReportConfig struct {
	Agents          []string `yaml:"agents"`
	IntervalSeconds int      `yaml:"interval_seconds"`
}

// LogConfig holds the textual log level: debug, info, warn or error.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a locally runnable household configuration.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			ID:         "household-1",
			Type:       domain.AgentHousehold,
			ListenAddr: ":8001",
			PublicURL:  "http://localhost:8001",
			Metrics:    true,
		},
		Profile: ProfileConfig{
			InitialKWh:        4.0,
			CapacityKWh:       15.0,
			GenerationRateKW:  0.5,
			ConsumptionRateKW: 0.8,
		},
		Gateway: GatewayConfig{
			URL:                  "http://localhost:9000",
			ListenAddr:           ":9000",
			RegisterRetrySeconds: 5,
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
		},
		Sim: SimConfig{
			IntervalSeconds:   20,
			StartDelaySeconds: 5,
			DriftKWh:          -0.03,
		},
		Report: ReportConfig{
			IntervalSeconds: 10,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML
// file at path if one exists, then GRIDSWAP_* environment variables.
// An empty path skips the file layer; a missing file at an explicit
// path is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Environ()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays prefixed environment variables onto the config.
func (c *Config) applyEnv(environ []string) error {
	overlay := splitEnv(environ)
	if len(overlay) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           c,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return fmt.Errorf("build environment decoder: %w", err)
	}
	if err := dec.Decode(overlay); err != nil {
		return fmt.Errorf("apply environment overrides: %w", err)
	}
	return nil
}

// splitEnv turns GRIDSWAP_SECTION_FIELD=value pairs into the nested
// map shape the decoder expects. Unknown sections and fields are left
// for the decoder, which ignores keys the config has no home for.
func splitEnv(environ []string) map[string]map[string]string {
	sections := make(map[string]map[string]string)
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		key, value, ok := strings.Cut(kv[len(EnvPrefix):], "=")
		if !ok {
			continue
		}
		section, field, ok := strings.Cut(strings.ToLower(key), "_")
		if !ok || field == "" {
			continue
		}
		if sections[section] == nil {
			sections[section] = make(map[string]string)
		}
		sections[section][field] = value
	}
	return sections
}

// Validate checks the invariants a process cannot start without.
func (c *Config) Validate() error {
	if c.Agent.ID == "" {
		return fmt.Errorf("config: agent.id is required")
	}
	if !c.Agent.Type.Valid() {
		return fmt.Errorf("config: agent.type %q is not one of %q, %q, %q",
			c.Agent.Type, domain.AgentHousehold, domain.AgentSolar, domain.AgentUtility)
	}
	if c.Agent.ListenAddr == "" {
		return fmt.Errorf("config: agent.listen_addr is required")
	}
	if c.Agent.PublicURL == "" {
		return fmt.Errorf("config: agent.public_url is required")
	}
	if c.Gateway.URL == "" {
		return fmt.Errorf("config: gateway.url is required")
	}
	if err := c.AgentProfile().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Sim.IntervalSeconds <= 0 {
		return fmt.Errorf("config: sim.interval_seconds must be positive, got %d", c.Sim.IntervalSeconds)
	}
	if c.Sim.StartDelaySeconds < 0 {
		return fmt.Errorf("config: sim.start_delay_seconds must not be negative, got %d", c.Sim.StartDelaySeconds)
	}
	if c.Redis.Enabled && c.Redis.Address == "" {
		return fmt.Errorf("config: redis.address is required when redis is enabled")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// AgentProfile materializes the configured starting profile.
func (c *Config) AgentProfile() *domain.AgentProfile {
	return &domain.AgentProfile{
		AgentID:           c.Agent.ID,
		AgentType:         c.Agent.Type,
		CurrentEnergyKWh:  c.Profile.InitialKWh,
		MaxCapacityKWh:    c.Profile.CapacityKWh,
		GenerationRateKW:  c.Profile.GenerationRateKW,
		ConsumptionRateKW: c.Profile.ConsumptionRateKW,
	}
}

// TickInterval returns the simulation cadence as a duration.
func (s SimConfig) TickInterval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// StartDelay returns the pre-loop settle time as a duration.
func (s SimConfig) StartDelay() time.Duration {
	return time.Duration(s.StartDelaySeconds) * time.Second
}

// RegisterRetry returns the gateway registration retry cadence.
func (g GatewayConfig) RegisterRetry() time.Duration {
	return time.Duration(g.RegisterRetrySeconds) * time.Second
}

// StateTTL returns the Redis record lifetime; zero means keep forever.
func (r RedisConfig) StateTTL() time.Duration {
	return time.Duration(r.StateTTLSeconds) * time.Second
}

// Interval returns the report polling cadence.
func (r ReportConfig) Interval() time.Duration {
	return time.Duration(r.IntervalSeconds) * time.Second
}

// SlogLevel parses the configured level name.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log.level %q is not debug, info, warn or error", l.Level)
	}
}
