// Package config loads and validates the bridge process configuration.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/samparadis/dvrk-ros/pkg/bus"
	"github.com/samparadis/dvrk-ros/pkg/observability/otel"
)

// Duration unmarshals from strings like "10ms" in both YAML and JSON.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"10ms\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"10ms\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// ArmConfig describes one bridged arm.
type ArmConfig struct {
	// Name is the arm name, e.g. PSM1. It selects the remote namespace.
	Name string `yaml:"name" json:"name"`

	// Type is the factory registry type name.
	Type string `yaml:"type" json:"type"`

	// Period is the task execution period.
	Period Duration `yaml:"period" json:"period"`

	// Configure optionally points at a component configuration file,
	// handed to the component if it is Configurable.
	Configure string `yaml:"configure,omitempty" json:"configure,omitempty"`
}

// MonitorConfig configures the monitor HTTP server.
type MonitorConfig struct {
	// Addr is the listen address, empty disables the monitor.
	Addr string `yaml:"addr" json:"addr"`

	// MetricsAddr is the metrics listen address, empty disables it.
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`

	// Username and PasswordHash (bcrypt) gate token issuance.
	Username     string `yaml:"username" json:"username"`
	PasswordHash string `yaml:"password_hash" json:"password_hash"`

	// JWTSecret signs issued tokens.
	JWTSecret string `yaml:"jwt_secret" json:"jwt_secret"`
}

// RecorderConfig configures joint-state archiving.
type RecorderConfig struct {
	// Path is the sqlite database file, empty disables recording.
	Path string `yaml:"path" json:"path"`
}

// Config is the full bridge process configuration.
type Config struct {
	// Bus selects the transport. If URL is empty the process runs on an
	// in-memory bus (single-process bench setups).
	Bus bus.NATSConfig `yaml:"bus" json:"bus"`

	Arms     []ArmConfig    `yaml:"arms" json:"arms"`
	Monitor  MonitorConfig  `yaml:"monitor" json:"monitor"`
	Recorder RecorderConfig `yaml:"recorder" json:"recorder"`

	// Tracing configures span export. An empty or "none" exporter leaves
	// tracing off.
	Tracing otel.Config `yaml:"tracing" json:"tracing"`
}

// DefaultConfig returns a configuration for a single-process bench setup.
func DefaultConfig() Config {
	return Config{
		Arms: []ArmConfig{
			{Name: "PSM1", Type: "dvrk_arm_from_remote", Period: Duration(10 * time.Millisecond)},
		},
	}
}

// Validate checks the configuration for wiring mistakes.
func (c *Config) Validate() error {
	if len(c.Arms) == 0 {
		return fmt.Errorf("at least one arm is required")
	}
	seen := make(map[string]bool)
	for i, a := range c.Arms {
		if a.Type == "" {
			return fmt.Errorf("arm %d: type is required", i)
		}
		if a.Period <= 0 {
			return fmt.Errorf("arm %d (%s): period must be positive", i, a.Name)
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate arm name %q", a.Name)
		}
		seen[a.Name] = true
	}
	if c.Monitor.Addr != "" && c.Monitor.JWTSecret == "" {
		return fmt.Errorf("monitor: jwt_secret is required when the monitor is enabled")
	}
	return nil
}
