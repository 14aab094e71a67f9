package otel

import "fmt"

// Config selects the span exporter and sampling for the process.
type Config struct {
	ServiceName    string `yaml:"service_name" json:"service_name"`
	ServiceVersion string `yaml:"service_version" json:"service_version"`
	Environment    string `yaml:"environment" json:"environment"`

	// Exporter is "stdout" or "none".
	Exporter string `yaml:"exporter" json:"exporter"`

	// SampleRate is the trace sampling ratio in [0, 1].
	SampleRate float64 `yaml:"sample_rate" json:"sample_rate"`
}

// DefaultConfig returns a configuration with tracing disabled.
func DefaultConfig() Config {
	return Config{
		ServiceName: "dvrk-bridge",
		Exporter:    "none",
		SampleRate:  1.0,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}
	switch c.Exporter {
	case "stdout", "none":
	default:
		return fmt.Errorf("unsupported exporter: %s", c.Exporter)
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("sample rate must be in [0, 1], got %f", c.SampleRate)
	}
	return nil
}
