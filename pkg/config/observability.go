package config

import (
	"fmt"
	"time"
)

// ObservabilityConfig configures tracing and metrics. Both are off by
// default and add nothing to the hot path when disabled.
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing,omitempty" json:"tracing,omitempty" jsonschema:"title=Tracing"`
	Metrics MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty" jsonschema:"title=Metrics"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,default=false"`

	// Exporter is "otlp" (gRPC collector) or "stdout" (debugging).
	Exporter string `yaml:"exporter,omitempty" json:"exporter,omitempty" jsonschema:"title=Exporter,enum=otlp,enum=stdout,default=otlp"`

	// Endpoint is the OTLP gRPC collector address.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" jsonschema:"title=Endpoint,default=localhost:4317"`

	// SamplingRate is the fraction of traces sampled, 0 to 1.
	SamplingRate float64 `yaml:"sampling_rate,omitempty" json:"sampling_rate,omitempty" jsonschema:"title=Sampling Rate,default=1"`

	// ServiceName identifies this process in traces.
	ServiceName string `yaml:"service_name,omitempty" json:"service_name,omitempty" jsonschema:"title=Service Name,default=minirag"`

	// Insecure disables TLS to the collector.
	Insecure *bool `yaml:"insecure,omitempty" json:"insecure,omitempty" jsonschema:"title=Insecure,default=true"`

	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,default=10s"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,default=false"`

	// Endpoint is the scrape path.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" jsonschema:"title=Endpoint,default=/metrics"`

	// Namespace prefixes every metric name.
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty" jsonschema:"title=Namespace,default=minirag"`
}

func (c *ObservabilityConfig) SetDefaults() {
	c.Tracing.SetDefaults()
	c.Metrics.SetDefaults()
}

func (c *ObservabilityConfig) Validate() error {
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

func (c *TracingConfig) SetDefaults() {
	if c.Exporter == "" {
		c.Exporter = "otlp"
	}
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4317"
	}
	if c.SamplingRate == 0 {
		c.SamplingRate = 1.0
	}
	if c.ServiceName == "" {
		c.ServiceName = "minirag"
	}
	if c.Insecure == nil {
		t := true
		c.Insecure = &t
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

func (c *TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Exporter {
	case "otlp", "stdout":
	default:
		return fmt.Errorf("invalid exporter %q (valid: otlp, stdout)", c.Exporter)
	}
	if c.Exporter == "otlp" && c.Endpoint == "" {
		return fmt.Errorf("endpoint is required for the otlp exporter")
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("sampling_rate must be between 0 and 1, got %g", c.SamplingRate)
	}
	return nil
}

// IsInsecure reports whether the collector connection skips TLS.
func (c *TracingConfig) IsInsecure() bool {
	return c.Insecure == nil || *c.Insecure
}

func (c *MetricsConfig) SetDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "/metrics"
	}
	if c.Namespace == "" {
		c.Namespace = "minirag"
	}
}

func (c *MetricsConfig) Validate() error {
	if c.Enabled && c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when metrics are enabled")
	}
	return nil
}
