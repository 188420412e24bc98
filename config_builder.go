package hyperrelay

import (
	"time"
)

// ConfigBuilder provides a fluent API for constructing relay configurations.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder creates a new builder seeded with DefaultConfig.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{config: DefaultConfig()}
}

// WithName sets the relay name.
// Example: builder.WithName("audit").
func (b *ConfigBuilder) WithName(name string) *ConfigBuilder {
	b.config.Name = name

	return b
}

// WithCapacity sets the maximum number of buffered records.
func (b *ConfigBuilder) WithCapacity(capacity int) *ConfigBuilder {
	b.config.Capacity = capacity

	return b
}

// WithBlockWhenFull makes producers wait for free space instead of dropping records.
func (b *ConfigBuilder) WithBlockWhenFull(block bool) *ConfigBuilder {
	b.config.BlockWhenFull = block

	return b
}

// WithDrainTimeout bounds how long Close waits for the buffer to drain.
func (b *ConfigBuilder) WithDrainTimeout(timeout time.Duration) *ConfigBuilder {
	b.config.DrainTimeout = timeout

	return b
}

// WithMonitor sets the monitor handed the relay's Inspector.
func (b *ConfigBuilder) WithMonitor(monitor Monitor) *ConfigBuilder {
	b.config.Monitor = monitor

	return b
}

// WithLogger sets the logger receiving lifecycle diagnostics.
func (b *ConfigBuilder) WithLogger(logger Logger) *ConfigBuilder {
	b.config.Logger = logger

	return b
}

// WithMetricsHandler sets a per-relay metrics handler.
func (b *ConfigBuilder) WithMetricsHandler(handler MetricsHandler) *ConfigBuilder {
	b.config.MetricsHandler = handler

	return b
}

// Build returns the built configuration.
func (b *ConfigBuilder) Build() *Config {
	config := b.config

	return &config
}
