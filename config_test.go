package hyperrelay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, DefaultName, config.Name)
	assert.Equal(t, 10000, config.Capacity)
	assert.False(t, config.BlockWhenFull)
	assert.Zero(t, config.DrainTimeout)
	assert.Nil(t, config.Monitor)
	assert.NotNil(t, config.Logger)
	require.NoError(t, config.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "zero capacity", mutate: func(c *Config) { c.Capacity = 0 }, wantErr: ErrInvalidCapacity},
		{name: "negative capacity", mutate: func(c *Config) { c.Capacity = -5 }, wantErr: ErrInvalidCapacity},
		{name: "negative drain timeout", mutate: func(c *Config) { c.DrainTimeout = -time.Second }, wantErr: ErrInvalidDrainTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(&config)

			err := config.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestConfigWithDefaults(t *testing.T) {
	config := Config{Capacity: 3}.WithDefaults()

	assert.Equal(t, DefaultName, config.Name)
	assert.NotNil(t, config.Logger)
	assert.Equal(t, 3, config.Capacity)
}

func TestConfigBuilder(t *testing.T) {
	slot := &InspectorSlot{}
	logger := NewNoop()
	called := false

	config := NewConfigBuilder().
		WithName("audit").
		WithCapacity(42).
		WithBlockWhenFull(true).
		WithDrainTimeout(2 * time.Second).
		WithMonitor(slot).
		WithLogger(logger).
		WithMetricsHandler(func(context.Context, Metrics) { called = true }).
		Build()

	require.NotNil(t, config)
	assert.Equal(t, "audit", config.Name)
	assert.Equal(t, 42, config.Capacity)
	assert.True(t, config.BlockWhenFull)
	assert.Equal(t, 2*time.Second, config.DrainTimeout)
	assert.Same(t, slot, config.Monitor)
	assert.Equal(t, logger, config.Logger)

	config.MetricsHandler(context.Background(), Metrics{})
	assert.True(t, called)
}

func TestConfigBuilderReturnsCopies(t *testing.T) {
	builder := NewConfigBuilder().WithCapacity(1)
	first := builder.Build()

	builder.WithCapacity(2)

	assert.Equal(t, 1, first.Capacity)
	assert.Equal(t, 2, builder.Build().Capacity)
}
