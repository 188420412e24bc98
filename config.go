package hyperrelay

import (
	"time"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/hyperrelay/internal/constants"
)

// ErrInvalidDrainTimeout is returned when the drain timeout is negative.
var ErrInvalidDrainTimeout = ewrap.New("drain timeout cannot be negative")

const (
	// DefaultCapacity is the default number of buffered records.
	DefaultCapacity = constants.DefaultCapacity
	// DefaultName is the relay name used when none is configured.
	DefaultName = constants.DefaultName
)

// Config holds configuration for a relay.
type Config struct {
	// Name identifies the relay in failure reports, logs and metrics.
	Name string
	// Capacity is the maximum number of buffered records.
	Capacity int
	// BlockWhenFull makes Submit wait for free space instead of dropping the record.
	BlockWhenFull bool
	// DrainTimeout bounds how long Close waits for buffered records to be consumed (0 = wait indefinitely).
	DrainTimeout time.Duration
	// Monitor, when set, is handed the relay's Inspector for its lifetime.
	Monitor Monitor
	// Logger receives lifecycle diagnostics. Nil disables them.
	Logger Logger
	// MetricsHandler receives metrics snapshots in addition to the global handlers.
	// Snapshots are delivered from a goroutine owned by the sink, never from a
	// producer; a slow handler sees fewer, coalesced snapshots.
	MetricsHandler MetricsHandler
}

// DefaultConfig returns the default relay configuration: a 10000-record
// buffer that drops records when full and drains without a deadline.
func DefaultConfig() Config {
	return Config{
		Name:           DefaultName,
		Capacity:       DefaultCapacity,
		BlockWhenFull:  false,
		DrainTimeout:   0,
		Monitor:        nil,
		Logger:         NewNoop(),
		MetricsHandler: nil,
	}
}

// Validate reports whether the configuration can build a relay.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return ewrap.Wrap(ErrInvalidCapacity, "invalid relay configuration").
			WithMetadata("capacity", c.Capacity)
	}

	if c.DrainTimeout < 0 {
		return ewrap.Wrap(ErrInvalidDrainTimeout, "invalid relay configuration").
			WithMetadata("drain_timeout", c.DrainTimeout.String())
	}

	return nil
}

// WithDefaults returns a copy of c where the optional fields left empty are
// filled in. Capacity is not defaulted: a zero capacity is a configuration error.
func (c Config) WithDefaults() Config {
	if c.Name == "" {
		c.Name = DefaultName
	}

	if c.Logger == nil {
		c.Logger = NewNoop()
	}

	return c
}
