// Package constants provides module-wide constant values used by the relay
// packages. These constants define default sizing, timeouts, environment names
// and other fixed values to ensure consistency across the codebase.
package constants

import "time"

const (
	// NonProductionEnvironment is the environment name for non-production environments.
	NonProductionEnvironment = "development"
	// DefaultTimeout bounds the delivery of metrics snapshots to registered handlers.
	DefaultTimeout = 5 * time.Second
	// DefaultCapacity is the default number of records a relay buffers.
	DefaultCapacity = 10000
	// DefaultName is the relay name used when none is configured.
	DefaultName = "relay"
	// DefaultSelfLogRate is the sustained number of self-log lines emitted per second.
	DefaultSelfLogRate = 10
	// DefaultSelfLogBurst is the number of self-log lines emitted back to back before throttling.
	DefaultSelfLogBurst = 50
	// DefaultHealthInterval is the evaluation period of the health monitor.
	DefaultHealthInterval = 10 * time.Second
	// DefaultSaturation is the queue fill ratio at which a relay is reported unhealthy.
	DefaultSaturation = 0.9
)
