package hyperrelay

import (
	"context"
	"sync"

	"github.com/hyp3rd/hyperrelay/internal/constants"
)

// Metrics is a point-in-time snapshot of a relay's counters.
type Metrics struct {
	// Name is the configured relay name.
	Name string
	// ID uniquely identifies the relay instance.
	ID string
	// Submitted counts every call to Submit, whatever its outcome.
	Submitted uint64
	// Admitted counts records accepted into the buffer.
	Admitted uint64
	// Consumed counts records the consumer handled without error.
	Consumed uint64
	// Failed counts records the consumer rejected or panicked on.
	Failed uint64
	// Dropped counts records discarded because the buffer was full.
	Dropped uint64
	// Rejected counts records refused for any other reason: disposal, cancelled admission, worker fault.
	Rejected uint64
	// QueueDepth is the number of buffered records.
	QueueDepth int
	// Capacity is the maximum number of buffered records.
	Capacity int
}

// MetricsHandler receives relay metrics snapshots.
type MetricsHandler func(context.Context, Metrics)

//nolint:gochecknoglobals // relay metrics use a package-level registry for global handlers.
var metricsRegistryOnce = sync.OnceValue(func() *metricsHandlerRegistry {
	return &metricsHandlerRegistry{}
})

// RegisterMetricsHandler adds a global handler invoked when relay metrics are emitted.
func RegisterMetricsHandler(handler MetricsHandler) {
	if handler == nil {
		return
	}

	metricsRegistryOnce().register(handler)
}

// ClearMetricsHandlers removes all registered metrics handlers.
func ClearMetricsHandlers() {
	metricsRegistryOnce().reset()
}

// EmitMetrics notifies global handlers with the provided metrics snapshot.
func EmitMetrics(ctx context.Context, metrics Metrics) {
	handlers := metricsRegistryOnce().snapshot()
	if len(handlers) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DefaultTimeout)
	defer cancel()

	for _, handler := range handlers {
		handler(ctx, metrics)
	}
}

type metricsHandlerRegistry struct {
	mu       sync.RWMutex
	handlers []MetricsHandler
}

func (r *metricsHandlerRegistry) register(handler MetricsHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers = append(r.handlers, handler)
}

func (r *metricsHandlerRegistry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers = nil
}

func (r *metricsHandlerRegistry) snapshot() []MetricsHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.handlers) == 0 {
		return nil
	}

	clone := make([]MetricsHandler, len(r.handlers))
	copy(clone, r.handlers)

	return clone
}
