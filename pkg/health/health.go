// Package health exposes relay saturation through the standard gRPC health
// checking protocol.
//
// A Monitor is passed to relays as their Config.Monitor. It keeps every
// started inspector and reports the configured service as SERVING while at
// least one relay is monitored and none is saturated or newly dropping
// records. Register Server() on a grpc.Server to serve the status.
package health

import (
	"context"
	"sync"
	"time"

	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/hyp3rd/hyperrelay"
	"github.com/hyp3rd/hyperrelay/internal/constants"
)

// Option configures a Monitor.
type Option func(*Monitor)

// WithService sets the service name the status is published under.
// The empty name is the server-wide status.
func WithService(service string) Option {
	return func(m *Monitor) {
		m.service = service
	}
}

// WithSaturation sets the fill ratio of a buffer at which its relay is
// considered unhealthy. Values outside (0, 1] are ignored.
func WithSaturation(threshold float64) Option {
	return func(m *Monitor) {
		if threshold > 0 && threshold <= 1 {
			m.saturation = threshold
		}
	}
}

// WithLogger sets the logger status transitions are written to.
func WithLogger(logger hyperrelay.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithServer publishes the status on an existing health server.
func WithServer(server *grpchealth.Server) Option {
	return func(m *Monitor) {
		if server != nil {
			m.server = server
		}
	}
}

type tracked struct {
	dropped int64
}

// Monitor is a hyperrelay.Monitor backed by a gRPC health server.
type Monitor struct {
	mu         sync.Mutex
	server     *grpchealth.Server
	service    string
	saturation float64
	logger     hyperrelay.Logger
	inspectors map[hyperrelay.Inspector]*tracked
	status     healthpb.HealthCheckResponse_ServingStatus
}

// New creates a Monitor. The status starts as NOT_SERVING until a relay is monitored.
func New(opts ...Option) *Monitor {
	m := &Monitor{
		saturation: constants.DefaultSaturation,
		logger:     hyperrelay.NewNoop(),
		inspectors: make(map[hyperrelay.Inspector]*tracked),
		status:     healthpb.HealthCheckResponse_NOT_SERVING,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.server == nil {
		m.server = grpchealth.NewServer()
	}

	m.server.SetServingStatus(m.service, m.status)

	return m
}

// Server returns the health server, ready for healthpb.RegisterHealthServer.
func (m *Monitor) Server() *grpchealth.Server {
	return m.server
}

// Service returns the service name the status is published under.
func (m *Monitor) Service() string {
	return m.service
}

// StartMonitoring implements hyperrelay.Monitor.
func (m *Monitor) StartMonitoring(inspector hyperrelay.Inspector) {
	if inspector == nil {
		return
	}

	m.mu.Lock()
	m.inspectors[inspector] = &tracked{dropped: inspector.DroppedMessagesCount()}
	m.mu.Unlock()

	m.Evaluate()
}

// StopMonitoring implements hyperrelay.Monitor.
func (m *Monitor) StopMonitoring(inspector hyperrelay.Inspector) {
	if inspector == nil {
		return
	}

	m.mu.Lock()
	delete(m.inspectors, inspector)
	m.mu.Unlock()

	m.Evaluate()
}

// Monitored returns the number of relays currently monitored.
func (m *Monitor) Monitored() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.inspectors)
}

// Evaluate recomputes and publishes the status. A relay is unhealthy when
// its buffer is at or above the saturation threshold, when it dropped
// records since the previous evaluation, or when its worker has faulted.
func (m *Monitor) Evaluate() healthpb.HealthCheckResponse_ServingStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := healthpb.HealthCheckResponse_SERVING
	if len(m.inspectors) == 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	unhealthy := 0

	for inspector, state := range m.inspectors {
		dropped := inspector.DroppedMessagesCount()
		newlyDropped := dropped > state.dropped
		state.dropped = dropped

		if newlyDropped || m.saturated(inspector) || faulted(inspector) {
			unhealthy++
		}
	}

	if unhealthy > 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	if status != m.status {
		m.logger.Info("relay health changed",
			hyperrelay.Str("service", m.service),
			hyperrelay.Str("status", status.String()),
			hyperrelay.Int("monitored", len(m.inspectors)),
			hyperrelay.Int("unhealthy", unhealthy),
		)
	}

	m.status = status
	m.server.SetServingStatus(m.service, status)

	return status
}

// faultReporter is implemented by relays that can tell their worker stopped.
type faultReporter interface {
	Faulted() bool
}

func faulted(inspector hyperrelay.Inspector) bool {
	reporter, ok := inspector.(faultReporter)

	return ok && reporter.Faulted()
}

func (m *Monitor) saturated(inspector hyperrelay.Inspector) bool {
	size := inspector.BufferSize()
	if size <= 0 {
		return false
	}

	return float64(inspector.Count()) >= m.saturation*float64(size)
}

// Run evaluates the status every interval until ctx is done. A non-positive
// interval selects the default.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = constants.DefaultHealthInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Evaluate()
		}
	}
}

var _ hyperrelay.Monitor = (*Monitor)(nil)
