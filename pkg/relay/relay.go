// Package relay provides Sink, the bounded asynchronous relay.
//
// A Sink owns a fixed-size buffer and a single worker goroutine. Producers
// call Submit from any number of goroutines; the worker hands buffered
// records to the consumer one at a time, in admission order. Producers never
// receive errors: dropped, rejected and failed records are reported to the
// sink's FailureListener, which defaults to the process-wide self-log.
//
// Inspector values stay readable after shutdown and keep returning live
// values: Count reports what is still buffered (zero once drained), BufferSize
// the configured capacity and DroppedMessagesCount the final drop count.
//
// Metrics snapshots are published by a per-sink goroutine, coalescing bursts,
// so a slow MetricsHandler delays snapshots but never a producer or the worker.
// The final snapshot is delivered synchronously during shutdown.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/hyperrelay"
	"github.com/hyp3rd/hyperrelay/internal/queue"
	"github.com/hyp3rd/hyperrelay/internal/worker"
)

const (
	// MessageDisposed is reported for records submitted after shutdown started.
	MessageDisposed = "the sink has been disposed"
	// MessageStopped is reported for records submitted after the worker faulted.
	MessageStopped = "the sink has stopped"
	// MessageAdmissionCancelled is reported when a blocked submission is abandoned.
	MessageAdmissionCancelled = "admission cancelled"
	// MessageDrainTimeout is reported with the records abandoned when shutdown times out.
	MessageDrainTimeout = "timed out draining the sink; buffered records were not consumed"

	// idleShutdownGrace is how long a shutdown whose deadline has passed still
	// waits for a worker that has nothing left to deliver.
	idleShutdownGrace = 100 * time.Millisecond
)

// Option configures a Sink at construction.
type Option[T any] func(*Sink[T])

// WithFailureListener installs the failure listener at construction. It
// counts as the single replacement SetFailureListener allows.
func WithFailureListener[T any](listener hyperrelay.FailureListener[T]) Option[T] {
	return func(s *Sink[T]) {
		if listener == nil {
			return
		}

		s.listener.Store(&listenerRef[T]{listener: listener})
		s.listenerSet.Store(true)
	}
}

// Sink is a bounded asynchronous relay in front of a consumer.
type Sink[T any] struct {
	id     string
	source string
	cfg    hyperrelay.Config
	logger hyperrelay.Logger

	queue  *queue.Bounded[T]
	worker *worker.Worker[T]
	handle hyperrelay.Handle[T]

	listener    atomic.Pointer[listenerRef[T]]
	listenerSet atomic.Bool

	state     atomic.Int32
	submitted atomic.Uint64
	admitted  atomic.Uint64
	consumed  atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
	rejected  atomic.Uint64

	closeOnce    sync.Once
	timeoutOnce  sync.Once
	cancelWorker context.CancelFunc
	workerDone   chan struct{}
	stopped      chan struct{}
	stopErr      error
	startedAt    time.Time

	metricsKick chan struct{}
	metricsStop chan struct{}
	metricsDone chan struct{}
}

type listenerRef[T any] struct {
	listener hyperrelay.FailureListener[T]
}

// New builds a sink around the consumer in handle and starts its worker.
// Consume calls receive a context derived from ctx that is also cancelled
// when shutdown times out; cancelling ctx does not stop the sink.
// When cfg.Monitor is set it is given the sink's Inspector before New returns.
func New[T any](ctx context.Context, handle hyperrelay.Handle[T], cfg hyperrelay.Config, opts ...Option[T]) (*Sink[T], error) {
	if handle.Consumer == nil {
		return nil, ewrap.Wrap(hyperrelay.ErrNilConsumer, "creating relay").WithMetadata("name", cfg.Name)
	}

	cfg = cfg.WithDefaults()

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	buffer, err := queue.New[T](cfg.Capacity)
	if err != nil {
		return nil, err
	}

	if ctx == nil {
		ctx = context.Background()
	}

	id := uuid.NewString()

	s := &Sink[T]{
		id:          id,
		source:      cfg.Name + "/" + id,
		cfg:         cfg,
		logger:      cfg.Logger.WithFields(hyperrelay.Str("relay", cfg.Name), hyperrelay.Str("relay_id", id)),
		queue:       buffer,
		handle:      handle,
		workerDone:  make(chan struct{}),
		stopped:     make(chan struct{}),
		startedAt:   time.Now(),
		metricsKick: make(chan struct{}, 1),
		metricsStop: make(chan struct{}),
		metricsDone: make(chan struct{}),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.worker = worker.New(buffer, handle.Consumer, worker.Options[T]{
		Source:   s.source,
		Listener: s.currentListener,
		Logger:   s.logger,
		OnConsumed: func() {
			s.consumed.Add(1)
			s.requestMetrics()
		},
		OnFailed: func() {
			s.failed.Add(1)
			s.requestMetrics()
		},
		OnAbandoned: func(n int) {
			s.rejected.Add(uint64(n))
		},
		OnFault: func(error) {
			s.state.CompareAndSwap(int32(StateActive), int32(StateFaulted))
			s.requestMetrics()
		},
	})

	workerCtx, cancel := context.WithCancel(ctx)
	s.cancelWorker = cancel

	go func() {
		defer close(s.workerDone)

		s.worker.Run(workerCtx)
	}()

	go s.publishMetrics()

	if cfg.Monitor != nil {
		cfg.Monitor.StartMonitoring(s)
	}

	s.logger.Info("relay started",
		hyperrelay.Int("capacity", cfg.Capacity),
		hyperrelay.Bool("block_when_full", cfg.BlockWhenFull),
		hyperrelay.Duration("drain_timeout", cfg.DrainTimeout),
		hyperrelay.Bool("owns_consumer", handle.Owned()),
	)

	return s, nil
}

// ID returns the unique identifier of the sink instance.
func (s *Sink[T]) ID() string { return s.id }

// Name returns the configured sink name.
func (s *Sink[T]) Name() string { return s.cfg.Name }

// Source returns the name/id pair used in failure reports.
func (s *Sink[T]) Source() string { return s.source }

// State returns the current lifecycle state.
func (s *Sink[T]) State() State { return State(s.state.Load()) }

// Faulted reports whether the worker stopped unexpectedly. A faulted sink
// rejects every submission; health checks treat it as unhealthy.
func (s *Sink[T]) Faulted() bool { return s.worker.Faulted() }

// SetFailureListener replaces the default listener. It may succeed only once
// per sink, including a listener installed with WithFailureListener.
func (s *Sink[T]) SetFailureListener(listener hyperrelay.FailureListener[T]) error {
	if listener == nil {
		return ewrap.Wrap(hyperrelay.ErrNilListener, "setting failure listener").WithMetadata("relay", s.source)
	}

	if !s.listenerSet.CompareAndSwap(false, true) {
		return ewrap.Wrap(hyperrelay.ErrListenerAlreadySet, "setting failure listener").WithMetadata("relay", s.source)
	}

	s.listener.Store(&listenerRef[T]{listener: listener})

	return nil
}

// Submit hands a record to the sink. It never returns an error and, in drop
// mode, never blocks. See SubmitContext.
func (s *Sink[T]) Submit(record T) {
	s.SubmitContext(context.Background(), record)
}

// SubmitContext hands a record to the sink. In block mode it waits for free
// space until ctx is done; the abandoned record is then reported as a
// permanent failure. Every record that is not admitted is reported to the
// failure listener.
func (s *Sink[T]) SubmitContext(ctx context.Context, record T) {
	s.submitted.Add(1)
	defer s.requestMetrics()

	var err error

	if s.cfg.BlockWhenFull {
		if ctx == nil {
			ctx = context.Background()
		}

		err = s.queue.Admit(ctx, record)
	} else {
		err = s.queue.TryAdmit(record)
	}

	switch {
	case err == nil:
		s.admitted.Add(1)
	case errors.Is(err, hyperrelay.ErrQueueFull):
		s.dropped.Add(1)
		s.report(hyperrelay.Failure[T]{
			Source:  s.source,
			Kind:    hyperrelay.FailurePermanent,
			Message: fmt.Sprintf("unable to enqueue, capacity %d", s.cfg.Capacity),
			Records: []T{record},
			Err:     ewrap.Wrap(err, "dropping record").WithMetadata("capacity", s.cfg.Capacity),
		})
	case errors.Is(err, hyperrelay.ErrQueueClosed):
		s.rejected.Add(1)

		message := MessageDisposed
		if s.worker.Faulted() {
			message = MessageStopped
		}

		s.report(hyperrelay.Failure[T]{
			Source:  s.source,
			Kind:    hyperrelay.FailureFinal,
			Message: message,
			Records: []T{record},
			Err:     ewrap.Wrap(hyperrelay.ErrSinkClosed, "submitting record").WithMetadata("relay", s.source),
		})
	default:
		s.rejected.Add(1)
		s.report(hyperrelay.Failure[T]{
			Source:  s.source,
			Kind:    hyperrelay.FailurePermanent,
			Message: MessageAdmissionCancelled,
			Records: []T{record},
			Err:     ewrap.Wrapf(hyperrelay.ErrAdmissionCancelled, "submitting record: %v", err),
		})
	}
}

// Count implements hyperrelay.Inspector.
func (s *Sink[T]) Count() int { return s.queue.Len() }

// BufferSize implements hyperrelay.Inspector.
func (s *Sink[T]) BufferSize() int { return s.queue.Cap() }

// DroppedMessagesCount implements hyperrelay.Inspector.
func (s *Sink[T]) DroppedMessagesCount() int64 {
	return int64(s.dropped.Load()) //nolint:gosec // a drop counter cannot reach 2^63.
}

// Metrics returns a snapshot of the sink counters.
func (s *Sink[T]) Metrics() hyperrelay.Metrics {
	return hyperrelay.Metrics{
		Name:       s.cfg.Name,
		ID:         s.id,
		Submitted:  s.submitted.Load(),
		Admitted:   s.admitted.Load(),
		Consumed:   s.consumed.Load(),
		Failed:     s.failed.Load(),
		Dropped:    s.dropped.Load(),
		Rejected:   s.rejected.Load(),
		QueueDepth: s.queue.Len(),
		Capacity:   s.queue.Cap(),
	}
}

// Close shuts the sink down, waiting at most Config.DrainTimeout for the
// buffer to drain (indefinitely when zero).
func (s *Sink[T]) Close() error {
	ctx := context.Background()

	if s.cfg.DrainTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, s.cfg.DrainTimeout)
		defer cancel()
	}

	return s.Shutdown(ctx)
}

// Shutdown stops admission, waits for the worker to drain every admitted
// record, releases an owned consumer and stops monitoring, in that order.
//
// If ctx is done first, the records still buffered are abandoned and reported
// as a final failure, and ErrDrainTimeout is returned; the remaining steps run
// as soon as the consumer returns from its current call. A sink with nothing
// buffered and no consumer call in flight is given a short grace period
// instead, so an idle sink shuts down cleanly even with an expired ctx. Shutdown may be
// called repeatedly; the steps run once and later calls wait for them.
func (s *Sink[T]) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(s.beginShutdown)

	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-s.stopped:
		return s.stopErr
	default:
	}

	select {
	case <-s.stopped:
		return s.stopErr
	case <-ctx.Done():
		return s.expire(ctx.Err())
	}
}

// expire handles a shutdown deadline. When nothing is buffered and no record
// is being delivered, the worker is only finishing up and gets a short grace
// period. Otherwise the backlog is abandoned and ErrDrainTimeout returned.
func (s *Sink[T]) expire(cause error) error {
	if s.queue.Len() == 0 && !s.worker.Busy() {
		grace := time.NewTimer(idleShutdownGrace)
		defer grace.Stop()

		select {
		case <-s.stopped:
			return s.stopErr
		case <-grace.C:
		}
	}

	s.timeoutOnce.Do(s.abandonBacklog)

	return ewrap.Wrap(hyperrelay.ErrDrainTimeout, "shutting down relay").
		WithMetadata("relay", s.source).
		WithMetadata("cause", cause.Error())
}

// Stopped returns a channel closed once the sink reached StateStopped.
func (s *Sink[T]) Stopped() <-chan struct{} {
	return s.stopped
}

func (s *Sink[T]) beginShutdown() {
	s.state.CompareAndSwap(int32(StateActive), int32(StateClosing))
	s.logger.Info("relay draining", hyperrelay.Int("queued", s.queue.Len()))

	s.queue.Close()

	go s.finish()
}

func (s *Sink[T]) finish() {
	<-s.workerDone
	s.cancelWorker()

	errs := ewrap.NewErrorGroup()

	if s.worker.Faulted() {
		errs.Add(ewrap.Wrap(hyperrelay.ErrWorkerFault, "relay worker stopped before shutdown").
			WithMetadata("relay", s.source))
	}

	if s.handle.Release != nil {
		err := s.handle.Release()
		if err != nil {
			errs.Add(ewrap.Wrap(err, "releasing consumer").WithMetadata("relay", s.source))
		}
	}

	s.state.Store(int32(StateStopped))

	if s.cfg.Monitor != nil {
		s.cfg.Monitor.StopMonitoring(s)
	}

	close(s.metricsStop)
	<-s.metricsDone
	s.emitMetrics()

	metrics := s.Metrics()
	fields := []hyperrelay.Field{
		hyperrelay.Duration("uptime", time.Since(s.startedAt)),
		hyperrelay.Uint64("consumed", metrics.Consumed),
		hyperrelay.Uint64("failed", metrics.Failed),
		hyperrelay.Uint64("dropped", metrics.Dropped),
		hyperrelay.Uint64("rejected", metrics.Rejected),
	}

	if errs.HasErrors() {
		s.stopErr = errs
		s.logger.Error("relay stopped with errors", append(fields, hyperrelay.Err(errs))...)
	} else {
		s.logger.Info("relay stopped", fields...)
	}

	close(s.stopped)
}

// abandonBacklog takes back whatever is still buffered so the worker exits
// after its current record, and reports those records as final.
func (s *Sink[T]) abandonBacklog() {
	leftovers := s.queue.DrainRemaining()
	s.cancelWorker()

	s.logger.Warn("relay drain timed out",
		hyperrelay.Int("abandoned", len(leftovers)),
		hyperrelay.Bool("delivering", s.worker.Busy()),
	)

	if len(leftovers) == 0 {
		return
	}

	s.rejected.Add(uint64(len(leftovers)))

	s.report(hyperrelay.Failure[T]{
		Source:  s.source,
		Kind:    hyperrelay.FailureFinal,
		Message: MessageDrainTimeout,
		Records: leftovers,
		Err:     ewrap.Wrap(hyperrelay.ErrDrainTimeout, "shutting down relay").WithMetadata("relay", s.source),
	})
}

func (s *Sink[T]) currentListener() hyperrelay.FailureListener[T] {
	if ref := s.listener.Load(); ref != nil {
		return ref.listener
	}

	return hyperrelay.SelfLogListener[T]()
}

// report delivers a failure on a producer or shutdown goroutine. A panicking
// listener must not reach the producer, so the self-log takes over.
func (s *Sink[T]) report(failure hyperrelay.Failure[T]) {
	defer func() {
		if recovered := recover(); recovered != nil {
			hyperrelay.SelfLogListener[T]().OnFailure(failure)
		}
	}()

	s.currentListener().OnFailure(failure)
}

// requestMetrics asks the publisher for a snapshot without waiting for it.
func (s *Sink[T]) requestMetrics() {
	select {
	case s.metricsKick <- struct{}{}:
	default:
	}
}

// publishMetrics delivers requested snapshots until shutdown stops it.
func (s *Sink[T]) publishMetrics() {
	defer close(s.metricsDone)

	for {
		select {
		case <-s.metricsStop:
			return
		case <-s.metricsKick:
			s.emitMetrics()
		}
	}
}

func (s *Sink[T]) emitMetrics() {
	metrics := s.Metrics()

	if s.cfg.MetricsHandler != nil {
		s.cfg.MetricsHandler(context.Background(), metrics)
	}

	hyperrelay.EmitMetrics(context.Background(), metrics)
}

var (
	_ hyperrelay.Inspector      = (*Sink[any])(nil)
	_ hyperrelay.Submitter[any] = (*Sink[any])(nil)
)
