// Package worker implements the drain loop of a relay: a single goroutine
// that takes records from the buffer in FIFO order and hands them to the
// consumer one at a time.
//
// Consumer errors and panics are isolated per record and reported as
// permanent failures. Anything else that goes wrong inside the loop, such as
// a panicking failure listener, is a worker fault: the loop stops, the
// buffer is closed and whatever is still buffered is reported as final.
package worker

import (
	"context"
	"sync/atomic"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/hyperrelay"
)

const (
	// MessageConsumerFailed is reported with every record the consumer rejected.
	MessageConsumerFailed = "failed to emit record to consumer"
	// MessageWorkerFault is reported when the drain loop stops unexpectedly.
	MessageWorkerFault = "fatal error in worker"
	// MessageLeftovers is reported with the records still buffered after a worker fault.
	MessageLeftovers = "the sink has stopped; buffered records were not consumed"
)

// Source is the buffer the worker drains.
type Source[T any] interface {
	// DrainNext blocks for the next record; false means end-of-stream.
	DrainNext() (T, bool)
	// DrainRemaining removes every buffered record without waiting.
	DrainRemaining() []T
	// Close stops admission.
	Close() bool
}

// Options configures a Worker.
type Options[T any] struct {
	// Source identifies the relay in failure reports.
	Source string
	// Listener returns the failure listener to report to. It is resolved on every report.
	Listener func() hyperrelay.FailureListener[T]
	// Logger receives fault diagnostics.
	Logger hyperrelay.Logger
	// OnConsumed is called after a record was consumed without error.
	OnConsumed func()
	// OnFailed is called after the consumer rejected a record.
	OnFailed func()
	// OnAbandoned is called with the number of buffered records given up after a fault.
	OnAbandoned func(n int)
	// OnFault is called once the drain loop has faulted, before the fault is reported.
	OnFault func(err error)
}

// Worker drains a Source into a Consumer.
type Worker[T any] struct {
	source   Source[T]
	consumer hyperrelay.Consumer[T]
	opts     Options[T]
	faulted  atomic.Bool
	busy     atomic.Bool
}

// New creates a worker. Run must be called exactly once to start draining.
func New[T any](source Source[T], consumer hyperrelay.Consumer[T], opts Options[T]) *Worker[T] {
	if opts.Listener == nil {
		opts.Listener = hyperrelay.SelfLogListener[T]
	}

	if opts.Logger == nil {
		opts.Logger = hyperrelay.NewNoop()
	}

	return &Worker[T]{
		source:   source,
		consumer: consumer,
		opts:     opts,
	}
}

// Run drains the source until it reports end-of-stream or the loop faults.
// ctx is handed to the consumer; cancelling it does not stop the drain.
func (w *Worker[T]) Run(ctx context.Context) {
	defer func() {
		if recovered := recover(); recovered != nil {
			w.fault(recovered)
		}
	}()

	for {
		record, ok := w.source.DrainNext()
		if !ok {
			return
		}

		w.deliver(ctx, record)
	}
}

// Faulted reports whether the drain loop stopped because of a fault.
func (w *Worker[T]) Faulted() bool {
	return w.faulted.Load()
}

// Busy reports whether a record is being delivered: the consumer call or the
// failure report that follows it is in progress.
func (w *Worker[T]) Busy() bool {
	return w.busy.Load()
}

func (w *Worker[T]) deliver(ctx context.Context, record T) {
	w.busy.Store(true)
	defer w.busy.Store(false)

	err := w.consume(ctx, record)
	if err == nil {
		call(w.opts.OnConsumed)

		return
	}

	call(w.opts.OnFailed)

	w.opts.Listener().OnFailure(hyperrelay.Failure[T]{
		Source:  w.opts.Source,
		Kind:    hyperrelay.FailurePermanent,
		Message: MessageConsumerFailed,
		Records: []T{record},
		Err:     err,
	})
}

// consume converts a consumer panic into an error so one bad record cannot stop the loop.
func (w *Worker[T]) consume(ctx context.Context, record T) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = ewrap.Wrapf(hyperrelay.ErrConsumerPanic, "consuming record: %v", recovered)
		}
	}()

	return w.consumer.Consume(ctx, record)
}

func (w *Worker[T]) fault(recovered any) {
	w.faulted.Store(true)
	w.source.Close()

	err := ewrap.Wrapf(hyperrelay.ErrWorkerFault, "drain loop stopped: %v", recovered).
		WithMetadata("source", w.opts.Source)

	w.opts.Logger.Error(MessageWorkerFault, hyperrelay.Str("source", w.opts.Source), hyperrelay.Err(err))

	if w.opts.OnFault != nil {
		w.opts.OnFault(err)
	}

	w.report(hyperrelay.Failure[T]{
		Source:  w.opts.Source,
		Kind:    hyperrelay.FailureFinal,
		Message: MessageWorkerFault,
		Err:     err,
	})

	leftovers := w.source.DrainRemaining()
	if len(leftovers) == 0 {
		return
	}

	if w.opts.OnAbandoned != nil {
		w.opts.OnAbandoned(len(leftovers))
	}

	w.report(hyperrelay.Failure[T]{
		Source:  w.opts.Source,
		Kind:    hyperrelay.FailureFinal,
		Message: MessageLeftovers,
		Records: leftovers,
		Err:     err,
	})
}

// report delivers a failure after a fault. A listener that panics again is
// bypassed in favour of the self-log.
func (w *Worker[T]) report(failure hyperrelay.Failure[T]) {
	defer func() {
		if recovered := recover(); recovered != nil {
			hyperrelay.SelfLogListener[T]().OnFailure(failure)
		}
	}()

	w.opts.Listener().OnFailure(failure)
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}
