// Package hyperrelay defines the contracts of a bounded asynchronous relay: a
// component that decouples a high-rate producer of records from a slower,
// fallible consumer using a fixed-size buffer drained by a single dedicated
// worker goroutine.
//
// This package provides:
// - The Consumer capability and the Handle that states who releases it
// - Failure reporting (FailureKind, Failure, FailureListener) and the process-wide SelfLog
// - Live inspection (Inspector) and health-check registration (Monitor)
// - Configuration (Config, ConfigBuilder) and metrics snapshots with a Prometheus-style exporter
// - A minimal structured Logger contract used for lifecycle diagnostics
//
// The concrete relay lives in the relay package:
//
//	sink, err := relay.New(ctx, hyperrelay.Borrow(consumer), hyperrelay.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer sink.Close()
//
//	sink.Submit(record)
//
// Producers never receive errors from Submit. Rejected, dropped and failed
// records are reported asynchronously through the configured FailureListener.
package hyperrelay

import (
	"context"
	"io"
)

// Consumer processes one record at a time on the relay worker goroutine.
// A returned error marks that record as failed; the relay keeps going.
type Consumer[T any] interface {
	Consume(ctx context.Context, record T) error
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc[T any] func(ctx context.Context, record T) error

// Consume calls f(ctx, record).
func (f ConsumerFunc[T]) Consume(ctx context.Context, record T) error {
	return f(ctx, record)
}

// Submitter is the producer-facing side of a relay.
type Submitter[T any] interface {
	Submit(record T)
}

// Handle pairs a consumer with the function that releases the resources it
// owns. A relay calls Release exactly once, after its worker has drained and
// exited. A nil Release means the relay does not own the consumer.
type Handle[T any] struct {
	Consumer Consumer[T]
	Release  func() error
}

// Borrow returns a handle for a consumer whose lifetime is managed by the caller.
func Borrow[T any](consumer Consumer[T]) Handle[T] {
	return Handle[T]{Consumer: consumer}
}

// Own returns a handle that releases the consumer with release when the relay shuts down.
func Own[T any](consumer Consumer[T], release func() error) Handle[T] {
	return Handle[T]{Consumer: consumer, Release: release}
}

// OwnCloser returns a handle that closes closer when the relay shuts down.
func OwnCloser[T any](consumer Consumer[T], closer io.Closer) Handle[T] {
	if closer == nil {
		return Borrow(consumer)
	}

	return Handle[T]{Consumer: consumer, Release: closer.Close}
}

// Owned reports whether the relay is responsible for releasing the consumer.
func (h Handle[T]) Owned() bool {
	return h.Release != nil
}
