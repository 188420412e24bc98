package hyperrelay

import (
	"github.com/hyp3rd/ewrap"
)

// Common errors for the relay packages.
var (
	// ErrInvalidCapacity is returned when a relay or queue is configured with a non-positive capacity.
	ErrInvalidCapacity = ewrap.New("capacity must be a positive integer")

	// ErrNilConsumer is returned when a relay is built without a consumer.
	ErrNilConsumer = ewrap.New("consumer is required")

	// ErrQueueFull is reported when a record cannot be admitted because the buffer is full.
	ErrQueueFull = ewrap.New("relay buffer is full")

	// ErrQueueClosed is reported when a record is submitted after admission has stopped.
	ErrQueueClosed = ewrap.New("relay queue is closed")

	// ErrSinkClosed is returned when operating on a relay that has been shut down.
	ErrSinkClosed = ewrap.New("relay is closed")

	// ErrDrainTimeout is returned when shutdown gives up waiting for the worker to drain.
	ErrDrainTimeout = ewrap.New("timed out draining relay")

	// ErrAdmissionCancelled is reported when a blocked submission is abandoned by its context.
	ErrAdmissionCancelled = ewrap.New("admission cancelled")

	// ErrConsumerPanic wraps a panic raised by a consumer while handling a record.
	ErrConsumerPanic = ewrap.New("consumer panicked")

	// ErrWorkerFault is reported when the drain loop itself fails and stops.
	ErrWorkerFault = ewrap.New("relay worker fault")

	// ErrNilListener is returned when a nil failure listener is installed.
	ErrNilListener = ewrap.New("failure listener cannot be nil")

	// ErrListenerAlreadySet is returned when the failure listener is replaced more than once.
	ErrListenerAlreadySet = ewrap.New("failure listener already set")

	// ErrListenerExists is returned when a named listener is registered twice.
	ErrListenerExists = ewrap.New("listener already registered")
)
