package hyperrelay

import (
	"slices"
	"sync"

	"github.com/hyp3rd/ewrap"
)

// KindListener is a FailureListener that only wants failures of some kinds.
type KindListener[T any] interface {
	FailureListener[T]

	// Kinds returns the failure kinds the listener should be triggered for.
	Kinds() []FailureKind
}

// StandardListener provides a simpler way to implement the KindListener interface.
type StandardListener[T any] struct {
	// KindList contains the kinds this listener should trigger for.
	KindList []FailureKind
	// Handler is called when a matching failure is reported.
	Handler func(failure Failure[T])
}

// NewStandardListener creates a new StandardListener with the given kinds and handler.
// An empty kind list matches every kind.
func NewStandardListener[T any](kinds []FailureKind, handler func(failure Failure[T])) *StandardListener[T] {
	return &StandardListener[T]{
		KindList: kinds,
		Handler:  handler,
	}
}

// OnFailure implements FailureListener.
func (l *StandardListener[T]) OnFailure(failure Failure[T]) {
	if l.Handler != nil {
		l.Handler(failure)
	}
}

// Kinds implements KindListener.
func (l *StandardListener[T]) Kinds() []FailureKind {
	return l.KindList
}

// ListenerRegistry fans failures out to a set of named listeners. It is
// itself a FailureListener, so a relay can report to many listeners at once.
// A panicking listener does not prevent the others from being called; the
// panic is forwarded to the self-log.
type ListenerRegistry[T any] struct {
	mu sync.RWMutex

	listeners map[string]FailureListener[T]
	order     []string
}

// NewListenerRegistry creates an empty registry.
func NewListenerRegistry[T any]() *ListenerRegistry[T] {
	return &ListenerRegistry[T]{
		listeners: make(map[string]FailureListener[T]),
	}
}

// AddListener adds a named listener to the registry.
func (r *ListenerRegistry[T]) AddListener(name string, listener FailureListener[T]) error {
	if listener == nil {
		return ewrap.Wrap(ErrNilListener, "adding listener").WithMetadata("name", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.listeners[name]; exists {
		return ewrap.Wrap(ErrListenerExists, "adding listener").WithMetadata("name", name)
	}

	r.listeners[name] = listener
	r.order = append(r.order, name)

	return nil
}

// RemoveListener removes a listener by name.
func (r *ListenerRegistry[T]) RemoveListener(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.listeners[name]; !exists {
		return false
	}

	delete(r.listeners, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })

	return true
}

// GetListener retrieves a listener by name.
func (r *ListenerRegistry[T]) GetListener(name string) (FailureListener[T], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	listener, exists := r.listeners[name]

	return listener, exists
}

// Len returns the number of registered listeners.
func (r *ListenerRegistry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.listeners)
}

// ListenersFor returns the listeners that should trigger for kind, in registration order.
func (r *ListenerRegistry[T]) ListenersFor(kind FailureKind) []FailureListener[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []FailureListener[T]

	for _, name := range r.order {
		listener := r.listeners[name]

		if filtered, ok := listener.(KindListener[T]); ok {
			kinds := filtered.Kinds()
			if len(kinds) > 0 && !slices.Contains(kinds, kind) {
				continue
			}
		}

		result = append(result, listener)
	}

	return result
}

// OnFailure implements FailureListener.
func (r *ListenerRegistry[T]) OnFailure(failure Failure[T]) {
	for _, listener := range r.ListenersFor(failure.Kind) {
		r.fire(listener, failure)
	}
}

func (*ListenerRegistry[T]) fire(listener FailureListener[T], failure Failure[T]) {
	defer func() {
		if recovered := recover(); recovered != nil {
			CurrentSelfLog().Emit(Diagnostic{
				Source:  failure.Source,
				Kind:    failure.Kind,
				Message: "failure listener panicked",
				Records: len(failure.Records),
				Err:     ewrap.Newf("panic: %v", recovered),
			})
		}
	}()

	listener.OnFailure(failure)
}

var (
	_ FailureListener[any] = (*ListenerRegistry[any])(nil)
	_ KindListener[any]    = (*StandardListener[any])(nil)
)
