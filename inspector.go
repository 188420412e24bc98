package hyperrelay

import (
	"sync/atomic"
)

// Inspector is a read-only live view of a relay buffer. Each value is a
// point-in-time read; the three values are not a consistent snapshot.
type Inspector interface {
	// Count is the number of records currently awaiting consumption.
	Count() int
	// BufferSize is the configured maximum number of buffered records.
	BufferSize() int
	// DroppedMessagesCount is the number of records dropped because the buffer was full.
	DroppedMessagesCount() int64
}

// Monitor is handed a relay's Inspector for health checking. StartMonitoring
// is called while the relay is being built; StopMonitoring once the relay's
// worker has stopped during shutdown.
type Monitor interface {
	StartMonitoring(inspector Inspector)
	StopMonitoring(inspector Inspector)
}

// InspectorSlot is a Monitor that keeps a reference to the most recently
// started inspector. It is the minimal building block for health checks.
type InspectorSlot struct {
	current atomic.Pointer[inspectorRef]
}

type inspectorRef struct {
	inspector Inspector
}

// StartMonitoring implements Monitor.
func (s *InspectorSlot) StartMonitoring(inspector Inspector) {
	if inspector == nil {
		return
	}

	s.current.Store(&inspectorRef{inspector: inspector})
}

// StopMonitoring implements Monitor. The slot is cleared only if it still holds inspector.
func (s *InspectorSlot) StopMonitoring(inspector Inspector) {
	for {
		ref := s.current.Load()
		if ref == nil || ref.inspector != inspector {
			return
		}

		if s.current.CompareAndSwap(ref, nil) {
			return
		}
	}
}

// Inspector returns the monitored inspector, or nil when none is active.
func (s *InspectorSlot) Inspector() Inspector {
	ref := s.current.Load()
	if ref == nil {
		return nil
	}

	return ref.inspector
}

// MonitorFuncs adapts a pair of functions to the Monitor interface. Nil functions are skipped.
type MonitorFuncs struct {
	Start func(Inspector)
	Stop  func(Inspector)
}

// StartMonitoring implements Monitor.
func (m MonitorFuncs) StartMonitoring(inspector Inspector) {
	if m.Start != nil {
		m.Start(inspector)
	}
}

// StopMonitoring implements Monitor.
func (m MonitorFuncs) StopMonitoring(inspector Inspector) {
	if m.Stop != nil {
		m.Stop(inspector)
	}
}

var (
	_ Monitor = (*InspectorSlot)(nil)
	_ Monitor = MonitorFuncs{}
)
