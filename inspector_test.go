package hyperrelay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fixedInspector struct {
	count, size int
	dropped     int64
}

func (f *fixedInspector) Count() int                  { return f.count }
func (f *fixedInspector) BufferSize() int             { return f.size }
func (f *fixedInspector) DroppedMessagesCount() int64 { return f.dropped }

func TestInspectorSlot(t *testing.T) {
	slot := &InspectorSlot{}
	assert.Nil(t, slot.Inspector())

	first := &fixedInspector{size: 2}
	second := &fixedInspector{size: 4}

	slot.StartMonitoring(first)
	assert.Same(t, first, slot.Inspector())

	slot.StartMonitoring(second)
	assert.Same(t, second, slot.Inspector())

	t.Run("stopping a stale inspector keeps the current one", func(t *testing.T) {
		slot.StopMonitoring(first)
		assert.Same(t, second, slot.Inspector())
	})

	t.Run("stopping the current inspector clears the slot", func(t *testing.T) {
		slot.StopMonitoring(second)
		assert.Nil(t, slot.Inspector())
	})

	t.Run("nil inspectors are ignored", func(t *testing.T) {
		slot.StartMonitoring(nil)
		assert.Nil(t, slot.Inspector())
	})
}

func TestMonitorFuncs(t *testing.T) {
	var started, stopped Inspector

	inspector := &fixedInspector{}
	monitor := MonitorFuncs{
		Start: func(i Inspector) { started = i },
		Stop:  func(i Inspector) { stopped = i },
	}

	monitor.StartMonitoring(inspector)
	monitor.StopMonitoring(inspector)

	assert.Same(t, inspector, started)
	assert.Same(t, inspector, stopped)

	assert.NotPanics(t, func() {
		MonitorFuncs{}.StartMonitoring(inspector)
		MonitorFuncs{}.StopMonitoring(inspector)
	})
}
