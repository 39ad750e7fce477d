package filter

import (
	"sync/atomic"

	"github.com/methetech/WheelScrollFixer/internal/model"
)

// Sink receives raw ticks while calibration is armed. Record runs on the
// hook goroutine and must return immediately.
type Sink interface {
	Record(model.Tick)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(model.Tick)

// Record calls f.
func (f SinkFunc) Record(t model.Tick) { f(t) }

type sinkSlot struct {
	sink Sink
}

type calibrationSlot struct {
	p atomic.Pointer[sinkSlot]
}

func (c *calibrationSlot) set(s Sink) {
	if s == nil {
		c.p.Store(nil)
		return
	}
	c.p.Store(&sinkSlot{sink: s})
}

func (c *calibrationSlot) get() Sink {
	slot := c.p.Load()
	if slot == nil {
		return nil
	}
	return slot.sink
}
