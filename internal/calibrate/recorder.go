package calibrate

import (
	"sync/atomic"

	"github.com/methetech/WheelScrollFixer/internal/model"
)

const defaultRecorderBuffer = 256

// Recorder is a calibration sink that hands ticks to a consumer goroutine.
// Record never blocks; ticks that do not fit in the buffer are counted and
// dropped.
type Recorder struct {
	ch      chan model.Tick
	dropped atomic.Uint64
}

// NewRecorder creates a recorder with room for size pending ticks.
func NewRecorder(size int) *Recorder {
	if size <= 0 {
		size = defaultRecorderBuffer
	}
	return &Recorder{ch: make(chan model.Tick, size)}
}

// Record implements filter.Sink.
func (r *Recorder) Record(t model.Tick) {
	select {
	case r.ch <- t:
	default:
		r.dropped.Add(1)
	}
}

// C returns the channel recorded ticks arrive on.
func (r *Recorder) C() <-chan model.Tick {
	return r.ch
}

// Dropped returns how many ticks were lost to a full buffer.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}
