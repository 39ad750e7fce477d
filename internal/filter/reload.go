package filter

import (
	"sync"
	"sync/atomic"

	"github.com/methetech/WheelScrollFixer/internal/model"
)

// Holder owns the single current Snapshot. Readers call Load without locking;
// writers serialize among themselves only.
type Holder struct {
	cur atomic.Pointer[Snapshot]

	mu  sync.Mutex
	gen uint64
}

// NewHolder returns a Holder already carrying a snapshot of s.
func NewHolder(s model.Settings) *Holder {
	h := &Holder{}
	h.Publish(s)
	return h
}

// Load returns the current snapshot. It never blocks.
func (h *Holder) Load() *Snapshot {
	return h.cur.Load()
}

// Publish builds a snapshot from s and makes it current in one pointer store.
// The after callbacks run on the caller's goroutine once the snapshot is
// visible to readers.
func (h *Holder) Publish(s model.Settings, after ...func(*Snapshot)) *Snapshot {
	snap := NewSnapshot(s)

	h.mu.Lock()
	h.gen++
	snap.gen = h.gen
	h.cur.Store(snap)
	h.mu.Unlock()

	for _, fn := range after {
		if fn != nil {
			fn(snap)
		}
	}
	return snap
}

// Update applies fn to a copy of the current settings and publishes the
// result. Concurrent updates are serialized so none is lost.
func (h *Holder) Update(fn func(*model.Settings), after ...func(*Snapshot)) *Snapshot {
	h.mu.Lock()
	s := h.cur.Load().Settings()
	fn(&s)
	snap := NewSnapshot(s)
	h.gen++
	snap.gen = h.gen
	h.cur.Store(snap)
	h.mu.Unlock()

	for _, cb := range after {
		if cb != nil {
			cb(snap)
		}
	}
	return snap
}
