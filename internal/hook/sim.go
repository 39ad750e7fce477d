package hook

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/methetech/WheelScrollFixer/internal/filter"
)

type simWindow struct {
	handle filter.WindowHandle
	name   string
}

type simEvent struct {
	ev    Event
	reply chan filter.Verdict
}

// Sim is an in-process platform. Events are fed with Dispatch and run through
// the installed callback on the goroutine that called Run, the same way a
// system hook delivers them.
type Sim struct {
	events chan simEvent
	window atomic.Pointer[simWindow]
	seq    atomic.Uintptr
	cb     atomic.Pointer[Callback]

	mu   sync.Mutex
	quit chan struct{}
}

// NewSim returns a simulated platform whose foreground app is app ("" for none).
func NewSim(app string) *Sim {
	s := &Sim{events: make(chan simEvent)}
	s.SetApp(app)
	return s
}

// SetApp changes the foreground app. Each change gets a new window handle.
func (s *Sim) SetApp(app string) {
	if app == "" {
		s.window.Store(&simWindow{})
		return
	}
	s.window.Store(&simWindow{handle: filter.WindowHandle(s.seq.Add(1)), name: app})
}

// ForegroundWindow implements filter.Foreground.
func (s *Sim) ForegroundWindow() filter.WindowHandle {
	return s.window.Load().handle
}

// ProcessName implements filter.Foreground.
func (s *Sim) ProcessName(h filter.WindowHandle) (string, error) {
	w := s.window.Load()
	if w.handle != h || w.name == "" {
		return "", ErrNotRunning
	}
	return w.name, nil
}

// Install implements Platform.
func (s *Sim) Install(cb Callback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quit != nil {
		return ErrAlreadyRunning
	}
	s.cb.Store(&cb)
	s.quit = make(chan struct{})
	return nil
}

// Run implements Platform.
func (s *Sim) Run() error {
	s.mu.Lock()
	quit := s.quit
	s.mu.Unlock()
	if quit == nil {
		return ErrNotRunning
	}
	for {
		select {
		case <-quit:
			return nil
		case se := <-s.events:
			cb := s.cb.Load()
			if cb == nil {
				se.reply <- filter.Deliver
				continue
			}
			se.reply <- (*cb)(se.ev)
		}
	}
}

// Uninstall implements Platform. Events still in flight are delivered.
func (s *Sim) Uninstall() error {
	s.cb.Store(nil)
	return nil
}

// PostQuit implements Platform.
func (s *Sim) PostQuit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quit == nil {
		return nil
	}
	close(s.quit)
	s.quit = nil
	return nil
}

// Dispatch feeds one event through the running loop and waits for the verdict.
// Without a running loop the event is delivered and ErrNotRunning returned.
func (s *Sim) Dispatch(ctx context.Context, ev Event) (filter.Verdict, error) {
	s.mu.Lock()
	quit := s.quit
	s.mu.Unlock()
	if quit == nil {
		return filter.Deliver, ErrNotRunning
	}

	reply := make(chan filter.Verdict, 1)
	select {
	case s.events <- simEvent{ev: ev, reply: reply}:
	case <-quit:
		return filter.Deliver, ErrNotRunning
	case <-ctx.Done():
		return filter.Deliver, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return filter.Deliver, ctx.Err()
	}
}
