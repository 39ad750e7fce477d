// Package hook connects a platform's wheel interception to the filter engine.
package hook

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/methetech/WheelScrollFixer/internal/filter"
	"github.com/methetech/WheelScrollFixer/internal/model"
)

var (
	// ErrAlreadyRunning is returned when a platform is installed twice.
	ErrAlreadyRunning = errors.New("wheel hook already installed")
	// ErrNotRunning is returned when events are sent to an idle platform.
	ErrNotRunning = errors.New("wheel hook not installed")
	// ErrInstallFailed wraps the platform's refusal to install the hook.
	ErrInstallFailed = errors.New("wheel hook install failed")
	// ErrUnsupported is returned on platforms without a system hook.
	ErrUnsupported = errors.New("system wheel hook is not supported on this platform")
)

// Event is one wheel notch as reported by the platform.
type Event struct {
	// Delta is the raw wheel delta; positive means away from the user.
	Delta int32
	// At is a monotonic timestamp.
	At time.Duration
}

// WheelDelta is the delta of one detent on a standard wheel.
const WheelDelta = 120

// NotchEvent builds the event for a single detent in direction d.
func NotchEvent(d model.Direction, at time.Duration) Event {
	return Event{Delta: int32(d) * WheelDelta, At: at}
}

// Callback decides what happens to one event. It runs on the hook goroutine
// and must return quickly.
type Callback func(Event) filter.Verdict

// Platform is an interception layer. Install, Run and Uninstall's effects are
// tied to the goroutine that called Install; PostQuit may be called from any
// goroutine.
type Platform interface {
	filter.Foreground
	// Install registers cb for every wheel event.
	Install(cb Callback) error
	// Run pumps events until PostQuit.
	Run() error
	// Uninstall removes the interception. Later events pass through.
	Uninstall() error
	// PostQuit makes Run return.
	PostQuit() error
}

// Observer sees every decision. It runs on the hook goroutine.
type Observer func(Event, filter.Decision)

// Runner owns the hook goroutine.
type Runner struct {
	platform Platform
	engine   *filter.Engine
	logger   *slog.Logger
	observe  Observer

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// NewRunner wires platform events into engine.
func NewRunner(platform Platform, engine *filter.Engine, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		platform: platform,
		engine:   engine,
		logger:   logger.With("component", "hook"),
	}
}

// WithObserver sets a decision observer. Call before Start.
func (r *Runner) WithObserver(o Observer) *Runner {
	r.observe = o
	return r
}

// Start installs the hook on a dedicated OS thread. Calling Start on a
// running Runner is a no-op.
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	ready := make(chan error, 1)
	done := make(chan struct{})
	go r.loop(ready, done)
	if err := <-ready; err != nil {
		r.logger.Error("wheel hook install failed", "error", err)
		return fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}
	r.running = true
	r.done = done
	r.logger.Info("wheel hook installed")
	return nil
}

// Stop uninstalls the hook and ends the loop. Safe to call repeatedly.
func (r *Runner) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return nil
	}

	uerr := r.platform.Uninstall()
	if uerr != nil {
		r.logger.Warn("wheel hook uninstall failed", "error", uerr)
	}
	// The loop is still alive when the quit cannot be posted, so the runner
	// stays running and Stop can be retried.
	perr := r.platform.PostQuit()
	if perr != nil {
		r.logger.Warn("wheel hook quit failed", "error", perr)
		return errors.Join(uerr, perr)
	}
	<-r.done
	r.running = false
	c := r.engine.Counters()
	r.logger.Info("wheel hook stopped",
		"delivered", c.Delivered,
		"suppressed", c.Suppressed,
		"blocked_up", c.BlockedUp,
		"blocked_down", c.BlockedDown,
		"faults", c.Faults,
	)
	return uerr
}

// Running reports whether the hook is installed.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Runner) loop(ready chan<- error, done chan<- struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(done)

	if err := r.platform.Install(r.callback); err != nil {
		ready <- err
		return
	}
	ready <- nil
	if err := r.platform.Run(); err != nil {
		r.logger.Error("wheel hook loop failed", "error", err)
	}
}

// callback never panics into the platform: a failing observer delivers the tick.
func (r *Runner) callback(ev Event) (v filter.Verdict) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("wheel hook callback panicked", "panic", rec)
			v = filter.Deliver
		}
	}()
	d := r.engine.Handle(model.Tick{At: ev.At, Dir: model.DirectionFromDelta(ev.Delta)})
	if r.observe != nil {
		r.observe(ev, d)
	}
	return d.Verdict
}
