package filter

import (
	"sync/atomic"
	"time"

	"github.com/methetech/WheelScrollFixer/internal/model"
)

// Momentum tiers. Gaps shorter than these before an opposite tick raise the
// reversal threshold by the matching boost.
const (
	fastGap    = 100 * time.Millisecond
	fastBoost  = 2
	quickGap   = 200 * time.Millisecond
	quickBoost = 1
)

// Verdict is what the platform should do with a tick.
type Verdict uint8

const (
	// Deliver passes the tick on to the rest of the input pipeline.
	Deliver Verdict = iota
	// Suppress consumes the tick.
	Suppress
)

func (v Verdict) String() string {
	if v == Suppress {
		return "suppress"
	}
	return "deliver"
}

// Reason records which rule produced a verdict.
type Reason uint8

const (
	ReasonDisabled Reason = iota
	ReasonBlacklisted
	ReasonCalibrating
	ReasonAccepted
	ReasonProvisional
	ReasonConfirmed
	ReasonMismatch
	ReasonSameDirection
	ReasonPhysics
	ReasonThresholdMet
	ReasonBelowThreshold
	ReasonFault
)

var reasonNames = [...]string{
	ReasonDisabled:       "disabled",
	ReasonBlacklisted:    "blacklisted",
	ReasonCalibrating:    "calibrating",
	ReasonAccepted:       "accepted",
	ReasonProvisional:    "provisional",
	ReasonConfirmed:      "confirmed",
	ReasonMismatch:       "mismatch",
	ReasonSameDirection:  "same-direction",
	ReasonPhysics:        "physics",
	ReasonThresholdMet:   "threshold-met",
	ReasonBelowThreshold: "below-threshold",
	ReasonFault:          "fault",
}

func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "unknown"
}

// Decision is the outcome for one tick.
type Decision struct {
	Verdict Verdict
	Reason  Reason
	// Expired is set when the tick arrived after the session went stale.
	Expired bool
}

// SessionState is the engine's per-gesture memory. A zero Direction means unset.
type SessionState struct {
	LastDir    model.Direction
	LastAt     time.Duration
	PendingDir model.Direction
	Opposite   int
}

func (s *SessionState) reset() {
	s.LastDir = 0
	s.PendingDir = 0
	s.Opposite = 0
}

// Counters are diagnostic totals. They only grow.
type Counters struct {
	Delivered   uint64
	Suppressed  uint64
	BlockedUp   uint64
	BlockedDown uint64
	Faults      uint64
}

type counters struct {
	delivered   atomic.Uint64
	suppressed  atomic.Uint64
	blockedUp   atomic.Uint64
	blockedDown atomic.Uint64
	faults      atomic.Uint64
}

// Engine decides, tick by tick, whether a wheel notch is a genuine scroll or
// encoder bounce.
//
// Handle and HandleApp must only be called from one goroutine (the hook
// goroutine). Reload, SetCalibrationSink and Counters are safe from anywhere.
type Engine struct {
	holder   *Holder
	resolver *AppResolver
	sink     calibrationSlot

	state    SessionState
	stateGen uint64

	counters counters
}

// NewEngine builds an engine reading settings from holder. fg may be nil, in
// which case no tick has an app identity.
func NewEngine(holder *Holder, fg Foreground) *Engine {
	return &Engine{
		holder:   holder,
		resolver: NewAppResolver(fg),
	}
}

// Reload publishes new settings. The session resets on the next tick.
func (e *Engine) Reload(s model.Settings, after ...func(*Snapshot)) *Snapshot {
	return e.holder.Publish(s, after...)
}

// Snapshot returns the settings currently in effect.
func (e *Engine) Snapshot() *Snapshot {
	return e.holder.Load()
}

// SetCalibrationSink arms s, or disarms calibration when s is nil.
func (e *Engine) SetCalibrationSink(s Sink) {
	e.sink.set(s)
}

// Calibrating reports whether a sink is armed.
func (e *Engine) Calibrating() bool {
	return e.sink.get() != nil
}

// Counters returns the current totals.
func (e *Engine) Counters() Counters {
	return Counters{
		Delivered:   e.counters.delivered.Load(),
		Suppressed:  e.counters.suppressed.Load(),
		BlockedUp:   e.counters.blockedUp.Load(),
		BlockedDown: e.counters.blockedDown.Load(),
		Faults:      e.counters.faults.Load(),
	}
}

// Session returns a copy of the session state. Hook goroutine only.
func (e *Engine) Session() SessionState {
	return e.state
}

// Handle is the platform entry point: it resolves the focused app and decides.
// It never panics; a failure inside the decision delivers the tick.
func (e *Engine) Handle(t model.Tick) Decision {
	return e.handle(t, "", true)
}

// HandleApp decides for a tick whose app identity is already known.
// app must be lowercase, "" meaning no identity.
func (e *Engine) HandleApp(t model.Tick, app string) Decision {
	return e.handle(t, app, false)
}

func (e *Engine) handle(t model.Tick, app string, resolve bool) (d Decision) {
	defer func() {
		if r := recover(); r != nil {
			d = e.fault()
		}
	}()
	snap := e.holder.Load()
	if sink := e.sink.get(); sink != nil {
		sink.Record(t)
		return e.count(Decision{Verdict: Deliver, Reason: ReasonCalibrating})
	}
	if !snap.Enabled() {
		return e.count(Decision{Verdict: Deliver, Reason: ReasonDisabled})
	}
	if resolve {
		app = e.resolver.Current()
	}
	return e.count(e.decide(snap, t, app))
}

func (e *Engine) decide(snap *Snapshot, t model.Tick, app string) Decision {
	if snap.Blacklisted(app) {
		return Decision{Verdict: Deliver, Reason: ReasonBlacklisted}
	}

	st := &e.state
	if e.stateGen != snap.Generation() {
		st.reset()
		e.stateGen = snap.Generation()
	}

	interval, threshold := snap.EffectiveParams(app)
	now := t.At

	expired := false
	if st.LastDir != 0 && now-st.LastAt >= interval {
		st.reset()
		expired = true
	}

	gap := now - st.LastAt

	ref := st.LastDir
	if ref == 0 {
		ref = st.PendingDir
	}
	if ref != 0 && t.Dir != ref && gap < snap.MinReversal() {
		return Decision{Verdict: Suppress, Reason: ReasonPhysics, Expired: expired}
	}

	if st.LastDir == 0 {
		return e.fromIdle(snap, t, expired)
	}

	if t.Dir == st.LastDir {
		st.LastAt = now
		st.Opposite = 0
		st.PendingDir = 0
		return Decision{Verdict: Deliver, Reason: ReasonSameDirection}
	}

	st.Opposite++
	need := threshold
	if snap.SmartMomentum() {
		switch {
		case gap < fastGap:
			need += fastBoost
		case gap < quickGap:
			need += quickBoost
		}
	}
	if st.Opposite >= need {
		st.LastDir = t.Dir
		st.LastAt = now
		st.Opposite = 0
		st.PendingDir = 0
		return Decision{Verdict: Deliver, Reason: ReasonThresholdMet}
	}
	if t.Dir == model.Up {
		e.counters.blockedUp.Add(1)
	} else {
		e.counters.blockedDown.Add(1)
	}
	return Decision{Verdict: Suppress, Reason: ReasonBelowThreshold}
}

func (e *Engine) fromIdle(snap *Snapshot, t model.Tick, expired bool) Decision {
	st := &e.state
	if !snap.Strict() {
		st.LastDir = t.Dir
		st.LastAt = t.At
		st.Opposite = 0
		return Decision{Verdict: Deliver, Reason: ReasonAccepted, Expired: expired}
	}
	if st.PendingDir == 0 {
		st.PendingDir = t.Dir
		st.LastAt = t.At
		return Decision{Verdict: Suppress, Reason: ReasonProvisional, Expired: expired}
	}
	if t.Dir == st.PendingDir {
		st.LastDir = t.Dir
		st.LastAt = t.At
		st.PendingDir = 0
		st.Opposite = 0
		return Decision{Verdict: Deliver, Reason: ReasonConfirmed, Expired: expired}
	}
	st.PendingDir = t.Dir
	st.LastAt = t.At
	return Decision{Verdict: Suppress, Reason: ReasonMismatch, Expired: expired}
}

func (e *Engine) count(d Decision) Decision {
	if d.Verdict == Suppress {
		e.counters.suppressed.Add(1)
	} else {
		e.counters.delivered.Add(1)
	}
	return d
}

func (e *Engine) fault() Decision {
	e.counters.faults.Add(1)
	e.counters.delivered.Add(1)
	return Decision{Verdict: Deliver, Reason: ReasonFault}
}
