package calibrate

import (
	"time"

	"github.com/methetech/WheelScrollFixer/internal/model"
)

// Brake timing. The stop signal appears after a random delay in
// [BrakeMinDelay, BrakeMaxDelay); the attempt ends BrakeSettle later.
const (
	BrakeMinDelay = 1500 * time.Millisecond
	BrakeMaxDelay = 3000 * time.Millisecond
	BrakeSettle   = 1500 * time.Millisecond
)

// Stage describes one guided phase.
type Stage struct {
	Phase       model.Phase
	Title       string
	Instruction string
	// Dir is the direction the user is asked to scroll.
	Dir model.Direction
	// Target is a tick count (flow, precision) or attempt count (brake).
	Target int
	// Duration bounds time-based phases (sprint).
	Duration time.Duration
}

// DefaultStages is the standard calibration suite.
var DefaultStages = []Stage{
	{
		Phase:       model.PhaseFlow,
		Title:       "Phase 1: The Flow",
		Instruction: "Scroll DOWN smoothly and continuously. Find a comfortable rhythm.",
		Dir:         model.Down,
		Target:      40,
	},
	{
		Phase:       model.PhaseSprint,
		Title:       "Phase 2: The Sprint",
		Instruction: "Scroll DOWN as fast as you can for 5 seconds!",
		Dir:         model.Down,
		Duration:    5 * time.Second,
	},
	{
		Phase:       model.PhaseBrake,
		Title:       "Phase 3: The Brake",
		Instruction: "Scroll DOWN fast, then STOP the moment the stop sign appears.",
		Dir:         model.Down,
		Target:      5,
	},
	{
		Phase:       model.PhasePrecision,
		Title:       "Phase 4: Precision",
		Instruction: "Scroll UP slowly, one notch at a time.",
		Dir:         model.Up,
		Target:      20,
	},
}

// Session walks through the stages and collects samples. It is not safe for
// concurrent use; the UI goroutine owns it.
type Session struct {
	stages []Stage
	idx    int
	active bool

	startedAt    time.Duration
	count        int
	attempt      int
	attemptStart int
	stopAt       time.Duration
	stopped      bool

	samples []model.Sample
}

// NewSession creates a session over stages, or DefaultStages when none are given.
func NewSession(stages ...Stage) *Session {
	if len(stages) == 0 {
		stages = DefaultStages
	}
	return &Session{stages: stages}
}

// Stage returns the current (or next, between stages) stage.
// ok is false once every stage is complete.
func (s *Session) Stage() (Stage, bool) {
	if s.idx >= len(s.stages) {
		return Stage{}, false
	}
	return s.stages[s.idx], true
}

// Index returns the current stage index and the number of stages.
func (s *Session) Index() (int, int) {
	return s.idx, len(s.stages)
}

// Active reports whether a stage is recording.
func (s *Session) Active() bool { return s.active }

// Finished reports whether every stage is complete.
func (s *Session) Finished() bool { return s.idx >= len(s.stages) }

// Begin starts recording the current stage at now.
func (s *Session) Begin(now time.Duration) {
	if s.Finished() {
		return
	}
	s.active = true
	s.startedAt = now
	s.count = 0
	s.attempt = 0
	s.attemptStart = len(s.samples)
	s.stopAt = 0
	s.stopped = false
}

// Record adds a tick to the active stage. It reports whether the tick
// completed the stage.
func (s *Session) Record(t model.Tick) bool {
	if !s.active {
		return false
	}
	st := s.stages[s.idx]
	s.samples = append(s.samples, model.Sample{Phase: st.Phase, Attempt: s.attempt, Tick: t})

	switch st.Phase {
	case model.PhaseFlow, model.PhasePrecision:
		if t.Dir == st.Dir {
			s.count++
			if s.count >= st.Target {
				s.complete()
				return true
			}
		}
	}
	return false
}

// Advance ends a time-based stage once its duration has elapsed.
func (s *Session) Advance(now time.Duration) bool {
	if !s.active {
		return false
	}
	st := s.stages[s.idx]
	if st.Duration > 0 && now-s.startedAt >= st.Duration {
		s.complete()
		return true
	}
	return false
}

// SignalStop marks the moment the brake stop sign was shown.
func (s *Session) SignalStop(now time.Duration) {
	if !s.active || s.stopped {
		return
	}
	s.stopAt = now
	s.stopped = true
}

// Stopped reports whether the current brake attempt has shown its stop sign.
func (s *Session) Stopped() bool { return s.stopped }

// Attempt returns the number of finished brake attempts.
func (s *Session) Attempt() int { return s.attempt }

// EndAttempt closes the current brake attempt. It reports whether that was
// the last attempt of the stage.
func (s *Session) EndAttempt() bool {
	if !s.active {
		return false
	}
	for i := s.attemptStart; i < len(s.samples); i++ {
		s.samples[i].StopAt = s.stopAt
	}
	s.attempt++
	s.attemptStart = len(s.samples)
	s.stopAt = 0
	s.stopped = false
	if s.attempt >= s.stages[s.idx].Target {
		s.complete()
		return true
	}
	return false
}

// Progress returns the active stage's completion in [0, 1].
func (s *Session) Progress(now time.Duration) float64 {
	if !s.active {
		return 0
	}
	st := s.stages[s.idx]
	var p float64
	switch {
	case st.Duration > 0:
		p = float64(now-s.startedAt) / float64(st.Duration)
	case st.Phase == model.PhaseBrake:
		p = float64(s.attempt) / float64(st.Target)
	case st.Target > 0:
		p = float64(s.count) / float64(st.Target)
	}
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Samples returns everything recorded so far.
func (s *Session) Samples() []model.Sample {
	return append([]model.Sample(nil), s.samples...)
}

func (s *Session) complete() {
	s.active = false
	s.idx++
}
