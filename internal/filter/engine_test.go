package filter

import (
	"errors"
	"testing"
	"time"

	"github.com/methetech/WheelScrollFixer/internal/model"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func down(at int) model.Tick { return model.Tick{At: ms(at), Dir: model.Down} }
func up(at int) model.Tick   { return model.Tick{At: ms(at), Dir: model.Up} }

func baseSettings() model.Settings {
	s := model.DefaultSettings()
	s.Strict = false
	s.SmartMomentum = false
	s.Interval = ms(300)
	s.Threshold = 2
	s.MinReversal = ms(50)
	return s
}

func newTestEngine(s model.Settings) *Engine {
	return NewEngine(NewHolder(s), nil)
}

func verdicts(e *Engine, ticks []model.Tick) []Verdict {
	out := make([]Verdict, 0, len(ticks))
	for _, tk := range ticks {
		out = append(out, e.HandleApp(tk, "").Verdict)
	}
	return out
}

func expectVerdicts(t *testing.T, got, want []Verdict) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d verdicts, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tick %d: expected %s, got %s (all: %v)", i, want[i], got[i], got)
		}
	}
}

func TestIdleNonStrictDelivers(t *testing.T) {
	for _, tk := range []model.Tick{up(0), down(0)} {
		e := newTestEngine(baseSettings())
		d := e.HandleApp(tk, "")
		if d.Verdict != Deliver || d.Reason != ReasonAccepted {
			t.Fatalf("expected accepted delivery for %s, got %+v", tk.Dir, d)
		}
		if got := e.Session().LastDir; got != tk.Dir {
			t.Fatalf("expected last direction %s, got %s", tk.Dir, got)
		}
	}
}

func TestStrictFirstTickIsProvisional(t *testing.T) {
	s := baseSettings()
	s.Strict = true
	for _, tk := range []model.Tick{up(0), down(0)} {
		e := newTestEngine(s)
		d := e.HandleApp(tk, "")
		if d.Verdict != Suppress || d.Reason != ReasonProvisional {
			t.Fatalf("expected provisional suppress for %s, got %+v", tk.Dir, d)
		}
		if got := e.Session().PendingDir; got != tk.Dir {
			t.Fatalf("expected pending %s, got %s", tk.Dir, got)
		}
	}
}

func TestStrictConfirmation(t *testing.T) {
	s := baseSettings()
	s.Strict = true

	t.Run("SameDirection", func(t *testing.T) {
		e := newTestEngine(s)
		expectVerdicts(t, verdicts(e, []model.Tick{down(0), down(80)}), []Verdict{Suppress, Deliver})
		st := e.Session()
		if st.LastDir != model.Down || st.PendingDir != 0 {
			t.Fatalf("expected confirmed down session, got %+v", st)
		}
	})

	t.Run("OppositeDirection", func(t *testing.T) {
		e := newTestEngine(s)
		expectVerdicts(t, verdicts(e, []model.Tick{down(0), up(80)}), []Verdict{Suppress, Suppress})
		st := e.Session()
		if st.PendingDir != model.Up {
			t.Fatalf("expected pending up, got %s", st.PendingDir)
		}
		if st.LastDir != 0 {
			t.Fatalf("expected idle session, got last direction %s", st.LastDir)
		}
	})

	t.Run("PhysicsWhilePending", func(t *testing.T) {
		e := newTestEngine(s)
		e.HandleApp(down(0), "")
		d := e.HandleApp(up(20), "")
		if d.Verdict != Suppress || d.Reason != ReasonPhysics {
			t.Fatalf("expected physics suppress while pending, got %+v", d)
		}
		if got := e.Session().PendingDir; got != model.Down {
			t.Fatalf("expected pending to stay down, got %s", got)
		}
	})
}

func TestPhysicsCheckBeatsThreshold(t *testing.T) {
	for _, threshold := range []int{1, 2, 5} {
		for _, smart := range []bool{false, true} {
			s := baseSettings()
			s.Threshold = threshold
			s.SmartMomentum = smart
			e := newTestEngine(s)
			e.HandleApp(down(0), "")
			d := e.HandleApp(up(49), "")
			if d.Verdict != Suppress || d.Reason != ReasonPhysics {
				t.Fatalf("threshold=%d smart=%v: expected physics suppress, got %+v", threshold, smart, d)
			}
			if got := e.Session().LastDir; got != model.Down {
				t.Fatalf("threshold=%d smart=%v: direction changed to %s", threshold, smart, got)
			}
			// Physics suppressions are not threshold blocks.
			if c := e.Counters(); c.Suppressed != 1 || c.BlockedUp != 0 || c.BlockedDown != 0 {
				t.Fatalf("threshold=%d smart=%v: unexpected counters: %+v", threshold, smart, c)
			}
		}
	}
}

func TestThresholdAccounting(t *testing.T) {
	testCases := map[string]struct {
		ticks       []model.Tick
		wantDir     model.Direction
		blockedUp   uint64
		blockedDown uint64
	}{
		"Up": {
			ticks:     []model.Tick{down(0), up(250), up(500), up(750)},
			wantDir:   model.Up,
			blockedUp: 2,
		},
		"Down": {
			ticks:       []model.Tick{up(0), down(250), down(500), down(750)},
			wantDir:     model.Down,
			blockedDown: 2,
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			s := baseSettings()
			s.Threshold = 3
			s.Interval = time.Second
			s.SmartMomentum = true
			e := newTestEngine(s)

			got := verdicts(e, tc.ticks)
			expectVerdicts(t, got, []Verdict{Deliver, Suppress, Suppress, Deliver})
			if dir := e.Session().LastDir; dir != tc.wantDir {
				t.Fatalf("expected direction flipped to %s, got %s", tc.wantDir, dir)
			}
			c := e.Counters()
			if c.BlockedUp != tc.blockedUp || c.BlockedDown != tc.blockedDown {
				t.Fatalf("unexpected blocked counters: %+v", c)
			}
			if c.Delivered != 2 || c.Suppressed != 2 {
				t.Fatalf("unexpected totals: %+v", c)
			}
		})
	}
}

func TestSmartMomentumBoost(t *testing.T) {
	testCases := map[string]struct {
		smart bool
		ticks []model.Tick
		want  []Verdict
	}{
		"Off": {
			smart: false,
			ticks: []model.Tick{down(0), up(60)},
			want:  []Verdict{Deliver, Deliver},
		},
		"FastGapAddsTwo": {
			smart: true,
			ticks: []model.Tick{down(0), up(60), up(90)},
			want:  []Verdict{Deliver, Suppress, Suppress},
		},
		"QuickGapAddsOne": {
			smart: true,
			ticks: []model.Tick{down(0), up(60), up(150)},
			want:  []Verdict{Deliver, Suppress, Deliver},
		},
		"SlowGapNoBoost": {
			smart: true,
			ticks: []model.Tick{down(0), up(200)},
			want:  []Verdict{Deliver, Deliver},
		},
	}
	for name, tt := range testCases {
		tt := tt
		t.Run(name, func(t *testing.T) {
			s := baseSettings()
			s.Threshold = 1
			s.SmartMomentum = tt.smart
			e := newTestEngine(s)
			expectVerdicts(t, verdicts(e, tt.ticks), tt.want)
		})
	}
}

func TestSessionExpiry(t *testing.T) {
	t.Run("NonStrict", func(t *testing.T) {
		e := newTestEngine(baseSettings())
		e.HandleApp(down(0), "")
		d := e.HandleApp(up(300), "")
		if d.Verdict != Deliver || d.Reason != ReasonAccepted || !d.Expired {
			t.Fatalf("expected expired fresh session, got %+v", d)
		}
	})

	t.Run("Strict", func(t *testing.T) {
		s := baseSettings()
		s.Strict = true
		e := newTestEngine(s)
		expectVerdicts(t, verdicts(e, []model.Tick{down(0), down(100)}), []Verdict{Suppress, Deliver})
		d := e.HandleApp(down(400), "")
		if d.Verdict != Suppress || d.Reason != ReasonProvisional || !d.Expired {
			t.Fatalf("expected provisional tick after expiry, got %+v", d)
		}
	})

	t.Run("JustBeforeInterval", func(t *testing.T) {
		e := newTestEngine(baseSettings())
		e.HandleApp(down(0), "")
		d := e.HandleApp(up(299), "")
		if d.Verdict != Suppress || d.Reason != ReasonBelowThreshold {
			t.Fatalf("expected opposite tick to be held, got %+v", d)
		}
	})
}

func TestGatingLeavesStateUntouched(t *testing.T) {
	s := baseSettings()
	s.Blacklist = []string{"Game.EXE"}
	e := newTestEngine(s)
	e.HandleApp(down(0), "")
	before := e.Session()

	d := e.HandleApp(up(10), "game.exe")
	if d.Verdict != Deliver || d.Reason != ReasonBlacklisted {
		t.Fatalf("expected blacklisted delivery, got %+v", d)
	}
	if e.Session() != before {
		t.Fatalf("blacklisted tick changed state: %+v -> %+v", before, e.Session())
	}

	e.holder.Update(func(s *model.Settings) { s.Enabled = false })
	d = e.HandleApp(up(20), "")
	if d.Verdict != Deliver || d.Reason != ReasonDisabled {
		t.Fatalf("expected disabled delivery, got %+v", d)
	}
	if e.Session() != before {
		t.Fatalf("disabled tick changed state: %+v -> %+v", before, e.Session())
	}
}

func TestProfileIntervalControlsExpiry(t *testing.T) {
	s := baseSettings()
	s.Profiles = map[string]model.Profile{
		"Slow.exe": {Interval: time.Second},
	}

	e := newTestEngine(s)
	e.HandleApp(down(0), "slow.exe")
	if d := e.HandleApp(up(500), "slow.exe"); d.Verdict != Suppress {
		t.Fatalf("expected session to survive under the app interval, got %+v", d)
	}

	e = newTestEngine(s)
	e.HandleApp(down(0), "slow.exe")
	if d := e.HandleApp(up(500), "other.exe"); d.Verdict != Deliver || !d.Expired {
		t.Fatalf("expected the focused app's interval to expire the session, got %+v", d)
	}
}

func TestProfileThreshold(t *testing.T) {
	s := baseSettings()
	s.Interval = time.Second
	s.Threshold = 3
	s.Profiles = map[string]model.Profile{"editor.exe": {Threshold: 1}}
	e := newTestEngine(s)
	got := []Verdict{
		e.HandleApp(down(0), "editor.exe").Verdict,
		e.HandleApp(up(250), "editor.exe").Verdict,
	}
	expectVerdicts(t, got, []Verdict{Deliver, Deliver})
}

func TestReloadResetsSession(t *testing.T) {
	e := newTestEngine(baseSettings())
	e.HandleApp(down(0), "")
	e.Reload(baseSettings())
	d := e.HandleApp(up(100), "")
	if d.Verdict != Deliver || d.Reason != ReasonAccepted {
		t.Fatalf("expected reload to start a fresh session, got %+v", d)
	}
}

func TestReloadRunsAfterHooks(t *testing.T) {
	e := newTestEngine(baseSettings())
	var seen *Snapshot
	snap := e.Reload(baseSettings(), func(s *Snapshot) { seen = s })
	if seen != snap || e.Snapshot() != snap {
		t.Fatalf("expected after hook to observe the published snapshot")
	}
}

func TestCalibrationBypassesFiltering(t *testing.T) {
	s := baseSettings()
	s.Strict = true
	e := newTestEngine(s)
	var recorded []model.Tick
	e.SetCalibrationSink(SinkFunc(func(tk model.Tick) { recorded = append(recorded, tk) }))

	ticks := []model.Tick{down(0), up(5), down(10)}
	expectVerdicts(t, verdicts(e, ticks), []Verdict{Deliver, Deliver, Deliver})
	if len(recorded) != len(ticks) {
		t.Fatalf("expected %d recorded ticks, got %d", len(ticks), len(recorded))
	}
	if e.Session() != (SessionState{}) {
		t.Fatalf("calibration touched session state: %+v", e.Session())
	}

	e.SetCalibrationSink(nil)
	if e.Calibrating() {
		t.Fatalf("expected calibration disarmed")
	}
	if d := e.HandleApp(down(20), ""); d.Reason != ReasonProvisional {
		t.Fatalf("expected filtering to resume, got %+v", d)
	}
}

func TestScenarioTrace(t *testing.T) {
	s := baseSettings()
	s.Strict = true
	s.Threshold = 2
	s.Interval = ms(300)
	s.MinReversal = ms(50)
	s.SmartMomentum = false
	e := newTestEngine(s)

	ticks := []model.Tick{down(0), down(100), up(150), up(200), down(250)}
	wantVerdicts := []Verdict{Suppress, Deliver, Suppress, Deliver, Suppress}
	wantReasons := []Reason{
		ReasonProvisional,
		ReasonConfirmed,
		ReasonBelowThreshold,
		ReasonThresholdMet,
		ReasonBelowThreshold,
	}
	for i, tk := range ticks {
		d := e.HandleApp(tk, "")
		if d.Reason != wantReasons[i] || d.Verdict != wantVerdicts[i] {
			t.Fatalf("tick %d: expected %v (%s), got %v (%s)", i, wantVerdicts[i], wantReasons[i], d.Verdict, d.Reason)
		}
	}
	if dir := e.Session().LastDir; dir != model.Up {
		t.Fatalf("expected up session, got %s", dir)
	}
}

type panicForeground struct{}

func (panicForeground) ForegroundWindow() WindowHandle { return 1 }
func (panicForeground) ProcessName(WindowHandle) (string, error) {
	panic("lookup exploded")
}

func TestPanicFallsBackToDeliver(t *testing.T) {
	e := NewEngine(NewHolder(baseSettings()), panicForeground{})
	d := e.Handle(down(0))
	if d.Verdict != Deliver || d.Reason != ReasonFault {
		t.Fatalf("expected fault delivery, got %+v", d)
	}
	if c := e.Counters(); c.Faults != 1 || c.Delivered != 1 {
		t.Fatalf("unexpected counters: %+v", c)
	}
}

type errForeground struct{}

func (errForeground) ForegroundWindow() WindowHandle { return 7 }
func (errForeground) ProcessName(WindowHandle) (string, error) {
	return "", errors.New("access denied")
}

func TestResolutionFailureMeansNoIdentity(t *testing.T) {
	s := baseSettings()
	s.Blacklist = []string{""}
	e := NewEngine(NewHolder(s), errForeground{})
	if d := e.Handle(down(0)); d.Reason != ReasonAccepted {
		t.Fatalf("expected normal filtering without identity, got %+v", d)
	}
}
