package calibrate

import (
	"testing"
	"time"

	"github.com/methetech/WheelScrollFixer/internal/filter"
	"github.com/methetech/WheelScrollFixer/internal/model"
)

func TestSessionWalksAllStages(t *testing.T) {
	s := NewSession()
	now := time.Duration(0)

	st, ok := s.Stage()
	if !ok || st.Phase != model.PhaseFlow {
		t.Fatalf("expected flow stage first, got %+v", st)
	}
	if s.Record(model.Tick{At: now, Dir: model.Down}) {
		t.Fatalf("inactive stage must not record")
	}

	s.Begin(now)
	for i := 0; i < 39; i++ {
		now += ms(80)
		if s.Record(model.Tick{At: now, Dir: model.Down}) {
			t.Fatalf("flow completed early at tick %d", i)
		}
		// Wrong-direction ticks are recorded but not counted.
		s.Record(model.Tick{At: now + ms(5), Dir: model.Up})
	}
	if got := s.Progress(now); got != 39.0/40.0 {
		t.Fatalf("unexpected flow progress %v", got)
	}
	now += ms(80)
	if !s.Record(model.Tick{At: now, Dir: model.Down}) {
		t.Fatalf("expected 40th down tick to complete flow")
	}

	st, _ = s.Stage()
	if st.Phase != model.PhaseSprint || s.Active() {
		t.Fatalf("expected idle before sprint, got %+v active=%v", st, s.Active())
	}
	s.Begin(now)
	start := now
	for now < start+5*time.Second-ms(50) {
		now += ms(50)
		s.Record(model.Tick{At: now, Dir: model.Down})
		if s.Advance(now) {
			t.Fatalf("sprint ended early at %v", now-start)
		}
	}
	if !s.Advance(start + 5*time.Second) {
		t.Fatalf("expected sprint to end after its duration")
	}

	st, _ = s.Stage()
	if st.Phase != model.PhaseBrake {
		t.Fatalf("expected brake stage, got %s", st.Phase)
	}
	s.Begin(now)
	for attempt := 0; attempt < st.Target; attempt++ {
		now += ms(500)
		s.Record(model.Tick{At: now, Dir: model.Down})
		now += ms(1500)
		s.SignalStop(now)
		if !s.Stopped() {
			t.Fatalf("expected stop signal to register")
		}
		s.Record(model.Tick{At: now + ms(60), Dir: model.Up})
		now += BrakeSettle
		last := s.EndAttempt()
		if last != (attempt == st.Target-1) {
			t.Fatalf("attempt %d: unexpected completion %v", attempt, last)
		}
	}

	st, _ = s.Stage()
	if st.Phase != model.PhasePrecision {
		t.Fatalf("expected precision stage, got %s", st.Phase)
	}
	s.Begin(now)
	for i := 0; i < st.Target; i++ {
		now += ms(400)
		s.Record(model.Tick{At: now, Dir: model.Up})
	}
	if !s.Finished() {
		t.Fatalf("expected session to be finished")
	}
	if _, ok := s.Stage(); ok {
		t.Fatalf("expected no stage after finishing")
	}

	rec := Analyze(s.Samples())
	if rec.MinReversal != ms(20) {
		t.Fatalf("expected 5ms flow glitches to floor min reversal, got %v", rec.MinReversal)
	}
	if rec.Interval != ms(250) {
		t.Fatalf("expected 60ms bounces to give the interval floor, got %v", rec.Interval)
	}
}

func TestSessionBrakeStopAtAssigned(t *testing.T) {
	s := NewSession(Stage{Phase: model.PhaseBrake, Dir: model.Down, Target: 2})
	s.Begin(0)
	s.Record(model.Tick{At: ms(100), Dir: model.Down})
	s.SignalStop(ms(200))
	s.SignalStop(ms(900))
	s.Record(model.Tick{At: ms(250), Dir: model.Up})
	s.EndAttempt()
	s.Record(model.Tick{At: ms(2000), Dir: model.Down})
	s.EndAttempt()

	samples := s.Samples()
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(samples))
	}
	for i, want := range []struct {
		attempt int
		stopAt  time.Duration
	}{{0, ms(200)}, {0, ms(200)}, {1, 0}} {
		if samples[i].Attempt != want.attempt || samples[i].StopAt != want.stopAt {
			t.Fatalf("sample %d: got attempt %d stop %v", i, samples[i].Attempt, samples[i].StopAt)
		}
	}
	if !s.Finished() {
		t.Fatalf("expected brake-only session to finish")
	}
}

func TestRecorderNeverBlocks(t *testing.T) {
	r := NewRecorder(2)
	var sink filter.Sink = r
	for i := 0; i < 5; i++ {
		sink.Record(model.Tick{At: ms(i), Dir: model.Down})
	}
	if r.Dropped() != 3 {
		t.Fatalf("expected 3 dropped ticks, got %d", r.Dropped())
	}
	first := <-r.C()
	if first.At != 0 {
		t.Fatalf("expected first tick at 0, got %v", first.At)
	}
}

func TestRecorderWithEngine(t *testing.T) {
	engine := filter.NewEngine(filter.NewHolder(model.DefaultSettings()), nil)
	r := NewRecorder(0)
	engine.SetCalibrationSink(r)

	d := engine.Handle(model.Tick{At: ms(5), Dir: model.Up})
	if d.Verdict != filter.Deliver || d.Reason != filter.ReasonCalibrating {
		t.Fatalf("expected calibration pass-through, got %+v", d)
	}
	select {
	case got := <-r.C():
		if got.Dir != model.Up || got.At != ms(5) {
			t.Fatalf("unexpected recorded tick %+v", got)
		}
	default:
		t.Fatalf("expected tick to be recorded")
	}
}
