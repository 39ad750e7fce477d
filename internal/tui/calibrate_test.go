package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/methetech/WheelScrollFixer/internal/calibrate"
	"github.com/methetech/WheelScrollFixer/internal/filter"
	"github.com/methetech/WheelScrollFixer/internal/model"
)

func newTestWizard(t *testing.T) (*CalibrateModel, *filter.Engine, *fakeClock) {
	t.Helper()
	engine := filter.NewEngine(filter.NewHolder(model.DefaultSettings()), nil)
	session := calibrate.NewSession(
		calibrate.Stage{Phase: model.PhaseFlow, Title: "Flow", Dir: model.Down, Target: 3},
		calibrate.Stage{Phase: model.PhaseBrake, Title: "Brake", Dir: model.Down, Target: 1},
	)
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewCalibrateModel(engine, nil, calibrate.NewRecorder(0), session, quietLogger(), clk.Now)
	m.delay = func() time.Duration { return time.Second }
	return m, engine, clk
}

func enter() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyEnter} }

func TestCalibrateWizardRunsStages(t *testing.T) {
	m, engine, clk := newTestWizard(t)
	m.Init()
	if !engine.Calibrating() {
		t.Fatalf("expected sink armed")
	}
	if d := engine.Handle(model.Tick{At: 0, Dir: model.Up}); d.Reason != filter.ReasonCalibrating {
		t.Fatalf("expected calibrating pass-through, got %v", d.Reason)
	}

	m.Update(enter())
	flow := []model.Tick{
		{At: 0, Dir: model.Down},
		{At: 10 * time.Millisecond, Dir: model.Down},
		{At: 15 * time.Millisecond, Dir: model.Up},
		{At: 30 * time.Millisecond, Dir: model.Down},
	}
	for _, tk := range flow {
		m.Update(recordedMsg(tk))
	}
	if st, _ := m.session.Stage(); st.Phase != model.PhaseBrake {
		t.Fatalf("expected brake stage, got %s", st.Phase)
	}
	if !strings.Contains(m.View(), "Press enter to begin.") {
		t.Fatalf("expected prompt between stages")
	}

	m.Update(enter())
	seq := m.seq
	m.Update(stopMsg{seq: seq - 1})
	if m.stopShown {
		t.Fatalf("stale stop signal must be ignored")
	}

	clk.advance(time.Second)
	m.Update(stopMsg{seq: seq})
	if !strings.Contains(m.View(), "STOP!") {
		t.Fatalf("expected stop sign")
	}
	m.Update(recordedMsg{At: time.Second + 40*time.Millisecond, Dir: model.Up})
	m.Update(settleMsg{seq: seq})

	rec, samples, ok := m.Result()
	if !ok {
		t.Fatalf("expected calibration to finish")
	}
	if engine.Calibrating() {
		t.Fatalf("expected sink disarmed")
	}
	if len(samples) != 5 {
		t.Fatalf("expected 5 samples, got %d", len(samples))
	}
	if rec.MinReversal != 20*time.Millisecond {
		t.Fatalf("unexpected min reversal %v", rec.MinReversal)
	}
	if rec.Interval != 250*time.Millisecond || !rec.Strict {
		t.Fatalf("unexpected interval %v strict %v", rec.Interval, rec.Strict)
	}
	if !strings.Contains(m.View(), "Calibration complete") {
		t.Fatalf("expected result view")
	}
}

func TestCalibrateAbortDisarms(t *testing.T) {
	m, engine, _ := newTestWizard(t)
	m.Init()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if engine.Calibrating() {
		t.Fatalf("expected sink disarmed after abort")
	}
	if _, _, ok := m.Result(); ok {
		t.Fatalf("expected no result after abort")
	}
}
