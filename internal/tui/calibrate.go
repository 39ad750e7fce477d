package tui

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/methetech/WheelScrollFixer/internal/calibrate"
	"github.com/methetech/WheelScrollFixer/internal/filter"
	"github.com/methetech/WheelScrollFixer/internal/hook"
	"github.com/methetech/WheelScrollFixer/internal/model"
	"github.com/methetech/WheelScrollFixer/internal/stats"
)

const (
	frameInterval = 100 * time.Millisecond
	progressWidth = 40
)

type recordedMsg model.Tick

type frameMsg time.Time

type stopMsg struct{ seq int }

type settleMsg struct{ seq int }

// CalibrateModel walks the user through the calibration stages. While it
// runs the engine's calibration sink is armed, so every tick is delivered
// and recorded raw.
type CalibrateModel struct {
	engine   *filter.Engine
	disp     Dispatcher
	recorder *calibrate.Recorder
	session  *calibrate.Session
	logger   *slog.Logger
	clock    clock
	delay    func() time.Duration
	bar      progress.Model

	width  int
	height int

	seq       int
	stopShown bool
	done      bool
	result    model.Recommendation
	errMsg    string
}

// NewCalibrateModel builds the wizard. session may be nil for the default
// stages.
func NewCalibrateModel(engine *filter.Engine, disp Dispatcher, recorder *calibrate.Recorder, session *calibrate.Session, logger *slog.Logger, now func() time.Time) *CalibrateModel {
	if logger == nil {
		logger = slog.Default()
	}
	if session == nil {
		session = calibrate.NewSession()
	}
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &CalibrateModel{
		engine:   engine,
		disp:     disp,
		recorder: recorder,
		session:  session,
		logger:   logger.With("component", "calibrate"),
		clock:    newClock(now),
		delay: func() time.Duration {
			span := int64(calibrate.BrakeMaxDelay - calibrate.BrakeMinDelay)
			return calibrate.BrakeMinDelay + time.Duration(rnd.Int63n(span))
		},
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(progressWidth)),
	}
}

// Result returns the recommendation and the raw samples. ok is false until
// every stage is complete.
func (m *CalibrateModel) Result() (model.Recommendation, []model.Sample, bool) {
	if !m.done {
		return model.Recommendation{}, nil, false
	}
	return m.result, m.session.Samples(), true
}

// Init implements tea.Model.
func (m *CalibrateModel) Init() tea.Cmd {
	m.engine.SetCalibrationSink(m.recorder)
	m.logger.Info("calibration sink armed")
	return waitForTick(m.recorder.C())
}

// Update implements tea.Model.
func (m *CalibrateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = minInt(progressWidth, maxInt(10, msg.Width-4))
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.disarm()
			return m, tea.Quit
		case "enter", " ":
			if m.done {
				return m, tea.Quit
			}
			return m, m.begin()
		case "up", "k":
			m.wheel(model.Up)
		case "down", "j":
			m.wheel(model.Down)
		}
		return m, nil
	case tea.MouseMsg:
		if dir, ok := wheelDirection(msg); ok {
			m.wheel(dir)
		}
		return m, nil
	case recordedMsg:
		if m.session.Record(model.Tick(msg)) {
			m.stageDone()
		}
		return m, waitForTick(m.recorder.C())
	case frameMsg:
		if !m.session.Active() {
			return m, nil
		}
		if m.session.Advance(m.clock.offset()) {
			m.stageDone()
			return m, nil
		}
		return m, frame()
	case stopMsg:
		if msg.seq != m.seq || !m.session.Active() {
			return m, nil
		}
		m.session.SignalStop(m.clock.offset())
		m.stopShown = true
		seq := m.seq
		return m, tea.Tick(calibrate.BrakeSettle, func(time.Time) tea.Msg { return settleMsg{seq: seq} })
	case settleMsg:
		if msg.seq != m.seq || !m.session.Active() {
			return m, nil
		}
		m.stopShown = false
		if m.session.EndAttempt() {
			m.stageDone()
			return m, nil
		}
		return m, m.scheduleStop()
	}
	return m, nil
}

// View implements tea.Model.
func (m *CalibrateModel) View() string {
	var content string
	if m.done {
		content = m.renderResult()
	} else {
		content = m.renderStage()
	}
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *CalibrateModel) begin() tea.Cmd {
	if m.session.Active() || m.session.Finished() {
		return nil
	}
	st, _ := m.session.Stage()
	m.session.Begin(m.clock.offset())
	m.logger.Info("calibration stage started", "phase", st.Phase)
	switch {
	case st.Phase == model.PhaseBrake:
		return m.scheduleStop()
	case st.Duration > 0:
		return frame()
	}
	return nil
}

func (m *CalibrateModel) scheduleStop() tea.Cmd {
	m.seq++
	seq := m.seq
	return tea.Tick(m.delay(), func(time.Time) tea.Msg { return stopMsg{seq: seq} })
}

func (m *CalibrateModel) stageDone() {
	m.stopShown = false
	m.seq++
	if !m.session.Finished() {
		return
	}
	samples := m.session.Samples()
	m.result = calibrate.Analyze(samples)
	m.done = true
	m.disarm()
	m.logger.Info("calibration finished",
		"samples", len(samples),
		"dropped", m.recorder.Dropped(),
		"interval", m.result.Interval,
		"min_reversal", m.result.MinReversal,
	)
}

func (m *CalibrateModel) disarm() {
	if m.engine.Calibrating() {
		m.engine.SetCalibrationSink(nil)
	}
}

func (m *CalibrateModel) wheel(dir model.Direction) {
	if m.disp == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	if _, err := m.disp.Dispatch(ctx, hook.NotchEvent(dir, m.clock.offset())); err != nil {
		m.errMsg = err.Error()
		m.logger.Warn("dispatch failed", "error", err)
		return
	}
	m.errMsg = ""
}

func (m *CalibrateModel) renderStage() string {
	st, ok := m.session.Stage()
	if !ok {
		return ""
	}
	idx, total := m.session.Index()
	lines := []string{
		mutedStyle.Render(fmt.Sprintf("Calibration %d/%d", idx+1, total)),
		titleStyle.Render(st.Title),
		textStyle.Render(st.Instruction),
		"",
	}
	if !m.session.Active() {
		lines = append(lines, accentStyle.Render("Press enter to begin."))
	} else {
		lines = append(lines, m.bar.ViewAs(m.session.Progress(m.clock.offset())))
		if st.Phase == model.PhaseBrake {
			lines = append(lines, mutedStyle.Render(fmt.Sprintf("Attempt %d/%d", m.session.Attempt()+1, st.Target)), "")
			if m.stopShown {
				lines = append(lines, stopStyle.Render("STOP!"))
			} else {
				lines = append(lines, accentStyle.Render(fmt.Sprintf("Scroll %s...", strings.ToUpper(st.Dir.String()))))
			}
		}
	}
	if n := m.recorder.Dropped(); n > 0 {
		lines = append(lines, "", suppressedStyle.Render(fmt.Sprintf("%d ticks dropped", n)))
	}
	if m.errMsg != "" {
		lines = append(lines, "", suppressedStyle.Render(m.errMsg))
	}
	lines = append(lines, "", footerStyle.Render("wheel: scroll  enter: begin  q: abort"))
	return strings.Join(lines, "\n")
}

func (m *CalibrateModel) renderResult() string {
	var buf bytes.Buffer
	if err := stats.RenderRecommendation(&buf, m.result); err != nil {
		return err.Error()
	}
	lines := []string{
		titleStyle.Render("Calibration complete"),
		"",
		strings.TrimRight(buf.String(), "\n"),
		"",
		footerStyle.Render("enter: finish"),
	}
	return strings.Join(lines, "\n")
}

func waitForTick(ch <-chan model.Tick) tea.Cmd {
	return func() tea.Msg {
		return recordedMsg(<-ch)
	}
}

func frame() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
