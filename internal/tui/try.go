package tui

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/methetech/WheelScrollFixer/internal/config"
	"github.com/methetech/WheelScrollFixer/internal/filter"
	"github.com/methetech/WheelScrollFixer/internal/hook"
	"github.com/methetech/WheelScrollFixer/internal/model"
	"github.com/methetech/WheelScrollFixer/internal/stats"
)

const (
	// linesPerNotch matches the usual desktop wheel setting.
	linesPerNotch  = 3
	playgroundSize = 400
	intervalStep   = 50 * time.Millisecond
	footerHeight   = 6
)

// TryModel is a scroll playground. Terminal wheel events go through the
// engine and only delivered ones move the page.
type TryModel struct {
	engine *filter.Engine
	disp   Dispatcher
	log    *stats.DecisionLog
	logger *slog.Logger
	clock  clock

	viewport viewport.Model
	width    int
	height   int

	errMsg string
}

// NewTryModel builds the playground. log must be the observer of the runner
// behind disp.
func NewTryModel(engine *filter.Engine, disp Dispatcher, log *stats.DecisionLog, logger *slog.Logger, now func() time.Time) *TryModel {
	if logger == nil {
		logger = slog.Default()
	}
	vp := viewport.New(0, 0)
	vp.MouseWheelEnabled = false
	vp.SetContent(playgroundText(playgroundSize))
	return &TryModel{
		engine:   engine,
		disp:     disp,
		log:      log,
		logger:   logger.With("component", "try"),
		clock:    newClock(now),
		viewport: vp,
	}
}

// Init implements tea.Model.
func (m *TryModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *TryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = maxInt(1, msg.Height-footerHeight)
		return m, nil
	case tea.MouseMsg:
		dir, ok := wheelDirection(msg)
		if !ok {
			return m, nil
		}
		m.wheel(dir)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "e":
			m.update(func(s *model.Settings) { s.Enabled = !s.Enabled })
		case "s":
			m.update(func(s *model.Settings) { s.Strict = !s.Strict })
		case "m":
			m.update(func(s *model.Settings) { s.SmartMomentum = !s.SmartMomentum })
		case "+", "=":
			m.update(func(s *model.Settings) { s.Interval = clampInterval(s.Interval + intervalStep) })
		case "-":
			m.update(func(s *model.Settings) { s.Interval = clampInterval(s.Interval - intervalStep) })
		case "]":
			m.update(func(s *model.Settings) { s.Threshold = clampThreshold(s.Threshold + 1) })
		case "[":
			m.update(func(s *model.Settings) { s.Threshold = clampThreshold(s.Threshold - 1) })
		case "up", "k":
			m.wheel(model.Up)
		case "down", "j":
			m.wheel(model.Down)
		case "g", "home":
			m.viewport.GotoTop()
		}
		return m, nil
	}
	return m, nil
}

// View implements tea.Model.
func (m *TryModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	body := fitLines(m.viewport.View(), m.width, m.viewport.Height)
	footer := fitLines(m.renderFooter(), m.width, m.height-m.viewport.Height)
	return body + "\n" + footer
}

// wheel sends one notch through the hook loop and scrolls if it survived.
func (m *TryModel) wheel(dir model.Direction) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	verdict, err := m.disp.Dispatch(ctx, hook.NotchEvent(dir, m.clock.offset()))
	if err != nil {
		m.errMsg = err.Error()
		m.logger.Warn("dispatch failed", "error", err)
		return
	}
	m.errMsg = ""
	if verdict != filter.Deliver {
		return
	}
	if dir == model.Up {
		m.viewport.LineUp(linesPerNotch)
	} else {
		m.viewport.LineDown(linesPerNotch)
	}
}

// update edits the live settings and republishes them.
func (m *TryModel) update(fn func(*model.Settings)) {
	s := m.engine.Snapshot().Settings()
	fn(&s)
	m.engine.Reload(s)
	m.logger.Info("settings changed",
		"enabled", s.Enabled,
		"strict", s.Strict,
		"smart_momentum", s.SmartMomentum,
		"interval", s.Interval,
		"threshold", s.Threshold,
	)
}

func (m *TryModel) renderFooter() string {
	snap := m.engine.Snapshot()
	interval, threshold := snap.EffectiveParams("")
	c := m.engine.Counters()

	settings := fmt.Sprintf("filter %s  strict %s  smart %s  interval %.2fs  threshold %d",
		onOff(snap.Enabled()), onOff(snap.Strict()), onOff(snap.SmartMomentum()), interval.Seconds(), threshold)
	counters := fmt.Sprintf("delivered %d  suppressed %d  blocked up %d  blocked down %d",
		c.Delivered, c.Suppressed, c.BlockedUp, c.BlockedDown)
	if c.Faults > 0 {
		counters += fmt.Sprintf("  faults %d", c.Faults)
	}

	lines := []string{m.renderTimeline(), textStyle.Render(settings), footerStyle.Render(counters)}
	if m.errMsg != "" {
		lines = append(lines, suppressedStyle.Render(m.errMsg))
	} else {
		lines = append(lines, m.renderLast())
	}
	lines = append(lines, mutedStyle.Render("wheel/j/k: scroll  e: filter  s: strict  m: smart  -/+: interval  [/]: threshold  q: quit"))
	return strings.Join(lines, "\n")
}

func (m *TryModel) renderLast() string {
	last, ok := m.log.Last()
	if !ok {
		return mutedStyle.Render("Scroll with the mouse wheel to start.")
	}
	if last.Delivered {
		return deliveredStyle.Render(fmt.Sprintf("%s delivered (%s)", last.Dir, last.Reason))
	}
	return suppressedStyle.Render(fmt.Sprintf("%s suppressed (%s)", last.Dir, last.Reason))
}

// renderTimeline shows the recent decisions as up/down lanes without the
// title line.
func (m *TryModel) renderTimeline() string {
	rows := m.log.Rows()
	if len(rows) == 0 {
		return "\n"
	}
	var buf bytes.Buffer
	if err := stats.RenderTimeline(&buf, rows, m.width, false); err != nil {
		return ""
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) > 1 {
		lines = lines[1:]
	}
	return strings.Join(lines, "\n")
}

func playgroundText(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		mark := ""
		if i%10 == 0 {
			mark = "  ────────"
		}
		fmt.Fprintf(&b, "%4d  scroll me%s\n", i, mark)
	}
	return strings.TrimRight(b.String(), "\n")
}

func clampInterval(d time.Duration) time.Duration {
	lo := time.Duration(config.MinInterval * float64(time.Second))
	hi := time.Duration(config.MaxInterval * float64(time.Second))
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

func clampThreshold(n int) int {
	if n < config.MinThreshold {
		return config.MinThreshold
	}
	if n > config.MaxThreshold {
		return config.MaxThreshold
	}
	return n
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
