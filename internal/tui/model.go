// Package tui provides the Bubble Tea wheel playground and calibration wizard.
package tui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/methetech/WheelScrollFixer/internal/filter"
	"github.com/methetech/WheelScrollFixer/internal/hook"
	"github.com/methetech/WheelScrollFixer/internal/model"
)

const dispatchTimeout = 250 * time.Millisecond

// Dispatcher feeds one wheel event through a running hook loop.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev hook.Event) (filter.Verdict, error)
}

var (
	titleStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	textStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	deliveredStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	suppressedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	accentStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	footerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	stopStyle       = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Background(lipgloss.Color("#FF4D4F")).
			Bold(true).
			Padding(1, 4)
)

// wheelDirection maps a terminal mouse event to a wheel direction. ok is
// false for anything but a vertical wheel press.
func wheelDirection(msg tea.MouseMsg) (model.Direction, bool) {
	if msg.Action != tea.MouseActionPress {
		return 0, false
	}
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		return model.Up, true
	case tea.MouseButtonWheelDown:
		return model.Down, true
	default:
		return 0, false
	}
}

// clock yields monotonic offsets from its start.
type clock struct {
	start time.Time
	now   func() time.Time
}

func newClock(now func() time.Time) clock {
	if now == nil {
		now = time.Now
	}
	return clock{start: now(), now: now}
}

func (c clock) offset() time.Duration {
	return c.now().Sub(c.start)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}
