package stats

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/methetech/WheelScrollFixer/internal/model"
)

const (
	laneLabelWidth      = 4
	laneSeparator       = " │"
	minTimelineWidth    = 10
	terminalWidthBackup = 80
	colorReset          = "\x1b[0m"
	colorDelivered      = "\x1b[32m"
	colorSuppressed     = "\x1b[31m"
)

// Labels for synthesized ticks.
const (
	LabelBounce  = "bounce"
	LabelGenuine = "genuine"
)

// DecisionRow is one replayed tick and what the filter did with it.
type DecisionRow struct {
	At        time.Duration
	Dir       model.Direction
	Delivered bool
	Reason    string
	// Label is LabelBounce, LabelGenuine, or empty when unknown.
	Label string
}

// Score compares verdicts against known labels.
type Score struct {
	Bounces           int
	BouncesSuppressed int
	Genuine           int
	GenuineDelivered  int
}

// ScoreDecisions scores labeled rows. ok is false when no row is labeled.
func ScoreDecisions(rows []DecisionRow) (Score, bool) {
	var s Score
	labeled := false
	for _, r := range rows {
		switch r.Label {
		case LabelBounce:
			labeled = true
			s.Bounces++
			if !r.Delivered {
				s.BouncesSuppressed++
			}
		case LabelGenuine:
			labeled = true
			s.Genuine++
			if r.Delivered {
				s.GenuineDelivered++
			}
		}
	}
	return s, labeled
}

// RenderDecisions prints one line per tick.
func RenderDecisions(w io.Writer, rows []DecisionRow) error {
	headers := []string{"#", "Time (s)", "Dir", "Verdict", "Reason"}
	labeled := false
	for _, r := range rows {
		if r.Label != "" {
			labeled = true
			headers = append(headers, "Label")
			break
		}
	}
	table := make([][]string, 0, len(rows))
	for i, r := range rows {
		verdict := "deliver"
		if !r.Delivered {
			verdict = "suppress"
		}
		row := []string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%.3f", r.At.Seconds()),
			r.Dir.String(),
			verdict,
			r.Reason,
		}
		if labeled {
			row = append(row, r.Label)
		}
		table = append(table, row)
	}
	for _, line := range formatTable(headers, table, map[int]bool{0: true, 1: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderScore prints how well the filter separated bounce from genuine ticks.
func RenderScore(w io.Writer, s Score) error {
	pct := func(n, d int) float64 {
		if d == 0 {
			return 100
		}
		return float64(n) / float64(d) * 100
	}
	_, err := fmt.Fprintf(w, "Bounces suppressed: %d/%d (%.1f%%)\nGenuine delivered: %d/%d (%.1f%%)\n\n",
		s.BouncesSuppressed, s.Bounces, pct(s.BouncesSuppressed, s.Bounces),
		s.GenuineDelivered, s.Genuine, pct(s.GenuineDelivered, s.Genuine))
	return err
}

// RenderTimeline draws up and down lanes over time. Each cell covers an equal
// slice of the trace: '█' delivered, '░' suppressed, '▒' both.
func RenderTimeline(w io.Writer, rows []DecisionRow, totalWidth int, forceColor bool) error {
	if len(rows) == 0 {
		return nil
	}
	if totalWidth <= 0 {
		totalWidth = terminalWidth()
	}
	width := totalWidth - laneLabelWidth - len([]rune(laneSeparator))
	if width < minTimelineWidth {
		width = minTimelineWidth
	}

	start := rows[0].At
	span := rows[len(rows)-1].At - start
	const (
		hasDelivered = 1 << iota
		hasSuppressed
	)
	up := make([]uint8, width)
	down := make([]uint8, width)
	for _, r := range rows {
		x := 0
		if span > 0 {
			x = int(int64(r.At-start) * int64(width-1) / int64(span))
		}
		lane := down
		if r.Dir == model.Up {
			lane = up
		}
		if r.Delivered {
			lane[x] |= hasDelivered
		} else {
			lane[x] |= hasSuppressed
		}
	}

	useColor := shouldUseColor(w, forceColor)
	render := func(label string, lane []uint8) string {
		var b strings.Builder
		fmt.Fprintf(&b, "%-*s%s", laneLabelWidth, label, laneSeparator)
		for _, cell := range lane {
			var ch, color string
			switch cell {
			case hasDelivered:
				ch, color = "█", colorDelivered
			case hasSuppressed:
				ch, color = "░", colorSuppressed
			case hasDelivered | hasSuppressed:
				ch, color = "▒", colorSuppressed
			default:
				b.WriteByte(' ')
				continue
			}
			if useColor {
				b.WriteString(color + ch + colorReset)
			} else {
				b.WriteString(ch)
			}
		}
		return strings.TrimRight(b.String(), " ")
	}

	lines := []string{
		fmt.Sprintf("Timeline (%.2fs)", span.Seconds()),
		render("up", up),
		render("down", down),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
