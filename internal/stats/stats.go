// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/methetech/WheelScrollFixer/internal/model"
)

const sparkChars = " .:-=+*#%@"

// SuppressionRate returns the share of ticks a run suppressed.
func SuppressionRate(run model.RunStats) float64 {
	if run.Ticks <= 0 {
		return 0
	}
	return float64(run.Suppressed) / float64(run.Ticks)
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// RenderSummary prints totals over runs and a suppression-rate sparkline.
func RenderSummary(w io.Writer, runs []model.RunAggregate, window int) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs found.")
		return err
	}
	var ticks, delivered, suppressed, up, down, faults int
	var duration time.Duration
	rates := make([]float64, len(runs))
	for i, r := range runs {
		ticks += r.Ticks
		delivered += r.Delivered
		suppressed += r.Suppressed
		up += r.BlockedUp
		down += r.BlockedDown
		faults += r.Faults
		if d := r.EndedAt.Sub(r.StartedAt); d > 0 {
			duration += d
		}
		rates[i] = SuppressionRate(r.RunStats) * 100
	}
	overall := 0.0
	if ticks > 0 {
		overall = float64(suppressed) / float64(ticks) * 100
	}

	lines := []string{
		"Summary",
		fmt.Sprintf("Runs: %d", len(runs)),
		fmt.Sprintf("Filtered time: %s", duration.Round(time.Second)),
		fmt.Sprintf("Ticks: %d (delivered %d, suppressed %d)", ticks, delivered, suppressed),
		fmt.Sprintf("Suppression rate: %.2f%%", overall),
		fmt.Sprintf("Blocked reversals: up %d, down %d", up, down),
	}
	if faults > 0 {
		lines = append(lines, fmt.Sprintf("Faults: %d", faults))
	}
	if len(runs) > 1 {
		lines = append(lines, fmt.Sprintf("Trend: [%s]", Sparkline(MovingAverage(rates, window))))
	}
	lines = append(lines, "")
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderRunTable prints one row per run.
func RenderRunTable(w io.Writer, runs []model.RunAggregate) error {
	if len(runs) == 0 {
		return nil
	}
	headers := []string{"Run", "Ended", "Source", "Ticks", "Suppressed", "Rate", "Up", "Down"}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			fmt.Sprintf("%d", r.RunID),
			r.EndedAt.Local().Format("2006-01-02 15:04"),
			r.Source,
			fmt.Sprintf("%d", r.Ticks),
			fmt.Sprintf("%d", r.Suppressed),
			fmt.Sprintf("%.1f%%", SuppressionRate(r.RunStats)*100),
			fmt.Sprintf("%d", r.BlockedUp),
			fmt.Sprintf("%d", r.BlockedDown),
		})
	}
	rightAlign := map[int]bool{0: true, 3: true, 4: true, 5: true, 6: true, 7: true}
	if _, err := fmt.Fprintln(w, "Runs"); err != nil {
		return err
	}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderCalibration prints a stored calibration and its recommendation.
func RenderCalibration(w io.Writer, cal *model.Calibration) error {
	if cal == nil {
		_, err := fmt.Fprintln(w, "No calibration found. Run `wheelfix calibrate`.")
		return err
	}
	if _, err := fmt.Fprintf(w, "Calibration (%s)\n", cal.CreatedAt.Local().Format("2006-01-02 15:04")); err != nil {
		return err
	}
	return RenderRecommendation(w, cal.Recommendation)
}

// RenderRecommendation prints recommended settings and the diagnosis.
func RenderRecommendation(w io.Writer, rec model.Recommendation) error {
	rows := [][]string{
		{"interval", fmt.Sprintf("%.2fs", rec.Interval.Seconds())},
		{"threshold", fmt.Sprintf("%d", rec.Threshold)},
		{"strict", fmt.Sprintf("%t", rec.Strict)},
		{"min-reversal", fmt.Sprintf("%.3fs", rec.MinReversal.Seconds())},
		{"smart-momentum", fmt.Sprintf("%t", rec.SmartMomentum)},
	}
	for _, line := range formatTable(nil, rows, map[int]bool{1: true}) {
		if _, err := fmt.Fprintln(w, "  "+line); err != nil {
			return err
		}
	}
	for _, d := range rec.Diagnosis {
		if _, err := fmt.Fprintf(w, "  • %s\n", d); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}
