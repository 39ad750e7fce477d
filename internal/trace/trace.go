// Package trace loads and saves recorded wheel tick traces.
//
// A trace is plain text, one tick per line: a timestamp in seconds and a
// direction ("up" or "down"). Blank lines and lines starting with '#' are
// ignored.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/methetech/WheelScrollFixer/internal/model"
)

// Load reads a trace from the provided file path.
func Load(path string) ([]model.Tick, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only trace.
			_ = cerr
		}
	}()
	return Parse(file)
}

// Timestamps must stay below maxSeconds to fit a time.Duration.
const maxSeconds = float64(math.MaxInt64) / float64(time.Second)

// Parse reads a trace from r. Timestamps must not go backwards.
func Parse(r io.Reader) ([]model.Tick, error) {
	var ticks []model.Tick
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected \"<seconds> <up|down>\"", lineNo)
		}
		secs, err := strconv.ParseFloat(fields[0], 64)
		if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) || secs < 0 || secs >= maxSeconds {
			return nil, fmt.Errorf("line %d: invalid timestamp %q", lineNo, fields[0])
		}
		dir, err := ParseDirection(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		at := time.Duration(math.Round(secs * float64(time.Second)))
		if n := len(ticks); n > 0 && at < ticks[n-1].At {
			return nil, fmt.Errorf("line %d: timestamp goes backwards", lineNo)
		}
		ticks = append(ticks, model.Tick{At: at, Dir: dir})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(ticks) == 0 {
		return nil, fmt.Errorf("trace is empty")
	}
	return ticks, nil
}

// ParseDirection accepts "up"/"down" and the short forms "u"/"d" or "+"/"-".
func ParseDirection(s string) (model.Direction, error) {
	switch strings.ToLower(s) {
	case "up", "u", "+":
		return model.Up, nil
	case "down", "d", "-":
		return model.Down, nil
	default:
		return 0, fmt.Errorf("invalid direction %q", s)
	}
}

// Write encodes ticks in trace format.
func Write(w io.Writer, ticks []model.Tick) error {
	bw := bufio.NewWriter(w)
	for _, t := range ticks {
		if _, err := fmt.Fprintf(bw, "%.6f %s\n", t.At.Seconds(), t.Dir); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Save writes ticks to path, replacing any existing file.
func Save(path string, ticks []model.Tick) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(file, ticks); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
