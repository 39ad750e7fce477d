package stats

import (
	"sync"

	"github.com/methetech/WheelScrollFixer/internal/filter"
	"github.com/methetech/WheelScrollFixer/internal/hook"
	"github.com/methetech/WheelScrollFixer/internal/model"
)

// DecisionLog collects decisions from a hook.Runner observer. It keeps the
// newest limit rows, or everything when limit is 0.
type DecisionLog struct {
	mu    sync.Mutex
	limit int
	rows  []DecisionRow
}

// NewDecisionLog creates a log bounded to limit rows.
func NewDecisionLog(limit int) *DecisionLog {
	return &DecisionLog{limit: limit}
}

// Observe is a hook.Observer.
func (l *DecisionLog) Observe(ev hook.Event, d filter.Decision) {
	row := DecisionRow{
		At:        ev.At,
		Dir:       model.DirectionFromDelta(ev.Delta),
		Delivered: d.Verdict == filter.Deliver,
		Reason:    d.Reason.String(),
	}
	if d.Expired {
		row.Reason += " (expired)"
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append(l.rows, row)
	if l.limit > 0 && len(l.rows) > l.limit {
		l.rows = append(l.rows[:0], l.rows[len(l.rows)-l.limit:]...)
	}
}

// Rows returns a copy of the logged rows, oldest first.
func (l *DecisionLog) Rows() []DecisionRow {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]DecisionRow(nil), l.rows...)
}

// Last returns the newest row.
func (l *DecisionLog) Last() (DecisionRow, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.rows) == 0 {
		return DecisionRow{}, false
	}
	return l.rows[len(l.rows)-1], true
}

// Label copies labels onto rows by index. Rows and labels must come from the
// same trace.
func Label(rows []DecisionRow, labels []string) {
	for i := range rows {
		if i < len(labels) {
			rows[i].Label = labels[i]
		}
	}
}
