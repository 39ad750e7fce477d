// Package model defines shared data structures.
package model

import "time"

// Direction is the sign of a wheel notch.
type Direction int8

const (
	// Down is a notch toward the user; content moves up.
	Down Direction = -1
	// Up is a notch away from the user.
	Up Direction = 1
)

// DirectionFromDelta maps a raw hardware delta to a direction.
// Positive deltas are Up, everything else is Down.
func DirectionFromDelta(delta int32) Direction {
	if delta > 0 {
		return Up
	}
	return Down
}

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	return -d
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "none"
	}
}

// Tick is one discrete wheel notch. At is a monotonic offset from an
// arbitrary epoch chosen by the producer.
type Tick struct {
	At  time.Duration
	Dir Direction
}

// Profile overrides the global interval and threshold for one application.
// A zero field inherits the global value.
type Profile struct {
	Interval  time.Duration
	Threshold int
}

// Settings holds every filter tunable in a mutable, copyable form.
type Settings struct {
	Enabled       bool
	Interval      time.Duration
	Threshold     int
	Strict        bool
	MinReversal   time.Duration
	SmartMomentum bool
	Blacklist     []string
	Profiles      map[string]Profile
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Enabled:       true,
		Interval:      300 * time.Millisecond,
		Threshold:     2,
		Strict:        true,
		MinReversal:   50 * time.Millisecond,
		SmartMomentum: true,
		Profiles:      map[string]Profile{},
	}
}

// RunStats captures one filtering run for the history store.
type RunStats struct {
	StartedAt   time.Time
	EndedAt     time.Time
	Source      string
	Ticks       int
	Delivered   int
	Suppressed  int
	BlockedUp   int
	BlockedDown int
	Faults      int
}

// RunFilter defines filters for listing stored runs.
type RunFilter struct {
	Source string
	Since  *time.Time
	Last   int
}

// RunAggregate is a stored run as read back for reporting.
type RunAggregate struct {
	RunID int64
	RunStats
}

// Phase names a calibration stage.
type Phase string

const (
	PhaseFlow      Phase = "flow"
	PhaseSprint    Phase = "sprint"
	PhaseBrake     Phase = "brake"
	PhasePrecision Phase = "precision"
)

// Sample is a raw tick recorded during calibration. Attempt groups brake
// samples; StopAt is the stop-signal time of that attempt (zero otherwise).
type Sample struct {
	Phase   Phase
	Attempt int
	StopAt  time.Duration
	Tick    Tick
}

// Recommendation is the outcome of a calibration analysis.
type Recommendation struct {
	Interval      time.Duration
	Threshold     int
	Strict        bool
	MinReversal   time.Duration
	SmartMomentum bool
	Diagnosis     []string
}

// Calibration is a stored calibration run.
type Calibration struct {
	ID        int64
	CreatedAt time.Time
	Recommendation
}
