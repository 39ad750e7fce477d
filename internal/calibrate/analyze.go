// Package calibrate records raw wheel ticks in guided phases and recommends
// filter settings from them.
package calibrate

import (
	"fmt"
	"sort"
	"time"

	"github.com/methetech/WheelScrollFixer/internal/model"
)

// Analysis constants.
const (
	floorMinReversal = 20 * time.Millisecond
	glitchMargin     = 10 * time.Millisecond
	cleanMinReversal = 40 * time.Millisecond

	fastScrollGap   = 50 * time.Millisecond
	sprintMinTicks  = 10
	floorInterval   = 250 * time.Millisecond
	bounceMargin    = 150 * time.Millisecond
	defaultInterval = 300 * time.Millisecond
	baseThreshold   = 2
)

// Analyze turns recorded samples into a recommendation.
//
// Flow: up ticks while scrolling down are glitches; the fastest one sets
// the minimum reversal time. Brake: an up tick as the first event after a
// stop signal is a stop bounce; the worst one sets the session interval.
func Analyze(samples []model.Sample) model.Recommendation {
	rec := model.Recommendation{
		Interval:      defaultInterval,
		Threshold:     baseThreshold,
		Strict:        true,
		MinReversal:   cleanMinReversal,
		SmartMomentum: true,
	}
	byPhase := groupByPhase(samples)

	flow := byPhase[model.PhaseFlow]
	var glitches []time.Duration
	for i := 1; i < len(flow); i++ {
		if flow[i].Tick.Dir == model.Up {
			glitches = append(glitches, flow[i].Tick.At-flow[i-1].Tick.At)
		}
	}
	if len(glitches) > 0 {
		fastest := minDuration(glitches)
		rec.MinReversal = maxDuration(floorMinReversal, (fastest + glitchMargin).Round(time.Millisecond))
		rec.Diagnosis = append(rec.Diagnosis, fmt.Sprintf("Detected micro-jitters (fastest: %dms).", fastest.Round(time.Millisecond).Milliseconds()))
	} else {
		rec.Diagnosis = append(rec.Diagnosis, "Signal is clean.")
	}

	// Momentum handles fast scrollers, so the base threshold stays low either way.
	sprint := byPhase[model.PhaseSprint]
	if len(sprint) > sprintMinTicks {
		span := sprint[len(sprint)-1].Tick.At - sprint[0].Tick.At
		if span/time.Duration(len(sprint)) < fastScrollGap {
			rec.Diagnosis = append(rec.Diagnosis, "High-velocity scroller.")
		}
	}

	var bounces []time.Duration
	for _, attempt := range groupByAttempt(byPhase[model.PhaseBrake]) {
		// No stop signal was shown for this attempt.
		if attempt[0].StopAt == 0 {
			continue
		}
		for _, s := range attempt {
			if s.Tick.At <= s.StopAt {
				continue
			}
			if s.Tick.Dir == model.Up {
				bounces = append(bounces, s.Tick.At-s.StopAt)
			}
			break
		}
	}
	if len(bounces) > 0 {
		worst := maxDuration(bounces[0], bounces[1:]...)
		rec.Interval = maxDuration(floorInterval, (worst + bounceMargin).Round(10*time.Millisecond))
		rec.Strict = true
		rec.Diagnosis = append(rec.Diagnosis, fmt.Sprintf("Stop bounce detected (worst: %dms).", worst.Round(time.Millisecond).Milliseconds()))
	} else {
		rec.Interval = defaultInterval
		rec.Diagnosis = append(rec.Diagnosis, "Brakes are solid.")
	}
	return rec
}

// Apply copies a recommendation over s, keeping blacklist and profiles.
func Apply(s model.Settings, rec model.Recommendation) model.Settings {
	s.Interval = rec.Interval
	s.Threshold = rec.Threshold
	s.Strict = rec.Strict
	s.MinReversal = rec.MinReversal
	s.SmartMomentum = rec.SmartMomentum
	return s
}

func groupByPhase(samples []model.Sample) map[model.Phase][]model.Sample {
	out := make(map[model.Phase][]model.Sample)
	for _, s := range samples {
		out[s.Phase] = append(out[s.Phase], s)
	}
	for _, list := range out {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Tick.At < list[j].Tick.At })
	}
	return out
}

func groupByAttempt(samples []model.Sample) [][]model.Sample {
	index := map[int]int{}
	var out [][]model.Sample
	for _, s := range samples {
		i, ok := index[s.Attempt]
		if !ok {
			i = len(out)
			index[s.Attempt] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], s)
	}
	return out
}

func minDuration(values []time.Duration) time.Duration {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxDuration(first time.Duration, rest ...time.Duration) time.Duration {
	m := first
	for _, v := range rest {
		if v > m {
			m = v
		}
	}
	return m
}
