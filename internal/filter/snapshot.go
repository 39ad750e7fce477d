// Package filter implements the wheel-reversal decision engine and the
// configuration it reads on every tick.
package filter

import (
	"sort"
	"strings"
	"time"

	"github.com/methetech/WheelScrollFixer/internal/model"
)

// Snapshot is an immutable view of the filter settings. A Snapshot is never
// modified after NewSnapshot returns; replacing settings means publishing a
// new Snapshot.
type Snapshot struct {
	gen uint64

	enabled       bool
	interval      time.Duration
	threshold     int
	strict        bool
	minReversal   time.Duration
	smartMomentum bool
	blacklist     map[string]struct{}
	profiles      map[string]model.Profile
}

// NewSnapshot deep-copies s into an immutable snapshot. App names are
// lowercased so lookups can use the resolver's normalized names.
func NewSnapshot(s model.Settings) *Snapshot {
	snap := &Snapshot{
		enabled:       s.Enabled,
		interval:      s.Interval,
		threshold:     s.Threshold,
		strict:        s.Strict,
		minReversal:   s.MinReversal,
		smartMomentum: s.SmartMomentum,
		blacklist:     make(map[string]struct{}, len(s.Blacklist)),
		profiles:      make(map[string]model.Profile, len(s.Profiles)),
	}
	if snap.threshold < 1 {
		snap.threshold = 1
	}
	for _, name := range s.Blacklist {
		name = normalizeApp(name)
		if name == "" {
			continue
		}
		snap.blacklist[name] = struct{}{}
	}
	for name, p := range s.Profiles {
		name = normalizeApp(name)
		if name == "" {
			continue
		}
		snap.profiles[name] = p
	}
	return snap
}

// Generation is the publish sequence number, zero for unpublished snapshots.
func (s *Snapshot) Generation() uint64 { return s.gen }

// Enabled reports whether filtering is on.
func (s *Snapshot) Enabled() bool { return s.enabled }

// Strict reports whether new sessions need a confirming tick.
func (s *Snapshot) Strict() bool { return s.strict }

// MinReversal is the physics floor for a genuine reversal.
func (s *Snapshot) MinReversal() time.Duration { return s.minReversal }

// SmartMomentum reports whether fast scrolling raises the reversal threshold.
func (s *Snapshot) SmartMomentum() bool { return s.smartMomentum }

// Blacklisted reports whether app is excluded from filtering.
// app must already be lowercase; the resolver guarantees that.
func (s *Snapshot) Blacklisted(app string) bool {
	if app == "" {
		return false
	}
	_, ok := s.blacklist[app]
	return ok
}

// EffectiveParams returns the interval and threshold for app, falling back to
// the global values field by field.
func (s *Snapshot) EffectiveParams(app string) (time.Duration, int) {
	interval, threshold := s.interval, s.threshold
	if app == "" {
		return interval, threshold
	}
	p, ok := s.profiles[app]
	if !ok {
		return interval, threshold
	}
	if p.Interval > 0 {
		interval = p.Interval
	}
	if p.Threshold > 0 {
		threshold = p.Threshold
	}
	return interval, threshold
}

// Settings copies the snapshot back into mutable settings.
func (s *Snapshot) Settings() model.Settings {
	out := model.Settings{
		Enabled:       s.enabled,
		Interval:      s.interval,
		Threshold:     s.threshold,
		Strict:        s.strict,
		MinReversal:   s.minReversal,
		SmartMomentum: s.smartMomentum,
		Blacklist:     make([]string, 0, len(s.blacklist)),
		Profiles:      make(map[string]model.Profile, len(s.profiles)),
	}
	for name := range s.blacklist {
		out.Blacklist = append(out.Blacklist, name)
	}
	sort.Strings(out.Blacklist)
	for name, p := range s.profiles {
		out.Profiles[name] = p
	}
	return out
}

func normalizeApp(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
