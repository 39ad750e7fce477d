package trace

import (
	"math/rand"
	"time"

	"github.com/methetech/WheelScrollFixer/internal/model"
)

// Labeled is a synthesized tick that knows whether it is encoder bounce.
type Labeled struct {
	model.Tick
	Bounce bool
}

// Options shape a synthesized trace.
type Options struct {
	// Gestures is the number of scroll gestures.
	Gestures int
	// TicksPerGesture is the number of genuine ticks in each gesture.
	TicksPerGesture int
	// Gap is the spacing between genuine ticks.
	Gap time.Duration
	// Pause is the extra quiet time between gestures.
	Pause time.Duration
	// BounceRate is the chance that a genuine tick is followed by a reversal.
	BounceRate float64
	// MaxBounceDelay bounds how long after a genuine tick a bounce arrives.
	MaxBounceDelay time.Duration
	// ReverseRate is the chance that a gesture scrolls opposite to the previous one.
	ReverseRate float64
}

// DefaultOptions models a worn encoder during ordinary reading.
func DefaultOptions() Options {
	return Options{
		Gestures:        12,
		TicksPerGesture: 8,
		Gap:             70 * time.Millisecond,
		Pause:           600 * time.Millisecond,
		BounceRate:      0.15,
		MaxBounceDelay:  30 * time.Millisecond,
		ReverseRate:     0.3,
	}
}

// Generator produces randomized tick traces.
type Generator struct {
	rnd *rand.Rand
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded returns a deterministic Generator.
func NewSeeded(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Generate synthesizes gestures with bounce reversals mixed in. Ticks are in
// time order; bounces always land before the next genuine tick.
func (g *Generator) Generate(opts Options) []Labeled {
	if opts.Gestures <= 0 || opts.TicksPerGesture <= 0 || opts.Gap <= 0 {
		return nil
	}
	maxBounce := opts.MaxBounceDelay
	if maxBounce <= 0 || maxBounce >= opts.Gap*3/4 {
		maxBounce = opts.Gap / 2
	}
	if maxBounce <= 0 {
		maxBounce = 1
	}

	result := make([]Labeled, 0, opts.Gestures*opts.TicksPerGesture*2)
	dir := model.Down
	at := time.Duration(0)
	for gesture := 0; gesture < opts.Gestures; gesture++ {
		if gesture > 0 {
			at += opts.Pause + g.jitter(opts.Gap)
			if g.chance(opts.ReverseRate) {
				dir = dir.Opposite()
			}
		}
		for i := 0; i < opts.TicksPerGesture; i++ {
			if i > 0 {
				at += g.jitter(opts.Gap)
			}
			result = append(result, Labeled{Tick: model.Tick{At: at, Dir: dir}})
			if g.chance(opts.BounceRate) {
				delay := time.Duration(1 + g.rnd.Int63n(int64(maxBounce)))
				result = append(result, Labeled{
					Tick:   model.Tick{At: at + delay, Dir: dir.Opposite()},
					Bounce: true,
				})
			}
		}
	}
	return result
}

// Ticks strips labels.
func Ticks(labeled []Labeled) []model.Tick {
	ticks := make([]model.Tick, len(labeled))
	for i, l := range labeled {
		ticks[i] = l.Tick
	}
	return ticks
}

func (g *Generator) chance(p float64) bool {
	if p <= 0 {
		return false
	}
	return g.rnd.Float64() < p
}

// jitter varies base by up to ±20%.
func (g *Generator) jitter(base time.Duration) time.Duration {
	spread := float64(base) * 0.2
	return time.Duration(float64(base) + (g.rnd.Float64()*2-1)*spread)
}
