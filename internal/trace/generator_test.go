package trace

import (
	"testing"
	"time"
)

func TestGeneratorDeterministic(t *testing.T) {
	a := NewSeeded(7).Generate(DefaultOptions())
	b := NewSeeded(7).Generate(DefaultOptions())
	if len(a) != len(b) {
		t.Fatalf("expected equal lengths, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("tick %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestGeneratorShape(t *testing.T) {
	opts := DefaultOptions()
	opts.BounceRate = 0.5
	ticks := NewSeeded(42).Generate(opts)

	genuine := 0
	bounces := 0
	for i, l := range ticks {
		if i > 0 && l.At < ticks[i-1].At {
			t.Fatalf("tick %d goes backwards", i)
		}
		if l.Bounce {
			bounces++
			prev := ticks[i-1]
			if prev.Bounce || prev.Dir != l.Dir.Opposite() {
				t.Fatalf("bounce %d must reverse the preceding genuine tick", i)
			}
			if l.At-prev.At > opts.MaxBounceDelay {
				t.Fatalf("bounce %d arrived too late: %v", i, l.At-prev.At)
			}
			continue
		}
		genuine++
	}
	if genuine != opts.Gestures*opts.TicksPerGesture {
		t.Fatalf("expected %d genuine ticks, got %d", opts.Gestures*opts.TicksPerGesture, genuine)
	}
	if bounces == 0 {
		t.Fatalf("expected some bounces at rate %.1f", opts.BounceRate)
	}
	if len(Ticks(ticks)) != len(ticks) {
		t.Fatalf("expected Ticks to keep every entry")
	}
}

func TestGeneratorNoBounce(t *testing.T) {
	opts := DefaultOptions()
	opts.BounceRate = 0
	for _, l := range NewSeeded(1).Generate(opts) {
		if l.Bounce {
			t.Fatalf("unexpected bounce at %v", l.At)
		}
	}
}

func TestGeneratorEmptyOptions(t *testing.T) {
	if got := NewSeeded(1).Generate(Options{Gap: time.Millisecond}); got != nil {
		t.Fatalf("expected nil for zero gestures, got %d ticks", len(got))
	}
}
