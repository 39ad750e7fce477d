package filter

import (
	"sync"
	"testing"
	"time"

	"github.com/methetech/WheelScrollFixer/internal/model"
)

func TestHolderPublishIncrementsGeneration(t *testing.T) {
	h := NewHolder(model.DefaultSettings())
	first := h.Load()
	second := h.Publish(model.DefaultSettings())
	if second.Generation() != first.Generation()+1 {
		t.Fatalf("expected generation %d, got %d", first.Generation()+1, second.Generation())
	}
	if h.Load() != second {
		t.Fatalf("expected published snapshot to be current")
	}
}

func TestHolderUpdateKeepsConcurrentChanges(t *testing.T) {
	h := NewHolder(model.DefaultSettings())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Update(func(s *model.Settings) { s.Threshold++ })
		}()
	}
	wg.Wait()
	if got := h.Load().Settings().Threshold; got != model.DefaultSettings().Threshold+50 {
		t.Fatalf("expected threshold %d, got %d", model.DefaultSettings().Threshold+50, got)
	}
}

// Readers must see interval and threshold from the same publish.
func TestHolderNeverTorn(t *testing.T) {
	settingsFor := func(i int) model.Settings {
		s := model.DefaultSettings()
		s.Threshold = i
		s.Interval = time.Duration(i) * time.Millisecond
		return s
	}
	h := NewHolder(settingsFor(1))

	stop := make(chan struct{})
	errs := make(chan string, 1)
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := h.Load()
				interval, threshold := snap.EffectiveParams("")
				if interval != time.Duration(threshold)*time.Millisecond {
					select {
					case errs <- "torn snapshot observed":
					default:
					}
					return
				}
			}
		}()
	}
	for i := 2; i < 2000; i++ {
		h.Publish(settingsFor(i))
	}
	close(stop)
	wg.Wait()
	select {
	case msg := <-errs:
		t.Fatal(msg)
	default:
	}
}
