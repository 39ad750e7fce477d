package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/methetech/WheelScrollFixer/internal/model"
)

type recordApply struct {
	mu      sync.Mutex
	applied []model.Settings
}

func (r *recordApply) apply(s model.Settings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = append(r.applied, s)
}

func (r *recordApply) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.applied)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatcherAppliesChanges(t *testing.T) {
	path := writeConfig(t, "[filter]\nthreshold = 3\n")
	rec := &recordApply{}
	w := NewWatcher(path, rec.apply, quietLogger(), 0)

	if !w.poll() {
		t.Fatalf("expected first poll to apply")
	}
	if w.poll() {
		t.Fatalf("expected unchanged file to be skipped")
	}
	if err := os.WriteFile(path, []byte("[filter]\nthreshold = 4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !w.poll() {
		t.Fatalf("expected changed file to apply")
	}
	if rec.count() != 2 || rec.applied[1].Threshold != 4 {
		t.Fatalf("unexpected applied settings: %+v", rec.applied)
	}
}

func TestWatcherKeepsSettingsOnInvalidFile(t *testing.T) {
	path := writeConfig(t, "[filter]\nthreshold = 3\n")
	rec := &recordApply{}
	w := NewWatcher(path, rec.apply, quietLogger(), 0)
	w.Prime()

	if w.poll() {
		t.Fatalf("expected primed contents to be skipped")
	}
	if err := os.WriteFile(path, []byte("[filter]\nthreshold = 99\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if w.poll() {
		t.Fatalf("expected invalid file to be rejected")
	}
	if rec.count() != 0 {
		t.Fatalf("expected nothing applied, got %d", rec.count())
	}
}

func TestWatcherIgnoresMissingFile(t *testing.T) {
	rec := &recordApply{}
	w := NewWatcher(filepath.Join(t.TempDir(), "missing.toml"), rec.apply, quietLogger(), 0)
	if w.poll() {
		t.Fatalf("expected missing file to be ignored")
	}
}

func TestWatcherRunStopsOnCancel(t *testing.T) {
	path := writeConfig(t, "[filter]\nstrict = false\n")
	rec := &recordApply{}
	w := NewWatcher(path, rec.apply, quietLogger(), 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for rec.count() == 0 {
		select {
		case <-deadline:
			t.Fatalf("watcher never applied settings")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not stop")
	}
}

func TestWatcherAppliesOverrides(t *testing.T) {
	path := writeConfig(t, "[filter]\nthreshold = 3\nstrict = true\n")
	rec := &recordApply{}
	strict := false
	w := NewWatcher(path, rec.apply, quietLogger(), 0).WithOverrides(func(c *FileConfig) {
		c.Filter.Strict = &strict
	})

	if !w.poll() {
		t.Fatalf("expected first poll to apply")
	}
	if rec.applied[0].Strict || rec.applied[0].Threshold != 3 {
		t.Fatalf("expected override on top of file, got %+v", rec.applied[0])
	}
}
