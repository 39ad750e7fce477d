package config

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/methetech/WheelScrollFixer/internal/model"
)

const watcherDefaultInterval = 2 * time.Second

// ApplyFunc receives settings parsed from a changed config file.
type ApplyFunc func(model.Settings)

// Watcher polls a config file and applies its settings whenever the
// contents change. Invalid files are logged and skipped; the previously
// applied settings stay in effect.
type Watcher struct {
	path      string
	apply     ApplyFunc
	overrides func(*FileConfig)
	logger    *slog.Logger
	interval  time.Duration

	lastSeen string
	primed   bool
}

// NewWatcher creates a watcher for path. A non-positive interval uses the default.
func NewWatcher(path string, apply ApplyFunc, logger *slog.Logger, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = watcherDefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     path,
		apply:    apply,
		logger:   logger.With("component", "config_watcher"),
		interval: interval,
	}
}

// WithOverrides sets a hook that adjusts every parsed file before it is
// validated, so command-line overrides survive reloads. Call before Run.
func (w *Watcher) WithOverrides(fn func(*FileConfig)) *Watcher {
	w.overrides = fn
	return w
}

// Prime records the current file contents as already applied, so the
// first poll does not republish settings the caller loaded itself.
func (w *Watcher) Prime() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return
	}
	w.lastSeen = string(data)
	w.primed = true
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("config watcher started", "path", w.path, "poll_interval", w.interval)

	w.poll()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config watcher stopping")
			return ctx.Err()
		case <-ticker.C:
			w.poll()
		}
	}
}

// poll reports whether new settings were applied.
func (w *Watcher) poll() bool {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false
		}
		w.logger.Warn("config watcher read failed", "error", err)
		return false
	}
	content := string(data)
	if w.primed && content == w.lastSeen {
		return false
	}
	w.lastSeen = content
	w.primed = true

	cfg, err := ParseConfig(content)
	if err == nil {
		if w.overrides != nil {
			w.overrides(&cfg)
		}
		var settings model.Settings
		settings, err = cfg.ToSettings()
		if err == nil {
			w.publish(settings)
			return true
		}
	}
	w.logger.Warn("config file rejected, keeping current settings", "error", err)
	return false
}

func (w *Watcher) publish(settings model.Settings) {
	w.logger.Info("config file changed, applying settings",
		"enabled", settings.Enabled,
		"interval", settings.Interval,
		"threshold", settings.Threshold,
		"strict", settings.Strict,
	)
	w.apply(settings)
}
