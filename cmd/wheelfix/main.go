// Package main provides the CLI entrypoint for wheelfix.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/methetech/WheelScrollFixer/internal/config"
	"github.com/methetech/WheelScrollFixer/internal/filter"
	"github.com/methetech/WheelScrollFixer/internal/hook"
	"github.com/methetech/WheelScrollFixer/internal/model"
	"github.com/methetech/WheelScrollFixer/internal/store"
)

const defaultWatchInterval = 2 * time.Second

var (
	configPath string
	dbPath     string
	logLevel   string

	filterEnabled     bool
	filterInterval    float64
	filterThreshold   int
	filterStrict      bool
	filterMinReversal float64
	filterSmart       bool

	runWatchInterval time.Duration
	runNoStore       bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "wheelfix",
		Short:         "Mouse wheel bounce filter",
		Long:          "wheelfix suppresses the spurious reverse ticks a worn scroll-wheel encoder produces.",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runFilterCmd,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", config.DefaultDBPath(), "history database path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	addFilterFlags(rootCmd)
	rootCmd.Flags().DurationVar(&runWatchInterval, "watch-interval", defaultWatchInterval, "config file poll interval")
	rootCmd.Flags().BoolVar(&runNoStore, "no-store", false, "do not record the run in the history database")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newProfileCmd())
	rootCmd.AddCommand(newBlacklistCmd())
	rootCmd.AddCommand(newReplayCmd())
	rootCmd.AddCommand(newTryCmd())
	rootCmd.AddCommand(newCalibrateCmd())
	rootCmd.AddCommand(newStatsCmd())

	return rootCmd
}

func runFilterCmd(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger(os.Stderr)
	if err != nil {
		return err
	}
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	platform, err := hook.NewSystem()
	if err != nil {
		return fmt.Errorf("failed to open wheel hook: %w", err)
	}
	engine := filter.NewEngine(filter.NewHolder(settings), platform)
	runner := hook.NewRunner(platform, engine, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher := config.NewWatcher(configPath, func(s model.Settings) { engine.Reload(s) }, logger, runWatchInterval).
		WithOverrides(func(c *config.FileConfig) { applyFilterFlags(cmd, c) })
	watcher.Prime()

	startedAt := time.Now()
	if err := runner.Start(); err != nil {
		return err
	}
	logger.Info("filtering wheel events",
		"config", configPath,
		"interval", settings.Interval,
		"threshold", settings.Threshold,
		"strict", settings.Strict,
	)

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("config watcher failed", "error", err)
		}
	}()

	<-ctx.Done()
	stopErr := runner.Stop()
	<-watchDone

	if !runNoStore {
		recordRun(logger, "system", startedAt, engine.Counters())
	}
	return stopErr
}

func addFilterFlags(cmd *cobra.Command) {
	defaults := model.DefaultSettings()
	cmd.Flags().BoolVar(&filterEnabled, "enabled", defaults.Enabled, "enable filtering")
	cmd.Flags().Float64Var(&filterInterval, "interval", defaults.Interval.Seconds(), "session interval in seconds")
	cmd.Flags().IntVar(&filterThreshold, "threshold", defaults.Threshold, "opposite ticks needed to reverse")
	cmd.Flags().BoolVar(&filterStrict, "strict", defaults.Strict, "require two matching ticks to start a gesture")
	cmd.Flags().Float64Var(&filterMinReversal, "min-reversal", defaults.MinReversal.Seconds(), "minimum seconds for a physical reversal")
	cmd.Flags().BoolVar(&filterSmart, "smart-momentum", defaults.SmartMomentum, "raise the threshold while scrolling fast")
}

// loadSettings reads the config file and applies command-line overrides.
func loadSettings(cmd *cobra.Command) (model.Settings, error) {
	fileCfg, err := config.LoadConfig(configPath)
	if err != nil {
		return model.Settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyFilterFlags(cmd, &fileCfg)
	settings, err := fileCfg.ToSettings()
	if err != nil {
		return model.Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	return settings, nil
}

// applyFilterFlags copies explicitly set flags over the file values.
func applyFilterFlags(cmd *cobra.Command, c *config.FileConfig) {
	applyBoolFlag(cmd, "enabled", &c.Filter.Enabled, filterEnabled)
	applyFloatFlag(cmd, "interval", &c.Filter.Interval, filterInterval)
	applyIntFlag(cmd, "threshold", &c.Filter.Threshold, filterThreshold)
	applyBoolFlag(cmd, "strict", &c.Filter.Strict, filterStrict)
	applyFloatFlag(cmd, "min-reversal", &c.Filter.MinReversal, filterMinReversal)
	applyBoolFlag(cmd, "smart-momentum", &c.Filter.SmartMomentum, filterSmart)
}

func applyIntFlag(cmd *cobra.Command, name string, target **int, value int) {
	if cmd.Flags().Lookup(name) == nil || !cmd.Flags().Changed(name) {
		return
	}
	*target = &value
}

func applyFloatFlag(cmd *cobra.Command, name string, target **float64, value float64) {
	if cmd.Flags().Lookup(name) == nil || !cmd.Flags().Changed(name) {
		return
	}
	*target = &value
}

func applyBoolFlag(cmd *cobra.Command, name string, target **bool, value bool) {
	if cmd.Flags().Lookup(name) == nil || !cmd.Flags().Changed(name) {
		return
	}
	*target = &value
}

func newLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

// openFileLogger logs to the log file so terminal UIs keep the screen.
func openFileLogger() (*slog.Logger, func(), error) {
	path := config.DefaultLogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger, err := newLogger(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return logger, func() {
		// Best-effort close of the log file.
		_ = f.Close()
	}, nil
}

func openStore() (*store.Store, func(), error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}, nil
}

// recordRun stores a finished run. Failures are logged, never returned.
func recordRun(logger *slog.Logger, source string, startedAt time.Time, c filter.Counters) {
	run := model.RunStats{
		StartedAt:   startedAt,
		EndedAt:     time.Now(),
		Source:      source,
		Ticks:       int(c.Delivered + c.Suppressed),
		Delivered:   int(c.Delivered),
		Suppressed:  int(c.Suppressed),
		BlockedUp:   int(c.BlockedUp),
		BlockedDown: int(c.BlockedDown),
		Faults:      int(c.Faults),
	}
	if run.Ticks == 0 {
		return
	}
	st, closeStore, err := openStore()
	if err != nil {
		logger.Warn("run not recorded", "error", err)
		return
	}
	defer closeStore()
	id, err := st.InsertRun(context.Background(), run)
	if err != nil {
		logger.Warn("run not recorded", "error", err)
		return
	}
	logger.Info("run recorded", "run_id", id, "source", source, "ticks", run.Ticks, "suppressed", run.Suppressed)
}

func normalizeApp(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
