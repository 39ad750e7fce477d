package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/methetech/WheelScrollFixer/internal/calibrate"
	"github.com/methetech/WheelScrollFixer/internal/config"
	"github.com/methetech/WheelScrollFixer/internal/filter"
	"github.com/methetech/WheelScrollFixer/internal/hook"
	"github.com/methetech/WheelScrollFixer/internal/model"
	"github.com/methetech/WheelScrollFixer/internal/stats"
	"github.com/methetech/WheelScrollFixer/internal/statsui"
	"github.com/methetech/WheelScrollFixer/internal/tui"
)

const (
	defaultStatsWindow = 5
	tryHistory         = 256
)

var (
	tryApp string

	calibrateApply bool

	statsSource string
	statsSince  string
	statsLast   int
	statsWindow int
	statsPlain  bool
)

func newTryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "try",
		Short: "Scroll playground: see what the filter does with your wheel",
		Args:  cobra.NoArgs,
		RunE:  runTryCmd,
	}
	addFilterFlags(cmd)
	cmd.Flags().StringVar(&tryApp, "app", "", "foreground application seen by the filter")
	return cmd
}

func runTryCmd(cmd *cobra.Command, _ []string) error {
	logger, closeLog, err := openFileLogger()
	if err != nil {
		return err
	}
	defer closeLog()
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	sim := hook.NewSim(normalizeApp(tryApp))
	engine := filter.NewEngine(filter.NewHolder(settings), sim)
	log := stats.NewDecisionLog(tryHistory)
	runner := hook.NewRunner(sim, engine, logger).WithObserver(log.Observe)
	if err := runner.Start(); err != nil {
		return err
	}

	startedAt := time.Now()
	m := tui.NewTryModel(engine, sim, log, logger, nil)
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, runErr := program.Run()
	if err := runner.Stop(); err != nil {
		logger.Warn("hook stop failed", "error", err)
	}
	if runErr != nil {
		return fmt.Errorf("failed to run TUI: %w", runErr)
	}
	recordRun(logger, "try", startedAt, engine.Counters())
	return nil
}

func newCalibrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Measure your wheel and recommend settings",
		Args:  cobra.NoArgs,
		RunE:  runCalibrateCmd,
	}
	cmd.Flags().BoolVar(&calibrateApply, "apply", false, "write the recommendation to the config file")
	return cmd
}

func runCalibrateCmd(cmd *cobra.Command, _ []string) error {
	logger, closeLog, err := openFileLogger()
	if err != nil {
		return err
	}
	defer closeLog()
	settings, err := config.LoadSettings(configPath)
	if err != nil {
		return err
	}

	sim := hook.NewSim("")
	engine := filter.NewEngine(filter.NewHolder(settings), sim)
	runner := hook.NewRunner(sim, engine, logger)
	if err := runner.Start(); err != nil {
		return err
	}

	m := tui.NewCalibrateModel(engine, sim, calibrate.NewRecorder(0), nil, logger, nil)
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, runErr := program.Run()
	if err := runner.Stop(); err != nil {
		logger.Warn("hook stop failed", "error", err)
	}
	if runErr != nil {
		return fmt.Errorf("failed to run TUI: %w", runErr)
	}

	out := cmd.OutOrStdout()
	rec, samples, ok := m.Result()
	if !ok {
		_, err := fmt.Fprintln(out, "Calibration aborted.")
		return err
	}

	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()
	id, err := st.InsertCalibration(context.Background(), time.Now(), rec, samples)
	if err != nil {
		return fmt.Errorf("failed to save calibration: %w", err)
	}
	logger.Info("calibration stored", "calibration_id", id, "samples", len(samples))

	if _, err := fmt.Fprintln(out, "Recommended settings"); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := stats.RenderRecommendation(out, rec); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if !calibrateApply {
		_, err := fmt.Fprintln(out, "Run `wheelfix calibrate --apply` to save these settings.")
		return err
	}
	if err := saveRecommendation(rec); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "Saved to %s\n", configPath)
	return err
}

// saveRecommendation merges rec into the current config file.
func saveRecommendation(rec model.Recommendation) error {
	current, err := config.LoadSettings(configPath)
	if err != nil {
		return err
	}
	return config.SaveSettings(configPath, calibrate.Apply(current, rec))
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show filtering history and the latest calibration",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsSource, "source", "", "run source filter (system, replay, try)")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N runs")
	cmd.Flags().IntVar(&statsWindow, "window", defaultStatsWindow, "moving average window")
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print a text report instead of the interactive view")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	var sinceTime *time.Time
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	if statsLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	if statsWindow < 1 {
		return fmt.Errorf("--window must be >= 1")
	}
	runFilter := model.RunFilter{
		Source: normalizeApp(statsSource),
		Since:  sinceTime,
		Last:   statsLast,
	}

	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	if statsPlain {
		report, err := stats.BuildReport(context.Background(), st, runFilter)
		if err != nil {
			return fmt.Errorf("failed to load stats: %w", err)
		}
		return stats.RenderReport(cmd.OutOrStdout(), report, statsWindow)
	}

	m := statsui.NewModel(st, statsui.Config{Filter: runFilter, Window: statsWindow})
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}
