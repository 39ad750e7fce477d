package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/methetech/WheelScrollFixer/internal/filter"
	"github.com/methetech/WheelScrollFixer/internal/hook"
	"github.com/methetech/WheelScrollFixer/internal/model"
	"github.com/methetech/WheelScrollFixer/internal/stats"
	"github.com/methetech/WheelScrollFixer/internal/trace"
)

var (
	replaySynth      bool
	replaySeed       int64
	replayGestures   int
	replayBounceRate float64
	replaySave       string
	replayApp        string
	replayQuiet      bool
	replayWidth      int
	replayColor      bool
	replayNoStore    bool
)

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [trace]",
		Short: "Run a tick trace through the filter",
		Long: "Replay feeds a trace file (one \"<seconds> <up|down>\" per line) or a synthesized\n" +
			"trace through a simulated hook and prints what the filter decided.",
		Args: cobra.MaximumNArgs(1),
		RunE: runReplayCmd,
	}
	addFilterFlags(cmd)
	defaults := trace.DefaultOptions()
	cmd.Flags().BoolVar(&replaySynth, "synth", false, "synthesize a trace with injected bounce")
	cmd.Flags().Int64Var(&replaySeed, "seed", 0, "seed for --synth (0 picks one)")
	cmd.Flags().IntVar(&replayGestures, "gestures", defaults.Gestures, "gestures to synthesize")
	cmd.Flags().Float64Var(&replayBounceRate, "bounce-rate", defaults.BounceRate, "chance of a bounce after each synthesized tick (0-1)")
	cmd.Flags().StringVar(&replaySave, "save", "", "write the synthesized trace to this file")
	cmd.Flags().StringVar(&replayApp, "app", "", "foreground application seen by the filter")
	cmd.Flags().BoolVar(&replayQuiet, "quiet", false, "omit the per-tick table")
	cmd.Flags().IntVar(&replayWidth, "width", 0, "timeline width (0 uses the terminal width)")
	cmd.Flags().BoolVar(&replayColor, "color", false, "force colored output")
	cmd.Flags().BoolVar(&replayNoStore, "no-store", false, "do not record the run in the history database")
	return cmd
}

func runReplayCmd(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	var ticks []model.Tick
	var labels []string
	switch {
	case replaySynth && len(args) > 0:
		return fmt.Errorf("use either a trace file or --synth")
	case replaySynth:
		if replayBounceRate < 0 || replayBounceRate > 1 {
			return fmt.Errorf("--bounce-rate must be between 0 and 1")
		}
		gen := trace.New()
		if replaySeed != 0 {
			gen = trace.NewSeeded(replaySeed)
		}
		opts := trace.DefaultOptions()
		opts.Gestures = replayGestures
		opts.BounceRate = replayBounceRate
		labeled := gen.Generate(opts)
		if len(labeled) == 0 {
			return fmt.Errorf("--gestures must be > 0")
		}
		ticks = trace.Ticks(labeled)
		labels = make([]string, len(labeled))
		for i, l := range labeled {
			labels[i] = stats.LabelGenuine
			if l.Bounce {
				labels[i] = stats.LabelBounce
			}
		}
		if replaySave != "" {
			if err := trace.Save(replaySave, ticks); err != nil {
				return err
			}
			logger.Info("trace saved", "path", replaySave, "ticks", len(ticks))
		}
	case len(args) == 1:
		ticks, err = trace.Load(args[0])
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("a trace file or --synth is required")
	}

	sim := hook.NewSim(normalizeApp(replayApp))
	engine := filter.NewEngine(filter.NewHolder(settings), sim)
	log := stats.NewDecisionLog(0)
	runner := hook.NewRunner(sim, engine, logger).WithObserver(log.Observe)

	startedAt := time.Now()
	if err := runner.Start(); err != nil {
		return err
	}
	ctx := context.Background()
	for _, t := range ticks {
		if _, err := sim.Dispatch(ctx, hook.NotchEvent(t.Dir, t.At)); err != nil {
			_ = runner.Stop()
			return fmt.Errorf("replay failed: %w", err)
		}
	}
	if err := runner.Stop(); err != nil {
		return err
	}

	rows := log.Rows()
	stats.Label(rows, labels)
	if err := renderReplay(cmd, rows, engine.Counters()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if !replayNoStore {
		recordRun(logger, "replay", startedAt, engine.Counters())
	}
	return nil
}

func renderReplay(cmd *cobra.Command, rows []stats.DecisionRow, c filter.Counters) error {
	out := cmd.OutOrStdout()
	if !replayQuiet {
		if err := stats.RenderDecisions(out, rows); err != nil {
			return err
		}
	}
	if err := stats.RenderTimeline(out, rows, replayWidth, replayColor); err != nil {
		return err
	}
	if score, ok := stats.ScoreDecisions(rows); ok {
		if err := stats.RenderScore(out, score); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(out, "Delivered %d, suppressed %d (blocked up %d, down %d)\n",
		c.Delivered, c.Suppressed, c.BlockedUp, c.BlockedDown)
	return err
}
