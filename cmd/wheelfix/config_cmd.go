package main

import (
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/methetech/WheelScrollFixer/internal/config"
	"github.com/methetech/WheelScrollFixer/internal/model"
)

var (
	profileInterval  float64
	profileThreshold int
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := configPath
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the config file and print the effective settings",
		Args:  cobra.NoArgs,
		RunE:  runCheckCmd,
	}
}

func runCheckCmd(cmd *cobra.Command, _ []string) error {
	settings, err := config.LoadSettings(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if _, err := fmt.Fprintf(out, "# %s\n", configPath); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return config.WriteConfig(out, config.FromSettings(settings))
}

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage per-application profiles",
	}

	setCmd := &cobra.Command{
		Use:   "set <app>",
		Short: "Set interval/threshold overrides for an application",
		Args:  cobra.ExactArgs(1),
		RunE:  runProfileSetCmd,
	}
	setCmd.Flags().Float64Var(&profileInterval, "interval", 0, "session interval in seconds (0 inherits)")
	setCmd.Flags().IntVar(&profileThreshold, "threshold", 0, "reversal threshold (0 inherits)")

	rmCmd := &cobra.Command{
		Use:   "rm <app>",
		Short: "Remove an application profile",
		Args:  cobra.ExactArgs(1),
		RunE:  runProfileRmCmd,
	}

	cmd.AddCommand(setCmd, rmCmd)
	return cmd
}

func runProfileSetCmd(cmd *cobra.Command, args []string) error {
	app := normalizeApp(args[0])
	if app == "" {
		return fmt.Errorf("app name must not be empty")
	}
	if profileInterval == 0 && profileThreshold == 0 {
		return fmt.Errorf("set --interval and/or --threshold")
	}
	return editSettings(cmd, func(s *model.Settings) error {
		if s.Profiles == nil {
			s.Profiles = map[string]model.Profile{}
		}
		s.Profiles[app] = model.Profile{
			Interval:  time.Duration(math.Round(profileInterval * float64(time.Second))),
			Threshold: profileThreshold,
		}
		return nil
	}, fmt.Sprintf("Profile %q saved.", app))
}

func runProfileRmCmd(cmd *cobra.Command, args []string) error {
	app := normalizeApp(args[0])
	return editSettings(cmd, func(s *model.Settings) error {
		if _, ok := s.Profiles[app]; !ok {
			return fmt.Errorf("no profile for %q", app)
		}
		delete(s.Profiles, app)
		return nil
	}, fmt.Sprintf("Profile %q removed.", app))
}

func newBlacklistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blacklist",
		Short: "Manage applications the filter leaves alone",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <app>",
			Short: "Stop filtering an application",
			Args:  cobra.ExactArgs(1),
			RunE:  runBlacklistAddCmd,
		},
		&cobra.Command{
			Use:   "rm <app>",
			Short: "Filter an application again",
			Args:  cobra.ExactArgs(1),
			RunE:  runBlacklistRmCmd,
		},
	)
	return cmd
}

func runBlacklistAddCmd(cmd *cobra.Command, args []string) error {
	app := normalizeApp(args[0])
	if app == "" {
		return fmt.Errorf("app name must not be empty")
	}
	return editSettings(cmd, func(s *model.Settings) error {
		for _, name := range s.Blacklist {
			if name == app {
				return fmt.Errorf("%q is already blacklisted", app)
			}
		}
		s.Blacklist = append(s.Blacklist, app)
		sort.Strings(s.Blacklist)
		return nil
	}, fmt.Sprintf("%q blacklisted.", app))
}

func runBlacklistRmCmd(cmd *cobra.Command, args []string) error {
	app := normalizeApp(args[0])
	return editSettings(cmd, func(s *model.Settings) error {
		out := s.Blacklist[:0]
		found := false
		for _, name := range s.Blacklist {
			if name == app {
				found = true
				continue
			}
			out = append(out, name)
		}
		if !found {
			return fmt.Errorf("%q is not blacklisted", app)
		}
		s.Blacklist = out
		return nil
	}, fmt.Sprintf("%q removed from the blacklist.", app))
}

// editSettings loads the config, applies fn, validates and saves. A running
// filter picks the change up through its config watcher.
func editSettings(cmd *cobra.Command, fn func(*model.Settings) error, done string) error {
	settings, err := config.LoadSettings(configPath)
	if err != nil {
		return err
	}
	if err := fn(&settings); err != nil {
		return err
	}
	if _, err := config.FromSettings(settings).ToSettings(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	if err := config.SaveSettings(configPath, settings); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), done); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func defaultConfigTemplate() string {
	d := model.DefaultSettings()
	return fmt.Sprintf(`# wheelfix configuration
# Uncomment a value to enable it. CLI flags override config values.
# A running filter reloads this file when it changes.

[filter]
# enabled = %t            # Filter wheel events
# interval = %.2f         # Seconds before a scroll gesture is forgotten (%.2f-%.0f)
# threshold = %d            # Opposite ticks needed to reverse (%d-%d)
# strict = %t             # Require two matching ticks to start a gesture
# min-reversal = %.2f     # Reversals faster than this many seconds are bounce (0-%.0f)
# smart-momentum = %t     # Raise the threshold while scrolling fast
# blacklist = ["game.exe"]  # Applications never filtered

# Per-application overrides, keyed by executable name.
# [profiles."chrome.exe"]
# interval = 0.40
# threshold = 3
`,
		d.Enabled,
		d.Interval.Seconds(), config.MinInterval, config.MaxInterval,
		d.Threshold, config.MinThreshold, config.MaxThreshold,
		d.Strict,
		d.MinReversal.Seconds(), config.MaxMinReversal,
		d.SmartMomentum,
	)
}
