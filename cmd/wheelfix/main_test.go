package main

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/methetech/WheelScrollFixer/internal/config"
	"github.com/methetech/WheelScrollFixer/internal/model"
)

func TestDefaultConfigTemplateParses(t *testing.T) {
	tpl := defaultConfigTemplate()
	cfg, err := config.ParseConfig(tpl)
	if err != nil {
		t.Fatalf("parse template: %v", err)
	}
	got, err := cfg.ToSettings()
	if err != nil {
		t.Fatalf("template settings: %v", err)
	}
	want := model.DefaultSettings()
	if got.Interval != want.Interval || got.Threshold != want.Threshold || got.Strict != want.Strict {
		t.Fatalf("expected defaults, got %+v", got)
	}

	// Uncommenting the [filter] values must still give the defaults.
	var lines []string
	for _, line := range strings.Split(tpl, "\n") {
		if strings.HasPrefix(line, "# Per-application") {
			break
		}
		if strings.HasPrefix(line, "# ") && strings.Contains(line, " = ") {
			line = strings.TrimPrefix(line, "# ")
		}
		lines = append(lines, line)
	}
	cfg, err = config.ParseConfig(strings.Join(lines, "\n"))
	if err != nil {
		t.Fatalf("parse uncommented template: %v", err)
	}
	got, err = cfg.ToSettings()
	if err != nil {
		t.Fatalf("uncommented settings: %v", err)
	}
	if got.Interval != want.Interval || got.MinReversal != want.MinReversal || got.SmartMomentum != want.SmartMomentum {
		t.Fatalf("expected defaults, got %+v", got)
	}
	if len(got.Blacklist) != 1 || got.Blacklist[0] != "game.exe" {
		t.Fatalf("unexpected blacklist: %v", got.Blacklist)
	}
}

func TestApplyFilterFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	addFilterFlags(cmd)
	if err := cmd.Flags().Set("threshold", "4"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if err := cmd.Flags().Set("strict", "false"); err != nil {
		t.Fatalf("set flag: %v", err)
	}

	interval := 0.8
	cfg := config.FileConfig{Filter: config.FilterConfig{Interval: &interval}}
	applyFilterFlags(cmd, &cfg)

	if cfg.Filter.Threshold == nil || *cfg.Filter.Threshold != 4 {
		t.Fatalf("expected threshold override, got %v", cfg.Filter.Threshold)
	}
	if cfg.Filter.Strict == nil || *cfg.Filter.Strict {
		t.Fatalf("expected strict override")
	}
	if *cfg.Filter.Interval != 0.8 {
		t.Fatalf("unset flag must keep file value, got %v", *cfg.Filter.Interval)
	}
	if cfg.Filter.Enabled != nil || cfg.Filter.MinReversal != nil {
		t.Fatalf("unset flags must stay nil")
	}
}

func TestApplyFilterFlagsWithoutFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	var cfg config.FileConfig
	applyFilterFlags(cmd, &cfg)
	if cfg.Filter.Threshold != nil || cfg.Filter.Interval != nil {
		t.Fatalf("expected no overrides")
	}
}

func TestNormalizeApp(t *testing.T) {
	if got := normalizeApp("  Chrome.EXE "); got != "chrome.exe" {
		t.Fatalf("expected chrome.exe, got %q", got)
	}
}
