// Package config provides configuration helpers and TOML parsing.
package config

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/methetech/WheelScrollFixer/internal/model"
)

// Accepted ranges, matching what the settings surface allows.
const (
	MinInterval    = 0.05
	MaxInterval    = 5.0
	MinThreshold   = 1
	MaxThreshold   = 10
	MaxMinReversal = 1.0
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Filter   FilterConfig             `toml:"filter"`
	Profiles map[string]ProfileConfig `toml:"profiles,omitempty"`
}

// FilterConfig maps the global filter settings. Durations are in seconds.
type FilterConfig struct {
	Enabled       *bool    `toml:"enabled,omitempty"`
	Interval      *float64 `toml:"interval,omitempty"`
	Threshold     *int     `toml:"threshold,omitempty"`
	Strict        *bool    `toml:"strict,omitempty"`
	MinReversal   *float64 `toml:"min-reversal,omitempty"`
	SmartMomentum *bool    `toml:"smart-momentum,omitempty"`
	Blacklist     []string `toml:"blacklist,omitempty"`
}

// ProfileConfig overrides interval/threshold for one application.
type ProfileConfig struct {
	Interval  *float64 `toml:"interval,omitempty"`
	Threshold *int     `toml:"threshold,omitempty"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(string(data))
}

// ParseConfig decodes TOML text. Unknown keys are rejected.
func ParseConfig(data string) (FileConfig, error) {
	var cfg FileConfig
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return FileConfig{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return cfg, nil
}

// LoadSettings loads path and converts it to validated settings.
func LoadSettings(path string) (model.Settings, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return model.Settings{}, err
	}
	return cfg.ToSettings()
}

// ToSettings applies defaults for unset values and validates the result.
func (c FileConfig) ToSettings() (model.Settings, error) {
	s := model.DefaultSettings()
	f := c.Filter
	if f.Enabled != nil {
		s.Enabled = *f.Enabled
	}
	if f.Interval != nil {
		if err := checkInterval("interval", *f.Interval); err != nil {
			return model.Settings{}, err
		}
		s.Interval = seconds(*f.Interval)
	}
	if f.Threshold != nil {
		if err := checkThreshold("threshold", *f.Threshold); err != nil {
			return model.Settings{}, err
		}
		s.Threshold = *f.Threshold
	}
	if f.Strict != nil {
		s.Strict = *f.Strict
	}
	if f.MinReversal != nil {
		v := *f.MinReversal
		if math.IsNaN(v) || v < 0 || v > MaxMinReversal {
			return model.Settings{}, fmt.Errorf("min-reversal must be between 0 and %g seconds", MaxMinReversal)
		}
		s.MinReversal = seconds(v)
	}
	if f.SmartMomentum != nil {
		s.SmartMomentum = *f.SmartMomentum
	}

	seen := map[string]struct{}{}
	for _, name := range f.Blacklist {
		name = normalizeApp(name)
		if name == "" {
			return model.Settings{}, fmt.Errorf("blacklist entries must not be empty")
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		s.Blacklist = append(s.Blacklist, name)
	}

	for rawName, p := range c.Profiles {
		name := normalizeApp(rawName)
		if name == "" {
			return model.Settings{}, fmt.Errorf("profile names must not be empty")
		}
		var prof model.Profile
		if p.Interval != nil {
			if err := checkInterval(fmt.Sprintf("profiles.%q.interval", rawName), *p.Interval); err != nil {
				return model.Settings{}, err
			}
			prof.Interval = seconds(*p.Interval)
		}
		if p.Threshold != nil {
			if err := checkThreshold(fmt.Sprintf("profiles.%q.threshold", rawName), *p.Threshold); err != nil {
				return model.Settings{}, err
			}
			prof.Threshold = *p.Threshold
		}
		if _, dup := s.Profiles[name]; dup {
			return model.Settings{}, fmt.Errorf("duplicate profile %q", name)
		}
		s.Profiles[name] = prof
	}
	return s, nil
}

// FromSettings builds a fully populated file config from settings.
func FromSettings(s model.Settings) FileConfig {
	enabled := s.Enabled
	interval := s.Interval.Seconds()
	threshold := s.Threshold
	strict := s.Strict
	minReversal := s.MinReversal.Seconds()
	smart := s.SmartMomentum

	blacklist := append([]string(nil), s.Blacklist...)
	sort.Strings(blacklist)

	cfg := FileConfig{
		Filter: FilterConfig{
			Enabled:       &enabled,
			Interval:      &interval,
			Threshold:     &threshold,
			Strict:        &strict,
			MinReversal:   &minReversal,
			SmartMomentum: &smart,
			Blacklist:     blacklist,
		},
	}
	if len(s.Profiles) > 0 {
		cfg.Profiles = make(map[string]ProfileConfig, len(s.Profiles))
		for name, p := range s.Profiles {
			var pc ProfileConfig
			if p.Interval > 0 {
				v := p.Interval.Seconds()
				pc.Interval = &v
			}
			if p.Threshold > 0 {
				v := p.Threshold
				pc.Threshold = &v
			}
			cfg.Profiles[name] = pc
		}
	}
	return cfg
}

// SaveConfig writes cfg to path atomically (temp file + rename).
func SaveConfig(path string, cfg FileConfig) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	var buf bytes.Buffer
	buf.WriteString("# wheelfix configuration\n\n")
	if err := WriteConfig(&buf, cfg); err != nil {
		return err
	}
	return writeFileAtomic(path, buf.Bytes())
}

// WriteConfig encodes cfg as TOML.
func WriteConfig(w io.Writer, cfg FileConfig) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// SaveSettings writes settings to path.
func SaveSettings(path string, s model.Settings) error {
	return SaveConfig(path, FromSettings(s))
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(path), "config-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create temp config: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}

func checkInterval(name string, v float64) error {
	if math.IsNaN(v) || v < MinInterval || v > MaxInterval {
		return fmt.Errorf("%s must be between %g and %g seconds", name, MinInterval, MaxInterval)
	}
	return nil
}

func checkThreshold(name string, v int) error {
	if v < MinThreshold || v > MaxThreshold {
		return fmt.Errorf("%s must be between %d and %d", name, MinThreshold, MaxThreshold)
	}
	return nil
}

func seconds(v float64) time.Duration {
	return time.Duration(math.Round(v * float64(time.Second)))
}

func normalizeApp(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
