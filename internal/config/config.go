// Package config loads pipeline settings from defaults, environment
// variables (GHCND_ prefix, plus NOAA_TOKEN for the API token), and CLI
// flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AkkshayaRajesh/ghcnd-pipeline/internal/domain"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config holds all settings for the fetch and merge commands.
type Config struct {
	Token string

	OutDir    string
	Variables []string
	States    []string
	Units     string
	Frequency domain.Frequency

	PreferUSW         bool
	Resume            bool
	SaveRaw           bool
	CoverageTolerance float64
	StartYear         int
	EndYear           int
	Concurrency       int

	Timeout          time.Duration
	PageLimit        int
	PagePause        time.Duration
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	RetryJitter      time.Duration

	HTTPAddr  string // status server; empty disables it
	LogLevel  string
	LogFormat string

	// merge-only settings
	InDir      string
	OutFile    string
	Long       bool
	RequireAll bool
	Sort       bool
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"outdir":             "ghcnd_out_rep",
		"vars":               strings.Join(domain.DefaultVariables, ","),
		"states":             strings.Join(domain.AllStateFIPS, ","),
		"units":              "standard",
		"freq":               string(domain.Weekly),
		"coverage-tolerance": domain.DefaultCoverageTolerance,
		"start-year":         2002,
		"end-year":           2025,
		"concurrency":        1,
		"timeout":            "40s",
		"page-limit":         1000,
		"page-pause":         "200ms",
		"retry-max-attempts": 3,
		"retry-base-delay":   "500ms",
		"retry-max-delay":    "30s",
		"retry-jitter":       "300ms",
		"log-level":          "info",
		"log-format":         "json",
		"outfile":            "",
		"indir":              "ghcnd_out_rep",
	}
}

// Load layers defaults, environment, and the given flag set. Only validation
// common to both commands happens here; see ValidateFetch and ValidateMerge.
func Load(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	// GHCND_START_YEAR -> start-year, matching flag names.
	if err := k.Load(env.Provider("GHCND_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "GHCND_")), "_", "-")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	// The canonical NOAA token variable, kept for compatibility with the
	// original scripts. GHCND_TOKEN (above) also works.
	if err := k.Load(env.Provider("NOAA_TOKEN", ".", func(string) string {
		return "token"
	}), nil); err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}

	if flags != nil {
		// Only flags the user actually set override environment values.
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return f.Name, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	cfg := &Config{
		Token:             strings.TrimSpace(k.String("token")),
		OutDir:            k.String("outdir"),
		Variables:         splitList(k.String("vars")),
		States:            splitList(k.String("states")),
		Units:             k.String("units"),
		PreferUSW:         k.Bool("prefer-usw"),
		Resume:            !k.Bool("no-resume"),
		SaveRaw:           !k.Bool("no-save-raw"),
		CoverageTolerance: k.Float64("coverage-tolerance"),
		StartYear:         k.Int("start-year"),
		EndYear:           k.Int("end-year"),
		Concurrency:       k.Int("concurrency"),
		PageLimit:         k.Int("page-limit"),
		RetryMaxAttempts:  k.Int("retry-max-attempts"),
		HTTPAddr:          k.String("http-addr"),
		LogLevel:          k.String("log-level"),
		LogFormat:         k.String("log-format"),
		InDir:             k.String("indir"),
		OutFile:           k.String("outfile"),
		Long:              k.Bool("long"),
		RequireAll:        k.Bool("require-all"),
		Sort:              k.Bool("sort"),
	}

	freq, err := domain.ParseFrequency(k.String("freq"))
	if err != nil {
		return nil, err
	}
	cfg.Frequency = freq

	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{"timeout", &cfg.Timeout},
		{"page-pause", &cfg.PagePause},
		{"retry-base-delay", &cfg.RetryBaseDelay},
		{"retry-max-delay", &cfg.RetryMaxDelay},
		{"retry-jitter", &cfg.RetryJitter},
	} {
		v, err := time.ParseDuration(k.String(d.key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if cfg.Units != "standard" && cfg.Units != "metric" {
		return nil, fmt.Errorf("invalid units %q (want standard or metric)", cfg.Units)
	}
	return cfg, nil
}

// ValidateFetch checks settings only the fetch command depends on. The token
// is checked separately after the interactive prompt has had its chance.
func (c *Config) ValidateFetch() error {
	if c.OutDir == "" {
		return errors.New("output directory is required")
	}
	if len(c.Variables) == 0 {
		return errors.New("at least one variable is required")
	}
	if len(c.States) == 0 {
		return errors.New("at least one state is required")
	}
	if c.StartYear > c.EndYear {
		return fmt.Errorf("start year %d is after end year %d", c.StartYear, c.EndYear)
	}
	if c.Concurrency < 1 {
		return errors.New("concurrency must be at least 1")
	}
	if c.RetryMaxAttempts < 1 {
		return errors.New("retry-max-attempts must be at least 1")
	}
	return nil
}

// ValidateMerge checks settings only the merge command depends on.
func (c *Config) ValidateMerge() error {
	if c.InDir == "" {
		return errors.New("input directory is required")
	}
	if len(c.States) == 0 {
		return errors.New("at least one state is required")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
