// Package config loads weft pipeline files.
//
// A pipeline file is TOML:
//
//	[pipeline]
//	passes = ["reassoc", "peephole", "thread-jumps"]
//	max_iterations = 100
//	cleanup = true
//
//	[trace]
//	level = "phase"
//	mode = "stream"
//	output = "weft.trace.json"
//	format = "auto"
//	ring_size = 4096
//	heartbeat = "1s"
//
//	[stress]
//	universes = 16
//	lams = 32
//	ops = 24
//	seed = 1
//	jobs = 0
//
// Every key is optional; missing keys keep their defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"weft/internal/trace"
)

// Config is a decoded pipeline file.
type Config struct {
	Pipeline Pipeline `toml:"pipeline"`
	Trace    Trace    `toml:"trace"`
	Stress   Stress   `toml:"stress"`
}

// Pipeline selects passes.
type Pipeline struct {
	Passes        []string `toml:"passes"`
	MaxIterations int      `toml:"max_iterations"`
	Cleanup       bool     `toml:"cleanup"`
}

// Trace mirrors trace.Config in textual form.
type Trace struct {
	Level     string   `toml:"level"`
	Mode      string   `toml:"mode"`
	Output    string   `toml:"output"`
	Format    string   `toml:"format"`
	RingSize  int      `toml:"ring_size"`
	Heartbeat Duration `toml:"heartbeat"`
}

// Stress sizes a stress run.
type Stress struct {
	Universes int    `toml:"universes"`
	Lams      int    `toml:"lams"`
	Ops       int    `toml:"ops"`
	Seed      uint64 `toml:"seed"`
	Jobs      int    `toml:"jobs"`
}

// Duration decodes TOML strings such as "500ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Pipeline: Pipeline{
			Passes:        []string{"reassoc", "peephole", "thread-jumps"},
			MaxIterations: 100,
			Cleanup:       true,
		},
		Trace: Trace{
			Level:    "off",
			Mode:     "stream",
			RingSize: 4096,
		},
		Stress: Stress{
			Universes: 16,
			Lams:      32,
			Ops:       24,
			Seed:      1,
		},
	}
}

// Load overlays the file at path on Default.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("pipeline", "passes") && len(cfg.Pipeline.Passes) == 0 {
		return Config{}, fmt.Errorf("%s: [pipeline].passes is empty", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and names.
func (c Config) Validate() error {
	var errs []error
	if c.Pipeline.MaxIterations < 0 {
		errs = append(errs, fmt.Errorf("[pipeline].max_iterations must not be negative, got %d", c.Pipeline.MaxIterations))
	}
	for _, p := range c.Pipeline.Passes {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, errors.New("[pipeline].passes contains an empty name"))
		}
	}
	if _, err := trace.ParseLevel(c.Trace.Level); err != nil {
		errs = append(errs, fmt.Errorf("[trace].level: %w", err))
	}
	if _, err := trace.ParseMode(c.Trace.Mode); err != nil {
		errs = append(errs, fmt.Errorf("[trace].mode: %w", err))
	}
	if _, err := trace.ParseFormat(c.Trace.Format); err != nil {
		errs = append(errs, fmt.Errorf("[trace].format: %w", err))
	}
	if c.Trace.RingSize < 0 {
		errs = append(errs, fmt.Errorf("[trace].ring_size must not be negative, got %d", c.Trace.RingSize))
	}
	if c.Trace.Heartbeat.Duration < 0 {
		errs = append(errs, fmt.Errorf("[trace].heartbeat must not be negative, got %s", c.Trace.Heartbeat))
	}
	if c.Stress.Universes < 1 {
		errs = append(errs, fmt.Errorf("[stress].universes must be positive, got %d", c.Stress.Universes))
	}
	if c.Stress.Lams < 1 {
		errs = append(errs, fmt.Errorf("[stress].lams must be positive, got %d", c.Stress.Lams))
	}
	if c.Stress.Ops < 0 {
		errs = append(errs, fmt.Errorf("[stress].ops must not be negative, got %d", c.Stress.Ops))
	}
	if c.Stress.Jobs < 0 {
		errs = append(errs, fmt.Errorf("[stress].jobs must not be negative, got %d", c.Stress.Jobs))
	}
	return errors.Join(errs...)
}

// TraceConfig converts the [trace] section.
func (c Config) TraceConfig() (trace.Config, error) {
	level, err := trace.ParseLevel(c.Trace.Level)
	if err != nil {
		return trace.Config{}, err
	}
	mode, err := trace.ParseMode(c.Trace.Mode)
	if err != nil {
		return trace.Config{}, err
	}
	format, err := trace.ParseFormat(c.Trace.Format)
	if err != nil {
		return trace.Config{}, err
	}
	return trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: c.Trace.Output,
		RingSize:   c.Trace.RingSize,
		Heartbeat:  c.Trace.Heartbeat.Duration,
	}, nil
}
