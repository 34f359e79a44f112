// Package config handles weft.toml runtime configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "weft.toml"

// Defaults applied to fields left unset.
const (
	DefaultWorkers      = 1
	DefaultLogLevel     = "info"
	DefaultIopTimeout   = 30 * time.Second
	DefaultPollInterval = 25 * time.Millisecond
)

// Config is the weft runtime configuration.
type Config struct {
	Workers     int      `toml:"workers"`
	ProgramDirs []string `toml:"program_dirs"`
	LogLevel    string   `toml:"log_level"`
	Iop         Iop      `toml:"iop"`
	Trace       Trace    `toml:"trace"`

	// Dir is the directory containing the config file (set at load time).
	// Relative program dirs resolve against it.
	Dir string `toml:"-"`
}

// Iop configures the asynchronous I/O driver.
type Iop struct {
	Timeout      Duration `toml:"timeout"`
	PollInterval Duration `toml:"poll_interval"`
}

// Trace configures the trace store. An empty DB disables recording.
type Trace struct {
	DB string `toml:"db"`
}

// Duration is a time.Duration written as a Go duration string ("30s").
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

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load parses a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes TOML and applies defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var c Config
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	c.applyDefaults()
	return &c, nil
}

// FindAndLoad walks up from startDir to find a weft.toml file and loads it.
// Returns the defaults if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

func (c *Config) applyDefaults() {
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Iop.Timeout.Duration == 0 {
		c.Iop.Timeout.Duration = DefaultIopTimeout
	}
	if c.Iop.PollInterval.Duration == 0 {
		c.Iop.PollInterval.Duration = DefaultPollInterval
	}
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Iop.Timeout.Duration < 0 {
		errs = append(errs, fmt.Errorf("iop.timeout must not be negative"))
	}
	if c.Iop.PollInterval.Duration <= 0 {
		errs = append(errs, fmt.Errorf("iop.poll_interval must be positive"))
	}
	return errors.Join(errs...)
}

// Level returns the configured slog level. Call Validate first.
func (c *Config) Level() slog.Level {
	lvl, _ := ParseLevel(c.LogLevel)
	return lvl
}

// ProgramDirPaths returns program directories resolved against Dir.
func (c *Config) ProgramDirPaths() []string {
	paths := make([]string, 0, len(c.ProgramDirs))
	for _, d := range c.ProgramDirs {
		if filepath.IsAbs(d) || c.Dir == "" {
			paths = append(paths, d)
			continue
		}
		paths = append(paths, filepath.Join(c.Dir, d))
	}
	return paths
}

// ParseLevel maps a log level name to its slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}
