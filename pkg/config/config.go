// Package config loads settings shared by the erd binaries.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/ha1tch/erd-toolkit/pkg/canvas"
	"github.com/ha1tch/erd-toolkit/pkg/erdfile"
)

// Environment variables that override file values.
const (
	EnvConfig    = "ERD_CONFIG"
	EnvExportDir = "ERD_EXPORT_DIR"
	EnvLogLevel  = "ERD_LOG_LEVEL"
)

// Config holds persistent settings.
type Config struct {
	ExportDir           string  `toml:"export_dir"`
	ExportPrefix        string  `toml:"export_prefix"`
	ExportFormat        string  `toml:"export_format"` // "png" or "svg"
	Supersample         float64 `toml:"supersample"`
	MaxPixels           int     `toml:"max_pixels"`
	HistoryLimit        int     `toml:"history_limit"`
	LayoutAlgorithm     string  `toml:"layout_algorithm"`
	LayoutIterations    int     `toml:"layout_iterations"`
	LayoutStepsPerFrame int     `toml:"layout_steps_per_frame"`
	WheelSensitivity    float64 `toml:"wheel_sensitivity"`
	LogLevel            string  `toml:"log_level"`
	LogFile             string  `toml:"log_file"`
	LastDir             string  `toml:"last_dir"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		ExportPrefix:        "erd_diagram",
		ExportFormat:        "png",
		Supersample:         2,
		MaxPixels:           erdfile.DefaultMaxPixels,
		HistoryLimit:        canvas.DefaultHistoryLimit,
		LayoutAlgorithm:     erdfile.LayoutForceDirected.String(),
		LayoutIterations:    erdfile.DefaultLayoutOptions().Iterations,
		LayoutStepsPerFrame: 10,
		WheelSensitivity:    canvas.DefaultWheelSensitivity,
		LogLevel:            "info",
	}
}

// Path returns the config file location: $ERD_CONFIG, or ~/.erdview.toml.
func Path() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".erdview.toml"
	}
	return filepath.Join(home, ".erdview.toml")
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return cfg, err
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// readFile reads path over the defaults without environment overrides.
func readFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("failed to read config file '%s': %w", path, err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse TOML: %w", err)
		}
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvExportDir); ok {
		c.ExportDir = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
}

// Save writes cfg to path as TOML.
func Save(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	content := append([]byte("# erdview configuration\n"), data...)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	return os.WriteFile(path, content, 0644)
}

// SaveLastDir records dir as last_dir in the file at path. Other file
// values are kept as written; environment overrides are not persisted.
func SaveLastDir(path, dir string) error {
	cfg, err := readFile(path)
	if err != nil {
		return err
	}
	cfg.LastDir = dir
	return Save(path, cfg)
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if c.ExportFormat != "png" && c.ExportFormat != "svg" {
		errs = append(errs, fmt.Errorf("export_format must be png or svg, got %q", c.ExportFormat))
	}
	if c.Supersample <= 0 {
		errs = append(errs, fmt.Errorf("supersample must be positive, got %v", c.Supersample))
	}
	if c.MaxPixels < 0 {
		errs = append(errs, fmt.Errorf("max_pixels must not be negative, got %d", c.MaxPixels))
	}
	if c.HistoryLimit <= 0 {
		errs = append(errs, fmt.Errorf("history_limit must be positive, got %d", c.HistoryLimit))
	}
	if c.LayoutIterations < 0 {
		errs = append(errs, fmt.Errorf("layout_iterations must not be negative, got %d", c.LayoutIterations))
	}
	if c.LayoutStepsPerFrame <= 0 {
		errs = append(errs, fmt.Errorf("layout_steps_per_frame must be positive, got %d", c.LayoutStepsPerFrame))
	}
	if c.WheelSensitivity <= 0 {
		errs = append(errs, fmt.Errorf("wheel_sensitivity must be positive, got %v", c.WheelSensitivity))
	}
	if _, ok := erdfile.ParseLayoutAlgorithm(c.LayoutAlgorithm); !ok {
		errs = append(errs, fmt.Errorf("unknown layout_algorithm %q", c.LayoutAlgorithm))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseLevel converts a level name (debug, info, warn, error) or an
// integer to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return slog.Level(n), nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q", s)
	}
	return l, nil
}

// Logger builds a text logger writing to w at the configured level.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// OpenLogger returns a logger for LogFile, or for fallback when no file
// is configured. The returned closer releases the file.
func (c Config) OpenLogger(fallback io.Writer) (*slog.Logger, io.Closer, error) {
	if c.LogFile == "" {
		return c.Logger(fallback), io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return c.Logger(f), f, nil
}

// ExportOptions returns export settings for this configuration.
func (c Config) ExportOptions(log *slog.Logger) erdfile.ExportOptions {
	opts := erdfile.DefaultExportOptions()
	opts.Dir = c.ExportDir
	if c.ExportPrefix != "" {
		opts.Prefix = c.ExportPrefix
	}
	opts.PNG.Supersample = c.Supersample
	opts.PNG.MaxPixels = c.MaxPixels
	opts.Logger = log
	return opts
}

// SessionOptions returns canvas session settings for this configuration.
func (c Config) SessionOptions(log *slog.Logger) canvas.Options {
	opts := canvas.DefaultOptions()
	opts.HistoryLimit = c.HistoryLimit
	opts.Algorithm, _ = erdfile.ParseLayoutAlgorithm(c.LayoutAlgorithm)
	opts.Layout.Iterations = c.LayoutIterations
	opts.WheelSensitivity = c.WheelSensitivity
	opts.Export = c.ExportOptions(log)
	opts.Logger = log
	return opts
}
