package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ha1tch/erd-toolkit/pkg/erdfile"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	t.Setenv(EnvExportDir, "")
	os.Unsetenv(EnvExportDir)
	t.Setenv(EnvLogLevel, "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysFile(t *testing.T) {
	t.Setenv(EnvExportDir, "")
	os.Unsetenv(EnvExportDir)
	t.Setenv(EnvLogLevel, "")
	path := filepath.Join(t.TempDir(), "erd.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
export_dir = "/tmp/out"
history_limit = 5
layout_algorithm = "circular"
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.HistoryLimit)
	assert.Equal(t, "circular", cfg.LayoutAlgorithm)
	assert.Equal(t, "erd_diagram", cfg.ExportPrefix, "unset keys keep defaults")
	assert.Equal(t, "/tmp/out", cfg.ExportDir)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvExportDir, "/exports")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "/exports", cfg.ExportDir)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", `history_limit = `},
		{"format", `export_format = "gif"`},
		{"history", `history_limit = 0`},
		{"algorithm", `layout_algorithm = "spiral"`},
		{"level", `log_level = "loud"`},
		{"supersample", `supersample = -1.0`},
		{"max pixels", `max_pixels = -5`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv(EnvExportDir, "")
	os.Unsetenv(EnvExportDir)
	t.Setenv(EnvLogLevel, "")

	path := filepath.Join(t.TempDir(), "nested", "erd.toml")
	cfg := Default()
	cfg.ExportDir = "/data/exports"
	cfg.LayoutStepsPerFrame = 25
	cfg.LastDir = "/home/me"
	require.NoError(t, Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "layout_steps_per_frame = 25")

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestSaveLastDirKeepsEnvOut(t *testing.T) {
	t.Setenv(EnvExportDir, "/tmp/once")
	t.Setenv(EnvLogLevel, "debug")

	path := filepath.Join(t.TempDir(), "erd.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
export_dir = "/data/exports"
history_limit = 5
`), 0644))

	require.NoError(t, SaveLastDir(path, "/home/me/schemas"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "/tmp/once")
	assert.NotContains(t, string(data), "debug")

	got, err := readFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/exports", got.ExportDir)
	assert.Equal(t, 5, got.HistoryLimit)
	assert.Equal(t, "info", got.LogLevel)
	assert.Equal(t, "/home/me/schemas", got.LastDir)
}

func TestSaveLastDirCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.toml")
	require.NoError(t, SaveLastDir(path, "/srv"))

	got, err := readFile(path)
	require.NoError(t, err)
	want := Default()
	want.LastDir = "/srv"
	assert.Equal(t, want, got)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"-4", slog.LevelDebug},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLoggerHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.LogLevel = "warn"
	log := cfg.Logger(&buf)
	log.Info("hidden")
	log.Warn("shown", "k", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestSessionOptions(t *testing.T) {
	cfg := Default()
	cfg.HistoryLimit = 7
	cfg.LayoutAlgorithm = "grid"
	cfg.LayoutIterations = 40
	cfg.Supersample = 3
	cfg.MaxPixels = 1000
	cfg.ExportDir = "out"
	cfg.ExportPrefix = "schema"

	opts := cfg.SessionOptions(nil)
	assert.Equal(t, 7, opts.HistoryLimit)
	assert.Equal(t, erdfile.LayoutGrid, opts.Algorithm)
	assert.Equal(t, 40, opts.Layout.Iterations)
	assert.Equal(t, 3.0, opts.Export.PNG.Supersample)
	assert.Equal(t, 1000, opts.Export.PNG.MaxPixels)
	assert.Equal(t, "out", opts.Export.Dir)
	assert.Equal(t, "schema", opts.Export.Prefix)
}
