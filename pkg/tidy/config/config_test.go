package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := FromViper(v)
	if err != nil {
		t.Fatalf("FromViper() error = %v", err)
	}

	if cfg.By != DefaultBy {
		t.Errorf("By = %q, want %q", cfg.By, DefaultBy)
	}
	if cfg.Mode != DefaultMode {
		t.Errorf("Mode = %q, want %q", cfg.Mode, DefaultMode)
	}
	if cfg.Naming != DefaultNaming {
		t.Errorf("Naming = %q, want %q", cfg.Naming, DefaultNaming)
	}
	if !cfg.Cache.Enabled {
		t.Error("Cache.Enabled = false, want true")
	}
	if cfg.History.RetentionDays != DefaultRetentionDays {
		t.Errorf("History.RetentionDays = %d, want %d", cfg.History.RetentionDays, DefaultRetentionDays)
	}
	if len(cfg.Exclude) != len(DefaultExclusions) {
		t.Errorf("len(Exclude) = %d, want %d", len(cfg.Exclude), len(DefaultExclusions))
	}

	d, err := cfg.DebounceDuration()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
target: /srv/sorted
by: date
mode: hardlink
naming: underscore
size_bucket:
  threshold: 100MB
  folder: Huge
dedupe:
  algorithm: md5
  keep: newest
history:
  retention_days: 7
watch:
  debounce: 500ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/sorted", cfg.Target)
	assert.Equal(t, "date", cfg.By)
	assert.Equal(t, "hardlink", cfg.Mode)
	assert.Equal(t, "underscore", cfg.Naming)
	assert.Equal(t, "100MB", cfg.SizeBucket.Threshold)
	assert.Equal(t, "Huge", cfg.SizeBucket.Folder)
	assert.Equal(t, "md5", cfg.Dedupe.Algorithm)
	assert.Equal(t, "newest", cfg.Dedupe.Keep)
	assert.Equal(t, DefaultDuplicatesFolder, cfg.Dedupe.DuplicatesFolder)
	assert.Equal(t, 7, cfg.History.RetentionDays)

	d, err := cfg.DebounceDuration()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, d)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "mode: copy\ndedupe:\n  keep: newest\n")
	t.Setenv("TIDY_MODE", "index")
	t.Setenv("TIDY_DEDUPE_KEEP", "first")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "index", cfg.Mode)
	assert.Equal(t, "first", cfg.Dedupe.Keep)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"mode", "mode: shred\n"},
		{"threshold", "size_bucket:\n  threshold: lots\n"},
		{"debounce", "watch:\n  debounce: soon\n"},
		{"retention", "history:\n  retention_days: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatalf("Load() error = nil, want error for %s", tt.name)
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandPath("~/Sorted")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "Sorted"), got)

	got, err = ExpandPath("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", got)
}

func TestLoggingConfig(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{
		Level:      "debug",
		Path:       "/var/log/tidy.log",
		MaxSize:    "1MB",
		MaxAge:     3,
		MaxBackups: 2,
		Components: map[string]string{"undo": "warn"},
	}}

	lc, err := cfg.LoggingConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", lc.Level)
	assert.Equal(t, "/var/log/tidy.log", lc.Path)
	assert.Equal(t, int64(1024*1024), lc.Rotation.MaxSize)
	assert.Equal(t, 3, lc.Rotation.MaxAge)
	assert.Equal(t, 2, lc.Rotation.MaxBackups)
	assert.Equal(t, "warn", lc.Components["undo"])

	cfg.Logging.MaxSize = "huge"
	_, err = cfg.LoggingConfig()
	assert.Error(t, err)
}

func TestWriteDefault(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	written, err := WriteDefault(path)
	require.NoError(t, err)
	assert.True(t, written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# tidy configuration"))

	// The written file must load cleanly.
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultMode, cfg.Mode)
	assert.Equal(t, "Large", cfg.SizeBucket.Folder)

	written, err = WriteDefault(path)
	require.NoError(t, err)
	assert.False(t, written)
}
