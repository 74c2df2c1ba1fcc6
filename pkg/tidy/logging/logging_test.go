package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/tidy/pkg/tidy/logging"
)

// Tests in this file share the package's global state and do not run in parallel.

func TestGet_BeforeInitIsSilent(t *testing.T) {
	l := logging.Get("silent")
	require.NotNil(t, l)
	l.Info("nobody hears this")
}

func TestInit_WritesComponentPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tidy.log")
	require.NoError(t, logging.Init(logging.Config{Level: "debug", Path: path}))
	t.Cleanup(func() { _ = logging.Close() })

	logging.Get("executor").Info("moved file", "src", "/a", "dst", "/b")
	require.NoError(t, logging.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "executor")
	assert.Contains(t, out, "moved file")
	assert.Contains(t, out, "dst=/b")
}

func TestInit_ComponentOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tidy.log")
	require.NoError(t, logging.Init(logging.Config{
		Level:      "info",
		Path:       path,
		Components: map[string]string{"dedupe": "error"},
	}))
	t.Cleanup(func() { _ = logging.Close() })

	logging.Get("dedupe").Info("hidden")
	logging.Get("planner").Info("visible")
	require.NoError(t, logging.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "visible")
}

func TestInit_InvalidLevel(t *testing.T) {
	err := logging.Init(logging.Config{Level: "loud", Path: filepath.Join(t.TempDir(), "x.log")})
	assert.ErrorIs(t, err, logging.ErrInvalidLevel)
}

func TestRotatingWriter_RotatesBySize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "tidy.log")
	w, err := logging.NewRotatingWriter(path, logging.RotationConfig{MaxSize: 64, MaxBackups: 2})
	require.NoError(t, err)

	line := []byte(strings.Repeat("x", 40) + "\n")
	for range 3 {
		_, err := w.Write(line)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(entries), 2)
	assert.LessOrEqual(t, len(entries), 3)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.LessOrEqual(t, info.Size(), int64(64))
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	lvl, err := logging.ParseLevel("WARNING")
	require.NoError(t, err)
	assert.Equal(t, logging.LevelWarn, lvl)
	assert.Equal(t, "warn", lvl.String())
}
