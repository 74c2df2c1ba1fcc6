package trash

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixed = time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC)

func newTestTrash(t *testing.T) *Trash {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "trash"),
		WithSystemTrash(false),
		WithClock(func() time.Time { return fixed }))
}

func TestDispose_MovesIntoDir(t *testing.T) {
	t.Parallel()
	tr := newTestTrash(t)

	src := filepath.Join(t.TempDir(), "dup.jpg")
	require.NoError(t, os.WriteFile(src, []byte("dup"), 0o644))

	dest, err := tr.Dispose(src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tr.Dir(), "20240105T103000_dup.jpg"), dest)
	assert.NoFileExists(t, src)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "dup", string(data))
}

func TestDispose_NeverOverwrites(t *testing.T) {
	t.Parallel()
	tr := newTestTrash(t)
	dir := t.TempDir()

	var dests []string
	for _, sub := range []string{"a", "b"} {
		src := filepath.Join(dir, sub, "dup.jpg")
		require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
		require.NoError(t, os.WriteFile(src, []byte(sub), 0o644))

		dest, err := tr.Dispose(src)
		require.NoError(t, err)
		dests = append(dests, dest)
	}

	assert.Equal(t, filepath.Join(tr.Dir(), "20240105T103000_dup_1.jpg"), dests[1])
	data, err := os.ReadFile(dests[0])
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))
}

func TestDispose_Errors(t *testing.T) {
	t.Parallel()
	tr := newTestTrash(t)

	_, err := tr.Dispose(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	_, err = tr.Dispose(t.TempDir())
	assert.Error(t, err)
}

func TestNew_DefaultDir(t *testing.T) {
	t.Parallel()
	assert.Equal(t, DefaultDir(), New("").Dir())
}
