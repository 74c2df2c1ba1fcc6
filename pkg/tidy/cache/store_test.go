package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_LookupValidatesFileState(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	mtime := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put("sha256", "/p/a.jpg", &Entry{Size: 1200, Mtime: mtime.UnixNano(), Digest: "abc"}))

	digest, ok := store.Lookup("sha256", "/p/a.jpg", 1200, mtime)
	assert.True(t, ok)
	assert.Equal(t, "abc", digest)

	_, ok = store.Lookup("sha256", "/p/a.jpg", 1201, mtime)
	assert.False(t, ok, "size changed")

	_, ok = store.Lookup("sha256", "/p/a.jpg", 1200, mtime.Add(time.Second))
	assert.False(t, ok, "mtime changed")

	_, ok = store.Lookup("md5", "/p/a.jpg", 1200, mtime)
	assert.False(t, ok, "other algorithm")
}

func TestStore_GetMissing(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	_, err := store.Get("sha256", "/nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_BatchCountClear(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	require.NoError(t, store.PutBatch("sha256", map[string]*Entry{
		"/a": {Size: 1, Digest: "x"},
		"/b": {Size: 2, Digest: "y"},
	}))

	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, store.Delete("/a", "sha256"))
	n, err = store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, store.Clear())
	n, err = store.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()
	mtime := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	entry := &Entry{Size: 4, Mtime: mtime.UnixNano(), Digest: "abc"}

	tests := []struct {
		name       string
		algorithms []string
		remaining  int
	}{
		{name: "all algorithms", algorithms: nil, remaining: 1},
		{name: "one algorithm", algorithms: []string{"md5"}, remaining: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := openTestStore(t)
			require.NoError(t, store.Put("sha256", "/x/a", entry))
			require.NoError(t, store.Put("md5", "/x/a", entry))
			require.NoError(t, store.Put("sha256", "/x/b", entry))

			require.NoError(t, store.Delete("/x/a", tt.algorithms...))

			n, err := store.Count()
			require.NoError(t, err)
			assert.Equal(t, tt.remaining, n)

			_, ok := store.Lookup("md5", "/x/a", 4, mtime)
			assert.False(t, ok)
			_, ok = store.Lookup("sha256", "/x/b", 4, mtime)
			assert.True(t, ok, "other paths are kept")
		})
	}
}

func TestKeyRoundTrip(t *testing.T) {
	t.Parallel()

	algo, path := ParseKey(MakeKey("sha1", "/x/y z.txt"))
	assert.Equal(t, "sha1", algo)
	assert.Equal(t, "/x/y z.txt", path)
}
