package undolog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/tidy/pkg/tidy/types"
)

var start = time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC)

func sampleActions() []types.CompletedAction {
	return []types.CompletedAction{
		{Source: "/src/a.jpg", Destination: "/t/jpg/a.jpg", Time: start, Status: types.StatusOK, Mode: types.ModeMove, Size: 1200},
		{Source: "/src/b.jpg", Destination: "/t/jpg/b.jpg", Time: start, Status: types.StatusFailed, Mode: types.ModeMove, Error: "permission denied"},
		{Source: "/src/c.jpg", Destination: "/t/jpg/c.jpg", Time: start, Status: types.StatusSkipped, Mode: types.ModeMove},
	}
}

func TestNew_RejectsEmptyRoot(t *testing.T) {
	t.Parallel()

	_, err := New("")
	assert.Error(t, err)
}

func TestWrite_NameAndContent(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	l, err := New(root)
	require.NoError(t, err)

	path, err := l.Write(sampleActions(), start.In(time.FixedZone("X", 3600)))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "fm_organize_20240105T103000Z.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 3)
	assert.Equal(t, "/src/a.jpg", raw[0]["src"])
	assert.Equal(t, "move", raw[0]["mode"])
	assert.Equal(t, "ok", raw[0]["status"])
	assert.Equal(t, "2024-01-05T10:30:00Z", raw[0]["time"])
	assert.Equal(t, "permission denied", raw[1]["error"])

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, sampleActions(), got)
}

func TestWrite_SameSecondGetsDistinctNames(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	l, err := New(root)
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		paths = map[string]bool{}
		wg    sync.WaitGroup
	)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			other, err := New(root)
			if !assert.NoError(t, err) {
				return
			}
			p, err := other.Write(sampleActions(), start)
			if assert.NoError(t, err) {
				mu.Lock()
				paths[p] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	p, err := l.Write(nil, start)
	require.NoError(t, err)
	paths[p] = true

	assert.Len(t, paths, 6)
	assert.Contains(t, paths, filepath.Join(root, "fm_organize_20240105T103000Z.json"))
	assert.Contains(t, paths, filepath.Join(root, "fm_organize_20240105T103000Z_5.json"))
}

func TestRead_Corrupt(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	cases := map[string]string{
		"not json":        `{{{`,
		"object":          `{"src":"a"}`,
		"null":            `null`,
		"unknown mode":    `[{"src":"a","dst":"b","status":"ok","mode":"teleport"}]`,
		"unknown status":  `[{"src":"a","dst":"b","status":"maybe","mode":"move"}]`,
		"missing status":  `[{"src":"a","dst":"b","mode":"move"}]`,
		"ok without dst":  `[{"src":"a","status":"ok","mode":"copy"}]`,
		"ok without mode": `[{"src":"a","dst":"b","status":"ok"}]`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			p := filepath.Join(dir, name+".json")
			require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
			_, err := Read(p)
			assert.ErrorIs(t, err, ErrLogCorrupt)
		})
	}
}

func TestRead_EmptyListIsValid(t *testing.T) {
	t.Parallel()
	p := filepath.Join(t.TempDir(), "fm_organize_20240105T103000Z.json")
	require.NoError(t, os.WriteFile(p, []byte(`[]`), 0o644))

	got, err := Read(p)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestList_NewestFirstAndLatest(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	l, err := New(root)
	require.NoError(t, err)

	_, err = l.Write(sampleActions(), start)
	require.NoError(t, err)
	_, err = l.Write(sampleActions()[:1], start.Add(time.Hour))
	require.NoError(t, err)
	newest, err := l.Write(nil, start.Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "fm_organize_20240105T000000Z.json"), []byte("garbage"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.json"), []byte("[]"), 0o644))

	infos, err := l.List(0)
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, newest, infos[0].Path)
	assert.Equal(t, 1, infos[0].Seq)
	assert.Equal(t, 1, infos[1].Summary.OK)
	assert.Equal(t, Summary{Total: 3, OK: 1, Skipped: 1, Failed: 1, Bytes: 1200}, infos[2].Summary)

	limited, err := l.List(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	latest, err := l.Latest()
	require.NoError(t, err)
	assert.Equal(t, newest, latest)
}

func TestLatest_NoLogs(t *testing.T) {
	t.Parallel()
	l, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = l.Latest()
	assert.ErrorIs(t, err, ErrNoLogs)
}

func TestCleanup(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	l, err := New(root)
	require.NoError(t, err)

	old, err := l.Write(nil, start.AddDate(0, 0, -40))
	require.NoError(t, err)
	recent, err := l.Write(nil, start.AddDate(0, 0, -2))
	require.NoError(t, err)

	removed, err := l.Cleanup(30, start)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, old)
	assert.FileExists(t, recent)
}

func TestCleanup_RemovesAbandonedReservations(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	l, err := New(root)
	require.NoError(t, err)

	abandoned := filepath.Join(root, FileName(start.Add(-time.Hour).Format(StampLayout), 0))
	fresh := filepath.Join(root, FileName(start.Format(StampLayout), 0))
	for _, p := range []string{abandoned, fresh} {
		require.NoError(t, os.WriteFile(p, nil, 0o644))
	}
	require.NoError(t, os.Chtimes(abandoned, start.Add(-time.Hour), start.Add(-time.Hour)))
	require.NoError(t, os.Chtimes(fresh, start, start))
	written, err := l.Write(nil, start.Add(-2*time.Hour))
	require.NoError(t, err)

	removed, err := l.Cleanup(30, start)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, abandoned)
	assert.FileExists(t, fresh, "a writer may still be filling it")
	assert.FileExists(t, written)
}

func TestParseName(t *testing.T) {
	t.Parallel()

	ts, seq, ok := ParseName("/x/fm_organize_20240105T103000Z_3.json")
	require.True(t, ok)
	assert.Equal(t, 3, seq)
	assert.True(t, start.Equal(ts))

	_, _, ok = ParseName("fm_organize_2024.json")
	assert.False(t, ok)
	_, _, ok = ParseName("fm_organize_20240105T103000Z_x.json")
	assert.False(t, ok)
}

func TestRemove(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	l, err := New(root)
	require.NoError(t, err)

	p, err := l.Write(nil, start)
	require.NoError(t, err)

	require.NoError(t, l.Remove(p))
	assert.NoFileExists(t, p)
	assert.NoError(t, l.Remove(p))

	other := filepath.Join(root, "keep.json")
	require.NoError(t, os.WriteFile(other, []byte("[]"), 0o644))
	assert.Error(t, l.Remove(other))
	assert.FileExists(t, other)
}
