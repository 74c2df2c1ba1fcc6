package organize

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/tidy/pkg/tidy/executor"
	"github.com/jamesainslie/tidy/pkg/tidy/filter"
	"github.com/jamesainslie/tidy/pkg/tidy/planner"
	"github.com/jamesainslie/tidy/pkg/tidy/types"
	"github.com/jamesainslie/tidy/pkg/tidy/undolog"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func request(in, out string, mode types.Mode) Request {
	return Request{
		Roots:  []string{in},
		Policy: planner.Policy{By: planner.ByType, TargetRoot: out, Mode: mode},
	}
}

func TestRun_MovesAndLogs(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	out := t.TempDir()
	writeFile(t, filepath.Join(in, "a.jpg"), "jpeg")
	writeFile(t, filepath.Join(in, "notes.txt"), "text!")

	res, err := Run(context.Background(), request(in, out, types.ModeMove))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Scanned)
	require.Len(t, res.Actions, 2)
	assert.Equal(t, 2, res.Preview.OK)
	assert.Equal(t, int64(9), res.Preview.TotalBytes)
	assert.False(t, res.Interrupted)

	assert.FileExists(t, filepath.Join(out, "jpg", "a.jpg"))
	assert.FileExists(t, filepath.Join(out, "txt", "notes.txt"))
	assert.NoFileExists(t, filepath.Join(in, "a.jpg"))

	require.NotEmpty(t, res.LogPath)
	assert.Equal(t, out, filepath.Dir(res.LogPath))
	logged, err := undolog.Read(res.LogPath)
	require.NoError(t, err)
	require.Len(t, logged, 2)
	for i := range logged {
		assert.Equal(t, res.Actions[i].Source, logged[i].Source)
		assert.Equal(t, res.Actions[i].Destination, logged[i].Destination)
		assert.Equal(t, types.StatusOK, logged[i].Status)
	}
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	out := t.TempDir()
	writeFile(t, filepath.Join(in, "a.jpg"), "jpeg")

	req := request(in, out, types.ModeCopy)
	req.DryRun = true
	res, err := Run(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, res.Actions, 1)
	assert.Equal(t, types.StatusSkipped, res.Actions[0].Status)
	assert.Empty(t, res.LogPath)
	assert.Equal(t, int64(4), res.Preview.Bytes["copy"])

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_TargetInsideInputIsNotRescanned(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	out := filepath.Join(in, "Sorted")
	writeFile(t, filepath.Join(in, "a.jpg"), "jpeg")
	writeFile(t, filepath.Join(out, "jpg", "old.jpg"), "old")

	res, err := Run(context.Background(), request(in, out, types.ModeCopy))
	require.NoError(t, err)

	require.Len(t, res.Actions, 1)
	assert.Equal(t, filepath.Join(in, "a.jpg"), res.Actions[0].Source)
}

func TestRun_Filter(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	out := t.TempDir()
	writeFile(t, filepath.Join(in, "a.jpg"), "jpeg")
	writeFile(t, filepath.Join(in, "b.txt"), "text")

	req := request(in, out, types.ModeCopy)
	req.Filter = filter.New(filter.WithExtensions(".txt"))
	res, err := Run(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, res.Actions, 1)
	assert.Equal(t, filepath.Join(out, "txt", "b.txt"), res.Actions[0].Destination)
}

func TestRun_InvalidPolicy(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	_, err := Run(context.Background(), request(in, "relative/out", types.ModeMove))
	assert.ErrorIs(t, err, planner.ErrInvalidPolicy)
}

func TestApply_CancelledStillLogsNothingDone(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan := []types.PlannedAction{{Source: "/nowhere/a.jpg", Destination: filepath.Join(out, "jpg", "a.jpg"), Mode: types.ModeMove}}
	res, err := Apply(ctx, plan, out, false)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.True(t, res.Interrupted)
	assert.Empty(t, res.Actions)
	assert.Empty(t, res.LogPath)
}

func TestApply_LogsPartialBatch(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	out := t.TempDir()
	writeFile(t, filepath.Join(in, "a.jpg"), "jpeg")

	ctx, cancel := context.WithCancel(context.Background())
	plan := []types.PlannedAction{
		{Source: filepath.Join(in, "a.jpg"), Destination: filepath.Join(out, "jpg", "a.jpg"), Mode: types.ModeCopy, Size: 4},
		{Source: filepath.Join(in, "b.jpg"), Destination: filepath.Join(out, "jpg", "b.jpg"), Mode: types.ModeCopy},
	}

	res, err := Apply(ctx, plan, out, false, executor.WithProgress(func(executor.Progress) { cancel() }))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.True(t, res.Interrupted)
	require.Len(t, res.Actions, 1)
	require.NotEmpty(t, res.LogPath)

	logged, err := undolog.Read(res.LogPath)
	require.NoError(t, err)
	assert.Len(t, logged, 1)
}
