// Package undo reverses an executor run from its undo log.
//
// Entries are replayed last to first. Only ok entries are reversible; the
// inverse is chosen from the mode the executor actually used, so a hardlink
// that fell back to a copy is removed as a copy. A restore never overwrites:
// when a moved file's original path is occupied the file comes back under
// an alternate "name (restored).ext" beside it.
//
// Unless pruning is disabled, directories under the target root that are
// empty once an entry is reversed are removed up to the root. The log does
// not record which directories the run created, so an ancestor that was
// already empty before the run is removed as well.
package undo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jamesainslie/tidy/pkg/tidy/executor"
	"github.com/jamesainslie/tidy/pkg/tidy/logging"
	"github.com/jamesainslie/tidy/pkg/tidy/naming"
	"github.com/jamesainslie/tidy/pkg/tidy/types"
	"github.com/jamesainslie/tidy/pkg/tidy/undolog"
)

var (
	errDestinationMissing = errors.New("destination and source are both missing")
	errIsDirectory        = errors.New("destination is a directory")
	errNotReference       = errors.New("destination is not the recorded reference")
)

// Progress reports one reversed entry.
type Progress struct {
	Done   int
	Total  int
	Result types.UndoResult
}

// Engine reverses undo logs. It keeps no state between Undo calls.
type Engine struct {
	dryRun     bool
	keepLog    bool
	noPrune    bool
	onProgress func(Progress)
}

// Option configures an Engine.
type Option func(*Engine)

// WithDryRun reports what would be reversed without touching anything.
func WithDryRun(dry bool) Option {
	return func(e *Engine) { e.dryRun = dry }
}

// WithKeepLog keeps the log even after a reversal without failures.
func WithKeepLog(keep bool) Option {
	return func(e *Engine) { e.keepLog = keep }
}

// WithoutPrune leaves directories emptied by the reversal in place.
func WithoutPrune() Option {
	return func(e *Engine) { e.noPrune = true }
}

// WithProgress registers a callback invoked after every entry.
func WithProgress(fn func(Progress)) Option {
	return func(e *Engine) { e.onProgress = fn }
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Undo reverses the log at logPath and returns one result per entry, in
// the order they were processed (last logged entry first).
//
// A log that cannot be parsed is rejected with undolog.ErrLogCorrupt before
// anything is touched. Entry failures are recorded and never stop the
// batch. When no entry failed the log is deleted, unless the engine keeps
// logs or runs dry. Cancellation is observed between entries; the log is
// kept and the processed prefix is returned with ctx.Err().
func (e *Engine) Undo(ctx context.Context, logPath string) ([]types.UndoResult, error) {
	log := logging.Get("undo")

	actions, err := undolog.Read(logPath)
	if err != nil {
		return nil, err
	}
	root := filepath.Dir(logPath)

	results := make([]types.UndoResult, 0, len(actions))
	failed := 0
	for i := len(actions) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			log.Warn("undo cancelled", "done", len(results), "total", len(actions))
			return results, err
		}

		res := e.reverse(actions[i], root)
		results = append(results, res)

		switch res.Outcome {
		case types.OutcomeFailed:
			failed++
			log.Warn("entry not reversed", "src", res.Entry.Source, "dst", res.Entry.Destination, "error", res.Error)
		case types.OutcomeOK:
			log.Debug("entry reversed", "src", res.Entry.Source, "dst", res.Entry.Destination, "mode", res.Entry.Mode)
		}

		if e.onProgress != nil {
			e.onProgress(Progress{Done: len(results), Total: len(actions), Result: res})
		}
	}

	if failed == 0 && !e.keepLog && !e.dryRun {
		l, err := undolog.New(root)
		if err == nil {
			err = l.Remove(logPath)
		}
		if err != nil {
			log.Warn("failed to remove undo log", "path", logPath, "error", err)
		}
	}

	log.Info("undo finished", "log", logPath, "entries", len(results), "failed", failed, "dry_run", e.dryRun)
	return results, nil
}

func (e *Engine) reverse(a types.CompletedAction, root string) types.UndoResult {
	res := types.UndoResult{Entry: a, Outcome: types.OutcomeNotApplicable}
	if a.Status != types.StatusOK {
		return res
	}

	var err error
	switch a.Mode {
	case types.ModeMove:
		res, err = e.restore(res)
	case types.ModeCopy, types.ModeHardlink:
		res, err = e.remove(res, nil)
	case types.ModeIndex:
		res, err = e.remove(res, checkReference)
	default:
		err = fmt.Errorf("%w: %d", types.ErrInvalidMode, int(a.Mode))
	}
	if err != nil {
		res.Outcome = types.OutcomeFailed
		res.Error = err.Error()
		return res
	}

	if res.Outcome == types.OutcomeOK && !e.noPrune {
		pruneEmpty(filepath.Dir(a.Destination), root)
	}
	return res
}

// restore moves a file back to where it came from.
func (e *Engine) restore(res types.UndoResult) (types.UndoResult, error) {
	src, dst := res.Entry.Source, res.Entry.Destination

	info, err := os.Lstat(dst)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if ok, _ := present(src); ok {
			return res, nil
		}
		return res, errDestinationMissing
	case err != nil:
		return res, err
	case info.IsDir():
		return res, errIsDirectory
	}

	if e.dryRun {
		target, err := freeRestoreTarget(src)
		if err != nil {
			return res, err
		}
		res.Outcome = types.OutcomePreview
		res.RestoredTo = target
		return res, nil
	}

	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		return res, err
	}

	for n := 0; n < naming.MaxAttempts; n++ {
		target := src
		if n > 0 {
			target = naming.Restored(src, n)
		}
		err := executor.Relocate(dst, target)
		if err == nil {
			res.Outcome = types.OutcomeOK
			res.RestoredTo = target
			if target != src {
				logging.Get("undo").Info("source occupied, restored beside it", "src", src, "restored_to", target)
			}
			return res, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return res, err
		}
	}
	return res, fmt.Errorf("%w: %s", naming.ErrExhausted, src)
}

// remove deletes whatever a copy, hardlink or index entry created.
// check, when set, vets the destination before deletion.
func (e *Engine) remove(res types.UndoResult, check func(types.CompletedAction) error) (types.UndoResult, error) {
	dst := res.Entry.Destination

	info, err := os.Lstat(dst)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return res, nil
	case err != nil:
		return res, err
	case info.IsDir():
		return res, errIsDirectory
	}

	if check != nil {
		if err := check(res.Entry); err != nil {
			return res, err
		}
	}

	if e.dryRun {
		res.Outcome = types.OutcomePreview
		return res, nil
	}

	if err := os.Remove(dst); err != nil {
		return res, err
	}
	res.Outcome = types.OutcomeOK
	return res, nil
}

// checkReference refuses to delete anything but the record index mode wrote.
func checkReference(a types.CompletedAction) error {
	ref, err := executor.ReadReference(a.Destination)
	if err != nil {
		return fmt.Errorf("%w: %w", errNotReference, err)
	}
	if filepath.Clean(ref.Source) != filepath.Clean(a.Source) {
		return fmt.Errorf("%w: points to %s", errNotReference, ref.Source)
	}
	return nil
}

func freeRestoreTarget(src string) (string, error) {
	for n := 0; n < naming.MaxAttempts; n++ {
		target := src
		if n > 0 {
			target = naming.Restored(src, n)
		}
		busy, err := present(target)
		if err != nil {
			return "", err
		}
		if !busy {
			return target, nil
		}
	}
	return "", fmt.Errorf("%w: %s", naming.ErrExhausted, src)
}

func present(p string) (bool, error) {
	_, err := os.Lstat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// pruneEmpty removes dir and its empty parents, stopping at root. Nothing
// outside root is touched. It cannot tell directories the run created from
// ones that were already empty.
func pruneEmpty(dir, root string) {
	root = filepath.Clean(root)
	for dir = filepath.Clean(dir); dir != root; dir = filepath.Dir(dir) {
		rel, err := filepath.Rel(root, dir)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return
		}
		if os.Remove(dir) != nil {
			return
		}
	}
}

// Summary counts results by outcome.
type Summary struct {
	OK            int `json:"ok"`
	Failed        int `json:"failed"`
	NotApplicable int `json:"not_applicable"`
	Preview       int `json:"preview"`
}

// Summarize counts results by outcome.
func Summarize(results []types.UndoResult) Summary {
	var s Summary
	for _, r := range results {
		switch r.Outcome {
		case types.OutcomeOK:
			s.OK++
		case types.OutcomeFailed:
			s.Failed++
		case types.OutcomeNotApplicable:
			s.NotApplicable++
		case types.OutcomePreview:
			s.Preview++
		}
	}
	return s
}
