// Package executor applies a plan to the filesystem. It is the only part of
// tidy that creates, moves or links files on behalf of a plan, and it
// records exactly what it did so every ok entry can be reversed later.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jamesainslie/tidy/pkg/tidy/logging"
	"github.com/jamesainslie/tidy/pkg/tidy/naming"
	"github.com/jamesainslie/tidy/pkg/tidy/types"
)

// ErrCollisionUnresolved means no free destination name could be found.
// The deterministic suffix scheme makes this an invariant violation.
var ErrCollisionUnresolved = errors.New("collision unresolved")

// errAlreadyInPlace marks a move whose source already is its destination.
var errAlreadyInPlace = errors.New("already in place")

// raceRetries bounds how often an entry re-resolves its destination when
// another process claims the chosen name first.
const raceRetries = 3

// Progress reports one finished entry.
type Progress struct {
	Done   int
	Total  int
	Action types.CompletedAction
}

// Executor applies plans. It keeps no state between Execute calls.
type Executor struct {
	scheme     naming.Scheme
	link       func(oldname, newname string) error
	now        func() time.Time
	onProgress func(Progress)
}

// Option configures an Executor.
type Option func(*Executor)

// WithNaming sets the suffix scheme used for live collisions.
func WithNaming(s naming.Scheme) Option {
	return func(e *Executor) { e.scheme = s }
}

// WithLinker replaces os.Link, e.g. to force the copy fallback.
func WithLinker(link func(oldname, newname string) error) Option {
	return func(e *Executor) { e.link = link }
}

// WithProgress registers a callback invoked after every entry.
func WithProgress(fn func(Progress)) Option {
	return func(e *Executor) { e.onProgress = fn }
}

// WithClock overrides the timestamp source for completed actions.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// New creates an Executor.
func New(opts ...Option) *Executor {
	e := &Executor{
		scheme: naming.Numbered,
		link:   os.Link,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute applies plan in order. A non-zero mode overrides every entry's
// own mode. In a dry run every entry comes back skipped with the
// destination it would have used, and nothing is modified.
//
// One entry's failure never stops the batch. Cancellation is observed
// between entries; the completed prefix is returned along with ctx.Err().
func (e *Executor) Execute(ctx context.Context, plan []types.PlannedAction, mode types.Mode, dryRun bool) ([]types.CompletedAction, error) {
	log := logging.Get("executor")
	results := make([]types.CompletedAction, 0, len(plan))

	names := newClaims(e.scheme, plan)

	for i, entry := range plan {
		if err := ctx.Err(); err != nil {
			log.Warn("execution cancelled", "done", i, "total", len(plan))
			return results, err
		}

		m := entry.Mode
		if mode != types.ModeUnset {
			m = mode
		}

		names.release(entry.Destination)
		var done types.CompletedAction
		if dryRun {
			done = e.preview(entry, m, names)
		} else {
			done = e.apply(entry, m, names)
		}
		results = append(results, done)

		switch done.Status {
		case types.StatusFailed:
			log.Warn("entry failed", "src", done.Source, "dst", done.Destination, "mode", done.Mode, "error", done.Error)
		case types.StatusOK:
			log.Debug("entry applied", "src", done.Source, "dst", done.Destination, "mode", done.Mode)
		}

		if e.onProgress != nil {
			e.onProgress(Progress{Done: i + 1, Total: len(plan), Action: done})
		}
	}

	return results, nil
}

func (e *Executor) record(entry types.PlannedAction, m types.Mode) types.CompletedAction {
	return types.CompletedAction{
		Source:      entry.Source,
		Destination: entry.Destination,
		Time:        e.now().UTC(),
		Mode:        m,
		Size:        entry.Size,
	}
}

func fail(rec types.CompletedAction, err error) types.CompletedAction {
	rec.Status = types.StatusFailed
	rec.Error = err.Error()
	return rec
}

// preview resolves the destination against the live filesystem and the
// names the rest of the plan holds.
func (e *Executor) preview(entry types.PlannedAction, m types.Mode, names *claims) types.CompletedAction {
	rec := e.record(entry, m)
	rec.Status = types.StatusSkipped

	if !m.Valid() {
		rec.Error = "invalid mode"
		return rec
	}
	if _, err := os.Lstat(entry.Source); err != nil {
		rec.Error = err.Error()
		return rec
	}
	if m == types.ModeMove && sameFile(entry.Source, entry.Destination) {
		rec.Error = errAlreadyInPlace.Error()
		return rec
	}

	dst, err := names.resolve(entry)
	if err != nil {
		rec.Error = err.Error()
		return rec
	}
	names.take(dst)
	rec.Destination = dst
	return rec
}

// apply performs one entry and reports its outcome. Directories created
// for a failed entry are removed again when they are still empty.
func (e *Executor) apply(entry types.PlannedAction, m types.Mode, names *claims) types.CompletedAction {
	rec := e.record(entry, m)

	if !m.Valid() {
		return fail(rec, fmt.Errorf("%w: %d", types.ErrInvalidMode, int(m)))
	}

	info, err := os.Lstat(entry.Source)
	if err != nil {
		return fail(rec, err)
	}
	if !info.Mode().IsRegular() {
		return fail(rec, fmt.Errorf("%s: not a regular file", entry.Source))
	}
	if rec.Size == 0 {
		rec.Size = info.Size()
	}

	if m == types.ModeMove && sameFile(entry.Source, entry.Destination) {
		rec.Status = types.StatusSkipped
		rec.Error = errAlreadyInPlace.Error()
		return rec
	}

	created, err := mkdirAll(filepath.Dir(entry.Destination))
	if err != nil {
		return fail(rec, err)
	}

	rec = e.place(rec, entry, m, names)
	if rec.Status == types.StatusFailed {
		removeEmpty(created)
	}
	return rec
}

// place writes entry under a free name, re-resolving when another process
// claims the chosen name first.
func (e *Executor) place(rec types.CompletedAction, entry types.PlannedAction, m types.Mode, names *claims) types.CompletedAction {
	for attempt := 0; ; attempt++ {
		dst, err := names.resolve(entry)
		if err != nil {
			return fail(rec, fmt.Errorf("%w: %w", ErrCollisionUnresolved, err))
		}
		rec.Destination = dst

		used, err := e.perform(entry.Source, dst, m)
		if err == nil {
			names.take(dst)
			rec.Mode = used
			rec.Status = types.StatusOK
			return rec
		}
		if !errors.Is(err, fs.ErrExist) || attempt+1 >= raceRetries {
			if errors.Is(err, fs.ErrExist) {
				err = fmt.Errorf("%w: %w", ErrCollisionUnresolved, err)
			}
			return fail(rec, err)
		}
	}
}

// perform runs the filesystem operation for m and returns the mode that
// was actually used, which differs from m only for the hardlink fallback.
func (e *Executor) perform(src, dst string, m types.Mode) (types.Mode, error) {
	switch m {
	case types.ModeMove:
		return types.ModeMove, Relocate(src, dst)

	case types.ModeCopy:
		return types.ModeCopy, copyFile(src, dst)

	case types.ModeHardlink:
		err := e.link(src, dst)
		if err == nil {
			return types.ModeHardlink, nil
		}
		if errors.Is(err, fs.ErrExist) {
			return types.ModeHardlink, err
		}
		logging.Get("executor").Info("hardlink unsupported, copying", "src", src, "dst", dst, "error", err)
		return types.ModeCopy, copyFile(src, dst)

	case types.ModeIndex:
		return types.ModeIndex, writeReference(src, dst, e.now().UTC())

	default:
		return m, fmt.Errorf("%w: %d", types.ErrInvalidMode, int(m))
	}
}

// claims tracks destination names during one Execute call: the names
// still planned for later entries and the names this run has used.
type claims struct {
	scheme  naming.Scheme
	planned map[string]int
	used    map[string]struct{}
}

func newClaims(scheme naming.Scheme, plan []types.PlannedAction) *claims {
	c := &claims{
		scheme:  scheme,
		planned: make(map[string]int, len(plan)),
		used:    make(map[string]struct{}, len(plan)),
	}
	for _, entry := range plan {
		c.planned[filepath.Clean(entry.Destination)]++
	}
	return c
}

// release drops one entry's hold on its planned name before it runs.
func (c *claims) release(dst string) {
	key := filepath.Clean(dst)
	if c.planned[key] > 0 {
		c.planned[key]--
	}
}

func (c *claims) take(dst string) {
	c.used[filepath.Clean(dst)] = struct{}{}
}

// resolve returns the entry's planned destination when it is free.
// Otherwise it numbers from the source's own name, skipping names on disk,
// names used by earlier entries and names planned for later ones, so later
// entries keep the suffixes the planner gave them.
func (c *claims) resolve(entry types.PlannedAction) (string, error) {
	dst := filepath.Clean(entry.Destination)
	if _, ok := c.used[dst]; !ok {
		busy, err := exists(dst)
		if err != nil {
			return "", err
		}
		if !busy {
			return entry.Destination, nil
		}
	}

	stem := filepath.Join(filepath.Dir(dst), filepath.Base(entry.Source))
	got, _, err := c.scheme.Free(stem, 0, func(p string) (bool, error) {
		key := filepath.Clean(p)
		if _, ok := c.used[key]; ok {
			return true, nil
		}
		if c.planned[key] > 0 {
			return true, nil
		}
		return exists(p)
	})
	return got, err
}

// mkdirAll creates dir and its parents and returns the directories it
// created, deepest first.
func mkdirAll(dir string) ([]string, error) {
	var missing []string
	for p := filepath.Clean(dir); ; p = filepath.Dir(p) {
		if _, err := os.Lstat(p); !errors.Is(err, fs.ErrNotExist) {
			break
		}
		missing = append(missing, p)
		if filepath.Dir(p) == p {
			break
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		removeEmpty(missing)
		return nil, err
	}
	return missing, nil
}

// removeEmpty removes dirs in order, leaving any that are not empty.
func removeEmpty(dirs []string) {
	for _, d := range dirs {
		if err := os.Remove(d); err != nil {
			return
		}
	}
}

// exists reports whether anything, including a dangling symlink, occupies p.
func exists(p string) (bool, error) {
	_, err := os.Lstat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func sameFile(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}
