// Package undolog persists the completed actions of one executor run as an
// immutable JSON file under the target root, and finds and reads those
// files again for the undo engine and the history command.
package undolog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"

	"github.com/jamesainslie/tidy/pkg/tidy/logging"
	"github.com/jamesainslie/tidy/pkg/tidy/types"
)

// File name parts: fm_organize_20240105T103000Z.json, with _<n> appended
// to the stamp when several runs start within one second.
const (
	Prefix      = "fm_organize_"
	Ext         = ".json"
	StampLayout = "20060102T150405Z"
)

// maxSameSecond bounds the counter suffix search.
const maxSameSecond = 1000

// reservationGrace is how long an empty reserved log name is left alone by
// Cleanup, since a writer may still be filling it.
const reservationGrace = time.Minute

// ErrLogCorrupt is returned when a log cannot be parsed as a valid action list.
var ErrLogCorrupt = errors.New("undo log corrupt")

// ErrNoLogs is returned by Latest when the root holds no logs.
var ErrNoLogs = errors.New("no undo logs found")

// Info describes one log file.
type Info struct {
	Path    string    `json:"path"`
	Started time.Time `json:"started"`
	Seq     int       `json:"seq,omitempty"`
	Summary Summary   `json:"summary"`
}

// Summary counts a log's entries.
type Summary struct {
	Total   int   `json:"total"`
	OK      int   `json:"ok"`
	Skipped int   `json:"skipped"`
	Failed  int   `json:"failed"`
	Bytes   int64 `json:"bytes"`
}

// Summarize counts actions by status. Bytes covers ok entries only.
func Summarize(actions []types.CompletedAction) Summary {
	s := Summary{Total: len(actions)}
	for _, a := range actions {
		switch a.Status {
		case types.StatusOK:
			s.OK++
			s.Bytes += a.Size
		case types.StatusSkipped:
			s.Skipped++
		case types.StatusFailed:
			s.Failed++
		}
	}
	return s
}

// Log manages the undo logs of one target root.
type Log struct {
	root string
	mu   sync.Mutex
}

// New returns a Log for root. The directory must exist before Write.
func New(root string) (*Log, error) {
	if root == "" {
		return nil, errors.New("undo log root cannot be empty")
	}
	return &Log{root: root}, nil
}

// Root returns the directory logs are written to.
func (l *Log) Root() string {
	return l.root
}

// Write stores actions in a new log named after start (UTC) and returns its
// path. Names are reserved with an exclusive create, so concurrent runs
// starting in the same second get distinct counter suffixes; the content
// then replaces the reservation atomically.
func (l *Log) Write(actions []types.CompletedAction, start time.Time) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if actions == nil {
		actions = []types.CompletedAction{}
	}
	data, err := json.MarshalIndent(actions, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal undo log: %w", err)
	}

	if err := os.MkdirAll(l.root, 0o755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	path, err := l.reserve(start.UTC())
	if err != nil {
		return "", err
	}

	if err := renameio.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write undo log: %w", err)
	}

	logging.Get("undolog").Info("undo log written", "path", path, "entries", len(actions))
	return path, nil
}

func (l *Log) reserve(start time.Time) (string, error) {
	stamp := start.Format(StampLayout)
	for seq := 0; seq < maxSameSecond; seq++ {
		path := filepath.Join(l.root, FileName(stamp, seq))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to reserve undo log name: %w", err)
		}
		_ = f.Close()
		return path, nil
	}
	return "", fmt.Errorf("no free undo log name for %s", stamp)
}

// FileName builds the log file name for a stamp and same-second sequence.
func FileName(stamp string, seq int) string {
	if seq == 0 {
		return Prefix + stamp + Ext
	}
	return fmt.Sprintf("%s%s_%d%s", Prefix, stamp, seq, Ext)
}

// ParseName extracts the start time and sequence from a log file name.
func ParseName(name string) (time.Time, int, bool) {
	name = filepath.Base(name)
	if !strings.HasPrefix(name, Prefix) || !strings.HasSuffix(name, Ext) {
		return time.Time{}, 0, false
	}
	stem := strings.TrimSuffix(strings.TrimPrefix(name, Prefix), Ext)

	seq := 0
	if stamp, suffix, ok := strings.Cut(stem, "_"); ok {
		n, err := strconv.Atoi(suffix)
		if err != nil || n <= 0 {
			return time.Time{}, 0, false
		}
		stem, seq = stamp, n
	}

	t, err := time.Parse(StampLayout, stem)
	if err != nil {
		return time.Time{}, 0, false
	}
	return t, seq, true
}

// Read parses a log strictly. Any malformed content yields ErrLogCorrupt;
// there is no partial recovery.
func Read(path string) ([]types.CompletedAction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var actions []types.CompletedAction
	if err := json.Unmarshal(data, &actions); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLogCorrupt, path, err)
	}
	if actions == nil {
		return nil, fmt.Errorf("%w: %s: not an action list", ErrLogCorrupt, path)
	}

	for i, a := range actions {
		if a.Status == "" {
			return nil, fmt.Errorf("%w: %s: entry %d has no status", ErrLogCorrupt, path, i)
		}
		if a.Status != types.StatusOK {
			continue
		}
		if a.Source == "" || a.Destination == "" {
			return nil, fmt.Errorf("%w: %s: entry %d is missing src or dst", ErrLogCorrupt, path, i)
		}
		if !a.Mode.Valid() {
			return nil, fmt.Errorf("%w: %s: entry %d has no mode", ErrLogCorrupt, path, i)
		}
	}
	return actions, nil
}

// List returns the root's logs, newest first. Logs that cannot be read
// are left out. limit <= 0 returns all.
func (l *Log) List(limit int) ([]Info, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := os.ReadDir(l.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []Info{}, nil
		}
		return nil, fmt.Errorf("failed to read log directory: %w", err)
	}

	infos := []Info{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		started, seq, ok := ParseName(e.Name())
		if !ok {
			continue
		}
		path := filepath.Join(l.root, e.Name())
		actions, err := Read(path)
		if err != nil {
			logging.Get("undolog").Debug("skipping unreadable log", "path", path, "error", err)
			continue
		}
		infos = append(infos, Info{Path: path, Started: started, Seq: seq, Summary: Summarize(actions)})
	}

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].Started.Equal(infos[j].Started) {
			return infos[i].Started.After(infos[j].Started)
		}
		return infos[i].Seq > infos[j].Seq
	})

	if limit > 0 && len(infos) > limit {
		infos = infos[:limit]
	}
	return infos, nil
}

// Latest returns the path of the newest readable log.
func (l *Log) Latest() (string, error) {
	infos, err := l.List(1)
	if err != nil {
		return "", err
	}
	if len(infos) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoLogs, l.root)
	}
	return infos[0].Path, nil
}

// Cleanup removes logs whose start time is older than retentionDays and
// returns how many were removed. Empty logs left by an interrupted Write
// are removed once they are older than a minute, whatever their start time.
func (l *Log) Cleanup(retentionDays int, now time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.AddDate(0, 0, -retentionDays)

	entries, err := os.ReadDir(l.root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read log directory: %w", err)
	}

	removed := 0
	for _, e := range entries {
		started, _, ok := ParseName(e.Name())
		if !ok || e.IsDir() {
			continue
		}
		if !started.Before(cutoff) && !abandoned(e, now) {
			continue
		}
		if err := os.Remove(filepath.Join(l.root, e.Name())); err != nil {
			continue
		}
		removed++
	}
	return removed, nil
}

// abandoned reports whether e is a reserved log name that was never
// written.
func abandoned(e fs.DirEntry, now time.Time) bool {
	info, err := e.Info()
	if err != nil || !info.Mode().IsRegular() || info.Size() != 0 {
		return false
	}
	return info.ModTime().Before(now.Add(-reservationGrace))
}

// Write stores actions under targetRoot using the current time.
func Write(actions []types.CompletedAction, targetRoot string) (string, error) {
	l, err := New(targetRoot)
	if err != nil {
		return "", err
	}
	return l.Write(actions, time.Now())
}

// Remove deletes a log. A log that is already gone is not an error.
func (l *Log) Remove(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, _, ok := ParseName(path); !ok {
		return fmt.Errorf("%s: not an undo log", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove undo log: %w", err)
	}
	logging.Get("undolog").Info("undo log removed", "path", path)
	return nil
}
