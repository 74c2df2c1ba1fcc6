package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/gobwas/glob"

	"github.com/jamesainslie/tidy/pkg/tidy/logging"
	"github.com/jamesainslie/tidy/pkg/tidy/metadata"
	"github.com/jamesainslie/tidy/pkg/tidy/types"
)

// ScanError pairs a path with the error encountered while scanning it.
type ScanError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Result is the outcome of a scan.
type Result struct {
	Records      []types.FileRecord
	DirsScanned  int64
	FilesScanned int64
	TotalSize    int64
	Elapsed      time.Duration
	Errors       []ScanError
}

// Scanner walks one or more roots and collects FileRecords.
type Scanner struct {
	opts    Options
	exclude []glob.Glob
	skip    []string

	dirsScanned  atomic.Int64
	filesScanned atomic.Int64
	bytesScanned atomic.Int64
	lastProgress atomic.Int64

	mu      sync.Mutex
	records []types.FileRecord
	errors  []ScanError
}

// New creates a Scanner. Invalid exclude patterns are ignored.
func New(opts Options) *Scanner {
	s := &Scanner{opts: opts}
	for _, pattern := range append(slices.Clone(DefaultExclusions), opts.Exclude...) {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			logging.Get("scanner").Warn("ignoring invalid exclude pattern", "pattern", pattern, "error", err)
			continue
		}
		s.exclude = append(s.exclude, g)
	}
	for _, dir := range opts.SkipDirs {
		if abs, err := filepath.Abs(dir); err == nil {
			s.skip = append(s.skip, filepath.Clean(abs))
		}
	}
	return s
}

// Scan walks every root and returns records sorted by path. Per-path errors
// are collected in the result; only an invalid root or cancellation aborts.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	start := time.Now()
	log := logging.Get("scanner")

	if len(s.opts.Roots) == 0 {
		return nil, errors.New("no roots to scan")
	}

	for _, root := range s.opts.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", root, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("scan root: %w", err)
		}

		if !info.IsDir() {
			s.addFile(abs, info)
			continue
		}

		log.Debug("walking root", "root", abs)
		if err := s.walk(ctx, abs); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := dedupePaths(s.records)
	slices.SortFunc(records, func(a, b types.FileRecord) int {
		return strings.Compare(a.Path, b.Path)
	})

	var total int64
	for _, r := range records {
		total += r.Size
	}

	s.reportProgress("", true)
	log.Info("scan complete", "records", len(records), "errors", len(s.errors), "elapsed", time.Since(start))

	return &Result{
		Records:      records,
		DirsScanned:  s.dirsScanned.Load(),
		FilesScanned: s.filesScanned.Load(),
		TotalSize:    total,
		Elapsed:      time.Since(start),
		Errors:       s.errors,
	}, nil
}

func (s *Scanner) walk(ctx context.Context, root string) error {
	conf := fastwalk.Config{Follow: false}

	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.addError(path, err)
			return nil
		}

		if d.IsDir() {
			if path != root && (s.isExcluded(path) || s.isSkipped(path)) {
				return fastwalk.SkipDir
			}
			s.dirsScanned.Add(1)
			s.reportProgress(path, false)
			return nil
		}

		if !d.Type().IsRegular() || s.isExcluded(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			s.addError(path, err)
			return nil
		}
		s.addFile(path, info)
		return nil
	})

	if err != nil && !errors.Is(err, fastwalk.ErrSkipFiles) {
		return err
	}
	return nil
}

func (s *Scanner) addFile(path string, info fs.FileInfo) {
	s.filesScanned.Add(1)
	s.bytesScanned.Add(info.Size())

	if info.Size() < s.opts.MinSize {
		return
	}

	rec := types.FileRecord{
		Path:          path,
		Size:          info.Size(),
		ModTime:       info.ModTime(),
		ExtractedDate: metadata.Date(path, s.opts.DateSource),
	}

	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
}

func (s *Scanner) isExcluded(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, g := range s.exclude {
		if g.Match(slashed) {
			return true
		}
	}
	return false
}

func (s *Scanner) isSkipped(path string) bool {
	return slices.Contains(s.skip, filepath.Clean(path))
}

func (s *Scanner) addError(path string, err error) {
	s.mu.Lock()
	s.errors = append(s.errors, ScanError{Path: path, Error: err.Error()})
	s.mu.Unlock()
}

// reportProgress throttles callbacks to one every 10ms unless forced.
func (s *Scanner) reportProgress(current string, force bool) {
	if s.opts.OnProgress == nil {
		return
	}
	now := time.Now().UnixMilli()
	if !force {
		last := s.lastProgress.Load()
		if now-last < 10 || !s.lastProgress.CompareAndSwap(last, now) {
			return
		}
	}
	s.opts.OnProgress(Progress{
		DirsScanned:  s.dirsScanned.Load(),
		FilesScanned: s.filesScanned.Load(),
		BytesScanned: s.bytesScanned.Load(),
		CurrentPath:  current,
	})
}

// dedupePaths drops repeated records when overlapping roots were scanned.
func dedupePaths(records []types.FileRecord) []types.FileRecord {
	seen := make(map[string]struct{}, len(records))
	out := records[:0:0]
	for _, r := range records {
		if _, ok := seen[r.Path]; ok {
			continue
		}
		seen[r.Path] = struct{}{}
		out = append(out, r)
	}
	return out
}
