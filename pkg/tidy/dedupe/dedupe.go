// Package dedupe groups FileRecords by content.
//
// Records are first bucketed by size; only buckets with two or more
// members are hashed. Hashing runs in parallel, and groups are assembled
// only after every hash has finished. The deduplicator never modifies
// files: it reports a keeper and the redundant members of each group and
// leaves the action to the caller.
package dedupe

import (
	"context"
	"crypto/md5"  //nolint:gosec // selectable legacy fingerprint
	"crypto/sha1" //nolint:gosec // selectable legacy fingerprint
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/tidy/pkg/tidy/cache"
	"github.com/jamesainslie/tidy/pkg/tidy/logging"
	"github.com/jamesainslie/tidy/pkg/tidy/tuner"
	"github.com/jamesainslie/tidy/pkg/tidy/types"
)

// ErrInvalidAlgorithm indicates an unknown hash algorithm name.
var ErrInvalidAlgorithm = errors.New("invalid hash algorithm")

// ErrInvalidKeep indicates an unknown keeper strategy name.
var ErrInvalidKeep = errors.New("invalid keep strategy")

// Algorithm names a content digest.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
	SHA1   Algorithm = "sha1"
	MD5    Algorithm = "md5"
)

// ParseAlgorithm converts a name into an Algorithm. Empty selects SHA256.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return SHA256, nil
	case SHA256, SHA512, SHA1, MD5:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAlgorithm, s)
	}
}

func (a Algorithm) newHash() hash.Hash {
	switch a {
	case SHA512:
		return sha512.New()
	case SHA1:
		return sha1.New() //nolint:gosec
	case MD5:
		return md5.New() //nolint:gosec
	default:
		return sha256.New()
	}
}

// Keep selects the keeper of a duplicate group.
type Keep string

const (
	// KeepOldest keeps the earliest modified member, ties broken by path.
	KeepOldest Keep = "oldest"
	// KeepNewest keeps the latest modified member, ties broken by path.
	KeepNewest Keep = "newest"
	// KeepFirst keeps the lexically first path.
	KeepFirst Keep = "first"
)

// ParseKeep converts a name into a Keep strategy. Empty selects KeepOldest.
func ParseKeep(s string) (Keep, error) {
	switch k := Keep(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KeepOldest, nil
	case KeepOldest, KeepNewest, KeepFirst:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKeep, s)
	}
}

// HashError records a file that could not be fingerprinted.
type HashError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Progress reports hashing progress.
type Progress struct {
	Hashed    int64
	Total     int64
	CacheHits int64
}

// Deduplicator finds duplicate groups.
type Deduplicator struct {
	algorithm  Algorithm
	keep       Keep
	workers    int
	bufferSize int
	store      *cache.Store
	skipEmpty  bool
	onProgress func(Progress)

	mu     sync.Mutex
	errors []HashError
}

// Option configures a Deduplicator.
type Option func(*Deduplicator)

// WithAlgorithm sets the digest used for fingerprints.
func WithAlgorithm(a Algorithm) Option {
	return func(d *Deduplicator) { d.algorithm = a }
}

// WithKeep sets the keeper strategy.
func WithKeep(k Keep) Option {
	return func(d *Deduplicator) { d.keep = k }
}

// WithTuning sets the worker count and read buffer size.
func WithTuning(cfg tuner.Config) Option {
	return func(d *Deduplicator) {
		d.workers = cfg.HashWorkers
		d.bufferSize = cfg.BufferSize
	}
}

// WithCache consults and fills a fingerprint cache.
func WithCache(store *cache.Store) Option {
	return func(d *Deduplicator) { d.store = store }
}

// WithSkipEmpty leaves 0-byte files out of every group. By default all
// empty files form one group like any other matching content.
func WithSkipEmpty(skip bool) Option {
	return func(d *Deduplicator) { d.skipEmpty = skip }
}

// WithProgress registers a callback invoked after each hashed file. It is
// called from worker goroutines.
func WithProgress(fn func(Progress)) Option {
	return func(d *Deduplicator) { d.onProgress = fn }
}

// New creates a Deduplicator.
func New(opts ...Option) *Deduplicator {
	d := &Deduplicator{
		algorithm:  SHA256,
		keep:       KeepOldest,
		workers:    4,
		bufferSize: 64 * 1024,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.workers < 1 {
		d.workers = 1
	}
	if d.bufferSize < 4096 {
		d.bufferSize = 4096
	}
	return d
}

// Errors returns the files skipped by the last Group call.
func (d *Deduplicator) Errors() []HashError {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.errors)
}

// Group returns the duplicate groups among records, sorted by fingerprint.
// Empty files are grouped unless WithSkipEmpty is set. Files that cannot
// be read are left out and reported by Errors; only cancellation fails the
// call.
func (d *Deduplicator) Group(ctx context.Context, records []types.FileRecord) ([]types.DuplicateGroup, error) {
	log := logging.Get("dedupe")

	d.mu.Lock()
	d.errors = nil
	d.mu.Unlock()

	candidates := sizeCollisions(records, d.skipEmpty)
	if len(candidates) == 0 {
		return []types.DuplicateGroup{}, nil
	}

	hashed := make([]types.FileRecord, len(candidates))
	ok := make([]bool, len(candidates))

	var done, hits atomic.Int64
	total := int64(len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, rec := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			digest, cached, err := d.fingerprint(rec)
			if err != nil {
				d.addError(rec.Path, err)
			} else {
				rec.Fingerprint = digest
				hashed[i] = rec
				ok[i] = true
			}
			if cached {
				hits.Add(1)
			}
			n := done.Add(1)
			if d.onProgress != nil {
				d.onProgress(Progress{Hashed: n, Total: total, CacheHits: hits.Load()})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.fillCache(hashed, ok)

	byDigest := make(map[string][]types.FileRecord)
	for i, rec := range hashed {
		if ok[i] {
			byDigest[rec.Fingerprint] = append(byDigest[rec.Fingerprint], rec)
		}
	}

	groups := make([]types.DuplicateGroup, 0, len(byDigest))
	for digest, members := range byDigest {
		if len(members) < 2 {
			continue
		}
		keeper, redundant := d.pick(members)
		groups = append(groups, types.DuplicateGroup{
			Fingerprint: digest,
			Size:        keeper.Size,
			Keeper:      keeper,
			Redundant:   redundant,
		})
	}
	slices.SortFunc(groups, func(a, b types.DuplicateGroup) int {
		return strings.Compare(a.Fingerprint, b.Fingerprint)
	})

	log.Info("dedupe complete",
		"records", len(records),
		"hashed", len(candidates),
		"cache_hits", hits.Load(),
		"groups", len(groups),
		"errors", len(d.Errors()))
	return groups, nil
}

// sizeCollisions returns the records sharing their size with at least one
// other record, in path order.
func sizeCollisions(records []types.FileRecord, skipEmpty bool) []types.FileRecord {
	bySize := make(map[int64]int, len(records))
	seen := make(map[string]struct{}, len(records))
	unique := make([]types.FileRecord, 0, len(records))
	for _, r := range records {
		if r.Size < 0 || (skipEmpty && r.Size == 0) {
			continue
		}
		if _, dup := seen[r.Path]; dup {
			continue
		}
		seen[r.Path] = struct{}{}
		unique = append(unique, r)
		bySize[r.Size]++
	}

	out := make([]types.FileRecord, 0, len(unique))
	for _, r := range unique {
		if bySize[r.Size] > 1 {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b types.FileRecord) int {
		return strings.Compare(a.Path, b.Path)
	})
	return out
}

// fingerprint returns the digest of rec, from the cache when the cached
// entry still matches the record's size and modification time.
func (d *Deduplicator) fingerprint(rec types.FileRecord) (string, bool, error) {
	if rec.Fingerprint != "" {
		return rec.Fingerprint, true, nil
	}
	if d.store != nil {
		if digest, ok := d.store.Lookup(string(d.algorithm), rec.Path, rec.Size, rec.ModTime); ok {
			return digest, true, nil
		}
	}
	digest, err := d.hashFile(rec.Path)
	return digest, false, err
}

func (d *Deduplicator) hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := d.algorithm.newHash()
	if _, err := io.CopyBuffer(h, f, make([]byte, d.bufferSize)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (d *Deduplicator) fillCache(hashed []types.FileRecord, ok []bool) {
	if d.store == nil {
		return
	}
	entries := make(map[string]*cache.Entry)
	for i, rec := range hashed {
		if !ok[i] {
			continue
		}
		entries[rec.Path] = &cache.Entry{Size: rec.Size, Mtime: rec.ModTime.UnixNano(), Digest: rec.Fingerprint}
	}
	if err := d.store.PutBatch(string(d.algorithm), entries); err != nil {
		logging.Get("dedupe").Warn("failed to update fingerprint cache", "error", err)
	}
}

func (d *Deduplicator) addError(path string, err error) {
	logging.Get("dedupe").Debug("skipping unreadable file", "path", path, "error", err)
	d.mu.Lock()
	d.errors = append(d.errors, HashError{Path: path, Error: err.Error()})
	d.mu.Unlock()
}

// pick orders members by the keep strategy and splits off the keeper.
func (d *Deduplicator) pick(members []types.FileRecord) (types.FileRecord, []types.FileRecord) {
	sorted := slices.Clone(members)
	slices.SortFunc(sorted, func(a, b types.FileRecord) int {
		switch d.keep {
		case KeepNewest:
			if c := b.ModTime.Compare(a.ModTime); c != 0 {
				return c
			}
		case KeepFirst:
		default:
			if c := a.ModTime.Compare(b.ModTime); c != 0 {
				return c
			}
		}
		return strings.Compare(a.Path, b.Path)
	})
	return sorted[0], sorted[1:]
}
