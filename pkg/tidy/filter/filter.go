package filter

import (
	"cmp"
	"slices"
	"time"

	"github.com/gobwas/glob"

	"github.com/jamesainslie/tidy/pkg/tidy/types"
)

// Filter defines criteria for selecting, sorting and limiting records.
type Filter struct {
	// MinSize is the minimum file size in bytes. Smaller records are excluded.
	MinSize int64

	// MaxSize is the maximum file size in bytes. 0 means unbounded.
	MaxSize int64

	// Include contains glob patterns. If non-empty, paths must match at least one.
	Include []string

	// Exclude contains glob patterns. Matching paths are excluded.
	Exclude []string

	// Extensions restricts records to these extensions (".jpg").
	Extensions []string

	// OlderThan excludes records modified more recently than this duration ago.
	OlderThan time.Duration

	// NewerThan excludes records modified longer ago than this duration.
	NewerThan time.Duration

	SortBy         SortField
	SortDescending bool

	// Limit is the maximum number of records to return. 0 means unlimited.
	Limit int

	include []glob.Glob
	exclude []glob.Glob
	now     func() time.Time
}

// Option is a functional option for configuring a Filter.
type Option func(*Filter)

// New creates a Filter with the given options. The zero configuration
// matches everything, sorts by path ascending and applies no limit.
func New(opts ...Option) *Filter {
	f := &Filter{now: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	f.include = compile(f.Include)
	f.exclude = compile(f.Exclude)
	return f
}

// WithLimit sets the maximum number of records to return.
func WithLimit(limit int) Option {
	return func(f *Filter) {
		f.Limit = max(limit, 0)
	}
}

// WithMinSize sets the minimum file size in bytes.
func WithMinSize(minSize int64) Option {
	return func(f *Filter) {
		f.MinSize = max(minSize, 0)
	}
}

// WithMaxSize sets the maximum file size in bytes.
func WithMaxSize(maxSize int64) Option {
	return func(f *Filter) {
		f.MaxSize = max(maxSize, 0)
	}
}

// WithInclude sets the include glob patterns.
func WithInclude(patterns ...string) Option {
	return func(f *Filter) {
		f.Include = patterns
	}
}

// WithExclude sets the exclude glob patterns.
func WithExclude(patterns ...string) Option {
	return func(f *Filter) {
		f.Exclude = patterns
	}
}

// WithExtensions adds allowed extensions. Values are normalized to
// lowercase with a leading dot.
func WithExtensions(extensions ...string) Option {
	return func(f *Filter) {
		for _, ext := range extensions {
			if ext = normalizeExt(ext); ext != "" {
				f.Extensions = append(f.Extensions, ext)
			}
		}
	}
}

// WithTypeGroups adds the extensions of the named type groups.
// Unknown group names are ignored.
func WithTypeGroups(groups ...string) Option {
	return func(f *Filter) {
		for _, group := range groups {
			f.Extensions = append(f.Extensions, TypeGroups[group]...)
		}
	}
}

// WithOlderThan sets the minimum age of records to include.
func WithOlderThan(d time.Duration) Option {
	return func(f *Filter) {
		f.OlderThan = d
	}
}

// WithNewerThan sets the maximum age of records to include.
func WithNewerThan(d time.Duration) Option {
	return func(f *Filter) {
		f.NewerThan = d
	}
}

// WithSortBy sets the field to sort results by.
func WithSortBy(field SortField) Option {
	return func(f *Filter) {
		f.SortBy = field
	}
}

// WithSortDescending sets whether to sort in descending order.
func WithSortDescending(desc bool) Option {
	return func(f *Filter) {
		f.SortDescending = desc
	}
}

// withClock overrides the age reference time.
func withClock(now func() time.Time) Option {
	return func(f *Filter) {
		f.now = now
	}
}

func compile(patterns []string) []glob.Glob {
	out := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			continue
		}
		out = append(out, g)
	}
	return out
}

// Match reports whether the record passes every criterion.
func (f *Filter) Match(r types.FileRecord) bool {
	if f.MinSize > 0 && r.Size < f.MinSize {
		return false
	}
	if f.MaxSize > 0 && r.Size > f.MaxSize {
		return false
	}
	if !f.matchExtension(r.Path) {
		return false
	}
	if !f.matchAge(r.ModTime) {
		return false
	}
	if matchesAny(r.Path, f.exclude) {
		return false
	}
	if len(f.include) > 0 && !matchesAny(r.Path, f.include) {
		return false
	}
	return true
}

func (f *Filter) matchExtension(path string) bool {
	if len(f.Extensions) == 0 {
		return true
	}
	return slices.Contains(f.Extensions, Ext(path))
}

func (f *Filter) matchAge(mod time.Time) bool {
	now := f.now()
	if f.OlderThan > 0 && mod.After(now.Add(-f.OlderThan)) {
		return false
	}
	if f.NewerThan > 0 && mod.Before(now.Add(-f.NewerThan)) {
		return false
	}
	return true
}

func matchesAny(path string, globs []glob.Glob) bool {
	for _, g := range globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// Sort returns a sorted copy of records. Ties are broken by path so the
// result is deterministic.
func (f *Filter) Sort(records []types.FileRecord) []types.FileRecord {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b types.FileRecord) int {
		var result int
		switch f.SortBy {
		case SortSize:
			result = cmp.Compare(a.Size, b.Size)
		case SortAge:
			result = a.ModTime.Compare(b.ModTime)
		}
		if result == 0 {
			result = cmp.Compare(a.Path, b.Path)
		}
		if f.SortDescending {
			return -result
		}
		return result
	})
	return sorted
}

// Apply runs Match, Sort and Limit and returns the surviving records.
// Rejected records are returned separately so callers can report them.
func (f *Filter) Apply(records []types.FileRecord) (kept, rejected []types.FileRecord) {
	for _, r := range records {
		if f.Match(r) {
			kept = append(kept, r)
		} else {
			rejected = append(rejected, r)
		}
	}

	kept = f.Sort(kept)
	if f.Limit > 0 && len(kept) > f.Limit {
		kept = kept[:f.Limit]
	}
	return kept, rejected
}
