// Package naming derives collision-free file names. The same scheme is used
// by the planner (against names already claimed in a plan), the executor
// (against the live filesystem) and the undo engine (when a restore target
// is occupied), so every layer agrees on what "the next free name" is.
package naming

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// MaxAttempts bounds the suffix search for one path.
const MaxAttempts = 10000

// ErrExhausted is returned when no free name exists within MaxAttempts.
var ErrExhausted = errors.New("no free name available")

// Scheme selects how a numeric suffix is inserted before the extension.
type Scheme int

const (
	// Numbered produces "name (1).ext".
	Numbered Scheme = iota
	// Underscore produces "name_1.ext".
	Underscore
)

// String returns the configuration name of the scheme.
func (s Scheme) String() string {
	if s == Underscore {
		return "underscore"
	}
	return "numbered"
}

// ParseScheme converts a configuration value into a Scheme.
// An empty string selects Numbered.
func ParseScheme(s string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "numbered", "paren", "parens":
		return Numbered, nil
	case "underscore":
		return Underscore, nil
	default:
		return Numbered, fmt.Errorf("unknown naming scheme %q", s)
	}
}

// Split separates a base name into stem and extension. Dotfiles such as
// ".bashrc" have no extension.
func Split(name string) (stem, ext string) {
	ext = filepath.Ext(name)
	stem = strings.TrimSuffix(name, ext)
	if stem == "" {
		return name, ""
	}
	return stem, ext
}

// Candidate returns the n-th suffixed variant of path. n <= 0 returns path.
func (s Scheme) Candidate(path string, n int) string {
	if n <= 0 {
		return path
	}
	dir, name := filepath.Split(path)
	stem, ext := Split(name)

	var suffixed string
	switch s {
	case Underscore:
		suffixed = fmt.Sprintf("%s_%d%s", stem, n, ext)
	default:
		suffixed = fmt.Sprintf("%s (%d)%s", stem, n, ext)
	}
	return filepath.Join(dir, suffixed)
}

// Free returns the first name derived from path, starting with path itself,
// that taken reports as free. The returned int is the suffix used (0 for the
// unsuffixed name) so callers can resume a search.
func (s Scheme) Free(path string, start int, taken func(string) (bool, error)) (string, int, error) {
	if start < 0 {
		start = 0
	}
	for n := start; n < start+MaxAttempts; n++ {
		candidate := s.Candidate(path, n)
		busy, err := taken(candidate)
		if err != nil {
			return "", 0, err
		}
		if !busy {
			return candidate, n, nil
		}
	}
	return "", 0, fmt.Errorf("%w: %s", ErrExhausted, path)
}

// Restored returns the alternate name used when a move is reversed onto an
// occupied path: "name (restored).ext", then "name (restored 2).ext".
func Restored(path string, n int) string {
	dir, name := filepath.Split(path)
	stem, ext := Split(name)
	if n <= 1 {
		return filepath.Join(dir, fmt.Sprintf("%s (restored)%s", stem, ext))
	}
	return filepath.Join(dir, fmt.Sprintf("%s (restored %d)%s", stem, n, ext))
}
