// Package types provides the core data types shared by the tidy planner,
// executor, undo subsystem and deduplicator, along with utility functions
// for parsing and formatting file sizes.
package types

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

// FileRecord is an immutable snapshot of a file taken at scan time.
// A record does not track the file after scanning; its identity is the
// path it was scanned at.
type FileRecord struct {
	// Path is the absolute path to the file.
	Path string `json:"path"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// ModTime is the last modification time of the file.
	ModTime time.Time `json:"mod_time"`

	// ExtractedDate is a date recovered from media metadata or the file name.
	// Zero when no such date was found.
	ExtractedDate time.Time `json:"extracted_date,omitzero"`

	// Fingerprint is the content digest, empty until computed.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Name returns the base name of the record's path.
func (r FileRecord) Name() string {
	return filepath.Base(r.Path)
}

// Date returns the extracted date when present, else the modification time.
func (r FileRecord) Date() time.Time {
	if !r.ExtractedDate.IsZero() {
		return r.ExtractedDate
	}
	return r.ModTime
}

// HumanSize returns the file size formatted as a human-readable string.
func (r FileRecord) HumanSize() string {
	return FormatSize(r.Size)
}

// DuplicateGroup is a set of records sharing one content fingerprint.
// Keeper is the retained representative; every other member is Redundant.
type DuplicateGroup struct {
	Fingerprint string       `json:"fingerprint"`
	Size        int64        `json:"size"`
	Keeper      FileRecord   `json:"keeper"`
	Redundant   []FileRecord `json:"redundant"`
}

// Reclaimable returns the bytes freed if every redundant member were removed.
func (g DuplicateGroup) Reclaimable() int64 {
	return g.Size * int64(len(g.Redundant))
}

// Members returns the keeper followed by the redundant records.
func (g DuplicateGroup) Members() []FileRecord {
	out := make([]FileRecord, 0, len(g.Redundant)+1)
	out = append(out, g.Keeper)
	return append(out, g.Redundant...)
}

// sizePattern matches size strings like "100M", "2G", "500K", "1.5GB", etc.
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?(?:i?B)?)\s*$`)

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeSize indicates that a negative size value was provided.
var ErrNegativeSize = errors.New("size cannot be negative")

// ParseSize parses a human-readable size string such as "512", "100K",
// "50MiB" or "1.5G" and returns the size in bytes. Units are binary.
// Decimal values are truncated to the nearest byte.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}
	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeSize
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	suffix := strings.ToUpper(matches[2])
	suffix = strings.TrimSuffix(suffix, "IB")
	suffix = strings.TrimSuffix(suffix, "B")

	var multiplier int64
	switch suffix {
	case "":
		multiplier = 1
	case "K":
		multiplier = KiB
	case "M":
		multiplier = MiB
	case "G":
		multiplier = GiB
	case "T":
		multiplier = TiB
	default:
		return 0, fmt.Errorf("%w: unknown suffix %q", ErrInvalidSize, suffix)
	}

	return int64(value * float64(multiplier)), nil
}

// FormatSize converts a size in bytes to a human-readable string using
// binary (IEC) units, e.g. FormatSize(1024) returns "1.0 KiB".
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
