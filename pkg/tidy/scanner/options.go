// Package scanner produces the ordered FileRecord sequence consumed by the
// planner and deduplicator. Traversal is parallel (fastwalk) but the result
// is sorted by path, so repeated scans of an unchanged tree yield the same
// sequence.
package scanner

import (
	"github.com/jamesainslie/tidy/pkg/tidy/metadata"
)

// DefaultExclusions are skipped by every scan. Undo logs are excluded so
// organizing a target root never relocates its own logs.
var DefaultExclusions = []string{
	"**/.git",
	"**/.DS_Store",
	"**/fm_organize_*.json",
}

// Progress is a snapshot of scan progress.
type Progress struct {
	DirsScanned  int64
	FilesScanned int64
	BytesScanned int64
	CurrentPath  string
}

// Options configures the scanner behavior.
type Options struct {
	// Roots are the directories (or single files) to scan.
	Roots []string

	// MinSize is the minimum file size in bytes to include.
	MinSize int64

	// Exclude contains glob patterns matched against full paths.
	// DefaultExclusions are always applied in addition.
	Exclude []string

	// SkipDirs are absolute directories never descended into, typically the
	// organize target root when it lives inside a scanned tree.
	SkipDirs []string

	// DateSource controls extraction of FileRecord.ExtractedDate.
	DateSource metadata.Source

	// OnProgress is called periodically. It must be safe to call from
	// multiple goroutines.
	OnProgress func(Progress)
}
