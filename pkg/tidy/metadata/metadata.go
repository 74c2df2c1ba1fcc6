// Package metadata recovers a capture date for a file from its embedded
// EXIF data or from date patterns in its name.
package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/jamesainslie/tidy/pkg/tidy/filter"
)

// Source selects where an extracted date may come from.
type Source int

const (
	// SourceModTime extracts nothing; records fall back to their modification time.
	SourceModTime Source = iota
	// SourceFilename parses dates embedded in file names.
	SourceFilename
	// SourceExif reads EXIF DateTimeOriginal for images, then tries the file name.
	SourceExif
)

// ParseSource converts "mtime", "filename" or "exif" into a Source.
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mtime", "modtime":
		return SourceModTime, nil
	case "filename", "name":
		return SourceFilename, nil
	case "exif":
		return SourceExif, nil
	default:
		return SourceModTime, fmt.Errorf("unknown date source %q", s)
	}
}

// String returns the configuration name of the source.
func (s Source) String() string {
	switch s {
	case SourceFilename:
		return "filename"
	case SourceExif:
		return "exif"
	default:
		return "mtime"
	}
}

// Patterns are tried in order; the first match that parses wins.
var datePatterns = []struct {
	regex  *regexp.Regexp
	layout string
}{
	// DJI_20250619224111_0001_D.MP4
	{regexp.MustCompile(`DJI_(\d{8})`), "20060102"},
	// IMG_20250619_123456.jpg
	{regexp.MustCompile(`(\d{8})_\d{6}`), "20060102"},
	// 2025-06-19 photo.jpg
	{regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`), "2006-01-02"},
	// 20250619_photo.jpg
	{regexp.MustCompile(`(?:^|\D)(\d{8})(?:\D|$)`), "20060102"},
}

// plausible rejects digit runs that parse but are not real capture dates.
func plausible(t time.Time) bool {
	return t.Year() >= 1970 && t.Year() <= 2100
}

// FromFilename extracts a date from a file's base name.
func FromFilename(name string) (time.Time, bool) {
	name = filepath.Base(name)
	for _, p := range datePatterns {
		matches := p.regex.FindStringSubmatch(name)
		if len(matches) < 2 {
			continue
		}
		t, err := time.Parse(p.layout, matches[1])
		if err == nil && plausible(t) {
			return t, true
		}
	}
	return time.Time{}, false
}

// FromExif reads the EXIF capture time of an image.
func FromExif(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, err
	}

	return x.DateTime()
}

// Date returns the extracted date for path under the given source, or the
// zero time when none is found.
func Date(path string, src Source) time.Time {
	switch src {
	case SourceExif:
		if filter.GroupOf(path) == "image" {
			if t, err := FromExif(path); err == nil && plausible(t) {
				return t
			}
		}
		fallthrough
	case SourceFilename:
		if t, ok := FromFilename(path); ok {
			return t
		}
	}
	return time.Time{}
}
