// Package filter selects, sorts and limits file records before planning or
// deduplication. It supports filtering by size, age, extension, type group
// and glob patterns.
package filter

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// SortField specifies the field to sort records by.
type SortField int

const (
	// SortPath sorts records by path lexically.
	SortPath SortField = iota
	// SortSize sorts records by size in bytes.
	SortSize
	// SortAge sorts records by modification time, oldest first.
	SortAge
)

// String returns the string representation of the sort field.
func (s SortField) String() string {
	switch s {
	case SortSize:
		return "size"
	case SortAge:
		return "age"
	default:
		return "path"
	}
}

// ErrInvalidSortField indicates that the sort field string could not be parsed.
var ErrInvalidSortField = errors.New("invalid sort field")

// ParseSortField parses "path", "size" or "age" (case-insensitive).
func ParseSortField(s string) (SortField, error) {
	switch strings.ToLower(s) {
	case "path", "":
		return SortPath, nil
	case "size":
		return SortSize, nil
	case "age":
		return SortAge, nil
	default:
		return SortPath, fmt.Errorf("%w: %q", ErrInvalidSortField, s)
	}
}

// TypeGroups maps file type group names to their associated extensions.
var TypeGroups = map[string][]string{
	"video": {
		".mp4", ".mkv", ".avi", ".mov", ".wmv", ".flv", ".webm", ".m4v", ".mpeg", ".mpg",
	},
	"audio": {
		".mp3", ".flac", ".wav", ".aac", ".ogg", ".wma", ".m4a", ".opus", ".aiff", ".alac",
	},
	"image": {
		".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff", ".tif", ".webp", ".svg", ".ico", ".heic", ".heif", ".raw",
		".cr2", ".nef", ".arw", ".dng",
	},
	"archive": {
		".zip", ".tar", ".gz", ".bz2", ".xz", ".7z", ".rar", ".tgz", ".tbz2",
	},
	"document": {
		".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".odt", ".ods", ".odp", ".rtf", ".txt", ".md", ".epub",
	},
	"code": {
		".go", ".py", ".js", ".ts", ".java", ".c", ".cpp", ".h", ".hpp", ".rs", ".rb", ".php", ".swift", ".kt", ".cs", ".sh",
	},
}

// Ext returns the lower-cased extension of path including the dot,
// or "" when there is none.
func Ext(path string) string {
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	if ext == name {
		return ""
	}
	return strings.ToLower(ext)
}

// GroupOf returns the type group containing the extension of path, or "".
func GroupOf(path string) string {
	ext := Ext(path)
	if ext == "" {
		return ""
	}
	for group, exts := range TypeGroups {
		for _, e := range exts {
			if e == ext {
				return group
			}
		}
	}
	return ""
}

// normalizeExt lower-cases an extension and ensures a leading dot.
func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
