package planner

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jamesainslie/tidy/pkg/tidy/naming"
	"github.com/jamesainslie/tidy/pkg/tidy/types"
)

// ErrInvalidPolicy is returned when a Policy cannot produce a plan.
var ErrInvalidPolicy = errors.New("invalid placement policy")

// GroupBy selects the grouping key.
type GroupBy string

const (
	ByType GroupBy = "type"
	ByDate GroupBy = "date"
)

// ParseGroupBy parses "type" or "date".
func ParseGroupBy(s string) (GroupBy, error) {
	switch g := GroupBy(strings.ToLower(strings.TrimSpace(s))); g {
	case ByType, ByDate:
		return g, nil
	default:
		return "", fmt.Errorf("%w: unknown grouping %q", ErrInvalidPolicy, s)
	}
}

// Defaults for optional policy folders.
const (
	DefaultLargeFolder      = "Large"
	DefaultDuplicatesFolder = "duplicates"
	NoExtKey                = "noext"
)

// SizeBucket diverts files at or above Threshold into Folder, ahead of the
// grouping key.
type SizeBucket struct {
	Threshold int64
	Folder    string
}

// Policy describes where records go. It is stateless and reusable.
type Policy struct {
	By         GroupBy
	TargetRoot string
	Naming     naming.Scheme

	// Mode is stamped on every planned action.
	Mode types.Mode

	// Extensions, when non-empty, restricts the plan to these extensions
	// (".jpg"). Other records are left out of the plan.
	Extensions []string

	SizeBucket *SizeBucket

	// Year and Month narrow a date plan to one period. Matching records are
	// grouped under "<Month> <YYYY>" (or "<YYYY>" when only Year is set).
	Year  int
	Month time.Month

	// DuplicatesFolder is the folder PlanDuplicates relocates redundant
	// files into. Empty uses DefaultDuplicatesFolder.
	DuplicatesFolder string
}

// Validate checks the policy and returns ErrInvalidPolicy on failure.
func (p Policy) Validate() error {
	if p.By != ByType && p.By != ByDate {
		return fmt.Errorf("%w: grouping key unspecified", ErrInvalidPolicy)
	}
	return p.validateTarget()
}

func (p Policy) validateTarget() error {
	if p.TargetRoot == "" {
		return fmt.Errorf("%w: target root is empty", ErrInvalidPolicy)
	}
	if !filepath.IsAbs(p.TargetRoot) {
		return fmt.Errorf("%w: target root %q is not absolute", ErrInvalidPolicy, p.TargetRoot)
	}
	if !p.Mode.Valid() {
		return fmt.Errorf("%w: mode is unset", ErrInvalidPolicy)
	}
	if p.Month != 0 && (p.Month < time.January || p.Month > time.December) {
		return fmt.Errorf("%w: month %d out of range", ErrInvalidPolicy, p.Month)
	}
	if (p.Year != 0 || p.Month != 0) && p.By != ByDate {
		return fmt.Errorf("%w: year/month selection requires by=date", ErrInvalidPolicy)
	}
	if p.SizeBucket != nil && p.SizeBucket.Threshold <= 0 {
		return fmt.Errorf("%w: size bucket threshold must be positive", ErrInvalidPolicy)
	}
	return nil
}

// wantsExt matches ext (".jpg") against Extensions, which may be written
// with or without the dot and in any case.
func (p Policy) wantsExt(ext string) bool {
	if len(p.Extensions) == 0 {
		return true
	}
	return slices.ContainsFunc(p.Extensions, func(e string) bool {
		e = strings.ToLower(strings.TrimSpace(e))
		return e == ext || "."+e == ext
	})
}
