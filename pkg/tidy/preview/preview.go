// Package preview summarizes an executor result for display: how many
// entries ended in each status, how many bytes each mode moves or copies,
// and which entries are the largest. It supplies data only; rendering is
// left to the output package.
package preview

import (
	"slices"
	"strings"

	"github.com/jamesainslie/tidy/pkg/tidy/types"
)

// DefaultLargest is the number of largest entries reported by default.
const DefaultLargest = 10

// Summary is the preview of one executor result.
type Summary struct {
	Total   int `json:"total" yaml:"total"`
	OK      int `json:"ok" yaml:"ok"`
	Skipped int `json:"skipped" yaml:"skipped"`
	Failed  int `json:"failed" yaml:"failed"`

	// Bytes is keyed by mode name. For a dry run it counts every entry that
	// would have been applied; for a real run it counts ok entries.
	Bytes      map[string]int64 `json:"bytes" yaml:"bytes"`
	TotalBytes int64            `json:"total_bytes" yaml:"total_bytes"`

	Largest []types.CompletedAction `json:"largest" yaml:"largest"`
}

// Summarize builds a Summary. n <= 0 selects DefaultLargest.
//
// A dry-run entry is counted as would-apply when it is skipped without an
// error; skipped entries carrying an error (missing source, already in
// place) are not.
func Summarize(actions []types.CompletedAction, n int) Summary {
	if n <= 0 {
		n = DefaultLargest
	}

	s := Summary{Total: len(actions), Bytes: map[string]int64{}}
	counted := make([]types.CompletedAction, 0, len(actions))

	for _, a := range actions {
		switch a.Status {
		case types.StatusOK:
			s.OK++
		case types.StatusSkipped:
			s.Skipped++
		case types.StatusFailed:
			s.Failed++
		}
		if !affects(a) {
			continue
		}
		s.Bytes[a.Mode.String()] += a.Size
		s.TotalBytes += a.Size
		counted = append(counted, a)
	}

	slices.SortStableFunc(counted, func(a, b types.CompletedAction) int {
		if a.Size != b.Size {
			if a.Size > b.Size {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Source, b.Source)
	})
	if len(counted) > n {
		counted = counted[:n]
	}
	s.Largest = counted
	return s
}

func affects(a types.CompletedAction) bool {
	switch a.Status {
	case types.StatusOK:
		return true
	case types.StatusSkipped:
		return a.Error == "" && a.Mode.Valid()
	default:
		return false
	}
}
