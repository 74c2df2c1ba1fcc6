// Package planner turns scanned file records into an ordered plan of
// destinations under a target root. Planning is pure: it never touches the
// filesystem, and the same records and policy always yield the same plan.
package planner

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jamesainslie/tidy/pkg/tidy/filter"
	"github.com/jamesainslie/tidy/pkg/tidy/logging"
	"github.com/jamesainslie/tidy/pkg/tidy/types"
)

// Planner builds plans. It holds no state between calls.
type Planner struct{}

// New returns a Planner.
func New() *Planner {
	return &Planner{}
}

// Plan maps each record to TargetRoot/key/basename in input order.
// When two records land on the same destination, the first keeps the plain
// name and later ones receive the policy's numeric suffix.
func (pl *Planner) Plan(records []types.FileRecord, policy Policy) ([]types.PlannedAction, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	claims := newClaims(policy)
	plan := make([]types.PlannedAction, 0, len(records))

	for _, r := range records {
		key, reason, ok := policy.key(r)
		if !ok {
			continue
		}
		dst, err := claims.claim(filepath.Join(policy.TargetRoot, key, r.Name()))
		if err != nil {
			return nil, err
		}
		plan = append(plan, types.PlannedAction{
			Source:      r.Path,
			Destination: dst,
			Mode:        policy.Mode,
			Size:        r.Size,
			Reason:      reason,
		})
	}

	logging.Get("planner").Debug("plan built", "records", len(records), "actions", len(plan), "by", policy.By)
	return plan, nil
}

// PlanDuplicates plans the relocation of every redundant group member into
// TargetRoot/DuplicatesFolder. Keepers are not planned. Policy.By is not
// required.
func (pl *Planner) PlanDuplicates(groups []types.DuplicateGroup, policy Policy) ([]types.PlannedAction, error) {
	if err := policy.validateTarget(); err != nil {
		return nil, err
	}

	folder := policy.DuplicatesFolder
	if folder == "" {
		folder = DefaultDuplicatesFolder
	}

	claims := newClaims(policy)
	var plan []types.PlannedAction
	for _, g := range groups {
		for _, r := range g.Redundant {
			dst, err := claims.claim(filepath.Join(policy.TargetRoot, folder, r.Name()))
			if err != nil {
				return nil, err
			}
			plan = append(plan, types.PlannedAction{
				Source:      r.Path,
				Destination: dst,
				Mode:        policy.Mode,
				Size:        r.Size,
				Reason:      types.ReasonDuplicate,
			})
		}
	}
	return plan, nil
}

// key returns the folder (relative to the target root) for a record, or
// false when the policy leaves the record out of the plan.
func (p Policy) key(r types.FileRecord) (string, types.Reason, bool) {
	ext := filter.Ext(r.Path)
	if !p.wantsExt(ext) {
		return "", "", false
	}

	if p.SizeBucket != nil && r.Size >= p.SizeBucket.Threshold {
		folder := p.SizeBucket.Folder
		if folder == "" {
			folder = DefaultLargeFolder
		}
		return folder, types.ReasonSize, true
	}

	switch p.By {
	case ByType:
		// "photo." has the extension "." and no usable key.
		if ext == "" || ext == "." {
			return NoExtKey, types.ReasonType, true
		}
		return strings.TrimPrefix(ext, "."), types.ReasonType, true
	default:
		d := r.Date().UTC()
		if p.Year != 0 || p.Month != 0 {
			if (p.Year != 0 && d.Year() != p.Year) || (p.Month != 0 && d.Month() != p.Month) {
				return "", "", false
			}
			if p.Month != 0 {
				return fmt.Sprintf("%s %04d", d.Month(), d.Year()), types.ReasonDate, true
			}
			return fmt.Sprintf("%04d", d.Year()), types.ReasonDate, true
		}
		return filepath.Join(fmt.Sprintf("%04d", d.Year()), d.Format("2006-01")), types.ReasonDate, true
	}
}

// claims tracks destinations already assigned within one plan.
type claims struct {
	policy Policy
	taken  map[string]struct{}
	next   map[string]int
}

func newClaims(p Policy) *claims {
	return &claims{
		policy: p,
		taken:  make(map[string]struct{}),
		next:   make(map[string]int),
	}
}

// claim returns the first unclaimed variant of dst. Suffix numbering is
// monotonic per destination and never reuses a name claimed by another
// entry, plain or suffixed.
func (c *claims) claim(dst string) (string, error) {
	got, n, err := c.policy.Naming.Free(dst, c.next[dst], func(candidate string) (bool, error) {
		_, busy := c.taken[candidate]
		return busy, nil
	})
	if err != nil {
		return "", err
	}
	c.taken[got] = struct{}{}
	c.next[dst] = n + 1
	return got, nil
}
