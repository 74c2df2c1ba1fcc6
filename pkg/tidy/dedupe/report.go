package dedupe

import (
	"github.com/jamesainslie/tidy/pkg/tidy/types"
)

// GroupReport is the reporting view of one duplicate group.
type GroupReport struct {
	Fingerprint string   `json:"fingerprint" yaml:"fingerprint"`
	Size        int64    `json:"size" yaml:"size"`
	Keeper      string   `json:"keeper" yaml:"keeper"`
	Redundant   []string `json:"redundant" yaml:"redundant"`
	Reclaimable int64    `json:"reclaimable" yaml:"reclaimable"`
}

// Report summarizes a Group call for output.
type Report struct {
	Algorithm   Algorithm     `json:"algorithm" yaml:"algorithm"`
	Groups      []GroupReport `json:"groups" yaml:"groups"`
	Files       int           `json:"files" yaml:"files"`
	Reclaimable int64         `json:"reclaimable" yaml:"reclaimable"`
	Errors      []HashError   `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// NewReport builds a Report from groups in their given order.
func NewReport(algorithm Algorithm, groups []types.DuplicateGroup, errs []HashError) Report {
	r := Report{Algorithm: algorithm, Groups: make([]GroupReport, 0, len(groups)), Errors: errs}
	for _, g := range groups {
		redundant := make([]string, len(g.Redundant))
		for i, rec := range g.Redundant {
			redundant[i] = rec.Path
		}
		r.Groups = append(r.Groups, GroupReport{
			Fingerprint: g.Fingerprint,
			Size:        g.Size,
			Keeper:      g.Keeper.Path,
			Redundant:   redundant,
			Reclaimable: g.Reclaimable(),
		})
		r.Files += len(g.Redundant) + 1
		r.Reclaimable += g.Reclaimable()
	}
	return r
}
