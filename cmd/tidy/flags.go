package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jamesainslie/tidy/pkg/tidy/config"
	"github.com/jamesainslie/tidy/pkg/tidy/filter"
	"github.com/jamesainslie/tidy/pkg/tidy/naming"
	"github.com/jamesainslie/tidy/pkg/tidy/planner"
	"github.com/jamesainslie/tidy/pkg/tidy/types"
)

// Selection flags shared by organize and watch. They narrow a run and are
// not part of the config file.
var (
	extensions string
	fileTypes  string
	monthFlag  string
	yearFlag   int
	minSize    string
	olderThan  string
	newerThan  string
	include    string
)

// buildPolicy creates a planner.Policy from the configuration and the
// selection flags.
func buildPolicy(c *config.Config, target string) (planner.Policy, error) {
	by, err := planner.ParseGroupBy(c.By)
	if err != nil {
		return planner.Policy{}, err
	}
	mode, err := types.ParseMode(c.Mode)
	if err != nil {
		return planner.Policy{}, err
	}
	scheme, err := naming.ParseScheme(c.Naming)
	if err != nil {
		return planner.Policy{}, err
	}

	policy := planner.Policy{
		By:               by,
		TargetRoot:       target,
		Naming:           scheme,
		Mode:             mode,
		Extensions:       parseCommaSeparated(extensions),
		Year:             yearFlag,
		DuplicatesFolder: c.Dedupe.DuplicatesFolder,
	}

	if c.SizeBucket.Threshold != "" {
		threshold, err := types.ParseSize(c.SizeBucket.Threshold)
		if err != nil {
			return planner.Policy{}, fmt.Errorf("invalid size bucket %q: %w", c.SizeBucket.Threshold, err)
		}
		policy.SizeBucket = &planner.SizeBucket{Threshold: threshold, Folder: c.SizeBucket.Folder}
	}

	if monthFlag != "" {
		m, err := parseMonth(monthFlag)
		if err != nil {
			return planner.Policy{}, err
		}
		policy.Month = m
	}

	return policy, policy.Validate()
}

// parseMonth accepts 1-12 or an English month name or prefix ("jan").
func parseMonth(s string) (time.Month, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 12 {
			return 0, fmt.Errorf("invalid month %q: must be 1-12", s)
		}
		return time.Month(n), nil
	}
	lower := strings.ToLower(s)
	if len(lower) >= 3 {
		for m := time.January; m <= time.December; m++ {
			if strings.HasPrefix(strings.ToLower(m.String()), lower) {
				return m, nil
			}
		}
	}
	return 0, fmt.Errorf("invalid month %q", s)
}

// buildFilter creates a filter.Filter from the selection flags, or nil when
// none is set.
func buildFilter() (*filter.Filter, error) {
	var opts []filter.Option

	if minSize != "" {
		size, err := types.ParseSize(minSize)
		if err != nil {
			return nil, fmt.Errorf("invalid min-size %q: %w", minSize, err)
		}
		opts = append(opts, filter.WithMinSize(size))
	}

	if olderThan != "" {
		d, err := filter.ParseDuration(olderThan)
		if err != nil {
			return nil, fmt.Errorf("invalid older-than %q: %w", olderThan, err)
		}
		opts = append(opts, filter.WithOlderThan(d))
	}

	if newerThan != "" {
		d, err := filter.ParseDuration(newerThan)
		if err != nil {
			return nil, fmt.Errorf("invalid newer-than %q: %w", newerThan, err)
		}
		opts = append(opts, filter.WithNewerThan(d))
	}

	if fileTypes != "" {
		opts = append(opts, filter.WithTypeGroups(parseCommaSeparated(fileTypes)...))
	}

	if include != "" {
		opts = append(opts, filter.WithInclude(parseCommaSeparated(include)...))
	}

	if len(opts) == 0 {
		return nil, nil
	}
	// Keep scan order: the planner resolves collisions first come, first served.
	opts = append(opts, filter.WithSortBy(filter.SortPath), filter.WithSortDescending(false))
	return filter.New(opts...), nil
}
