// Package organize runs one organize session: scan the inputs, plan their
// destinations, execute the plan and, for real runs, write the undo log
// that makes the session reversible.
package organize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jamesainslie/tidy/pkg/tidy/executor"
	"github.com/jamesainslie/tidy/pkg/tidy/filter"
	"github.com/jamesainslie/tidy/pkg/tidy/logging"
	"github.com/jamesainslie/tidy/pkg/tidy/metadata"
	"github.com/jamesainslie/tidy/pkg/tidy/planner"
	"github.com/jamesainslie/tidy/pkg/tidy/preview"
	"github.com/jamesainslie/tidy/pkg/tidy/scanner"
	"github.com/jamesainslie/tidy/pkg/tidy/types"
	"github.com/jamesainslie/tidy/pkg/tidy/undolog"
)

// Request describes one session.
type Request struct {
	// Roots are scanned for input files. Directories are walked; files are
	// taken as they are.
	Roots []string

	Policy planner.Policy

	// Exclude holds extra glob patterns for the scanner.
	Exclude    []string
	DateSource metadata.Source

	// Filter, when set, narrows the scanned records before planning.
	Filter *filter.Filter

	DryRun bool

	// PreviewLimit is how many of the largest entries the preview keeps.
	// Zero uses preview.DefaultLargest.
	PreviewLimit int

	ExecutorOptions []executor.Option
	OnScan          func(scanner.Progress)
}

// Result is the outcome of a session.
type Result struct {
	Actions []types.CompletedAction
	Preview preview.Summary

	// LogPath is empty for dry runs and for sessions that did nothing.
	LogPath string

	Scanned    int
	ScanErrors []scanner.ScanError
	Started    time.Time
	Duration   time.Duration

	// Interrupted is set when ctx was cancelled part way through the plan.
	// Actions and LogPath still describe the completed prefix.
	Interrupted bool
}

// Run scans, plans and applies req.
func Run(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()

	scan, err := scanner.New(scanner.Options{
		Roots:      req.Roots,
		Exclude:    req.Exclude,
		SkipDirs:   []string{req.Policy.TargetRoot},
		DateSource: req.DateSource,
		OnProgress: req.OnScan,
	}).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	records := scan.Records
	if req.Filter != nil {
		records, _ = req.Filter.Apply(records)
	}

	plan, err := planner.New().Plan(records, req.Policy)
	if err != nil {
		return nil, err
	}

	res, err := apply(ctx, plan, req.Policy.TargetRoot, req.DryRun, req.PreviewLimit, started, req.ExecutorOptions)
	if res != nil {
		res.Scanned = len(scan.Records)
		res.ScanErrors = scan.Errors
	}
	return res, err
}

// Apply executes an existing plan and logs it under root. It is the tail of
// Run, shared with callers that build plans themselves (duplicate
// relocation).
func Apply(ctx context.Context, plan []types.PlannedAction, root string, dryRun bool, opts ...executor.Option) (*Result, error) {
	return apply(ctx, plan, root, dryRun, 0, time.Now(), opts)
}

func apply(ctx context.Context, plan []types.PlannedAction, root string, dryRun bool, limit int, started time.Time, opts []executor.Option) (*Result, error) {
	log := logging.Get("organize")
	if limit <= 0 {
		limit = preview.DefaultLargest
	}

	actions, execErr := executor.New(opts...).Execute(ctx, plan, types.ModeUnset, dryRun)
	if execErr != nil && !errors.Is(execErr, context.Canceled) && !errors.Is(execErr, context.DeadlineExceeded) {
		return nil, execErr
	}

	res := &Result{
		Actions:     actions,
		Preview:     preview.Summarize(actions, limit),
		Started:     started,
		Interrupted: execErr != nil,
	}

	// A cancelled run still logs what it did so it can be undone.
	if !dryRun && len(actions) > 0 {
		lg, err := undolog.New(root)
		if err != nil {
			return res, err
		}
		path, err := lg.Write(actions, started)
		if err != nil {
			return res, fmt.Errorf("session applied %d entries but the undo log failed: %w", len(actions), err)
		}
		res.LogPath = path
	}

	res.Duration = time.Since(started)
	log.Info("session finished",
		"entries", len(actions),
		"ok", res.Preview.OK,
		"failed", res.Preview.Failed,
		"dry_run", dryRun,
		"interrupted", res.Interrupted,
		"log", res.LogPath)

	return res, execErr
}
