package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/tidy/cmd/tidy/tui"
	"github.com/jamesainslie/tidy/pkg/tidy/executor"
	"github.com/jamesainslie/tidy/pkg/tidy/metadata"
	"github.com/jamesainslie/tidy/pkg/tidy/organize"
	"github.com/jamesainslie/tidy/pkg/tidy/output"
	"github.com/jamesainslie/tidy/pkg/tidy/scanner"
	"github.com/jamesainslie/tidy/pkg/tidy/types"
)

var organizeCmd = &cobra.Command{
	Use:   "organize <path>...",
	Short: "Sort files into folders under the target root",
	Long: `Organize scans the given files and directories and places each file under
the target root in a folder named after its extension (--by type) or its
date (--by date).

Every real run writes an undo log (fm_organize_<UTC stamp>.json) to the
target root. Pass it to 'tidy undo' to reverse the run.

Modes:
  move      relocate the file (default)
  copy      copy it, leaving the original
  hardlink  link it, falling back to a copy across devices
  index     write a small reference record instead of the file`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOrganize,
}

func init() {
	addPolicyFlags(organizeCmd)
	rootCmd.AddCommand(organizeCmd)
}

// addPolicyFlags registers the placement and selection flags.
func addPolicyFlags(cmd *cobra.Command) {
	cmd.Flags().String("by", "", "group by: type or date")
	cmd.Flags().StringP("mode", "m", "", "mode: move, copy, hardlink or index")
	cmd.Flags().String("naming", "", "collision naming: numbered or underscore")
	cmd.Flags().String("date-source", "", "date for --by date: mtime, filename or exif")
	cmd.Flags().String("size-bucket", "", "put files at or above this size in their own folder (e.g. 500M)")
	cmd.Flags().String("large-folder", "", "folder name for --size-bucket")

	cmd.Flags().StringVar(&extensions, "ext", "", "only these extensions (comma-separated, e.g. jpg,png)")
	cmd.Flags().StringVar(&fileTypes, "type", "", "only these type groups (comma-separated: image,video,audio,document,archive,code)")
	cmd.Flags().StringVar(&monthFlag, "month", "", "with --by date, only this month (1-12 or name)")
	cmd.Flags().IntVar(&yearFlag, "year", 0, "with --by date, only this year")
	cmd.Flags().StringVar(&minSize, "min-size", "", "only files at least this large")
	cmd.Flags().StringVar(&olderThan, "older-than", "", "only files modified before this age (e.g. 30d)")
	cmd.Flags().StringVar(&newerThan, "newer-than", "", "only files modified within this age (e.g. 7d)")
	cmd.Flags().StringVar(&include, "include", "", "only paths matching these globs (comma-separated)")
}

// sessionRequest assembles an organize.Request for roots.
func sessionRequest(roots []string) (organize.Request, error) {
	target, err := targetRoot()
	if err != nil {
		return organize.Request{}, err
	}
	policy, err := buildPolicy(cfg, target)
	if err != nil {
		return organize.Request{}, err
	}
	f, err := buildFilter()
	if err != nil {
		return organize.Request{}, fmt.Errorf("failed to build filter: %w", err)
	}
	dateSource, err := metadata.ParseSource(cfg.DateSource)
	if err != nil {
		return organize.Request{}, err
	}

	return organize.Request{
		Roots:           roots,
		Policy:          policy,
		Exclude:         cfg.Exclude,
		DateSource:      dateSource,
		Filter:          f,
		DryRun:          getDryRun(),
		ExecutorOptions: []executor.Option{executor.WithNaming(policy.Naming)},
	}, nil
}

// runOrganize is the organize command handler.
func runOrganize(_ *cobra.Command, args []string) error {
	roots, err := absPaths(args)
	if err != nil {
		return err
	}
	req, err := sessionRequest(roots)
	if err != nil {
		return err
	}

	printVerbose("Organizing %v into %s (by %s, mode %s)", roots, req.Policy.TargetRoot, req.Policy.By, req.Policy.Mode)

	ctx, stop := signalContext()
	defer stop()

	var res *organize.Result
	err = withProgress(ctx, "tidy organize", func(ctx context.Context, report func(tui.UpdateMsg)) error {
		failed := 0
		req.OnScan = func(p scanner.Progress) {
			report(tui.UpdateMsg{Phase: tui.PhaseScan, Done: int(p.FilesScanned), Current: p.CurrentPath})
		}
		req.ExecutorOptions = append(req.ExecutorOptions, executor.WithProgress(func(p executor.Progress) {
			if p.Action.Status == types.StatusFailed {
				failed++
			}
			report(tui.UpdateMsg{Phase: tui.PhaseApply, Done: p.Done, Total: p.Total, Failed: failed, Current: p.Action.Source})
		}))

		var runErr error
		res, runErr = organize.Run(ctx, req)
		return runErr
	})
	if err != nil && (res == nil || !interrupted(err)) {
		return err
	}

	if err := render(sessionResult(res, req.Policy.TargetRoot, req.DryRun)); err != nil {
		return err
	}

	if res.LogPath != "" {
		printInfo("Undo with: tidy undo %s", res.LogPath)
	}
	return nil
}

// sessionResult converts a session result for the formatters.
func sessionResult(res *organize.Result, target string, dryRun bool) *output.Result {
	var warnings []string
	for _, e := range res.ScanErrors {
		warnings = append(warnings, fmt.Sprintf("%s: %s", e.Path, e.Error))
	}
	return &output.Result{
		Kind:        output.KindOrganize,
		DryRun:      dryRun,
		Target:      target,
		LogPath:     res.LogPath,
		Actions:     res.Actions,
		Preview:     &res.Preview,
		Duration:    res.Duration,
		Warnings:    warnings,
		Interrupted: res.Interrupted,
	}
}
