package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/tidy/cmd/tidy/tui"
	"github.com/jamesainslie/tidy/pkg/tidy/cache"
	"github.com/jamesainslie/tidy/pkg/tidy/dedupe"
	"github.com/jamesainslie/tidy/pkg/tidy/executor"
	"github.com/jamesainslie/tidy/pkg/tidy/logging"
	"github.com/jamesainslie/tidy/pkg/tidy/naming"
	"github.com/jamesainslie/tidy/pkg/tidy/organize"
	"github.com/jamesainslie/tidy/pkg/tidy/output"
	"github.com/jamesainslie/tidy/pkg/tidy/planner"
	"github.com/jamesainslie/tidy/pkg/tidy/scanner"
	"github.com/jamesainslie/tidy/pkg/tidy/trash"
	"github.com/jamesainslie/tidy/pkg/tidy/tuner"
	"github.com/jamesainslie/tidy/pkg/tidy/types"
)

// Duplicate actions.
const (
	actionReport = "report"
	actionMove   = "move"
	actionTrash  = "trash"
)

var (
	dedupeAction    string
	dedupeNoCache   bool
	dedupeSkipEmpty bool
	dedupeMinSize   string
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe <path>...",
	Short: "Find files with identical content",
	Long: `Dedupe groups files by content. Only files whose sizes collide are hashed,
and fingerprints are cached between runs.

One file per group is kept (--keep oldest, newest or first by path). The
others can be:
  report  listed only (default)
  move    moved into <target>/duplicates with an undo log
  trash   sent to the system trash, or tidy's own trash directory`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDedupe,
}

func init() {
	dedupeCmd.Flags().StringVarP(&dedupeAction, "action", "a", actionReport, "what to do with redundant copies: report, move or trash")
	dedupeCmd.Flags().String("keep", "", "which copy to keep: oldest, newest or first")
	dedupeCmd.Flags().String("algo", "", "hash algorithm: sha256, sha512, sha1 or md5")
	dedupeCmd.Flags().IntP("workers", "w", 0, "override hash worker count (0=auto)")
	dedupeCmd.Flags().String("duplicates-folder", "", "folder under the target root for --action move")
	dedupeCmd.Flags().BoolVar(&dedupeNoCache, "no-cache", false, "bypass the fingerprint cache")
	dedupeCmd.Flags().BoolVar(&dedupeSkipEmpty, "skip-empty", false, "leave 0-byte files out of duplicate groups")
	dedupeCmd.Flags().StringVar(&dedupeMinSize, "min-size", "", "ignore files smaller than this")
	rootCmd.AddCommand(dedupeCmd)
}

// openCache opens the fingerprint cache unless it is disabled. A cache
// that cannot be opened (another tidy holds it) only costs speed.
func openCache() *cache.Store {
	if dedupeNoCache || !cfg.Cache.Enabled {
		return nil
	}
	path := cfg.Cache.Path
	if path == "" {
		path = cache.DefaultPath()
	}
	store, err := cache.OpenStore(path)
	if err != nil {
		logging.Get("dedupe").Warn("fingerprint cache unavailable", "path", path, "error", err)
		printVerbose("Fingerprint cache unavailable: %v", err)
		return nil
	}
	return store
}

// runDedupe is the dedupe command handler.
func runDedupe(_ *cobra.Command, args []string) error {
	switch dedupeAction {
	case actionReport, actionMove, actionTrash:
	default:
		return fmt.Errorf("invalid action %q: use report, move or trash", dedupeAction)
	}

	roots, err := absPaths(args)
	if err != nil {
		return err
	}
	algorithm, err := dedupe.ParseAlgorithm(cfg.Dedupe.Algorithm)
	if err != nil {
		return err
	}
	keep, err := dedupe.ParseKeep(cfg.Dedupe.Keep)
	if err != nil {
		return err
	}
	var minBytes int64
	if dedupeMinSize != "" {
		if minBytes, err = types.ParseSize(dedupeMinSize); err != nil {
			return fmt.Errorf("invalid min-size %q: %w", dedupeMinSize, err)
		}
	}

	store := openCache()
	if store != nil {
		defer store.Close()
	}

	ctx, stop := signalContext()
	defer stop()

	var (
		groups []types.DuplicateGroup
		report dedupe.Report
	)
	err = withProgress(ctx, "tidy dedupe", func(ctx context.Context, progress func(tui.UpdateMsg)) error {
		scan, err := scanner.New(scanner.Options{
			Roots:   roots,
			MinSize: minBytes,
			Exclude: cfg.Exclude,
			OnProgress: func(p scanner.Progress) {
				progress(tui.UpdateMsg{Phase: tui.PhaseScan, Done: int(p.FilesScanned), Current: p.CurrentPath})
			},
		}).Scan(ctx)
		if err != nil {
			return err
		}

		opts := []dedupe.Option{
			dedupe.WithAlgorithm(algorithm),
			dedupe.WithKeep(keep),
			dedupe.WithTuning(tuner.Auto(cfg.Dedupe.Workers)),
			dedupe.WithSkipEmpty(dedupeSkipEmpty),
			dedupe.WithProgress(func(p dedupe.Progress) {
				progress(tui.UpdateMsg{Phase: tui.PhaseHash, Done: int(p.Hashed), Total: int(p.Total)})
			}),
		}
		if store != nil {
			opts = append(opts, dedupe.WithCache(store))
		}

		d := dedupe.New(opts...)
		if groups, err = d.Group(ctx, scan.Records); err != nil {
			return err
		}
		report = dedupe.NewReport(algorithm, groups, d.Errors())
		return nil
	})
	if err != nil {
		if interrupted(err) {
			printInfo("Duplicate search cancelled")
			return nil
		}
		return err
	}

	result := &output.Result{Kind: output.KindDedupe, DryRun: getDryRun(), Dedupe: &report}
	for _, e := range report.Errors {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %s", e.Path, e.Error))
	}

	switch dedupeAction {
	case actionMove:
		if err := moveDuplicates(ctx, groups, result); err != nil {
			return err
		}
	case actionTrash:
		trashDuplicates(groups, store, algorithm, result)
	}

	return render(result)
}

// moveDuplicates relocates redundant copies into the duplicates folder as a
// logged, undoable session.
func moveDuplicates(ctx context.Context, groups []types.DuplicateGroup, result *output.Result) error {
	target, err := targetRoot()
	if err != nil {
		return err
	}
	scheme, err := naming.ParseScheme(cfg.Naming)
	if err != nil {
		return err
	}

	plan, err := planner.New().PlanDuplicates(groups, planner.Policy{
		TargetRoot:       target,
		Naming:           scheme,
		Mode:             types.ModeMove,
		DuplicatesFolder: cfg.Dedupe.DuplicatesFolder,
	})
	if err != nil {
		return err
	}

	res, err := organize.Apply(ctx, plan, target, getDryRun(), executor.WithNaming(scheme))
	if err != nil && (res == nil || !interrupted(err)) {
		return err
	}

	result.Target = target
	result.LogPath = res.LogPath
	result.Actions = res.Actions
	result.Preview = &res.Preview
	result.Interrupted = res.Interrupted
	if res.LogPath != "" {
		printInfo("Moved %d duplicate(s) into %s", res.Preview.OK, filepath.Join(target, cfg.Dedupe.DuplicatesFolder))
		printInfo("Undo with: tidy undo %s", res.LogPath)
	}
	return nil
}

// trashDuplicates disposes of redundant copies. Failures become warnings;
// a dry run only reports what would be trashed.
func trashDuplicates(groups []types.DuplicateGroup, store *cache.Store, algorithm dedupe.Algorithm, result *output.Result) {
	t := trash.New(cfg.Trash.Path, trash.WithSystemTrash(cfg.Trash.System))
	log := logging.Get("dedupe")

	disposed := 0
	for _, g := range groups {
		for _, r := range g.Redundant {
			if getDryRun() {
				printInfo("Would trash %s", r.Path)
				continue
			}
			dest, err := t.Dispose(r.Path)
			if err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", r.Path, err))
				continue
			}
			disposed++
			log.Info("duplicate trashed", "path", r.Path, "dest", dest, "keeper", g.Keeper.Path)
			printVerbose("Trashed %s -> %s", r.Path, dest)
			if store != nil {
				if err := store.Delete(r.Path, string(algorithm)); err != nil {
					log.Warn("failed to drop cached fingerprint", "path", r.Path, "error", err)
				}
			}
		}
	}
	if !getDryRun() {
		printInfo("Trashed %d duplicate(s)", disposed)
	}
}
