package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/tidy/cmd/tidy/tui"
	"github.com/jamesainslie/tidy/pkg/tidy/output"
	"github.com/jamesainslie/tidy/pkg/tidy/types"
	"github.com/jamesainslie/tidy/pkg/tidy/undo"
	"github.com/jamesainslie/tidy/pkg/tidy/undolog"
)

var undoCmd = &cobra.Command{
	Use:   "undo [log]",
	Short: "Reverse an organize run",
	Long: `Undo reads an undo log and reverses its entries, last one first.

Moved files are moved back, copies, links and index records are removed.
Entries that were skipped or failed, or whose result is already gone, are
reported as not applicable. Without an argument the newest log in the
target root is used.

The log is deleted when every entry was reversed, unless --keep-log is set
or the run is a dry run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUndo,
}

var (
	undoKeepLog bool
	undoNoPrune bool
)

// errUndoIncomplete is returned when some entries could not be reversed.
var errUndoIncomplete = errors.New("some entries could not be reversed; the log was kept")

func init() {
	undoCmd.Flags().BoolVar(&undoKeepLog, "keep-log", false, "keep the log after a clean reversal")
	undoCmd.Flags().BoolVar(&undoNoPrune, "no-prune", false, "leave emptied folders in place")
	rootCmd.AddCommand(undoCmd)
}

// resolveLog returns the log named by args, or the newest log of the
// target root.
func resolveLog(args []string) (string, error) {
	if len(args) == 1 {
		return absPath(args[0])
	}
	target, err := targetRoot()
	if err != nil {
		return "", err
	}
	l, err := undolog.New(target)
	if err != nil {
		return "", err
	}
	return l.Latest()
}

// runUndo is the undo command handler.
func runUndo(_ *cobra.Command, args []string) error {
	logPath, err := resolveLog(args)
	if err != nil {
		return err
	}
	printVerbose("Reversing %s", logPath)

	opts := []undo.Option{undo.WithDryRun(getDryRun()), undo.WithKeepLog(undoKeepLog)}
	if undoNoPrune {
		opts = append(opts, undo.WithoutPrune())
	}

	ctx, stop := signalContext()
	defer stop()

	var results []types.UndoResult
	err = withProgress(ctx, "tidy undo", func(ctx context.Context, report func(tui.UpdateMsg)) error {
		failed := 0
		engine := undo.New(append(opts, undo.WithProgress(func(p undo.Progress) {
			if p.Result.Outcome == types.OutcomeFailed {
				failed++
			}
			report(tui.UpdateMsg{Phase: tui.PhaseUndo, Done: p.Done, Total: p.Total, Failed: failed, Current: p.Result.Entry.Destination})
		}))...)

		var undoErr error
		results, undoErr = engine.Undo(ctx, logPath)
		return undoErr
	})
	cancelled := err != nil && interrupted(err)
	if err != nil && !cancelled {
		return err
	}

	if err := render(&output.Result{
		Kind:        output.KindUndo,
		DryRun:      getDryRun(),
		LogPath:     logPath,
		Undo:        results,
		Interrupted: cancelled,
	}); err != nil {
		return err
	}

	if undo.Summarize(results).Failed > 0 {
		return errUndoIncomplete
	}
	if cancelled {
		printInfo("Undo cancelled; the log was kept: %s", logPath)
	}
	return nil
}
