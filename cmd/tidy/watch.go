package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/tidy/pkg/tidy/logging"
	"github.com/jamesainslie/tidy/pkg/tidy/organize"
	"github.com/jamesainslie/tidy/pkg/tidy/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch <inbox>",
	Short: "Organize files as they arrive in a folder",
	Long: `Watch keeps an inbox folder tidy. Files that appear in it are collected
until the folder has been quiet for the debounce interval (--debounce, 2s by
default) and are then organized together as one session with its own undo
log.

Partial downloads (.part, .crdownload, .download) are ignored until they are
renamed. A target root inside the inbox is never watched.

Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	addPolicyFlags(watchCmd)
	watchCmd.Flags().String("debounce", "", "quiet period before a batch is organized (e.g. 5s)")
	rootCmd.AddCommand(watchCmd)
}

// runWatch is the watch command handler.
func runWatch(_ *cobra.Command, args []string) error {
	inbox, err := absPath(args[0])
	if err != nil {
		return err
	}
	req, err := sessionRequest(nil)
	if err != nil {
		return err
	}
	debounce, err := cfg.DebounceDuration()
	if err != nil {
		return err
	}

	w, err := watcher.New(watcher.Options{
		Debounce: debounce,
		Ignore:   cfg.Exclude,
		SkipDirs: []string{req.Policy.TargetRoot},
	})
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Watch(inbox); err != nil {
		return err
	}

	log := logging.Get("watch")
	log.Info("watching", "inbox", inbox, "target", req.Policy.TargetRoot, "debounce", debounce, "dirs", len(w.Watched()))
	printInfo("Watching %s (Ctrl+C to stop)", inbox)

	ctx, stop := signalContext()
	defer stop()

	err = w.Run(ctx, func(ctx context.Context, b watcher.Batch) {
		if err := organizeBatch(ctx, req, b); err != nil {
			log.Error("batch failed", "batch", b.ID, "error", err)
			printError("Batch %s: %v", b.ID, err)
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	printInfo("Stopped watching %s", inbox)
	return nil
}

// organizeBatch runs one session over a settled batch.
func organizeBatch(ctx context.Context, req organize.Request, b watcher.Batch) error {
	req.Roots = b.Paths
	logging.Get("watch").Info("batch settled", "batch", b.ID, "files", len(b.Paths))
	printVerbose("Organizing %d file(s) from batch %s", len(b.Paths), b.ID)

	res, err := organize.Run(ctx, req)
	if err != nil && (res == nil || !interrupted(err)) {
		return err
	}
	if err := render(sessionResult(res, req.Policy.TargetRoot, req.DryRun)); err != nil {
		return fmt.Errorf("failed to render batch: %w", err)
	}
	if res.LogPath != "" {
		printInfo("Undo with: tidy undo %s", res.LogPath)
	}
	return nil
}
