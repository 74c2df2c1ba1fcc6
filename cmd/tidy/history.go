package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/tidy/pkg/tidy/output"
	"github.com/jamesainslie/tidy/pkg/tidy/preview"
	"github.com/jamesainslie/tidy/pkg/tidy/undolog"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List undo logs",
	Long: `List the undo logs in the target root, newest first.

Each organize run writes one log. Use 'tidy history show <log>' to see its
entries and 'tidy undo <log>' to reverse it.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <log>",
	Short: "Show the entries of an undo log",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old undo logs",
	Long:  `Remove undo logs older than the retention period (history.retention_days).`,
	Args:  cobra.NoArgs,
	RunE:  runHistoryClean,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of logs to show (0 for all)")
	historyCleanCmd.Flags().Int("retention", 0, "remove logs older than this many days")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// targetLog returns the undo log manager of the target root.
func targetLog() (*undolog.Log, error) {
	target, err := targetRoot()
	if err != nil {
		return nil, err
	}
	return undolog.New(target)
}

// runHistory lists the target root's undo logs.
func runHistory(_ *cobra.Command, _ []string) error {
	l, err := targetLog()
	if err != nil {
		return err
	}
	infos, err := l.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list undo logs: %w", err)
	}

	return render(&output.Result{Kind: output.KindHistory, Target: l.Root(), History: infos})
}

// runHistoryShow renders the entries of one log.
func runHistoryShow(_ *cobra.Command, args []string) error {
	path, err := absPath(args[0])
	if err != nil {
		return err
	}
	actions, err := undolog.Read(path)
	if err != nil {
		return err
	}

	summary := preview.Summarize(actions, 0)
	return render(&output.Result{
		Kind:    output.KindOrganize,
		LogPath: path,
		Actions: actions,
		Preview: &summary,
	})
}

// runHistoryClean removes logs past the retention period.
func runHistoryClean(_ *cobra.Command, _ []string) error {
	l, err := targetLog()
	if err != nil {
		return err
	}

	days := cfg.History.RetentionDays
	if getDryRun() {
		infos, err := l.List(0)
		if err != nil {
			return err
		}
		cutoff := time.Now().AddDate(0, 0, -days)
		n := 0
		for _, info := range infos {
			if info.Started.Before(cutoff) {
				printInfo("Would remove %s", info.Path)
				n++
			}
		}
		printInfo("Would remove %d log(s) older than %d days", n, days)
		return nil
	}

	removed, err := l.Cleanup(days, time.Now())
	if err != nil {
		return fmt.Errorf("failed to clean undo logs: %w", err)
	}
	printInfo("Removed %d log(s) older than %d days", removed, days)
	return nil
}
