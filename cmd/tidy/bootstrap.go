package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jamesainslie/tidy/cmd/tidy/tui"
	"github.com/jamesainslie/tidy/pkg/tidy/config"
	"github.com/jamesainslie/tidy/pkg/tidy/logging"
	"github.com/jamesainslie/tidy/pkg/tidy/output"
)

// annotationLenientConfig marks commands that still run when the config
// does not validate, so it can be inspected and fixed.
const annotationLenientConfig = "lenient-config"

// cfg is the configuration of the running command, set by bootstrap.
var cfg *config.Config

// flagKeys maps command-local flag names to the config keys they override.
// Several commands share a flag name, so bindings are made for the command
// that actually runs.
var flagKeys = map[string]string{
	"by":                "by",
	"mode":              "mode",
	"naming":            "naming",
	"date-source":       "date_source",
	"size-bucket":       "size_bucket.threshold",
	"large-folder":      "size_bucket.folder",
	"algo":              "dedupe.algorithm",
	"keep":              "dedupe.keep",
	"duplicates-folder": "dedupe.duplicates_folder",
	"workers":           "dedupe.workers",
	"debounce":          "watch.debounce",
	"retention":         "history.retention_days",
}

// bootstrap binds the running command's flags, loads the configuration and
// starts logging.
func bootstrap(cmd *cobra.Command, _ []string) error {
	v := viper.GetViper()
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			_ = v.BindPFlag(key, f)
		}
	})

	c, err := config.FromViper(v)
	if err != nil {
		if cmd.Annotations[annotationLenientConfig] != "true" {
			return err
		}
		printError("%v", err)
		c = nil
	}
	cfg = c

	return initLogging(c)
}

// initLogging starts file logging, with console output in verbose mode.
func initLogging(c *config.Config) error {
	lc := logging.DefaultConfig()
	if c != nil {
		var err error
		if lc, err = c.LoggingConfig(); err != nil {
			return err
		}
	}
	if getVerbose() {
		lc.ConsoleLevel = "debug"
	}
	if err := logging.Init(lc); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// interrupted reports whether err is a cancellation.
func interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// outputFormat returns the selected formatter name.
func outputFormat() string {
	if f := viper.GetString("output"); f != "" {
		return f
	}
	return config.DefaultOutput
}

// render formats r to stdout.
func render(r *output.Result) error {
	name := outputFormat()
	formatter, err := output.Get(name)
	if err != nil {
		return fmt.Errorf("unknown output format %q: available formats are %v", name, output.Available())
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, r); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = os.Stdout.Write(buf.Bytes())
	return err
}

// useProgress reports whether the progress view should be drawn: only for
// pretty output on an interactive terminal.
func useProgress() bool {
	if viper.GetBool("no_progress") || getQuiet() || getVerbose() || outputFormat() != "pretty" {
		return false
	}
	info, err := os.Stderr.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// withProgress runs work under the progress view when enabled, otherwise
// directly with a no-op reporter.
func withProgress(ctx context.Context, title string, work func(context.Context, func(tui.UpdateMsg)) error) error {
	if !useProgress() {
		return work(ctx, func(tui.UpdateMsg) {})
	}
	return tui.Run(ctx, os.Stderr, title, work)
}

// targetRoot returns the configured target root as an absolute path.
func targetRoot() (string, error) {
	if cfg == nil || cfg.Target == "" {
		return "", errors.New("no target root: pass --target or set target in the config file")
	}
	return absPath(cfg.Target)
}

// absPath expands ~ and makes path absolute.
func absPath(path string) (string, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return "", fmt.Errorf("failed to expand path: %w", err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	return abs, nil
}

// absPaths resolves every argument and checks that it exists.
func absPaths(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		abs, err := absPath(arg)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(abs); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("path does not exist: %s", abs)
			}
			return nil, fmt.Errorf("cannot access path: %w", err)
		}
		out = append(out, abs)
	}
	return out, nil
}

// parseCommaSeparated splits a comma-separated string and trims whitespace.
func parseCommaSeparated(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
