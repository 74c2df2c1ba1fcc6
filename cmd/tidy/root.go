package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/tidy/pkg/tidy/config"
	"github.com/jamesainslie/tidy/pkg/tidy/logging"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "tidy",
		Short: "Organize files into folders, reversibly",
		Long: `Tidy sorts files into folders by type or date and records every change
in an undo log under the target root, so any run can be reversed.

Examples:
  tidy organize ~/Downloads -t ~/Sorted            # Move files into ~/Sorted/<ext>/
  tidy organize ~/Photos -t ~/Sorted --by date -m copy
  tidy organize ~/Downloads -t ~/Sorted --dry-run  # Preview only
  tidy undo -t ~/Sorted                            # Reverse the latest run
  tidy dedupe ~/Photos                             # Report duplicate files
  tidy watch ~/Downloads -t ~/Sorted               # Organize new arrivals
  tidy history -t ~/Sorted                         # List undo logs`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: bootstrap,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/tidy/config.yaml)")
	rootCmd.PersistentFlags().StringP("target", "t", "", "target root for organized files and undo logs")
	rootCmd.PersistentFlags().BoolP("dry-run", "d", false, "show what would happen without changing anything")
	rootCmd.PersistentFlags().StringSliceP("exclude", "e", nil, "exclude patterns (can be specified multiple times)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "output format: pretty, plain, json, yaml, tsv, csv")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")
	rootCmd.PersistentFlags().Bool("no-progress", false, "never show the progress view")
	rootCmd.PersistentFlags().String("log-level", "", "log file level (debug, info, warn, error)")

	_ = viper.BindPFlag("target", rootCmd.PersistentFlags().Lookup("target"))
	_ = viper.BindPFlag("dry_run", rootCmd.PersistentFlags().Lookup("dry-run"))
	_ = viper.BindPFlag("exclude", rootCmd.PersistentFlags().Lookup("exclude"))
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("no_progress", rootCmd.PersistentFlags().Lookup("no-progress"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads in config file and environment variables.
func initConfig() {
	config.Prepare(viper.GetViper(), cfgFile)
	if err := config.Read(viper.GetViper()); err != nil {
		printError("%v", err)
	}
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError("%v", err)
	}
	_ = logging.Close()
	return err
}

// getDryRun returns true if dry-run mode is enabled.
func getDryRun() bool {
	return viper.GetBool("dry_run")
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...any) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message to stderr if quiet mode is not enabled.
// Stdout is reserved for formatted results.
func printInfo(format string, args ...any) {
	if !getQuiet() {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
