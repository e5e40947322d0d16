package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"imgharvest/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// options holds the values bound to command line flags
type options struct {
	configFile   string
	input        string
	output       string
	header       string
	workers      int
	quality      int
	timeout      time.Duration
	urlTemplate  string
	extensions   []string
	sweepStaging bool
	noProgress   bool
	noColor      bool
	logLevel     string
	logFile      string
}

// newRootCmd builds the imgharvest command tree
func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "imgharvest -i manifest.csv -o images/",
		Short: "Download and convert manifest images into a labeled JPEG dataset",
		Long: `imgharvest reads a CSV manifest of (locator, label) rows, downloads every
referenced image, converts it to JPEG and stores it as {label}_{n}.jpg.

Each locator must contain a "photos/<id>" segment. The image is looked up
under every configured extension (jpeg, jpg, png, webp by default) until one
downloads and decodes. Failed rows are logged and counted; the command exits
0 once the run completes.`,
		Example: `  # Download with defaults (16 workers, quality 95)
  imgharvest -i observations.csv -o dataset/

  # More workers, debug logs to a file
  imgharvest -i observations.csv -o dataset/ --workers 64 --log-level debug --log-file run.log

  # Clean staging files left by an interrupted run first
  imgharvest -i observations.csv -o dataset/ --sweep-staging`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHarvest(cmd, opts)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (default is ./.imgharvest.yaml or ~/.config/imgharvest/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "also write logs to this file")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	rootCmd.Flags().StringVarP(&opts.input, "input", "i", "", "path to the input CSV manifest")
	rootCmd.Flags().StringVarP(&opts.output, "output", "o", "", "output directory for converted images")
	rootCmd.Flags().StringVar(&opts.header, "header", "auto", "first row handling (auto, always, never); auto skips it when the locator has no photos/<id> segment")
	rootCmd.Flags().IntVarP(&opts.workers, "workers", "w", 16, "number of concurrent workers")
	rootCmd.Flags().IntVarP(&opts.quality, "quality", "q", 95, "JPEG quality (1-100)")
	rootCmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-request timeout")
	rootCmd.Flags().StringVar(&opts.urlTemplate, "url-template", "", "source URL template with {id} and {ext} placeholders")
	rootCmd.Flags().StringSliceVar(&opts.extensions, "extensions", nil, "source extensions to try, in order")
	rootCmd.Flags().BoolVar(&opts.sweepStaging, "sweep-staging", false, "remove staging files left by an interrupted run before starting")
	rootCmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "do not draw the progress line")

	// Version template
	rootCmd.SetVersionTemplate(`imgharvest {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(newConfigCmd(opts))
	return rootCmd
}

// Execute runs the root command and exits non-zero on setup errors
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}
