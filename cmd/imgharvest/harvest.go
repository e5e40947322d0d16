package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"imgharvest/pkg/config"
	"imgharvest/pkg/harvester"
	"imgharvest/pkg/logger"
	"imgharvest/pkg/manifest"
	"imgharvest/pkg/ui"
)

// flagMap collects the flags the user actually set, keyed the way
// config.MergeCommandLineFlags expects.
func flagMap(cmd *cobra.Command, opts *options) map[string]interface{} {
	flags := make(map[string]interface{})
	changed := cmd.Flags().Changed

	if changed("input") {
		flags["input"] = opts.input
	}
	if changed("output") {
		flags["output"] = opts.output
	}
	if changed("header") {
		flags["header"] = opts.header
	}
	if changed("workers") {
		flags["workers"] = opts.workers
	}
	if changed("quality") {
		flags["quality"] = opts.quality
	}
	if changed("timeout") {
		flags["timeout"] = opts.timeout
	}
	if changed("url-template") {
		flags["url-template"] = opts.urlTemplate
	}
	if changed("extensions") {
		flags["extensions"] = opts.extensions
	}
	if changed("sweep-staging") {
		flags["sweep-staging"] = opts.sweepStaging
	}
	if changed("no-progress") {
		flags["progress"] = !opts.noProgress
	}
	if changed("no-color") {
		flags["no-color"] = opts.noColor
	}
	if changed("log-level") {
		flags["log-level"] = opts.logLevel
	}
	if changed("log-file") {
		flags["log-file"] = opts.logFile
	}
	return flags
}

func runHarvest(cmd *cobra.Command, opts *options) error {
	cfg, err := config.Load(opts.configFile, flagMap(cmd, opts))
	if err != nil {
		return err
	}

	ui.SetColorEnabled(!cfg.UI.NoColor && ui.IsTerminal(os.Stdout))
	drawProgress := cfg.UI.Progress && ui.IsTerminal(os.Stderr)
	if drawProgress && cfg.Logging.File == "" && !cmd.Flags().Changed("log-level") && cfg.Logging.Level == "info" {
		// keep the console quiet enough for the progress line
		cfg.Logging.Level = "warn"
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("imgharvest starting")

	policy, err := manifest.ParseHeaderPolicy(cfg.Input.Header)
	if err != nil {
		return err
	}
	entries, err := manifest.ReadFile(cfg.Input.Manifest, policy, log)
	if err != nil {
		return err
	}
	log.InfoWithFields("Manifest loaded", map[string]interface{}{
		"path":    cfg.Input.Manifest,
		"entries": len(entries),
	})

	h, err := harvester.New(cfg, log)
	if err != nil {
		return err
	}

	if cfg.Output.SweepStaging {
		removed, err := h.Storage().SweepStaging()
		if err != nil {
			return err
		}
		if removed > 0 {
			ui.PrintInfo("Staging files removed", fmt.Sprint(removed))
		}
	}

	if drawProgress {
		ui.PrintBanner(os.Stderr)
	}
	progress := ui.NewProgress(os.Stderr, len(entries), drawProgress)
	h.SetProgress(progress)

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary := h.Run(ctx, entries)
	progress.Finish()
	if ctx.Err() != nil {
		ui.PrintWarning("Interrupted, unfinished entries were counted as failed")
	}

	ui.PrintSummary(cmd.OutOrStdout(), summary.Succeeded, summary.Failed, summary.Skipped)
	return nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
