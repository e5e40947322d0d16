// Package harvester runs a manifest through the download pipeline.
//
// Every entry whose locator yields an asset id becomes one task on a bounded
// worker pool. A task normalizes the label to a slug, takes the slug's next
// ordinal and resolves the asset into {output}/{slug}_{ordinal}.jpg. Run
// returns only after every task has finished; a failed task still consumes
// its ordinal.
//
// Basic usage:
//
//	h, err := harvester.New(cfg, log)
//	if err != nil {
//	    return err
//	}
//	summary := h.Run(ctx, entries)
//	fmt.Printf("Done. Saved: %d, failed: %d\n", summary.Succeeded, summary.Failed)
package harvester
