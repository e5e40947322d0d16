package harvester

import (
	"context"
	"sync"
	"time"

	"imgharvest/internal/downloader"
	"imgharvest/pkg/config"
	"imgharvest/pkg/fetch"
	"imgharvest/pkg/logger"
	"imgharvest/pkg/manifest"
	"imgharvest/pkg/resolver"
	"imgharvest/pkg/sequence"
	"imgharvest/pkg/storage"
)

// Summary is the outcome of a run. Skipped entries are neither succeeded nor failed.
type Summary struct {
	Succeeded int
	Failed    int
	Skipped   int
	Duration  time.Duration
}

// Total returns the number of entries that were dispatched
func (s Summary) Total() int {
	return s.Succeeded + s.Failed
}

// Harvester orchestrates one run over a manifest
type Harvester struct {
	config      *config.Config
	store       *storage.Manager
	allocator   *sequence.Allocator
	newResolver downloader.ResolverFactory
	progress    ProgressReporter
	logger      logger.Logger
}

// New creates a harvester writing into cfg.Output.Directory
func New(cfg *config.Config, log logger.Logger) (*Harvester, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	store, err := storage.NewManager(cfg.Output.Directory, cfg.Output.Quality, log)
	if err != nil {
		return nil, err
	}

	h := &Harvester{
		config:    cfg,
		store:     store,
		allocator: sequence.NewAllocator(),
		progress:  nopProgress{},
		logger:    log,
	}
	h.newResolver = h.workerResolver
	return h, nil
}

// workerResolver gives each worker its own fetch client over the shared store.
// The client's idle connections are closed when the worker exits.
func (h *Harvester) workerResolver(workerID int) (downloader.Resolver, func()) {
	log := h.logger.WithField("worker_id", workerID)
	client := fetch.NewClient(fetch.OptionsFromConfig(&h.config.Download), log)
	return resolver.New(client, h.store, resolver.Options{
		URLTemplate: h.config.Download.URLTemplate,
		Extensions:  h.config.Download.Extensions,
	}, log), client.CloseIdleConnections
}

// SetProgress sets the reporter notified as entries complete
func (h *Harvester) SetProgress(p ProgressReporter) {
	if p == nil {
		p = nopProgress{}
	}
	h.progress = p
}

// Storage returns the storage manager backing the output directory
func (h *Harvester) Storage() *storage.Manager {
	return h.store
}

// Allocator returns the ordinal allocator shared by every worker
func (h *Harvester) Allocator() *sequence.Allocator {
	return h.allocator
}

// Run processes every entry and blocks until all dispatched tasks finish.
// Per-entry failures are logged and counted, never returned.
func (h *Harvester) Run(ctx context.Context, entries []manifest.Entry) Summary {
	start := time.Now()

	pool := downloader.NewWorkerPool(ctx, h.config.Download.Workers, h.newResolver, h.allocator, h.logger)

	logger.LogComponentStart(h.logger, "harvester", map[string]interface{}{
		"entries":    len(entries),
		"workers":    pool.GetActiveWorkers(),
		"output_dir": h.store.GetOutputDir(),
	})

	pool.Start()

	var succeeded, failed int
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for result := range pool.Results() {
			if result.Success {
				succeeded++
			} else {
				failed++
			}
			h.progress.Advance(result.Success)
		}
	}()

	skipped, rejected := 0, 0
	for _, entry := range entries {
		assetID, err := manifest.ExtractAssetID(entry.Locator)
		if err != nil {
			skipped++
			h.progress.Skip()
			h.logger.WarnWithFields("Skipping entry with unparsable locator", map[string]interface{}{
				"line":    entry.Line,
				"locator": entry.Locator,
			})
			continue
		}

		if err := pool.Submit(downloader.Job{Entry: entry, AssetID: assetID}); err != nil {
			rejected++
			h.progress.Advance(false)
			h.logger.WithError(err).WithField("line", entry.Line).Error("Failed to submit job")
		}
	}

	pool.Stop()
	wg.Wait()

	summary := Summary{
		Succeeded: succeeded,
		Failed:    failed + rejected,
		Skipped:   skipped,
		Duration:  time.Since(start),
	}

	logger.LogMetrics(h.logger, "harvest", map[string]interface{}{
		"succeeded":   summary.Succeeded,
		"failed":      summary.Failed,
		"skipped":     summary.Skipped,
		"slugs":       len(h.allocator.Snapshot()),
		"duration_ms": summary.Duration.Milliseconds(),
	})

	return summary
}
