package downloader

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	errs "imgharvest/pkg/errors"
	"imgharvest/pkg/logger"
	"imgharvest/pkg/manifest"
	"imgharvest/pkg/sequence"
	"imgharvest/pkg/slug"
)

// Job is one manifest entry whose asset id already parsed
type Job struct {
	Entry   manifest.Entry
	AssetID string
}

// Result represents the outcome of a job
type Result struct {
	Job      Job
	Success  bool
	Error    error
	Duration time.Duration
	Slug     string
	Ordinal  int
}

// Resolver publishes an asset under slug and ordinal
type Resolver interface {
	Resolve(ctx context.Context, assetID, slug string, ordinal int) (bool, error)
}

// ResolverFactory builds the resolver a worker keeps for its whole life.
// Each worker gets its own so connection pools are never shared. The
// returned release func, when non-nil, runs once the worker exits.
type ResolverFactory func(workerID int) (Resolver, func())

// WorkerPool runs jobs on a fixed number of workers. Every submitted job
// produces exactly one Result; in-flight jobs are never abandoned.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	newResolver ResolverFactory
	allocator   *sequence.Allocator
	logger      logger.Logger
}

// NewWorkerPool creates a new worker pool. ctx is handed to every Resolve call.
func NewWorkerPool(
	ctx context.Context,
	numWorkers int,
	newResolver ResolverFactory,
	allocator *sequence.Allocator,
	log logger.Logger,
) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 16
	}
	if allocator == nil {
		allocator = sequence.NewAllocator()
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2), // Buffer size = 2x workers
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		newResolver: newResolver,
		allocator:   allocator,
		logger:      log,
	}
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		resolver, release := wp.newResolver(i)
		wp.wg.Add(1)
		go wp.worker(i, resolver, release)
	}
}

// Stop closes the queue and waits for queued jobs to finish
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)

	wp.logger.Debug("Worker pool stopped")
}

// Submit adds a job to the queue, blocking while the queue is full
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results returns the result channel. It must be drained concurrently with Submit.
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

// worker is the main worker routine
func (wp *WorkerPool) worker(id int, resolver Resolver, release func()) {
	defer wp.wg.Done()
	if release != nil {
		defer release()
	}

	for job := range wp.jobQueue {
		wp.resultQueue <- wp.processJob(job, id, resolver)
	}
}

// processJob normalizes the label, takes the next ordinal and resolves the asset.
// A panic is contained and reported as a failed result.
func (wp *WorkerPool) processJob(job Job, workerID int, resolver Resolver) (result Result) {
	start := time.Now()
	result = Result{Job: job}

	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Error = errs.New(errs.ErrorTypeUnknown, fmt.Sprintf("panic: %v", r))
			result.Duration = time.Since(start)
			wp.logger.ErrorWithFields("Worker recovered from panic", map[string]interface{}{
				"worker_id": workerID,
				"asset_id":  job.AssetID,
				"panic":     fmt.Sprint(r),
				"stack":     string(debug.Stack()),
			})
		}
	}()

	result.Slug = slug.Normalize(job.Entry.Label)
	result.Ordinal = wp.allocator.Next(result.Slug)

	ok, err := resolver.Resolve(wp.ctx, job.AssetID, result.Slug, result.Ordinal)
	result.Success = ok
	result.Duration = time.Since(start)
	if !ok {
		result.Error = err
		wp.logger.WarnWithFields("Asset could not be resolved", map[string]interface{}{
			"worker_id": workerID,
			"asset_id":  job.AssetID,
			"line":      job.Entry.Line,
			"slug":      result.Slug,
			"ordinal":   result.Ordinal,
			"error":     err,
		})
		return result
	}

	wp.logger.DebugWithFields("Worker completed job", map[string]interface{}{
		"worker_id": workerID,
		"asset_id":  job.AssetID,
		"slug":      result.Slug,
		"ordinal":   result.Ordinal,
		"duration":  result.Duration,
	})
	return result
}

// GetActiveWorkers returns the number of workers
func (wp *WorkerPool) GetActiveWorkers() int {
	return wp.numWorkers
}
