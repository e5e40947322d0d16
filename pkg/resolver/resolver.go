// Package resolver tries each candidate source format for an asset until one
// downloads and converts successfully.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"imgharvest/pkg/config"
	errs "imgharvest/pkg/errors"
	"imgharvest/pkg/logger"
)

// DefaultExtensions is the format fallback order
var DefaultExtensions = []string{"jpeg", "jpg", "png", "webp"}

// Fetcher downloads the body at a URL
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Materializer stages raw downloads and publishes converted files
type Materializer interface {
	FinalPath(slug string, ordinal int) string
	StageDownload(assetID, ext string, data []byte) (string, error)
	ConvertAndPublish(sourceFile, finalPath string) error
}

// Options configures URL construction and fallback order
type Options struct {
	URLTemplate string
	Extensions  []string
}

// Resolver runs the format fallback chain for one asset at a time. It is
// safe for concurrent use when its Fetcher and Materializer are.
type Resolver struct {
	fetcher Fetcher
	store   Materializer
	tmpl    string
	exts    []string
	logger  logger.Logger
}

// New creates a resolver
func New(fetcher Fetcher, store Materializer, opts Options, log logger.Logger) *Resolver {
	if opts.URLTemplate == "" {
		opts.URLTemplate = config.DefaultURLTemplate
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Resolver{
		fetcher: fetcher,
		store:   store,
		tmpl:    opts.URLTemplate,
		exts:    opts.Extensions,
		logger:  log,
	}
}

// BuildURL fills the {id} and {ext} placeholders of tmpl
func BuildURL(tmpl, assetID, ext string) string {
	return strings.NewReplacer("{id}", assetID, "{ext}", ext).Replace(tmpl)
}

// Resolve tries every extension in order and publishes the first one that
// converts. It returns false when every extension failed; the error then joins
// the per-attempt failures and is meant for logging only.
func (r *Resolver) Resolve(ctx context.Context, assetID, slug string, ordinal int) (bool, error) {
	finalPath := r.store.FinalPath(slug, ordinal)
	var attemptErrs []error

	for _, ext := range r.exts {
		if err := ctx.Err(); err != nil {
			attemptErrs = append(attemptErrs, errs.Wrap(errs.ErrorTypeCanceled, err, "resolve "+assetID))
			return false, errors.Join(attemptErrs...)
		}

		err := r.attempt(ctx, assetID, ext, finalPath)
		if err == nil {
			r.logger.DebugWithFields("asset resolved", map[string]interface{}{
				"asset_id":  assetID,
				"extension": ext,
				"path":      finalPath,
			})
			return true, nil
		}

		r.logger.DebugWithFields("extension failed", map[string]interface{}{
			"asset_id":   assetID,
			"extension":  ext,
			"error_type": string(errs.TypeOf(err)),
			"error":      err,
		})
		attemptErrs = append(attemptErrs, fmt.Errorf("%s: %w", ext, err))
	}

	return false, errors.Join(attemptErrs...)
}

// attempt fetches and publishes a single extension. The staging download is
// removed whatever the outcome.
func (r *Resolver) attempt(ctx context.Context, assetID, ext, finalPath string) error {
	data, err := r.fetcher.Fetch(ctx, BuildURL(r.tmpl, assetID, ext))
	if err != nil {
		return err
	}

	staged, err := r.store.StageDownload(assetID, ext, data)
	if err != nil {
		return err
	}
	defer os.Remove(staged)

	return r.store.ConvertAndPublish(staged, finalPath)
}
