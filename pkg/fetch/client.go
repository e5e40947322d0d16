package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"imgharvest/pkg/config"
	errs "imgharvest/pkg/errors"
	"imgharvest/pkg/logger"
	"imgharvest/pkg/retry"
)

// Options configures the fetch client.
type Options struct {
	// Timeout bounds a single attempt, body read included.
	// Default: 10s
	Timeout time.Duration

	// MaxAttempts is the number of attempts per URL, the first one included.
	// Default: 3
	MaxAttempts int

	// Backoff is the wait between attempts.
	// Default: 500ms doubling
	Backoff retry.BackoffStrategy

	// MaxIdleConnsPerHost sizes the keep-alive pool.
	// Default: 128
	MaxIdleConnsPerHost int

	// MaxBodyBytes caps the accepted response size.
	// Default: 50 MiB
	MaxBodyBytes int64

	UserAgent string
	Referer   string
}

// DefaultOptions returns options with the pipeline defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:             10 * time.Second,
		MaxAttempts:         3,
		Backoff:             retry.DefaultExponentialBackoff(),
		MaxIdleConnsPerHost: 128,
		MaxBodyBytes:        50 << 20,
		UserAgent:           config.DefaultUserAgent,
		Referer:             config.DefaultReferer,
	}
}

// OptionsFromConfig builds options from the download section of the config.
func OptionsFromConfig(cfg *config.DownloadConfig) Options {
	opts := DefaultOptions()
	if cfg.Timeout > 0 {
		opts.Timeout = cfg.Timeout
	}
	if cfg.RetryAttempts > 0 {
		opts.MaxAttempts = cfg.RetryAttempts
	}
	if cfg.RetryBackoff > 0 {
		opts.Backoff = &retry.ExponentialBackoff{
			BaseDelay:  cfg.RetryBackoff,
			MaxDelay:   10 * time.Second,
			Multiplier: 2.0,
		}
	}
	if cfg.MaxIdleConnsPerHost > 0 {
		opts.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	}
	if cfg.MaxBodyBytes > 0 {
		opts.MaxBodyBytes = cfg.MaxBodyBytes
	}
	opts.UserAgent = cfg.UserAgent
	opts.Referer = cfg.Referer
	return opts
}

// Client performs GET requests with bounded retries. One Client is meant to be
// owned by one worker and reused for every task that worker runs.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	opts       Options
	logger     logger.Logger
	attempts   atomic.Int64
}

// NewClient creates a client with its own pooled transport.
func NewClient(opts Options, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = opts.MaxIdleConnsPerHost
	transport.MaxIdleConns = opts.MaxIdleConnsPerHost * 2
	transport.IdleConnTimeout = 90 * time.Second

	headers := map[string]string{
		"Accept": "image/avif,image/webp,image/png,image/jpeg,*/*;q=0.8",
	}
	if opts.UserAgent != "" {
		headers["User-Agent"] = opts.UserAgent
	}
	if opts.Referer != "" {
		headers["Referer"] = opts.Referer
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		headers: headers,
		opts:    opts,
		logger:  log,
	}
}

// SetHeader sets a custom header for every request
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// Attempts returns the number of HTTP attempts issued so far
func (c *Client) Attempts() int64 {
	return c.attempts.Load()
}

// CloseIdleConnections releases pooled keep-alive connections
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// Fetch downloads url. Transient statuses (429, 500, 502, 503, 504) and dropped
// connections are retried; a non-retryable 4xx comes back at once as a
// not_found error, a slow attempt as a timeout error.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	cfg := &retry.Config{
		MaxAttempts: c.opts.MaxAttempts,
		Backoff:     c.opts.Backoff,
		RetryIf:     retry.DefaultRetryIf,
		Logger:      c.logger,
	}

	data, err := retry.DoWithResult(ctx, func(attempt int) ([]byte, error) {
		return c.get(ctx, url, attempt)
	}, cfg)
	if err == nil {
		return data, nil
	}

	if errors.Is(err, retry.ErrMaxAttemptsExceeded) {
		var last *errs.Error
		code := 0
		if errors.As(err, &last) {
			code = last.Code
		}
		return nil, &errs.Error{
			Type:    errs.ErrorTypeTransientExhausted,
			Message: fmt.Sprintf("%s: gave up after %d attempts", url, c.opts.MaxAttempts),
			Code:    code,
			Err:     err,
		}
	}
	if ctx.Err() != nil && !errs.Is(err, errs.ErrorTypeCanceled) {
		return nil, errs.Wrap(errs.ErrorTypeCanceled, err, url)
	}
	return nil, err
}

// get performs a single attempt
func (c *Client) get(ctx context.Context, url string, attempt int) ([]byte, error) {
	c.attempts.Add(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStatus, err, "create request")
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classify(ctx, err, url)
	}
	defer resp.Body.Close()

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      url,
		"status":   resp.StatusCode,
		"attempt":  attempt,
		"duration": time.Since(start),
	})

	if err := checkStatusCode(resp.StatusCode, url); err != nil {
		// drain a little so the connection can go back to the pool
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodyBytes+1))
	if err != nil {
		return nil, c.classify(ctx, err, url)
	}
	if int64(len(data)) > c.opts.MaxBodyBytes {
		return nil, errs.New(errs.ErrorTypeStatus, fmt.Sprintf("%s: body exceeds %d bytes", url, c.opts.MaxBodyBytes))
	}

	return data, nil
}

// classify maps transport errors onto the error taxonomy
func (c *Client) classify(ctx context.Context, err error, url string) error {
	if ctx.Err() != nil {
		return errs.Wrap(errs.ErrorTypeCanceled, err, url)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return errs.Wrap(errs.ErrorTypeTimeout, err, url)
	}

	return errs.Wrap(errs.ErrorTypeNetwork, err, url)
}

// checkStatusCode returns an appropriate error for non-success status codes
func checkStatusCode(code int, url string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case errs.IsRetryableStatusCode(code):
		return errs.WithStatus(errs.ErrorTypeTransient, code, url)
	case code >= 400 && code < 500:
		return errs.WithStatus(errs.ErrorTypeNotFound, code, url)
	default:
		return errs.WithStatus(errs.ErrorTypeStatus, code, url)
	}
}
