// Package retry provides bounded retry with backoff for transient failures.
//
// Only errors the predicate accepts are retried; by default that means typed
// errors from imgharvest/pkg/errors whose type is transient (a 429/5xx status
// or a dropped connection). Anything else, a 404 in particular, is returned
// after the first attempt so callers can move on without spending the budget.
//
//	cfg := &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     retry.DefaultExponentialBackoff(),
//		RetryIf:     retry.DefaultRetryIf,
//	}
//	data, err := retry.DoWithResult(ctx, func(attempt int) ([]byte, error) {
//		return get(url)
//	}, cfg)
//
// When every attempt fails the returned error wraps both ErrMaxAttemptsExceeded
// and the last attempt's error.
package retry
