// Package fetch downloads source images over HTTP.
//
// A Client wraps a pooled http.Transport and the retry policy of
// imgharvest/pkg/retry. Every failure is returned as a typed
// *errors.Error so callers can tell an absent format (not_found) from a
// source that kept failing (transient_exhausted) or stalled (timeout).
//
//	client := fetch.NewClient(fetch.DefaultOptions(), log)
//	data, err := client.Fetch(ctx, "https://example.org/photos/1/medium.jpg")
//	if errs.Is(err, errs.ErrorTypeNotFound) {
//	    // try another format
//	}
package fetch
