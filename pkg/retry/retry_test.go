package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "imgharvest/pkg/errors"
	"imgharvest/pkg/logger"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt     int
		expected    time.Duration
		description string
	}{
		{0, 0, "No failed attempt"},
		{1, 100 * time.Millisecond, "First retry"},
		{2, 200 * time.Millisecond, "Second retry"},
		{3, 400 * time.Millisecond, "Third retry"},
		{4, 800 * time.Millisecond, "Fourth retry"},
		{5, 1 * time.Second, "Fifth retry (capped at max)"},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			delay := backoff.NextDelay(test.attempt)
			if delay != test.expected {
				t.Errorf("Expected delay %v, got %v", test.expected, delay)
			}
		})
	}
}

func TestDefaultExponentialBackoffStartsAtHalfSecond(t *testing.T) {
	backoff := DefaultExponentialBackoff()
	if got := backoff.NextDelay(1); got != 500*time.Millisecond {
		t.Errorf("Expected first delay of 500ms, got %v", got)
	}
	if got := backoff.NextDelay(2); got != time.Second {
		t.Errorf("Expected second delay of 1s, got %v", got)
	}
}

func TestExponentialBackoffWithJitter(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	delays := make(map[time.Duration]bool)
	for i := 0; i < 10; i++ {
		delay := backoff.NextDelay(2)
		if delay < 140*time.Millisecond || delay > 260*time.Millisecond {
			t.Errorf("Delay %v outside jitter window", delay)
		}
		delays[delay] = true
	}

	if len(delays) < 2 {
		t.Error("Expected multiple different delays with jitter, but got consistent delays")
	}
}

func transient(code int) error {
	return errs.WithStatus(errs.ErrorTypeTransient, code, "server busy")
}

func TestRetryWithSuccess(t *testing.T) {
	attempts := 0
	op := func(attempt int) error {
		attempts++
		if attempt != attempts {
			t.Errorf("Expected attempt number %d, got %d", attempts, attempt)
		}
		if attempts < 3 {
			return transient(503)
		}
		return nil
	}

	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: 5 * time.Millisecond},
		Logger:      logger.NewNopLogger(),
	}

	err := Do(context.Background(), op, cfg)
	if err != nil {
		t.Errorf("Expected success after retries, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryWithMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	last := transient(502)
	op := func(int) error {
		attempts++
		return last
	}

	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: 5 * time.Millisecond},
		Logger:      logger.NewNopLogger(),
	}

	err := Do(context.Background(), op, cfg)
	if !errors.Is(err, ErrMaxAttemptsExceeded) {
		t.Errorf("Expected ErrMaxAttemptsExceeded, got %v", err)
	}
	if !errors.Is(err, last) {
		t.Errorf("Expected last error to be wrapped, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryWithNonRetryableError(t *testing.T) {
	attempts := 0
	notFound := errs.WithStatus(errs.ErrorTypeNotFound, 404, "no such object")

	op := func(int) error {
		attempts++
		return notFound
	}

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: 5 * time.Millisecond},
		RetryIf:     DefaultRetryIf,
	}

	err := Do(context.Background(), op, cfg)
	if err != notFound {
		t.Errorf("Expected not found error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt (no retry for not found), got %d", attempts)
	}
}

func TestRetryWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	op := func(int) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return transient(500)
	}

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: 50 * time.Millisecond},
	}

	err := Do(ctx, op, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts before cancellation, got %d", attempts)
	}
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient status", transient(429), true},
		{"network", errs.New(errs.ErrorTypeNetwork, "connection reset"), true},
		{"not found", errs.New(errs.ErrorTypeNotFound, "404"), false},
		{"timeout", errs.New(errs.ErrorTypeTimeout, "deadline"), false},
		{"plain error", errors.New("boom"), false},
		{"context canceled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultRetryIf(tt.err); got != tt.want {
				t.Errorf("DefaultRetryIf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	op := func(int) (string, error) {
		attempts++
		if attempts < 2 {
			return "", transient(503)
		}
		return "success", nil
	}

	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: 5 * time.Millisecond},
	}

	result, err := DoWithResult(context.Background(), op, cfg)
	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}
	if result != "success" {
		t.Errorf("Expected 'success', got '%s'", result)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}

func TestRetryHonorsBackoff(t *testing.T) {
	var delays []time.Duration
	cfg := &Config{
		MaxAttempts: 3,
		Backoff: &ExponentialBackoff{
			BaseDelay:  10 * time.Millisecond,
			MaxDelay:   time.Second,
			Multiplier: 2.0,
		},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			delays = append(delays, delay)
		},
	}

	start := time.Now()
	_ = Do(context.Background(), func(int) error { return transient(503) }, cfg)
	elapsed := time.Since(start)

	if len(delays) != 2 {
		t.Fatalf("Expected 2 retry waits, got %d", len(delays))
	}
	if delays[0] != 10*time.Millisecond || delays[1] != 20*time.Millisecond {
		t.Errorf("Unexpected delays %v", delays)
	}
	if elapsed < 30*time.Millisecond {
		t.Errorf("Expected at least 30ms of backoff, took %v", elapsed)
	}
}
