package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTest = errors.New("test error")

func testConfig() Config {
	return Config{
		Enabled:      true,
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       false,
	}
}

func TestRetry_SuccessOnFirstAttempt(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testConfig(), func() error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got: %d", attempts)
	}
}

func TestRetry_SuccessAfterRetries(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testConfig(), func() error {
		attempts++
		if attempts < 3 {
			return errTest
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got: %d", attempts)
	}
}

func TestRetry_MaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testConfig(), func() error {
		attempts++
		return errTest
	})

	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if !errors.Is(err, errTest) {
		t.Errorf("expected wrapped cause, got: %v", err)
	}
	if attempts != 4 {
		t.Errorf("expected initial try plus 3 retries, got: %d", attempts)
	}
}

func TestRetry_DisabledRunsOnce(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return errTest
	})

	if !errors.Is(err, errTest) {
		t.Errorf("expected the raw error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected a single attempt, got: %d", attempts)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, testConfig(), func() error {
		return errTest
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context cancellation, got: %v", err)
	}
}

func TestRetryWithResult(t *testing.T) {
	attempts := 0
	got, err := RetryWithResult(context.Background(), testConfig(), func() (int, error) {
		attempts++
		if attempts < 2 {
			return 0, errTest
		}
		return 42, nil
	})

	if err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
	if got != 42 {
		t.Errorf("expected 42, got: %d", got)
	}
}
