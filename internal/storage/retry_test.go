package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicyRetriesTransientErrors(t *testing.T) {
	p := RetryPolicy{Attempts: 3, Delay: time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &TransientError{Op: "select", Err: errors.New("connection reset by peer")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryPolicyStopsOnPermanentError(t *testing.T) {
	p := RetryPolicy{Attempts: 3, Delay: time.Millisecond}
	permanent := errors.New("duplicate key value violates unique constraint")

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("permanent errors must not be retried, got %d calls", calls)
	}
}

func TestRetryPolicyGivesUpAfterAttempts(t *testing.T) {
	var retried []int
	p := RetryPolicy{
		Attempts: 3,
		Delay:    time.Millisecond,
		OnRetry:  func(attempt int, err error) { retried = append(retried, attempt) },
	}

	err := p.Do(context.Background(), func(ctx context.Context) error {
		return &TransientError{Op: "update", Err: errors.New("fetch failed")}
	})
	if !IsTransient(err) {
		t.Fatalf("expected the last transient error, got %v", err)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Errorf("expected OnRetry for attempts 1 and 2, got %v", retried)
	}
}

func TestRetryPolicyHonoursContext(t *testing.T) {
	p := RetryPolicy{Attempts: 3, Delay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	err := p.Do(ctx, func(ctx context.Context) error {
		cancel()
		return &TransientError{Op: "insert", Err: errors.New("socket hang up")}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
