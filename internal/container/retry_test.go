// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xcross/xcross/internal/testutil/enginetest"
)

func TestRetryWithBackoff_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()
	calls := 0
	err := RetryWithBackoff(t.Context(), 5, time.Millisecond, func(attempt int) (bool, error) {
		calls++
		if attempt < 2 {
			return true, errors.New("transient")
		}
		return false, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryWithBackoff_PermanentErrorStops(t *testing.T) {
	t.Parallel()
	calls := 0
	want := errors.New("permanent")
	err := RetryWithBackoff(t.Context(), 5, time.Millisecond, func(int) (bool, error) {
		calls++
		return false, want
	})
	if !errors.Is(err, want) || calls != 1 {
		t.Fatalf("got err=%v calls=%d", err, calls)
	}
}

func TestRetryWithBackoff_ContextCancelledBetweenRetries(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(t.Context())
	err := RetryWithBackoff(ctx, 5, time.Millisecond, func(attempt int) (bool, error) {
		if attempt == 0 {
			cancel()
			return true, errors.New("transient")
		}
		t.Fatal("should not reach second attempt")
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
}

func TestQueryWithRetry_RetriesExitCode125(t *testing.T) {
	t.Parallel()

	e, recorder := newMockEngine(t, enginetest.Rules{
		{Prefix: []string{"volume", "list"}, Response: enginetest.Response{ExitCode: 125}},
	})
	if _, err := e.VolumeList(t.Context(), "cross-"); err == nil {
		t.Fatal("expected error after retries")
	}
	if n := recorder.Count("volume", "list"); n != queryMaxAttempts {
		t.Errorf("expected %d attempts, got %d", queryMaxAttempts, n)
	}
}
