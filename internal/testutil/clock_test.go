// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"sync"
	"testing"
	"time"
)

func TestNewFakeClock_DefaultTime(t *testing.T) {
	t.Parallel()

	clock := NewFakeClock(time.Time{})
	expected := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := clock.Now(); !got.Equal(expected) {
		t.Errorf("NewFakeClock(zero).Now() = %v, want %v", got, expected)
	}
}

func TestFakeClock_AdvanceAndSet(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := NewFakeClock(start)

	clock.Advance(time.Millisecond)
	if got, want := clock.Now(), start.Add(time.Millisecond); !got.Equal(want) {
		t.Errorf("after Advance, Now() = %v, want %v", got, want)
	}

	clock.Set(start)
	if got := clock.Now(); !got.Equal(start) {
		t.Errorf("after Set, Now() = %v, want %v", got, start)
	}
}

func TestFakeClock_ConcurrentAdvance(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := NewFakeClock(start)

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			clock.Advance(time.Millisecond)
			_ = clock.Now()
		})
	}
	wg.Wait()

	if got, want := clock.Now(), start.Add(50*time.Millisecond); !got.Equal(want) {
		t.Errorf("Now() = %v, want %v", got, want)
	}
}
