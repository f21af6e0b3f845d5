package kernel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadSlots_UnknownKindIsUnrestricted(t *testing.T) {
	ts := NewThreadSlots(map[string]int{"file_import": 1})
	for i := 0; i < 100; i++ {
		require.NoError(t, ts.Acquire(context.Background(), "some_unconfigured_kind"))
	}
	cap, limited := ts.Capacity("some_unconfigured_kind")
	assert.False(t, limited)
	assert.Zero(t, cap)
}

func TestThreadSlots_BlocksAtCapacity(t *testing.T) {
	ts := NewThreadSlots(map[string]int{"thumbnail": 1})

	require.NoError(t, ts.Acquire(context.Background(), "thumbnail"))
	assert.Equal(t, 1, ts.InUse("thumbnail"))

	acquired := make(chan struct{})
	go func() {
		_ = ts.Acquire(context.Background(), "thumbnail")
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should block while capacity is exhausted")
	case <-time.After(20 * time.Millisecond):
	}

	ts.Release("thumbnail")
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire should unblock after release")
	}
}

func TestThreadSlots_AcquireRespectsContextCancellation(t *testing.T) {
	ts := NewThreadSlots(map[string]int{"network_pull": 1})
	require.NoError(t, ts.Acquire(context.Background(), "network_pull"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := ts.Acquire(ctx, "network_pull")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestThreadSlots_ConcurrentAcquireNeverExceedsCapacity(t *testing.T) {
	ts := NewThreadSlots(map[string]int{"file_import": 3})
	var wg sync.WaitGroup
	var mu sync.Mutex
	maxObserved := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, ts.Acquire(context.Background(), "file_import"))
			mu.Lock()
			if n := ts.InUse("file_import"); n > maxObserved {
				maxObserved = n
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			ts.Release("file_import")
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, maxObserved, 3)
}
