package kernel

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_DispatchRunsTask(t *testing.T) {
	p := NewWorkerPool("test", 4)
	defer p.Shutdown()

	done := make(chan struct{})
	p.Dispatch(context.Background(), func(ctx context.Context) {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatched task never ran")
	}
}

func TestWorkerPool_ReusesIdleWorkerInsteadOfSpawning(t *testing.T) {
	p := NewWorkerPool("test", 10)
	defer p.Shutdown()

	var wg sync.WaitGroup
	wg.Add(1)
	p.Dispatch(context.Background(), func(ctx context.Context) {
		defer wg.Done()
	})
	wg.Wait()
	require.Eventually(t, func() bool { return p.Len() == 1 }, time.Second, 5*time.Millisecond)

	wg.Add(1)
	p.Dispatch(context.Background(), func(ctx context.Context) {
		defer wg.Done()
	})
	wg.Wait()

	assert.Equal(t, 1, p.Len(), "an idle worker should be reused rather than spawning a second one")
}

func TestWorkerPool_SoftCapIsRespectedForNonPoolCallers(t *testing.T) {
	p := NewWorkerPool("capped", 2)
	defer p.Shutdown()

	var started int32
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Dispatch(context.Background(), func(ctx context.Context) {
				atomic.AddInt32(&started, 1)
				time.Sleep(2 * time.Millisecond)
			})
		}()
	}

	wg.Wait()
	assert.LessOrEqual(t, p.Len(), 2, "pool should not spawn past its soft cap for non-worker callers")
	assert.Equal(t, int32(5), atomic.LoadInt32(&started))
}

func TestWorkerPool_LongRunningPoolHasNoCap(t *testing.T) {
	p := NewWorkerPool("long_running", 0)
	defer p.Shutdown()

	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Dispatch(context.Background(), func(ctx context.Context) {
				<-release
			})
		}()
	}

	require.Eventually(t, func() bool { return p.Len() == 8 }, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()
}

func TestWorkerPool_PanicInTaskDoesNotKillWorker(t *testing.T) {
	p := NewWorkerPool("recover-test", 2)
	defer p.Shutdown()

	var wg sync.WaitGroup
	wg.Add(1)
	p.Dispatch(context.Background(), func(ctx context.Context) {
		defer wg.Done()
		panic("boom")
	})
	wg.Wait()

	require.Eventually(t, func() bool { return p.Len() == 1 }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	p.Dispatch(context.Background(), func(ctx context.Context) {
		close(done)
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker should survive a panicking task and keep serving new work")
	}
}

func TestWorkerPool_StatusBuckets(t *testing.T) {
	p := NewWorkerPool("status-test", 0)
	defer p.Shutdown()
	assert.Equal(t, BusyIdle, p.Status())
}

func TestWorkerPool_WorkerSummariesReportsPoolNameAndIdleState(t *testing.T) {
	p := NewWorkerPool("snapshot-test", 4)
	defer p.Shutdown()

	var wg sync.WaitGroup
	wg.Add(1)
	p.Dispatch(context.Background(), func(ctx context.Context) {
		defer wg.Done()
	})
	wg.Wait()

	require.Eventually(t, func() bool { return p.Len() == 1 }, time.Second, 5*time.Millisecond)

	summaries := p.WorkerSummaries()
	require.Len(t, summaries, 1)
	assert.Equal(t, "snapshot-test", summaries[0].Pool)
	assert.GreaterOrEqual(t, summaries[0].ID, 0)
	assert.Eventually(t, func() bool { return p.WorkerSummaries()[0].Idle }, time.Second, 5*time.Millisecond)
}
