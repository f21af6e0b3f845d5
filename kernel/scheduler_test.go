package kernel

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler() *Scheduler {
	return NewScheduler("test", 5*time.Millisecond, nil, nil)
}

func TestScheduler_RunsJobsInDueOrder(t *testing.T) {
	s := newTestScheduler()
	defer s.Shutdown()

	var mu sync.Mutex
	var order []string

	base := time.Now().Add(10 * time.Millisecond)
	s.AddJob(NewOneShotJob(base.Add(30*time.Millisecond), func(CallContext) {
		mu.Lock()
		order = append(order, "third")
		mu.Unlock()
	}))
	s.AddJob(NewOneShotJob(base, func(CallContext) {
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
	}))
	s.AddJob(NewOneShotJob(base.Add(15*time.Millisecond), func(CallContext) {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
	}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestScheduler_CancelledJobNeverRuns(t *testing.T) {
	s := newTestScheduler()
	defer s.Shutdown()

	var ran int32
	job := NewOneShotJob(time.Now().Add(5*time.Millisecond), func(CallContext) {
		atomic.AddInt32(&ran, 1)
	})
	s.AddJob(job)
	job.Cancel()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&ran))
	assert.Equal(t, JobCancelled, job.Status())
}

func TestScheduler_RepeatingJobFiresMultipleTimes(t *testing.T) {
	s := newTestScheduler()
	defer s.Shutdown()

	var count int32
	job := NewRepeatingJob(time.Now(), 10*time.Millisecond, func(CallContext) {
		atomic.AddInt32(&count, 1)
	})
	s.AddJob(job)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&count) >= 3
	}, time.Second, 5*time.Millisecond)

	job.Cancel()
}

func TestScheduler_WakeRunsBeforeNextTick(t *testing.T) {
	s := NewScheduler("test-wake", time.Hour, nil, nil)
	defer s.Shutdown()

	fired := make(chan struct{}, 1)
	s.AddJob(NewOneShotJob(time.Now(), func(CallContext) {
		fired <- struct{}{}
	}))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("job due immediately should have fired without waiting for the hour-long tick")
	}
}

func TestScheduler_JobSummariesReportsNameAndKind(t *testing.T) {
	s := newTestScheduler()
	defer s.Shutdown()

	s.AddJob(NewRepeatingJob(time.Now().Add(time.Hour), time.Hour, func(CallContext) {}).Named("named_job"))
	s.AddJob(NewOneShotJob(time.Now().Add(time.Hour), func(CallContext) {}))

	summaries := s.JobSummaries()
	require.Len(t, summaries, 2)

	var sawNamed, sawUnnamed bool
	for _, sum := range summaries {
		switch sum.Name {
		case "named_job":
			sawNamed = true
			assert.True(t, sum.Periodic)
		case "unnamed":
			sawUnnamed = true
			assert.False(t, sum.Periodic)
		}
	}
	assert.True(t, sawNamed, "named job should report its own name")
	assert.True(t, sawUnnamed, "job without Named() should report as unnamed")
}

type fakeIdleProvider struct {
	justWoke bool
	grace    time.Duration
}

func (f *fakeIdleProvider) JustWokeFromSleep() bool       { return f.justWoke }
func (f *fakeIdleProvider) WakeGracePeriod() time.Duration { return f.grace }

func TestScheduler_DelaysWakeupSensitiveJobAfterSleep(t *testing.T) {
	s := NewScheduler("test-delay", 5*time.Millisecond, nil, nil)
	defer s.Shutdown()

	idle := &fakeIdleProvider{justWoke: true, grace: 50 * time.Millisecond}
	s.SetIdleProvider(idle)

	var fireCount int32
	job := NewRepeatingJob(time.Now(), 10*time.Millisecond, func(CallContext) {
		atomic.AddInt32(&fireCount, 1)
	}).ShouldDelayOnWakeup()
	s.AddJob(job)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fireCount), "delay-on-wakeup job should not fire while justWoke holds")

	idle.justWoke = false
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&fireCount) >= 1
	}, time.Second, 5*time.Millisecond)

	job.Cancel()
}
