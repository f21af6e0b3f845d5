package kernel

import (
	"container/heap"
	"sync"
	"time"

	"github.com/Connor22/hydrus/logger"
)

// Scheduler runs due jobs on a fixed tick interval, ordered by due time with
// insertion order breaking ties. A process owns two, a fast and a slow one,
// which differ only in tick interval. Callers pick which one a job goes on;
// a job's delay or period does not route it to either.
type Scheduler struct {
	name     string
	interval time.Duration
	pubsub   *PubSub

	mu      sync.Mutex
	heap    jobHeap
	nextSeq int64

	wakeCh chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}

	ctxFn func() CallContext

	idle IdleProvider
}

// IdleProvider is the subset of the idle/sleep detector the scheduler needs
// to honor Job.ShouldDelayOnWakeup. The controller wires the real detector in
// after both are constructed.
type IdleProvider interface {
	JustWokeFromSleep() bool
	WakeGracePeriod() time.Duration
}

// SetIdleProvider wires the idle/sleep detector in. Call once during
// controller construction, before the scheduler sees its first tick with
// delay-flagged jobs.
func (s *Scheduler) SetIdleProvider(p IdleProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idle = p
}

type heapEntry struct {
	job   *Job
	due   time.Time
	seq   int64
	index int
}

type jobHeap []*heapEntry

func (h jobHeap) Len() int { return len(h) }
func (h jobHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}
func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *jobHeap) Push(x interface{}) {
	e := x.(*heapEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// NewScheduler builds a scheduler that ticks every interval. ctxFn supplies
// the CallContext passed to each job's Callable, deferred so the owning
// controller can be constructed after its schedulers.
func NewScheduler(name string, interval time.Duration, pubsub *PubSub, ctxFn func() CallContext) *Scheduler {
	s := &Scheduler{
		name:     name,
		interval: interval,
		pubsub:   pubsub,
		wakeCh:   make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		ctxFn:    ctxFn,
	}
	heap.Init(&s.heap)
	go s.run()
	return s
}

// AddJob inserts job into the schedule. If the job subscribes to a pubsub
// topic via WakeOnPubSub, the scheduler also wires that subscription so
// publishing the topic wakes the job immediately.
func (s *Scheduler) AddJob(job *Job) {
	s.mu.Lock()
	job.seq = s.nextSeq
	s.nextSeq++
	entry := &heapEntry{job: job, due: job.dueAt(), seq: job.seq}
	heap.Push(&s.heap, entry)
	topic := job.wakeOnTopic
	s.mu.Unlock()

	if topic != "" && s.pubsub != nil {
		s.pubsub.Subscribe(topic, func(string, interface{}) {
			s.Wake()
		})
	}
	s.wake()
}

// Wake forces an immediate scheduling pass instead of waiting for the next tick.
func (s *Scheduler) Wake() {
	s.wake()
}

func (s *Scheduler) wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// ClearOutDead removes cancelled and completed one-shot jobs from the heap.
func (s *Scheduler) ClearOutDead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.heap[:0]
	for _, e := range s.heap {
		if e.job.IsCancelled() || (e.job.period == 0 && e.job.Status() == JobDone) {
			continue
		}
		kept = append(kept, e)
	}
	s.heap = kept
	heap.Init(&s.heap)
}

func (s *Scheduler) run() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick()
		case <-s.wakeCh:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	now := time.Now()
	var due []*Job

	s.mu.Lock()
	idle := s.idle
	justWoke := idle != nil && idle.JustWokeFromSleep()
	for s.heap.Len() > 0 && !s.heap[0].due.After(now) {
		entry := heap.Pop(&s.heap).(*heapEntry)
		if entry.job.IsCancelled() {
			continue
		}
		entry.job.mu.Lock()
		delayOnWakeup := entry.job.shouldDelayOnWakeup
		entry.job.mu.Unlock()
		if justWoke && delayOnWakeup {
			grace := idle.WakeGracePeriod()
			delayed := &heapEntry{job: entry.job, due: now.Add(grace), seq: s.nextSeq}
			s.nextSeq++
			heap.Push(&s.heap, delayed)
			continue
		}
		due = append(due, entry.job)
		if entry.job.period > 0 {
			next := entry.due.Add(entry.job.period)
			if next.Before(now) {
				next = now.Add(entry.job.period)
			}
			entry.job.mu.Lock()
			entry.job.due = next
			entry.job.mu.Unlock()
			reseq := &heapEntry{job: entry.job, due: next, seq: s.nextSeq}
			s.nextSeq++
			heap.Push(&s.heap, reseq)
		}
	}
	s.mu.Unlock()

	if len(due) == 0 {
		return
	}

	ctx := CallContext{}
	if s.ctxFn != nil {
		ctx = s.ctxFn()
	}
	for _, job := range due {
		job.mu.Lock()
		if job.status == JobCancelled {
			job.mu.Unlock()
			continue
		}
		job.status = JobRunning
		job.mu.Unlock()

		func(j *Job) {
			defer func() {
				j.mu.Lock()
				if j.period == 0 {
					j.status = JobDone
				} else {
					j.status = JobPending
				}
				j.mu.Unlock()
			}()
			logger.SchedulerDebugw("job firing", "scheduler", s.name)
			j.call(ctx)
		}(job)
	}
}

// Len reports the number of jobs currently in the heap, for health reporting.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heap.Len()
}

// JobSummary is a point-in-time snapshot of one scheduled job, for debug
// introspection (kernel.Controller.DebugScheduledJobs).
type JobSummary struct {
	Name     string
	DueIn    time.Duration
	Status   JobStatus
	Periodic bool
}

// JobSummaries reports every live job in the heap. Order follows the heap's
// internal array, not due time; the root (index 0) is always the soonest due.
func (s *Scheduler) JobSummaries() []JobSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	out := make([]JobSummary, 0, len(s.heap))
	for _, e := range s.heap {
		name := e.job.name
		if name == "" {
			name = "unnamed"
		}
		out = append(out, JobSummary{
			Name:     name,
			DueIn:    e.due.Sub(now),
			Status:   e.job.Status(),
			Periodic: e.job.period > 0,
		})
	}
	return out
}

// Shutdown stops the scheduler's goroutine. Safe to call once.
func (s *Scheduler) Shutdown() {
	select {
	case <-s.stopCh:
		return
	default:
	}
	close(s.stopCh)
	<-s.doneCh
	logger.KernelCloseInfow("scheduler shutdown complete", "scheduler", s.name)
}
