// Package kernel implements the runtime embedded by both the client and the
// server process: dual job schedulers, worker pools, an in-process pub/sub
// bus, a database request pipe, a named thread-slot governor, idle/sleep
// detection, and the controller that composes all of it.
package kernel

import (
	"sync"
	"time"
)

// JobStatus is the lifecycle state of a scheduled or dispatched job.
type JobStatus int

const (
	JobPending JobStatus = iota
	JobRunning
	JobDone
	JobCancelled
)

func (s JobStatus) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobRunning:
		return "running"
	case JobDone:
		return "done"
	case JobCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Callable is the work a scheduled job performs.
type Callable func(ctx CallContext)

// CallContext is threaded through every callable so daemons, bus subscribers
// and job bodies can reach the owning controller without a package-level
// singleton (see the "explicit context over global singleton" note in
// SPEC_FULL.md section 9).
type CallContext struct {
	Controller *Controller
}

// Job is a single scheduled unit of work: one-shot, or repeating with a period.
type Job struct {
	mu   sync.Mutex
	due  time.Time
	seq  int64 // insertion sequence, breaks due-time ties
	call Callable

	period              time.Duration // zero for one-shot jobs
	shouldDelayOnWakeup bool
	wakeOnTopic         string
	name                string

	status JobStatus
}

// NewOneShotJob builds a job that fires once at due and is terminal afterward.
func NewOneShotJob(due time.Time, call Callable) *Job {
	return &Job{due: due, call: call, status: JobPending}
}

// NewRepeatingJob builds a job that fires at due and reschedules itself every period.
func NewRepeatingJob(due time.Time, period time.Duration, call Callable) *Job {
	return &Job{due: due, call: call, period: period, status: JobPending}
}

// ShouldDelayOnWakeup makes the reschedule after a just-woke-from-sleep tick add
// the idle detector's wake grace period before the next due instant.
func (j *Job) ShouldDelayOnWakeup() *Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.shouldDelayOnWakeup = true
	return j
}

// WakeOnPubSub subscribes the job to topic; delivery of that topic calls Wake().
// The scheduler that owns the job performs the actual subscription once the job
// is added, since only it knows which bus to use.
func (j *Job) WakeOnPubSub(topic string) *Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.wakeOnTopic = topic
	return j
}

// Named attaches a human-readable label, surfaced by Scheduler.JobSummaries
// for debug/introspection output. Jobs left unnamed report as "unnamed".
func (j *Job) Named(name string) *Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.name = name
	return j
}

// Cancel marks the job cancelled. Idempotent; takes effect at the next pop or
// before the next period, per the scheduler's invariant.
func (j *Job) Cancel() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status == JobDone {
		return
	}
	j.status = JobCancelled
}

// IsCancelled reports whether Cancel has been called.
func (j *Job) IsCancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status == JobCancelled
}

// Status returns the job's current lifecycle state.
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *Job) dueAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.due
}
