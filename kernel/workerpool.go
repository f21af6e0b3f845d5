package kernel

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/Connor22/hydrus/logger"
)

// BusyStatus buckets a pool's current load for health reporting.
type BusyStatus int

const (
	BusyIdle BusyStatus = iota
	BusyLight
	BusyModerate
	BusyHeavy
)

func (b BusyStatus) String() string {
	switch b {
	case BusyIdle:
		return "idle"
	case BusyLight:
		return "light"
	case BusyModerate:
		return "moderate"
	case BusyHeavy:
		return "heavy"
	default:
		return "unknown"
	}
}

// Task is a unit of work dispatched to a pool.
type Task func(ctx context.Context)

type worker struct {
	id   int
	idle int32 // atomic bool
	work chan Task
}

// WorkerPool dispatches tasks either to an already-idle worker, by spawning a
// new one (only when the caller is itself running on this pool, or the pool
// is below its cap), or by picking a random worker when neither applies.
// The short-task pool is soft-capped; the long-running pool passes cap <= 0
// for "unbounded".
type WorkerPool struct {
	name string
	cap  int // <= 0 means unbounded

	mu      sync.Mutex
	workers []*worker
	nextID  int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	onPoolKey poolKeyType
}

type poolKeyType struct{}

// NewWorkerPool constructs a pool. cap <= 0 means no soft cap on the number
// of live workers (used for the long-running pool).
func NewWorkerPool(name string, cap int) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		name:   name,
		cap:    cap,
		ctx:    ctx,
		cancel: cancel,
	}
}

// IsPoolWorker reports whether ctx is running on the given pool, i.e. the
// calling goroutine is itself one of the pool's workers.
func IsPoolWorker(ctx context.Context, p *WorkerPool) bool {
	v := ctx.Value(p.onPoolKey)
	b, ok := v.(bool)
	return ok && b
}

// Dispatch runs task on the pool. Priority: an already-idle worker runs it
// immediately; otherwise a new worker is spawned if the caller is already
// running on this pool (so a task fanning out sub-tasks never deadlocks
// waiting for a free slot) or the pool is still below its cap; otherwise the
// task is handed to a uniformly random existing worker's queue.
func (p *WorkerPool) Dispatch(callerCtx context.Context, task Task) {
	p.mu.Lock()

	for _, w := range p.workers {
		if atomic.CompareAndSwapInt32(&w.idle, 1, 0) {
			p.mu.Unlock()
			w.work <- task
			return
		}
	}

	belowCap := p.cap <= 0 || len(p.workers) < p.cap
	callerIsWorker := IsPoolWorker(callerCtx, p)

	if belowCap || callerIsWorker {
		w := p.spawnLocked()
		p.mu.Unlock()
		w.work <- task
		return
	}

	w := p.workers[rand.Intn(len(p.workers))]
	p.mu.Unlock()
	w.work <- task
}

func (p *WorkerPool) spawnLocked() *worker {
	w := &worker{id: p.nextID, work: make(chan Task, 1), idle: 0}
	p.nextID++
	p.workers = append(p.workers, w)
	p.wg.Add(1)
	go p.runWorker(w)
	logger.ComponentLogger("kernel.worker_pool").Debugw("worker spawned", "pool", p.name, "worker_id", w.id, "count", len(p.workers))
	return w
}

func (p *WorkerPool) runWorker(w *worker) {
	defer p.wg.Done()
	ctx := context.WithValue(p.ctx, p.onPoolKey, true)
	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-w.work:
			if !ok {
				return
			}
			p.runTaskRecovered(ctx, task, w)
			atomic.StoreInt32(&w.idle, 1)
		}
	}
}

// runTaskRecovered runs task and recovers from a panicking task so one
// failing unit of work never takes the whole worker down; recovery is logged
// and the worker lives on to pick up its next task.
func (p *WorkerPool) runTaskRecovered(ctx context.Context, task Task, w *worker) {
	defer func() {
		if r := recover(); r != nil {
			logger.ComponentLogger("kernel.worker_pool").Errorw("task panicked, worker recovered",
				"pool", p.name, "worker_id", w.id, "panic", r)
		}
	}()
	task(ctx)
}

// BusyStatus buckets the pool's current worker count per the health
// thresholds: fewer than 4 is idle, fewer than 10 is light, fewer than 20 is
// moderate, otherwise heavy.
func (p *WorkerPool) Status() BusyStatus {
	p.mu.Lock()
	n := len(p.workers)
	p.mu.Unlock()
	switch {
	case n < 4:
		return BusyIdle
	case n < 10:
		return BusyLight
	case n < 20:
		return BusyModerate
	default:
		return BusyHeavy
	}
}

// Len reports the current live worker count.
func (p *WorkerPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// WorkerSummary is a point-in-time snapshot of one pool worker, for debug
// introspection (kernel.Controller.ThreadsSnapshot).
type WorkerSummary struct {
	Pool string
	ID   int
	Idle bool
}

// WorkerSummaries reports every live worker in the pool.
func (p *WorkerPool) WorkerSummaries() []WorkerSummary {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]WorkerSummary, 0, len(p.workers))
	for _, w := range p.workers {
		out = append(out, WorkerSummary{
			Pool: p.name,
			ID:   w.id,
			Idle: atomic.LoadInt32(&w.idle) == 1,
		})
	}
	return out
}

// Shutdown cancels all worker contexts and waits for every worker to drain.
func (p *WorkerPool) Shutdown() {
	p.cancel()
	p.wg.Wait()
	logger.KernelCloseInfow("worker pool shutdown complete", "pool", p.name)
}
