package kernel

import (
	"context"
	"sync/atomic"

	"github.com/Connor22/hydrus/errors"
	"github.com/Connor22/hydrus/logger"
)

// ErrShutdown is returned by DBQueue methods invoked after Shutdown, and by
// Read/WriteSynchronous calls that were still pending when shutdown began.
var ErrShutdown = errors.New("db queue is shutting down")

// DBCall is a single operation submitted to the database queue. It runs on
// the queue's single goroutine, so every call sees a consistent view of the
// database without further locking.
type DBCall func() (interface{}, error)

type dbRequest struct {
	call   DBCall
	result chan dbResult
}

type dbResult struct {
	value interface{}
	err   error
}

// DBQueue pipes every database access through one goroutine. Read is a
// synchronous request/response round trip. Write is fire-and-forget: it
// enqueues the call and returns immediately, logging any error the call
// produces. WriteSynchronous blocks for the result like Read, for callers
// that need to know a write landed before proceeding.
type DBQueue struct {
	requests chan dbRequest
	stopCh   chan struct{}
	doneCh   chan struct{}
	closed   int32
}

// NewDBQueue starts the queue's single worker goroutine. backlog sizes the
// request channel; a full backlog applies backpressure to Write callers.
func NewDBQueue(backlog int) *DBQueue {
	q := &DBQueue{
		requests: make(chan dbRequest, backlog),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *DBQueue) run() {
	defer close(q.doneCh)
	for {
		select {
		case <-q.stopCh:
			q.drainWithShutdownError()
			return
		case req := <-q.requests:
			q.execute(req)
		}
	}
}

func (q *DBQueue) execute(req dbRequest) {
	v, err := req.call()
	if req.result != nil {
		req.result <- dbResult{value: v, err: err}
	} else if err != nil {
		logger.DBQueueInfow("fire-and-forget write failed", "error", err)
	}
}

func (q *DBQueue) drainWithShutdownError() {
	for {
		select {
		case req := <-q.requests:
			if req.result != nil {
				req.result <- dbResult{err: ErrShutdown}
			}
		default:
			return
		}
	}
}

// Read submits call and blocks for its result. Use for queries.
func (q *DBQueue) Read(ctx context.Context, call DBCall) (interface{}, error) {
	return q.roundTrip(ctx, call)
}

// WriteSynchronous submits call and blocks until it has run, returning any
// error. Use when the caller must know the write has landed before proceeding.
func (q *DBQueue) WriteSynchronous(ctx context.Context, call DBCall) error {
	_, err := q.roundTrip(ctx, call)
	return err
}

// Write submits call without waiting for it to run. Errors are logged, not
// returned, since there is no caller left to hand them to.
func (q *DBQueue) Write(call DBCall) {
	if atomic.LoadInt32(&q.closed) == 1 {
		logger.DBQueueInfow("write dropped after shutdown")
		return
	}
	select {
	case q.requests <- dbRequest{call: call}:
	case <-q.stopCh:
		logger.DBQueueInfow("write dropped after shutdown")
	}
}

func (q *DBQueue) roundTrip(ctx context.Context, call DBCall) (interface{}, error) {
	if atomic.LoadInt32(&q.closed) == 1 {
		return nil, ErrShutdown
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := make(chan dbResult, 1)
	select {
	case q.requests <- dbRequest{call: call, result: result}:
	case <-q.stopCh:
		return nil, ErrShutdown
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-result:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown stops accepting new requests, drains the backlog with
// ErrShutdown for every still-pending result channel, then returns once the
// worker goroutine has exited.
func (q *DBQueue) Shutdown() {
	if !atomic.CompareAndSwapInt32(&q.closed, 0, 1) {
		return
	}
	close(q.stopCh)
	<-q.doneCh
	logger.KernelCloseInfow("db queue shutdown complete")
}
