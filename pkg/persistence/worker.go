package persistence

import (
	"context"
	"sync"

	"storyqa/pkg/logx"
)

//nolint:gochecknoglobals // package logger
var logger = logx.NewLogger("persistence")

// Request is a fire-and-forget write handed to the persistence worker.
type Request struct {
	Operation string
	Data      any
}

// Operation constants for Request.
const (
	OpSaveRun       = "save_run"
	OpSavePublished = "save_published"
)

// Queue feeds the persistence worker. Sends after Close are dropped, so
// request handlers that outlive a server shutdown cannot panic on it.
type Queue struct {
	mu     sync.RWMutex
	ch     chan *Request
	closed bool
}

// NewQueue returns an open queue buffering up to size requests.
func NewQueue(size int) *Queue {
	return &Queue{ch: make(chan *Request, size)}
}

// Requests is the channel Worker drains.
func (q *Queue) Requests() <-chan *Request {
	return q.ch
}

// Send queues req and reports whether it was accepted. It blocks while the
// buffer is full.
func (q *Queue) Send(req *Request) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	q.ch <- req
	return true
}

// Close stops accepting requests and closes the channel once in-flight
// sends have finished. It is safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// PersistRun queues a run for storage. A nil queue or run is ignored.
func PersistRun(run *Run, q *Queue) {
	if q == nil || run == nil {
		return
	}
	if !q.Send(&Request{Operation: OpSaveRun, Data: run}) {
		logger.Warn("history queue closed, run %s not saved", run.ID)
	}
}

// PersistPublished queues published tests for storage.
func PersistPublished(tests []PublishedTest, q *Queue) {
	if q == nil || len(tests) == 0 {
		return
	}
	if !q.Send(&Request{Operation: OpSavePublished, Data: tests}) {
		logger.Warn("history queue closed, %d published tests not saved", len(tests))
	}
}

// Worker drains requests until the channel closes or ctx ends. Failed
// writes are logged; callers never wait on them.
func (s *Store) Worker(ctx context.Context, requests <-chan *Request) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-requests:
			if !ok {
				return
			}
			s.handle(ctx, req)
		}
	}
}

func (s *Store) handle(ctx context.Context, req *Request) {
	var err error
	switch req.Operation {
	case OpSaveRun:
		run, ok := req.Data.(*Run)
		if !ok {
			s.logger.Error("invalid data for %s: %T", req.Operation, req.Data)
			return
		}
		err = s.SaveRun(ctx, run)
	case OpSavePublished:
		tests, ok := req.Data.([]PublishedTest)
		if !ok {
			s.logger.Error("invalid data for %s: %T", req.Operation, req.Data)
			return
		}
		err = s.SavePublished(ctx, tests)
	default:
		s.logger.Error("unknown persistence operation: %s", req.Operation)
		return
	}
	if err != nil {
		s.logger.Error("%s failed: %v", req.Operation, err)
	}
}
