package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultDispatchWait bounds how long the I/O side waits for a handler to
// complete on the main thread before giving up on it.
const DefaultDispatchWait = 5 * time.Second

// ErrMainThreadTimeout is returned when the dispatch wait expires before the
// pump has run the submitted job. The exact text travels back to the bridge
// in the error response.
var ErrMainThreadTimeout = errors.New("Timed out waiting for command execution on main thread")

// ErrMainThreadStopped is returned for submissions made after Close.
var ErrMainThreadStopped = errors.New("editor: main thread pump stopped")

// MainThread serializes handler execution onto a single goroutine, standing
// in for the editor's UI thread. Network goroutines submit closures with Do
// and block on a completion cell; the owning thread drains the queue with
// Run (blocking hosts) or Tick (frame-driven hosts).
type MainThread struct {
	jobs chan job
	quit chan struct{}
	once sync.Once
}

type job struct {
	fn   func() (any, error)
	cell chan outcome
}

type outcome struct {
	result any
	err    error
}

// NewMainThread returns a pump with a bounded submission queue.
func NewMainThread() *MainThread {
	return &MainThread{
		jobs: make(chan job, 64),
		quit: make(chan struct{}),
	}
}

// Do submits fn and waits for its outcome. The wait covers both queueing and
// execution; wait <= 0 selects DefaultDispatchWait. On expiry Do returns
// ErrMainThreadTimeout and the job's eventual outcome, if any, is discarded:
// the completion cell is buffered, so a late-finishing handler never blocks
// the pump.
func (m *MainThread) Do(ctx context.Context, wait time.Duration, fn func() (any, error)) (any, error) {
	if wait <= 0 {
		wait = DefaultDispatchWait
	}
	cell := make(chan outcome, 1)
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case m.jobs <- job{fn: fn, cell: cell}:
	case <-timer.C:
		return nil, ErrMainThreadTimeout
	case <-m.quit:
		return nil, ErrMainThreadStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case out := <-cell:
		return out.result, out.err
	case <-timer.C:
		return nil, ErrMainThreadTimeout
	case <-m.quit:
		return nil, ErrMainThreadStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run drains the queue until ctx is cancelled or Close is called. Intended
// for hosts that dedicate a goroutine to the pump.
func (m *MainThread) Run(ctx context.Context) {
	for {
		select {
		case j := <-m.jobs:
			j.run()
		case <-ctx.Done():
			return
		case <-m.quit:
			return
		}
	}
}

// Tick runs every job queued at the moment of the call and returns the
// number executed. Frame-driven hosts call it once per frame.
func (m *MainThread) Tick() int {
	n := 0
	for {
		select {
		case j := <-m.jobs:
			j.run()
			n++
		default:
			return n
		}
	}
}

// Close stops the pump. Queued jobs are dropped and later submissions fail
// with ErrMainThreadStopped. Close is idempotent.
func (m *MainThread) Close() {
	m.once.Do(func() { close(m.quit) })
}

func (j job) run() {
	defer func() {
		if r := recover(); r != nil {
			j.cell <- outcome{err: fmt.Errorf("handler panic: %v", r)}
		}
	}()
	result, err := j.fn()
	j.cell <- outcome{result: result, err: err}
}
