package api

import (
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
)

// Dispatcher is the bounded worker pool behind Call.Enqueue.
type Dispatcher struct {
	pool *ants.Pool
}

// NewDispatcher starts a pool of size workers. Submit blocks while every worker
// is busy; Call.Enqueue does that waiting off the caller's goroutine.
func NewDispatcher(size int) (*Dispatcher, error) {
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, errors.Wrap(err, "create dispatcher")
	}
	return &Dispatcher{pool: pool}, nil
}

// Submit runs task on a pooled worker.
func (d *Dispatcher) Submit(task func()) error {
	return d.pool.Submit(task)
}

// Running is the number of calls currently executing.
func (d *Dispatcher) Running() int { return d.pool.Running() }

// Cap is the pool size.
func (d *Dispatcher) Cap() int { return d.pool.Cap() }

// Release stops the workers. Later submissions fail with ants.ErrPoolClosed.
func (d *Dispatcher) Release() { d.pool.Release() }
