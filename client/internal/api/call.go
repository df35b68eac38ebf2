package api

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

var ErrAlreadyExecuted = errors.New("api: call already executed")

// Result is delivered once on the channel returned by Call.Enqueue.
type Result[T any] struct {
	Value T
	Err   error
}

// Call is a pending request whose response decodes into T. Creating a call does
// no I/O; it runs on Execute or Enqueue, at most once.
type Call[T any] struct {
	client *Client
	req    Request

	mu       sync.Mutex
	executed bool
	canceled bool
	cancel   context.CancelFunc
}

func newCall[T any](c *Client, req Request) *Call[T] {
	return &Call[T]{client: c, req: req}
}

// Request returns a copy of the request descriptor.
func (c *Call[T]) Request() Request {
	r := c.req
	r.Query = append([]Param(nil), c.req.Query...)
	return r
}

// Clone returns a new, unexecuted call for the same request.
func (c *Call[T]) Clone() *Call[T] {
	return newCall[T](c.client, c.Request())
}

// IsExecuted reports whether Execute or Enqueue has been called.
func (c *Call[T]) IsExecuted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.executed
}

// IsCanceled reports whether Cancel has been called.
func (c *Call[T]) IsCanceled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canceled
}

// Cancel aborts the call. Safe to call before, during or after execution.
func (c *Call[T]) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.canceled = true
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Call[T]) start(parent context.Context) (context.Context, context.CancelFunc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.executed {
		return nil, nil, ErrAlreadyExecuted
	}
	c.executed = true
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	if c.canceled {
		cancel()
	}
	return ctx, cancel, nil
}

func (c *Call[T]) run(ctx context.Context) (T, error) {
	var out T
	if err := c.client.Do(ctx, c.req, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Execute runs the call on the calling goroutine.
func (c *Call[T]) Execute(ctx context.Context) (T, error) {
	ctx, cancel, err := c.start(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	defer cancel()
	return c.run(ctx)
}

// Enqueue runs the call on the client's dispatcher and returns at once, even
// when every worker is busy. The returned channel receives exactly one Result
// and is never closed.
func (c *Call[T]) Enqueue(ctx context.Context) <-chan Result[T] {
	out := make(chan Result[T], 1)
	ctx, cancel, err := c.start(ctx)
	if err != nil {
		out <- Result[T]{Err: err}
		return out
	}
	task := func() {
		defer cancel()
		v, err := c.run(ctx)
		out <- Result[T]{Value: v, Err: err}
	}
	c.client.dispatch(task, func(err error) {
		cancel()
		out <- Result[T]{Err: errors.Wrapf(err, "dispatch %s", c.req)}
	})
	return out
}
