package pgasync

import (
	"context"
	"time"
)

const defaultCloseTimeout = 5 * time.Second

// job is one queued unit of work.
type job struct {
	ctx context.Context
	op  string
	// run executes against the driver.
	run func(ctx context.Context, drv Driver) error
	// complete resolves the job's future with whatever run produced and err.
	// It is called exactly once, whether or not run was.
	complete func(err error)
}

// submit queues fn on c and returns the future it will resolve. fn may be
// called with a nil Driver only for the "reconnect" operation.
func submit[T any](c *Conn, ctx context.Context, op string, fn func(context.Context, Driver) (T, error)) *Future[T] {
	f := newFuture[T]()
	var val T
	j := &job{
		ctx: ctx,
		op:  op,
		run: func(ctx context.Context, drv Driver) error {
			var err error
			val, err = fn(ctx, drv)
			return err
		},
		complete: func(err error) {
			f.resolve(val, err)
		},
	}
	if !c.enqueue(j) {
		return failedFuture[T](ErrClosed)
	}
	return f
}

func (c *Conn) enqueue(j *job) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	c.queue = append(c.queue, j)
	c.metrics.enqueued()
	select {
	case c.wake <- struct{}{}:
	default:
	}
	return true
}

func (c *Conn) dequeue() *job {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) == 0 {
		return nil
	}
	j := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	c.metrics.dequeued(1)
	return j
}

func (c *Conn) failPending(err error) {
	c.mu.Lock()
	pending := c.queue
	c.queue = nil
	c.metrics.dequeued(len(pending))
	c.mu.Unlock()

	for _, j := range pending {
		j.complete(err)
		c.metrics.observe(j.op, 0, err)
	}
}

// loop is the connection's reactor: it runs queued jobs one at a time until
// quit is closed.
func (c *Conn) loop(wake <-chan struct{}, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-quit:
			c.shutdown()
			return
		case <-wake:
		}

		for {
			select {
			case <-quit:
				c.shutdown()
				return
			default:
			}

			j := c.dequeue()
			if j == nil {
				break
			}
			c.execute(j)
		}
	}
}

// shutdown fails queued work and closes the driver. It runs on the loop
// goroutine, so no operation can be using the driver concurrently.
func (c *Conn) shutdown() {
	c.failPending(ErrClosed)

	ctx, cancel := context.WithTimeout(context.Background(), defaultCloseTimeout)
	defer cancel()
	err := c.closeDriver(ctx)

	c.mu.Lock()
	c.closeErr = err
	c.mu.Unlock()
}

func (c *Conn) execute(j *job) {
	if err := j.ctx.Err(); err != nil {
		j.complete(err)
		c.metrics.observe(j.op, 0, err)
		return
	}

	drv := c.driver()
	if drv == nil && j.op != "reconnect" {
		j.complete(ErrDisconnected)
		c.metrics.observe(j.op, 0, ErrDisconnected)
		return
	}

	c.busy.Store(true)
	start := time.Now()
	err := j.run(j.ctx, drv)
	elapsed := time.Since(start)
	c.busy.Store(false)

	c.metrics.observe(j.op, elapsed, err)
	if err != nil {
		c.logger.DebugContext(j.ctx, "pgasync: operation failed", "op", j.op, "err", err)
	}
	j.complete(err)
}
