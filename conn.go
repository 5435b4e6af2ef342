package pgasync

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Conn is a single PostgreSQL connection whose work is executed one operation
// at a time, in submission order, by a dedicated loop goroutine.
//
// A Conn is safe for concurrent use: callers are serialized by its queue.
type Conn struct {
	cfg     Config
	opts    connectOptions
	logger  *slog.Logger
	metrics *metrics

	// lifecycle serializes Close and Reconnect.
	lifecycle sync.Mutex

	mu     sync.Mutex
	drv    Driver
	queue  []*job
	wake   chan struct{}
	quit   chan struct{}
	done   chan struct{}
	closed bool
	// closeErr is the driver close error of the most recently stopped loop.
	closeErr error

	busy atomic.Bool
}

// Open validates cfg, connects, verifies the connection with a ping and
// starts the connection's loop. Connect-path failures are *SafeError values.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	o := collectOptions(opts)

	logger := cfg.Logger
	if logger == nil {
		logger = newDefaultLogger(cfg.LogLevel)
	}

	m, err := newMetrics(o.registerer)
	if err != nil {
		return nil, &SafeError{msg: "pgasync: register metrics failed", cause: err}
	}

	drv, err := connect(ctx, cfg, o, logger)
	if err != nil {
		return nil, err
	}

	c := &Conn{
		cfg:     cfg,
		opts:    o,
		logger:  logger,
		metrics: m,
	}
	c.mu.Lock()
	c.start(drv)
	c.mu.Unlock()

	logger.InfoContext(ctx, "pgasync: connected", "target", cfg.target())
	c.ready()
	return c, nil
}

// start installs drv and launches a fresh loop. c.mu must be held.
func (c *Conn) start(drv Driver) {
	c.drv = drv
	c.closed = false
	c.closeErr = nil
	c.wake = make(chan struct{}, 1)
	c.quit = make(chan struct{})
	c.done = make(chan struct{})
	go c.loop(c.wake, c.quit, c.done)
}

func (c *Conn) ready() {
	if c.cfg.OnReady != nil {
		go c.cfg.OnReady(c)
	}
}

// Busy reports whether an operation is currently executing on the driver.
func (c *Conn) Busy() bool {
	return c.busy.Load()
}

// Closed reports whether Close has been called without a later Reconnect.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close stops the loop and closes the driver connection. Operations still
// queued fail with ErrClosed. An operation already executing is allowed to
// finish; if ctx expires first, Close returns ctx.Err() and the loop closes
// the driver once that operation completes.
//
// Close is idempotent.
func (c *Conn) Close(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	quit, done := c.quit, c.done
	c.mu.Unlock()

	close(quit)

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	err := c.closeErr
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "pgasync: closed", "target", c.cfg.target())
	return err
}

// closeDriver closes and forgets the current driver.
func (c *Conn) closeDriver(ctx context.Context) error {
	c.mu.Lock()
	drv := c.drv
	c.drv = nil
	c.mu.Unlock()

	if drv == nil {
		return nil
	}
	return drv.Close(ctx)
}

// Reconnect closes the driver connection and opens a new one with the same
// configuration. On an open Conn the swap is queued behind work already
// submitted; on a closed Conn a new loop is started.
//
// Reconnect returns ctx.Err() once ctx ends. A queued swap whose ctx has
// ended is skipped; one already dialing finishes in the background.
//
// If the new connection cannot be established the Conn stays open but
// disconnected: later operations fail with ErrDisconnected until a
// Reconnect succeeds.
func (c *Conn) Reconnect(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()

	if closed {
		// The previous loop closes its driver on the way out.
		select {
		case <-c.loopDone():
		case <-ctx.Done():
			return ctx.Err()
		}
		drv, err := connect(ctx, c.cfg, c.opts, c.logger)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.start(drv)
		c.mu.Unlock()
	} else {
		f := submit(c, ctx, "reconnect", func(ctx context.Context, old Driver) (struct{}, error) {
			if old != nil {
				if err := old.Close(ctx); err != nil {
					c.logger.DebugContext(ctx, "pgasync: close before reconnect failed", "err", err)
				}
			}
			drv, err := connect(ctx, c.cfg, c.opts, c.logger)
			c.setDriver(drv)
			return struct{}{}, err
		})
		if _, err := f.Wait(ctx); err != nil {
			return err
		}
	}

	c.logger.InfoContext(ctx, "pgasync: reconnected", "target", c.cfg.target())
	c.ready()
	return nil
}

func (c *Conn) loopDone() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *Conn) setDriver(drv Driver) {
	c.mu.Lock()
	c.drv = drv
	c.mu.Unlock()
}

func (c *Conn) driver() Driver {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drv
}
