// Package pool maintains a bounded set of database sessions. Sessions are
// dialed lazily, reused after release, and replaced lazily after a discard.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tsforge/iotdb-mcp/internal/driver"
)

var (
	// ErrExhausted is returned when no session becomes free within the
	// configured wait timeout.
	ErrExhausted = errors.New("connection pool exhausted")

	// ErrConnectFailed is returned when dialing a new session keeps failing
	// after the configured retries.
	ErrConnectFailed = errors.New("database connection failed")

	// ErrClosed is returned by Acquire after Close.
	ErrClosed = errors.New("connection pool closed")
)

// Config is the pool's own config type.
type Config struct {
	// MaxSize caps how many sessions may be checked out or idle at once.
	MaxSize int
	// WaitTimeout bounds how long Acquire blocks for a free slot. Zero
	// means wait until the context is done.
	WaitTimeout time.Duration
	// MaxRetry is how many extra dial attempts follow a failed one.
	MaxRetry int
	// DialTimeout bounds each individual dial attempt. Zero means no
	// per-attempt bound beyond the caller's context.
	DialTimeout time.Duration
}

// Pool hands out sessions dialed by a driver.Factory. Each session is owned
// by exactly one caller between Acquire and Release/Discard. Safe for
// concurrent use.
type Pool struct {
	factory driver.Factory
	config  Config

	// semaphore caps checked-out plus dialing sessions; send acquires a
	// slot, receive frees it.
	semaphore chan struct{}

	mu     sync.Mutex
	idle   []driver.Session
	closed bool
}

// New creates a Pool. Sessions are dialed on demand, never ahead of it.
// Panics when MaxSize is not positive.
func New(factory driver.Factory, config Config) *Pool {
	if config.MaxSize <= 0 {
		panic(fmt.Sprintf("pool: max size must be > 0, got %d", config.MaxSize))
	}
	return &Pool{
		factory:   factory,
		config:    config,
		semaphore: make(chan struct{}, config.MaxSize),
	}
}

// Acquire returns a session for the caller's exclusive use. It blocks while
// all slots are busy, up to WaitTimeout, then fails with ErrExhausted. A
// slot without an idle session triggers a dial; dial failures after the
// configured retries surface as ErrConnectFailed with the slot returned.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	// 1. Claim a slot, or give up after WaitTimeout.
	var timeoutC <-chan time.Time
	if p.config.WaitTimeout > 0 {
		timer := time.NewTimer(p.config.WaitTimeout)
		defer timer.Stop()
		timeoutC = timer.C
	}
	select {
	case p.semaphore <- struct{}{}:
	case <-timeoutC:
		return nil, fmt.Errorf("%w: all %d sessions busy after waiting %s",
			ErrExhausted, p.config.MaxSize, p.config.WaitTimeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for a session slot: %w", ctx.Err())
	}

	// 2. Reuse an idle session when one exists.
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.semaphore
		return nil, ErrClosed
	}
	if n := len(p.idle); n > 0 {
		sess := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return &Conn{pool: p, sess: sess}, nil
	}
	p.mu.Unlock()

	// 3. Dial a fresh session for the claimed slot.
	sess, err := p.dial(ctx)
	if err != nil {
		<-p.semaphore
		return nil, err
	}
	return &Conn{pool: p, sess: sess}, nil
}

// dial opens one session, retrying up to MaxRetry extra attempts.
func (p *Pool) dial(ctx context.Context) (driver.Session, error) {
	attempts := 1 + p.config.MaxRetry
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		dialCtx := ctx
		var cancel context.CancelFunc
		if p.config.DialTimeout > 0 {
			dialCtx, cancel = context.WithTimeout(ctx, p.config.DialTimeout)
		}
		sess, err := p.factory.Dial(dialCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return sess, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrConnectFailed, attempts, lastErr)
}

// Ping acquires and immediately releases a session, dialing one if needed.
func (p *Pool) Ping(ctx context.Context) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}

// Stats reports how many sessions sit idle and how many slots are checked
// out. Idle sessions do not hold slots; only checked-out ones do.
func (p *Pool) Stats() (idle, busy int) {
	p.mu.Lock()
	idle = len(p.idle)
	p.mu.Unlock()
	return idle, len(p.semaphore)
}

// Close marks the pool closed and closes every idle session. Sessions still
// checked out are closed as their holders release or discard them. Returns
// the first close error encountered.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	var firstErr error
	for _, sess := range idle {
		if err := sess.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Conn is a pooled session checked out by exactly one caller. Exactly one
// of Release or Discard takes effect; later calls are no-ops, so a deferred
// Release after an explicit Discard is harmless.
type Conn struct {
	pool *Pool
	sess driver.Session
	once sync.Once
}

// Session returns the underlying database session.
func (c *Conn) Session() driver.Session {
	return c.sess
}

// Release returns a healthy session to the pool's free set.
func (c *Conn) Release() {
	c.once.Do(func() {
		p := c.pool
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			c.sess.Close()
		} else {
			p.idle = append(p.idle, c.sess)
			p.mu.Unlock()
		}
		<-p.semaphore
	})
}

// Discard closes the session instead of returning it, freeing its slot for
// a lazily dialed replacement. Use it when the session may be broken.
func (c *Conn) Discard() {
	c.once.Do(func() {
		c.sess.Close()
		<-c.pool.semaphore
	})
}
