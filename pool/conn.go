package pool

import (
	"context"
	"time"
)

// Conn is a persistent, message oriented backend connection.
//
// Contract:
// - Concurrency: callers use a Conn from one goroutine at a time; Close may
//   be called concurrently with Send or Recv to abort them.
// - Context: Send and Recv return when ctx is done.
// - Open reports false once the connection has failed or been closed.
type Conn interface {
	Send(ctx context.Context, msg []byte) error
	Recv(ctx context.Context) ([]byte, error)
	Close() error
	Open() bool
}

// Dialer opens connections to a backend URL.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, url string) (Conn, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context, url string) (Conn, error) {
	return f(ctx, url)
}

// PooledConn is a connection owned by a Pool.
type PooledConn struct {
	Conn
	pool *Pool

	// lastUsed is guarded by pool.mu.
	lastUsed time.Time
}

// LastUsed returns when the connection was last returned to the pool.
func (c *PooledConn) LastUsed() time.Time {
	c.pool.mu.Lock()
	defer c.pool.mu.Unlock()
	return c.lastUsed
}

// Release returns the connection to its pool.
func (c *PooledConn) Release() {
	c.pool.Release(c)
}

// Terminate closes the connection and removes it from its pool.
func (c *PooledConn) Terminate() {
	c.pool.Terminate(c)
}
