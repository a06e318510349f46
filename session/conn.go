package session

import (
	"context"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Conn is a process-wide, lazily initialized Redis connection holder.
//
// The client is constructed on first acquisition and reused for the process
// lifetime. Parallel first-time acquisitions are collapsed through a
// single-flight group so concurrent requests never open duplicate clients.
// A failed initial PING is swallowed: the client is kept and the next
// operation fails naturally instead of retrying the connection here.
type Conn struct {
	opts *redis.Options

	mu     sync.RWMutex
	client redis.UniversalClient
	sf     singleflight.Group
}

// NewConn prepares a lazy connection holder. No I/O happens until Acquire.
func NewConn(opts *redis.Options) *Conn {
	return &Conn{opts: opts}
}

// Acquire returns the shared client, creating it on first use.
func (c *Conn) Acquire(ctx context.Context) redis.UniversalClient {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client != nil {
		return client
	}

	v, _, _ := c.sf.Do("connect", func() (interface{}, error) {
		c.mu.RLock()
		existing := c.client
		c.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		rdb := redis.NewClient(c.opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			// Keep the possibly-unconnected client; the next command
			// will surface the failure to its caller.
			log.Print("oidcsession: redis connect ping failed, deferring to first operation")
		}

		c.mu.Lock()
		c.client = rdb
		c.mu.Unlock()
		return rdb, nil
	})

	return v.(redis.UniversalClient)
}

// Close shuts the shared client down for clean process termination.
// A Conn that was never acquired closes without I/O.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}
