package session

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestConnAcquireCollapsesConcurrentInit(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	defer mr.Close()

	conn := NewConn(&redis.Options{Addr: mr.Addr()})
	defer conn.Close()
	ctx := context.Background()

	const workers = 32
	clients := make([]redis.UniversalClient, workers)

	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(workers)
	for i := 0; i < workers; i++ {
		go func(slot int) {
			defer done.Done()
			start.Wait()
			clients[slot] = conn.Acquire(ctx)
		}(i)
	}
	start.Done()
	done.Wait()

	if clients[0] == nil {
		t.Fatal("Acquire returned no client")
	}
	for i, c := range clients {
		if c != clients[0] {
			t.Fatalf("acquisition %d opened a second client", i)
		}
	}
	if err := clients[0].Ping(ctx).Err(); err != nil {
		t.Fatalf("shared client is not connected: %v", err)
	}
}

func TestConnAcquireSwallowsFailedPing(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	addr := mr.Addr()
	mr.Close() // nothing listens on addr from here on

	conn := NewConn(&redis.Options{Addr: addr})
	defer conn.Close()
	ctx := context.Background()

	client := conn.Acquire(ctx)
	if client == nil {
		t.Fatal("a failed initial ping must still yield a client")
	}
	// The connect failure surfaces on the first operation instead.
	if err := client.Ping(ctx).Err(); err == nil {
		t.Fatal("expected the deferred connect failure on the first command")
	}
	// The unconnected client stays cached; no reconnect loop.
	if conn.Acquire(ctx) != client {
		t.Fatal("failed init must not trigger a second client")
	}
}

func TestConnCloseAndReacquire(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	defer mr.Close()

	conn := NewConn(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	if err := conn.Close(); err != nil {
		t.Fatalf("closing a never-acquired conn failed: %v", err)
	}

	first := conn.Acquire(ctx)
	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second := conn.Acquire(ctx)
	if second == first {
		t.Fatal("re-acquire after Close must build a fresh client")
	}
	if err := second.Ping(ctx).Err(); err != nil {
		t.Fatalf("re-acquired client is not connected: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("final Close failed: %v", err)
	}
}
