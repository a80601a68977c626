package syncqueue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syftbox-sh/syftbox/internal/apierr"
	"github.com/syftbox-sh/syftbox/internal/synccompute"
)

func TestConsumer_ProcessesInPriorityOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string

	c := New(func(ctx context.Context, item synccompute.FileChangeInfo) error {
		mu.Lock()
		order = append(order, item.Path)
		mu.Unlock()
		return nil
	})

	c.Enqueue([]synccompute.FileChangeInfo{
		{Path: "b", Priority: 10},
		{Path: "a", Priority: 1},
		{Path: "c", Priority: 100},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	go c.Run(ctx)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestConsumer_NoConcurrentOpsOnSamePath(t *testing.T) {
	var inFlight int32
	var maxInFlight int32

	c := New(func(ctx context.Context, item synccompute.FileChangeInfo) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			cur := atomic.LoadInt32(&maxInFlight)
			if n <= cur || atomic.CompareAndSwapInt32(&maxInFlight, cur, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return nil
	})

	var items []synccompute.FileChangeInfo
	for i := 0; i < 5; i++ {
		items = append(items, synccompute.FileChangeInfo{Path: "same-path", Priority: int64(i)})
	}
	c.Enqueue(items)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return c.Len() == 0 }, 900*time.Millisecond, 10*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
}

func TestConsumer_TerminalFailureDoesNotBlockOtherItems(t *testing.T) {
	var mu sync.Mutex
	processed := map[string]bool{}

	c := New(func(ctx context.Context, item synccompute.FileChangeInfo) error {
		mu.Lock()
		processed[item.Path] = true
		mu.Unlock()
		if item.Path == "forbidden" {
			return apierr.New(apierr.PermissionDenied, "nope")
		}
		return nil
	})

	c.Enqueue([]synccompute.FileChangeInfo{
		{Path: "forbidden", Priority: 1},
		{Path: "ok", Priority: 2},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	go c.Run(ctx)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return processed["forbidden"] && processed["ok"]
	}, time.Second, 10*time.Millisecond)
}
