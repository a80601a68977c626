// Package syncqueue drains the priority queue of file change intents
// synccompute produces: a single cooperative worker per client, retrying
// transient failures with backoff, serializing operations on the same
// path, and never letting one item's failure block the rest (spec
// sections 4.5 and 5).
package syncqueue

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/syftbox-sh/syftbox/internal/apierr"
	"github.com/syftbox-sh/syftbox/internal/queue"
	"github.com/syftbox-sh/syftbox/internal/synccompute"
)

// Handler executes one change intent against the transport and local
// disk, returning an error classified by apierr where applicable.
type Handler func(ctx context.Context, item synccompute.FileChangeInfo) error

// Consumer drains a priority queue of FileChangeInfo items with a single
// worker, serializing same-path operations and retrying transient
// failures.
type Consumer struct {
	queue   *queue.PriorityQueue[synccompute.FileChangeInfo]
	locks   *keyedMutex
	handler Handler
	wake    chan struct{}

	maxRetries  int
	baseBackoff time.Duration
}

// MaxQueueDepth bounds the in-memory backlog of unprocessed change
// intents: past this point Enqueue drops the overflow rather than
// growing without limit, which protects a datasite from an OOM if the
// filesystem watcher reports events faster than the single worker can
// drain them (e.g. a script rewriting thousands of files in a loop).
const MaxQueueDepth = 200_000

// New builds a Consumer that calls handler for each dequeued item.
func New(handler Handler) *Consumer {
	return &Consumer{
		queue:       queue.NewBoundedPriorityQueue[synccompute.FileChangeInfo](MaxQueueDepth),
		locks:       newKeyedMutex(),
		handler:     handler,
		wake:        make(chan struct{}, 1),
		maxRetries:  5,
		baseBackoff: 500 * time.Millisecond,
	}
}

// Enqueue adds every change to the queue, ordered by its Priority
// field. Items beyond MaxQueueDepth are dropped and logged rather than
// blocking the caller; the next full reconcile pass will pick them
// back up since the scheduler re-scans the whole tree periodically.
func (c *Consumer) Enqueue(changes []synccompute.FileChangeInfo) {
	for _, ch := range changes {
		if !c.queue.TryEnqueue(ch, int(ch.Priority)) {
			slog.Warn("sync queue at capacity, dropping item", "path", ch.Path, "depth", c.queue.Len())
			continue
		}
	}
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Len reports how many items remain queued.
func (c *Consumer) Len() int {
	return c.queue.Len()
}

// Run drains the queue until ctx is canceled. It never returns an error
// for a single item's failure: that is logged and the item dropped or
// retried per its classification.
func (c *Consumer) Run(ctx context.Context) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wake:
		case <-ticker.C:
		}

		for {
			item, ok := c.queue.Dequeue()
			if !ok {
				break
			}
			c.process(ctx, item)
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}

func (c *Consumer) process(ctx context.Context, item synccompute.FileChangeInfo) {
	unlock := c.locks.Lock(item.Path)
	defer unlock()

	attempt := 0
	for {
		err := c.handler(ctx, item)
		if err == nil {
			return
		}

		if ctx.Err() != nil {
			return
		}

		if !c.isRetryable(err) {
			slog.Warn("sync item terminal failure", "path", item.Path, "kind", item.Kind, "error", err)
			return
		}

		attempt++
		if attempt > c.maxRetries {
			slog.Error("sync item exhausted retries", "path", item.Path, "kind", item.Kind, "error", err)
			return
		}

		backoff := c.baseBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
		slog.Warn("sync item transient failure, retrying", "path", item.Path, "attempt", attempt, "backoff", backoff, "error", err)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
	}
}

// isRetryable classifies an error per spec section 7: transient transport
// failures (timeouts, 5xx, connection reset) retry; PermissionDenied,
// NotFound, and AlreadyExists are terminal for the item (the caller
// translates NotFound-on-pull and AlreadyExists-on-create into a
// different verdict before they ever reach here, so seeing them here
// means they are truly terminal).
func (c *Consumer) isRetryable(err error) bool {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorKind {
		case apierr.PermissionDenied, apierr.NotFound, apierr.AlreadyExists, apierr.BadRequest:
			return false
		case apierr.HashMismatch:
			return false
		default:
			return true
		}
	}
	// network-level errors (timeouts, connection reset, DNS failures) have
	// no apierr.Error wrapping and are treated as transient.
	return true
}
