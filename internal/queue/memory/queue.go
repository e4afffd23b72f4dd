// Package memory provides the bounded in-process job queue.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/brandlens/footprint/internal/analysis"
)

// ErrClosed is returned by Dequeue once the queue is closed and drained.
var ErrClosed = errors.New("queue closed")

// Queue is a FIFO over a buffered channel. A full buffer applies
// backpressure to Enqueue; both operations honor context cancellation.
type Queue struct {
	ch   chan analysis.QueueItem
	once sync.Once
}

// NewQueue constructs a queue holding up to capacity pending items.
func NewQueue(capacity int) *Queue {
	return &Queue{ch: make(chan analysis.QueueItem, capacity)}
}

// Enqueue blocks until the item is accepted or ctx ends.
func (q *Queue) Enqueue(ctx context.Context, item analysis.QueueItem) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- item:
		return nil
	}
}

// Dequeue blocks for the next item. After Close it keeps returning
// buffered items until the queue is drained, then ErrClosed.
func (q *Queue) Dequeue(ctx context.Context) (analysis.QueueItem, error) {
	select {
	case <-ctx.Done():
		return analysis.QueueItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item, ok := <-q.ch:
		if !ok {
			return analysis.QueueItem{}, ErrClosed
		}
		return item, nil
	}
}

// Len reports the number of items currently buffered.
func (q *Queue) Len() int { return len(q.ch) }

// Close stops accepting new items. Safe to call more than once.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.ch) })
}
