package memory

import (
	"context"
	"testing"
	"time"

	"github.com/brandlens/footprint/internal/analysis"
)

func TestEnqueueDequeueFIFO(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	q := NewQueue(4)
	for _, id := range []string{"a", "b", "c"} {
		if err := q.Enqueue(ctx, analysis.QueueItem{JobID: id}); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	if got := q.Len(); got != 3 {
		t.Fatalf("got Len %d, want 3", got)
	}
	for _, want := range []string{"a", "b", "c"} {
		item, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("dequeue: %v", err)
		}
		if item.JobID != want {
			t.Fatalf("got %q, want %q", item.JobID, want)
		}
	}
}

func TestDequeueHonorsContext(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Dequeue(ctx); err == nil {
		t.Fatal("expected context error from empty queue")
	}
}

func TestEnqueueHonorsContextWhenFull(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	q := NewQueue(1)
	if err := q.Enqueue(ctx, analysis.QueueItem{JobID: "a"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	timed, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(timed, analysis.QueueItem{JobID: "b"}); err == nil {
		t.Fatal("expected context error from full queue")
	}
}

func TestCloseDrainsThenErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	q := NewQueue(2)
	if err := q.Enqueue(ctx, analysis.QueueItem{JobID: "a"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	q.Close()
	q.Close() // idempotent

	item, err := q.Dequeue(ctx)
	if err != nil || item.JobID != "a" {
		t.Fatalf("expected buffered item after close, got %v %v", item, err)
	}
	if _, err := q.Dequeue(ctx); err == nil {
		t.Fatal("expected error from closed empty queue")
	}
}
