package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brandlens/footprint/internal/analysis"
	queuememory "github.com/brandlens/footprint/internal/queue/memory"
	"github.com/brandlens/footprint/internal/worker"
)

func TestEnqueueProxiesToQueue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	q := queuememory.NewQueue(1)
	d := New(q, nil)

	require.NoError(t, d.Enqueue(ctx, analysis.QueueItem{JobID: "job-1"}))

	item, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, "job-1", item.JobID)
}

func TestEnqueueWrapsQueueError(t *testing.T) {
	t.Parallel()

	q := queuememory.NewQueue(1)
	d := New(q, nil)

	require.NoError(t, d.Enqueue(context.Background(), analysis.QueueItem{JobID: "a"}))

	timed, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Enqueue(timed, analysis.QueueItem{JobID: "b"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "queue enqueue")
}

func TestRunStopsWorkersOnCancel(t *testing.T) {
	t.Parallel()

	q := queuememory.NewQueue(1)
	workers := []*worker.Worker{
		worker.New(q, nil, nil),
		worker.New(q, nil, nil),
	}
	d := New(q, workers)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop after context cancel")
	}
}
