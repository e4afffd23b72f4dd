// Package dispatcher owns the worker pool consuming the job queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/brandlens/footprint/internal/analysis"
	"github.com/brandlens/footprint/internal/worker"
)

// Dispatcher accepts jobs for the queue and runs the worker pool that
// drains it.
type Dispatcher struct {
	queue   analysis.Queue
	workers []*worker.Worker
}

// New creates a Dispatcher over queue and workers.
func New(queue analysis.Queue, workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{queue: queue, workers: workers}
}

// Run starts every worker and blocks until ctx is canceled and all of
// them have returned.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(len(d.workers))
	for _, w := range d.workers {
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}
	wg.Wait()
}

// Enqueue hands a job to the queue, blocking while it is full.
func (d *Dispatcher) Enqueue(ctx context.Context, item analysis.QueueItem) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
