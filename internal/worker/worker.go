// Package worker implements the analysis pipeline execution loop.
package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/brandlens/footprint/internal/analysis"
	"github.com/brandlens/footprint/internal/orchestrator"
)

// Worker consumes queue items and runs the job orchestrator.
type Worker struct {
	queue        analysis.Queue
	orchestrator *orchestrator.Orchestrator
	logger       *zap.Logger
}

// New constructs a Worker.
func New(queue analysis.Queue, orch *orchestrator.Orchestrator, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{queue: queue, orchestrator: orch, logger: logger}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", item.JobID))
		if err := w.orchestrator.Execute(ctx, item.JobID); err != nil {
			w.logger.Error("job execution failed",
				zap.String("job_id", item.JobID),
				zap.Error(err),
			)
		}
	}
}
