// Package importer merges confirmed analysis results into the target
// store as one atomic, auditable, rollback-capable batch.
package importer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brandlens/footprint/internal/analysis"
	"github.com/brandlens/footprint/internal/metrics"
)

// Engine executes import batches and rollbacks.
type Engine struct {
	jobs       analysis.JobStore
	target     analysis.TargetStore
	batches    analysis.BatchStore
	clock      analysis.Clock
	idGen      analysis.IDGenerator
	publisher  analysis.Publisher
	eventTopic string
	metrics    *metrics.Metrics
	logger     *zap.Logger

	mu      sync.Mutex
	tenants map[string]*sync.Mutex
}

// New constructs an Engine. publisher may be nil; batch events are then
// not emitted.
func New(
	jobs analysis.JobStore,
	target analysis.TargetStore,
	batches analysis.BatchStore,
	clock analysis.Clock,
	idGen analysis.IDGenerator,
	publisher analysis.Publisher,
	eventTopic string,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Engine{
		jobs:       jobs,
		target:     target,
		batches:    batches,
		clock:      clock,
		idGen:      idGen,
		publisher:  publisher,
		eventTopic: eventTopic,
		metrics:    m,
		logger:     logger,
		tenants:    map[string]*sync.Mutex{},
	}
}

// tenantLock serializes import commits per tenant within this process.
// The postgres target store additionally takes an advisory lock so
// multiple processes behave the same way.
func (e *Engine) tenantLock(tenantID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.tenants[tenantID]
	if !ok {
		l = &sync.Mutex{}
		e.tenants[tenantID] = l
	}
	return l
}

// Import merges the selected rows of a finished job into tenantID's
// scope. Duplicate detection runs before any write; the whole batch
// commits atomically or not at all. Per-item duplicate skipping is not a
// failure.
func (e *Engine) Import(ctx context.Context, jobID string, sel analysis.Selection, tenantID string, strategy analysis.ImportStrategy) (analysis.ImportBatch, error) {
	if tenantID == "" {
		return analysis.ImportBatch{}, analysis.InvalidInput("tenant id is required")
	}
	if !strategy.Valid() {
		return analysis.ImportBatch{}, analysis.InvalidInput(fmt.Sprintf("unknown import strategy %q", strategy))
	}
	if sel.Empty() {
		return analysis.ImportBatch{}, analysis.InvalidInput("selection is empty")
	}

	job, err := e.jobs.GetJob(ctx, jobID)
	if err != nil {
		return analysis.ImportBatch{}, err
	}
	if !job.Status.Succeeded() {
		return analysis.ImportBatch{}, analysis.ErrNotReady
	}

	keywords, competitors, opportunities, err := e.loadSelection(ctx, jobID, sel)
	if err != nil {
		return analysis.ImportBatch{}, err
	}

	batchID, err := e.idGen.NewID()
	if err != nil {
		return analysis.ImportBatch{}, fmt.Errorf("batch id: %w", err)
	}
	batch := analysis.ImportBatch{
		ID:       batchID,
		JobID:    jobID,
		TenantID: tenantID,
		Strategy: strategy,
		Status:   analysis.BatchPending,
		Started:  e.clock.Now(),
	}
	if err := e.batches.CreateBatch(ctx, batch); err != nil {
		return analysis.ImportBatch{}, fmt.Errorf("create batch: %w", err)
	}

	lock := e.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	batch.Status = analysis.BatchInProgress
	if err := e.batches.UpdateBatch(ctx, batch); err != nil {
		return analysis.ImportBatch{}, fmt.Errorf("update batch: %w", err)
	}

	txErr := e.target.RunInTenantTx(ctx, tenantID, func(tx analysis.TargetTx) error {
		if err := e.importKeywords(ctx, tx, &batch, keywords); err != nil {
			return err
		}
		if err := e.importCompetitors(ctx, tx, &batch, competitors); err != nil {
			return err
		}
		return e.importOpportunities(ctx, tx, &batch, opportunities)
	})

	now := e.clock.Now()
	batch.Finished = &now
	if txErr != nil {
		batch.Status = analysis.BatchFailed
		batch.Errors = append(batch.Errors, analysis.ImportErrorRecord{Kind: "batch", Message: txErr.Error()})
		if err := e.batches.UpdateBatch(ctx, batch); err != nil {
			e.logger.Error("record failed batch", zap.String("batch_id", batch.ID), zap.Error(err))
		}
		e.metrics.ImportBatches.WithLabelValues(string(analysis.BatchFailed)).Inc()
		return batch, fmt.Errorf("import batch %s: %w", batch.ID, txErr)
	}

	batch.Status = analysis.BatchCompleted
	if err := e.batches.UpdateBatch(ctx, batch); err != nil {
		return batch, fmt.Errorf("complete batch: %w", err)
	}
	imported := batch.Keywords.Imported + batch.Competitors.Imported + batch.Opportunities.Imported
	e.metrics.ImportBatches.WithLabelValues(string(analysis.BatchCompleted)).Inc()
	e.metrics.ImportedRows.Add(float64(imported))
	e.publish(ctx, "import-committed", batch.ID, tenantID)
	e.logger.Info("import batch committed",
		zap.String("batch_id", batch.ID),
		zap.String("tenant_id", tenantID),
		zap.String("strategy", string(strategy)),
		zap.Int("imported", imported),
	)
	return batch, nil
}

// RollbackSummary reports one rollback invocation.
type RollbackSummary struct {
	BatchID     string `json:"batch_id"`
	RowsDeleted int    `json:"rows_deleted"`
	AlreadyDone bool   `json:"already_rolled_back"`
}

// Rollback deletes every target row tagged with batchID and marks the
// batch rolled-back. Rolling back an already-rolled-back batch is a
// no-op, not an error.
func (e *Engine) Rollback(ctx context.Context, batchID string) (RollbackSummary, error) {
	batch, err := e.batches.GetBatch(ctx, batchID)
	if err != nil {
		return RollbackSummary{}, err
	}
	switch batch.Status {
	case analysis.BatchRolledBack:
		return RollbackSummary{BatchID: batchID, AlreadyDone: true}, nil
	case analysis.BatchCompleted:
	default:
		return RollbackSummary{}, analysis.InvalidInput(fmt.Sprintf("batch %s is %s, not completed", batchID, batch.Status))
	}

	lock := e.tenantLock(batch.TenantID)
	lock.Lock()
	defer lock.Unlock()

	deleted := 0
	err = e.target.RunInTenantTx(ctx, batch.TenantID, func(tx analysis.TargetTx) error {
		n, err := tx.DeleteRowsByBatch(ctx, batch.TenantID, batchID)
		if err != nil {
			return err
		}
		deleted = n
		return nil
	})
	if err != nil {
		return RollbackSummary{}, fmt.Errorf("rollback batch %s: %w", batchID, err)
	}

	batch.Status = analysis.BatchRolledBack
	if err := e.batches.UpdateBatch(ctx, batch); err != nil {
		return RollbackSummary{}, fmt.Errorf("mark batch rolled back: %w", err)
	}
	e.metrics.ImportBatches.WithLabelValues(string(analysis.BatchRolledBack)).Inc()
	e.publish(ctx, "import-rolled-back", batchID, batch.TenantID)
	e.logger.Info("import batch rolled back",
		zap.String("batch_id", batchID),
		zap.Int("rows_deleted", deleted),
	)
	return RollbackSummary{BatchID: batchID, RowsDeleted: deleted}, nil
}

func (e *Engine) publish(ctx context.Context, event, batchID, tenantID string) {
	if e.publisher == nil || e.eventTopic == "" {
		return
	}
	payload := map[string]any{
		"event":     event,
		"batch_id":  batchID,
		"tenant_id": tenantID,
		"timestamp": e.clock.Now().Format(time.RFC3339),
	}
	if _, err := e.publisher.Publish(ctx, e.eventTopic, payload); err != nil {
		e.logger.Warn("event publish failed", zap.String("batch_id", batchID), zap.Error(err))
	}
}

func (e *Engine) loadSelection(ctx context.Context, jobID string, sel analysis.Selection) ([]analysis.DiscoveredKeyword, []analysis.IdentifiedCompetitor, []analysis.ContentOpportunity, error) {
	allKeywords, err := e.jobs.ListKeywords(ctx, jobID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list keywords: %w", err)
	}
	allCompetitors, err := e.jobs.ListCompetitors(ctx, jobID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list competitors: %w", err)
	}
	allOpportunities, err := e.jobs.ListOpportunities(ctx, jobID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list opportunities: %w", err)
	}

	keywords := filterByID(allKeywords, sel.KeywordIDs, func(k analysis.DiscoveredKeyword) string { return k.ID })
	competitors := filterByID(allCompetitors, sel.CompetitorIDs, func(c analysis.IdentifiedCompetitor) string { return c.ID })
	opportunities := filterByID(allOpportunities, sel.OpportunityIDs, func(o analysis.ContentOpportunity) string { return o.ID })

	if len(keywords) != len(sel.KeywordIDs) || len(competitors) != len(sel.CompetitorIDs) || len(opportunities) != len(sel.OpportunityIDs) {
		return nil, nil, nil, analysis.InvalidInput("selection references rows that do not belong to the job")
	}
	return keywords, competitors, opportunities, nil
}

func filterByID[T any](rows []T, ids []string, idOf func(T) string) []T {
	if len(ids) == 0 {
		return nil
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]T, 0, len(ids))
	for _, r := range rows {
		if _, ok := want[idOf(r)]; ok {
			out = append(out, r)
		}
	}
	return out
}
