package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/brandlens/footprint/internal/analysis"
)

// BatchStore implements analysis.BatchStore on Postgres. Counts and
// error records are stored as jsonb to keep the audit row in one place.
type BatchStore struct {
	db DB
}

// NewBatchStore wraps an open pool.
func NewBatchStore(db DB) (*BatchStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	return &BatchStore{db: db}, nil
}

type batchCounts struct {
	Keywords      analysis.ImportCounts `json:"keywords"`
	Competitors   analysis.ImportCounts `json:"competitors"`
	Opportunities analysis.ImportCounts `json:"opportunities"`
}

func (s *BatchStore) CreateBatch(ctx context.Context, batch analysis.ImportBatch) error {
	counts, errRecords, err := marshalBatch(batch)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO import_batches (
			id, job_id, tenant_id, strategy, counts, errors,
			status, started_at, finished_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);
	`
	_, err = s.db.Exec(ctx, query,
		batch.ID, batch.JobID, batch.TenantID, batch.Strategy, counts, errRecords,
		batch.Status, batch.Started, batch.Finished,
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

func (s *BatchStore) UpdateBatch(ctx context.Context, batch analysis.ImportBatch) error {
	counts, errRecords, err := marshalBatch(batch)
	if err != nil {
		return err
	}
	query := `
		UPDATE import_batches
		SET counts = $1, errors = $2, status = $3, finished_at = $4
		WHERE id = $5;
	`
	tag, err := s.db.Exec(ctx, query, counts, errRecords, batch.Status, batch.Finished, batch.ID)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return analysis.ErrBatchNotFound
	}
	return nil
}

func (s *BatchStore) GetBatch(ctx context.Context, batchID string) (analysis.ImportBatch, error) {
	query := `
		SELECT id, job_id, tenant_id, strategy, counts, errors,
			status, started_at, finished_at
		FROM import_batches
		WHERE id = $1;
	`
	var (
		batch      analysis.ImportBatch
		counts     []byte
		errRecords []byte
	)
	err := s.db.QueryRow(ctx, query, batchID).Scan(
		&batch.ID, &batch.JobID, &batch.TenantID, &batch.Strategy, &counts, &errRecords,
		&batch.Status, &batch.Started, &batch.Finished,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return analysis.ImportBatch{}, analysis.ErrBatchNotFound
		}
		return analysis.ImportBatch{}, fmt.Errorf("get batch: %w", err)
	}
	var bc batchCounts
	if err := json.Unmarshal(counts, &bc); err != nil {
		return analysis.ImportBatch{}, fmt.Errorf("unmarshal batch counts: %w", err)
	}
	batch.Keywords = bc.Keywords
	batch.Competitors = bc.Competitors
	batch.Opportunities = bc.Opportunities
	if len(errRecords) > 0 {
		if err := json.Unmarshal(errRecords, &batch.Errors); err != nil {
			return analysis.ImportBatch{}, fmt.Errorf("unmarshal batch errors: %w", err)
		}
	}
	return batch, nil
}

func marshalBatch(batch analysis.ImportBatch) ([]byte, []byte, error) {
	counts, err := json.Marshal(batchCounts{
		Keywords:      batch.Keywords,
		Competitors:   batch.Competitors,
		Opportunities: batch.Opportunities,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("marshal batch counts: %w", err)
	}
	errRecords, err := json.Marshal(batch.Errors)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal batch errors: %w", err)
	}
	return counts, errRecords, nil
}
