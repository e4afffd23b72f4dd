package memory

import (
	"context"
	"sync"

	"github.com/brandlens/footprint/internal/analysis"
)

// BatchStore keeps import batch audit records in memory.
type BatchStore struct {
	mu      sync.RWMutex
	batches map[string]analysis.ImportBatch
}

// NewBatchStore creates an empty BatchStore.
func NewBatchStore() *BatchStore {
	return &BatchStore{batches: map[string]analysis.ImportBatch{}}
}

func (s *BatchStore) CreateBatch(_ context.Context, batch analysis.ImportBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[batch.ID] = batch
	return nil
}

func (s *BatchStore) UpdateBatch(_ context.Context, batch analysis.ImportBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[batch.ID]; !ok {
		return analysis.ErrBatchNotFound
	}
	s.batches[batch.ID] = batch
	return nil
}

func (s *BatchStore) GetBatch(_ context.Context, batchID string) (analysis.ImportBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	batch, ok := s.batches[batchID]
	if !ok {
		return analysis.ImportBatch{}, analysis.ErrBatchNotFound
	}
	return batch, nil
}
