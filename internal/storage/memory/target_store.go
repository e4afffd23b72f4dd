package memory

import (
	"context"
	"sync"

	"github.com/brandlens/footprint/internal/analysis"
)

// TargetStore is an in-memory target store with transactional batches.
// RunInTenantTx clones the tenant's rows, lets fn mutate the clone, and
// swaps it in only when fn succeeds, so a failed batch leaves nothing
// behind.
type TargetStore struct {
	clock analysis.Clock

	mu      sync.Mutex
	tenants map[string]*tenantRows
}

type tenantRows struct {
	keywords      map[string]analysis.TargetKeyword
	competitors   map[string]analysis.TargetCompetitor
	opportunities map[string]analysis.TargetOpportunity
}

func newTenantRows() *tenantRows {
	return &tenantRows{
		keywords:      map[string]analysis.TargetKeyword{},
		competitors:   map[string]analysis.TargetCompetitor{},
		opportunities: map[string]analysis.TargetOpportunity{},
	}
}

func (t *tenantRows) clone() *tenantRows {
	c := newTenantRows()
	for id, row := range t.keywords {
		c.keywords[id] = row
	}
	for id, row := range t.competitors {
		c.competitors[id] = row
	}
	for id, row := range t.opportunities {
		c.opportunities[id] = row
	}
	return c
}

// NewTargetStore creates an empty TargetStore.
func NewTargetStore(clock analysis.Clock) *TargetStore {
	return &TargetStore{clock: clock, tenants: map[string]*tenantRows{}}
}

func (s *TargetStore) rows(tenantID string) *tenantRows {
	t, ok := s.tenants[tenantID]
	if !ok {
		t = newTenantRows()
		s.tenants[tenantID] = t
	}
	return t
}

// RunInTenantTx holds the store lock for the whole transaction, which
// serializes tenants globally. Acceptable for a single-process store.
func (s *TargetStore) RunInTenantTx(_ context.Context, tenantID string, fn func(tx analysis.TargetTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	working := s.rows(tenantID).clone()
	tx := &memoryTx{rows: working, clock: s.clock}
	if err := fn(tx); err != nil {
		return err
	}
	s.tenants[tenantID] = working
	return nil
}

func (s *TargetStore) CountKeywords(_ context.Context, tenantID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows(tenantID).keywords), nil
}

func (s *TargetStore) CountCompetitors(_ context.Context, tenantID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows(tenantID).competitors), nil
}

type memoryTx struct {
	rows  *tenantRows
	clock analysis.Clock
}

func (t *memoryTx) FindKeywordByText(_ context.Context, tenantID, normalizedText string) (analysis.TargetKeyword, bool, error) {
	for _, row := range t.rows.keywords {
		if row.TenantID == tenantID && row.NormalizedText == normalizedText {
			return row, true, nil
		}
	}
	return analysis.TargetKeyword{}, false, nil
}

func (t *memoryTx) InsertKeyword(_ context.Context, row analysis.TargetKeyword) error {
	row.Updated = t.clock.Now()
	t.rows.keywords[row.ID] = row
	return nil
}

func (t *memoryTx) UpdateKeyword(_ context.Context, row analysis.TargetKeyword) error {
	row.Updated = t.clock.Now()
	t.rows.keywords[row.ID] = row
	return nil
}

func (t *memoryTx) DeleteKeyword(_ context.Context, id string) error {
	delete(t.rows.keywords, id)
	return nil
}

func (t *memoryTx) FindCompetitorByDomain(_ context.Context, tenantID, domain string) (analysis.TargetCompetitor, bool, error) {
	for _, row := range t.rows.competitors {
		if row.TenantID == tenantID && row.Domain == domain {
			return row, true, nil
		}
	}
	return analysis.TargetCompetitor{}, false, nil
}

func (t *memoryTx) InsertCompetitor(_ context.Context, row analysis.TargetCompetitor) error {
	row.Updated = t.clock.Now()
	t.rows.competitors[row.ID] = row
	return nil
}

func (t *memoryTx) UpdateCompetitor(_ context.Context, row analysis.TargetCompetitor) error {
	row.Updated = t.clock.Now()
	t.rows.competitors[row.ID] = row
	return nil
}

func (t *memoryTx) DeleteCompetitor(_ context.Context, id string) error {
	delete(t.rows.competitors, id)
	return nil
}

func (t *memoryTx) InsertOpportunity(_ context.Context, row analysis.TargetOpportunity) error {
	t.rows.opportunities[row.ID] = row
	return nil
}

func (t *memoryTx) DeleteRowsByBatch(_ context.Context, tenantID, batchID string) (int, error) {
	deleted := 0
	for id, row := range t.rows.keywords {
		if row.TenantID == tenantID && row.BatchID == batchID {
			delete(t.rows.keywords, id)
			deleted++
		}
	}
	for id, row := range t.rows.competitors {
		if row.TenantID == tenantID && row.BatchID == batchID {
			delete(t.rows.competitors, id)
			deleted++
		}
	}
	for id, row := range t.rows.opportunities {
		if row.TenantID == tenantID && row.BatchID == batchID {
			delete(t.rows.opportunities, id)
			deleted++
		}
	}
	return deleted, nil
}
