package postgres

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5"

	"github.com/brandlens/footprint/internal/analysis"
)

// TargetStore implements analysis.TargetStore on Postgres.
type TargetStore struct {
	db    DB
	clock analysis.Clock
}

// NewTargetStore wraps an open pool.
func NewTargetStore(db DB, clock analysis.Clock) (*TargetStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	return &TargetStore{db: db, clock: clock}, nil
}

// tenantLockKey maps a tenant id onto the advisory lock keyspace.
func tenantLockKey(tenantID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(tenantID))
	return int64(h.Sum64())
}

// RunInTenantTx opens one transaction, takes a tenant-keyed advisory
// lock so concurrent importers for the same tenant queue up, runs fn,
// and commits only when fn succeeds.
func (s *TargetStore) RunInTenantTx(ctx context.Context, tenantID string, fn func(tx analysis.TargetTx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tenant tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1);`, tenantLockKey(tenantID)); err != nil {
		return fmt.Errorf("tenant advisory lock: %w", err)
	}
	if err := fn(&pgTargetTx{tx: tx, clock: s.clock}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tenant tx: %w", err)
	}
	return nil
}

func (s *TargetStore) CountKeywords(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM target_keywords WHERE tenant_id = $1;`, tenantID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count keywords: %w", err)
	}
	return n, nil
}

func (s *TargetStore) CountCompetitors(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM target_competitors WHERE tenant_id = $1;`, tenantID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count competitors: %w", err)
	}
	return n, nil
}

type pgTargetTx struct {
	tx    pgx.Tx
	clock analysis.Clock
}

func (t *pgTargetTx) FindKeywordByText(ctx context.Context, tenantID, normalizedText string) (analysis.TargetKeyword, bool, error) {
	query := `
		SELECT id, tenant_id, text, normalized_text, source,
			relevance, search_volume, difficulty, position,
			batch_id, created_at, updated_at
		FROM target_keywords
		WHERE tenant_id = $1 AND normalized_text = $2;
	`
	var row analysis.TargetKeyword
	err := t.tx.QueryRow(ctx, query, tenantID, normalizedText).Scan(
		&row.ID, &row.TenantID, &row.Text, &row.NormalizedText, &row.Source,
		&row.Relevance, &row.SearchVolume, &row.Difficulty, &row.Position,
		&row.BatchID, &row.Created, &row.Updated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return analysis.TargetKeyword{}, false, nil
		}
		return analysis.TargetKeyword{}, false, fmt.Errorf("find keyword: %w", err)
	}
	return row, true, nil
}

func (t *pgTargetTx) InsertKeyword(ctx context.Context, row analysis.TargetKeyword) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO target_keywords (
			id, tenant_id, text, normalized_text, source,
			relevance, search_volume, difficulty, position,
			batch_id, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11);`,
		row.ID, row.TenantID, row.Text, row.NormalizedText, row.Source,
		row.Relevance, row.SearchVolume, row.Difficulty, row.Position,
		row.BatchID, row.Created,
	)
	if err != nil {
		return fmt.Errorf("insert target keyword: %w", err)
	}
	return nil
}

func (t *pgTargetTx) UpdateKeyword(ctx context.Context, row analysis.TargetKeyword) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE target_keywords
		SET text = $1, source = $2, relevance = $3, search_volume = $4,
			difficulty = $5, position = $6, updated_at = $7
		WHERE id = $8;`,
		row.Text, row.Source, row.Relevance, row.SearchVolume,
		row.Difficulty, row.Position, t.clock.Now(), row.ID,
	)
	if err != nil {
		return fmt.Errorf("update target keyword: %w", err)
	}
	return nil
}

func (t *pgTargetTx) DeleteKeyword(ctx context.Context, id string) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM target_keywords WHERE id = $1;`, id); err != nil {
		return fmt.Errorf("delete target keyword: %w", err)
	}
	return nil
}

func (t *pgTargetTx) FindCompetitorByDomain(ctx context.Context, tenantID, domain string) (analysis.TargetCompetitor, bool, error) {
	query := `
		SELECT id, tenant_id, domain, display_name, category,
			relevance, overlap_pct, batch_id, created_at, updated_at
		FROM target_competitors
		WHERE tenant_id = $1 AND domain = $2;
	`
	var row analysis.TargetCompetitor
	err := t.tx.QueryRow(ctx, query, tenantID, domain).Scan(
		&row.ID, &row.TenantID, &row.Domain, &row.DisplayName, &row.Category,
		&row.Relevance, &row.OverlapPct, &row.BatchID, &row.Created, &row.Updated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return analysis.TargetCompetitor{}, false, nil
		}
		return analysis.TargetCompetitor{}, false, fmt.Errorf("find competitor: %w", err)
	}
	return row, true, nil
}

func (t *pgTargetTx) InsertCompetitor(ctx context.Context, row analysis.TargetCompetitor) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO target_competitors (
			id, tenant_id, domain, display_name, category,
			relevance, overlap_pct, batch_id, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9);`,
		row.ID, row.TenantID, row.Domain, row.DisplayName, row.Category,
		row.Relevance, row.OverlapPct, row.BatchID, row.Created,
	)
	if err != nil {
		return fmt.Errorf("insert target competitor: %w", err)
	}
	return nil
}

func (t *pgTargetTx) UpdateCompetitor(ctx context.Context, row analysis.TargetCompetitor) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE target_competitors
		SET display_name = $1, category = $2, relevance = $3,
			overlap_pct = $4, updated_at = $5
		WHERE id = $6;`,
		row.DisplayName, row.Category, row.Relevance,
		row.OverlapPct, t.clock.Now(), row.ID,
	)
	if err != nil {
		return fmt.Errorf("update target competitor: %w", err)
	}
	return nil
}

func (t *pgTargetTx) DeleteCompetitor(ctx context.Context, id string) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM target_competitors WHERE id = $1;`, id); err != nil {
		return fmt.Errorf("delete target competitor: %w", err)
	}
	return nil
}

func (t *pgTargetTx) InsertOpportunity(ctx context.Context, row analysis.TargetOpportunity) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO target_opportunities (
			id, tenant_id, title, gap_type, traffic_potential,
			difficulty, priority, format, batch_id, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);`,
		row.ID, row.TenantID, row.Title, row.GapType, row.TrafficPotential,
		row.Difficulty, row.Priority, row.Format, row.BatchID, row.Created,
	)
	if err != nil {
		return fmt.Errorf("insert target opportunity: %w", err)
	}
	return nil
}

func (t *pgTargetTx) DeleteRowsByBatch(ctx context.Context, tenantID, batchID string) (int, error) {
	deleted := 0
	for _, table := range []string{"target_keywords", "target_competitors", "target_opportunities"} {
		tag, err := t.tx.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = $1 AND batch_id = $2;`, table),
			tenantID, batchID,
		)
		if err != nil {
			return deleted, fmt.Errorf("delete %s by batch: %w", table, err)
		}
		deleted += int(tag.RowsAffected())
	}
	return deleted, nil
}
