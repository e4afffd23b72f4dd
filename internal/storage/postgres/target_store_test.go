package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/brandlens/footprint/internal/analysis"
)

func newTargetStore(t *testing.T) (*TargetStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewTargetStore(mock, fixedClock{t: testNow})
	require.NoError(t, err)
	return store, mock
}

func TestRunInTenantTxLocksAndCommits(t *testing.T) {
	t.Parallel()

	store, mock := newTargetStore(t)

	row := analysis.TargetKeyword{
		ID:             "tk1",
		TenantID:       "tenant-1",
		Text:           "Project Management",
		NormalizedText: "project management",
		Source:         analysis.SourceSiteContent,
		Relevance:      0.9,
		BatchID:        "batch-1",
		Created:        testNow,
	}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(tenantLockKey("tenant-1")).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("INSERT INTO target_keywords").
		WithArgs(
			row.ID, row.TenantID, row.Text, row.NormalizedText, row.Source,
			row.Relevance, row.SearchVolume, row.Difficulty, row.Position,
			row.BatchID, row.Created,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := store.RunInTenantTx(context.Background(), "tenant-1", func(tx analysis.TargetTx) error {
		return tx.InsertKeyword(context.Background(), row)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTenantTxRollsBackWhenFnFails(t *testing.T) {
	t.Parallel()

	store, mock := newTargetStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(tenantLockKey("tenant-1")).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := store.RunInTenantTx(context.Background(), "tenant-1", func(analysis.TargetTx) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountKeywords(t *testing.T) {
	t.Parallel()

	store, mock := newTargetStore(t)

	mock.ExpectQuery("SELECT COUNT(.+) FROM target_keywords").
		WithArgs("tenant-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	n, err := store.CountKeywords(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Equal(t, 7, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindKeywordByTextMissIsNotAnError(t *testing.T) {
	t.Parallel()

	store, mock := newTargetStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(tenantLockKey("tenant-1")).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT (.+) FROM target_keywords").
		WithArgs("tenant-1", "absent keyword").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectCommit()

	err := store.RunInTenantTx(context.Background(), "tenant-1", func(tx analysis.TargetTx) error {
		_, found, err := tx.FindKeywordByText(context.Background(), "tenant-1", "absent keyword")
		require.NoError(t, err)
		require.False(t, found)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertKeywordDespiteExistingDuplicate(t *testing.T) {
	t.Parallel()

	store, mock := newTargetStore(t)

	existing := analysis.TargetKeyword{
		ID:             "tk1",
		TenantID:       "tenant-1",
		Text:           "CRM Software",
		NormalizedText: "crm software",
		Source:         analysis.SourceSiteContent,
		Relevance:      0.7,
		BatchID:        "batch-1",
		Created:        testNow,
		Updated:        testNow,
	}
	fresh := analysis.TargetKeyword{
		ID:             "tk2",
		TenantID:       "tenant-1",
		Text:           "CRM software",
		NormalizedText: "crm software",
		Source:         analysis.SourceSiteContent,
		Relevance:      0.9,
		BatchID:        "batch-2",
		Created:        testNow,
	}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(tenantLockKey("tenant-1")).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT (.+) FROM target_keywords").
		WithArgs("tenant-1", "crm software").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "tenant_id", "text", "normalized_text", "source",
			"relevance", "search_volume", "difficulty", "position",
			"batch_id", "created_at", "updated_at",
		}).AddRow(
			existing.ID, existing.TenantID, existing.Text, existing.NormalizedText, existing.Source,
			existing.Relevance, (*int)(nil), (*float64)(nil), (*int)(nil),
			existing.BatchID, existing.Created, existing.Updated,
		))
	mock.ExpectExec("INSERT INTO target_keywords").
		WithArgs(
			fresh.ID, fresh.TenantID, fresh.Text, fresh.NormalizedText, fresh.Source,
			fresh.Relevance, fresh.SearchVolume, fresh.Difficulty, fresh.Position,
			fresh.BatchID, fresh.Created,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	// The create-new flow: detection finds a duplicate, the insert still
	// lands as its own row under a new id and batch tag.
	err := store.RunInTenantTx(context.Background(), "tenant-1", func(tx analysis.TargetTx) error {
		_, found, err := tx.FindKeywordByText(context.Background(), "tenant-1", "crm software")
		require.NoError(t, err)
		require.True(t, found)
		return tx.InsertKeyword(context.Background(), fresh)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCompetitorUsesClock(t *testing.T) {
	t.Parallel()

	store, mock := newTargetStore(t)

	overlap := 62.5
	row := analysis.TargetCompetitor{
		ID:          "tc1",
		TenantID:    "tenant-1",
		Domain:      "rival.com",
		DisplayName: "Rival",
		Category:    analysis.CategoryPrimary,
		Relevance:   0.8,
		OverlapPct:  &overlap,
	}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(tenantLockKey("tenant-1")).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("UPDATE target_competitors").
		WithArgs(
			row.DisplayName, row.Category, row.Relevance,
			row.OverlapPct, testNow, row.ID,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := store.RunInTenantTx(context.Background(), "tenant-1", func(tx analysis.TargetTx) error {
		return tx.UpdateCompetitor(context.Background(), row)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRowsByBatchSumsAllTables(t *testing.T) {
	t.Parallel()

	store, mock := newTargetStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(tenantLockKey("tenant-1")).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("DELETE FROM target_keywords").
		WithArgs("tenant-1", "batch-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("DELETE FROM target_competitors").
		WithArgs("tenant-1", "batch-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM target_opportunities").
		WithArgs("tenant-1", "batch-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCommit()

	err := store.RunInTenantTx(context.Background(), "tenant-1", func(tx analysis.TargetTx) error {
		deleted, err := tx.DeleteRowsByBatch(context.Background(), "tenant-1", "batch-1")
		require.NoError(t, err)
		require.Equal(t, 3, deleted)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
