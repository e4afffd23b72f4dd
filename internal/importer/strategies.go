package importer

import (
	"context"
	"fmt"

	"github.com/brandlens/footprint/internal/analysis"
)

// importKeywords applies the batch strategy to each selected keyword.
// Detection runs first for every row so a mid-batch failure never
// leaves partial duplicate decisions behind.
func (e *Engine) importKeywords(ctx context.Context, tx analysis.TargetTx, batch *analysis.ImportBatch, rows []analysis.DiscoveredKeyword) error {
	for _, kw := range rows {
		existing, found, err := tx.FindKeywordByText(ctx, batch.TenantID, kw.NormalizedText)
		if err != nil {
			return fmt.Errorf("detect keyword %q: %w", kw.Text, err)
		}
		if found {
			batch.Keywords.DuplicatesDetected++
		}

		switch {
		case found && batch.Strategy == analysis.StrategySkip:
			batch.Keywords.DuplicatesSkipped++
			continue
		case found && batch.Strategy == analysis.StrategyMerge:
			merged := mergeKeyword(existing, kw)
			if err := tx.UpdateKeyword(ctx, merged); err != nil {
				return fmt.Errorf("merge keyword %q: %w", kw.Text, err)
			}
			batch.Keywords.Imported++
			continue
		case found && batch.Strategy == analysis.StrategyReplace:
			if err := tx.DeleteKeyword(ctx, existing.ID); err != nil {
				return fmt.Errorf("replace keyword %q: %w", kw.Text, err)
			}
		}

		id, err := e.idGen.NewID()
		if err != nil {
			return fmt.Errorf("keyword id: %w", err)
		}
		row := analysis.TargetKeyword{
			ID:             id,
			TenantID:       batch.TenantID,
			BatchID:        batch.ID,
			Text:           kw.Text,
			NormalizedText: kw.NormalizedText,
			Source:         kw.Source,
			Relevance:      kw.Relevance,
			SearchVolume:   kw.SearchVolume,
			Difficulty:     kw.Difficulty,
			Position:       kw.Position,
			Created:        e.clock.Now(),
		}
		if err := tx.InsertKeyword(ctx, row); err != nil {
			return fmt.Errorf("insert keyword %q: %w", kw.Text, err)
		}
		batch.Keywords.Imported++
	}
	return nil
}

// mergeKeyword folds an incoming keyword into an existing row. The
// existing row's identity and batch tag are preserved; empty incoming
// fields never clobber populated ones.
func mergeKeyword(existing analysis.TargetKeyword, in analysis.DiscoveredKeyword) analysis.TargetKeyword {
	if in.Relevance > existing.Relevance {
		existing.Relevance = in.Relevance
	}
	if in.SearchVolume != nil {
		existing.SearchVolume = in.SearchVolume
	}
	if in.Difficulty != nil {
		existing.Difficulty = in.Difficulty
	}
	return existing
}

func (e *Engine) importCompetitors(ctx context.Context, tx analysis.TargetTx, batch *analysis.ImportBatch, rows []analysis.IdentifiedCompetitor) error {
	for _, comp := range rows {
		existing, found, err := tx.FindCompetitorByDomain(ctx, batch.TenantID, comp.Domain)
		if err != nil {
			return fmt.Errorf("detect competitor %q: %w", comp.Domain, err)
		}
		if found {
			batch.Competitors.DuplicatesDetected++
		}

		switch {
		case found && batch.Strategy == analysis.StrategySkip:
			batch.Competitors.DuplicatesSkipped++
			continue
		case found && batch.Strategy == analysis.StrategyMerge:
			merged := mergeCompetitor(existing, comp)
			if err := tx.UpdateCompetitor(ctx, merged); err != nil {
				return fmt.Errorf("merge competitor %q: %w", comp.Domain, err)
			}
			batch.Competitors.Imported++
			continue
		case found && batch.Strategy == analysis.StrategyReplace:
			if err := tx.DeleteCompetitor(ctx, existing.ID); err != nil {
				return fmt.Errorf("replace competitor %q: %w", comp.Domain, err)
			}
		}

		id, err := e.idGen.NewID()
		if err != nil {
			return fmt.Errorf("competitor id: %w", err)
		}
		row := analysis.TargetCompetitor{
			ID:          id,
			TenantID:    batch.TenantID,
			BatchID:     batch.ID,
			Domain:      comp.Domain,
			DisplayName: comp.DisplayName,
			Category:    comp.Category,
			Relevance:   comp.Relevance,
			OverlapPct:  comp.OverlapPct,
			Created:     e.clock.Now(),
		}
		if err := tx.InsertCompetitor(ctx, row); err != nil {
			return fmt.Errorf("insert competitor %q: %w", comp.Domain, err)
		}
		batch.Competitors.Imported++
	}
	return nil
}

func mergeCompetitor(existing analysis.TargetCompetitor, in analysis.IdentifiedCompetitor) analysis.TargetCompetitor {
	if in.Relevance > existing.Relevance {
		existing.Relevance = in.Relevance
		existing.Category = in.Category
	}
	if in.OverlapPct != nil && (existing.OverlapPct == nil || *in.OverlapPct > *existing.OverlapPct) {
		existing.OverlapPct = in.OverlapPct
	}
	if existing.DisplayName == "" {
		existing.DisplayName = in.DisplayName
	}
	return existing
}

// importOpportunities has no natural duplicate key, so every selected
// opportunity inserts regardless of strategy.
func (e *Engine) importOpportunities(ctx context.Context, tx analysis.TargetTx, batch *analysis.ImportBatch, rows []analysis.ContentOpportunity) error {
	for _, opp := range rows {
		id, err := e.idGen.NewID()
		if err != nil {
			return fmt.Errorf("opportunity id: %w", err)
		}
		row := analysis.TargetOpportunity{
			ID:               id,
			TenantID:         batch.TenantID,
			BatchID:          batch.ID,
			Title:            opp.Title,
			GapType:          opp.GapType,
			TrafficPotential: opp.TrafficPotential,
			Difficulty:       opp.Difficulty,
			Priority:         opp.Priority,
			Format:           opp.Format,
			Created:          e.clock.Now(),
		}
		if err := tx.InsertOpportunity(ctx, row); err != nil {
			return fmt.Errorf("insert opportunity %q: %w", opp.Title, err)
		}
		batch.Opportunities.Imported++
	}
	return nil
}
