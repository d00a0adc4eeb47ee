// Package engine orchestrates classification and persistence of expense
// records on top of the storage layer.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/follow-the-money/internal/model"
	"github.com/Veraticus/follow-the-money/internal/service"
)

// Engine composes the classification cache, the category vocabulary and the
// expense store into the classify-or-cache-then-persist workflow. Callers
// never touch the database directly.
type Engine struct {
	storage    service.Storage
	classifier service.Classifier
	logger     *slog.Logger
	vocabLimit int
}

// Config holds configuration options for the engine.
type Config struct {
	// VocabularyLimit caps the category list offered to the classifier.
	VocabularyLimit int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{VocabularyLimit: 50}
}

// New creates an engine with the default configuration.
func New(storage service.Storage, classifier service.Classifier, logger *slog.Logger) *Engine {
	return NewWithConfig(storage, classifier, logger, DefaultConfig())
}

// NewWithConfig creates an engine with custom configuration.
func NewWithConfig(storage service.Storage, classifier service.Classifier, logger *slog.Logger, config Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if config.VocabularyLimit <= 0 {
		config.VocabularyLimit = 50
	}
	return &Engine{
		storage:    storage,
		classifier: classifier,
		logger:     logger,
		vocabLimit: config.VocabularyLimit,
	}
}

// vocabulary is the classifier's allowed-name list plus the fallback id,
// fetched lazily on the first cache miss of a batch and reused for the rest.
type vocabulary struct {
	names   []string
	otherID int64
}

// ClassifyRecords assigns a category id to every record, in input order.
// Each record follows the same linear path: cache hit wins; otherwise the
// classifier picks a name from the active vocabulary, the name resolves to an
// id (fallback category when unrecognized), and the result is cached. The
// classifier call happens outside any storage transaction so a slow
// collaborator never holds database locks. Classification never fails from
// the caller's perspective short of the database itself failing.
func (e *Engine) ClassifyRecords(ctx context.Context, records []model.Record) ([]int64, error) {
	if len(records) == 0 {
		return nil, nil
	}

	var vocab *vocabulary
	ids := make([]int64, 0, len(records))
	hits := 0

	for i, record := range records {
		payload := record.ClassificationPayload()

		cached, err := e.storage.LookupCachedCategory(ctx, payload)
		if err != nil {
			return nil, fmt.Errorf("failed to check classification cache: %w", err)
		}
		if cached != nil {
			hits++
			ids = append(ids, *cached)
			continue
		}

		if vocab == nil {
			names, otherID, vocabErr := e.storage.ActiveNamesWithOther(ctx, e.vocabLimit)
			if vocabErr != nil {
				return nil, fmt.Errorf("failed to load category vocabulary: %w", vocabErr)
			}
			vocab = &vocabulary{names: names, otherID: otherID}
		}

		id, err := e.classifyOne(ctx, record, payload, vocab)
		if err != nil {
			return nil, fmt.Errorf("record at index %d: %w", i, err)
		}
		ids = append(ids, id)
	}

	e.logger.Info("classified records",
		"count", len(records),
		"cache_hits", hits)
	return ids, nil
}

func (e *Engine) classifyOne(ctx context.Context, record model.Record, payload map[string]any, vocab *vocabulary) (int64, error) {
	name, err := e.classifier.ClassifyRecord(ctx, record, vocab.names)
	if err != nil {
		// Classifier failures never propagate; the record lands in the
		// fallback category.
		e.logger.Warn("classifier failed, falling back",
			"description", record.Description,
			"error", err)
		name = model.FallbackCategoryName
	}

	id, err := e.storage.ResolveCategoryID(ctx, name, &vocab.otherID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve category %q: %w", name, err)
	}

	if err := e.storage.WriteCachedCategory(ctx, payload, id); err != nil {
		return 0, fmt.Errorf("failed to cache classification: %w", err)
	}

	return id, nil
}

// SaveRecords persists a batch of records and returns their ids in input
// order. Records carrying neither a category name nor an id are classified
// first; the rest keep their hint and skip the classifier entirely.
func (e *Engine) SaveRecords(ctx context.Context, records []model.Record) ([]int64, error) {
	if len(records) == 0 {
		return nil, nil
	}

	var unhinted []model.Record
	var unhintedIdx []int
	for i, record := range records {
		if record.CategoryID == nil && record.Category == "" {
			unhinted = append(unhinted, record)
			unhintedIdx = append(unhintedIdx, i)
		}
	}

	if len(unhinted) > 0 {
		categoryIDs, err := e.ClassifyRecords(ctx, unhinted)
		if err != nil {
			return nil, err
		}
		for j, idx := range unhintedIdx {
			id := categoryIDs[j]
			records[idx].CategoryID = &id
		}
	}

	ids, err := e.storage.SaveExpenseRecords(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("failed to save records: %w", err)
	}
	return ids, nil
}

// ListExpenses returns the most recent expenses, newest first.
func (e *Engine) ListExpenses(ctx context.Context, limit, offset int, since *time.Time) ([]model.Expense, error) {
	return e.storage.ListRecentExpenses(ctx, limit, offset, since)
}

// ExpensesBetween returns expenses in an inclusive date range, optionally
// filtered by category name. An unknown name filters on the fallback
// category rather than failing.
func (e *Engine) ExpensesBetween(ctx context.Context, start, end time.Time, category string, limit *int, offset int, order model.SortOrder) ([]model.Expense, error) {
	query := service.ExpenseRange{
		Start:  start,
		End:    end,
		Limit:  limit,
		Offset: offset,
		Order:  order,
	}
	if category != "" {
		id, err := e.storage.ResolveCategoryID(ctx, category, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve category %q: %w", category, err)
		}
		query.CategoryID = &id
	}
	return e.storage.ExpensesBetween(ctx, query)
}

// SumForCategoryBetween sums one category's spend over an inclusive range.
func (e *Engine) SumForCategoryBetween(ctx context.Context, category string, start, end time.Time) (float64, error) {
	id, err := e.storage.ResolveCategoryID(ctx, category, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve category %q: %w", category, err)
	}
	return e.storage.SumCategoryExpenses(ctx, id, start, end)
}

// TotalsByCategory aggregates spend per category over an inclusive range.
func (e *Engine) TotalsByCategory(ctx context.Context, start, end time.Time, filter service.TotalsFilter) ([]model.CategoryTotal, error) {
	return e.storage.CategoryTotals(ctx, start, end, filter)
}
