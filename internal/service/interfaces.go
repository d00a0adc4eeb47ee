// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/follow-the-money/internal/model"
)

// TotalsFilter defines the inclusion policy for totals-by-category reports.
type TotalsFilter struct {
	// OnlyActive selects active-only (true), inactive-only (false), or all
	// categories (nil).
	OnlyActive *bool
	// Limit caps the number of rows; nil means unbounded. Offset applies
	// only when Limit is set.
	Limit  *int
	Offset int
	// IncludeZero anchors the report on the category set, reporting 0.0 for
	// categories with no expenses in range.
	IncludeZero bool
	// ExcludeInactiveSpend drops inactive categories from spend-only results
	// (IncludeZero false) when OnlyActive is unset.
	ExcludeInactiveSpend bool
	Order                model.SortOrder
}

// ExpenseRange defines a date-bounded expense query.
type ExpenseRange struct {
	Start      time.Time
	End        time.Time
	CategoryID *int64
	Limit      *int
	Offset     int
	Order      model.SortOrder
}

// Storage defines the contract for the persistence layer.
type Storage interface {
	// Category operations
	GetCategories(ctx context.Context, includeInactive bool) ([]model.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*model.Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*model.Category, error)
	CreateCategory(ctx context.Context, name, description string) (*model.Category, error)
	UpdateCategory(ctx context.Context, id int64, name, description string) error
	SetCategoryActive(ctx context.Context, id int64, active bool) error
	DeleteCategory(ctx context.Context, id int64) error
	ResolveCategoryID(ctx context.Context, name string, fallbackOtherID *int64) (int64, error)
	GetOrCreateOther(ctx context.Context) (int64, error)
	ActiveNamesWithOther(ctx context.Context, limit int) ([]string, int64, error)
	SeedDefaultCategories(ctx context.Context) error

	// Classification cache operations
	LookupCachedCategory(ctx context.Context, payload map[string]any) (*int64, error)
	WriteCachedCategory(ctx context.Context, payload map[string]any, categoryID int64) error

	// Expense operations
	AddExpenseWithDedupe(ctx context.Context, date time.Time, amount float64, description string, categoryID int64, rawPayload map[string]any, dedupe bool) (int64, error)
	SaveExpenseRecords(ctx context.Context, items []model.Record) ([]int64, error)
	ExpensesBetween(ctx context.Context, query ExpenseRange) ([]model.Expense, error)
	SumCategoryExpenses(ctx context.Context, categoryID int64, start, end time.Time) (float64, error)
	ListRecentExpenses(ctx context.Context, limit, offset int, since *time.Time) ([]model.Expense, error)

	// Reporting operations
	CategoryTotals(ctx context.Context, start, end time.Time, filter TotalsFilter) ([]model.CategoryTotal, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// Classifier assigns a record to one category name drawn from the given
// vocabulary. Implementations must tolerate failure by returning an error;
// callers fall back to the fallback category, never propagate.
type Classifier interface {
	ClassifyRecord(ctx context.Context, record model.Record, categories []string) (string, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DateRange represents a time period with start and end dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}
