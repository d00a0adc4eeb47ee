package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/follow-the-money/internal/model"
	"github.com/Veraticus/follow-the-money/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// queryable captures what categories, cache, expense and reporting helpers
// need from the database, so each helper runs against either *sql.DB or
// *sql.Tx without knowing which.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	// Validate input
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite doesn't benefit from multiple connections
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// Transaction methods delegate to the main storage with the transaction.

func (t *sqliteTransaction) GetCategories(ctx context.Context, includeInactive bool) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getCategoriesTx(ctx, t.tx, includeInactive)
}

func (t *sqliteTransaction) GetCategoryByName(ctx context.Context, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	return t.storage.getCategoryByNameTx(ctx, t.tx, name)
}

func (t *sqliteTransaction) GetCategoryByID(ctx context.Context, id int64) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getCategoryByIDTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) CreateCategory(ctx context.Context, name, description string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	return t.storage.createCategoryTx(ctx, t.tx, name, description)
}

func (t *sqliteTransaction) UpdateCategory(ctx context.Context, id int64, name, description string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(name, "name"); err != nil {
		return err
	}
	return t.storage.updateCategoryTx(ctx, t.tx, id, name, description)
}

func (t *sqliteTransaction) SetCategoryActive(ctx context.Context, id int64, active bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.setCategoryActiveTx(ctx, t.tx, id, active)
}

func (t *sqliteTransaction) DeleteCategory(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.deleteCategoryTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) ResolveCategoryID(ctx context.Context, name string, fallbackOtherID *int64) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(name, "name"); err != nil {
		return 0, err
	}
	return t.storage.resolveCategoryIDTx(ctx, t.tx, name, fallbackOtherID)
}

func (t *sqliteTransaction) GetOrCreateOther(ctx context.Context) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return t.storage.getOrCreateOtherTx(ctx, t.tx)
}

func (t *sqliteTransaction) ActiveNamesWithOther(ctx context.Context, limit int) ([]string, int64, error) {
	if err := validateContext(ctx); err != nil {
		return nil, 0, err
	}
	return t.storage.activeNamesWithOtherTx(ctx, t.tx, limit)
}

func (t *sqliteTransaction) SeedDefaultCategories(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.seedDefaultCategoriesTx(ctx, t.tx)
}

func (t *sqliteTransaction) LookupCachedCategory(ctx context.Context, payload map[string]any) (*int64, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.lookupCachedCategoryTx(ctx, t.tx, payload)
}

func (t *sqliteTransaction) WriteCachedCategory(ctx context.Context, payload map[string]any, categoryID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.writeCachedCategoryTx(ctx, t.tx, payload, categoryID)
}

func (t *sqliteTransaction) AddExpenseWithDedupe(ctx context.Context, date time.Time, amount float64, description string, categoryID int64, rawPayload map[string]any, dedupe bool) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateDate(date, "date"); err != nil {
		return 0, err
	}
	if err := validateAmount(amount); err != nil {
		return 0, err
	}
	return t.storage.addExpenseWithDedupeTx(ctx, t.tx, date, amount, description, categoryID, rawPayload, dedupe)
}

func (t *sqliteTransaction) SaveExpenseRecords(ctx context.Context, items []model.Record) ([]int64, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateRecords(items); err != nil {
		return nil, err
	}
	return t.storage.saveExpenseRecordsTx(ctx, t.tx, items)
}

func (t *sqliteTransaction) ExpensesBetween(ctx context.Context, query service.ExpenseRange) ([]model.Expense, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateExpenseRange(query); err != nil {
		return nil, err
	}
	return t.storage.expensesBetweenTx(ctx, t.tx, query)
}

func (t *sqliteTransaction) SumCategoryExpenses(ctx context.Context, categoryID int64, start, end time.Time) (float64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateDateRange(start, end); err != nil {
		return 0, err
	}
	return t.storage.sumCategoryExpensesTx(ctx, t.tx, categoryID, start, end)
}

func (t *sqliteTransaction) ListRecentExpenses(ctx context.Context, limit, offset int, since *time.Time) ([]model.Expense, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateOffset(offset); err != nil {
		return nil, err
	}
	return t.storage.listRecentExpensesTx(ctx, t.tx, limit, offset, since)
}

func (t *sqliteTransaction) CategoryTotals(ctx context.Context, start, end time.Time, filter service.TotalsFilter) ([]model.CategoryTotal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateDateRange(start, end); err != nil {
		return nil, err
	}
	return t.storage.categoryTotalsTx(ctx, t.tx, start, end, filter)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	// Nested transactions not supported
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	// Transactions should be committed or rolled back, not closed
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}
