package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/follow-the-money/internal/common"
	"github.com/Veraticus/follow-the-money/internal/model"
	"github.com/mattn/go-sqlite3"
)

// defaultSeed is the fixed vocabulary inserted on first startup. The name
// matching for "already present" is case-insensitive, so repeated seeding
// never duplicates or overwrites existing categories.
var defaultSeed = []struct {
	Name        string
	Description string
}{
	{"groceries", "Supermarkets & food stores"},
	{"restaurants", "Dining & take-away"},
	{"transportation", "Taxis, rideshare, public transit"},
	{"utilities", "Electricity, water, internet, phone"},
	{"entertainment", "Movies, events, streaming"},
	{"pets", "Pet stores, vet, dog food"},
	{"health", "Pharmacy, clinics, sports"},
	{"shopping", "Retail & online shopping"},
	{"subscriptions", "Recurring services and memberships"},
	{model.FallbackCategoryName, "Everything else / fallback"},
}

// GetCategories returns all categories, or only the active ones.
func (s *SQLiteStorage) GetCategories(ctx context.Context, includeInactive bool) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getCategoriesTx(ctx, s.db, includeInactive)
}

func (s *SQLiteStorage) getCategoriesTx(ctx context.Context, q queryable, includeInactive bool) ([]model.Category, error) {
	query := `
		SELECT id, name, description, is_active, created_at, updated_at
		FROM categories`
	if !includeInactive {
		query += `
		WHERE is_active = 1`
	}
	query += `
		ORDER BY name`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		var cat model.Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Description, &cat.IsActive, &cat.CreatedAt, &cat.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, cat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	slog.Debug("retrieved categories", "count", len(categories))
	return categories, nil
}

// GetCategoryByName returns a category by its name, matched case-insensitively.
// Returns nil when no category has that name.
func (s *SQLiteStorage) GetCategoryByName(ctx context.Context, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	return s.getCategoryByNameTx(ctx, s.db, name)
}

func (s *SQLiteStorage) getCategoryByNameTx(ctx context.Context, q queryable, name string) (*model.Category, error) {
	// name is COLLATE NOCASE, so = is already case-insensitive.
	query := `
		SELECT id, name, description, is_active, created_at, updated_at
		FROM categories
		WHERE name = ?`

	var cat model.Category
	err := q.QueryRowContext(ctx, query, name).Scan(
		&cat.ID, &cat.Name, &cat.Description, &cat.IsActive, &cat.CreatedAt, &cat.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Category not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}

	return &cat, nil
}

// GetCategoryByID returns a category by its id, or nil when absent.
func (s *SQLiteStorage) GetCategoryByID(ctx context.Context, id int64) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getCategoryByIDTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getCategoryByIDTx(ctx context.Context, q queryable, id int64) (*model.Category, error) {
	query := `
		SELECT id, name, description, is_active, created_at, updated_at
		FROM categories
		WHERE id = ?`

	var cat model.Category
	err := q.QueryRowContext(ctx, query, id).Scan(
		&cat.ID, &cat.Name, &cat.Description, &cat.IsActive, &cat.CreatedAt, &cat.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}

	return &cat, nil
}

// CreateCategory creates a new category. If a category with the same name
// already exists (case-insensitively), it is returned instead, reactivated
// when inactive.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, name, description string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	return s.createCategoryTx(ctx, s.db, name, description)
}

func (s *SQLiteStorage) createCategoryTx(ctx context.Context, q queryable, name, description string) (*model.Category, error) {
	// Check if category already exists (including inactive ones)
	existing, err := s.getCategoryByNameTx(ctx, q, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing category: %w", err)
	}

	if existing != nil {
		if !existing.IsActive {
			// Reactivate it
			updateQuery := `UPDATE categories SET is_active = 1 WHERE id = ?`
			if _, err := q.ExecContext(ctx, updateQuery, existing.ID); err != nil {
				return nil, fmt.Errorf("failed to reactivate category: %w", err)
			}
			existing.IsActive = true
			slog.Info("reactivated existing category", "name", name)
		}
		return existing, nil
	}

	// Create new category
	insertQuery := `
		INSERT INTO categories (name, description, is_active, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?)`

	now := time.Now()
	result, err := q.ExecContext(ctx, insertQuery, name, description, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get category ID: %w", err)
	}

	category := &model.Category{
		ID:          id,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
		IsActive:    true,
	}

	slog.Info("created new category", "name", name, "id", id)
	return category, nil
}

// UpdateCategory renames a category and replaces its description.
func (s *SQLiteStorage) UpdateCategory(ctx context.Context, id int64, name, description string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(name, "name"); err != nil {
		return err
	}
	return s.updateCategoryTx(ctx, s.db, id, name, description)
}

func (s *SQLiteStorage) updateCategoryTx(ctx context.Context, q queryable, id int64, name, description string) error {
	query := `UPDATE categories SET name = ?, description = ? WHERE id = ?`

	result, err := q.ExecContext(ctx, query, name, description, id)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("category %d: %w", id, common.ErrNotFound)
	}

	return nil
}

// SetCategoryActive toggles a category's active flag.
func (s *SQLiteStorage) SetCategoryActive(ctx context.Context, id int64, active bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.setCategoryActiveTx(ctx, s.db, id, active)
}

func (s *SQLiteStorage) setCategoryActiveTx(ctx context.Context, q queryable, id int64, active bool) error {
	query := `UPDATE categories SET is_active = ? WHERE id = ?`

	result, err := q.ExecContext(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("failed to set category active flag: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("category %d: %w", id, common.ErrNotFound)
	}

	return nil
}

// DeleteCategory removes a category. A category still referenced by expenses
// cannot be deleted; the foreign key RESTRICT rule surfaces as
// common.ErrCategoryInUse.
func (s *SQLiteStorage) DeleteCategory(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.deleteCategoryTx(ctx, s.db, id)
}

func (s *SQLiteStorage) deleteCategoryTx(ctx context.Context, q queryable, id int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return fmt.Errorf("category %d: %w", id, common.ErrCategoryInUse)
		}
		return fmt.Errorf("failed to delete category: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("category %d: %w", id, common.ErrNotFound)
	}

	slog.Info("deleted category", "id", id)
	return nil
}

// ResolveCategoryID resolves a category name to an id. The lookup is
// case-insensitive; an unknown name resolves to fallbackOtherID when given,
// and otherwise to the fallback category, created on demand. It never fails
// on an unknown name.
func (s *SQLiteStorage) ResolveCategoryID(ctx context.Context, name string, fallbackOtherID *int64) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(name, "name"); err != nil {
		return 0, err
	}
	return s.resolveCategoryIDTx(ctx, s.db, name, fallbackOtherID)
}

func (s *SQLiteStorage) resolveCategoryIDTx(ctx context.Context, q queryable, name string, fallbackOtherID *int64) (int64, error) {
	cat, err := s.getCategoryByNameTx(ctx, q, name)
	if err != nil {
		return 0, err
	}
	if cat != nil {
		return cat.ID, nil
	}
	if fallbackOtherID != nil {
		return *fallbackOtherID, nil
	}
	return s.getOrCreateOtherTx(ctx, q)
}

// GetOrCreateOther returns the id of the fallback category, creating it when
// absent. Idempotent.
func (s *SQLiteStorage) GetOrCreateOther(ctx context.Context) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return s.getOrCreateOtherTx(ctx, s.db)
}

func (s *SQLiteStorage) getOrCreateOtherTx(ctx context.Context, q queryable) (int64, error) {
	cat, err := s.getCategoryByNameTx(ctx, q, model.FallbackCategoryName)
	if err != nil {
		return 0, err
	}
	if cat != nil {
		return cat.ID, nil
	}

	created, err := s.createCategoryTx(ctx, q, model.FallbackCategoryName, model.FallbackCategoryDescription)
	if err != nil {
		// A concurrent create may have beaten us to the unique name.
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			existing, lookupErr := s.getCategoryByNameTx(ctx, q, model.FallbackCategoryName)
			if lookupErr == nil && existing != nil {
				return existing.ID, nil
			}
		}
		return 0, fmt.Errorf("failed to create fallback category: %w", err)
	}
	return created.ID, nil
}

// ActiveNamesWithOther returns the alphabetically ordered active category
// names truncated to limit, plus the fallback category's id. The fallback
// name is always part of the list when it fits: it is appended when no active
// category already carries it, and the list degrades to just the fallback
// name when no categories are active at all. This is the authoritative
// vocabulary offered to the classifier.
func (s *SQLiteStorage) ActiveNamesWithOther(ctx context.Context, limit int) ([]string, int64, error) {
	if err := validateContext(ctx); err != nil {
		return nil, 0, err
	}
	return s.activeNamesWithOtherTx(ctx, s.db, limit)
}

func (s *SQLiteStorage) activeNamesWithOtherTx(ctx context.Context, q queryable, limit int) ([]string, int64, error) {
	otherID, err := s.getOrCreateOtherTx(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT name
		FROM categories
		WHERE is_active = 1
		ORDER BY name`)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query active category names: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, 0, fmt.Errorf("failed to scan category name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating category names: %w", err)
	}

	if len(names) == 0 {
		names = []string{model.FallbackCategoryName}
	}

	hasOther := false
	for _, name := range names {
		if strings.EqualFold(name, model.FallbackCategoryName) {
			hasOther = true
			break
		}
	}
	if !hasOther {
		names = append(names, model.FallbackCategoryName)
	}

	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}

	return names, otherID, nil
}

// SeedDefaultCategories inserts the default vocabulary for any name not
// already present. Safe to run on every startup.
func (s *SQLiteStorage) SeedDefaultCategories(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.seedDefaultCategoriesTx(ctx, s.db)
}

func (s *SQLiteStorage) seedDefaultCategoriesTx(ctx context.Context, q queryable) error {
	var seeded int
	for _, seed := range defaultSeed {
		existing, err := s.getCategoryByNameTx(ctx, q, seed.Name)
		if err != nil {
			return fmt.Errorf("failed to check seed category %q: %w", seed.Name, err)
		}
		if existing != nil {
			continue
		}
		if _, err := s.createCategoryTx(ctx, q, seed.Name, seed.Description); err != nil {
			// A concurrent seed run may have inserted the row between the
			// check and the insert; that still counts as seeded.
			var sqliteErr sqlite3.Error
			if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
				continue
			}
			return fmt.Errorf("failed to seed category %q: %w", seed.Name, err)
		}
		seeded++
	}

	if seeded > 0 {
		slog.Info("seeded default categories", "inserted", seeded)
	}
	return nil
}
