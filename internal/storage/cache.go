package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/follow-the-money/internal/hashing"
	"github.com/mattn/go-sqlite3"
)

// LookupCachedCategory hashes the payload and returns the cached category id
// for that fingerprint, or nil when the fingerprint has never been
// classified. A miss is not an error.
func (s *SQLiteStorage) LookupCachedCategory(ctx context.Context, payload map[string]any) (*int64, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.lookupCachedCategoryTx(ctx, s.db, payload)
}

func (s *SQLiteStorage) lookupCachedCategoryTx(ctx context.Context, q queryable, payload map[string]any) (*int64, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: payload", ErrNilParameter)
	}

	key, err := hashing.Sum(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to hash payload: %w", err)
	}

	var categoryID int64
	err = q.QueryRowContext(ctx,
		`SELECT category_id FROM classification_cache WHERE hash = ?`, key,
	).Scan(&categoryID)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Cache miss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query classification cache: %w", err)
	}

	slog.Debug("classification cache hit", "hash", key, "category_id", categoryID)
	return &categoryID, nil
}

// WriteCachedCategory hashes the payload and upserts the fingerprint→category
// mapping. The upsert is an explicit update-then-insert so a later write for
// the same fingerprint corrects the stored category instead of growing the
// table.
func (s *SQLiteStorage) WriteCachedCategory(ctx context.Context, payload map[string]any, categoryID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.writeCachedCategoryTx(ctx, tx, payload, categoryID); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) writeCachedCategoryTx(ctx context.Context, q queryable, payload map[string]any, categoryID int64) error {
	if payload == nil {
		return fmt.Errorf("%w: payload", ErrNilParameter)
	}

	key, err := hashing.Sum(payload)
	if err != nil {
		return fmt.Errorf("failed to hash payload: %w", err)
	}

	result, err := q.ExecContext(ctx,
		`UPDATE classification_cache SET category_id = ? WHERE hash = ?`,
		categoryID, key)
	if err != nil {
		return fmt.Errorf("failed to update classification cache: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected > 0 {
		return nil
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO classification_cache (hash, category_id, created_at) VALUES (?, ?, ?)`,
		key, categoryID, time.Now())
	if err != nil {
		// A concurrent writer may have inserted the fingerprint between the
		// update and the insert; retry as an update.
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			if _, retryErr := q.ExecContext(ctx,
				`UPDATE classification_cache SET category_id = ? WHERE hash = ?`,
				categoryID, key); retryErr != nil {
				return fmt.Errorf("failed to update classification cache after insert race: %w", retryErr)
			}
			return nil
		}
		return fmt.Errorf("failed to insert classification cache entry: %w", err)
	}

	return nil
}
