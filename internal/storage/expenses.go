package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/follow-the-money/internal/hashing"
	"github.com/Veraticus/follow-the-money/internal/model"
	"github.com/Veraticus/follow-the-money/internal/service"
	"github.com/mattn/go-sqlite3"
)

// AddExpenseWithDedupe inserts an expense row. When dedupe is requested and a
// raw payload is supplied, the payload's content hash is the dedupe key: an
// expense already stored under that hash returns the prior id and no new row
// is written. The hash column stays NULL when dedupe is disabled or no
// payload is given.
func (s *SQLiteStorage) AddExpenseWithDedupe(ctx context.Context, date time.Time, amount float64, description string, categoryID int64, rawPayload map[string]any, dedupe bool) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateDate(date, "date"); err != nil {
		return 0, err
	}
	if err := validateAmount(amount); err != nil {
		return 0, err
	}
	return s.addExpenseWithDedupeTx(ctx, s.db, date, amount, description, categoryID, rawPayload, dedupe)
}

func (s *SQLiteStorage) addExpenseWithDedupeTx(ctx context.Context, q queryable, date time.Time, amount float64, description string, categoryID int64, rawPayload map[string]any, dedupe bool) (int64, error) {
	var hashVal sql.NullString
	if dedupe && rawPayload != nil {
		key, err := hashing.Sum(rawPayload)
		if err != nil {
			return 0, fmt.Errorf("failed to hash raw payload: %w", err)
		}
		hashVal = sql.NullString{String: key, Valid: true}

		if existingID, err := s.findExpenseIDByHashTx(ctx, q, key); err != nil {
			return 0, err
		} else if existingID != nil {
			slog.Debug("deduplicated expense", "hash", key, "id", *existingID)
			return *existingID, nil
		}
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO expenses (date, amount, description, category_id, hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		date.Format(model.DateFormat), amount, description, categoryID, hashVal, time.Now())
	if err != nil {
		// Two concurrent inserts of the same payload race on UNIQUE(hash);
		// the loser resolves to the winner's row.
		var sqliteErr sqlite3.Error
		if hashVal.Valid && errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			existingID, lookupErr := s.findExpenseIDByHashTx(ctx, q, hashVal.String)
			if lookupErr != nil {
				return 0, lookupErr
			}
			if existingID != nil {
				return *existingID, nil
			}
		}
		return 0, fmt.Errorf("failed to insert expense: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get expense ID: %w", err)
	}

	slog.Debug("added expense",
		"id", id,
		"date", date.Format(model.DateFormat),
		"amount", amount,
		"category_id", categoryID)
	return id, nil
}

func (s *SQLiteStorage) findExpenseIDByHashTx(ctx context.Context, q queryable, key string) (*int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM expenses WHERE hash = ?`, key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up expense by hash: %w", err)
	}
	return &id, nil
}

// SaveExpenseRecords persists a batch of records in a single transaction.
// Each record's category resolves by explicit id first, then by name with
// the fallback category backstop, then to the fallback category outright.
// Returned ids are in input order; a deduplicated record yields the id of
// the row it duplicated.
func (s *SQLiteStorage) SaveExpenseRecords(ctx context.Context, items []model.Record) ([]int64, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateRecords(items); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids, err := s.saveExpenseRecordsTx(ctx, tx, items)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit expense batch: %w", err)
	}
	return ids, nil
}

func (s *SQLiteStorage) saveExpenseRecordsTx(ctx context.Context, q queryable, items []model.Record) ([]int64, error) {
	otherID, err := s.getOrCreateOtherTx(ctx, q)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(items))
	for i, item := range items {
		var categoryID int64
		switch {
		case item.CategoryID != nil:
			categoryID = *item.CategoryID
		case item.Category != "":
			categoryID, err = s.resolveCategoryIDTx(ctx, q, item.Category, &otherID)
			if err != nil {
				return nil, fmt.Errorf("record at index %d: %w", i, err)
			}
		default:
			categoryID = otherID
		}

		raw := map[string]any{
			"date":        item.Date.Format(model.DateFormat),
			"description": item.Description,
			"amount":      item.Amount,
			"category":    nil,
			"category_id": categoryID,
		}
		if item.Category != "" {
			raw["category"] = item.Category
		}

		id, err := s.addExpenseWithDedupeTx(ctx, q, item.Date, item.Amount, item.Description, categoryID, raw, true)
		if err != nil {
			return nil, fmt.Errorf("record at index %d: %w", i, err)
		}
		ids = append(ids, id)
	}

	slog.Info("saved expense batch", "count", len(ids))
	return ids, nil
}

// ExpensesBetween returns expenses with date in [start, end] inclusive,
// optionally filtered to one category, with the category name joined in.
// Ordering is (date, id) in the requested direction; id breaks ties so equal
// dates always list deterministically.
func (s *SQLiteStorage) ExpensesBetween(ctx context.Context, query service.ExpenseRange) ([]model.Expense, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateExpenseRange(query); err != nil {
		return nil, err
	}
	return s.expensesBetweenTx(ctx, s.db, query)
}

func (s *SQLiteStorage) expensesBetweenTx(ctx context.Context, q queryable, query service.ExpenseRange) ([]model.Expense, error) {
	sqlQuery := `
		SELECT e.id, e.date, e.amount, e.description, e.category_id, c.name, e.created_at
		FROM expenses e
		JOIN categories c ON c.id = e.category_id
		WHERE e.date BETWEEN ? AND ?`
	args := []any{query.Start.Format(model.DateFormat), query.End.Format(model.DateFormat)}

	if query.CategoryID != nil {
		sqlQuery += ` AND e.category_id = ?`
		args = append(args, *query.CategoryID)
	}

	if query.Order == model.SortAsc {
		sqlQuery += `
		ORDER BY e.date ASC, e.id ASC`
	} else {
		sqlQuery += `
		ORDER BY e.date DESC, e.id DESC`
	}

	if query.Limit != nil {
		sqlQuery += ` LIMIT ? OFFSET ?`
		args = append(args, *query.Limit, query.Offset)
	}

	rows, err := q.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanExpenses(rows, false)
}

// SumCategoryExpenses sums the amounts for one category over an inclusive
// date range. An empty range sums to zero.
func (s *SQLiteStorage) SumCategoryExpenses(ctx context.Context, categoryID int64, start, end time.Time) (float64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateDateRange(start, end); err != nil {
		return 0, err
	}
	return s.sumCategoryExpensesTx(ctx, s.db, categoryID, start, end)
}

func (s *SQLiteStorage) sumCategoryExpensesTx(ctx context.Context, q queryable, categoryID int64, start, end time.Time) (float64, error) {
	var total float64
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0.0)
		FROM expenses
		WHERE category_id = ? AND date BETWEEN ? AND ?`,
		categoryID, start.Format(model.DateFormat), end.Format(model.DateFormat),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum category expenses: %w", err)
	}
	return total, nil
}

// ListRecentExpenses returns the most recent expenses first, ordered by
// (date, amount, id) descending, optionally bounded below by since.
func (s *SQLiteStorage) ListRecentExpenses(ctx context.Context, limit, offset int, since *time.Time) ([]model.Expense, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateOffset(offset); err != nil {
		return nil, err
	}
	return s.listRecentExpensesTx(ctx, s.db, limit, offset, since)
}

func (s *SQLiteStorage) listRecentExpensesTx(ctx context.Context, q queryable, limit, offset int, since *time.Time) ([]model.Expense, error) {
	if limit <= 0 {
		limit = 50
	}

	sqlQuery := `
		SELECT e.id, e.date, e.amount, e.description, e.category_id, c.name, e.created_at
		FROM expenses e
		LEFT JOIN categories c ON c.id = e.category_id`
	var args []any

	if since != nil {
		sqlQuery += `
		WHERE e.date >= ?`
		args = append(args, since.Format(model.DateFormat))
	}

	sqlQuery += `
		ORDER BY e.date DESC, e.amount DESC, e.id DESC
		LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := q.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent expenses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanExpenses(rows, true)
}

// scanExpenses reads expense rows from a query that selects
// (id, date, amount, description, category_id, category_name, created_at).
// nullableCategory tolerates a NULL category name from a LEFT JOIN.
func scanExpenses(rows *sql.Rows, nullableCategory bool) ([]model.Expense, error) {
	var expenses []model.Expense
	for rows.Next() {
		var (
			exp      model.Expense
			dateText string
		)
		if nullableCategory {
			var name sql.NullString
			if err := rows.Scan(&exp.ID, &dateText, &exp.Amount, &exp.Description, &exp.CategoryID, &name, &exp.CreatedAt); err != nil {
				return nil, fmt.Errorf("failed to scan expense: %w", err)
			}
			exp.CategoryName = name.String
		} else {
			if err := rows.Scan(&exp.ID, &dateText, &exp.Amount, &exp.Description, &exp.CategoryID, &exp.CategoryName, &exp.CreatedAt); err != nil {
				return nil, fmt.Errorf("failed to scan expense: %w", err)
			}
		}

		date, err := time.Parse(model.DateFormat, dateText)
		if err != nil {
			return nil, fmt.Errorf("failed to parse expense date %q: %w", dateText, err)
		}
		exp.Date = date
		expenses = append(expenses, exp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expenses: %w", err)
	}
	return expenses, nil
}
