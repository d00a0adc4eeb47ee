package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/follow-the-money/internal/model"
	"github.com/Veraticus/follow-the-money/internal/service"
)

// CategoryTotals aggregates expense amounts per category over an inclusive
// date window.
//
// With IncludeZero set, the report is anchored on the category set: the date
// window lives inside the join condition, so categories with no expenses in
// range still appear with a 0.0 total. Without it, only categories with at
// least one expense in range appear.
//
// OnlyActive selects active categories (true), inactive ones (false), or all
// (nil). For spend-only reports over all categories, ExcludeInactiveSpend
// drops inactive categories that still carry in-range spend; the default
// keeps them, since their historical expenses are real.
//
// Ordering is by total with name as tie-break, both following the requested
// direction, so tied totals always list deterministically.
func (s *SQLiteStorage) CategoryTotals(ctx context.Context, start, end time.Time, filter service.TotalsFilter) ([]model.CategoryTotal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateDateRange(start, end); err != nil {
		return nil, err
	}
	if err := validateLimit(filter.Limit); err != nil {
		return nil, err
	}
	if err := validateOffset(filter.Offset); err != nil {
		return nil, err
	}
	return s.categoryTotalsTx(ctx, s.db, start, end, filter)
}

func (s *SQLiteStorage) categoryTotalsTx(ctx context.Context, q queryable, start, end time.Time, filter service.TotalsFilter) ([]model.CategoryTotal, error) {
	startText := start.Format(model.DateFormat)
	endText := end.Format(model.DateFormat)

	var (
		sqlQuery string
		args     []any
	)
	if filter.IncludeZero {
		sqlQuery = `
		SELECT c.id, c.name, c.is_active, COALESCE(SUM(e.amount), 0.0) AS total
		FROM categories c
		LEFT JOIN expenses e
			ON e.category_id = c.id AND e.date BETWEEN ? AND ?
		WHERE 1 = 1`
		args = append(args, startText, endText)
	} else {
		sqlQuery = `
		SELECT c.id, c.name, c.is_active, COALESCE(SUM(e.amount), 0.0) AS total
		FROM categories c
		JOIN expenses e ON e.category_id = c.id
		WHERE e.date BETWEEN ? AND ?`
		args = append(args, startText, endText)
	}

	switch {
	case filter.OnlyActive != nil:
		sqlQuery += ` AND c.is_active = ?`
		args = append(args, *filter.OnlyActive)
	case !filter.IncludeZero && filter.ExcludeInactiveSpend:
		sqlQuery += ` AND c.is_active = 1`
	}

	sqlQuery += `
		GROUP BY c.id, c.name, c.is_active`

	if filter.Order == model.SortAsc {
		sqlQuery += `
		ORDER BY total ASC, c.name ASC`
	} else {
		sqlQuery += `
		ORDER BY total DESC, c.name DESC`
	}

	if filter.Limit != nil {
		sqlQuery += ` LIMIT ? OFFSET ?`
		args = append(args, *filter.Limit, filter.Offset)
	}

	rows, err := q.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query category totals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var totals []model.CategoryTotal
	for rows.Next() {
		var row model.CategoryTotal
		if err := rows.Scan(&row.CategoryID, &row.Name, &row.IsActive, &row.Total); err != nil {
			return nil, fmt.Errorf("failed to scan category total: %w", err)
		}
		totals = append(totals, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category totals: %w", err)
	}

	slog.Debug("computed category totals",
		"rows", len(totals),
		"start", startText,
		"end", endText,
		"include_zero", filter.IncludeZero)
	return totals, nil
}
