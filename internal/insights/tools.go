package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Veraticus/follow-the-money/internal/model"
	"github.com/Veraticus/follow-the-money/internal/service"
)

// Tool names exposed to the model. All of them are read-only.
const (
	toolListExpenses          = "list_expenses"
	toolExpensesBetween       = "expenses_between"
	toolSumForCategoryBetween = "sum_for_category_between"
	toolTotalsByCategory      = "totals_by_category"
	toolActiveCategories      = "active_categories"
)

// toolDefinitions returns the function schemas offered to the model.
func toolDefinitions() []map[string]any {
	return []map[string]any{
		{
			"type": "function",
			"function": map[string]any{
				"name":        toolListExpenses,
				"description": "List recent expenses (most recent first). Safe, read-only.",
				"parameters": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"limit":  map[string]any{"type": "integer", "minimum": 1, "maximum": 500, "default": 50},
						"offset": map[string]any{"type": "integer", "minimum": 0, "default": 0},
						"since":  map[string]any{"type": []string{"string", "null"}, "description": "ISO date YYYY-MM-DD"},
					},
					"additionalProperties": false,
				},
			},
		},
		{
			"type": "function",
			"function": map[string]any{
				"name":        toolExpensesBetween,
				"description": "Return expenses in [start_date, end_date], optional category filter.",
				"parameters": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"start_date": map[string]any{"type": "string", "description": "YYYY-MM-DD"},
						"end_date":   map[string]any{"type": "string", "description": "YYYY-MM-DD"},
						"category":   map[string]any{"type": []string{"string", "null"}},
						"limit":      map[string]any{"type": []string{"integer", "null"}, "minimum": 1, "maximum": 10000},
						"offset":     map[string]any{"type": "integer", "minimum": 0, "default": 0},
						"order":      map[string]any{"type": "string", "enum": []string{"asc", "desc"}, "default": "asc"},
					},
					"required":             []string{"start_date", "end_date"},
					"additionalProperties": false,
				},
			},
		},
		{
			"type": "function",
			"function": map[string]any{
				"name":        toolSumForCategoryBetween,
				"description": "Sum of amounts for a category within a date range.",
				"parameters": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"category":   map[string]any{"type": "string"},
						"start_date": map[string]any{"type": "string", "description": "YYYY-MM-DD"},
						"end_date":   map[string]any{"type": "string", "description": "YYYY-MM-DD"},
					},
					"required":             []string{"category", "start_date", "end_date"},
					"additionalProperties": false,
				},
			},
		},
		{
			"type": "function",
			"function": map[string]any{
				"name":        toolTotalsByCategory,
				"description": "Per-category totals within a date range.",
				"parameters": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"start_date":   map[string]any{"type": "string", "description": "YYYY-MM-DD"},
						"end_date":     map[string]any{"type": "string", "description": "YYYY-MM-DD"},
						"only_active":  map[string]any{"type": "boolean", "default": true},
						"include_zero": map[string]any{"type": "boolean", "default": false},
						"order":        map[string]any{"type": "string", "enum": []string{"asc", "desc"}, "default": "desc"},
						"limit":        map[string]any{"type": []string{"integer", "null"}, "minimum": 1, "maximum": 10000},
						"offset":       map[string]any{"type": "integer", "minimum": 0, "default": 0},
					},
					"required":             []string{"start_date", "end_date"},
					"additionalProperties": false,
				},
			},
		},
		{
			"type": "function",
			"function": map[string]any{
				"name":        toolActiveCategories,
				"description": "Return active category names plus the fallback category id.",
				"parameters": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"limit": map[string]any{"type": "integer", "minimum": 1, "maximum": 500, "default": 50},
					},
					"additionalProperties": false,
				},
			},
		},
	}
}

// dispatchTool executes one read-only tool call against storage. Unknown
// category names return empty results rather than creating the fallback row.
func dispatchTool(ctx context.Context, store service.Storage, name string, arguments string) (any, error) {
	args := arguments
	if args == "" {
		args = "{}"
	}

	switch name {
	case toolListExpenses:
		var a struct {
			Limit  int     `json:"limit"`
			Offset int     `json:"offset"`
			Since  *string `json:"since"`
		}
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return nil, fmt.Errorf("invalid %s arguments: %w", name, err)
		}
		if a.Limit <= 0 {
			a.Limit = 50
		}
		var since *time.Time
		if a.Since != nil && *a.Since != "" {
			parsed, err := time.Parse(model.DateFormat, *a.Since)
			if err != nil {
				return nil, fmt.Errorf("invalid since date: %w", err)
			}
			since = &parsed
		}
		expenses, err := store.ListRecentExpenses(ctx, a.Limit, a.Offset, since)
		if err != nil {
			return nil, err
		}
		return expenseRows(expenses), nil

	case toolExpensesBetween:
		var a struct {
			StartDate string  `json:"start_date"`
			EndDate   string  `json:"end_date"`
			Category  *string `json:"category"`
			Limit     *int    `json:"limit"`
			Offset    int     `json:"offset"`
			Order     string  `json:"order"`
		}
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return nil, fmt.Errorf("invalid %s arguments: %w", name, err)
		}
		start, end, err := parseWindow(a.StartDate, a.EndDate)
		if err != nil {
			return nil, err
		}
		order := model.SortAsc
		if a.Order != "" {
			order, err = model.ParseSortOrder(a.Order)
			if err != nil {
				return nil, err
			}
		}
		query := service.ExpenseRange{
			Start:  start,
			End:    end,
			Limit:  a.Limit,
			Offset: a.Offset,
			Order:  order,
		}
		if a.Category != nil && *a.Category != "" {
			category, err := store.GetCategoryByName(ctx, *a.Category)
			if err != nil {
				return nil, err
			}
			if category == nil {
				return []map[string]any{}, nil
			}
			query.CategoryID = &category.ID
		}
		expenses, err := store.ExpensesBetween(ctx, query)
		if err != nil {
			return nil, err
		}
		return expenseRows(expenses), nil

	case toolSumForCategoryBetween:
		var a struct {
			Category  string `json:"category"`
			StartDate string `json:"start_date"`
			EndDate   string `json:"end_date"`
		}
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return nil, fmt.Errorf("invalid %s arguments: %w", name, err)
		}
		start, end, err := parseWindow(a.StartDate, a.EndDate)
		if err != nil {
			return nil, err
		}
		category, err := store.GetCategoryByName(ctx, a.Category)
		if err != nil {
			return nil, err
		}
		if category == nil {
			return 0.0, nil
		}
		return store.SumCategoryExpenses(ctx, category.ID, start, end)

	case toolTotalsByCategory:
		var a struct {
			StartDate   string `json:"start_date"`
			EndDate     string `json:"end_date"`
			OnlyActive  *bool  `json:"only_active"`
			IncludeZero bool   `json:"include_zero"`
			Order       string `json:"order"`
			Limit       *int   `json:"limit"`
			Offset      int    `json:"offset"`
		}
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return nil, fmt.Errorf("invalid %s arguments: %w", name, err)
		}
		start, end, err := parseWindow(a.StartDate, a.EndDate)
		if err != nil {
			return nil, err
		}
		onlyActive := true
		if a.OnlyActive != nil {
			onlyActive = *a.OnlyActive
		}
		order := model.SortDesc
		if a.Order != "" {
			order, err = model.ParseSortOrder(a.Order)
			if err != nil {
				return nil, err
			}
		}
		totals, err := store.CategoryTotals(ctx, start, end, service.TotalsFilter{
			OnlyActive:  &onlyActive,
			IncludeZero: a.IncludeZero,
			Order:       order,
			Limit:       a.Limit,
			Offset:      a.Offset,
		})
		if err != nil {
			return nil, err
		}
		return totalRows(totals), nil

	case toolActiveCategories:
		var a struct {
			Limit int `json:"limit"`
		}
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return nil, fmt.Errorf("invalid %s arguments: %w", name, err)
		}
		if a.Limit <= 0 {
			a.Limit = 50
		}
		names, otherID, err := store.ActiveNamesWithOther(ctx, a.Limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"names": names, "other_id": otherID}, nil
	}

	return nil, fmt.Errorf("unknown or disallowed tool: %s", name)
}

func parseWindow(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := time.Parse(model.DateFormat, startDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date: %w", err)
	}
	end, err := time.Parse(model.DateFormat, endDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date: %w", err)
	}
	return start, end, nil
}

func expenseRows(expenses []model.Expense) []map[string]any {
	rows := make([]map[string]any, 0, len(expenses))
	for _, e := range expenses {
		rows = append(rows, map[string]any{
			"id":          e.ID,
			"date":        e.Date.Format(model.DateFormat),
			"description": e.Description,
			"amount":      e.Amount,
			"category":    e.CategoryName,
		})
	}
	return rows
}

func totalRows(totals []model.CategoryTotal) []map[string]any {
	rows := make([]map[string]any, 0, len(totals))
	for _, t := range totals {
		rows = append(rows, map[string]any{
			"category_id": t.CategoryID,
			"category":    t.Name,
			"total":       t.Total,
			"is_active":   t.IsActive,
		})
	}
	return rows
}
