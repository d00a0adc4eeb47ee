package cli

import (
	"fmt"
	"strings"

	"github.com/Veraticus/follow-the-money/internal/model"
)

// FormatAmount renders an amount with two decimals, styled by sign.
func FormatAmount(amount float64) string {
	text := fmt.Sprintf("%.2f", amount)
	if amount < 0 {
		return NegativeAmountStyle.Render(text)
	}
	return PositiveAmountStyle.Render(text)
}

// RenderExpensesTable formats expenses as an aligned table.
func RenderExpensesTable(expenses []model.Expense) string {
	if len(expenses) == 0 {
		return SubtleStyle.Render("No expenses found.")
	}

	var b strings.Builder
	b.WriteString(TableHeaderStyle.Render(fmt.Sprintf("%-6s %-12s %-40s %-16s %12s", "ID", "Date", "Description", "Category", "Amount")))
	b.WriteString("\n")

	for _, e := range expenses {
		category := e.CategoryName
		if category == "" {
			category = model.FallbackCategoryName
		}
		b.WriteString(fmt.Sprintf("%-6d %-12s %-40s %-16s %12s\n",
			e.ID,
			e.Date.Format(model.DateFormat),
			truncate(e.Description, 40),
			truncate(category, 16),
			FormatAmount(e.Amount)))
	}

	b.WriteString(SubtleStyle.Render(fmt.Sprintf("%d expense(s)", len(expenses))))
	return b.String()
}

// RenderTotalsTable formats per-category totals with a grand total row.
func RenderTotalsTable(totals []model.CategoryTotal) string {
	if len(totals) == 0 {
		return SubtleStyle.Render("No totals in this window.")
	}

	var b strings.Builder
	b.WriteString(TableHeaderStyle.Render(fmt.Sprintf("%-24s %12s", "Category", "Total")))
	b.WriteString("\n")

	var grand float64
	for _, t := range totals {
		name := t.Name
		if !t.IsActive {
			name = SubtleStyle.Render(name + " (inactive)")
		}
		b.WriteString(fmt.Sprintf("%-24s %12s\n", name, FormatAmount(t.Total)))
		grand += t.Total
	}

	b.WriteString(BoldStyle.Render(fmt.Sprintf("%-24s %12s", "TOTAL", fmt.Sprintf("%.2f", grand))))
	return b.String()
}

// RenderCategoriesTable formats the category vocabulary.
func RenderCategoriesTable(categories []model.Category) string {
	if len(categories) == 0 {
		return SubtleStyle.Render("No categories defined.")
	}

	var b strings.Builder
	b.WriteString(TableHeaderStyle.Render(fmt.Sprintf("%-6s %-20s %-40s %-8s", "ID", "Name", "Description", "Active")))
	b.WriteString("\n")

	for _, c := range categories {
		active := SuccessIcon
		if !c.IsActive {
			active = ErrorIcon
		}
		b.WriteString(fmt.Sprintf("%-6d %-20s %-40s %-8s\n",
			c.ID,
			truncate(c.Name, 20),
			truncate(c.Description, 40),
			active))
	}

	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
