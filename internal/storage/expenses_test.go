package storage

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/follow-the-money/internal/model"
	"github.com/Veraticus/follow-the-money/internal/service"
)

func TestAddExpenseWithDedupe_Idempotent(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	cat, err := store.CreateCategory(ctx, "groceries", "")
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}

	raw := map[string]any{"date": "2025-06-01", "description": "ICA 45.67", "amount": -45.67}
	date := testDate(t, "2025-06-01")

	first, err := store.AddExpenseWithDedupe(ctx, date, -45.67, "ICA 45.67", cat.ID, raw, true)
	if err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	second, err := store.AddExpenseWithDedupe(ctx, date, -45.67, "ICA 45.67", cat.ID, raw, true)
	if err != nil {
		t.Fatalf("Second insert failed: %v", err)
	}
	if first != second {
		t.Errorf("Dedupe returned ids %d then %d, want same id", first, second)
	}

	var count int
	if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM expenses").Scan(&count); err != nil {
		t.Fatalf("Failed to count expenses: %v", err)
	}
	if count != 1 {
		t.Errorf("Store holds %d rows for one payload, want 1", count)
	}
}

func TestAddExpenseWithDedupe_DisabledCreatesDuplicates(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	cat, err := store.CreateCategory(ctx, "groceries", "")
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	date := testDate(t, "2025-06-01")

	first, err := store.AddExpenseWithDedupe(ctx, date, -10, "same", cat.ID, nil, false)
	if err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	second, err := store.AddExpenseWithDedupe(ctx, date, -10, "same", cat.ID, nil, false)
	if err != nil {
		t.Fatalf("Second insert failed: %v", err)
	}
	if first == second {
		t.Error("Inserts without dedupe returned the same id")
	}
}

func TestSaveExpenseRecords(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.SeedDefaultCategories(ctx); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	groceries, err := store.GetCategoryByName(ctx, "groceries")
	if err != nil || groceries == nil {
		t.Fatalf("groceries category missing: %v", err)
	}
	other, err := store.GetOrCreateOther(ctx)
	if err != nil {
		t.Fatalf("GetOrCreateOther failed: %v", err)
	}

	records := []model.Record{
		{Date: testDate(t, "2025-06-01"), Amount: -45.67, Description: "ICA 45.67", Category: "groceries"},
		{Date: testDate(t, "2025-06-02"), Amount: -12.00, Description: "mystery shop", Category: "no-such-category"},
		{Date: testDate(t, "2025-06-03"), Amount: -7.50, Description: "no hint at all"},
		{Date: testDate(t, "2025-06-04"), Amount: -99.00, Description: "explicit id", CategoryID: &groceries.ID},
	}

	ids, err := store.SaveExpenseRecords(ctx, records)
	if err != nil {
		t.Fatalf("SaveExpenseRecords failed: %v", err)
	}
	if len(ids) != len(records) {
		t.Fatalf("Got %d ids, want %d", len(ids), len(records))
	}

	checks := []struct {
		wantCategory int64
		index        int
	}{
		{groceries.ID, 0},
		{other, 1},
		{other, 2},
		{groceries.ID, 3},
	}
	for _, check := range checks {
		var categoryID int64
		err := store.db.QueryRowContext(ctx,
			"SELECT category_id FROM expenses WHERE id = ?", ids[check.index]).Scan(&categoryID)
		if err != nil {
			t.Fatalf("Failed to read expense %d: %v", ids[check.index], err)
		}
		if categoryID != check.wantCategory {
			t.Errorf("Record %d resolved to category %d, want %d", check.index, categoryID, check.wantCategory)
		}
	}

	// Saving the same batch again dedupes every record to the same ids.
	again, err := store.SaveExpenseRecords(ctx, records)
	if err != nil {
		t.Fatalf("Second SaveExpenseRecords failed: %v", err)
	}
	for i := range ids {
		if again[i] != ids[i] {
			t.Errorf("Resaved record %d got id %d, want %d", i, again[i], ids[i])
		}
	}
}

func TestExpensesBetween(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.SeedDefaultCategories(ctx); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	records := []model.Record{
		{Date: testDate(t, "2025-06-01"), Amount: -45.67, Description: "ICA 45.67", Category: "groceries"},
		{Date: testDate(t, "2025-06-01"), Amount: -3.20, Description: "bus", Category: "transportation"},
		{Date: testDate(t, "2025-06-15"), Amount: -80.00, Description: "dinner", Category: "restaurants"},
		{Date: testDate(t, "2025-07-01"), Amount: -15.00, Description: "outside range", Category: "groceries"},
	}
	if _, err := store.SaveExpenseRecords(ctx, records); err != nil {
		t.Fatalf("SaveExpenseRecords failed: %v", err)
	}

	// Concrete scenario: a single day window returns exactly the one
	// groceries record with its category name joined in.
	groceries, err := store.GetCategoryByName(ctx, "groceries")
	if err != nil || groceries == nil {
		t.Fatalf("groceries category missing: %v", err)
	}
	got, err := store.ExpensesBetween(ctx, service.ExpenseRange{
		Start:      testDate(t, "2025-06-01"),
		End:        testDate(t, "2025-06-01"),
		CategoryID: &groceries.ID,
		Order:      model.SortDesc,
	})
	if err != nil {
		t.Fatalf("ExpensesBetween failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Got %d expenses, want 1", len(got))
	}
	if got[0].CategoryName != "groceries" || got[0].Amount != -45.67 {
		t.Errorf("Got %q/%v, want groceries/-45.67", got[0].CategoryName, got[0].Amount)
	}

	// Full June, ascending: id breaks the 2025-06-01 tie deterministically.
	got, err = store.ExpensesBetween(ctx, service.ExpenseRange{
		Start: testDate(t, "2025-06-01"),
		End:   testDate(t, "2025-06-30"),
		Order: model.SortAsc,
	})
	if err != nil {
		t.Fatalf("ExpensesBetween failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Got %d expenses, want 3", len(got))
	}
	if got[0].Description != "ICA 45.67" || got[1].Description != "bus" || got[2].Description != "dinner" {
		t.Errorf("Ascending order wrong: %q, %q, %q", got[0].Description, got[1].Description, got[2].Description)
	}

	// Descending reverses the same ordering.
	got, err = store.ExpensesBetween(ctx, service.ExpenseRange{
		Start: testDate(t, "2025-06-01"),
		End:   testDate(t, "2025-06-30"),
		Order: model.SortDesc,
	})
	if err != nil {
		t.Fatalf("ExpensesBetween failed: %v", err)
	}
	if got[0].Description != "dinner" || got[2].Description != "ICA 45.67" {
		t.Errorf("Descending order wrong: %q ... %q", got[0].Description, got[2].Description)
	}

	// Limit and offset page through results.
	limit := 1
	got, err = store.ExpensesBetween(ctx, service.ExpenseRange{
		Start:  testDate(t, "2025-06-01"),
		End:    testDate(t, "2025-06-30"),
		Limit:  &limit,
		Offset: 1,
		Order:  model.SortAsc,
	})
	if err != nil {
		t.Fatalf("ExpensesBetween failed: %v", err)
	}
	if len(got) != 1 || got[0].Description != "bus" {
		t.Errorf("Paged query got %v", got)
	}
}

func TestExpensesBetween_InvalidRange(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.ExpensesBetween(ctx, service.ExpenseRange{
		Start: testDate(t, "2025-06-30"),
		End:   testDate(t, "2025-06-01"),
		Order: model.SortDesc,
	})
	if err == nil {
		t.Error("Expected error for end before start")
	}
}

func TestSumCategoryExpenses(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	cat, err := store.CreateCategory(ctx, "groceries", "")
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}

	amounts := []float64{-45.67, -12.33, -10.00}
	for i, amount := range amounts {
		date := testDate(t, "2025-06-01").AddDate(0, 0, i)
		if _, err := store.AddExpenseWithDedupe(ctx, date, amount, "x", cat.ID, nil, false); err != nil {
			t.Fatalf("AddExpenseWithDedupe failed: %v", err)
		}
	}

	total, err := store.SumCategoryExpenses(ctx, cat.ID, testDate(t, "2025-06-01"), testDate(t, "2025-06-30"))
	if err != nil {
		t.Fatalf("SumCategoryExpenses failed: %v", err)
	}
	if want := -68.00; total != want {
		t.Errorf("Sum = %v, want %v", total, want)
	}

	// A window with no matching rows sums to zero, never errors.
	total, err = store.SumCategoryExpenses(ctx, cat.ID, testDate(t, "2030-01-01"), testDate(t, "2030-12-31"))
	if err != nil {
		t.Fatalf("SumCategoryExpenses on empty range failed: %v", err)
	}
	if total != 0.0 {
		t.Errorf("Sum over empty range = %v, want 0.0", total)
	}
}

func TestListRecentExpenses(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	cat, err := store.CreateCategory(ctx, "groceries", "")
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}

	// Two expenses share 2025-06-02; amount breaks that tie.
	inserts := []struct {
		date   string
		desc   string
		amount float64
	}{
		{"2025-06-01", "oldest", -5},
		{"2025-06-02", "mid small", -20},
		{"2025-06-02", "mid large", -1},
		{"2025-06-03", "newest", -10},
	}
	for _, in := range inserts {
		if _, err := store.AddExpenseWithDedupe(ctx, testDate(t, in.date), in.amount, in.desc, cat.ID, nil, false); err != nil {
			t.Fatalf("AddExpenseWithDedupe failed: %v", err)
		}
	}

	got, err := store.ListRecentExpenses(ctx, 10, 0, nil)
	if err != nil {
		t.Fatalf("ListRecentExpenses failed: %v", err)
	}
	wantOrder := []string{"newest", "mid large", "mid small", "oldest"}
	if len(got) != len(wantOrder) {
		t.Fatalf("Got %d expenses, want %d", len(got), len(wantOrder))
	}
	for i, want := range wantOrder {
		if got[i].Description != want {
			t.Errorf("got[%d] = %q, want %q", i, got[i].Description, want)
		}
	}
	if got[0].CategoryName != "groceries" {
		t.Errorf("Category name = %q, want groceries", got[0].CategoryName)
	}

	since := testDate(t, "2025-06-02")
	got, err = store.ListRecentExpenses(ctx, 10, 0, &since)
	if err != nil {
		t.Fatalf("ListRecentExpenses with since failed: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("Since filter returned %d expenses, want 3", len(got))
	}

	got, err = store.ListRecentExpenses(ctx, 2, 1, nil)
	if err != nil {
		t.Fatalf("ListRecentExpenses with paging failed: %v", err)
	}
	if len(got) != 2 || got[0].Description != "mid large" {
		t.Errorf("Paged list got %v", got)
	}
}

func TestAddExpenseWithDedupe_Validation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := store.AddExpenseWithDedupe(ctx, time.Time{}, -1, "x", 1, nil, false); err == nil {
		t.Error("Expected error for zero date")
	}
}
