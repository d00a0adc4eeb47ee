package tui

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/follow-the-money/internal/model"
	"github.com/Veraticus/follow-the-money/internal/service"
	"github.com/Veraticus/follow-the-money/internal/storage"
)

func newTestStorage(t *testing.T) service.Storage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.SeedDefaultCategories(ctx))

	return store
}

func seedExpenses(t *testing.T, store service.Storage, count int) {
	t.Helper()

	records := make([]model.Record, 0, count)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < count; i++ {
		records = append(records, model.Record{
			Date:        base.AddDate(0, 0, i),
			Description: "EXPENSE",
			Amount:      -float64(i + 1),
			Category:    "groceries",
		})
	}
	_, err := store.SaveExpenseRecords(context.Background(), records)
	require.NoError(t, err)
}

func loadInitialPage(t *testing.T, m BrowseModel) BrowseModel {
	t.Helper()

	cmd := m.Init()
	require.NotNil(t, cmd)

	updated, _ := m.Update(cmd())
	return updated.(BrowseModel)
}

func TestBrowseModel_LoadsFirstPage(t *testing.T) {
	store := newTestStorage(t)
	seedExpenses(t, store, 3)

	m := NewBrowseModel(context.Background(), store)
	m = loadInitialPage(t, m)

	require.NoError(t, m.err)
	assert.Len(t, m.expenses, 3)
	assert.False(t, m.loading)
	assert.Equal(t, "EXPENSE", m.expenses[0].Description)
}

func TestBrowseModel_Paging(t *testing.T) {
	store := newTestStorage(t)

	m := NewBrowseModel(context.Background(), store)
	m.pageSize = 2
	seedExpenses(t, store, 5)
	m = loadInitialPage(t, m)
	require.Len(t, m.expenses, 2)

	// Next page
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	m = updated.(BrowseModel)
	require.NotNil(t, cmd)
	updated, _ = m.Update(cmd())
	m = updated.(BrowseModel)

	assert.Equal(t, 2, m.offset)
	assert.Len(t, m.expenses, 2)

	// Previous page
	updated, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	m = updated.(BrowseModel)
	require.NotNil(t, cmd)
	updated, _ = m.Update(cmd())
	m = updated.(BrowseModel)

	assert.Equal(t, 0, m.offset)
}

func TestBrowseModel_NextPageStopsAtPartialPage(t *testing.T) {
	store := newTestStorage(t)
	seedExpenses(t, store, 3)

	m := NewBrowseModel(context.Background(), store)
	m.pageSize = 5
	m = loadInitialPage(t, m)
	require.Len(t, m.expenses, 3)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	assert.Nil(t, cmd, "a short page means there is nothing further to load")
}

func TestBrowseModel_EmptyNextPageKeepsCurrent(t *testing.T) {
	store := newTestStorage(t)
	seedExpenses(t, store, 2)

	m := NewBrowseModel(context.Background(), store)
	m.pageSize = 2
	m = loadInitialPage(t, m)

	updated, _ := m.Update(pageLoadedMsg{expenses: nil, offset: 2})
	m = updated.(BrowseModel)

	assert.Equal(t, 0, m.offset, "running off the end keeps the current page")
	assert.Len(t, m.expenses, 2)
}

func TestBrowseModel_Quit(t *testing.T) {
	store := newTestStorage(t)

	m := NewBrowseModel(context.Background(), store)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestBrowseModel_ErrorShownInView(t *testing.T) {
	store := newTestStorage(t)

	m := NewBrowseModel(context.Background(), store)
	updated, _ := m.Update(pageLoadedMsg{err: errors.New("database is locked")})
	m = updated.(BrowseModel)

	assert.Contains(t, m.View(), "database is locked")
}

func TestExpenseTableRows(t *testing.T) {
	rows := expenseTableRows([]model.Expense{
		{
			ID:           7,
			Date:         time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			Description:  "ICA SUPERMARKET",
			CategoryName: "groceries",
			Amount:       -45.67,
		},
		{
			ID:          8,
			Date:        time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
			Description: "UNKNOWN",
			Amount:      -1.00,
		},
	})

	require.Len(t, rows, 2)
	assert.Equal(t, "7", rows[0][0])
	assert.Equal(t, "2025-06-01", rows[0][1])
	assert.Equal(t, "-45.67", rows[0][4])
	assert.Equal(t, "other", rows[1][3])
}
