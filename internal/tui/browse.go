// Package tui provides an interactive terminal browser over stored expenses.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/follow-the-money/internal/cli"
	"github.com/Veraticus/follow-the-money/internal/model"
	"github.com/Veraticus/follow-the-money/internal/service"
)

const defaultPageSize = 50

// BrowseModel is the bubbletea model for the expense browser.
type BrowseModel struct {
	ctx      context.Context
	storage  service.Storage
	table    table.Model
	err      error
	expenses []model.Expense
	pageSize int
	offset   int
	width    int
	height   int
	loading  bool
}

type pageLoadedMsg struct {
	err      error
	expenses []model.Expense
	offset   int
}

// NewBrowseModel creates the browser over the given storage.
func NewBrowseModel(ctx context.Context, storage service.Storage) BrowseModel {
	columns := []table.Column{
		{Title: "ID", Width: 6},
		{Title: "Date", Width: 10},
		{Title: "Description", Width: 40},
		{Title: "Category", Width: 16},
		{Title: "Amount", Width: 12},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(20),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#333")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(cli.PrimaryColor).
		Bold(false)
	t.SetStyles(s)

	return BrowseModel{
		ctx:      ctx,
		storage:  storage,
		table:    t,
		pageSize: defaultPageSize,
		loading:  true,
	}
}

// Init loads the first page.
func (m BrowseModel) Init() tea.Cmd {
	return m.loadPage(0)
}

func (m BrowseModel) loadPage(offset int) tea.Cmd {
	return func() tea.Msg {
		expenses, err := m.storage.ListRecentExpenses(m.ctx, m.pageSize, offset, nil)
		return pageLoadedMsg{expenses: expenses, offset: offset, err: err}
	}
}

// Update handles key presses and page loads.
func (m BrowseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(max(5, msg.Height-6))
		return m, nil

	case pageLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		// An empty page past the first means we ran off the end; keep the
		// current page.
		if len(msg.expenses) == 0 && msg.offset > 0 {
			return m, nil
		}
		m.err = nil
		m.expenses = msg.expenses
		m.offset = msg.offset
		m.table.SetRows(expenseTableRows(msg.expenses))
		m.table.SetCursor(0)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "right", "l", "n":
			if !m.loading && len(m.expenses) == m.pageSize {
				m.loading = true
				return m, m.loadPage(m.offset + m.pageSize)
			}
			return m, nil
		case "left", "h", "p":
			if !m.loading && m.offset > 0 {
				m.loading = true
				next := m.offset - m.pageSize
				if next < 0 {
					next = 0
				}
				return m, m.loadPage(next)
			}
			return m, nil
		case "r":
			m.loading = true
			return m, m.loadPage(m.offset)
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the table with a title and key help.
func (m BrowseModel) View() string {
	title := cli.FormatTitle("Expenses")

	if m.err != nil {
		return title + "\n" + cli.FormatError(m.err.Error()) + "\n"
	}

	status := fmt.Sprintf("page %d", m.offset/m.pageSize+1)
	if m.loading {
		status = "loading..."
	}

	help := cli.SubtleStyle.Render("←/→ page · r refresh · q quit")

	return lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		m.table.View(),
		cli.SubtleStyle.Render(status),
		help,
	)
}

// expenseTableRows converts expenses into table rows.
func expenseTableRows(expenses []model.Expense) []table.Row {
	rows := make([]table.Row, 0, len(expenses))
	for _, e := range expenses {
		category := e.CategoryName
		if category == "" {
			category = model.FallbackCategoryName
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", e.ID),
			e.Date.Format(model.DateFormat),
			e.Description,
			category,
			fmt.Sprintf("%.2f", e.Amount),
		})
	}
	return rows
}

// Browse runs the expense browser until the user quits.
func Browse(ctx context.Context, storage service.Storage) error {
	program := tea.NewProgram(NewBrowseModel(ctx, storage), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run expense browser: %w", err)
	}
	return nil
}
