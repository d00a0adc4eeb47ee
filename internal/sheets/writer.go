// Package sheets exports expense data to a Google Spreadsheet so reports can
// be shared outside the CLI.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"github.com/Veraticus/follow-the-money/internal/common"
	"github.com/Veraticus/follow-the-money/internal/model"
	"github.com/Veraticus/follow-the-money/internal/service"
)

// Config holds spreadsheet and credential settings for the exporter.
type Config struct {
	SpreadsheetID   string
	CredentialsJSON string // inline service account JSON, takes precedence
	CredentialsFile string // path to a service account JSON file
	ExpensesSheet   string // default "Expenses"
	TotalsSheet     string // default "Totals"
}

// Validate ensures the exporter can be constructed.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SpreadsheetID) == "" {
		return errors.New("spreadsheet ID is required")
	}
	if strings.TrimSpace(c.CredentialsJSON) == "" && strings.TrimSpace(c.CredentialsFile) == "" {
		return errors.New("service account credentials are required (inline JSON or file path)")
	}
	return nil
}

// Writer pushes expense rows and category totals to a spreadsheet.
type Writer struct {
	svc           *gsheet.Service
	logger        *slog.Logger
	spreadsheetID string
	expensesSheet string
	totalsSheet   string
	retryOpts     service.RetryOptions
}

// NewWriter authenticates with a service account and returns a Writer.
func NewWriter(ctx context.Context, cfg Config) (*Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	credentialsJSON := []byte(cfg.CredentialsJSON)
	if len(strings.TrimSpace(cfg.CredentialsJSON)) == 0 {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	}

	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}

	svc, err := gsheet.NewService(ctx, goption.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	expensesSheet := cfg.ExpensesSheet
	if expensesSheet == "" {
		expensesSheet = "Expenses"
	}
	totalsSheet := cfg.TotalsSheet
	if totalsSheet == "" {
		totalsSheet = "Totals"
	}

	return &Writer{
		svc:           svc,
		logger:        slog.Default().With("component", "sheets"),
		spreadsheetID: cfg.SpreadsheetID,
		expensesSheet: expensesSheet,
		totalsSheet:   totalsSheet,
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     15 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// WriteExpenses replaces the expenses sheet with the given rows, newest first
// as provided by the caller.
func (w *Writer) WriteExpenses(ctx context.Context, expenses []model.Expense) error {
	if w.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rows := expenseRows(expenses)
	if err := w.replaceSheet(ctx, w.expensesSheet, rows); err != nil {
		return err
	}

	w.logger.Info("Exported expenses", "rows", len(expenses), "sheet", w.expensesSheet)
	return nil
}

// WriteTotals replaces the totals sheet with per-category totals for the
// given window.
func (w *Writer) WriteTotals(ctx context.Context, totals []model.CategoryTotal, start, end time.Time) error {
	if w.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rows := totalsRows(totals, start, end)
	if err := w.replaceSheet(ctx, w.totalsSheet, rows); err != nil {
		return err
	}

	w.logger.Info("Exported totals", "categories", len(totals), "sheet", w.totalsSheet)
	return nil
}

// replaceSheet clears the target sheet and writes the rows starting at A1.
// Both calls retry on transient API failures.
func (w *Writer) replaceSheet(ctx context.Context, sheetName string, rows [][]any) error {
	clearRange := fmt.Sprintf("%s!A:Z", sheetName)
	err := common.WithRetry(ctx, func() error {
		_, err := w.svc.Spreadsheets.Values.Clear(w.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
			Context(ctx).Do()
		if err != nil {
			return &common.RetryableError{Err: fmt.Errorf("clear %s: %w", clearRange, err), Retryable: true}
		}
		return nil
	}, w.retryOpts)
	if err != nil {
		return err
	}

	writeRange := fmt.Sprintf("%s!A1", sheetName)
	vr := &gsheet.ValueRange{Values: rows}
	return common.WithRetry(ctx, func() error {
		_, err := w.svc.Spreadsheets.Values.Update(w.spreadsheetID, writeRange, vr).
			ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return &common.RetryableError{Err: fmt.Errorf("update %s: %w", writeRange, err), Retryable: true}
		}
		return nil
	}, w.retryOpts)
}

// expenseRows builds the header and one row per expense.
func expenseRows(expenses []model.Expense) [][]any {
	rows := make([][]any, 0, len(expenses)+1)
	rows = append(rows, []any{"Date", "Description", "Category", "Amount"})
	for _, e := range expenses {
		category := e.CategoryName
		if category == "" {
			category = model.FallbackCategoryName
		}
		rows = append(rows, []any{
			e.Date.Format(model.DateFormat),
			e.Description,
			category,
			e.Amount,
		})
	}
	return rows
}

// totalsRows builds the window header, column header, and one row per
// category with a trailing grand total.
func totalsRows(totals []model.CategoryTotal, start, end time.Time) [][]any {
	rows := make([][]any, 0, len(totals)+3)
	rows = append(rows, []any{
		fmt.Sprintf("Totals %s to %s", start.Format(model.DateFormat), end.Format(model.DateFormat)),
	})
	rows = append(rows, []any{"Category", "Total"})

	var grand float64
	for _, t := range totals {
		rows = append(rows, []any{t.Name, t.Total})
		grand += t.Total
	}
	rows = append(rows, []any{"TOTAL", grand})
	return rows
}
