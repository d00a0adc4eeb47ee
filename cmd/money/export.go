package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/follow-the-money/internal/cli"
	"github.com/Veraticus/follow-the-money/internal/model"
	"github.com/Veraticus/follow-the-money/internal/service"
	"github.com/Veraticus/follow-the-money/internal/sheets"
)

func exportCmd() *cobra.Command {
	var (
		startDate string
		endDate   string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export reports to Google Sheets",
		Long: `Write recent expenses and per-category totals for a date range to a
Google Spreadsheet. Requires a service account with access to the sheet.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			end := time.Now()
			if endDate != "" {
				parsed, err := parseDate(endDate)
				if err != nil {
					return err
				}
				end = parsed
			}
			start := end.AddDate(0, -1, 0)
			if startDate != "" {
				parsed, err := parseDate(startDate)
				if err != nil {
					return err
				}
				start = parsed
			}

			writer, err := sheets.NewWriter(ctx, sheets.Config{
				SpreadsheetID:   viper.GetString("sheets.spreadsheet_id"),
				CredentialsJSON: viper.GetString("sheets.credentials_json"),
				CredentialsFile: viper.GetString("sheets.credentials_file"),
				ExpensesSheet:   viper.GetString("sheets.expenses_sheet"),
				TotalsSheet:     viper.GetString("sheets.totals_sheet"),
			})
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			expenses, err := store.ListRecentExpenses(ctx, limit, 0, &start)
			if err != nil {
				return fmt.Errorf("failed to list expenses: %w", err)
			}
			if err := writer.WriteExpenses(ctx, expenses); err != nil {
				return fmt.Errorf("failed to export expenses: %w", err)
			}

			totals, err := store.CategoryTotals(ctx, start, end, service.TotalsFilter{
				Order: model.SortDesc,
			})
			if err != nil {
				return fmt.Errorf("failed to compute totals: %w", err)
			}
			if err := writer.WriteTotals(ctx, totals, start, end); err != nil {
				return fmt.Errorf("failed to export totals: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Exported %d expense(s) and %d total row(s)",
				len(expenses), len(totals))))
			return nil
		},
	}

	cmd.Flags().StringVar(&startDate, "start", "", "Start date (YYYY-MM-DD, default one month before end)")
	cmd.Flags().StringVar(&endDate, "end", "", "End date (YYYY-MM-DD, default today)")
	cmd.Flags().IntVar(&limit, "limit", 500, "Maximum expenses to export")

	return cmd
}
