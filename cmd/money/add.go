package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/follow-the-money/internal/cli"
	"github.com/Veraticus/follow-the-money/internal/model"
)

func addCmd() *cobra.Command {
	var (
		date     string
		category string
	)

	cmd := &cobra.Command{
		Use:   "add <description> <amount>",
		Short: "Record a single expense",
		Long: `Record one expense directly. Spend is negative, inflow positive. Without
--category the transaction is classified automatically.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			amount, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[1])
			}

			recordDate := time.Now()
			if date != "" {
				recordDate, err = parseDate(date)
				if err != nil {
					return err
				}
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			record := model.Record{
				Date:        recordDate,
				Description: args[0],
				Amount:      amount,
				Category:    category,
			}

			var ids []int64
			if category != "" {
				// An explicit category needs no classifier.
				ids, err = store.SaveExpenseRecords(ctx, []model.Record{record})
			} else {
				eng, closeEngine, engineErr := newEngine(store)
				if engineErr != nil {
					return engineErr
				}
				defer closeEngine()
				ids, err = eng.SaveRecords(ctx, []model.Record{record})
			}
			if err != nil {
				return fmt.Errorf("failed to save expense: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Saved expense %d", ids[0])))
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Expense date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&category, "category", "", "Category name (skips classification)")

	return cmd
}
