package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/follow-the-money/internal/cli"
	"github.com/Veraticus/follow-the-money/internal/model"
	"github.com/Veraticus/follow-the-money/internal/service"
)

func listCmd() *cobra.Command {
	var (
		since  string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent expenses, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var sinceDate *time.Time
			if since != "" {
				parsed, err := parseDate(since)
				if err != nil {
					return err
				}
				sinceDate = &parsed
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			expenses, err := store.ListRecentExpenses(ctx, limit, offset, sinceDate)
			if err != nil {
				return fmt.Errorf("failed to list expenses: %w", err)
			}

			fmt.Println(cli.RenderExpensesTable(expenses))
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "Only expenses on or after this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")

	return cmd
}

func betweenCmd() *cobra.Command {
	var (
		category string
		order    string
		limit    int
		offset   int
	)

	cmd := &cobra.Command{
		Use:   "between <start> <end>",
		Short: "List expenses in a date range",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			start, err := parseDate(args[0])
			if err != nil {
				return err
			}
			end, err := parseDate(args[1])
			if err != nil {
				return err
			}
			sortOrder, err := model.ParseSortOrder(order)
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			eng, closeEngine, err := newEngine(store)
			if err != nil {
				return err
			}
			defer closeEngine()

			var limitPtr *int
			if limit > 0 {
				limitPtr = &limit
			}

			expenses, err := eng.ExpensesBetween(ctx, start, end, category, limitPtr, offset, sortOrder)
			if err != nil {
				return fmt.Errorf("failed to query expenses: %w", err)
			}

			fmt.Println(cli.RenderExpensesTable(expenses))
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Filter by category name")
	cmd.Flags().StringVar(&order, "order", "asc", "Sort order (asc, desc)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows (0 for all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip (with --limit)")

	return cmd
}

func sumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sum <category> <start> <end>",
		Short: "Sum a category's spend in a date range",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			start, err := parseDate(args[1])
			if err != nil {
				return err
			}
			end, err := parseDate(args[2])
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			eng, closeEngine, err := newEngine(store)
			if err != nil {
				return err
			}
			defer closeEngine()

			total, err := eng.SumForCategoryBetween(ctx, args[0], start, end)
			if err != nil {
				return fmt.Errorf("failed to sum expenses: %w", err)
			}

			fmt.Printf("%s %s to %s: %s\n", args[0], args[1], args[2], cli.FormatAmount(total))
			return nil
		},
	}
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Spending reports",
	}

	cmd.AddCommand(reportTotalsCmd())

	return cmd
}

func reportTotalsCmd() *cobra.Command {
	var (
		order        string
		limit        int
		offset       int
		includeZero  bool
		onlyActive   bool
		onlyInactive bool
	)

	cmd := &cobra.Command{
		Use:   "totals <start> <end>",
		Short: "Per-category totals for a date range",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			start, err := parseDate(args[0])
			if err != nil {
				return err
			}
			end, err := parseDate(args[1])
			if err != nil {
				return err
			}
			sortOrder, err := model.ParseSortOrder(order)
			if err != nil {
				return err
			}
			if onlyActive && onlyInactive {
				return fmt.Errorf("--active and --inactive are mutually exclusive")
			}

			filter := service.TotalsFilter{
				IncludeZero:          includeZero,
				Order:                sortOrder,
				Offset:               offset,
				ExcludeInactiveSpend: !viper.GetBool("reports.include_inactive_spend"),
			}
			if onlyActive {
				active := true
				filter.OnlyActive = &active
			}
			if onlyInactive {
				active := false
				filter.OnlyActive = &active
			}
			if limit > 0 {
				filter.Limit = &limit
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			totals, err := store.CategoryTotals(ctx, start, end, filter)
			if err != nil {
				return fmt.Errorf("failed to compute totals: %w", err)
			}

			fmt.Println(cli.FormatTitle(fmt.Sprintf("Totals %s to %s", args[0], args[1])))
			fmt.Println(cli.RenderTotalsTable(totals))
			return nil
		},
	}

	cmd.Flags().StringVar(&order, "order", "desc", "Sort order by total (asc, desc)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows (0 for all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip (with --limit)")
	cmd.Flags().BoolVar(&includeZero, "include-zero", false, "Report 0.0 for categories without expenses in range")
	cmd.Flags().BoolVar(&onlyActive, "active", false, "Only active categories")
	cmd.Flags().BoolVar(&onlyInactive, "inactive", false, "Only deactivated categories")

	return cmd
}
