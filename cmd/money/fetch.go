package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/follow-the-money/internal/cli"
	"github.com/Veraticus/follow-the-money/internal/model"
	"github.com/Veraticus/follow-the-money/internal/plaid"
)

func fetchCmd() *cobra.Command {
	var (
		startDate string
		endDate   string
		toQueue   bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch transactions from Plaid",
		Long: `Pull transactions for a date range from Plaid, classify them, and save
them to the ledger. Already-fetched transactions dedupe by content hash.`,
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

			client, err := plaid.NewClient(plaid.Config{
				ClientID:    viper.GetString("plaid.client_id"),
				Secret:      viper.GetString("plaid.secret"),
				Environment: viper.GetString("plaid.environment"),
				AccessToken: viper.GetString("plaid.access_token"),
			})
			if err != nil {
				return err
			}

			records, err := client.GetRecords(ctx, start, end)
			if err != nil {
				return fmt.Errorf("failed to fetch transactions: %w", err)
			}
			if len(records) == 0 {
				fmt.Println(cli.FormatWarning("No transactions in range"))
				return nil
			}

			if toQueue {
				return publishRecords(cmd, "fetch", records)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			saved, err := saveInBatches(cmd, store, records, "Saving transactions...")
			if err != nil {
				return err
			}

			fmt.Println()
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Fetched and saved %d transaction(s) (%s to %s)",
				saved, start.Format(model.DateFormat), end.Format(model.DateFormat))))
			return nil
		},
	}

	cmd.Flags().StringVar(&startDate, "start", "", "Start date (YYYY-MM-DD, default one month before end)")
	cmd.Flags().StringVar(&endDate, "end", "", "End date (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&toQueue, "queue", false, "Publish records to the worker queue instead of saving inline")

	return cmd
}
