package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/follow-the-money/internal/cli"
	"github.com/Veraticus/follow-the-money/internal/model"
	"github.com/Veraticus/follow-the-money/internal/queue"
	"github.com/Veraticus/follow-the-money/internal/service"
)

const saveBatchSize = 25

func importCmd() *cobra.Command {
	var toQueue bool

	cmd := &cobra.Command{
		Use:   "import <statement.ofx>",
		Short: "Import an OFX/QFX statement",
		Long: `Parse a bank statement, classify each transaction, and save it to the
ledger. Re-importing the same statement is safe; duplicates are dropped by
content hash. With --queue the records are published for the worker instead
of being processed inline.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			records, err := parseStatement(args[0])
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println(cli.FormatWarning("No transactions in statement"))
				return nil
			}

			if toQueue {
				return publishRecords(cmd, "import", records)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			saved, err := saveInBatches(cmd, store, records, "Importing transactions...")
			if err != nil {
				return err
			}

			fmt.Println()
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Imported %d transaction(s)", saved)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&toQueue, "queue", false, "Publish records to the worker queue instead of saving inline")

	return cmd
}

// saveInBatches classifies and saves records in small batches, advancing a
// progress bar per batch.
func saveInBatches(cmd *cobra.Command, store service.Storage, records []model.Record, description string) (int, error) {
	ctx := cmd.Context()

	eng, closeEngine, err := newEngine(store)
	if err != nil {
		return 0, err
	}
	defer closeEngine()

	bar := newProgressBar(len(records), description)

	saved := 0
	for start := 0; start < len(records); start += saveBatchSize {
		end := min(start+saveBatchSize, len(records))

		ids, err := eng.SaveRecords(ctx, records[start:end])
		if err != nil {
			return saved, fmt.Errorf("failed to save records: %w", err)
		}
		saved += len(ids)
		_ = bar.Add(end - start)
	}

	return saved, nil
}

// publishRecords hands a record batch to the worker queue.
func publishRecords(cmd *cobra.Command, source string, records []model.Record) error {
	url, exchange, queueName := queueSettings()

	client, err := queue.NewClient(url, exchange, queueName)
	if err != nil {
		return fmt.Errorf("failed to connect to queue: %w", err)
	}
	defer func() { _ = client.Close() }()

	msg := queue.NewRecordBatchMessage(source, records)
	if err := client.PublishRecordBatch(cmd.Context(), msg); err != nil {
		return fmt.Errorf("failed to publish records: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Published %d record(s) to %s", len(records), queueName)))
	return nil
}
