package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/follow-the-money/internal/queue"
	"github.com/Veraticus/follow-the-money/internal/worker"
)

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the classification worker",
		Long: `Consume record batches from the queue, classify them, and save them to
the ledger. Runs until interrupted and reconnects when the broker drops.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

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

			url, exchange, queueName := queueSettings()
			slog.Info("Starting worker", "exchange", exchange, "queue", queueName)

			w := worker.New(eng)
			err = queue.ConsumeWithReconnect(ctx, url, exchange, queueName, func(msg *queue.RecordBatchMessage) error {
				return w.Handle(ctx, msg)
			})
			if errors.Is(err, context.Canceled) {
				slog.Info("Worker stopped")
				return nil
			}
			if err != nil {
				return fmt.Errorf("worker failed: %w", err)
			}
			return nil
		},
	}
}
