// Package worker runs the queue consumer that classifies and persists record
// batches published by the import and fetch commands.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/follow-the-money/internal/model"
	"github.com/Veraticus/follow-the-money/internal/queue"
)

// RecordSaver persists a batch of records, classifying any without a category
// hint. Satisfied by *engine.Engine.
type RecordSaver interface {
	SaveRecords(ctx context.Context, records []model.Record) ([]int64, error)
}

// Consumer receives record batch messages. Satisfied by *queue.Client.
type Consumer interface {
	ConsumeRecordBatches(ctx context.Context, handler func(*queue.RecordBatchMessage) error) error
}

// Worker classifies and saves record batches from the queue.
type Worker struct {
	saver  RecordSaver
	logger *slog.Logger
}

// New creates a worker over the given saver.
func New(saver RecordSaver) *Worker {
	return &Worker{
		saver:  saver,
		logger: slog.Default().With("component", "worker"),
	}
}

// Run consumes messages until the context is cancelled. Handler errors cause
// the message to be requeued by the consumer; the worker keeps running.
func (w *Worker) Run(ctx context.Context, consumer Consumer) error {
	return consumer.ConsumeRecordBatches(ctx, func(msg *queue.RecordBatchMessage) error {
		return w.Handle(ctx, msg)
	})
}

// Handle processes one record batch. A returned error signals the consumer
// to requeue the message.
func (w *Worker) Handle(ctx context.Context, msg *queue.RecordBatchMessage) error {
	records, err := msg.ToRecords()
	if err != nil {
		// A malformed batch will never succeed on redelivery; drop it loudly.
		w.logger.Error("Discarding malformed record batch",
			"message_id", msg.ID,
			"source", msg.Source,
			"error", err)
		return nil
	}

	if len(records) == 0 {
		w.logger.Warn("Empty record batch", "message_id", msg.ID, "source", msg.Source)
		return nil
	}

	ids, err := w.saver.SaveRecords(ctx, records)
	if err != nil {
		return fmt.Errorf("failed to save record batch %s: %w", msg.ID, err)
	}

	w.logger.Info("Saved record batch",
		"message_id", msg.ID,
		"source", msg.Source,
		"records", len(ids))
	return nil
}
