package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/follow-the-money/internal/model"
	"github.com/Veraticus/follow-the-money/internal/queue"
)

type mockSaver struct {
	err     error
	batches [][]model.Record
}

func (m *mockSaver) SaveRecords(_ context.Context, records []model.Record) ([]int64, error) {
	m.batches = append(m.batches, records)
	if m.err != nil {
		return nil, m.err
	}
	ids := make([]int64, len(records))
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	return ids, nil
}

type mockConsumer struct {
	messages []*queue.RecordBatchMessage
	handled  []error
}

func (m *mockConsumer) ConsumeRecordBatches(_ context.Context, handler func(*queue.RecordBatchMessage) error) error {
	for _, msg := range m.messages {
		m.handled = append(m.handled, handler(msg))
	}
	return nil
}

func testRecords() []model.Record {
	return []model.Record{
		{
			Date:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			Description: "ICA SUPERMARKET",
			Amount:      -45.67,
		},
	}
}

func TestWorker_SavesBatch(t *testing.T) {
	saver := &mockSaver{}
	consumer := &mockConsumer{
		messages: []*queue.RecordBatchMessage{
			queue.NewRecordBatchMessage("import", testRecords()),
		},
	}

	err := New(saver).Run(context.Background(), consumer)
	require.NoError(t, err)

	require.Len(t, consumer.handled, 1)
	assert.NoError(t, consumer.handled[0])
	require.Len(t, saver.batches, 1)
	assert.Equal(t, "ICA SUPERMARKET", saver.batches[0][0].Description)
}

func TestWorker_SaveFailureRequeues(t *testing.T) {
	saver := &mockSaver{err: errors.New("database is locked")}
	worker := New(saver)

	msg := queue.NewRecordBatchMessage("import", testRecords())
	err := worker.Handle(context.Background(), msg)

	require.Error(t, err, "handler error should propagate so the message is requeued")
	assert.Contains(t, err.Error(), msg.ID)
}

func TestWorker_MalformedBatchDropped(t *testing.T) {
	saver := &mockSaver{}
	worker := New(saver)

	msg := &queue.RecordBatchMessage{
		ID:      "bad",
		Source:  "import",
		Records: []queue.RecordPayload{{Date: "not-a-date", Description: "x", Amount: -1}},
	}

	err := worker.Handle(context.Background(), msg)
	require.NoError(t, err, "malformed batches are dropped, not requeued")
	assert.Empty(t, saver.batches)
}

func TestWorker_EmptyBatchAcked(t *testing.T) {
	saver := &mockSaver{}
	worker := New(saver)

	err := worker.Handle(context.Background(), queue.NewRecordBatchMessage("fetch", nil))
	require.NoError(t, err)
	assert.Empty(t, saver.batches)
}
