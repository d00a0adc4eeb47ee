package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/follow-the-money/internal/model"
)

// RecordBatchMessage carries a batch of transaction records from a producer
// (importer, fetcher) to the classification worker. Records travel in full so
// the worker never has to reach back to the producer's source.
type RecordBatchMessage struct {
	ID        string          `json:"id"`
	Source    string          `json:"source"`
	Records   []RecordPayload `json:"records"`
	Timestamp time.Time       `json:"timestamp"`
}

// RecordPayload is the wire form of a single record. Dates are calendar
// strings so the payload stays stable across time zones.
type RecordPayload struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Category    string  `json:"category,omitempty"`
	CategoryID  *int64  `json:"category_id,omitempty"`
	Amount      float64 `json:"amount"`
}

// NewRecordBatchMessage creates a batch message with a fresh message id.
func NewRecordBatchMessage(source string, records []model.Record) *RecordBatchMessage {
	payloads := make([]RecordPayload, 0, len(records))
	for _, r := range records {
		payloads = append(payloads, RecordPayload{
			Date:        r.Date.Format(model.DateFormat),
			Description: r.Description,
			Category:    r.Category,
			CategoryID:  r.CategoryID,
			Amount:      r.Amount,
		})
	}

	return &RecordBatchMessage{
		ID:        uuid.NewString(),
		Source:    source,
		Records:   payloads,
		Timestamp: time.Now(),
	}
}

// ToRecords converts the wire payloads back into domain records. Payloads
// with unparseable dates are returned as an error rather than dropped.
func (m *RecordBatchMessage) ToRecords() ([]model.Record, error) {
	records := make([]model.Record, 0, len(m.Records))
	for _, p := range m.Records {
		date, err := time.Parse(model.DateFormat, p.Date)
		if err != nil {
			return nil, err
		}
		records = append(records, model.Record{
			Date:        date,
			Description: p.Description,
			Category:    p.Category,
			CategoryID:  p.CategoryID,
			Amount:      p.Amount,
		})
	}
	return records, nil
}

// ToJSON converts the message to JSON bytes.
func (m *RecordBatchMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordBatchMessageFromJSON creates a message from JSON bytes.
func RecordBatchMessageFromJSON(data []byte) (*RecordBatchMessage, error) {
	var msg RecordBatchMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
