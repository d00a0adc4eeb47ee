package queue

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Veraticus/follow-the-money/internal/model"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped at 30s
		{10, 30 * time.Second}, // capped at 30s
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			result := exponentialBackoff(tt.attempt)
			if result != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), expected: true},
		{name: "connection closed", err: errors.New("connection closed"), expected: true},
		{name: "EOF", err: errors.New("unexpected EOF"), expected: true},
		{name: "broken pipe", err: errors.New("write: broken pipe"), expected: true},
		{name: "closed network connection", err: errors.New("use of closed network connection"), expected: true},
		{name: "handler error", err: errors.New("failed to save records"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isConnectionError(tt.err)
			if result != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestNewRecordBatchMessage(t *testing.T) {
	categoryID := int64(3)
	records := []model.Record{
		{
			Date:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			Description: "ICA SUPERMARKET",
			Amount:      -45.67,
		},
		{
			Date:        time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
			Description: "SPOTIFY",
			Amount:      -9.99,
			Category:    "subscriptions",
			CategoryID:  &categoryID,
		},
	}

	msg := NewRecordBatchMessage("import", records)

	if msg.ID == "" {
		t.Error("NewRecordBatchMessage() should assign a message id")
	}
	if msg.Source != "import" {
		t.Errorf("Source = %v, want import", msg.Source)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if len(msg.Records) != 2 {
		t.Fatalf("Records length = %d, want 2", len(msg.Records))
	}
	if msg.Records[0].Date != "2025-06-01" {
		t.Errorf("Records[0].Date = %v, want 2025-06-01", msg.Records[0].Date)
	}
	if msg.Records[1].Category != "subscriptions" {
		t.Errorf("Records[1].Category = %v, want subscriptions", msg.Records[1].Category)
	}
	if msg.Records[1].CategoryID == nil || *msg.Records[1].CategoryID != 3 {
		t.Errorf("Records[1].CategoryID = %v, want 3", msg.Records[1].CategoryID)
	}

	other := NewRecordBatchMessage("import", records)
	if other.ID == msg.ID {
		t.Error("Message ids should be unique per message")
	}
}

func TestRecordBatchMessage_JSONRoundTrip(t *testing.T) {
	records := []model.Record{
		{
			Date:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			Description: "ICA SUPERMARKET",
			Amount:      -45.67,
		},
	}
	msg := NewRecordBatchMessage("fetch", records)

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := RecordBatchMessageFromJSON(body)
	if err != nil {
		t.Fatalf("RecordBatchMessageFromJSON() error = %v", err)
	}

	if parsed.ID != msg.ID {
		t.Errorf("Parsed ID = %v, want %v", parsed.ID, msg.ID)
	}
	if parsed.Source != "fetch" {
		t.Errorf("Parsed Source = %v, want fetch", parsed.Source)
	}

	roundTripped, err := parsed.ToRecords()
	if err != nil {
		t.Fatalf("ToRecords() error = %v", err)
	}
	if len(roundTripped) != 1 {
		t.Fatalf("ToRecords() length = %d, want 1", len(roundTripped))
	}
	if !roundTripped[0].Date.Equal(records[0].Date) {
		t.Errorf("Date = %v, want %v", roundTripped[0].Date, records[0].Date)
	}
	if roundTripped[0].Description != "ICA SUPERMARKET" {
		t.Errorf("Description = %v, want ICA SUPERMARKET", roundTripped[0].Description)
	}
	if roundTripped[0].Amount != -45.67 {
		t.Errorf("Amount = %v, want -45.67", roundTripped[0].Amount)
	}
}

func TestRecordBatchMessage_InvalidJSON(t *testing.T) {
	if _, err := RecordBatchMessageFromJSON([]byte(`{"id": 42}`)); err == nil {
		t.Error("RecordBatchMessageFromJSON() should fail when id is not a string")
	}
}

func TestToRecords_BadDate(t *testing.T) {
	msg := &RecordBatchMessage{
		ID:     "test",
		Source: "import",
		Records: []RecordPayload{
			{Date: "June 1st", Description: "x", Amount: -1},
		},
	}

	if _, err := msg.ToRecords(); err == nil {
		t.Error("ToRecords() should fail on an unparseable date")
	}
}
