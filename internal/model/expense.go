// Package model defines the core domain models used throughout the application.
package model

import "time"

// DateFormat is the calendar-date layout used everywhere a date crosses a
// boundary: storage, hashes, classifier prompts.
const DateFormat = "2006-01-02"

// Expense represents a persisted ledger row. CategoryName is populated by
// queries that join the category in; Hash is empty when the row was stored
// with dedupe disabled.
type Expense struct {
	CreatedAt    time.Time
	Date         time.Time
	Description  string
	CategoryName string
	Hash         string
	Amount       float64
	ID           int64
	CategoryID   int64
}

// Record is an incoming transaction-like record before it becomes an Expense.
// Category and CategoryID are optional hints: an explicit id wins, then a
// name, then the fallback category.
type Record struct {
	Date        time.Time
	Description string
	Category    string
	CategoryID  *int64
	Amount      float64
}

// ClassificationPayload returns the fields that fingerprint a record for the
// classification cache. Category hints are deliberately excluded so identical
// transactions hash identically however they were submitted.
func (r Record) ClassificationPayload() map[string]any {
	return map[string]any{
		"date":        r.Date.Format(DateFormat),
		"description": r.Description,
		"amount":      r.Amount,
	}
}
