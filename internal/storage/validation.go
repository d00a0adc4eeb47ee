// Package storage provides the data persistence layer for follow-the-money.
package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Veraticus/follow-the-money/internal/model"
	"github.com/Veraticus/follow-the-money/internal/service"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrEmptySlice       = errors.New("slice cannot be empty")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidDateRange = errors.New("start date must not be after end date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidLimit     = errors.New("limit must be positive")
	ErrInvalidOffset    = errors.New("offset cannot be negative")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateDate ensures a date parameter is set.
func validateDate(d time.Time, paramName string) error {
	if d.IsZero() {
		return fmt.Errorf("%w: %s is not set", ErrInvalidDate, paramName)
	}
	return nil
}

// validateDateRange ensures start does not come after end.
func validateDateRange(start, end time.Time) error {
	if err := validateDate(start, "start"); err != nil {
		return err
	}
	if err := validateDate(end, "end"); err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("%w: %s after %s", ErrInvalidDateRange,
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return nil
}

// validateAmount rejects NaN and infinite amounts before they reach SQLite.
func validateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	return nil
}

// validateLimit validates an optional limit pointer.
func validateLimit(limit *int) error {
	if limit != nil && *limit <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, *limit)
	}
	return nil
}

// validateOffset ensures a pagination offset is not negative.
func validateOffset(offset int) error {
	if offset < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidOffset, offset)
	}
	return nil
}

// validateRecord validates a single incoming record.
func validateRecord(r *model.Record) error {
	if r == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if err := validateDate(r.Date, "date"); err != nil {
		return err
	}
	return validateAmount(r.Amount)
}

// validateRecords validates a slice of incoming records.
func validateRecords(records []model.Record) error {
	if records == nil {
		return fmt.Errorf("%w: records", ErrNilParameter)
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: records", ErrEmptySlice)
	}
	for i, r := range records {
		if err := validateRecord(&r); err != nil {
			return fmt.Errorf("record at index %d: %w", i, err)
		}
	}
	return nil
}

// validateExpenseRange validates a date-bounded expense query.
func validateExpenseRange(query service.ExpenseRange) error {
	if err := validateDateRange(query.Start, query.End); err != nil {
		return err
	}
	if err := validateLimit(query.Limit); err != nil {
		return err
	}
	return validateOffset(query.Offset)
}
