package model

import "time"

// FallbackCategoryName is the always-resolvable category every unmatched
// record lands in.
const FallbackCategoryName = "other"

// FallbackCategoryDescription is used when the fallback category is created
// on demand.
const FallbackCategoryDescription = "Fallback category"

// Category represents a spending category in the vocabulary.
type Category struct {
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Name        string
	Description string
	ID          int64
	IsActive    bool
}
