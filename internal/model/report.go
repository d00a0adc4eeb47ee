package model

import "fmt"

// SortOrder selects the direction of deterministic query ordering.
type SortOrder string

// Sort order constants.
const (
	SortDesc SortOrder = "desc"
	SortAsc  SortOrder = "asc"
)

// ParseSortOrder converts a user-supplied string into a SortOrder.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(s) {
	case SortAsc:
		return SortAsc, nil
	case SortDesc:
		return SortDesc, nil
	default:
		return "", fmt.Errorf("invalid sort order: %q (want asc or desc)", s)
	}
}

// CategoryTotal is one row of a totals-by-category report.
type CategoryTotal struct {
	Name       string
	Total      float64
	CategoryID int64
	IsActive   bool
}
