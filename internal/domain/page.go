package domain

// Page bundles a slice of results with the total number of matching records,
// letting callers derive page counts for offset-based pagination.
type Page[T any] struct {
	Items      []T
	TotalCount int64
}
