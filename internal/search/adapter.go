package search

import (
	"context"

	"github.com/ben/grant-pursuit/internal/models"
)

// Page carries pagination through to a source adapter.
type Page struct {
	Limit  int
	Offset int
}

// AdapterResult is the normalized output of one adapter query. TotalCount is
// the source's own count of matches for the term when it reports one; zero
// means unknown and the aggregator falls back to the hit count.
type AdapterResult struct {
	Hits       []models.RawHit
	TotalCount int
}

// SourceAdapter is the per-source query contract. Implementations translate
// upstream non-success responses into ordinary errors; the aggregator folds
// those into partial-error strings so one bad source never voids a search.
// Missing fields in an upstream payload become zero values, not errors.
type SourceAdapter interface {
	Source() string
	Query(ctx context.Context, term string, page Page) (*AdapterResult, error)
}
