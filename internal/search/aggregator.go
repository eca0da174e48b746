package search

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ben/grant-pursuit/internal/models"
)

const (
	defaultSearchLimit    = 20
	defaultAdapterTimeout = 15 * time.Second
)

// SearchOptions controls one aggregated search call.
//
// MinTotal lets a caller paging through a stable query feed the previous
// page's TotalCount back in; the returned total is clamped to never drop
// below it, so the running total stays monotonically non-decreasing even when
// a source fails mid-pagination.
type SearchOptions struct {
	Limit    int
	Offset   int
	MinTotal int
}

// SearchResult is the merged, deduplicated output of a search fan-out.
// PartialErrors names each source that contributed nothing and why.
type SearchResult struct {
	Hits          []models.RawHit `json:"hits"`
	TotalCount    int             `json:"total_count"`
	PartialErrors []string        `json:"partial_errors"`
}

// Searcher fans a query out to every configured source adapter in parallel
// and merges the results. It holds no per-search state: each call owns its
// own buffers, so concurrent searches never interfere.
type Searcher struct {
	adapters []SourceAdapter
	timeout  time.Duration
}

func NewSearcher(adapters ...SourceAdapter) *Searcher {
	return &Searcher{
		adapters: adapters,
		timeout:  defaultAdapterTimeout,
	}
}

// SetAdapterTimeout overrides the per-adapter deadline. A source that blows
// the deadline is treated as failed for that call only.
func (s *Searcher) SetAdapterTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// Search never returns a Go error: a failing adapter contributes zero hits
// plus a partial-error entry, and the caller still sees every healthy source.
// Dedup is on (source, externalID) — per source, not global, since two
// sources may legitimately describe overlapping programs.
func (s *Searcher) Search(ctx context.Context, query string, opts SearchOptions) *SearchResult {
	if opts.Limit <= 0 {
		opts.Limit = defaultSearchLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	results := make([]*AdapterResult, len(s.adapters))
	failures := make([]error, len(s.adapters))

	var wg sync.WaitGroup
	for i, adapter := range s.adapters {
		wg.Add(1)
		go func(i int, adapter SourceAdapter) {
			defer wg.Done()
			queryCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			res, err := adapter.Query(queryCtx, query, Page{Limit: opts.Limit, Offset: opts.Offset})
			if err != nil {
				failures[i] = err
				return
			}
			results[i] = res
		}(i, adapter)
	}
	wg.Wait()

	// Merge in registration order so identical inputs always produce an
	// identical hit order.
	seen := make(map[string]bool)
	merged := make([]models.RawHit, 0, opts.Limit)
	var partialErrors []string
	total := 0

	for i, adapter := range s.adapters {
		if failures[i] != nil {
			log.Printf("[Aggregator] source %s failed: %v", adapter.Source(), failures[i])
			partialErrors = append(partialErrors, fmt.Sprintf("%s: %v", adapter.Source(), failures[i]))
			continue
		}
		res := results[i]
		if res == nil {
			continue
		}

		kept := 0
		for _, hit := range res.Hits {
			if hit.Source == "" {
				hit.Source = adapter.Source()
			}
			key := hit.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, hit)
			kept++
		}

		if res.TotalCount > 0 {
			total += res.TotalCount
		} else {
			total += kept
		}
	}

	if total < opts.MinTotal {
		total = opts.MinTotal
	}

	return &SearchResult{
		Hits:          merged,
		TotalCount:    total,
		PartialErrors: partialErrors,
	}
}
