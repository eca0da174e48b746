package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ben/grant-pursuit/internal/models"
)

type fakeAdapter struct {
	source string
	hits   []models.RawHit
	total  int
	err    error
	delay  time.Duration
}

func (f *fakeAdapter) Source() string { return f.source }

func (f *fakeAdapter) Query(ctx context.Context, term string, page Page) (*AdapterResult, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &AdapterResult{Hits: f.hits, TotalCount: f.total}, nil
}

func TestSearch_MergesAllSources(t *testing.T) {
	s := NewSearcher(
		&fakeAdapter{source: "alpha", hits: []models.RawHit{
			{Source: "alpha", ExternalID: "1", Title: "First"},
		}, total: 1},
		&fakeAdapter{source: "beta", hits: []models.RawHit{
			{Source: "beta", ExternalID: "1", Title: "Second"},
		}, total: 1},
	)

	result := s.Search(context.Background(), "grant", SearchOptions{})
	if len(result.Hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(result.Hits))
	}
	if result.TotalCount != 2 {
		t.Fatalf("expected total 2, got %d", result.TotalCount)
	}
	if len(result.PartialErrors) != 0 {
		t.Fatalf("expected no partial errors, got %v", result.PartialErrors)
	}
}

func TestSearch_DeduplicatesWithinSource(t *testing.T) {
	s := NewSearcher(
		&fakeAdapter{source: "alpha", hits: []models.RawHit{
			{Source: "alpha", ExternalID: "dup", Title: "Kept"},
			{Source: "alpha", ExternalID: "dup", Title: "Dropped"},
			{Source: "alpha", ExternalID: "other", Title: "Other"},
		}},
	)

	result := s.Search(context.Background(), "grant", SearchOptions{})
	if len(result.Hits) != 2 {
		t.Fatalf("expected 2 hits after dedup, got %d", len(result.Hits))
	}
	if result.Hits[0].Title != "Kept" {
		t.Fatalf("first occurrence must win, got %q", result.Hits[0].Title)
	}
}

func TestSearch_SameExternalIDAcrossSourcesKept(t *testing.T) {
	s := NewSearcher(
		&fakeAdapter{source: "alpha", hits: []models.RawHit{{Source: "alpha", ExternalID: "42"}}},
		&fakeAdapter{source: "beta", hits: []models.RawHit{{Source: "beta", ExternalID: "42"}}},
	)

	result := s.Search(context.Background(), "grant", SearchOptions{})
	if len(result.Hits) != 2 {
		t.Fatalf("dedup must be per source, got %d hits", len(result.Hits))
	}
}

func TestSearch_PartialFailureKeepsHealthySources(t *testing.T) {
	s := NewSearcher(
		&fakeAdapter{source: "alpha", hits: []models.RawHit{{Source: "alpha", ExternalID: "1"}}, total: 40},
		&fakeAdapter{source: "broken", err: errors.New("connection refused")},
		&fakeAdapter{source: "gamma", hits: []models.RawHit{{Source: "gamma", ExternalID: "2"}}, total: 10},
	)

	result := s.Search(context.Background(), "grant", SearchOptions{})
	if len(result.Hits) != 2 {
		t.Fatalf("expected 2 hits from healthy sources, got %d", len(result.Hits))
	}
	if len(result.PartialErrors) != 1 {
		t.Fatalf("expected 1 partial error, got %v", result.PartialErrors)
	}
	if !strings.HasPrefix(result.PartialErrors[0], "broken: ") {
		t.Fatalf("partial error must name the source: %q", result.PartialErrors[0])
	}
	if result.TotalCount != 50 {
		t.Fatalf("expected total 50, got %d", result.TotalCount)
	}
}

func TestSearch_MinTotalKeepsTotalMonotonic(t *testing.T) {
	healthy := &fakeAdapter{source: "alpha", hits: []models.RawHit{{Source: "alpha", ExternalID: "1"}}, total: 120}
	s := NewSearcher(healthy)

	first := s.Search(context.Background(), "grant", SearchOptions{})
	if first.TotalCount != 120 {
		t.Fatalf("expected 120, got %d", first.TotalCount)
	}

	// The source degrades between pages; the fed-back floor holds the total.
	healthy.err = errors.New("temporarily unavailable")
	second := s.Search(context.Background(), "grant", SearchOptions{Offset: 20, MinTotal: first.TotalCount})
	if second.TotalCount != 120 {
		t.Fatalf("total regressed: %d", second.TotalCount)
	}
	if len(second.PartialErrors) != 1 {
		t.Fatalf("expected the degraded source reported, got %v", second.PartialErrors)
	}
}

func TestSearch_SlowAdapterTimesOut(t *testing.T) {
	s := NewSearcher(
		&fakeAdapter{source: "slow", delay: 200 * time.Millisecond, hits: []models.RawHit{{Source: "slow", ExternalID: "1"}}},
		&fakeAdapter{source: "fast", hits: []models.RawHit{{Source: "fast", ExternalID: "2"}}},
	)
	s.SetAdapterTimeout(20 * time.Millisecond)

	result := s.Search(context.Background(), "grant", SearchOptions{})
	if len(result.Hits) != 1 {
		t.Fatalf("expected only the fast source, got %d hits", len(result.Hits))
	}
	if result.Hits[0].Source != "fast" {
		t.Fatalf("expected fast hit, got %s", result.Hits[0].Source)
	}
	if len(result.PartialErrors) != 1 {
		t.Fatalf("expected the slow source reported, got %v", result.PartialErrors)
	}
}

func TestSearch_SourceFilledInFromAdapter(t *testing.T) {
	s := NewSearcher(&fakeAdapter{source: "alpha", hits: []models.RawHit{{ExternalID: "1"}}})

	result := s.Search(context.Background(), "grant", SearchOptions{})
	if result.Hits[0].Source != "alpha" {
		t.Fatalf("expected adapter source backfilled, got %q", result.Hits[0].Source)
	}
}
