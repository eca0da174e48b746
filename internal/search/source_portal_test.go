package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPortalAdapter_MapsRecords(t *testing.T) {
	var gotAuth, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(`{
			"total": 57,
			"results": [
				{"id": "P-1", "title": " Rural  Connectivity Fund ", "funder": "State Office", "amount": 75000, "close_date": "2026-11-30", "summary": "Broadband buildout", "status": "open"},
				{"id": "P-2", "title": "", "funder": "ignored: no title"},
				{"title": "No ID Grant", "close_date": "not a date"}
			]
		}`))
	}))
	defer srv.Close()

	adapter := NewPortalAdapter(SourceConfig{
		ID:      "state_portal",
		BaseURL: srv.URL,
		APIKey:  "portal-key",
	}, srv.Client())

	result, err := adapter.Query(context.Background(), "rural", Page{Limit: 20})
	if err != nil {
		t.Fatal(err)
	}

	if gotAuth != "Bearer portal-key" {
		t.Fatalf("api key not sent: %q", gotAuth)
	}
	if gotQuery != "rural" {
		t.Fatalf("query term not sent: %q", gotQuery)
	}
	if result.TotalCount != 57 {
		t.Fatalf("expected total 57, got %d", result.TotalCount)
	}
	if len(result.Hits) != 2 {
		t.Fatalf("expected 2 hits (untitled record dropped), got %d", len(result.Hits))
	}

	first := result.Hits[0]
	if first.Source != "state_portal" || first.ExternalID != "P-1" {
		t.Fatalf("identity mapping wrong: %s %s", first.Source, first.ExternalID)
	}
	if first.Title != "Rural Connectivity Fund" {
		t.Fatalf("whitespace not collapsed: %q", first.Title)
	}
	if first.CloseDate == nil || !first.CloseDate.Equal(time.Date(2026, 11, 30, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("close date wrong: %v", first.CloseDate)
	}

	second := result.Hits[1]
	if second.ExternalID != "No ID Grant" {
		t.Fatalf("expected title fallback for missing id, got %q", second.ExternalID)
	}
	if second.CloseDate != nil {
		t.Fatal("unparseable date must stay nil")
	}
}

func TestPortalAdapter_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	adapter := NewPortalAdapter(SourceConfig{ID: "state_portal", BaseURL: srv.URL}, srv.Client())

	if _, err := adapter.Query(context.Background(), "rural", Page{Limit: 20}); err == nil {
		t.Fatal("expected an error for a 503 response")
	}
}

func TestParseDateCandidate_Shapes(t *testing.T) {
	cases := []struct {
		raw string
		ok  bool
	}{
		{"2026-11-30", true},
		{"11/30/2026", true},
		{"November 30, 2026", true},
		{"2026-11-30T00:00:00Z", true},
		{"rolling", false},
		{"", false},
	}
	for _, tc := range cases {
		if _, ok := parseDateCandidate(tc.raw); ok != tc.ok {
			t.Fatalf("%q: expected ok=%v", tc.raw, tc.ok)
		}
	}
}
