package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ben/grant-pursuit/internal/models"
)

// PortalAdapter queries a generic JSON funding portal: GET with q/limit/offset
// parameters and a flat results array. Several state and foundation portals
// expose this shape, so only the base URL and API key vary per source.
type PortalAdapter struct {
	cfg    SourceConfig
	client *http.Client
}

func NewPortalAdapter(cfg SourceConfig, client *http.Client) *PortalAdapter {
	return &PortalAdapter{cfg: cfg, client: client}
}

func (a *PortalAdapter) Source() string { return a.cfg.ID }

// portalRecord tolerates missing fields: everything is optional and defaults
// to its zero value.
type portalRecord struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Funder      string  `json:"funder"`
	Amount      float64 `json:"amount"`
	CloseDate   string  `json:"close_date"`
	PostedDate  string  `json:"posted_date"`
	Summary     string  `json:"summary"`
	Category    string  `json:"category"`
	Instrument  string  `json:"instrument"`
	DocType     string  `json:"doc_type"`
	Status      string  `json:"status"`
	Eligibility string  `json:"eligibility"`
}

type portalResponse struct {
	Total   int            `json:"total"`
	Results []portalRecord `json:"results"`
}

func (a *PortalAdapter) Query(ctx context.Context, term string, page Page) (*AdapterResult, error) {
	endpoint, err := url.Parse(a.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	q := endpoint.Query()
	q.Set("q", term)
	q.Set("limit", strconv.Itoa(page.Limit))
	q.Set("offset", strconv.Itoa(page.Offset))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if a.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("upstream returned %d: %s", resp.StatusCode, cleanText(string(payload)))
	}

	var apiResp portalResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	hits := make([]models.RawHit, 0, len(apiResp.Results))
	for _, rec := range apiResp.Results {
		if rec.Title == "" {
			continue
		}

		hit := models.RawHit{
			Source:      a.cfg.ID,
			ExternalID:  rec.ID,
			Title:       cleanText(rec.Title),
			Issuer:      cleanText(rec.Funder),
			Amount:      rec.Amount,
			Description: cleanText(rec.Summary),
			Category:    rec.Category,
			Instrument:  rec.Instrument,
			DocType:     rec.DocType,
			Status:      rec.Status,
			Eligibility: cleanText(rec.Eligibility),
		}
		if hit.ExternalID == "" {
			hit.ExternalID = hit.Title
		}
		if t, ok := parseDateCandidate(rec.CloseDate); ok {
			hit.CloseDate = &t
		}
		if t, ok := parseDateCandidate(rec.PostedDate); ok {
			hit.PostedDate = &t
		}

		hits = append(hits, hit)
	}

	return &AdapterResult{Hits: hits, TotalCount: apiResp.Total}, nil
}

// parseDateCandidate accepts the date shapes portals commonly emit.
func parseDateCandidate(raw string) (time.Time, bool) {
	raw = cleanText(raw)
	if raw == "" {
		return time.Time{}, false
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02 15:04:05",
		"01/02/2006",
		"January 2, 2006",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
