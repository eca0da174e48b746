package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ben/grant-pursuit/internal/models"
)

// GrantsGovAdapter queries the Grants.gov search2 API.
type GrantsGovAdapter struct {
	cfg    SourceConfig
	client *http.Client
}

func NewGrantsGovAdapter(cfg SourceConfig, client *http.Client) *GrantsGovAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.grants.gov/v1/api/search2"
	}
	return &GrantsGovAdapter{cfg: cfg, client: client}
}

func (a *GrantsGovAdapter) Source() string { return a.cfg.ID }

type grantsGovSearchRequest struct {
	Keyword        string `json:"keyword"`
	OppStatuses    string `json:"oppStatuses"`
	SortBy         string `json:"sortBy"`
	Rows           int    `json:"rows"`
	StartRecordNum int    `json:"startRecordNum"`
}

type grantsGovResponse struct {
	Data struct {
		HitCount int               `json:"hitCount"`
		OppHits  []grantsGovRecord `json:"oppHits"`
	} `json:"data"`
	ErrorCode int    `json:"errorcode"`
	Msg       string `json:"msg"`
}

type grantsGovRecord struct {
	ID         string   `json:"id"`
	Number     string   `json:"number"`
	Title      string   `json:"title"`
	Agency     string   `json:"agency"`
	AgencyCode string   `json:"agencyCode"`
	OpenDate   string   `json:"openDate"`
	CloseDate  string   `json:"closeDate"`
	OppStatus  string   `json:"oppStatus"`
	DocType    string   `json:"docType"`
	CFDAList   []string `json:"cfdaList"`
}

func (a *GrantsGovAdapter) Query(ctx context.Context, term string, page Page) (*AdapterResult, error) {
	searchReq := grantsGovSearchRequest{
		Keyword:        term,
		OppStatuses:    "posted",
		SortBy:         "openDate|desc",
		Rows:           page.Limit,
		StartRecordNum: page.Offset,
	}

	body, err := json.Marshal(searchReq)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("upstream returned %d: %s", resp.StatusCode, cleanText(string(payload)))
	}

	var apiResp grantsGovResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if apiResp.ErrorCode != 0 {
		return nil, fmt.Errorf("upstream error: %s", apiResp.Msg)
	}

	hits := make([]models.RawHit, 0, len(apiResp.Data.OppHits))
	for _, rec := range apiResp.Data.OppHits {
		if rec.Title == "" {
			continue
		}

		hit := models.RawHit{
			Source:      a.cfg.ID,
			ExternalID:  rec.ID,
			Title:       cleanText(rec.Title),
			Issuer:      cleanText(rec.Agency),
			Description: fmt.Sprintf("Federal opportunity %s from %s. CFDA: %s", rec.Number, rec.Agency, strings.Join(rec.CFDAList, ", ")),
			Instrument:  "grant",
			DocType:     rec.DocType,
			Status:      rec.OppStatus,
		}
		if len(rec.CFDAList) > 0 {
			hit.Category = rec.CFDAList[0]
		}

		// Dates come back as MM/DD/YYYY; unparseable values are dropped,
		// never fatal.
		if rec.OpenDate != "" {
			if t, err := time.Parse("01/02/2006", rec.OpenDate); err == nil {
				hit.PostedDate = &t
			}
		}
		if rec.CloseDate != "" {
			if t, err := time.Parse("01/02/2006", rec.CloseDate); err == nil {
				hit.CloseDate = &t
			}
		}

		hits = append(hits, hit)
	}

	return &AdapterResult{Hits: hits, TotalCount: apiResp.Data.HitCount}, nil
}
