package models

import "time"

// RawHit is a source-agnostic opportunity record after adapter normalization.
// Hits live only inside one search result set; tracking one promotes it to a
// Grant. Fields a source cannot supply stay at their zero value.
type RawHit struct {
	Source      string     `json:"source"`
	ExternalID  string     `json:"external_id"`
	Title       string     `json:"title"`
	Issuer      string     `json:"issuer"`
	Amount      float64    `json:"amount"`
	CloseDate   *time.Time `json:"close_date"`
	PostedDate  *time.Time `json:"posted_date"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Instrument  string     `json:"instrument"`
	DocType     string     `json:"doc_type"`
	Status      string     `json:"status"`
	Eligibility string     `json:"eligibility"`
}

// Key is the identity used for dedup within a result set and for idempotent
// tracking. Dedup is per source: two sources may legitimately describe the
// same program.
func (h RawHit) Key() string {
	return h.Source + ":" + h.ExternalID
}

// MatchResult is the outcome of scoring one hit against one profile. It is
// derived state, recomputed on demand and never mutated.
type MatchResult struct {
	Score   int      `json:"score"` // always within [0, 100]
	Reasons []string `json:"reasons"`
}

// ScoredHit pairs a hit with its match result for ranking and display.
type ScoredHit struct {
	RawHit
	Match MatchResult `json:"match"`
}
