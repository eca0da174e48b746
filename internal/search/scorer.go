package search

import (
	"strings"

	"github.com/ben/grant-pursuit/internal/models"
)

// signal is one row of the scoring table: a label surfaced as a reason code,
// a fixed point value, the keyword set that triggers it, and an optional
// profile gate. A nil gate means the signal applies to every profile.
type signal struct {
	label    string
	points   int
	keywords []string
	gate     func(models.Profile) bool
}

// signalTable is evaluated top to bottom; reason codes come out in this
// order. Changing the order changes reason ordering for every caller, so
// treat it as part of the scoring contract.
var signalTable = []signal{
	{
		label:    "rural",
		points:   15,
		keywords: []string{"rural", "broadband", "agricultural", "remote communit", "underserved area"},
		gate:     func(p models.Profile) bool { return p.Rural },
	},
	{
		label:    "disability",
		points:   15,
		keywords: []string{"disability", "disabled", "accessibility", "adaptive equipment", "vocational rehabilitation"},
		gate:     func(p models.Profile) bool { return p.Disabled },
	},
	{
		label:    "self_employment",
		points:   15,
		keywords: []string{"self-employ", "small business", "sole proprietor", "entrepreneur", "microenterprise", "startup"},
		gate:     func(p models.Profile) bool { return p.SelfEmployed },
	},
	{
		label:    "technology",
		points:   10,
		keywords: []string{"technology", "digital", "software", "innovation", "stem", "internet"},
	},
	{
		label:    "low_income",
		points:   10,
		keywords: []string{"low-income", "low income", "poverty", "economically disadvantaged", "financial hardship"},
		gate:     func(p models.Profile) bool { return p.BelowPoverty },
	},
	{
		label:    "workforce",
		points:   10,
		keywords: []string{"workforce", "job training", "apprenticeship", "reskilling", "employment services"},
	},
	{
		label:    "community",
		points:   5,
		keywords: []string{"community", "neighborhood", "local development", "civic"},
	},
}

const (
	stateLocationPoints = 10
	tagPoints           = 5
	sectorPoints        = 10
	maxScore            = 100
)

// Score computes the match between a profile and a hit. It is pure and
// total: same inputs always yield the same result, absent text yields a zero
// score with no reasons, and nothing here can fail.
func Score(p models.Profile, h models.RawHit) models.MatchResult {
	text := strings.ToLower(cleanText(h.Title + " " + h.Description + " " + h.Issuer))
	if text == "" {
		return models.MatchResult{}
	}

	score := 0
	var reasons []string
	award := func(label string, points int) {
		before := len(reasons)
		reasons = appendUnique(reasons, label)
		if len(reasons) > before {
			score += points
		}
	}

	for _, sig := range signalTable {
		if sig.gate != nil && !sig.gate(p) {
			continue
		}
		if containsAny(text, sig.keywords) {
			award(sig.label, sig.points)
		}
	}

	if state := strings.ToLower(strings.TrimSpace(p.State)); state != "" && strings.Contains(text, state) {
		award("state_location", stateLocationPoints)
	}

	for _, tag := range p.Tags {
		needle := strings.ToLower(strings.TrimSpace(tag))
		if needle != "" && strings.Contains(text, needle) {
			award(needle, tagPoints)
		}
	}

	for _, business := range p.Businesses {
		sector := strings.ToLower(strings.TrimSpace(business.Sector))
		if sector != "" && strings.Contains(text, sector) {
			award("sector:"+sector, sectorPoints)
		}
	}

	if score > maxScore {
		score = maxScore
	}

	return models.MatchResult{Score: score, Reasons: reasons}
}

// ScoreAll scores a hit slice against one profile, preserving input order.
func ScoreAll(p models.Profile, hits []models.RawHit) []models.ScoredHit {
	scored := make([]models.ScoredHit, 0, len(hits))
	for _, hit := range hits {
		scored = append(scored, models.ScoredHit{RawHit: hit, Match: Score(p, hit)})
	}
	return scored
}
