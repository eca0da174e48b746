package search

import (
	"sort"
	"strings"
	"time"

	"github.com/ben/grant-pursuit/internal/models"
)

// SortKey selects the ordering Rank applies. Every key is a stable sort over
// the input, so ties keep their input (relevance) order.
type SortKey string

const (
	SortRelevance  SortKey = "relevance"
	SortScore      SortKey = "score"
	SortAmountAsc  SortKey = "amount_asc"
	SortAmountDesc SortKey = "amount_desc"
	SortDeadline   SortKey = "deadline"
	SortNewest     SortKey = "newest"
	SortCategory   SortKey = "category"
	SortStatus     SortKey = "status"
)

// Filters are independently composable predicates applied as a logical AND.
// Zero-valued fields are inactive, so the zero Filters passes everything.
type Filters struct {
	Issuer      string
	MinAmount   float64
	MaxAmount   float64
	OpenOnly    bool
	Status      string
	Instrument  string
	Category    string
	DocType     string
	Eligibility string
	MinScore    int
	Now         time.Time // reference time for OpenOnly; zero means time.Now
}

func (f Filters) keep(h models.ScoredHit, now time.Time) bool {
	if f.Issuer != "" && !strings.EqualFold(cleanText(h.Issuer), cleanText(f.Issuer)) {
		return false
	}
	if f.MinAmount > 0 && h.Amount < f.MinAmount {
		return false
	}
	if f.MaxAmount > 0 && h.Amount > f.MaxAmount {
		return false
	}
	if f.OpenOnly && h.CloseDate != nil && h.CloseDate.Before(now) {
		return false
	}
	if f.Status != "" && !strings.EqualFold(h.Status, f.Status) {
		return false
	}
	if f.Instrument != "" && !strings.Contains(strings.ToLower(h.Instrument), strings.ToLower(f.Instrument)) {
		return false
	}
	if f.Category != "" && !strings.Contains(strings.ToLower(h.Category), strings.ToLower(f.Category)) {
		return false
	}
	if f.DocType != "" && !strings.EqualFold(h.DocType, f.DocType) {
		return false
	}
	if f.Eligibility != "" && !strings.Contains(strings.ToLower(h.Eligibility), strings.ToLower(f.Eligibility)) {
		return false
	}
	if f.MinScore > 0 && h.Match.Score < f.MinScore {
		return false
	}
	return true
}

// Rank filters then sorts a scored hit set. Pure and total: the input slice
// is never mutated, identical inputs always produce identical output order.
func Rank(hits []models.ScoredHit, key SortKey, f Filters) []models.ScoredHit {
	now := f.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	out := make([]models.ScoredHit, 0, len(hits))
	for _, hit := range hits {
		if f.keep(hit, now) {
			out = append(out, hit)
		}
	}

	switch key {
	case SortScore:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Match.Score > out[j].Match.Score
		})
	case SortAmountAsc:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Amount < out[j].Amount
		})
	case SortAmountDesc:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Amount > out[j].Amount
		})
	case SortDeadline:
		// Hits without a deadline sort last.
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i].CloseDate, out[j].CloseDate
			if a == nil {
				return false
			}
			if b == nil {
				return true
			}
			return a.Before(*b)
		})
	case SortNewest:
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i].PostedDate, out[j].PostedDate
			if a == nil {
				return false
			}
			if b == nil {
				return true
			}
			return a.After(*b)
		})
	case SortCategory:
		// Missing category sorts last.
		sort.SliceStable(out, func(i, j int) bool {
			a, b := strings.ToLower(out[i].Category), strings.ToLower(out[j].Category)
			if a == "" {
				return false
			}
			if b == "" {
				return true
			}
			return a < b
		})
	case SortStatus:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Status) < strings.ToLower(out[j].Status)
		})
	default:
		// SortRelevance: keep input order.
	}

	return out
}
