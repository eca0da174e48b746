package search

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/microcosm-cc/bluemonday"

	"github.com/ben/grant-pursuit/internal/models"
)

// DirectoryAdapter scrapes an HTML grant directory page using the CSS
// selectors from the source registry. Free-form listing text is sanitized
// before it enters a RawHit; callers never see markup from a scraped page.
type DirectoryAdapter struct {
	cfg       SourceConfig
	sanitizer *bluemonday.Policy
	userAgent string
	delay     time.Duration
}

func NewDirectoryAdapter(cfg SourceConfig) *DirectoryAdapter {
	return &DirectoryAdapter{
		cfg:       cfg,
		sanitizer: bluemonday.StrictPolicy(),
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		delay:     1 * time.Second,
	}
}

func (a *DirectoryAdapter) Source() string { return a.cfg.ID }

var amountPattern = regexp.MustCompile(`[\d][\d,]*(?:\.\d+)?`)

func (a *DirectoryAdapter) Query(ctx context.Context, term string, page Page) (*AdapterResult, error) {
	if a.cfg.BaseURL == "" {
		return nil, fmt.Errorf("no base url configured")
	}
	parsed, err := url.Parse(a.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(a.userAgent),
		colly.DetectCharset(),
	)
	collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       a.delay,
	})
	if deadline, ok := ctx.Deadline(); ok {
		collector.SetRequestTimeout(time.Until(deadline))
	}

	sel := a.cfg.Selectors
	var all []models.RawHit
	var fetchErr error

	collector.OnHTML(sel.Container, func(e *colly.HTMLElement) {
		hit := models.RawHit{
			Source:      a.cfg.ID,
			Title:       a.clean(e.DOM.Find(sel.Title).First()),
			Issuer:      a.clean(e.DOM.Find(sel.Issuer).First()),
			Description: a.clean(e.DOM.Find(sel.Summary).First()),
			Instrument:  "grant",
		}
		if hit.Title == "" {
			return
		}

		if link, ok := e.DOM.Find(sel.Link).First().Attr("href"); ok {
			if ref, err := url.Parse(strings.TrimSpace(link)); err == nil {
				hit.ExternalID = parsed.ResolveReference(ref).String()
			}
		}
		if hit.ExternalID == "" {
			hit.ExternalID = hit.Title
		}

		hit.Amount = parseAmountLoose(a.clean(e.DOM.Find(sel.Amount).First()))
		if t, ok := parseDateCandidate(a.clean(e.DOM.Find(sel.Deadline).First())); ok {
			hit.CloseDate = &t
		}

		all = append(all, hit)
	})

	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("fetch %s: %w", r.Request.URL, err)
	})

	searchURL := a.cfg.BaseURL
	if term != "" {
		q := parsed.Query()
		q.Set("q", term)
		parsed.RawQuery = q.Encode()
		searchURL = parsed.String()
	}
	if err := collector.Visit(searchURL); err != nil {
		return nil, fmt.Errorf("visit failed: %w", err)
	}
	collector.Wait()

	if fetchErr != nil && len(all) == 0 {
		return nil, fetchErr
	}

	// Directory pages are scraped whole; pagination is applied to the
	// collected list so every page reports the same total.
	total := len(all)
	start := page.Offset
	if start > total {
		start = total
	}
	end := total
	if page.Limit > 0 && start+page.Limit < end {
		end = start + page.Limit
	}

	return &AdapterResult{Hits: all[start:end], TotalCount: total}, nil
}

func (a *DirectoryAdapter) clean(sel *goquery.Selection) string {
	if sel == nil {
		return ""
	}
	return cleanText(a.sanitizer.Sanitize(sel.Text()))
}

// parseAmountLoose extracts the first numeric value from a free-form amount
// string ("Up to $50,000" -> 50000). Unparseable input yields zero.
func parseAmountLoose(raw string) float64 {
	match := amountPattern.FindString(raw)
	if match == "" {
		return 0
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0
	}
	return value
}
