package ai

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/ben/grant-pursuit/internal/models"
)

// maxContextLen bounds the digest handed to a model as priming context.
const maxContextLen = 2400

// BuildPortfolioContext derives a textual digest of the current pursuit set
// for priming AI-assisted features. Pure and deterministic: same inputs, same
// string. Credentials never appear here — nothing secret is an input.
func BuildPortfolioContext(profile models.Profile, grants []models.Grant, tasks []models.Task, budgets map[uuid.UUID][]models.BudgetLine) string {
	var b strings.Builder

	b.WriteString("Portfolio snapshot\n")
	fmt.Fprintf(&b, "Tracked pursuits: %d\n", len(grants))

	stageCounts := make(map[models.Stage]int)
	var sought, awarded float64
	for _, grant := range grants {
		stageCounts[grant.Stage]++
		switch grant.Stage {
		case models.StageAwarded, models.StageActive, models.StageCloseout:
			awarded += grant.Amount
		case models.StageDeclined, models.StageArchived:
			// resolved, counts toward neither sum
		default:
			sought += grant.Amount
		}
	}

	if len(grants) > 0 {
		b.WriteString("By stage:")
		for _, stage := range models.AllStages {
			if n := stageCounts[stage]; n > 0 {
				fmt.Fprintf(&b, " %s=%d", stage, n)
			}
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "Amount sought: $%.0f; awarded: $%.0f\n", sought, awarded)
	}

	if deadlines := upcomingDeadlines(grants, 3); len(deadlines) > 0 {
		b.WriteString("Nearest deadlines:\n")
		for _, g := range deadlines {
			fmt.Fprintf(&b, "- %s (%s) due %s\n", g.Title, g.Issuer, g.Deadline.Format("2006-01-02"))
		}
	}

	open := 0
	for _, task := range tasks {
		if task.Status != models.TaskDone {
			open++
		}
	}
	fmt.Fprintf(&b, "Open tasks: %d of %d\n", open, len(tasks))

	var budgeted float64
	for _, lines := range budgets {
		for _, line := range lines {
			budgeted += line.Amount
		}
	}
	if budgeted > 0 {
		fmt.Fprintf(&b, "Budgeted across pursuits: $%.0f\n", budgeted)
	}

	b.WriteString(profileSummary(profile))

	return truncate(b.String(), maxContextLen)
}

// upcomingDeadlines returns up to n grants with future-or-present deadlines,
// soonest first. Sorting is total (deadline, then title) so the digest is
// stable across calls.
func upcomingDeadlines(grants []models.Grant, n int) []models.Grant {
	var dated []models.Grant
	for _, grant := range grants {
		if grant.Deadline != nil {
			dated = append(dated, grant)
		}
	}
	sort.Slice(dated, func(i, j int) bool {
		if dated[i].Deadline.Equal(*dated[j].Deadline) {
			return dated[i].Title < dated[j].Title
		}
		return dated[i].Deadline.Before(*dated[j].Deadline)
	})
	if len(dated) > n {
		dated = dated[:n]
	}
	return dated
}

func profileSummary(p models.Profile) string {
	var traits []string
	if p.Rural {
		traits = append(traits, "rural")
	}
	if p.Disabled {
		traits = append(traits, "disabled")
	}
	if p.BelowPoverty {
		traits = append(traits, "below-poverty")
	}
	if p.SelfEmployed {
		traits = append(traits, "self-employed")
	}
	if p.State != "" {
		traits = append(traits, "state: "+p.State)
	}

	var b strings.Builder
	b.WriteString("Applicant:")
	if len(traits) == 0 && len(p.Tags) == 0 && len(p.Businesses) == 0 {
		b.WriteString(" no profile attributes set\n")
		return b.String()
	}
	if len(traits) > 0 {
		b.WriteString(" " + strings.Join(traits, ", "))
	}
	if len(p.Tags) > 0 {
		b.WriteString("; interests: " + strings.Join(p.Tags, ", "))
	}
	if len(p.Businesses) > 0 {
		var names []string
		for _, biz := range p.Businesses {
			names = append(names, fmt.Sprintf("%s (%s)", biz.Name, biz.Sector))
		}
		b.WriteString("; businesses: " + strings.Join(names, ", "))
	}
	b.WriteString("\n")
	return b.String()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen > 3 {
		return s[:maxLen-3] + "..."
	}
	return s[:maxLen]
}
