package ai

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ben/grant-pursuit/internal/models"
)

func portfolioFixture() ([]models.Grant, []models.Task, map[uuid.UUID][]models.BudgetLine) {
	d1 := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)

	a := models.Grant{ID: uuid.New(), Title: "Broadband Expansion", Issuer: "USDA", Amount: 250000, Deadline: &d1, Stage: models.StageDrafting}
	b := models.Grant{ID: uuid.New(), Title: "Accessibility Fund", Issuer: "State", Amount: 40000, Deadline: &d2, Stage: models.StageAwarded}
	c := models.Grant{ID: uuid.New(), Title: "Archive Test", Amount: 99999, Stage: models.StageArchived}

	tasks := []models.Task{
		{ID: uuid.New(), GrantID: a.ID, Title: "RFP review", Status: models.TaskDone},
		{ID: uuid.New(), GrantID: a.ID, Title: "Narrative skeleton", Status: models.TaskTodo},
	}
	budgets := map[uuid.UUID][]models.BudgetLine{
		a.ID: {
			{GrantID: a.ID, Category: "personnel", Amount: 100000},
			{GrantID: a.ID, Category: "operations", Amount: 150000},
		},
	}
	return []models.Grant{a, b, c}, tasks, budgets
}

func TestBuildPortfolioContext_Deterministic(t *testing.T) {
	grants, tasks, budgets := portfolioFixture()
	profile := models.Profile{Rural: true, State: "Montana", Tags: []string{"broadband"}}

	first := BuildPortfolioContext(profile, grants, tasks, budgets)
	for i := 0; i < 5; i++ {
		if again := BuildPortfolioContext(profile, grants, tasks, budgets); again != first {
			t.Fatalf("run %d diverged", i)
		}
	}
}

func TestBuildPortfolioContext_StageAndAmountRollup(t *testing.T) {
	grants, tasks, budgets := portfolioFixture()

	out := BuildPortfolioContext(models.Profile{}, grants, tasks, budgets)
	if !strings.Contains(out, "Tracked pursuits: 3") {
		t.Fatalf("missing pursuit count:\n%s", out)
	}
	if !strings.Contains(out, "drafting=1") || !strings.Contains(out, "awarded=1") {
		t.Fatalf("missing stage counts:\n%s", out)
	}
	// Archived grants count toward neither sum.
	if !strings.Contains(out, "Amount sought: $250000; awarded: $40000") {
		t.Fatalf("wrong amount rollup:\n%s", out)
	}
	if !strings.Contains(out, "Open tasks: 1 of 2") {
		t.Fatalf("wrong task rollup:\n%s", out)
	}
	if !strings.Contains(out, "Budgeted across pursuits: $250000") {
		t.Fatalf("wrong budget rollup:\n%s", out)
	}
}

func TestBuildPortfolioContext_DeadlinesSoonestFirst(t *testing.T) {
	grants, tasks, budgets := portfolioFixture()

	out := BuildPortfolioContext(models.Profile{}, grants, tasks, budgets)
	sept := strings.Index(out, "Accessibility Fund")
	oct := strings.Index(out, "Broadband Expansion")
	if sept == -1 || oct == -1 {
		t.Fatalf("deadlines missing:\n%s", out)
	}
	if sept > oct {
		t.Fatalf("deadlines out of order:\n%s", out)
	}
}

func TestBuildPortfolioContext_EmptyPortfolio(t *testing.T) {
	out := BuildPortfolioContext(models.Profile{}, nil, nil, nil)
	if !strings.Contains(out, "Tracked pursuits: 0") {
		t.Fatalf("unexpected empty digest:\n%s", out)
	}
	if !strings.Contains(out, "no profile attributes set") {
		t.Fatalf("expected empty-profile note:\n%s", out)
	}
}

func TestBuildPortfolioContext_BoundedLength(t *testing.T) {
	var grants []models.Grant
	deadline := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 200; i++ {
		grants = append(grants, models.Grant{
			ID:       uuid.New(),
			Title:    strings.Repeat("Very Long Grant Title ", 5),
			Issuer:   "An Issuer With A Considerable Name",
			Amount:   12345,
			Deadline: &deadline,
			Stage:    models.StageResearching,
		})
	}

	out := BuildPortfolioContext(models.Profile{}, grants, nil, nil)
	if len(out) > maxContextLen {
		t.Fatalf("digest exceeds bound: %d", len(out))
	}
}

func TestBuildPortfolioContext_NoSecretInputs(t *testing.T) {
	grants, tasks, budgets := portfolioFixture()
	t.Setenv("OPENAI_API_KEY", "sk-super-secret")

	out := BuildPortfolioContext(models.Profile{}, grants, tasks, budgets)
	if strings.Contains(out, "sk-super-secret") {
		t.Fatal("credential leaked into the portfolio digest")
	}
}
