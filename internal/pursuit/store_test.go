package pursuit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ben/grant-pursuit/internal/kv"
	"github.com/ben/grant-pursuit/internal/models"
)

func testHit(source, externalID string, amount float64) models.ScoredHit {
	return models.ScoredHit{
		RawHit: models.RawHit{
			Source:     source,
			ExternalID: externalID,
			Title:      "Community Resilience Grant",
			Issuer:     "Example Foundation",
			Amount:     amount,
		},
		Match: models.MatchResult{Score: 55, Reasons: []string{"community"}},
	}
}

func TestTrack_SeedsDefaultTasks(t *testing.T) {
	store := New(nil)

	grant, created := store.Track(testHit("grants_gov", "GG-1", 0))
	if !created {
		t.Fatal("expected created=true")
	}
	if grant.Stage != models.StageDiscovered {
		t.Fatalf("expected discovered stage, got %s", grant.Stage)
	}

	tasks := store.TasksFor(grant.ID)
	if len(tasks) != 4 {
		t.Fatalf("expected 4 default tasks, got %d", len(tasks))
	}
	for i, task := range tasks {
		if task.Priority != i+1 {
			t.Fatalf("task %d: expected priority %d, got %d", i, i+1, task.Priority)
		}
		if task.Status != models.TaskTodo {
			t.Fatalf("task %d: expected todo, got %s", i, task.Status)
		}
	}
}

func TestTrack_SeedsBudgetWhenAmountKnown(t *testing.T) {
	store := New(nil)

	grant, _ := store.Track(testHit("grants_gov", "GG-2", 100000))
	lines := store.BudgetFor(grant.ID)
	if len(lines) != 2 {
		t.Fatalf("expected 2 seed budget lines, got %d", len(lines))
	}

	var lead, reserve float64
	for _, line := range lines {
		switch line.Category {
		case "personnel":
			lead = line.Amount
		case "operations":
			reserve = line.Amount
		}
	}
	if lead != 40000 {
		t.Fatalf("expected personnel seed 40000, got %f", lead)
	}
	if reserve != 60000 {
		t.Fatalf("expected operations seed 60000, got %f", reserve)
	}
}

func TestTrack_NoBudgetWithoutAmount(t *testing.T) {
	store := New(nil)

	grant, _ := store.Track(testHit("grants_gov", "GG-3", 0))
	if lines := store.BudgetFor(grant.ID); len(lines) != 0 {
		t.Fatalf("expected no budget lines, got %d", len(lines))
	}
}

func TestTrack_IdempotentOnKey(t *testing.T) {
	store := New(nil)

	first, created := store.Track(testHit("grants_gov", "GG-4", 50000))
	if !created {
		t.Fatal("expected first track to create")
	}

	second, created := store.Track(testHit("grants_gov", "GG-4", 50000))
	if created {
		t.Fatal("expected second track to be a no-op")
	}
	if second.ID != first.ID {
		t.Fatalf("expected the same grant back, got %s vs %s", second.ID, first.ID)
	}

	if tasks := store.TasksFor(first.ID); len(tasks) != 4 {
		t.Fatalf("re-track must not duplicate tasks, got %d", len(tasks))
	}
	if lines := store.BudgetFor(first.ID); len(lines) != 2 {
		t.Fatalf("re-track must not duplicate budget lines, got %d", len(lines))
	}
}

func TestTrack_SameExternalIDDifferentSourceIsDistinct(t *testing.T) {
	store := New(nil)

	a, _ := store.Track(testHit("grants_gov", "SAME", 0))
	b, created := store.Track(testHit("state_portal", "SAME", 0))
	if !created {
		t.Fatal("expected a distinct grant for a different source")
	}
	if a.ID == b.ID {
		t.Fatal("grants from different sources must not collapse")
	}
}

func TestUpdateStage_RecordsEveryTransition(t *testing.T) {
	store := New(nil)
	grant, _ := store.Track(testHit("grants_gov", "GG-5", 0))

	path := []models.Stage{
		models.StageResearching,
		models.StageDrafting,
		models.StageSubmitted,
		// Backwards moves are allowed and still logged.
		models.StageDrafting,
		models.StageAwarded,
	}
	for _, stage := range path {
		if _, err := store.UpdateStage(grant.ID, stage); err != nil {
			t.Fatalf("transition to %s failed: %v", stage, err)
		}
	}

	got, err := store.Get(grant.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.StageHistory) != len(path) {
		t.Fatalf("expected %d history entries, got %d", len(path), len(got.StageHistory))
	}

	from := models.StageDiscovered
	for i, entry := range got.StageHistory {
		if entry.From != from {
			t.Fatalf("entry %d: expected from=%s, got %s", i, from, entry.From)
		}
		if entry.To != path[i] {
			t.Fatalf("entry %d: expected to=%s, got %s", i, path[i], entry.To)
		}
		if entry.At.IsZero() {
			t.Fatalf("entry %d: missing timestamp", i)
		}
		from = entry.To
	}
	if got.Stage != models.StageAwarded {
		t.Fatalf("expected final stage awarded, got %s", got.Stage)
	}
}

func TestUpdateStage_SameStageIsNoOp(t *testing.T) {
	store := New(nil)
	grant, _ := store.Track(testHit("grants_gov", "GG-6", 0))
	before, _ := store.Get(grant.ID)

	after, err := store.UpdateStage(grant.ID, models.StageDiscovered)
	if err != nil {
		t.Fatal(err)
	}
	if len(after.StageHistory) != 0 {
		t.Fatalf("no-op transition must not grow history, got %d entries", len(after.StageHistory))
	}
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatal("no-op transition must not bump UpdatedAt")
	}
}

func TestUpdateStage_UnknownGrant(t *testing.T) {
	store := New(nil)

	if _, err := store.UpdateStage(uuid.New(), models.StageDrafting); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdate_StageGoesThroughHistory(t *testing.T) {
	store := New(nil)
	grant, _ := store.Track(testHit("grants_gov", "GG-7", 0))

	title := "Renamed pursuit"
	stage := models.StageQualifying
	updated, err := store.Update(grant.ID, GrantUpdate{Title: &title, Stage: &stage})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Title != "Renamed pursuit" {
		t.Fatalf("title not applied: %q", updated.Title)
	}
	if updated.Stage != models.StageQualifying {
		t.Fatalf("stage not applied: %s", updated.Stage)
	}
	if len(updated.StageHistory) != 1 {
		t.Fatalf("stage change via Update must be logged, got %d entries", len(updated.StageHistory))
	}
}

func TestUpdate_ClearDeadline(t *testing.T) {
	store := New(nil)
	hit := testHit("grants_gov", "GG-8", 0)
	deadline := time.Date(2026, 11, 15, 0, 0, 0, 0, time.UTC)
	hit.CloseDate = &deadline

	grant, _ := store.Track(hit)
	if grant.Deadline == nil {
		t.Fatal("expected deadline carried from hit")
	}

	updated, err := store.Update(grant.ID, GrantUpdate{SetDeadline: true, Deadline: nil})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Deadline != nil {
		t.Fatal("expected deadline cleared")
	}
}

func TestDelete_LeavesTasksBehind(t *testing.T) {
	store := New(nil)
	grant, _ := store.Track(testHit("grants_gov", "GG-9", 10000))

	if err := store.Delete(grant.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(grant.ID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	// Tasks reference the grant but are not owned by it.
	if tasks := store.TasksFor(grant.ID); len(tasks) != 4 {
		t.Fatalf("expected orphaned tasks to survive, got %d", len(tasks))
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	store := New(nil)
	grant, _ := store.Track(testHit("grants_gov", "GG-10", 0))

	got, _ := store.Get(grant.ID)
	got.Title = "mutated"

	again, _ := store.Get(grant.ID)
	if again.Title == "mutated" {
		t.Fatal("Get must return a copy, not the stored grant")
	}
}

func TestUpdateTask_StatusAndNotes(t *testing.T) {
	store := New(nil)
	grant, _ := store.Track(testHit("grants_gov", "GG-11", 0))
	tasks := store.TasksFor(grant.ID)

	status := models.TaskDone
	notes := "reviewed with the program officer"
	updated, err := store.UpdateTask(tasks[0].ID, TaskUpdate{Status: &status, Notes: &notes})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != models.TaskDone {
		t.Fatalf("expected done, got %s", updated.Status)
	}
	if updated.Notes != notes {
		t.Fatalf("notes not applied: %q", updated.Notes)
	}
}

func TestFlushAndLoad_RoundTrip(t *testing.T) {
	backing := kv.NewMemory()

	store := New(backing)
	grant, _ := store.Track(testHit("grants_gov", "GG-12", 80000))
	if _, err := store.UpdateStage(grant.ID, models.StageDrafting); err != nil {
		t.Fatal(err)
	}
	if err := store.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}

	reloaded := New(backing)
	if err := reloaded.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	got, err := reloaded.Get(grant.ID)
	if err != nil {
		t.Fatalf("grant missing after reload: %v", err)
	}
	if got.Stage != models.StageDrafting {
		t.Fatalf("expected drafting after reload, got %s", got.Stage)
	}
	if len(got.StageHistory) != 1 {
		t.Fatalf("history lost in round trip: %d entries", len(got.StageHistory))
	}
	if len(reloaded.TasksFor(grant.ID)) != 4 {
		t.Fatal("tasks lost in round trip")
	}
	if len(reloaded.BudgetFor(grant.ID)) != 2 {
		t.Fatal("budget lost in round trip")
	}

	// Idempotency keys must survive reload.
	if _, created := reloaded.Track(testHit("grants_gov", "GG-12", 80000)); created {
		t.Fatal("re-track after reload must be a no-op")
	}
}

func TestLoad_EmptyBackingIsFine(t *testing.T) {
	store := New(kv.NewMemory())
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("empty backing must load cleanly: %v", err)
	}
	if len(store.List()) != 0 {
		t.Fatal("expected empty store")
	}
}
