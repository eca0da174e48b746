// Package pursuit holds the tracked-grant store: the lifecycle state machine,
// its append-only stage history, and the side-effect generator that seeds
// default tasks and budget lines when an opportunity is first tracked.
package pursuit

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ben/grant-pursuit/internal/kv"
	"github.com/ben/grant-pursuit/internal/models"
)

// ErrNotFound is the one failure mode of lifecycle operations: an identifier
// that does not exist. Everything else is local and cannot fail.
var ErrNotFound = errors.New("pursuit: not found")

// defaultTaskTitles is the fixed task list every newly tracked grant gets,
// in priority order.
var defaultTaskTitles = []string{
	"RFP review",
	"Compliance matrix",
	"Narrative skeleton",
	"Budget alignment",
}

const (
	seedLeadShare    = 0.40
	seedReserveShare = 0.60
)

// Store is the single source of truth for tracked grants and their related
// tasks and budget lines. All mutation funnels through named operations; each
// operation is atomic with respect to the others.
//
// Reads are immediately consistent in-process. Writes to the kv collaborator
// are debounced; Flush forces one synchronously.
type Store struct {
	mu      sync.Mutex
	grants  map[uuid.UUID]*models.Grant
	byKey   map[string]uuid.UUID
	tasks   map[uuid.UUID]*models.Task
	budgets map[uuid.UUID][]models.BudgetLine // keyed by grant id

	persist *persister
	now     func() time.Time
}

// New builds a store persisting into backing. A nil backing keeps the store
// purely in-memory.
func New(backing kv.Store) *Store {
	s := &Store{
		grants:  make(map[uuid.UUID]*models.Grant),
		byKey:   make(map[string]uuid.UUID),
		tasks:   make(map[uuid.UUID]*models.Task),
		budgets: make(map[uuid.UUID][]models.BudgetLine),
		now:     func() time.Time { return time.Now().UTC() },
	}
	if backing != nil {
		s.persist = newPersister(backing, s.snapshot)
	}
	return s
}

// SetClock replaces the store's time source. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Track promotes a scored hit to a Grant in the discovered stage. Tracking is
// idempotent on the hit's (source, externalID) key: a second call returns the
// existing grant and reports created=false, with no side effects.
//
// On creation the side-effect generator runs: the fixed default task list is
// seeded, and a grant with a nonzero amount additionally gets a two-line seed
// budget (40% lead/personnel, 60% operational reserve).
func (s *Store) Track(hit models.ScoredHit) (*models.Grant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := hit.Key()
	if id, ok := s.byKey[key]; ok {
		return copyGrant(s.grants[id]), false
	}

	now := s.now()
	grant := &models.Grant{
		ID:          uuid.New(),
		Key:         key,
		Title:       hit.Title,
		Issuer:      hit.Issuer,
		Amount:      hit.Amount,
		Deadline:    hit.CloseDate,
		Description: hit.Description,
		Category:    hit.Category,
		Stage:       models.StageDiscovered,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.grants[grant.ID] = grant
	s.byKey[key] = grant.ID

	for i, title := range defaultTaskTitles {
		task := &models.Task{
			ID:       uuid.New(),
			GrantID:  grant.ID,
			Title:    title,
			Status:   models.TaskTodo,
			Priority: i + 1,
		}
		s.tasks[task.ID] = task
	}

	if grant.Amount > 0 {
		s.budgets[grant.ID] = []models.BudgetLine{
			{
				ID:            uuid.New(),
				GrantID:       grant.ID,
				Category:      "personnel",
				Description:   "Lead/personnel",
				Amount:        grant.Amount * seedLeadShare,
				Quantity:      1,
				Justification: "Seed allocation pending detailed budget",
			},
			{
				ID:            uuid.New(),
				GrantID:       grant.ID,
				Category:      "operations",
				Description:   "Operational reserve",
				Amount:        grant.Amount * seedReserveShare,
				Quantity:      1,
				Justification: "Seed allocation pending detailed budget",
			},
		}
	}

	s.markDirty()
	return copyGrant(grant), true
}

// UpdateStage moves a grant to any stage in the closed set. Setting the
// current stage again is a no-op: no history entry, no UpdatedAt bump. This
// is the only path by which stage history grows.
func (s *Store) UpdateStage(id uuid.UUID, next models.Stage) (*models.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateStageLocked(id, next)
}

func (s *Store) updateStageLocked(id uuid.UUID, next models.Stage) (*models.Grant, error) {
	grant, ok := s.grants[id]
	if !ok {
		return nil, ErrNotFound
	}
	if grant.Stage == next {
		return copyGrant(grant), nil
	}

	now := s.now()
	grant.StageHistory = append(grant.StageHistory, models.StageTransition{
		From: grant.Stage,
		To:   next,
		At:   now,
	})
	grant.Stage = next
	grant.UpdatedAt = now

	s.markDirty()
	return copyGrant(grant), nil
}

// GrantUpdate is a partial patch for Update. Nil fields are untouched.
// SetDeadline distinguishes "leave the deadline alone" from "clear it".
type GrantUpdate struct {
	Title       *string
	Issuer      *string
	Description *string
	Category    *string
	Amount      *float64
	Deadline    *time.Time
	SetDeadline bool
	Stage       *models.Stage
	Outcomes    *models.Outcomes
}

// Update merges non-stage fields and always refreshes UpdatedAt. A Stage in
// the patch goes through the same transition-logging path as UpdateStage, so
// generic updates can never bypass the history invariant.
func (s *Store) Update(id uuid.UUID, patch GrantUpdate) (*models.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	grant, ok := s.grants[id]
	if !ok {
		return nil, ErrNotFound
	}

	if patch.Stage != nil {
		if _, err := s.updateStageLocked(id, *patch.Stage); err != nil {
			return nil, err
		}
	}

	if patch.Title != nil {
		grant.Title = *patch.Title
	}
	if patch.Issuer != nil {
		grant.Issuer = *patch.Issuer
	}
	if patch.Description != nil {
		grant.Description = *patch.Description
	}
	if patch.Category != nil {
		grant.Category = *patch.Category
	}
	if patch.Amount != nil {
		grant.Amount = *patch.Amount
	}
	if patch.SetDeadline {
		grant.Deadline = patch.Deadline
	}
	if patch.Outcomes != nil {
		grant.Outcomes = patch.Outcomes
	}
	grant.UpdatedAt = s.now()

	s.markDirty()
	return copyGrant(grant), nil
}

// Delete removes a grant. Tasks and budget lines that reference it keep
// their grantId back-references and become orphans: they are associated with
// the grant, not owned by it, and whether to cascade is a product decision
// made above this layer.
func (s *Store) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	grant, ok := s.grants[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.grants, id)
	delete(s.byKey, grant.Key)

	s.markDirty()
	return nil
}

// Get returns a copy of the grant; mutations go through named operations only.
func (s *Store) Get(id uuid.UUID) (*models.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	grant, ok := s.grants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyGrant(grant), nil
}

// List returns all grants ordered by creation time, oldest first.
func (s *Store) List() []models.Grant {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Grant, 0, len(s.grants))
	for _, grant := range s.grants {
		out = append(out, *copyGrant(grant))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// TasksFor returns the tasks referencing a grant, in priority order.
// A deleted or unknown grant id simply yields an empty slice: orphaned tasks
// remain addressable through AllTasks.
func (s *Store) TasksFor(grantID uuid.UUID) []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Task
	for _, task := range s.tasks {
		if task.GrantID == grantID {
			out = append(out, *task)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority == out[j].Priority {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].Priority < out[j].Priority
	})
	return out
}

// AllTasks returns every task, including orphans, ordered by id.
func (s *Store) AllTasks() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		out = append(out, *task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// TaskUpdate is a partial patch for UpdateTask.
type TaskUpdate struct {
	Title    *string
	Status   *models.TaskStatus
	Priority *int
	Notes    *string
}

func (s *Store) UpdateTask(id uuid.UUID, patch TaskUpdate) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	if patch.Notes != nil {
		task.Notes = *patch.Notes
	}

	s.markDirty()
	copied := *task
	return &copied, nil
}

func (s *Store) DeleteTask(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(s.tasks, id)
	s.markDirty()
	return nil
}

// BudgetFor returns the budget lines referencing a grant.
func (s *Store) BudgetFor(grantID uuid.UUID) []models.BudgetLine {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.budgets[grantID]
	out := make([]models.BudgetLine, len(lines))
	copy(out, lines)
	return out
}

// Budgets returns the full budget map keyed by grant id.
func (s *Store) Budgets() map[uuid.UUID][]models.BudgetLine {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[uuid.UUID][]models.BudgetLine, len(s.budgets))
	for id, lines := range s.budgets {
		copied := make([]models.BudgetLine, len(lines))
		copy(copied, lines)
		out[id] = copied
	}
	return out
}

func (s *Store) markDirty() {
	if s.persist != nil {
		s.persist.schedule()
	}
}

func copyGrant(g *models.Grant) *models.Grant {
	copied := *g
	if g.StageHistory != nil {
		copied.StageHistory = make([]models.StageTransition, len(g.StageHistory))
		copy(copied.StageHistory, g.StageHistory)
	}
	if g.Outcomes != nil {
		outcomes := *g.Outcomes
		copied.Outcomes = &outcomes
	}
	return &copied
}
