package pursuit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ben/grant-pursuit/internal/kv"
	"github.com/ben/grant-pursuit/internal/models"
)

// Collection keys in the kv store. Each collection is one value, so a write
// only needs the bag's single-key atomicity.
const (
	kvKeyGrants  = "pursuit:grants"
	kvKeyTasks   = "pursuit:tasks"
	kvKeyBudgets = "pursuit:budgets"
)

const flushDelay = 500 * time.Millisecond

// snapshot is the serialized shape of the store's state.
type snapshot struct {
	Grants  []models.Grant                `json:"grants"`
	Tasks   []models.Task                 `json:"tasks"`
	Budgets map[string][]models.BudgetLine `json:"budgets"`
}

// persister debounces store writes: mutations within flushDelay of each
// other collapse into one snapshot. In-memory reads stay immediately
// consistent regardless.
type persister struct {
	mu      sync.Mutex
	backing kv.Store
	take    func() snapshot
	timer   *time.Timer
}

func newPersister(backing kv.Store, take func() snapshot) *persister {
	return &persister{backing: backing, take: take}
}

func (p *persister) schedule() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(flushDelay, func() {
		if err := p.flush(context.Background()); err != nil {
			log.Printf("[Pursuit] debounced flush failed: %v", err)
		}
	})
}

func (p *persister) flush(ctx context.Context) error {
	snap := p.take()

	grants, err := json.Marshal(snap.Grants)
	if err != nil {
		return fmt.Errorf("marshal grants: %w", err)
	}
	tasks, err := json.Marshal(snap.Tasks)
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}
	budgets, err := json.Marshal(snap.Budgets)
	if err != nil {
		return fmt.Errorf("marshal budgets: %w", err)
	}

	if err := p.backing.Set(ctx, kvKeyGrants, grants); err != nil {
		return err
	}
	if err := p.backing.Set(ctx, kvKeyTasks, tasks); err != nil {
		return err
	}
	return p.backing.Set(ctx, kvKeyBudgets, budgets)
}

// snapshot captures the store state under its lock.
func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := snapshot{Budgets: make(map[string][]models.BudgetLine, len(s.budgets))}
	for _, grant := range s.grants {
		snap.Grants = append(snap.Grants, *copyGrant(grant))
	}
	for _, task := range s.tasks {
		snap.Tasks = append(snap.Tasks, *task)
	}
	for grantID, lines := range s.budgets {
		copied := make([]models.BudgetLine, len(lines))
		copy(copied, lines)
		snap.Budgets[grantID.String()] = copied
	}
	return snap
}

// Flush forces a synchronous snapshot write, cancelling any pending debounce.
func (s *Store) Flush(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	s.persist.mu.Lock()
	if s.persist.timer != nil {
		s.persist.timer.Stop()
		s.persist.timer = nil
	}
	s.persist.mu.Unlock()
	return s.persist.flush(ctx)
}

// Load rehydrates the store from the kv collaborator. Missing collections are
// treated as empty; this is the cold-start path.
func (s *Store) Load(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	backing := s.persist.backing

	var grants []models.Grant
	if raw, err := backing.Get(ctx, kvKeyGrants); err == nil {
		if err := json.Unmarshal(raw, &grants); err != nil {
			return fmt.Errorf("decode grants: %w", err)
		}
	} else if err != kv.ErrNoKey {
		return err
	}

	var tasks []models.Task
	if raw, err := backing.Get(ctx, kvKeyTasks); err == nil {
		if err := json.Unmarshal(raw, &tasks); err != nil {
			return fmt.Errorf("decode tasks: %w", err)
		}
	} else if err != kv.ErrNoKey {
		return err
	}

	budgets := make(map[string][]models.BudgetLine)
	if raw, err := backing.Get(ctx, kvKeyBudgets); err == nil {
		if err := json.Unmarshal(raw, &budgets); err != nil {
			return fmt.Errorf("decode budgets: %w", err)
		}
	} else if err != kv.ErrNoKey {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.grants = make(map[uuid.UUID]*models.Grant, len(grants))
	s.byKey = make(map[string]uuid.UUID, len(grants))
	for i := range grants {
		grant := grants[i]
		s.grants[grant.ID] = &grant
		s.byKey[grant.Key] = grant.ID
	}

	s.tasks = make(map[uuid.UUID]*models.Task, len(tasks))
	for i := range tasks {
		task := tasks[i]
		s.tasks[task.ID] = &task
	}

	s.budgets = make(map[uuid.UUID][]models.BudgetLine, len(budgets))
	for key, lines := range budgets {
		grantID, err := uuid.Parse(key)
		if err != nil {
			continue
		}
		s.budgets[grantID] = lines
	}

	return nil
}
