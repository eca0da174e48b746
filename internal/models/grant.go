package models

import (
	"time"

	"github.com/google/uuid"
)

// Grant is a tracked pursuit: an opportunity the user has committed to working.
// It is created from a scored hit and mutated only through the pursuit store's
// named operations.
type Grant struct {
	ID           uuid.UUID         `json:"id"`
	Key          string            `json:"key"` // "source:external_id", the idempotency key for tracking
	Title        string            `json:"title"`
	Issuer       string            `json:"issuer"`
	Amount       float64           `json:"amount"`
	Deadline     *time.Time        `json:"deadline"`
	Description  string            `json:"description"`
	Category     string            `json:"category"`
	Stage        Stage             `json:"stage"`
	StageHistory []StageTransition `json:"stage_history"`
	Outcomes     *Outcomes         `json:"outcomes,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Outcomes holds KPI and milestone notes attached late in a pursuit's life,
// usually after award.
type Outcomes struct {
	KPIs       []string `json:"kpis,omitempty"`
	Milestones []string `json:"milestones,omitempty"`
}

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

// Task references its Grant via GrantID. This is an association, not an
// ownership edge: deleting the Grant leaves the task behind with a dangling
// back-reference.
type Task struct {
	ID       uuid.UUID  `json:"id"`
	GrantID  uuid.UUID  `json:"grant_id"`
	Title    string     `json:"title"`
	Status   TaskStatus `json:"status"`
	Priority int        `json:"priority"`
	Notes    string     `json:"notes,omitempty"`
}

// BudgetLine is one row of a Grant's working budget. Like Task, GrantID is a
// back-reference only.
type BudgetLine struct {
	ID            uuid.UUID `json:"id"`
	GrantID       uuid.UUID `json:"grant_id"`
	Category      string    `json:"category"`
	Description   string    `json:"description"`
	Amount        float64   `json:"amount"`
	Quantity      int       `json:"quantity"`
	Justification string    `json:"justification,omitempty"`
}
