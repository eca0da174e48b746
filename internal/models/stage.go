package models

import (
	"fmt"
	"time"
)

// Stage is the lifecycle phase of a tracked Grant. The set is closed: values
// outside AllStages are rejected at construction time, never stored.
type Stage string

const (
	StageDiscovered  Stage = "discovered"
	StageResearching Stage = "researching"
	StageQualifying  Stage = "qualifying"
	StagePreparing   Stage = "preparing"
	StageDrafting    Stage = "drafting"
	StageReviewing   Stage = "reviewing"
	StageSubmitted   Stage = "submitted"
	StageUnderReview Stage = "under_review"
	StageAwarded     Stage = "awarded"
	StageDeclined    Stage = "declined"
	StageActive      Stage = "active"
	StageCloseout    Stage = "closeout"
	StageArchived    Stage = "archived"
)

// AllStages lists every valid stage in nominal pipeline order. The order is
// informational only: a Grant may move between any two stages, with every
// transition recorded in its history.
var AllStages = []Stage{
	StageDiscovered,
	StageResearching,
	StageQualifying,
	StagePreparing,
	StageDrafting,
	StageReviewing,
	StageSubmitted,
	StageUnderReview,
	StageAwarded,
	StageDeclined,
	StageActive,
	StageCloseout,
	StageArchived,
}

// ParseStage validates a raw string against the closed stage set.
func ParseStage(raw string) (Stage, error) {
	candidate := Stage(raw)
	for _, s := range AllStages {
		if s == candidate {
			return s, nil
		}
	}
	return "", fmt.Errorf("invalid stage: %q", raw)
}

func (s Stage) Valid() bool {
	_, err := ParseStage(string(s))
	return err == nil
}

// StageTransition is one entry in a Grant's append-only stage history.
type StageTransition struct {
	From Stage     `json:"from"`
	To   Stage     `json:"to"`
	At   time.Time `json:"at"`
}
