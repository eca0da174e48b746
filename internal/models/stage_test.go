package models

import "testing"

func TestParseStage_AcceptsEveryKnownStage(t *testing.T) {
	for _, stage := range AllStages {
		parsed, err := ParseStage(string(stage))
		if err != nil {
			t.Fatalf("stage %s rejected: %v", stage, err)
		}
		if parsed != stage {
			t.Fatalf("expected %s, got %s", stage, parsed)
		}
	}
}

func TestParseStage_RejectsUnknown(t *testing.T) {
	for _, raw := range []string{"", "Discovered", "won", "in progress", "archived "} {
		if _, err := ParseStage(raw); err == nil {
			t.Fatalf("expected %q rejected", raw)
		}
	}
}

func TestRawHitKey(t *testing.T) {
	h := RawHit{Source: "grants_gov", ExternalID: "ABC-123"}
	if h.Key() != "grants_gov:ABC-123" {
		t.Fatalf("unexpected key %q", h.Key())
	}
}
