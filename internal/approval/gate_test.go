package approval_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trevorWieland/rentl-sub001/internal/approval"
	"github.com/trevorWieland/rentl-sub001/internal/model"
)

func TestRequiresApprovalStandard(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		origin string
		want   bool
	}{
		{"human value protected", "Aya", "human", true},
		{"agent value overwritable", "Aya", "agent:x:2024-01-01", false},
		{"empty value with human origin", "", "human", false},
		{"empty value with empty origin", "", "", false},
		{"empty value with agent origin", "", "agent:x:2024-01-01", false},
		{"unmarked origin overwritable", "Aya", "", false},
		{"unknown origin overwritable", "Aya", "importer", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := approval.RequiresApproval(tt.value, tt.origin, model.ApprovalStandard)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequiresApprovalPermissive(t *testing.T) {
	for _, origin := range []string{"human", "agent:x:2024-01-01", ""} {
		assert.False(t, approval.RequiresApproval("Aya", origin, model.ApprovalPermissive),
			"permissive must never ask, origin %q", origin)
	}
}

func TestRequiresApprovalStrict(t *testing.T) {
	for _, origin := range []string{"human", "agent:x:2024-01-01", ""} {
		assert.True(t, approval.RequiresApproval("Aya", origin, model.ApprovalStrict),
			"strict must always ask, origin %q", origin)
		assert.True(t, approval.RequiresApproval("", origin, model.ApprovalStrict),
			"strict must ask even for empty values, origin %q", origin)
	}
}

func TestEntryRequiresApproval(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		policy  model.ApprovalPolicy
		want    bool
	}{
		{"all agent authored", []string{"agent:translate:2026-03-01", "agent:qa:2026-03-02", ""}, model.ApprovalStandard, false},
		{"one human field protects entry", []string{"agent:translate:2026-03-01", "human", ""}, model.ApprovalStandard, true},
		{"no tracked fields", nil, model.ApprovalStandard, false},
		{"permissive ignores human fields", []string{"human", "human", "human"}, model.ApprovalPermissive, false},
		{"strict protects agent-only entry", []string{"agent:x:2024-01-01"}, model.ApprovalStrict, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := approval.EntryRequiresApproval(tt.origins, tt.policy)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEntryGateOverLineOrigins(t *testing.T) {
	line := model.DialogueLine{
		ID:     "l1",
		Source: "おはよう。",
		Translation: model.ProvenanceValue{
			Value:  "Morning.",
			Origin: model.AgentOrigin("translate", time.Now()),
		},
		ContextNote: model.ProvenanceValue{
			Value:  "casual greeting between friends",
			Origin: model.OriginHuman,
		},
	}
	assert.True(t, approval.EntryRequiresApproval(line.OriginFields(), model.ApprovalStandard),
		"a human context note must protect the line from deletion")

	line.ContextNote.Origin = model.AgentOrigin("context", time.Now())
	assert.False(t, approval.EntryRequiresApproval(line.OriginFields(), model.ApprovalStandard))
}
