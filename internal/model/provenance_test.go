package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trevorWieland/rentl-sub001/internal/model"
)

func TestOriginMarkers(t *testing.T) {
	assert.True(t, model.HumanAuthored("human"))
	assert.False(t, model.HumanAuthored("Human"))
	assert.False(t, model.HumanAuthored(""))

	assert.True(t, model.AgentAuthored("agent:translate:2026-03-01"))
	assert.False(t, model.AgentAuthored("human"))
	assert.False(t, model.AgentAuthored(""))
}

func TestAgentOrigin(t *testing.T) {
	at := time.Date(2026, 3, 1, 15, 4, 5, 0, time.UTC)
	origin := model.AgentOrigin("translate", at)
	assert.Equal(t, "agent:translate:2026-03-01", origin)
	assert.True(t, model.AgentAuthored(origin))
	assert.False(t, model.HumanAuthored(origin))
}

func TestApprovalPolicyValid(t *testing.T) {
	assert.True(t, model.ApprovalPermissive.Valid())
	assert.True(t, model.ApprovalStandard.Valid())
	assert.True(t, model.ApprovalStrict.Valid())
	assert.False(t, model.ApprovalPolicy("paranoid").Valid())
	assert.False(t, model.ApprovalPolicy("").Valid())
}

func TestDialogueLineOriginFields(t *testing.T) {
	line := model.DialogueLine{
		ID:          "s01:0004",
		Scene:       "s01",
		Source:      "こんにちは",
		Translation: model.ProvenanceValue{Value: "Hello", Origin: "human"},
		QANote:      model.ProvenanceValue{Value: "ok", Origin: "agent:qa:2026-03-01"},
	}
	origins := line.OriginFields()
	assert.Equal(t, []string{"human", "", "agent:qa:2026-03-01"}, origins)
}
