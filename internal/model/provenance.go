package model

import (
	"fmt"
	"strings"
	"time"
)

// Origin markers for provenance-tracked fields. A field's origin records
// whether its current value was authored by a human or an automated
// agent; an empty origin means the value is unmarked.
const (
	OriginHuman       = "human"
	originAgentPrefix = "agent:"
)

// AgentOrigin builds the origin marker for a value authored by the named
// agent at the given time, e.g. "agent:translate:2026-03-01".
func AgentOrigin(agent string, at time.Time) string {
	return fmt.Sprintf("%s%s:%s", originAgentPrefix, agent, at.UTC().Format("2006-01-02"))
}

// HumanAuthored reports whether origin marks human authorship.
func HumanAuthored(origin string) bool {
	return origin == OriginHuman
}

// AgentAuthored reports whether origin marks automated authorship.
func AgentAuthored(origin string) bool {
	return strings.HasPrefix(origin, originAgentPrefix)
}

// ProvenanceValue pairs a field value with its authorship origin.
type ProvenanceValue struct {
	Value  string `json:"value"`
	Origin string `json:"origin,omitempty"`
}

// Empty reports whether the value is absent.
func (v ProvenanceValue) Empty() bool {
	return v.Value == ""
}

// ApprovalPolicy selects how aggressively mutating operations are gated
// behind human approval. Purely a decision parameter, never stateful.
type ApprovalPolicy string

const (
	// ApprovalPermissive never requires sign-off.
	ApprovalPermissive ApprovalPolicy = "permissive"
	// ApprovalStandard protects human-authored values only.
	ApprovalStandard ApprovalPolicy = "standard"
	// ApprovalStrict requires sign-off for every gated operation.
	ApprovalStrict ApprovalPolicy = "strict"
)

// Valid reports whether p is a known policy.
func (p ApprovalPolicy) Valid() bool {
	switch p {
	case ApprovalPermissive, ApprovalStandard, ApprovalStrict:
		return true
	}
	return false
}
