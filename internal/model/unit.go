package model

import "fmt"

// DialogueLine is one line of game dialogue moving through the
// pipeline. Source fields are fixed at ingest; the provenance-tracked
// fields are written by agents (or humans) as phases advance.
type DialogueLine struct {
	ID      string `json:"id"`
	Scene   string `json:"scene"`
	Route   string `json:"route,omitempty"`
	Speaker string `json:"speaker,omitempty"`
	Source  string `json:"source"`

	// Provenance-tracked fields. Overwrites and deletions of these are
	// subject to the approval gate.
	Translation ProvenanceValue `json:"translation"`
	ContextNote ProvenanceValue `json:"context_note"`
	QANote      ProvenanceValue `json:"qa_note"`
}

// OriginFields returns the origins of all provenance-tracked fields, in
// declaration order. Used by entry-level approval checks.
func (l DialogueLine) OriginFields() []string {
	return []string{l.Translation.Origin, l.ContextNote.Origin, l.QANote.Origin}
}

// WorkUnit is one payload submitted to an agent: a shard of dialogue
// lines scoped by the phase's sharding strategy. Index is the unit's
// position within its phase batch.
type WorkUnit struct {
	ID    string         `json:"id"`
	Phase Phase          `json:"phase"`
	Index int            `json:"index"`
	Scene string         `json:"scene,omitempty"`
	Route string         `json:"route,omitempty"`
	Lines []DialogueLine `json:"lines"`
}

// Validate checks that the unit is well-formed enough to hand to an
// agent.
func (u WorkUnit) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("work unit id is required")
	}
	if !u.Phase.Valid() {
		return fmt.Errorf("work unit %s: unknown phase %q", u.ID, u.Phase)
	}
	if len(u.Lines) == 0 {
		return fmt.Errorf("work unit %s: no lines", u.ID)
	}
	return nil
}
