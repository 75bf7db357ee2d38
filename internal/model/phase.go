// Package model defines the core domain types for rentl.
//
// Types are shared by the validator, orchestrator, agent pool, and the
// persistence layer. They use strong typing (UUIDs, time.Time, enums)
// and avoid interface{} wherever possible. Configuration types are
// immutable for the lifetime of a run; progress types are replaced per
// snapshot rather than mutated.
package model

import "fmt"

// Phase identifies one pipeline stage.
type Phase string

const (
	PhaseIngest         Phase = "ingest"
	PhaseContext        Phase = "context"
	PhasePretranslation Phase = "pretranslation"
	PhaseTranslate      Phase = "translate"
	PhaseQA             Phase = "qa"
	PhaseEdit           Phase = "edit"
	PhaseExport         Phase = "export"
)

// PhaseOrder is the canonical execution order. Pipelines may omit the
// optional boundary phases (ingest, export) but never reorder.
var PhaseOrder = []Phase{
	PhaseIngest,
	PhaseContext,
	PhasePretranslation,
	PhaseTranslate,
	PhaseQA,
	PhaseEdit,
	PhaseExport,
}

// RequiredPhases is the middle set every pipeline must include.
var RequiredPhases = []Phase{
	PhaseContext,
	PhasePretranslation,
	PhaseTranslate,
	PhaseQA,
	PhaseEdit,
}

// PhaseRank returns the canonical position of p, or -1 for an unknown phase.
func PhaseRank(p Phase) int {
	for i, known := range PhaseOrder {
		if p == known {
			return i
		}
	}
	return -1
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	return PhaseRank(p) >= 0
}

// ParsePhase converts a raw string into a Phase.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown phase %q", s)
	}
	return p, nil
}
