package model

import "fmt"

// ResultContract is implemented by agent output types that can check
// themselves against the work unit that produced them. The harness runs
// this check as part of output validation, after decoding.
type ResultContract interface {
	ValidateForUnit(u WorkUnit) error
}

// TranslationResult is the output contract for the pretranslation,
// translate, and edit agents: one proposed translation per line.
type TranslationResult struct {
	Lines []TranslatedLine `json:"lines"`
}

// TranslatedLine carries one line's proposed translation.
type TranslatedLine struct {
	ID          string `json:"id"`
	Translation string `json:"translation"`
	Notes       string `json:"notes,omitempty"`
}

// ValidateForUnit checks that every returned line belongs to the unit
// and carries a translation.
func (r TranslationResult) ValidateForUnit(u WorkUnit) error {
	if len(r.Lines) == 0 {
		return fmt.Errorf("no lines in result")
	}
	known := unitLineIDs(u)
	for _, l := range r.Lines {
		if !known[l.ID] {
			return fmt.Errorf("line %q is not part of unit %s", l.ID, u.ID)
		}
		if l.Translation == "" {
			return fmt.Errorf("line %q has an empty translation", l.ID)
		}
	}
	return nil
}

// ContextNotes is the output contract for the context agent.
type ContextNotes struct {
	Lines []AnnotatedLine `json:"lines"`
}

// AnnotatedLine carries one line's context annotation.
type AnnotatedLine struct {
	ID   string `json:"id"`
	Note string `json:"note"`
}

// ValidateForUnit checks that every annotated line belongs to the unit.
func (r ContextNotes) ValidateForUnit(u WorkUnit) error {
	known := unitLineIDs(u)
	for _, l := range r.Lines {
		if !known[l.ID] {
			return fmt.Errorf("line %q is not part of unit %s", l.ID, u.ID)
		}
		if l.Note == "" {
			return fmt.Errorf("line %q has an empty note", l.ID)
		}
	}
	return nil
}

// QASeverity grades a QA finding.
type QASeverity string

const (
	QAOK      QASeverity = "ok"
	QAWarning QASeverity = "warning"
	QAError   QASeverity = "error"
)

// Valid reports whether s is a known severity.
func (s QASeverity) Valid() bool {
	switch s {
	case QAOK, QAWarning, QAError:
		return true
	}
	return false
}

// QAFindings is the output contract for the qa agent.
type QAFindings struct {
	Lines []QAFinding `json:"lines"`
}

// QAFinding is one line's review verdict.
type QAFinding struct {
	ID       string     `json:"id"`
	Severity QASeverity `json:"severity"`
	Note     string     `json:"note,omitempty"`
}

// ValidateForUnit checks line membership and severity values.
func (r QAFindings) ValidateForUnit(u WorkUnit) error {
	known := unitLineIDs(u)
	for _, l := range r.Lines {
		if !known[l.ID] {
			return fmt.Errorf("line %q is not part of unit %s", l.ID, u.ID)
		}
		if !l.Severity.Valid() {
			return fmt.Errorf("line %q has unknown severity %q", l.ID, l.Severity)
		}
	}
	return nil
}

func unitLineIDs(u WorkUnit) map[string]bool {
	ids := make(map[string]bool, len(u.Lines))
	for _, l := range u.Lines {
		ids[l.ID] = true
	}
	return ids
}
