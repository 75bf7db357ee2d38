package registry

import "github.com/trevorWieland/rentl-sub001/internal/model"

// Schema names for the built-in phase output contracts.
const (
	SchemaContextNotes      = "context_notes"
	SchemaTranslationResult = "translation_result"
	SchemaQAFindings        = "qa_findings"
)

// DefaultSchemas returns a schema registry preloaded with the built-in
// phase output contracts.
func DefaultSchemas() (*Schemas, error) {
	s := NewSchemas()
	schemas := []Schema{
		JSONSchema[model.ContextNotes](SchemaContextNotes, nil),
		JSONSchema[model.TranslationResult](SchemaTranslationResult, nil),
		JSONSchema[model.QAFindings](SchemaQAFindings, nil),
	}
	for _, schema := range schemas {
		if err := s.Register(schema); err != nil {
			return nil, err
		}
	}
	return s, nil
}
