// Package export writes translated scripts back out and reports what
// was actually delivered. Formats mirror internal/ingest: .csv and
// .jsonl round-trip the full line model, .txt emits translated text
// with scene markers, falling back to the source for untranslated
// lines.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/trevorWieland/rentl-sub001/internal/model"
	"github.com/trevorWieland/rentl-sub001/internal/storage"
)

// Summary reports what an export delivered.
type Summary struct {
	Path          string   `json:"path"`
	Format        string   `json:"format"`
	Lines         int      `json:"lines"`
	Translated    int      `json:"translated"`
	HumanAuthored int      `json:"human_authored"`
	Missing       []string `json:"missing,omitempty"`
}

// WriteOutput writes lines to path, dispatching on its extension, and
// returns the delivery summary. The file is written atomically.
func WriteOutput(path string, lines []model.DialogueLine) (*Summary, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("export: no lines to write")
	}

	ext := strings.ToLower(filepath.Ext(path))
	var buf bytes.Buffer
	var err error
	switch ext {
	case ".csv":
		err = WriteCSV(&buf, lines)
	case ".jsonl":
		err = WriteJSONL(&buf, lines)
	case ".txt":
		err = WriteTXT(&buf, lines)
	default:
		return nil, fmt.Errorf("export: unsupported output format %q", ext)
	}
	if err != nil {
		return nil, err
	}

	if err := storage.WriteAtomic(path, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("export: write %s: %w", path, err)
	}

	summary := &Summary{Path: path, Format: strings.TrimPrefix(ext, "."), Lines: len(lines)}
	for _, line := range lines {
		if line.Translation.Empty() {
			summary.Missing = append(summary.Missing, line.ID)
			continue
		}
		summary.Translated++
		if model.HumanAuthored(line.Translation.Origin) {
			summary.HumanAuthored++
		}
	}
	return summary, nil
}

// WriteCSV emits the header-mapped column layout ReadCSV accepts.
func WriteCSV(w io.Writer, lines []model.DialogueLine) error {
	cw := csv.NewWriter(w)
	header := []string{"id", "scene", "route", "speaker", "source", "translation", "translation_origin", "context_note", "qa_note"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("export: write csv header: %w", err)
	}
	for _, line := range lines {
		row := []string{
			line.ID, line.Scene, line.Route, line.Speaker, line.Source,
			line.Translation.Value, line.Translation.Origin,
			line.ContextNote.Value, line.QANote.Value,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export: write csv row %s: %w", line.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: flush csv: %w", err)
	}
	return nil
}

// WriteJSONL emits one DialogueLine JSON object per line, lossless
// against ReadJSONL.
func WriteJSONL(w io.Writer, lines []model.DialogueLine) error {
	enc := json.NewEncoder(w)
	for _, line := range lines {
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("export: write jsonl line %s: %w", line.ID, err)
		}
	}
	return nil
}

// WriteTXT emits translated text one line per line, re-emitting scene
// markers on scene changes. Untranslated lines fall back to the source
// so the output script stays complete.
func WriteTXT(w io.Writer, lines []model.DialogueLine) error {
	scene := ""
	first := true
	for _, line := range lines {
		if line.Scene != scene {
			scene = line.Scene
			if scene != "" {
				if !first {
					if _, err := fmt.Fprintln(w); err != nil {
						return fmt.Errorf("export: write txt: %w", err)
					}
				}
				if _, err := fmt.Fprintf(w, "[%s]\n", scene); err != nil {
					return fmt.Errorf("export: write txt: %w", err)
				}
			}
		}
		text := line.Translation.Value
		if text == "" {
			text = line.Source
		}
		if _, err := fmt.Fprintln(w, text); err != nil {
			return fmt.Errorf("export: write txt: %w", err)
		}
		first = false
	}
	return nil
}
