// Package ingest loads dialogue scripts into the pipeline's line model.
// Format parsing stays behind this boundary; the orchestrator only ever
// sees []model.DialogueLine.
//
// Three formats are recognized by file extension:
//
//	.csv    header-mapped columns (source required; id, scene, route,
//	        speaker, translation, context_note, qa_note optional)
//	.jsonl  one model.DialogueLine JSON object per line (lossless)
//	.txt    one source line per line; "[scene]" lines set the current
//	        scene; "#" lines are comments
//
// Lines without an explicit ID are assigned sequential ones so every
// line is addressable by the approval gate and QA findings.
package ingest

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/trevorWieland/rentl-sub001/internal/model"
)

// LoadSource reads the script at path, dispatching on its extension.
func LoadSource(path string) ([]model.DialogueLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open %s: %w", path, err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return ReadCSV(f)
	case ".jsonl":
		return ReadJSONL(f)
	case ".txt":
		return ReadTXT(f)
	default:
		return nil, fmt.Errorf("ingest: unsupported source format %q", ext)
	}
}

// ReadCSV parses a header-mapped CSV script. Column names are matched
// case-insensitively; unknown columns are ignored.
func ReadCSV(r io.Reader) ([]model.DialogueLine, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ingest: read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("ingest: csv is empty")
	}

	cols := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["source"]; !ok {
		return nil, fmt.Errorf("ingest: csv has no source column")
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var lines []model.DialogueLine
	for n, row := range records[1:] {
		source := field(row, "source")
		if strings.TrimSpace(source) == "" {
			continue
		}
		line := model.DialogueLine{
			ID:      field(row, "id"),
			Scene:   field(row, "scene"),
			Route:   field(row, "route"),
			Speaker: field(row, "speaker"),
			Source:  source,
			Translation: model.ProvenanceValue{
				Value:  field(row, "translation"),
				Origin: field(row, "translation_origin"),
			},
			ContextNote: model.ProvenanceValue{Value: field(row, "context_note")},
			QANote:      model.ProvenanceValue{Value: field(row, "qa_note")},
		}
		if line.ID == "" {
			line.ID = lineID(n)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("ingest: csv has no dialogue rows")
	}
	return dedupe(lines)
}

// ReadJSONL parses one DialogueLine JSON object per line.
func ReadJSONL(r io.Reader) ([]model.DialogueLine, error) {
	var lines []model.DialogueLine
	scanner := newLineScanner(r)
	n := 0
	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var line model.DialogueLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			return nil, fmt.Errorf("ingest: parse jsonl line %d: %w", n+1, err)
		}
		if strings.TrimSpace(line.Source) == "" {
			return nil, fmt.Errorf("ingest: jsonl line %d: missing source", n+1)
		}
		if line.ID == "" {
			line.ID = lineID(n)
		}
		lines = append(lines, line)
		n++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ingest: read jsonl: %w", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("ingest: jsonl has no dialogue lines")
	}
	return dedupe(lines)
}

// ReadTXT parses a plain script: one source line per line, "[name]"
// setting the current scene, "#" prefixing comments.
func ReadTXT(r io.Reader) ([]model.DialogueLine, error) {
	var lines []model.DialogueLine
	scene := ""
	scanner := newLineScanner(r)
	n := 0
	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		switch {
		case raw == "" || strings.HasPrefix(raw, "#"):
		case strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]"):
			scene = strings.TrimSpace(raw[1 : len(raw)-1])
		default:
			lines = append(lines, model.DialogueLine{
				ID:     lineID(n),
				Scene:  scene,
				Source: raw,
			})
			n++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ingest: read txt: %w", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("ingest: txt has no dialogue lines")
	}
	return lines, nil
}

func lineID(n int) string {
	return fmt.Sprintf("line-%04d", n+1)
}

// dedupe rejects duplicate line IDs; downstream phases address lines by
// ID, so collisions would make results ambiguous.
func dedupe(lines []model.DialogueLine) ([]model.DialogueLine, error) {
	seen := make(map[string]bool, len(lines))
	for _, line := range lines {
		if seen[line.ID] {
			return nil, fmt.Errorf("ingest: duplicate line id %q", line.ID)
		}
		seen[line.ID] = true
	}
	return lines, nil
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return scanner
}
