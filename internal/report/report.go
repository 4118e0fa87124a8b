// Package report writes run results as a JSON report for downstream
// review tooling.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/signalfold/signalfold/internal/intel"
)

// Document is the serialized shape of one run report.
type Document struct {
	Summary  intel.RunSummary     `json:"summary"`
	Entities []intel.EntityRecord `json:"entities"`
}

// Writer renders run reports into an output directory.
type Writer struct {
	dir string
}

// NewWriter builds a Writer, creating the output directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Write renders the report and returns the path of the written file.
// Entities are expected to arrive already ranked.
func (w *Writer) Write(summary intel.RunSummary, entities []intel.EntityRecord) (string, error) {
	if summary.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}
	doc := Document{Summary: summary, Entities: entities}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	path := filepath.Join(w.dir, fmt.Sprintf("scan_%s.json", summary.RunID))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
