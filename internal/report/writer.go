// Package report renders opportunity reports for the command line.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/romangod6/linkscout/internal/models"
)

// Supported output formats.
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// Writer renders a finished scan.
type Writer interface {
	Write(report *models.OpportunityReport) error
}

// NewWriter returns the writer for format ("json" or "markdown").
func NewWriter(format string, output io.Writer) (Writer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON, "":
		return NewJSONWriter(output), nil
	case FormatMarkdown, "md":
		return NewMarkdownWriter(output), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q (want %s or %s)", format, FormatJSON, FormatMarkdown)
	}
}

// JSONWriter emits the report in the same shape the HTTP API returns.
type JSONWriter struct {
	output io.Writer
}

func NewJSONWriter(output io.Writer) *JSONWriter {
	return &JSONWriter{output: output}
}

func (w *JSONWriter) Write(report *models.OpportunityReport) error {
	enc := json.NewEncoder(w.output)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
