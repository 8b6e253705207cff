package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/spider/internal/model"
)

// JSONWriter outputs reports in JSON format.
// This format is designed for tool integration and programmatic processing.
//
// Design decision: We use standard encoding/json rather than a third-party
// JSON library because:
// 1. It's part of the standard library (no extra dependencies)
// 2. It's sufficient for our needs
// 3. It provides consistent behavior across Go versions
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version, when set, wraps the summary in a JSONReport.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion wraps the output in a JSONReport carrying the tool version
// and the derived totals.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the summary in JSON format.
func (w *JSONWriter) Write(summary *model.Summary) (int, error) {
	if w.version != "" {
		return w.writeJSON(NewJSONReport(summary, w.version))
	}
	return w.writeJSON(summary)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}

// Totals holds the values derived from a Summary, so JSON consumers do not
// have to recompute them.
type Totals struct {
	PagesVisited    int   `json:"pages_visited"`
	PagesFailed     int   `json:"pages_failed"`
	ImagesSaved     int   `json:"images_saved"`
	DownloadsFailed int   `json:"downloads_failed"`
	BytesWritten    int64 `json:"bytes_written"`
	DurationMillis  int64 `json:"duration_ms"`
}

// JSONReport is a wrapper for the summary with additional metadata.
//
// Design decision: We wrap the summary rather than adding fields to
// model.Summary because this allows us to add output-specific fields
// without polluting the core data structure.
type JSONReport struct {
	// Version is the spider version that generated this report.
	Version string `json:"version"`

	// Status is "Complete", "Cancelled" or "Failed".
	Status string `json:"status"`

	// Totals are the derived counts.
	Totals Totals `json:"totals"`

	// Summary is the full crawl summary.
	Summary *model.Summary `json:"summary"`
}

// NewJSONReport creates a JSONReport wrapper with version information.
func NewJSONReport(summary *model.Summary, version string) *JSONReport {
	return &JSONReport{
		Version: version,
		Status:  status(summary),
		Totals: Totals{
			PagesVisited:    summary.PagesVisited(),
			PagesFailed:     summary.PagesFailed(),
			ImagesSaved:     summary.TotalDownloaded,
			DownloadsFailed: summary.DownloadsFailed(),
			BytesWritten:    summary.BytesWritten(),
			DurationMillis:  summary.Duration().Milliseconds(),
		},
		Summary: summary,
	}
}
