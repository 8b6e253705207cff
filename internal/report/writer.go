package report

import (
	"fmt"
	"io"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/spider/internal/model"
)

// Writer defines the interface for report output.
// Implementations write crawl summaries in various formats.
//
// Design decision: We use an interface to allow different output formats
// and destinations. This enables writing to files, stdout, or network
// connections with the same API.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(summary *model.Summary) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because our Writer interface is different
// from io.Writer - we write reports, not raw bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(summary *model.Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// titleCaser capitalizes labels such as the origin policy name.
var titleCaser = cases.Title(language.English)

// status returns a short description of how the crawl ended.
func status(summary *model.Summary) string {
	switch {
	case summary.Error != "":
		return "Failed"
	case summary.Cancelled:
		return "Cancelled"
	default:
		return "Complete"
	}
}

// originLabel returns the display name of the origin policy.
func originLabel(policy model.OriginPolicy) string {
	if policy == "" {
		return "-"
	}
	return titleCaser.String(policy.String())
}

// formatBytes formats a byte count using binary units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// failedDownloads returns the download outcomes that failed, in crawl order.
func failedDownloads(summary *model.Summary) []model.DownloadOutcome {
	failures := make([]model.DownloadOutcome, 0)
	for _, img := range summary.Images {
		if img.Failed() {
			failures = append(failures, img)
		}
	}
	return failures
}
