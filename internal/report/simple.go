package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/spider/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing to show are printed.
	showEmpty bool

	// verbose lists every saved image in addition to the page table.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *model.Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeTotals(&sb, summary)
	w.writePages(&sb, summary)
	w.writeFailures(&sb, summary)
	if w.verbose {
		w.writeImages(&sb, summary)
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeSection writes a section title between rules.
func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeHeader writes the report header with crawl information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          SPIDER REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Seed URL:       %s\n", summary.Seed)
	fmt.Fprintf(sb, "Target Dir:     %s\n", summary.TargetDir)
	fmt.Fprintf(sb, "Started:        %s\n", summary.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:       %s\n", summary.Duration().Round(time.Millisecond))
	if summary.Recursive {
		fmt.Fprintf(sb, "Recursion:      depth %d, %s origin\n", summary.MaxDepth, originLabel(summary.OriginPolicy))
	} else {
		sb.WriteString("Recursion:      off\n")
	}

	if summary.Error != "" {
		fmt.Fprintf(sb, "Status:         %s - %s\n", strings.ToUpper(status(summary)), summary.Error)
	} else {
		fmt.Fprintf(sb, "Status:         %s\n", status(summary))
	}

	sb.WriteString("\n")
}

// writeTotals writes the run totals.
func (w *SimpleWriter) writeTotals(sb *strings.Builder, summary *model.Summary) {
	writeSection(sb, "SUMMARY")

	fmt.Fprintf(sb, "  Pages visited:     %d\n", summary.PagesVisited())
	fmt.Fprintf(sb, "  Pages failed:      %d\n", summary.PagesFailed())
	fmt.Fprintf(sb, "  Images downloaded: %d\n", summary.TotalDownloaded)
	fmt.Fprintf(sb, "  Downloads failed:  %d\n", summary.DownloadsFailed())
	fmt.Fprintf(sb, "  Bytes written:     %s\n", formatBytes(summary.BytesWritten()))
	sb.WriteString("\n")
}

// writePages writes one line per visited page, indented by depth.
func (w *SimpleWriter) writePages(sb *strings.Builder, summary *model.Summary) {
	if len(summary.Nodes) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "PAGES")

	if len(summary.Nodes) == 0 {
		sb.WriteString("  No pages visited\n\n")
		return
	}

	for _, node := range summary.Nodes {
		indent := strings.Repeat("  ", node.Depth)
		if !node.OK() {
			fmt.Fprintf(sb, "  %s[!] %s\n", indent, node.URL)
			fmt.Fprintf(sb, "  %s    Error: %s\n", indent, node.Error)
			continue
		}
		fmt.Fprintf(sb, "  %s[+] %s (%d downloaded", indent, node.URL, node.Downloaded)
		if node.Failed > 0 {
			fmt.Fprintf(sb, ", %d failed", node.Failed)
		}
		sb.WriteString(")\n")
	}
	sb.WriteString("\n")
}

// writeFailures writes the failed downloads.
func (w *SimpleWriter) writeFailures(sb *strings.Builder, summary *model.Summary) {
	failures := failedDownloads(summary)
	if len(failures) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "FAILED DOWNLOADS")

	if len(failures) == 0 {
		sb.WriteString("  No failed downloads\n\n")
		return
	}

	for _, img := range failures {
		fmt.Fprintf(sb, "  * %s\n", img.URL)
		if img.Error != "" {
			fmt.Fprintf(sb, "    Error: %s\n", img.Error)
		}
	}
	sb.WriteString("\n")
}

// writeImages lists every saved image.
func (w *SimpleWriter) writeImages(sb *strings.Builder, summary *model.Summary) {
	writeSection(sb, "SAVED IMAGES")

	saved := 0
	for _, img := range summary.Images {
		if !img.Success {
			continue
		}
		saved++
		fmt.Fprintf(sb, "  * %s\n", img.Path)
		fmt.Fprintf(sb, "    From: %s (%s)\n", img.URL, formatBytes(img.BytesWritten))
	}
	if saved == 0 {
		sb.WriteString("  No images saved\n")
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by spider\n")
	sb.WriteString("https://github.com/nao1215/spider\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
