package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/spider/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeTotals(md, summary)
	w.writePages(md, summary)
	w.writeFailures(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with crawl information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.Summary) {
	md.H1("Spider Report")
	md.PlainText("")

	recursion := "Off"
	if summary.Recursive {
		recursion = "Depth " + strconv.Itoa(summary.MaxDepth) + ", " + originLabel(summary.OriginPolicy) + " origin"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed URL", "`" + summary.Seed + "`"},
			{"Target Directory", "`" + summary.TargetDir + "`"},
			{"Started", summary.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", summary.Duration().String()},
			{"Recursion", recursion},
			{"Status", w.getStatusText(summary)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on summary state.
func (w *MarkdownWriter) getStatusText(summary *model.Summary) string {
	switch {
	case summary.Error != "":
		return "❌ Failed - " + summary.Error
	case summary.Cancelled:
		return "⚠️ Cancelled (partial results)"
	default:
		return "✅ Complete"
	}
}

// writeTotals writes the totals table, a chart and an alert.
func (w *MarkdownWriter) writeTotals(md *markdown.Markdown, summary *model.Summary) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Pages visited", strconv.Itoa(summary.PagesVisited())},
			{"Pages failed", strconv.Itoa(summary.PagesFailed())},
			{"Images downloaded", "**" + strconv.Itoa(summary.TotalDownloaded) + "**"},
			{"Downloads failed", strconv.Itoa(summary.DownloadsFailed())},
			{"Bytes written", formatBytes(summary.BytesWritten())},
		},
	})
	md.PlainText("")

	if len(summary.Images) > 0 {
		w.writePieChart(md, summary)
	}

	w.writeAlert(md, summary)
}

// writePieChart writes a mermaid pie chart of download outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Download Outcomes"),
		piechart.WithShowData(true),
	)

	if summary.TotalDownloaded > 0 {
		chart.LabelAndIntValue("Saved", uint64(summary.TotalDownloaded))
	}
	if failed := summary.DownloadsFailed(); failed > 0 {
		chart.LabelAndIntValue("Failed", uint64(failed))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert for how the crawl went.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *model.Summary) {
	switch {
	case summary.Error != "":
		md.Cautionf("The seed URL could not be fetched: %s", summary.Error)
	case summary.Cancelled:
		md.Warningf("The crawl was cancelled after %d page(s). Results are partial.", len(summary.Nodes))
	case summary.DownloadsFailed() > 0 || summary.PagesFailed() > 0:
		md.Importantf(
			"%d page(s) and %d image download(s) failed.",
			summary.PagesFailed(), summary.DownloadsFailed(),
		)
	case summary.TotalDownloaded == 0:
		md.Note("No images were found.")
	default:
		md.Tip("All pages and images were retrieved.")
	}
	md.PlainText("")
}

// writePages writes the visited pages table.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, summary *model.Summary) {
	md.H2("Pages")
	md.PlainText("")

	if len(summary.Nodes) == 0 {
		md.PlainText("No pages visited.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(summary.Nodes))
	for i, node := range summary.Nodes {
		state := "✅"
		if !node.OK() {
			state = "❌ " + truncateString(node.Error, 60)
		}
		rows[i] = []string{
			strconv.Itoa(node.Depth),
			truncateString(node.URL, 80),
			strconv.Itoa(node.ImagesFound),
			strconv.Itoa(node.Downloaded),
			strconv.Itoa(node.Failed),
			state,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Depth", "URL", "Images", "Downloaded", "Failed", "Status"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFailures writes the failed downloads table.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, summary *model.Summary) {
	failures := failedDownloads(summary)
	if len(failures) == 0 {
		return
	}

	md.H2("Failed Downloads")
	md.PlainText("")

	rows := make([][]string, len(failures))
	for i, img := range failures {
		rows[i] = []string{truncateString(img.URL, 80), truncateString(img.Error, 80)}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [spider](https://github.com/nao1215/spider)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
