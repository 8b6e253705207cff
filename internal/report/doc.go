// Package report renders a finished crawl's model.Summary for people and tools.
//
// Three writers share the Writer interface:
//   - SimpleWriter prints the per-page tree and failed downloads as plain text
//   - JSONWriter emits the Summary, optionally wrapped with derived totals
//   - MarkdownWriter produces GitHub Flavored Markdown with a pie chart of
//     saved and failed images
//
// Design decision: Writers only read the Summary. Counting happens in the
// model package, so a report can never disagree with the progress lines the
// crawler printed while running. MultiWriter fans one Summary out to several
// writers when a run needs more than one format.
package report
