// Package report renders finished crawl runs.
//
// Writers share one interface so they can be composed with MultiWriter:
//   - TextWriter: plain text for terminal display
//   - JSONWriter: the run as JSON for tool integration
//   - MarkdownWriter: tables and a mermaid chart of the depth distribution
//
// Report data lives in the model package; this package only formats it.
package report
