// Package report renders mirror run results.
//
// Three formats are supported: a plain text listing with one line per
// resource and a closing summary (the default), Markdown for sharing, and
// JSON for other tools. All writers implement Writer.
package report
