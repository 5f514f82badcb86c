package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nao1215/webmirror/internal/model"
)

// SimpleWriter prints one line per resource outcome followed by a summary
// naming the mirror directory.
type SimpleWriter struct {
	baseWriter

	// verbose adds page metadata, image findings and the rename table.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables the extra sections.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report.
func (w *SimpleWriter) Write(report *model.MirrorReport) (int, error) {
	var sb strings.Builder

	if report.State == model.StateFailed {
		fmt.Fprintf(&sb, "failed to mirror %s: %s\n", report.URL, report.ErrorMessage)
		return w.output.Write([]byte(sb.String()))
	}

	for _, o := range report.Outcomes {
		sb.WriteString(FormatOutcome(o))
		sb.WriteString("\n")
	}

	if w.verbose {
		w.writePageInfo(&sb, report.PageInfo)
		w.writeFindings(&sb, report.ImageFindings)
		w.writeRenames(&sb, report)
	}

	sb.WriteString(FormatSummary(report))
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}

// FormatOutcome renders one resource line.
func FormatOutcome(o model.ResourceOutcome) string {
	target := o.AbsoluteURL
	if target == "" {
		target = o.Reference.RawURL
	}
	switch o.Status {
	case model.StatusDownloaded:
		return fmt.Sprintf("%-10s %s -> %s (%s)", o.Status, target, o.LocalPath, humanize.Bytes(uint64(max(o.Bytes, 0))))
	default:
		return fmt.Sprintf("%-10s %s (%s)", o.Status, target, o.Reason)
	}
}

// FormatSummary renders the closing summary line.
func FormatSummary(report *model.MirrorReport) string {
	s := report.Summary()
	line := fmt.Sprintf("mirrored %s into %s: %d downloaded, %d skipped, %d failed, %s in %s",
		report.URL,
		report.MirrorDir,
		s.Downloaded,
		s.Skipped,
		s.Failed,
		humanize.Bytes(uint64(max(s.Bytes, 0))),
		report.Duration().Round(time.Millisecond),
	)
	if report.TimedOut {
		line += " (interrupted)"
	}
	return line
}

func (w *SimpleWriter) writePageInfo(sb *strings.Builder, info *model.PageInfo) {
	if info == nil {
		return
	}
	sb.WriteString("\npage:\n")
	for _, field := range [][2]string{
		{"title", info.Title},
		{"byline", info.Byline},
		{"site", info.SiteName},
		{"language", info.Language},
	} {
		if field[1] != "" {
			fmt.Fprintf(sb, "  %-9s %s\n", field[0]+":", field[1])
		}
	}
}

func (w *SimpleWriter) writeFindings(sb *strings.Builder, findings []model.ImageFinding) {
	if len(findings) == 0 {
		return
	}
	sb.WriteString("\nimage metadata:\n")
	for _, f := range findings {
		fmt.Fprintf(sb, "  [%s] %s %s=%s\n", f.Kind, f.LocalPath, f.Tag, f.Value)
	}
}

func (w *SimpleWriter) writeRenames(sb *strings.Builder, report *model.MirrorReport) {
	if len(report.RenameMap) == 0 {
		return
	}
	sb.WriteString("\nrenamed:\n")
	for _, k := range report.SortedRenameKeys() {
		fmt.Fprintf(sb, "  %s -> %s\n", k, report.RenameMap[k])
	}
	sb.WriteString("\n")
}
