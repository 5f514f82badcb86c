package report

import (
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/webmirror/internal/model"
)

// MarkdownWriter outputs reports as Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report.
func (w *MarkdownWriter) Write(report *model.MirrorReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	if report.State != model.StateFailed {
		w.writeSummary(md, report)
		w.writeResources(md, report)
		w.writePageInfo(md, report.PageInfo)
		w.writeFindings(md, report.ImageFindings)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.MirrorReport) {
	md.H1("Mirror Report")
	md.PlainText("")

	rows := [][]string{
		{"URL", "`" + report.URL + "`"},
		{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Status", statusText(report)},
	}
	if report.MirrorDir != "" {
		rows = append(rows, []string{"Mirror Directory", "`" + report.MirrorDir + "`"})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if report.State == model.StateFailed {
		md.Cautionf("The page could not be fetched: %s", report.ErrorMessage)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.MirrorReport) {
	s := report.Summary()

	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"Downloaded", strconv.Itoa(s.Downloaded)},
			{"Skipped", strconv.Itoa(s.Skipped)},
			{"Failed", strconv.Itoa(s.Failed)},
			{"**Total**", "**" + strconv.Itoa(s.Total()) + "**"},
			{"Bytes", humanize.Bytes(uint64(max(s.Bytes, 0)))},
		},
	})
	md.PlainText("")

	if s.Total() > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Resource Outcomes"),
			piechart.WithShowData(true),
		)
		for _, part := range []struct {
			label string
			n     int
		}{
			{"Downloaded", s.Downloaded},
			{"Skipped", s.Skipped},
			{"Failed", s.Failed},
		} {
			if part.n > 0 {
				chart.LabelAndIntValue(part.label, uint64(part.n))
			}
		}
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	switch {
	case s.Failed > 0:
		md.Warningf("%d resource(s) could not be mirrored; their references were left unchanged.", s.Failed)
	case s.Downloaded > 0:
		md.Tip("Every same-origin resource was mirrored.")
	default:
		md.Note("The page references no same-origin resources.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeResources(md *markdown.Markdown, report *model.MirrorReport) {
	md.H2("Resources")
	md.PlainText("")

	if len(report.Outcomes) == 0 {
		md.PlainText("No resources referenced.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Outcomes))
	for i, o := range report.Outcomes {
		local := o.LocalPath
		if local == "" {
			local = "-"
		}
		reason := o.Reason
		if reason == "" {
			reason = "-"
		}
		rows[i] = []string{
			string(o.Status),
			o.Reference.Kind.String(),
			"`" + truncateString(o.Reference.RawURL, 60) + "`",
			local,
			truncateString(reason, 60),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Status", "Kind", "Reference", "Local Path", "Reason"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writePageInfo(md *markdown.Markdown, info *model.PageInfo) {
	if info == nil {
		return
	}
	md.H2("Page")
	md.PlainText("")

	var rows [][]string
	for _, field := range [][2]string{
		{"Title", info.Title},
		{"Byline", info.Byline},
		{"Site", info.SiteName},
		{"Language", info.Language},
		{"Excerpt", truncateString(info.Excerpt, 120)},
	} {
		if field[1] != "" {
			rows = append(rows, []string{field[0], field[1]})
		}
	}
	if len(rows) == 0 {
		md.PlainText("No page metadata found.")
		md.PlainText("")
		return
	}
	md.Table(markdown.TableSet{
		Header: []string{"Field", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFindings(md *markdown.Markdown, findings []model.ImageFinding) {
	if len(findings) == 0 {
		return
	}
	md.H2("Image Metadata")
	md.PlainText("")
	md.Importantf("%d identifying metadata tag(s) found in mirrored images.", len(findings))
	md.PlainText("")

	rows := make([][]string, len(findings))
	for i, f := range findings {
		rows[i] = []string{f.LocalPath, f.Kind, f.Tag, truncateString(f.Value, 50)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Image", "Kind", "Tag", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [webmirror](https://github.com/nao1215/webmirror)*")
}
