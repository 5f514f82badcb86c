package report

import (
	"io"

	"github.com/nao1215/webmirror/internal/model"
)

// Writer renders mirror reports.
type Writer interface {
	// Write outputs the report and returns the number of bytes written.
	Write(report *model.MirrorReport) (int, error)
}

// MultiWriter writes each report to several Writers.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to every writer, stopping at the first error.
func (m *MultiWriter) Write(report *model.MirrorReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter holds the output destination shared by all writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusText describes how a run ended.
func statusText(report *model.MirrorReport) string {
	switch {
	case report.TimedOut:
		return "Interrupted (partial mirror)"
	case report.State == model.StateFailed:
		return "Failed - " + report.ErrorMessage
	case report.State == model.StateDone && report.Summary().Failed > 0:
		return "Done (partial mirror)"
	case report.State == model.StateDone:
		return "Done"
	default:
		return report.State.String()
	}
}

// truncateString shortens s to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
