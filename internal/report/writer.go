package report

import (
	"io"

	"github.com/nao1215/deepcrawl/internal/model"
)

// Writer is the interface for run report output.
type Writer interface {
	// Write outputs the run and returns the number of bytes written.
	Write(run *model.CrawlRun) (int, error)
}

// MultiWriter writes a run to several writers.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a MultiWriter that writes to all the given writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write writes to every writer in order and returns the total byte count.
// It stops at the first error.
func (m *MultiWriter) Write(run *model.CrawlRun) (int, error) {
	total := 0
	for _, w := range m.writers {
		n, err := w.Write(run)
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
func statusText(run *model.CrawlRun) string {
	switch run.State {
	case model.RunStateCompleted:
		return "Completed"
	case model.RunStateAborted:
		return "Aborted (partial results)"
	default:
		return string(run.State)
	}
}

// truncateString truncates a string to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
