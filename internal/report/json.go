package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/deepcrawl/internal/model"
)

// JSONWriter outputs runs in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string

	// withContent keeps page bodies in the output.
	withContent bool
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithContent includes the fetched page bodies. They are omitted by default.
func WithContent() JSONWriterOption {
	return func(w *JSONWriter) {
		w.withContent = true
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport wraps a run with the generating tool version.
type JSONReport struct {
	Version string          `json:"version,omitempty"`
	Run     *model.CrawlRun `json:"run"`
}

// Write outputs the run in JSON format.
func (w *JSONWriter) Write(run *model.CrawlRun) (int, error) {
	return w.writeJSON(w.prepare(run))
}

func (w *JSONWriter) prepare(run *model.CrawlRun) *model.CrawlRun {
	if w.withContent {
		return run
	}
	stripped := *run
	stripped.Results = make([]*model.CrawlResult, len(run.Results))
	for i, r := range run.Results {
		c := *r
		c.Content = ""
		stripped.Results[i] = &c
	}
	return &stripped
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}

// VersionedJSONWriter outputs runs wrapped in a JSONReport.
type VersionedJSONWriter struct {
	*JSONWriter

	version string
}

// NewVersionedJSONWriter creates a writer that tags each run with version.
func NewVersionedJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *VersionedJSONWriter {
	return &VersionedJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the run wrapped with version metadata.
func (w *VersionedJSONWriter) Write(run *model.CrawlRun) (int, error) {
	return w.writeJSON(&JSONReport{Version: w.version, Run: w.prepare(run)})
}
