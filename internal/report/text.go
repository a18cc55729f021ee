package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/deepcrawl/internal/model"
)

const ruleWidth = 70

// TextWriter outputs human-readable plain text reports.
type TextWriter struct {
	baseWriter

	// verbose lists every result instead of failures only.
	verbose bool
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithVerbose lists every crawled page, not only the failed ones.
func WithVerbose(verbose bool) TextWriterOption {
	return func(w *TextWriter) {
		w.verbose = verbose
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run in plain text.
func (w *TextWriter) Write(run *model.CrawlRun) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, run)
	w.writeSummary(&sb, run)
	w.writeDepths(&sb, run)
	w.writeRuntime(&sb, run)
	w.writePages(&sb, run)

	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}

func (w *TextWriter) writeHeader(sb *strings.Builder, run *model.CrawlRun) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                          DEEPCRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	if run.ID != 0 {
		fmt.Fprintf(sb, "Run:        #%d\n", run.ID)
	}
	fmt.Fprintf(sb, "Start URL:  %s\n", run.StartURL)
	fmt.Fprintf(sb, "Strategy:   %s\n", run.Strategy)
	fmt.Fprintf(sb, "Started:    %s\n", run.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:   %s\n", run.Duration().Round(time.Millisecond))
	fmt.Fprintf(sb, "Status:     %s\n", statusText(run))
	sb.WriteString("\n")
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

func (w *TextWriter) writeSummary(sb *strings.Builder, run *model.CrawlRun) {
	section(sb, "SUMMARY")

	s := run.Stats
	fmt.Fprintf(sb, "  Pages crawled:  %d\n", s.PagesCrawled)
	fmt.Fprintf(sb, "  Pages failed:   %d\n", s.PagesFailed)
	fmt.Fprintf(sb, "  Success rate:   %.1f%%\n", s.SuccessRate*100)
	fmt.Fprintf(sb, "  Max frontier:   %d\n", s.MaxFrontier)
	if s.Categories > 0 {
		fmt.Fprintf(sb, "  Categories:     %d\n", s.Categories)
		fmt.Fprintf(sb, "  Inversions:     %d\n", s.ScoreInversions)
	}
	sb.WriteString("\n")
}

func (w *TextWriter) writeDepths(sb *strings.Builder, run *model.CrawlRun) {
	depths := run.Stats.Depths()
	if len(depths) == 0 {
		return
	}

	section(sb, "DEPTH DISTRIBUTION")
	for _, d := range depths {
		n := run.Stats.DepthDistribution[d]
		fmt.Fprintf(sb, "  depth %-3d %5d  %s\n", d, n, strings.Repeat("#", min(n, 50)))
	}
	sb.WriteString("\n")
}

func (w *TextWriter) writeRuntime(sb *strings.Builder, run *model.CrawlRun) {
	s := run.Stats
	if s.Limiter == nil && s.Dispatcher == nil && len(s.Proxies) == 0 {
		return
	}

	section(sb, "RUNTIME")
	if l := s.Limiter; l != nil {
		fmt.Fprintf(sb, "  Rate limiter:   %s, %d requests, %d denied, %.2f req/s\n",
			l.Policy, l.Total, l.Denied, l.CurrentRate)
	}
	if d := s.Dispatcher; d != nil {
		fmt.Fprintf(sb, "  Dispatcher:     %s, concurrency %d (%d-%d), %d adjustments\n",
			d.Kind, d.Concurrency, d.MinConcurrency, d.MaxConcurrency, d.Adjustments)
	}
	for _, p := range s.Proxies {
		health := "healthy"
		if !p.Healthy {
			health = "unhealthy"
		}
		fmt.Fprintf(sb, "  Proxy %-20s %s, %d/%d ok, avg %s\n",
			p.Address, health, p.Success, p.Total, p.AvgLatency.Round(time.Millisecond))
	}
	sb.WriteString("\n")
}

func (w *TextWriter) writePages(sb *strings.Builder, run *model.CrawlRun) {
	title := "FAILED PAGES"
	if w.verbose {
		title = "PAGES"
	}

	var lines []string
	for _, r := range run.Results {
		switch {
		case !r.Success:
			lines = append(lines, fmt.Sprintf("  [x] %s (depth %d): %s", r.URL, r.Depth, r.Error))
		case w.verbose:
			lines = append(lines, fmt.Sprintf("  [+] %s (depth %d) %s", r.URL, r.Depth, truncateString(r.Title, 40)))
		}
	}
	if len(lines) == 0 {
		return
	}

	section(sb, title)
	for _, line := range lines {
		sb.WriteString(strings.TrimRight(line, " "))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}
