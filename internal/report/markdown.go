package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/deepcrawl/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// maxMarkdownRows bounds the page table so huge runs stay readable.
const maxMarkdownRows = 200

// MarkdownWriter outputs runs in Markdown format for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the run in Markdown format.
func (w *MarkdownWriter) Write(run *model.CrawlRun) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, run)
	w.writeSummary(md, run)
	w.writeDepths(md, run)
	w.writeProxies(md, run)
	w.writePages(md, run)

	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by [deepcrawl](https://github.com/nao1215/deepcrawl)*")

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *model.CrawlRun) {
	md.H1("Crawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Start URL", "`" + run.StartURL + "`"},
		{"Strategy", run.Strategy},
		{"Started", run.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Duration", run.Duration().Round(time.Millisecond).String()},
		{"Status", statusText(run)},
	}
	if run.ID != 0 {
		rows = append([][]string{{"Run", "#" + strconv.FormatInt(run.ID, 10)}}, rows...)
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if run.State == model.RunStateAborted {
		md.Warningf("The run was cancelled. Results are partial.")
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, run *model.CrawlRun) {
	md.H2("Summary")
	md.PlainText("")

	s := run.Stats
	rows := [][]string{
		{"Pages crawled", strconv.Itoa(s.PagesCrawled)},
		{"Pages failed", strconv.Itoa(s.PagesFailed)},
		{"Success rate", fmt.Sprintf("%.1f%%", s.SuccessRate*100)},
		{"Max frontier", strconv.Itoa(s.MaxFrontier)},
	}
	if s.Categories > 0 {
		rows = append(rows,
			[]string{"Categories", strconv.Itoa(s.Categories)},
			[]string{"Score inversions", strconv.Itoa(s.ScoreInversions)},
		)
	}
	if l := s.Limiter; l != nil {
		rows = append(rows, []string{"Rate limiter", fmt.Sprintf("%s (%.2f req/s, %d denied)", l.Policy, l.CurrentRate, l.Denied)})
	}
	if d := s.Dispatcher; d != nil {
		rows = append(rows, []string{"Dispatcher", fmt.Sprintf("%s (concurrency %d)", d.Kind, d.Concurrency)})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeDepths(md *markdown.Markdown, run *model.CrawlRun) {
	depths := run.Stats.Depths()
	if len(depths) == 0 {
		return
	}

	md.H2("Depth Distribution")
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Pages per depth"),
		piechart.WithShowData(true),
	)
	rows := make([][]string, 0, len(depths))
	for _, d := range depths {
		n := run.Stats.DepthDistribution[d]
		chart.LabelAndIntValue("depth "+strconv.Itoa(d), uint64(n)) //nolint:gosec // counts are never negative
		rows = append(rows, []string{strconv.Itoa(d), strconv.Itoa(n)})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Depth", "Pages"},
		Rows:   rows,
	})
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeProxies(md *markdown.Markdown, run *model.CrawlRun) {
	if len(run.Stats.Proxies) == 0 {
		return
	}

	md.H2("Proxies")
	md.PlainText("")

	rows := make([][]string, 0, len(run.Stats.Proxies))
	for _, p := range run.Stats.Proxies {
		health := "✅"
		if !p.Healthy {
			health = "❌"
		}
		rows = append(rows, []string{
			"`" + p.Address + "`",
			health,
			fmt.Sprintf("%d/%d", p.Success, p.Total),
			p.AvgLatency.Round(time.Millisecond).String(),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Proxy", "Healthy", "OK/Total", "Avg latency"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writePages(md *markdown.Markdown, run *model.CrawlRun) {
	md.H2("Pages")
	md.PlainText("")

	if len(run.Results) == 0 {
		md.PlainText("No pages were crawled.")
		md.PlainText("")
		return
	}

	scored := run.Stats.Categories > 0
	header := []string{"#", "URL", "Depth", "Status", "Title"}
	if scored {
		header = append(header, "Score")
	}

	rows := make([][]string, 0, min(len(run.Results), maxMarkdownRows))
	for i, r := range run.Results {
		if i == maxMarkdownRows {
			break
		}
		status := "✅"
		if !r.Success {
			status = "❌ " + truncateString(r.Error, 40)
		} else if r.StatusCode != 0 {
			status = "✅ " + strconv.Itoa(r.StatusCode)
		}
		title := r.Title
		if title == "" {
			title = "-"
		}
		row := []string{
			strconv.Itoa(i + 1),
			truncateString(r.URL, 80),
			strconv.Itoa(r.Depth),
			status,
			truncateString(title, 50),
		}
		if scored {
			row = append(row, strconv.FormatFloat(r.Score, 'f', 3, 64))
		}
		rows = append(rows, row)
	}

	md.Table(markdown.TableSet{Header: header, Rows: rows})
	md.PlainText("")

	if len(run.Results) > maxMarkdownRows {
		md.Note(fmt.Sprintf("%d more pages omitted.", len(run.Results)-maxMarkdownRows))
		md.PlainText("")
	}
}
