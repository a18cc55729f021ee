package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/deepcrawl/internal/model"
)

// createTestRun creates a finished best-first run with sample data.
func createTestRun() *model.CrawlRun {
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &model.CrawlRun{
		ID:         7,
		Strategy:   "best-first",
		StartURL:   "https://example.com/",
		State:      model.RunStateCompleted,
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		Results: []*model.CrawlResult{
			{URL: "https://example.com/", Success: true, Depth: 0, Title: "Home", StatusCode: 200, Content: "<html>home</html>", Score: 1},
			{URL: "https://example.com/docs/", Success: true, Depth: 1, Title: "Docs", StatusCode: 200, Score: 0.8},
			{URL: "https://example.com/gone", Success: false, Depth: 1, StatusCode: 404, Error: "unexpected HTTP status: 404", Score: 0.4},
		},
		Stats: model.RunStats{
			PagesCrawled:      2,
			PagesFailed:       1,
			SuccessRate:       2.0 / 3.0,
			DepthDistribution: map[int]int{0: 1, 1: 2},
			MaxFrontier:       4,
			Categories:        3,
			ScoreInversions:   1,
			Limiter:           &model.LimiterStats{Policy: "token_bucket", Total: 3, CurrentRate: 2},
			Dispatcher:        &model.DispatcherStats{Kind: "semaphore", Concurrency: 5, MinConcurrency: 5, MaxConcurrency: 5},
			Proxies: []model.ProxyStats{
				{Address: "127.0.0.1:9050", Total: 3, Success: 3, Healthy: true, AvgLatency: 120 * time.Millisecond},
			},
		},
	}
}

func TestTextWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewTextWriter(&buf).Write(createTestRun())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("expected %d bytes reported, got %d", buf.Len(), n)
		}

		output := buf.String()
		for _, want := range []string{
			"DEEPCRAWL REPORT",
			"Run:        #7",
			"https://example.com/",
			"best-first",
			"Completed",
			"Pages crawled:  2",
			"Success rate:   66.7%",
			"Categories:     3",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("writes depth distribution", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewTextWriter(&buf).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "DEPTH DISTRIBUTION") {
			t.Error("expected depth section")
		}
		if !strings.Contains(output, "depth 1       2  ##") {
			t.Errorf("expected depth 1 row, got:\n%s", output)
		}
	})

	t.Run("lists only failed pages by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewTextWriter(&buf).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "FAILED PAGES") {
			t.Error("expected failed pages section")
		}
		if !strings.Contains(output, "[x] https://example.com/gone") {
			t.Error("expected failed page entry")
		}
		if strings.Contains(output, "[+]") {
			t.Error("expected successful pages to be omitted")
		}
	})

	t.Run("lists every page when verbose", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewTextWriter(&buf, WithVerbose(true)).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := strings.Count(buf.String(), "[+]"); got != 2 {
			t.Errorf("expected 2 successful entries, got %d", got)
		}
	})

	t.Run("writes runtime section", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewTextWriter(&buf).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "token_bucket") {
			t.Error("expected limiter policy")
		}
		if !strings.Contains(output, "127.0.0.1:9050") {
			t.Error("expected proxy address")
		}
	})

	t.Run("marks aborted runs", func(t *testing.T) {
		t.Parallel()

		run := createTestRun()
		run.State = model.RunStateAborted

		var buf bytes.Buffer
		if _, err := NewTextWriter(&buf).Write(run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "Aborted (partial results)") {
			t.Error("expected aborted status")
		}
	})

	t.Run("handles empty run", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		run := &model.CrawlRun{Strategy: "bfs", StartURL: "https://example.com/", State: model.RunStateCompleted}
		if _, err := NewTextWriter(&buf).Write(run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(buf.String(), "DEPTH DISTRIBUTION") {
			t.Error("expected no depth section for empty run")
		}
	})
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes valid JSON without page bodies", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		run := createTestRun()
		if _, err := NewJSONWriter(&buf).Write(run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded model.CrawlRun
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.StartURL != run.StartURL {
			t.Errorf("expected start URL %q, got %q", run.StartURL, decoded.StartURL)
		}
		if len(decoded.Results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(decoded.Results))
		}
		if decoded.Results[0].Content != "" {
			t.Error("expected content to be omitted")
		}
		if run.Results[0].Content == "" {
			t.Error("expected the original run to keep its content")
		}
	})

	t.Run("keeps page bodies when asked", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithContent()).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "home") {
			t.Error("expected content in output")
		}
	})

	t.Run("pretty prints", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"strategy\": \"best-first\"") {
			t.Errorf("expected indented output, got:\n%s", buf.String())
		}
	})

	t.Run("compact output ends with newline", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if strings.Count(output, "\n") != 1 || !strings.HasSuffix(output, "\n") {
			t.Error("expected a single trailing newline")
		}
	})

	t.Run("wraps with version", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewVersionedJSONWriter(&buf, "1.2.3").Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded JSONReport
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Version != "1.2.3" {
			t.Errorf("expected version 1.2.3, got %q", decoded.Version)
		}
		if decoded.Run == nil || decoded.Run.ID != 7 {
			t.Error("expected wrapped run")
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes tables and depth chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewMarkdownWriter(&buf).Write(createTestRun())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n == 0 {
			t.Error("expected non-zero byte count")
		}

		output := buf.String()
		for _, want := range []string{
			"# Crawl Report",
			"## Summary",
			"## Depth Distribution",
			"```mermaid",
			"pie",
			"depth 1",
			"## Proxies",
			"## Pages",
			"https://example.com/docs/",
			"Score",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("warns on aborted run", func(t *testing.T) {
		t.Parallel()

		run := createTestRun()
		run.State = model.RunStateAborted

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "[!WARNING]") {
			t.Error("expected warning alert")
		}
	})

	t.Run("handles empty run", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		run := &model.CrawlRun{Strategy: "dfs", StartURL: "https://example.com/", State: model.RunStateCompleted}
		if _, err := NewMarkdownWriter(&buf).Write(run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "No pages were crawled.") {
			t.Error("expected empty message")
		}
		if strings.Contains(output, "mermaid") {
			t.Error("expected no chart for empty run")
		}
	})

	t.Run("omits score column for unscored strategies", func(t *testing.T) {
		t.Parallel()

		run := createTestRun()
		run.Strategy = "bfs"
		run.Stats.Categories = 0

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(buf.String(), "Score") {
			t.Error("expected no score column")
		}
	})
}

type failingWriter struct{}

func (failingWriter) Write(*model.CrawlRun) (int, error) {
	return 0, errors.New("disk full")
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		var text, js bytes.Buffer
		mw := NewMultiWriter(NewTextWriter(&text), NewJSONWriter(&js))

		n, err := mw.Write(createTestRun())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != text.Len()+js.Len() {
			t.Errorf("expected %d bytes, got %d", text.Len()+js.Len(), n)
		}
		if text.Len() == 0 || js.Len() == 0 {
			t.Error("expected both writers to receive output")
		}
	})

	t.Run("stops at first error", func(t *testing.T) {
		t.Parallel()

		var after bytes.Buffer
		mw := NewMultiWriter(failingWriter{}, NewTextWriter(&after))

		if _, err := mw.Write(createTestRun()); err == nil {
			t.Fatal("expected error")
		}
		if after.Len() != 0 {
			t.Error("expected later writers to be skipped")
		}
	})
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "short string unchanged", input: "abc", maxLen: 10, want: "abc"},
		{name: "long string gets ellipsis", input: "abcdefghij", maxLen: 6, want: "abc..."},
		{name: "tiny limit cuts without ellipsis", input: "abcdef", maxLen: 2, want: "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := truncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}
