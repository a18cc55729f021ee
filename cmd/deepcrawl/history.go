package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/deepcrawl/internal/config"
	"github.com/nao1215/deepcrawl/internal/crawler"
	"github.com/nao1215/deepcrawl/internal/database"
	"github.com/nao1215/deepcrawl/internal/model"
	"github.com/nao1215/deepcrawl/internal/report"
)

// errNoRuns is returned when the run database has not been created yet.
var errNoRuns = errors.New("no runs recorded yet")

// NewHistoryCmd creates the history command.
// This command inspects crawl runs stored in the database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List, show and compare stored crawl runs",
		Long: `History inspects the crawl runs saved by 'deepcrawl crawl'.

Without flags the most recent runs are listed. A single run can be shown
with the same report formats as the crawl command, and two runs can be
compared to see which pages appeared, disappeared, started failing or
recovered.

Examples:
  # List the 20 most recent runs
  deepcrawl history

  # List runs of one start URL
  deepcrawl history --url https://example.com/

  # Show run 5 as Markdown
  deepcrawl history --run 5 --markdown

  # Compare run 3 with run 5
  deepcrawl history --compare 3,5

  # Delete run 3
  deepcrawl history --delete 3`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	// Listing flags
	cmd.Flags().StringP("url", "u", "", "Only list runs of this start URL")
	cmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to list (0 for all)")

	// Single run flags
	cmd.Flags().Int64P("run", "r", 0, "Show the report of the run with this ID")
	cmd.Flags().Int64("delete", 0, "Delete the run with this ID")
	cmd.Flags().Int64Slice("compare", nil, "Compare two runs: --compare OLD,NEW")

	// Output flags
	cmd.Flags().BoolP("json", "j", false, "Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false, "Output report in Markdown format (--run only)")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the run database")

	return cmd
}

// historyOptions holds the parsed history flags.
type historyOptions struct {
	url      string
	limit    int
	runID    int64
	deleteID int64
	compare  []int64
	json     bool
	markdown bool
	dbDir    string
}

func parseHistoryFlags(cmd *cobra.Command) (historyOptions, error) {
	var (
		opts historyOptions
		err  error
	)
	f := cmd.Flags()
	if opts.url, err = f.GetString("url"); err != nil {
		return opts, err
	}
	if opts.limit, err = f.GetInt("limit"); err != nil {
		return opts, err
	}
	if opts.runID, err = f.GetInt64("run"); err != nil {
		return opts, err
	}
	if opts.deleteID, err = f.GetInt64("delete"); err != nil {
		return opts, err
	}
	if opts.compare, err = f.GetInt64Slice("compare"); err != nil {
		return opts, err
	}
	if opts.json, err = f.GetBool("json"); err != nil {
		return opts, err
	}
	if opts.markdown, err = f.GetBool("markdown"); err != nil {
		return opts, err
	}
	if opts.dbDir, err = f.GetString("db-dir"); err != nil {
		return opts, err
	}

	if opts.json && opts.markdown {
		return opts, config.ErrConflictingReportFormats
	}
	if len(opts.compare) > 0 && len(opts.compare) != 2 {
		return opts, fmt.Errorf("--compare needs exactly two run IDs, got %d", len(opts.compare))
	}
	if opts.limit < 0 {
		return opts, fmt.Errorf("--limit must not be negative: %d", opts.limit)
	}
	return opts, nil
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	// Validate flags before opening the database.
	opts, err := parseHistoryFlags(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	db, err := openRunDB(opts.dbDir)
	if errors.Is(err, errNoRuns) {
		fmt.Fprintln(out, "No crawl runs found in the database.")
		fmt.Fprintln(out, "\nUse 'deepcrawl crawl <url>' to crawl a site.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case opts.deleteID > 0:
		if err := db.DeleteRun(ctx, opts.deleteID); err != nil {
			return fmt.Errorf("failed to delete run %d: %w", opts.deleteID, err)
		}
		fmt.Fprintf(out, "Deleted run #%d\n", opts.deleteID)
		return nil
	case opts.runID > 0:
		return showRun(ctx, db, out, opts)
	case len(opts.compare) == 2:
		return compareRuns(ctx, db, out, opts)
	default:
		return listRuns(ctx, db, out, opts)
	}
}

// openRunDB opens an existing run database. It returns errNoRuns when no
// crawl has been saved yet.
func openRunDB(dir string) (*database.RunDB, error) {
	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dir, opts)
	if errors.Is(err, database.ErrDatabaseNotFound) {
		return nil, errNoRuns
	}
	return db, err
}

// listRuns prints stored run summaries, newest first.
func listRuns(ctx context.Context, db *database.RunDB, out io.Writer, opts historyOptions) error {
	if opts.url != "" {
		// Runs are stored under the normalized start URL.
		if normalized, err := crawler.NormalizeURL(opts.url); err == nil {
			opts.url = normalized
		}
	}

	runs, err := db.ListRuns(ctx, database.ListOptions{StartURL: opts.url, Limit: opts.limit})
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if opts.json {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(runs)
	}

	if len(runs) == 0 {
		if opts.url != "" {
			fmt.Fprintf(out, "No crawl runs found for %s\n", opts.url)
		} else {
			fmt.Fprintln(out, "No crawl runs found in the database.")
		}
		return nil
	}

	fmt.Fprintf(out, "Crawl runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-6s  %-19s  %-10s  %-10s  %6s  %6s  %s\n",
		"ID", "Started", "Strategy", "State", "Pages", "Failed", "Start URL")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 90))
	for _, r := range runs {
		fmt.Fprintf(out, "  %-6d  %-19s  %-10s  %-10s  %6d  %6d  %s\n",
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Strategy,
			r.State,
			r.Pages,
			r.Failed,
			r.StartURL,
		)
	}

	fmt.Fprintln(out, "\nUse 'deepcrawl history --run <id>' to show a run.")
	fmt.Fprintln(out, "Use 'deepcrawl history --compare <old>,<new>' to compare two runs.")
	return nil
}

// showRun writes the report of one stored run.
func showRun(ctx context.Context, db *database.RunDB, out io.Writer, opts historyOptions) error {
	run, err := db.GetRun(ctx, opts.runID)
	if err != nil {
		return fmt.Errorf("failed to get run %d: %w", opts.runID, err)
	}

	var w report.Writer
	switch {
	case opts.json:
		w = report.NewVersionedJSONWriter(out, getVersion(), report.WithPrettyPrint())
	case opts.markdown:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewTextWriter(out, report.WithVerbose(true))
	}
	_, err = w.Write(run)
	return err
}

// RunComparison holds the differences between two crawl runs.
type RunComparison struct {
	// Previous is the older run.
	Previous RunMeta `json:"previous"`

	// Current is the newer run.
	Current RunMeta `json:"current"`

	// Added lists URLs crawled only in the current run.
	Added []string `json:"added,omitempty"`

	// Removed lists URLs crawled only in the previous run.
	Removed []string `json:"removed,omitempty"`

	// NewlyFailing lists URLs that succeeded before and fail now.
	NewlyFailing []string `json:"newly_failing,omitempty"`

	// Recovered lists URLs that failed before and succeed now.
	Recovered []string `json:"recovered,omitempty"`

	// Unchanged is the number of URLs present in both runs with the same outcome.
	Unchanged int `json:"unchanged"`
}

// RunMeta describes one side of a comparison.
type RunMeta struct {
	ID        int64          `json:"id"`
	StartURL  string         `json:"start_url"`
	Strategy  string         `json:"strategy"`
	State     model.RunState `json:"state"`
	StartedAt time.Time      `json:"started_at"`
	Pages     int            `json:"pages"`
	Failed    int            `json:"failed"`
}

func newRunMeta(run *model.CrawlRun) RunMeta {
	return RunMeta{
		ID:        run.ID,
		StartURL:  run.StartURL,
		Strategy:  run.Strategy,
		State:     run.State,
		StartedAt: run.StartedAt,
		Pages:     len(run.Results),
		Failed:    run.Stats.PagesFailed,
	}
}

// compareRuns loads two runs and prints their differences.
func compareRuns(ctx context.Context, db *database.RunDB, out io.Writer, opts historyOptions) error {
	previous, err := db.GetRun(ctx, opts.compare[0])
	if err != nil {
		return fmt.Errorf("failed to get run %d: %w", opts.compare[0], err)
	}
	current, err := db.GetRun(ctx, opts.compare[1])
	if err != nil {
		return fmt.Errorf("failed to get run %d: %w", opts.compare[1], err)
	}

	comparison := compareCrawlRuns(previous, current)
	if opts.json {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(comparison)
	}
	writeComparisonText(out, comparison)
	return nil
}

// compareCrawlRuns computes the per-URL differences between two runs.
func compareCrawlRuns(previous, current *model.CrawlRun) *RunComparison {
	result := &RunComparison{
		Previous: newRunMeta(previous),
		Current:  newRunMeta(current),
	}

	before := outcomes(previous)
	after := outcomes(current)

	for u, ok := range after {
		was, seen := before[u]
		switch {
		case !seen:
			result.Added = append(result.Added, u)
		case was && !ok:
			result.NewlyFailing = append(result.NewlyFailing, u)
		case !was && ok:
			result.Recovered = append(result.Recovered, u)
		default:
			result.Unchanged++
		}
	}
	for u := range before {
		if _, seen := after[u]; !seen {
			result.Removed = append(result.Removed, u)
		}
	}

	sort.Strings(result.Added)
	sort.Strings(result.Removed)
	sort.Strings(result.NewlyFailing)
	sort.Strings(result.Recovered)
	return result
}

// outcomes maps each crawled URL to whether its fetch succeeded.
func outcomes(run *model.CrawlRun) map[string]bool {
	m := make(map[string]bool, len(run.Results))
	for _, r := range run.Results {
		m[r.URL] = r.Success
	}
	return m
}

func writeComparisonText(out io.Writer, c *RunComparison) {
	fmt.Fprintf(out, "Comparing run #%d with run #%d\n\n", c.Previous.ID, c.Current.ID)
	fmt.Fprintf(out, "  %-12s  %-25s  %-25s\n", "", "Previous", "Current")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 66))
	fmt.Fprintf(out, "  %-12s  %-25s  %-25s\n", "Start URL",
		truncate(c.Previous.StartURL, 25), truncate(c.Current.StartURL, 25))
	fmt.Fprintf(out, "  %-12s  %-25s  %-25s\n", "Started",
		c.Previous.StartedAt.Local().Format(time.DateTime), c.Current.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "  %-12s  %-25s  %-25s\n", "Strategy", c.Previous.Strategy, c.Current.Strategy)
	fmt.Fprintf(out, "  %-12s  %-25d  %-25d %s\n", "Pages",
		c.Previous.Pages, c.Current.Pages, formatDelta(c.Current.Pages-c.Previous.Pages))
	fmt.Fprintf(out, "  %-12s  %-25d  %-25d %s\n", "Failed",
		c.Previous.Failed, c.Current.Failed, formatDelta(c.Current.Failed-c.Previous.Failed))

	writeURLSection(out, "Added", "+", c.Added)
	writeURLSection(out, "Removed", "-", c.Removed)
	writeURLSection(out, "Newly failing", "x", c.NewlyFailing)
	writeURLSection(out, "Recovered", "✓", c.Recovered)

	fmt.Fprintf(out, "\nUnchanged pages: %d\n", c.Unchanged)
}

func writeURLSection(out io.Writer, title, marker string, urls []string) {
	if len(urls) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s (%d):\n", title, len(urls))
	for _, u := range urls {
		fmt.Fprintf(out, "  [%s] %s\n", marker, u)
	}
}

// formatDelta formats a count change with its sign.
func formatDelta(delta int) string {
	switch {
	case delta > 0:
		return fmt.Sprintf("(+%d)", delta)
	case delta < 0:
		return fmt.Sprintf("(%d)", delta)
	default:
		return ""
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
