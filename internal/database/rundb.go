package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/deepcrawl/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "deepcrawl.db"

// RunDB provides SQLite-based storage for crawl runs.
type RunDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures RunDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a RunDB in dbDir.
func Open(dbDir string, opts Options) (*RunDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}
	dsn += "&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RunDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Path returns the database file path.
func (rdb *RunDB) Path() string {
	return rdb.dbPath
}

// Close closes the database connection.
func (rdb *RunDB) Close() error {
	return rdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (rdb *RunDB) createTables() error {
	schema := `
	-- One row per crawl run
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		strategy TEXT NOT NULL,
		start_url TEXT NOT NULL,
		state TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		pages INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		stats_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_start_url ON runs(start_url);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

	-- One row per fetch attempt, in visit order
	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		url TEXT NOT NULL,
		success INTEGER NOT NULL,
		depth INTEGER NOT NULL,
		parent_url TEXT,
		title TEXT,
		status_code INTEGER,
		error TEXT,
		score REAL,
		proxy TEXT,
		crawl_time TEXT,
		duration_ms INTEGER,
		links_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id, seq);
	CREATE INDEX IF NOT EXISTS idx_results_url ON results(url);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores run and its results in one transaction and sets run.ID.
func (rdb *RunDB) SaveRun(ctx context.Context, run *model.CrawlRun) (id int64, err error) {
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize run stats: %w", err)
	}

	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // the original error wins
		}
	}()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO runs (strategy, start_url, state, started_at, finished_at, pages, failed, stats_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.Strategy,
		run.StartURL,
		string(run.State),
		formatTimestamp(run.StartedAt),
		formatTimestamp(run.FinishedAt),
		len(run.Results),
		run.Stats.PagesFailed,
		string(statsJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO results (run_id, seq, url, success, depth, parent_url, title, status_code, error, score, proxy, crawl_time, duration_ms, links_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer stmt.Close()

	for seq, r := range run.Results {
		linksJSON, err := json.Marshal(r.Links)
		if err != nil {
			return 0, fmt.Errorf("failed to serialize links of %s: %w", r.URL, err)
		}
		if _, err := stmt.ExecContext(ctx,
			id, seq, r.URL, r.Success, r.Depth, r.ParentURL, r.Title, r.StatusCode,
			r.Error, r.Score, r.Proxy, formatTimestamp(r.CrawlTime), r.Duration.Milliseconds(),
			string(linksJSON),
		); err != nil {
			return 0, fmt.Errorf("failed to save result %s: %w", r.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	run.ID = id
	return id, nil
}

// RunSummary describes a stored run without its results.
type RunSummary struct {
	ID         int64          `json:"id"`
	Strategy   string         `json:"strategy"`
	StartURL   string         `json:"start_url"`
	State      model.RunState `json:"state"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Pages      int            `json:"pages"`
	Failed     int            `json:"failed"`
}

// ListOptions narrows ListRuns.
type ListOptions struct {
	// StartURL selects runs of one start URL. Empty selects all.
	StartURL string

	// Limit caps the number of runs returned. 0 means no limit.
	Limit int
}

// ListRuns returns run summaries, newest first.
func (rdb *RunDB) ListRuns(ctx context.Context, opts ListOptions) ([]RunSummary, error) {
	query := `
	SELECT id, strategy, start_url, state, started_at, finished_at, pages, failed
	FROM runs
	WHERE (? = '' OR start_url = ?)
	ORDER BY started_at DESC, id DESC
	`
	args := []any{opts.StartURL, opts.StartURL}
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := rdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var s RunSummary
		var state, started string
		var finished sql.NullString
		if err := rows.Scan(&s.ID, &s.Strategy, &s.StartURL, &state, &started, &finished, &s.Pages, &s.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.State = model.RunState(state)
		s.StartedAt = parseTimestamp(started)
		if finished.Valid {
			s.FinishedAt = parseTimestamp(finished.String)
		}
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

// GetRun loads a run and its results.
func (rdb *RunDB) GetRun(ctx context.Context, id int64) (*model.CrawlRun, error) {
	run := &model.CrawlRun{ID: id}
	var state, started string
	var finished, statsJSON sql.NullString

	err := rdb.db.QueryRowContext(ctx, `
	SELECT strategy, start_url, state, started_at, finished_at, stats_json
	FROM runs WHERE id = ?
	`, id).Scan(&run.Strategy, &run.StartURL, &state, &started, &finished, &statsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.State = model.RunState(state)
	run.StartedAt = parseTimestamp(started)
	if finished.Valid {
		run.FinishedAt = parseTimestamp(finished.String)
	}
	if statsJSON.Valid && statsJSON.String != "" {
		if err := json.Unmarshal([]byte(statsJSON.String), &run.Stats); err != nil {
			return nil, fmt.Errorf("failed to parse run stats: %w", err)
		}
	}

	results, err := rdb.results(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Results = results
	return run, nil
}

func (rdb *RunDB) results(ctx context.Context, runID int64) ([]*model.CrawlResult, error) {
	rows, err := rdb.db.QueryContext(ctx, `
	SELECT url, success, depth, parent_url, title, status_code, error, score, proxy, crawl_time, duration_ms, links_json
	FROM results WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}
	defer rows.Close()

	results := make([]*model.CrawlResult, 0)
	for rows.Next() {
		r := &model.CrawlResult{}
		var parent, title, errText, proxyAddr, crawlTime, linksJSON sql.NullString
		var status, durationMS sql.NullInt64
		var score sql.NullFloat64

		if err := rows.Scan(&r.URL, &r.Success, &r.Depth, &parent, &title, &status,
			&errText, &score, &proxyAddr, &crawlTime, &durationMS, &linksJSON); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}

		r.ParentURL = parent.String
		r.Title = title.String
		r.StatusCode = int(status.Int64)
		r.Error = errText.String
		r.Score = score.Float64
		r.Proxy = proxyAddr.String
		r.CrawlTime = parseTimestamp(crawlTime.String)
		r.Duration = time.Duration(durationMS.Int64) * time.Millisecond
		if linksJSON.Valid && linksJSON.String != "" && linksJSON.String != "null" {
			if err := json.Unmarshal([]byte(linksJSON.String), &r.Links); err != nil {
				r.Links = nil // keep the rest of the record
			}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// DeleteRun removes a run and its results.
func (rdb *RunDB) DeleteRun(ctx context.Context, id int64) error {
	res, err := rdb.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	return nil
}

// storedTimeFormat has fixed width so that stored timestamps sort as text.
const storedTimeFormat = "2006-01-02T15:04:05.000000000Z"

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(storedTimeFormat)
}

// parseTimestamp tries each known format and returns the zero time when
// none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
