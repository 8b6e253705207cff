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

	"github.com/nao1215/spider/internal/model"
)

// DBFileName is the name of the history database file inside the data directory.
const DBFileName = "spider.db"

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// HistoryDB provides SQLite-based storage for finished crawl runs.
//
// Design decision: We store the full summary as JSON next to normalized
// pages and images tables. The JSON lets GetRun return exactly what the
// crawl produced, while the tables keep digest and URL lookups in SQL.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a crawl with --record first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- Runs store one finished crawl each
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seed TEXT NOT NULL,
		target_dir TEXT NOT NULL,
		recursive INTEGER NOT NULL,
		max_depth INTEGER NOT NULL,
		origin_policy TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		pages_visited INTEGER NOT NULL,
		pages_failed INTEGER NOT NULL,
		total_downloaded INTEGER NOT NULL,
		downloads_failed INTEGER NOT NULL,
		bytes_written INTEGER NOT NULL,
		cancelled INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		summary_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_seed ON runs(seed);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Pages store every node a run visited, in visitation order
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		url TEXT NOT NULL,
		depth INTEGER NOT NULL,
		images_found INTEGER NOT NULL,
		downloaded INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);

	-- Images store every attempted download
	CREATE TABLE IF NOT EXISTS images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		path TEXT,
		success INTEGER NOT NULL,
		bytes_written INTEGER NOT NULL,
		digest TEXT,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_images_run ON images(run_id);
	CREATE INDEX IF NOT EXISTS idx_images_digest ON images(digest);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// RunRecord contains summary information about a recorded run.
// This is used for listing history without loading the full summary.
type RunRecord struct {
	// ID is the unique identifier of the run in the database.
	ID int64

	// Seed is the URL the run started from.
	Seed string

	// TargetDir is where the run saved images.
	TargetDir string

	// StartedAt is when the run started.
	StartedAt time.Time

	// FinishedAt is when the run ended.
	FinishedAt time.Time

	// PagesVisited is the number of pages fetched successfully.
	PagesVisited int

	// PagesFailed is the number of pages whose fetch failed.
	PagesFailed int

	// TotalDownloaded is the number of images saved.
	TotalDownloaded int

	// DownloadsFailed is the number of image downloads that failed.
	DownloadsFailed int

	// BytesWritten is the total size of saved images.
	BytesWritten int64

	// Cancelled is true when the run was interrupted.
	Cancelled bool

	// Error is the seed failure, if any.
	Error string
}

// Duration returns how long the run took.
func (r RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ImageRecord is a stored download attempt.
type ImageRecord struct {
	RunID        int64
	URL          string
	Path         string
	Success      bool
	BytesWritten int64
	Digest       string
	Error        string
}

// SaveSummary stores a finished run and returns its ID.
// The summary, its pages and its images are written in one transaction.
func (hdb *HistoryDB) SaveSummary(ctx context.Context, summary *model.Summary) (int64, error) {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize summary: %w", err)
	}

	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
	INSERT INTO runs (
		seed, target_dir, recursive, max_depth, origin_policy, started_at, finished_at,
		pages_visited, pages_failed, total_downloaded, downloads_failed, bytes_written,
		cancelled, error, summary_json
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		summary.Seed,
		summary.TargetDir,
		boolToInt(summary.Recursive),
		summary.MaxDepth,
		summary.OriginPolicy.String(),
		formatTimestamp(summary.StartedAt),
		formatTimestamp(summary.FinishedAt),
		summary.PagesVisited(),
		summary.PagesFailed(),
		summary.TotalDownloaded,
		summary.DownloadsFailed(),
		summary.BytesWritten(),
		boolToInt(summary.Cancelled),
		summary.Error,
		string(summaryJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	for i, node := range summary.Nodes {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO pages (run_id, seq, url, depth, images_found, downloaded, failed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, runID, i, node.URL, node.Depth, node.ImagesFound, node.Downloaded, node.Failed, node.Error)
		if err != nil {
			return 0, fmt.Errorf("failed to insert page: %w", err)
		}
	}

	for _, img := range summary.Images {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO images (run_id, url, path, success, bytes_written, digest, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		`, runID, img.URL, img.Path, boolToInt(img.Success), img.BytesWritten, img.Digest, img.Error)
		if err != nil {
			return 0, fmt.Errorf("failed to insert image: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}

	return runID, nil
}

// ListRuns returns the most recent runs, newest first.
// A limit of zero or less returns every run.
func (hdb *HistoryDB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
	SELECT id, seed, target_dir, started_at, finished_at,
		pages_visited, pages_failed, total_downloaded, downloads_failed, bytes_written,
		cancelled, error
	FROM runs
	ORDER BY started_at DESC, id DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunRecord
	for rows.Next() {
		var rec RunRecord
		var startedAt string
		var finishedAt, errText sql.NullString
		var cancelled int

		if err := rows.Scan(
			&rec.ID,
			&rec.Seed,
			&rec.TargetDir,
			&startedAt,
			&finishedAt,
			&rec.PagesVisited,
			&rec.PagesFailed,
			&rec.TotalDownloaded,
			&rec.DownloadsFailed,
			&rec.BytesWritten,
			&cancelled,
			&errText,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		rec.StartedAt = parseTimestamp(startedAt)
		rec.FinishedAt = parseTimestamp(finishedAt.String)
		rec.Cancelled = cancelled != 0
		rec.Error = errText.String
		results = append(results, rec)
	}

	return results, rows.Err()
}

// GetRun retrieves the full summary of a run by its database ID.
// It returns ErrRunNotFound if the ID does not exist.
func (hdb *HistoryDB) GetRun(ctx context.Context, id int64) (*model.Summary, error) {
	var summaryJSON string
	err := hdb.db.QueryRowContext(ctx, "SELECT summary_json FROM runs WHERE id = ?", id).Scan(&summaryJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var summary model.Summary
	if err := json.Unmarshal([]byte(summaryJSON), &summary); err != nil {
		return nil, fmt.Errorf("failed to parse summary: %w", err)
	}
	summary.ID = id

	return &summary, nil
}

// FindImagesByDigest returns every saved image with the given content digest.
// This finds the same picture saved under different names or by different runs.
func (hdb *HistoryDB) FindImagesByDigest(ctx context.Context, digest string) ([]ImageRecord, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT run_id, url, path, success, bytes_written, digest, error
	FROM images
	WHERE digest = ? AND success = 1
	ORDER BY run_id, id
	`, digest)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	var results []ImageRecord
	for rows.Next() {
		var rec ImageRecord
		var path, dgst, errText sql.NullString
		var success int

		if err := rows.Scan(&rec.RunID, &rec.URL, &path, &success, &rec.BytesWritten, &dgst, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}

		rec.Path = path.String
		rec.Success = success != 0
		rec.Digest = dgst.String
		rec.Error = errText.String
		results = append(results, rec)
	}

	return results, rows.Err()
}

// DeleteRun removes a run together with its pages and images.
func (hdb *HistoryDB) DeleteRun(ctx context.Context, id int64) error {
	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Foreign keys are off by default in SQLite, so children go first.
	for _, stmt := range []string{
		"DELETE FROM images WHERE run_id = ?",
		"DELETE FROM pages WHERE run_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to delete run: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}

	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timestampLayout is RFC3339 in UTC with fixed-width nanoseconds, so
// stored timestamps sort correctly as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,          // Format written by formatTimestamp
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
