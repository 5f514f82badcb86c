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

	"github.com/nao1215/webmirror/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "webmirror.db"

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("mirror run not found")

// HistoryDB stores mirror run history.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
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

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = dbPath + "?mode=rwc"
	} else if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		}
		return nil, fmt.Errorf("failed to check database path: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{db: db, dbPath: dbPath}

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
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

func (h *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		host TEXT NOT NULL,
		mirror_dir TEXT,
		state TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		downloaded INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		bytes INTEGER DEFAULT 0,
		error TEXT,
		report_json TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_url ON runs(url);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS resources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		raw_url TEXT NOT NULL,
		absolute_url TEXT,
		local_path TEXT,
		status TEXT NOT NULL,
		reason TEXT,
		bytes INTEGER DEFAULT 0,
		digest TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_resources_run ON resources(run_id);
	`
	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a finished run and its resource outcomes and returns the run ID.
func (h *HistoryDB) SaveRun(ctx context.Context, report *model.MirrorReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	summary := report.Summary()
	res, err := tx.ExecContext(ctx, `
	INSERT INTO runs (url, host, mirror_dir, state, started_at, finished_at,
		downloaded, skipped, failed, bytes, error, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.URL,
		report.Host,
		report.MirrorDir,
		report.State.String(),
		report.StartedAt.UTC().Format(time.RFC3339Nano),
		formatOptionalTime(report.FinishedAt),
		summary.Downloaded,
		summary.Skipped,
		summary.Failed,
		summary.Bytes,
		report.ErrorMessage,
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO resources (run_id, kind, raw_url, absolute_url, local_path, status, reason, bytes, digest)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare resource insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range report.Outcomes {
		if _, err := stmt.ExecContext(ctx,
			runID,
			o.Reference.Kind.String(),
			o.Reference.RawURL,
			o.AbsoluteURL,
			o.LocalPath,
			string(o.Status),
			o.Reason,
			o.Bytes,
			o.Digest,
		); err != nil {
			return 0, fmt.Errorf("failed to save resource %s: %w", o.Reference.RawURL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// RunMetadata summarizes a stored run without loading the full report.
type RunMetadata struct {
	ID         int64
	URL        string
	MirrorDir  string
	State      string
	StartedAt  time.Time
	FinishedAt time.Time
	Downloaded int
	Skipped    int
	Failed     int
	Bytes      int64
	Error      string
}

// ListRuns returns stored runs, newest first. An empty pageURL lists all runs.
func (h *HistoryDB) ListRuns(ctx context.Context, pageURL string) ([]RunMetadata, error) {
	query := `
	SELECT id, url, mirror_dir, state, started_at, finished_at,
		downloaded, skipped, failed, bytes, error
	FROM runs
	`
	args := []any{}
	if pageURL != "" {
		query += " WHERE url = ?"
		args = append(args, pageURL)
	}
	query += " ORDER BY started_at DESC, id DESC"

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var (
			meta       RunMetadata
			mirrorDir  sql.NullString
			startedAt  string
			finishedAt sql.NullString
			errMsg     sql.NullString
		)
		if err := rows.Scan(&meta.ID, &meta.URL, &mirrorDir, &meta.State, &startedAt, &finishedAt,
			&meta.Downloaded, &meta.Skipped, &meta.Failed, &meta.Bytes, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		meta.MirrorDir = mirrorDir.String
		meta.StartedAt = parseTimestamp(startedAt)
		if finishedAt.Valid {
			meta.FinishedAt = parseTimestamp(finishedAt.String)
		}
		meta.Error = errMsg.String
		results = append(results, meta)
	}
	return results, rows.Err()
}

// ListMirroredURLs returns every URL with at least one stored run.
func (h *HistoryDB) ListMirroredURLs(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT DISTINCT url FROM runs ORDER BY url`)
	if err != nil {
		return nil, fmt.Errorf("failed to list URLs: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan URL: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// GetRun returns the full report of a stored run.
func (h *HistoryDB) GetRun(ctx context.Context, id int64) (*model.MirrorReport, error) {
	var reportJSON string
	err := h.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var report model.MirrorReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// GetResources returns the resource outcomes of a stored run in insertion order.
func (h *HistoryDB) GetResources(ctx context.Context, runID int64) ([]model.ResourceOutcome, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT kind, raw_url, absolute_url, local_path, status, reason, bytes, digest
	FROM resources
	WHERE run_id = ?
	ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get resources: %w", err)
	}
	defer rows.Close()

	var outcomes []model.ResourceOutcome
	for rows.Next() {
		var (
			o                                model.ResourceOutcome
			kind, status                     string
			absURL, local, reason, digestStr sql.NullString
		)
		if err := rows.Scan(&kind, &o.Reference.RawURL, &absURL, &local, &status, &reason, &o.Bytes, &digestStr); err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		if err := o.Reference.Kind.UnmarshalText([]byte(kind)); err != nil {
			return nil, err
		}
		o.AbsoluteURL = absURL.String
		o.LocalPath = local.String
		o.Status = model.ResourceStatus(status)
		o.Reason = reason.String
		o.Digest = digestStr.String
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

func formatOptionalTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats contains the timestamp formats SQLite may return.
// More specific formats come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries each known format and returns the zero time if none match.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
