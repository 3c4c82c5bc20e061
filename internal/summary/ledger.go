package summary

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/a3tai/pdf-field-extractor/internal/extract"
)

// DefaultLedgerName is the SQLite file kept in the output root.
const DefaultLedgerName = "extractions.db"

const ledgerSchema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    field TEXT,
    value TEXT NOT NULL,
    mode TEXT NOT NULL,
    total_pages INTEGER NOT NULL,
    matched INTEGER NOT NULL,
    outcome TEXT NOT NULL,
    output_dir TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS page_records (
    run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    page INTEGER NOT NULL,
    field TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (run_id, page, field)
);

CREATE INDEX IF NOT EXISTS idx_page_records_field_value ON page_records(field, value);
`

// Ledger records every extraction run and its field records in SQLite.
type Ledger struct {
	db   *sql.DB
	path string
}

// RunRow is one stored run.
type RunRow struct {
	ID         string    `json:"run_id"`
	Source     string    `json:"source"`
	Field      string    `json:"field,omitempty"`
	Value      string    `json:"value"`
	Mode       string    `json:"mode"`
	TotalPages int       `json:"total_pages"`
	Matched    int       `json:"matched"`
	Outcome    string    `json:"outcome"`
	OutputDir  string    `json:"output_dir,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// OpenLedger opens or creates the ledger at path.
func OpenLedger(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps PRAGMAs and writes serialised.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(ledgerSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Ledger{db: db, path: path}, nil
}

// Path returns the database file path.
func (l *Ledger) Path() string { return l.path }

// Close closes the database.
func (l *Ledger) Close() error { return l.db.Close() }

// Record stores result and its records, returning the new run id.
func (l *Ledger) Record(ctx context.Context, result *extract.ExtractionResult, fields []string, outputDir string) (string, error) {
	id := uuid.NewString()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, source, field, value, mode, total_pages, matched, outcome, output_dir, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, result.Source, result.Query.Field, result.Query.Value, string(result.Query.Mode),
		result.TotalPages, result.Count, string(result.Outcome), outputDir, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO page_records (run_id, page, field, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare page insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range result.Records {
		for _, f := range fields {
			if _, err := stmt.ExecContext(ctx, id, rec.Page+1, f, rec.Get(f)); err != nil {
				return "", fmt.Errorf("insert page %d: %w", rec.Page+1, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// Runs returns the most recent runs first, at most limit (0 means all).
func (l *Ledger) Runs(ctx context.Context, limit int) ([]RunRow, error) {
	q := `SELECT run_id, source, COALESCE(field, ''), value, mode, total_pages, matched, outcome,
	             COALESCE(output_dir, ''), created_at
	      FROM runs ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.ID, &r.Source, &r.Field, &r.Value, &r.Mode, &r.TotalPages,
			&r.Matched, &r.Outcome, &r.OutputDir, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
