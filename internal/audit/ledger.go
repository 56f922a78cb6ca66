package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Ledger appends audit runs to a SQLite database so history survives
// across runs
type Ledger struct {
	db *sql.DB
}

// RunInfo is a row of the runs table
type RunInfo struct {
	RunID          string
	Timestamp      time.Time
	SourceFolder   string
	CTDFolder      string
	DryRun         bool
	TotalDocuments int
	Processed      int
	Failed         int
}

// OpenLedger opens (or creates) the ledger database with WAL mode enabled
func OpenLedger(ctx context.Context, path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Ledger{db: db}, nil
}

// Close closes the database connection
func (l *Ledger) Close() error {
	return l.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	timestamp TEXT NOT NULL,
	source_folder TEXT NOT NULL,
	ctd_folder TEXT NOT NULL,
	dry_run INTEGER NOT NULL DEFAULT 0,
	total_documents INTEGER NOT NULL,
	processed INTEGER NOT NULL,
	failed INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS mappings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	source TEXT NOT NULL,
	destination TEXT,
	category TEXT,
	reason TEXT,
	strategy TEXT,
	filename TEXT NOT NULL,
	source_module TEXT,
	bytes INTEGER DEFAULT 0,
	timestamp TEXT NOT NULL,
	error TEXT,
	FOREIGN KEY(run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_mappings_run ON mappings(run_id);
CREATE INDEX IF NOT EXISTS idx_mappings_source ON mappings(source);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize ledger schema: %w", err)
	}
	return nil
}

// Record stores a run and all of its mappings in one transaction. Recording
// the same run twice replaces the earlier copy.
func (l *Ledger) Record(ctx context.Context, r *Run) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM mappings WHERE run_id = ?`, r.RunID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, r.RunID); err != nil {
		return err
	}

	r.mu.Lock()
	info := RunInfo{
		RunID:          r.RunID,
		Timestamp:      r.Timestamp,
		SourceFolder:   r.SourceFolder,
		CTDFolder:      r.CTDFolder,
		DryRun:         r.DryRun,
		TotalDocuments: r.TotalDocuments,
		Processed:      r.Processed,
		Failed:         r.Failed,
	}
	r.mu.Unlock()

	_, err = tx.ExecContext(ctx, `
INSERT INTO runs (run_id, timestamp, source_folder, ctd_folder, dry_run, total_documents, processed, failed)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		info.RunID,
		info.Timestamp.UTC().Format(time.RFC3339Nano),
		info.SourceFolder,
		info.CTDFolder,
		boolToInt(info.DryRun),
		info.TotalDocuments,
		info.Processed,
		info.Failed,
	)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO mappings (run_id, source, destination, category, reason, strategy, filename, source_module, bytes, timestamp, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range r.Snapshot() {
		if _, err := stmt.ExecContext(ctx,
			info.RunID,
			m.Source,
			m.Destination,
			m.Category,
			m.Reason,
			m.Strategy,
			m.Filename,
			m.SourceModule,
			m.Bytes,
			m.Timestamp.UTC().Format(time.RFC3339Nano),
			m.Error,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Runs lists recorded runs, newest first
func (l *Ledger) Runs(ctx context.Context, limit int) ([]RunInfo, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx, `
SELECT run_id, timestamp, source_folder, ctd_folder, dry_run, total_documents, processed, failed
FROM runs ORDER BY run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var info RunInfo
		var ts string
		var dry int
		if err := rows.Scan(&info.RunID, &ts, &info.SourceFolder, &info.CTDFolder,
			&dry, &info.TotalDocuments, &info.Processed, &info.Failed); err != nil {
			return nil, err
		}
		info.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		info.DryRun = dry != 0
		out = append(out, info)
	}
	return out, rows.Err()
}

// Mappings returns the mappings of one run in insertion order
func (l *Ledger) Mappings(ctx context.Context, runID string) ([]Mapping, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+mappingColumns+` FROM mappings WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	return scanMappings(rows)
}

// History returns every destination a source path was placed at, oldest
// run first
func (l *Ledger) History(ctx context.Context, source string) ([]Mapping, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+mappingColumns+` FROM mappings WHERE source = ? ORDER BY run_id, id`, source)
	if err != nil {
		return nil, err
	}
	return scanMappings(rows)
}

const mappingColumns = `source, destination, category, reason, strategy, filename, source_module, bytes, timestamp, error`

func scanMappings(rows *sql.Rows) ([]Mapping, error) {
	defer rows.Close()

	var out []Mapping
	for rows.Next() {
		var m Mapping
		var ts string
		if err := rows.Scan(&m.Source, &m.Destination, &m.Category, &m.Reason, &m.Strategy,
			&m.Filename, &m.SourceModule, &m.Bytes, &ts, &m.Error); err != nil {
			return nil, err
		}
		m.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, m)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
