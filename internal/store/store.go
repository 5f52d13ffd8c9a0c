package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migration upgrades a run log created by an older mpcgraph. Steps run in
// version order inside one transaction each; user_version records the
// last step applied.
type migration struct {
	version int
	name    string
	stmt    string
}

var migrations = []migration{
	{1, "runs by context", `CREATE INDEX IF NOT EXISTS idx_eval_runs_context ON eval_runs(context_hash, seq)`},
	{2, "failures by code", `CREATE INDEX IF NOT EXISTS idx_eval_runs_failures ON eval_runs(status, error_code)`},
}

// SchemaVersion is the user_version of a fully migrated run log.
var SchemaVersion = migrations[len(migrations)-1].version

// connPragmas configure the single connection a Store holds.
var connPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// Store records contexts and the evaluation runs made against them.
type Store struct {
	db *sql.DB
}

// Open opens the run log at path, creating it when absent, and brings its
// schema up to SchemaVersion. ":memory:" gives a private in-memory log.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open run log %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open run log %s: %w", path, err)
	}

	// Pragmas are per connection; foreign_keys must hold for every run insert.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, p := range connPragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("open run log %s: %s: %w", path, p, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("open run log %s: create tables: %w", path, err)
	}
	if err := migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open run log %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the connection. It is safe on a zero Store.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func userVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// migrate applies every step newer than the log's user_version. A log
// written by a newer mpcgraph is refused rather than downgraded.
func migrate(ctx context.Context, db *sql.DB) error {
	have, err := userVersion(ctx, db)
	if err != nil {
		return err
	}
	if have > SchemaVersion {
		return fmt.Errorf("run log has schema version %d, this build supports up to %d", have, SchemaVersion)
	}
	for _, m := range migrations {
		if m.version <= have {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.ExecContext(ctx, m.stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		// PRAGMA does not take bind parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// Summary aggregates a run log.
type Summary struct {
	SchemaVersion int `json:"schema_version"`
	Contexts      int `json:"contexts"`
	Compiled      int `json:"compiled"`
	Runs          int `json:"runs"`

	// Failures counts failed runs by error code.
	Failures map[string]int `json:"failures,omitempty"`
}

// Summarize counts the contexts and runs in the log.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	var sum Summary
	var err error
	if sum.SchemaVersion, err = userVersion(ctx, s.db); err != nil {
		return Summary{}, err
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(compiled), 0) FROM contexts`).Scan(&sum.Contexts, &sum.Compiled)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize contexts: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM eval_runs`).Scan(&sum.Runs); err != nil {
		return Summary{}, fmt.Errorf("summarize runs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT error_code, COUNT(*) FROM eval_runs
		WHERE status = ?
		GROUP BY error_code
		ORDER BY error_code COLLATE BINARY`, StatusFailed)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize failures: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var code string
		var n int
		if err := rows.Scan(&code, &n); err != nil {
			return Summary{}, fmt.Errorf("summarize failures: %w", err)
		}
		if sum.Failures == nil {
			sum.Failures = map[string]int{}
		}
		sum.Failures[code] = n
	}
	if err := rows.Err(); err != nil {
		return Summary{}, fmt.Errorf("summarize failures: %w", err)
	}
	return sum, nil
}
