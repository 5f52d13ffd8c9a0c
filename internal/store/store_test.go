package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mpcgraph/internal/graph"
	"github.com/roach88/mpcgraph/internal/ir"
)

// rawLog prepares a run log file outside Store, for upgrade tests.
func rawLog(t *testing.T, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runs.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return path
}

func indexNames(t *testing.T, s *Store) []string {
	t.Helper()
	rows, err := s.db.Query(`SELECT name FROM sqlite_master WHERE type = 'index' AND name LIKE 'idx_%' ORDER BY name`)
	require.NoError(t, err)
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}

func negateContext(t *testing.T) *graph.Context {
	t.Helper()
	c := graph.NewContext()
	g := c.NewGraph()
	a, err := g.Input(ir.INT8, 0, "a")
	require.NoError(t, err)
	n, err := g.Negate(a)
	require.NoError(t, err)
	require.NoError(t, g.FinalizeNodes(n))
	require.NoError(t, c.SetMain(g))
	return c
}

func TestOpen_Migrations(t *testing.T) {
	all := []string{"idx_eval_runs_context", "idx_eval_runs_failures"}

	tests := []struct {
		name  string
		setup []string
	}{
		{"new log", nil},
		{"tables without indexes", []string{schemaSQL}},
		{"runs indexed by context only", []string{
			schemaSQL,
			migrations[0].stmt,
			"PRAGMA user_version = 1",
		}},
		{"already current", []string{
			schemaSQL,
			migrations[0].stmt,
			migrations[1].stmt,
			"PRAGMA user_version = 2",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := rawLog(t, tt.setup...)
			s, err := Open(path)
			require.NoError(t, err)
			defer s.Close()

			v, err := userVersion(context.Background(), s.db)
			require.NoError(t, err)
			assert.Equal(t, SchemaVersion, v)
			assert.Equal(t, all, indexNames(t, s))
		})
	}
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr string
	}{
		{
			name:    "missing directory",
			path:    func(t *testing.T) string { return "/nonexistent/dir/runs.db" },
			wantErr: "open run log",
		},
		{
			name: "log from a newer build",
			path: func(t *testing.T) string {
				return rawLog(t, schemaSQL, "PRAGMA user_version = 99")
			},
			wantErr: "schema version 99",
		},
		{
			name: "foreign eval_runs table",
			path: func(t *testing.T) string {
				return rawLog(t, "CREATE TABLE eval_runs (id TEXT)")
			},
			wantErr: "migration 1 (runs by context)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.path(t))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOpen_ConnectionPragmas(t *testing.T) {
	s := openTestStore(t)

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.pragma, func(t *testing.T) {
			var got string
			require.NoError(t, s.db.QueryRow("PRAGMA "+tt.pragma).Scan(&got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen_ReopenKeepsLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	rec, err := s.WriteContext(ctx, "add", addContext(t), 0)
	require.NoError(t, err)
	require.NoError(t, s.WriteRun(ctx, Run{ID: "run-1", ContextHash: rec.Hash, Mode: "plaintext", Party: -1, Status: StatusOK}))
	require.NoError(t, s.Close())

	for i := 0; i < 2; i++ {
		s, err := Open(path)
		require.NoError(t, err)
		run, err := s.GetRun(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, rec.Hash, run.ContextHash)
		sum, err := s.Summarize(ctx)
		require.NoError(t, err)
		assert.Equal(t, Summary{SchemaVersion: SchemaVersion, Contexts: 1, Runs: 1}, sum)
		require.NoError(t, s.Close())
	}
}

func TestWriteRun_UnknownContextRejected(t *testing.T) {
	s := openTestStore(t)
	err := s.WriteRun(context.Background(), Run{
		ID:          "orphan",
		ContextHash: "missing",
		Mode:        "plaintext",
		Party:       -1,
		Status:      StatusOK,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FOREIGN KEY")
}

func TestSummarize(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	empty, err := s.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{SchemaVersion: SchemaVersion}, empty)

	src, err := s.WriteContext(ctx, "add", addContext(t), 0)
	require.NoError(t, err)
	compiled, err := s.WriteContext(ctx, "negate", negateContext(t), 2)
	require.NoError(t, err)

	runs := []Run{
		{ID: "r1", ContextHash: src.Hash, Mode: "plaintext", Party: -1, Status: StatusOK},
		{ID: "r2", ContextHash: compiled.Hash, Mode: "simulate", Parties: 2, Party: -1, Status: StatusFailed, ErrorCode: "COMMUNICATION_FAILURE"},
		{ID: "r3", ContextHash: compiled.Hash, Mode: "simulate", Parties: 2, Party: -1, Status: StatusFailed, ErrorCode: "COMMUNICATION_FAILURE"},
		{ID: "r4", ContextHash: src.Hash, Mode: "plaintext", Party: -1, Status: StatusFailed, ErrorCode: "MISSING_INPUT"},
	}
	for _, r := range runs {
		require.NoError(t, s.WriteRun(ctx, r))
	}

	sum, err := s.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{
		SchemaVersion: SchemaVersion,
		Contexts:      2,
		Compiled:      1,
		Runs:          4,
		Failures:      map[string]int{"COMMUNICATION_FAILURE": 2, "MISSING_INPUT": 1},
	}, sum)
}

func TestClose(t *testing.T) {
	var zero Store
	assert.NoError(t, zero.Close())

	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.NotPanics(t, func() { _ = s.Close() })
}
