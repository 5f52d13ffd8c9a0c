package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/mpcgraph/internal/ir"
)

// Run statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run records one evaluation.
type Run struct {
	ID          string `json:"id"`
	Seq         int64  `json:"seq"`
	ContextHash string `json:"context_hash"`

	// Mode is plaintext, simulate or party.
	Mode    string `json:"mode"`
	Parties int    `json:"parties"`

	// Party is the local party of a delegated run, -1 otherwise.
	Party int `json:"party"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code,omitempty"`

	// OutputHashes holds ir.ValueHash of every output.
	OutputHashes []string `json:"output_hashes"`
	Nodes        int64    `json:"nodes"`
}

// OutputHashes computes the value hashes recorded for a run's outputs.
func OutputHashes(types []ir.Type, values []ir.Value) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		h, err := ir.ValueHash(types[i], v)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		out[i] = h
	}
	return out, nil
}

// WriteRun inserts a run record. The context it references must have been
// written first (foreign key constraint).
func (s *Store) WriteRun(ctx context.Context, r Run) error {
	hashes, err := marshalStrings(r.OutputHashes)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO eval_runs
		(id, context_hash, mode, parties, party, status, error_code, output_hashes, nodes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.ContextHash,
		r.Mode,
		r.Parties,
		r.Party,
		r.Status,
		r.ErrorCode,
		hashes,
		r.Nodes,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// GetRun returns the run with the given id.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, runColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns runs in insertion order, restricted to one context when
// contextHash is not empty.
func (s *Store) ListRuns(ctx context.Context, contextHash string) ([]Run, error) {
	query := runColumns
	var args []any
	if contextHash != "" {
		query += ` WHERE context_hash = ?`
		args = append(args, contextHash)
	}
	query += ` ORDER BY seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

const runColumns = `
	SELECT seq, id, context_hash, mode, parties, party, status, error_code, output_hashes, nodes
	FROM eval_runs`

func scanRun(row scanner) (Run, error) {
	var r Run
	var hashes string
	err := row.Scan(&r.Seq, &r.ID, &r.ContextHash, &r.Mode, &r.Parties, &r.Party,
		&r.Status, &r.ErrorCode, &hashes, &r.Nodes)
	if err != nil {
		return Run{}, err
	}
	r.OutputHashes, err = unmarshalStrings(hashes)
	if err != nil {
		return Run{}, err
	}
	return r, nil
}

// marshalStrings stores a string list as canonical JSON.
func marshalStrings(ss []string) (string, error) {
	arr := make(ir.DocArray, len(ss))
	for i, s := range ss {
		arr[i] = ir.DocString(s)
	}
	b, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalStrings(s string) ([]string, error) {
	d, err := ir.UnmarshalDoc([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("unmarshal output hashes: %w", err)
	}
	arr, ok := d.(ir.DocArray)
	if !ok {
		return nil, fmt.Errorf("unmarshal output hashes: expected array, got %T", d)
	}
	out := make([]string, len(arr))
	for i, e := range arr {
		str, ok := e.(ir.DocString)
		if !ok {
			return nil, fmt.Errorf("unmarshal output hashes: element %d is %T", i, e)
		}
		out[i] = string(str)
	}
	return out, nil
}
