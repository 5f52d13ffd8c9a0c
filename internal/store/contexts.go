package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/mpcgraph/internal/graph"
	"github.com/roach88/mpcgraph/internal/ir"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ContextRecord describes a stored context.
type ContextRecord struct {
	Hash string `json:"hash"`
	Seq  int64  `json:"seq"`
	Name string `json:"name"`

	// Parties is the party count a compiled context was built for, 0 for
	// plaintext contexts.
	Parties  int  `json:"parties"`
	Compiled bool `json:"compiled"`

	Graphs int `json:"graphs"`
	Nodes  int `json:"nodes"`
}

// WriteContext stores the canonical serialization of c under its hash.
// Uses ON CONFLICT(hash) DO NOTHING for idempotency: writing an identical
// context again returns the existing record.
func (s *Store) WriteContext(ctx context.Context, name string, c *graph.Context, parties int) (ContextRecord, error) {
	body, err := c.Serialize()
	if err != nil {
		return ContextRecord{}, fmt.Errorf("write context: %w", err)
	}
	hash := ir.HashCanonical(ir.DomainContext, body)

	rec := ContextRecord{
		Hash:     hash,
		Name:     name,
		Parties:  parties,
		Compiled: parties > 0,
		Graphs:   len(c.Graphs()),
	}
	for _, g := range c.Graphs() {
		rec.Nodes += g.Len()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ContextRecord{}, fmt.Errorf("write context: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO contexts (hash, seq, name, parties, compiled, graphs, nodes, body)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM contexts), ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, rec.Hash, rec.Name, rec.Parties, rec.Compiled, rec.Graphs, rec.Nodes, body)
	if err != nil {
		return ContextRecord{}, fmt.Errorf("write context: %w", err)
	}

	stored, err := scanContext(tx.QueryRowContext(ctx, `
		SELECT hash, seq, name, parties, compiled, graphs, nodes
		FROM contexts WHERE hash = ?
	`, hash))
	if err != nil {
		return ContextRecord{}, fmt.Errorf("write context: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return ContextRecord{}, fmt.Errorf("write context: commit: %w", err)
	}
	return stored, nil
}

// ReadContext loads and revalidates the context stored under hash.
func (s *Store) ReadContext(ctx context.Context, hash string) (*graph.Context, ContextRecord, error) {
	var body []byte
	row := s.db.QueryRowContext(ctx, `
		SELECT hash, seq, name, parties, compiled, graphs, nodes, body
		FROM contexts WHERE hash = ?
	`, hash)
	var rec ContextRecord
	err := row.Scan(&rec.Hash, &rec.Seq, &rec.Name, &rec.Parties, &rec.Compiled, &rec.Graphs, &rec.Nodes, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ContextRecord{}, fmt.Errorf("read context %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return nil, ContextRecord{}, fmt.Errorf("read context %s: %w", hash, err)
	}
	c, err := graph.Load(body)
	if err != nil {
		return nil, ContextRecord{}, fmt.Errorf("read context %s: %w", hash, err)
	}
	return c, rec, nil
}

// ListContexts returns every stored context in insertion order.
func (s *Store) ListContexts(ctx context.Context) ([]ContextRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hash, seq, name, parties, compiled, graphs, nodes
		FROM contexts
		ORDER BY seq ASC, hash COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query contexts: %w", err)
	}
	defer rows.Close()

	records := []ContextRecord{}
	for rows.Next() {
		rec, err := scanContext(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contexts: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContext(row scanner) (ContextRecord, error) {
	var rec ContextRecord
	if err := row.Scan(&rec.Hash, &rec.Seq, &rec.Name, &rec.Parties, &rec.Compiled, &rec.Graphs, &rec.Nodes); err != nil {
		return ContextRecord{}, fmt.Errorf("scan context: %w", err)
	}
	return rec, nil
}
