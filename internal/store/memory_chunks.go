package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// MemoryChunk is one row of the memory_chunks table. Source is the
// originating file name (e.g. "MEMORY.md", a daily note); Owner is
// "shared" or a specific user id; ScopeKind/ScopeID are the tenancy
// dimension used to filter queries.
type MemoryChunk struct {
	ID        string
	Source    string
	Heading   string
	Content   string
	Embedding []float32
	Owner     string
	ScopeKind string
	ScopeID   string
	Tags      string
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ErrNotFound is returned by single-row lookups that find nothing.
var ErrNotFound = errors.New("store: not found")

// ReplaceSourceChunks deletes every chunk previously indexed from
// (source, owner, scopeKind, scopeID) and inserts fresh ones, all inside
// one transaction, so a reindex never leaves stale and fresh chunks
// coexisting.
func (s *Store) ReplaceSourceChunks(ctx context.Context, source, owner, scopeKind, scopeID string, chunks []MemoryChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: beginning reindex transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM memory_chunks WHERE source = ? AND owner = ? AND scope_kind = ? AND scope_id = ?
	`, source, owner, scopeKind, scopeID); err != nil {
		return fmt.Errorf("store: deleting prior chunks for %s: %w", source, err)
	}

	for _, c := range chunks {
		blob := encodeFloat32s(c.Embedding)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO memory_chunks (id, source, heading, content, embedding, owner, scope_kind, scope_id, tags)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, c.ID, source, c.Heading, c.Content, blob, owner, scopeKind, scopeID, c.Tags); err != nil {
			return fmt.Errorf("store: inserting chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// scopeQueryClause builds the WHERE clause implementing the memory
// scope filter: with no scope, everything matches; with scope.kind ==
// user, shared/global chunks plus the caller's own user-scoped chunks;
// with scope.kind == family, shared/global chunks plus shared chunks
// scoped to that family; any other kind returns only global chunks.
func scopeQueryClause(scopeKind, scopeID string) (string, []any) {
	switch scopeKind {
	case "":
		return "", nil
	case "user":
		return " AND ((owner = 'shared' AND scope_kind = 'global') OR (owner = ? AND scope_kind = 'user' AND scope_id = ?))",
			[]any{scopeID, scopeID}
	case "family":
		return " AND ((owner = 'shared' AND scope_kind = 'global') OR (owner = 'shared' AND scope_kind = 'family' AND scope_id = ?))",
			[]any{scopeID}
	default:
		return " AND scope_kind = 'global'", nil
	}
}

// ScoredChunk pairs a chunk with its raw FTS5 bm25 score (lower is a
// better match, per SQLite's convention).
type ScoredChunk struct {
	MemoryChunk
	BM25 float64
}

// KeywordSearch runs the FTS5 match query, scoped per scopeQueryClause and
// ranked by SQLite's bm25(), returning each row alongside its raw score
// for the caller to fuse with a vector search branch.
func (s *Store) KeywordSearch(ctx context.Context, query string, scopeKind, scopeID string, limit int) ([]ScoredChunk, error) {
	clause, args := scopeQueryClause(scopeKind, scopeID)
	sqlStr := `
		SELECT m.id, m.source, m.heading, m.content, m.owner, m.scope_kind, m.scope_id, m.tags, m.version, m.created_at, m.updated_at, bm25(memory_chunks_fts)
		FROM memory_chunks_fts f
		JOIN memory_chunks m ON m.rowid = f.rowid
		WHERE memory_chunks_fts MATCH ?` + clause + `
		ORDER BY bm25(memory_chunks_fts)
		LIMIT ?
	`
	queryArgs := append([]any{query}, args...)
	queryArgs = append(queryArgs, limit)
	rows, err := s.db.QueryContext(ctx, sqlStr, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("store: keyword search: %w", err)
	}
	defer rows.Close()

	var out []ScoredChunk
	for rows.Next() {
		var c ScoredChunk
		if err := rows.Scan(&c.ID, &c.Source, &c.Heading, &c.Content, &c.Owner, &c.ScopeKind, &c.ScopeID, &c.Tags, &c.Version, &c.CreatedAt, &c.UpdatedAt, &c.BM25); err != nil {
			return nil, fmt.Errorf("store: scanning keyword search row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// VectorCandidates returns every chunk with a non-null embedding in the
// requested scope, for the caller to score by cosine similarity. SQLite
// has no native vector index here, so filtering happens in Go, matching
// the corpus's own full-scan approach at this data scale.
func (s *Store) VectorCandidates(ctx context.Context, scopeKind, scopeID string) ([]MemoryChunk, error) {
	clause, args := scopeQueryClause(scopeKind, scopeID)
	sqlStr := `
		SELECT id, source, heading, content, embedding, owner, scope_kind, scope_id, tags, version, created_at, updated_at
		FROM memory_chunks
		WHERE embedding IS NOT NULL` + clause
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("store: vector candidates: %w", err)
	}
	defer rows.Close()

	var out []MemoryChunk
	for rows.Next() {
		var c MemoryChunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.Source, &c.Heading, &c.Content, &blob, &c.Owner, &c.ScopeKind, &c.ScopeID, &c.Tags, &c.Version, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scanning vector candidate: %w", err)
		}
		c.Embedding = decodeFloat32s(blob)
		out = append(out, c)
	}
	return out, rows.Err()
}

// encodeFloat32s converts a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32s converts little-endian bytes back to a float32 slice.
func decodeFloat32s(b []byte) []float32 {
	if len(b)%4 != 0 || len(b) == 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
