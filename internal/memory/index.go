package memory

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/wtokarzewski/janus-agent/internal/provider"
	"github.com/wtokarzewski/janus-agent/internal/store"
)

// Index owns chunking and writing documents into the store. Embedder is
// optional: when nil, IndexFile stores chunks with no embedding and
// vector search over them is simply empty, mirroring the graceful
// degradation used throughout the provider package.
type Index struct {
	store    *store.Store
	embedder provider.Embedder
}

// NewIndex builds an Index. embedder may be nil.
func NewIndex(st *store.Store, embedder provider.Embedder) *Index {
	return &Index{store: st, embedder: embedder}
}

// IndexFile chunks content and replaces every prior chunk indexed from
// (source, owner, scopeKind, scopeID) with the fresh set, in one
// transaction. It never computes embeddings; use IndexFileWithEmbeddings
// for that.
func (idx *Index) IndexFile(ctx context.Context, source, content, owner, scopeKind, scopeID string) error {
	return idx.indexChunks(ctx, source, content, owner, scopeKind, scopeID, false)
}

// IndexFileWithEmbeddings chunks content and computes one embedding
// vector per chunk via idx.embedder before replacing the source's prior
// chunks. If embedder is nil this behaves exactly like IndexFile. A chunk
// whose embedding call fails is logged and stored without a vector, so it
// is still found by keyword search.
func (idx *Index) IndexFileWithEmbeddings(ctx context.Context, source, content, owner, scopeKind, scopeID string) error {
	return idx.indexChunks(ctx, source, content, owner, scopeKind, scopeID, true)
}

func (idx *Index) indexChunks(ctx context.Context, source, content, owner, scopeKind, scopeID string, withEmbeddings bool) error {
	chunks := ChunkMarkdown(content)
	rows := make([]store.MemoryChunk, 0, len(chunks))
	for _, c := range chunks {
		row := store.MemoryChunk{
			ID:      uuid.NewString(),
			Heading: c.Heading,
			Content: c.Content,
		}
		if withEmbeddings && idx.embedder != nil {
			resp, err := idx.embedder.Embed(ctx, &provider.EmbeddingRequest{Input: c.Content})
			if err != nil {
				slog.Warn("memory: embedding chunk failed, storing it without a vector", "source", source, "heading", c.Heading, "error", err)
			} else {
				row.Embedding = resp.Vector
			}
		}
		rows = append(rows, row)
	}
	return idx.store.ReplaceSourceChunks(ctx, source, owner, scopeKind, scopeID, rows)
}
