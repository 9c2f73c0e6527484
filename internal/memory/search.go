package memory

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/wtokarzewski/janus-agent/internal/provider"
	"github.com/wtokarzewski/janus-agent/internal/store"
)

// evergreenSource never decays: it's the running facts file the agent is
// expected to keep current, so its age carries no relevance signal.
const evergreenSource = "MEMORY.md"

// rrfK is the Reciprocal Rank Fusion smoothing constant.
const rrfK = 60

// SearchResult is one ranked hit returned to callers.
type SearchResult struct {
	Chunk store.MemoryChunk
	Score float64
}

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

// sanitizeQuery lowercases and extracts alphanumeric words of length >= 3,
// per the keyword search contract; an empty result means "no match".
func sanitizeQuery(query string) []string {
	words := wordPattern.FindAllString(strings.ToLower(query), -1)
	out := words[:0]
	for _, w := range words {
		if len(w) >= 3 {
			out = append(out, w)
		}
	}
	return out
}

func decay(source string, updatedAt time.Time) float64 {
	if source == evergreenSource {
		return 1.0
	}
	ageMS := float64(time.Since(updatedAt).Milliseconds())
	if ageMS < 0 {
		ageMS = 0
	}
	const thirtyDaysMS = 30 * 24 * 60 * 60 * 1000
	return math.Pow(0.5, ageMS/thirtyDaysMS)
}

// KeywordSearch sanitizes query into an FTS5 OR expression, fetches 5x
// limit candidates, rescales each hit's bm25 score by temporal decay
// (evergreen chunks exempted), and returns the top limit by descending
// score. An empty sanitized query returns no results.
func (idx *Index) KeywordSearch(ctx context.Context, query, scopeKind, scopeID string, limit int) ([]SearchResult, error) {
	words := sanitizeQuery(query)
	if len(words) == 0 {
		return nil, nil
	}
	ftsQuery := strings.Join(words, " OR ")

	rows, err := idx.store.KeywordSearch(ctx, ftsQuery, scopeKind, scopeID, limit*5)
	if err != nil {
		return nil, fmt.Errorf("memory: keyword search: %w", err)
	}

	results := make([]SearchResult, 0, len(rows))
	for _, r := range rows {
		base := -r.BM25 // bm25 is lower-is-better; negate so higher is better
		final := base * decay(r.Source, r.UpdatedAt)
		results = append(results, SearchResult{Chunk: r.MemoryChunk, Score: final})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// VectorSearch embeds query and ranks every scoped chunk with a stored
// embedding by cosine similarity, keeping the top 2x limit.
func (idx *Index) VectorSearch(ctx context.Context, query, scopeKind, scopeID string, limit int) ([]SearchResult, error) {
	if idx.embedder == nil {
		return nil, fmt.Errorf("memory: vector search requires an embedder")
	}
	resp, err := idx.embedder.Embed(ctx, &provider.EmbeddingRequest{Input: query})
	if err != nil {
		return nil, fmt.Errorf("memory: embedding query: %w", err)
	}

	candidates, err := idx.store.VectorCandidates(ctx, scopeKind, scopeID)
	if err != nil {
		return nil, fmt.Errorf("memory: fetching vector candidates: %w", err)
	}

	results := make([]SearchResult, 0, len(candidates))
	for _, c := range candidates {
		sim := cosineSimilarity(resp.Vector, c.Embedding)
		results = append(results, SearchResult{Chunk: c, Score: float64(sim)})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	top := limit * 2
	if len(results) > top {
		results = results[:top]
	}
	return results, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// HybridSearch runs the keyword branch and then the vector branch over the
// same scope, fuses them by Reciprocal Rank Fusion (k=60), and returns the
// top limit results. If the vector branch fails — no embedder configured,
// or the embedding call errors — hybrid search degrades to keyword-only.
func (idx *Index) HybridSearch(ctx context.Context, query, scopeKind, scopeID string, limit int) ([]SearchResult, error) {
	keywordHits, err := idx.KeywordSearch(ctx, query, scopeKind, scopeID, limit*2)
	if err != nil {
		return nil, fmt.Errorf("memory: hybrid search keyword branch: %w", err)
	}

	vectorHits, err := idx.VectorSearch(ctx, query, scopeKind, scopeID, limit)
	if err != nil {
		slog.Warn("memory: vector branch failed, degrading to keyword-only", "error", err)
		if len(keywordHits) > limit {
			keywordHits = keywordHits[:limit]
		}
		return keywordHits, nil
	}

	fused := fuseRRF(keywordHits, vectorHits)
	if len(fused) > limit {
		fused = fused[:limit]
	}
	return fused, nil
}

// fuseRRF combines two ranked lists into one by Reciprocal Rank Fusion:
// score(chunk) = sum over lists containing it of 1/(k + rank + 1).
func fuseRRF(lists ...[]SearchResult) []SearchResult {
	type accum struct {
		chunk store.MemoryChunk
		score float64
	}
	byID := map[string]*accum{}
	var order []string

	for _, list := range lists {
		for rank, hit := range list {
			a, ok := byID[hit.Chunk.ID]
			if !ok {
				a = &accum{chunk: hit.Chunk}
				byID[hit.Chunk.ID] = a
				order = append(order, hit.Chunk.ID)
			}
			a.score += 1.0 / float64(rrfK+rank+1)
		}
	}

	out := make([]SearchResult, 0, len(order))
	for _, id := range order {
		a := byID[id]
		out = append(out, SearchResult{Chunk: a.chunk, Score: a.score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
