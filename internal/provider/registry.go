package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// Entry is one named backend registered with a Registry.
type Entry struct {
	Name         string
	Provider     LLMProvider
	DefaultModel string
	PurposeTags  []string
	Priority     int // lower is tried first
}

// Registry routes chat/stream calls to the best-fit provider entry for an
// optional purpose tag, failing over to the next candidate in priority
// order on error. It is stateless across calls: it never retries the same
// entry twice for a single request.
type Registry struct {
	entries []Entry
}

// NewRegistry builds a registry from a set of entries, sorted by priority.
func NewRegistry(entries []Entry) *Registry {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })
	return &Registry{entries: sorted}
}

// candidates returns entries eligible for purpose, in priority order. An
// entry with no PurposeTags is a wildcard and matches any purpose. If no
// entry declares the requested purpose, every entry is eligible.
func (r *Registry) candidates(purpose string) []Entry {
	if purpose == "" {
		return r.entries
	}
	var matched []Entry
	for _, e := range r.entries {
		if len(e.PurposeTags) == 0 {
			matched = append(matched, e)
			continue
		}
		for _, tag := range e.PurposeTags {
			if tag == purpose {
				matched = append(matched, e)
				break
			}
		}
	}
	if len(matched) == 0 {
		return r.entries
	}
	return matched
}

// Chat tries each candidate for purpose in priority order, returning the
// first success. On exhaustion it returns the last error seen.
func (r *Registry) Chat(ctx context.Context, req *ChatRequest, purpose string) (*ChatResponse, error) {
	candidates := r.candidates(purpose)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("provider: registry has no entries")
	}

	var lastErr error
	for _, e := range candidates {
		callReq := *req
		if callReq.Model == "" {
			callReq.Model = e.DefaultModel
		}
		resp, err := e.Provider.Chat(ctx, &callReq)
		if err == nil {
			return resp, nil
		}
		slog.Warn("provider candidate failed", "provider", e.Name, "purpose", purpose, "error", err)
		lastErr = err
	}
	return nil, fmt.Errorf("provider: all candidates exhausted for purpose %q: %w", purpose, lastErr)
}

// ChatStream mirrors Chat, using the candidate's native ChatStream when it
// implements StreamingProvider and falling back to Chat with the whole
// response delivered as a single onChunk call otherwise.
func (r *Registry) ChatStream(ctx context.Context, req *ChatRequest, purpose string, onChunk func(delta string)) (*ChatResponse, error) {
	candidates := r.candidates(purpose)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("provider: registry has no entries")
	}

	var lastErr error
	for _, e := range candidates {
		callReq := *req
		if callReq.Model == "" {
			callReq.Model = e.DefaultModel
		}

		if streamer, ok := e.Provider.(StreamingProvider); ok {
			resp, err := streamer.ChatStream(ctx, &callReq, onChunk)
			if err == nil {
				return resp, nil
			}
			slog.Warn("provider candidate stream failed", "provider", e.Name, "purpose", purpose, "error", err)
			lastErr = err
			continue
		}

		resp, err := e.Provider.Chat(ctx, &callReq)
		if err != nil {
			slog.Warn("provider candidate failed", "provider", e.Name, "purpose", purpose, "error", err)
			lastErr = err
			continue
		}
		onChunk(resp.Content)
		return resp, nil
	}
	return nil, fmt.Errorf("provider: all candidates exhausted for purpose %q: %w", purpose, lastErr)
}

// Embed routes an embedding request to the first candidate implementing
// Embedder, in priority order, ignoring purpose (embeddings are not
// purpose-tagged the way chat completions are).
func (r *Registry) Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	var lastErr error
	tried := false
	for _, e := range r.entries {
		embedder, ok := e.Provider.(Embedder)
		if !ok {
			continue
		}
		tried = true
		resp, err := embedder.Embed(ctx, req)
		if err == nil {
			return resp, nil
		}
		slog.Warn("provider candidate embed failed", "provider", e.Name, "error", err)
		lastErr = err
	}
	if !tried {
		return nil, fmt.Errorf("provider: no registered entry supports embeddings")
	}
	return nil, fmt.Errorf("provider: all embedding candidates exhausted: %w", lastErr)
}

// Names returns the registered entry names in priority order, mainly for
// diagnostics and tests.
func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.Name
	}
	return names
}
