package provider

import (
	"context"
	"errors"
	"testing"
)

type fakeProvider struct {
	name      string
	err       error
	content   string
	embed     []float32
	embedErr  error
	streaming bool
	chunks    []string
}

func (f *fakeProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ChatResponse{Content: f.content}, nil
}

func (f *fakeProvider) Transcribe(ctx context.Context, req *AudioRequest) (*AudioResponse, error) {
	return nil, errors.New("not supported")
}

func (f *fakeProvider) Speak(ctx context.Context, req *TTSRequest) (*TTSResponse, error) {
	return nil, errors.New("not supported")
}

func (f *fakeProvider) DefaultModel() string { return "fake-model" }

func (f *fakeProvider) Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return &EmbeddingResponse{Vector: f.embed}, nil
}

func (f *fakeProvider) ChatStream(ctx context.Context, req *ChatRequest, onChunk func(delta string)) (*ChatResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, c := range f.chunks {
		onChunk(c)
	}
	return &ChatResponse{Content: f.content}, nil
}

func TestRegistryChatTriesInPriorityOrder(t *testing.T) {
	primary := &fakeProvider{name: "primary", content: "from primary"}
	backup := &fakeProvider{name: "backup", content: "from backup"}
	r := NewRegistry([]Entry{
		{Name: "backup", Provider: backup, Priority: 2},
		{Name: "primary", Provider: primary, Priority: 1},
	})

	resp, err := r.Chat(context.Background(), &ChatRequest{}, "")
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if resp.Content != "from primary" {
		t.Errorf("expected primary to win, got %q", resp.Content)
	}
}

func TestRegistryChatFailsOverOnError(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: errors.New("boom")}
	backup := &fakeProvider{name: "backup", content: "from backup"}
	r := NewRegistry([]Entry{
		{Name: "primary", Provider: primary, Priority: 1},
		{Name: "backup", Provider: backup, Priority: 2},
	})

	resp, err := r.Chat(context.Background(), &ChatRequest{}, "")
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if resp.Content != "from backup" {
		t.Errorf("expected failover to backup, got %q", resp.Content)
	}
}

func TestRegistryChatExhaustsAndReturnsLastError(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: errors.New("first failure")}
	backup := &fakeProvider{name: "backup", err: errors.New("second failure")}
	r := NewRegistry([]Entry{
		{Name: "primary", Provider: primary, Priority: 1},
		{Name: "backup", Provider: backup, Priority: 2},
	})

	_, err := r.Chat(context.Background(), &ChatRequest{}, "")
	if err == nil {
		t.Fatal("expected an error when all candidates fail")
	}
}

func TestRegistryChatFiltersByPurposeTag(t *testing.T) {
	coder := &fakeProvider{name: "coder", content: "code response"}
	chat := &fakeProvider{name: "chat", content: "chat response"}
	r := NewRegistry([]Entry{
		{Name: "coder", Provider: coder, Priority: 1, PurposeTags: []string{"code"}},
		{Name: "chat", Provider: chat, Priority: 2, PurposeTags: []string{"chat"}},
	})

	resp, err := r.Chat(context.Background(), &ChatRequest{}, "code")
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if resp.Content != "code response" {
		t.Errorf("expected the code-tagged provider to be chosen, got %q", resp.Content)
	}
}

func TestRegistryChatFallsBackToAllWhenNoTagMatches(t *testing.T) {
	only := &fakeProvider{name: "only", content: "only response"}
	r := NewRegistry([]Entry{
		{Name: "only", Provider: only, Priority: 1, PurposeTags: []string{"code"}},
	})

	resp, err := r.Chat(context.Background(), &ChatRequest{}, "vision")
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if resp.Content != "only response" {
		t.Errorf("expected fallback to the only entry, got %q", resp.Content)
	}
}

func TestRegistryChatStreamUsesNativeStreamer(t *testing.T) {
	streamer := &fakeProvider{name: "streamer", content: "final", chunks: []string{"fi", "nal"}}
	r := NewRegistry([]Entry{{Name: "streamer", Provider: streamer, Priority: 1}})

	var got []string
	resp, err := r.ChatStream(context.Background(), &ChatRequest{}, "", func(delta string) {
		got = append(got, delta)
	})
	if err != nil {
		t.Fatalf("ChatStream() error: %v", err)
	}
	if len(got) != 2 || got[0] != "fi" || got[1] != "nal" {
		t.Errorf("expected native streamed chunks, got %v", got)
	}
	if resp.Content != "final" {
		t.Errorf("expected final content 'final', got %q", resp.Content)
	}
}

// nonStreamingProvider implements LLMProvider but not StreamingProvider, so
// the registry must fall back to Chat plus a single synthetic chunk.
type nonStreamingProvider struct {
	content string
}

func (p *nonStreamingProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	return &ChatResponse{Content: p.content}, nil
}
func (p *nonStreamingProvider) Transcribe(ctx context.Context, req *AudioRequest) (*AudioResponse, error) {
	return nil, errors.New("not supported")
}
func (p *nonStreamingProvider) Speak(ctx context.Context, req *TTSRequest) (*TTSResponse, error) {
	return nil, errors.New("not supported")
}
func (p *nonStreamingProvider) DefaultModel() string { return "non-streaming-model" }

func TestRegistryChatStreamAdaptsNonStreamingProvider(t *testing.T) {
	plain := &nonStreamingProvider{content: "whole response"}
	r := NewRegistry([]Entry{{Name: "plain", Provider: plain, Priority: 1}})

	var got []string
	resp, err := r.ChatStream(context.Background(), &ChatRequest{}, "", func(delta string) {
		got = append(got, delta)
	})
	if err != nil {
		t.Fatalf("ChatStream() error: %v", err)
	}
	if len(got) != 1 || got[0] != "whole response" {
		t.Errorf("expected single synthetic chunk with the full content, got %v", got)
	}
	if resp.Content != "whole response" {
		t.Errorf("expected content 'whole response', got %q", resp.Content)
	}
}

func TestRegistryEmbedSkipsNonEmbedders(t *testing.T) {
	plain := &nonStreamingProvider{content: "irrelevant"}
	embedder := &fakeProvider{name: "embedder", embed: []float32{0.5, 0.5}}
	r := NewRegistry([]Entry{
		{Name: "plain", Provider: plain, Priority: 1},
		{Name: "embedder", Provider: embedder, Priority: 2},
	})

	resp, err := r.Embed(context.Background(), &EmbeddingRequest{Input: "text"})
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if len(resp.Vector) != 2 {
		t.Errorf("expected embedder's vector, got %v", resp.Vector)
	}
}

func TestRegistryEmbedErrorsWhenNoEmbedderRegistered(t *testing.T) {
	plain := &nonStreamingProvider{content: "irrelevant"}
	r := NewRegistry([]Entry{{Name: "plain", Provider: plain, Priority: 1}})

	if _, err := r.Embed(context.Background(), &EmbeddingRequest{Input: "text"}); err == nil {
		t.Fatal("expected error when no registered entry supports embeddings")
	}
}
