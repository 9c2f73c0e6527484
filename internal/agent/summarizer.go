package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/wtokarzewski/janus-agent/internal/provider"
	"github.com/wtokarzewski/janus-agent/internal/session"
)

const flushInstruction = "Extract important facts, decisions, and learnings from this conversation. If nothing worth remembering, respond with NONE."

const summarizeInstruction = "Summarize concisely: decisions, key context, current state."

// Summarizer runs off the request path: it extracts durable facts from the
// oldest half of a session into today's daily note, then asks the model
// for a rolling summary and hands it to the session manager to store and
// trim.
type Summarizer struct {
	sessions       *session.Manager
	registry       *provider.Registry
	contextBuilder *ContextBuilder // only used for its daily-note append helper
	memoryEnabled  bool
}

// NewSummarizer builds a Summarizer. memoryEnabled selects whether the
// flush step runs at all, gated on whether a memory store is wired.
func NewSummarizer(sessions *session.Manager, registry *provider.Registry, cb *ContextBuilder, memoryEnabled bool) *Summarizer {
	return &Summarizer{sessions: sessions, registry: registry, contextBuilder: cb, memoryEnabled: memoryEnabled}
}

// Run performs the flush-then-summarize pipeline for key's session.
func (s *Summarizer) Run(ctx context.Context, key string) error {
	msgs := s.sessions.History(key, 0)
	if len(msgs) == 0 {
		return nil
	}

	half := len(msgs) / 2
	firstHalf := msgs[:half]

	if s.memoryEnabled && len(firstHalf) > 0 {
		if err := s.flush(ctx, firstHalf); err != nil {
			return fmt.Errorf("agent: memory flush: %w", err)
		}
	}

	summary, err := s.summarize(ctx, msgs)
	if err != nil {
		return fmt.Errorf("agent: summarizing session: %w", err)
	}
	if err := s.sessions.Summarize(key, summary); err != nil {
		return fmt.Errorf("agent: storing summary: %w", err)
	}
	return nil
}

func (s *Summarizer) flush(ctx context.Context, msgs []session.Message) error {
	req := &provider.ChatRequest{
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: flushInstruction},
			{Role: provider.RoleUser, Content: flattenTranscript(msgs)},
		},
	}
	resp, err := s.registry.Chat(ctx, req, "flush")
	if err != nil {
		return err
	}
	reply := strings.TrimSpace(resp.Content)
	if reply == "NONE" {
		return nil
	}
	return s.contextBuilder.appendDailyNote("## Session notes\n" + reply)
}

func (s *Summarizer) summarize(ctx context.Context, msgs []session.Message) (string, error) {
	req := &provider.ChatRequest{
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: summarizeInstruction},
			{Role: provider.RoleUser, Content: flattenTranscript(msgs)},
		},
	}
	resp, err := s.registry.Chat(ctx, req, "summarize")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

func flattenTranscript(msgs []session.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, string(m.Role)+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// ShouldSummarize reports whether a session has grown past the
// summarization threshold, either by raw message count or by an estimated
// token count exceeding 0.75 of the configured token budget.
func ShouldSummarize(msgs []session.Message, countThreshold, tokenBudget int) bool {
	if len(msgs) >= countThreshold {
		return true
	}
	return estimateTokens(msgs) >= int(0.75*float64(tokenBudget))
}

// estimateTokens approximates token count at roughly 4 characters per
// token, the common rule-of-thumb estimate for English text.
func estimateTokens(msgs []session.Message) int {
	chars := 0
	for _, m := range msgs {
		chars += len(m.Content)
	}
	return chars / 4
}
