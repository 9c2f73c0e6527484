package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/wtokarzewski/janus-agent/internal/bus"
	"github.com/wtokarzewski/janus-agent/internal/learner"
	"github.com/wtokarzewski/janus-agent/internal/provider"
	"github.com/wtokarzewski/janus-agent/internal/session"
	"github.com/wtokarzewski/janus-agent/internal/tools"
)

// noOpPattern matches a system-origin reply that needs no user-visible
// delivery (a heartbeat that found nothing to report).
var noOpPattern = regexp.MustCompile(`(?i)^(HEARTBEAT_OK|no.?op|nothing to do|all good)`)

// contextOverflowPattern matches a provider error indicating the request
// exceeded the model's context window.
var contextOverflowPattern = regexp.MustCompile(`(?i)token|context|length|too long`)

// transientLLMErrorPattern matches provider errors worth retrying: rate
// limits, upstream server errors, and network-level hiccups. Anything else
// (bad request, auth failure) is treated as permanent.
var transientLLMErrorPattern = regexp.MustCompile(`(?i)status (429|500|502|503|504)|timeout|deadline exceeded|connection reset|connection refused|EOF|temporarily unavailable`)

const maxEmergencyRetries = 2
const maxLLMRetries = 5
const llmRetryBaseDelay = 500 * time.Millisecond
const llmRetryMaxDelay = 8 * time.Second
const toolResultMaxChars = 4000

// llmRetryDelay returns an exponential backoff delay for the given
// zero-based attempt number, with up to 250ms of jitter added to avoid
// synchronized retries against the same provider.
func llmRetryDelay(attempt int) time.Duration {
	delay := llmRetryBaseDelay << attempt
	if delay > llmRetryMaxDelay || delay <= 0 {
		delay = llmRetryMaxDelay
	}
	return delay + time.Duration(rand.Int63n(int64(250*time.Millisecond)))
}

// UserProfile is the resolved, per-user policy the loop applies for one
// message: tool/skill visibility, content policy, and profile document.
type UserProfile struct {
	DisplayName   string
	ProfileDoc    string
	ToolAllow     []string
	ToolDeny      []string
	SkillAllow    []string
	SkillDeny     []string
	ContentPolicy string
}

// UserResolver looks up a configured user by id.
type UserResolver interface {
	Resolve(userID string) (UserProfile, bool)
}

// LoopOptions configures a Loop.
type LoopOptions struct {
	Bus             *bus.MessageBus
	Registry        *provider.Registry
	Sessions        *session.Manager
	Tools           *tools.Registry
	ContextBuilder  *ContextBuilder
	Summarizer      *Summarizer
	Learner         *learner.Learner
	Users           UserResolver

	MaxIterations          int
	ToolRetries            int
	OnLLMError             string // "stop" | "retry"
	SummarizationThreshold int
	TokenBudget            int

	WorkspaceDir     string
	ExecDenyPatterns []string
	ExecTimeoutMS    int
	MaxFileSize      int64

	DefaultChannel string
	DefaultChatID  string
	DefaultMode    bus.ContextMode

	Streaming   bool
	Model       string
	MaxTokens   int
	Temperature float64
}

// Loop is the coordinator that turns one inbound message into one
// outbound reply through zero or more tool-use iterations.
type Loop struct {
	bus            *bus.MessageBus
	registry       *provider.Registry
	sessions       *session.Manager
	tools          *tools.Registry
	contextBuilder *ContextBuilder
	summarizer     *Summarizer
	learner        *learner.Learner
	users          UserResolver

	maxIterations          int
	toolRetries            int
	onLLMError             string
	summarizationThreshold int
	tokenBudget            int

	workspaceDir     string
	execDenyPatterns []string
	execTimeoutMS    int
	maxFileSize      int64

	defaultChannel string
	defaultChatID  string
	defaultMode    bus.ContextMode

	streaming   bool
	model       string
	maxTokens   int
	temperature float64
}

// NewLoop builds a Loop from opts, filling in the standard defaults for
// any zero-valued budget field.
func NewLoop(opts LoopOptions) *Loop {
	l := &Loop{
		bus:                    opts.Bus,
		registry:               opts.Registry,
		sessions:               opts.Sessions,
		tools:                  opts.Tools,
		contextBuilder:         opts.ContextBuilder,
		summarizer:             opts.Summarizer,
		learner:                opts.Learner,
		users:                  opts.Users,
		maxIterations:          opts.MaxIterations,
		toolRetries:            opts.ToolRetries,
		onLLMError:             opts.OnLLMError,
		summarizationThreshold: opts.SummarizationThreshold,
		tokenBudget:            opts.TokenBudget,
		workspaceDir:           opts.WorkspaceDir,
		execDenyPatterns:       opts.ExecDenyPatterns,
		execTimeoutMS:          opts.ExecTimeoutMS,
		maxFileSize:            opts.MaxFileSize,
		defaultChannel:         opts.DefaultChannel,
		defaultChatID:          opts.DefaultChatID,
		defaultMode:            opts.DefaultMode,
		streaming:              opts.Streaming,
		model:                  opts.Model,
		maxTokens:              opts.MaxTokens,
		temperature:            opts.Temperature,
	}
	if l.maxIterations == 0 {
		l.maxIterations = 20
	}
	if l.onLLMError == "" {
		l.onLLMError = "retry"
	}
	if l.summarizationThreshold == 0 {
		l.summarizationThreshold = 20
	}
	if l.tokenBudget == 0 {
		l.tokenBudget = 100000
	}
	if l.defaultMode == "" {
		l.defaultMode = bus.ContextFull
	}
	return l
}

// Run consumes inbound messages until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	slog.Info("agent loop started")
	for {
		msg, err := l.bus.ConsumeInbound(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("agent: failed to consume inbound message", "error", err)
			continue
		}
		result, err := l.processMessage(ctx, msg)
		if err != nil {
			slog.Error("agent: failed to process message", "error", err)
			continue
		}
		if result.suppressed || result.streamed {
			continue
		}
		if err := l.bus.PublishOutbound(ctx, &bus.OutboundMessage{
			Channel: result.channel,
			ChatID:  result.chatID,
			Content: result.content,
			Type:    bus.KindMessage,
		}); err != nil {
			slog.Error("agent: failed to publish outbound message", "error", err)
		}
	}
}

// ProcessDirectOptions parameterizes a synchronous, one-shot call.
type ProcessDirectOptions struct {
	Channel string
	ChatID  string
	User    *bus.UserBinding
	Scope   *bus.Scope
	Mode    bus.ContextMode
}

// ProcessDirect processes one message synchronously and returns the final
// assistant text. Used by child agents, one-shot CLI mode, and tests.
func (l *Loop) ProcessDirect(ctx context.Context, text string, opts ProcessDirectOptions) (string, error) {
	channel := opts.Channel
	if channel == "" {
		channel = "cli"
	}
	chatID := opts.ChatID
	if chatID == "" {
		chatID = "default"
	}
	msg := &bus.InboundMessage{
		Channel:     channel,
		ChatID:      chatID,
		Content:     text,
		User:        opts.User,
		Scope:       opts.Scope,
		ContextMode: opts.Mode,
		Timestamp:   time.Now(),
	}
	result, err := l.processMessage(ctx, msg)
	if err != nil {
		return "", err
	}
	return result.content, nil
}

// processResult carries the routed outcome of one processMessage call.
type processResult struct {
	content    string
	channel    string
	chatID     string
	suppressed bool
	streamed   bool
}

// processMessage runs the full per-message pipeline: resolve the user's
// policy, build the prompt, persist the inbound message, iterate, persist
// the reply, and record a learner metric.
func (l *Loop) processMessage(ctx context.Context, msg *bus.InboundMessage) (*processResult, error) {
	key := msg.Channel + ":" + msg.ChatID

	var profile UserProfile
	if msg.User != nil && l.users != nil {
		if p, ok := l.users.Resolve(msg.User.UserID); ok {
			profile = p
		}
	}

	callCtx := tools.CallContext{
		WorkspaceDir:    l.workspaceDir,
		ExecDenyPattern: l.execDenyPatterns,
		ExecTimeoutMS:   l.execTimeoutMS,
		MaxFileSize:     l.maxFileSize,
		ChatID:          msg.ChatID,
		ToolAllow:       profile.ToolAllow,
		ToolDeny:        profile.ToolDeny,
		SkillAllow:      profile.SkillAllow,
		SkillDeny:       profile.SkillDeny,
		ContentPolicy:   profile.ContentPolicy,
	}
	if msg.User != nil {
		callCtx.UserID = msg.User.UserID
	}

	sess := l.sessions.GetOrCreate(key)

	mode := msg.ContextMode
	if mode == "" {
		mode = l.defaultMode
	}

	systemPrompt := l.contextBuilder.Build(ctx, BuildOptions{
		Mode:            mode,
		User:            msg.User,
		UserProfile:     profile.ProfileDoc,
		UserToolAllow:   profile.ToolAllow,
		UserToolDeny:    profile.ToolDeny,
		UserSkillAllow:  profile.SkillAllow,
		UserSkillDeny:   profile.SkillDeny,
		Scope:           msg.Scope,
		Channel:         msg.Channel,
		ChatID:          msg.ChatID,
		UserMessage:     msg.Content,
		PreviousSummary: sess.Summary,
	})

	history := l.trimToBudget(toProviderMessages(l.sessions.History(key, 0)))

	if err := l.sessions.Append(key, session.Message{Role: session.RoleUser, Content: msg.Content}); err != nil {
		slog.Error("agent: persisting inbound message", "key", key, "error", err)
	}

	messages := make([]provider.Message, 0, len(history)+2)
	messages = append(messages, provider.Message{Role: provider.RoleSystem, Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, provider.Message{Role: provider.RoleUser, Content: msg.Content})

	var onChunk func(string)
	if l.streaming {
		onChunk = func(delta string) {
			if delta == "" {
				return
			}
			l.bus.StreamTo(ctx, msg.Channel, msg.ChatID, bus.KindChunk, delta)
		}
	}

	start := time.Now()
	content, outcome, iterations, toolCalls, iterErr := l.iterate(ctx, key, messages, callCtx, onChunk)
	duration := time.Since(start)
	if iterErr != nil {
		content = "Error: " + iterErr.Error()
		outcome = "error"
	}

	streamed := false
	if l.streaming && outcome == "success" {
		l.bus.StreamTo(ctx, msg.Channel, msg.ChatID, bus.KindStreamEnd, "")
		streamed = true
	}

	if err := l.sessions.Append(key, session.Message{Role: session.RoleAssistant, Content: content}); err != nil {
		slog.Error("agent: persisting assistant message", "key", key, "error", err)
	}

	l.recordExecution(msg.Content, duration, iterations, toolCalls, outcome)
	l.maybeSummarize(key)

	result := &processResult{content: content, channel: msg.Channel, chatID: msg.ChatID, streamed: streamed}
	if msg.Channel == "system" {
		if noOpPattern.MatchString(strings.TrimSpace(content)) {
			result.suppressed = true
		} else {
			result.channel = l.defaultChannel
			result.chatID = l.defaultChatID
		}
	}
	return result, nil
}

// recordExecution stores a learner record fire-and-forget.
func (l *Loop) recordExecution(task string, duration time.Duration, iterations, toolCalls int, outcome string) {
	if l.learner == nil {
		return
	}
	lo := learner.OutcomeSuccess
	switch outcome {
	case "error":
		lo = learner.OutcomeError
	case "max_iterations":
		lo = learner.OutcomeMaxIterations
	}
	go func() {
		recCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.learner.Record(recCtx, learner.ExecutionRecord{
			TaskExcerpt: task,
			Duration:    duration,
			Iterations:  iterations,
			ToolCalls:   toolCalls,
			Outcome:     lo,
			Timestamp:   time.Now(),
		}); err != nil {
			slog.Warn("agent: recording execution metric failed", "error", err)
		}
	}()
}

// maybeSummarize triggers async summarization when the session has grown
// past the configured threshold.
func (l *Loop) maybeSummarize(key string) {
	if l.summarizer == nil {
		return
	}
	full := l.sessions.History(key, 0)
	if !ShouldSummarize(full, l.summarizationThreshold, l.tokenBudget) {
		return
	}
	go func() {
		sumCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		if err := l.summarizer.Run(sumCtx, key); err != nil {
			slog.Warn("agent: summarization failed", "key", key, "error", err)
		}
	}()
}

// iterate runs the tool-use loop, up to maxIterations, applying emergency
// compression on a context-overflow error and retrying tool calls that
// fail. onChunk, if non-nil, receives every streamed content delta.
func (l *Loop) iterate(ctx context.Context, key string, messages []provider.Message, callCtx tools.CallContext, onChunk func(string)) (content, outcome string, iterations, toolCalls int, err error) {
	toolDefs := l.tools.ProviderDefinitions(callCtx)
	emergencyRetries := 0
	llmRetries := 0

	for i := 0; i < l.maxIterations; i++ {
		iterations = i + 1

		req := &provider.ChatRequest{
			Messages:    messages,
			Tools:       toolDefs,
			Model:       l.model,
			MaxTokens:   l.maxTokens,
			Temperature: l.temperature,
		}

		var resp *provider.ChatResponse
		var callErr error
		if onChunk != nil {
			resp, callErr = l.registry.ChatStream(ctx, req, "", onChunk)
		} else {
			resp, callErr = l.registry.Chat(ctx, req, "")
		}

		if callErr != nil {
			if contextOverflowPattern.MatchString(callErr.Error()) && emergencyRetries < maxEmergencyRetries {
				emergencyRetries++
				messages = compressMessages(messages)
				continue
			}
			if l.onLLMError == "retry" && transientLLMErrorPattern.MatchString(callErr.Error()) && llmRetries < maxLLMRetries {
				delay := llmRetryDelay(llmRetries)
				llmRetries++
				slog.Warn("agent: transient provider error, retrying", "key", key, "attempt", llmRetries, "delay", delay, "error", callErr)
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return "", "error", iterations, toolCalls, ctx.Err()
				}
				continue
			}
			return "", "error", iterations, toolCalls, callErr
		}

		if len(resp.ToolCalls) == 0 {
			return resp.Content, "success", iterations, toolCalls, nil
		}

		assistantMsg := provider.Message{Role: provider.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls}
		messages = append(messages, assistantMsg)
		if err := l.sessions.Append(key, toSessionMessage(assistantMsg)); err != nil {
			slog.Error("agent: persisting assistant tool-call message", "key", key, "error", err)
		}

		for _, tc := range resp.ToolCalls {
			toolCalls++
			args := map[string]any{}
			if strings.TrimSpace(tc.Arguments) != "" {
				if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
					args = map[string]any{}
				}
			}

			var result string
			for attempt := 0; attempt <= l.toolRetries; attempt++ {
				result = l.tools.Execute(ctx, tc.Name, args, callCtx)
				if !strings.HasPrefix(result, "Error:") {
					break
				}
				if attempt < l.toolRetries {
					time.Sleep(500 * time.Millisecond * time.Duration(attempt+1))
				}
			}
			result = truncateResult(result, toolResultMaxChars)

			toolMsg := provider.Message{Role: provider.RoleTool, Content: result, ToolCallID: tc.ID}
			messages = append(messages, toolMsg)
			if err := l.sessions.Append(key, toSessionMessage(toolMsg)); err != nil {
				slog.Error("agent: persisting tool-result message", "key", key, "error", err)
			}
		}
	}

	return "I've reached the iteration limit for this task and need to stop here.", "max_iterations", iterations, toolCalls, nil
}

// compressMessages keeps the system message (index 0) and drops the front
// half of everything after it, the loop's in-line remedy for a
// context-overflow error.
func compressMessages(messages []provider.Message) []provider.Message {
	if len(messages) <= 1 {
		return messages
	}
	sys := messages[0]
	rest := messages[1:]
	drop := len(rest) / 2
	kept := make([]provider.Message, len(rest)-drop)
	copy(kept, rest[drop:])
	out := make([]provider.Message, 0, len(kept)+1)
	out = append(out, sys)
	out = append(out, kept...)
	return out
}

// truncateResult keeps a head and tail slice of s with a marker in
// between, when s exceeds max characters.
func truncateResult(s string, max int) string {
	if len(s) <= max {
		return s
	}
	headLen := max / 2
	tailLen := max - headLen
	truncated := len(s) - max
	marker := fmt.Sprintf("\n[... truncated %d characters ...]\n", truncated)
	return s[:headLen] + marker + s[len(s)-tailLen:]
}

// trimToBudget drops the oldest messages until the estimated token count
// of the remainder fits the configured token budget.
func (l *Loop) trimToBudget(messages []provider.Message) []provider.Message {
	for len(messages) > 0 && estimateProviderTokens(messages) > l.tokenBudget {
		messages = messages[1:]
	}
	return messages
}

func estimateProviderTokens(messages []provider.Message) int {
	chars := 0
	for _, m := range messages {
		chars += len(m.Content)
	}
	return chars / 4
}

func toProviderMessages(msgs []session.Message) []provider.Message {
	out := make([]provider.Message, len(msgs))
	for i, m := range msgs {
		out[i] = toProviderMessage(m)
	}
	return out
}

func toProviderMessage(m session.Message) provider.Message {
	return provider.Message{
		Role:       provider.Role(m.Role),
		Content:    m.Content,
		ToolCalls:  toProviderToolCalls(m.ToolCalls),
		ToolCallID: m.ToolCallID,
	}
}

func toSessionMessage(m provider.Message) session.Message {
	return session.Message{
		Role:       session.Role(m.Role),
		Content:    m.Content,
		ToolCalls:  toSessionToolCalls(m.ToolCalls),
		ToolCallID: m.ToolCallID,
	}
}

func toProviderToolCalls(tcs []session.ToolCall) []provider.ToolCall {
	if len(tcs) == 0 {
		return nil
	}
	out := make([]provider.ToolCall, len(tcs))
	for i, tc := range tcs {
		out[i] = provider.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments}
	}
	return out
}

func toSessionToolCalls(tcs []provider.ToolCall) []session.ToolCall {
	if len(tcs) == 0 {
		return nil
	}
	out := make([]session.ToolCall, len(tcs))
	for i, tc := range tcs {
		out[i] = session.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments}
	}
	return out
}
