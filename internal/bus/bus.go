package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ContextMode selects how much of the system prompt the loop assembles.
type ContextMode string

const (
	ContextFull    ContextMode = "full"
	ContextMinimal ContextMode = "minimal"
)

// ScopeKind identifies the tenancy dimension of a memory query or an
// inbound message's originating scope.
type ScopeKind string

const (
	ScopeUser   ScopeKind = "user"
	ScopeFamily ScopeKind = "family"
)

// Scope narrows a memory search or a message to a tenant.
type Scope struct {
	Kind ScopeKind
	ID   string
}

// UserBinding identifies the channel-native user that produced a message.
type UserBinding struct {
	UserID            string
	DisplayName       string
	ChannelUserID     string
	ChannelUsername   string
}

// InboundMessage is a message from a channel adapter (or the scheduler) to
// the agent loop. It is immutable once constructed.
type InboundMessage struct {
	ID          string
	Channel     string
	ChatID      string
	Content     string
	Author      string
	Timestamp   time.Time
	ContextMode ContextMode // "" means the loop picks its configured default
	User        *UserBinding
	Scope       *Scope
}

// OutboundKind distinguishes a complete reply from a streaming chunk.
type OutboundKind string

const (
	KindMessage   OutboundKind = "message"
	KindChunk     OutboundKind = "chunk"
	KindStreamEnd OutboundKind = "stream_end"
)

// OutboundMessage is a message from the agent loop to a channel adapter.
type OutboundMessage struct {
	ChatID    string
	Channel   string
	Content   string
	Type      OutboundKind
	Timestamp time.Time
}

// Handler consumes outbound messages for one channel.
type Handler func(ctx context.Context, msg *OutboundMessage)

// MessageBus holds one inbound and one outbound bounded channel, a
// name-to-handler table, and a dispatcher loop. Delivery on the outbound
// side is best-effort: a missing handler is logged and dropped, a handler
// panic/error is logged and does not stop the dispatcher.
type MessageBus struct {
	inbound  *BoundedChannel[*InboundMessage]
	outbound *BoundedChannel[*OutboundMessage]

	mu       sync.RWMutex
	handlers map[string]Handler
}

// DefaultCapacity is the default bound for both queues.
const DefaultCapacity = 100

// NewMessageBus creates a bus with the default queue capacity.
func NewMessageBus() *MessageBus {
	return NewMessageBusWithCapacity(DefaultCapacity)
}

// NewMessageBusWithCapacity creates a bus with an explicit queue capacity.
func NewMessageBusWithCapacity(capacity int) *MessageBus {
	return &MessageBus{
		inbound:  NewBoundedChannel[*InboundMessage](capacity),
		outbound: NewBoundedChannel[*OutboundMessage](capacity),
		handlers: make(map[string]Handler),
	}
}

// PublishInbound sends a message from a channel adapter to the loop.
func (b *MessageBus) PublishInbound(ctx context.Context, msg *InboundMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	return b.inbound.Publish(ctx, msg)
}

// ConsumeInbound blocks until a message is available or ctx is done.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (*InboundMessage, error) {
	return b.inbound.Consume(ctx)
}

// PublishOutbound sends a message from the loop toward channel adapters.
func (b *MessageBus) PublishOutbound(ctx context.Context, msg *OutboundMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	return b.outbound.Publish(ctx, msg)
}

// ConsumeOutbound blocks until an outbound message is available or ctx is
// done. Exposed mainly for tests; DispatchOutbound is the production path.
func (b *MessageBus) ConsumeOutbound(ctx context.Context) (*OutboundMessage, error) {
	return b.outbound.Consume(ctx)
}

// RegisterHandler registers a callback invoked by the dispatcher for
// outbound messages addressed to the given channel name.
func (b *MessageBus) RegisterHandler(channel string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channel] = h
}

// StreamTo bypasses the outbound queue entirely and invokes the channel's
// registered handler directly. Used for high-frequency stream chunks,
// which would otherwise dominate a shared bounded queue. The bus itself
// does not serialize concurrent StreamTo calls for the same (channel,
// chat-id) pair — the channel adapter is responsible for that ordering.
func (b *MessageBus) StreamTo(ctx context.Context, channel, chatID string, typ OutboundKind, content string) {
	b.mu.RLock()
	h, ok := b.handlers[channel]
	b.mu.RUnlock()
	if !ok {
		slog.Warn("bus: no handler for stream bypass", "channel", channel, "chat_id", chatID)
		return
	}
	h(ctx, &OutboundMessage{
		ChatID:    chatID,
		Channel:   channel,
		Content:   content,
		Type:      typ,
		Timestamp: time.Now(),
	})
}

// DispatchOutbound runs the outbound dispatcher loop until ctx is done.
// Meant to run as its own goroutine.
func (b *MessageBus) DispatchOutbound(ctx context.Context) error {
	for {
		msg, err := b.outbound.Consume(ctx)
		if err != nil {
			return err
		}
		b.mu.RLock()
		h, ok := b.handlers[msg.Channel]
		b.mu.RUnlock()
		if !ok {
			slog.Warn("bus: no handler registered, dropping outbound message", "channel", msg.Channel, "chat_id", msg.ChatID)
			continue
		}
		b.dispatchOne(ctx, h, msg)
	}
}

func (b *MessageBus) dispatchOne(ctx context.Context, h Handler, msg *OutboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("bus: outbound handler panicked", "channel", msg.Channel, "chat_id", msg.ChatID, "panic", r)
		}
	}()
	h(ctx, msg)
}

// InboundDepth returns the number of pending inbound messages.
func (b *MessageBus) InboundDepth() int { return b.inbound.Depth() }

// OutboundDepth returns the number of pending outbound messages.
func (b *MessageBus) OutboundDepth() int { return b.outbound.Depth() }
