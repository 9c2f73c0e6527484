package channel

import (
	"context"
	"log/slog"
	"time"

	"github.com/wtokarzewski/janus-agent/internal/bus"
)

// Headless is the minimal gateway-mode channel stub: it logs whatever the
// loop routes back to it and denies gated calls once its confirmation
// window elapses without one being answered. Concrete chat-platform
// integration (a real Telegram, Slack, or Discord adapter) is out of
// scope; this satisfies the bus contract well enough to run a gateway
// process end to end without one.
type Headless struct {
	bus            *bus.MessageBus
	channelName    string
	confirmTimeout time.Duration
}

// NewHeadless builds a Headless adapter registered under channelName,
// using confirmTimeout (typically config.GatesConfig.ChatTimeoutMS) as its
// gate confirmation window.
func NewHeadless(b *bus.MessageBus, channelName string, confirmTimeout time.Duration) *Headless {
	h := &Headless{bus: b, channelName: channelName, confirmTimeout: confirmTimeout}
	b.RegisterHandler(channelName, h.handleOutbound)
	return h
}

func (h *Headless) handleOutbound(ctx context.Context, msg *bus.OutboundMessage) {
	switch msg.Type {
	case bus.KindChunk:
		return
	default:
		slog.Info("headless channel reply", "chat_id", msg.ChatID, "type", msg.Type, "content", msg.Content)
	}
}

// Publish hands a message to the loop as if it arrived on this channel.
// A real chat-platform adapter would call this from its own webhook or
// long-poll loop; the gateway command uses it only to keep the process
// alive and demonstrate the wiring end to end.
func (h *Headless) Publish(ctx context.Context, chatID, content string) error {
	return h.bus.PublishInbound(ctx, &bus.InboundMessage{
		Channel: h.channelName,
		ChatID:  chatID,
		Content: content,
	})
}

// Confirm implements tools.Confirmer. With no operator attached to answer
// it, every gated call is denied once the timeout elapses; a concrete
// chat-platform adapter would instead relay the prompt to the user's chat.
func (h *Headless) Confirm(ctx context.Context, toolName string, args map[string]any) bool {
	timeout := h.confirmTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	slog.Warn("headless channel: no operator to confirm gated call, denying after timeout",
		"tool", toolName, "timeout", timeout)
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
	return false
}
