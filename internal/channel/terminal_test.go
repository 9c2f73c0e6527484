package channel

import (
	"bufio"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/wtokarzewski/janus-agent/internal/bus"
)

func TestTerminalRunPublishesInboundAndWaitsForReply(t *testing.T) {
	b := bus.NewMessageBus()
	term := &Terminal{
		bus:            b,
		chatID:         "default",
		reader:         bufio.NewReader(strings.NewReader("hello there\nexit\n")),
		confirmTimeout: time.Second,
		replies:        make(chan *bus.OutboundMessage, 4),
	}
	b.RegisterHandler(terminalChannelName, term.handleOutbound)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- term.Run(ctx) }()

	msg, err := b.ConsumeInbound(ctx)
	if err != nil {
		t.Fatalf("ConsumeInbound() error: %v", err)
	}
	if msg.Content != "hello there" {
		t.Errorf("Content = %q, want %q", msg.Content, "hello there")
	}
	if msg.Channel != terminalChannelName || msg.ChatID != "default" {
		t.Errorf("unexpected channel/chatID: %q/%q", msg.Channel, msg.ChatID)
	}

	if err := b.PublishOutbound(ctx, &bus.OutboundMessage{
		Channel: terminalChannelName, ChatID: "default", Content: "hi back", Type: bus.KindMessage,
	}); err != nil {
		t.Fatalf("PublishOutbound() error: %v", err)
	}
	go b.DispatchOutbound(ctx)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not exit after reading 'exit'")
	}
}

func TestTerminalConfirmDeniesOnEOFOrTimeout(t *testing.T) {
	term := &Terminal{
		reader:         bufio.NewReader(strings.NewReader("")), // EOF immediately
		confirmTimeout: 20 * time.Millisecond,
	}
	if term.Confirm(context.Background(), "exec", map[string]any{"command": "rm -rf /"}) {
		t.Error("expected Confirm to deny on EOF/timeout")
	}
}

func TestTerminalConfirmApprovesOnYes(t *testing.T) {
	term := &Terminal{
		reader:         bufio.NewReader(strings.NewReader("y\n")),
		confirmTimeout: time.Second,
	}
	if !term.Confirm(context.Background(), "exec", map[string]any{"command": "echo hi"}) {
		t.Error("expected Confirm to approve on 'y'")
	}
}

func TestTerminalConfirmDeniesOnNo(t *testing.T) {
	term := &Terminal{
		reader:         bufio.NewReader(strings.NewReader("n\n")),
		confirmTimeout: time.Second,
	}
	if term.Confirm(context.Background(), "exec", map[string]any{"command": "echo hi"}) {
		t.Error("expected Confirm to deny on 'n'")
	}
}
