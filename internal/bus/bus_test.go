package bus

import (
	"context"
	"testing"
	"time"
)

func TestDispatchOutboundMissingHandler(t *testing.T) {
	b := NewMessageBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go b.DispatchOutbound(ctx)

	if err := b.PublishOutbound(ctx, &OutboundMessage{Channel: "nowhere", ChatID: "x", Content: "hi"}); err != nil {
		t.Fatal(err)
	}
	// No handler registered; dispatcher should log and continue without
	// blocking further dispatch. Verify by publishing a second message to
	// a registered handler and confirming delivery.
	got := make(chan *OutboundMessage, 1)
	b.RegisterHandler("cli", func(ctx context.Context, msg *OutboundMessage) { got <- msg })
	if err := b.PublishOutbound(ctx, &OutboundMessage{Channel: "cli", ChatID: "x", Content: "hello"}); err != nil {
		t.Fatal(err)
	}
	select {
	case msg := <-got:
		if msg.Content != "hello" {
			t.Fatalf("unexpected content %q", msg.Content)
		}
	case <-time.After(time.Second):
		t.Fatal("dispatcher stalled after missing handler")
	}
}

func TestDispatchOutboundHandlerPanicContinues(t *testing.T) {
	b := NewMessageBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)

	calls := make(chan string, 2)
	b.RegisterHandler("cli", func(ctx context.Context, msg *OutboundMessage) {
		calls <- msg.Content
		if msg.Content == "boom" {
			panic("kaboom")
		}
	})

	if err := b.PublishOutbound(ctx, &OutboundMessage{Channel: "cli", ChatID: "x", Content: "boom"}); err != nil {
		t.Fatal(err)
	}
	if err := b.PublishOutbound(ctx, &OutboundMessage{Channel: "cli", ChatID: "x", Content: "after"}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(time.Second):
			t.Fatal("dispatcher did not survive handler panic")
		}
	}
}

func TestStreamToBypassesQueue(t *testing.T) {
	b := NewMessageBus()
	got := make(chan *OutboundMessage, 1)
	b.RegisterHandler("cli", func(ctx context.Context, msg *OutboundMessage) { got <- msg })

	b.StreamTo(context.Background(), "cli", "chat1", KindChunk, "partial")

	select {
	case msg := <-got:
		if msg.Type != KindChunk || msg.Content != "partial" {
			t.Fatalf("unexpected message %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("stream bypass never invoked handler")
	}
	if b.OutboundDepth() != 0 {
		t.Fatal("stream bypass should not touch the outbound queue")
	}
}
