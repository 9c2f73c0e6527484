package bus

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestBoundedChannelFIFO(t *testing.T) {
	ch := NewBoundedChannel[int](10)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := ch.Publish(ctx, i); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	for i := 0; i < 5; i++ {
		got, err := ch.Consume(ctx)
		if err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
		if got != i {
			t.Fatalf("out of order: want %d got %d", i, got)
		}
	}
}

func TestBoundedChannelBackpressure(t *testing.T) {
	ch := NewBoundedChannel[int](2)
	ctx := context.Background()

	if err := ch.Publish(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := ch.Publish(ctx, 2); err != nil {
		t.Fatal(err)
	}

	published := make(chan struct{})
	go func() {
		_ = ch.Publish(ctx, 3)
		close(published)
	}()

	select {
	case <-published:
		t.Fatal("third publish should have blocked at capacity")
	case <-time.After(50 * time.Millisecond):
	}

	if _, err := ch.Consume(ctx); err != nil {
		t.Fatal(err)
	}

	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("publish never unblocked after consume freed a slot")
	}
}

func TestBoundedChannelDirectHandoff(t *testing.T) {
	ch := NewBoundedChannel[int](1)
	ctx := context.Background()

	// Round-trip one value first, so the hand-off below starts from an
	// empty queue.
	if err := ch.Publish(ctx, 100); err != nil {
		t.Fatal(err)
	}
	if _, err := ch.Consume(ctx); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	results := make(chan int, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := ch.Consume(ctx)
		if err != nil {
			t.Error(err)
			return
		}
		results <- v
	}()

	// Give the consumer time to park before publishing.
	deadline := time.Now().Add(time.Second)
	for ch.PendingConsumers() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if ch.PendingConsumers() == 0 {
		t.Fatal("consumer never parked")
	}

	if err := ch.Publish(ctx, 42); err != nil {
		t.Fatal(err)
	}

	select {
	case v := <-results:
		if v != 42 {
			t.Fatalf("want 42 got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("hand-off never delivered")
	}
	wg.Wait()
}

func TestBoundedChannelCancelConsume(t *testing.T) {
	ch := NewBoundedChannel[int](1)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, err := ch.Consume(ctx)
		errc <- err
	}()

	deadline := time.Now().Add(time.Second)
	for ch.PendingConsumers() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-errc:
		if err != ErrCancelled {
			t.Fatalf("want ErrCancelled got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled consume never returned")
	}
}

func TestBoundedChannelCancelPublish(t *testing.T) {
	ch := NewBoundedChannel[int](1)
	ctx := context.Background()
	if err := ch.Publish(ctx, 1); err != nil {
		t.Fatal(err)
	}

	pubCtx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- ch.Publish(pubCtx, 2)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		if err != ErrCancelled {
			t.Fatalf("want ErrCancelled got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled publish never returned")
	}
}

func TestBoundedChannelCancelBeforeCall(t *testing.T) {
	ch := NewBoundedChannel[int](1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := ch.Consume(ctx); err != ErrCancelled {
		t.Fatalf("want ErrCancelled got %v", err)
	}
	if err := ch.Publish(ctx, 1); err != ErrCancelled {
		t.Fatalf("want ErrCancelled got %v", err)
	}
}
