package events

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestPublishFanOut(t *testing.T) {
	bus, err := NewBus()
	if err != nil {
		t.Fatalf("NewBus: %v", err)
	}
	defer bus.Close()

	var pushCount, mergeCount atomic.Int32
	done := make(chan struct{}, 3)

	bus.Subscribe(TopicPushReviewed, func(ctx context.Context, payload any) {
		pushCount.Add(1)
		done <- struct{}{}
	})
	bus.Subscribe(TopicPushReviewed, func(ctx context.Context, payload any) {
		pushCount.Add(1)
		done <- struct{}{}
	})
	bus.Subscribe(TopicMergeReviewed, func(ctx context.Context, payload any) {
		mergeCount.Add(1)
		done <- struct{}{}
	})

	bus.Publish(context.Background(), TopicPushReviewed, "payload")

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for delivery")
		}
	}

	if got := pushCount.Load(); got != 2 {
		t.Errorf("expected 2 push deliveries, got %d", got)
	}
	if got := mergeCount.Load(); got != 0 {
		t.Errorf("merge subscriber must not receive push events, got %d", got)
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	bus, err := NewBus()
	if err != nil {
		t.Fatalf("NewBus: %v", err)
	}
	defer bus.Close()

	bus.Publish(context.Background(), TopicMergeReviewed, "payload")
}

func TestPayloadDelivered(t *testing.T) {
	bus, err := NewBus()
	if err != nil {
		t.Fatalf("NewBus: %v", err)
	}
	defer bus.Close()

	got := make(chan any, 1)
	bus.Subscribe(TopicMergeReviewed, func(ctx context.Context, payload any) {
		got <- payload
	})

	type outcome struct{ Score int }
	bus.Publish(context.Background(), TopicMergeReviewed, outcome{Score: 88})

	select {
	case p := <-got:
		if o, ok := p.(outcome); !ok || o.Score != 88 {
			t.Errorf("unexpected payload: %#v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for payload")
	}
}
