package events

import (
	"context"

	"github.com/maxbolgarin/abstract"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
	"github.com/panjf2000/ants/v2"
)

const defaultPoolSize = 100

// Topic names one domain event stream.
type Topic string

const (
	TopicPushReviewed  Topic = "push_reviewed"
	TopicMergeReviewed Topic = "merge_request_reviewed"
)

// Handler consumes one published event payload.
type Handler func(ctx context.Context, payload any)

// Bus fans published events out to topic subscribers asynchronously.
// Subscribe during wiring, publish from anywhere after that.
type Bus struct {
	subs   *abstract.SafeMap[Topic, []Handler]
	pool   *ants.Pool
	logger logze.Logger
}

// NewBus creates an event bus with its own delivery pool.
func NewBus() (*Bus, error) {
	pool, err := ants.NewPool(defaultPoolSize)
	if err != nil {
		return nil, errm.Wrap(err, "failed to create pool")
	}

	return &Bus{
		subs:   abstract.NewSafeMap[Topic, []Handler](),
		pool:   pool,
		logger: logze.With("module", "events"),
	}, nil
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic Topic, h Handler) {
	b.subs.Set(topic, append(b.subs.Get(topic), h))
}

// Publish delivers the payload to every subscriber of the topic. Each
// handler runs on the pool; delivery order across handlers is not
// guaranteed.
func (b *Bus) Publish(ctx context.Context, topic Topic, payload any) {
	for _, h := range b.subs.Get(topic) {
		h := h
		if err := b.pool.Submit(func() {
			h(ctx, payload)
		}); err != nil {
			b.logger.Err(err, "failed to submit event delivery", "topic", topic)
		}
	}
}

// Close releases the delivery pool.
func (b *Bus) Close() {
	b.pool.Release()
}
