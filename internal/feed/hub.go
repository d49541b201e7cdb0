package feed

import (
	"context"
	"sync"

	"github.com/codetrek/cloudsync/pkg/model"
)

// Hub fans applied outbox records out to in-process subscribers (the SSE
// stream endpoint). Slow subscribers are skipped rather than blocking the
// apply path; the pull endpoint remains the lossless catch-up channel.
type Hub struct {
	mu   sync.Mutex
	subs map[chan model.OutboxRecord]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[chan model.OutboxRecord]struct{}),
	}
}

// Subscribe registers a subscriber and returns its channel plus a cancel
// function. The channel is closed on cancel.
func (h *Hub) Subscribe(buffer int) (<-chan model.OutboxRecord, func()) {
	ch := make(chan model.OutboxRecord, buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Broadcast delivers rec to every subscriber whose buffer has room.
func (h *Hub) Broadcast(rec model.OutboxRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- rec:
		default:
			// Subscriber is behind; drop. It can catch up via pull.
		}
	}
}

// HubPublisher adapts the Hub to the Publisher interface for deployments
// without NATS: applied records go straight to in-process subscribers.
type HubPublisher struct {
	Hub *Hub
}

func (p HubPublisher) Publish(ctx context.Context, rec *model.OutboxRecord) error {
	p.Hub.Broadcast(*rec)
	return nil
}
