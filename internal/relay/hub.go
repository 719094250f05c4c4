package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/efreitasn/matchbook/internal/domain"
)

// Listener receives values broadcast on a Hub.
type Listener[T any] struct {
	ch chan T
}

// C returns the receive channel. It is closed by Unsubscribe.
func (l *Listener[T]) C() <-chan T {
	return l.ch
}

// Hub broadcasts values to every listener. A listener whose buffer is
// full misses the value instead of slowing down the broadcaster.
type Hub[T any] struct {
	mu   sync.RWMutex
	subs map[*Listener[T]]struct{}
}

// NewHub creates an empty Hub.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[*Listener[T]]struct{})}
}

// Subscribe registers a listener with the given buffer.
func (h *Hub[T]) Subscribe(buffer int) *Listener[T] {
	l := &Listener[T]{ch: make(chan T, buffer)}
	h.mu.Lock()
	h.subs[l] = struct{}{}
	h.mu.Unlock()
	return l
}

// Unsubscribe removes l and closes its channel.
func (h *Hub[T]) Unsubscribe(l *Listener[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[l]; !ok {
		return
	}
	delete(h.subs, l)
	close(l.ch)
}

// Broadcast offers value to every listener without blocking.
func (h *Hub[T]) Broadcast(value T) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for l := range h.subs {
		select {
		case l.ch <- value:
		default:
		}
	}
}

// Close unsubscribes every listener.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for l := range h.subs {
		delete(h.subs, l)
		close(l.ch)
	}
}

// Len returns the number of listeners.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Feed keeps one Hub of encoded events per market for websocket clients.
type Feed struct {
	mu   sync.Mutex
	hubs map[string]*Hub[[]byte]
}

// NewFeed creates an empty Feed.
func NewFeed() *Feed {
	return &Feed{hubs: make(map[string]*Hub[[]byte])}
}

// Market returns the hub for market, creating it on first use.
func (f *Feed) Market(market string) *Hub[[]byte] {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hubs[market]
	if !ok {
		h = NewHub[[]byte]()
		f.hubs[market] = h
	}
	return h
}

// Close disconnects every listener of every market.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.hubs {
		h.Close()
	}
}

// HubSink broadcasts encoded events to the market's websocket listeners.
type HubSink struct {
	feed *Feed
	enc  Encoder
}

// NewHubSink creates a HubSink over feed.
func NewHubSink(feed *Feed, enc Encoder) *HubSink {
	return &HubSink{feed: feed, enc: enc}
}

func (s *HubSink) Name() string { return "websocket" }

// Publish broadcasts each event. It never blocks on slow listeners.
func (s *HubSink) Publish(_ context.Context, events []domain.Event) error {
	for _, ev := range events {
		hub := s.feed.Market(ev.Market)
		if hub.Len() == 0 {
			continue
		}
		data, err := s.enc.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encoding event %d: %w", ev.Sequence, err)
		}
		hub.Broadcast(data)
	}
	return nil
}
