// Package relay carries engine events to external collaborators. The
// engine hands each command's events to Relay.Handle on its sequencer
// goroutine; a single relay goroutine then publishes them to every sink in
// the order they were produced. Sink failures are logged and counted and
// never reach the engine.
package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/efreitasn/matchbook/internal/domain"
	"github.com/efreitasn/matchbook/internal/engine"
)

// Sink publishes a batch of events somewhere outside the process.
type Sink interface {
	Name() string
	Publish(ctx context.Context, events []domain.Event) error
}

// Recorder observes relay failures. metrics.Metrics implements it.
type Recorder interface {
	SinkFailed(sink string)
	EventsDropped(n int)
}

// Relay fans event batches out to sinks from one goroutine.
type Relay struct {
	sinks    []Sink
	in       chan []domain.Event
	done     chan struct{}
	timeout  time.Duration
	logger   *slog.Logger
	recorder Recorder

	mu     sync.RWMutex
	closed bool
}

// New starts a relay with a queue of buffer batches. Each sink call gets
// timeout to complete. recorder may be nil.
func New(logger *slog.Logger, recorder Recorder, buffer int, timeout time.Duration, sinks ...Sink) *Relay {
	if buffer < 1 {
		buffer = 1
	}
	r := &Relay{
		sinks:    sinks,
		in:       make(chan []domain.Event, buffer),
		done:     make(chan struct{}),
		timeout:  timeout,
		logger:   logger,
		recorder: recorder,
	}
	go r.run()
	return r
}

// Handle queues events for publication without blocking. When the queue
// is full the batch is dropped and logged. It satisfies engine.EventHandler.
func (r *Relay) Handle(events []domain.Event) {
	if len(events) == 0 {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.in <- events:
	default:
		r.logger.Warn("relay queue full, dropping events",
			slog.String("market", events[0].Market),
			slog.Int("count", len(events)),
			slog.Uint64("first_sequence", events[0].Sequence),
		)
		if r.recorder != nil {
			r.recorder.EventsDropped(len(events))
		}
	}
}

func (r *Relay) run() {
	defer close(r.done)
	for events := range r.in {
		for _, sink := range r.sinks {
			r.publish(sink, events)
		}
	}
}

func (r *Relay) publish(sink Sink, events []domain.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := sink.Publish(ctx, events); err != nil {
		r.logger.Warn("sink publish failed",
			slog.String("sink", sink.Name()),
			slog.String("market", events[0].Market),
			slog.Int("count", len(events)),
			slog.String("error", err.Error()),
		)
		if r.recorder != nil {
			r.recorder.SinkFailed(sink.Name())
		}
	}
}

// Close stops accepting events and waits until every queued batch has
// been published.
func (r *Relay) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.in)
	}
	r.mu.Unlock()
	<-r.done
}

// Chain combines handlers that run synchronously, in order, on the
// sequencer goroutine.
func Chain(handlers ...engine.EventHandler) engine.EventHandler {
	return func(events []domain.Event) {
		for _, h := range handlers {
			h(events)
		}
	}
}
