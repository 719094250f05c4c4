package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/efreitasn/matchbook/internal/domain"
)

var (
	// ErrQueueFull is returned when a market's command queue is at capacity.
	ErrQueueFull = errors.New("queue_full")
	// ErrClosed is returned for commands sent after Close.
	ErrClosed = errors.New("market_closed")
)

// Recorder observes sequencer activity. metrics.Metrics implements it.
type Recorder interface {
	ObserveCommand(market, op string, elapsed time.Duration, err error)
	ObserveDepth(market string, bidLevels, askLevels int)
	QueueRejected(market, op string)
	Halted(market string)
}

// EventHandler receives the events of each applied command, in command
// order, on the sequencer goroutine. It must not block.
type EventHandler func(events []domain.Event)

type reply struct {
	val any
	err error
}

type command struct {
	op    string
	run   func(b *OrderBook) (any, []domain.Event, error)
	reply chan reply
}

// Sequencer owns one OrderBook and applies commands to it one at a time
// from a bounded queue. Reads go through the same queue, so they observe
// the book only between commands.
type Sequencer struct {
	book     *OrderBook
	cmds     chan command
	done     chan struct{}
	logger   *slog.Logger
	recorder Recorder
	onEvents EventHandler

	mu     sync.RWMutex
	closed bool
}

// NewSequencer starts the goroutine that serves book. recorder and
// onEvents may be nil.
func NewSequencer(book *OrderBook, queueSize int, logger *slog.Logger, recorder Recorder, onEvents EventHandler) *Sequencer {
	if queueSize < 1 {
		queueSize = 1
	}
	s := &Sequencer{
		book:     book,
		cmds:     make(chan command, queueSize),
		done:     make(chan struct{}),
		logger:   logger.With(slog.String("market", book.Market())),
		recorder: recorder,
		onEvents: onEvents,
	}
	go s.loop()
	return s
}

// Market returns the market served by this sequencer.
func (s *Sequencer) Market() string {
	return s.book.Market()
}

func (s *Sequencer) loop() {
	defer close(s.done)
	for cmd := range s.cmds {
		wasHalted := s.book.Halted() != nil
		start := time.Now()
		val, events, err := cmd.run(s.book)
		elapsed := time.Since(start)

		if len(events) > 0 && s.onEvents != nil {
			s.onEvents(events)
		}
		if !wasHalted && s.book.Halted() != nil {
			s.logger.Error("market halted",
				slog.String("op", cmd.op),
				slog.String("error", s.book.Halted().Error()),
			)
			if s.recorder != nil {
				s.recorder.Halted(s.book.Market())
			}
		}
		if s.recorder != nil {
			s.recorder.ObserveCommand(s.book.Market(), cmd.op, elapsed, err)
			s.recorder.ObserveDepth(s.book.Market(), s.book.Bids().LevelCount(), s.book.Asks().LevelCount())
		}
		cmd.reply <- reply{val: val, err: err}
	}
}

// do enqueues fn without blocking and waits for its reply. A command that
// was admitted always runs to completion, even if ctx ends first.
func (s *Sequencer) do(ctx context.Context, op string, fn func(b *OrderBook) (any, []domain.Event, error)) (any, error) {
	cmd := command{op: op, run: fn, reply: make(chan reply, 1)}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrClosed
	}
	select {
	case s.cmds <- cmd:
	default:
		s.mu.RUnlock()
		if s.recorder != nil {
			s.recorder.QueueRejected(s.book.Market(), op)
		}
		return nil, ErrQueueFull
	}
	s.mu.RUnlock()

	select {
	case r := <-cmd.reply:
		return r.val, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Submit enqueues OrderBook.Submit.
func (s *Sequencer) Submit(ctx context.Context, o *domain.Order) (*SubmitResult, error) {
	order := o.Clone()
	v, err := s.do(ctx, "submit", func(b *OrderBook) (any, []domain.Event, error) {
		res, err := b.Submit(order)
		if res == nil {
			return nil, nil, err
		}
		return res, res.Events, err
	})
	res, _ := v.(*SubmitResult)
	return res, err
}

// Cancel enqueues OrderBook.Cancel.
func (s *Sequencer) Cancel(ctx context.Context, id uint64) (*CancelResult, error) {
	v, err := s.do(ctx, "cancel", func(b *OrderBook) (any, []domain.Event, error) {
		res, err := b.Cancel(id)
		if res == nil {
			return nil, nil, err
		}
		return res, res.Events, err
	})
	res, _ := v.(*CancelResult)
	return res, err
}

// Replace enqueues OrderBook.Replace.
func (s *Sequencer) Replace(ctx context.Context, id uint64, quantityDelta, newPrice int64) (*ReplaceResult, error) {
	v, err := s.do(ctx, "replace", func(b *OrderBook) (any, []domain.Event, error) {
		res, err := b.Replace(id, quantityDelta, newPrice)
		if res == nil {
			return nil, nil, err
		}
		return res, res.Events(), err
	})
	res, _ := v.(*ReplaceResult)
	return res, err
}

// SetMarketPrice enqueues OrderBook.SetMarketPrice. Stop activations it
// causes complete before any later command runs.
func (s *Sequencer) SetMarketPrice(ctx context.Context, price int64) (*MarketPriceResult, error) {
	v, err := s.do(ctx, "set_market_price", func(b *OrderBook) (any, []domain.Event, error) {
		res, err := b.SetMarketPrice(price)
		if res == nil {
			return nil, nil, err
		}
		return res, res.Events, err
	})
	res, _ := v.(*MarketPriceResult)
	return res, err
}

// Depth enqueues a depth read.
func (s *Sequencer) Depth(ctx context.Context, levels int) (DepthSnapshot, error) {
	v, err := s.do(ctx, "depth", func(b *OrderBook) (any, []domain.Event, error) {
		return b.Depth(levels), nil, nil
	})
	snap, _ := v.(DepthSnapshot)
	return snap, err
}

// Snapshot enqueues a full book read.
func (s *Sequencer) Snapshot(ctx context.Context) (FullSnapshot, error) {
	v, err := s.do(ctx, "snapshot", func(b *OrderBook) (any, []domain.Event, error) {
		return b.Snapshot(), nil, nil
	})
	snap, _ := v.(FullSnapshot)
	return snap, err
}

// Quote enqueues a market order simulation.
func (s *Sequencer) Quote(ctx context.Context, side domain.OrderSide, quantity int64) (QuoteResult, error) {
	v, err := s.do(ctx, "quote", func(b *OrderBook) (any, []domain.Event, error) {
		return b.Quote(side, quantity), nil, nil
	})
	q, _ := v.(QuoteResult)
	return q, err
}

// Order enqueues a lookup of a resting or dormant order.
func (s *Sequencer) Order(ctx context.Context, id uint64) (*domain.Order, error) {
	v, err := s.do(ctx, "order", func(b *OrderBook) (any, []domain.Event, error) {
		o, err := b.Order(id)
		return o, nil, err
	})
	o, _ := v.(*domain.Order)
	return o, err
}

// Close stops admitting commands, drains the queue and waits for the
// goroutine to exit.
func (s *Sequencer) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.cmds)
	}
	s.mu.Unlock()
	<-s.done
}
