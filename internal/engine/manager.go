package engine

import (
	"log/slog"
	"sort"
	"sync"
)

// Manager is a thread-safe map of market → Sequencer. Each market gets its
// own goroutine, so markets are matched in parallel while every single
// market stays single-writer.
type Manager struct {
	mu        sync.RWMutex
	markets   map[string]*Sequencer
	queueSize int
	logger    *slog.Logger
	recorder  Recorder
	onEvents  EventHandler
	opts      []Option
	closed    bool
}

// NewManager creates a Manager whose sequencers use the given queue size,
// recorder and event handler. opts apply to every new OrderBook.
func NewManager(queueSize int, logger *slog.Logger, recorder Recorder, onEvents EventHandler, opts ...Option) *Manager {
	return &Manager{
		markets:   make(map[string]*Sequencer),
		queueSize: queueSize,
		logger:    logger,
		recorder:  recorder,
		onEvents:  onEvents,
		opts:      opts,
	}
}

// GetOrCreate returns the sequencer for market, starting one if it
// doesn't already exist. After Close it returns ErrClosed.
func (m *Manager) GetOrCreate(market string) (*Sequencer, error) {
	m.mu.RLock()
	s, ok := m.markets[market]
	closed := m.closed
	m.mu.RUnlock()
	if ok {
		return s, nil
	}
	if closed {
		return nil, ErrClosed
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Double-check after acquiring write lock.
	if m.closed {
		return nil, ErrClosed
	}
	if s, ok = m.markets[market]; ok {
		return s, nil
	}
	s = NewSequencer(NewOrderBook(market, m.opts...), m.queueSize, m.logger, m.recorder, m.onEvents)
	m.markets[market] = s
	m.logger.Info("market opened", slog.String("market", market))
	return s, nil
}

// Get returns the sequencer for an existing market.
func (m *Manager) Get(market string) (*Sequencer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.markets[market]
	return s, ok
}

// Markets lists open markets in lexical order.
func (m *Manager) Markets() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.markets))
	for name := range m.markets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close shuts down every sequencer after draining its queue.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for name, s := range m.markets {
		s.Close()
		delete(m.markets, name)
	}
}
