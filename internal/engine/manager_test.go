package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/efreitasn/matchbook/internal/domain"
)

func mustGetOrCreate(t *testing.T, m *Manager, market string) *Sequencer {
	t.Helper()
	s, err := m.GetOrCreate(market)
	if err != nil {
		t.Fatalf("GetOrCreate(%s): %v", market, err)
	}
	return s
}

func TestManager_GetOrCreate(t *testing.T) {
	m := NewManager(8, discardLogger(), nil, nil)
	defer m.Close()

	a := mustGetOrCreate(t, m, "BTCUSD")
	b := mustGetOrCreate(t, m, "BTCUSD")
	if a != b {
		t.Error("expected the same sequencer for the same market")
	}
	if a.Market() != "BTCUSD" {
		t.Errorf("expected market BTCUSD, got %s", a.Market())
	}
	if _, ok := m.Get("ETHUSD"); ok {
		t.Error("expected unknown market to be absent")
	}
}

func TestManager_ConcurrentGetOrCreate(t *testing.T) {
	m := NewManager(8, discardLogger(), nil, nil)
	defer m.Close()

	var wg sync.WaitGroup
	seqs := make([]*Sequencer, 32)
	for i := range seqs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seqs[i], _ = m.GetOrCreate("BTCUSD")
		}(i)
	}
	wg.Wait()
	for i := 1; i < len(seqs); i++ {
		if seqs[i] == nil || seqs[i] != seqs[0] {
			t.Fatal("expected a single sequencer per market")
		}
	}
}

func TestManager_MarketsAreIsolated(t *testing.T) {
	m := NewManager(8, discardLogger(), nil, nil)
	defer m.Close()
	ctx := context.Background()

	if _, err := mustGetOrCreate(t, m, "ETHUSD").Submit(ctx, gtc(domain.OrderSideBuy, 100, 1)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	res, err := mustGetOrCreate(t, m, "BTCUSD").Submit(ctx, gtc(domain.OrderSideSell, 100, 1))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(res.Trades) != 0 {
		t.Error("orders in different markets must not match")
	}

	got := m.Markets()
	if len(got) != 2 || got[0] != "BTCUSD" || got[1] != "ETHUSD" {
		t.Errorf("expected sorted markets [BTCUSD ETHUSD], got %v", got)
	}
}

func TestManager_CloseStopsSequencers(t *testing.T) {
	m := NewManager(8, discardLogger(), nil, nil)
	s := mustGetOrCreate(t, m, "BTCUSD")
	m.Close()

	if _, err := s.Depth(context.Background(), 1); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if len(m.Markets()) != 0 {
		t.Error("expected no markets after Close")
	}
}

func TestManager_NoNewMarketsAfterClose(t *testing.T) {
	m := NewManager(8, discardLogger(), nil, nil)
	m.Close()

	s, err := m.GetOrCreate("BTCUSD")
	if !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if s != nil {
		t.Error("expected no sequencer after Close")
	}
	if len(m.Markets()) != 0 {
		t.Errorf("expected no markets after Close, got %v", m.Markets())
	}
}
