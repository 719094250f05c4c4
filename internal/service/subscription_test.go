package service

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/efreitasn/matchbook/internal/domain"
	"github.com/efreitasn/matchbook/internal/store"
	"pgregory.net/rapid"
)

func TestSubscriptionUpsert_CreatesOnePerEvent(t *testing.T) {
	svc := NewSubscriptionService(store.NewSubscriptionStore())

	subs, created, err := svc.Upsert(UpsertSubscriptionRequest{
		Subscriber: "desk-a",
		Market:     "BTCUSD",
		URL:        "https://example.com/hook",
		Events:     []string{"trade.executed", "order.cancelled", "trade.executed"},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !created {
		t.Error("expected created=true")
	}
	if len(subs) != 2 {
		t.Fatalf("expected duplicates to collapse into 2 subscriptions, got %d", len(subs))
	}
	if subs[0].Event != domain.EventTradeExecuted || subs[1].Event != domain.EventOrderCancelled {
		t.Errorf("expected request order preserved, got %s, %s", subs[0].Event, subs[1].Event)
	}

	listed, err := svc.List("desk-a")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 2 {
		t.Errorf("expected 2 listed subscriptions, got %d", len(listed))
	}
}

func TestSubscriptionUpsert_Validation(t *testing.T) {
	valid := UpsertSubscriptionRequest{
		Subscriber: "desk-a",
		Market:     "BTCUSD",
		URL:        "https://example.com/hook",
		Events:     []string{"trade.executed"},
	}
	tests := []struct {
		name   string
		mutate func(r *UpsertSubscriptionRequest)
		want   string
	}{
		{"bad subscriber", func(r *UpsertSubscriptionRequest) { r.Subscriber = "" }, "subscriber"},
		{"bad market", func(r *UpsertSubscriptionRequest) { r.Market = "btc" }, "market"},
		{"missing url", func(r *UpsertSubscriptionRequest) { r.URL = "" }, "url is required"},
		{"long url", func(r *UpsertSubscriptionRequest) { r.URL = "https://example.com/" + strings.Repeat("a", 2048) }, "2048"},
		{"relative url", func(r *UpsertSubscriptionRequest) { r.URL = "/hook" }, "absolute"},
		{"http url", func(r *UpsertSubscriptionRequest) { r.URL = "http://example.com/hook" }, "https"},
		{"no events", func(r *UpsertSubscriptionRequest) { r.Events = nil }, "non-empty"},
		{"unknown event", func(r *UpsertSubscriptionRequest) { r.Events = []string{"order.expired"} }, "Unknown event type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewSubscriptionService(store.NewSubscriptionStore())
			req := valid
			tt.mutate(&req)
			_, _, err := svc.Upsert(req)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !strings.Contains(verr.Message, tt.want) {
				t.Errorf("expected message to mention %q, got %q", tt.want, verr.Message)
			}
		})
	}
}

func TestSubscriptionDelete(t *testing.T) {
	svc := NewSubscriptionService(store.NewSubscriptionStore())
	subs, _, err := svc.Upsert(UpsertSubscriptionRequest{
		Subscriber: "desk-a",
		Market:     "BTCUSD",
		URL:        "https://example.com/hook",
		Events:     []string{"order.rested"},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := svc.Delete(subs[0].ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(subs[0].ID); !errors.Is(err, domain.ErrSubscriptionNotFound) {
		t.Errorf("expected ErrSubscriptionNotFound, got %v", err)
	}
}

// Re-registering the same (subscriber, market, event) keeps the ID stable;
// changing the URL updates it in place.
func TestProperty_SubscriptionUpsertIdempotency(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		svc := NewSubscriptionService(store.NewSubscriptionStore())

		subscriber := fmt.Sprintf("desk-%d", rapid.IntRange(1, 9999).Draw(t, "subscriber"))
		market := rapid.SampledFrom([]string{"BTCUSD", "ETHUSD", "SOL"}).Draw(t, "market")
		event := rapid.SampledFrom(domain.EventTypes).Draw(t, "event")
		url1 := fmt.Sprintf("https://example.com/hook/%d", rapid.IntRange(1, 99999).Draw(t, "url1"))
		url2 := fmt.Sprintf("https://other.example.com/hook/%d", rapid.IntRange(1, 99999).Draw(t, "url2"))

		req := UpsertSubscriptionRequest{
			Subscriber: subscriber,
			Market:     market,
			URL:        url1,
			Events:     []string{string(event)},
		}
		first, created, err := svc.Upsert(req)
		if err != nil {
			t.Fatalf("initial upsert failed: %v", err)
		}
		if !created {
			t.Fatal("expected created=true for initial registration")
		}
		originalID := first[0].ID

		repeats := rapid.IntRange(1, 5).Draw(t, "repeats")
		for i := 0; i < repeats; i++ {
			again, created, err := svc.Upsert(req)
			if err != nil {
				t.Fatalf("repeat upsert failed: %v", err)
			}
			if created {
				t.Fatal("expected created=false on repeat")
			}
			if again[0].ID != originalID || again[0].URL != url1 {
				t.Fatalf("repeat changed subscription: %+v", again[0])
			}
		}

		req.URL = url2
		updated, created, err := svc.Upsert(req)
		if err != nil {
			t.Fatalf("update upsert failed: %v", err)
		}
		if created || updated[0].ID != originalID || updated[0].URL != url2 {
			t.Fatalf("expected in-place URL update, got created=%v %+v", created, updated[0])
		}

		listed, _ := svc.List(subscriber)
		if len(listed) != 1 {
			t.Fatalf("expected exactly 1 subscription, got %d", len(listed))
		}
	})
}
