package relay

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/efreitasn/matchbook/internal/domain"
	"github.com/efreitasn/matchbook/internal/store"
	"github.com/google/uuid"
)

// WebhookSink POSTs each event to the URLs subscribed to its market and
// type. Deliveries are fire-and-forget: Publish returns once they are
// started, and failures are logged and counted per delivery.
type WebhookSink struct {
	subs     *store.SubscriptionStore
	client   *http.Client
	enc      Encoder
	logger   *slog.Logger
	recorder Recorder
	wg       sync.WaitGroup
}

// NewWebhookSink creates a WebhookSink whose deliveries time out after
// timeout. recorder may be nil.
func NewWebhookSink(subs *store.SubscriptionStore, timeout time.Duration, enc Encoder, logger *slog.Logger, recorder Recorder) *WebhookSink {
	return &WebhookSink{
		subs:     subs,
		client:   &http.Client{Timeout: timeout},
		enc:      enc,
		logger:   logger,
		recorder: recorder,
	}
}

func (s *WebhookSink) Name() string { return "webhook" }

// Publish starts a delivery for every (event, subscription) pair.
func (s *WebhookSink) Publish(_ context.Context, events []domain.Event) error {
	for _, ev := range events {
		subs := s.subs.ForEvent(ev.Market, ev.Type)
		if len(subs) == 0 {
			continue
		}
		body, err := s.enc.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encoding event %d: %w", ev.Sequence, err)
		}
		for _, sub := range subs {
			s.wg.Add(1)
			go func(sub *domain.Subscription) {
				defer s.wg.Done()
				if err := s.deliver(sub, ev.Type, body); err != nil {
					s.logger.Warn("webhook delivery failed",
						slog.String("subscription_id", sub.ID),
						slog.String("event", string(ev.Type)),
						slog.String("error", err.Error()),
					)
					if s.recorder != nil {
						s.recorder.SinkFailed(s.Name())
					}
				}
			}(sub)
		}
	}
	return nil
}

// deliver sends one payload via HTTP POST with the delivery headers.
func (s *WebhookSink) deliver(sub *domain.Subscription, event domain.EventType, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", uuid.New().String())
	req.Header.Set("X-Subscription-Id", sub.ID)
	req.Header.Set("X-Event-Type", string(event))

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Wait blocks until every started delivery has finished.
func (s *WebhookSink) Wait() {
	s.wg.Wait()
}
