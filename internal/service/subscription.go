package service

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/efreitasn/matchbook/internal/domain"
	"github.com/efreitasn/matchbook/internal/store"
	"github.com/google/uuid"
)

var subscriberRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// UpsertSubscriptionRequest represents the input for webhook registration.
type UpsertSubscriptionRequest struct {
	Subscriber string
	Market     string
	URL        string
	Events     []string
}

// SubscriptionService handles webhook subscription CRUD. Delivery is done
// by relay.WebhookSink.
type SubscriptionService struct {
	store *store.SubscriptionStore
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(subs *store.SubscriptionStore) *SubscriptionService {
	return &SubscriptionService{store: subs}
}

// Upsert validates the request and creates or updates one subscription
// per event. Returns the resulting subscriptions, whether any new ones
// were created, and any error.
func (s *SubscriptionService) Upsert(req UpsertSubscriptionRequest) ([]*domain.Subscription, bool, error) {
	if !subscriberRegex.MatchString(req.Subscriber) {
		return nil, false, &domain.ValidationError{
			Message: "subscriber must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	if err := ValidateMarket(req.Market); err != nil {
		return nil, false, err
	}

	if req.URL == "" {
		return nil, false, &domain.ValidationError{Message: "url is required"}
	}
	if len(req.URL) > 2048 {
		return nil, false, &domain.ValidationError{Message: "url must be at most 2048 characters"}
	}
	parsed, err := url.ParseRequestURI(req.URL)
	if err != nil || !parsed.IsAbs() {
		return nil, false, &domain.ValidationError{Message: "url must be a valid absolute URL"}
	}
	if parsed.Scheme != "https" {
		return nil, false, &domain.ValidationError{Message: "url must use https scheme"}
	}

	if len(req.Events) == 0 {
		return nil, false, &domain.ValidationError{Message: "events must be a non-empty array"}
	}

	// Deduplicate events while preserving order and validating.
	seen := make(map[domain.EventType]bool, len(req.Events))
	events := make([]domain.EventType, 0, len(req.Events))
	for _, e := range req.Events {
		event := domain.EventType(e)
		if !domain.ValidEventType(event) {
			return nil, false, &domain.ValidationError{
				Message: "Unknown event type: " + e + ". Must be one of: " + eventTypeList(),
			}
		}
		if !seen[event] {
			seen[event] = true
			events = append(events, event)
		}
	}

	now := time.Now().UTC().Truncate(time.Second)
	anyCreated := false
	subs := make([]*domain.Subscription, 0, len(events))
	for _, event := range events {
		stored, created := s.store.Upsert(&domain.Subscription{
			ID:         uuid.New().String(),
			Subscriber: req.Subscriber,
			Market:     req.Market,
			Event:      event,
			URL:        req.URL,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		anyCreated = anyCreated || created
		subs = append(subs, stored)
	}
	return subs, anyCreated, nil
}

// List returns every subscription held by subscriber.
func (s *SubscriptionService) List(subscriber string) ([]*domain.Subscription, error) {
	if !subscriberRegex.MatchString(subscriber) {
		return nil, &domain.ValidationError{
			Message: "subscriber must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	return s.store.ListBySubscriber(subscriber), nil
}

// Delete removes a subscription by ID.
func (s *SubscriptionService) Delete(id string) error {
	return s.store.Delete(id)
}

func eventTypeList() string {
	names := make([]string, len(domain.EventTypes))
	for i, t := range domain.EventTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
