package store

import (
	"sync"

	"github.com/efreitasn/matchbook/internal/domain"
)

type topic struct {
	market string
	event  domain.EventType
}

// SubscriptionStore is a thread-safe in-memory store for event
// subscriptions.
// Primary index: subscription ID → subscription.
// Secondary index: subscriber → (market, event) → subscription.
// Delivery index: (market, event) → subscription ID → subscription.
type SubscriptionStore struct {
	mu           sync.RWMutex
	subs         map[string]*domain.Subscription
	bySubscriber map[string]map[topic]*domain.Subscription
	byTopic      map[topic]map[string]*domain.Subscription
}

// NewSubscriptionStore creates an empty SubscriptionStore.
func NewSubscriptionStore() *SubscriptionStore {
	return &SubscriptionStore{
		subs:         make(map[string]*domain.Subscription),
		bySubscriber: make(map[string]map[topic]*domain.Subscription),
		byTopic:      make(map[topic]map[string]*domain.Subscription),
	}
}

// Upsert inserts a subscription keyed by (subscriber, market, event). If one
// already exists for that key its URL and UpdatedAt are refreshed and its ID
// is kept. It returns the stored subscription and whether it was created.
func (s *SubscriptionStore) Upsert(sub *domain.Subscription) (*domain.Subscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := topic{market: sub.Market, event: sub.Event}
	if existing, ok := s.bySubscriber[sub.Subscriber][key]; ok {
		if existing.URL != sub.URL {
			existing.URL = sub.URL
			existing.UpdatedAt = sub.UpdatedAt
		}
		return copySubscription(existing), false
	}

	s.subs[sub.ID] = sub
	if s.bySubscriber[sub.Subscriber] == nil {
		s.bySubscriber[sub.Subscriber] = make(map[topic]*domain.Subscription)
	}
	s.bySubscriber[sub.Subscriber][key] = sub
	if s.byTopic[key] == nil {
		s.byTopic[key] = make(map[string]*domain.Subscription)
	}
	s.byTopic[key][sub.ID] = sub

	return copySubscription(sub), true
}

// Get retrieves a subscription by ID. It returns
// domain.ErrSubscriptionNotFound if the subscription does not exist.
func (s *SubscriptionStore) Get(id string) (*domain.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[id]
	if !ok {
		return nil, domain.ErrSubscriptionNotFound
	}
	return copySubscription(sub), nil
}

// ListBySubscriber returns every subscription held by subscriber.
// Returns an empty slice if there are none.
func (s *SubscriptionStore) ListBySubscriber(subscriber string) []*domain.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	topics := s.bySubscriber[subscriber]
	result := make([]*domain.Subscription, 0, len(topics))
	for _, sub := range topics {
		result = append(result, copySubscription(sub))
	}
	return result
}

// ForEvent returns the subscriptions that should receive event in market.
func (s *SubscriptionStore) ForEvent(market string, event domain.EventType) []*domain.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := s.byTopic[topic{market: market, event: event}]
	if len(subs) == 0 {
		return nil
	}
	result := make([]*domain.Subscription, 0, len(subs))
	for _, sub := range subs {
		result = append(result, copySubscription(sub))
	}
	return result
}

// Delete removes a subscription by ID from every index. It returns
// domain.ErrSubscriptionNotFound if the subscription does not exist.
func (s *SubscriptionStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[id]
	if !ok {
		return domain.ErrSubscriptionNotFound
	}
	delete(s.subs, id)

	key := topic{market: sub.Market, event: sub.Event}
	if topics, ok := s.bySubscriber[sub.Subscriber]; ok {
		delete(topics, key)
		if len(topics) == 0 {
			delete(s.bySubscriber, sub.Subscriber)
		}
	}
	if subs, ok := s.byTopic[key]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(s.byTopic, key)
		}
	}
	return nil
}

func copySubscription(sub *domain.Subscription) *domain.Subscription {
	c := *sub
	return &c
}
