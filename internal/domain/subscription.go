package domain

import "time"

// Subscription asks for events of one type in one market to be POSTed to
// URL. A subscriber holds at most one subscription per (market, event).
type Subscription struct {
	ID         string
	Subscriber string
	Market     string
	Event      EventType
	URL        string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
