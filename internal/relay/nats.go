package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/efreitasn/matchbook/internal/domain"
	"github.com/nats-io/nats.go"
)

// Publisher is the part of *nats.Conn the sink uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// ConnectNATS dials url and keeps reconnecting for the life of the
// process.
func ConnectNATS(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("matchbook"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.Timeout(5*time.Second),
	)
}

// NATSSink publishes each event on <prefix>.<market>.<event type>, for
// example "matchbook.BTCUSD.trade.executed".
type NATSSink struct {
	pub    Publisher
	prefix string
	enc    Encoder
}

// NewNATSSink creates a NATSSink on top of pub.
func NewNATSSink(pub Publisher, prefix string, enc Encoder) *NATSSink {
	return &NATSSink{pub: pub, prefix: prefix, enc: enc}
}

func (s *NATSSink) Name() string { return "nats" }

// Subject returns the subject ev is published on.
func (s *NATSSink) Subject(ev domain.Event) string {
	return s.prefix + "." + ev.Market + "." + string(ev.Type)
}

// Publish sends the batch one message at a time and stops at the first
// failure.
func (s *NATSSink) Publish(ctx context.Context, events []domain.Event) error {
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := s.enc.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encoding event %d: %w", ev.Sequence, err)
		}
		if err := s.pub.Publish(s.Subject(ev), data); err != nil {
			return fmt.Errorf("publishing event %d: %w", ev.Sequence, err)
		}
	}
	return nil
}
