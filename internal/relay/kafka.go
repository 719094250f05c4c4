package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/efreitasn/matchbook/internal/domain"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter returns a synchronous writer that waits for all in-sync
// replicas to acknowledge each batch.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
	}
}

// KafkaSink writes each event as one message keyed by market, so a
// market's events land on one partition in order.
type KafkaSink struct {
	w   MessageWriter
	enc Encoder
}

// NewKafkaSink creates a KafkaSink on top of w.
func NewKafkaSink(w MessageWriter, enc Encoder) *KafkaSink {
	return &KafkaSink{w: w, enc: enc}
}

func (s *KafkaSink) Name() string { return "kafka" }

// Publish writes the whole batch in one call.
func (s *KafkaSink) Publish(ctx context.Context, events []domain.Event) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		value, err := s.enc.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encoding event %d: %w", ev.Sequence, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.Market),
			Value: value,
			Headers: []kafka.Header{
				{Key: "event", Value: []byte(ev.Type)},
			},
			Time: ev.Timestamp,
		})
	}
	if err := s.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("writing %d messages: %w", len(msgs), err)
	}
	return nil
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	return s.w.Close()
}
