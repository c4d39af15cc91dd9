package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kirinyoku/tix-engine/internal/events"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes domain events to their aggregate topic, keyed by the
// aggregate id.
type Producer struct {
	w      messageWriter
	logger *slog.Logger
}

var _ events.Publisher = (*Producer)(nil)

func NewProducer(brokers []string, logger *slog.Logger) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Producer{w: w, logger: logger}
}

func (p *Producer) Publish(ctx context.Context, evs ...events.Event) error {
	const op = "kafka.Producer.Publish"

	if len(evs) == 0 {
		return nil
	}

	msgs, err := toMessages(evs)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	p.logger.Debug("published events", "count", len(msgs), "first_type", evs[0].Type)

	return nil
}

func (p *Producer) Close() error {
	return p.w.Close()
}

func toMessages(evs []events.Event) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(evs))
	for _, ev := range evs {
		b, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", ev.Type, err)
		}
		msgs = append(msgs, kafka.Message{
			Topic: ev.Type.Topic(),
			Key:   []byte(ev.Key),
			Value: b,
			Time:  ev.OccurredAt,
			Headers: []kafka.Header{
				{Key: "event-type", Value: []byte(ev.Type)},
				{Key: "event-id", Value: []byte(ev.ID.String())},
			},
		})
	}
	return msgs, nil
}
