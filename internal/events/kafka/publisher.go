package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sheikh-saqib/store-credit-ledger/internal/interfaces"
	"github.com/sheikh-saqib/store-credit-ledger/internal/models/events"
)

// DefaultTopic receives every ledger event unless configured otherwise
const DefaultTopic = "credit_ledger_events"

// Publisher writes ledger events to a Kafka topic, keyed by client so that the
// events of one client stay ordered within a partition.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 2 * time.Second,
			MaxAttempts:  3,
		},
	}
}

func (p *Publisher) Publish(ctx context.Context, event events.LedgerEvent) error {
	msg, err := newMessage(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func newMessage(event events.LedgerEvent) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(event.ClientID, 10)),
		Value: data,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}, nil
}

var _ interfaces.EventPublisher = (*Publisher)(nil)
