package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sheikh-saqib/store-credit-ledger/internal/models/events"
	"github.com/shopspring/decimal"
)

func TestNewMessageKeysByClient(t *testing.T) {
	amount := decimal.NewFromInt(400)
	event := events.LedgerEvent{
		ID:         "evt-1",
		Type:       events.PaymentApplied,
		ClientID:   42,
		CreditID:   7,
		Amount:     &amount,
		Balance:    decimal.NewFromInt(600),
		OccurredAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	msg, err := newMessage(event)
	if err != nil {
		t.Fatalf("newMessage: %v", err)
	}
	if string(msg.Key) != "42" {
		t.Fatalf("expected key 42 got %q", msg.Key)
	}
	if !msg.Time.Equal(event.OccurredAt) {
		t.Fatalf("expected time %v got %v", event.OccurredAt, msg.Time)
	}

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["event_type"] != "payment_applied" || headers["event_id"] != "evt-1" {
		t.Fatalf("unexpected headers %v", headers)
	}

	var decoded events.LedgerEvent
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode value: %v", err)
	}
	if decoded.CreditID != 7 || !decoded.Balance.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("unexpected payload %+v", decoded)
	}
	if decoded.Reste != nil {
		t.Fatalf("expected reste omitted, got %v", decoded.Reste)
	}
}

func TestNewPublisherDefaultsTopic(t *testing.T) {
	p := NewPublisher([]string{"localhost:9092"}, "")
	defer p.Close()
	if p.writer.Topic != DefaultTopic {
		t.Fatalf("expected topic %s got %s", DefaultTopic, p.writer.Topic)
	}
}

func TestNewPublisherBoundsWrites(t *testing.T) {
	p := NewPublisher([]string{"localhost:9092"}, "ledger")
	defer p.Close()
	if p.writer.WriteTimeout <= 0 || p.writer.WriteTimeout > 5*time.Second {
		t.Fatalf("expected a short write timeout, got %s", p.writer.WriteTimeout)
	}
	if p.writer.MaxAttempts <= 0 || p.writer.MaxAttempts > 3 {
		t.Fatalf("expected few attempts, got %d", p.writer.MaxAttempts)
	}
}
