package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// TopicCheckouts carries checkout lifecycle events keyed by group id.
const TopicCheckouts = "checkouts.v1"

const (
	CheckoutCreated   = "CheckoutCreated"
	CheckoutCompleted = "CheckoutCompleted"
)

// Envelope is the standard event schema published by the service.
// Keep it small and stable.
type Envelope struct {
	EventType    string          `json:"eventType"`
	EventVersion string          `json:"eventVersion"`
	OccurredAt   time.Time       `json:"occurredAt"`
	AggregateID  string          `json:"aggregateId"` // group id
	Data         json.RawMessage `json:"data"`
}

// Checkout is the payload of checkout events. It names the lead only; the
// recipient's contact details and card data never appear here.
type Checkout struct {
	GroupID     string `json:"groupId"`
	CheckoutID  string `json:"checkoutId"`
	Status      string `json:"status"`
	Merchant    string `json:"merchant"`
	LeadName    string `json:"leadName"`
	LeadEmail   string `json:"leadEmail"`
	ContinueURL string `json:"continueUrl,omitempty"`
}

// NewCheckoutEvent wraps data in an Envelope of the given type.
func NewCheckoutEvent(eventType string, data Checkout) Envelope {
	b, _ := json.Marshal(data)
	return Envelope{EventType: eventType, EventVersion: "v1", AggregateID: data.GroupID, Data: b}
}

// DecodeCheckout parses a checkout event off the wire.
func DecodeCheckout(value []byte) (Envelope, Checkout, error) {
	var evt Envelope
	if err := json.Unmarshal(value, &evt); err != nil {
		return Envelope{}, Checkout{}, fmt.Errorf("decode envelope: %w", err)
	}
	var data Checkout
	if err := json.Unmarshal(evt.Data, &data); err != nil {
		return evt, Checkout{}, fmt.Errorf("decode %s data: %w", evt.EventType, err)
	}
	return evt, data, nil
}

// Publisher publishes events.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, evt Envelope) error
}

// Producer publishes to Kafka.
type Producer struct{ w *kafka.Writer }

// NewProducerWithBrokers builds a producer that partitions by message key.
func NewProducerWithBrokers(brokers []string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{}, // partition by Kafka message key
			WriteTimeout:           5 * time.Second,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *Producer) Close() error { return p.w.Close() }

// Publish writes a single message to Kafka.
// 'key' is the Kafka partition key (use the group id to keep per-group ordering).
func (p *Producer) Publish(ctx context.Context, topic, key string, evt Envelope) error {
	evt.OccurredAt = time.Now().UTC()
	val, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode %s: %w", evt.EventType, err)
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: val,
	})
}

// LogPublisher logs events instead of publishing them. Used when no brokers
// are configured.
type LogPublisher struct{ Logger *log.Logger }

func (l LogPublisher) Publish(_ context.Context, topic, key string, evt Envelope) error {
	if l.Logger != nil {
		l.Logger.Printf("[events] %s key=%s type=%s (kafka disabled)", topic, key, evt.EventType)
	}
	return nil
}
