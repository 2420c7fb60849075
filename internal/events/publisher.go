package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// PaymentApproved is published once per confirmed payment.
type PaymentApproved struct {
	UserID          string    `json:"user_id"`
	ReferenceID     string    `json:"reference_id"`
	TransactionID   string    `json:"transaction_id"`
	Provider        string    `json:"provider"`
	Amount          float64   `json:"amount"`
	Currency        string    `json:"currency,omitempty"`
	PaymentMethod   string    `json:"payment_method,omitempty"`
	Plan            string    `json:"plan,omitempty"`
	SubscriptionEnd time.Time `json:"subscription_end,omitempty"`
	ApprovedAt      time.Time `json:"approved_at"`
}

type Publisher interface {
	PublishPaymentApproved(ctx context.Context, evt PaymentApproved) error
	Close()
}

// KafkaPublisher writes events to a Kafka topic keyed by user id, so a
// consumer sees a user's payments in order.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
}

// NewKafkaPublisher creates the producer. deliveryTimeout bounds how long
// librdkafka keeps retrying a message before reporting it failed.
func NewKafkaPublisher(bootstrapServers, topic string, deliveryTimeout time.Duration) (*KafkaPublisher, error) {
	cfg := &kafka.ConfigMap{
		"bootstrap.servers":  bootstrapServers,
		"client.id":          "billing-backend",
		"acks":               "all",
		"enable.idempotence": true,
	}
	if deliveryTimeout > 0 {
		if err := cfg.SetKey("message.timeout.ms", int(deliveryTimeout.Milliseconds())); err != nil {
			return nil, fmt.Errorf("failed to set delivery timeout: %w", err)
		}
	}

	producer, err := kafka.NewProducer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	p := &KafkaPublisher{producer: producer, topic: topic}
	go p.logEvents()
	return p, nil
}

// logEvents drains client-level events (errors, stats) so the channel never fills.
// Transient errors such as "all brokers down" repeat while a broker is
// unreachable, so only fatal ones are logged at ERROR.
func (p *KafkaPublisher) logEvents() {
	for ev := range p.producer.Events() {
		switch e := ev.(type) {
		case kafka.Error:
			if e.IsFatal() {
				slog.Error("kafka producer fatal error", "error", e.Error())
			} else {
				slog.Warn("kafka producer error", "error", e.Error(), "code", e.Code().String())
			}
		case *kafka.Message:
			if e.TopicPartition.Error != nil {
				slog.Error("kafka delivery failed", "error", e.TopicPartition.Error.Error())
			}
		}
	}
}

// PublishPaymentApproved waits for the broker acknowledgement, the delivery
// timeout or ctx, whichever comes first.
func (p *KafkaPublisher) PublishPaymentApproved(ctx context.Context, evt PaymentApproved) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	delivery := make(chan kafka.Event, 1)
	err = p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(evt.UserID),
		Value:          value,
		Headers:        []kafka.Header{{Key: "event", Value: []byte("payment.approved")}},
	}, delivery)
	if err != nil {
		return fmt.Errorf("failed to enqueue event: %w", err)
	}

	select {
	case ev := <-delivery:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event: %v", ev)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("event delivery failed: %w", m.TopicPartition.Error)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *KafkaPublisher) Close() {
	if remaining := p.producer.Flush(5000); remaining > 0 {
		slog.Warn("kafka producer closed with undelivered events", "count", remaining)
	}
	p.producer.Close()
}

// NoopPublisher is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishPaymentApproved(ctx context.Context, evt PaymentApproved) error {
	slog.Debug("event publishing disabled", "reference_id", evt.ReferenceID)
	return nil
}

func (NoopPublisher) Close() {}
