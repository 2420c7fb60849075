package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockCluster(t *testing.T, topic string) *kafka.MockCluster {
	t.Helper()
	mc, err := kafka.NewMockCluster(1)
	require.NoError(t, err)
	t.Cleanup(mc.Close)
	require.NoError(t, mc.CreateTopic(topic, 1, 1))
	return mc
}

func TestKafkaPublisher_PublishPaymentApproved(t *testing.T) {
	topic := "billing.payments"
	mc := newMockCluster(t, topic)

	pub, err := NewKafkaPublisher(mc.BootstrapServers(), topic, 5*time.Second)
	require.NoError(t, err)
	defer pub.Close()

	approvedAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	evt := PaymentApproved{
		UserID:        "user-1",
		ReferenceID:   "ref-1",
		TransactionID: "tx-1",
		Provider:      "mercadopago",
		Amount:        35,
		Currency:      "BRL",
		PaymentMethod: "PIX",
		Plan:          "monthly",
		ApprovedAt:    approvedAt,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, pub.PublishPaymentApproved(ctx, evt))

	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": mc.BootstrapServers(),
		"group.id":          "billing-backend-test",
		"auto.offset.reset": "earliest",
	})
	require.NoError(t, err)
	defer consumer.Close()
	require.NoError(t, consumer.Assign([]kafka.TopicPartition{
		{Topic: &topic, Partition: 0, Offset: kafka.OffsetBeginning},
	}))

	msg, err := consumer.ReadMessage(10 * time.Second)
	require.NoError(t, err)

	assert.Equal(t, "user-1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event", msg.Headers[0].Key)
	assert.Equal(t, "payment.approved", string(msg.Headers[0].Value))

	var got PaymentApproved
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "ref-1", got.ReferenceID)
	assert.Equal(t, "tx-1", got.TransactionID)
	assert.Equal(t, "mercadopago", got.Provider)
	assert.Equal(t, 35.0, got.Amount)
	assert.Equal(t, "PIX", got.PaymentMethod)
	assert.True(t, approvedAt.Equal(got.ApprovedAt))
}

func TestKafkaPublisher_CancelledContext(t *testing.T) {
	topic := "billing.payments"
	mc := newMockCluster(t, topic)

	pub, err := NewKafkaPublisher(mc.BootstrapServers(), topic, 5*time.Second)
	require.NoError(t, err)
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = pub.PublishPaymentApproved(ctx, PaymentApproved{UserID: "user-1", ReferenceID: "ref-1"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKafkaPublisher_DeliveryTimeout(t *testing.T) {
	pub, err := NewKafkaPublisher("127.0.0.1:1", "billing.payments", 500*time.Millisecond)
	require.NoError(t, err)
	defer pub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	err = pub.PublishPaymentApproved(ctx, PaymentApproved{UserID: "user-1", ReferenceID: "ref-1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.PublishPaymentApproved(context.Background(), PaymentApproved{ReferenceID: "ref-1"}))
	p.Close()
}
