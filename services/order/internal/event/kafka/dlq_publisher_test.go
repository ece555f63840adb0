package kafka

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDLQPublisher_Publish(t *testing.T) {
	writer := &fakeWriter{}
	p := NewDLQPublisher(zap.NewNop(), writer, "payment.recorded.dlq")
	p.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	src := kafka.Message{Topic: "payment.recorded", Partition: 2, Offset: 41, Key: []byte("5"), Value: []byte(`{"payment_id":5}`)}
	err := p.Publish(context.Background(), src, PaymentRecordedEvent{PaymentID: 5, OrderID: 9}, errors.New("db unavailable"))
	require.NoError(t, err)

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	require.Equal(t, "payment.recorded.dlq", msg.Topic)
	require.Equal(t, "9", string(msg.Key))

	var dl DeadLetter
	require.NoError(t, json.Unmarshal(msg.Value, &dl))
	require.Equal(t, "payment.recorded", dl.OriginalTopic)
	require.Equal(t, 2, dl.OriginalPartition)
	require.Equal(t, int64(41), dl.OriginalOffset)
	require.Equal(t, "db unavailable", dl.Error)
	require.Equal(t, "2026-03-01T12:00:00Z", dl.FailedAt)

	raw, err := base64.StdEncoding.DecodeString(dl.OriginalValue)
	require.NoError(t, err)
	require.Equal(t, src.Value, raw)
}

func TestDLQPublisher_PoisonPillKeepsOriginalKey(t *testing.T) {
	writer := &fakeWriter{}
	p := NewDLQPublisher(zap.NewNop(), writer, "payment.recorded.dlq")

	err := p.Publish(context.Background(), kafka.Message{Key: []byte("raw-key"), Value: []byte("not json")}, PaymentRecordedEvent{}, nil)
	require.NoError(t, err)
	require.Equal(t, "raw-key", string(writer.messages[0].Key))

	var dl DeadLetter
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &dl))
	require.Equal(t, "unknown error", dl.Error)
	require.Zero(t, dl.PaymentID)
}

func TestPaymentRecordedConsumer_DeadLetters(t *testing.T) {
	ctx := context.Background()

	t.Run("poison pill parked", func(t *testing.T) {
		writer := &fakeWriter{}
		c := NewPaymentRecordedConsumer(zap.NewNop(), &fakeReader{}, &fakeLinker{},
			NewDLQPublisher(zap.NewNop(), writer, "dlq"), 2, time.Millisecond)

		require.True(t, c.processMessage(ctx, kafka.Message{Value: []byte("{")}))
		require.Len(t, writer.messages, 1)
	})

	t.Run("exhausted retries committed after DLQ", func(t *testing.T) {
		writer := &fakeWriter{}
		linker := &fakeLinker{failures: 5}
		c := NewPaymentRecordedConsumer(zap.NewNop(), &fakeReader{}, linker,
			NewDLQPublisher(zap.NewNop(), writer, "dlq"), 2, time.Millisecond)

		commit := c.processMessage(ctx, kafka.Message{Value: []byte(`{"payment_id":8,"order_id":3,"idempotency_key":"order-3-payment-1"}`)})
		require.True(t, commit)
		require.Len(t, linker.calls, 2)
		require.Equal(t, "3", string(writer.messages[0].Key))
	})

	t.Run("not committed when DLQ is down", func(t *testing.T) {
		writer := &fakeWriter{failures: 1}
		linker := &fakeLinker{failures: 5}
		c := NewPaymentRecordedConsumer(zap.NewNop(), &fakeReader{}, linker,
			NewDLQPublisher(zap.NewNop(), writer, "dlq"), 1, time.Millisecond)

		commit := c.processMessage(ctx, kafka.Message{Value: []byte(`{"payment_id":8,"idempotency_key":"order-3-payment-1"}`)})
		require.False(t, commit)
		require.Empty(t, writer.messages)
	})
}
