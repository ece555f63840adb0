package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReader struct {
	messages  chan kafka.Message
	mu        sync.Mutex
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.messages:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

type linkCall struct {
	key       string
	paymentID int64
}

type fakeLinker struct {
	failures int
	calls    []linkCall
}

func (l *fakeLinker) LinkPayment(_ context.Context, key string, paymentID int64) (bool, error) {
	l.calls = append(l.calls, linkCall{key: key, paymentID: paymentID})
	if l.failures > 0 {
		l.failures--
		return false, errors.New("db unavailable")
	}
	return true, nil
}

func TestPaymentRecordedConsumer_ProcessMessage(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		value      string
		failures   int
		wantCommit bool
		wantCalls  []linkCall
	}{
		{
			name:       "links by idempotency key",
			value:      `{"event_type":"payment.recorded","payment_id":5,"order_id":1,"amount":3000,"status":"pending","idempotency_key":"order-1-payment-1"}`,
			wantCommit: true,
			wantCalls:  []linkCall{{key: "order-1-payment-1", paymentID: 5}},
		},
		{
			name:       "manual payment without key",
			value:      `{"payment_id":6,"order_id":1,"amount":10,"status":"paid"}`,
			wantCommit: true,
		},
		{
			name:       "poison pill",
			value:      `not json`,
			wantCommit: true,
		},
		{
			name:       "missing payment id",
			value:      `{"order_id":1,"idempotency_key":"order-1-payment-1"}`,
			wantCommit: true,
		},
		{
			name:       "retried after transient error",
			value:      `{"payment_id":7,"idempotency_key":"order-2-payment-1"}`,
			failures:   1,
			wantCommit: true,
			wantCalls:  []linkCall{{"order-2-payment-1", 7}, {"order-2-payment-1", 7}},
		},
		{
			name:       "not committed when retries exhausted",
			value:      `{"payment_id":8,"idempotency_key":"order-3-payment-1"}`,
			failures:   5,
			wantCommit: false,
			wantCalls:  []linkCall{{"order-3-payment-1", 8}, {"order-3-payment-1", 8}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			linker := &fakeLinker{failures: tt.failures}
			c := NewPaymentRecordedConsumer(zap.NewNop(), &fakeReader{}, linker, nil, 2, time.Millisecond)

			commit := c.processMessage(ctx, kafka.Message{Topic: "payment.recorded", Value: []byte(tt.value)})
			require.Equal(t, tt.wantCommit, commit)
			require.Equal(t, tt.wantCalls, linker.calls)
		})
	}
}

func TestPaymentRecordedConsumer_Start(t *testing.T) {
	reader := &fakeReader{messages: make(chan kafka.Message, 1)}
	linker := &fakeLinker{}
	c := NewPaymentRecordedConsumer(zap.NewNop(), reader, linker, nil, 1, time.Millisecond)

	reader.messages <- kafka.Message{Value: []byte(`{"payment_id":1,"idempotency_key":"order-1-payment-1"}`)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return len(reader.messages) == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	require.Len(t, reader.committed, 1)
	require.Len(t, linker.calls, 1)
}

func (r *fakeReader) committedOffsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	offsets := make([]int64, 0, len(r.committed))
	for _, m := range r.committed {
		offsets = append(offsets, m.Offset)
	}
	return offsets
}

func TestPaymentRecordedConsumer_Start_DoesNotSkipFailedEvent(t *testing.T) {
	reader := &fakeReader{messages: make(chan kafka.Message, 2)}
	// offset 10: две неудачные попытки и недоступный DLQ, затем ещё одна неудача и успех
	linker := &fakeLinker{failures: 3}
	writer := &fakeWriter{failures: 1}
	c := NewPaymentRecordedConsumer(zap.NewNop(), reader, linker,
		NewDLQPublisher(zap.NewNop(), writer, "payment.recorded.dlq"), 2, time.Millisecond)

	reader.messages <- kafka.Message{Offset: 10, Value: []byte(`{"payment_id":1,"idempotency_key":"order-1-payment-1"}`)}
	reader.messages <- kafka.Message{Offset: 11, Value: []byte(`{"payment_id":2,"idempotency_key":"order-2-payment-1"}`)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return len(reader.committedOffsets()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	require.Equal(t, []int64{10, 11}, reader.committedOffsets())
	require.Empty(t, writer.messages)
	require.Equal(t, []linkCall{
		{"order-1-payment-1", 1}, {"order-1-payment-1", 1},
		{"order-1-payment-1", 1}, {"order-1-payment-1", 1},
		{"order-2-payment-1", 2},
	}, linker.calls)
}

func TestPaymentRecordedConsumer_Start_StopsWhileRedelivering(t *testing.T) {
	reader := &fakeReader{messages: make(chan kafka.Message, 2)}
	linker := &fakeLinker{failures: 1000}
	c := NewPaymentRecordedConsumer(zap.NewNop(), reader, linker, nil, 1, time.Millisecond)

	reader.messages <- kafka.Message{Offset: 10, Value: []byte(`{"payment_id":1,"idempotency_key":"order-1-payment-1"}`)}
	reader.messages <- kafka.Message{Offset: 11, Value: []byte(`{"payment_id":2,"idempotency_key":"order-2-payment-1"}`)}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, c.Start(ctx))

	require.Empty(t, reader.committedOffsets())
	require.Len(t, reader.messages, 1, "offset 11 не читается, пока 10 не обработан")
}
