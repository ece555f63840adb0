package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shestoi/adminpanel/services/payment/internal/event"
)

const paymentRecordedVersion = 1

// MessageWriter часть *kafka.Writer, нужная publisher
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// PaymentEventPublisher реализует service.EventPublisher поверх Kafka
type PaymentEventPublisher struct {
	logger *zap.Logger
	writer MessageWriter
	topic  string
}

func NewPaymentEventPublisher(logger *zap.Logger, writer MessageWriter, topic string) *PaymentEventPublisher {
	return &PaymentEventPublisher{logger: logger, writer: writer, topic: topic}
}

// paymentRecordedMessage формат сообщения в топике payment.recorded
type paymentRecordedMessage struct {
	EventID        string `json:"event_id"`
	EventType      string `json:"event_type"`
	EventVersion   int    `json:"event_version"`
	OccurredAt     string `json:"occurred_at"`
	PaymentID      int64  `json:"payment_id"`
	OrderID        int64  `json:"order_id"`
	Amount         int64  `json:"amount"`
	Status         string `json:"status"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// PublishPaymentRecorded ключ сообщения - order_id, события одного заказа попадают в одну партицию
func (p *PaymentEventPublisher) PublishPaymentRecorded(ctx context.Context, e event.PaymentRecorded) error {
	value, err := json.Marshal(paymentRecordedMessage{
		EventID:        uuid.NewString(),
		EventType:      "payment.recorded",
		EventVersion:   paymentRecordedVersion,
		OccurredAt:     e.OccurredAt.UTC().Format(time.RFC3339),
		PaymentID:      e.PaymentID,
		OrderID:        e.OrderID,
		Amount:         e.Amount,
		Status:         e.Status,
		IdempotencyKey: e.IdempotencyKey,
	})
	if err != nil {
		return fmt.Errorf("marshal payment.recorded: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(e.OrderID, 10)),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish payment recorded event",
			zap.Error(err),
			zap.String("topic", p.topic),
			zap.Int64("order_id", e.OrderID),
			zap.Int64("payment_id", e.PaymentID),
		)
		return fmt.Errorf("write payment.recorded: %w", err)
	}

	p.logger.Info("payment recorded event published",
		zap.String("topic", p.topic),
		zap.Int64("order_id", e.OrderID),
		zap.Int64("payment_id", e.PaymentID),
		zap.Int64("amount", e.Amount),
	)
	return nil
}
