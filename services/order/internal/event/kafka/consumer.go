package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageReader часть *kafka.Reader, нужная consumer
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PaymentLinker связывает заказ с платежом по payment_key
type PaymentLinker interface {
	LinkPayment(ctx context.Context, paymentKey string, paymentID int64) (bool, error)
}

// DeadLetterSink принимает события, которые нельзя обработать. nil - такие события только логируются.
type DeadLetterSink interface {
	Publish(ctx context.Context, msg kafka.Message, event PaymentRecordedEvent, cause error) error
}

// PaymentRecordedEvent сообщение payment.recorded от payment service
type PaymentRecordedEvent struct {
	EventID        string `json:"event_id"`
	EventType      string `json:"event_type"`
	EventVersion   int    `json:"event_version"`
	OccurredAt     string `json:"occurred_at"`
	PaymentID      int64  `json:"payment_id"`
	OrderID        int64  `json:"order_id"`
	Amount         int64  `json:"amount"`
	Status         string `json:"status"`
	IdempotencyKey string `json:"idempotency_key"`
}

// PaymentRecordedConsumer читает payment.recorded и досвязывает заказы, у которых
// вызов POST /payments оборвался после того, как платёж уже был записан.
type PaymentRecordedConsumer struct {
	logger      *zap.Logger
	reader      MessageReader
	linker      PaymentLinker
	dlq         DeadLetterSink
	maxAttempts int
	backoffBase time.Duration
}

func NewPaymentRecordedConsumer(
	logger *zap.Logger,
	reader MessageReader,
	linker PaymentLinker,
	dlq DeadLetterSink,
	maxAttempts int,
	backoffBase time.Duration,
) *PaymentRecordedConsumer {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoffBase <= 0 {
		backoffBase = time.Second
	}
	return &PaymentRecordedConsumer{
		logger:      logger,
		reader:      reader,
		linker:      linker,
		dlq:         dlq,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
	}
}

// Start читает до отмены ctx. At-least-once: offset коммитится после обработки,
// LinkPayment идемпотентен.
func (c *PaymentRecordedConsumer) Start(ctx context.Context) error {
	c.logger.Info("starting payment events consumer",
		zap.Int("max_retry_attempts", c.maxAttempts),
		zap.Duration("retry_backoff_base", c.backoffBase),
	)

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("payment events consumer stopped")
				return nil
			}
			c.logger.Error("failed to fetch message from kafka", zap.Error(err))
			continue
		}

		// коммит следующего сообщения сдвинул бы offset через это, поэтому
		// партиция стоит, пока событие не обработано или не ушло в DLQ
		for !c.processMessage(ctx, m) {
			c.logger.Warn("payment event left uncommitted, redelivering",
				zap.String("topic", m.Topic),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
			)
			select {
			case <-ctx.Done():
				c.logger.Info("payment events consumer stopped")
				return nil
			case <-time.After(c.redeliverBackoff()):
			}
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.Error("failed to commit message offset",
				zap.Error(err),
				zap.String("topic", m.Topic),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
			)
		}
	}
}

// redeliverBackoff пауза перед повторной обработкой незакоммиченного события
func (c *PaymentRecordedConsumer) redeliverBackoff() time.Duration {
	return c.backoffBase * time.Duration(c.maxAttempts)
}

// processMessage возвращает true, если offset нужно закоммитить
func (c *PaymentRecordedConsumer) processMessage(ctx context.Context, m kafka.Message) bool {
	log := c.logger.With(
		zap.String("topic", m.Topic),
		zap.Int("partition", m.Partition),
		zap.Int64("offset", m.Offset),
	)

	event, err := parsePaymentRecorded(m.Value)
	if err != nil {
		// poison pill: повтор не поможет
		log.Error("failed to parse payment event", zap.Error(err))
		c.deadLetter(ctx, log, m, PaymentRecordedEvent{}, err)
		return true
	}

	// ручные платежи без ключа к автоматическому платежу заказа не относятся
	if event.IdempotencyKey == "" {
		return true
	}

	linked, err := c.handleWithRetry(ctx, event)
	if err != nil {
		log.Error("failed to handle payment event after all retries",
			zap.Error(err), zap.Int64("payment_id", event.PaymentID))
		if ctx.Err() != nil {
			return false
		}
		// без DLQ offset не коммитится, событие перечитается после рестарта
		return c.deadLetter(ctx, log, m, event, err)
	}

	log.Debug("payment event processed",
		zap.Int64("payment_id", event.PaymentID),
		zap.Int64("order_id", event.OrderID),
		zap.Bool("linked", linked))
	return true
}

// deadLetter true, если событие сохранено в DLQ
func (c *PaymentRecordedConsumer) deadLetter(ctx context.Context, log *zap.Logger, m kafka.Message, event PaymentRecordedEvent, cause error) bool {
	if c.dlq == nil {
		return false
	}
	if err := c.dlq.Publish(ctx, m, event, cause); err != nil {
		log.Error("failed to publish payment event to DLQ", zap.Error(err))
		return false
	}
	return true
}

func (c *PaymentRecordedConsumer) handleWithRetry(ctx context.Context, event PaymentRecordedEvent) (bool, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			// 1s, 2s, 4s...
			backoff := c.backoffBase * time.Duration(1<<uint(attempt-2))
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(backoff):
			}
		}

		linked, err := c.linker.LinkPayment(ctx, event.IdempotencyKey, event.PaymentID)
		if err == nil {
			return linked, nil
		}
		lastErr = err
		c.logger.Warn("failed to link payment",
			zap.Error(err),
			zap.Int64("payment_id", event.PaymentID),
			zap.Int("attempt", attempt),
		)
	}
	return false, lastErr
}

func parsePaymentRecorded(raw []byte) (PaymentRecordedEvent, error) {
	var event PaymentRecordedEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return PaymentRecordedEvent{}, fmt.Errorf("unmarshal: %w", err)
	}
	if event.PaymentID <= 0 {
		return PaymentRecordedEvent{}, fmt.Errorf("payment_id is required")
	}
	return event, nil
}

func (c *PaymentRecordedConsumer) Close() error {
	c.logger.Info("closing payment events consumer")
	return c.reader.Close()
}
