package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shestoi/adminpanel/services/order/internal/repository"
)

// MessageWriter часть *kafka.Writer, нужная dispatcher
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OutboxStore часть OrderRepository, с которой работает dispatcher
type OutboxStore interface {
	GetPendingOutboxEvents(ctx context.Context, limit int) ([]repository.OutboxEvent, error)
	MarkOutboxEventSent(ctx context.Context, eventID string) error
	MarkOutboxEventFailed(ctx context.Context, eventID, lastError string) error
	ResetOutboxEventPending(ctx context.Context, eventID string) error
}

// DispatcherConfig параметры цикла публикации
type DispatcherConfig struct {
	BatchSize  int
	Interval   time.Duration
	MaxRetries int
	Backoff    time.Duration
}

// OutboxDispatcher публикует события заказов из order_outbox в Kafka.
// Топик берётся из самой записи outbox, ключ сообщения - id заказа.
type OutboxDispatcher struct {
	logger *zap.Logger
	store  OutboxStore
	writer MessageWriter
	cfg    DispatcherConfig
}

func NewOutboxDispatcher(logger *zap.Logger, store OutboxStore, writer MessageWriter, cfg DispatcherConfig) *OutboxDispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	return &OutboxDispatcher{logger: logger, store: store, writer: writer, cfg: cfg}
}

// Start работает до отмены ctx
func (d *OutboxDispatcher) Start(ctx context.Context) error {
	d.logger.Info("starting outbox dispatcher",
		zap.Int("batch_size", d.cfg.BatchSize),
		zap.Duration("interval", d.cfg.Interval),
		zap.Int("max_retries", d.cfg.MaxRetries),
	)

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := d.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error("failed to process outbox batch", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			d.logger.Info("outbox dispatcher stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// ProcessBatch публикует одну пачку pending событий. Ошибка одного события не останавливает пачку.
func (d *OutboxDispatcher) ProcessBatch(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	events, err := d.store.GetPendingOutboxEvents(ctx, d.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("get pending events: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	d.logger.Debug("processing outbox batch", zap.Int("count", len(events)))

	for _, event := range events {
		if err := d.processEvent(ctx, event); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.Error("failed to process outbox event",
				zap.Error(err),
				zap.String("event_id", event.EventID),
				zap.String("topic", event.Topic),
			)
		}
	}
	return nil
}

func (d *OutboxDispatcher) processEvent(ctx context.Context, event repository.OutboxEvent) error {
	msg := kafka.Message{
		Topic: event.Topic,
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}

	var lastErr error
	for attempt := 1; attempt <= d.cfg.MaxRetries; attempt++ {
		lastErr = d.writer.WriteMessages(ctx, msg)
		if lastErr == nil {
			if err := d.store.MarkOutboxEventSent(ctx, event.EventID); err != nil {
				return fmt.Errorf("mark event sent: %w", err)
			}
			d.logger.Info("outbox event published",
				zap.String("event_id", event.EventID),
				zap.String("event_type", event.EventType),
				zap.String("order_id", event.AggregateID),
				zap.Int("attempt", attempt),
			)
			return nil
		}

		d.logger.Warn("failed to publish outbox event",
			zap.Error(lastErr),
			zap.String("event_id", event.EventID),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", d.cfg.MaxRetries),
		)

		if attempt < d.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.cfg.Backoff * time.Duration(attempt)):
			}
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	// failed фиксирует причину, затем событие снова pending до следующего цикла
	errMsg := fmt.Sprintf("failed after %d attempts: %v", d.cfg.MaxRetries, lastErr)
	if err := d.store.MarkOutboxEventFailed(ctx, event.EventID, errMsg); err != nil {
		return fmt.Errorf("mark event failed: %w", err)
	}
	if err := d.store.ResetOutboxEventPending(ctx, event.EventID); err != nil {
		d.logger.Error("failed to reset outbox event to pending", zap.Error(err), zap.String("event_id", event.EventID))
	}
	return fmt.Errorf("publish event after %d attempts: %w", d.cfg.MaxRetries, lastErr)
}

func (d *OutboxDispatcher) Close() error {
	d.logger.Info("closing outbox dispatcher")
	return d.writer.Close()
}
