package kafka

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// DeadLetter сообщение payment.recorded, которое не удалось обработать
type DeadLetter struct {
	OriginalTopic     string `json:"original_topic"`
	OriginalPartition int    `json:"original_partition"`
	OriginalOffset    int64  `json:"original_offset"`
	// OriginalKey и OriginalValue в base64: poison pill может быть не JSON
	OriginalKey   string `json:"original_key"`
	OriginalValue string `json:"original_value"`
	Error         string `json:"error"`
	FailedAt      string `json:"failed_at"`
	PaymentID     int64  `json:"payment_id,omitempty"`
	OrderID       int64  `json:"order_id,omitempty"`
}

// DLQPublisher откладывает необработанные события в отдельный топик
type DLQPublisher struct {
	logger *zap.Logger
	writer MessageWriter
	topic  string
	now    func() time.Time
}

func NewDLQPublisher(logger *zap.Logger, writer MessageWriter, topic string) *DLQPublisher {
	return &DLQPublisher{logger: logger, writer: writer, topic: topic, now: time.Now}
}

// Publish пишет исходное сообщение и причину. event может быть пустым, если сообщение не разобралось.
func (p *DLQPublisher) Publish(ctx context.Context, msg kafka.Message, event PaymentRecordedEvent, cause error) error {
	dl := DeadLetter{
		OriginalTopic:     msg.Topic,
		OriginalPartition: msg.Partition,
		OriginalOffset:    msg.Offset,
		OriginalKey:       base64.StdEncoding.EncodeToString(msg.Key),
		OriginalValue:     base64.StdEncoding.EncodeToString(msg.Value),
		Error:             "unknown error",
		FailedAt:          p.now().UTC().Format(time.RFC3339),
		PaymentID:         event.PaymentID,
		OrderID:           event.OrderID,
	}
	if cause != nil {
		dl.Error = cause.Error()
	}

	value, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}

	key := msg.Key
	if event.OrderID > 0 {
		key = []byte(strconv.FormatInt(event.OrderID, 10))
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{Topic: p.topic, Key: key, Value: value}); err != nil {
		return fmt.Errorf("publish dead letter: %w", err)
	}

	p.logger.Warn("payment event sent to DLQ",
		zap.String("dlq_topic", p.topic),
		zap.String("original_topic", msg.Topic),
		zap.Int("original_partition", msg.Partition),
		zap.Int64("original_offset", msg.Offset),
		zap.String("error", dl.Error),
	)
	return nil
}

func (p *DLQPublisher) Close() error {
	return p.writer.Close()
}
