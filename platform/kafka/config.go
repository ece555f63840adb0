package kafka

import (
	"errors"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// Config общие настройки подключения к Kafka.
// При Enabled=false сервисы не создают ни writer, ни reader: outbox копится в БД,
// а события платежей не публикуются.
type Config struct {
	Enabled bool `env:"KAFKA_ENABLED" envDefault:"false"`
	// Brokers локально localhost:19092, в docker kafka:9092, можно несколько через запятую
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:19092"`
	// Topic используется только eventtail, сервисы берут доменные топики из своего config
	Topic string `env:"KAFKA_TOPIC" envDefault:"order.events"`
	// GroupID consumer group для читателей
	GroupID string `env:"KAFKA_GROUP_ID"`
}

// Validate проверяет конфиг только когда Kafka включена
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Brokers) == 0 {
		return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}
	return nil
}

// NewWriter создаёт writer для одного топика.
// RequireAll + синхронная запись: WriteMessages возвращается только после подтверждения брокером,
// иначе outbox пометит событие отправленным раньше времени.
func NewWriter(cfg Config, topic string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
}

// NewReader создаёт reader в consumer group. Коммит оффсетов ручной (CommitMessages).
func NewReader(cfg Config, topic, groupID string) *kafkago.Reader {
	if groupID == "" {
		groupID = cfg.GroupID
	}
	return kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
}
