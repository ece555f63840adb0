// Package main - eventtail печатает сообщения Kafka топика в лог.
//
// Топик и брокеры берутся из KAFKA_TOPIC и KAFKA_BROKERS (по умолчанию order.events
// и localhost:19092). Читает в собственной consumer group до SIGINT/SIGTERM,
// поэтому повторный запуск продолжает с последнего закоммиченного оффсета.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	platformkafka "github.com/shestoi/adminpanel/platform/kafka"
	platformlogging "github.com/shestoi/adminpanel/platform/logging"
)

const defaultGroupID = "eventtail"

func main() {
	logger, err := platformlogging.New(platformlogging.FromEnv("eventtail", "local"))
	if err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer platformlogging.Sync(logger)

	cfg, err := platformkafka.LoadEnv()
	if err != nil {
		logger.Error("failed to load kafka config", zap.Error(err))
		os.Exit(1)
	}
	if cfg.GroupID == "" {
		cfg.GroupID = defaultGroupID
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reader := platformkafka.NewReader(cfg, cfg.Topic, cfg.GroupID)
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Error("failed to close kafka reader", zap.Error(err))
		}
	}()

	logger.Info("tailing kafka topic",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
		zap.String("group_id", cfg.GroupID),
	)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				logger.Info("eventtail stopped")
				return
			}
			logger.Error("failed to read message", zap.Error(err))
			return
		}

		fields := []zap.Field{
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.String("key", string(msg.Key)),
			zap.String("value", string(msg.Value)),
			zap.Time("time", msg.Time),
		}
		for _, h := range msg.Headers {
			fields = append(fields, zap.String("header."+h.Key, string(h.Value)))
		}
		logger.Info("message", fields...)
	}
}
