package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// IdempotencyStore помнит, какой платёж создан по Idempotency-Key.
// Значение - id платежа, TTL задаётся IDEMPOTENCY_TTL. После истечения TTL дубликаты ловит
// уникальный индекс в Postgres.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewIdempotencyStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl, logger: logger}
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("payment:idempotency:%s", key)
}

// Lookup возвращает id платежа, если ключ уже встречался
func (s *IdempotencyStore) Lookup(ctx context.Context, key string) (int64, bool, error) {
	val, err := s.client.Get(ctx, idempotencyKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get idempotency key: %w", err)
	}

	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		// битое значение считаем промахом, Postgres всё равно не даст создать дубликат
		s.logger.Warn("corrupted idempotency value", zap.String("key", key), zap.String("value", val))
		return 0, false, nil
	}
	return id, true, nil
}

// Remember сохраняет связку ключ -> платёж. SET NX: первый записавший побеждает.
func (s *IdempotencyStore) Remember(ctx context.Context, key string, paymentID int64) error {
	ok, err := s.client.SetNX(ctx, idempotencyKey(key), paymentID, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("set idempotency key: %w", err)
	}
	if !ok {
		s.logger.Debug("idempotency key already remembered", zap.String("key", key))
	}
	return nil
}
