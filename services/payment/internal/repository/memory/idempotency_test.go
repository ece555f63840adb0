package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewIdempotencyStore(time.Hour)
	store.now = func() time.Time { return now }

	_, ok, err := store.Lookup(ctx, "order-1-payment-1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Remember(ctx, "order-1-payment-1", 10))
	require.NoError(t, store.Remember(ctx, "order-1-payment-1", 11))

	id, ok, err := store.Lookup(ctx, "order-1-payment-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(10), id, "первая запись побеждает")

	now = now.Add(time.Hour)
	_, ok, err = store.Lookup(ctx, "order-1-payment-1")
	require.NoError(t, err)
	require.False(t, ok, "после TTL ключ забыт")
}
