// internal/engine/inflight/registry_test.go
package inflight

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "masqanicore/internal/common/errors"
	"masqanicore/internal/common/logger"
)

func newTestRegistry(t *testing.T, ttl time.Duration) (*Registry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRegistry(client, ttl, logger.NewTestLogger(t)), mr
}

func TestAcquireAndRelease(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Minute)
	ctx := context.Background()
	key := UnlockKey("tenant@example.com", "listing-1")

	require.NoError(t, reg.Acquire(ctx, key, "tx-1"))

	holder, err := reg.Holder(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "tx-1", holder)

	reg.Release(ctx, key, "tx-1")

	holder, err = reg.Holder(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, holder)
}

func TestAcquireConflictsWhileHeld(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Minute)
	ctx := context.Background()
	key := UnlockKey("tenant@example.com", "listing-1")

	require.NoError(t, reg.Acquire(ctx, key, "tx-1"))

	err := reg.Acquire(ctx, key, "tx-2")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeConflict, apperrors.CodeOf(err))

	// Same payer, different listing is an independent resource.
	require.NoError(t, reg.Acquire(ctx, UnlockKey("tenant@example.com", "listing-2"), "tx-3"))
}

func TestReleaseIgnoresForeignHolder(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Minute)
	ctx := context.Background()
	key := ActivationKey("landlord-1")

	require.NoError(t, reg.Acquire(ctx, key, "tx-1"))

	// A stale transaction must not free a lease it no longer owns.
	reg.Release(ctx, key, "tx-stale")

	holder, err := reg.Holder(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "tx-1", holder)
}

func TestLeaseExpiresAfterTTL(t *testing.T) {
	reg, mr := newTestRegistry(t, time.Minute)
	ctx := context.Background()
	key := ActivationKey("landlord-1")

	require.NoError(t, reg.Acquire(ctx, key, "tx-1"))

	// Abandonment: TTL expiry frees the slot without an explicit release.
	mr.FastForward(2 * time.Minute)

	require.NoError(t, reg.Acquire(ctx, key, "tx-2"))
}

func TestAcquireSurfacesRedisErrors(t *testing.T) {
	client, mock := redismock.NewClientMock()
	reg := NewRegistry(client, time.Minute, logger.NewNoOpLogger())
	key := UnlockKey("t@example.com", "l-1")

	mock.ExpectSetNX(key, "tx-1", time.Minute).SetErr(errors.New("connection reset"))

	err := reg.Acquire(context.Background(), key, "tx-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeConnectivity, apperrors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestKeyShapes(t *testing.T) {
	assert.Equal(t, "inflight:unlock:a@b.c:l1", UnlockKey("a@b.c", "l1"))
	assert.Equal(t, "inflight:activation:ll-1", ActivationKey("ll-1"))
}
