// internal/engine/inflight/registry.go
package inflight

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "masqanicore/internal/common/errors"
	"masqanicore/internal/common/logger"
)

// Registry serializes payment transactions per resource with Redis SET NX
// leases. A lease held by one transaction makes every concurrent start for the
// same key fail fast with CONFLICT. The TTL bounds how long an abandoned
// transaction can block the resource.
type Registry struct {
	client redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

// NewRegistry builds a registry whose leases expire after ttl. The ttl must
// exceed the gateway confirmation timeout so a live transaction is never
// evicted mid-flight.
func NewRegistry(client redis.Cmdable, ttl time.Duration, log logger.Logger) *Registry {
	return &Registry{
		client: client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "inflight"}),
	}
}

// UnlockKey identifies the (payer, listing) pair of an unlock transaction.
func UnlockKey(payerID, listingID string) string {
	return fmt.Sprintf("inflight:unlock:%s:%s", payerID, listingID)
}

// ActivationKey identifies a landlord's activation slot. Activation is
// serialized per landlord, one draft at a time.
func ActivationKey(landlordID string) string {
	return fmt.Sprintf("inflight:activation:%s", landlordID)
}

// Acquire takes the lease for key on behalf of txID. It fails with CONFLICT
// when another transaction already holds the lease.
func (r *Registry) Acquire(ctx context.Context, key, txID string) error {
	ok, err := r.client.SetNX(ctx, key, txID, r.ttl).Result()
	if err != nil {
		return apperrors.NewConnectivityError(err)
	}
	if !ok {
		holder, _ := r.client.Get(ctx, key).Result()
		r.logger.Warn("lease contention", map[string]interface{}{
			"key":    key,
			"holder": holder,
		})
		return apperrors.NewConflictError(fmt.Sprintf("key: %s", key))
	}
	return nil
}

// Release drops the lease if txID still holds it. A lease taken over by a
// later transaction after TTL expiry is left alone.
func (r *Registry) Release(ctx context.Context, key, txID string) {
	const script = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		end
		return 0`

	if err := r.client.Eval(ctx, script, []string{key}, txID).Err(); err != nil {
		r.logger.Warn("lease release failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

// Holder returns the transaction id currently holding the lease, or "" when
// the key is free.
func (r *Registry) Holder(ctx context.Context, key string) (string, error) {
	holder, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", apperrors.NewConnectivityError(err)
	}
	return holder, nil
}
