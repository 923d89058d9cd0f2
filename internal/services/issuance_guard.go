// internal/services/issuance_guard.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/bookshop-backend/internal/config"
)

// IssuanceGuard serialises entitlement issuance per order across processes.
// Acquire returns ok=false when another caller holds the order.
type IssuanceGuard interface {
	Acquire(ctx context.Context, orderID uuid.UUID) (release func(), ok bool, err error)
}

// NoopIssuanceGuard always grants. Used when Redis is not configured, which
// leaves only the check-then-create guard in CreateLinksIfAbsent.
type NoopIssuanceGuard struct{}

func (NoopIssuanceGuard) Acquire(context.Context, uuid.UUID) (func(), bool, error) {
	return func() {}, true, nil
}

// Deletes the key only if we still own it, so a lock that expired and was
// taken by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisIssuanceGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIssuanceGuard(cfg config.RedisConfig, ttl time.Duration) (IssuanceGuard, error) {
	if !cfg.Enabled {
		return NoopIssuanceGuard{}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisIssuanceGuard{client: client, ttl: ttl}, nil
}

func issuanceKey(orderID uuid.UUID) string {
	return "entitlements:issue:" + orderID.String()
}

func (g *RedisIssuanceGuard) Acquire(ctx context.Context, orderID uuid.UUID) (func(), bool, error) {
	key := issuanceKey(orderID)
	owner := uuid.NewString()

	ok, err := g.client.SetNX(ctx, key, owner, g.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire issuance lock: %w", err)
	}
	if !ok {
		return func() {}, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, g.client, []string{key}, owner).Err(); err != nil {
			logrus.WithError(err).WithField("order_id", orderID).Warn("Failed to release issuance lock")
		}
	}
	return release, true, nil
}

func (g *RedisIssuanceGuard) Close() error {
	return g.client.Close()
}
