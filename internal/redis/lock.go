package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrGateHeld = errors.New("schedule gate held by another booking")

// Gate sheds booking stampedes on a single schedule before a database
// transaction is even opened. Admission correctness never depends on it;
// the schedule row lock inside the transaction makes the final call.
type Gate interface {
	WithScheduleGate(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type redisGate struct {
	client *redis.Client
	ttl    time.Duration
}

// NewScheduleGate creates a gate backed by a per-schedule Redis key.
func NewScheduleGate(client *redis.Client, ttl time.Duration) Gate {
	return &redisGate{
		client: client,
		ttl:    ttl,
	}
}

func (g *redisGate) WithScheduleGate(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	gateKey := fmt.Sprintf("gate:schedule:%s", key)
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, gateKey, token, g.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire schedule gate: %w", err)
	}
	if !ok {
		return ErrGateHeld
	}

	defer func() {
		_ = g.release(ctx, gateKey, token)
	}()

	gateCtx, cancel := context.WithTimeout(ctx, g.ttl)
	defer cancel()

	return fn(gateCtx)
}

var releaseScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (g *redisGate) release(ctx context.Context, key, token string) error {
	_, err := releaseScript.Run(ctx, g.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release schedule gate: %w", err)
	}
	return nil
}

// NoopGate is used when no Redis is configured; every booking goes
// straight to the database transaction.
type NoopGate struct{}

func (NoopGate) WithScheduleGate(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
