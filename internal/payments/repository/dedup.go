package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// WebhookDedupTTL is how long a processed event id is remembered.
const WebhookDedupTTL = 24 * time.Hour

const dedupPrefix = "rac:webhook:stripe:"

// RedisDeduper remembers webhook event ids so retries are handled once.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: WebhookDedupTTL}
}

// Claim returns true the first time an event id is seen.
func (d *RedisDeduper) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := d.client.SetNX(ctx, dedupPrefix+eventID, time.Now().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim webhook event: %w", err)
	}
	return ok, nil
}

// Release forgets an event id so the processor's retry is handled again.
func (d *RedisDeduper) Release(ctx context.Context, eventID string) error {
	return d.client.Del(ctx, dedupPrefix+eventID).Err()
}

// NoDedup is used when Redis is not configured; the conditional status
// update still makes repeated events harmless.
type NoDedup struct{}

func (NoDedup) Claim(context.Context, string) (bool, error) { return true, nil }

func (NoDedup) Release(context.Context, string) error { return nil }
