package partner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Quota counts requests per key and day. Take returns how many requests
// are left after this one, negative once the quota is spent.
type Quota interface {
	Take(ctx context.Context, keyID uuid.UUID) (int, error)
}

// RedisQuota keeps one counter per key and Paris calendar day so every API
// instance shares the same budget.
type RedisQuota struct {
	client *redis.Client
	limit  int
	now    func() time.Time
	loc    *time.Location
}

func NewRedisQuota(client *redis.Client, limit int) *RedisQuota {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		loc = time.UTC
	}
	return &RedisQuota{client: client, limit: limit, now: time.Now, loc: loc}
}

func (q *RedisQuota) Take(ctx context.Context, keyID uuid.UUID) (int, error) {
	day := q.now().In(q.loc).Format("20060102")
	counterKey := "partner:quota:" + keyID.String() + ":" + day

	var incr *redis.IntCmd
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, counterKey)
		pipe.Expire(ctx, counterKey, 48*time.Hour)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return q.limit - int(incr.Val()), nil
}
