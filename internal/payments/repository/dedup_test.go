package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newDeduper(t *testing.T) (*RedisDeduper, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisDeduper(client), mr
}

func TestClaimOnlyOnce(t *testing.T) {
	d, mr := newDeduper(t)
	ctx := context.Background()

	first, err := d.Claim(ctx, "evt_1")
	if err != nil || !first {
		t.Fatalf("first claim: %v %v", first, err)
	}
	second, err := d.Claim(ctx, "evt_1")
	if err != nil || second {
		t.Fatalf("second claim should be refused: %v %v", second, err)
	}
	if ttl := mr.TTL(dedupPrefix + "evt_1"); ttl != WebhookDedupTTL {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	mr.FastForward(WebhookDedupTTL + time.Second)
	again, err := d.Claim(ctx, "evt_1")
	if err != nil || !again {
		t.Fatalf("claim after expiry: %v %v", again, err)
	}
}

func TestReleaseAllowsRetry(t *testing.T) {
	d, _ := newDeduper(t)
	ctx := context.Background()

	if ok, _ := d.Claim(ctx, "evt_2"); !ok {
		t.Fatal("expected first claim")
	}
	if err := d.Release(ctx, "evt_2"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := d.Claim(ctx, "evt_2"); !ok {
		t.Fatal("expected claim after release")
	}
}
