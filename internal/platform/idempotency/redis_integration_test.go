//go:build integration

package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vendormart/api/internal/platform/testsupport"
)

func TestRedisStoreIntegration(t *testing.T) {
	ctx := context.Background()
	opts, err := redis.ParseURL(testsupport.StartRedis(t))
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client)
	now := time.Now().UTC()

	res, err := store.Reserve(ctx, "buyer|k", "fp", now, time.Minute)
	if err != nil || res.State != ReservationStateNew {
		t.Fatalf("expected new reservation, got %+v err=%v", res, err)
	}
	if res, _ = store.Reserve(ctx, "buyer|k", "fp", now, time.Minute); res.State != ReservationStatePending {
		t.Fatalf("expected pending, got %v", res.State)
	}
	if _, err := store.Reserve(ctx, "buyer|k", "other", now, time.Minute); !errors.Is(err, ErrFingerprintMismatch) {
		t.Fatalf("expected fingerprint mismatch, got %v", err)
	}

	if err := store.SaveResponse(ctx, "buyer|k", "fp", Response{Status: 201, Body: []byte(`{"id":"o1"}`)}, now, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	res, err = store.Reserve(ctx, "buyer|k", "fp", now, time.Minute)
	if err != nil || res.State != ReservationStateCompleted || string(res.Record.ResponseBody) != `{"id":"o1"}` {
		t.Fatalf("expected completed replay, got %+v err=%v", res, err)
	}

	ttl, err := client.TTL(ctx, store.key("buyer|k")).Result()
	if err != nil || ttl <= 0 {
		t.Fatalf("expected redis ttl on record, got %v err=%v", ttl, err)
	}

	if err := store.Release(ctx, "buyer|k", "fp"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if res, _ = store.Reserve(ctx, "buyer|k", "other", now, time.Minute); res.State != ReservationStateNew {
		t.Fatalf("released key should be reservable, got %v", res.State)
	}
}
