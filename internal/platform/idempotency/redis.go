package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "idempotency:"

// RedisStore keeps records as JSON values whose redis TTL matches the record expiry.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps an existing redis client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: redisKeyPrefix}
}

func (s *RedisStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	ttl = normalizeTTL(ttl)
	redisKey := s.key(key)

	record := pendingRecord(key, fingerprint, now, ttl)
	payload, err := json.Marshal(record)
	if err != nil {
		return Reservation{}, fmt.Errorf("idempotency: encode record: %w", err)
	}

	// A key can expire between SetNX and Get; one retry covers that window.
	for range 2 {
		created, err := s.client.SetNX(ctx, redisKey, payload, ttl).Result()
		if err != nil {
			return Reservation{}, fmt.Errorf("idempotency: reserve: %w", err)
		}
		if created {
			return Reservation{State: ReservationStateNew, Record: record}, nil
		}

		existing, found, err := s.get(ctx, redisKey)
		if err != nil {
			return Reservation{}, err
		}
		if !found {
			continue
		}
		if existing.Fingerprint != fingerprint {
			return Reservation{}, ErrFingerprintMismatch
		}
		return existing.reservation(), nil
	}
	return Reservation{State: ReservationStatePending, Record: record}, nil
}

func (s *RedisStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	ttl = normalizeTTL(ttl)
	redisKey := s.key(key)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		record, found, err := decodeRedis(tx.Get(ctx, redisKey))
		if err != nil {
			return err
		}
		if !found {
			record = Record{Key: key, Fingerprint: fingerprint}
		} else if record.Fingerprint != fingerprint {
			return ErrFingerprintMismatch
		}
		payload, err := json.Marshal(completeRecord(record, resp, now, ttl))
		if err != nil {
			return fmt.Errorf("idempotency: encode record: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, redisKey, payload, ttl)
			return nil
		})
		return err
	}, redisKey)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrFingerprintMismatch):
		return err
	default:
		return fmt.Errorf("idempotency: save response: %w", err)
	}
}

func (s *RedisStore) Release(ctx context.Context, key, _ string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("idempotency: release: %w", err)
	}
	return nil
}

// CleanupExpired is a no-op; redis evicts records when their TTL lapses.
func (s *RedisStore) CleanupExpired(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

func (s *RedisStore) key(key string) string {
	return s.prefix + documentID(key)
}

func (s *RedisStore) get(ctx context.Context, redisKey string) (Record, bool, error) {
	return decodeRedis(s.client.Get(ctx, redisKey))
}

func decodeRedis(cmd *redis.StringCmd) (Record, bool, error) {
	data, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("idempotency: read record: %w", err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, false, fmt.Errorf("idempotency: decode record: %w", err)
	}
	return record, true, nil
}
