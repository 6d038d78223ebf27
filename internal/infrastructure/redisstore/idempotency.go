// Package redisstore holds the Redis-backed checkout collaborators shared by API replicas.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/petshop-checkout/internal/checkout"
	"github.com/redis/go-redis/v9"
)

// IdempotencyStore keeps completed checkout results under SET EX keys
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

func (s *IdempotencyStore) Get(ctx context.Context, identity, key string) (*checkout.Result, bool, error) {
	data, err := s.client.Get(ctx, idempotencyKey(identity, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var res checkout.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, false, fmt.Errorf("unmarshal checkout result failed: %w", err)
	}
	return &res, true, nil
}

func (s *IdempotencyStore) Put(ctx context.Context, identity, key string, res *checkout.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal checkout result failed: %w", err)
	}
	if err := s.client.Set(ctx, idempotencyKey(identity, key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// the identity length keeps "a:b"+"c" apart from "a"+"b:c"
func idempotencyKey(identity, key string) string {
	return fmt.Sprintf("checkout:idem:%d:%s:%s", len(identity), identity, key)
}
