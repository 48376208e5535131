package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// StoredResponse is what a replayed request gets back.
type StoredResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

type IdempotencyStore struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewIdempotencyStore(client *goredis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

func (s *IdempotencyStore) Check(ctx context.Context, scope, key string) (*StoredResponse, bool, error) {
	bytes, err := s.client.Get(ctx, idempotencyKey(scope, key)).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("check idempotency key: %w", err)
	}

	var resp StoredResponse
	if err := json.Unmarshal(bytes, &resp); err != nil {
		return nil, false, fmt.Errorf("decode idempotent response: %w", err)
	}
	return &resp, true, nil
}

// Set keeps the first response stored under key; later writes are ignored.
func (s *IdempotencyStore) Set(ctx context.Context, scope, key string, resp StoredResponse) error {
	bytes, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode idempotent response: %w", err)
	}
	if err := s.client.SetNX(ctx, idempotencyKey(scope, key), bytes, s.ttl).Err(); err != nil {
		return fmt.Errorf("set idempotency key: %w", err)
	}
	return nil
}

func idempotencyKey(scope, key string) string {
	return fmt.Sprintf("idempotency:%s:%s", scope, key)
}
