package liveview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chargebook/internal/apperrors"
)

// Store caches the latest telemetry snapshot per active booking in redis so
// polling clients read live status without touching Postgres.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore returns redis-backed store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

func (s *Store) key(bookingID string) string {
	return fmt.Sprintf("booking:live:%s", bookingID)
}

// Save caches the snapshot.
func (s *Store) Save(ctx context.Context, bookingID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(bookingID), data, s.ttl).Err()
}

// Get returns the cached snapshot as raw JSON.
func (s *Store) Get(ctx context.Context, bookingID string) (json.RawMessage, error) {
	result, err := s.client.Get(ctx, s.key(bookingID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.NotFound("no live snapshot for booking %s", bookingID)
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(result), nil
}

// Delete removes the cached snapshot.
func (s *Store) Delete(ctx context.Context, bookingID string) error {
	return s.client.Del(ctx, s.key(bookingID)).Err()
}
