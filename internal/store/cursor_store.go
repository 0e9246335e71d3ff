package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCursorStore keeps the last sync cursor per linked account in Redis.
type RedisCursorStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisCursorStore creates a cursor store. Keys are "<prefix>:sync_cursor:<linked account id>".
func NewRedisCursorStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisCursorStore {
	return &RedisCursorStore{
		client: client,
		prefix: strings.TrimSuffix(strings.TrimSpace(prefix), ":"),
		ttl:    ttl,
	}
}

func (s *RedisCursorStore) key(linkedAccountID string) string {
	return fmt.Sprintf("%s:sync_cursor:%s", s.prefix, linkedAccountID)
}

// SaveCursor records cursor as the latest checkpoint for the account. Empty cursors are ignored.
func (s *RedisCursorStore) SaveCursor(ctx context.Context, linkedAccountID, cursor string) error {
	if s == nil || s.client == nil || cursor == "" {
		return nil
	}
	if err := s.client.Set(ctx, s.key(linkedAccountID), cursor, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save sync cursor: %w", err)
	}
	return nil
}

// GetCursor returns the last checkpoint for the account, or "" when none exists.
func (s *RedisCursorStore) GetCursor(ctx context.Context, linkedAccountID string) (string, error) {
	if s == nil || s.client == nil {
		return "", nil
	}
	cursor, err := s.client.Get(ctx, s.key(linkedAccountID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read sync cursor: %w", err)
	}
	return cursor, nil
}
