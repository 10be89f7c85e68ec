package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/bookstock/internal/domain"
)

const deleteIfLua = `
if redis.call('HGET', KEYS[1], ARGV[1]) == ARGV[2] then
    return redis.call('HDEL', KEYS[1], ARGV[1])
end
return 0
`

// AlertStore keeps the alert map in one Redis hash, field = book id, so
// every server and worker process sees the same entries.
type AlertStore struct {
	c        *Client
	deleteIf *redis.Script
}

// NewAlertStore creates an AlertStore on c.
func NewAlertStore(c *Client) *AlertStore {
	return &AlertStore{c: c, deleteIf: redis.NewScript(deleteIfLua)}
}

func (s *AlertStore) key() string { return s.c.Key("alerts:state") }

// Get returns the book's entry or domain.ErrNotFound.
func (s *AlertStore) Get(ctx context.Context, bookID string) (domain.AlertState, error) {
	v, err := s.c.rdb.HGet(ctx, s.key(), bookID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("redis: get alert %s: %w", bookID, err)
	}
	return domain.AlertState(v), nil
}

// SetIfAbsent raises the entry with HSETNX.
func (s *AlertStore) SetIfAbsent(ctx context.Context, bookID string, state domain.AlertState) (bool, error) {
	ok, err := s.c.rdb.HSetNX(ctx, s.key(), bookID, string(state)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: raise alert %s: %w", bookID, err)
	}
	return ok, nil
}

// Set overwrites the entry.
func (s *AlertStore) Set(ctx context.Context, bookID string, state domain.AlertState) error {
	if err := s.c.rdb.HSet(ctx, s.key(), bookID, string(state)).Err(); err != nil {
		return fmt.Errorf("redis: set alert %s: %w", bookID, err)
	}
	return nil
}

// Delete removes the entry.
func (s *AlertStore) Delete(ctx context.Context, bookID string) error {
	if err := s.c.rdb.HDel(ctx, s.key(), bookID).Err(); err != nil {
		return fmt.Errorf("redis: delete alert %s: %w", bookID, err)
	}
	return nil
}

// DeleteIf removes the entry only while it still holds state.
func (s *AlertStore) DeleteIf(ctx context.Context, bookID string, state domain.AlertState) (bool, error) {
	n, err := s.deleteIf.Run(ctx, s.c.rdb, []string{s.key()}, bookID, string(state)).Int64()
	if err != nil {
		return false, fmt.Errorf("redis: delete alert %s: %w", bookID, err)
	}
	return n == 1, nil
}

// All returns every entry.
func (s *AlertStore) All(ctx context.Context) (map[string]domain.AlertState, error) {
	m, err := s.c.rdb.HGetAll(ctx, s.key()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list alerts: %w", err)
	}
	out := make(map[string]domain.AlertState, len(m))
	for id, v := range m {
		out[id] = domain.AlertState(v)
	}
	return out, nil
}

// Count returns HLEN of the hash.
func (s *AlertStore) Count(ctx context.Context) (int, error) {
	n, err := s.c.rdb.HLen(ctx, s.key()).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: count alerts: %w", err)
	}
	return int(n), nil
}

// Compile-time interface check.
var _ domain.AlertStore = (*AlertStore)(nil)
