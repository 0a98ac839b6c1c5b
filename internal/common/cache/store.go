// Package cache is the TTL key/value store behind conversation context,
// clarification sessions, FAQ statistics, FAQ hit counters and the
// similar-query memo.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("CACHE_MISS")

// Store is the minimal get/set/delete contract the pipeline relies on.
// Counter operations back the FAQ hit analytics.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	IncrField(ctx context.Context, key, field string, ttl time.Duration) (int64, error)
	Fields(ctx context.Context, key string) (map[string]int64, error)
}

// GetJSON decodes the value at key into dst. It returns ErrMiss when absent.
func GetJSON(ctx context.Context, s Store, key string, dst interface{}) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it under key with ttl.
func SetJSON(ctx context.Context, s Store, key string, v interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(raw), ttl)
}

// Key joins the assistant key namespace with the given parts.
func Key(parts ...string) string {
	key := "assistant"
	for _, p := range parts {
		key += ":" + p
	}
	return key
}
