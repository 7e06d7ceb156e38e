package repository

import (
	"context"
	"fmt"
	"time"

	valkeylib "github.com/valkey-io/valkey-go"

	"github.com/pulsecrm/pulse/infrastructure/valkey"
)

// ValkeyStore implements domain.Store on top of the shared Valkey client.
// Expiry is delegated entirely to the server; the store never tracks age
// itself.
type ValkeyStore struct {
	client *valkey.Client
	prefix string
}

// NewValkeyStore creates a store scoped under the client's "cache" namespace.
func NewValkeyStore(client *valkey.Client) *ValkeyStore {
	return &ValkeyStore{
		client: client,
		prefix: client.Key("cache") + ":",
	}
}

func (s *ValkeyStore) fullKey(key string) string {
	return s.prefix + key
}

func (s *ValkeyStore) inner() valkeylib.Client {
	return s.client.Inner()
}

func (s *ValkeyStore) Get(ctx context.Context, key string) (string, bool, error) {
	cmd := s.inner().B().Get().Key(s.fullKey(key)).Build()

	value, err := s.inner().Do(ctx, cmd).ToString()
	if err != nil {
		if valkeylib.IsValkeyNil(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get cache key: %w", err)
	}
	return value, true, nil
}

func (s *ValkeyStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	cmd := s.inner().B().Set().
		Key(s.fullKey(key)).
		Value(value).
		Ex(ttl).
		Build()

	if err := s.inner().Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to set cache key: %w", err)
	}
	return nil
}

func (s *ValkeyStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.fullKey(k)
	}
	cmd := s.inner().B().Del().Key(full...).Build()
	if err := s.inner().Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}
	return nil
}

// Keys enumerates keys matching the glob pattern via SCAN so a large keyspace
// never blocks the server. Returned keys have the store prefix stripped.
func (s *ValkeyStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		cmd := s.inner().B().Scan().Cursor(cursor).Match(s.prefix + pattern).Count(100).Build()
		result, err := s.inner().Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("failed to scan cache keys: %w", err)
		}

		for _, k := range result.Elements {
			keys = append(keys, k[len(s.prefix):])
		}
		cursor = result.Cursor
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// FlushDB drops every key in this store's namespace. Other namespaces sharing
// the Valkey database (rate-limit counters) are left alone.
func (s *ValkeyStore) FlushDB(ctx context.Context) error {
	keys, err := s.Keys(ctx, "*")
	if err != nil {
		return err
	}
	return s.Del(ctx, keys...)
}
