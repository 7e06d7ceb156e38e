package application

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsecrm/pulse/cache/domain"
	"github.com/pulsecrm/pulse/core/config"
)

type fakeStore struct {
	data    map[string]string
	ttls    map[string]time.Duration
	failing bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, bool, error) {
	if f.failing {
		return "", false, assert.AnError
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if f.failing {
		return assert.AnError
	}
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	if f.failing {
		return assert.AnError
	}
	for _, k := range keys {
		delete(f.data, k)
		delete(f.ttls, k)
	}
	return nil
}

func (f *fakeStore) Keys(_ context.Context, pattern string) ([]string, error) {
	if f.failing {
		return nil, assert.AnError
	}
	prefix := strings.TrimSuffix(pattern, "*")
	var out []string
	for k := range f.data {
		if pattern == "*" || strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *fakeStore) FlushDB(_ context.Context) error {
	if f.failing {
		return assert.AnError
	}
	f.data = map[string]string{}
	f.ttls = map[string]time.Duration{}
	return nil
}

func testConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:     true,
		DefaultTTL:  300 * time.Second,
		WorkflowTTL: 600 * time.Second,
		TemplateTTL: 1800 * time.Second,
		LeadTTL:     120 * time.Second,
	}
}

func TestTierTTL(t *testing.T) {
	assert.Equal(t, 30*time.Second, domain.TierRealtime.TTL())
	assert.Equal(t, time.Hour, domain.TierHourly.TTL())
	assert.Equal(t, 24*time.Hour, domain.TierDaily.TTL())

	// Unknown tiers fall back to the most conservative lifetime.
	assert.Equal(t, 30*time.Second, domain.Tier("weekly").TTL())
}

func TestSetGetRoundTrip(t *testing.T) {
	store := newFakeStore()
	svc := NewService(testConfig(), store, nil)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	require.True(t, svc.Set(ctx, "record:lead:abc", payload{Name: "Ada", Count: 3}, time.Minute))

	var got payload
	require.True(t, svc.Get(ctx, "record:lead:abc", &got))
	assert.Equal(t, "Ada", got.Name)
	assert.Equal(t, 3, got.Count)
}

func TestGetMissAndStoreFailure(t *testing.T) {
	store := newFakeStore()
	svc := NewService(testConfig(), store, nil)
	ctx := context.Background()

	var got string
	assert.False(t, svc.Get(ctx, "record:lead:nope", &got))

	store.failing = true
	assert.False(t, svc.Get(ctx, "record:lead:nope", &got))
	assert.False(t, svc.Set(ctx, "record:lead:x", "v", time.Minute))
}

func TestUnavailableCacheIsNoOp(t *testing.T) {
	ctx := context.Background()

	// No store injected.
	svc := NewService(testConfig(), nil, nil)
	assert.False(t, svc.Available())
	assert.False(t, svc.Set(ctx, "k", "v", time.Minute))
	assert.False(t, svc.Get(ctx, "k", nil))
	assert.NoError(t, svc.Flush(ctx))

	// Feature flag off.
	cfg := testConfig()
	cfg.Enabled = false
	svc = NewService(cfg, newFakeStore(), nil)
	assert.False(t, svc.Available())
	assert.False(t, svc.Set(ctx, "k", "v", time.Minute))
}

func TestGetOrSetCachesProducedValue(t *testing.T) {
	store := newFakeStore()
	svc := NewService(testConfig(), store, nil)
	ctx := context.Background()

	calls := 0
	produce := func(ctx context.Context) (any, error) {
		calls++
		return map[string]string{"name": "Ada"}, nil
	}

	var first map[string]string
	require.NoError(t, svc.GetOrSet(ctx, "record:lead:1", time.Minute, &first, produce))
	assert.Equal(t, "Ada", first["name"])

	var second map[string]string
	require.NoError(t, svc.GetOrSet(ctx, "record:lead:1", time.Minute, &second, produce))
	assert.Equal(t, "Ada", second["name"])
	assert.Equal(t, 1, calls, "second call must be served from cache")
}

func TestGetOrSetDoesNotCacheNil(t *testing.T) {
	store := newFakeStore()
	svc := NewService(testConfig(), store, nil)
	ctx := context.Background()

	calls := 0
	produce := func(ctx context.Context) (any, error) {
		calls++
		return nil, nil
	}

	require.NoError(t, svc.GetOrSet(ctx, "record:lead:ghost", time.Minute, nil, produce))
	require.NoError(t, svc.GetOrSet(ctx, "record:lead:ghost", time.Minute, nil, produce))

	assert.Equal(t, 2, calls, "absence must not be pinned in the cache")
	assert.Empty(t, store.data)
}

func TestDashboardTTLFollowsTier(t *testing.T) {
	store := newFakeStore()
	svc := NewService(testConfig(), store, nil)
	ctx := context.Background()

	svc.SetDashboard(ctx, domain.TierRealtime, "u1", "7d", "rt")
	svc.SetDashboard(ctx, domain.TierHourly, "u1", "7d", "h")
	svc.SetDashboard(ctx, domain.TierDaily, "u1", "7d", "d")

	assert.Equal(t, 30*time.Second, store.ttls["dashboard:v2:realtime:u1:7d"])
	assert.Equal(t, time.Hour, store.ttls["dashboard:v2:hourly:u1:7d"])
	assert.Equal(t, 24*time.Hour, store.ttls["dashboard:v2:daily:u1:7d"])
}

func TestInvalidateUserDashboardDropsAllTiers(t *testing.T) {
	store := newFakeStore()
	svc := NewService(testConfig(), store, nil)
	ctx := context.Background()

	svc.SetDashboard(ctx, domain.TierRealtime, "u1", "7d", "a")
	svc.SetDashboard(ctx, domain.TierRealtime, "u1", "30d", "b")
	svc.SetDashboard(ctx, domain.TierHourly, "u1", "7d", "c")
	svc.SetDashboard(ctx, domain.TierDaily, "u1", "7d", "d")
	svc.SetDashboard(ctx, domain.TierRealtime, "u2", "7d", "keep")

	svc.InvalidateUserDashboard(ctx, "u1")

	assert.Len(t, store.data, 1)
	_, kept := store.data["dashboard:v2:realtime:u2:7d"]
	assert.True(t, kept, "other users' dashboards must survive")
}

func TestInvalidateUserDashboardTier(t *testing.T) {
	store := newFakeStore()
	svc := NewService(testConfig(), store, nil)
	ctx := context.Background()

	svc.SetDashboard(ctx, domain.TierRealtime, "u1", "7d", "a")
	svc.SetDashboard(ctx, domain.TierHourly, "u1", "7d", "b")

	svc.InvalidateUserDashboardTier(ctx, "u1", domain.TierRealtime)

	_, realtimeKept := store.data["dashboard:v2:realtime:u1:7d"]
	_, hourlyKept := store.data["dashboard:v2:hourly:u1:7d"]
	assert.False(t, realtimeKept)
	assert.True(t, hourlyKept)
}

func TestInvalidateOwnerListsWithNoMatchesIsNoOp(t *testing.T) {
	store := newFakeStore()
	svc := NewService(testConfig(), store, nil)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		svc.InvalidateOwnerLists(ctx, domain.EntityLead, "nobody")
	})
}

func TestFilterHash(t *testing.T) {
	assert.Equal(t, "all", FilterHash(nil))
	assert.Equal(t, "all", FilterHash(map[string]string{}))

	a := FilterHash(map[string]string{"stage": "won", "search": "acme"})
	b := FilterHash(map[string]string{"search": "acme", "stage": "won"})
	assert.Equal(t, a, b, "hash must be independent of map iteration order")

	c := FilterHash(map[string]string{"stage": "lost"})
	assert.NotEqual(t, a, c)
}

func TestTTLForEntityKinds(t *testing.T) {
	svc := NewService(testConfig(), newFakeStore(), nil)

	assert.Equal(t, 600*time.Second, svc.TTLFor(domain.EntityWorkflow))
	assert.Equal(t, 1800*time.Second, svc.TTLFor(domain.EntityTemplate))
	assert.Equal(t, 120*time.Second, svc.TTLFor(domain.EntityLead))
	assert.Equal(t, 120*time.Second, svc.TTLFor(domain.EntityContact))
	assert.Equal(t, 300*time.Second, svc.TTLFor(domain.EntityKind("other")))
}

func TestStatsCountsByPrefix(t *testing.T) {
	store := newFakeStore()
	svc := NewService(testConfig(), store, nil)
	ctx := context.Background()

	svc.Set(ctx, "record:lead:1", "a", time.Minute)
	svc.Set(ctx, "record:lead:2", "b", time.Minute)
	svc.SetDashboard(ctx, domain.TierRealtime, "u1", "7d", "c")

	stats := svc.Stats(ctx)
	assert.True(t, stats.Available)
	assert.Equal(t, 3, stats.TotalKeys)
	assert.Equal(t, 2, stats.KeysByPrefix["record"])
	assert.Equal(t, 1, stats.KeysByPrefix["dashboard"])
}
