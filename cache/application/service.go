package application

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pulsecrm/pulse/cache/domain"
	"github.com/pulsecrm/pulse/core/config"
	"github.com/pulsecrm/pulse/pkg/metrics"
)

// Service is the tiered cache over the shared key-value store. It is built to
// be called unconditionally: when the feature flag is off or no store was
// injected, every operation degrades to a safe no-op, and a store failure is
// logged and treated as a miss. The cache must never become its own outage.
type Service struct {
	store     domain.Store
	enabled   bool
	ttl       config.CacheConfig
	collector *metrics.Collector
}

// NewService wires the cache. store may be nil (no Valkey configured) and
// collector may be nil (tests); both are handled.
func NewService(cfg config.CacheConfig, store domain.Store, collector *metrics.Collector) *Service {
	return &Service{
		store:     store,
		enabled:   cfg.Enabled,
		ttl:       cfg,
		collector: collector,
	}
}

// Available reports whether cache operations will actually reach a store.
func (s *Service) Available() bool {
	return s.enabled && s.store != nil
}

// Get loads the value under key into dest. Returns false on miss, on backend
// failure, and when the cache is unavailable.
func (s *Service) Get(ctx context.Context, key string, dest any) bool {
	if !s.Available() {
		return false
	}

	raw, found, err := s.store.Get(ctx, key)
	if err != nil {
		logrus.Warnf("[Cache] get %s failed, treating as miss: %v", key, err)
		s.recordMiss()
		return false
	}
	if !found {
		s.recordMiss()
		return false
	}

	if dest != nil {
		if err := json.Unmarshal([]byte(raw), dest); err != nil {
			logrus.Warnf("[Cache] unmarshal %s failed, treating as miss: %v", key, err)
			s.recordMiss()
			return false
		}
	}
	s.recordHit()
	return true
}

// Set serializes value and stores it under key for ttl. Returns false on any
// failure, never an error.
func (s *Service) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if !s.Available() {
		return false
	}
	if ttl <= 0 {
		ttl = s.ttl.DefaultTTL
	}

	raw, err := json.Marshal(value)
	if err != nil {
		logrus.Warnf("[Cache] marshal %s failed: %v", key, err)
		return false
	}
	if err := s.store.Set(ctx, key, string(raw), ttl); err != nil {
		logrus.Warnf("[Cache] set %s failed: %v", key, err)
		return false
	}
	return true
}

// Del removes exact keys.
func (s *Service) Del(ctx context.Context, keys ...string) {
	if !s.Available() || len(keys) == 0 {
		return
	}
	if err := s.store.Del(ctx, keys...); err != nil {
		logrus.Warnf("[Cache] del failed: %v", err)
	}
}

// DelPattern enumerates keys matching the glob pattern and deletes them in one
// batch. Zero matches is a successful no-op.
func (s *Service) DelPattern(ctx context.Context, pattern string) {
	if !s.Available() {
		return
	}
	keys, err := s.store.Keys(ctx, pattern)
	if err != nil {
		logrus.Warnf("[Cache] pattern scan %s failed: %v", pattern, err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := s.store.Del(ctx, keys...); err != nil {
		logrus.Warnf("[Cache] pattern delete %s failed: %v", pattern, err)
	}
}

// GetOrSet serves key from cache, or invokes produce on a miss. A non-nil
// produced value is cached and copied into dest. A nil produced value is NOT
// cached, so a transient "not found" never gets pinned for the full TTL.
func (s *Service) GetOrSet(ctx context.Context, key string, ttl time.Duration, dest any, produce func(ctx context.Context) (any, error)) error {
	if s.Get(ctx, key, dest) {
		return nil
	}

	value, err := produce(ctx)
	if err != nil {
		return err
	}
	if value == nil {
		return nil
	}

	s.Set(ctx, key, value, ttl)
	return copyInto(dest, value)
}

// TTLFor returns the configured lifetime for an entity class.
func (s *Service) TTLFor(kind domain.EntityKind) time.Duration {
	switch kind {
	case domain.EntityWorkflow:
		return s.ttl.WorkflowTTL
	case domain.EntityTemplate:
		return s.ttl.TemplateTTL
	case domain.EntityLead, domain.EntityContact:
		return s.ttl.LeadTTL
	default:
		return s.ttl.DefaultTTL
	}
}

// GetRecord / SetRecord / InvalidateRecord: single entity by id.

func (s *Service) GetRecord(ctx context.Context, kind domain.EntityKind, id string, dest any) bool {
	return s.Get(ctx, RecordKey(kind, id), dest)
}

func (s *Service) SetRecord(ctx context.Context, kind domain.EntityKind, id string, value any) bool {
	return s.Set(ctx, RecordKey(kind, id), value, s.TTLFor(kind))
}

func (s *Service) InvalidateRecord(ctx context.Context, kind domain.EntityKind, id string) {
	s.Del(ctx, RecordKey(kind, id))
}

// GetList / SetList / InvalidateOwnerLists: filtered lists per owner. The key
// carries a stable hash of the filters so distinct combinations never collide.

func (s *Service) GetList(ctx context.Context, kind domain.EntityKind, ownerID string, filters map[string]string, dest any) bool {
	return s.Get(ctx, ListKey(kind, ownerID, filters), dest)
}

func (s *Service) SetList(ctx context.Context, kind domain.EntityKind, ownerID string, filters map[string]string, value any) bool {
	return s.Set(ctx, ListKey(kind, ownerID, filters), value, s.TTLFor(kind))
}

func (s *Service) InvalidateOwnerLists(ctx context.Context, kind domain.EntityKind, ownerID string) {
	s.DelPattern(ctx, OwnerListPattern(kind, ownerID))
}

// Tiered dashboard cache. The tier picks the TTL; the caller picks the tier by
// the data's volatility (live counters realtime, aggregates hourly, historical
// rollups daily).

func (s *Service) GetDashboard(ctx context.Context, tier domain.Tier, userID, timeRange string, dest any) bool {
	return s.Get(ctx, DashboardKey(tier, userID, timeRange), dest)
}

func (s *Service) SetDashboard(ctx context.Context, tier domain.Tier, userID, timeRange string, value any) bool {
	return s.Set(ctx, DashboardKey(tier, userID, timeRange), value, tier.TTL())
}

// InvalidateUserDashboard drops every granularity of a user's dashboard, one
// pattern deletion per tier. A few extra round-trips beat serving a stale
// realtime number after a mutation.
func (s *Service) InvalidateUserDashboard(ctx context.Context, userID string) {
	for _, tier := range domain.AllTiers() {
		s.DelPattern(ctx, DashboardPattern(tier, userID))
	}
}

// InvalidateUserDashboardTier narrows the invalidation to one tier when the
// caller knows only one granularity is affected.
func (s *Service) InvalidateUserDashboardTier(ctx context.Context, userID string, tier domain.Tier) {
	s.DelPattern(ctx, DashboardPattern(tier, userID))
}

// Stats summarizes the keyspace for the admin endpoint.
func (s *Service) Stats(ctx context.Context) domain.Stats {
	stats := domain.Stats{
		Available:     s.Available(),
		KeysByPrefix:  map[string]int{},
		DefaultTTLSec: s.ttl.DefaultTTL.Seconds(),
	}
	if s.collector != nil {
		stats.Hits, stats.Misses, stats.HitRatePct = s.collector.CacheCounts()
	}
	if !s.Available() {
		return stats
	}

	keys, err := s.store.Keys(ctx, "*")
	if err != nil {
		logrus.Warnf("[Cache] stats scan failed: %v", err)
		return stats
	}
	stats.TotalKeys = len(keys)
	for _, k := range keys {
		prefix := k
		if i := strings.Index(k, ":"); i > 0 {
			prefix = k[:i]
		}
		stats.KeysByPrefix[prefix]++
	}
	return stats
}

// Flush drops the whole cache namespace.
func (s *Service) Flush(ctx context.Context) error {
	if !s.Available() {
		return nil
	}
	return s.store.FlushDB(ctx)
}

func (s *Service) recordHit() {
	if s.collector != nil {
		s.collector.RecordCacheHit()
	}
}

func (s *Service) recordMiss() {
	if s.collector != nil {
		s.collector.RecordCacheMiss()
	}
}

// copyInto moves a freshly produced value into the caller's destination via a
// JSON round trip, mirroring what a later cache hit would return.
func copyInto(dest, value any) error {
	if dest == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
