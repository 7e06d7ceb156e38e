package domain

import (
	"context"
	"time"
)

// Tier is a cache volatility class. The TTL is a pure function of the tier
// name, never of the cached payload; callers pick the tier by how fast the
// underlying data moves.
type Tier string

const (
	TierRealtime Tier = "realtime"
	TierHourly   Tier = "hourly"
	TierDaily    Tier = "daily"
)

// TTL maps each tier to its fixed lifetime.
func (t Tier) TTL() time.Duration {
	switch t {
	case TierRealtime:
		return 30 * time.Second
	case TierHourly:
		return time.Hour
	case TierDaily:
		return 24 * time.Hour
	default:
		return 30 * time.Second
	}
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierRealtime, TierHourly, TierDaily:
		return true
	}
	return false
}

// AllTiers lists every tier, used for cross-tier invalidation.
func AllTiers() []Tier {
	return []Tier{TierRealtime, TierHourly, TierDaily}
}

// EntityKind names the domain entity classes with dedicated TTL policies.
type EntityKind string

const (
	EntityLead     EntityKind = "lead"
	EntityContact  EntityKind = "contact"
	EntityWorkflow EntityKind = "workflow"
	EntityTemplate EntityKind = "template"
)

// Store is the pluggable key-value backend the cache service rides on.
// Implementations must treat a missing key as (_, false, nil), not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	FlushDB(ctx context.Context) error
}

// InvalidateDashboardRequest narrows dashboard invalidation to one user and,
// optionally, one tier.
type InvalidateDashboardRequest struct {
	UserID string `json:"user_id" form:"user_id"`
	Tier   string `json:"tier,omitempty" form:"tier"`
}

// Stats describes the cache for the admin endpoint.
type Stats struct {
	Available     bool           `json:"available"`
	KeysByPrefix  map[string]int `json:"keys_by_prefix"`
	TotalKeys     int            `json:"total_keys"`
	Hits          int64          `json:"hits"`
	Misses        int64          `json:"misses"`
	HitRatePct    float64        `json:"hit_rate_pct"`
	DefaultTTLSec float64        `json:"default_ttl_sec"`
}
