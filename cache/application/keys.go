package application

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/pulsecrm/pulse/cache/domain"
)

// Cache keys are colon-joined namespace segments. Keys for the same logical
// resource must always be built through these helpers so the segment order
// stays stable and pattern invalidation ("prefix:*") reaches every related
// key.

// RecordKey addresses a single entity by kind and id.
func RecordKey(kind domain.EntityKind, id string) string {
	return fmt.Sprintf("record:%s:%s", kind, id)
}

// ListKey addresses a filtered list owned by one user. Distinct filter
// combinations get distinct keys via a stable hash of the filter set.
func ListKey(kind domain.EntityKind, ownerID string, filters map[string]string) string {
	return fmt.Sprintf("list:%s:%s:%s", kind, ownerID, FilterHash(filters))
}

// OwnerListPattern matches every cached list for one owner, whatever the
// filters were.
func OwnerListPattern(kind domain.EntityKind, ownerID string) string {
	return fmt.Sprintf("list:%s:%s:*", kind, ownerID)
}

// DashboardKey addresses one tier of one user's dashboard for a time range.
func DashboardKey(tier domain.Tier, userID, timeRange string) string {
	return fmt.Sprintf("dashboard:v2:%s:%s:%s", tier, userID, timeRange)
}

// DashboardPattern matches every time range of one tier of a user's dashboard.
func DashboardPattern(tier domain.Tier, userID string) string {
	return fmt.Sprintf("dashboard:v2:%s:%s:*", tier, userID)
}

// FilterHash derives a deterministic short hash from a filter set. Iteration
// order of the map must not leak into the key, so pairs are sorted first.
func FilterHash(filters map[string]string) string {
	if len(filters) == 0 {
		return "all"
	}

	pairs := make([]string, 0, len(filters))
	for k, v := range filters {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)

	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.Join(pairs, "&")))
	return fmt.Sprintf("%016x", h.Sum64())
}
