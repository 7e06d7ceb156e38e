package application

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pulsecrm/pulse/reliability/domain"
)

// Monitor aggregates per-endpoint success/latency statistics, runs periodic
// health probes against the data layer, and answers "should I trust this
// response" questions for downstream consumers.
type Monitor struct {
	mu        sync.RWMutex
	endpoints map[string]*domain.EndpointStats
	health    domain.HealthStatus

	prober domain.DatabaseProber
}

func NewMonitor(prober domain.DatabaseProber) *Monitor {
	return &Monitor{
		endpoints: make(map[string]*domain.EndpointStats),
		health: domain.HealthStatus{
			Database: domain.StatusUnknown,
			API:      domain.StatusUnknown,
		},
		prober: prober,
	}
}

// RecordRequest feeds one observed (endpoint, duration, success) tuple into
// the endpoint's stats. The latency mean is updated incrementally and counts
// successful requests only.
func (m *Monitor) RecordRequest(endpoint string, duration time.Duration, success bool, errMessage string) {
	now := time.Now().UTC()
	ms := float64(duration.Milliseconds())

	m.mu.Lock()
	defer m.mu.Unlock()

	stats, ok := m.endpoints[endpoint]
	if !ok {
		stats = &domain.EndpointStats{Endpoint: endpoint}
		m.endpoints[endpoint] = stats
	}

	stats.TotalRequests++
	if success {
		stats.SuccessfulRequests++
		stats.AverageResponseTime += (ms - stats.AverageResponseTime) / float64(stats.SuccessfulRequests)
		stats.LastSuccess = &now
	} else {
		stats.FailedRequests++
		if errMessage == "" {
			errMessage = "request failed"
		}
		stats.LastError = &domain.ErrorInfo{Message: errMessage, At: now}
	}
}

// EndpointStatus applies the two-threshold shape to a single endpoint.
func (m *Monitor) EndpointStatus(endpoint string) domain.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats, ok := m.endpoints[endpoint]
	if !ok || stats.TotalRequests == 0 {
		return domain.StatusUnknown
	}
	return statusFor(stats.SuccessRate(), stats.AverageResponseTime)
}

func statusFor(successRate, avgResponseMs float64) domain.Status {
	if successRate < domain.SuccessRateUnhealthyPct || avgResponseMs > domain.LatencyUnhealthyMs {
		return domain.StatusUnhealthy
	}
	if successRate < domain.SuccessRateDegradedPct || avgResponseMs > domain.LatencyDegradedMs {
		return domain.StatusDegraded
	}
	return domain.StatusHealthy
}

// APIHealth computes the aggregate across all endpoints: overall success rate,
// traffic-weighted mean latency, and the count of individually slow endpoints.
func (m *Monitor) APIHealth() domain.APIHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.apiHealthLocked()
}

func (m *Monitor) apiHealthLocked() domain.APIHealth {
	var totalRequests, totalSuccessful int64
	var weightedLatency float64
	slow := 0

	for _, stats := range m.endpoints {
		totalRequests += stats.TotalRequests
		totalSuccessful += stats.SuccessfulRequests
		weightedLatency += stats.AverageResponseTime * float64(stats.TotalRequests)
		if stats.AverageResponseTime >= domain.LatencyDegradedMs {
			slow++
		}
	}

	health := domain.APIHealth{
		EndpointCount: len(m.endpoints),
		SlowEndpoints: slow,
	}
	if totalRequests == 0 {
		health.Status = domain.StatusUnknown
		return health
	}

	health.SuccessRatePct = float64(totalSuccessful) / float64(totalRequests) * 100
	health.AvgResponseTime = weightedLatency / float64(totalRequests)

	switch {
	case health.SuccessRatePct < domain.SuccessRateUnhealthyPct,
		health.AvgResponseTime > domain.LatencyUnhealthyMs,
		slow > health.EndpointCount/2:
		health.Status = domain.StatusUnhealthy
	case health.SuccessRatePct < domain.SuccessRateDegradedPct,
		health.AvgResponseTime > domain.LatencyDegradedMs,
		slow > 0:
		health.Status = domain.StatusDegraded
	default:
		health.Status = domain.StatusHealthy
	}
	return health
}

// Health returns the latest probe-driven snapshot.
func (m *Monitor) Health() domain.HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.health
}

// EndpointStats returns a copy of every endpoint record.
func (m *Monitor) EndpointStats() []domain.EndpointStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.EndpointStats, 0, len(m.endpoints))
	for _, stats := range m.endpoints {
		out = append(out, *stats)
	}
	return out
}

// RunHealthCheck probes the data layer once and recomputes the aggregate
// snapshot. It never lets a failure escape: any error or panic becomes an
// unhealthy/error status so a failing probe cannot crash the scheduler.
func (m *Monitor) RunHealthCheck(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("[Reliability] health check panicked: %v", r)
			m.setHealth(domain.StatusError, domain.StatusError)
		}
	}()

	dbStatus := domain.StatusUnknown
	if m.prober != nil {
		start := time.Now()
		err := m.prober.Probe(ctx)
		latency := time.Since(start)

		switch {
		case err != nil:
			logrus.Warnf("[Reliability] database probe failed: %v", err)
			dbStatus = domain.StatusUnhealthy
		case float64(latency.Milliseconds()) >= domain.ProbeDegradedMs:
			logrus.Warnf("[Reliability] database probe slow: %s", latency)
			dbStatus = domain.StatusDegraded
		default:
			dbStatus = domain.StatusHealthy
		}
	}

	m.mu.Lock()
	apiStatus := m.apiHealthLocked().Status
	m.health = domain.HealthStatus{
		Database:  dbStatus,
		API:       apiStatus,
		LastCheck: time.Now().UTC(),
	}
	m.mu.Unlock()
}

func (m *Monitor) setHealth(db, api domain.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.health = domain.HealthStatus{Database: db, API: api, LastCheck: time.Now().UTC()}
}

// StartPeriodicChecks probes on a fixed cadence until ctx is cancelled. An
// immediate first check seeds the snapshot so early responses are not tagged
// unknown for a full interval.
func (m *Monitor) StartPeriodicChecks(ctx context.Context, interval time.Duration) {
	go func() {
		m.RunHealthCheck(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.RunHealthCheck(ctx)
			}
		}
	}()
}

// Annotate builds the reliability block for one finished request.
func (m *Monitor) Annotate(endpoint string, duration time.Duration, serverID string) domain.ReliabilityInfo {
	health := m.Health()
	return domain.ReliabilityInfo{
		ResponseTimeMs: duration.Milliseconds(),
		Timestamp:      time.Now().UTC(),
		Endpoint:       endpoint,
		Status:         "success",
		DatabaseStatus: health.Database,
		APIStatus:      health.API,
		ServerID:       serverID,
	}
}

// IsResponseReliable judges whether a consumer should trust a response it just
// received: the response's own annotation must not report elevated latency or
// a non-healthy database/API, and the endpoint's history must clear the
// unhealthy thresholds.
func (m *Monitor) IsResponseReliable(info *domain.ReliabilityInfo, endpoint string) bool {
	if info != nil {
		if float64(info.ResponseTimeMs) > domain.LatencyUnhealthyMs {
			return false
		}
		// Anything short of healthy (degraded, unknown, error) in the
		// annotation means the response was produced under suspect
		// conditions.
		if info.DatabaseStatus != domain.StatusHealthy {
			return false
		}
		if info.APIStatus != domain.StatusHealthy {
			return false
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	stats, ok := m.endpoints[endpoint]
	if !ok || stats.TotalRequests == 0 {
		return true
	}
	if stats.SuccessRate() < domain.SuccessRateUnhealthyPct {
		return false
	}
	if stats.AverageResponseTime > domain.LatencyUnhealthyMs {
		return false
	}
	return true
}
