package domain

import (
	"context"
	"time"
)

// Status is the closed set of operating states. Using a dedicated type keeps
// invalid status strings unrepresentable.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
	StatusError     Status = "error"
)

// Threshold constants shared by per-endpoint and aggregate health. These are
// deliberate constants, not configuration.
const (
	SuccessRateUnhealthyPct = 90.0
	SuccessRateDegradedPct  = 95.0
	LatencyDegradedMs       = 3000.0
	LatencyUnhealthyMs      = 5000.0
	ProbeDegradedMs         = 2000.0
)

// ErrorInfo captures the last failure seen on an endpoint.
type ErrorInfo struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// EndpointStats is the per-endpoint record, created lazily on first request
// and kept for the process lifetime. AverageResponseTime is an incrementally
// updated mean over successful requests only.
type EndpointStats struct {
	Endpoint            string     `json:"endpoint"`
	TotalRequests       int64      `json:"total_requests"`
	SuccessfulRequests  int64      `json:"successful_requests"`
	FailedRequests      int64      `json:"failed_requests"`
	AverageResponseTime float64    `json:"average_response_time_ms"`
	LastError           *ErrorInfo `json:"last_error,omitempty"`
	LastSuccess         *time.Time `json:"last_success,omitempty"`
}

// SuccessRate returns the endpoint's success percentage, 0 with no traffic.
func (s *EndpointStats) SuccessRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.SuccessfulRequests) / float64(s.TotalRequests) * 100
}

// HealthStatus is the process-wide snapshot mutated only by the periodic
// health-check task.
type HealthStatus struct {
	Database  Status    `json:"database"`
	API       Status    `json:"api"`
	LastCheck time.Time `json:"last_check"`
}

// APIHealth is the aggregate computed on demand from all endpoint stats.
type APIHealth struct {
	Status          Status  `json:"status"`
	SuccessRatePct  float64 `json:"success_rate_pct"`
	AvgResponseTime float64 `json:"avg_response_time_ms"`
	SlowEndpoints   int     `json:"slow_endpoints"`
	EndpointCount   int     `json:"endpoint_count"`
}

// ReliabilityInfo is the annotation attached to every JSON API response.
// Consumers relying on an exact response shape must tolerate this additive
// field.
type ReliabilityInfo struct {
	ResponseTimeMs int64     `json:"response_time_ms"`
	Timestamp      time.Time `json:"timestamp"`
	Endpoint       string    `json:"endpoint"`
	Status         string    `json:"status"`
	DatabaseStatus Status    `json:"database_status"`
	APIStatus      Status    `json:"api_status"`
	ServerID       string    `json:"server_id,omitempty"`
}

// DatabaseProber issues a minimal read against the relational data service.
type DatabaseProber interface {
	Probe(ctx context.Context) error
}
