package application

import (
	"context"
	"time"

	cacheapp "github.com/pulsecrm/pulse/cache/application"
	cachedomain "github.com/pulsecrm/pulse/cache/domain"
	"github.com/pulsecrm/pulse/crm/domain"
)

// DashboardService serves per-user dashboard aggregates through the tiered
// cache. The caller picks the tier by the freshness it needs; the tier alone
// decides the TTL.
type DashboardService struct {
	leads     domain.ILeadRepository
	workflows domain.IWorkflowRepository
	cache     *cacheapp.Service
}

func NewDashboardService(leads domain.ILeadRepository, workflows domain.IWorkflowRepository, cache *cacheapp.Service) *DashboardService {
	return &DashboardService{leads: leads, workflows: workflows, cache: cache}
}

func (s *DashboardService) GetDashboard(ctx context.Context, userID string, tier cachedomain.Tier, timeRange string) (*domain.DashboardSnapshot, error) {
	var cached domain.DashboardSnapshot
	if s.cache.GetDashboard(ctx, tier, userID, timeRange, &cached) {
		cached.FreshnessSecs = time.Since(cached.ComputedAt).Seconds()
		return &cached, nil
	}

	snapshot, err := s.compute(ctx, userID, tier, timeRange)
	if err != nil {
		return nil, err
	}

	s.cache.SetDashboard(ctx, tier, userID, timeRange, snapshot)
	return snapshot, nil
}

func (s *DashboardService) compute(ctx context.Context, userID string, tier cachedomain.Tier, timeRange string) (*domain.DashboardSnapshot, error) {
	byStage, err := s.leads.CountByOwnerStage(ctx, userID)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, n := range byStage {
		total += n
	}

	runs, err := s.workflows.RunCountByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &domain.DashboardSnapshot{
		UserID:       userID,
		TimeRange:    timeRange,
		LeadsByStage: byStage,
		TotalLeads:   total,
		WorkflowRuns: runs,
		ComputedAt:   time.Now().UTC(),
		FromTier:     string(tier),
	}, nil
}
