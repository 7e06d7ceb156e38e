package application

import (
	"context"
	"fmt"

	cacheapp "github.com/pulsecrm/pulse/cache/application"
	"github.com/pulsecrm/pulse/crm/domain"
	"github.com/pulsecrm/pulse/pkg/jobworker"
)

// WorkflowService accepts workflow trigger requests and hands the run to the
// background pool. Triggering is fire-and-forget from the caller's view; the
// run itself updates bookkeeping and invalidates the owner's dashboards.
type WorkflowService struct {
	repo  domain.IWorkflowRepository
	pool  *jobworker.Pool
	cache *cacheapp.Service
}

func NewWorkflowService(repo domain.IWorkflowRepository, pool *jobworker.Pool, cache *cacheapp.Service) *WorkflowService {
	return &WorkflowService{repo: repo, pool: pool, cache: cache}
}

// SaveWorkflow persists a definition and drops the owner's cached dashboards,
// which count workflows.
func (s *WorkflowService) SaveWorkflow(ctx context.Context, wf *domain.Workflow) error {
	if err := s.repo.Save(ctx, wf); err != nil {
		return err
	}
	s.cache.InvalidateUserDashboard(ctx, wf.OwnerID)
	return nil
}

// GetWorkflow returns the definition, nil when it does not exist.
func (s *WorkflowService) GetWorkflow(ctx context.Context, id string) (*domain.Workflow, error) {
	return s.repo.GetByID(ctx, id)
}

// Trigger validates the workflow and enqueues a run. Returns false when the
// pool is saturated so the handler can surface backpressure instead of
// silently dropping work.
func (s *WorkflowService) Trigger(ctx context.Context, workflowID string) (bool, error) {
	wf, err := s.repo.GetByID(ctx, workflowID)
	if err != nil {
		return false, err
	}
	if wf == nil {
		return false, fmt.Errorf("workflow %s not found", workflowID)
	}
	if !wf.Active {
		return false, fmt.Errorf("workflow %s is not active", workflowID)
	}

	ownerID := wf.OwnerID
	accepted := s.pool.TryDispatch(jobworker.WorkflowJob{
		TenantID:   wf.TenantID,
		WorkflowID: wf.ID,
		Handler: func(jobCtx context.Context) error {
			if err := s.repo.MarkRun(jobCtx, workflowID); err != nil {
				return err
			}
			// A run changes the owner's run counters on every granularity.
			s.cache.InvalidateUserDashboard(jobCtx, ownerID)
			return nil
		},
	})
	return accepted, nil
}

// PoolStats exposes the worker pool snapshot for the monitoring endpoint.
func (s *WorkflowService) PoolStats() jobworker.PoolStats {
	return s.pool.GetStats()
}
