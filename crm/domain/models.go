package domain

import (
	"context"
	"time"
)

// Lead is the minimal tenant record this layer works against. The full CRM
// entity set lives in the product's CRUD services; the resilience layer only
// needs something real to cache and probe.
type Lead struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	TenantID  string    `json:"tenant_id" gorm:"index"`
	OwnerID   string    `json:"owner_id" gorm:"index"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Stage     string    `json:"stage" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Workflow is an automation definition whose runs the job pool executes.
type Workflow struct {
	ID        string     `json:"id" gorm:"primaryKey"`
	TenantID  string     `json:"tenant_id" gorm:"index"`
	OwnerID   string     `json:"owner_id" gorm:"index"`
	Name      string     `json:"name"`
	Active    bool       `json:"active"`
	RunCount  int64      `json:"run_count"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// DashboardSnapshot is what the tiered dashboard cache stores per
// (tier, user, time range).
type DashboardSnapshot struct {
	UserID        string           `json:"user_id"`
	TimeRange     string           `json:"time_range"`
	LeadsByStage  map[string]int64 `json:"leads_by_stage"`
	TotalLeads    int64            `json:"total_leads"`
	WorkflowRuns  int64            `json:"workflow_runs"`
	ComputedAt    time.Time        `json:"computed_at"`
	FromTier      string           `json:"from_tier"`
	FreshnessSecs float64          `json:"freshness_secs"`
}

type SaveLeadRequest struct {
	ID       string `json:"id,omitempty"`
	TenantID string `json:"tenant_id"`
	OwnerID  string `json:"owner_id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Stage    string `json:"stage"`
}

// EmailEventRequest is the transactional email provider webhook payload,
// reduced to what the metrics collector counts.
type EmailEventRequest struct {
	Event     string `json:"event"`
	MessageID string `json:"message_id,omitempty"`
}

type ILeadRepository interface {
	GetByID(ctx context.Context, id string) (*Lead, error)
	ListByOwner(ctx context.Context, ownerID string, filters map[string]string) ([]Lead, error)
	Save(ctx context.Context, lead *Lead) error
	Delete(ctx context.Context, id string) error
	CountByOwnerStage(ctx context.Context, ownerID string) (map[string]int64, error)
}

type IWorkflowRepository interface {
	GetByID(ctx context.Context, id string) (*Workflow, error)
	Save(ctx context.Context, wf *Workflow) error
	MarkRun(ctx context.Context, id string) error
	RunCountByOwner(ctx context.Context, ownerID string) (int64, error)
}
