package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pulsecrm/pulse/crm/domain"
	"github.com/pulsecrm/pulse/pkg/metrics"
)

// GormLeadRepository is the relational leaf the cache wraps. Every query
// reports its outcome and duration to the metrics collector.
type GormLeadRepository struct {
	db        *gorm.DB
	collector *metrics.Collector
}

func NewGormLeadRepository(db *gorm.DB, collector *metrics.Collector) *GormLeadRepository {
	return &GormLeadRepository{db: db, collector: collector}
}

func (r *GormLeadRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.Lead{})
}

func (r *GormLeadRepository) observe(start time.Time, err error) {
	if r.collector != nil {
		r.collector.RecordQuery(time.Since(start), err)
	}
}

func (r *GormLeadRepository) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	start := time.Now()
	var lead domain.Lead
	err := r.db.WithContext(ctx).First(&lead, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		r.observe(start, nil)
		return nil, nil
	}
	r.observe(start, err)
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *GormLeadRepository) ListByOwner(ctx context.Context, ownerID string, filters map[string]string) ([]domain.Lead, error) {
	start := time.Now()
	query := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if stage, ok := filters["stage"]; ok && stage != "" {
		query = query.Where("stage = ?", stage)
	}
	if search, ok := filters["search"]; ok && search != "" {
		query = query.Where("name LIKE ?", "%"+search+"%")
	}

	var leads []domain.Lead
	err := query.Order("updated_at DESC").Limit(200).Find(&leads).Error
	r.observe(start, err)
	return leads, err
}

func (r *GormLeadRepository) Save(ctx context.Context, lead *domain.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	start := time.Now()
	err := r.db.WithContext(ctx).Save(lead).Error
	r.observe(start, err)
	return err
}

func (r *GormLeadRepository) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := r.db.WithContext(ctx).Delete(&domain.Lead{}, "id = ?", id).Error
	r.observe(start, err)
	return err
}

func (r *GormLeadRepository) CountByOwnerStage(ctx context.Context, ownerID string) (map[string]int64, error) {
	start := time.Now()
	type row struct {
		Stage string
		N     int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&domain.Lead{}).
		Select("stage, count(*) as n").
		Where("owner_id = ?", ownerID).
		Group("stage").
		Scan(&rows).Error
	r.observe(start, err)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Stage] = r.N
	}
	return counts, nil
}

// GormWorkflowRepository persists workflow definitions and run bookkeeping.
type GormWorkflowRepository struct {
	db        *gorm.DB
	collector *metrics.Collector
}

func NewGormWorkflowRepository(db *gorm.DB, collector *metrics.Collector) *GormWorkflowRepository {
	return &GormWorkflowRepository{db: db, collector: collector}
}

func (r *GormWorkflowRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.Workflow{})
}

func (r *GormWorkflowRepository) observe(start time.Time, err error) {
	if r.collector != nil {
		r.collector.RecordQuery(time.Since(start), err)
	}
}

func (r *GormWorkflowRepository) GetByID(ctx context.Context, id string) (*domain.Workflow, error) {
	start := time.Now()
	var wf domain.Workflow
	err := r.db.WithContext(ctx).First(&wf, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		r.observe(start, nil)
		return nil, nil
	}
	r.observe(start, err)
	if err != nil {
		return nil, err
	}
	return &wf, nil
}

func (r *GormWorkflowRepository) Save(ctx context.Context, wf *domain.Workflow) error {
	if wf.ID == "" {
		wf.ID = uuid.NewString()
	}
	start := time.Now()
	err := r.db.WithContext(ctx).Save(wf).Error
	r.observe(start, err)
	return err
}

func (r *GormWorkflowRepository) MarkRun(ctx context.Context, id string) error {
	start := time.Now()
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).
		Model(&domain.Workflow{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"run_count":   gorm.Expr("run_count + 1"),
			"last_run_at": now,
		}).Error
	r.observe(start, err)
	return err
}

func (r *GormWorkflowRepository) RunCountByOwner(ctx context.Context, ownerID string) (int64, error) {
	start := time.Now()
	var total int64
	err := r.db.WithContext(ctx).
		Model(&domain.Workflow{}).
		Select("coalesce(sum(run_count), 0)").
		Where("owner_id = ?", ownerID).
		Scan(&total).Error
	r.observe(start, err)
	return total, err
}
