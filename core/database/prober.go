package database

import (
	"context"

	"gorm.io/gorm"
)

// GormProber satisfies reliability/domain.DatabaseProber with a minimal read
// against the relational data service.
type GormProber struct {
	db *gorm.DB
}

func NewGormProber(db *gorm.DB) *GormProber {
	return &GormProber{db: db}
}

// Probe issues the cheapest possible query. Any error means the data layer is
// unreachable or refusing work.
func (p *GormProber) Probe(ctx context.Context) error {
	var one int
	return p.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error
}
