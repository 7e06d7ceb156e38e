package application

import (
	"context"

	cacheapp "github.com/pulsecrm/pulse/cache/application"
	cachedomain "github.com/pulsecrm/pulse/cache/domain"
	"github.com/pulsecrm/pulse/crm/domain"
)

// LeadService is a read-through cached facade over the lead repository.
// Handlers call it unconditionally; whether a cache sits in front is the
// cache service's concern.
type LeadService struct {
	repo  domain.ILeadRepository
	cache *cacheapp.Service
}

func NewLeadService(repo domain.ILeadRepository, cache *cacheapp.Service) *LeadService {
	return &LeadService{repo: repo, cache: cache}
}

func (s *LeadService) GetLead(ctx context.Context, id string) (*domain.Lead, error) {
	var cached domain.Lead
	if s.cache.GetRecord(ctx, cachedomain.EntityLead, id, &cached) {
		return &cached, nil
	}

	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// Absence is not cached, so a lead created moments later is visible
	// immediately.
	if lead != nil {
		s.cache.SetRecord(ctx, cachedomain.EntityLead, id, lead)
	}
	return lead, nil
}

func (s *LeadService) ListLeads(ctx context.Context, ownerID string, filters map[string]string) ([]domain.Lead, error) {
	var cached []domain.Lead
	if s.cache.GetList(ctx, cachedomain.EntityLead, ownerID, filters, &cached) {
		return cached, nil
	}

	leads, err := s.repo.ListByOwner(ctx, ownerID, filters)
	if err != nil {
		return nil, err
	}
	s.cache.SetList(ctx, cachedomain.EntityLead, ownerID, filters, leads)
	return leads, nil
}

// SaveLead writes through and invalidates everything the mutation could have
// made stale: the record, the owner's cached lists, and every dashboard tier.
func (s *LeadService) SaveLead(ctx context.Context, lead *domain.Lead) error {
	if err := s.repo.Save(ctx, lead); err != nil {
		return err
	}
	s.cache.InvalidateRecord(ctx, cachedomain.EntityLead, lead.ID)
	s.cache.InvalidateOwnerLists(ctx, cachedomain.EntityLead, lead.OwnerID)
	s.cache.InvalidateUserDashboard(ctx, lead.OwnerID)
	return nil
}

func (s *LeadService) DeleteLead(ctx context.Context, id string) error {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.InvalidateRecord(ctx, cachedomain.EntityLead, id)
	if lead != nil {
		s.cache.InvalidateOwnerLists(ctx, cachedomain.EntityLead, lead.OwnerID)
		s.cache.InvalidateUserDashboard(ctx, lead.OwnerID)
	}
	return nil
}
