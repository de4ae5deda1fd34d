package store

import (
	"context"
	"fmt"
	"maps"
	"time"

	"echo.app/relay/internal/model"
	"github.com/patrickmn/go-cache"
)

// CachedIntegrationStore serves integration reads from a short-lived in-process
// cache. Writes go through to the wrapped store and evict the organization's entries.
type CachedIntegrationStore struct {
	next  IntegrationStore
	cache *cache.Cache
}

func NewCachedIntegrationStore(next IntegrationStore, ttl time.Duration) *CachedIntegrationStore {
	return &CachedIntegrationStore{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func orgKey(orgID int64) string { return fmt.Sprintf("org:%d", orgID) }
func idKey(id int64) string     { return fmt.Sprintf("id:%d", id) }

func (s *CachedIntegrationStore) GetByID(ctx context.Context, id int64) (*model.Integration, error) {
	if data, found := s.cache.Get(idKey(id)); found {
		return copyIntegration(data.(*model.Integration)), nil
	}
	integration, err := s.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.put(integration)
	return copyIntegration(integration), nil
}

func (s *CachedIntegrationStore) GetByOrganization(ctx context.Context, orgID int64) (*model.Integration, error) {
	if data, found := s.cache.Get(orgKey(orgID)); found {
		return copyIntegration(data.(*model.Integration)), nil
	}
	integration, err := s.next.GetByOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	s.put(integration)
	return copyIntegration(integration), nil
}

func (s *CachedIntegrationStore) Upsert(ctx context.Context, integration *model.Integration) error {
	s.evictOrganization(integration.OrganizationID)
	s.cache.Delete(idKey(integration.ID))
	if err := s.next.Upsert(ctx, integration); err != nil {
		return err
	}
	s.evictOrganization(integration.OrganizationID)
	s.cache.Delete(idKey(integration.ID))
	return nil
}

func (s *CachedIntegrationStore) DeleteByOrganization(ctx context.Context, orgID int64) error {
	s.evictOrganization(orgID)
	return s.next.DeleteByOrganization(ctx, orgID)
}

// Invalidate drops every cached entry for the organization.
func (s *CachedIntegrationStore) Invalidate(orgID int64) {
	s.evictOrganization(orgID)
}

func (s *CachedIntegrationStore) put(integration *model.Integration) {
	stored := copyIntegration(integration)
	s.cache.Set(orgKey(stored.OrganizationID), stored, cache.DefaultExpiration)
	s.cache.Set(idKey(stored.ID), stored, cache.DefaultExpiration)
}

func (s *CachedIntegrationStore) evictOrganization(orgID int64) {
	if data, found := s.cache.Get(orgKey(orgID)); found {
		s.cache.Delete(idKey(data.(*model.Integration).ID))
	}
	s.cache.Delete(orgKey(orgID))
}

func copyIntegration(in *model.Integration) *model.Integration {
	out := *in
	out.TriggerStatuses = append([]model.FeedbackStatus(nil), in.TriggerStatuses...)
	out.StatusMapping = maps.Clone(in.StatusMapping)
	out.LabelMapping.Type = maps.Clone(in.LabelMapping.Type)
	out.LabelMapping.Priority = maps.Clone(in.LabelMapping.Priority)
	return &out
}
