package services

import (
	"context"

	"github.com/sjperalta/fintera-lending/internal/models"
	"github.com/sjperalta/fintera-lending/internal/repository"
	"github.com/sjperalta/fintera-lending/pkg/logger"
)

type AuditService struct {
	repo repository.AuditRepository
}

func NewAuditService(repo repository.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Log records an audit entry. Failures are logged and never fail the caller.
func (s *AuditService) Log(ctx context.Context, actor models.Actor, action, entity string, entityID uint, details string) {
	entry := &models.AuditLog{
		TenantID:  actor.TenantID,
		UserID:    actor.UserID,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Details:   details,
		IPAddress: actor.IP,
		UserAgent: actor.UserAgent,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		logger.Error("Failed to write audit log", "action", action, "entity", entity, "entity_id", entityID, "error", err)
	}
}

// List retrieves audit logs for an entity, newest first
func (s *AuditService) List(ctx context.Context, tenantID uint, entity string, entityID uint, limit, offset int) ([]models.AuditLog, int64, error) {
	return s.repo.List(ctx, tenantID, entity, entityID, limit, offset)
}
