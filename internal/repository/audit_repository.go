package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/sjperalta/fintera-lending/internal/apperrors"
	"github.com/sjperalta/fintera-lending/internal/models"
)

// AuditRepository defines the interface for audit log data access
type AuditRepository interface {
	Create(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, tenantID uint, entity string, entityID uint, limit, offset int) ([]models.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	return apperrors.WrapPersistence("create audit log", r.db.WithContext(ctx).Create(log).Error)
}

func (r *auditRepository) List(ctx context.Context, tenantID uint, entity string, entityID uint, limit, offset int) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64

	db := r.db.WithContext(ctx).Model(&models.AuditLog{}).Where("tenant_id = ?", tenantID)
	if entity != "" {
		db = db.Where("entity = ?", entity)
	}
	if entityID != 0 {
		db = db.Where("entity_id = ?", entityID)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, apperrors.WrapPersistence("count audit logs", err)
	}
	err := db.Order("created_at DESC").Limit(limit).Offset(offset).Find(&logs).Error
	return logs, total, apperrors.WrapPersistence("list audit logs", err)
}
