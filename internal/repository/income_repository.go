package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sjperalta/fintera-lending/internal/apperrors"
	"github.com/sjperalta/fintera-lending/internal/models"
)

// IncomeRepository defines the interface for income ledger data access
type IncomeRepository interface {
	Create(ctx context.Context, record *models.IncomeRecord) error
	FindByScheduleEntry(ctx context.Context, entryID uint) ([]models.IncomeRecord, error)
	List(ctx context.Context, query *IncomeQuery) ([]models.IncomeRecord, int64, error)
	Total(ctx context.Context, query *IncomeQuery) (decimal.Decimal, error)
}

// IncomeQuery extends ListQuery with ledger filters. Zero dates are open bounds.
type IncomeQuery struct {
	*ListQuery
	TenantID uint
	LoanID   uint
	Category string
	From     time.Time
	To       time.Time
}

var incomeSortable = map[string]bool{
	"date":       true,
	"amount":     true,
	"created_at": true,
}

type incomeRepository struct {
	db *gorm.DB
}

// NewIncomeRepository creates a new income repository
func NewIncomeRepository(db *gorm.DB) IncomeRepository {
	return &incomeRepository{db: db}
}

func (r *incomeRepository) Create(ctx context.Context, record *models.IncomeRecord) error {
	return apperrors.WrapPersistence("create income", r.db.WithContext(ctx).Create(record).Error)
}

func (r *incomeRepository) FindByScheduleEntry(ctx context.Context, entryID uint) ([]models.IncomeRecord, error) {
	var records []models.IncomeRecord
	err := r.db.WithContext(ctx).
		Where("schedule_entry_id = ?", entryID).
		Order("date ASC, created_at ASC").
		Find(&records).Error
	return records, apperrors.WrapPersistence("find income", err)
}

func (r *incomeRepository) filtered(ctx context.Context, query *IncomeQuery) *gorm.DB {
	db := r.db.WithContext(ctx).Model(&models.IncomeRecord{}).Where("tenant_id = ?", query.TenantID)
	if query.LoanID != 0 {
		db = db.Where("loan_id = ?", query.LoanID)
	}
	if query.Category != "" {
		db = db.Where("category = ?", query.Category)
	}
	if !query.From.IsZero() {
		db = db.Where("date >= ?", query.From)
	}
	if !query.To.IsZero() {
		db = db.Where("date <= ?", query.To)
	}
	return db
}

func (r *incomeRepository) List(ctx context.Context, query *IncomeQuery) ([]models.IncomeRecord, int64, error) {
	var records []models.IncomeRecord
	var total int64

	db := r.filtered(ctx, query)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, apperrors.WrapPersistence("count income", err)
	}
	if err := query.paginate(db, incomeSortable, "date DESC, id DESC").Find(&records).Error; err != nil {
		return nil, 0, apperrors.WrapPersistence("list income", err)
	}
	return records, total, nil
}

// Total sums the amounts matching the query filters
func (r *incomeRepository) Total(ctx context.Context, query *IncomeQuery) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := r.filtered(ctx, query).Select("COALESCE(SUM(amount), 0) AS total").Scan(&result).Error
	if err != nil {
		return decimal.Zero, apperrors.WrapPersistence("sum income", err)
	}
	return result.Total, nil
}
