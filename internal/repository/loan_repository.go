package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sjperalta/fintera-lending/internal/apperrors"
	"github.com/sjperalta/fintera-lending/internal/models"
)

// LoanRepository defines the interface for loan data access
type LoanRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Loan, error)
	FindByIDWithSchedule(ctx context.Context, id uint) (*models.Loan, error)
	List(ctx context.Context, query *LoanQuery) ([]models.Loan, int64, error)
	Create(ctx context.Context, loan *models.Loan) error
	Update(ctx context.Context, loan *models.Loan) error
	Delete(ctx context.Context, id uint) error
	Transition(ctx context.Context, loan *models.Loan, from models.LoanStatus) error
	Disburse(ctx context.Context, loan *models.Loan, entries []models.PaymentScheduleEntry) error
	RecomputeOutstandingBalance(ctx context.Context, id uint) (decimal.Decimal, error)
	FindDisbursedWithoutSchedule(ctx context.Context, afterID uint, limit int) ([]models.Loan, error)
}

// LoanQuery extends ListQuery with loan-specific filters
type LoanQuery struct {
	*ListQuery
	TenantID    uint
	Status      string
	CustomerRef string
}

var loanSortable = map[string]bool{
	"created_at":       true,
	"application_date": true,
	"principal":        true,
	"status":           true,
	"disbursed_at":     true,
}

type loanRepository struct {
	db *gorm.DB
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) FindByID(ctx context.Context, id uint) (*models.Loan, error) {
	var loan models.Loan
	if err := r.db.WithContext(ctx).First(&loan, id).Error; err != nil {
		return nil, translate("find loan", "loan", id, err)
	}
	return &loan, nil
}

func (r *loanRepository) FindByIDWithSchedule(ctx context.Context, id uint) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).
		Preload("Schedule", func(db *gorm.DB) *gorm.DB {
			return db.Order("installment_number ASC")
		}).
		First(&loan, id).Error
	if err != nil {
		return nil, translate("find loan", "loan", id, err)
	}
	return &loan, nil
}

func (r *loanRepository) List(ctx context.Context, query *LoanQuery) ([]models.Loan, int64, error) {
	var loans []models.Loan
	var total int64

	db := r.db.WithContext(ctx).Model(&models.Loan{}).Where("tenant_id = ?", query.TenantID)

	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}
	if query.CustomerRef != "" {
		db = db.Where("customer_ref = ?", query.CustomerRef)
	}
	if query.Search != "" {
		search := "%" + query.Search + "%"
		db = db.Where("customer_ref ILIKE ? OR purpose ILIKE ? OR guid ILIKE ?", search, search, search)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, apperrors.WrapPersistence("count loans", err)
	}

	if err := query.paginate(db, loanSortable, "created_at DESC").Find(&loans).Error; err != nil {
		return nil, 0, apperrors.WrapPersistence("list loans", err)
	}
	return loans, total, nil
}

func (r *loanRepository) Create(ctx context.Context, loan *models.Loan) error {
	return apperrors.WrapPersistence("create loan", r.db.WithContext(ctx).Create(loan).Error)
}

func (r *loanRepository) Update(ctx context.Context, loan *models.Loan) error {
	return apperrors.WrapPersistence("update loan", r.db.WithContext(ctx).Omit(clause.Associations).Save(loan).Error)
}

// Delete removes a loan. Schedule entries go with it through the cascading foreign key.
func (r *loanRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Loan{}, id)
	if result.Error != nil {
		return apperrors.WrapPersistence("delete loan", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("loan", id)
	}
	return nil
}

// Transition saves a status change only if the stored status still equals from
func (r *loanRepository) Transition(ctx context.Context, loan *models.Loan, from models.LoanStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("id = ? AND status = ?", loan.ID, from).
		Updates(map[string]interface{}{
			"status":              loan.Status,
			"approved_at":         loan.ApprovedAt,
			"approved_by_user_id": loan.ApprovedByUserID,
			"rejected_at":         loan.RejectedAt,
			"rejected_by_user_id": loan.RejectedByUserID,
			"rejection_reason":    loan.RejectionReason,
			"closed_at":           loan.ClosedAt,
			"updated_at":          time.Now(),
		})
	if result.Error != nil {
		return apperrors.WrapPersistence("transition loan", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrStaleState
	}
	return nil
}

// Disburse moves an approved loan to disbursed and persists its schedule in
// one transaction. Either both happen or neither does.
func (r *loanRepository) Disburse(ctx context.Context, loan *models.Loan, entries []models.PaymentScheduleEntry) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked models.Loan
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&locked, loan.ID).Error; err != nil {
			return translate("lock loan", "loan", loan.ID, err)
		}
		if locked.Status != models.LoanStatusApproved {
			return apperrors.NewStateError("loan", string(locked.Status), "disburse")
		}

		if err := insertSchedule(tx, loan.ID, entries); err != nil {
			return err
		}

		return tx.Model(&models.Loan{}).
			Where("id = ? AND status = ?", loan.ID, models.LoanStatusApproved).
			Updates(map[string]interface{}{
				"status":              loan.Status,
				"disbursed_at":        loan.DisbursedAt,
				"start_date":          loan.StartDate,
				"outstanding_balance": loan.OutstandingBalance,
				"updated_at":          time.Now(),
			}).Error
	})
	return apperrors.WrapPersistence("disburse loan", err)
}

// RecomputeOutstandingBalance derives the stored balance from the schedule
// under the loan row lock and returns the new value
func (r *loanRepository) RecomputeOutstandingBalance(ctx context.Context, id uint) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked models.Loan
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&locked, id).Error; err != nil {
			return translate("lock loan", "loan", id, err)
		}
		var err error
		balance, err = recomputeOutstanding(tx, id)
		return err
	})
	if err != nil {
		return decimal.Zero, apperrors.WrapPersistence("recompute outstanding balance", err)
	}
	return balance, nil
}

// insertSchedule writes entries for a loan whose row is already locked by tx.
// It refuses to write when any entry exists for the loan.
func insertSchedule(tx *gorm.DB, loanID uint, entries []models.PaymentScheduleEntry) error {
	var existing int64
	if err := tx.Model(&models.PaymentScheduleEntry{}).Where("loan_id = ?", loanID).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return apperrors.ErrScheduleExists
	}
	for i := range entries {
		entries[i].LoanID = loanID
	}
	return tx.CreateInBatches(entries, 100).Error
}

// FindDisbursedWithoutSchedule pages through disbursed loans of every tenant
// that have no schedule rows, ordered by id
func (r *loanRepository) FindDisbursedWithoutSchedule(ctx context.Context, afterID uint, limit int) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.db.WithContext(ctx).
		Where("status = ? AND id > ?", models.LoanStatusDisbursed, afterID).
		Where("NOT EXISTS (SELECT 1 FROM payment_schedules ps WHERE ps.loan_id = loans.id)").
		Order("id").
		Limit(limit).
		Find(&loans).Error
	if err != nil {
		return nil, apperrors.WrapPersistence("find loans without schedule", err)
	}
	return loans, nil
}
