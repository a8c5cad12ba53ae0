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

// PaymentFunc mutates a locked schedule entry and returns the income record
// to emit, or nil when the payment recognizes no income.
type PaymentFunc func(loan *models.Loan, entry *models.PaymentScheduleEntry) (*models.IncomeRecord, error)

// ScheduleRepository defines the interface for payment schedule data access
type ScheduleRepository interface {
	CreateSchedules(ctx context.Context, loanID uint, entries []models.PaymentScheduleEntry) error
	FindByID(ctx context.Context, id uint) (*models.PaymentScheduleEntry, error)
	FindByLoan(ctx context.Context, loanID uint) ([]models.PaymentScheduleEntry, error)
	CountByLoan(ctx context.Context, loanID uint) (int64, error)
	CountUnpaid(ctx context.Context, loanID uint) (int64, error)
	ApplyPayment(ctx context.Context, entryID uint, fn PaymentFunc) (*models.PaymentScheduleEntry, *models.IncomeRecord, error)
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

type scheduleRepository struct {
	db *gorm.DB
}

// NewScheduleRepository creates a new schedule repository
func NewScheduleRepository(db *gorm.DB) ScheduleRepository {
	return &scheduleRepository{db: db}
}

// CreateSchedules persists a full schedule for a loan, or nothing if one exists
func (r *scheduleRepository) CreateSchedules(ctx context.Context, loanID uint, entries []models.PaymentScheduleEntry) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var loan models.Loan
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&loan, loanID).Error; err != nil {
			return translate("lock loan", "loan", loanID, err)
		}
		if err := insertSchedule(tx, loanID, entries); err != nil {
			return err
		}
		_, err := recomputeOutstanding(tx, loanID)
		return err
	})
	return apperrors.WrapPersistence("create schedule", err)
}

func (r *scheduleRepository) FindByID(ctx context.Context, id uint) (*models.PaymentScheduleEntry, error) {
	var entry models.PaymentScheduleEntry
	if err := r.db.WithContext(ctx).First(&entry, id).Error; err != nil {
		return nil, translate("find schedule entry", "schedule entry", id, err)
	}
	return &entry, nil
}

func (r *scheduleRepository) FindByLoan(ctx context.Context, loanID uint) ([]models.PaymentScheduleEntry, error) {
	var entries []models.PaymentScheduleEntry
	err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("installment_number ASC").
		Find(&entries).Error
	return entries, apperrors.WrapPersistence("list schedule", err)
}

func (r *scheduleRepository) CountByLoan(ctx context.Context, loanID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PaymentScheduleEntry{}).Where("loan_id = ?", loanID).Count(&count).Error
	return count, apperrors.WrapPersistence("count schedule", err)
}

func (r *scheduleRepository) CountUnpaid(ctx context.Context, loanID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PaymentScheduleEntry{}).
		Where("loan_id = ? AND status <> ?", loanID, models.ScheduleStatusPaid).
		Count(&count).Error
	return count, apperrors.WrapPersistence("count unpaid schedule", err)
}

// outstandingSQL recomputes a loan's cached balance from its unpaid entries
// in one statement, so concurrent writers can never interleave a read and a write.
const outstandingSQL = `UPDATE loans SET outstanding_balance = (
	SELECT COALESCE(SUM(GREATEST(ps.amount - COALESCE(ps.paid_amount, 0), 0)), 0)
	FROM payment_schedules ps
	WHERE ps.loan_id = loans.id AND ps.status <> ?
), updated_at = ? WHERE id = ? RETURNING outstanding_balance`

// recomputeOutstanding must run inside tx after the loan row is locked
func recomputeOutstanding(tx *gorm.DB, loanID uint) (decimal.Decimal, error) {
	var row struct {
		OutstandingBalance decimal.Decimal
	}
	err := tx.Raw(outstandingSQL, models.ScheduleStatusPaid, time.Now(), loanID).Scan(&row).Error
	return row.OutstandingBalance, err
}

// ApplyPayment serializes payments on one entry. The entry row and then its
// loan row are locked for the duration of fn, the mutated entry is saved, the
// returned income record is inserted at most once per entry, and the loan's
// outstanding balance is recomputed before commit.
func (r *scheduleRepository) ApplyPayment(ctx context.Context, entryID uint, fn PaymentFunc) (*models.PaymentScheduleEntry, *models.IncomeRecord, error) {
	var (
		entry  models.PaymentScheduleEntry
		income *models.IncomeRecord
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&entry, entryID).Error; err != nil {
			return translate("lock schedule entry", "schedule entry", entryID, err)
		}

		var loan models.Loan
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&loan, entry.LoanID).Error; err != nil {
			return translate("lock loan", "loan", entry.LoanID, err)
		}

		rec, err := fn(&loan, &entry)
		if err != nil {
			return err
		}

		if err := tx.Omit(clause.Associations).Save(&entry).Error; err != nil {
			return err
		}

		if rec != nil {
			result := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "schedule_entry_id"}},
				DoNothing: true,
			}).Create(rec)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected > 0 {
				income = rec
			}
		}

		_, err = recomputeOutstanding(tx, entry.LoanID)
		return err
	})
	if err != nil {
		return nil, nil, apperrors.WrapPersistence("apply payment", err)
	}
	return &entry, income, nil
}

// MarkOverdue flags every unpaid entry due before asOf in a single statement
func (r *scheduleRepository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentScheduleEntry{}).
		Where("status IN ? AND due_date < ?", []models.ScheduleStatus{models.ScheduleStatusPending, models.ScheduleStatusPartial}, asOf).
		Updates(map[string]interface{}{
			"status":     models.ScheduleStatusOverdue,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, apperrors.WrapPersistence("mark overdue", result.Error)
	}
	return result.RowsAffected, nil
}
