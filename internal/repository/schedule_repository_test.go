package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/fintera-lending/internal/apperrors"
	"github.com/sjperalta/fintera-lending/internal/models"
)

const (
	lockEntrySQL    = `SELECT \* FROM "payment_schedules" WHERE "payment_schedules"\."id" = \$1 ORDER BY "payment_schedules"\."id" LIMIT .+ FOR UPDATE`
	saveEntrySQL    = `UPDATE "payment_schedules" SET .* WHERE .*"id" = \$\d+`
	insertIncomeSQL = `INSERT INTO "income_records" .* ON CONFLICT \("schedule_entry_id"\) DO NOTHING RETURNING "id"`
)

func entryRow(id, loanID uint, status models.ScheduleStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "loan_id", "installment_number", "amount", "principal_portion", "interest_portion", "remaining_balance", "status"}).
		AddRow(id, loanID, 1, "110.00", "100.00", "10.00", "0.00", string(status))
}

// payInFull settles the entry and recognizes its interest
func payInFull(loan *models.Loan, entry *models.PaymentScheduleEntry) (*models.IncomeRecord, error) {
	entry.Status = models.ScheduleStatusPaid
	paid := entry.Amount
	entry.PaidAmount = &paid
	entryID, loanID := entry.ID, loan.ID
	return &models.IncomeRecord{
		TenantID:        loan.TenantID,
		ScheduleEntryID: &entryID,
		LoanID:          &loanID,
		Category:        models.IncomeCategoryLoanInterest,
		Amount:          entry.InterestPortion,
		Description:     models.InterestIncomeDescription(entry, loan.TermMonths),
	}, nil
}

func TestScheduleRepository_ApplyPaymentLocksAndRecomputes(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewScheduleRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockEntrySQL).WithArgs(21, 1).WillReturnRows(entryRow(21, 5, models.ScheduleStatusPending))
	mock.ExpectQuery(lockLoanSQL).WithArgs(5, 1).WillReturnRows(loanRow(5, models.LoanStatusDisbursed))
	mock.ExpectExec(saveEntrySQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(insertIncomeSQL).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(31))
	mock.ExpectQuery(recomputeSQL).
		WithArgs(string(models.ScheduleStatusPaid), sqlmock.AnyArg(), 5).
		WillReturnRows(sqlmock.NewRows([]string{"outstanding_balance"}).AddRow("0.00"))
	mock.ExpectCommit()

	entry, income, err := repo.ApplyPayment(context.Background(), 21, payInFull)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleStatusPaid, entry.Status)
	assert.Equal(t, "110.00", entry.PaidAmount.StringFixed(2))
	require.NotNil(t, income)
	assert.Equal(t, uint(31), income.ID)
	assert.Equal(t, "10.00", income.Amount.StringFixed(2))
}

func TestScheduleRepository_ApplyPaymentConflictEmitsNoIncome(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewScheduleRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockEntrySQL).WillReturnRows(entryRow(21, 5, models.ScheduleStatusPending))
	mock.ExpectQuery(lockLoanSQL).WillReturnRows(loanRow(5, models.LoanStatusDisbursed))
	mock.ExpectExec(saveEntrySQL).WillReturnResult(sqlmock.NewResult(0, 1))
	// the income row already exists, DO NOTHING returns no id
	mock.ExpectQuery(insertIncomeSQL).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(recomputeSQL).WillReturnRows(sqlmock.NewRows([]string{"outstanding_balance"}).AddRow("0.00"))
	mock.ExpectCommit()

	entry, income, err := repo.ApplyPayment(context.Background(), 21, payInFull)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleStatusPaid, entry.Status)
	assert.Nil(t, income)
}

func TestScheduleRepository_ApplyPaymentCallbackErrorRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewScheduleRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockEntrySQL).WillReturnRows(entryRow(21, 5, models.ScheduleStatusPaid))
	mock.ExpectQuery(lockLoanSQL).WillReturnRows(loanRow(5, models.LoanStatusDisbursed))
	mock.ExpectRollback()

	_, _, err := repo.ApplyPayment(context.Background(), 21, func(loan *models.Loan, entry *models.PaymentScheduleEntry) (*models.IncomeRecord, error) {
		return nil, apperrors.ErrEntryAlreadyPaid
	})
	assert.ErrorIs(t, err, apperrors.ErrEntryAlreadyPaid)
}

func TestScheduleRepository_ApplyPaymentSaveFailureRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewScheduleRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockEntrySQL).WillReturnRows(entryRow(21, 5, models.ScheduleStatusPending))
	mock.ExpectQuery(lockLoanSQL).WillReturnRows(loanRow(5, models.LoanStatusDisbursed))
	mock.ExpectExec(saveEntrySQL).WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	entry, income, err := repo.ApplyPayment(context.Background(), 21, payInFull)
	assert.ErrorIs(t, err, apperrors.ErrPersistence)
	assert.Nil(t, entry)
	assert.Nil(t, income)
}

func TestScheduleRepository_ApplyPaymentUnknownEntry(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewScheduleRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockEntrySQL).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, _, err := repo.ApplyPayment(context.Background(), 21, payInFull)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestScheduleRepository_CreateSchedulesSetsBalanceInTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewScheduleRepository(db)
	_, entries := disbursableLoan(5)

	mock.ExpectBegin()
	mock.ExpectQuery(lockLoanSQL).WithArgs(5, 1).WillReturnRows(loanRow(5, models.LoanStatusDisbursed))
	mock.ExpectQuery(countScheduleSQL).WithArgs(5).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(insertSchedSQL).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11).AddRow(12))
	mock.ExpectQuery(recomputeSQL).
		WithArgs(string(models.ScheduleStatusPaid), sqlmock.AnyArg(), 5).
		WillReturnRows(sqlmock.NewRows([]string{"outstanding_balance"}).AddRow("1200.00"))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateSchedules(context.Background(), 5, entries))
	assert.Equal(t, uint(5), entries[1].LoanID)
}

func TestScheduleRepository_CreateSchedulesRefusesExisting(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewScheduleRepository(db)
	_, entries := disbursableLoan(5)

	mock.ExpectBegin()
	mock.ExpectQuery(lockLoanSQL).WillReturnRows(loanRow(5, models.LoanStatusDisbursed))
	mock.ExpectQuery(countScheduleSQL).WithArgs(5).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectRollback()

	err := repo.CreateSchedules(context.Background(), 5, entries)
	assert.ErrorIs(t, err, apperrors.ErrScheduleExists)
	assert.ErrorIs(t, err, apperrors.ErrState)
}
