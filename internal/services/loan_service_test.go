package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/fintera-lending/internal/apperrors"
	"github.com/sjperalta/fintera-lending/internal/events"
	"github.com/sjperalta/fintera-lending/internal/models"
)

func createLoan(t *testing.T, env *testEnv, principal, rate string, term int) *models.Loan {
	t.Helper()
	loan, err := env.svcs.Loan.Create(context.Background(), officer, CreateLoanInput{
		CustomerRef: "  CUST-42 ",
		Principal:   dec(principal),
		AnnualRate:  dec(rate),
		TermMonths:  term,
	})
	require.NoError(t, err)
	return loan
}

func TestLoanService_Create(t *testing.T) {
	env := newTestEnv()
	defer env.worker.Shutdown()

	loan := createLoan(t, env, "25000.00", "18.50", 12)
	assert.Equal(t, models.LoanStatusPending, loan.Status)
	assert.Equal(t, "CUST-42", loan.CustomerRef)
	assert.Equal(t, officer.TenantID, loan.TenantID)
	assert.Len(t, loan.GUID, 36)
	assert.True(t, loan.ApplicationDate.Equal(fixedNow))
	assert.Equal(t, []string{models.AuditActionCreate}, env.audit.actions())
}

func TestLoanService_CreateValidation(t *testing.T) {
	env := newTestEnv()
	defer env.worker.Shutdown()

	tests := []struct {
		name  string
		input CreateLoanInput
		field string
	}{
		{"missing customer", CreateLoanInput{CustomerRef: " ", Principal: dec("100"), AnnualRate: dec("5"), TermMonths: 1}, "customer_ref"},
		{"zero principal", CreateLoanInput{CustomerRef: "c", Principal: dec("0"), AnnualRate: dec("5"), TermMonths: 1}, "principal"},
		{"negative rate", CreateLoanInput{CustomerRef: "c", Principal: dec("100"), AnnualRate: dec("-1"), TermMonths: 1}, "annual_rate"},
		{"zero term", CreateLoanInput{CustomerRef: "c", Principal: dec("100"), AnnualRate: dec("5"), TermMonths: 0}, "term_months"},
		{"sub-cent principal", CreateLoanInput{CustomerRef: "c", Principal: dec("100.001"), AnnualRate: dec("5"), TermMonths: 1}, "principal"},
		{"rate out of range", CreateLoanInput{CustomerRef: "c", Principal: dec("100"), AnnualRate: dec("1000"), TermMonths: 1}, "annual_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svcs.Loan.Create(context.Background(), officer, tt.input)
			var verr *apperrors.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestLoanService_Lifecycle(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	loan := createLoan(t, env, "25000.00", "18.50", 12)

	approved, err := env.svcs.Loan.Approve(ctx, officer, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedByUserID)
	assert.Equal(t, officer.UserID, *approved.ApprovedByUserID)

	disbursed, err := env.svcs.Loan.Disburse(ctx, officer, loan.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusDisbursed, disbursed.Status)
	require.NotNil(t, disbursed.DisbursedAt)
	require.Len(t, disbursed.Schedule, 12)
	assert.Equal(t, "2297.95", disbursed.Schedule[0].Amount.StringFixed(2))
	assert.Equal(t, TotalDue(disbursed.Schedule).StringFixed(2), disbursed.OutstandingBalance.StringFixed(2))

	count, err := env.schedRepo.CountByLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), count)

	env.worker.Shutdown()
	env.publisher.AssertCalled(t, "PublishLoanStatusChanged", mock.Anything, mock.MatchedBy(func(e events.LoanStatusChanged) bool {
		return e.From == "approved" && e.To == "disbursed" && e.LoanID == loan.ID
	}))
	env.publisher.AssertCalled(t, "PublishScheduleGenerated", mock.Anything, mock.MatchedBy(func(e events.ScheduleGenerated) bool {
		return e.Installments == 12 && e.MonthlyPayment == "2297.95" && e.FirstDueDate == "2026-02-01"
	}))
	assert.Equal(t, []string{models.AuditActionCreate, models.AuditActionApprove, models.AuditActionDisburse}, env.audit.actions())
}

func TestLoanService_DisburseRequiresApproval(t *testing.T) {
	env := newTestEnv()
	defer env.worker.Shutdown()
	ctx := context.Background()

	pending := createLoan(t, env, "1000.00", "12.00", 6)
	_, err := env.svcs.Loan.Disburse(ctx, officer, pending.ID, nil)
	var serr *apperrors.StateError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "pending", serr.From)

	rejected := createLoan(t, env, "1000.00", "12.00", 6)
	_, err = env.svcs.Loan.Reject(ctx, officer, rejected.ID, "insufficient income")
	require.NoError(t, err)
	_, err = env.svcs.Loan.Disburse(ctx, officer, rejected.ID, nil)
	assert.ErrorIs(t, err, apperrors.ErrState)

	for _, id := range []uint{pending.ID, rejected.ID} {
		count, err := env.schedRepo.CountByLoan(ctx, id)
		require.NoError(t, err)
		assert.Zero(t, count)
	}
}

func TestLoanService_RejectRecordsReason(t *testing.T) {
	env := newTestEnv()
	defer env.worker.Shutdown()
	ctx := context.Background()
	loan := createLoan(t, env, "1000.00", "12.00", 6)

	_, err := env.svcs.Loan.Approve(ctx, officer, loan.ID)
	require.NoError(t, err)
	rejected, err := env.svcs.Loan.Reject(ctx, officer, loan.ID, " documents missing ")
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "documents missing", *rejected.RejectionReason)

	_, err = env.svcs.Loan.Approve(ctx, officer, loan.ID)
	assert.ErrorIs(t, err, apperrors.ErrState)
}

func TestLoanService_DisburseWithStartDate(t *testing.T) {
	env := newTestEnv()
	defer env.worker.Shutdown()
	ctx := context.Background()
	loan := createLoan(t, env, "1200.00", "0", 3)
	_, err := env.svcs.Loan.Approve(ctx, officer, loan.ID)
	require.NoError(t, err)

	start := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)
	disbursed, err := env.svcs.Loan.Disburse(ctx, officer, loan.ID, &start)
	require.NoError(t, err)

	want := []string{"2026-06-01", "2026-07-01", "2026-08-01"}
	for i, e := range disbursed.Schedule {
		assert.Equal(t, want[i], e.DueDate.Format(models.DateLayout))
		assert.Equal(t, "400.00", e.Amount.StringFixed(2))
	}
}

func TestLoanService_TermsFrozenAfterPending(t *testing.T) {
	env := newTestEnv()
	defer env.worker.Shutdown()
	ctx := context.Background()
	loan := createLoan(t, env, "1000.00", "12.00", 6)

	term := 12
	updated, err := env.svcs.Loan.Update(ctx, officer, loan.ID, UpdateLoanInput{TermMonths: &term})
	require.NoError(t, err)
	assert.Equal(t, 12, updated.TermMonths)

	_, err = env.svcs.Loan.Approve(ctx, officer, loan.ID)
	require.NoError(t, err)

	term = 24
	_, err = env.svcs.Loan.Update(ctx, officer, loan.ID, UpdateLoanInput{TermMonths: &term})
	assert.ErrorIs(t, err, apperrors.ErrState)

	purpose := "working capital"
	updated, err = env.svcs.Loan.Update(ctx, officer, loan.ID, UpdateLoanInput{Purpose: &purpose})
	require.NoError(t, err)
	assert.Equal(t, "working capital", *updated.Purpose)
	assert.Equal(t, 12, updated.TermMonths)
}

func TestLoanService_CloseRequiresAllPaid(t *testing.T) {
	env := newTestEnv()
	defer env.worker.Shutdown()
	ctx := context.Background()
	loan := env.disbursedLoan(ctx, "1200.00", "0", 2)

	_, err := env.svcs.Loan.Close(ctx, officer, loan.ID)
	assert.ErrorIs(t, err, apperrors.ErrState)
	assert.Equal(t, models.LoanStatusDisbursed, env.store.loan(loan.ID).Status)
}

func TestLoanService_TenantIsolation(t *testing.T) {
	env := newTestEnv()
	defer env.worker.Shutdown()
	ctx := context.Background()
	loan := createLoan(t, env, "1000.00", "12.00", 6)

	stranger := models.Actor{UserID: 3, TenantID: 2}
	_, err := env.svcs.Loan.FindByID(ctx, stranger, loan.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = env.svcs.Loan.Approve(ctx, stranger, loan.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.ErrorIs(t, env.svcs.Loan.Delete(ctx, stranger, loan.ID), apperrors.ErrNotFound)

	found, err := env.svcs.Loan.FindByID(ctx, models.Actor{}, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.ID, found.ID)
}

func TestLoanService_DeleteCascadesSchedule(t *testing.T) {
	env := newTestEnv()
	defer env.worker.Shutdown()
	ctx := context.Background()
	loan := env.disbursedLoan(ctx, "1200.00", "0", 12)

	require.NoError(t, env.svcs.Loan.Delete(ctx, officer, loan.ID))
	count, err := env.schedRepo.CountByLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = env.svcs.Loan.FindByID(ctx, officer, loan.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
