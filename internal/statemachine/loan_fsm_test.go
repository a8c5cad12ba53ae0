package statemachine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/fintera-lending/internal/apperrors"
	"github.com/sjperalta/fintera-lending/internal/models"
)

var now = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func TestLoanFSM_HappyPath(t *testing.T) {
	ctx := context.Background()
	loan := &models.Loan{Status: models.LoanStatusPending}
	lfsm := NewLoanFSM(loan)

	require.NoError(t, lfsm.Approve(ctx, 7, now))
	assert.Equal(t, models.LoanStatusApproved, loan.Status)
	require.NotNil(t, loan.ApprovedByUserID)
	assert.Equal(t, uint(7), *loan.ApprovedByUserID)
	assert.Equal(t, now, *loan.ApprovedAt)

	require.NoError(t, lfsm.Disburse(ctx, now))
	assert.Equal(t, models.LoanStatusDisbursed, loan.Status)
	assert.Equal(t, now, *loan.DisbursedAt)

	require.NoError(t, lfsm.Close(ctx, 0, now))
	assert.Equal(t, models.LoanStatusClosed, loan.Status)
	assert.NotNil(t, loan.ClosedAt)
}

func TestLoanFSM_Reject(t *testing.T) {
	for _, from := range []models.LoanStatus{models.LoanStatusPending, models.LoanStatusApproved} {
		t.Run(string(from), func(t *testing.T) {
			loan := &models.Loan{Status: from}
			require.NoError(t, NewLoanFSM(loan).Reject(context.Background(), 3, "insufficient income", now))
			assert.Equal(t, models.LoanStatusRejected, loan.Status)
			assert.Equal(t, "insufficient income", *loan.RejectionReason)
			assert.Equal(t, uint(3), *loan.RejectedByUserID)
		})
	}
}

func TestLoanFSM_InvalidTransitions(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		from  models.LoanStatus
		event func(*LoanFSM) error
	}{
		{"pending cannot disburse without approval", models.LoanStatusPending, func(f *LoanFSM) error { return f.Disburse(ctx, now) }},
		{"rejected cannot disburse", models.LoanStatusRejected, func(f *LoanFSM) error { return f.Disburse(ctx, now) }},
		{"rejected cannot approve", models.LoanStatusRejected, func(f *LoanFSM) error { return f.Approve(ctx, 1, now) }},
		{"disbursed cannot reject", models.LoanStatusDisbursed, func(f *LoanFSM) error { return f.Reject(ctx, 1, "", now) }},
		{"closed cannot disburse", models.LoanStatusClosed, func(f *LoanFSM) error { return f.Disburse(ctx, now) }},
		{"approved cannot close", models.LoanStatusApproved, func(f *LoanFSM) error { return f.Close(ctx, 0, now) }},
		{"disbursed cannot disburse twice", models.LoanStatusDisbursed, func(f *LoanFSM) error { return f.Disburse(ctx, now) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loan := &models.Loan{Status: tt.from}
			err := tt.event(NewLoanFSM(loan))
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrState))

			var serr *apperrors.StateError
			require.True(t, errors.As(err, &serr))
			assert.Equal(t, string(tt.from), serr.From)
			assert.Equal(t, tt.from, loan.Status, "status must not change")
		})
	}
}

func TestLoanFSM_CloseRequiresAllPaid(t *testing.T) {
	loan := &models.Loan{Status: models.LoanStatusDisbursed}
	err := NewLoanFSM(loan).Close(context.Background(), 2, now)
	assert.True(t, errors.Is(err, apperrors.ErrState))
	assert.Equal(t, models.LoanStatusDisbursed, loan.Status)
	assert.Nil(t, loan.ClosedAt)
}

func TestLoanFSM_AvailableTransitions(t *testing.T) {
	lfsm := NewLoanFSM(&models.Loan{Status: models.LoanStatusApproved})
	assert.ElementsMatch(t, []string{LoanEventReject, LoanEventDisburse}, lfsm.AvailableTransitions())
	assert.True(t, lfsm.Can(LoanEventDisburse))
	assert.False(t, lfsm.Can(LoanEventApprove))
}
