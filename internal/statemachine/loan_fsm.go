package statemachine

import (
	"context"
	"time"

	"github.com/looplab/fsm"

	"github.com/sjperalta/fintera-lending/internal/apperrors"
	"github.com/sjperalta/fintera-lending/internal/models"
)

// Loan lifecycle events
const (
	LoanEventApprove  = "approve"
	LoanEventReject   = "reject"
	LoanEventDisburse = "disburse"
	LoanEventClose    = "close"
)

// LoanFSM wraps a loan with its state machine
type LoanFSM struct {
	loan *models.Loan
	fsm  *fsm.FSM
}

// NewLoanFSM creates a new loan state machine
func NewLoanFSM(loan *models.Loan) *LoanFSM {
	lfsm := &LoanFSM{
		loan: loan,
	}

	lfsm.fsm = fsm.NewFSM(
		string(loan.Status),
		fsm.Events{
			// pending → approved
			{Name: LoanEventApprove, Src: []string{string(models.LoanStatusPending)}, Dst: string(models.LoanStatusApproved)},

			// pending/approved → rejected
			{Name: LoanEventReject, Src: []string{string(models.LoanStatusPending), string(models.LoanStatusApproved)}, Dst: string(models.LoanStatusRejected)},

			// approved → disbursed (approval is mandatory)
			{Name: LoanEventDisburse, Src: []string{string(models.LoanStatusApproved)}, Dst: string(models.LoanStatusDisbursed)},

			// disbursed → closed (every installment paid)
			{Name: LoanEventClose, Src: []string{string(models.LoanStatusDisbursed)}, Dst: string(models.LoanStatusClosed)},
		},
		fsm.Callbacks{},
	)

	return lfsm
}

func (l *LoanFSM) fire(ctx context.Context, event string) error {
	from := l.loan.Status
	if err := l.fsm.Event(ctx, event); err != nil {
		return apperrors.NewStateError("loan", string(from), event)
	}
	l.loan.Status = models.LoanStatus(l.fsm.Current())
	return nil
}

// Approve transitions loan to approved and records the approver
func (l *LoanFSM) Approve(ctx context.Context, userID uint, at time.Time) error {
	if err := l.fire(ctx, LoanEventApprove); err != nil {
		return err
	}
	l.loan.ApprovedAt = &at
	l.loan.ApprovedByUserID = &userID
	return nil
}

// Reject transitions loan to rejected and records the reason
func (l *LoanFSM) Reject(ctx context.Context, userID uint, reason string, at time.Time) error {
	if err := l.fire(ctx, LoanEventReject); err != nil {
		return err
	}
	l.loan.RejectedAt = &at
	l.loan.RejectedByUserID = &userID
	if reason != "" {
		l.loan.RejectionReason = &reason
	}
	return nil
}

// Disburse transitions loan to disbursed. The schedule is persisted by the
// caller in the same transaction as the status change.
func (l *LoanFSM) Disburse(ctx context.Context, at time.Time) error {
	if err := l.fire(ctx, LoanEventDisburse); err != nil {
		return err
	}
	l.loan.DisbursedAt = &at
	return nil
}

// Close transitions loan to closed. unpaid is the number of schedule
// entries not yet paid and must be zero.
func (l *LoanFSM) Close(ctx context.Context, unpaid int64, at time.Time) error {
	if unpaid > 0 {
		return apperrors.NewStateError("loan", string(l.loan.Status), LoanEventClose)
	}
	if err := l.fire(ctx, LoanEventClose); err != nil {
		return err
	}
	l.loan.ClosedAt = &at
	return nil
}

// Current returns the current state
func (l *LoanFSM) Current() string {
	return l.fsm.Current()
}

// Can checks if a transition is possible
func (l *LoanFSM) Can(event string) bool {
	return l.fsm.Can(event)
}

// AvailableTransitions lists the events allowed from the current state
func (l *LoanFSM) AvailableTransitions() []string {
	return l.fsm.AvailableTransitions()
}
