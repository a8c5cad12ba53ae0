package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sjperalta/fintera-lending/internal/apperrors"
	"github.com/sjperalta/fintera-lending/internal/events"
	"github.com/sjperalta/fintera-lending/internal/jobs"
	"github.com/sjperalta/fintera-lending/internal/metrics"
	"github.com/sjperalta/fintera-lending/internal/models"
	"github.com/sjperalta/fintera-lending/internal/repository"
	"github.com/sjperalta/fintera-lending/internal/statemachine"
	"github.com/sjperalta/fintera-lending/pkg/logger"
)

// PaymentInput is one payment recorded against a schedule entry
type PaymentInput struct {
	ScheduleEntryID uint
	Amount          decimal.Decimal
	PaymentDate     time.Time
	Actor           models.Actor
}

// ReconciliationResult reports the entry after the payment and the income it
// recognized, if any
type ReconciliationResult struct {
	Entry         *models.PaymentScheduleEntry `json:"entry"`
	IncomeEmitted bool                         `json:"income_emitted"`
	Income        *models.IncomeRecord         `json:"income,omitempty"`
	Overpayment   decimal.Decimal              `json:"overpayment"`
}

// Transition describes how a payment moved an entry
type Transition struct {
	Previous   models.ScheduleStatus
	Current    models.ScheduleStatus
	BecamePaid bool
}

// Reconcile applies amount to entry in memory. The cumulative paid amount
// settles the entry once it covers the installment; anything beyond is kept
// on the entry as overpayment. Paid entries accept no further payments.
func Reconcile(ctx context.Context, entry *models.PaymentScheduleEntry, amount decimal.Decimal, date time.Time) (Transition, error) {
	if !amount.IsPositive() {
		return Transition{}, apperrors.NewValidationError("amount", "must be greater than zero")
	}

	t := Transition{Previous: entry.Status}
	if entry.IsPaid() {
		return t, apperrors.ErrEntryAlreadyPaid
	}

	cumulative := entry.Paid().Add(amount)
	sfsm := statemachine.NewScheduleEntryFSM(entry)

	if cumulative.GreaterThanOrEqual(entry.Amount) {
		if err := sfsm.Settle(ctx); err != nil {
			return t, err
		}
		paidDate := date
		entry.PaidDate = &paidDate
	} else if err := sfsm.PayPartial(ctx); err != nil {
		return t, err
	}

	entry.PaidAmount = &cumulative
	t.Current = entry.Status
	t.BecamePaid = t.Previous != models.ScheduleStatusPaid && t.Current == models.ScheduleStatusPaid
	return t, nil
}

// InterestIncome builds the ledger record for an entry that just became paid.
// It returns nil when the installment carries no interest.
func InterestIncome(loan *models.Loan, entry *models.PaymentScheduleEntry) *models.IncomeRecord {
	if !entry.InterestPortion.IsPositive() || entry.PaidDate == nil {
		return nil
	}
	entryID := entry.ID
	loanID := loan.ID
	return &models.IncomeRecord{
		TenantID:        loan.TenantID,
		ScheduleEntryID: &entryID,
		LoanID:          &loanID,
		Category:        models.IncomeCategoryLoanInterest,
		Amount:          entry.InterestPortion,
		Date:            *entry.PaidDate,
		Description:     models.InterestIncomeDescription(entry, loan.TermMonths),
		Reference:       uuid.NewString(),
	}
}

// ReconciliationService records payments against schedule entries
type ReconciliationService struct {
	scheduleRepo repository.ScheduleRepository
	loanSvc      *LoanService
	auditSvc     *AuditService
	publisher    events.Publisher
	worker       *jobs.Worker
	now          func() time.Time
}

func NewReconciliationService(
	scheduleRepo repository.ScheduleRepository,
	loanSvc *LoanService,
	auditSvc *AuditService,
	publisher events.Publisher,
	worker *jobs.Worker,
) *ReconciliationService {
	return &ReconciliationService{
		scheduleRepo: scheduleRepo,
		loanSvc:      loanSvc,
		auditSvc:     auditSvc,
		publisher:    publisher,
		worker:       worker,
		now:          time.Now,
	}
}

// ApplyPayment applies a payment to one schedule entry. The read, the status
// change and the income insert run under the entry's row lock, so concurrent
// payments on the same entry serialize and income is recognized once.
func (s *ReconciliationService) ApplyPayment(ctx context.Context, in PaymentInput) (*ReconciliationResult, error) {
	if in.ScheduleEntryID == 0 {
		return nil, apperrors.NewValidationError("schedule_id", "is required")
	}
	if !in.Amount.IsPositive() {
		return nil, apperrors.NewValidationError("amount", "must be greater than zero")
	}
	if !in.Amount.Equal(in.Amount.Round(2)) {
		return nil, apperrors.NewValidationError("amount", "must have at most 2 decimal places")
	}
	paymentDate := in.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = s.now()
	}

	var loan models.Loan
	entry, income, err := s.scheduleRepo.ApplyPayment(ctx, in.ScheduleEntryID, func(l *models.Loan, e *models.PaymentScheduleEntry) (*models.IncomeRecord, error) {
		if in.Actor.TenantID != 0 && l.TenantID != in.Actor.TenantID {
			return nil, apperrors.NewNotFoundError("schedule entry", in.ScheduleEntryID)
		}
		if l.Status != models.LoanStatusDisbursed {
			return nil, fmt.Errorf("%w (loan #%d is %s)", apperrors.ErrLoanNotActive, l.ID, l.Status)
		}
		loan = *l

		t, err := Reconcile(ctx, e, in.Amount, paymentDate)
		if err != nil {
			return nil, err
		}
		if !t.BecamePaid {
			return nil, nil
		}
		return InterestIncome(l, e), nil
	})
	if err != nil {
		return nil, err
	}

	result := &ReconciliationResult{
		Entry:         entry,
		IncomeEmitted: income != nil,
		Income:        income,
		Overpayment:   entry.Overpayment(),
	}

	s.afterPayment(ctx, in, &loan, result)
	return result, nil
}

// afterPayment runs the post-commit side effects
func (s *ReconciliationService) afterPayment(ctx context.Context, in PaymentInput, loan *models.Loan, result *ReconciliationResult) {
	entry := result.Entry
	metrics.Lending.PaymentsApplied.WithLabelValues(string(entry.Status)).Inc()
	if result.IncomeEmitted {
		metrics.Lending.IncomeRecognized.Inc()
		metrics.Lending.IncomeAmount.Add(result.Income.Amount.InexactFloat64())
	}
	if result.Overpayment.IsPositive() {
		logger.Warn("Overpayment recorded on schedule entry", "schedule_entry_id", entry.ID, "overpayment", result.Overpayment.StringFixed(2))
	}

	applied := events.PaymentApplied{
		Timestamp:       s.now(),
		TenantID:        loan.TenantID,
		LoanID:          entry.LoanID,
		ScheduleEntryID: entry.ID,
		Amount:          in.Amount.StringFixed(2),
		PaidAmount:      entry.Paid().StringFixed(2),
		Status:          string(entry.Status),
		Overpayment:     result.Overpayment.StringFixed(2),
		ActorID:         in.Actor.UserID,
	}
	var recognized *events.IncomeRecognized
	if result.IncomeEmitted {
		recognized = &events.IncomeRecognized{
			Timestamp:       s.now(),
			TenantID:        loan.TenantID,
			LoanID:          entry.LoanID,
			ScheduleEntryID: entry.ID,
			Amount:          result.Income.Amount.StringFixed(2),
			Reference:       result.Income.Reference,
		}
	}

	loanID := entry.LoanID
	s.worker.EnqueueAsync(func(ctx context.Context) error {
		if err := s.publisher.PublishPaymentApplied(ctx, applied); err != nil {
			return err
		}
		if recognized != nil {
			return s.publisher.PublishIncomeRecognized(ctx, *recognized)
		}
		return nil
	})
	s.worker.EnqueueAsync(func(ctx context.Context) error {
		return s.loanSvc.RefreshBalance(ctx, loanID)
	})

	s.auditSvc.Log(ctx, in.Actor, models.AuditActionPayment, "PaymentScheduleEntry", entry.ID,
		fmt.Sprintf("Payment of %s applied to installment %d of loan #%d, status %s", in.Amount.StringFixed(2), entry.InstallmentNumber, entry.LoanID, entry.Status))
}
