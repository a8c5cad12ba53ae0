package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sjperalta/fintera-lending/internal/amortization"
	"github.com/sjperalta/fintera-lending/internal/apperrors"
	"github.com/sjperalta/fintera-lending/internal/events"
	"github.com/sjperalta/fintera-lending/internal/jobs"
	"github.com/sjperalta/fintera-lending/internal/metrics"
	"github.com/sjperalta/fintera-lending/internal/models"
	"github.com/sjperalta/fintera-lending/internal/repository"
	"github.com/sjperalta/fintera-lending/internal/statemachine"
	"github.com/sjperalta/fintera-lending/pkg/logger"
)

// CreateLoanInput carries the terms of a new loan application
type CreateLoanInput struct {
	CustomerRef     string
	Principal       decimal.Decimal
	AnnualRate      decimal.Decimal
	TermMonths      int
	Purpose         *string
	ApplicationDate *time.Time
	StartDate       *time.Time
}

// UpdateLoanInput carries a partial loan update. Nil fields are left alone.
type UpdateLoanInput struct {
	CustomerRef *string
	Principal   *decimal.Decimal
	AnnualRate  *decimal.Decimal
	TermMonths  *int
	Purpose     *string
	StartDate   *time.Time
}

func (in UpdateLoanInput) changesTerms() bool {
	return in.Principal != nil || in.AnnualRate != nil || in.TermMonths != nil || in.StartDate != nil
}

// LoanService drives the loan lifecycle
type LoanService struct {
	repo         repository.LoanRepository
	scheduleRepo repository.ScheduleRepository
	scheduleSvc  *ScheduleService
	auditSvc     *AuditService
	publisher    events.Publisher
	worker       *jobs.Worker
	now          func() time.Time
}

func NewLoanService(
	repo repository.LoanRepository,
	scheduleRepo repository.ScheduleRepository,
	scheduleSvc *ScheduleService,
	auditSvc *AuditService,
	publisher events.Publisher,
	worker *jobs.Worker,
) *LoanService {
	return &LoanService{
		repo:         repo,
		scheduleRepo: scheduleRepo,
		scheduleSvc:  scheduleSvc,
		auditSvc:     auditSvc,
		publisher:    publisher,
		worker:       worker,
		now:          time.Now,
	}
}

// loadLoan finds a loan and hides loans of other tenants. A zero tenant is
// the system actor and sees every loan.
func loadLoan(ctx context.Context, repo repository.LoanRepository, actor models.Actor, id uint) (*models.Loan, error) {
	loan, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.TenantID != 0 && loan.TenantID != actor.TenantID {
		return nil, apperrors.NewNotFoundError("loan", id)
	}
	return loan, nil
}

func validateTerms(principal, rate decimal.Decimal, term int) error {
	if err := amortization.Validate(principal, rate, term); err != nil {
		return err
	}
	if !principal.Equal(principal.Round(2)) {
		return apperrors.NewValidationError("principal", "must have at most 2 decimal places")
	}
	if !rate.Equal(rate.Round(2)) {
		return apperrors.NewValidationError("annual_rate", "must have at most 2 decimal places")
	}
	if rate.GreaterThanOrEqual(decimal.NewFromInt(1000)) {
		return apperrors.NewValidationError("annual_rate", "must be below 1000")
	}
	return nil
}

// Create registers a pending loan application
func (s *LoanService) Create(ctx context.Context, actor models.Actor, in CreateLoanInput) (*models.Loan, error) {
	customerRef := strings.TrimSpace(in.CustomerRef)
	if customerRef == "" {
		return nil, apperrors.NewValidationError("customer_ref", "is required")
	}
	if err := validateTerms(in.Principal, in.AnnualRate, in.TermMonths); err != nil {
		return nil, err
	}

	applied := s.now()
	if in.ApplicationDate != nil {
		applied = *in.ApplicationDate
	}

	loan := &models.Loan{
		GUID:               uuid.NewString(),
		TenantID:           actor.TenantID,
		CustomerRef:        customerRef,
		Principal:          in.Principal.Round(2),
		AnnualRate:         in.AnnualRate.Round(2),
		TermMonths:         in.TermMonths,
		Status:             models.LoanStatusPending,
		Purpose:            in.Purpose,
		ApplicationDate:    applied,
		StartDate:          in.StartDate,
		OutstandingBalance: decimal.Zero,
	}

	if err := s.repo.Create(ctx, loan); err != nil {
		return nil, err
	}

	s.auditSvc.Log(ctx, actor, models.AuditActionCreate, "Loan", loan.ID,
		fmt.Sprintf("Loan of %s at %s%% for %d months created for %s", loan.Principal.StringFixed(2), loan.AnnualRate.StringFixed(2), loan.TermMonths, loan.CustomerRef))

	return loan, nil
}

func (s *LoanService) FindByID(ctx context.Context, actor models.Actor, id uint) (*models.Loan, error) {
	return loadLoan(ctx, s.repo, actor, id)
}

// FindWithSchedule returns the loan with its schedule ordered by installment
func (s *LoanService) FindWithSchedule(ctx context.Context, actor models.Actor, id uint) (*models.Loan, error) {
	loan, err := s.repo.FindByIDWithSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.TenantID != 0 && loan.TenantID != actor.TenantID {
		return nil, apperrors.NewNotFoundError("loan", id)
	}
	return loan, nil
}

func (s *LoanService) List(ctx context.Context, query *repository.LoanQuery) ([]models.Loan, int64, error) {
	return s.repo.List(ctx, query)
}

// Update edits a loan. Financial terms are frozen once the loan leaves pending
// because schedules are never regenerated.
func (s *LoanService) Update(ctx context.Context, actor models.Actor, id uint, in UpdateLoanInput) (*models.Loan, error) {
	loan, err := loadLoan(ctx, s.repo, actor, id)
	if err != nil {
		return nil, err
	}

	if in.changesTerms() && !loan.MayEditTerms() {
		return nil, apperrors.NewStateError("loan", string(loan.Status), "edit terms")
	}

	if in.CustomerRef != nil {
		ref := strings.TrimSpace(*in.CustomerRef)
		if ref == "" {
			return nil, apperrors.NewValidationError("customer_ref", "is required")
		}
		loan.CustomerRef = ref
	}
	if in.Principal != nil {
		loan.Principal = *in.Principal
	}
	if in.AnnualRate != nil {
		loan.AnnualRate = *in.AnnualRate
	}
	if in.TermMonths != nil {
		loan.TermMonths = *in.TermMonths
	}
	if in.Purpose != nil {
		loan.Purpose = in.Purpose
	}
	if in.StartDate != nil {
		loan.StartDate = in.StartDate
	}

	if err := validateTerms(loan.Principal, loan.AnnualRate, loan.TermMonths); err != nil {
		return nil, err
	}
	loan.Principal = loan.Principal.Round(2)
	loan.AnnualRate = loan.AnnualRate.Round(2)

	if err := s.repo.Update(ctx, loan); err != nil {
		return nil, err
	}

	s.auditSvc.Log(ctx, actor, models.AuditActionUpdate, "Loan", loan.ID, "Loan updated")
	return loan, nil
}

// Delete removes a loan together with its schedule
func (s *LoanService) Delete(ctx context.Context, actor models.Actor, id uint) error {
	loan, err := loadLoan(ctx, s.repo, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.auditSvc.Log(ctx, actor, models.AuditActionDelete, "Loan", id,
		fmt.Sprintf("Loan deleted in status %s", loan.Status))
	return nil
}

// Approve moves a pending loan to approved
func (s *LoanService) Approve(ctx context.Context, actor models.Actor, id uint) (*models.Loan, error) {
	return s.transition(ctx, actor, id, statemachine.LoanEventApprove, models.AuditActionApprove, func(f *statemachine.LoanFSM, loan *models.Loan) error {
		return f.Approve(ctx, actor.UserID, s.now())
	})
}

// Reject moves a pending or approved loan to rejected
func (s *LoanService) Reject(ctx context.Context, actor models.Actor, id uint, reason string) (*models.Loan, error) {
	return s.transition(ctx, actor, id, statemachine.LoanEventReject, models.AuditActionReject, func(f *statemachine.LoanFSM, loan *models.Loan) error {
		return f.Reject(ctx, actor.UserID, strings.TrimSpace(reason), s.now())
	})
}

// Close moves a disbursed loan to closed once every installment is paid
func (s *LoanService) Close(ctx context.Context, actor models.Actor, id uint) (*models.Loan, error) {
	return s.transition(ctx, actor, id, statemachine.LoanEventClose, models.AuditActionClose, func(f *statemachine.LoanFSM, loan *models.Loan) error {
		unpaid, err := s.scheduleRepo.CountUnpaid(ctx, loan.ID)
		if err != nil {
			return err
		}
		return f.Close(ctx, unpaid, s.now())
	})
}

func (s *LoanService) transition(
	ctx context.Context,
	actor models.Actor,
	id uint,
	event, action string,
	apply func(*statemachine.LoanFSM, *models.Loan) error,
) (*models.Loan, error) {
	loan, err := loadLoan(ctx, s.repo, actor, id)
	if err != nil {
		return nil, err
	}

	from := loan.Status
	if err := apply(statemachine.NewLoanFSM(loan), loan); err != nil {
		return nil, err
	}

	if err := s.repo.Transition(ctx, loan, from); err != nil {
		return nil, err
	}

	s.afterTransition(ctx, actor, loan, from, event, action)
	return loan, nil
}

func (s *LoanService) afterTransition(ctx context.Context, actor models.Actor, loan *models.Loan, from models.LoanStatus, event, action string) {
	metrics.Lending.LoanTransitions.WithLabelValues(event).Inc()
	logger.Info("Loan transitioned", "loan_id", loan.ID, "event", event, "from", from, "to", loan.Status, "actor_id", actor.UserID)

	changed := events.LoanStatusChanged{
		Timestamp: s.now(),
		TenantID:  loan.TenantID,
		LoanID:    loan.ID,
		From:      string(from),
		To:        string(loan.Status),
		ActorID:   actor.UserID,
	}
	s.worker.EnqueueAsync(func(ctx context.Context) error {
		return s.publisher.PublishLoanStatusChanged(ctx, changed)
	})

	s.auditSvc.Log(ctx, actor, action, "Loan", loan.ID,
		fmt.Sprintf("Loan #%d moved from %s to %s", loan.ID, from, loan.Status))
}

// Disburse moves an approved loan to disbursed and creates its payment
// schedule in the same transaction. startDate, when set, anchors the due dates.
func (s *LoanService) Disburse(ctx context.Context, actor models.Actor, id uint, startDate *time.Time) (*models.Loan, error) {
	loan, err := loadLoan(ctx, s.repo, actor, id)
	if err != nil {
		return nil, err
	}

	from := loan.Status
	now := s.now()
	if err := statemachine.NewLoanFSM(loan).Disburse(ctx, now); err != nil {
		return nil, err
	}
	if startDate != nil {
		loan.StartDate = startDate
	}

	entries, err := s.scheduleSvc.Build(loan, loan.ScheduleAnchor(now))
	if err != nil {
		return nil, err
	}
	loan.OutstandingBalance = TotalDue(entries)

	if err := s.repo.Disburse(ctx, loan, entries); err != nil {
		return nil, err
	}
	loan.Schedule = entries

	s.scheduleSvc.scheduleGenerated(loan, entries)
	s.afterTransition(ctx, actor, loan, from, statemachine.LoanEventDisburse, models.AuditActionDisburse)
	return loan, nil
}

// RefreshBalance recomputes the outstanding balance from the schedule under
// the loan row lock and closes the loan when nothing is left unpaid.
func (s *LoanService) RefreshBalance(ctx context.Context, loanID uint) error {
	if _, err := s.repo.RecomputeOutstandingBalance(ctx, loanID); err != nil {
		return err
	}

	unpaid, err := s.scheduleRepo.CountUnpaid(ctx, loanID)
	if err != nil {
		return err
	}
	if unpaid > 0 {
		return nil
	}

	loan, err := s.repo.FindByID(ctx, loanID)
	if err != nil {
		return err
	}
	if loan.Status != models.LoanStatusDisbursed {
		return nil
	}

	system := models.Actor{TenantID: loan.TenantID}
	from := loan.Status
	if err := statemachine.NewLoanFSM(loan).Close(ctx, unpaid, s.now()); err != nil {
		return err
	}
	if err := s.repo.Transition(ctx, loan, from); err != nil {
		// a concurrent refresh already closed it
		if errors.Is(err, apperrors.ErrStaleState) {
			return nil
		}
		return err
	}
	s.afterTransition(ctx, system, loan, from, statemachine.LoanEventClose, models.AuditActionClose)
	return nil
}
