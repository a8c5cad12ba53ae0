package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sjperalta/fintera-lending/internal/amortization"
	"github.com/sjperalta/fintera-lending/internal/apperrors"
	"github.com/sjperalta/fintera-lending/internal/config"
	"github.com/sjperalta/fintera-lending/internal/events"
	"github.com/sjperalta/fintera-lending/internal/jobs"
	"github.com/sjperalta/fintera-lending/internal/metrics"
	"github.com/sjperalta/fintera-lending/internal/models"
	"github.com/sjperalta/fintera-lending/internal/repository"
	"github.com/sjperalta/fintera-lending/pkg/logger"
)

// DueDatePolicy places installment i (1-based) on the calendar
type DueDatePolicy interface {
	Name() string
	DueDate(anchor time.Time, installment int) time.Time
}

// FirstOfMonthPolicy puts every installment on the first day of the month,
// starting the month after the anchor.
type FirstOfMonthPolicy struct{}

func (FirstOfMonthPolicy) Name() string { return config.DueDatePolicyFirstOfMonth }

func (FirstOfMonthPolicy) DueDate(anchor time.Time, installment int) time.Time {
	return time.Date(anchor.Year(), anchor.Month()+time.Month(installment), 1, 0, 0, 0, 0, time.UTC)
}

// SameDayPolicy keeps the anchor's day of month, clamped to the length of
// shorter months (Jan 31 → Feb 28 → Mar 31).
type SameDayPolicy struct{}

func (SameDayPolicy) Name() string { return config.DueDatePolicySameDay }

func (SameDayPolicy) DueDate(anchor time.Time, installment int) time.Time {
	first := time.Date(anchor.Year(), anchor.Month()+time.Month(installment), 1, 0, 0, 0, 0, time.UTC)
	lastDay := first.AddDate(0, 1, -1).Day()
	day := anchor.Day()
	if day > lastDay {
		day = lastDay
	}
	return first.AddDate(0, 0, day-1)
}

// NewDueDatePolicy resolves a configured policy name
func NewDueDatePolicy(name string) (DueDatePolicy, error) {
	switch name {
	case "", config.DueDatePolicyFirstOfMonth:
		return FirstOfMonthPolicy{}, nil
	case config.DueDatePolicySameDay:
		return SameDayPolicy{}, nil
	}
	return nil, fmt.Errorf("unknown due date policy %q", name)
}

// ScheduleService turns amortization tables into persisted payment schedules
type ScheduleService struct {
	scheduleRepo repository.ScheduleRepository
	loanRepo     repository.LoanRepository
	policy       DueDatePolicy
	publisher    events.Publisher
	worker       *jobs.Worker
	now          func() time.Time
}

func NewScheduleService(
	scheduleRepo repository.ScheduleRepository,
	loanRepo repository.LoanRepository,
	policy DueDatePolicy,
	publisher events.Publisher,
	worker *jobs.Worker,
) *ScheduleService {
	return &ScheduleService{
		scheduleRepo: scheduleRepo,
		loanRepo:     loanRepo,
		policy:       policy,
		publisher:    publisher,
		worker:       worker,
		now:          time.Now,
	}
}

// Build computes the schedule entries of a loan without persisting them
func (s *ScheduleService) Build(loan *models.Loan, anchor time.Time) ([]models.PaymentScheduleEntry, error) {
	table, err := amortization.Compute(loan.Principal, loan.AnnualRate, loan.TermMonths)
	if err != nil {
		return nil, err
	}

	entries := make([]models.PaymentScheduleEntry, 0, len(table.Installments))
	for _, inst := range table.Installments {
		entries = append(entries, models.PaymentScheduleEntry{
			LoanID:            loan.ID,
			InstallmentNumber: inst.Index,
			DueDate:           s.policy.DueDate(anchor, inst.Index),
			Amount:            inst.Payment,
			PrincipalPortion:  inst.Principal,
			InterestPortion:   inst.Interest,
			RemainingBalance:  inst.RemainingBalance,
			Status:            models.ScheduleStatusPending,
		})
	}
	return entries, nil
}

// Generate builds and persists the schedule of a disbursed loan that has
// none. A second call fails with ErrScheduleExists and writes nothing.
func (s *ScheduleService) Generate(ctx context.Context, loan *models.Loan) ([]models.PaymentScheduleEntry, error) {
	if loan.Status != models.LoanStatusDisbursed {
		return nil, apperrors.NewStateError("loan", string(loan.Status), "generate schedule")
	}

	entries, err := s.Build(loan, loan.ScheduleAnchor(s.now()))
	if err != nil {
		return nil, err
	}

	if err := s.scheduleRepo.CreateSchedules(ctx, loan.ID, entries); err != nil {
		return nil, err
	}

	// CreateSchedules sets the stored balance in the same transaction
	loan.OutstandingBalance = TotalDue(entries)

	s.scheduleGenerated(loan, entries)
	return entries, nil
}

// scheduleGenerated records metrics and publishes the event after commit
func (s *ScheduleService) scheduleGenerated(loan *models.Loan, entries []models.PaymentScheduleEntry) {
	metrics.Lending.SchedulesGenerated.Inc()
	logger.Info("Payment schedule generated", "loan_id", loan.ID, "installments", len(entries), "policy", s.policy.Name())

	if len(entries) == 0 {
		return
	}
	event := events.ScheduleGenerated{
		Timestamp:      s.now(),
		TenantID:       loan.TenantID,
		LoanID:         loan.ID,
		Installments:   len(entries),
		MonthlyPayment: entries[0].Amount.StringFixed(2),
		TotalPayment:   TotalDue(entries).StringFixed(2),
		FirstDueDate:   entries[0].DueDate.Format(models.DateLayout),
	}
	s.worker.EnqueueAsync(func(ctx context.Context) error {
		return s.publisher.PublishScheduleGenerated(ctx, event)
	})
}

// ForLoan returns the persisted schedule of a loan visible to the actor
func (s *ScheduleService) ForLoan(ctx context.Context, actor models.Actor, loanID uint) ([]models.PaymentScheduleEntry, error) {
	if _, err := loadLoan(ctx, s.loanRepo, actor, loanID); err != nil {
		return nil, err
	}
	return s.scheduleRepo.FindByLoan(ctx, loanID)
}

// MarkOverdue flags unpaid entries due before the calendar day of asOf
func (s *ScheduleService) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	cutoff := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	n, err := s.scheduleRepo.MarkOverdue(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	metrics.Lending.EntriesMarkedLate.Add(float64(n))
	logger.Info("Overdue sweep finished", "cutoff", cutoff.Format(models.DateLayout), "marked", n)
	return n, nil
}

// BackfillMissing generates schedules for disbursed loans that have none,
// such as loans imported from another system. Failures are logged per loan
// and do not stop the run.
func (s *ScheduleService) BackfillMissing(ctx context.Context, batchSize int) (int, error) {
	generated := 0
	var afterID uint
	for {
		loans, err := s.loanRepo.FindDisbursedWithoutSchedule(ctx, afterID, batchSize)
		if err != nil {
			return generated, err
		}
		for i := range loans {
			loan := &loans[i]
			afterID = loan.ID
			if _, err := s.Generate(ctx, loan); err != nil {
				logger.Error("Failed to backfill schedule", "loan_id", loan.ID, "error", err)
				continue
			}
			generated++
		}
		if len(loans) < batchSize {
			return generated, nil
		}
	}
}

// TotalDue sums the installment amounts of entries
func TotalDue(entries []models.PaymentScheduleEntry) decimal.Decimal {
	total := decimal.Zero
	for i := range entries {
		total = total.Add(entries[i].Amount)
	}
	return total
}
