package services

import (
	"github.com/sjperalta/fintera-lending/internal/amortization"
	"github.com/sjperalta/fintera-lending/internal/cache"
	"github.com/sjperalta/fintera-lending/internal/events"
	"github.com/sjperalta/fintera-lending/internal/jobs"
	"github.com/sjperalta/fintera-lending/internal/repository"
	"github.com/sjperalta/fintera-lending/internal/storage"
)

// Services holds all service instances
type Services struct {
	Loan           *LoanService
	Schedule       *ScheduleService
	Reconciliation *ReconciliationService
	Quote          *QuoteService
	Income         *IncomeService
	Report         *ReportService
	Audit          *AuditService
	Job            *JobService
}

// Deps are the collaborators shared by the services
type Deps struct {
	Repos      *repository.Repositories
	Worker     *jobs.Worker
	Storage    *storage.LocalStorage
	Publisher  events.Publisher
	Policy     DueDatePolicy
	QuoteCache cache.Cache[string, *amortization.Schedule]
}

// NewServices creates all service instances
func NewServices(d Deps) *Services {
	auditSvc := NewAuditService(d.Repos.Audit)
	scheduleSvc := NewScheduleService(d.Repos.Schedule, d.Repos.Loan, d.Policy, d.Publisher, d.Worker)
	loanSvc := NewLoanService(d.Repos.Loan, d.Repos.Schedule, scheduleSvc, auditSvc, d.Publisher, d.Worker)

	return &Services{
		Loan:           loanSvc,
		Schedule:       scheduleSvc,
		Reconciliation: NewReconciliationService(d.Repos.Schedule, loanSvc, auditSvc, d.Publisher, d.Worker),
		Quote:          NewQuoteService(d.QuoteCache),
		Income:         NewIncomeService(d.Repos.Income),
		Report:         NewReportService(d.Repos.Loan, d.Repos.Income, d.Storage),
		Audit:          auditSvc,
		Job:            NewJobService(d.Worker, scheduleSvc),
	}
}
