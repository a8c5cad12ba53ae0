package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/sjperalta/fintera-lending/internal/apperrors"
	"github.com/sjperalta/fintera-lending/internal/events"
	"github.com/sjperalta/fintera-lending/internal/jobs"
	"github.com/sjperalta/fintera-lending/internal/models"
	"github.com/sjperalta/fintera-lending/internal/repository"
)

var fixedNow = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

// memStore backs the fake repositories. A single mutex stands in for the
// row locks of the real database.
type memStore struct {
	mu       sync.Mutex
	loans    map[uint]*models.Loan
	entries  map[uint]*models.PaymentScheduleEntry
	income   []models.IncomeRecord
	audits   []models.AuditLog
	nextID   uint
	applyErr error
}

func newMemStore() *memStore {
	return &memStore{
		loans:   make(map[uint]*models.Loan),
		entries: make(map[uint]*models.PaymentScheduleEntry),
	}
}

func (s *memStore) id() uint {
	s.nextID++
	return s.nextID
}

func (s *memStore) entriesFor(loanID uint) []models.PaymentScheduleEntry {
	var out []models.PaymentScheduleEntry
	for _, e := range s.entries {
		if e.LoanID == loanID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstallmentNumber < out[j].InstallmentNumber })
	return out
}

func (s *memStore) insertSchedule(loanID uint, entries []models.PaymentScheduleEntry) error {
	if len(s.entriesFor(loanID)) > 0 {
		return apperrors.ErrScheduleExists
	}
	for i := range entries {
		entries[i].ID = s.id()
		entries[i].LoanID = loanID
		e := entries[i]
		s.entries[e.ID] = &e
	}
	return nil
}

// recomputeBalance mirrors the single-statement balance update of the gorm
// repository. Callers hold mu.
func (s *memStore) recomputeBalance(loanID uint) decimal.Decimal {
	total := decimal.Zero
	for _, e := range s.entriesFor(loanID) {
		if !e.IsPaid() {
			total = total.Add(e.AmountDue())
		}
	}
	if l, ok := s.loans[loanID]; ok {
		l.OutstandingBalance = total
	}
	return total
}

func (s *memStore) incomeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.income)
}

func (s *memStore) loan(id uint) models.Loan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.loans[id]
}

type memLoanRepo struct {
	repository.LoanRepository
	s *memStore
}

func (r *memLoanRepo) FindByID(ctx context.Context, id uint) (*models.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.loans[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("loan", id)
	}
	cp := *l
	return &cp, nil
}

func (r *memLoanRepo) FindByIDWithSchedule(ctx context.Context, id uint) (*models.Loan, error) {
	l, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l.Schedule = r.s.entriesFor(id)
	return l, nil
}

func (r *memLoanRepo) Create(ctx context.Context, loan *models.Loan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	loan.ID = r.s.id()
	cp := *loan
	r.s.loans[loan.ID] = &cp
	return nil
}

func (r *memLoanRepo) Update(ctx context.Context, loan *models.Loan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *loan
	cp.Schedule = nil
	r.s.loans[loan.ID] = &cp
	return nil
}

func (r *memLoanRepo) Delete(ctx context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.loans[id]; !ok {
		return apperrors.NewNotFoundError("loan", id)
	}
	delete(r.s.loans, id)
	for eid, e := range r.s.entries {
		if e.LoanID == id {
			delete(r.s.entries, eid)
		}
	}
	return nil
}

func (r *memLoanRepo) Transition(ctx context.Context, loan *models.Loan, from models.LoanStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.loans[loan.ID]
	if !ok || stored.Status != from {
		return apperrors.ErrStaleState
	}
	cp := *loan
	cp.Schedule = nil
	cp.OutstandingBalance = stored.OutstandingBalance
	r.s.loans[loan.ID] = &cp
	return nil
}

func (r *memLoanRepo) Disburse(ctx context.Context, loan *models.Loan, entries []models.PaymentScheduleEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.loans[loan.ID]
	if !ok {
		return apperrors.NewNotFoundError("loan", loan.ID)
	}
	if stored.Status != models.LoanStatusApproved {
		return apperrors.NewStateError("loan", string(stored.Status), "disburse")
	}
	if err := r.s.insertSchedule(loan.ID, entries); err != nil {
		return err
	}
	cp := *loan
	cp.Schedule = nil
	r.s.loans[loan.ID] = &cp
	return nil
}

func (r *memLoanRepo) FindDisbursedWithoutSchedule(ctx context.Context, afterID uint, limit int) ([]models.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Loan
	for id, l := range r.s.loans {
		if id > afterID && l.Status == models.LoanStatusDisbursed && len(r.s.entriesFor(id)) == 0 {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memLoanRepo) RecomputeOutstandingBalance(ctx context.Context, id uint) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.loans[id]; !ok {
		return decimal.Zero, apperrors.NewNotFoundError("loan", id)
	}
	return r.s.recomputeBalance(id), nil
}

type memScheduleRepo struct {
	repository.ScheduleRepository
	s *memStore
}

func (r *memScheduleRepo) CreateSchedules(ctx context.Context, loanID uint, entries []models.PaymentScheduleEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.loans[loanID]; !ok {
		return apperrors.NewNotFoundError("loan", loanID)
	}
	if err := r.s.insertSchedule(loanID, entries); err != nil {
		return err
	}
	r.s.recomputeBalance(loanID)
	return nil
}

func (r *memScheduleRepo) FindByID(ctx context.Context, id uint) (*models.PaymentScheduleEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.entries[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("schedule entry", id)
	}
	cp := *e
	return &cp, nil
}

func (r *memScheduleRepo) FindByLoan(ctx context.Context, loanID uint) ([]models.PaymentScheduleEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.entriesFor(loanID), nil
}

func (r *memScheduleRepo) CountByLoan(ctx context.Context, loanID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.entriesFor(loanID))), nil
}

func (r *memScheduleRepo) CountUnpaid(ctx context.Context, loanID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, e := range r.s.entriesFor(loanID) {
		if !e.IsPaid() {
			n++
		}
	}
	return n, nil
}

func (r *memScheduleRepo) ApplyPayment(ctx context.Context, entryID uint, fn repository.PaymentFunc) (*models.PaymentScheduleEntry, *models.IncomeRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.entries[entryID]
	if !ok {
		return nil, nil, apperrors.NewNotFoundError("schedule entry", entryID)
	}
	entry := *stored
	loan := *r.s.loans[entry.LoanID]

	rec, err := fn(&loan, &entry)
	if err != nil {
		return nil, nil, err
	}
	if r.s.applyErr != nil {
		return nil, nil, apperrors.WrapPersistence("apply payment", r.s.applyErr)
	}

	*stored = entry
	var income *models.IncomeRecord
	if rec != nil {
		dup := false
		for _, existing := range r.s.income {
			if existing.ScheduleEntryID != nil && *existing.ScheduleEntryID == entryID {
				dup = true
			}
		}
		if !dup {
			rec.ID = r.s.id()
			r.s.income = append(r.s.income, *rec)
			income = rec
		}
	}
	r.s.recomputeBalance(entry.LoanID)
	return &entry, income, nil
}

func (r *memScheduleRepo) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, e := range r.s.entries {
		if (e.Status == models.ScheduleStatusPending || e.Status == models.ScheduleStatusPartial) && e.DueDate.Before(asOf) {
			e.Status = models.ScheduleStatusOverdue
			n++
		}
	}
	return n, nil
}

type memIncomeRepo struct {
	repository.IncomeRepository
	s *memStore
}

func (r *memIncomeRepo) FindByScheduleEntry(ctx context.Context, entryID uint) ([]models.IncomeRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.IncomeRecord
	for _, rec := range r.s.income {
		if rec.ScheduleEntryID != nil && *rec.ScheduleEntryID == entryID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memIncomeRepo) matches(q *repository.IncomeQuery, rec models.IncomeRecord) bool {
	if rec.TenantID != q.TenantID {
		return false
	}
	if q.LoanID != 0 && (rec.LoanID == nil || *rec.LoanID != q.LoanID) {
		return false
	}
	if !q.From.IsZero() && rec.Date.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && rec.Date.After(q.To) {
		return false
	}
	return true
}

func (r *memIncomeRepo) List(ctx context.Context, q *repository.IncomeQuery) ([]models.IncomeRecord, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.IncomeRecord
	for _, rec := range r.s.income {
		if r.matches(q, rec) {
			out = append(out, rec)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memIncomeRepo) Total(ctx context.Context, q *repository.IncomeQuery) (decimal.Decimal, error) {
	records, _, _ := r.List(ctx, q)
	total := decimal.Zero
	for _, rec := range records {
		total = total.Add(rec.Amount)
	}
	return total, nil
}

type memAuditRepo struct {
	repository.AuditRepository
	s *memStore
}

func (r *memAuditRepo) Create(ctx context.Context, log *models.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	log.ID = r.s.id()
	r.s.audits = append(r.s.audits, *log)
	return nil
}

func (r *memAuditRepo) actions() []string {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]string, 0, len(r.s.audits))
	for _, a := range r.s.audits {
		out = append(out, a.Action)
	}
	return out
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishLoanStatusChanged(ctx context.Context, e events.LoanStatusChanged) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockPublisher) PublishScheduleGenerated(ctx context.Context, e events.ScheduleGenerated) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockPublisher) PublishPaymentApplied(ctx context.Context, e events.PaymentApplied) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockPublisher) PublishIncomeRecognized(ctx context.Context, e events.IncomeRecognized) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockPublisher) Close() error {
	return nil
}

// allowAll accepts any publish call
func (m *mockPublisher) allowAll() *mockPublisher {
	for _, method := range []string{"PublishLoanStatusChanged", "PublishScheduleGenerated", "PublishPaymentApplied", "PublishIncomeRecognized"} {
		m.On(method, mock.Anything, mock.Anything).Return(nil).Maybe()
	}
	return m
}

type testEnv struct {
	store     *memStore
	loanRepo  *memLoanRepo
	schedRepo *memScheduleRepo
	audit     *memAuditRepo
	publisher *mockPublisher
	worker    *jobs.Worker
	svcs      *Services
}

func newTestEnv() *testEnv {
	store := newMemStore()
	env := &testEnv{
		store:     store,
		loanRepo:  &memLoanRepo{s: store},
		schedRepo: &memScheduleRepo{s: store},
		audit:     &memAuditRepo{s: store},
		publisher: (&mockPublisher{}).allowAll(),
		worker:    jobs.NewWorker(2),
	}
	repos := &repository.Repositories{
		Loan:     env.loanRepo,
		Schedule: env.schedRepo,
		Income:   &memIncomeRepo{s: store},
		Audit:    env.audit,
	}
	env.svcs = NewServices(Deps{
		Repos:     repos,
		Worker:    env.worker,
		Publisher: env.publisher,
		Policy:    FirstOfMonthPolicy{},
	})
	env.svcs.Loan.now = func() time.Time { return fixedNow }
	env.svcs.Schedule.now = func() time.Time { return fixedNow }
	env.svcs.Reconciliation.now = func() time.Time { return fixedNow }
	return env
}

var officer = models.Actor{UserID: 7, TenantID: 1}

// disbursedLoan creates, approves and disburses a loan for officer's tenant
func (e *testEnv) disbursedLoan(ctx context.Context, principal, rate string, term int) *models.Loan {
	loan, err := e.svcs.Loan.Create(ctx, officer, CreateLoanInput{
		CustomerRef: "CUST-1",
		Principal:   decimal.RequireFromString(principal),
		AnnualRate:  decimal.RequireFromString(rate),
		TermMonths:  term,
	})
	if err != nil {
		panic(err)
	}
	if _, err := e.svcs.Loan.Approve(ctx, officer, loan.ID); err != nil {
		panic(err)
	}
	loan, err = e.svcs.Loan.Disburse(ctx, officer, loan.ID, nil)
	if err != nil {
		panic(err)
	}
	return loan
}
