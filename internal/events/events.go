// Package events publishes lending domain events after their changes commit.
package events

import (
	"context"
	"time"
)

// Routing keys
const (
	RoutingKeyLoanStatusChanged = "loan.status.changed"
	RoutingKeyScheduleGenerated = "loan.schedule.generated"
	RoutingKeyPaymentApplied    = "schedule.payment.applied"
	RoutingKeyIncomeRecognized  = "income.recognized"
)

type LoanStatusChanged struct {
	Timestamp time.Time `json:"timestamp"`
	TenantID  uint      `json:"tenantId"`
	LoanID    uint      `json:"loanId"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ActorID   uint      `json:"actorId"`
}

type ScheduleGenerated struct {
	Timestamp      time.Time `json:"timestamp"`
	TenantID       uint      `json:"tenantId"`
	LoanID         uint      `json:"loanId"`
	Installments   int       `json:"installments"`
	MonthlyPayment string    `json:"monthlyPayment"`
	TotalPayment   string    `json:"totalPayment"`
	FirstDueDate   string    `json:"firstDueDate"`
}

type PaymentApplied struct {
	Timestamp       time.Time `json:"timestamp"`
	TenantID        uint      `json:"tenantId"`
	LoanID          uint      `json:"loanId"`
	ScheduleEntryID uint      `json:"scheduleEntryId"`
	Amount          string    `json:"amount"`
	PaidAmount      string    `json:"paidAmount"`
	Status          string    `json:"status"`
	Overpayment     string    `json:"overpayment"`
	ActorID         uint      `json:"actorId"`
}

type IncomeRecognized struct {
	Timestamp       time.Time `json:"timestamp"`
	TenantID        uint      `json:"tenantId"`
	LoanID          uint      `json:"loanId"`
	ScheduleEntryID uint      `json:"scheduleEntryId"`
	Amount          string    `json:"amount"`
	Reference       string    `json:"reference"`
}

// Publisher emits domain events
type Publisher interface {
	PublishLoanStatusChanged(ctx context.Context, event LoanStatusChanged) error
	PublishScheduleGenerated(ctx context.Context, event ScheduleGenerated) error
	PublishPaymentApplied(ctx context.Context, event PaymentApplied) error
	PublishIncomeRecognized(ctx context.Context, event IncomeRecognized) error
	Close() error
}
