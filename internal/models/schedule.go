package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScheduleStatus is the repayment state of one installment
type ScheduleStatus string

// Schedule status constants
const (
	ScheduleStatusPending ScheduleStatus = "pending"
	ScheduleStatusPartial ScheduleStatus = "partial"
	ScheduleStatusPaid    ScheduleStatus = "paid"
	ScheduleStatusOverdue ScheduleStatus = "overdue"
)

// Valid reports whether s is one of the known statuses
func (s ScheduleStatus) Valid() bool {
	switch s {
	case ScheduleStatusPending, ScheduleStatusPartial, ScheduleStatusPaid, ScheduleStatusOverdue:
		return true
	}
	return false
}

// PaymentScheduleEntry is one expected installment of a loan
type PaymentScheduleEntry struct {
	ID                uint             `gorm:"primaryKey" json:"id"`
	LoanID            uint             `gorm:"not null;uniqueIndex:idx_schedule_loan_installment" json:"loan_id"`
	InstallmentNumber int              `gorm:"not null;uniqueIndex:idx_schedule_loan_installment" json:"installment_number"`
	DueDate           time.Time        `gorm:"type:date;not null;index" json:"due_date"`
	Amount            decimal.Decimal  `gorm:"type:decimal(15,2);not null" json:"amount"`
	PrincipalPortion  decimal.Decimal  `gorm:"type:decimal(15,2);not null" json:"principal_portion"`
	InterestPortion   decimal.Decimal  `gorm:"type:decimal(15,2);not null" json:"interest_portion"`
	RemainingBalance  decimal.Decimal  `gorm:"type:decimal(15,2);not null" json:"remaining_balance"`
	Status            ScheduleStatus   `gorm:"size:20;default:pending;not null;index" json:"status"`
	PaidDate          *time.Time       `gorm:"type:date" json:"paid_date"`
	PaidAmount        *decimal.Decimal `gorm:"type:decimal(15,2)" json:"paid_amount"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// TableName specifies the table name for PaymentScheduleEntry
func (PaymentScheduleEntry) TableName() string {
	return "payment_schedules"
}

// IsPaid returns true once cumulative payments cover the amount due
func (e *PaymentScheduleEntry) IsPaid() bool {
	return e.Status == ScheduleStatusPaid
}

// Paid returns the cumulative amount applied so far
func (e *PaymentScheduleEntry) Paid() decimal.Decimal {
	if e.PaidAmount == nil {
		return decimal.Zero
	}
	return *e.PaidAmount
}

// AmountDue returns what is still owed on the installment, never negative
func (e *PaymentScheduleEntry) AmountDue() decimal.Decimal {
	due := e.Amount.Sub(e.Paid())
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}

// Overpayment returns how much was paid beyond the installment amount
func (e *PaymentScheduleEntry) Overpayment() decimal.Decimal {
	over := e.Paid().Sub(e.Amount)
	if over.IsPositive() {
		return over
	}
	return decimal.Zero
}

// IsPastDue reports whether the due date is before the calendar day of now
func (e *PaymentScheduleEntry) IsPastDue(now time.Time) bool {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.DueDate.Location())
	return e.DueDate.Before(today)
}

// EffectiveStatus is the status a reader should see at now. Overdue is
// time based, so an unpaid entry past its due date reads as overdue even
// before the sweep job has persisted it.
func (e *PaymentScheduleEntry) EffectiveStatus(now time.Time) ScheduleStatus {
	if e.Status == ScheduleStatusPaid {
		return ScheduleStatusPaid
	}
	if e.IsPastDue(now) {
		return ScheduleStatusOverdue
	}
	return e.Status
}

// OverdueDays returns the number of days past due
func (e *PaymentScheduleEntry) OverdueDays(now time.Time) int {
	if e.EffectiveStatus(now) != ScheduleStatusOverdue {
		return 0
	}
	return int(now.Sub(e.DueDate).Hours() / 24)
}

// ScheduleEntryResponse is the JSON response format for schedule entries
type ScheduleEntryResponse struct {
	ID                uint           `json:"id"`
	LoanID            uint           `json:"loan_id"`
	InstallmentNumber int            `json:"installment_number"`
	DueDate           string         `json:"due_date"`
	Amount            string         `json:"amount"`
	PrincipalPortion  string         `json:"principal_portion"`
	InterestPortion   string         `json:"interest_portion"`
	RemainingBalance  string         `json:"remaining_balance"`
	Status            ScheduleStatus `json:"status"`
	PaidDate          *string        `json:"paid_date"`
	PaidAmount        *string        `json:"paid_amount"`
	AmountDue         string         `json:"amount_due"`
	OverdueDays       int            `json:"overdue_days"`
	IsOverpayment     bool           `json:"is_overpayment"`
}

// ToResponse converts PaymentScheduleEntry to ScheduleEntryResponse
func (e *PaymentScheduleEntry) ToResponse(now time.Time) ScheduleEntryResponse {
	resp := ScheduleEntryResponse{
		ID:                e.ID,
		LoanID:            e.LoanID,
		InstallmentNumber: e.InstallmentNumber,
		DueDate:           e.DueDate.Format(DateLayout),
		Amount:            e.Amount.StringFixed(2),
		PrincipalPortion:  e.PrincipalPortion.StringFixed(2),
		InterestPortion:   e.InterestPortion.StringFixed(2),
		RemainingBalance:  e.RemainingBalance.StringFixed(2),
		Status:            e.EffectiveStatus(now),
		AmountDue:         e.AmountDue().StringFixed(2),
		OverdueDays:       e.OverdueDays(now),
		IsOverpayment:     e.Overpayment().IsPositive(),
	}
	if e.PaidDate != nil {
		d := e.PaidDate.Format(DateLayout)
		resp.PaidDate = &d
	}
	if e.PaidAmount != nil {
		p := e.PaidAmount.StringFixed(2)
		resp.PaidAmount = &p
	}
	return resp
}
