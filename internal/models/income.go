package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Income categories
const (
	IncomeCategoryLoanInterest = "loan_interest"
)

// IncomeRecord is one entry in the income ledger
type IncomeRecord struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	TenantID        uint            `gorm:"not null;index" json:"tenant_id"`
	ScheduleEntryID *uint           `gorm:"uniqueIndex" json:"schedule_entry_id"`
	LoanID          *uint           `gorm:"index" json:"loan_id"`
	Category        string          `gorm:"size:50;not null;index" json:"category"`
	Amount          decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Date            time.Time       `gorm:"type:date;not null;index" json:"date"`
	Description     string          `gorm:"type:text;not null" json:"description"`
	Reference       string          `gorm:"size:36;uniqueIndex" json:"reference"`
	CreatedAt       time.Time       `json:"created_at"`
}

// TableName specifies the table name for IncomeRecord
func (IncomeRecord) TableName() string {
	return "income_records"
}

// InterestIncomeDescription is the traceable description of interest
// recognized for a schedule entry
func InterestIncomeDescription(entry *PaymentScheduleEntry, termMonths int) string {
	return fmt.Sprintf("Interest income for schedule entry #%d (loan #%d, installment %d/%d)",
		entry.ID, entry.LoanID, entry.InstallmentNumber, termMonths)
}

// IncomeRecordResponse is the JSON response format for income records
type IncomeRecordResponse struct {
	ID              uint   `json:"id"`
	ScheduleEntryID *uint  `json:"schedule_entry_id,omitempty"`
	LoanID          *uint  `json:"loan_id,omitempty"`
	Category        string `json:"category"`
	Amount          string `json:"amount"`
	Date            string `json:"date"`
	Description     string `json:"description"`
	Reference       string `json:"reference"`
}

// ToResponse converts IncomeRecord to IncomeRecordResponse
func (r *IncomeRecord) ToResponse() IncomeRecordResponse {
	return IncomeRecordResponse{
		ID:              r.ID,
		ScheduleEntryID: r.ScheduleEntryID,
		LoanID:          r.LoanID,
		Category:        r.Category,
		Amount:          r.Amount.StringFixed(2),
		Date:            r.Date.Format(DateLayout),
		Description:     r.Description,
		Reference:       r.Reference,
	}
}
