package repository

import (
	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	Loan     LoanRepository
	Schedule ScheduleRepository
	Income   IncomeRepository
	Audit    AuditRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Loan:     NewLoanRepository(db),
		Schedule: NewScheduleRepository(db),
		Income:   NewIncomeRepository(db),
		Audit:    NewAuditRepository(db),
	}
}
