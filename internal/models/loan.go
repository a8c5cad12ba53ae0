package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanStatus is the lifecycle state of a loan
type LoanStatus string

// Loan status constants
const (
	LoanStatusPending   LoanStatus = "pending"
	LoanStatusApproved  LoanStatus = "approved"
	LoanStatusRejected  LoanStatus = "rejected"
	LoanStatusDisbursed LoanStatus = "disbursed"
	LoanStatusClosed    LoanStatus = "closed"
)

// Loan represents one credit extended to a customer
type Loan struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	GUID               string          `gorm:"size:36;uniqueIndex" json:"guid"`
	TenantID           uint            `gorm:"not null;index" json:"tenant_id"`
	CustomerRef        string          `gorm:"size:64;not null;index" json:"customer_ref"`
	Principal          decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"principal"`
	AnnualRate         decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"annual_rate"`
	TermMonths         int             `gorm:"not null" json:"term_months"`
	Status             LoanStatus      `gorm:"size:20;default:pending;not null;index" json:"status"`
	Purpose            *string         `gorm:"type:text" json:"purpose"`
	ApplicationDate    time.Time       `gorm:"type:date;not null" json:"application_date"`
	StartDate          *time.Time      `gorm:"type:date" json:"start_date"`
	ApprovedAt         *time.Time      `json:"approved_at"`
	ApprovedByUserID   *uint           `gorm:"index" json:"approved_by_user_id"`
	RejectedAt         *time.Time      `json:"rejected_at"`
	RejectedByUserID   *uint           `json:"rejected_by_user_id"`
	RejectionReason    *string         `gorm:"type:text" json:"rejection_reason"`
	DisbursedAt        *time.Time      `gorm:"index" json:"disbursed_at"`
	ClosedAt           *time.Time      `json:"closed_at"`
	OutstandingBalance decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"outstanding_balance"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`

	// Associations
	Schedule []PaymentScheduleEntry `gorm:"foreignKey:LoanID;constraint:OnDelete:CASCADE" json:"schedule,omitempty"`
}

// TableName specifies the table name for Loan
func (Loan) TableName() string {
	return "loans"
}

// HasSchedule reports whether the loan has reached a status that owns a payment schedule
func (l *Loan) HasSchedule() bool {
	return l.Status == LoanStatusDisbursed || l.Status == LoanStatusClosed
}

// MayEditTerms reports whether principal, rate and term can still change.
// Schedules are never regenerated, so terms freeze once the loan leaves pending.
func (l *Loan) MayEditTerms() bool {
	return l.Status == LoanStatusPending
}

// ScheduleAnchor returns the date schedule due dates are counted from
func (l *Loan) ScheduleAnchor(now time.Time) time.Time {
	if l.StartDate != nil {
		return *l.StartDate
	}
	if l.DisbursedAt != nil {
		return *l.DisbursedAt
	}
	return now
}

// LoanResponse is the JSON response format for loans
type LoanResponse struct {
	ID                 uint                    `json:"id"`
	GUID               string                  `json:"guid"`
	CustomerRef        string                  `json:"customer_ref"`
	Principal          string                  `json:"principal"`
	AnnualRate         string                  `json:"annual_rate"`
	TermMonths         int                     `json:"term_months"`
	Status             LoanStatus              `json:"status"`
	Purpose            *string                 `json:"purpose"`
	ApplicationDate    string                  `json:"application_date"`
	StartDate          *string                 `json:"start_date"`
	ApprovedAt         *time.Time              `json:"approved_at"`
	ApprovedByUserID   *uint                   `json:"approved_by_user_id,omitempty"`
	RejectionReason    *string                 `json:"rejection_reason,omitempty"`
	DisbursedAt        *time.Time              `json:"disbursed_at"`
	ClosedAt           *time.Time              `json:"closed_at"`
	OutstandingBalance string                  `json:"outstanding_balance"`
	CreatedAt          time.Time               `json:"created_at"`
	Schedule           []ScheduleEntryResponse `json:"schedule,omitempty"`
}

// ToResponse converts Loan to LoanResponse
func (l *Loan) ToResponse(now time.Time) LoanResponse {
	resp := LoanResponse{
		ID:                 l.ID,
		GUID:               l.GUID,
		CustomerRef:        l.CustomerRef,
		Principal:          l.Principal.StringFixed(2),
		AnnualRate:         l.AnnualRate.StringFixed(2),
		TermMonths:         l.TermMonths,
		Status:             l.Status,
		Purpose:            l.Purpose,
		ApplicationDate:    l.ApplicationDate.Format(DateLayout),
		ApprovedAt:         l.ApprovedAt,
		ApprovedByUserID:   l.ApprovedByUserID,
		RejectionReason:    l.RejectionReason,
		DisbursedAt:        l.DisbursedAt,
		ClosedAt:           l.ClosedAt,
		OutstandingBalance: l.OutstandingBalance.StringFixed(2),
		CreatedAt:          l.CreatedAt,
	}
	if l.StartDate != nil {
		s := l.StartDate.Format(DateLayout)
		resp.StartDate = &s
	}
	for i := range l.Schedule {
		resp.Schedule = append(resp.Schedule, l.Schedule[i].ToResponse(now))
	}
	return resp
}

// DateLayout is the wire format of calendar dates
const DateLayout = "2006-01-02"
