// Package amortization computes fixed-payment loan schedules.
package amortization

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/sjperalta/fintera-lending/internal/apperrors"
)

// StableTermThreshold is the term above which the compounding factor is
// computed through log1p instead of direct exponentiation.
const StableTermThreshold = 600

// MaxTermMonths is the longest schedule a loan may request. Compute
// allocates one installment per month, so the term is bounded up front.
const MaxTermMonths = 1200

// internalScale bounds the fractional digits carried between periods.
// Currency rounding only happens on the values handed back to callers.
const internalScale = 10

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// Installment is one period of the amortization table
type Installment struct {
	Index            int             `json:"index"`
	Principal        decimal.Decimal `json:"principal"`
	Interest         decimal.Decimal `json:"interest"`
	Payment          decimal.Decimal `json:"payment"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

// Schedule is the full amortization table of a loan
type Schedule struct {
	MonthlyPayment decimal.Decimal `json:"monthly_payment"`
	Installments   []Installment   `json:"installments"`
	TotalInterest  decimal.Decimal `json:"total_interest"`
	TotalPayment   decimal.Decimal `json:"total_payment"`
}

// MonthlyRate converts an annual percentage rate into a monthly fraction
func MonthlyRate(annualRatePercent decimal.Decimal) decimal.Decimal {
	return annualRatePercent.Div(hundred).Div(twelve)
}

// Payment returns the unrounded level monthly payment
func Payment(principal, monthlyRate decimal.Decimal, termMonths int) decimal.Decimal {
	if monthlyRate.IsZero() {
		return principal.Div(decimal.NewFromInt(int64(termMonths)))
	}
	r := monthlyRate.InexactFloat64()
	n := float64(termMonths)

	// P * r / (1 - (1+r)^-n)
	var discount float64
	if termMonths > StableTermThreshold {
		discount = math.Exp(-n * math.Log1p(r))
	} else {
		discount = 1 / math.Pow(1+r, n)
	}
	denominator := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(discount))
	return principal.Mul(monthlyRate).Div(denominator)
}

// Validate checks loan terms before any computation
func Validate(principal, annualRatePercent decimal.Decimal, termMonths int) error {
	if !principal.IsPositive() {
		return apperrors.NewValidationError("principal", "must be greater than zero")
	}
	if annualRatePercent.IsNegative() {
		return apperrors.NewValidationError("annual_rate", "must not be negative")
	}
	if termMonths < 1 {
		return apperrors.NewValidationError("term_months", "must be at least 1")
	}
	if termMonths > MaxTermMonths {
		return apperrors.NewValidationError("term_months", fmt.Sprintf("must be at most %d", MaxTermMonths))
	}
	return nil
}

// Compute builds the amortization table for a loan.
//
// Interest accrues on the unrounded balance. Each reported installment is
// rounded to cents with Payment == Principal + Interest, and the final
// installment absorbs the residue so the principal portions sum exactly to
// the loan principal.
func Compute(principal, annualRatePercent decimal.Decimal, termMonths int) (*Schedule, error) {
	if err := Validate(principal, annualRatePercent, termMonths); err != nil {
		return nil, err
	}

	rate := MonthlyRate(annualRatePercent)
	payment := Payment(principal, rate, termMonths)
	roundedPayment := payment.Round(2)

	sched := &Schedule{
		MonthlyPayment: roundedPayment,
		Installments:   make([]Installment, 0, termMonths),
		TotalInterest:  decimal.Zero,
		TotalPayment:   decimal.Zero,
	}

	balance := principal
	repaid := decimal.Zero

	for i := 1; i <= termMonths; i++ {
		interest := balance.Mul(rate).Round(internalScale)
		balance = balance.Sub(payment.Sub(interest))
		if balance.IsNegative() {
			balance = decimal.Zero
		}

		interestPortion := interest.Round(2)
		var principalPortion decimal.Decimal
		if i == termMonths {
			principalPortion = principal.Sub(repaid)
		} else {
			principalPortion = roundedPayment.Sub(interestPortion)
			if principalPortion.IsNegative() {
				principalPortion = decimal.Zero
			}
			if left := principal.Sub(repaid); principalPortion.GreaterThan(left) {
				principalPortion = left
			}
		}
		repaid = repaid.Add(principalPortion)

		inst := Installment{
			Index:            i,
			Principal:        principalPortion,
			Interest:         interestPortion,
			Payment:          principalPortion.Add(interestPortion),
			RemainingBalance: principal.Sub(repaid),
		}
		sched.Installments = append(sched.Installments, inst)
		sched.TotalInterest = sched.TotalInterest.Add(inst.Interest)
		sched.TotalPayment = sched.TotalPayment.Add(inst.Payment)
	}

	return sched, nil
}
