package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sjperalta/fintera-lending/internal/amortization"
	"github.com/sjperalta/fintera-lending/internal/cache"
	"github.com/sjperalta/fintera-lending/internal/metrics"
)

// QuoteService computes amortization tables for prospective loans. Results
// are cached by their inputs and must be treated as read-only.
type QuoteService struct {
	cache cache.Cache[string, *amortization.Schedule]
}

func NewQuoteService(c cache.Cache[string, *amortization.Schedule]) *QuoteService {
	return &QuoteService{cache: c}
}

func quoteKey(principal, annualRate decimal.Decimal, termMonths int) string {
	return fmt.Sprintf("%s|%s|%d", principal.String(), annualRate.String(), termMonths)
}

// Quote returns the amortization table for the given terms
func (s *QuoteService) Quote(ctx context.Context, principal, annualRate decimal.Decimal, termMonths int) (*amortization.Schedule, error) {
	if err := validateTerms(principal, annualRate, termMonths); err != nil {
		return nil, err
	}

	key := quoteKey(principal, annualRate, termMonths)
	if sched, ok := s.cache.Get(ctx, key); ok {
		metrics.Lending.QuoteCache.WithLabelValues("hit").Inc()
		return sched, nil
	}
	metrics.Lending.QuoteCache.WithLabelValues("miss").Inc()

	sched, err := amortization.Compute(principal, annualRate, termMonths)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, sched)
	return sched, nil
}
