package services

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sjperalta/fintera-lending/internal/models"
	"github.com/sjperalta/fintera-lending/internal/repository"
)

// IncomeService reads the income ledger. Records are written only by
// payment reconciliation.
type IncomeService struct {
	repo repository.IncomeRepository
}

func NewIncomeService(repo repository.IncomeRepository) *IncomeService {
	return &IncomeService{repo: repo}
}

// List returns ledger records matching the query and the total count
func (s *IncomeService) List(ctx context.Context, query *repository.IncomeQuery) ([]models.IncomeRecord, int64, error) {
	return s.repo.List(ctx, query)
}

// Total sums the amounts of the records matching the query
func (s *IncomeService) Total(ctx context.Context, query *repository.IncomeQuery) (decimal.Decimal, error) {
	return s.repo.Total(ctx, query)
}

func (s *IncomeService) ForScheduleEntry(ctx context.Context, entryID uint) ([]models.IncomeRecord, error) {
	return s.repo.FindByScheduleEntry(ctx, entryID)
}
