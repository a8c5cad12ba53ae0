package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/sjperalta/fintera-lending/internal/apperrors"
)

// ListQuery represents common query parameters
type ListQuery struct {
	Page    int
	PerPage int
	Search  string
	SortBy  string
	SortDir string
	Filters map[string]string
}

// NewListQuery creates a ListQuery with defaults
func NewListQuery() *ListQuery {
	return &ListQuery{
		Page:    1,
		PerPage: 20,
		Filters: make(map[string]string),
	}
}

// paginate applies sorting and paging. Only whitelisted columns are sortable.
func (q *ListQuery) paginate(db *gorm.DB, sortable map[string]bool, defaultOrder string) *gorm.DB {
	if q.SortBy != "" && sortable[q.SortBy] {
		order := q.SortBy
		if q.SortDir == "desc" {
			order += " DESC"
		}
		db = db.Order(order)
	} else {
		db = db.Order(defaultOrder)
	}

	if q.PerPage > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		db = db.Offset((page - 1) * q.PerPage).Limit(q.PerPage)
	}
	return db
}

// translate maps gorm errors onto the application error categories
func translate(op, entity string, id uint, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NewNotFoundError(entity, id)
	}
	return apperrors.WrapPersistence(op, err)
}
