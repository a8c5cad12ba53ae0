package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-lending/internal/middleware"
	"github.com/sjperalta/fintera-lending/internal/models"
	"github.com/sjperalta/fintera-lending/internal/repository"
	"github.com/sjperalta/fintera-lending/internal/services"
)

type IncomeHandler struct {
	incomeService *services.IncomeService
	reportService *services.ReportService
}

func NewIncomeHandler(incomeService *services.IncomeService, reportService *services.ReportService) *IncomeHandler {
	return &IncomeHandler{incomeService: incomeService, reportService: reportService}
}

// dateRange reads the optional from/to query parameters. to is inclusive.
func dateRange(c *gin.Context) (time.Time, time.Time, error) {
	var from, to time.Time
	f, err := parseDate("from", c.Query("from"))
	if err != nil {
		return from, to, err
	}
	t, err := parseDate("to", c.Query("to"))
	if err != nil {
		return from, to, err
	}
	if f != nil {
		from = *f
	}
	if t != nil {
		to = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return from, to, nil
}

// @Summary List Income
// @Description Income ledger of the tenant with the sum of the matching records
// @Tags Income
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param loan_id query int false "Filter by loan"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /income [get]
func (h *IncomeHandler) Index(c *gin.Context) {
	from, to, err := dateRange(c)
	if err != nil {
		respondError(c, err)
		return
	}

	query := &repository.IncomeQuery{
		ListQuery: listQuery(c),
		TenantID:  middleware.GetTenantID(c),
		Category:  c.Query("category"),
		From:      from,
		To:        to,
	}
	if loanID := c.Query("loan_id"); loanID != "" {
		id, err := strconv.ParseUint(loanID, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid loan_id"})
			return
		}
		query.LoanID = uint(id)
	}

	records, total, err := h.incomeService.List(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	sum, err := h.incomeService.Total(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]models.IncomeRecordResponse, 0, len(records))
	for i := range records {
		responses = append(responses, records[i].ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{
		"income":       responses,
		"total_amount": sum.StringFixed(2),
		"pagination":   pagination(query.ListQuery, total),
	})
}

// @Summary Export Income (XLSX)
// @Tags Income
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /income.xlsx [get]
func (h *IncomeHandler) ExportXLSX(c *gin.Context) {
	from, to, err := dateRange(c)
	if err != nil {
		respondError(c, err)
		return
	}
	report, err := h.reportService.IncomeXLSX(c.Request.Context(), middleware.GetTenantID(c), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	sendFile(c, contentTypeXLSX, report)
}
