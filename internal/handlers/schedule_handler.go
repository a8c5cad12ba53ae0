package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/sjperalta/fintera-lending/internal/middleware"
	"github.com/sjperalta/fintera-lending/internal/models"
	"github.com/sjperalta/fintera-lending/internal/services"
)

type ScheduleHandler struct {
	scheduleService *services.ScheduleService
	reportService   *services.ReportService
}

func NewScheduleHandler(scheduleService *services.ScheduleService, reportService *services.ReportService) *ScheduleHandler {
	return &ScheduleHandler{
		scheduleService: scheduleService,
		reportService:   reportService,
	}
}

// @Summary Loan Payment Schedule
// @Description Installments of a loan ordered by number, with totals
// @Tags Schedules
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /loans/{loan_id}/schedule [get]
func (h *ScheduleHandler) Show(c *gin.Context) {
	id, err := paramID(c, "loan_id")
	if err != nil {
		respondError(c, err)
		return
	}

	entries, err := h.scheduleService.ForLoan(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	now := time.Now()
	paid := decimal.Zero
	outstanding := decimal.Zero
	responses := make([]models.ScheduleEntryResponse, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		responses = append(responses, e.ToResponse(now))
		paid = paid.Add(e.Paid())
		if !e.IsPaid() {
			outstanding = outstanding.Add(e.AmountDue())
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"loan_id":  id,
		"schedule": responses,
		"totals": gin.H{
			"installments": len(entries),
			"total_due":    services.TotalDue(entries).StringFixed(2),
			"paid":         paid.StringFixed(2),
			"outstanding":  outstanding.StringFixed(2),
		},
	})
}

// @Summary Export Schedule (XLSX)
// @Tags Schedules
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param loan_id path int true "Loan ID"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /loans/{loan_id}/schedule.xlsx [get]
func (h *ScheduleHandler) ExportXLSX(c *gin.Context) {
	id, err := paramID(c, "loan_id")
	if err != nil {
		respondError(c, err)
		return
	}
	report, err := h.reportService.ScheduleXLSX(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	sendFile(c, contentTypeXLSX, report)
}

// @Summary Export Schedule (PDF)
// @Tags Schedules
// @Produce application/pdf
// @Param loan_id path int true "Loan ID"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /loans/{loan_id}/schedule.pdf [get]
func (h *ScheduleHandler) ExportPDF(c *gin.Context) {
	id, err := paramID(c, "loan_id")
	if err != nil {
		respondError(c, err)
		return
	}
	report, err := h.reportService.SchedulePDF(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	sendFile(c, contentTypePDF, report)
}
