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

type PaymentHandler struct {
	reconciliationService *services.ReconciliationService
	incomeService         *services.IncomeService
}

func NewPaymentHandler(reconciliationService *services.ReconciliationService, incomeService *services.IncomeService) *PaymentHandler {
	return &PaymentHandler{reconciliationService: reconciliationService, incomeService: incomeService}
}

type RecordPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate string          `json:"payment_date"`
}

type PaymentResponse struct {
	Entry         models.ScheduleEntryResponse `json:"entry"`
	IncomeEmitted bool                         `json:"income_emitted"`
	Income        *models.IncomeRecordResponse `json:"income,omitempty"`
	Overpayment   string                       `json:"overpayment"`
}

// @Summary Record Payment
// @Description Apply a payment to a schedule entry. Settling an entry recognizes its interest as income once.
// @Tags Payments
// @Accept json
// @Produce json
// @Param schedule_id path int true "Schedule entry ID"
// @Param payment body RecordPaymentRequest true "Payment"
// @Success 201 {object} PaymentResponse
// @Failure 409 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Failure 429 {object} map[string]string
// @Security BearerAuth
// @Router /schedules/{schedule_id}/payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	id, err := paramID(c, "schedule_id")
	if err != nil {
		respondError(c, err)
		return
	}

	var req RecordPaymentRequest
	if err := BindNestedOrFlat(c, "payment", &req); err != nil {
		bindError(c, err)
		return
	}
	paymentDate, err := parseDate("payment_date", req.PaymentDate)
	if err != nil {
		respondError(c, err)
		return
	}

	in := services.PaymentInput{
		ScheduleEntryID: id,
		Amount:          req.Amount,
		Actor:           middleware.GetActor(c),
	}
	if paymentDate != nil {
		in.PaymentDate = *paymentDate
	}

	result, err := h.reconciliationService.ApplyPayment(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := PaymentResponse{
		Entry:         result.Entry.ToResponse(time.Now()),
		IncomeEmitted: result.IncomeEmitted,
		Overpayment:   result.Overpayment.StringFixed(2),
	}
	if result.Income != nil {
		income := result.Income.ToResponse()
		resp.Income = &income
	}
	c.JSON(http.StatusCreated, resp)
}

// @Summary Schedule Entry Income
// @Description Income recognized for a schedule entry
// @Tags Payments
// @Produce json
// @Param schedule_id path int true "Schedule entry ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /schedules/{schedule_id}/income [get]
func (h *PaymentHandler) Income(c *gin.Context) {
	id, err := paramID(c, "schedule_id")
	if err != nil {
		respondError(c, err)
		return
	}
	records, err := h.incomeService.ForScheduleEntry(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	tenantID := middleware.GetTenantID(c)
	responses := make([]models.IncomeRecordResponse, 0, len(records))
	for i := range records {
		if records[i].TenantID != tenantID {
			continue
		}
		responses = append(responses, records[i].ToResponse())
	}
	c.JSON(http.StatusOK, gin.H{"income": responses})
}
