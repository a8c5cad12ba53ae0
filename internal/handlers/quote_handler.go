package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/sjperalta/fintera-lending/internal/services"
)

type QuoteHandler struct {
	quoteService *services.QuoteService
}

func NewQuoteHandler(quoteService *services.QuoteService) *QuoteHandler {
	return &QuoteHandler{quoteService: quoteService}
}

type QuoteRequest struct {
	Principal  decimal.Decimal `json:"principal"`
	AnnualRate decimal.Decimal `json:"annual_rate"`
	TermMonths int             `json:"term_months"`
}

// @Summary Amortization Quote
// @Description Compute the amortization table for prospective loan terms
// @Tags Amortization
// @Accept json
// @Produce json
// @Param quote body QuoteRequest true "Loan terms"
// @Success 200 {object} amortization.Schedule
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /amortization/quote [post]
func (h *QuoteHandler) Create(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	sched, err := h.quoteService.Quote(c.Request.Context(), req.Principal, req.AnnualRate, req.TermMonths)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sched)
}
