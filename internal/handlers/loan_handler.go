package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/sjperalta/fintera-lending/internal/middleware"
	"github.com/sjperalta/fintera-lending/internal/models"
	"github.com/sjperalta/fintera-lending/internal/repository"
	"github.com/sjperalta/fintera-lending/internal/services"
)

type LoanHandler struct {
	loanService  *services.LoanService
	auditService *services.AuditService
}

func NewLoanHandler(loanService *services.LoanService, auditService *services.AuditService) *LoanHandler {
	return &LoanHandler{loanService: loanService, auditService: auditService}
}

// CreateLoanRequest accepts both {"loan": {...}} and a flat body
type CreateLoanRequest struct {
	CustomerRef     string          `json:"customer_ref"`
	Principal       decimal.Decimal `json:"principal"`
	AnnualRate      decimal.Decimal `json:"annual_rate"`
	TermMonths      int             `json:"term_months"`
	Purpose         *string         `json:"purpose"`
	ApplicationDate string          `json:"application_date"`
	StartDate       string          `json:"start_date"`
}

type UpdateLoanRequest struct {
	CustomerRef *string          `json:"customer_ref"`
	Principal   *decimal.Decimal `json:"principal"`
	AnnualRate  *decimal.Decimal `json:"annual_rate"`
	TermMonths  *int             `json:"term_months"`
	Purpose     *string          `json:"purpose"`
	StartDate   *string          `json:"start_date"`
}

type RejectLoanRequest struct {
	Reason string `json:"reason"`
}

type DisburseLoanRequest struct {
	StartDate string `json:"start_date"`
}

// @Summary Create Loan
// @Description Register a pending loan application
// @Tags Loans
// @Accept json
// @Produce json
// @Param loan body CreateLoanRequest true "Loan terms"
// @Success 201 {object} models.LoanResponse
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /loans [post]
func (h *LoanHandler) Create(c *gin.Context) {
	var req CreateLoanRequest
	if err := BindNestedOrFlat(c, "loan", &req); err != nil {
		bindError(c, err)
		return
	}

	appDate, err := parseDate("application_date", req.ApplicationDate)
	if err != nil {
		respondError(c, err)
		return
	}
	startDate, err := parseDate("start_date", req.StartDate)
	if err != nil {
		respondError(c, err)
		return
	}

	loan, err := h.loanService.Create(c.Request.Context(), middleware.GetActor(c), services.CreateLoanInput{
		CustomerRef:     req.CustomerRef,
		Principal:       req.Principal,
		AnnualRate:      req.AnnualRate,
		TermMonths:      req.TermMonths,
		Purpose:         req.Purpose,
		ApplicationDate: appDate,
		StartDate:       startDate,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, loan.ToResponse(time.Now()))
}

// @Summary List Loans
// @Description Get a paginated list of the tenant's loans
// @Tags Loans
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param status query string false "Filter by status"
// @Param customer_ref query string false "Filter by customer reference"
// @Param sort query string false "Sort as field-direction, e.g. created_at-desc"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /loans [get]
func (h *LoanHandler) Index(c *gin.Context) {
	query := &repository.LoanQuery{
		ListQuery:   listQuery(c),
		TenantID:    middleware.GetTenantID(c),
		Status:      c.Query("status"),
		CustomerRef: c.Query("customer_ref"),
	}

	loans, total, err := h.loanService.List(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	now := time.Now()
	responses := make([]models.LoanResponse, 0, len(loans))
	for i := range loans {
		responses = append(responses, loans[i].ToResponse(now))
	}

	c.JSON(http.StatusOK, gin.H{
		"loans":      responses,
		"pagination": pagination(query.ListQuery, total),
	})
}

// @Summary Get Loan
// @Description Get a loan by ID, optionally with its schedule (include=schedule)
// @Tags Loans
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Param include query string false "schedule"
// @Success 200 {object} models.LoanResponse
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /loans/{loan_id} [get]
func (h *LoanHandler) Show(c *gin.Context) {
	id, err := paramID(c, "loan_id")
	if err != nil {
		respondError(c, err)
		return
	}

	var loan *models.Loan
	if c.Query("include") == "schedule" {
		loan, err = h.loanService.FindWithSchedule(c.Request.Context(), middleware.GetActor(c), id)
	} else {
		loan, err = h.loanService.FindByID(c.Request.Context(), middleware.GetActor(c), id)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, loan.ToResponse(time.Now()))
}

// @Summary Update Loan
// @Description Edit a loan. Principal, rate, term and start date only change while pending.
// @Tags Loans
// @Accept json
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Param loan body UpdateLoanRequest true "Fields to change"
// @Success 200 {object} models.LoanResponse
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /loans/{loan_id} [patch]
func (h *LoanHandler) Update(c *gin.Context) {
	id, err := paramID(c, "loan_id")
	if err != nil {
		respondError(c, err)
		return
	}

	var req UpdateLoanRequest
	if err := BindNestedOrFlat(c, "loan", &req); err != nil {
		bindError(c, err)
		return
	}

	in := services.UpdateLoanInput{
		CustomerRef: req.CustomerRef,
		Principal:   req.Principal,
		AnnualRate:  req.AnnualRate,
		TermMonths:  req.TermMonths,
		Purpose:     req.Purpose,
	}
	if req.StartDate != nil {
		if in.StartDate, err = parseDate("start_date", *req.StartDate); err != nil {
			respondError(c, err)
			return
		}
	}

	loan, err := h.loanService.Update(c.Request.Context(), middleware.GetActor(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, loan.ToResponse(time.Now()))
}

// @Summary Delete Loan
// @Description Delete a loan and its schedule
// @Tags Loans
// @Param loan_id path int true "Loan ID"
// @Success 204
// @Security BearerAuth
// @Router /loans/{loan_id} [delete]
func (h *LoanHandler) Delete(c *gin.Context) {
	id, err := paramID(c, "loan_id")
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.loanService.Delete(c.Request.Context(), middleware.GetActor(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Approve Loan
// @Tags Loans
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Success 200 {object} models.LoanResponse
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /loans/{loan_id}/approve [post]
func (h *LoanHandler) Approve(c *gin.Context) {
	id, err := paramID(c, "loan_id")
	if err != nil {
		respondError(c, err)
		return
	}
	loan, err := h.loanService.Approve(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loan.ToResponse(time.Now()))
}

// @Summary Reject Loan
// @Tags Loans
// @Accept json
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Param body body RejectLoanRequest false "Rejection reason"
// @Success 200 {object} models.LoanResponse
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /loans/{loan_id}/reject [post]
func (h *LoanHandler) Reject(c *gin.Context) {
	id, err := paramID(c, "loan_id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req RejectLoanRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}
	loan, err := h.loanService.Reject(c.Request.Context(), middleware.GetActor(c), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loan.ToResponse(time.Now()))
}

// @Summary Disburse Loan
// @Description Disburse an approved loan and generate its payment schedule
// @Tags Loans
// @Accept json
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Param body body DisburseLoanRequest false "Schedule start date"
// @Success 200 {object} models.LoanResponse
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /loans/{loan_id}/disburse [post]
func (h *LoanHandler) Disburse(c *gin.Context) {
	id, err := paramID(c, "loan_id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req DisburseLoanRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}
	startDate, err := parseDate("start_date", req.StartDate)
	if err != nil {
		respondError(c, err)
		return
	}

	loan, err := h.loanService.Disburse(c.Request.Context(), middleware.GetActor(c), id, startDate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loan.ToResponse(time.Now()))
}

// @Summary Close Loan
// @Description Close a disbursed loan whose installments are all paid
// @Tags Loans
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Success 200 {object} models.LoanResponse
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /loans/{loan_id}/close [post]
func (h *LoanHandler) Close(c *gin.Context) {
	id, err := paramID(c, "loan_id")
	if err != nil {
		respondError(c, err)
		return
	}
	loan, err := h.loanService.Close(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loan.ToResponse(time.Now()))
}

// @Summary Loan Audit Trail
// @Tags Loans
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Param limit query int false "Max entries" default(50)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /loans/{loan_id}/audits [get]
func (h *LoanHandler) Audits(c *gin.Context) {
	id, err := paramID(c, "loan_id")
	if err != nil {
		respondError(c, err)
		return
	}
	actor := middleware.GetActor(c)
	if _, err := h.loanService.FindByID(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	logs, total, err := h.auditService.List(c.Request.Context(), actor.TenantID, "Loan", id, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audits": logs, "total": total})
}
