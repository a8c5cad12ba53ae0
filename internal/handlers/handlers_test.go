package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/fintera-lending/internal/amortization"
	"github.com/sjperalta/fintera-lending/internal/apperrors"
	"github.com/sjperalta/fintera-lending/internal/cache"
	"github.com/sjperalta/fintera-lending/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		field  string
	}{
		{"validation field", apperrors.NewValidationError("amount", "must be greater than zero"), http.StatusUnprocessableEntity, "amount"},
		{"bare validation", fmt.Errorf("%w: bad filter", apperrors.ErrValidation), http.StatusBadRequest, ""},
		{"not found", apperrors.NewNotFoundError("Loan", 9), http.StatusNotFound, ""},
		{"state", apperrors.NewStateError("Loan", "pending", "disburse"), http.StatusConflict, ""},
		{"already paid", apperrors.ErrEntryAlreadyPaid, http.StatusConflict, ""},
		{"persistence", apperrors.WrapPersistence("save entry", errors.New("connection reset")), http.StatusServiceUnavailable, ""},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
			assert.Equal(t, tt.field, body["field"])
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("start_date", "")
	assert.NoError(t, err)
	assert.Nil(t, d)

	d, err = parseDate("start_date", "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *d)

	_, err = parseDate("start_date", "01/03/2026")
	var verr *apperrors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "start_date", verr.Field)
}

func TestListQuery(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/loans?page=3&per_page=500&sort=created_at-desc", nil)

	q := listQuery(c)
	assert.Equal(t, 3, q.Page)
	assert.Equal(t, 20, q.PerPage)
	assert.Equal(t, "created_at", q.SortBy)
	assert.Equal(t, "desc", q.SortDir)

	p := pagination(q, 41)
	assert.Equal(t, int64(3), p["total_pages"])
}

func quoteRouter() *gin.Engine {
	svc := services.NewQuoteService(cache.NewTTLCache[string, *amortization.Schedule](time.Minute, 16, cache.SystemClock))
	r := gin.New()
	r.POST("/amortization/quote", NewQuoteHandler(svc).Create)
	return r
}

func TestQuoteHandler_Create(t *testing.T) {
	r := quoteRouter()
	body := `{"principal": "25000.00", "annual_rate": "18.50", "term_months": 12}`

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/amortization/quote", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sched amortization.Schedule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sched))
	assert.Equal(t, "2297.95", sched.MonthlyPayment.StringFixed(2))
	require.Len(t, sched.Installments, 12)
	assert.True(t, sched.Installments[11].RemainingBalance.IsZero())
}

func TestQuoteHandler_Invalid(t *testing.T) {
	r := quoteRouter()

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"zero term", `{"principal": "1000", "annual_rate": "5", "term_months": 0}`, http.StatusUnprocessableEntity},
		{"negative principal", `{"principal": "-1", "annual_rate": "5", "term_months": 3}`, http.StatusUnprocessableEntity},
		{"malformed", `{"principal": "abc"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/amortization/quote", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestPaymentHandler_RejectsBadInput(t *testing.T) {
	// nil services: these requests must fail before reaching them
	h := NewPaymentHandler(nil, nil)
	r := gin.New()
	r.POST("/schedules/:schedule_id/payments", h.Create)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"non numeric id", "/schedules/abc/payments", `{"amount": "10"}`, http.StatusUnprocessableEntity},
		{"zero id", "/schedules/0/payments", `{"amount": "10"}`, http.StatusUnprocessableEntity},
		{"bad date", "/schedules/4/payments", `{"amount": "10", "payment_date": "yesterday"}`, http.StatusUnprocessableEntity},
		{"bad body", "/schedules/4/payments", `{"amount": true}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, tt.path, bytes.NewBufferString(tt.body))
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestHealthHandler(t *testing.T) {
	r := gin.New()
	r.GET("/health", NewHealthHandler().Index)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
