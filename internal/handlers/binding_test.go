package handlers

import (
	"bytes"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindNestedOrFlat(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name        string
		key         string
		body        string
		principal   string
		term        int
		expectError bool
	}{
		{"nested", "loan", `{"loan": {"principal": "25000.00", "term_months": 12}}`, "25000", 12, false},
		{"flat", "loan", `{"principal": 1500.5, "term_months": 6}`, "1500.5", 6, false},
		{"missing envelope falls back to flat", "loan", `{"other": 1, "principal": "10", "term_months": 1}`, "10", 1, false},
		{"invalid flat content", "loan", `{"principal": "abc", "term_months": 1}`, "", 0, true},
		{"invalid nested content", "loan", `{"loan": {"term_months": "twelve"}}`, "", 0, true},
		{"envelope of wrong type", "loan", `{"loan": "pending"}`, "", 0, true},
		{"not json", "loan", `principal=10`, "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("POST", "/", bytes.NewBufferString(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			var req CreateLoanRequest
			err := BindNestedOrFlat(c, tt.key, &req)

			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.principal, req.Principal.String())
			assert.Equal(t, tt.term, req.TermMonths)
		})
	}
}

func TestBindNestedOrFlat_RestoresBody(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := `{"payment": {"amount": "100.00"}}`
	c.Request = httptest.NewRequest("POST", "/", bytes.NewBufferString(body))

	var req RecordPaymentRequest
	require.NoError(t, BindNestedOrFlat(c, "payment", &req))
	assert.Equal(t, "100", req.Amount.String())

	rest, err := io.ReadAll(c.Request.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(rest))
}
