package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Auth(testSecret))
	r.GET("/me", func(c *gin.Context) {
		actor := GetActor(c)
		c.JSON(http.StatusOK, gin.H{"user_id": actor.UserID, "tenant_id": actor.TenantID, "role": GetUserRole(c)})
	})
	r.POST("/admin", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/staff", RequireRole(RoleAdmin, RoleOfficer), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestAuth(t *testing.T) {
	r := newAuthRouter()

	valid, err := IssueToken(testSecret, 7, 3, RoleOfficer, time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(testSecret, 7, 3, RoleOfficer, -time.Minute)
	require.NoError(t, err)
	forged, err := IssueToken("other-secret", 7, 3, RoleAdmin, time.Hour)
	require.NoError(t, err)
	noTenant, err := IssueToken(testSecret, 7, 0, RoleAdmin, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"valid bearer", "Bearer " + valid, "", http.StatusOK},
		{"token in query", "", "?token=" + valid, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"bad scheme", "Basic " + valid, "", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, "", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + forged, "", http.StatusUnauthorized},
		{"no tenant", "Bearer " + noTenant, "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"user_id":7,"tenant_id":3,"role":"officer"}`, w.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	r := newAuthRouter()

	officer, _ := IssueToken(testSecret, 1, 1, RoleOfficer, time.Hour)
	admin, _ := IssueToken(testSecret, 2, 1, RoleAdmin, time.Hour)
	viewer, _ := IssueToken(testSecret, 3, 1, RoleViewer, time.Hour)

	tests := []struct {
		path   string
		token  string
		status int
	}{
		{"/admin", admin, http.StatusNoContent},
		{"/admin", officer, http.StatusForbidden},
		{"/staff", officer, http.StatusNoContent},
		{"/staff", admin, http.StatusNoContent},
		{"/staff", viewer, http.StatusForbidden},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, tt.path, nil)
		req.Header.Set("Authorization", "Bearer "+tt.token)
		r.ServeHTTP(w, req)
		assert.Equal(t, tt.status, w.Code, tt.path)
	}
}
