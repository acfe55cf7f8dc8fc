package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/pawprint/pkg/errorx"
)

func render(t *testing.T, fn func(*gin.Context)) (int, Response) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	fn(c)

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantReason string
	}{
		{"not found", errorx.NotFound("post %s not found", "p1"), http.StatusNotFound, ""},
		{"invalid", errorx.Invalid("bad"), http.StatusBadRequest, ""},
		{"conflict", errorx.Conflict("taken"), http.StatusConflict, ""},
		{"email", errorx.Denied(errorx.ReasonEmailNotVerified), http.StatusForbidden, "EMAIL_NOT_VERIFIED"},
		{"limit", errorx.LimitReached(), http.StatusForbidden, "LIMIT_REACHED"},
		{"wrapped", fmt.Errorf("gate: %w", errorx.Denied(errorx.ReasonPremiumRequired)), http.StatusForbidden, "PREMIUM_REQUIRED"},
		{"plain", errors.New("db down"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := render(t, func(c *gin.Context) { Error(c, tt.err) })
			assert.Equal(t, tt.wantStatus, code)
			assert.Equal(t, tt.wantStatus, body.Code)
			assert.Equal(t, tt.wantReason, body.Reason)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestInternalErrorHidesCause(t *testing.T) {
	code, body := render(t, func(c *gin.Context) { InternalError(c, errors.New("password=hunter2")) })
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal server error", body.Message)
}

func TestSuccess(t *testing.T) {
	code, body := render(t, func(c *gin.Context) { Success(c, gin.H{"ok": true}) })
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, body.Code)
	assert.Equal(t, map[string]any{"ok": true}, body.Data)
}
