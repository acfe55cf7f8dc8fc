package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/pawprint/pkg/metrics"
)

const (
	secret = "test-secret"
	issuer = "pawprint"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func whoami(c *gin.Context) {
	c.String(http.StatusOK, UserID(c))
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	r := gin.New()
	r.GET("/me", Auth(secret, issuer), whoami)

	good, err := IssueToken(secret, issuer, "u1", time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(secret, issuer, "u1", -time.Minute)
	require.NoError(t, err)
	foreign, err := IssueToken(secret, "someone-else", "u1", time.Hour)
	require.NoError(t, err)
	forged, err := IssueToken("other-secret", issuer, "u1", time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + good, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic " + good, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong issuer", "Bearer " + foreign, http.StatusUnauthorized},
		{"wrong key", "Bearer " + forged, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := serve(r, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "u1", w.Body.String())
			}
		})
	}
}

func TestRateLimiterIsPerUser(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		c.Set(userIDKey, c.Query("u"))
		c.Next()
	}, rl.Middleware(), whoami)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/x?u=a", nil)).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, serve(r, httptest.NewRequest(http.MethodGet, "/x?u=a", nil)).Code)
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/x?u=b", nil)).Code)

	assert.Equal(t, 0, rl.Sweep(time.Hour))
	assert.Equal(t, 2, rl.Sweep(-time.Second))
}

func TestWebhookSecret(t *testing.T) {
	r := gin.New()
	r.POST("/hook", WebhookSecret("s3cret"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodPost, "/hook", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/hook", nil)
	req.Header.Set(WebhookSecretHeader, "s3cret")
	assert.Equal(t, http.StatusNoContent, serve(r, req).Code)

	disabled := gin.New()
	disabled.POST("/hook", WebhookSecret(""), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	req = httptest.NewRequest(http.MethodPost, "/hook", nil)
	req.Header.Set(WebhookSecretHeader, "")
	assert.Equal(t, http.StatusUnauthorized, serve(disabled, req).Code)
}

func TestSentryRecoversPanics(t *testing.T) {
	r := gin.New()
	r.Use(Edge()...)
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestPanickedRequestIsCounted(t *testing.T) {
	r := gin.New()
	r.Use(Edge()...)
	r.GET("/boom/counted", func(c *gin.Context) { panic("boom") })

	requests := func() float64 {
		mfs, err := metrics.Registry.Gather()
		require.NoError(t, err)
		for _, mf := range mfs {
			if mf.GetName() != "pawprint_http_requests_total" {
				continue
			}
			for _, m := range mf.GetMetric() {
				labels := map[string]string{}
				for _, l := range m.GetLabel() {
					labels[l.GetName()] = l.GetValue()
				}
				if labels["route"] == "/boom/counted" && labels["status"] == "500" {
					return m.GetCounter().GetValue()
				}
			}
		}
		return 0
	}

	before := requests()
	serve(r, httptest.NewRequest(http.MethodGet, "/boom/counted", nil))
	assert.Equal(t, before+1, requests())
}
