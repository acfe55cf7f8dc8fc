package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/pawprint/pkg/response"
)

// WebhookSecretHeader carries the shared secret on provider callbacks.
const WebhookSecretHeader = "X-Webhook-Secret"

// WebhookSecret rejects callbacks without the shared secret. An empty secret
// disables the endpoint.
func WebhookSecret(secret string) gin.HandlerFunc {
	want := []byte(secret)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader(WebhookSecretHeader))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			response.Unauthorized(c, "invalid webhook secret")
			return
		}
		c.Next()
	}
}
