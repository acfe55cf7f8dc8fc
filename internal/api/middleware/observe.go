package middleware

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/pawprint/pkg/logger"
	"github.com/d60-Lab/pawprint/pkg/metrics"
	"github.com/d60-Lab/pawprint/pkg/response"
)

// Edge is the outermost chain: the access log wraps Sentry's recover, so a
// panicking request is still logged and counted with its 500.
func Edge() gin.HandlersChain {
	return gin.HandlersChain{AccessLog(), Sentry()}
}

// AccessLog logs every request and records its latency.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		d := time.Since(start)
		status := c.Writer.Status()
		metrics.ObserveHTTP(c.Request.Method, route, status, d)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", d),
			zap.String("client_ip", c.ClientIP()),
		}
		if uid := UserID(c); uid != "" {
			fields = append(fields, zap.String("user_id", uid))
		}
		if status >= 500 {
			logger.Error("request", fields...)
			return
		}
		logger.Info("request", fields...)
	}
}

// Sentry puts a per-request hub on the context and reports panics.
func Sentry() gin.HandlerFunc {
	return func(c *gin.Context) {
		hub := sentry.CurrentHub().Clone()
		hub.Scope().SetRequest(c.Request)
		c.Request = c.Request.WithContext(sentry.SetHubOnContext(c.Request.Context(), hub))

		defer func() {
			if r := recover(); r != nil {
				response.InternalError(c, fmt.Errorf("panic: %v", r))
			}
		}()
		c.Next()
	}
}
