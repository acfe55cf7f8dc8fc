// Package response writes the JSON envelope every handler answers with.
package response

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/pawprint/pkg/errorx"
	"github.com/d60-Lab/pawprint/pkg/logger"
)

// Response 统一响应结构
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Response{Code: 0, Message: "success", Data: data})
}

func BadRequest(c *gin.Context, msg string) {
	abort(c, http.StatusBadRequest, msg, "")
}

func Unauthorized(c *gin.Context, msg string) {
	abort(c, http.StatusUnauthorized, msg, "")
}

func TooManyRequests(c *gin.Context) {
	abort(c, http.StatusTooManyRequests, "too many requests", "")
}

// InternalError hides err from the client, logs it and reports it to sentry.
func InternalError(c *gin.Context, err error) {
	logger.Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	if hub := sentry.GetHubFromContext(c.Request.Context()); hub != nil {
		hub.CaptureException(err)
	} else {
		sentry.CaptureException(err)
	}
	abort(c, http.StatusInternalServerError, "internal server error", "")
}

// Error maps domain errors onto HTTP statuses; anything else is a 500.
func Error(c *gin.Context, err error) {
	e, ok := errorx.As(err)
	if !ok {
		InternalError(c, err)
		return
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	abort(c, Status(e.Kind), msg, string(e.Reason))
}

// Status returns the HTTP status for a domain error kind.
func Status(k errorx.Kind) int {
	switch k {
	case errorx.KindNotFound:
		return http.StatusNotFound
	case errorx.KindInvalid:
		return http.StatusBadRequest
	case errorx.KindPermissionDenied:
		return http.StatusForbidden
	case errorx.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func abort(c *gin.Context, status int, msg, reason string) {
	c.AbortWithStatusJSON(status, Response{Code: status, Message: msg, Reason: reason})
}
