package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/pawprint/internal/api/middleware"
	"github.com/d60-Lab/pawprint/internal/service"
)

// IdempotencyHeader lets clients retry creates safely.
const IdempotencyHeader = "Idempotency-Key"

type Handler struct {
	gate *service.Gate
	subs *service.SubscriptionService
}

func New(gate *service.Gate, subs *service.SubscriptionService) *Handler {
	return &Handler{gate: gate, subs: subs}
}

func paging(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	return page, pageSize
}

func limit(c *gin.Context, def int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n < 1 {
		return def
	}
	return n
}

func me(c *gin.Context) string { return middleware.UserID(c) }
