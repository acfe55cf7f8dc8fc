package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/pawprint/internal/service"
	"github.com/d60-Lab/pawprint/pkg/response"
)

// AccountEvent 身份/支付提供方回调
// @Summary 账号事件回调
// @Tags 回调
// @Accept json
// @Param X-Webhook-Secret header string true "共享密钥"
// @Param request body service.AccountEvent true "事件"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/webhooks/events [post]
func (h *Handler) AccountEvent(c *gin.Context) {
	var ev service.AccountEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, changed, err := h.subs.Apply(c.Request.Context(), ev)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"changed": changed, "status": u.Status, "tier": u.Tier})
}
