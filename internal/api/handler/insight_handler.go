package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/pawprint/pkg/response"
)

// TrendingTags 近期热门标签
// @Summary 热门标签
// @Tags 发现
// @Param limit query int false "数量" default(10)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/insights/trending [get]
func (h *Handler) TrendingTags(c *gin.Context) {
	tags, err := h.gate.TrendingTags(c.Request.Context(), me(c), limit(c, 10))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"list": tags})
}

// SuggestedUsers 推荐关注
// @Summary 推荐用户
// @Tags 发现
// @Param limit query int false "数量" default(10)
// @Router /api/v1/insights/suggested [get]
func (h *Handler) SuggestedUsers(c *gin.Context) {
	users, err := h.gate.SuggestedUsers(c.Request.Context(), me(c), limit(c, 10))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"list": users})
}
