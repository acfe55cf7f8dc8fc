package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/pawprint/internal/model"
	"github.com/d60-Lab/pawprint/pkg/response"
)

type followRequest struct {
	ToUserID string `json:"to_user_id" binding:"required"`
}

// Follow 关注用户
// @Summary 关注用户
// @Tags 关系链
// @Accept json
// @Produce json
// @Param request body followRequest true "关注信息"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/relations/follow [post]
func (h *Handler) Follow(c *gin.Context) {
	var req followRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	changed, err := h.gate.Follow(c.Request.Context(), me(c), req.ToUserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"changed": changed})
}

// Unfollow 取消关注
// @Summary 取消关注
// @Tags 关系链
// @Accept json
// @Produce json
// @Param request body followRequest true "取消关注信息"
// @Success 200 {object} response.Response
// @Router /api/v1/relations/unfollow [post]
func (h *Handler) Unfollow(c *gin.Context) {
	var req followRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	changed, err := h.gate.Unfollow(c.Request.Context(), me(c), req.ToUserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"changed": changed})
}

// ListFollowing 查询某用户关注的人
// @Summary 查询关注列表
// @Tags 关系链
// @Param user_id path string true "用户ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/relations/{user_id}/following [get]
func (h *Handler) ListFollowing(c *gin.Context) {
	page, pageSize := paging(c)
	list, err := h.gate.ListFollowing(c.Request.Context(), c.Param("user_id"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}

// ListFollowers 查询某用户的粉丝
// @Summary 查询粉丝列表
// @Tags 关系链
// @Param user_id path string true "用户ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/relations/{user_id}/followers [get]
func (h *Handler) ListFollowers(c *gin.Context) {
	page, pageSize := paging(c)
	list, err := h.gate.ListFollowers(c.Request.Context(), c.Param("user_id"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}

func likeTarget(c *gin.Context) model.Target {
	return model.Target{Type: model.TargetType(c.Param("type")), ID: c.Param("id")}
}

// Like 点赞（幂等）
// @Summary 点赞
// @Tags 互动
// @Param type path string true "目标类型" Enums(post, comment, activity)
// @Param id path string true "目标ID"
// @Router /api/v1/likes/{type}/{id} [put]
func (h *Handler) Like(c *gin.Context) {
	changed, err := h.gate.Like(c.Request.Context(), me(c), likeTarget(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"changed": changed})
}

// Unlike 取消点赞（不受权益限制）
// @Summary 取消点赞
// @Tags 互动
// @Param type path string true "目标类型" Enums(post, comment, activity)
// @Param id path string true "目标ID"
// @Router /api/v1/likes/{type}/{id} [delete]
func (h *Handler) Unlike(c *gin.Context) {
	changed, err := h.gate.Unlike(c.Request.Context(), me(c), likeTarget(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"changed": changed})
}

// @Summary 是否已点赞
// @Tags 互动
// @Router /api/v1/likes/{type}/{id} [get]
func (h *Handler) IsLiked(c *gin.Context) {
	liked, err := h.gate.IsLiked(c.Request.Context(), me(c), likeTarget(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"liked": liked})
}

// SaveFavorite 收藏活动
// @Summary 收藏
// @Tags 互动
// @Param id path string true "活动ID"
// @Failure 403 {object} response.Response "PREMIUM_REQUIRED"
// @Router /api/v1/activities/{id}/favorite [put]
func (h *Handler) SaveFavorite(c *gin.Context) {
	changed, err := h.gate.SaveFavorite(c.Request.Context(), me(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"changed": changed})
}

// @Summary 取消收藏
// @Tags 互动
// @Param id path string true "活动ID"
// @Router /api/v1/activities/{id}/favorite [delete]
func (h *Handler) RemoveFavorite(c *gin.Context) {
	changed, err := h.gate.RemoveFavorite(c.Request.Context(), me(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"changed": changed})
}

// @Summary 我的收藏
// @Tags 互动
// @Router /api/v1/me/favorites [get]
func (h *Handler) ListFavorites(c *gin.Context) {
	list, err := h.gate.ListFavorites(c.Request.Context(), me(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"list": list})
}
