package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/pawprint/internal/entitlement"
	"github.com/d60-Lab/pawprint/internal/model"
	"github.com/d60-Lab/pawprint/pkg/response"
)

type registerRequest struct {
	Username string `json:"username" binding:"required,min=2,max=64"`
	Email    string `json:"email" binding:"required,email"`
}

// Register 以令牌中的身份创建用户
// @Summary 注册用户（ID 来自身份提供方）
// @Tags 用户
// @Accept json
// @Produce json
// @Param request body registerRequest true "用户信息"
// @Success 201 {object} response.Response{data=model.User}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/users [post]
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, err := h.gate.RegisterUser(c.Request.Context(), model.NewUser{
		ID:       me(c),
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, u)
}

// Me 当前用户
// @Summary 当前用户信息
// @Tags 用户
// @Success 200 {object} response.Response{data=model.User}
// @Router /api/v1/me [get]
func (h *Handler) Me(c *gin.Context) {
	u, err := h.gate.GetUser(c.Request.Context(), me(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, u)
}

// Permissions 当前账号状态对应的能力
// @Summary 查询权限
// @Tags 权益
// @Success 200 {object} response.Response{data=entitlement.Permissions}
// @Router /api/v1/me/permissions [get]
func (h *Handler) Permissions(c *gin.Context) {
	p, err := h.gate.Permissions(c.Request.Context(), me(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// Check 判断某个动作当前是否允许（不执行）
// @Summary 权限预检
// @Tags 权益
// @Param action query string true "动作" Enums(create_activity, create_post, comment, like, share, save_favorite, access_community, see_progress)
// @Success 200 {object} response.Response
// @Router /api/v1/me/check [get]
func (h *Handler) Check(c *gin.Context) {
	action := entitlement.Action(c.Query("action"))
	if action == "" {
		response.BadRequest(c, "action is required")
		return
	}
	d, err := h.gate.CheckPermission(c.Request.Context(), me(c), action)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"action": action, "allowed": d.Allowed, "reason": d.Reason})
}

// Stats 用户进度计数
// @Summary 我的进度
// @Tags 用户
// @Success 200 {object} response.Response{data=model.UserStats}
// @Failure 403 {object} response.Response
// @Router /api/v1/me/stats [get]
func (h *Handler) Stats(c *gin.Context) {
	s, err := h.gate.GetUserStats(c.Request.Context(), me(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, s)
}
