package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/pawprint/internal/model"
	"github.com/d60-Lab/pawprint/pkg/response"
)

type activityRequest struct {
	Title       string `json:"title" binding:"required,max=200"`
	Description string `json:"description" binding:"max=4000"`
	Difficulty  string `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
}

type postRequest struct {
	ActivityID string   `json:"activity_id"`
	Content    string   `json:"content" binding:"required,max=10000"`
	Tags       []string `json:"tags" binding:"max=20,dive,tag"`
}

type commentRequest struct {
	ParentID string `json:"parent_id"`
	Content  string `json:"content" binding:"required,max=4000"`
}

// CreateActivity 创建训练活动（受额度限制）
// @Summary 创建活动
// @Tags 内容
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "幂等键"
// @Param request body activityRequest true "活动"
// @Success 201 {object} response.Response{data=model.Activity}
// @Failure 403 {object} response.Response "EMAIL_NOT_VERIFIED / PREMIUM_REQUIRED / LIMIT_REACHED"
// @Router /api/v1/activities [post]
func (h *Handler) CreateActivity(c *gin.Context) {
	var req activityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	a, err := h.gate.CreateActivity(c.Request.Context(), me(c), model.NewActivity{
		Title:          req.Title,
		Description:    req.Description,
		Difficulty:     req.Difficulty,
		IdempotencyKey: c.GetHeader(IdempotencyHeader),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, a)
}

// @Summary 查询活动
// @Tags 内容
// @Param id path string true "活动ID"
// @Router /api/v1/activities/{id} [get]
func (h *Handler) GetActivity(c *gin.Context) {
	a, err := h.gate.GetActivity(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, a)
}

// ListActivities 某用户创建的活动
// @Summary 用户活动列表
// @Tags 内容
// @Param user_id path string true "用户ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Router /api/v1/users/{user_id}/activities [get]
func (h *Handler) ListActivities(c *gin.Context) {
	page, pageSize := paging(c)
	list, err := h.gate.ListActivities(c.Request.Context(), c.Param("user_id"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}

// @Summary 删除活动（作者或版主）
// @Tags 内容
// @Param id path string true "活动ID"
// @Router /api/v1/activities/{id} [delete]
func (h *Handler) DeleteActivity(c *gin.Context) {
	if err := h.gate.DeleteActivity(c.Request.Context(), me(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// CompleteActivity 标记完成
// @Summary 完成活动
// @Tags 进度
// @Param id path string true "活动ID"
// @Router /api/v1/activities/{id}/complete [post]
func (h *Handler) CompleteActivity(c *gin.Context) {
	changed, err := h.gate.CompleteActivity(c.Request.Context(), me(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"changed": changed})
}

// CreatePost 发帖，可关联自己的活动
// @Summary 发帖
// @Tags 社区
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "幂等键"
// @Param request body postRequest true "帖子"
// @Success 201 {object} response.Response{data=model.Post}
// @Failure 403 {object} response.Response
// @Router /api/v1/posts [post]
func (h *Handler) CreatePost(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p, err := h.gate.CreatePost(c.Request.Context(), me(c), model.NewPost{
		ActivityID:     req.ActivityID,
		Content:        req.Content,
		Tags:           req.Tags,
		IdempotencyKey: c.GetHeader(IdempotencyHeader),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, p)
}

// @Summary 帖子详情
// @Tags 社区
// @Param id path string true "帖子ID"
// @Success 200 {object} response.Response{data=model.PostView}
// @Router /api/v1/posts/{id} [get]
func (h *Handler) GetPost(c *gin.Context) {
	p, err := h.gate.GetPost(c.Request.Context(), me(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// ListPosts 社区信息流，可按作者或标签过滤
// @Summary 帖子列表
// @Tags 社区
// @Param author query string false "作者ID"
// @Param tag query string false "标签"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Router /api/v1/posts [get]
func (h *Handler) ListPosts(c *gin.Context) {
	page, pageSize := paging(c)
	list, err := h.gate.ListPosts(c.Request.Context(), me(c), model.PostFilter{
		AuthorID: c.Query("author"),
		Tag:      c.Query("tag"),
		Offset:   (page - 1) * pageSize,
		Limit:    pageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}

// @Summary 删除帖子（作者或版主）
// @Tags 社区
// @Param id path string true "帖子ID"
// @Router /api/v1/posts/{id} [delete]
func (h *Handler) DeletePost(c *gin.Context) {
	if err := h.gate.DeletePost(c.Request.Context(), me(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// CreateComment 评论或回复
// @Summary 评论
// @Tags 社区
// @Accept json
// @Param id path string true "帖子ID"
// @Param Idempotency-Key header string false "幂等键"
// @Param request body commentRequest true "评论"
// @Success 201 {object} response.Response{data=model.Comment}
// @Router /api/v1/posts/{id}/comments [post]
func (h *Handler) CreateComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	cm, err := h.gate.CreateComment(c.Request.Context(), me(c), model.NewComment{
		PostID:         c.Param("id"),
		ParentID:       req.ParentID,
		Content:        req.Content,
		IdempotencyKey: c.GetHeader(IdempotencyHeader),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cm)
}

// @Summary 评论列表（时间正序）
// @Tags 社区
// @Param id path string true "帖子ID"
// @Router /api/v1/posts/{id}/comments [get]
func (h *Handler) ListComments(c *gin.Context) {
	list, err := h.gate.ListComments(c.Request.Context(), me(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"list": list})
}

// @Summary 删除评论及其回复
// @Tags 社区
// @Param id path string true "评论ID"
// @Router /api/v1/comments/{id} [delete]
func (h *Handler) DeleteComment(c *gin.Context) {
	if err := h.gate.DeleteComment(c.Request.Context(), me(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
