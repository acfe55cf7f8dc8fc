// Package api 组装 HTTP 路由与中间件。
package api

import (
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/pawprint/config"
	"github.com/d60-Lab/pawprint/internal/api/handler"
	"github.com/d60-Lab/pawprint/internal/api/middleware"
	"github.com/d60-Lab/pawprint/pkg/metrics"
)

// NewRouter wires every route. limiter may be nil to disable rate limiting.
func NewRouter(cfg *config.Config, h *handler.Handler, limiter *middleware.RateLimiter) (*gin.Engine, error) {
	if err := RegisterValidators(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(middleware.Edge()...)
	r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/api/v1")
	v1.POST("/webhooks/events", middleware.WebhookSecret(cfg.Events.WebhookSecret), h.AccountEvent)

	authed := v1.Group("", middleware.Auth(cfg.JWT.Secret, cfg.JWT.Issuer))
	if limiter != nil {
		authed.Use(limiter.Middleware())
	}
	{
		authed.POST("/users", h.Register)
		authed.GET("/me", h.Me)
		authed.GET("/me/permissions", h.Permissions)
		authed.GET("/me/check", h.Check)
		authed.GET("/me/stats", h.Stats)
		authed.GET("/me/favorites", h.ListFavorites)

		authed.POST("/activities", h.CreateActivity)
		authed.GET("/activities/:id", h.GetActivity)
		authed.DELETE("/activities/:id", h.DeleteActivity)
		authed.POST("/activities/:id/complete", h.CompleteActivity)
		authed.PUT("/activities/:id/favorite", h.SaveFavorite)
		authed.DELETE("/activities/:id/favorite", h.RemoveFavorite)
		authed.GET("/users/:user_id/activities", h.ListActivities)

		authed.POST("/posts", h.CreatePost)
		authed.GET("/posts", h.ListPosts)
		authed.GET("/posts/:id", h.GetPost)
		authed.DELETE("/posts/:id", h.DeletePost)
		authed.POST("/posts/:id/comments", h.CreateComment)
		authed.GET("/posts/:id/comments", h.ListComments)
		authed.DELETE("/comments/:id", h.DeleteComment)

		authed.PUT("/likes/:type/:id", h.Like)
		authed.DELETE("/likes/:type/:id", h.Unlike)
		authed.GET("/likes/:type/:id", h.IsLiked)

		authed.POST("/relations/follow", h.Follow)
		authed.POST("/relations/unfollow", h.Unfollow)
		authed.GET("/relations/:user_id/following", h.ListFollowing)
		authed.GET("/relations/:user_id/followers", h.ListFollowers)

		authed.GET("/insights/trending", h.TrendingTags)
		authed.GET("/insights/suggested", h.SuggestedUsers)
	}
	return r, nil
}
