package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/d60-Lab/pawprint/internal/entitlement"
	"github.com/d60-Lab/pawprint/internal/model"
	"github.com/d60-Lab/pawprint/internal/repository"
	"github.com/d60-Lab/pawprint/pkg/errorx"
	"github.com/d60-Lab/pawprint/pkg/logger"
	"github.com/d60-Lab/pawprint/pkg/metrics"
	"github.com/d60-Lab/pawprint/pkg/tracing"
)

// DefaultTrendingWindow is how far back trending tags look.
const DefaultTrendingWindow = 7 * 24 * time.Hour

// Insights serves the aggregate reads; repository.Store satisfies it directly
// and the redis cache wraps it.
type Insights interface {
	TrendingTags(ctx context.Context, since time.Time, limit int) ([]model.TagCount, error)
	SuggestedUsers(ctx context.Context, userID string, limit int) ([]*model.User, error)
}

// Gate 访问控制入口：先加载用户、判定权限，再交给存储层执行。
type Gate struct {
	store    repository.Store
	insights Insights
	window   time.Duration
	now      func() time.Time
}

type GateOption func(*Gate)

func WithInsights(i Insights) GateOption {
	return func(g *Gate) { g.insights = i }
}

func WithTrendingWindow(d time.Duration) GateOption {
	return func(g *Gate) {
		if d > 0 {
			g.window = d
		}
	}
}

func NewGate(store repository.Store, opts ...GateOption) *Gate {
	g := &Gate{store: store, insights: store, window: DefaultTrendingWindow, now: time.Now}
	for _, o := range opts {
		o(g)
	}
	return g
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracing.Tracer().Start(ctx, "gate."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// authorize loads the user and checks a. The returned error is the denial.
func (g *Gate) authorize(ctx context.Context, userID string, a entitlement.Action) (*model.User, entitlement.Decision, error) {
	u, err := g.store.GetUser(ctx, userID)
	if err != nil {
		return nil, entitlement.Decision{}, err
	}
	d := entitlement.Check(*u, a)
	metrics.RecordDecision(string(a), d.Allowed, string(d.Reason))
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("gate.action", string(a)),
		attribute.Bool("gate.allowed", d.Allowed),
	)
	if !d.Allowed {
		logger.Debug("gate denied",
			zap.String("user_id", userID),
			zap.String("action", string(a)),
			zap.String("reason", string(d.Reason)),
		)
		return u, d, d.Err()
	}
	return u, d, nil
}

// Entitlements ---------------------------------------------------------------

// CheckPermission answers whether userID may perform a right now without doing it.
func (g *Gate) CheckPermission(ctx context.Context, userID string, a entitlement.Action) (entitlement.Decision, error) {
	u, err := g.store.GetUser(ctx, userID)
	if err != nil {
		return entitlement.Decision{}, err
	}
	return entitlement.Check(*u, a), nil
}

func (g *Gate) Permissions(ctx context.Context, userID string) (entitlement.Permissions, error) {
	u, err := g.store.GetUser(ctx, userID)
	if err != nil {
		return entitlement.Permissions{}, err
	}
	return entitlement.PermissionsFor(*u), nil
}

func (g *Gate) RegisterUser(ctx context.Context, in model.NewUser) (*model.User, error) {
	u, err := g.store.CreateUser(ctx, in)
	if err != nil {
		return nil, err
	}
	logger.Info("user registered", zap.String("user_id", u.ID), zap.String("username", u.Username))
	return u, nil
}

func (g *Gate) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return g.store.GetUser(ctx, userID)
}

// GetUserStats returns the user's own progress counters.
func (g *Gate) GetUserStats(ctx context.Context, userID string) (*model.UserStats, error) {
	if _, _, err := g.authorize(ctx, userID, entitlement.ActionSeeProgress); err != nil {
		return nil, err
	}
	return g.store.GetUserStats(ctx, userID)
}

// Content --------------------------------------------------------------------

func (g *Gate) CreateActivity(ctx context.Context, userID string, in model.NewActivity) (a *model.Activity, err error) {
	ctx, span := startSpan(ctx, "CreateActivity", attribute.String("user.id", userID))
	defer func() { endSpan(span, err) }()

	_, d, err := g.authorize(ctx, userID, entitlement.ActionCreateActivity)
	if err != nil {
		return nil, err
	}
	in.AuthorID = userID
	// 额度以存储层的条件自增为准，这里只是提前拒绝
	a, err = g.store.CreateActivity(ctx, in, entitlement.ActivityQuota(d.Permissions))
	if errors.Is(err, errorx.ErrLimitReached) {
		metrics.RecordDecision(string(entitlement.ActionCreateActivity), false, string(errorx.ReasonLimitReached))
	}
	return a, err
}

func (g *Gate) GetActivity(ctx context.Context, id string) (*model.Activity, error) {
	return g.store.GetActivity(ctx, id)
}

func (g *Gate) ListActivities(ctx context.Context, authorID string, page, pageSize int) ([]*model.Activity, error) {
	offset, limit := pageToOffset(page, pageSize)
	return g.store.ListActivities(ctx, authorID, offset, limit)
}

func (g *Gate) CompleteActivity(ctx context.Context, userID, activityID string) (ok bool, err error) {
	ctx, span := startSpan(ctx, "CompleteActivity", attribute.String("user.id", userID))
	defer func() { endSpan(span, err) }()

	if _, _, err := g.authorize(ctx, userID, entitlement.ActionSeeProgress); err != nil {
		return false, err
	}
	return g.store.CompleteActivity(ctx, userID, activityID)
}

func (g *Gate) DeleteActivity(ctx context.Context, actorID, id string) (err error) {
	ctx, span := startSpan(ctx, "DeleteActivity", attribute.String("user.id", actorID))
	defer func() { endSpan(span, err) }()

	a, err := g.store.GetActivity(ctx, id)
	if err != nil {
		return err
	}
	if err := g.authorizeOwner(ctx, actorID, a.AuthorID); err != nil {
		return err
	}
	return g.store.DeleteActivity(ctx, id)
}

func (g *Gate) CreatePost(ctx context.Context, userID string, in model.NewPost) (p *model.Post, err error) {
	ctx, span := startSpan(ctx, "CreatePost", attribute.String("user.id", userID))
	defer func() { endSpan(span, err) }()

	if _, _, err := g.authorize(ctx, userID, entitlement.ActionCreatePost); err != nil {
		return nil, err
	}
	in.AuthorID = userID
	return g.store.CreatePost(ctx, in)
}

func (g *Gate) DeletePost(ctx context.Context, actorID, id string) (err error) {
	ctx, span := startSpan(ctx, "DeletePost", attribute.String("user.id", actorID))
	defer func() { endSpan(span, err) }()

	p, err := g.store.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if err := g.authorizeOwner(ctx, actorID, p.AuthorID); err != nil {
		return err
	}
	return g.store.DeletePost(ctx, id)
}

func (g *Gate) CreateComment(ctx context.Context, userID string, in model.NewComment) (c *model.Comment, err error) {
	ctx, span := startSpan(ctx, "CreateComment", attribute.String("user.id", userID))
	defer func() { endSpan(span, err) }()

	if _, _, err := g.authorize(ctx, userID, entitlement.ActionComment); err != nil {
		return nil, err
	}
	in.AuthorID = userID
	return g.store.CreateComment(ctx, in)
}

func (g *Gate) DeleteComment(ctx context.Context, actorID, id string) (err error) {
	ctx, span := startSpan(ctx, "DeleteComment", attribute.String("user.id", actorID))
	defer func() { endSpan(span, err) }()

	c, err := g.store.GetComment(ctx, id)
	if err != nil {
		return err
	}
	if err := g.authorizeOwner(ctx, actorID, c.AuthorID); err != nil {
		return err
	}
	return g.store.DeleteComment(ctx, id)
}

// authorizeOwner lets the author or a moderator through.
func (g *Gate) authorizeOwner(ctx context.Context, actorID, authorID string) error {
	actor, err := g.store.GetUser(ctx, actorID)
	if err != nil {
		return err
	}
	if actor.ID == authorID || actor.Role == model.RoleModerator {
		return nil
	}
	metrics.RecordDecision("delete", false, string(errorx.ReasonNotOwner))
	return errorx.Denied(errorx.ReasonNotOwner)
}

// Relations ------------------------------------------------------------------

func (g *Gate) Like(ctx context.Context, userID string, t model.Target) (changed bool, err error) {
	ctx, span := startSpan(ctx, "Like", attribute.String("user.id", userID), attribute.String("target", t.String()))
	defer func() { endSpan(span, err) }()

	if _, _, err := g.authorize(ctx, userID, entitlement.ActionLike); err != nil {
		return false, err
	}
	return g.store.Like(ctx, userID, t)
}

// Unlike is never gated: retracting a like stays possible after a downgrade.
func (g *Gate) Unlike(ctx context.Context, userID string, t model.Target) (changed bool, err error) {
	ctx, span := startSpan(ctx, "Unlike", attribute.String("user.id", userID), attribute.String("target", t.String()))
	defer func() { endSpan(span, err) }()

	return g.store.Unlike(ctx, userID, t)
}

func (g *Gate) IsLiked(ctx context.Context, userID string, t model.Target) (bool, error) {
	return g.store.IsLikedBy(ctx, userID, t)
}

func (g *Gate) Follow(ctx context.Context, fromUserID, toUserID string) (changed bool, err error) {
	ctx, span := startSpan(ctx, "Follow", attribute.String("user.id", fromUserID))
	defer func() { endSpan(span, err) }()

	changed, err = g.store.Follow(ctx, fromUserID, toUserID)
	if changed {
		g.forgetSuggestions(ctx, fromUserID)
	}
	return changed, err
}

func (g *Gate) Unfollow(ctx context.Context, fromUserID, toUserID string) (changed bool, err error) {
	ctx, span := startSpan(ctx, "Unfollow", attribute.String("user.id", fromUserID))
	defer func() { endSpan(span, err) }()

	changed, err = g.store.Unfollow(ctx, fromUserID, toUserID)
	if changed {
		g.forgetSuggestions(ctx, fromUserID)
	}
	return changed, err
}

// forgetSuggestions evicts cached suggestions when the insights layer caches them.
func (g *Gate) forgetSuggestions(ctx context.Context, userID string) {
	f, ok := g.insights.(interface {
		ForgetSuggestions(ctx context.Context, userID string) error
	})
	if !ok {
		return
	}
	if err := f.ForgetSuggestions(ctx, userID); err != nil {
		logger.Warn("forget suggestions failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (g *Gate) ListFollowing(ctx context.Context, userID string, page, pageSize int) ([]string, error) {
	offset, limit := pageToOffset(page, pageSize)
	return g.store.ListFollowing(ctx, userID, offset, limit)
}

func (g *Gate) ListFollowers(ctx context.Context, userID string, page, pageSize int) ([]string, error) {
	offset, limit := pageToOffset(page, pageSize)
	return g.store.ListFollowers(ctx, userID, offset, limit)
}

func (g *Gate) SaveFavorite(ctx context.Context, userID, activityID string) (changed bool, err error) {
	ctx, span := startSpan(ctx, "SaveFavorite", attribute.String("user.id", userID))
	defer func() { endSpan(span, err) }()

	if _, _, err := g.authorize(ctx, userID, entitlement.ActionSaveFavorite); err != nil {
		return false, err
	}
	return g.store.SaveFavorite(ctx, userID, activityID)
}

func (g *Gate) RemoveFavorite(ctx context.Context, userID, activityID string) (bool, error) {
	return g.store.RemoveFavorite(ctx, userID, activityID)
}

func (g *Gate) ListFavorites(ctx context.Context, userID string) ([]*model.Activity, error) {
	return g.store.ListFavorites(ctx, userID)
}

// Community reads --------------------------------------------------------------

func (g *Gate) GetPost(ctx context.Context, viewerID, id string) (*model.PostView, error) {
	if _, _, err := g.authorize(ctx, viewerID, entitlement.ActionAccessCommunity); err != nil {
		return nil, err
	}
	p, err := g.store.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := g.postViews(ctx, []*model.Post{p})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// ListPosts renders a page of posts with authors and recounted comment totals.
func (g *Gate) ListPosts(ctx context.Context, viewerID string, f model.PostFilter) ([]model.PostView, error) {
	if _, _, err := g.authorize(ctx, viewerID, entitlement.ActionAccessCommunity); err != nil {
		return nil, err
	}
	posts, err := g.store.ListPosts(ctx, f)
	if err != nil {
		return nil, err
	}
	return g.postViews(ctx, posts)
}

func (g *Gate) postViews(ctx context.Context, posts []*model.Post) ([]model.PostView, error) {
	ids := make([]string, len(posts))
	authorIDs := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
		authorIDs[i] = p.AuthorID
	}
	authors, err := g.store.GetUsers(ctx, authorIDs)
	if err != nil {
		return nil, err
	}
	counts, err := g.store.CommentCounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]model.PostView, len(posts))
	for i, p := range posts {
		p.Comments = counts[p.ID]
		out[i] = model.PostView{Post: *p, Author: model.SummarizeAuthor(p.AuthorID, authors)}
	}
	return out, nil
}

func (g *Gate) ListComments(ctx context.Context, viewerID, postID string) ([]model.CommentView, error) {
	if _, _, err := g.authorize(ctx, viewerID, entitlement.ActionAccessCommunity); err != nil {
		return nil, err
	}
	comments, err := g.store.ListComments(ctx, postID)
	if err != nil {
		return nil, err
	}
	authorIDs := make([]string, len(comments))
	for i, c := range comments {
		authorIDs[i] = c.AuthorID
	}
	authors, err := g.store.GetUsers(ctx, authorIDs)
	if err != nil {
		return nil, err
	}
	out := make([]model.CommentView, len(comments))
	for i, c := range comments {
		out[i] = model.CommentView{Comment: *c, Author: model.SummarizeAuthor(c.AuthorID, authors)}
	}
	return out, nil
}

func (g *Gate) TrendingTags(ctx context.Context, viewerID string, limit int) ([]model.TagCount, error) {
	if _, _, err := g.authorize(ctx, viewerID, entitlement.ActionAccessCommunity); err != nil {
		return nil, err
	}
	// 按分钟取整，缓存键在一分钟内保持稳定
	since := g.now().Add(-g.window).Truncate(time.Minute)
	_, limit = repository.Page(0, limit)
	return g.insights.TrendingTags(ctx, since, limit)
}

func (g *Gate) SuggestedUsers(ctx context.Context, viewerID string, limit int) ([]*model.User, error) {
	if _, _, err := g.authorize(ctx, viewerID, entitlement.ActionAccessCommunity); err != nil {
		return nil, err
	}
	_, limit = repository.Page(0, limit)
	return g.insights.SuggestedUsers(ctx, viewerID, limit)
}

func pageToOffset(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	return (page - 1) * pageSize, pageSize
}
