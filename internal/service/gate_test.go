package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/pawprint/internal/entitlement"
	"github.com/d60-Lab/pawprint/internal/model"
	"github.com/d60-Lab/pawprint/internal/repository"
	"github.com/d60-Lab/pawprint/internal/repository/memory"
	"github.com/d60-Lab/pawprint/pkg/errorx"
)

type fixture struct {
	ctx   context.Context
	store *memory.Store
	gate  *Gate
	subs  *SubscriptionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	return &fixture{
		ctx:   context.Background(),
		store: store,
		gate:  NewGate(store),
		subs:  NewSubscriptionService(store),
	}
}

func (f *fixture) register(t *testing.T, name string, events ...AccountEvent) *model.User {
	t.Helper()
	u, err := f.gate.RegisterUser(f.ctx, model.NewUser{Username: name, Email: name + "@example.com"})
	require.NoError(t, err)
	for _, ev := range events {
		ev.UserID = u.ID
		u, _, err = f.subs.Apply(f.ctx, ev)
		require.NoError(t, err)
	}
	return u
}

var (
	verify    = AccountEvent{Type: entitlement.EventEmailVerified}
	checkout  = AccountEvent{Type: entitlement.EventCheckoutStarted}
	activate  = AccountEvent{Type: entitlement.EventSubscriptionActivated, Tier: model.TierFree}
	goPremium = AccountEvent{Type: entitlement.EventSubscriptionActivated, Tier: model.TierPremium}
	cancel    = AccountEvent{Type: entitlement.EventSubscriptionCanceled}
)

func TestUnverifiedCannotPostUntilActivated(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "rex")

	_, err := f.gate.CreatePost(f.ctx, u.ID, model.NewPost{Content: "hello"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errorx.ErrEmailNotVerified))
	e, ok := errorx.As(err)
	require.True(t, ok)
	assert.Equal(t, "verify your email to continue", e.Message)

	for _, ev := range []AccountEvent{verify, activate} {
		ev.UserID = u.ID
		_, _, err = f.subs.Apply(f.ctx, ev)
		require.NoError(t, err)
	}

	p, err := f.gate.CreatePost(f.ctx, u.ID, model.NewPost{Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.AuthorID)
}

func TestFreeUserHitsLimitThenUpgrades(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "rex", verify, activate)

	for i := 0; i < entitlement.FreeActivityLimit; i++ {
		_, err := f.gate.CreateActivity(f.ctx, u.ID, model.NewActivity{Title: "Sit"})
		require.NoError(t, err)
	}
	_, err := f.gate.CreateActivity(f.ctx, u.ID, model.NewActivity{Title: "Down"})
	assert.True(t, errors.Is(err, errorx.ErrLimitReached))

	ev := goPremium
	ev.UserID = u.ID
	_, changed, err := f.subs.Apply(f.ctx, ev)
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = f.gate.CreateActivity(f.ctx, u.ID, model.NewActivity{Title: "Down"})
	require.NoError(t, err)

	stats, err := f.gate.GetUserStats(f.ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), stats.ActivitiesCreated)
}

func TestPendingPaymentGetsOneTrialActivity(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "rex", verify)

	_, err := f.gate.CreateActivity(f.ctx, u.ID, model.NewActivity{Title: "Sit"})
	assert.True(t, errors.Is(err, errorx.ErrPremiumRequired))

	ev := checkout
	ev.UserID = u.ID
	_, _, err = f.subs.Apply(f.ctx, ev)
	require.NoError(t, err)

	_, err = f.gate.CreateActivity(f.ctx, u.ID, model.NewActivity{Title: "Sit"})
	require.NoError(t, err)
	_, err = f.gate.CreateActivity(f.ctx, u.ID, model.NewActivity{Title: "Stay"})
	assert.True(t, errors.Is(err, errorx.ErrLimitReached))

	_, err = f.gate.CreatePost(f.ctx, u.ID, model.NewPost{Content: "hi"})
	assert.True(t, errors.Is(err, errorx.ErrPremiumRequired))
}

func TestFavoritesNeedPremium(t *testing.T) {
	f := newFixture(t)
	free := f.register(t, "free", verify, activate)
	pro := f.register(t, "pro", verify, AccountEvent{Type: entitlement.EventSubscriptionActivated, Tier: model.TierPro})

	a, err := f.gate.CreateActivity(f.ctx, free.ID, model.NewActivity{Title: "Sit"})
	require.NoError(t, err)

	_, err = f.gate.SaveFavorite(f.ctx, free.ID, a.ID)
	assert.True(t, errors.Is(err, errorx.ErrPremiumRequired))

	ok, err := f.gate.SaveFavorite(f.ctx, pro.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	favs, err := f.gate.ListFavorites(f.ctx, pro.ID)
	require.NoError(t, err)
	assert.Len(t, favs, 1)
}

func TestUnlikeAllowedAfterDowngrade(t *testing.T) {
	f := newFixture(t)
	author := f.register(t, "author", verify, activate)
	fan := f.register(t, "fan", verify, goPremium)

	p, err := f.gate.CreatePost(f.ctx, author.ID, model.NewPost{Content: "hi"})
	require.NoError(t, err)
	target := model.Target{Type: model.TargetPost, ID: p.ID}

	ok, err := f.gate.Like(f.ctx, fan.ID, target)
	require.NoError(t, err)
	assert.True(t, ok)

	u, err := f.store.GetUser(f.ctx, fan.ID)
	require.NoError(t, err)
	_, err = f.store.TransitionUser(f.ctx, fan.ID, u.State(), model.AccountState{Status: model.StatusVerified, Tier: model.TierFree})
	require.NoError(t, err)

	_, err = f.gate.Like(f.ctx, fan.ID, model.Target{Type: model.TargetPost, ID: p.ID})
	assert.True(t, errors.Is(err, errorx.ErrPremiumRequired))

	ok, err = f.gate.Unlike(f.ctx, fan.ID, target)
	require.NoError(t, err)
	assert.True(t, ok)

	liked, err := f.gate.IsLiked(f.ctx, fan.ID, target)
	require.NoError(t, err)
	assert.False(t, liked)
}

func TestDeleteRequiresOwnerOrModerator(t *testing.T) {
	f := newFixture(t)
	author := f.register(t, "author", verify, activate)
	other := f.register(t, "other", verify, activate)
	mod, err := f.gate.RegisterUser(f.ctx, model.NewUser{Username: "mod", Email: "mod@example.com", Role: model.RoleModerator})
	require.NoError(t, err)

	p, err := f.gate.CreatePost(f.ctx, author.ID, model.NewPost{Content: "one"})
	require.NoError(t, err)
	c, err := f.gate.CreateComment(f.ctx, other.ID, model.NewComment{PostID: p.ID, Content: "nice"})
	require.NoError(t, err)

	err = f.gate.DeletePost(f.ctx, other.ID, p.ID)
	assert.True(t, errors.Is(err, errorx.ErrNotOwner))

	err = f.gate.DeleteComment(f.ctx, author.ID, c.ID)
	assert.True(t, errors.Is(err, errorx.ErrNotOwner))

	require.NoError(t, f.gate.DeleteComment(f.ctx, mod.ID, c.ID))
	require.NoError(t, f.gate.DeletePost(f.ctx, author.ID, p.ID))

	a, err := f.gate.CreateActivity(f.ctx, author.ID, model.NewActivity{Title: "Sit"})
	require.NoError(t, err)
	assert.True(t, errors.Is(f.gate.DeleteActivity(f.ctx, other.ID, a.ID), errorx.ErrNotOwner))
	require.NoError(t, f.gate.DeleteActivity(f.ctx, author.ID, a.ID))

	assert.True(t, errors.Is(f.gate.DeletePost(f.ctx, author.ID, p.ID), errorx.ErrNotFound))
}

func TestFollowIsUngatedButValidated(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, "a")
	b := f.register(t, "b")

	ok, err := f.gate.Follow(f.ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.gate.Follow(f.ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.gate.Follow(f.ctx, a.ID, a.ID)
	assert.True(t, errors.Is(err, errorx.ErrInvalid))

	following, err := f.gate.ListFollowing(f.ctx, a.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, following)

	followers, err := f.gate.ListFollowers(f.ctx, b.ID, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, followers)
}

func TestListPostsRendersAuthorsAndRecounts(t *testing.T) {
	f := newFixture(t)
	author := f.register(t, "author", verify, activate)
	viewer := f.register(t, "viewer", verify)
	stranger := f.register(t, "stranger")

	p, err := f.gate.CreatePost(f.ctx, author.ID, model.NewPost{Content: "one", Tags: []string{"Recall"}})
	require.NoError(t, err)
	_, err = f.gate.CreateComment(f.ctx, author.ID, model.NewComment{PostID: p.ID, Content: "first"})
	require.NoError(t, err)

	views, err := f.gate.ListPosts(f.ctx, viewer.ID, model.PostFilter{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "author", views[0].Author.Username)
	assert.False(t, views[0].Author.Deleted())
	assert.Equal(t, int64(1), views[0].Comments)

	comments, err := f.gate.ListComments(f.ctx, viewer.ID, p.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, author.ID, comments[0].Author.ID)

	view, err := f.gate.GetPost(f.ctx, viewer.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, view.ID)

	_, err = f.gate.ListPosts(f.ctx, stranger.ID, model.PostFilter{})
	assert.True(t, errors.Is(err, errorx.ErrEmailNotVerified))
}

func TestTrendingUsesWindow(t *testing.T) {
	f := newFixture(t)
	author := f.register(t, "author", verify, activate)
	_, err := f.gate.CreatePost(f.ctx, author.ID, model.NewPost{Content: "one", Tags: []string{"recall", "sit"}})
	require.NoError(t, err)
	_, err = f.gate.CreatePost(f.ctx, author.ID, model.NewPost{Content: "two", Tags: []string{"recall"}})
	require.NoError(t, err)

	tags, err := f.gate.TrendingTags(f.ctx, author.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, []model.TagCount{{Tag: "recall", Count: 2}, {Tag: "sit", Count: 1}}, tags)

	f.gate.now = func() time.Time { return time.Now().Add(30 * 24 * time.Hour) }
	tags, err = f.gate.TrendingTags(f.ctx, author.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

// limitRecorder remembers the limits the gate passes on to the insights layer.
type limitRecorder struct {
	Insights
	limits []int
}

func (r *limitRecorder) TrendingTags(ctx context.Context, since time.Time, limit int) ([]model.TagCount, error) {
	r.limits = append(r.limits, limit)
	return r.Insights.TrendingTags(ctx, since, limit)
}

func (r *limitRecorder) SuggestedUsers(ctx context.Context, userID string, limit int) ([]*model.User, error) {
	r.limits = append(r.limits, limit)
	return r.Insights.SuggestedUsers(ctx, userID, limit)
}

func TestInsightLimitsAreClamped(t *testing.T) {
	f := newFixture(t)
	rec := &limitRecorder{Insights: f.store}
	f.gate = NewGate(f.store, WithInsights(rec))
	u := f.register(t, "rex", verify)

	for _, limit := range []int{-1, 0, 7, 5000} {
		_, err := f.gate.TrendingTags(f.ctx, u.ID, limit)
		require.NoError(t, err)
		_, err = f.gate.SuggestedUsers(f.ctx, u.ID, limit)
		require.NoError(t, err)
	}
	d, m := repository.DefaultPageSize, repository.MaxPageSize
	assert.Equal(t, []int{d, d, d, d, 7, 7, m, m}, rec.limits)
}

func TestCheckPermissionReportsWithoutActing(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "rex", verify)

	d, err := f.gate.CheckPermission(f.ctx, u.ID, entitlement.ActionShare)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, errorx.ReasonPremiumRequired, d.Reason)

	p, err := f.gate.Permissions(f.ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, p.CanAccessCommunity)
	assert.False(t, p.CanCreatePosts)

	_, err = f.gate.CheckPermission(f.ctx, "nobody", entitlement.ActionShare)
	assert.True(t, errors.Is(err, errorx.ErrNotFound))
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "rex", verify, goPremium)
	assert.Equal(t, model.StatusPremium, u.Status)

	ev := cancel
	ev.UserID = u.ID
	u, changed, err := f.subs.Apply(f.ctx, ev)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.AccountState{Status: model.StatusActive, Tier: model.TierFree}, u.State())

	u, changed, err = f.subs.Apply(f.ctx, ev)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, model.AccountState{Status: model.StatusActive, Tier: model.TierFree}, u.State())
}
