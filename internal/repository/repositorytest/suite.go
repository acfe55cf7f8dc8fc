// Package repositorytest holds the contract every repository.Store backend must
// satisfy. Backends run it with suite.Run(t, &repositorytest.StoreSuite{NewStore: ...}).
package repositorytest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/d60-Lab/pawprint/internal/model"
	"github.com/d60-Lab/pawprint/internal/repository"
	"github.com/d60-Lab/pawprint/pkg/errorx"
)

type StoreSuite struct {
	suite.Suite

	// NewStore returns an empty store; it is called before every test.
	NewStore func(t *testing.T) repository.Store

	store repository.Store
	ctx   context.Context
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.NewStore(s.T())
}

func (s *StoreSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

// Store exposes the store under test to backend-specific tests embedding the suite.
func (s *StoreSuite) Store() repository.Store { return s.store }

// fixtures -------------------------------------------------------------------

func (s *StoreSuite) newUser(name string, st model.AccountState) *model.User {
	u, err := s.store.CreateUser(s.ctx, model.NewUser{Username: name, Email: name + "@example.com"})
	s.Require().NoError(err)
	if st != u.State() {
		u, err = s.store.TransitionUser(s.ctx, u.ID, u.State(), st)
		s.Require().NoError(err)
	}
	return u
}

func (s *StoreSuite) activeFree(name string) *model.User {
	return s.newUser(name, model.AccountState{Status: model.StatusActive, Tier: model.TierFree})
}

func (s *StoreSuite) activity(authorID string, max int) *model.Activity {
	a, err := s.store.CreateActivity(s.ctx, model.NewActivity{AuthorID: authorID, Title: "Loose-leash walk"}, max)
	s.Require().NoError(err)
	return a
}

func (s *StoreSuite) post(authorID string, tags ...string) *model.Post {
	p, err := s.store.CreatePost(s.ctx, model.NewPost{AuthorID: authorID, Content: "first session went well", Tags: tags})
	s.Require().NoError(err)
	return p
}

func (s *StoreSuite) comment(authorID, postID, parentID string) *model.Comment {
	c, err := s.store.CreateComment(s.ctx, model.NewComment{AuthorID: authorID, PostID: postID, ParentID: parentID, Content: "nice"})
	s.Require().NoError(err)
	return c
}

func (s *StoreSuite) like(userID string, t model.Target) {
	ok, err := s.store.Like(s.ctx, userID, t)
	s.Require().NoError(err)
	s.Require().True(ok)
}

func (s *StoreSuite) stats(id string) model.UserStats {
	st, err := s.store.GetUserStats(s.ctx, id)
	s.Require().NoError(err)
	return *st
}

func postTarget(id string) model.Target     { return model.Target{Type: model.TargetPost, ID: id} }
func commentTarget(id string) model.Target  { return model.Target{Type: model.TargetComment, ID: id} }
func activityTarget(id string) model.Target { return model.Target{Type: model.TargetActivity, ID: id} }

// users ----------------------------------------------------------------------

func (s *StoreSuite) TestCreateUserStartsUnverifiedFree() {
	u, err := s.store.CreateUser(s.ctx, model.NewUser{Username: " rex ", Email: "Rex@Example.com"})
	s.Require().NoError(err)
	s.NotEmpty(u.ID)
	s.Equal("rex", u.Username)
	s.Equal("rex@example.com", u.Email)
	s.Equal(model.RoleUser, u.Role)
	s.Equal(model.AccountState{Status: model.StatusUnverified, Tier: model.TierFree}, u.State())

	got, err := s.store.GetUser(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(u.Username, got.Username)
}

func (s *StoreSuite) TestCreateUserRejectsDuplicates() {
	s.newUser("rex", model.AccountState{Status: model.StatusUnverified, Tier: model.TierFree})

	_, err := s.store.CreateUser(s.ctx, model.NewUser{Username: "rex", Email: "other@example.com"})
	s.True(errors.Is(err, errorx.ErrConflict))

	_, err = s.store.CreateUser(s.ctx, model.NewUser{Username: "max", Email: "rex@example.com"})
	s.True(errors.Is(err, errorx.ErrConflict))

	_, err = s.store.CreateUser(s.ctx, model.NewUser{Username: "", Email: "x@example.com"})
	s.True(errors.Is(err, errorx.ErrInvalid))
}

func (s *StoreSuite) TestGetUserMissing() {
	_, err := s.store.GetUser(s.ctx, "nobody")
	s.True(errors.Is(err, errorx.ErrNotFound))

	_, err = s.store.GetUserStats(s.ctx, "nobody")
	s.True(errors.Is(err, errorx.ErrNotFound))
}

func (s *StoreSuite) TestGetUsersOmitsMissing() {
	a := s.activeFree("rex")
	got, err := s.store.GetUsers(s.ctx, []string{a.ID, "gone"})
	s.Require().NoError(err)
	s.Len(got, 1)
	s.Equal("rex", got[a.ID].Username)

	got, err = s.store.GetUsers(s.ctx, nil)
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *StoreSuite) TestTransitionUserCompareAndSwap() {
	u := s.newUser("rex", model.AccountState{Status: model.StatusUnverified, Tier: model.TierFree})
	verified := model.AccountState{Status: model.StatusVerified, Tier: model.TierFree}

	got, err := s.store.TransitionUser(s.ctx, u.ID, u.State(), verified)
	s.Require().NoError(err)
	s.Equal(verified, got.State())

	_, err = s.store.TransitionUser(s.ctx, u.ID, u.State(), model.AccountState{Status: model.StatusPremium, Tier: model.TierPro})
	s.True(errors.Is(err, errorx.ErrConflict))

	_, err = s.store.TransitionUser(s.ctx, "nobody", u.State(), verified)
	s.True(errors.Is(err, errorx.ErrNotFound))

	stored, err := s.store.GetUser(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(verified, stored.State())
}

func (s *StoreSuite) TestSuggestedUsers() {
	me := s.activeFree("me")
	popular := s.activeFree("popular")
	quiet := s.activeFree("quiet")
	followed := s.activeFree("followed")
	s.newUser("ghost", model.AccountState{Status: model.StatusUnverified, Tier: model.TierFree})

	_, err := s.store.Follow(s.ctx, me.ID, followed.ID)
	s.Require().NoError(err)
	_, err = s.store.Follow(s.ctx, quiet.ID, popular.ID)
	s.Require().NoError(err)

	got, err := s.store.SuggestedUsers(s.ctx, me.ID, 10)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(popular.ID, got[0].ID)
	s.Equal(quiet.ID, got[1].ID)

	got, err = s.store.SuggestedUsers(s.ctx, me.ID, 1)
	s.Require().NoError(err)
	s.Len(got, 1)
}

// activities -----------------------------------------------------------------

func (s *StoreSuite) TestCreateActivityEnforcesLimit() {
	u := s.activeFree("rex")
	for i := 0; i < 5; i++ {
		s.activity(u.ID, 5)
	}
	_, err := s.store.CreateActivity(s.ctx, model.NewActivity{AuthorID: u.ID, Title: "sixth"}, 5)
	s.Require().Error(err)
	s.True(errors.Is(err, errorx.ErrLimitReached))
	s.Equal(int64(5), s.stats(u.ID).ActivitiesCreated)

	list, err := s.store.ListActivities(s.ctx, u.ID, 0, 50)
	s.Require().NoError(err)
	s.Len(list, 5)
}

func (s *StoreSuite) TestCreateActivityUncapped() {
	u := s.newUser("pro", model.AccountState{Status: model.StatusPremium, Tier: model.TierPro})
	for i := 0; i < 25; i++ {
		s.activity(u.ID, 0)
	}
	s.Equal(int64(25), s.stats(u.ID).ActivitiesCreated)
}

func (s *StoreSuite) TestOverlongFieldsAreInvalid() {
	long := func(n int) string { return strings.Repeat("x", n+1) }

	_, err := s.store.CreateUser(s.ctx, model.NewUser{Username: long(repository.MaxUsernameLen), Email: "x@example.com"})
	s.True(errors.Is(err, errorx.ErrInvalid))
	_, err = s.store.CreateUser(s.ctx, model.NewUser{ID: long(repository.MaxUserIDLen), Username: "x", Email: "x@example.com"})
	s.True(errors.Is(err, errorx.ErrInvalid))

	u := s.activeFree("rex")
	_, err = s.store.CreateActivity(s.ctx, model.NewActivity{AuthorID: u.ID, Title: "Recall", Difficulty: long(repository.MaxDifficultyLen)}, 5)
	s.True(errors.Is(err, errorx.ErrInvalid))
	_, err = s.store.CreatePost(s.ctx, model.NewPost{AuthorID: u.ID, Content: "hi", Tags: []string{"#" + long(model.MaxTagLen)}})
	s.True(errors.Is(err, errorx.ErrInvalid))

	st := s.stats(u.ID)
	s.Equal(int64(0), st.ActivitiesCreated)
	s.Equal(int64(0), st.PostsCreated)

	p, err := s.store.CreatePost(s.ctx, model.NewPost{AuthorID: u.ID, Content: "hi", Tags: []string{"#" + strings.Repeat("x", model.MaxTagLen)}})
	s.Require().NoError(err)
	s.Len(p.Tags, 1)
}

func (s *StoreSuite) TestCreateActivityValidation() {
	_, err := s.store.CreateActivity(s.ctx, model.NewActivity{AuthorID: "nobody", Title: "x"}, 5)
	s.True(errors.Is(err, errorx.ErrNotFound))

	u := s.activeFree("rex")
	_, err = s.store.CreateActivity(s.ctx, model.NewActivity{AuthorID: u.ID, Title: "   "}, 5)
	s.True(errors.Is(err, errorx.ErrInvalid))
	s.Equal(int64(0), s.stats(u.ID).ActivitiesCreated)
}

func (s *StoreSuite) TestCreateActivityIdempotencyKey() {
	u := s.activeFree("rex")
	in := model.NewActivity{AuthorID: u.ID, Title: "Recall", IdempotencyKey: "req-1"}

	first, err := s.store.CreateActivity(s.ctx, in, 5)
	s.Require().NoError(err)
	again, err := s.store.CreateActivity(s.ctx, in, 5)
	s.Require().NoError(err)
	s.Equal(first.ID, again.ID)
	s.Equal(int64(1), s.stats(u.ID).ActivitiesCreated)

	in.IdempotencyKey = "req-2"
	other, err := s.store.CreateActivity(s.ctx, in, 5)
	s.Require().NoError(err)
	s.NotEqual(first.ID, other.ID)
	s.Equal(int64(2), s.stats(u.ID).ActivitiesCreated)
}

func (s *StoreSuite) TestConcurrentCreateActivityAdmitsExactlyOne() {
	u := s.activeFree("rex")
	for i := 0; i < 4; i++ {
		s.activity(u.ID, 5)
	}

	const n = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		limited int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.CreateActivity(s.ctx, model.NewActivity{AuthorID: u.ID, Title: "race"}, 5)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, errorx.ErrLimitReached):
				limited++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, ok)
	s.Equal(n-1, limited)
	s.Equal(int64(5), s.stats(u.ID).ActivitiesCreated)
	list, err := s.store.ListActivities(s.ctx, u.ID, 0, 50)
	s.Require().NoError(err)
	s.Len(list, 5)
}

func (s *StoreSuite) TestDeleteActivityCascades() {
	author := s.activeFree("author")
	fan := s.activeFree("fan")
	a := s.activity(author.ID, 5)

	s.like(fan.ID, activityTarget(a.ID))
	_, err := s.store.CompleteActivity(s.ctx, fan.ID, a.ID)
	s.Require().NoError(err)
	_, err = s.store.SaveFavorite(s.ctx, fan.ID, a.ID)
	s.Require().NoError(err)
	p, err := s.store.CreatePost(s.ctx, model.NewPost{AuthorID: author.ID, ActivityID: a.ID, Content: "done it"})
	s.Require().NoError(err)
	s.Require().NotNil(p.ActivityID)

	s.Require().NoError(s.store.DeleteActivity(s.ctx, a.ID))

	st := s.stats(author.ID)
	s.Equal(int64(0), st.ActivitiesCreated)
	s.Equal(int64(0), st.LikesReceived)
	_, err = s.store.GetActivity(s.ctx, a.ID)
	s.True(errors.Is(err, errorx.ErrNotFound))

	liked, err := s.store.IsLikedBy(s.ctx, fan.ID, activityTarget(a.ID))
	s.Require().NoError(err)
	s.False(liked)

	favs, err := s.store.ListFavorites(s.ctx, fan.ID)
	s.Require().NoError(err)
	s.Empty(favs)

	p, err = s.store.GetPost(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Nil(p.ActivityID)

	s.True(errors.Is(s.store.DeleteActivity(s.ctx, a.ID), errorx.ErrNotFound))
}

func (s *StoreSuite) TestCompleteActivityIsIdempotent() {
	author := s.activeFree("author")
	a := s.activity(author.ID, 5)

	ok, err := s.store.CompleteActivity(s.ctx, author.ID, a.ID)
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.store.CompleteActivity(s.ctx, author.ID, a.ID)
	s.Require().NoError(err)
	s.False(ok)

	got, err := s.store.GetActivity(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), got.Completions)

	_, err = s.store.CompleteActivity(s.ctx, author.ID, "missing")
	s.True(errors.Is(err, errorx.ErrNotFound))
}

func (s *StoreSuite) TestFavorites() {
	u := s.newUser("pro", model.AccountState{Status: model.StatusPremium, Tier: model.TierPro})
	a := s.activity(u.ID, 0)

	ok, err := s.store.SaveFavorite(s.ctx, u.ID, a.ID)
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.store.SaveFavorite(s.ctx, u.ID, a.ID)
	s.Require().NoError(err)
	s.False(ok)

	favs, err := s.store.ListFavorites(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Require().Len(favs, 1)
	s.Equal(a.ID, favs[0].ID)

	ok, err = s.store.RemoveFavorite(s.ctx, u.ID, a.ID)
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.store.RemoveFavorite(s.ctx, u.ID, a.ID)
	s.Require().NoError(err)
	s.False(ok)

	_, err = s.store.SaveFavorite(s.ctx, u.ID, "missing")
	s.True(errors.Is(err, errorx.ErrNotFound))
}

// posts & comments -----------------------------------------------------------

func (s *StoreSuite) TestCreatePostCountsAndNormalizesTags() {
	u := s.activeFree("rex")
	p := s.post(u.ID, "#Recall", "recall", " Sit ")
	s.Equal(model.StringList{"recall", "sit"}, p.Tags)
	s.Equal(int64(1), s.stats(u.ID).PostsCreated)

	got, err := s.store.GetPost(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(p.Tags, got.Tags)
	s.Equal(p.Content, got.Content)

	_, err = s.store.CreatePost(s.ctx, model.NewPost{AuthorID: "nobody", Content: "x"})
	s.True(errors.Is(err, errorx.ErrNotFound))
	_, err = s.store.CreatePost(s.ctx, model.NewPost{AuthorID: u.ID, Content: " "})
	s.True(errors.Is(err, errorx.ErrInvalid))
	s.Equal(int64(1), s.stats(u.ID).PostsCreated)
}

func (s *StoreSuite) TestCreatePostLinksOnlyOwnActivity() {
	owner := s.activeFree("owner")
	other := s.activeFree("other")
	a := s.activity(owner.ID, 5)

	_, err := s.store.CreatePost(s.ctx, model.NewPost{AuthorID: other.ID, ActivityID: a.ID, Content: "mine now"})
	s.True(errors.Is(err, errorx.ErrInvalid))
	_, err = s.store.CreatePost(s.ctx, model.NewPost{AuthorID: owner.ID, ActivityID: "missing", Content: "x"})
	s.True(errors.Is(err, errorx.ErrNotFound))
	s.Equal(int64(0), s.stats(other.ID).PostsCreated)
	s.Equal(int64(0), s.stats(owner.ID).PostsCreated)
}

func (s *StoreSuite) TestCreatePostIdempotencyKey() {
	u := s.activeFree("rex")
	in := model.NewPost{AuthorID: u.ID, Content: "hello", IdempotencyKey: "k"}
	first, err := s.store.CreatePost(s.ctx, in)
	s.Require().NoError(err)
	again, err := s.store.CreatePost(s.ctx, in)
	s.Require().NoError(err)
	s.Equal(first.ID, again.ID)
	s.Equal(int64(1), s.stats(u.ID).PostsCreated)
}

func (s *StoreSuite) TestListPostsOrderAndFilters() {
	a := s.activeFree("a")
	b := s.activeFree("b")
	p1 := s.post(a.ID, "recall")
	time.Sleep(2 * time.Millisecond)
	p2 := s.post(b.ID, "sit")
	time.Sleep(2 * time.Millisecond)
	p3 := s.post(a.ID, "Recall", "heel")

	all, err := s.store.ListPosts(s.ctx, model.PostFilter{})
	s.Require().NoError(err)
	s.Equal([]string{p3.ID, p2.ID, p1.ID}, postIDs(all))

	byA, err := s.store.ListPosts(s.ctx, model.PostFilter{AuthorID: a.ID})
	s.Require().NoError(err)
	s.Equal([]string{p3.ID, p1.ID}, postIDs(byA))

	byTag, err := s.store.ListPosts(s.ctx, model.PostFilter{Tag: "#RECALL"})
	s.Require().NoError(err)
	s.Equal([]string{p3.ID, p1.ID}, postIDs(byTag))

	page, err := s.store.ListPosts(s.ctx, model.PostFilter{Offset: 1, Limit: 1})
	s.Require().NoError(err)
	s.Equal([]string{p2.ID}, postIDs(page))
}

func (s *StoreSuite) TestTrendingTags() {
	u := s.activeFree("rex")
	s.post(u.ID, "recall", "sit")
	s.post(u.ID, "recall")
	s.post(u.ID, "heel", "sit", "recall")

	got, err := s.store.TrendingTags(s.ctx, time.Now().Add(-time.Hour), 2)
	s.Require().NoError(err)
	s.Equal([]model.TagCount{{Tag: "recall", Count: 3}, {Tag: "sit", Count: 2}}, got)

	got, err = s.store.TrendingTags(s.ctx, time.Now().Add(time.Hour), 10)
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *StoreSuite) TestCommentsAndReplies() {
	u := s.activeFree("rex")
	p := s.post(u.ID)
	other := s.post(u.ID)

	c1 := s.comment(u.ID, p.ID, "")
	reply := s.comment(u.ID, p.ID, c1.ID)
	s.Require().NotNil(reply.ParentID)
	s.Equal(c1.ID, *reply.ParentID)

	_, err := s.store.CreateComment(s.ctx, model.NewComment{AuthorID: u.ID, PostID: other.ID, ParentID: c1.ID, Content: "wrong post"})
	s.True(errors.Is(err, errorx.ErrInvalid))
	_, err = s.store.CreateComment(s.ctx, model.NewComment{AuthorID: u.ID, PostID: "missing", Content: "x"})
	s.True(errors.Is(err, errorx.ErrNotFound))
	_, err = s.store.CreateComment(s.ctx, model.NewComment{AuthorID: u.ID, PostID: p.ID, ParentID: "missing", Content: "x"})
	s.True(errors.Is(err, errorx.ErrNotFound))

	got, err := s.store.GetPost(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(int64(2), got.Comments)

	list, err := s.store.ListComments(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Len(list, 2)
	s.Equal(c1.ID, list[0].ID)

	_, err = s.store.ListComments(s.ctx, "missing")
	s.True(errors.Is(err, errorx.ErrNotFound))
}

func (s *StoreSuite) TestDeleteCommentRemovesSubtree() {
	author := s.activeFree("author")
	fan := s.activeFree("fan")
	p := s.post(author.ID)
	root := s.comment(fan.ID, p.ID, "")
	child := s.comment(author.ID, p.ID, root.ID)
	s.comment(fan.ID, p.ID, child.ID)
	keep := s.comment(fan.ID, p.ID, "")
	s.like(author.ID, commentTarget(root.ID))
	s.like(fan.ID, commentTarget(child.ID))
	s.like(author.ID, commentTarget(keep.ID))

	s.Require().NoError(s.store.DeleteComment(s.ctx, root.ID))

	got, err := s.store.GetPost(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), got.Comments)

	counts, err := s.store.CommentCounts(s.ctx, []string{p.ID})
	s.Require().NoError(err)
	s.Equal(got.Comments, counts[p.ID])

	s.Equal(int64(1), s.stats(fan.ID).LikesReceived)
	s.Equal(int64(0), s.stats(author.ID).LikesReceived)

	_, err = s.store.GetComment(s.ctx, child.ID)
	s.True(errors.Is(err, errorx.ErrNotFound))
	s.True(errors.Is(s.store.DeleteComment(s.ctx, root.ID), errorx.ErrNotFound))
}

func (s *StoreSuite) TestDeletePostConservesCounters() {
	author := s.activeFree("author")
	fan := s.activeFree("fan")
	third := s.activeFree("third")

	keep := s.post(author.ID)
	s.like(fan.ID, postTarget(keep.ID))

	p := s.post(author.ID, "recall")
	s.like(fan.ID, postTarget(p.ID))
	s.like(third.ID, postTarget(p.ID))
	c := s.comment(fan.ID, p.ID, "")
	r := s.comment(third.ID, p.ID, c.ID)
	s.like(author.ID, commentTarget(c.ID))
	s.like(third.ID, commentTarget(c.ID))
	s.like(fan.ID, commentTarget(r.ID))

	s.Equal(int64(3), s.stats(author.ID).LikesReceived)
	s.Equal(int64(2), s.stats(fan.ID).LikesReceived)

	s.Require().NoError(s.store.DeletePost(s.ctx, p.ID))

	st := s.stats(author.ID)
	s.Equal(int64(1), st.PostsCreated)
	s.Equal(int64(1), st.LikesReceived)
	s.Equal(int64(0), s.stats(fan.ID).LikesReceived)
	s.Equal(int64(0), s.stats(third.ID).LikesReceived)

	counts, err := s.store.LikeCounts(s.ctx, model.TargetComment, []string{c.ID, r.ID})
	s.Require().NoError(err)
	s.Equal(map[string]int64{c.ID: 0, r.ID: 0}, counts)

	tags, err := s.store.TrendingTags(s.ctx, time.Now().Add(-time.Hour), 10)
	s.Require().NoError(err)
	s.Empty(tags)

	_, err = s.store.GetPost(s.ctx, p.ID)
	s.True(errors.Is(err, errorx.ErrNotFound))
	s.True(errors.Is(s.store.DeletePost(s.ctx, p.ID), errorx.ErrNotFound))
}

// likes ----------------------------------------------------------------------

func (s *StoreSuite) TestLikeIsIdempotent() {
	author := s.activeFree("author")
	fan := s.activeFree("fan")
	p := s.post(author.ID)
	t := postTarget(p.ID)

	ok, err := s.store.Like(s.ctx, fan.ID, t)
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.store.Like(s.ctx, fan.ID, t)
	s.Require().NoError(err)
	s.False(ok)

	got, err := s.store.GetPost(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), got.Likes)
	s.Equal(int64(1), s.stats(author.ID).LikesReceived)

	counts, err := s.store.LikeCounts(s.ctx, model.TargetPost, []string{p.ID})
	s.Require().NoError(err)
	s.Equal(int64(1), counts[p.ID])

	liked, err := s.store.IsLikedBy(s.ctx, fan.ID, t)
	s.Require().NoError(err)
	s.True(liked)

	for i := 0; i < 2; i++ {
		_, err = s.store.Unlike(s.ctx, fan.ID, t)
		s.Require().NoError(err)
	}
	got, err = s.store.GetPost(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(int64(0), got.Likes)
	s.Equal(int64(0), s.stats(author.ID).LikesReceived)
}

func (s *StoreSuite) TestLikeTargets() {
	author := s.activeFree("author")
	fan := s.activeFree("fan")
	a := s.activity(author.ID, 5)
	p := s.post(author.ID)
	c := s.comment(author.ID, p.ID, "")

	s.like(fan.ID, activityTarget(a.ID))
	s.like(fan.ID, postTarget(p.ID))
	s.like(fan.ID, commentTarget(c.ID))
	s.Equal(int64(3), s.stats(author.ID).LikesReceived)

	gotA, err := s.store.GetActivity(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), gotA.Likes)
	gotC, err := s.store.GetComment(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), gotC.Likes)

	_, err = s.store.Like(s.ctx, fan.ID, postTarget("missing"))
	s.True(errors.Is(err, errorx.ErrNotFound))
	_, err = s.store.Like(s.ctx, fan.ID, model.Target{Type: "photo", ID: p.ID})
	s.True(errors.Is(err, errorx.ErrInvalid))
	_, err = s.store.Like(s.ctx, "nobody", postTarget(p.ID))
	s.True(errors.Is(err, errorx.ErrNotFound))
}

// follows --------------------------------------------------------------------

func (s *StoreSuite) TestFollow() {
	a := s.activeFree("a")
	b := s.activeFree("b")

	_, err := s.store.Follow(s.ctx, a.ID, a.ID)
	s.True(errors.Is(err, errorx.ErrInvalid))
	_, err = s.store.Follow(s.ctx, a.ID, "nobody")
	s.True(errors.Is(err, errorx.ErrNotFound))

	for i := 0; i < 2; i++ {
		_, err = s.store.Follow(s.ctx, a.ID, b.ID)
		s.Require().NoError(err)
	}
	s.Equal(int64(1), s.stats(a.ID).Following)
	s.Equal(int64(1), s.stats(b.ID).Followers)

	yes, err := s.store.IsFollowing(s.ctx, a.ID, b.ID)
	s.Require().NoError(err)
	s.True(yes)
	no, err := s.store.IsFollowing(s.ctx, b.ID, a.ID)
	s.Require().NoError(err)
	s.False(no)

	following, err := s.store.ListFollowing(s.ctx, a.ID, 0, 10)
	s.Require().NoError(err)
	s.Equal([]string{b.ID}, following)
	followers, err := s.store.ListFollowers(s.ctx, b.ID, 0, 10)
	s.Require().NoError(err)
	s.Equal([]string{a.ID}, followers)

	ok, err := s.store.Unfollow(s.ctx, a.ID, b.ID)
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.store.Unfollow(s.ctx, a.ID, b.ID)
	s.Require().NoError(err)
	s.False(ok)
	s.Equal(int64(0), s.stats(a.ID).Following)
	s.Equal(int64(0), s.stats(b.ID).Followers)

	empty, err := s.store.ListFollowers(s.ctx, b.ID, 0, 10)
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *StoreSuite) TestConcurrentLikesCountEachUserOnce() {
	author := s.activeFree("author")
	p := s.post(author.ID)

	const fans, repeats = 12, 3
	users := make([]*model.User, fans)
	for i := range users {
		users[i] = s.activeFree(fmt.Sprintf("fan%d", i))
	}

	var wg sync.WaitGroup
	errs := make(chan error, fans*repeats)
	for _, u := range users {
		for r := 0; r < repeats; r++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if _, err := s.store.Like(s.ctx, id, postTarget(p.ID)); err != nil {
					errs <- err
				}
			}(u.ID)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}

	got, err := s.store.GetPost(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(int64(fans), got.Likes)
	s.Equal(int64(fans), s.stats(author.ID).LikesReceived)
	counts, err := s.store.LikeCounts(s.ctx, model.TargetPost, []string{p.ID})
	s.Require().NoError(err)
	s.Equal(int64(fans), counts[p.ID])
}

func (s *StoreSuite) TestConcurrentFollowsCountEachEdgeOnce() {
	a := s.activeFree("a")
	b := s.activeFree("b")

	const repeats = 8
	var wg sync.WaitGroup
	errs := make(chan error, 2*repeats)
	for r := 0; r < repeats; r++ {
		for _, pair := range [][2]string{{a.ID, b.ID}, {b.ID, a.ID}} {
			wg.Add(1)
			go func(from, to string) {
				defer wg.Done()
				if _, err := s.store.Follow(s.ctx, from, to); err != nil {
					errs <- err
				}
			}(pair[0], pair[1])
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}

	for _, u := range []*model.User{a, b} {
		st := s.stats(u.ID)
		s.Equal(int64(1), st.Following)
		s.Equal(int64(1), st.Followers)
	}
}

func postIDs(ps []*model.Post) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}
