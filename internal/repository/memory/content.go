package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/pawprint/internal/model"
	"github.com/d60-Lab/pawprint/internal/repository"
	"github.com/d60-Lab/pawprint/pkg/errorx"
)

const (
	kindActivity = "activity"
	kindPost     = "post"
	kindComment  = "comment"
)

// Activities -----------------------------------------------------------------

func (s *Store) CreateActivity(_ context.Context, in model.NewActivity, maxActivities int) (*model.Activity, error) {
	in, err := repository.NormalizeNewActivity(in)
	if err != nil {
		return nil, err
	}
	if maxActivities < 0 {
		return nil, errorx.Invalid("negative activity limit")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	author, err := s.userLocked(in.AuthorID)
	if err != nil {
		return nil, err
	}
	if id, ok := s.replayLocked(kindActivity, in.AuthorID, in.IdempotencyKey); ok {
		return cloneActivity(s.activities[id]), nil
	}
	if maxActivities > 0 && author.ActivitiesCreated >= int64(maxActivities) {
		return nil, errorx.LimitReached()
	}

	now := s.now()
	a := &model.Activity{
		ID:             uuid.New().String(),
		AuthorID:       in.AuthorID,
		Title:          in.Title,
		Description:    in.Description,
		Difficulty:     in.Difficulty,
		IdempotencyKey: repository.KeyPtr(in.IdempotencyKey),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.activities[a.ID] = a
	s.rememberLocked(kindActivity, a.AuthorID, in.IdempotencyKey, a.ID)
	author.ActivitiesCreated++
	return cloneActivity(a), nil
}

func (s *Store) GetActivity(_ context.Context, id string) (*model.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.activities[id]
	if !ok {
		return nil, errorx.NotFound("activity %s not found", id)
	}
	return cloneActivity(a), nil
}

func (s *Store) ListActivities(_ context.Context, authorID string, offset, limit int) ([]*model.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Activity
	for _, a := range s.activities {
		if authorID == "" || a.AuthorID == authorID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	out = paginate(out, offset, limit)
	for i, a := range out {
		out[i] = cloneActivity(a)
	}
	return out, nil
}

func (s *Store) DeleteActivity(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.activities[id]
	if !ok {
		return errorx.NotFound("activity %s not found", id)
	}

	s.decrLikesReceivedLocked(a.AuthorID, s.dropLikesLocked(model.Target{Type: model.TargetActivity, ID: id}))
	for k := range s.completions {
		if k.b == id {
			delete(s.completions, k)
		}
	}
	for k := range s.favorites {
		if k.b == id {
			delete(s.favorites, k)
		}
	}
	for _, p := range s.posts {
		if p.ActivityID != nil && *p.ActivityID == id {
			p.ActivityID = nil
		}
	}
	if u, ok := s.users[a.AuthorID]; ok {
		decr(&u.ActivitiesCreated, 1)
	}
	s.forgetLocked(kindActivity, a.AuthorID, a.IdempotencyKey)
	delete(s.activities, id)
	return nil
}

func (s *Store) CompleteActivity(_ context.Context, userID, activityID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.userLocked(userID); err != nil {
		return false, err
	}
	a, ok := s.activities[activityID]
	if !ok {
		return false, errorx.NotFound("activity %s not found", activityID)
	}
	k := pair{userID, activityID}
	if _, done := s.completions[k]; done {
		return false, nil
	}
	s.completions[k] = s.now()
	a.Completions++
	return true, nil
}

// Posts ----------------------------------------------------------------------

func (s *Store) CreatePost(_ context.Context, in model.NewPost) (*model.Post, error) {
	in, err := repository.NormalizeNewPost(in)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	author, err := s.userLocked(in.AuthorID)
	if err != nil {
		return nil, err
	}
	if id, ok := s.replayLocked(kindPost, in.AuthorID, in.IdempotencyKey); ok {
		return clonePost(s.posts[id]), nil
	}
	if in.ActivityID != "" {
		a, ok := s.activities[in.ActivityID]
		if !ok {
			return nil, errorx.NotFound("activity %s not found", in.ActivityID)
		}
		if a.AuthorID != in.AuthorID {
			return nil, errorx.Invalid("a post can only link the author's own activity")
		}
	}

	now := s.now()
	p := &model.Post{
		ID:             uuid.New().String(),
		AuthorID:       in.AuthorID,
		ActivityID:     repository.KeyPtr(in.ActivityID),
		Content:        in.Content,
		Tags:           model.StringList(in.Tags),
		IdempotencyKey: repository.KeyPtr(in.IdempotencyKey),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.posts[p.ID] = p
	s.rememberLocked(kindPost, p.AuthorID, in.IdempotencyKey, p.ID)
	author.PostsCreated++
	return clonePost(p), nil
}

func (s *Store) GetPost(_ context.Context, id string) (*model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, errorx.NotFound("post %s not found", id)
	}
	return clonePost(p), nil
}

func (s *Store) ListPosts(_ context.Context, f model.PostFilter) ([]*model.Post, error) {
	tag := model.TrimTag(f.Tag)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Post
	for _, p := range s.posts {
		if f.AuthorID != "" && p.AuthorID != f.AuthorID {
			continue
		}
		if tag != "" && !hasTag(p.Tags, tag) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	out = paginate(out, f.Offset, f.Limit)
	for i, p := range out {
		out[i] = clonePost(p)
	}
	return out, nil
}

func (s *Store) DeletePost(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return errorx.NotFound("post %s not found", id)
	}

	for cid, c := range s.comments {
		if c.PostID == id {
			s.dropCommentLocked(cid)
		}
	}
	s.decrLikesReceivedLocked(p.AuthorID, s.dropLikesLocked(model.Target{Type: model.TargetPost, ID: id}))
	if u, ok := s.users[p.AuthorID]; ok {
		decr(&u.PostsCreated, 1)
	}
	s.forgetLocked(kindPost, p.AuthorID, p.IdempotencyKey)
	delete(s.posts, id)
	return nil
}

func (s *Store) TrendingTags(_ context.Context, since time.Time, limit int) ([]model.TagCount, error) {
	_, limit = repository.Page(0, limit)

	s.mu.RLock()
	counts := make(map[string]int64)
	for _, p := range s.posts {
		if p.CreatedAt.Before(since) {
			continue
		}
		for _, t := range p.Tags {
			counts[t]++
		}
	}
	s.mu.RUnlock()

	out := make([]model.TagCount, 0, len(counts))
	for t, n := range counts {
		out = append(out, model.TagCount{Tag: t, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Comments -------------------------------------------------------------------

func (s *Store) CreateComment(_ context.Context, in model.NewComment) (*model.Comment, error) {
	in, err := repository.NormalizeNewComment(in)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.userLocked(in.AuthorID); err != nil {
		return nil, err
	}
	if id, ok := s.replayLocked(kindComment, in.AuthorID, in.IdempotencyKey); ok {
		return cloneComment(s.comments[id]), nil
	}
	p, ok := s.posts[in.PostID]
	if !ok {
		return nil, errorx.NotFound("post %s not found", in.PostID)
	}
	if in.ParentID != "" {
		parent, ok := s.comments[in.ParentID]
		if !ok {
			return nil, errorx.NotFound("comment %s not found", in.ParentID)
		}
		if parent.PostID != in.PostID {
			return nil, errorx.Invalid("reply must belong to the same post as its parent")
		}
	}

	now := s.now()
	c := &model.Comment{
		ID:             uuid.New().String(),
		PostID:         in.PostID,
		ParentID:       repository.KeyPtr(in.ParentID),
		AuthorID:       in.AuthorID,
		Content:        in.Content,
		IdempotencyKey: repository.KeyPtr(in.IdempotencyKey),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.comments[c.ID] = c
	s.rememberLocked(kindComment, c.AuthorID, in.IdempotencyKey, c.ID)
	p.Comments++
	return cloneComment(c), nil
}

func (s *Store) GetComment(_ context.Context, id string) (*model.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[id]
	if !ok {
		return nil, errorx.NotFound("comment %s not found", id)
	}
	return cloneComment(c), nil
}

func (s *Store) ListComments(_ context.Context, postID string) ([]*model.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.posts[postID]; !ok {
		return nil, errorx.NotFound("post %s not found", postID)
	}
	out := []*model.Comment{}
	for _, c := range s.comments {
		if c.PostID == postID {
			out = append(out, cloneComment(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[j].CreatedAt, out[i].CreatedAt, out[j].ID, out[i].ID) })
	return out, nil
}

func (s *Store) DeleteComment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[id]
	if !ok {
		return errorx.NotFound("comment %s not found", id)
	}

	subtree := []string{id}
	for i := 0; i < len(subtree); i++ {
		for cid, child := range s.comments {
			if child.ParentID != nil && *child.ParentID == subtree[i] {
				subtree = append(subtree, cid)
			}
		}
	}
	for _, cid := range subtree {
		s.dropCommentLocked(cid)
	}
	if p, ok := s.posts[c.PostID]; ok {
		decr(&p.Comments, int64(len(subtree)))
	}
	return nil
}

func (s *Store) CommentCounts(_ context.Context, postIDs []string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int64, len(postIDs))
	for _, id := range postIDs {
		out[id] = 0
	}
	for _, c := range s.comments {
		if _, want := out[c.PostID]; want {
			out[c.PostID]++
		}
	}
	return out, nil
}

// dropCommentLocked removes one comment and its likes without touching the
// post's comment counter.
func (s *Store) dropCommentLocked(id string) {
	c := s.comments[id]
	s.decrLikesReceivedLocked(c.AuthorID, s.dropLikesLocked(model.Target{Type: model.TargetComment, ID: id}))
	s.forgetLocked(kindComment, c.AuthorID, c.IdempotencyKey)
	delete(s.comments, id)
}

func newerFirst(a, b time.Time, aID, bID string) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return aID > bID
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
