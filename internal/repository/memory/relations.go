package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/d60-Lab/pawprint/internal/model"
	"github.com/d60-Lab/pawprint/internal/repository"
	"github.com/d60-Lab/pawprint/pkg/errorx"
)

// Likes ----------------------------------------------------------------------

// targetLocked returns the like counter of t and the id of t's author.
func (s *Store) targetLocked(t model.Target) (*int64, string, error) {
	switch t.Type {
	case model.TargetPost:
		if p, ok := s.posts[t.ID]; ok {
			return &p.Likes, p.AuthorID, nil
		}
	case model.TargetComment:
		if c, ok := s.comments[t.ID]; ok {
			return &c.Likes, c.AuthorID, nil
		}
	case model.TargetActivity:
		if a, ok := s.activities[t.ID]; ok {
			return &a.Likes, a.AuthorID, nil
		}
	}
	return nil, "", errorx.NotFound("%s not found", t)
}

func (s *Store) Like(_ context.Context, userID string, t model.Target) (bool, error) {
	if err := repository.ValidateTarget(t); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.userLocked(userID); err != nil {
		return false, err
	}
	likes, authorID, err := s.targetLocked(t)
	if err != nil {
		return false, err
	}
	k := likeKey{userID, t}
	if _, exists := s.likes[k]; exists {
		return false, nil
	}

	s.likes[k] = &model.Like{
		ID:         uuid.New().String(),
		UserID:     userID,
		TargetType: t.Type,
		TargetID:   t.ID,
		CreatedAt:  s.now(),
	}
	*likes++
	if author, ok := s.users[authorID]; ok {
		author.LikesReceived++
	}
	return true, nil
}

func (s *Store) Unlike(_ context.Context, userID string, t model.Target) (bool, error) {
	if err := repository.ValidateTarget(t); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := likeKey{userID, t}
	if _, exists := s.likes[k]; !exists {
		return false, nil
	}
	delete(s.likes, k)
	if likes, authorID, err := s.targetLocked(t); err == nil {
		decr(likes, 1)
		s.decrLikesReceivedLocked(authorID, 1)
	}
	return true, nil
}

func (s *Store) IsLikedBy(_ context.Context, userID string, t model.Target) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.likes[likeKey{userID, t}]
	return ok, nil
}

func (s *Store) LikeCounts(_ context.Context, tt model.TargetType, ids []string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int64, len(ids))
	for _, id := range ids {
		out[id] = 0
	}
	for k := range s.likes {
		if k.target.Type != tt {
			continue
		}
		if _, want := out[k.target.ID]; want {
			out[k.target.ID]++
		}
	}
	return out, nil
}

// dropLikesLocked deletes every like on t and returns how many there were.
func (s *Store) dropLikesLocked(t model.Target) int64 {
	var n int64
	for k := range s.likes {
		if k.target == t {
			delete(s.likes, k)
			n++
		}
	}
	return n
}

// Follows --------------------------------------------------------------------

func (s *Store) Follow(_ context.Context, followerID, followeeID string) (bool, error) {
	f := &model.Follow{ID: uuid.New().String(), FollowerID: followerID, FolloweeID: followeeID}
	if f.Self() {
		return false, errorx.Invalid("cannot follow yourself")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	follower, err := s.userLocked(followerID)
	if err != nil {
		return false, err
	}
	followee, err := s.userLocked(followeeID)
	if err != nil {
		return false, err
	}
	k := pair{followerID, followeeID}
	if _, exists := s.follows[k]; exists {
		return false, nil
	}

	f.CreatedAt = s.now()
	s.follows[k] = f
	follower.Following++
	followee.Followers++
	return true, nil
}

func (s *Store) Unfollow(_ context.Context, followerID, followeeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := pair{followerID, followeeID}
	if _, exists := s.follows[k]; !exists {
		return false, nil
	}
	delete(s.follows, k)
	if u, ok := s.users[followerID]; ok {
		decr(&u.Following, 1)
	}
	if u, ok := s.users[followeeID]; ok {
		decr(&u.Followers, 1)
	}
	return true, nil
}

func (s *Store) IsFollowing(_ context.Context, followerID, followeeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.follows[pair{followerID, followeeID}]
	return ok, nil
}

func (s *Store) ListFollowing(_ context.Context, userID string, offset, limit int) ([]string, error) {
	return s.listFollows(func(f *model.Follow) (string, bool) {
		return f.FolloweeID, f.FollowerID == userID
	}, offset, limit), nil
}

func (s *Store) ListFollowers(_ context.Context, userID string, offset, limit int) ([]string, error) {
	return s.listFollows(func(f *model.Follow) (string, bool) {
		return f.FollowerID, f.FolloweeID == userID
	}, offset, limit), nil
}

func (s *Store) listFollows(pick func(*model.Follow) (string, bool), offset, limit int) []string {
	s.mu.RLock()
	var rows []*model.Follow
	for _, f := range s.follows {
		if _, ok := pick(f); ok {
			rows = append(rows, f)
		}
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool { return newerFirst(rows[i].CreatedAt, rows[j].CreatedAt, rows[i].ID, rows[j].ID) })
	rows = paginate(rows, offset, limit)
	out := make([]string, len(rows))
	for i, f := range rows {
		out[i], _ = pick(f)
	}
	return out
}

// Favorites ------------------------------------------------------------------

func (s *Store) SaveFavorite(_ context.Context, userID, activityID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.userLocked(userID); err != nil {
		return false, err
	}
	if _, ok := s.activities[activityID]; !ok {
		return false, errorx.NotFound("activity %s not found", activityID)
	}
	k := pair{userID, activityID}
	if _, exists := s.favorites[k]; exists {
		return false, nil
	}
	s.favorites[k] = s.now()
	return true, nil
}

func (s *Store) RemoveFavorite(_ context.Context, userID, activityID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := pair{userID, activityID}
	if _, exists := s.favorites[k]; !exists {
		return false, nil
	}
	delete(s.favorites, k)
	return true, nil
}

func (s *Store) ListFavorites(_ context.Context, userID string) ([]*model.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type fav struct {
		a  *model.Activity
		at int64
	}
	var favs []fav
	for k, at := range s.favorites {
		if k.a != userID {
			continue
		}
		if a, ok := s.activities[k.b]; ok {
			favs = append(favs, fav{a, at.UnixNano()})
		}
	}
	sort.Slice(favs, func(i, j int) bool {
		if favs[i].at != favs[j].at {
			return favs[i].at > favs[j].at
		}
		return favs[i].a.ID > favs[j].a.ID
	})
	out := make([]*model.Activity, len(favs))
	for i, f := range favs {
		out[i] = cloneActivity(f.a)
	}
	return out, nil
}
