// Package repository defines the entity store contract shared by the memory and
// relational backends. Every mutation that changes a relation also changes the
// counters derived from it, as one unit.
package repository

import (
	"context"
	"time"

	"github.com/d60-Lab/pawprint/internal/model"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page clamps pagination input to sane bounds.
func Page(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return offset, limit
}

type UserRepository interface {
	// CreateUser registers a user as unverified/free. Duplicate id, username or email is a Conflict.
	CreateUser(ctx context.Context, in model.NewUser) (*model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	// GetUsers returns the users that exist; missing ids are absent from the map.
	GetUsers(ctx context.Context, ids []string) (map[string]*model.User, error)
	GetUserStats(ctx context.Context, id string) (*model.UserStats, error)
	// TransitionUser sets (status, tier) to next only if the stored pair equals expected.
	TransitionUser(ctx context.Context, id string, expected, next model.AccountState) (*model.User, error)
	// SuggestedUsers lists verified users that userID does not follow yet, most followed first.
	SuggestedUsers(ctx context.Context, userID string, limit int) ([]*model.User, error)
}

type ActivityRepository interface {
	// CreateActivity increments the author's activities_created iff it is below
	// maxActivities (0 = uncapped) and inserts the activity in the same unit.
	CreateActivity(ctx context.Context, in model.NewActivity, maxActivities int) (*model.Activity, error)
	GetActivity(ctx context.Context, id string) (*model.Activity, error)
	ListActivities(ctx context.Context, authorID string, offset, limit int) ([]*model.Activity, error)
	DeleteActivity(ctx context.Context, id string) error
	CompleteActivity(ctx context.Context, userID, activityID string) (bool, error)
}

type PostRepository interface {
	CreatePost(ctx context.Context, in model.NewPost) (*model.Post, error)
	GetPost(ctx context.Context, id string) (*model.Post, error)
	ListPosts(ctx context.Context, f model.PostFilter) ([]*model.Post, error)
	DeletePost(ctx context.Context, id string) error
	TrendingTags(ctx context.Context, since time.Time, limit int) ([]model.TagCount, error)
}

type CommentRepository interface {
	CreateComment(ctx context.Context, in model.NewComment) (*model.Comment, error)
	GetComment(ctx context.Context, id string) (*model.Comment, error)
	ListComments(ctx context.Context, postID string) ([]*model.Comment, error)
	// DeleteComment removes the comment and its reply subtree.
	DeleteComment(ctx context.Context, id string) error
	// CommentCounts recounts comments per post from the comment rows.
	CommentCounts(ctx context.Context, postIDs []string) (map[string]int64, error)
}

type LikeRepository interface {
	// Like reports whether a new like was recorded; liking twice is a no-op.
	Like(ctx context.Context, userID string, t model.Target) (bool, error)
	Unlike(ctx context.Context, userID string, t model.Target) (bool, error)
	IsLikedBy(ctx context.Context, userID string, t model.Target) (bool, error)
	// LikeCounts recounts likes per target from the like rows.
	LikeCounts(ctx context.Context, tt model.TargetType, ids []string) (map[string]int64, error)
}

type FollowRepository interface {
	Follow(ctx context.Context, followerID, followeeID string) (bool, error)
	Unfollow(ctx context.Context, followerID, followeeID string) (bool, error)
	IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error)
	ListFollowing(ctx context.Context, userID string, offset, limit int) ([]string, error)
	ListFollowers(ctx context.Context, userID string, offset, limit int) ([]string, error)
}

type FavoriteRepository interface {
	SaveFavorite(ctx context.Context, userID, activityID string) (bool, error)
	RemoveFavorite(ctx context.Context, userID, activityID string) (bool, error)
	ListFavorites(ctx context.Context, userID string) ([]*model.Activity, error)
}

// Store is the full entity store.
type Store interface {
	UserRepository
	ActivityRepository
	PostRepository
	CommentRepository
	LikeRepository
	FollowRepository
	FavoriteRepository
	Close() error
}
