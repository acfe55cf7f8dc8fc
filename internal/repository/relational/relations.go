package relational

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/pawprint/internal/model"
	"github.com/d60-Lab/pawprint/internal/repository"
	"github.com/d60-Lab/pawprint/pkg/errorx"
)

// 幂等：重复关系行不报错，RowsAffected 为 0
var doNothing = clause.OnConflict{DoNothing: true}

// 行锁：关系行与父行的计数在父行锁下变更，删除父行时不会漏掉并发写入
var forUpdate = clause.Locking{Strength: "UPDATE"}

// Likes ----------------------------------------------------------------------

func targetModel(tt model.TargetType) any {
	switch tt {
	case model.TargetPost:
		return &model.Post{}
	case model.TargetComment:
		return &model.Comment{}
	default:
		return &model.Activity{}
	}
}

// targetAuthor locks t and returns its author, or NotFound.
func targetAuthor(tx *gorm.DB, t model.Target) (string, error) {
	var authors []string
	if err := tx.Model(targetModel(t.Type)).Clauses(forUpdate).Where("id = ?", t.ID).Limit(1).Pluck("author_id", &authors).Error; err != nil {
		return "", err
	}
	if len(authors) == 0 {
		return "", errorx.NotFound("%s not found", t)
	}
	return authors[0], nil
}

func (s *Store) Like(ctx context.Context, userID string, t model.Target) (bool, error) {
	const op = "relational.Like"

	if err := repository.ValidateTarget(t); err != nil {
		return false, err
	}
	var created bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, &model.User{}, "user", userID); err != nil {
			return err
		}
		authorID, err := targetAuthor(tx, t)
		if err != nil {
			return err
		}
		res := tx.Clauses(doNothing).Create(&model.Like{
			ID:         uuid.New().String(),
			UserID:     userID,
			TargetType: t.Type,
			TargetID:   t.ID,
		})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		created = true
		n, err := increment(tx, targetModel(t.Type), t.ID, "likes")
		if err != nil {
			return err
		}
		if n == 0 {
			return errorx.NotFound("%s not found", t)
		}
		_, err = increment(tx, &model.User{}, authorID, "likes_received")
		return err
	})
	if err != nil {
		return false, wrap(op, err)
	}
	return created, nil
}

func (s *Store) Unlike(ctx context.Context, userID string, t model.Target) (bool, error) {
	const op = "relational.Unlike"

	if err := repository.ValidateTarget(t); err != nil {
		return false, err
	}
	var removed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 先锁目标再删点赞行，与删除内容的加锁顺序一致
		authorID, err := targetAuthor(tx, t)
		gone := errors.Is(err, errorx.ErrNotFound)
		if err != nil && !gone {
			return err
		}
		res := tx.Where("user_id = ? AND target_type = ? AND target_id = ?", userID, t.Type, t.ID).Delete(&model.Like{})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		removed = true
		if gone {
			return nil
		}
		if err := decrement(tx, targetModel(t.Type), t.ID, "likes", 1); err != nil {
			return err
		}
		return decrement(tx, &model.User{}, authorID, "likes_received", 1)
	})
	if err != nil {
		return false, wrap(op, err)
	}
	return removed, nil
}

func (s *Store) IsLikedBy(ctx context.Context, userID string, t model.Target) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.Like{}).
		Where("user_id = ? AND target_type = ? AND target_id = ?", userID, t.Type, t.ID).
		Count(&n).Error
	if err != nil {
		return false, wrap("relational.IsLikedBy", err)
	}
	return n > 0, nil
}

func (s *Store) LikeCounts(ctx context.Context, tt model.TargetType, ids []string) (map[string]int64, error) {
	out := make(map[string]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		TargetID string
		N        int64
	}
	err := s.db.WithContext(ctx).Model(&model.Like{}).
		Select("target_id, COUNT(*) AS n").
		Where("target_type = ? AND target_id IN ?", tt, ids).
		Group("target_id").
		Scan(&rows).Error
	if err != nil {
		return nil, wrap("relational.LikeCounts", err)
	}
	for _, id := range ids {
		out[id] = 0
	}
	for _, r := range rows {
		out[r.TargetID] = r.N
	}
	return out, nil
}

// dropLikes deletes every like on t and takes them off the author's likes_received.
func dropLikes(tx *gorm.DB, t model.Target, authorID string) error {
	res := tx.Where("target_type = ? AND target_id = ?", t.Type, t.ID).Delete(&model.Like{})
	if res.Error != nil {
		return res.Error
	}
	return decrement(tx, &model.User{}, authorID, "likes_received", res.RowsAffected)
}

// Follows --------------------------------------------------------------------

func (s *Store) Follow(ctx context.Context, followerID, followeeID string) (bool, error) {
	const op = "relational.Follow"

	f := &model.Follow{ID: uuid.New().String(), FollowerID: followerID, FolloweeID: followeeID}
	if f.Self() {
		return false, errorx.Invalid("cannot follow yourself")
	}
	var created bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, &model.User{}, "user", followerID); err != nil {
			return err
		}
		if err := mustExist(tx, &model.User{}, "user", followeeID); err != nil {
			return err
		}
		res := tx.Clauses(doNothing).Create(f)
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		created = true
		return followCounters(tx, followerID, followeeID, func(id, col string) error {
			_, err := increment(tx, &model.User{}, id, col)
			return err
		})
	})
	if err != nil {
		return false, wrap(op, err)
	}
	return created, nil
}

func (s *Store) Unfollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	const op = "relational.Unfollow"

	var removed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("follower_id = ? AND followee_id = ?", followerID, followeeID).Delete(&model.Follow{})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		removed = true
		return followCounters(tx, followerID, followeeID, func(id, col string) error {
			return decrement(tx, &model.User{}, id, col, 1)
		})
	})
	if err != nil {
		return false, wrap(op, err)
	}
	return removed, nil
}

// followCounters visits both users' follow counters in id order, so A→B and
// B→A running together lock the two user rows the same way round.
func followCounters(tx *gorm.DB, followerID, followeeID string, apply func(id, col string) error) error {
	steps := [2][2]string{{followerID, "following"}, {followeeID, "followers"}}
	if followeeID < followerID {
		steps[0], steps[1] = steps[1], steps[0]
	}
	for _, st := range steps {
		if err := apply(st[0], st[1]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	var cnt int64
	if err := s.db.WithContext(ctx).
		Model(&model.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&cnt).Error; err != nil {
		return false, wrap("relational.IsFollowing", err)
	}
	return cnt > 0, nil
}

func (s *Store) ListFollowing(ctx context.Context, userID string, offset, limit int) ([]string, error) {
	return s.listFollows(ctx, "follower_id", "followee_id", userID, offset, limit)
}

func (s *Store) ListFollowers(ctx context.Context, userID string, offset, limit int) ([]string, error) {
	return s.listFollows(ctx, "followee_id", "follower_id", userID, offset, limit)
}

func (s *Store) listFollows(ctx context.Context, by, pick, userID string, offset, limit int) ([]string, error) {
	offset, limit = repository.Page(offset, limit)
	ids := []string{}
	err := s.db.WithContext(ctx).Model(&model.Follow{}).
		Where(by+" = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Pluck(pick, &ids).Error
	if err != nil {
		return nil, wrap("relational.ListFollows", err)
	}
	return ids, nil
}

// Favorites ------------------------------------------------------------------

func (s *Store) SaveFavorite(ctx context.Context, userID, activityID string) (bool, error) {
	var created bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, &model.User{}, "user", userID); err != nil {
			return err
		}
		if err := lockRow(tx, &model.Activity{}, "activity", activityID); err != nil {
			return err
		}
		res := tx.Clauses(doNothing).Create(&model.Favorite{UserID: userID, ActivityID: activityID})
		created = res.RowsAffected > 0
		return res.Error
	})
	if err != nil {
		return false, wrap("relational.SaveFavorite", err)
	}
	return created, nil
}

func (s *Store) RemoveFavorite(ctx context.Context, userID, activityID string) (bool, error) {
	res := s.db.WithContext(ctx).Where("user_id = ? AND activity_id = ?", userID, activityID).Delete(&model.Favorite{})
	if res.Error != nil {
		return false, wrap("relational.RemoveFavorite", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) ListFavorites(ctx context.Context, userID string) ([]*model.Activity, error) {
	res := []*model.Activity{}
	err := s.db.WithContext(ctx).Model(&model.Activity{}).
		Select("activities.*").
		Joins("JOIN favorites ON favorites.activity_id = activities.id").
		Where("favorites.user_id = ?", userID).
		Order("favorites.created_at DESC").Order("activities.id DESC").
		Find(&res).Error
	if err != nil {
		return nil, wrap("relational.ListFavorites", err)
	}
	return res, nil
}
