package relational

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/pawprint/internal/model"
	"github.com/d60-Lab/pawprint/internal/repository"
	"github.com/d60-Lab/pawprint/pkg/errorx"
)

// Activities -----------------------------------------------------------------

func (s *Store) CreateActivity(ctx context.Context, in model.NewActivity, maxActivities int) (*model.Activity, error) {
	const op = "relational.CreateActivity"

	in, err := repository.NormalizeNewActivity(in)
	if err != nil {
		return nil, err
	}
	if maxActivities < 0 {
		return nil, errorx.Invalid("negative activity limit")
	}
	db := s.db.WithContext(ctx)
	if a, ok, err := replay[model.Activity](db, in.AuthorID, in.IdempotencyKey); err != nil {
		return nil, wrap(op, err)
	} else if ok {
		return a, nil
	}

	now := time.Now()
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
	err = db.Transaction(func(tx *gorm.DB) error {
		// 条件自增：仅当未达上限时 +1，与插入同一事务
		q := tx.Model(&model.User{}).Where("id = ?", in.AuthorID)
		if maxActivities > 0 {
			q = q.Where("activities_created < ?", maxActivities)
		}
		res := q.UpdateColumn("activities_created", gorm.Expr("activities_created + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := mustExist(tx, &model.User{}, "user", in.AuthorID); err != nil {
				return err
			}
			return errorx.LimitReached()
		}
		return tx.Create(a).Error
	})
	if err != nil {
		if prev, ok, _ := replay[model.Activity](db, in.AuthorID, in.IdempotencyKey); ok {
			return prev, nil
		}
		return nil, wrap(op, err)
	}
	return a, nil
}

func (s *Store) GetActivity(ctx context.Context, id string) (*model.Activity, error) {
	var a model.Activity
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.NotFound("activity %s not found", id)
		}
		return nil, wrap("relational.GetActivity", err)
	}
	return &a, nil
}

func (s *Store) ListActivities(ctx context.Context, authorID string, offset, limit int) ([]*model.Activity, error) {
	offset, limit = repository.Page(offset, limit)
	q := s.db.WithContext(ctx).Model(&model.Activity{})
	if authorID != "" {
		q = q.Where("author_id = ?", authorID)
	}
	res := []*model.Activity{}
	if err := q.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&res).Error; err != nil {
		return nil, wrap("relational.ListActivities", err)
	}
	return res, nil
}

func (s *Store) DeleteActivity(ctx context.Context, id string) error {
	const op = "relational.DeleteActivity"

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a model.Activity
		if err := tx.Clauses(forUpdate).Where("id = ?", id).Take(&a).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errorx.NotFound("activity %s not found", id)
			}
			return err
		}
		if err := dropLikes(tx, model.Target{Type: model.TargetActivity, ID: id}, a.AuthorID); err != nil {
			return err
		}
		if err := tx.Where("activity_id = ?", id).Delete(&model.Completion{}).Error; err != nil {
			return err
		}
		if err := tx.Where("activity_id = ?", id).Delete(&model.Favorite{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Post{}).Where("activity_id = ?", id).UpdateColumn("activity_id", nil).Error; err != nil {
			return err
		}
		if err := decrement(tx, &model.User{}, a.AuthorID, "activities_created", 1); err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.Activity{}).Error
	})
	return wrap(op, err)
}

func (s *Store) CompleteActivity(ctx context.Context, userID, activityID string) (bool, error) {
	const op = "relational.CompleteActivity"

	var created bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, &model.User{}, "user", userID); err != nil {
			return err
		}
		if err := lockRow(tx, &model.Activity{}, "activity", activityID); err != nil {
			return err
		}
		res := tx.Clauses(doNothing).Create(&model.Completion{UserID: userID, ActivityID: activityID})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		created = true
		n, err := increment(tx, &model.Activity{}, activityID, "completions")
		if err != nil {
			return err
		}
		if n == 0 {
			return errorx.NotFound("activity %s not found", activityID)
		}
		return nil
	})
	if err != nil {
		return false, wrap(op, err)
	}
	return created, nil
}

// Posts ----------------------------------------------------------------------

func (s *Store) CreatePost(ctx context.Context, in model.NewPost) (*model.Post, error) {
	const op = "relational.CreatePost"

	in, err := repository.NormalizeNewPost(in)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	if p, ok, err := replay[model.Post](db, in.AuthorID, in.IdempotencyKey); err != nil {
		return nil, wrap(op, err)
	} else if ok {
		return p, nil
	}

	now := time.Now()
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
	err = db.Transaction(func(tx *gorm.DB) error {
		if in.ActivityID != "" {
			var a model.Activity
			if err := tx.Clauses(forUpdate).Select("id", "author_id").Where("id = ?", in.ActivityID).Take(&a).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return errorx.NotFound("activity %s not found", in.ActivityID)
				}
				return err
			}
			if a.AuthorID != in.AuthorID {
				return errorx.Invalid("a post can only link the author's own activity")
			}
		}
		n, err := increment(tx, &model.User{}, in.AuthorID, "posts_created")
		if err != nil {
			return err
		}
		if n == 0 {
			return errorx.NotFound("user %s not found", in.AuthorID)
		}
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		if len(in.Tags) == 0 {
			return nil
		}
		tags := make([]model.PostTag, len(in.Tags))
		for i, t := range in.Tags {
			tags[i] = model.PostTag{PostID: p.ID, Tag: t, CreatedAt: now}
		}
		return tx.Create(&tags).Error
	})
	if err != nil {
		if prev, ok, _ := replay[model.Post](db, in.AuthorID, in.IdempotencyKey); ok {
			return prev, nil
		}
		return nil, wrap(op, err)
	}
	return p, nil
}

func (s *Store) GetPost(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.NotFound("post %s not found", id)
		}
		return nil, wrap("relational.GetPost", err)
	}
	return &p, nil
}

func (s *Store) ListPosts(ctx context.Context, f model.PostFilter) ([]*model.Post, error) {
	offset, limit := repository.Page(f.Offset, f.Limit)
	q := s.db.WithContext(ctx).Model(&model.Post{})
	if f.AuthorID != "" {
		q = q.Where("author_id = ?", f.AuthorID)
	}
	if tag := model.TrimTag(f.Tag); tag != "" {
		q = q.Where("id IN (?)", s.db.Model(&model.PostTag{}).Select("post_id").Where("tag = ?", tag))
	}
	res := []*model.Post{}
	if err := q.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&res).Error; err != nil {
		return nil, wrap("relational.ListPosts", err)
	}
	return res, nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	const op = "relational.DeletePost"

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Post
		if err := tx.Clauses(forUpdate).Where("id = ?", id).Take(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errorx.NotFound("post %s not found", id)
			}
			return err
		}
		var comments []model.Comment
		if err := tx.Clauses(forUpdate).Select("id", "author_id").Where("post_id = ?", id).Find(&comments).Error; err != nil {
			return err
		}
		for _, c := range comments {
			if err := dropLikes(tx, model.Target{Type: model.TargetComment, ID: c.ID}, c.AuthorID); err != nil {
				return err
			}
		}
		if err := tx.Where("post_id = ?", id).Delete(&model.Comment{}).Error; err != nil {
			return err
		}
		if err := dropLikes(tx, model.Target{Type: model.TargetPost, ID: id}, p.AuthorID); err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&model.PostTag{}).Error; err != nil {
			return err
		}
		if err := decrement(tx, &model.User{}, p.AuthorID, "posts_created", 1); err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.Post{}).Error
	})
	return wrap(op, err)
}

func (s *Store) TrendingTags(ctx context.Context, since time.Time, limit int) ([]model.TagCount, error) {
	_, limit = repository.Page(0, limit)
	res := []model.TagCount{}
	err := s.db.WithContext(ctx).Model(&model.PostTag{}).
		Select("tag, COUNT(*) AS count").
		Where("created_at >= ?", since).
		Group("tag").
		Order("COUNT(*) DESC").Order("tag ASC").
		Limit(limit).
		Scan(&res).Error
	if err != nil {
		return nil, wrap("relational.TrendingTags", err)
	}
	return res, nil
}

// Comments -------------------------------------------------------------------

func (s *Store) CreateComment(ctx context.Context, in model.NewComment) (*model.Comment, error) {
	const op = "relational.CreateComment"

	in, err := repository.NormalizeNewComment(in)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	if c, ok, err := replay[model.Comment](db, in.AuthorID, in.IdempotencyKey); err != nil {
		return nil, wrap(op, err)
	} else if ok {
		return c, nil
	}

	now := time.Now()
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
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, &model.User{}, "user", in.AuthorID); err != nil {
			return err
		}
		// 帖子行先于父评论加锁，顺序与 DeletePost 相同
		n, err := increment(tx, &model.Post{}, in.PostID, "comments")
		if err != nil {
			return err
		}
		if n == 0 {
			return errorx.NotFound("post %s not found", in.PostID)
		}
		if in.ParentID != "" {
			var parent model.Comment
			if err := tx.Clauses(forUpdate).Select("id", "post_id").Where("id = ?", in.ParentID).Take(&parent).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return errorx.NotFound("comment %s not found", in.ParentID)
				}
				return err
			}
			if parent.PostID != in.PostID {
				return errorx.Invalid("reply must belong to the same post as its parent")
			}
		}
		return tx.Create(c).Error
	})
	if err != nil {
		if prev, ok, _ := replay[model.Comment](db, in.AuthorID, in.IdempotencyKey); ok {
			return prev, nil
		}
		return nil, wrap(op, err)
	}
	return c, nil
}

func (s *Store) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	var c model.Comment
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.NotFound("comment %s not found", id)
		}
		return nil, wrap("relational.GetComment", err)
	}
	return &c, nil
}

func (s *Store) ListComments(ctx context.Context, postID string) ([]*model.Comment, error) {
	const op = "relational.ListComments"

	db := s.db.WithContext(ctx)
	if err := mustExist(db, &model.Post{}, "post", postID); err != nil {
		return nil, wrap(op, err)
	}
	res := []*model.Comment{}
	if err := db.Where("post_id = ?", postID).Order("created_at ASC").Order("id ASC").Find(&res).Error; err != nil {
		return nil, wrap(op, err)
	}
	return res, nil
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	const op = "relational.DeleteComment"

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var root model.Comment
		if err := tx.Select("id", "post_id").Where("id = ?", id).Take(&root).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errorx.NotFound("comment %s not found", id)
			}
			return err
		}
		// 帖子 → 评论 的加锁顺序；锁住后再确认评论仍在
		if err := lockRow(tx, &model.Post{}, "post", root.PostID); err != nil {
			if errors.Is(err, errorx.ErrNotFound) {
				return errorx.NotFound("comment %s not found", id)
			}
			return err
		}
		if err := lockRow(tx, &model.Comment{}, "comment", id); err != nil {
			return err
		}

		subtree := []string{id}
		for frontier := subtree; len(frontier) > 0; {
			var kids []string
			if err := tx.Model(&model.Comment{}).Clauses(forUpdate).Where("parent_id IN ?", frontier).Pluck("id", &kids).Error; err != nil {
				return err
			}
			subtree = append(subtree, kids...)
			frontier = kids
		}

		var rows []model.Comment
		if err := tx.Select("id", "author_id").Where("id IN ?", subtree).Find(&rows).Error; err != nil {
			return err
		}
		for _, c := range rows {
			if err := dropLikes(tx, model.Target{Type: model.TargetComment, ID: c.ID}, c.AuthorID); err != nil {
				return err
			}
		}
		if err := tx.Where("id IN ?", subtree).Delete(&model.Comment{}).Error; err != nil {
			return err
		}
		return decrement(tx, &model.Post{}, root.PostID, "comments", int64(len(subtree)))
	})
	return wrap(op, err)
}

func (s *Store) CommentCounts(ctx context.Context, postIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		PostID string
		N      int64
	}
	err := s.db.WithContext(ctx).Model(&model.Comment{}).
		Select("post_id, COUNT(*) AS n").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		return nil, wrap("relational.CommentCounts", err)
	}
	for _, id := range postIDs {
		out[id] = 0
	}
	for _, r := range rows {
		out[r.PostID] = r.N
	}
	return out, nil
}
