// Package relational is the gorm-backed repository.Store. Every unit runs in one
// transaction and counters change through guarded UPDATEs next to the relation rows.
package relational

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/pawprint/internal/model"
	"github.com/d60-Lab/pawprint/internal/repository"
	"github.com/d60-Lab/pawprint/pkg/errorx"
)

// Store implements repository.Store on top of gorm.
type Store struct {
	db *gorm.DB
}

var _ repository.Store = (*Store)(nil)

func New(db *gorm.DB) *Store { return &Store{db: db} }

// Models lists every table the store owns, in migration order.
func Models() []any {
	return []any{
		&model.User{},
		&model.Activity{},
		&model.Completion{},
		&model.Favorite{},
		&model.Post{},
		&model.PostTag{},
		&model.Comment{},
		&model.Like{},
		&model.Follow{},
	}
}

// Migrate creates or updates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(Models()...)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// wrap keeps domain errors as they are and maps gorm's translated errors onto them.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errorx.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errorx.NotFound("%s: record not found", op)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errorx.Conflict("%s: duplicate record", op)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func mustExist(tx *gorm.DB, m any, what, id string) error {
	var n int64
	if err := tx.Model(m).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return errorx.NotFound("%s %s not found", what, id)
	}
	return nil
}

// lockRow holds a row lock on id until the transaction ends, or returns NotFound.
func lockRow(tx *gorm.DB, m any, what, id string) error {
	var ids []string
	if err := tx.Model(m).Clauses(forUpdate).Where("id = ?", id).Limit(1).Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return errorx.NotFound("%s %s not found", what, id)
	}
	return nil
}

func increment(tx *gorm.DB, m any, id, col string) (int64, error) {
	res := tx.Model(m).Where("id = ?", id).UpdateColumn(col, gorm.Expr(col+" + 1"))
	return res.RowsAffected, res.Error
}

// decrement lowers col by n without going below zero.
func decrement(tx *gorm.DB, m any, id, col string, n int64) error {
	if n <= 0 {
		return nil
	}
	expr := fmt.Sprintf("CASE WHEN %[1]s > ? THEN %[1]s - ? ELSE 0 END", col)
	return tx.Model(m).Where("id = ?", id).UpdateColumn(col, gorm.Expr(expr, n, n)).Error
}

func findByKey[T any](db *gorm.DB, authorID, key string) (*T, error) {
	var v T
	if err := db.Where("author_id = ? AND idempotency_key = ?", authorID, key).Take(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// replay returns the row already created under (author, key), if any.
func replay[T any](db *gorm.DB, authorID, key string) (*T, bool, error) {
	if key == "" {
		return nil, false, nil
	}
	v, err := findByKey[T](db, authorID, key)
	switch {
	case err == nil:
		return v, true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, nil
	}
	return nil, false, err
}

// Users ----------------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, in model.NewUser) (*model.User, error) {
	const op = "relational.CreateUser"

	in, err := repository.NormalizeNewUser(in)
	if err != nil {
		return nil, err
	}
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	u := &model.User{
		ID:       in.ID,
		Username: in.Username,
		Email:    in.Email,
		Role:     in.Role,
		Status:   model.StatusUnverified,
		Tier:     model.TierFree,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.User{}).
			Where("id = ? OR username = ? OR email = ?", u.ID, u.Username, u.Email).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return errorx.Conflict("user %s, username %q or email %q already exists", u.ID, u.Username, u.Email)
		}
		return tx.Create(u).Error
	})
	if err != nil {
		return nil, wrap(op, err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.NotFound("user %s not found", id)
		}
		return nil, wrap("relational.GetUser", err)
	}
	return &u, nil
}

func (s *Store) GetUsers(ctx context.Context, ids []string) (map[string]*model.User, error) {
	out := make(map[string]*model.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []*model.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, wrap("relational.GetUsers", err)
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (s *Store) GetUserStats(ctx context.Context, id string) (*model.UserStats, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	st := u.Stats()
	return &st, nil
}

func (s *Store) TransitionUser(ctx context.Context, id string, expected, next model.AccountState) (*model.User, error) {
	const op = "relational.TransitionUser"

	var u model.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.User{}).
			Where("id = ? AND status = ? AND tier = ?", id, expected.Status, expected.Tier).
			Updates(map[string]any{
				"status":     next.Status,
				"tier":       next.Tier,
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := mustExist(tx, &model.User{}, "user", id); err != nil {
				return err
			}
			return errorx.Conflict("user %s state changed concurrently", id)
		}
		return tx.Where("id = ?", id).Take(&u).Error
	})
	if err != nil {
		return nil, wrap(op, err)
	}
	return &u, nil
}

func (s *Store) SuggestedUsers(ctx context.Context, userID string, limit int) ([]*model.User, error) {
	_, limit = repository.Page(0, limit)

	followed := s.db.Model(&model.Follow{}).Select("followee_id").Where("follower_id = ?", userID)
	var users []*model.User
	err := s.db.WithContext(ctx).
		Where("id <> ? AND status <> ?", userID, model.StatusUnverified).
		Where("id NOT IN (?)", followed).
		Order("followers DESC").Order("id ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, wrap("relational.SuggestedUsers", err)
	}
	return users, nil
}
