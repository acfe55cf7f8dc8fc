// Package cache 为聚合查询（热门标签、推荐用户）提供 Redis 读穿缓存。
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/pawprint/internal/model"
	"github.com/d60-Lab/pawprint/pkg/logger"
	"github.com/d60-Lab/pawprint/pkg/metrics"
)

// Source is the uncached backend, usually the entity store.
type Source interface {
	TrendingTags(ctx context.Context, since time.Time, limit int) ([]model.TagCount, error)
	SuggestedUsers(ctx context.Context, userID string, limit int) ([]*model.User, error)
}

// Insights caches Source results in redis for ttl. Redis errors fall through
// to the source; results may be up to ttl stale.
type Insights struct {
	src   Source
	cache *redis.Client
	ttl   time.Duration
}

func NewInsights(src Source, cache *redis.Client, ttl time.Duration) *Insights {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Insights{src: src, cache: cache, ttl: ttl}
}

func trendingKey(since time.Time, limit int) string {
	return fmt.Sprintf("insights:trending:%d:%d", since.Unix(), limit)
}

func suggestedKey(userID string, limit int) string {
	return fmt.Sprintf("insights:suggested:%s:%d", userID, limit)
}

func (i *Insights) TrendingTags(ctx context.Context, since time.Time, limit int) ([]model.TagCount, error) {
	return readThrough(ctx, i, "trending", trendingKey(since, limit), func() ([]model.TagCount, error) {
		return i.src.TrendingTags(ctx, since, limit)
	})
}

func (i *Insights) SuggestedUsers(ctx context.Context, userID string, limit int) ([]*model.User, error) {
	return readThrough(ctx, i, "suggested", suggestedKey(userID, limit), func() ([]*model.User, error) {
		return i.src.SuggestedUsers(ctx, userID, limit)
	})
}

// ForgetSuggestions drops every cached suggestion page for userID, e.g. after a follow.
func (i *Insights) ForgetSuggestions(ctx context.Context, userID string) error {
	iter := i.cache.Scan(ctx, 0, fmt.Sprintf("insights:suggested:%s:*", userID), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return i.cache.Del(ctx, keys...).Err()
}

func readThrough[T any](ctx context.Context, i *Insights, kind, key string, load func() (T, error)) (T, error) {
	if data, err := i.cache.Get(ctx, key).Bytes(); err == nil {
		var out T
		if uErr := json.Unmarshal(data, &out); uErr == nil {
			metrics.RecordCacheLookup(kind, true)
			return out, nil
		}
	} else if err != redis.Nil {
		logger.Warn("insights cache read failed", zap.String("key", key), zap.Error(err))
	}
	metrics.RecordCacheLookup(kind, false)

	out, err := load()
	if err != nil {
		return out, err
	}
	if payload, err := json.Marshal(out); err == nil {
		if err := i.cache.Set(ctx, key, payload, i.ttl).Err(); err != nil {
			logger.Warn("insights cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return out, nil
}
