package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/pawprint/internal/model"
)

type countingSource struct {
	trending  int
	suggested int
	fail      bool
}

func (s *countingSource) TrendingTags(ctx context.Context, since time.Time, limit int) ([]model.TagCount, error) {
	s.trending++
	if s.fail {
		return nil, errors.New("db down")
	}
	return []model.TagCount{{Tag: "recall", Count: 3}, {Tag: "sit", Count: 1}}, nil
}

func (s *countingSource) SuggestedUsers(ctx context.Context, userID string, limit int) ([]*model.User, error) {
	s.suggested++
	return []*model.User{{ID: "u2", Username: "bella", Followers: 4}}, nil
}

func setup(t *testing.T) (*Insights, *countingSource, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	src := &countingSource{}
	return NewInsights(src, rdb, time.Minute), src, mr
}

func TestTrendingTagsReadThrough(t *testing.T) {
	ctx := context.Background()
	c, src, mr := setup(t)
	since := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	first, err := c.TrendingTags(ctx, since, 10)
	require.NoError(t, err)
	second, err := c.TrendingTags(ctx, since, 10)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.trending)
	assert.True(t, mr.Exists(trendingKey(since, 10)))

	// 不同窗口起点是不同的键
	_, err = c.TrendingTags(ctx, since.Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, src.trending)

	mr.FastForward(2 * time.Minute)
	_, err = c.TrendingTags(ctx, since, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, src.trending)
}

func TestSourceErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	c, src, mr := setup(t)
	src.fail = true

	_, err := c.TrendingTags(ctx, time.Unix(0, 0), 5)
	require.Error(t, err)
	assert.False(t, mr.Exists(trendingKey(time.Unix(0, 0), 5)))
}

func TestRedisDownFallsBackToSource(t *testing.T) {
	ctx := context.Background()
	c, src, mr := setup(t)
	mr.Close()

	users, err := c.SuggestedUsers(ctx, "u1", 5)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "bella", users[0].Username)
	assert.Equal(t, 1, src.suggested)
}

func TestForgetSuggestions(t *testing.T) {
	ctx := context.Background()
	c, src, mr := setup(t)

	_, err := c.SuggestedUsers(ctx, "u1", 5)
	require.NoError(t, err)
	_, err = c.SuggestedUsers(ctx, "u1", 10)
	require.NoError(t, err)
	_, err = c.SuggestedUsers(ctx, "u9", 5)
	require.NoError(t, err)
	assert.Equal(t, 3, src.suggested)

	require.NoError(t, c.ForgetSuggestions(ctx, "u1"))
	assert.False(t, mr.Exists(suggestedKey("u1", 5)))
	assert.False(t, mr.Exists(suggestedKey("u1", 10)))
	assert.True(t, mr.Exists(suggestedKey("u9", 5)))

	_, err = c.SuggestedUsers(ctx, "u1", 5)
	require.NoError(t, err)
	assert.Equal(t, 4, src.suggested)
}
