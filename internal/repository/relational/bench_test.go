package relational

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/d60-Lab/pawprint/internal/model"
)

func seedUsers(b *testing.B, s *Store, n int) []string {
	ctx := context.Background()
	ids := make([]string, n)
	for i := range ids {
		name := fmt.Sprintf("u%04d", i)
		u, err := s.CreateUser(ctx, model.NewUser{Username: name, Email: name + "@example.com"})
		if err != nil {
			b.Fatalf("seed users: %v", err)
		}
		ids[i] = u.ID
	}
	return ids
}

func BenchmarkFollowWithCounters(b *testing.B) {
	s := New(openTestDB(b))
	users := seedUsers(b, s, 1000)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(1))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		from := users[rng.Intn(len(users))]
		to := users[rng.Intn(len(users))]
		if from == to {
			continue
		}
		_, _ = s.Follow(ctx, from, to)
	}
}

func BenchmarkListFollowersAndFollowing(b *testing.B) {
	s := New(openTestDB(b))
	ctx := context.Background()

	// u0 与其余 N 个用户互相关注
	const N = 2000
	users := seedUsers(b, s, N+1)
	celeb := users[0]
	for _, id := range users[1:] {
		_, _ = s.Follow(ctx, id, celeb)
		_, _ = s.Follow(ctx, celeb, id)
	}

	b.ResetTimer()
	b.Run("ListFollowers", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = s.ListFollowers(ctx, celeb, 0, 50)
		}
	})
	b.Run("ListFollowing", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = s.ListFollowing(ctx, celeb, 0, 50)
		}
	})
}

func BenchmarkLikeUnlike(b *testing.B) {
	s := New(openTestDB(b))
	users := seedUsers(b, s, 200)
	ctx := context.Background()
	p, err := s.CreatePost(ctx, model.NewPost{AuthorID: users[0], Content: "bench"})
	if err != nil {
		b.Fatalf("seed post: %v", err)
	}
	t := model.Target{Type: model.TargetPost, ID: p.ID}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		u := users[i%len(users)]
		_, _ = s.Like(ctx, u, t)
		_, _ = s.Unlike(ctx, u, t)
	}
}
