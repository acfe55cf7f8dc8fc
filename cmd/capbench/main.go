// capbench hammers CreateActivity from many goroutines against one quota and
// reports latency and whether the cap held.
package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/pawprint/config"
	"github.com/d60-Lab/pawprint/internal/model"
	"github.com/d60-Lab/pawprint/internal/repository"
	"github.com/d60-Lab/pawprint/internal/repository/memory"
	"github.com/d60-Lab/pawprint/internal/repository/relational"
	"github.com/d60-Lab/pawprint/pkg/database"
	"github.com/d60-Lab/pawprint/pkg/errorx"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func openStore(ctx context.Context) repository.Store {
	if os.Getenv("BACKEND") == "memory" {
		return memory.New()
	}
	cfg := must(config.Load())
	s := relational.New(must(database.InitDB(cfg)))
	if err := s.Migrate(ctx); err != nil {
		panic(err)
	}
	return s
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
}

func main() {
	ctx := context.Background()
	store := openStore(ctx)
	defer store.Close()

	N := envInt("N", 2000)       // attempts per user
	CONC := envInt("CONC", 32)   // workers
	USERS := envInt("USERS", 10) // users attacked in parallel
	QUOTA := envInt("QUOTA", 5)

	users := make([]*model.User, USERS)
	for i := range users {
		id := uuid.New().String()
		u := must(store.CreateUser(ctx, model.NewUser{ID: id, Username: "cap" + id[:8], Email: id[:8] + "@example.com"}))
		users[i] = must(store.TransitionUser(ctx, u.ID, u.State(), model.AccountState{Status: model.StatusActive, Tier: model.TierFree}))
	}

	type job struct{ user int }
	feed := make(chan job, N*USERS)
	for i := 0; i < N; i++ {
		for u := range users {
			feed <- job{user: u}
		}
	}
	close(feed)

	var created, limited, failed atomic.Int64
	lat := make(chan time.Duration, N*USERS)
	done := make(chan struct{}, CONC)

	t0 := time.Now()
	for w := 0; w < CONC; w++ {
		go func() {
			for j := range feed {
				st := time.Now()
				_, err := store.CreateActivity(ctx, model.NewActivity{AuthorID: users[j.user].ID, Title: "Recall"}, QUOTA)
				lat <- time.Since(st)
				switch {
				case err == nil:
					created.Add(1)
				case errors.Is(err, errorx.ErrLimitReached):
					limited.Add(1)
				default:
					failed.Add(1)
				}
			}
			done <- struct{}{}
		}()
	}
	for w := 0; w < CONC; w++ {
		<-done
	}
	close(lat)
	total := time.Since(t0)

	recs := make([]time.Duration, 0, N*USERS)
	for d := range lat {
		recs = append(recs, d)
	}

	overQuota := 0
	for _, u := range users {
		st := must(store.GetUserStats(ctx, u.ID))
		if st.ActivitiesCreated != int64(QUOTA) {
			overQuota++
			fmt.Printf("user %s: activities_created=%d (want %d)\n", u.ID, st.ActivitiesCreated, QUOTA)
		}
	}

	ops := N * USERS
	fmt.Printf("N=%d, USERS=%d, CONC=%d, QUOTA=%d\n", N, USERS, CONC, QUOTA)
	fmt.Printf("CreateActivity total: %v, per op: %v, p50: %v, p95: %v, p99: %v\n",
		total, total/time.Duration(ops), pct(recs, 0.50), pct(recs, 0.95), pct(recs, 0.99))
	fmt.Printf("created=%d limited=%d failed=%d users_off_quota=%d\n",
		created.Load(), limited.Load(), failed.Load(), overQuota)
	if overQuota > 0 || created.Load() != int64(QUOTA*USERS) {
		os.Exit(1)
	}
}
