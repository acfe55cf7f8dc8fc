// Package memory is a volatile repository.Store. It is safe for concurrent use;
// one lock guards every map, so each unit validates first and mutates after.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/pawprint/internal/model"
	"github.com/d60-Lab/pawprint/internal/repository"
	"github.com/d60-Lab/pawprint/pkg/errorx"
)

type pair struct{ a, b string }

type likeKey struct {
	user   string
	target model.Target
}

type idemKey struct {
	kind, author, key string
}

// Store keeps every entity in maps keyed by id.
type Store struct {
	mu sync.RWMutex

	users       map[string]*model.User
	activities  map[string]*model.Activity
	posts       map[string]*model.Post
	comments    map[string]*model.Comment
	likes       map[likeKey]*model.Like
	follows     map[pair]*model.Follow
	completions map[pair]time.Time
	favorites   map[pair]time.Time
	idem        map[idemKey]string

	now func() time.Time
}

var _ repository.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:       make(map[string]*model.User),
		activities:  make(map[string]*model.Activity),
		posts:       make(map[string]*model.Post),
		comments:    make(map[string]*model.Comment),
		likes:       make(map[likeKey]*model.Like),
		follows:     make(map[pair]*model.Follow),
		completions: make(map[pair]time.Time),
		favorites:   make(map[pair]time.Time),
		idem:        make(map[idemKey]string),
		now:         time.Now,
	}
}

func (s *Store) Close() error { return nil }

// Users ----------------------------------------------------------------------

func (s *Store) CreateUser(_ context.Context, in model.NewUser) (*model.User, error) {
	in, err := repository.NormalizeNewUser(in)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if in.ID == "" {
		in.ID = uuid.New().String()
	} else if _, exists := s.users[in.ID]; exists {
		return nil, errorx.Conflict("user %s already exists", in.ID)
	}
	for _, u := range s.users {
		if u.Username == in.Username {
			return nil, errorx.Conflict("username %q is taken", in.Username)
		}
		if u.Email == in.Email {
			return nil, errorx.Conflict("email %q is already registered", in.Email)
		}
	}

	now := s.now()
	u := &model.User{
		ID:        in.ID,
		Username:  in.Username,
		Email:     in.Email,
		Role:      in.Role,
		Status:    model.StatusUnverified,
		Tier:      model.TierFree,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.users[u.ID] = u
	return cloneUser(u), nil
}

func (s *Store) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, errorx.NotFound("user %s not found", id)
	}
	return cloneUser(u), nil
}

func (s *Store) GetUsers(_ context.Context, ids []string) (map[string]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*model.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = cloneUser(u)
		}
	}
	return out, nil
}

func (s *Store) GetUserStats(_ context.Context, id string) (*model.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, errorx.NotFound("user %s not found", id)
	}
	st := u.Stats()
	return &st, nil
}

func (s *Store) TransitionUser(_ context.Context, id string, expected, next model.AccountState) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, errorx.NotFound("user %s not found", id)
	}
	if u.State() != expected {
		return nil, errorx.Conflict("user %s state changed concurrently", id)
	}
	u.Status, u.Tier = next.Status, next.Tier
	u.UpdatedAt = s.now()
	return cloneUser(u), nil
}

func (s *Store) SuggestedUsers(_ context.Context, userID string, limit int) ([]*model.User, error) {
	_, limit = repository.Page(0, limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.User, 0, limit)
	for _, u := range s.users {
		if u.ID == userID || u.Status == model.StatusUnverified {
			continue
		}
		if _, followed := s.follows[pair{userID, u.ID}]; followed {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Followers != out[j].Followers {
			return out[i].Followers > out[j].Followers
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	for i, u := range out {
		out[i] = cloneUser(u)
	}
	return out, nil
}

// helpers --------------------------------------------------------------------

func (s *Store) userLocked(id string) (*model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, errorx.NotFound("user %s not found", id)
	}
	return u, nil
}

func (s *Store) replayLocked(kind, author, key string) (string, bool) {
	if key == "" {
		return "", false
	}
	id, ok := s.idem[idemKey{kind, author, key}]
	return id, ok
}

func (s *Store) rememberLocked(kind, author, key, id string) {
	if key != "" {
		s.idem[idemKey{kind, author, key}] = id
	}
}

func (s *Store) forgetLocked(kind, author string, key *string) {
	if key != nil {
		delete(s.idem, idemKey{kind, author, *key})
	}
}

func decr(v *int64, n int64) {
	if *v > n {
		*v -= n
	} else {
		*v = 0
	}
}

func (s *Store) decrLikesReceivedLocked(authorID string, n int64) {
	if n == 0 {
		return
	}
	if u, ok := s.users[authorID]; ok {
		decr(&u.LikesReceived, n)
	}
}

func paginate[T any](items []T, offset, limit int) []T {
	offset, limit = repository.Page(offset, limit)
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func cloneUser(u *model.User) *model.User {
	c := *u
	return &c
}

func cloneActivity(a *model.Activity) *model.Activity {
	c := *a
	c.IdempotencyKey = cloneStr(a.IdempotencyKey)
	return &c
}

func clonePost(p *model.Post) *model.Post {
	c := *p
	c.ActivityID = cloneStr(p.ActivityID)
	c.IdempotencyKey = cloneStr(p.IdempotencyKey)
	if p.Tags != nil {
		c.Tags = append(model.StringList(nil), p.Tags...)
	}
	return &c
}

func cloneComment(cm *model.Comment) *model.Comment {
	c := *cm
	c.ParentID = cloneStr(cm.ParentID)
	c.IdempotencyKey = cloneStr(cm.IdempotencyKey)
	return &c
}

func cloneStr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
