package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/pawprint/internal/entitlement"
	"github.com/d60-Lab/pawprint/internal/model"
	"github.com/d60-Lab/pawprint/internal/repository"
	"github.com/d60-Lab/pawprint/internal/repository/memory"
	"github.com/d60-Lab/pawprint/pkg/errorx"
)

// racingUsers makes the first n compare-and-swaps lose against a concurrent writer.
type racingUsers struct {
	repository.UserRepository
	losses int
	calls  int
}

func (r *racingUsers) TransitionUser(ctx context.Context, id string, expected, next model.AccountState) (*model.User, error) {
	r.calls++
	if r.calls <= r.losses {
		return nil, errorx.Conflict("user %s changed", id)
	}
	return r.UserRepository.TransitionUser(ctx, id, expected, next)
}

func newUser(t *testing.T, store *memory.Store) *model.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), model.NewUser{Username: "rex", Email: "rex@example.com"})
	require.NoError(t, err)
	return u
}

func TestApplyWalksTheLifecycle(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewSubscriptionService(store)
	u := newUser(t, store)

	steps := []struct {
		ev   AccountEvent
		want model.AccountState
	}{
		{AccountEvent{Type: entitlement.EventEmailVerified}, model.AccountState{Status: model.StatusVerified, Tier: model.TierFree}},
		{AccountEvent{Type: entitlement.EventCheckoutStarted}, model.AccountState{Status: model.StatusPendingPayment, Tier: model.TierFree}},
		{AccountEvent{Type: entitlement.EventSubscriptionActivated, Tier: model.TierPro}, model.AccountState{Status: model.StatusPremium, Tier: model.TierPro}},
		{AccountEvent{Type: entitlement.EventSubscriptionCanceled}, model.AccountState{Status: model.StatusActive, Tier: model.TierFree}},
	}
	for _, s := range steps {
		s.ev.UserID = u.ID
		got, changed, err := svc.Apply(ctx, s.ev)
		require.NoError(t, err, s.ev.Type)
		assert.True(t, changed, s.ev.Type)
		assert.Equal(t, s.want, got.State(), s.ev.Type)
	}

	stored, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AccountState{Status: model.StatusActive, Tier: model.TierFree}, stored.State())
}

func TestApplyRedeliveryIsNoop(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewSubscriptionService(store)
	u := newUser(t, store)

	ev := AccountEvent{ID: "evt_1", UserID: u.ID, Type: entitlement.EventEmailVerified}
	_, changed, err := svc.Apply(ctx, ev)
	require.NoError(t, err)
	assert.True(t, changed)

	got, changed, err := svc.Apply(ctx, ev)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, model.StatusVerified, got.Status)
}

func TestApplyRejectsActivationBeforeVerification(t *testing.T) {
	store := memory.New()
	svc := NewSubscriptionService(store)
	u := newUser(t, store)

	_, _, err := svc.Apply(context.Background(), AccountEvent{
		UserID: u.ID, Type: entitlement.EventSubscriptionActivated, Tier: model.TierPremium,
	})
	assert.True(t, errors.Is(err, errorx.ErrInvalid))
	assert.True(t, Permanent(err))

	stored, err := store.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnverified, stored.Status)
}

func TestApplyUnknownUserOrEvent(t *testing.T) {
	store := memory.New()
	svc := NewSubscriptionService(store)
	u := newUser(t, store)

	_, _, err := svc.Apply(context.Background(), AccountEvent{UserID: "missing", Type: entitlement.EventEmailVerified})
	assert.True(t, errors.Is(err, errorx.ErrNotFound))
	assert.True(t, Permanent(err))

	_, _, err = svc.Apply(context.Background(), AccountEvent{UserID: u.ID, Type: "refund.issued"})
	assert.True(t, errors.Is(err, errorx.ErrInvalid))
}

func TestApplyRetriesLostCompareAndSwap(t *testing.T) {
	store := memory.New()
	u := newUser(t, store)
	users := &racingUsers{UserRepository: store, losses: 1}
	svc := NewSubscriptionService(users)

	got, changed, err := svc.Apply(context.Background(), AccountEvent{UserID: u.ID, Type: entitlement.EventEmailVerified})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.StatusVerified, got.Status)
	assert.Equal(t, 2, users.calls)
}

func TestApplyGivesUpAfterRepeatedConflicts(t *testing.T) {
	store := memory.New()
	u := newUser(t, store)
	users := &racingUsers{UserRepository: store, losses: 5}
	svc := NewSubscriptionService(users)

	_, changed, err := svc.Apply(context.Background(), AccountEvent{UserID: u.ID, Type: entitlement.EventEmailVerified})
	assert.True(t, errors.Is(err, errorx.ErrConflict))
	assert.False(t, changed)
	assert.False(t, Permanent(err))
	assert.Equal(t, 2, users.calls)
}
