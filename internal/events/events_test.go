package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/pawprint/internal/model"
	"github.com/d60-Lab/pawprint/internal/repository/memory"
	"github.com/d60-Lab/pawprint/internal/service"
	"github.com/d60-Lab/pawprint/pkg/errorx"
)

type fakeDelivery struct {
	acked, nacked, requeued bool
}

func (f *fakeDelivery) Ack(bool) error { f.acked = true; return nil }
func (f *fakeDelivery) Nack(_, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}

func TestSettle(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		ack     bool
		requeue bool
	}{
		{"ok", nil, true, false},
		{"malformed", ErrMalformed, true, false},
		{"invalid transition", errorx.Invalid("bad"), true, false},
		{"unknown user", errorx.NotFound("user u1 not found"), true, false},
		{"conflict", errorx.Conflict("busy"), false, true},
		{"db down", errors.New("connection refused"), false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := &fakeDelivery{}
			settle(d, "m1", tc.err)
			assert.Equal(t, tc.ack, d.acked)
			assert.Equal(t, tc.requeue, d.requeued)
			assert.Equal(t, !tc.ack, d.nacked)
		})
	}
}

func TestDispatcherAppliesEvents(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	u, err := store.CreateUser(ctx, model.NewUser{Username: "rex", Email: "rex@example.com"})
	require.NoError(t, err)
	d := NewDispatcher(service.NewSubscriptionService(store))

	require.NoError(t, d.Handle(ctx, []byte(`{"id":"evt_1","user_id":"`+u.ID+`","type":"email.verified"}`)))
	require.NoError(t, d.Handle(ctx, []byte(`{"user_id":"`+u.ID+`","type":"subscription.activated","tier":"premium"}`)))

	got, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AccountState{Status: model.StatusPremium, Tier: model.TierPremium}, got.State())
}

func TestDispatcherRejectsBadMessages(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	u, err := store.CreateUser(ctx, model.NewUser{Username: "rex", Email: "rex@example.com"})
	require.NoError(t, err)
	d := NewDispatcher(service.NewSubscriptionService(store))

	err = d.Handle(ctx, []byte(`{not json`))
	assert.True(t, errors.Is(err, ErrMalformed))
	assert.True(t, IsPermanent(err))

	err = d.Handle(ctx, []byte(`{"type":"email.verified"}`))
	assert.True(t, errors.Is(err, ErrMalformed))

	err = d.Handle(ctx, []byte(`{"user_id":"`+u.ID+`","type":"subscription.activated","tier":"gold"}`))
	assert.True(t, errors.Is(err, errorx.ErrInvalid))
	assert.True(t, IsPermanent(err))

	err = d.Handle(ctx, []byte(`{"user_id":"ghost","type":"email.verified"}`))
	assert.True(t, IsPermanent(err))
}
