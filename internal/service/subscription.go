package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/d60-Lab/pawprint/internal/entitlement"
	"github.com/d60-Lab/pawprint/internal/model"
	"github.com/d60-Lab/pawprint/internal/repository"
	"github.com/d60-Lab/pawprint/pkg/errorx"
	"github.com/d60-Lab/pawprint/pkg/logger"
	"github.com/d60-Lab/pawprint/pkg/metrics"
)

// AccountEvent is the wire form of a verification or payment event.
type AccountEvent struct {
	ID     string                `json:"id,omitempty"`
	UserID string                `json:"user_id" binding:"required"`
	Type   entitlement.EventType `json:"type" binding:"required"`
	Tier   model.Tier            `json:"tier,omitempty"`
}

// SubscriptionService applies external events to the account state machine.
type SubscriptionService struct {
	users repository.UserRepository
}

func NewSubscriptionService(users repository.UserRepository) *SubscriptionService {
	return &SubscriptionService{users: users}
}

// Apply moves the user's (status, tier) according to ev. The write is a
// compare-and-swap; a concurrent change is retried once against the fresh state.
// changed is false for redelivered or no-op events.
func (s *SubscriptionService) Apply(ctx context.Context, ev AccountEvent) (u *model.User, changed bool, err error) {
	ctx, span := startSpan(ctx, "ApplyEvent",
		attribute.String("user.id", ev.UserID),
		attribute.String("event.type", string(ev.Type)),
	)
	defer func() {
		endSpan(span, err)
		metrics.RecordEvent(string(ev.Type), outcome(changed, err))
	}()

	for attempt := 0; attempt < 2; attempt++ {
		u, err = s.users.GetUser(ctx, ev.UserID)
		if err != nil {
			return nil, false, err
		}
		next, moved, err := entitlement.Transition(u.State(), entitlement.Event{Type: ev.Type, Tier: ev.Tier})
		if err != nil {
			return u, false, err
		}
		if !moved {
			return u, false, nil
		}

		updated, err := s.users.TransitionUser(ctx, u.ID, u.State(), next)
		if errors.Is(err, errorx.ErrConflict) {
			logger.Warn("account state changed concurrently, retrying",
				zap.String("user_id", ev.UserID),
				zap.String("event", string(ev.Type)),
			)
			continue
		}
		if err != nil {
			return u, false, err
		}
		logger.Info("account state changed",
			zap.String("user_id", u.ID),
			zap.String("event", string(ev.Type)),
			zap.String("from", string(u.Status)+"/"+string(u.Tier)),
			zap.String("to", string(next.Status)+"/"+string(next.Tier)),
		)
		return updated, true, nil
	}
	return u, false, errorx.Conflict("user %s state kept changing", ev.UserID)
}

// Permanent reports whether redelivering the event can never succeed.
func Permanent(err error) bool {
	return errors.Is(err, errorx.ErrInvalid) || errors.Is(err, errorx.ErrNotFound)
}

func outcome(changed bool, err error) string {
	switch {
	case err != nil && Permanent(err):
		return "rejected"
	case err != nil:
		return "failed"
	case changed:
		return "applied"
	}
	return "noop"
}
