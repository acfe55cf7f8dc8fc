package entitlement

import (
	"github.com/d60-Lab/pawprint/internal/model"
	"github.com/d60-Lab/pawprint/pkg/errorx"
)

// EventType 外部身份/支付事件
type EventType string

const (
	EventEmailVerified         EventType = "email.verified"
	EventCheckoutStarted       EventType = "checkout.started"
	EventSubscriptionActivated EventType = "subscription.activated"
	EventSubscriptionCanceled  EventType = "subscription.canceled"
)

// Event is what the identity provider or payment processor reports.
type Event struct {
	Type EventType
	Tier model.Tier // only for subscription.activated
}

// Transition computes the account state after ev. changed is false when the
// event does not move the state, which makes redelivery harmless.
func Transition(cur model.AccountState, ev Event) (next model.AccountState, changed bool, err error) {
	next = cur

	switch ev.Type {
	case EventEmailVerified:
		if cur.Status == model.StatusUnverified {
			next.Status = model.StatusVerified
		}

	case EventCheckoutStarted:
		if cur.Status == model.StatusVerified {
			next.Status = model.StatusPendingPayment
		}

	case EventSubscriptionActivated:
		if _, ok := tierIndex(ev.Tier); !ok {
			return cur, false, errorx.Invalid("unknown subscription tier %q", ev.Tier)
		}
		if cur.Status == model.StatusUnverified {
			return cur, false, errorx.Invalid("subscription activated before email verification")
		}
		if ev.Tier.Paid() {
			next = model.AccountState{Status: model.StatusPremium, Tier: ev.Tier}
		} else {
			next = model.AccountState{Status: model.StatusActive, Tier: model.TierFree}
		}

	case EventSubscriptionCanceled:
		if (cur.Status == model.StatusActive || cur.Status == model.StatusPremium) && cur.Tier.Paid() {
			next = model.AccountState{Status: model.StatusActive, Tier: model.TierFree}
		}

	default:
		return cur, false, errorx.Invalid("unknown event type %q", ev.Type)
	}

	return next, next != cur, nil
}
