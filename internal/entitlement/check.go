package entitlement

import (
	"github.com/d60-Lab/pawprint/internal/model"
	"github.com/d60-Lab/pawprint/pkg/errorx"
)

// Action 需要权限判定的操作
type Action string

const (
	ActionCreateActivity  Action = "create_activity"
	ActionCreatePost      Action = "create_post"
	ActionComment         Action = "comment"
	ActionLike            Action = "like"
	ActionShare           Action = "share"
	ActionSaveFavorite    Action = "save_favorite"
	ActionAccessCommunity Action = "access_community"
	ActionSeeProgress     Action = "see_progress"
)

// Actions lists every gated action.
var Actions = []Action{
	ActionCreateActivity, ActionCreatePost, ActionComment, ActionLike,
	ActionShare, ActionSaveFavorite, ActionAccessCommunity, ActionSeeProgress,
}

// Decision 判定结果；Allowed 为 false 时 Reason 非空
type Decision struct {
	Allowed     bool          `json:"allowed"`
	Reason      errorx.Reason `json:"reason,omitempty"`
	Permissions Permissions   `json:"permissions"`
}

// Err converts a denial into the domain error surfaced by the gate.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return errorx.Denied(d.Reason)
}

// Check decides whether u may perform a. It never fails: unknown actions are denied.
func Check(u model.User, a Action) Decision {
	p := PermissionsFor(u)
	d := Decision{Permissions: p}

	if !p.allows(a) {
		d.Reason = denyReason(u)
		return d
	}
	if a == ActionCreateActivity && !withinQuota(p, u.ActivitiesCreated) {
		d.Reason = errorx.ReasonLimitReached
		return d
	}
	d.Allowed = true
	return d
}

func denyReason(u model.User) errorx.Reason {
	if u.Status == model.StatusUnverified {
		return errorx.ReasonEmailNotVerified
	}
	return errorx.ReasonPremiumRequired
}

func (p Permissions) allows(a Action) bool {
	switch a {
	case ActionCreateActivity:
		return p.CanCreateActivities
	case ActionCreatePost:
		return p.CanCreatePosts
	case ActionComment:
		return p.CanComment
	case ActionLike:
		return p.CanLike
	case ActionShare:
		return p.CanShare
	case ActionSaveFavorite:
		return p.CanSaveFavorites
	case ActionAccessCommunity:
		return p.CanAccessCommunity
	case ActionSeeProgress:
		return p.CanSeeProgress
	}
	return false
}
