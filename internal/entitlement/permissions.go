// Package entitlement maps a user's verification and subscription state to the
// operations they may perform. Everything here is pure: no I/O, no clocks.
package entitlement

import "github.com/d60-Lab/pawprint/internal/model"

// FreeActivityLimit is the activity cap for active users on the free tier.
const FreeActivityLimit = 5

// PendingPaymentActivityLimit lets a user who started checkout try one activity.
const PendingPaymentActivityLimit = 1

// Permissions 能力集合。MaxActivities 为 0 时以 HasUnlimitedActivities 为准。
type Permissions struct {
	CanCreateActivities    bool `json:"can_create_activities"`
	CanCreatePosts         bool `json:"can_create_posts"`
	CanComment             bool `json:"can_comment"`
	CanLike                bool `json:"can_like"`
	CanShare               bool `json:"can_share"`
	CanSaveFavorites       bool `json:"can_save_favorites"`
	CanAccessCommunity     bool `json:"can_access_community"`
	CanSeeProgress         bool `json:"can_see_progress"`
	MaxActivities          int  `json:"max_activities"`
	HasUnlimitedActivities bool `json:"has_unlimited_activities"`
}

const (
	sUnverified = iota
	sVerified
	sPendingPayment
	sActive
	sPremium
	numStatuses
)

const (
	tFree = iota
	tPremium
	tPro
	numTiers
)

// The table below must cover every model.Status and model.Tier; these fail to
// compile when either list grows or shrinks without the table following.
var (
	_ [numStatuses - len(model.Statuses)]struct{}
	_ [len(model.Statuses) - numStatuses]struct{}
	_ [numTiers - len(model.Tiers)]struct{}
	_ [len(model.Tiers) - numTiers]struct{}
)

var (
	none = Permissions{}

	browseOnly = Permissions{CanAccessCommunity: true}

	trialActivity = Permissions{
		CanCreateActivities: true,
		MaxActivities:       PendingPaymentActivityLimit,
	}

	free = Permissions{
		CanCreateActivities: true,
		CanCreatePosts:      true,
		CanComment:          true,
		CanLike:             true,
		CanAccessCommunity:  true,
		CanSeeProgress:      true,
		MaxActivities:       FreeActivityLimit,
	}

	full = Permissions{
		CanCreateActivities:    true,
		CanCreatePosts:         true,
		CanComment:             true,
		CanLike:                true,
		CanShare:               true,
		CanSaveFavorites:       true,
		CanAccessCommunity:     true,
		CanSeeProgress:         true,
		HasUnlimitedActivities: true,
	}
)

// Status is the primary axis; tier only refines active and premium.
// premium+free cannot be produced by Transition but is treated as active+free.
var table = [numStatuses][numTiers]Permissions{
	sUnverified:     {tFree: none, tPremium: none, tPro: none},
	sVerified:       {tFree: browseOnly, tPremium: browseOnly, tPro: browseOnly},
	sPendingPayment: {tFree: trialActivity, tPremium: trialActivity, tPro: trialActivity},
	sActive:         {tFree: free, tPremium: full, tPro: full},
	sPremium:        {tFree: free, tPremium: full, tPro: full},
}

func statusIndex(s model.Status) (int, bool) {
	switch s {
	case model.StatusUnverified:
		return sUnverified, true
	case model.StatusVerified:
		return sVerified, true
	case model.StatusPendingPayment:
		return sPendingPayment, true
	case model.StatusActive:
		return sActive, true
	case model.StatusPremium:
		return sPremium, true
	}
	return 0, false
}

func tierIndex(t model.Tier) (int, bool) {
	switch t {
	case model.TierFree:
		return tFree, true
	case model.TierPremium:
		return tPremium, true
	case model.TierPro:
		return tPro, true
	}
	return 0, false
}

// PermissionsFor returns the capability record for u. Unknown status or tier
// values yield the deny-all record.
func PermissionsFor(u model.User) Permissions {
	si, ok := statusIndex(u.Status)
	if !ok {
		return none
	}
	ti, ok := tierIndex(u.Tier)
	if !ok {
		return none
	}
	return table[si][ti]
}

// CanCreateActivity composes the capability with the user's live counter.
// The answer is advisory: the store re-checks the cap atomically with the insert.
func CanCreateActivity(u model.User) bool {
	p := PermissionsFor(u)
	return p.CanCreateActivities && withinQuota(p, u.ActivitiesCreated)
}

// ActivityQuota is the cap handed to the store's conditional increment; 0 means uncapped.
func ActivityQuota(p Permissions) int {
	if p.HasUnlimitedActivities {
		return 0
	}
	return p.MaxActivities
}

func withinQuota(p Permissions, created int64) bool {
	return p.HasUnlimitedActivities || created < int64(p.MaxActivities)
}
