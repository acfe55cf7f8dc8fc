package model

import "time"

// Status 账号状态（主轴）：验证 -> 支付 -> 激活
type Status string

const (
	StatusUnverified     Status = "unverified"
	StatusVerified       Status = "verified"
	StatusPendingPayment Status = "pending_payment"
	StatusActive         Status = "active"
	StatusPremium        Status = "premium"
)

// Statuses lists every status in lifecycle order.
var Statuses = [...]Status{StatusUnverified, StatusVerified, StatusPendingPayment, StatusActive, StatusPremium}

// Tier 订阅档位，细化 active/premium 状态
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
	TierPro     Tier = "pro"
)

var Tiers = [...]Tier{TierFree, TierPremium, TierPro}

// Paid reports whether the tier is a paid subscription.
func (t Tier) Paid() bool { return t == TierPremium || t == TierPro }

// Role 用户角色
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
)

// AccountState 是外部事件驱动的 (status, tier) 组合
type AccountState struct {
	Status Status
	Tier   Tier
}

// User 用户；计数器只由对应关系的变更维护
type User struct {
	ID       string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username string `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Email    string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Role     Role   `gorm:"type:varchar(16);not null;default:user" json:"role"`
	Status   Status `gorm:"type:varchar(32);index;not null" json:"status"`
	Tier     Tier   `gorm:"type:varchar(16);not null" json:"tier"`

	ActivitiesCreated int64 `gorm:"not null;default:0" json:"activities_created"`
	PostsCreated      int64 `gorm:"not null;default:0" json:"posts_created"`
	LikesReceived     int64 `gorm:"not null;default:0" json:"likes_received"`
	Followers         int64 `gorm:"not null;default:0;index" json:"followers"`
	Following         int64 `gorm:"not null;default:0" json:"following"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// State returns the (status, tier) pair.
func (u User) State() AccountState { return AccountState{Status: u.Status, Tier: u.Tier} }

// NewUser 注册输入（身份提供方创建用户）
type NewUser struct {
	ID       string
	Username string
	Email    string
	Role     Role
}

// UserStats 用户计数快照
type UserStats struct {
	UserID            string `json:"user_id"`
	ActivitiesCreated int64  `json:"activities_created"`
	PostsCreated      int64  `json:"posts_created"`
	LikesReceived     int64  `json:"likes_received"`
	Followers         int64  `json:"followers"`
	Following         int64  `json:"following"`
}

// Stats snapshots the user's counters.
func (u User) Stats() UserStats {
	return UserStats{
		UserID:            u.ID,
		ActivitiesCreated: u.ActivitiesCreated,
		PostsCreated:      u.PostsCreated,
		LikesReceived:     u.LikesReceived,
		Followers:         u.Followers,
		Following:         u.Following,
	}
}
