package model

import "time"

// Follow 关注关系：FollowerID 关注 FolloweeID，不允许自关注
type Follow struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	FollowerID string    `gorm:"type:varchar(36);index:idx_follow_follower;index:idx_follow_pair,unique;not null" json:"follower_id"`
	FolloweeID string    `gorm:"type:varchar(36);index:idx_follow_followee;index:idx_follow_pair,unique;not null" json:"followee_id"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (Follow) TableName() string { return "follows" }

// Self reports whether the edge points back at its own follower.
func (f Follow) Self() bool { return f.FollowerID == f.FolloweeID }
