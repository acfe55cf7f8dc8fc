package model

import (
	"fmt"
	"time"
)

// TargetType 可点赞的实体类型
type TargetType string

const (
	TargetPost     TargetType = "post"
	TargetComment  TargetType = "comment"
	TargetActivity TargetType = "activity"
)

// Valid reports whether t names a likeable entity.
func (t TargetType) Valid() bool {
	return t == TargetPost || t == TargetComment || t == TargetActivity
}

// Target 点赞目标，恰好指向一个实体
type Target struct {
	Type TargetType `json:"type"`
	ID   string     `json:"id"`
}

func (t Target) String() string { return fmt.Sprintf("%s:%s", t.Type, t.ID) }

// Like 点赞；(user_id, target_type, target_id) 唯一
type Like struct {
	ID         string     `gorm:"primaryKey;type:varchar(36)"`
	UserID     string     `gorm:"type:varchar(36);not null;uniqueIndex:ux_like_user_target"`
	TargetType TargetType `gorm:"type:varchar(16);not null;uniqueIndex:ux_like_user_target;index:idx_like_target"`
	TargetID   string     `gorm:"type:varchar(36);not null;uniqueIndex:ux_like_user_target;index:idx_like_target"`
	CreatedAt  time.Time
}

func (Like) TableName() string { return "likes" }
