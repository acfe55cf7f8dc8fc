package model

import "time"

// Activity 训练项目，作者独占
type Activity struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AuthorID       string    `gorm:"type:varchar(36);index:idx_activity_author;uniqueIndex:ux_activity_idem;not null" json:"author_id"`
	Title          string    `gorm:"type:varchar(200);not null" json:"title"`
	Description    string    `gorm:"type:text" json:"description"`
	Difficulty     string    `gorm:"type:varchar(16)" json:"difficulty"`
	Likes          int64     `gorm:"not null;default:0" json:"likes"`
	Completions    int64     `gorm:"not null;default:0" json:"completions"`
	IdempotencyKey *string   `gorm:"type:varchar(64);uniqueIndex:ux_activity_idem" json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Activity) TableName() string { return "activities" }

// NewActivity 创建输入
type NewActivity struct {
	AuthorID       string
	Title          string
	Description    string
	Difficulty     string
	IdempotencyKey string
}

// Completion 用户完成某个训练项目（Activity.Completions 的关系集合）
type Completion struct {
	UserID     string `gorm:"primaryKey;type:varchar(36)"`
	ActivityID string `gorm:"primaryKey;type:varchar(36);index:idx_completion_activity"`
	CreatedAt  time.Time
}

func (Completion) TableName() string { return "activity_completions" }

// Favorite 收藏的训练项目
type Favorite struct {
	UserID     string `gorm:"primaryKey;type:varchar(36)"`
	ActivityID string `gorm:"primaryKey;type:varchar(36);index:idx_favorite_activity"`
	CreatedAt  time.Time
}

func (Favorite) TableName() string { return "favorites" }
