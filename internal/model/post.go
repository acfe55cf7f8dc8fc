package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Post 动态；Likes / Comments 为派生计数
type Post struct {
	ID             string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AuthorID       string     `gorm:"type:varchar(36);index:idx_post_author;uniqueIndex:ux_post_idem;not null" json:"author_id"`
	ActivityID     *string    `gorm:"type:varchar(36);index:idx_post_activity" json:"activity_id,omitempty"`
	Content        string     `gorm:"type:text;not null" json:"content"`
	Tags           StringList `gorm:"type:text" json:"tags"`
	Likes          int64      `gorm:"not null;default:0" json:"likes"`
	Comments       int64      `gorm:"not null;default:0" json:"comments"`
	IdempotencyKey *string    `gorm:"type:varchar(64);uniqueIndex:ux_post_idem" json:"-"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (Post) TableName() string { return "posts" }

// PostTag 标签行，供热门标签聚合
type PostTag struct {
	PostID    string    `gorm:"primaryKey;type:varchar(36)"`
	Tag       string    `gorm:"primaryKey;type:varchar(64);index:idx_post_tag_tag"`
	CreatedAt time.Time `gorm:"index:idx_post_tag_created"`
}

func (PostTag) TableName() string { return "post_tags" }

// NewPost 创建输入
type NewPost struct {
	AuthorID       string
	ActivityID     string
	Content        string
	Tags           []string
	IdempotencyKey string
}

// PostFilter 列表过滤
type PostFilter struct {
	AuthorID string
	Tag      string
	Offset   int
	Limit    int
}

// TagCount 热门标签统计
type TagCount struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}

// StringList is stored as a JSON array column.
type StringList []string

func (l *StringList) Scan(value any) error {
	switch t := value.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		return json.Unmarshal([]byte(t), l)
	case []byte:
		return json.Unmarshal(t, l)
	}
	return fmt.Errorf("cannot scan %T into StringList", value)
}

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	return string(b), err
}
