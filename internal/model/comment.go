package model

import "time"

// Comment 评论；ParentID 非空时为回复，且必须属于同一 Post
type Comment struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PostID         string    `gorm:"type:varchar(36);index:idx_comment_post;not null" json:"post_id"`
	ParentID       *string   `gorm:"type:varchar(36);index:idx_comment_parent" json:"parent_id,omitempty"`
	AuthorID       string    `gorm:"type:varchar(36);index:idx_comment_author;uniqueIndex:ux_comment_idem;not null" json:"author_id"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	Likes          int64     `gorm:"not null;default:0" json:"likes"`
	IdempotencyKey *string   `gorm:"type:varchar(64);uniqueIndex:ux_comment_idem" json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Comment) TableName() string { return "comments" }

// NewComment 创建输入
type NewComment struct {
	AuthorID       string
	PostID         string
	ParentID       string
	Content        string
	IdempotencyKey string
}
