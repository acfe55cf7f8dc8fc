package repository

import (
	"strings"
	"unicode/utf8"

	"github.com/d60-Lab/pawprint/internal/model"
	"github.com/d60-Lab/pawprint/pkg/errorx"
)

// 与表结构列宽一致，超长输入在任何后端都是 Invalid
const (
	MaxUserIDLen         = 36
	MaxUsernameLen       = 64
	MaxEmailLen          = 255
	MaxTitleLen          = 200
	MaxDifficultyLen     = 16
	MaxIdempotencyKeyLen = 64
)

func tooLong(s string, n int) bool { return utf8.RuneCountInString(s) > n }

// NormalizeNewUser trims input and fills the default role.
func NormalizeNewUser(in model.NewUser) (model.NewUser, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Username == "" {
		return in, errorx.Invalid("username is required")
	}
	if in.Email == "" {
		return in, errorx.Invalid("email is required")
	}
	switch {
	case tooLong(in.ID, MaxUserIDLen):
		return in, errorx.Invalid("user id exceeds %d characters", MaxUserIDLen)
	case tooLong(in.Username, MaxUsernameLen):
		return in, errorx.Invalid("username exceeds %d characters", MaxUsernameLen)
	case tooLong(in.Email, MaxEmailLen):
		return in, errorx.Invalid("email exceeds %d characters", MaxEmailLen)
	}
	switch in.Role {
	case "":
		in.Role = model.RoleUser
	case model.RoleUser, model.RoleModerator:
	default:
		return in, errorx.Invalid("unknown role %q", in.Role)
	}
	return in, nil
}

func NormalizeNewActivity(in model.NewActivity) (model.NewActivity, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.AuthorID == "" {
		return in, errorx.Invalid("author is required")
	}
	if in.Title == "" {
		return in, errorx.Invalid("title is required")
	}
	if tooLong(in.Title, MaxTitleLen) {
		return in, errorx.Invalid("title exceeds %d characters", MaxTitleLen)
	}
	in.Difficulty = strings.TrimSpace(in.Difficulty)
	if tooLong(in.Difficulty, MaxDifficultyLen) {
		return in, errorx.Invalid("difficulty exceeds %d characters", MaxDifficultyLen)
	}
	return in, checkKey(in.IdempotencyKey)
}

func NormalizeNewPost(in model.NewPost) (model.NewPost, error) {
	in.Content = strings.TrimSpace(in.Content)
	if in.AuthorID == "" {
		return in, errorx.Invalid("author is required")
	}
	if in.Content == "" {
		return in, errorx.Invalid("content is required")
	}
	for _, t := range in.Tags {
		if tooLong(model.TrimTag(t), model.MaxTagLen) {
			return in, errorx.Invalid("tag exceeds %d characters", model.MaxTagLen)
		}
	}
	in.Tags = model.NormalizeTags(in.Tags)
	return in, checkKey(in.IdempotencyKey)
}

func NormalizeNewComment(in model.NewComment) (model.NewComment, error) {
	in.Content = strings.TrimSpace(in.Content)
	if in.AuthorID == "" || in.PostID == "" {
		return in, errorx.Invalid("author and post are required")
	}
	if in.Content == "" {
		return in, errorx.Invalid("content is required")
	}
	return in, checkKey(in.IdempotencyKey)
}

func ValidateTarget(t model.Target) error {
	if !t.Type.Valid() {
		return errorx.Invalid("unknown like target type %q", t.Type)
	}
	if t.ID == "" {
		return errorx.Invalid("like target id is required")
	}
	return nil
}

func checkKey(k string) error {
	if len(k) > MaxIdempotencyKeyLen {
		return errorx.Invalid("idempotency key exceeds %d bytes", MaxIdempotencyKeyLen)
	}
	return nil
}

// KeyPtr maps the empty idempotency key to NULL.
func KeyPtr(k string) *string {
	if k == "" {
		return nil
	}
	return &k
}
