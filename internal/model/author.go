package model

// AuthorState 作者记录是否仍然存在
type AuthorState string

const (
	AuthorPresent AuthorState = "present"
	AuthorDeleted AuthorState = "deleted"
)

// AuthorSummary 内容作者的展示信息。作者记录缺失时使用 DeletedAuthor，
// 而不是伪造一个用户记录。
type AuthorSummary struct {
	ID       string      `json:"id"`
	Username string      `json:"username,omitempty"`
	State    AuthorState `json:"state"`
}

// Deleted reports whether the author record is missing.
func (a AuthorSummary) Deleted() bool { return a.State == AuthorDeleted }

// DeletedAuthor is the sentinel for content whose author no longer exists.
func DeletedAuthor(id string) AuthorSummary {
	return AuthorSummary{ID: id, State: AuthorDeleted}
}

// SummarizeAuthor resolves id against users, falling back to DeletedAuthor.
func SummarizeAuthor(id string, users map[string]*User) AuthorSummary {
	u, ok := users[id]
	if !ok || u == nil {
		return DeletedAuthor(id)
	}
	return AuthorSummary{ID: u.ID, Username: u.Username, State: AuthorPresent}
}

// PostView 带作者信息的动态
type PostView struct {
	Post
	Author AuthorSummary `json:"author"`
}

// CommentView 带作者信息的评论
type CommentView struct {
	Comment
	Author AuthorSummary `json:"author"`
}
