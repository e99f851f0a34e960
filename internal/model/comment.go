package model

import "time"

// ParentKind はコメントの親の種類を表す。
type ParentKind string

const (
	// ParentNone は親を持たないコメント。
	ParentNone ParentKind = ""
	// ParentPost は投稿への直接コメント。
	ParentPost ParentKind = "post"
	// ParentComment はコメントへの返信。
	ParentComment ParentKind = "comment"
)

// ParentRef はコメントの親参照。Post(id) | Comment(id) | None のいずれか。
type ParentRef struct {
	Kind ParentKind
	ID   string
}

// PostParent は投稿を親とするParentRefを返す。
func PostParent(postID string) ParentRef {
	return ParentRef{Kind: ParentPost, ID: postID}
}

// CommentParent はコメントを親とするParentRefを返す。
func CommentParent(commentID string) ParentRef {
	return ParentRef{Kind: ParentComment, ID: commentID}
}

// NoParent は親を持たないParentRefを返す。
func NoParent() ParentRef {
	return ParentRef{}
}

// IsNone は親が指定されていないかを返す。
func (p ParentRef) IsNone() bool {
	return p.Kind == ParentNone
}

// Comment は投稿またはコメントに付くコメントを表す。
// PostIDはスレッドの起点となる投稿ID、ParentIDは返信先コメントID。
type Comment struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	PostedBy  string    `json:"postedBy"`
	PostID    string    `json:"postId,omitempty"`
	ParentID  string    `json:"parentId,omitempty"`
	Votes     int       `json:"votes"`
	HideVotes bool      `json:"hideVotes"`
	Replies   []string  `json:"replies"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Parent はコメントの親参照を返す。返信の場合はコメントが優先される。
func (c *Comment) Parent() ParentRef {
	switch {
	case c.ParentID != "":
		return CommentParent(c.ParentID)
	case c.PostID != "":
		return PostParent(c.PostID)
	default:
		return NoParent()
	}
}
