package model

import "time"

// Post はコミュニティに投稿された記事を表す。
type Post struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Image      string    `json:"image"`
	URL        string    `json:"url,omitempty"`
	URLData    string    `json:"urlData"`
	Categories []string  `json:"category"`
	PostedTo   string    `json:"postedTo"`
	PostedBy   string    `json:"postedBy"`
	Votes      int       `json:"votes"`
	HideVotes  bool      `json:"hideVotes"`
	Drafted    bool      `json:"drafted"`
	Comments   []string  `json:"comments"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// VisibleTo は下書き状態を考慮してuserIDが投稿を閲覧できるかを返す。
func (p *Post) VisibleTo(userID string) bool {
	return !p.Drafted || p.PostedBy == userID
}

// PostSummary は一覧表示用に投稿者と投稿先を展開した投稿。
type PostSummary struct {
	Post
	Author    *UserProfile `json:"author,omitempty"`
	Community *Community   `json:"community,omitempty"`
}

// PostDetail は投稿者・投稿先・コメントを展開した投稿詳細。
type PostDetail struct {
	Post
	Author      *UserProfile `json:"author,omitempty"`
	Community   *Community   `json:"community,omitempty"`
	CommentList []*Comment   `json:"commentList"`
}
