package model

import (
	"slices"
	"time"
)

// Privacy はコミュニティの公開範囲を表す。
type Privacy string

const (
	// PrivacyPublic は誰でも投稿を閲覧できる公開コミュニティ。
	PrivacyPublic Privacy = "public"
	// PrivacyPrivate はメンバーのみが投稿を閲覧できる非公開コミュニティ。
	PrivacyPrivate Privacy = "private"
)

// DefaultJoinRequestMessage は参加申請メッセージの既定値。
const DefaultJoinRequestMessage = "This user has requested to join this community."

// Community はメンバーシップと公開範囲を持つ投稿の集合を表す。
type Community struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Username          string            `json:"username"`
	Description       string            `json:"description"`
	Image             string            `json:"image"`
	Cover             string            `json:"cover"`
	Privacy           Privacy           `json:"privacy"`
	Members           []string          `json:"members"`
	Moderators        []string          `json:"moderators"`
	InvitedModerators []string          `json:"invitedModerators"`
	PendingMembers    []PendingMember   `json:"pendingMembers"`
	Banned            []Ban             `json:"banned"`
	Flairs            map[string]string `json:"flairs"`
	Rules             []string          `json:"rules"`
	Categories        []string          `json:"category"`
	Theme             Theme             `json:"theme"`
	PostsCount        int               `json:"postsCount"`
	MembersCount      int               `json:"membersCount"`
	CreatedBy         string            `json:"createdBy"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// PendingMember は非公開コミュニティへの参加申請を表す。
type PendingMember struct {
	User    string `json:"user"`
	Message string `json:"message"`
}

// Ban はコミュニティからの追放情報を表す。
// Permanentがfalseの場合、Untilを過ぎると失効する。
type Ban struct {
	User      string     `json:"user"`
	Note      string     `json:"note,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Message   string     `json:"message,omitempty"`
	Until     *time.Time `json:"until,omitempty"`
	Permanent bool       `json:"permanent"`
}

// Theme はコミュニティの配色設定。
type Theme struct {
	Main      string `json:"main,omitempty"`
	Highlight string `json:"highlight,omitempty"`
}

// IsMember はuserIDがメンバーに含まれるかを返す。
func (c *Community) IsMember(userID string) bool {
	return slices.Contains(c.Members, userID)
}

// IsModerator はuserIDがモデレーターに含まれるかを返す。
func (c *Community) IsModerator(userID string) bool {
	return slices.Contains(c.Moderators, userID)
}

// IsPending はuserIDの参加申請が保留中かを返す。
func (c *Community) IsPending(userID string) bool {
	return slices.ContainsFunc(c.PendingMembers, func(p PendingMember) bool {
		return p.User == userID
	})
}

// VisibleTo はuserIDがこのコミュニティの投稿を閲覧できるかを返す。
// 非公開コミュニティはメンバーのみ閲覧できる。
func (c *Community) VisibleTo(userID string) bool {
	return c.Privacy != PrivacyPrivate || c.IsMember(userID)
}

// ActiveBan はuserIDに対してnow時点で有効な追放情報を返す。
func (c *Community) ActiveBan(userID string, now time.Time) *Ban {
	for i := range c.Banned {
		b := &c.Banned[i]
		if b.User != userID {
			continue
		}
		if b.Permanent || b.Until == nil || b.Until.After(now) {
			return b
		}
	}
	return nil
}
