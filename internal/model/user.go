// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashとTokenはAPIレスポンスに含めない。
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Token        string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserProfile は他ユーザーに公開するユーザー情報。
type UserProfile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Profile はユーザーの公開プロフィールを返す。
func (u *User) Profile() *UserProfile {
	if u == nil {
		return nil
	}
	return &UserProfile{ID: u.ID, Username: u.Username}
}
