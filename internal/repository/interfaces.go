// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/agora/internal/model"
)

// ErrDuplicate は一意制約違反を表す。
// アプリケーション側の事前チェックをすり抜けた同時作成はこのエラーになる。
var ErrDuplicate = errors.New("duplicate key")

// ErrNotFound は更新・削除対象が存在しないことを表す。
var ErrNotFound = errors.New("record not found")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。大文字小文字は区別しない。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。大文字小文字は区別しない。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindProfiles は指定IDのユーザーの公開プロフィールをIDをキーとして返す。
	FindProfiles(ctx context.Context, ids []string) (map[string]*model.UserProfile, error)

	// Create はユーザーを作成する。email/usernameが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateToken はユーザーのセッショントークンを更新する。空文字はログアウトを表す。
	UpdateToken(ctx context.Context, id, token string) error
}

// CommunityRepository はコミュニティデータの永続化インターフェース。
type CommunityRepository interface {
	// FindByID は指定IDのコミュニティを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Community, error)

	// FindByName は名前でコミュニティを検索する。大文字小文字は区別しない。
	FindByName(ctx context.Context, name string) (*model.Community, error)

	// FindByUsername はユーザー名でコミュニティを検索する。大文字小文字は区別しない。
	FindByUsername(ctx context.Context, username string) (*model.Community, error)

	// FindByIDOrUsername はIDまたはユーザー名でコミュニティを検索する。
	FindByIDOrUsername(ctx context.Context, ref string) (*model.Community, error)

	// List は作成日時の降順でコミュニティを返す。総件数も返す。
	List(ctx context.Context, page model.PageRequest) ([]*model.Community, int, error)

	// Create はコミュニティを作成する。名前が重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, community *model.Community) error

	// Update はコミュニティのプロフィール項目を更新する。
	// メンバー関連の項目は更新しない。対象がない場合はErrNotFoundを返す。
	Update(ctx context.Context, community *model.Community) error

	// Delete はコミュニティを削除する。投稿・コメントは削除しない。
	Delete(ctx context.Context, id string) error

	// AddMember はuserIDをメンバーに追加する。既にメンバーの場合はfalseを返す。
	AddMember(ctx context.Context, id, userID string) (bool, error)

	// RemoveMember はuserIDをメンバーとモデレーターから外す。メンバーでない場合はfalseを返す。
	RemoveMember(ctx context.Context, id, userID string) (bool, error)

	// AddPendingMember は参加申請を追加する。既に申請済みの場合はfalseを返す。
	AddPendingMember(ctx context.Context, id string, pending model.PendingMember) (bool, error)

	// ApprovePendingMember は参加申請をメンバーに昇格する。申請がない場合はfalseを返す。
	ApprovePendingMember(ctx context.Context, id, userID string) (bool, error)

	// AddBan は追放情報を追加し、対象をメンバー・モデレーター・申請から外す。
	AddBan(ctx context.Context, id string, ban model.Ban) error
}

// PostRepository は投稿データの永続化インターフェース。
type PostRepository interface {
	// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// FindByTitle はタイトルで投稿を検索する。大文字小文字は区別しない。
	FindByTitle(ctx context.Context, title string) (*model.Post, error)

	// ListVisible はviewerIDが閲覧可能な下書き以外の投稿を新しい順に返す。
	// 非公開コミュニティの投稿はviewerIDがメンバーの場合のみ含む。
	// 総件数は同じ条件で数えた件数。
	ListVisible(ctx context.Context, viewerID string, page model.PageRequest) ([]*model.PostSummary, int, error)

	// Create は投稿を作成し、投稿先コミュニティのpostsCountを1増やす。
	// タイトルが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, post *model.Post) error

	// Update は投稿の編集可能な項目を更新する。
	Update(ctx context.Context, post *model.Post) error

	// Delete は投稿を削除し、投稿先コミュニティのpostsCountを1減らす。
	Delete(ctx context.Context, post *model.Post) error
}

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	// FindByIDs は指定IDのコメントを作成日時の昇順で返す。
	FindByIDs(ctx context.Context, ids []string) ([]*model.Comment, error)

	// FindOwned はuserIDが投稿したコメントを取得する。該当しない場合はnilを返す。
	FindOwned(ctx context.Context, id, userID string) (*model.Comment, error)

	// ListByPostAndAuthor は投稿に付いたuserIDのコメントを返す。
	ListByPostAndAuthor(ctx context.Context, postID, userID string) ([]*model.Comment, error)

	// Create はコメントを作成し、親の comments/replies に追加する。
	// 親が存在しない場合はErrNotFoundを返し、何も作成しない。
	// 返信の場合、comment.PostIDには親コメントの投稿IDが設定される。
	Create(ctx context.Context, comment *model.Comment, parent model.ParentRef) error

	// Update はコメント本文と投票表示設定を更新する。
	Update(ctx context.Context, comment *model.Comment) error

	// Delete はコメントを削除し、親の comments/replies から取り除く。
	Delete(ctx context.Context, comment *model.Comment) error
}

// CategoryRepository はカテゴリデータの永続化インターフェース。
type CategoryRepository interface {
	// FindByID は指定IDのカテゴリを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Category, error)

	// FindByName は名前でカテゴリを検索する。大文字小文字は区別しない。
	FindByName(ctx context.Context, name string) (*model.Category, error)

	// List は名前順で全カテゴリを返す。
	List(ctx context.Context) ([]*model.Category, error)

	// Create はカテゴリを作成する。名前が重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, category *model.Category) error

	// Update はカテゴリを更新する。
	Update(ctx context.Context, category *model.Category) error

	// Delete はカテゴリを削除する。
	Delete(ctx context.Context, id string) error
}

// AuditLogRepository は監査ログの永続化インターフェース。
type AuditLogRepository interface {
	// Create は監査ログを追記する。
	Create(ctx context.Context, log *model.AuditLog) error

	// List は作成日時の降順で監査ログを返す。総件数も返す。
	List(ctx context.Context, page model.PageRequest) ([]*model.AuditLog, int, error)
}
