package model

import "fmt"

// ErrorKind はサービス層エラーの分類。HTTP境界ではKindでステータスを決定する。
type ErrorKind string

const (
	KindConflict        ErrorKind = "conflict"
	KindNotFound        ErrorKind = "not_found"
	KindForbidden       ErrorKind = "forbidden"
	KindInvalidInput    ErrorKind = "invalid_input"
	KindUnauthenticated ErrorKind = "unauthenticated"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Kind     ErrorKind // エラー分類
	Code     string    // エラーコード
	Message  string    // エラーメッセージ
	Category string    // カテゴリ: auth, validation, community, post, comment, category
	Action   string    // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeCommunityExists    = "COMMUNITY_EXISTS"
	ErrCodeCommunityNotFound  = "COMMUNITY_NOT_FOUND"
	ErrCodeNotMember          = "NOT_A_MEMBER"
	ErrCodeNotModerator       = "NOT_A_MODERATOR"
	ErrCodeNotJoined          = "NOT_JOINED"
	ErrCodeAlreadyMember      = "ALREADY_MEMBER"
	ErrCodeJoinPending        = "JOIN_PENDING"
	ErrCodeNotPending         = "NOT_PENDING"
	ErrCodeBanned             = "BANNED"
	ErrCodePostExists         = "POST_EXISTS"
	ErrCodePostNotFound       = "POST_NOT_FOUND"
	ErrCodeNotPostOwner       = "NOT_POST_OWNER"
	ErrCodePrivateCommunity   = "PRIVATE_COMMUNITY"
	ErrCodeCommentNotFound    = "COMMENT_NOT_FOUND"
	ErrCodeNoComments         = "NO_COMMENTS"
	ErrCodeCategoryExists     = "CATEGORY_EXISTS"
	ErrCodeCategoryNotFound   = "CATEGORY_NOT_FOUND"
	ErrCodeUserExists         = "USER_EXISTS"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeInvalidID          = "INVALID_ID"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeTokenRequired      = "TOKEN_REQUIRED"
	ErrCodeInvalidToken       = "INVALID_TOKEN"
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
)

// NewCommunityExistsError はコミュニティ名の重複エラーを生成する。
func NewCommunityExistsError(field string) *APIError {
	return &APIError{
		Kind:     KindConflict,
		Code:     ErrCodeCommunityExists,
		Message:  fmt.Sprintf("Community already exists with this %s", field),
		Category: "community",
		Action:   "Choose a different community " + field + ".",
	}
}

// NewCommunityNotFoundError はコミュニティ未検出エラーを生成する。
func NewCommunityNotFoundError() *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeCommunityNotFound,
		Message:  "Community not found",
		Category: "community",
		Action:   "Check the community id or username.",
	}
}

// NewNotMemberError は非メンバーによる操作エラーを生成する。
func NewNotMemberError() *APIError {
	return &APIError{
		Kind:     KindForbidden,
		Code:     ErrCodeNotMember,
		Message:  "You are not a member of this community",
		Category: "community",
		Action:   "Join the community first.",
	}
}

// NewNotModeratorError は非モデレーターによる管理操作エラーを生成する。
func NewNotModeratorError() *APIError {
	return &APIError{
		Kind:     KindForbidden,
		Code:     ErrCodeNotModerator,
		Message:  "You are not a moderator of this community",
		Category: "community",
		Action:   "Ask a moderator to perform this action.",
	}
}

// NewAlreadyMemberError は参加済みコミュニティへの再参加エラーを生成する。
func NewAlreadyMemberError() *APIError {
	return &APIError{
		Kind:     KindConflict,
		Code:     ErrCodeAlreadyMember,
		Message:  "You are already a member of this community",
		Category: "community",
		Action:   "No action is needed.",
	}
}

// NewJoinPendingError は承認待ちの参加申請が既に存在するエラーを生成する。
func NewJoinPendingError() *APIError {
	return &APIError{
		Kind:     KindConflict,
		Code:     ErrCodeJoinPending,
		Message:  "Your request to join this community is pending",
		Category: "community",
		Action:   "Wait for a moderator to approve your request.",
	}
}

// NewNotPendingError は承認対象の参加申請がないエラーを生成する。
func NewNotPendingError() *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeNotPending,
		Message:  "No pending request from this user",
		Category: "community",
		Action:   "Check the user id.",
	}
}

// NewNotJoinedError は退会対象のコミュニティに参加していないエラーを生成する。
func NewNotJoinedError() *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeNotJoined,
		Message:  "You have not joined this community",
		Category: "community",
		Action:   "Check the community id.",
	}
}

// NewBannedError は追放中ユーザーの参加エラーを生成する。
func NewBannedError() *APIError {
	return &APIError{
		Kind:     KindForbidden,
		Code:     ErrCodeBanned,
		Message:  "You are banned from this community",
		Category: "community",
		Action:   "Contact a moderator of the community.",
	}
}

// NewPostExistsError は投稿タイトルの重複エラーを生成する。
func NewPostExistsError() *APIError {
	return &APIError{
		Kind:     KindConflict,
		Code:     ErrCodePostExists,
		Message:  "Post with same title already exists",
		Category: "post",
		Action:   "Choose a different title.",
	}
}

// NewPostNotFoundError は投稿未検出エラーを生成する。
// 下書きの存在を隠す場合にも使用する。
func NewPostNotFoundError() *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodePostNotFound,
		Message:  "Post not found",
		Category: "post",
		Action:   "Check the post id.",
	}
}

// NewNotPostOwnerError は投稿者以外による変更エラーを生成する。
func NewNotPostOwnerError() *APIError {
	return &APIError{
		Kind:     KindForbidden,
		Code:     ErrCodeNotPostOwner,
		Message:  "You are not the owner of this post",
		Category: "post",
		Action:   "Only the author can modify this post.",
	}
}

// NewPrivateCommunityError は非公開コミュニティの投稿閲覧エラーを生成する。
func NewPrivateCommunityError() *APIError {
	return &APIError{
		Kind:     KindForbidden,
		Code:     ErrCodePrivateCommunity,
		Message:  "This post belongs to a private community",
		Category: "post",
		Action:   "Join the community to view its posts.",
	}
}

// NewCommentNotFoundError はコメント未検出エラーを生成する。
// 他ユーザーのコメントに対しても使用し、存在を明かさない。
func NewCommentNotFoundError() *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeCommentNotFound,
		Message:  "Comment not found",
		Category: "comment",
		Action:   "Check the comment id.",
	}
}

// NewNoCommentsError はコメント一覧が空の場合のエラーを生成する。
func NewNoCommentsError() *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeNoComments,
		Message:  "No comment found",
		Category: "comment",
		Action:   "Check the post id.",
	}
}

// NewCategoryExistsError はカテゴリ名の重複エラーを生成する。
func NewCategoryExistsError() *APIError {
	return &APIError{
		Kind:     KindConflict,
		Code:     ErrCodeCategoryExists,
		Message:  "Category already exists",
		Category: "category",
		Action:   "Choose a different category name.",
	}
}

// NewCategoryNotFoundError はカテゴリ未検出エラーを生成する。
func NewCategoryNotFoundError() *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeCategoryNotFound,
		Message:  "Category not found",
		Category: "category",
		Action:   "Check the category id.",
	}
}

// NewUserExistsError はユーザー登録時の重複エラーを生成する。
func NewUserExistsError(field string) *APIError {
	return &APIError{
		Kind:     KindConflict,
		Code:     ErrCodeUserExists,
		Message:  fmt.Sprintf("User already exists with this %s", field),
		Category: "auth",
		Action:   "Log in or use a different " + field + ".",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
		Action:   "Check the user id.",
	}
}

// NewInvalidIDError は識別子の形式エラーを生成する。
func NewInvalidIDError(resource string) *APIError {
	return &APIError{
		Kind:     KindInvalidInput,
		Code:     ErrCodeInvalidID,
		Message:  fmt.Sprintf("Invalid %s id", resource),
		Category: "validation",
		Action:   "Provide a valid identifier.",
	}
}

// NewInvalidRequestError はリクエスト内容の検証エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Kind:     KindInvalidInput,
		Code:     ErrCodeInvalidRequest,
		Message:  reason,
		Category: "validation",
		Action:   "Fix the request payload and try again.",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Kind:     KindUnauthenticated,
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid email or password",
		Category: "auth",
		Action:   "Check your email and password.",
	}
}

// NewTokenRequiredError はトークン未指定エラーを生成する。
func NewTokenRequiredError() *APIError {
	return &APIError{
		Kind:     KindUnauthenticated,
		Code:     ErrCodeTokenRequired,
		Message:  "Token required",
		Category: "auth",
		Action:   "Send an Authorization: Bearer <token> header.",
	}
}

// NewInvalidTokenError はトークン検証失敗エラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Kind:     KindUnauthenticated,
		Code:     ErrCodeInvalidToken,
		Message:  "Invalid or expired token",
		Category: "auth",
		Action:   "Log in again.",
	}
}

// NewUnauthenticatedError は認証済みユーザーを解決できない場合のエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Kind:     KindUnauthenticated,
		Code:     ErrCodeUnauthenticated,
		Message:  "Unauthorized",
		Category: "auth",
		Action:   "Log in again.",
	}
}

// HasCode はerrがcodeを持つAPIErrorかを返す。
func HasCode(err error, code string) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Code == code
}
