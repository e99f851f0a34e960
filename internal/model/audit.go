package model

import "time"

// AuditAction は監査ログに記録する操作種別。
type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionView   AuditAction = "view"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
	AuditActionJoin   AuditAction = "join"
	AuditActionLeave  AuditAction = "leave"
	AuditActionBan    AuditAction = "ban"
)

// AuditResource は監査ログの対象リソース種別。
type AuditResource string

const (
	AuditResourceCommunity AuditResource = "community"
	AuditResourcePost      AuditResource = "post"
	AuditResourceComment   AuditResource = "comment"
	AuditResourceCategory  AuditResource = "category"
)

// AuditOutcome は操作の結果。成功時は"ok"、失敗時はエラーコード。
type AuditOutcome string

// AuditOutcomeOK は成功した操作を表す。
const AuditOutcomeOK AuditOutcome = "ok"

// ModelIDAll は一覧取得時のModelID。
const ModelIDAll = "all"

// AuditEntry は記録対象の操作内容。
type AuditEntry struct {
	Action   AuditAction
	Resource AuditResource
	ModelID  string
	UserID   string
	Outcome  AuditOutcome
}

// AuditLog は永続化された監査ログ。追記のみで更新されない。
type AuditLog struct {
	ID        string        `json:"id"`
	Action    AuditAction   `json:"action"`
	Resource  AuditResource `json:"resource"`
	ModelID   string        `json:"modelId,omitempty"`
	UserID    string        `json:"userId"`
	Outcome   AuditOutcome  `json:"outcome"`
	CreatedAt time.Time     `json:"createdAt"`
}
