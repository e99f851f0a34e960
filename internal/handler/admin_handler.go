package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/agora/internal/middleware"
	"github.com/hitoshi/agora/internal/model"
)

// AuditServiceInterface は監査ログ参照に必要なサービスインターフェース。
type AuditServiceInterface interface {
	List(ctx context.Context, req model.PageRequest) (*model.Page[*model.AuditLog], error)
}

// AdminHandler は管理用エンドポイントのHTTPハンドラー。
type AdminHandler struct {
	service AuditServiceInterface
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(service AuditServiceInterface) *AdminHandler {
	return &AdminHandler{service: service}
}

// ListAuditLogs は監査ログを新しい順にページングして返す。
// GET /admin?page=&limit=
func (h *AdminHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	page, err := h.service.List(r.Context(), parsePage(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, "Logs fetched successfully", page)
}

// Pinger はデータベース接続の疎通確認インターフェース。*sql.DBが実装する。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// healthCheckTimeout はヘルスチェック時のDB疎通確認のタイムアウト。
const healthCheckTimeout = 2 * time.Second

// NewHealthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func NewHealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, &model.APIError{
				Code:     "UNAVAILABLE",
				Message:  "Database is unavailable",
				Category: "system",
				Action:   "Please try again later.",
			})
			return
		}
		writeJSON(w, http.StatusOK, "ok", nil)
	}
}
