package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/agora/internal/model"
)

// mockAuditService はAuditServiceInterfaceのモック実装。
type mockAuditService struct {
	listFn func(ctx context.Context, req model.PageRequest) (*model.Page[*model.AuditLog], error)
}

func (m *mockAuditService) List(ctx context.Context, req model.PageRequest) (*model.Page[*model.AuditLog], error) {
	if m.listFn != nil {
		return m.listFn(ctx, req)
	}
	return model.NewPage[*model.AuditLog](nil, 0, req.Normalize(0)), nil
}

// mockPinger はPingerのモック実装。
type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error { return m.err }

// TestAdminHandler_ListAuditLogs は監査ログのページを返すことを検証する。
func TestAdminHandler_ListAuditLogs(t *testing.T) {
	h := NewAdminHandler(&mockAuditService{
		listFn: func(ctx context.Context, req model.PageRequest) (*model.Page[*model.AuditLog], error) {
			if req.Page != 3 {
				t.Errorf("page = %d, want 3", req.Page)
			}
			logs := []*model.AuditLog{{ID: "l-1", Action: model.AuditActionView, Resource: model.AuditResourcePost, Outcome: model.AuditOutcomeOK}}
			return model.NewPage(logs, 21, model.PageRequest{Page: 3, Limit: 10}), nil
		},
	})
	w := httptest.NewRecorder()
	h.ListAuditLogs(w, withUserID(httptest.NewRequest(http.MethodGet, "/admin?page=3", nil), "user-123"))

	resp := parseSuccessResponse[model.Page[model.AuditLog]](t, w)
	if resp.Data.TotalPages != 3 || resp.Data.HasNextPage || len(resp.Data.Docs) != 1 {
		t.Errorf("page = %+v", resp.Data)
	}
	if resp.Data.Docs[0].Outcome != model.AuditOutcomeOK {
		t.Errorf("outcome = %q, want ok", resp.Data.Docs[0].Outcome)
	}
}

// TestHealthHandler はDB疎通の可否で200/503を返すことを検証する。
func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"healthy", nil, http.StatusOK},
		{"db down", errors.New("connection refused"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewHealthHandler(&mockPinger{err: tt.err})(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
