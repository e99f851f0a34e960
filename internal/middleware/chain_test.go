package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

// TestMiddlewareChain_WithChiRouter は公開ルートと認証ルートのミドルウェアチェーンを検証する。
func TestMiddlewareChain_WithChiRouter(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	rl := NewRateLimiter(testRateLimiterConfig(2, 1))
	defer rl.Stop()

	r := chi.NewRouter()
	r.Use(NewRecoveryMiddleware(logger))
	r.Use(NewLoggingMiddleware(logger))
	r.Use(NewCORSMiddleware("*"))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Group(func(r chi.Router) {
		r.Use(NewAuthMiddleware(tokenResolver()))
		r.Use(rl.GeneralMiddleware())
		r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := UserIDFromContext(r.Context())
			w.Write([]byte(userID))
		})
	})

	serve := func(path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	if w := serve("/health", ""); w.Code != http.StatusOK {
		t.Errorf("/health: status = %d, want 200", w.Code)
	}
	if w := serve("/me", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("/me without token: status = %d, want 401", w.Code)
	}

	w := serve("/me", "good")
	if w.Code != http.StatusOK || w.Body.String() != "user-123" {
		t.Errorf("/me: status = %d body = %q", w.Code, w.Body.String())
	}
	serve("/me", "good")
	if w := serve("/me", "good"); w.Code != http.StatusTooManyRequests {
		t.Errorf("/me over limit: status = %d, want 429", w.Code)
	}
}
