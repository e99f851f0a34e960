package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/agora/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	IdentityResolver  middleware.IdentityResolver
	HTTPObserver      middleware.HTTPObserver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 運用エンドポイント
	DB             Pinger
	MetricsHandler http.Handler

	// サービス
	AuthService      AuthServiceInterface
	UserService      UserServiceInterface
	CategoryService  CategoryServiceInterface
	CommunityService CommunityServiceInterface
	PostService      PostServiceInterface
	CommentService   CommentServiceInterface
	AuditService     AuditServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS → Auth → RateLimit(General)
//
// 作成系エンドポイントにはWriteレート制限を追加で適用する。
// /health, /metrics, /user/signup, /user/login は認証不要。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	if deps.HTTPObserver != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPObserver))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService)
	userHandler := NewUserHandler(deps.UserService)
	categoryHandler := NewCategoryHandler(deps.CategoryService)
	communityHandler := NewCommunityHandler(deps.CommunityService)
	postHandler := NewPostHandler(deps.PostService)
	commentHandler := NewCommentHandler(deps.CommentService)
	adminHandler := NewAdminHandler(deps.AuditService)

	// --- 認証不要のルート ---

	if deps.DB != nil {
		r.Get("/health", NewHealthHandler(deps.DB))
	}
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Post("/user/signup", authHandler.Signup)
	r.Post("/user/login", authHandler.Login)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.IdentityResolver))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		write := deps.RateLimiter.WriteMiddleware()

		r.Route("/user", func(r chi.Router) {
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", userHandler.Me)
			r.Get("/{id}", userHandler.Profile)
		})

		r.Route("/category", func(r chi.Router) {
			r.With(write).Post("/", categoryHandler.Create)
			r.Get("/", categoryHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", categoryHandler.Get)
				r.Put("/", categoryHandler.Update)
				r.Delete("/", categoryHandler.Delete)
			})
		})

		r.Route("/community", func(r chi.Router) {
			r.With(write).Post("/", communityHandler.Create)
			r.Get("/", communityHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", communityHandler.Get)
				r.Patch("/", communityHandler.Update)
				r.Delete("/", communityHandler.Delete)
				r.Post("/join", communityHandler.Join)
				r.Post("/leave", communityHandler.Leave)
				r.Post("/members/{userId}/approve", communityHandler.ApproveMember)
				r.Post("/bans", communityHandler.Ban)
			})
		})

		r.Route("/post", func(r chi.Router) {
			r.With(write).Post("/", postHandler.Create)
			r.Get("/all", postHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", postHandler.Get)
				r.Patch("/", postHandler.Update)
				r.Delete("/", postHandler.Delete)
			})
		})

		r.Route("/comment", func(r chi.Router) {
			r.With(write).Post("/", commentHandler.Create)
			r.Get("/", commentHandler.GetAll)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", commentHandler.Get)
				r.Patch("/", commentHandler.Update)
				r.Delete("/", commentHandler.Delete)
			})
		})

		r.Get("/admin", adminHandler.ListAuditLogs)
	})

	return r
}
