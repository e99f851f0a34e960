package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/agora/internal/model"
	"github.com/hitoshi/agora/internal/post"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	Create(ctx context.Context, actorID string, in post.CreateInput) (*model.Post, error)
	Get(ctx context.Context, actorID, id string) (*model.PostDetail, error)
	List(ctx context.Context, actorID string, req model.PageRequest) (*model.Page[*model.PostSummary], error)
	Update(ctx context.Context, actorID, id string, in post.UpdateInput) (*model.Post, error)
	Delete(ctx context.Context, actorID, id string) error
}

// PostHandler は投稿のHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface) *PostHandler {
	return &PostHandler{service: service}
}

type createPostRequest struct {
	Title      string   `json:"title" validate:"required,max=300"`
	Content    string   `json:"content"`
	Image      string   `json:"image" validate:"omitempty,url"`
	URL        string   `json:"url" validate:"omitempty,url"`
	Categories []string `json:"category"`
	PostedTo   string   `json:"postedTo" validate:"required"`
	HideVotes  bool     `json:"hideVotes"`
	Drafted    bool     `json:"drafted"`
}

type updatePostRequest struct {
	Title      *string   `json:"title" validate:"omitempty,max=300"`
	Content    *string   `json:"content"`
	Image      *string   `json:"image" validate:"omitempty,url"`
	URL        *string   `json:"url" validate:"omitempty,url"`
	Categories *[]string `json:"category"`
	HideVotes  *bool     `json:"hideVotes"`
	Drafted    *bool     `json:"drafted"`
}

// Create は投稿を作成する。
// POST /post
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req createPostRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	p, err := h.service.Create(r.Context(), userID, post.CreateInput{
		Title:      req.Title,
		Content:    req.Content,
		Image:      req.Image,
		URL:        req.URL,
		Categories: req.Categories,
		PostedTo:   req.PostedTo,
		HideVotes:  req.HideVotes,
		Drafted:    req.Drafted,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, "Post created successfully", p)
}

// List は閲覧可能な投稿を新しい順にページングして返す。
// GET /post/all?page=&limit=
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	page, err := h.service.List(r.Context(), userID, parsePage(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, "Posts fetched successfully", page)
}

// Get は投稿を投稿者・コミュニティ・コメントを展開して返す。
// GET /post/{id}
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	d, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, "Post fetched successfully", d)
}

// Update は投稿を部分更新する。投稿者のみ実行できる。
// PATCH /post/{id}
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req updatePostRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	p, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), post.UpdateInput{
		Title:      req.Title,
		Content:    req.Content,
		Image:      req.Image,
		URL:        req.URL,
		Categories: req.Categories,
		HideVotes:  req.HideVotes,
		Drafted:    req.Drafted,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, "Post updated successfully", p)
}

// Delete は投稿を削除する。投稿者のみ実行できる。
// DELETE /post/{id}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, "Post deleted successfully", nil)
}
