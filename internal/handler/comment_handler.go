package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/agora/internal/comment"
	"github.com/hitoshi/agora/internal/middleware"
	"github.com/hitoshi/agora/internal/model"
)

// CommentServiceInterface はコメントハンドラーが必要とするサービスインターフェース。
type CommentServiceInterface interface {
	Create(ctx context.Context, actorID string, in comment.CreateInput) (*model.Comment, error)
	GetAll(ctx context.Context, actorID, postID string) ([]*model.Comment, error)
	Get(ctx context.Context, actorID, id string) (*model.Comment, error)
	Update(ctx context.Context, actorID, id string, in comment.UpdateInput) (*model.Comment, error)
	Delete(ctx context.Context, actorID, id string) error
}

// CommentHandler はコメントのHTTPハンドラー。
type CommentHandler struct {
	service CommentServiceInterface
}

// NewCommentHandler はCommentHandlerを生成する。
func NewCommentHandler(service CommentServiceInterface) *CommentHandler {
	return &CommentHandler{service: service}
}

type createCommentRequest struct {
	Body      string `json:"body" validate:"required"`
	PostID    string `json:"postId"`
	CommentID string `json:"commentId"`
	HideVotes bool   `json:"hideVotes"`
}

// parent はpostId/commentIdからコメントの親参照を組み立てる。
func (req createCommentRequest) parent() (model.ParentRef, error) {
	switch {
	case req.PostID != "" && req.CommentID != "":
		return model.ParentRef{}, model.NewInvalidRequestError("postId and commentId cannot be combined")
	case req.CommentID != "":
		return model.CommentParent(req.CommentID), nil
	case req.PostID != "":
		return model.PostParent(req.PostID), nil
	default:
		return model.NoParent(), nil
	}
}

type updateCommentRequest struct {
	Body      *string `json:"body"`
	HideVotes *bool   `json:"hideVotes"`
}

// Create は投稿へのコメントまたはコメントへの返信を作成する。
// POST /comment
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req createCommentRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	parent, err := req.parent()
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	c, err := h.service.Create(r.Context(), userID, comment.CreateInput{
		Body:      req.Body,
		HideVotes: req.HideVotes,
		Parent:    parent,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, "Comment created successfully", c)
}

// GetAll は指定投稿に付いた自分のコメントを返す。
// GET /comment?postId=
func (h *CommentHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	postID := r.URL.Query().Get("postId")
	if postID == "" {
		middleware.WriteAPIError(w, model.NewInvalidRequestError("postId is required"))
		return
	}

	cs, err := h.service.GetAll(r.Context(), userID, postID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, "Comments fetched successfully", cs)
}

// Get は自分のコメントを1件返す。
// GET /comment/{id}
func (h *CommentHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	c, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, "Comment fetched successfully", c)
}

// Update は自分のコメントを部分更新する。
// PATCH /comment/{id}
func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req updateCommentRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	c, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), comment.UpdateInput{
		Body:      req.Body,
		HideVotes: req.HideVotes,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, "Comment updated successfully", c)
}

// Delete は自分のコメントを削除する。
// DELETE /comment/{id}
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, "Comment deleted successfully", nil)
}
