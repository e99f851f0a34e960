package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/agora/internal/category"
	"github.com/hitoshi/agora/internal/model"
)

// CategoryServiceInterface はカテゴリハンドラーが必要とするサービスインターフェース。
type CategoryServiceInterface interface {
	Create(ctx context.Context, actorID string, in category.CreateInput) (*model.Category, error)
	Get(ctx context.Context, actorID, id string) (*model.Category, error)
	List(ctx context.Context, actorID string) ([]*model.Category, error)
	Update(ctx context.Context, actorID, id string, in category.UpdateInput) (*model.Category, error)
	Delete(ctx context.Context, actorID, id string) error
}

// CategoryHandler はカテゴリ管理のHTTPハンドラー。
type CategoryHandler struct {
	service CategoryServiceInterface
}

// NewCategoryHandler はCategoryHandlerを生成する。
func NewCategoryHandler(service CategoryServiceInterface) *CategoryHandler {
	return &CategoryHandler{service: service}
}

type createCategoryRequest struct {
	Name  string `json:"name" validate:"required"`
	Value string `json:"value" validate:"required"`
}

type updateCategoryRequest struct {
	Name  *string `json:"name" validate:"required_without=Value"`
	Value *string `json:"value"`
}

// Create はカテゴリを作成する。
// POST /category
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req createCategoryRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	c, err := h.service.Create(r.Context(), userID, category.CreateInput{Name: req.Name, Value: req.Value})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, "Category created successfully", c)
}

// List はカテゴリ一覧を返す。
// GET /category
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	cs, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, "Categories fetched successfully", cs)
}

// Get はカテゴリを1件返す。
// GET /category/{id}
func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	c, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, "Category fetched successfully", c)
}

// Update はカテゴリを部分更新する。nameかvalueのいずれかが必要。
// PUT /category/{id}
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req updateCategoryRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	c, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), category.UpdateInput{
		Name:  req.Name,
		Value: req.Value,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, "Category updated successfully", c)
}

// Delete はカテゴリを削除する。
// DELETE /category/{id}
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, "Category deleted successfully", nil)
}
