package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/agora/internal/community"
	"github.com/hitoshi/agora/internal/model"
)

// CommunityServiceInterface はコミュニティハンドラーが必要とするサービスインターフェース。
type CommunityServiceInterface interface {
	Create(ctx context.Context, actorID string, in community.CreateInput) (*model.Community, error)
	Get(ctx context.Context, actorID, ref string) (*model.Community, error)
	List(ctx context.Context, actorID string, req model.PageRequest) (*model.Page[*model.Community], error)
	Update(ctx context.Context, actorID, id string, in community.UpdateInput) (*model.Community, error)
	Delete(ctx context.Context, actorID, id string) error
	Join(ctx context.Context, actorID, ref, message string) (*community.JoinResult, error)
	Leave(ctx context.Context, actorID, ref string) error
	ApproveMember(ctx context.Context, actorID, id, userID string) (*model.Community, error)
	Ban(ctx context.Context, actorID, id string, in community.BanInput) (*model.Community, error)
}

// CommunityHandler はコミュニティとメンバーシップのHTTPハンドラー。
type CommunityHandler struct {
	service CommunityServiceInterface
}

// NewCommunityHandler はCommunityHandlerを生成する。
func NewCommunityHandler(service CommunityServiceInterface) *CommunityHandler {
	return &CommunityHandler{service: service}
}

type createCommunityRequest struct {
	Name        string            `json:"name" validate:"required"`
	Username    string            `json:"username" validate:"required"`
	Description string            `json:"description"`
	Image       string            `json:"image"`
	Cover       string            `json:"cover"`
	Privacy     string            `json:"privacy" validate:"omitempty,oneof=public private"`
	Rules       []string          `json:"rules"`
	Categories  []string          `json:"category"`
	Flairs      map[string]string `json:"flairs"`
	Theme       model.Theme       `json:"theme"`
}

type updateCommunityRequest struct {
	Name        *string            `json:"name"`
	Username    *string            `json:"username"`
	Description *string            `json:"description"`
	Image       *string            `json:"image"`
	Cover       *string            `json:"cover"`
	Privacy     *string            `json:"privacy" validate:"omitempty,oneof=public private"`
	Rules       *[]string          `json:"rules"`
	Categories  *[]string          `json:"category"`
	Flairs      *map[string]string `json:"flairs"`
	Theme       *model.Theme       `json:"theme"`
}

type joinCommunityRequest struct {
	Message string `json:"message" validate:"max=500"`
}

type banRequest struct {
	User      string     `json:"user" validate:"required"`
	Reason    string     `json:"reason"`
	Note      string     `json:"note"`
	Message   string     `json:"message"`
	Until     *time.Time `json:"until"`
	Permanent bool       `json:"permanent"`
}

// Create はコミュニティを作成する。作成者はメンバー兼モデレーターになる。
// POST /community
func (h *CommunityHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req createCommunityRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	c, err := h.service.Create(r.Context(), userID, community.CreateInput{
		Name:        req.Name,
		Username:    req.Username,
		Description: req.Description,
		Image:       req.Image,
		Cover:       req.Cover,
		Privacy:     model.Privacy(req.Privacy),
		Rules:       req.Rules,
		Categories:  req.Categories,
		Flairs:      req.Flairs,
		Theme:       req.Theme,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, "Community created successfully", c)
}

// List はコミュニティ一覧をページングして返す。
// GET /community?page=&limit=
func (h *CommunityHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	page, err := h.service.List(r.Context(), userID, parsePage(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, "Communities fetched successfully", page)
}

// Get はIDまたはユーザー名でコミュニティを返す。
// GET /community/{id}
func (h *CommunityHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	c, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, "Community fetched successfully", c)
}

// Update はコミュニティを部分更新する。
// PATCH /community/{id}
func (h *CommunityHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req updateCommunityRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	in := community.UpdateInput{
		Name:        req.Name,
		Username:    req.Username,
		Description: req.Description,
		Image:       req.Image,
		Cover:       req.Cover,
		Rules:       req.Rules,
		Categories:  req.Categories,
		Flairs:      req.Flairs,
		Theme:       req.Theme,
	}
	if req.Privacy != nil {
		p := model.Privacy(*req.Privacy)
		in.Privacy = &p
	}

	c, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, "Community updated successfully", c)
}

// Delete はコミュニティを削除する。
// DELETE /community/{id}
func (h *CommunityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, "Community deleted successfully", nil)
}

// Join はコミュニティに参加する。非公開コミュニティでは参加申請になる。
// POST /community/{id}/join
func (h *CommunityHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req joinCommunityRequest
	if r.ContentLength != 0 && !decodeRequest(w, r, &req) {
		return
	}

	res, err := h.service.Join(r.Context(), userID, chi.URLParam(r, "id"), req.Message)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if res.Pending {
		writeJSON(w, http.StatusAccepted, "Join request sent", res)
		return
	}
	writeJSON(w, http.StatusOK, "Joined community successfully", res)
}

// Leave はコミュニティから退会する。
// POST /community/{id}/leave
func (h *CommunityHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Leave(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, "Left community successfully", nil)
}

// ApproveMember は参加申請を承認する。
// POST /community/{id}/members/{userId}/approve
func (h *CommunityHandler) ApproveMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	c, err := h.service.ApproveMember(r.Context(), userID, chi.URLParam(r, "id"), chi.URLParam(r, "userId"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, "Member approved successfully", c)
}

// Ban はユーザーをコミュニティから追放する。
// POST /community/{id}/bans
func (h *CommunityHandler) Ban(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req banRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	c, err := h.service.Ban(r.Context(), userID, chi.URLParam(r, "id"), community.BanInput{
		User:      req.User,
		Reason:    req.Reason,
		Note:      req.Note,
		Message:   req.Message,
		Until:     req.Until,
		Permanent: req.Permanent,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, "User banned successfully", c)
}
