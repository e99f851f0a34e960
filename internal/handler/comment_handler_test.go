package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/agora/internal/comment"
	"github.com/hitoshi/agora/internal/model"
)

// mockCommentService はCommentServiceInterfaceのモック実装。
type mockCommentService struct {
	createFn func(ctx context.Context, actorID string, in comment.CreateInput) (*model.Comment, error)
	getAllFn func(ctx context.Context, actorID, postID string) ([]*model.Comment, error)
	getFn    func(ctx context.Context, actorID, id string) (*model.Comment, error)
	updateFn func(ctx context.Context, actorID, id string, in comment.UpdateInput) (*model.Comment, error)
	deleteFn func(ctx context.Context, actorID, id string) error
}

func (m *mockCommentService) Create(ctx context.Context, actorID string, in comment.CreateInput) (*model.Comment, error) {
	if m.createFn != nil {
		return m.createFn(ctx, actorID, in)
	}
	return &model.Comment{ID: "cm-1", Body: in.Body, PostedBy: actorID}, nil
}

func (m *mockCommentService) GetAll(ctx context.Context, actorID, postID string) ([]*model.Comment, error) {
	if m.getAllFn != nil {
		return m.getAllFn(ctx, actorID, postID)
	}
	return []*model.Comment{}, nil
}

func (m *mockCommentService) Get(ctx context.Context, actorID, id string) (*model.Comment, error) {
	if m.getFn != nil {
		return m.getFn(ctx, actorID, id)
	}
	return &model.Comment{ID: id}, nil
}

func (m *mockCommentService) Update(ctx context.Context, actorID, id string, in comment.UpdateInput) (*model.Comment, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, actorID, id, in)
	}
	return &model.Comment{ID: id}, nil
}

func (m *mockCommentService) Delete(ctx context.Context, actorID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, actorID, id)
	}
	return nil
}

// TestCommentHandler_Create_Parent はpostId/commentIdを親参照に変換することを検証する。
func TestCommentHandler_Create_Parent(t *testing.T) {
	tests := []struct {
		name string
		body string
		want model.ParentRef
	}{
		{"post", `{"body":"hi","postId":"p-1"}`, model.PostParent("p-1")},
		{"reply", `{"body":"hi","commentId":"cm-1"}`, model.CommentParent("cm-1")},
		{"none", `{"body":"hi"}`, model.NoParent()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got model.ParentRef
			h := NewCommentHandler(&mockCommentService{
				createFn: func(ctx context.Context, actorID string, in comment.CreateInput) (*model.Comment, error) {
					got = in.Parent
					return &model.Comment{ID: "cm-9", Body: in.Body}, nil
				},
			})
			w := httptest.NewRecorder()
			h.Create(w, withUserID(newJSONRequest(http.MethodPost, "/comment", tt.body), "user-123"))

			if w.Code != http.StatusCreated {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
			}
			if got != tt.want {
				t.Errorf("parent = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// TestCommentHandler_Create_BothParents はpostIdとcommentIdの同時指定を400にすることを検証する。
func TestCommentHandler_Create_BothParents(t *testing.T) {
	h := NewCommentHandler(&mockCommentService{
		createFn: func(ctx context.Context, actorID string, in comment.CreateInput) (*model.Comment, error) {
			t.Error("service should not be called")
			return nil, nil
		},
	})
	w := httptest.NewRecorder()
	h.Create(w, withUserID(newJSONRequest(http.MethodPost, "/comment", `{"body":"hi","postId":"p-1","commentId":"cm-1"}`), "user-123"))

	assertErrorCode(t, w, http.StatusBadRequest, model.ErrCodeInvalidRequest)
}

// TestCommentHandler_Create_MissingBody はbodyがない場合に400を返すことを検証する。
func TestCommentHandler_Create_MissingBody(t *testing.T) {
	h := NewCommentHandler(&mockCommentService{})
	w := httptest.NewRecorder()
	h.Create(w, withUserID(newJSONRequest(http.MethodPost, "/comment", `{"postId":"p-1"}`), "user-123"))

	assertErrorCode(t, w, http.StatusBadRequest, model.ErrCodeInvalidRequest)
}

// TestCommentHandler_GetAll はpostIdクエリをサービスに渡すことを検証する。
func TestCommentHandler_GetAll(t *testing.T) {
	h := NewCommentHandler(&mockCommentService{
		getAllFn: func(ctx context.Context, actorID, postID string) ([]*model.Comment, error) {
			if postID != "p-1" {
				t.Errorf("postID = %q, want %q", postID, "p-1")
			}
			return []*model.Comment{{ID: "cm-1"}}, nil
		},
	})
	w := httptest.NewRecorder()
	h.GetAll(w, withUserID(httptest.NewRequest(http.MethodGet, "/comment?postId=p-1", nil), "user-123"))

	resp := parseSuccessResponse[[]model.Comment](t, w)
	if len(resp.Data) != 1 {
		t.Errorf("len(data) = %d, want 1", len(resp.Data))
	}
}

// TestCommentHandler_GetAll_MissingPostID はpostIdがない場合に400を返すことを検証する。
func TestCommentHandler_GetAll_MissingPostID(t *testing.T) {
	h := NewCommentHandler(&mockCommentService{})
	w := httptest.NewRecorder()
	h.GetAll(w, withUserID(httptest.NewRequest(http.MethodGet, "/comment", nil), "user-123"))

	assertErrorCode(t, w, http.StatusBadRequest, model.ErrCodeInvalidRequest)
}

// TestCommentHandler_GetAll_NoComments はコメントがない場合に404を返すことを検証する。
func TestCommentHandler_GetAll_NoComments(t *testing.T) {
	h := NewCommentHandler(&mockCommentService{
		getAllFn: func(ctx context.Context, actorID, postID string) ([]*model.Comment, error) {
			return nil, model.NewNoCommentsError()
		},
	})
	w := httptest.NewRecorder()
	h.GetAll(w, withUserID(httptest.NewRequest(http.MethodGet, "/comment?postId=p-1", nil), "user-123"))

	assertErrorCode(t, w, http.StatusNotFound, model.ErrCodeNoComments)
}

// TestCommentHandler_Update は指定項目のみを渡すことを検証する。
func TestCommentHandler_Update(t *testing.T) {
	h := NewCommentHandler(&mockCommentService{
		updateFn: func(ctx context.Context, actorID, id string, in comment.UpdateInput) (*model.Comment, error) {
			if in.Body != nil || in.HideVotes == nil || !*in.HideVotes {
				t.Errorf("input = %+v", in)
			}
			return &model.Comment{ID: id, HideVotes: true}, nil
		},
	})
	w := httptest.NewRecorder()
	r := withChiURLParams(withUserID(newJSONRequest(http.MethodPatch, "/comment/cm-1", `{"hideVotes":true}`), "user-123"), "id", "cm-1")
	h.Update(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

// TestCommentHandler_Delete_NotFound は他人のコメントの削除を404にすることを検証する。
func TestCommentHandler_Delete_NotFound(t *testing.T) {
	h := NewCommentHandler(&mockCommentService{
		deleteFn: func(ctx context.Context, actorID, id string) error {
			return model.NewCommentNotFoundError()
		},
	})
	w := httptest.NewRecorder()
	r := withChiURLParams(withUserID(httptest.NewRequest(http.MethodDelete, "/comment/cm-1", nil), "user-123"), "id", "cm-1")
	h.Delete(w, r)

	assertErrorCode(t, w, http.StatusNotFound, model.ErrCodeCommentNotFound)
}
