package community

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"

	"github.com/hitoshi/agora/internal/audit/audittest"
	"github.com/hitoshi/agora/internal/model"
	"github.com/hitoshi/agora/internal/repository"
	"github.com/hitoshi/agora/internal/repository/memstore"
)

func newTestService(repo repository.CommunityRepository) (*Service, *audittest.Recorder) {
	rec := &audittest.Recorder{}
	return NewService(repo, rec, slog.New(slog.NewJSONHandler(io.Discard, nil)), 100), rec
}

func strPtr(s string) *string { return &s }

// --- モック ---

type mockCommunityRepo struct {
	repository.CommunityRepository
	findByIDFn   func(ctx context.Context, id string) (*model.Community, error)
	findByNameFn func(ctx context.Context, name string) (*model.Community, error)
	createFn     func(ctx context.Context, c *model.Community) error
}

func (m *mockCommunityRepo) FindByID(ctx context.Context, id string) (*model.Community, error) {
	return m.findByIDFn(ctx, id)
}
func (m *mockCommunityRepo) FindByName(ctx context.Context, name string) (*model.Community, error) {
	if m.findByNameFn != nil {
		return m.findByNameFn(ctx, name)
	}
	return nil, nil
}
func (m *mockCommunityRepo) FindByUsername(ctx context.Context, username string) (*model.Community, error) {
	return nil, nil
}
func (m *mockCommunityRepo) Create(ctx context.Context, c *model.Community) error {
	return m.createFn(ctx, c)
}

// --- テスト ---

// TestService_Create_CreatorIsSoleMemberAndModerator は作成者が唯一のメンバー兼モデレーターになることを検証する。
func TestService_Create_CreatorIsSoleMemberAndModerator(t *testing.T) {
	svc, rec := newTestService(memstore.New().Communities())

	c, err := svc.Create(context.Background(), "user-a", CreateInput{Name: "cats", Username: "cats"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Name != "Cats" || c.Username != "Cats" {
		t.Errorf("name/username = %q/%q, want Cats/Cats", c.Name, c.Username)
	}
	if diff := cmp.Diff([]string{"user-a"}, c.Members); diff != "" {
		t.Errorf("members mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"user-a"}, c.Moderators); diff != "" {
		t.Errorf("moderators mismatch (-want +got):\n%s", diff)
	}
	if c.CreatedBy != "user-a" || c.Privacy != model.PrivacyPublic || c.MembersCount != 1 {
		t.Errorf("unexpected community: %+v", c)
	}

	entry, _ := rec.Last()
	if entry.Action != model.AuditActionCreate || entry.ModelID != c.ID || entry.Outcome != model.AuditOutcomeOK {
		t.Errorf("unexpected audit entry: %+v", entry)
	}
}

// TestService_Create_DuplicateNameLeavesOriginal は同名作成がConflictとなり既存が変化しないことを検証する。
func TestService_Create_DuplicateNameLeavesOriginal(t *testing.T) {
	store := memstore.New()
	svc, _ := newTestService(store.Communities())
	ctx := context.Background()

	original, err := svc.Create(ctx, "user-a", CreateInput{Name: "Cats", Username: "cats", Description: "first"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, name := range []string{"Cats", "cats", " CATS "} {
		_, err := svc.Create(ctx, "user-b", CreateInput{Name: name, Username: "other", Description: "second"})
		if !model.HasCode(err, model.ErrCodeCommunityExists) {
			t.Errorf("Create(%q): expected COMMUNITY_EXISTS, got %v", name, err)
		}
	}

	after, _ := store.Communities().FindByID(ctx, original.ID)
	if diff := cmp.Diff(original, after); diff != "" {
		t.Errorf("original community changed (-want +got):\n%s", diff)
	}
}

// TestService_Create_DuplicateUsername はユーザー名の重複もConflictになることを検証する。
func TestService_Create_DuplicateUsername(t *testing.T) {
	svc, _ := newTestService(memstore.New().Communities())
	ctx := context.Background()

	if _, err := svc.Create(ctx, "user-a", CreateInput{Name: "Cats", Username: "cats"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.Create(ctx, "user-a", CreateInput{Name: "Kittens", Username: "Cats"})
	apiErr, ok := model.AsAPIError(err)
	if !ok || apiErr.Code != model.ErrCodeCommunityExists || apiErr.Message != "Community already exists with this username" {
		t.Errorf("unexpected error: %v", err)
	}
}

// TestService_Create_InvalidPrivacy は不正な公開範囲がInvalidInputになることを検証する。
func TestService_Create_InvalidPrivacy(t *testing.T) {
	svc, _ := newTestService(memstore.New().Communities())
	_, err := svc.Create(context.Background(), "user-a", CreateInput{Name: "Cats", Username: "cats", Privacy: "secret"})
	if !model.HasCode(err, model.ErrCodeInvalidRequest) {
		t.Errorf("expected INVALID_REQUEST, got %v", err)
	}
}

// TestService_Create_StoreRace は一意制約違反がConflictに変換されることを検証する。
func TestService_Create_StoreRace(t *testing.T) {
	svc, _ := newTestService(&mockCommunityRepo{
		createFn: func(ctx context.Context, c *model.Community) error {
			return repository.ErrDuplicate
		},
	})
	_, err := svc.Create(context.Background(), "user-a", CreateInput{Name: "Cats", Username: "cats"})
	if !model.HasCode(err, model.ErrCodeCommunityExists) {
		t.Errorf("expected COMMUNITY_EXISTS, got %v", err)
	}
}

// TestService_Update_PartialPreservesFields は部分更新で指定外の項目が保持されることを検証する。
func TestService_Update_PartialPreservesFields(t *testing.T) {
	store := memstore.New()
	svc, _ := newTestService(store.Communities())
	ctx := context.Background()

	created, err := svc.Create(ctx, "user-a", CreateInput{
		Name:        "Cats",
		Username:    "cats",
		Description: "all about cats",
		Image:       "cat.png",
		Rules:       []string{"be nice"},
		Flairs:      map[string]string{"meme": "red"},
		Theme:       model.Theme{Main: "#000", Highlight: "#fff"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := svc.Update(ctx, "user-a", created.ID, UpdateInput{Description: strPtr("cats only")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := *created
	want.Description = "cats only"
	if diff := cmp.Diff(&want, updated, cmpopts.IgnoreFields(model.Community{}, "UpdatedAt")); diff != "" {
		t.Errorf("update mismatch (-want +got):\n%s", diff)
	}

	stored, _ := store.Communities().FindByID(ctx, created.ID)
	if diff := cmp.Diff(&want, stored, cmpopts.IgnoreFields(model.Community{}, "UpdatedAt")); diff != "" {
		t.Errorf("stored mismatch (-want +got):\n%s", diff)
	}
}

// TestService_Update_RenameConflict は既存名への変更がConflictになることを検証する。
func TestService_Update_RenameConflict(t *testing.T) {
	svc, _ := newTestService(memstore.New().Communities())
	ctx := context.Background()

	if _, err := svc.Create(ctx, "user-a", CreateInput{Name: "Cats", Username: "cats"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dogs, err := svc.Create(ctx, "user-a", CreateInput{Name: "Dogs", Username: "dogs"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.Update(ctx, "user-a", dogs.ID, UpdateInput{Name: strPtr("cats")})
	if !model.HasCode(err, model.ErrCodeCommunityExists) {
		t.Errorf("expected COMMUNITY_EXISTS, got %v", err)
	}
}

// TestService_Update_RequiresModerator はモデレーター以外の更新がForbiddenになることを検証する。
func TestService_Update_RequiresModerator(t *testing.T) {
	svc, rec := newTestService(memstore.New().Communities())
	ctx := context.Background()

	c, err := svc.Create(ctx, "user-a", CreateInput{Name: "Cats", Username: "cats"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.Update(ctx, "user-b", c.ID, UpdateInput{Description: strPtr("hacked")})
	if !model.HasCode(err, model.ErrCodeNotModerator) {
		t.Errorf("expected NOT_A_MODERATOR, got %v", err)
	}
	entry, _ := rec.Last()
	if entry.Action != model.AuditActionUpdate || entry.Outcome != model.ErrCodeNotModerator {
		t.Errorf("unexpected audit entry: %+v", entry)
	}
}

// TestService_Update_NotFound は存在しないIDの更新がNotFoundになることを検証する。
func TestService_Update_NotFound(t *testing.T) {
	svc, _ := newTestService(memstore.New().Communities())
	_, err := svc.Update(context.Background(), "user-a", uuid.NewString(), UpdateInput{})
	if !model.HasCode(err, model.ErrCodeCommunityNotFound) {
		t.Errorf("expected COMMUNITY_NOT_FOUND, got %v", err)
	}
}

// TestService_Delete は削除の権限とNotFoundを検証する。
func TestService_Delete(t *testing.T) {
	svc, _ := newTestService(memstore.New().Communities())
	ctx := context.Background()

	c, err := svc.Create(ctx, "user-a", CreateInput{Name: "Cats", Username: "cats"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Delete(ctx, "user-b", c.ID); !model.HasCode(err, model.ErrCodeNotModerator) {
		t.Errorf("expected NOT_A_MODERATOR, got %v", err)
	}
	if err := svc.Delete(ctx, "user-a", c.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Delete(ctx, "user-a", c.ID); !model.HasCode(err, model.ErrCodeCommunityNotFound) {
		t.Errorf("expected COMMUNITY_NOT_FOUND, got %v", err)
	}
}

// TestService_Get_ByUsername はユーザー名でも取得でき、監査ログにIDが記録されることを検証する。
func TestService_Get_ByUsername(t *testing.T) {
	svc, rec := newTestService(memstore.New().Communities())
	ctx := context.Background()

	c, err := svc.Create(ctx, "user-a", CreateInput{Name: "Cats", Username: "cats"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := svc.Get(ctx, "user-b", "cats")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != c.ID {
		t.Errorf("ID = %q, want %q", got.ID, c.ID)
	}
	entry, _ := rec.Last()
	if entry.ModelID != c.ID || entry.Action != model.AuditActionView {
		t.Errorf("unexpected audit entry: %+v", entry)
	}
}

// TestService_List_Paginates はページング結果のメタ情報を検証する。
func TestService_List_Paginates(t *testing.T) {
	svc, rec := newTestService(memstore.New().Communities())
	ctx := context.Background()
	for _, name := range []string{"A", "B", "C"} {
		if _, err := svc.Create(ctx, "user-a", CreateInput{Name: name, Username: name}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	page, err := svc.List(ctx, "user-a", model.PageRequest{Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.TotalDocs != 3 || page.TotalPages != 2 || len(page.Docs) != 1 || page.HasNextPage || !page.HasPrevPage {
		t.Errorf("unexpected page: %+v", page)
	}
	entry, _ := rec.Last()
	if entry.ModelID != model.ModelIDAll {
		t.Errorf("ModelID = %q, want %q", entry.ModelID, model.ModelIDAll)
	}
}

// TestService_Join_Public は公開コミュニティへの参加が即時に反映されることを検証する。
func TestService_Join_Public(t *testing.T) {
	store := memstore.New()
	svc, _ := newTestService(store.Communities())
	ctx := context.Background()

	c, _ := svc.Create(ctx, "user-a", CreateInput{Name: "Cats", Username: "cats"})

	res, err := svc.Join(ctx, "user-b", c.ID, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Pending || !res.Community.IsMember("user-b") {
		t.Errorf("unexpected join result: %+v", res)
	}

	_, err = svc.Join(ctx, "user-b", c.ID, "")
	if !model.HasCode(err, model.ErrCodeAlreadyMember) {
		t.Errorf("expected ALREADY_MEMBER, got %v", err)
	}

	stored, _ := store.Communities().FindByID(ctx, c.ID)
	if stored.MembersCount != 2 {
		t.Errorf("MembersCount = %d, want 2", stored.MembersCount)
	}
}

// TestService_Join_PrivateRequiresApproval は非公開コミュニティへの参加が申請となり承認で反映されることを検証する。
func TestService_Join_PrivateRequiresApproval(t *testing.T) {
	store := memstore.New()
	svc, _ := newTestService(store.Communities())
	ctx := context.Background()

	owner := uuid.NewString()
	joiner := uuid.NewString()
	c, _ := svc.Create(ctx, owner, CreateInput{Name: "Cats", Username: "cats", Privacy: model.PrivacyPrivate})

	res, err := svc.Join(ctx, joiner, c.ID, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Pending || res.Community.IsMember(joiner) {
		t.Errorf("unexpected join result: %+v", res)
	}

	stored, _ := store.Communities().FindByID(ctx, c.ID)
	if len(stored.PendingMembers) != 1 || stored.PendingMembers[0].Message != model.DefaultJoinRequestMessage {
		t.Errorf("unexpected pending members: %+v", stored.PendingMembers)
	}

	if _, err := svc.Join(ctx, joiner, c.ID, ""); !model.HasCode(err, model.ErrCodeJoinPending) {
		t.Errorf("expected JOIN_PENDING, got %v", err)
	}

	if _, err := svc.ApproveMember(ctx, joiner, c.ID, joiner); !model.HasCode(err, model.ErrCodeNotModerator) {
		t.Errorf("expected NOT_A_MODERATOR, got %v", err)
	}

	approved, err := svc.ApproveMember(ctx, owner, c.ID, joiner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approved.IsMember(joiner) || approved.IsPending(joiner) {
		t.Errorf("unexpected community after approval: %+v", approved)
	}

	if _, err := svc.ApproveMember(ctx, owner, c.ID, uuid.NewString()); !model.HasCode(err, model.ErrCodeNotPending) {
		t.Errorf("expected NOT_PENDING, got %v", err)
	}
}

// TestService_Leave は退会とメンバーでない場合のNotFoundを検証する。
func TestService_Leave(t *testing.T) {
	svc, rec := newTestService(memstore.New().Communities())
	ctx := context.Background()

	c, _ := svc.Create(ctx, "user-a", CreateInput{Name: "Cats", Username: "cats"})

	if err := svc.Leave(ctx, "user-b", c.ID); !model.HasCode(err, model.ErrCodeNotJoined) {
		t.Errorf("expected NOT_JOINED, got %v", err)
	}
	if err := svc.Leave(ctx, "user-a", "cats"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry, _ := rec.Last()
	if entry.Action != model.AuditActionLeave || entry.ModelID != c.ID {
		t.Errorf("unexpected audit entry: %+v", entry)
	}
}

// TestService_Ban は追放で対象がメンバーから外れ、再参加できないことを検証する。
func TestService_Ban(t *testing.T) {
	svc, rec := newTestService(memstore.New().Communities())
	ctx := context.Background()

	owner := uuid.NewString()
	target := uuid.NewString()
	c, _ := svc.Create(ctx, owner, CreateInput{Name: "Cats", Username: "cats"})
	if _, err := svc.Join(ctx, target, c.ID, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Ban(ctx, owner, c.ID, BanInput{User: owner, Permanent: true}); !model.HasCode(err, model.ErrCodeInvalidRequest) {
		t.Errorf("expected INVALID_REQUEST for self ban, got %v", err)
	}
	if _, err := svc.Ban(ctx, target, c.ID, BanInput{User: owner, Permanent: true}); !model.HasCode(err, model.ErrCodeNotModerator) {
		t.Errorf("expected NOT_A_MODERATOR, got %v", err)
	}

	until := time.Now().Add(24 * time.Hour)
	banned, err := svc.Ban(ctx, owner, c.ID, BanInput{User: target, Reason: "spam", Until: &until})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if banned.IsMember(target) || banned.MembersCount != 1 {
		t.Errorf("target still a member: %+v", banned)
	}
	entry, _ := rec.Last()
	if entry.Action != model.AuditActionBan || entry.Outcome != model.AuditOutcomeOK {
		t.Errorf("unexpected audit entry: %+v", entry)
	}

	if _, err := svc.Join(ctx, target, c.ID, ""); !model.HasCode(err, model.ErrCodeBanned) {
		t.Errorf("expected BANNED, got %v", err)
	}
}

// TestService_Ban_ExpiredAllowsRejoin は期限切れの追放では再参加できることを検証する。
func TestService_Ban_ExpiredAllowsRejoin(t *testing.T) {
	svc, _ := newTestService(memstore.New().Communities())
	ctx := context.Background()

	owner := uuid.NewString()
	target := uuid.NewString()
	c, _ := svc.Create(ctx, owner, CreateInput{Name: "Cats", Username: "cats"})

	until := time.Now().Add(time.Hour)
	if _, err := svc.Ban(ctx, owner, c.ID, BanInput{User: target, Until: &until}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.now = func() time.Time { return until.Add(time.Minute) }

	if _, err := svc.Join(ctx, target, c.ID, ""); err != nil {
		t.Errorf("expected rejoin after ban expiry, got %v", err)
	}
}

// TestService_FindError は内部エラーがAPIErrorにならないことを検証する。
func TestService_FindError(t *testing.T) {
	svc, rec := newTestService(&mockCommunityRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Community, error) {
			return nil, errors.New("timeout")
		},
	})

	err := svc.Delete(context.Background(), "user-a", uuid.NewString())
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := model.AsAPIError(err); ok {
		t.Errorf("store failure should not be an APIError: %v", err)
	}
	entry, _ := rec.Last()
	if entry.Outcome != "INTERNAL_ERROR" {
		t.Errorf("audit outcome = %q, want INTERNAL_ERROR", entry.Outcome)
	}
}
