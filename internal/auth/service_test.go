package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/agora/internal/model"
	"github.com/hitoshi/agora/internal/repository"
	"github.com/hitoshi/agora/internal/repository/memstore"
)

// --- モック定義 ---

type mockUserRepo struct {
	repository.UserRepository
	findByIDFn    func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn func(ctx context.Context, email string) (*model.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return m.findByIDFn(ctx, id)
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return m.findByEmailFn(ctx, email)
}

// --- ヘルパー ---

const testSecret = "test-secret"

func newTestService(repo repository.UserRepository) *Service {
	return NewService(repo, NewTokenIssuer(testSecret, time.Hour),
		ServiceConfig{BcryptCost: bcrypt.MinCost},
		slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func signupAlice(t *testing.T, svc *Service) *model.User {
	t.Helper()
	u, err := svc.Signup(context.Background(), SignupInput{Username: "alice", Email: "alice@example.com", Password: "s3cret"})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	return u
}

// --- テスト ---

// TestService_Signup はパスワードがハッシュ化されて保存されることを検証する。
func TestService_Signup(t *testing.T) {
	store := memstore.New()
	svc := newTestService(store.Users())

	u := signupAlice(t, svc)
	if u.PasswordHash == "s3cret" || u.PasswordHash == "" {
		t.Fatalf("password not hashed: %q", u.PasswordHash)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret")); err != nil {
		t.Errorf("hash does not match password: %v", err)
	}
	stored, _ := store.Users().FindByEmail(context.Background(), "ALICE@example.com")
	if stored == nil || stored.ID != u.ID {
		t.Errorf("stored user = %+v", stored)
	}
}

// TestService_Signup_Errors は登録時の重複と入力エラーを検証する。
func TestService_Signup_Errors(t *testing.T) {
	svc := newTestService(memstore.New().Users())
	signupAlice(t, svc)

	tests := []struct {
		name        string
		in          SignupInput
		wantCode    string
		wantMessage string
	}{
		{
			name:        "メールアドレス重複",
			in:          SignupInput{Username: "alice2", Email: "Alice@Example.com", Password: "x"},
			wantCode:    model.ErrCodeUserExists,
			wantMessage: "User already exists with this email",
		},
		{
			name:        "ユーザー名重複",
			in:          SignupInput{Username: "ALICE", Email: "other@example.com", Password: "x"},
			wantCode:    model.ErrCodeUserExists,
			wantMessage: "User already exists with this username",
		},
		{
			name:     "メールアドレス形式不正",
			in:       SignupInput{Username: "bob", Email: "not-an-email", Password: "x"},
			wantCode: model.ErrCodeInvalidRequest,
		},
		{
			name:     "パスワード未指定",
			in:       SignupInput{Username: "bob", Email: "bob@example.com"},
			wantCode: model.ErrCodeInvalidRequest,
		},
		{
			name:     "パスワードが長すぎる",
			in:       SignupInput{Username: "bob", Email: "bob@example.com", Password: strings.Repeat("x", 73)},
			wantCode: model.ErrCodeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Signup(context.Background(), tt.in)
			apiErr, ok := model.AsAPIError(err)
			if !ok || apiErr.Code != tt.wantCode {
				t.Fatalf("expected %s, got %v", tt.wantCode, err)
			}
			if tt.wantMessage != "" && apiErr.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", apiErr.Message, tt.wantMessage)
			}
		})
	}
}

// TestService_LoginAndAuthenticate はログインで発行したトークンで認証できることを検証する。
func TestService_LoginAndAuthenticate(t *testing.T) {
	svc := newTestService(memstore.New().Users())
	ctx := context.Background()
	alice := signupAlice(t, svc)

	res, err := svc.Login(ctx, "alice@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token == "" || res.User.ID != alice.ID {
		t.Fatalf("unexpected login result: %+v", res)
	}

	got, err := svc.Authenticate(ctx, res.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != alice.ID {
		t.Errorf("user ID = %q, want %q", got.ID, alice.ID)
	}
}

// TestService_Login_InvalidCredentials は認証情報の誤りが区別されずに401となることを検証する。
func TestService_Login_InvalidCredentials(t *testing.T) {
	svc := newTestService(memstore.New().Users())
	signupAlice(t, svc)

	for _, tc := range []struct{ email, password string }{
		{"alice@example.com", "wrong"},
		{"nobody@example.com", "s3cret"},
	} {
		_, err := svc.Login(context.Background(), tc.email, tc.password)
		apiErr, ok := model.AsAPIError(err)
		if !ok || apiErr.Kind != model.KindUnauthenticated || apiErr.Code != model.ErrCodeInvalidCredentials {
			t.Errorf("Login(%q): expected INVALID_CREDENTIALS, got %v", tc.email, err)
		}
	}
}

// TestService_Login_ReplacesToken は再ログインで以前のトークンが無効になることを検証する。
func TestService_Login_ReplacesToken(t *testing.T) {
	svc := newTestService(memstore.New().Users())
	ctx := context.Background()
	signupAlice(t, svc)

	first, _ := svc.Login(ctx, "alice@example.com", "s3cret")
	second, _ := svc.Login(ctx, "alice@example.com", "s3cret")
	if first.Token == second.Token {
		t.Fatal("expected distinct tokens")
	}
	if _, err := svc.Authenticate(ctx, first.Token); !model.HasCode(err, model.ErrCodeUnauthenticated) {
		t.Errorf("old token: expected UNAUTHENTICATED, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, second.Token); err != nil {
		t.Errorf("new token: %v", err)
	}
}

// TestService_Logout はログアウト後にトークンが使えないことを検証する。
func TestService_Logout(t *testing.T) {
	svc := newTestService(memstore.New().Users())
	ctx := context.Background()
	alice := signupAlice(t, svc)
	res, _ := svc.Login(ctx, "alice@example.com", "s3cret")

	if err := svc.Logout(ctx, alice.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.Authenticate(ctx, res.Token); !model.HasCode(err, model.ErrCodeUnauthenticated) {
		t.Errorf("expected UNAUTHENTICATED, got %v", err)
	}
	if err := svc.Logout(ctx, "missing"); !model.HasCode(err, model.ErrCodeUserNotFound) {
		t.Errorf("expected USER_NOT_FOUND, got %v", err)
	}
}

// TestService_Authenticate_Errors はトークン検証失敗の分類を検証する。
func TestService_Authenticate_Errors(t *testing.T) {
	svc := newTestService(memstore.New().Users())
	ctx := context.Background()

	other := NewTokenIssuer("other-secret", time.Hour)
	forged, _ := other.Issue(&model.User{ID: "u1", Email: "u1@example.com"})

	expiredIssuer := NewTokenIssuer(testSecret, time.Hour)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _ := expiredIssuer.Issue(&model.User{ID: "u1"})

	valid, _ := NewTokenIssuer(testSecret, time.Hour).Issue(&model.User{ID: "unknown-user"})

	tests := []struct {
		name     string
		token    string
		wantCode string
	}{
		{"トークンなし", "", model.ErrCodeTokenRequired},
		{"不正な形式", "not.a.jwt", model.ErrCodeInvalidToken},
		{"異なる鍵で署名", forged, model.ErrCodeInvalidToken},
		{"期限切れ", expired, model.ErrCodeInvalidToken},
		{"存在しないユーザー", valid, model.ErrCodeUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Authenticate(ctx, tt.token)
			if !model.HasCode(err, tt.wantCode) {
				t.Errorf("expected %s, got %v", tt.wantCode, err)
			}
		})
	}
}

// TestService_Authenticate_StoreError はストア障害が認証エラーと区別されることを検証する。
func TestService_Authenticate_StoreError(t *testing.T) {
	svc := newTestService(&mockUserRepo{
		findByIDFn: func(_ context.Context, _ string) (*model.User, error) {
			return nil, errors.New("db down")
		},
	})
	token, _ := svc.tokens.Issue(&model.User{ID: "u1"})

	_, err := svc.Authenticate(context.Background(), token)
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := model.AsAPIError(err); ok {
		t.Errorf("expected internal error, got %v", err)
	}
}

// TestService_Login_StoreError はストア障害が内部エラーとして返ることを検証する。
func TestService_Login_StoreError(t *testing.T) {
	svc := newTestService(&mockUserRepo{
		findByEmailFn: func(_ context.Context, _ string) (*model.User, error) {
			return nil, errors.New("db down")
		},
	})
	_, err := svc.Login(context.Background(), "a@example.com", "x")
	if err == nil || model.HasCode(err, model.ErrCodeInvalidCredentials) {
		t.Errorf("expected internal error, got %v", err)
	}
}
