// Package auth はユーザー登録、ログイン、セッショントークンの検証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/agora/internal/model"
	"github.com/hitoshi/agora/internal/repository"
)

// SignupInput はユーザー登録の入力。
type SignupInput struct {
	Username string
	Email    string
	Password string
}

// LoginResult はログイン結果。Tokenは以降のリクエストでBearerトークンとして送る。
type LoginResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	BcryptCost int
}

// Service は認証に関するビジネスロジックを提供する。
// ユーザーに保存されたトークンのみを有効とし、ログアウトで無効化する。
type Service struct {
	userRepo repository.UserRepository
	tokens   *TokenIssuer
	config   ServiceConfig
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, tokens *TokenIssuer, config ServiceConfig, logger *slog.Logger) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		userRepo: userRepo,
		tokens:   tokens,
		config:   config,
		logger:   logger,
	}
}

// Signup はユーザーを登録する。メールアドレスとユーザー名は一意。
func (s *Service) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" || in.Password == "" {
		return nil, model.NewInvalidRequestError("username, email and password are required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, model.NewInvalidRequestError("email is invalid")
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return nil, model.NewUserExistsError("email")
	}
	existing, err = s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}
	if existing != nil {
		return nil, model.NewUserExistsError("username")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.config.BcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, model.NewInvalidRequestError("password is too long")
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewUserExistsError("email")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("new user created", slog.String("user_id", user.ID))
	return user, nil
}

// Login はメールアドレスとパスワードを検証してトークンを発行する。
// 発行したトークンはユーザーに保存され、以前のトークンは無効になる。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.UpdateToken(ctx, user.ID, token); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}
	user.Token = token

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	return &LoginResult{User: user, Token: token}, nil
}

// Logout は保存されたトークンを消去する。
func (s *Service) Logout(ctx context.Context, userID string) error {
	if err := s.userRepo.UpdateToken(ctx, userID, ""); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError()
		}
		return fmt.Errorf("failed to clear token: %w", err)
	}
	s.logger.Info("user logged out", slog.String("user_id", userID))
	return nil
}

// Authenticate はBearerトークンからユーザーを解決する。
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, model.NewTokenRequiredError()
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, model.NewInvalidTokenError()
	}

	user, err := s.userRepo.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || user.Token != token {
		return nil, model.NewUnauthenticatedError()
	}
	return user, nil
}
