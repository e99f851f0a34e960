// Package category はカテゴリ管理のドメインロジックを提供する。
package category

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/agora/internal/audit"
	"github.com/hitoshi/agora/internal/model"
	"github.com/hitoshi/agora/internal/repository"
	"github.com/hitoshi/agora/internal/textnorm"
)

// CreateInput はカテゴリ作成の入力。
type CreateInput struct {
	Name  string
	Value string
}

// UpdateInput はカテゴリ更新の入力。nilの項目は変更しない。
type UpdateInput struct {
	Name  *string
	Value *string
}

// Service はカテゴリ管理のサービス層。
// すべての操作（参照を含む）を監査ログに記録する。
type Service struct {
	repo     repository.CategoryRepository
	recorder audit.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.CategoryRepository, recorder audit.Recorder, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) record(ctx context.Context, action model.AuditAction, modelID, actorID string, err error) {
	s.recorder.Record(ctx, audit.NewEntry(action, model.AuditResourceCategory, modelID, actorID, err))
}

// Create はカテゴリを作成する。名前は先頭を大文字にして保存する。
func (s *Service) Create(ctx context.Context, actorID string, in CreateInput) (c *model.Category, err error) {
	var id string
	defer func() { s.record(ctx, model.AuditActionCreate, id, actorID, err) }()

	name := textnorm.Capitalize(in.Name)
	if name == "" {
		return nil, model.NewInvalidRequestError("name is required")
	}

	existing, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("カテゴリの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewCategoryExistsError()
	}

	now := s.now()
	c = &model.Category{
		ID:        uuid.NewString(),
		Name:      name,
		Value:     in.Value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewCategoryExistsError()
		}
		return nil, fmt.Errorf("カテゴリの作成に失敗しました: %w", err)
	}
	id = c.ID
	return c, nil
}

// Get は指定IDのカテゴリを返す。
func (s *Service) Get(ctx context.Context, actorID, id string) (c *model.Category, err error) {
	defer func() { s.record(ctx, model.AuditActionView, id, actorID, err) }()

	if err := model.ValidateID("category", id); err != nil {
		return nil, err
	}
	c, err = s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("カテゴリの取得に失敗しました: %w", err)
	}
	if c == nil {
		return nil, model.NewCategoryNotFoundError()
	}
	return c, nil
}

// List は全カテゴリを名前順で返す。
func (s *Service) List(ctx context.Context, actorID string) (cs []*model.Category, err error) {
	defer func() { s.record(ctx, model.AuditActionView, model.ModelIDAll, actorID, err) }()

	cs, err = s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("カテゴリ一覧の取得に失敗しました: %w", err)
	}
	if cs == nil {
		cs = []*model.Category{}
	}
	return cs, nil
}

// Update はカテゴリを部分更新する。名前を変更する場合は重複を検査する。
func (s *Service) Update(ctx context.Context, actorID, id string, in UpdateInput) (c *model.Category, err error) {
	defer func() { s.record(ctx, model.AuditActionUpdate, id, actorID, err) }()

	if err := model.ValidateID("category", id); err != nil {
		return nil, err
	}
	c, err = s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("カテゴリの取得に失敗しました: %w", err)
	}
	if c == nil {
		return nil, model.NewCategoryNotFoundError()
	}

	if in.Name != nil {
		name := textnorm.Capitalize(*in.Name)
		if name == "" {
			return nil, model.NewInvalidRequestError("name must not be empty")
		}
		if !textnorm.Equal(name, c.Name) {
			existing, err := s.repo.FindByName(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("カテゴリの検索に失敗しました: %w", err)
			}
			if existing != nil && existing.ID != c.ID {
				return nil, model.NewCategoryExistsError()
			}
		}
		c.Name = name
	}
	if in.Value != nil {
		c.Value = *in.Value
	}
	c.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, c); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, model.NewCategoryExistsError()
		case errors.Is(err, repository.ErrNotFound):
			return nil, model.NewCategoryNotFoundError()
		}
		return nil, fmt.Errorf("カテゴリの更新に失敗しました: %w", err)
	}
	return c, nil
}

// Delete はカテゴリを削除する。
func (s *Service) Delete(ctx context.Context, actorID, id string) (err error) {
	defer func() { s.record(ctx, model.AuditActionDelete, id, actorID, err) }()

	if err := model.ValidateID("category", id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewCategoryNotFoundError()
		}
		return fmt.Errorf("カテゴリの削除に失敗しました: %w", err)
	}
	return nil
}
