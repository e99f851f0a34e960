// Package community はコミュニティとメンバーシップ管理のドメインロジックを提供する。
package community

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

// CreateInput はコミュニティ作成の入力。
type CreateInput struct {
	Name        string
	Username    string
	Description string
	Image       string
	Cover       string
	Privacy     model.Privacy
	Rules       []string
	Categories  []string
	Flairs      map[string]string
	Theme       model.Theme
}

// UpdateInput はコミュニティ更新の入力。nilの項目は変更しない。
type UpdateInput struct {
	Name        *string
	Username    *string
	Description *string
	Image       *string
	Cover       *string
	Privacy     *model.Privacy
	Rules       *[]string
	Categories  *[]string
	Flairs      *map[string]string
	Theme       *model.Theme
}

// BanInput は追放の入力。
type BanInput struct {
	User      string
	Reason    string
	Note      string
	Message   string
	Until     *time.Time
	Permanent bool
}

// JoinResult は参加操作の結果。
// Pendingがtrueの場合は参加申請として登録された。
type JoinResult struct {
	Community *model.Community `json:"community"`
	Pending   bool             `json:"pending"`
}

// Service はコミュニティ管理のサービス層。
// 作成・更新・削除・参照とメンバーシップ操作を提供し、すべて監査ログに記録する。
type Service struct {
	repo     repository.CommunityRepository
	recorder audit.Recorder
	logger   *slog.Logger
	maxLimit int
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.CommunityRepository, recorder audit.Recorder, logger *slog.Logger, maxLimit int) *Service {
	return &Service{
		repo:     repo,
		recorder: recorder,
		logger:   logger,
		maxLimit: maxLimit,
		now:      time.Now,
	}
}

func (s *Service) record(ctx context.Context, action model.AuditAction, modelID, actorID string, err error) {
	s.recorder.Record(ctx, audit.NewEntry(action, model.AuditResourceCommunity, modelID, actorID, err))
}

func validPrivacy(p model.Privacy) bool {
	return p == model.PrivacyPublic || p == model.PrivacyPrivate
}

// checkUnique はnameとusernameが他のコミュニティと重複しないことを検査する。
// selfIDのコミュニティ自身との一致は無視する。
func (s *Service) checkUnique(ctx context.Context, name, username, selfID string) error {
	if name != "" {
		existing, err := s.repo.FindByName(ctx, name)
		if err != nil {
			return fmt.Errorf("コミュニティの検索に失敗しました: %w", err)
		}
		if existing != nil && existing.ID != selfID {
			return model.NewCommunityExistsError("name")
		}
	}
	if username != "" {
		existing, err := s.repo.FindByUsername(ctx, username)
		if err != nil {
			return fmt.Errorf("コミュニティの検索に失敗しました: %w", err)
		}
		if existing != nil && existing.ID != selfID {
			return model.NewCommunityExistsError("username")
		}
	}
	return nil
}

// Create はコミュニティを作成する。作成者はメンバーとモデレーターに登録される。
func (s *Service) Create(ctx context.Context, actorID string, in CreateInput) (c *model.Community, err error) {
	var id string
	defer func() { s.record(ctx, model.AuditActionCreate, id, actorID, err) }()

	name := textnorm.Capitalize(in.Name)
	username := textnorm.Capitalize(in.Username)
	if name == "" || username == "" {
		return nil, model.NewInvalidRequestError("name and username are required")
	}
	privacy := in.Privacy
	if privacy == "" {
		privacy = model.PrivacyPublic
	}
	if !validPrivacy(privacy) {
		return nil, model.NewInvalidRequestError("privacy must be public or private")
	}

	if err := s.checkUnique(ctx, name, username, ""); err != nil {
		return nil, err
	}

	now := s.now()
	c = &model.Community{
		ID:           uuid.NewString(),
		Name:         name,
		Username:     username,
		Description:  in.Description,
		Image:        in.Image,
		Cover:        in.Cover,
		Privacy:      privacy,
		Members:      []string{actorID},
		Moderators:   []string{actorID},
		Flairs:       in.Flairs,
		Rules:        in.Rules,
		Categories:   in.Categories,
		Theme:        in.Theme,
		MembersCount: 1,
		CreatedBy:    actorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewCommunityExistsError("name")
		}
		return nil, fmt.Errorf("コミュニティの作成に失敗しました: %w", err)
	}
	id = c.ID

	s.logger.Info("コミュニティを作成しました",
		slog.String("community_id", c.ID),
		slog.String("user_id", actorID),
	)
	return c, nil
}

// findByID はIDを検証してコミュニティを取得する。
func (s *Service) findByID(ctx context.Context, id string) (*model.Community, error) {
	if err := model.ValidateID("community", id); err != nil {
		return nil, err
	}
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("コミュニティの取得に失敗しました: %w", err)
	}
	if c == nil {
		return nil, model.NewCommunityNotFoundError()
	}
	return c, nil
}

// findByRef はIDまたはユーザー名でコミュニティを取得する。
func (s *Service) findByRef(ctx context.Context, ref string) (*model.Community, error) {
	c, err := s.repo.FindByIDOrUsername(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("コミュニティの取得に失敗しました: %w", err)
	}
	if c == nil {
		return nil, model.NewCommunityNotFoundError()
	}
	return c, nil
}

// Update はコミュニティを部分更新する。モデレーターのみ実行できる。
// 指定されなかった項目は保持される。
func (s *Service) Update(ctx context.Context, actorID, id string, in UpdateInput) (c *model.Community, err error) {
	defer func() { s.record(ctx, model.AuditActionUpdate, id, actorID, err) }()

	c, err = s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsModerator(actorID) {
		return nil, model.NewNotModeratorError()
	}

	var newName, newUsername string
	if in.Name != nil {
		newName = textnorm.Capitalize(*in.Name)
		if newName == "" {
			return nil, model.NewInvalidRequestError("name must not be empty")
		}
		if textnorm.Equal(newName, c.Name) {
			c.Name = newName
			newName = ""
		}
	}
	if in.Username != nil {
		newUsername = textnorm.Capitalize(*in.Username)
		if newUsername == "" {
			return nil, model.NewInvalidRequestError("username must not be empty")
		}
		if textnorm.Equal(newUsername, c.Username) {
			c.Username = newUsername
			newUsername = ""
		}
	}
	if err := s.checkUnique(ctx, newName, newUsername, c.ID); err != nil {
		return nil, err
	}
	if newName != "" {
		c.Name = newName
	}
	if newUsername != "" {
		c.Username = newUsername
	}

	if in.Privacy != nil {
		if !validPrivacy(*in.Privacy) {
			return nil, model.NewInvalidRequestError("privacy must be public or private")
		}
		c.Privacy = *in.Privacy
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.Image != nil {
		c.Image = *in.Image
	}
	if in.Cover != nil {
		c.Cover = *in.Cover
	}
	if in.Rules != nil {
		c.Rules = *in.Rules
	}
	if in.Categories != nil {
		c.Categories = *in.Categories
	}
	if in.Flairs != nil {
		c.Flairs = *in.Flairs
	}
	if in.Theme != nil {
		c.Theme = *in.Theme
	}
	c.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, c); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, model.NewCommunityExistsError("name")
		case errors.Is(err, repository.ErrNotFound):
			return nil, model.NewCommunityNotFoundError()
		}
		return nil, fmt.Errorf("コミュニティの更新に失敗しました: %w", err)
	}
	return c, nil
}

// Delete はコミュニティを削除する。モデレーターのみ実行できる。
// 投稿とコメントは削除しない。
func (s *Service) Delete(ctx context.Context, actorID, id string) (err error) {
	defer func() { s.record(ctx, model.AuditActionDelete, id, actorID, err) }()

	c, err := s.findByID(ctx, id)
	if err != nil {
		return err
	}
	if !c.IsModerator(actorID) {
		return model.NewNotModeratorError()
	}
	if err := s.repo.Delete(ctx, c.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewCommunityNotFoundError()
		}
		return fmt.Errorf("コミュニティの削除に失敗しました: %w", err)
	}

	s.logger.Info("コミュニティを削除しました",
		slog.String("community_id", c.ID),
		slog.String("user_id", actorID),
	)
	return nil
}

// Get はIDまたはユーザー名でコミュニティを返す。
func (s *Service) Get(ctx context.Context, actorID, ref string) (c *model.Community, err error) {
	modelID := ref
	defer func() { s.record(ctx, model.AuditActionView, modelID, actorID, err) }()

	c, err = s.findByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	modelID = c.ID
	return c, nil
}

// List はコミュニティを新しい順にページングして返す。
func (s *Service) List(ctx context.Context, actorID string, req model.PageRequest) (page *model.Page[*model.Community], err error) {
	defer func() { s.record(ctx, model.AuditActionView, model.ModelIDAll, actorID, err) }()

	req = req.Normalize(s.maxLimit)
	cs, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("コミュニティ一覧の取得に失敗しました: %w", err)
	}
	return model.NewPage(cs, total, req), nil
}

// Join はコミュニティに参加する。
// 公開コミュニティは即時にメンバーとなり、非公開コミュニティは参加申請となる。
func (s *Service) Join(ctx context.Context, actorID, ref, message string) (res *JoinResult, err error) {
	modelID := ref
	defer func() { s.record(ctx, model.AuditActionJoin, modelID, actorID, err) }()

	c, err := s.findByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	modelID = c.ID

	if c.ActiveBan(actorID, s.now()) != nil {
		return nil, model.NewBannedError()
	}
	if c.IsMember(actorID) {
		return nil, model.NewAlreadyMemberError()
	}

	if c.Privacy == model.PrivacyPrivate {
		if message == "" {
			message = model.DefaultJoinRequestMessage
		}
		added, err := s.repo.AddPendingMember(ctx, c.ID, model.PendingMember{User: actorID, Message: message})
		if err != nil {
			return nil, fmt.Errorf("参加申請の登録に失敗しました: %w", err)
		}
		if !added {
			return nil, model.NewJoinPendingError()
		}
		c.PendingMembers = append(c.PendingMembers, model.PendingMember{User: actorID, Message: message})
		return &JoinResult{Community: c, Pending: true}, nil
	}

	added, err := s.repo.AddMember(ctx, c.ID, actorID)
	if err != nil {
		return nil, fmt.Errorf("メンバーの追加に失敗しました: %w", err)
	}
	if !added {
		return nil, model.NewAlreadyMemberError()
	}
	c.Members = append(c.Members, actorID)
	c.MembersCount++
	return &JoinResult{Community: c}, nil
}

// Leave はコミュニティから退会する。モデレーターの場合はモデレーターからも外れる。
func (s *Service) Leave(ctx context.Context, actorID, ref string) (err error) {
	modelID := ref
	defer func() { s.record(ctx, model.AuditActionLeave, modelID, actorID, err) }()

	c, err := s.findByRef(ctx, ref)
	if err != nil {
		return err
	}
	modelID = c.ID

	removed, err := s.repo.RemoveMember(ctx, c.ID, actorID)
	if err != nil {
		return fmt.Errorf("メンバーの削除に失敗しました: %w", err)
	}
	if !removed {
		return model.NewNotJoinedError()
	}
	return nil
}

// ApproveMember は参加申請を承認する。モデレーターのみ実行できる。
func (s *Service) ApproveMember(ctx context.Context, actorID, id, userID string) (c *model.Community, err error) {
	defer func() { s.record(ctx, model.AuditActionUpdate, id, actorID, err) }()

	if err := model.ValidateID("user", userID); err != nil {
		return nil, err
	}
	c, err = s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsModerator(actorID) {
		return nil, model.NewNotModeratorError()
	}
	if c.IsMember(userID) {
		return nil, model.NewAlreadyMemberError()
	}

	approved, err := s.repo.ApprovePendingMember(ctx, c.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("参加申請の承認に失敗しました: %w", err)
	}
	if !approved {
		return nil, model.NewNotPendingError()
	}

	return s.reload(ctx, c.ID)
}

// Ban はユーザーを追放する。モデレーターのみ実行できる。
// 対象はメンバー・モデレーター・参加申請から外れる。
func (s *Service) Ban(ctx context.Context, actorID, id string, in BanInput) (c *model.Community, err error) {
	defer func() { s.record(ctx, model.AuditActionBan, id, actorID, err) }()

	if err := model.ValidateID("user", in.User); err != nil {
		return nil, err
	}
	if in.User == actorID {
		return nil, model.NewInvalidRequestError("you cannot ban yourself")
	}
	if !in.Permanent && in.Until == nil {
		return nil, model.NewInvalidRequestError("until is required for a temporary ban")
	}

	c, err = s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsModerator(actorID) {
		return nil, model.NewNotModeratorError()
	}

	ban := model.Ban{
		User:      in.User,
		Note:      in.Note,
		Reason:    in.Reason,
		Message:   in.Message,
		Until:     in.Until,
		Permanent: in.Permanent,
	}
	if err := s.repo.AddBan(ctx, c.ID, ban); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewCommunityNotFoundError()
		}
		return nil, fmt.Errorf("追放の登録に失敗しました: %w", err)
	}

	s.logger.Info("ユーザーを追放しました",
		slog.String("community_id", c.ID),
		slog.String("user_id", in.User),
		slog.String("moderator_id", actorID),
		slog.Bool("permanent", in.Permanent),
	)
	return s.reload(ctx, c.ID)
}

func (s *Service) reload(ctx context.Context, id string) (*model.Community, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("コミュニティの再取得に失敗しました: %w", err)
	}
	if c == nil {
		return nil, model.NewCommunityNotFoundError()
	}
	return c, nil
}
