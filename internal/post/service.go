// Package post は投稿のドメインロジックを提供する。
package post

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/agora/internal/audit"
	"github.com/hitoshi/agora/internal/model"
	"github.com/hitoshi/agora/internal/repository"
	"github.com/hitoshi/agora/internal/security"
)

// Observer は投稿作成の計測インターフェース。
type Observer interface {
	RecordPostCreated()
}

// CreateInput は投稿作成の入力。PostedToはコミュニティIDまたはユーザー名。
type CreateInput struct {
	Title      string
	Content    string
	Image      string
	URL        string
	Categories []string
	PostedTo   string
	HideVotes  bool
	Drafted    bool
}

// UpdateInput は投稿更新の入力。nilの項目は変更しない。
type UpdateInput struct {
	Title      *string
	Content    *string
	Image      *string
	URL        *string
	Categories *[]string
	HideVotes  *bool
	Drafted    *bool
}

// Repositories は投稿サービスが参照するリポジトリ群。
type Repositories struct {
	Posts       repository.PostRepository
	Communities repository.CommunityRepository
	Users       repository.UserRepository
	Comments    repository.CommentRepository
}

// Service は投稿のサービス層。
// 作成・閲覧時のメンバー判定、一覧の公開範囲フィルタ、変更時の投稿者判定を行う。
type Service struct {
	repos     Repositories
	sanitizer security.ContentSanitizer
	recorder  audit.Recorder
	observer  Observer
	urls      *URLBuilder
	logger    *slog.Logger
	maxLimit  int
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repos Repositories,
	sanitizer security.ContentSanitizer,
	recorder audit.Recorder,
	observer Observer,
	urls *URLBuilder,
	logger *slog.Logger,
	maxLimit int,
) *Service {
	return &Service{
		repos:     repos,
		sanitizer: sanitizer,
		recorder:  recorder,
		observer:  observer,
		urls:      urls,
		logger:    logger,
		maxLimit:  maxLimit,
		now:       time.Now,
	}
}

func (s *Service) record(ctx context.Context, action model.AuditAction, modelID, actorID string, err error) {
	s.recorder.Record(ctx, audit.NewEntry(action, model.AuditResourcePost, modelID, actorID, err))
}

// checkTitle はタイトルが他の投稿と重複しないことを検査する。
func (s *Service) checkTitle(ctx context.Context, title, selfID string) error {
	existing, err := s.repos.Posts.FindByTitle(ctx, title)
	if err != nil {
		return fmt.Errorf("投稿の検索に失敗しました: %w", err)
	}
	if existing != nil && existing.ID != selfID {
		return model.NewPostExistsError()
	}
	return nil
}

// Create は投稿を作成する。投稿者は投稿先コミュニティのメンバーでなければならない。
// 作成時に正規URLを設定し、コミュニティの投稿数を1増やす。
func (s *Service) Create(ctx context.Context, actorID string, in CreateInput) (p *model.Post, err error) {
	var id string
	defer func() { s.record(ctx, model.AuditActionCreate, id, actorID, err) }()

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, model.NewInvalidRequestError("title is required")
	}
	if strings.TrimSpace(in.PostedTo) == "" {
		return nil, model.NewInvalidRequestError("postedTo is required")
	}
	if err := s.checkTitle(ctx, title, ""); err != nil {
		return nil, err
	}

	c, err := s.repos.Communities.FindByIDOrUsername(ctx, strings.TrimSpace(in.PostedTo))
	if err != nil {
		return nil, fmt.Errorf("コミュニティの取得に失敗しました: %w", err)
	}
	if c == nil {
		return nil, model.NewCommunityNotFoundError()
	}
	if !c.IsMember(actorID) {
		return nil, model.NewNotMemberError()
	}

	now := s.now()
	p = &model.Post{
		ID:         uuid.NewString(),
		Title:      title,
		Content:    s.sanitizer.Sanitize(in.Content),
		Image:      in.Image,
		URL:        in.URL,
		Categories: in.Categories,
		PostedTo:   c.ID,
		PostedBy:   actorID,
		HideVotes:  in.HideVotes,
		Drafted:    in.Drafted,
		Comments:   []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	p.URLData = s.urls.PostURL(p.ID)

	if err := s.repos.Posts.Create(ctx, p); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, model.NewPostExistsError()
		case errors.Is(err, repository.ErrNotFound):
			return nil, model.NewCommunityNotFoundError()
		}
		return nil, fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}
	id = p.ID
	s.observer.RecordPostCreated()

	s.logger.Info("投稿を作成しました",
		slog.String("post_id", p.ID),
		slog.String("community_id", c.ID),
		slog.String("user_id", actorID),
	)
	return p, nil
}

// findVisible はIDを検証して投稿を取得する。
// 存在しない投稿と他人の下書きは区別せずNotFoundを返す。
func (s *Service) findVisible(ctx context.Context, actorID, id string) (*model.Post, error) {
	if err := model.ValidateID("post", id); err != nil {
		return nil, err
	}
	p, err := s.repos.Posts.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if p == nil || !p.VisibleTo(actorID) {
		return nil, model.NewPostNotFoundError()
	}
	return p, nil
}

// Get は投稿を投稿者・投稿先・コメントとともに返す。
// 非公開コミュニティの投稿はメンバーのみ閲覧できる。
func (s *Service) Get(ctx context.Context, actorID, id string) (d *model.PostDetail, err error) {
	defer func() { s.record(ctx, model.AuditActionView, id, actorID, err) }()

	p, err := s.findVisible(ctx, actorID, id)
	if err != nil {
		return nil, err
	}

	c, err := s.repos.Communities.FindByID(ctx, p.PostedTo)
	if err != nil {
		return nil, fmt.Errorf("コミュニティの取得に失敗しました: %w", err)
	}
	if c == nil {
		// 投稿先が削除済みの投稿は公開範囲を判定できないため表示しない
		return nil, model.NewPostNotFoundError()
	}
	if !c.VisibleTo(actorID) {
		return nil, model.NewPrivateCommunityError()
	}

	author, err := s.repos.Users.FindByID(ctx, p.PostedBy)
	if err != nil {
		return nil, fmt.Errorf("投稿者の取得に失敗しました: %w", err)
	}
	comments, err := s.repos.Comments.FindByIDs(ctx, p.Comments)
	if err != nil {
		return nil, fmt.Errorf("コメントの取得に失敗しました: %w", err)
	}
	if comments == nil {
		comments = []*model.Comment{}
	}

	return &model.PostDetail{
		Post:        *p,
		Author:      author.Profile(),
		Community:   c,
		CommentList: comments,
	}, nil
}

// List は閲覧可能な投稿を新しい順にページングして返す。
// 下書きと、メンバーでない非公開コミュニティの投稿は件数にも含まれない。
func (s *Service) List(ctx context.Context, actorID string, req model.PageRequest) (page *model.Page[*model.PostSummary], err error) {
	defer func() { s.record(ctx, model.AuditActionView, model.ModelIDAll, actorID, err) }()

	req = req.Normalize(s.maxLimit)
	posts, total, err := s.repos.Posts.ListVisible(ctx, actorID, req)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	return model.NewPage(posts, total, req), nil
}

// Update は投稿を部分更新する。投稿者のみ実行できる。
func (s *Service) Update(ctx context.Context, actorID, id string, in UpdateInput) (p *model.Post, err error) {
	defer func() { s.record(ctx, model.AuditActionUpdate, id, actorID, err) }()

	p, err = s.findVisible(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	if p.PostedBy != actorID {
		return nil, model.NewNotPostOwnerError()
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, model.NewInvalidRequestError("title must not be empty")
		}
		if err := s.checkTitle(ctx, title, p.ID); err != nil {
			return nil, err
		}
		p.Title = title
	}
	if in.Content != nil {
		p.Content = s.sanitizer.Sanitize(*in.Content)
	}
	if in.Image != nil {
		p.Image = *in.Image
	}
	if in.URL != nil {
		p.URL = *in.URL
	}
	if in.Categories != nil {
		p.Categories = *in.Categories
	}
	if in.HideVotes != nil {
		p.HideVotes = *in.HideVotes
	}
	if in.Drafted != nil {
		p.Drafted = *in.Drafted
	}
	p.UpdatedAt = s.now()

	if err := s.repos.Posts.Update(ctx, p); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, model.NewPostExistsError()
		case errors.Is(err, repository.ErrNotFound):
			return nil, model.NewPostNotFoundError()
		}
		return nil, fmt.Errorf("投稿の更新に失敗しました: %w", err)
	}
	return p, nil
}

// Delete は投稿を削除する。投稿者のみ実行でき、コミュニティの投稿数を1減らす。
func (s *Service) Delete(ctx context.Context, actorID, id string) (err error) {
	defer func() { s.record(ctx, model.AuditActionDelete, id, actorID, err) }()

	p, err := s.findVisible(ctx, actorID, id)
	if err != nil {
		return err
	}
	if p.PostedBy != actorID {
		return model.NewNotPostOwnerError()
	}
	if err := s.repos.Posts.Delete(ctx, p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewPostNotFoundError()
		}
		return fmt.Errorf("投稿の削除に失敗しました: %w", err)
	}

	s.logger.Info("投稿を削除しました",
		slog.String("post_id", p.ID),
		slog.String("user_id", actorID),
	)
	return nil
}
