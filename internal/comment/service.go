// Package comment はコメントのドメインロジックを提供する。
package comment

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
	"github.com/hitoshi/agora/internal/security"
)

// CreateInput はコメント作成の入力。
type CreateInput struct {
	Body      string
	HideVotes bool
	Parent    model.ParentRef
}

// UpdateInput はコメント更新の入力。nilの項目は変更しない。
type UpdateInput struct {
	Body      *string
	HideVotes *bool
}

// Repositories はコメントサービスが参照するリポジトリ群。
// PostsとCommunitiesは親投稿の閲覧可否の判定に使う。
type Repositories struct {
	Comments    repository.CommentRepository
	Posts       repository.PostRepository
	Communities repository.CommunityRepository
}

// Service はコメントのサービス層。
// 取得・更新・削除は自分のコメントに限られ、他人のコメントは存在しないものとして扱う。
type Service struct {
	repo      repository.CommentRepository
	posts     repository.PostRepository
	comms     repository.CommunityRepository
	sanitizer security.ContentSanitizer
	recorder  audit.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repos Repositories, sanitizer security.ContentSanitizer, recorder audit.Recorder, logger *slog.Logger) *Service {
	return &Service{
		repo:      repos.Comments,
		posts:     repos.Posts,
		comms:     repos.Communities,
		sanitizer: sanitizer,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) record(ctx context.Context, action model.AuditAction, modelID, actorID string, err error) {
	s.recorder.Record(ctx, audit.NewEntry(action, model.AuditResourceComment, modelID, actorID, err))
}

// Create はコメントを作成し、親の投稿またはコメントに追加する。
// 親を指定しないコメントも作成できるが、どのスレッドにも表示されない。
func (s *Service) Create(ctx context.Context, actorID string, in CreateInput) (c *model.Comment, err error) {
	var id string
	defer func() { s.record(ctx, model.AuditActionCreate, id, actorID, err) }()

	body := s.sanitizer.StripTags(in.Body)
	if body == "" {
		return nil, model.NewInvalidRequestError("body is required")
	}
	switch in.Parent.Kind {
	case model.ParentPost:
		if err := model.ValidateID("post", in.Parent.ID); err != nil {
			return nil, err
		}
		if err := s.checkPostVisible(ctx, actorID, in.Parent.ID); err != nil {
			return nil, err
		}
	case model.ParentComment:
		if err := model.ValidateID("comment", in.Parent.ID); err != nil {
			return nil, err
		}
		if err := s.checkReplyTarget(ctx, actorID, in.Parent.ID); err != nil {
			return nil, err
		}
	case model.ParentNone:
		s.logger.Warn("親のないコメントを作成します",
			slog.String("user_id", actorID),
		)
	default:
		return nil, model.NewInvalidRequestError("unknown comment parent")
	}

	now := s.now()
	c = &model.Comment{
		ID:        uuid.NewString(),
		Body:      body,
		PostedBy:  actorID,
		HideVotes: in.HideVotes,
		Replies:   []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, c, in.Parent); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if in.Parent.Kind == model.ParentComment {
				return nil, model.NewCommentNotFoundError()
			}
			return nil, model.NewPostNotFoundError()
		}
		return nil, fmt.Errorf("コメントの作成に失敗しました: %w", err)
	}
	id = c.ID
	return c, nil
}

// checkPostVisible は投稿に閲覧者がコメントできるかを検査する。
// 存在しない投稿と他人の下書きは区別せずNotFound、
// 参加していない非公開コミュニティの投稿はForbiddenとする。
func (s *Service) checkPostVisible(ctx context.Context, actorID, postID string) error {
	p, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if p == nil || !p.VisibleTo(actorID) {
		return model.NewPostNotFoundError()
	}
	c, err := s.comms.FindByID(ctx, p.PostedTo)
	if err != nil {
		return fmt.Errorf("コミュニティの取得に失敗しました: %w", err)
	}
	if c == nil {
		return model.NewPostNotFoundError()
	}
	if !c.VisibleTo(actorID) {
		return model.NewPrivateCommunityError()
	}
	return nil
}

// checkReplyTarget は返信先コメントの存在と、その投稿の閲覧可否を検査する。
// 投稿に属さない親コメントへの返信は投稿の検査を行わない。
func (s *Service) checkReplyTarget(ctx context.Context, actorID, parentID string) error {
	parents, err := s.repo.FindByIDs(ctx, []string{parentID})
	if err != nil {
		return fmt.Errorf("親コメントの取得に失敗しました: %w", err)
	}
	if len(parents) == 0 {
		return model.NewCommentNotFoundError()
	}
	if parents[0].PostID == "" {
		return nil
	}
	return s.checkPostVisible(ctx, actorID, parents[0].PostID)
}

// GetAll は投稿に付いた自分のコメントを古い順に返す。
// 該当がない場合はNotFoundを返す。
func (s *Service) GetAll(ctx context.Context, actorID, postID string) (cs []*model.Comment, err error) {
	defer func() { s.record(ctx, model.AuditActionView, model.ModelIDAll, actorID, err) }()

	if err := model.ValidateID("post", postID); err != nil {
		return nil, err
	}
	cs, err = s.repo.ListByPostAndAuthor(ctx, postID, actorID)
	if err != nil {
		return nil, fmt.Errorf("コメント一覧の取得に失敗しました: %w", err)
	}
	if len(cs) == 0 {
		return nil, model.NewNoCommentsError()
	}
	return cs, nil
}

// findOwned はIDを検証して自分のコメントを取得する。
func (s *Service) findOwned(ctx context.Context, actorID, id string) (*model.Comment, error) {
	if err := model.ValidateID("comment", id); err != nil {
		return nil, err
	}
	c, err := s.repo.FindOwned(ctx, id, actorID)
	if err != nil {
		return nil, fmt.Errorf("コメントの取得に失敗しました: %w", err)
	}
	if c == nil {
		return nil, model.NewCommentNotFoundError()
	}
	return c, nil
}

// Get は自分のコメントを返す。
func (s *Service) Get(ctx context.Context, actorID, id string) (c *model.Comment, err error) {
	defer func() { s.record(ctx, model.AuditActionView, id, actorID, err) }()
	return s.findOwned(ctx, actorID, id)
}

// Update は自分のコメントを部分更新する。
func (s *Service) Update(ctx context.Context, actorID, id string, in UpdateInput) (c *model.Comment, err error) {
	defer func() { s.record(ctx, model.AuditActionUpdate, id, actorID, err) }()

	c, err = s.findOwned(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	if in.Body != nil {
		body := s.sanitizer.StripTags(*in.Body)
		if body == "" {
			return nil, model.NewInvalidRequestError("body must not be empty")
		}
		c.Body = body
	}
	if in.HideVotes != nil {
		c.HideVotes = *in.HideVotes
	}
	c.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, c); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewCommentNotFoundError()
		}
		return nil, fmt.Errorf("コメントの更新に失敗しました: %w", err)
	}
	return c, nil
}

// Delete は自分のコメントを削除し、親の一覧から取り除く。
func (s *Service) Delete(ctx context.Context, actorID, id string) (err error) {
	defer func() { s.record(ctx, model.AuditActionDelete, id, actorID, err) }()

	c, err := s.findOwned(ctx, actorID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, c); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewCommentNotFoundError()
		}
		return fmt.Errorf("コメントの削除に失敗しました: %w", err)
	}
	return nil
}
