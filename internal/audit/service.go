package audit

import (
	"context"
	"fmt"

	"github.com/hitoshi/agora/internal/model"
	"github.com/hitoshi/agora/internal/repository"
)

// Service は監査ログの参照を提供する。
type Service struct {
	repo     repository.AuditLogRepository
	maxLimit int
}

// NewService はServiceを生成する。
func NewService(repo repository.AuditLogRepository, maxLimit int) *Service {
	return &Service{repo: repo, maxLimit: maxLimit}
}

// List は監査ログを新しい順にページングして返す。
func (s *Service) List(ctx context.Context, req model.PageRequest) (*model.Page[*model.AuditLog], error) {
	req = req.Normalize(s.maxLimit)
	logs, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return model.NewPage(logs, total, req), nil
}
