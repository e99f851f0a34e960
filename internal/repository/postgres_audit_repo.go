package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/agora/internal/model"
)

const auditLogColumns = `id, action, resource, model_id, user_id, outcome, created_at`

// PostgresAuditLogRepo はPostgreSQLを使用した監査ログリポジトリ。
type PostgresAuditLogRepo struct {
	db *sql.DB
}

// NewPostgresAuditLogRepo はPostgresAuditLogRepoを生成する。
func NewPostgresAuditLogRepo(db *sql.DB) *PostgresAuditLogRepo {
	return &PostgresAuditLogRepo{db: db}
}

// Create は監査ログを追記する。
func (r *PostgresAuditLogRepo) Create(ctx context.Context, log *model.AuditLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (`+auditLogColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		log.ID, string(log.Action), string(log.Resource), log.ModelID, log.UserID, string(log.Outcome), log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// List は作成日時の降順で監査ログを返す。
func (r *PostgresAuditLogRepo) List(ctx context.Context, page model.PageRequest) ([]*model.AuditLog, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM audit_logs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+auditLogColumns+` FROM audit_logs
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*model.AuditLog
	for rows.Next() {
		l := &model.AuditLog{}
		var action, resource, outcome string
		if err := rows.Scan(&l.ID, &action, &resource, &l.ModelID, &l.UserID, &outcome, &l.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit log: %w", err)
		}
		l.Action = model.AuditAction(action)
		l.Resource = model.AuditResource(resource)
		l.Outcome = model.AuditOutcome(outcome)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate audit logs: %w", err)
	}
	return logs, total, nil
}

// compile-time interface check
var _ AuditLogRepository = (*PostgresAuditLogRepo)(nil)

