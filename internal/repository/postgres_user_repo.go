package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/agora/internal/model"
	"github.com/lib/pq"
)

const userColumns = `id, username, email, password_hash, token, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

func scanUser(s rowScanner) (*model.User, error) {
	user := &model.User{}
	err := s.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Token, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *PostgresUserRepo) findOne(ctx context.Context, where string, arg interface{}) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where,
		arg,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, `id = $1`, id)
}

// FindByEmail はメールアドレスでユーザーを検索する。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, `lower(email) = lower($1)`, email)
}

// FindByUsername はユーザー名でユーザーを検索する。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, `lower(username) = lower($1)`, username)
}

// FindProfiles は指定IDのユーザーの公開プロフィールを返す。
func (r *PostgresUserRepo) FindProfiles(ctx context.Context, ids []string) (map[string]*model.UserProfile, error) {
	profiles := make(map[string]*model.UserProfile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, username FROM users WHERE id::text = ANY($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list user profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p := &model.UserProfile{}
		if err := rows.Scan(&p.ID, &p.Username); err != nil {
			return nil, fmt.Errorf("failed to scan user profile: %w", err)
		}
		profiles[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user profiles: %w", err)
	}
	return profiles, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, token, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.Token, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return mapWriteError(err, "failed to insert user")
	}
	return nil
}

// UpdateToken はユーザーのセッショントークンを更新する。
func (r *PostgresUserRepo) UpdateToken(ctx context.Context, id, token string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET token = $2, updated_at = now() WHERE id = $1`,
		id, token,
	)
	if err != nil {
		return fmt.Errorf("failed to update user token: %w", err)
	}
	return requireAffected(result, "update user token")
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
