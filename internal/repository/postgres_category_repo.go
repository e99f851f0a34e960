package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/agora/internal/model"
)

const categoryColumns = `id, name, value, created_at, updated_at`

// PostgresCategoryRepo はPostgreSQLを使用したカテゴリリポジトリ。
type PostgresCategoryRepo struct {
	db *sql.DB
}

// NewPostgresCategoryRepo はPostgresCategoryRepoを生成する。
func NewPostgresCategoryRepo(db *sql.DB) *PostgresCategoryRepo {
	return &PostgresCategoryRepo{db: db}
}

func scanCategory(s rowScanner) (*model.Category, error) {
	c := &model.Category{}
	if err := s.Scan(&c.ID, &c.Name, &c.Value, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresCategoryRepo) findOne(ctx context.Context, where string, arg interface{}) (*model.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE `+where,
		arg,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find category: %w", err)
	}
	return c, nil
}

// FindByID は指定IDのカテゴリを取得する。見つからない場合はnilを返す。
func (r *PostgresCategoryRepo) FindByID(ctx context.Context, id string) (*model.Category, error) {
	return r.findOne(ctx, `id = $1`, id)
}

// FindByName は名前でカテゴリを検索する。
func (r *PostgresCategoryRepo) FindByName(ctx context.Context, name string) (*model.Category, error) {
	return r.findOne(ctx, `lower(name) = lower($1)`, name)
}

// List は名前順で全カテゴリを返す。
func (r *PostgresCategoryRepo) List(ctx context.Context) ([]*model.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories ORDER BY lower(name) ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []*model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}
	return categories, nil
}

// Create はカテゴリを作成する。
func (r *PostgresCategoryRepo) Create(ctx context.Context, c *model.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (`+categoryColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Name, c.Value, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return mapWriteError(err, "failed to insert category")
	}
	return nil
}

// Update はカテゴリを更新する。
func (r *PostgresCategoryRepo) Update(ctx context.Context, c *model.Category) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = $2, value = $3, updated_at = $4 WHERE id = $1`,
		c.ID, c.Name, c.Value, c.UpdatedAt,
	)
	if err != nil {
		return mapWriteError(err, "failed to update category")
	}
	return requireAffected(result, "update category")
}

// Delete はカテゴリを削除する。
func (r *PostgresCategoryRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return requireAffected(result, "delete category")
}

// compile-time interface check
var _ CategoryRepository = (*PostgresCategoryRepo)(nil)
