package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/agora/internal/model"
	"github.com/lib/pq"
)

const postColumns = `id, title, content, image, url, url_data, categories,
	posted_to, posted_by, votes, hide_votes, drafted, comments,
	created_at, updated_at`

// visiblePostsFilter は下書きを除き、非公開コミュニティの投稿をメンバーに限定する条件。
// $1 は閲覧者のユーザーID。
const visiblePostsFilter = `p.drafted = false AND (c.privacy <> 'private' OR $1 = ANY(c.members))`

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// postRow はpostsテーブルの1行をスキャンするための中間表現。
type postRow struct {
	p                    model.Post
	categories, comments pq.StringArray
}

func (row *postRow) dest() []interface{} {
	p := &row.p
	return []interface{}{
		&p.ID, &p.Title, &p.Content, &p.Image, &p.URL, &p.URLData, &row.categories,
		&p.PostedTo, &p.PostedBy, &p.Votes, &p.HideVotes, &p.Drafted, &row.comments,
		&p.CreatedAt, &p.UpdatedAt,
	}
}

func (row *postRow) build() *model.Post {
	p := row.p
	p.Categories = []string(row.categories)
	p.Comments = []string(row.comments)
	return &p
}

func (r *PostgresPostRepo) findOne(ctx context.Context, where string, arg interface{}) (*model.Post, error) {
	var row postRow
	err := r.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE `+where,
		arg,
	).Scan(row.dest()...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}
	return row.build(), nil
}

// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	return r.findOne(ctx, `id = $1`, id)
}

// FindByTitle はタイトルで投稿を検索する。
func (r *PostgresPostRepo) FindByTitle(ctx context.Context, title string) (*model.Post, error) {
	return r.findOne(ctx, `lower(title) = lower($1)`, title)
}

// ListVisible は閲覧可能な投稿を投稿者・投稿先付きで新しい順に返す。
// 同時刻の投稿はIDの降順で並べる。
func (r *PostgresPostRepo) ListVisible(ctx context.Context, viewerID string, page model.PageRequest) ([]*model.PostSummary, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM posts p
		 INNER JOIN communities c ON c.id = p.posted_to
		 WHERE `+visiblePostsFilter,
		viewerID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count visible posts: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+prefixColumns(postColumns, "p")+`, u.username, `+prefixColumns(communityColumns, "c")+`
		 FROM posts p
		 INNER JOIN communities c ON c.id = p.posted_to
		 LEFT JOIN users u ON u.id = p.posted_by
		 WHERE `+visiblePostsFilter+`
		 ORDER BY p.created_at DESC, p.id DESC
		 LIMIT $2 OFFSET $3`,
		viewerID, page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list visible posts: %w", err)
	}
	defer rows.Close()

	var summaries []*model.PostSummary
	for rows.Next() {
		var pr postRow
		var cr communityRow
		var username sql.NullString

		dest := append(pr.dest(), &username)
		dest = append(dest, cr.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, fmt.Errorf("failed to scan post: %w", err)
		}

		community, err := cr.build()
		if err != nil {
			return nil, 0, err
		}
		post := pr.build()

		summary := &model.PostSummary{Post: *post, Community: community}
		if username.Valid {
			summary.Author = &model.UserProfile{ID: post.PostedBy, Username: username.String}
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return summaries, total, nil
}

// Create は投稿を作成し、投稿先コミュニティのpostsCountを同一トランザクションで増やす。
func (r *PostgresPostRepo) Create(ctx context.Context, p *model.Post) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO posts (`+postColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		p.ID, p.Title, p.Content, p.Image, p.URL, p.URLData, stringArray(p.Categories),
		p.PostedTo, p.PostedBy, p.Votes, p.HideVotes, p.Drafted, stringArray(p.Comments),
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return mapWriteError(err, "failed to insert post")
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE communities SET posts_count = posts_count + 1 WHERE id = $1`,
		p.PostedTo,
	)
	if err != nil {
		return fmt.Errorf("failed to increment posts count: %w", err)
	}
	if err := requireAffected(result, "increment posts count"); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Update は投稿の編集可能な項目を更新する。
func (r *PostgresPostRepo) Update(ctx context.Context, p *model.Post) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE posts SET
		   title = $2, content = $3, image = $4, url = $5, categories = $6,
		   hide_votes = $7, drafted = $8, updated_at = $9
		 WHERE id = $1`,
		p.ID, p.Title, p.Content, p.Image, p.URL, stringArray(p.Categories),
		p.HideVotes, p.Drafted, p.UpdatedAt,
	)
	if err != nil {
		return mapWriteError(err, "failed to update post")
	}
	return requireAffected(result, "update post")
}

// Delete は投稿を削除し、投稿先コミュニティのpostsCountを減らす。
// コメントは削除しない。
func (r *PostgresPostRepo) Delete(ctx context.Context, p *model.Post) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, p.ID)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	if err := requireAffected(result, "delete post"); err != nil {
		return err
	}

	// コミュニティが既に削除されている場合は更新対象がなくてもよい
	if _, err := tx.ExecContext(ctx,
		`UPDATE communities SET posts_count = GREATEST(posts_count - 1, 0) WHERE id = $1`,
		p.PostedTo,
	); err != nil {
		return fmt.Errorf("failed to decrement posts count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
