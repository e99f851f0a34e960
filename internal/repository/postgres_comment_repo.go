package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/agora/internal/model"
	"github.com/lib/pq"
)

const commentColumns = `id, body, posted_by, post_id, parent_id, votes, hide_votes, replies, created_at, updated_at`

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db *sql.DB
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db *sql.DB) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

func scanComment(s rowScanner) (*model.Comment, error) {
	c := &model.Comment{}
	var postID, parentID sql.NullString
	var replies pq.StringArray
	err := s.Scan(&c.ID, &c.Body, &c.PostedBy, &postID, &parentID, &c.Votes, &c.HideVotes, &replies, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.PostID = nullStringValue(postID)
	c.ParentID = nullStringValue(parentID)
	c.Replies = []string(replies)
	return c, nil
}

func (r *PostgresCommentRepo) list(ctx context.Context, query string, args ...interface{}) ([]*model.Comment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []*model.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}
	return comments, nil
}

// FindByIDs は指定IDのコメントを作成日時の昇順で返す。
func (r *PostgresCommentRepo) FindByIDs(ctx context.Context, ids []string) ([]*model.Comment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.list(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE id::text = ANY($1) ORDER BY created_at ASC, id ASC`,
		pq.Array(ids),
	)
}

// FindOwned はuserIDが投稿したコメントを取得する。
func (r *PostgresCommentRepo) FindOwned(ctx context.Context, id, userID string) (*model.Comment, error) {
	c, err := scanComment(r.db.QueryRowContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE id = $1 AND posted_by = $2`,
		id, userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find comment: %w", err)
	}
	return c, nil
}

// ListByPostAndAuthor は投稿に付いたuserIDのコメントを返す。
func (r *PostgresCommentRepo) ListByPostAndAuthor(ctx context.Context, postID, userID string) ([]*model.Comment, error) {
	return r.list(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE post_id = $1 AND posted_by = $2 ORDER BY created_at ASC, id ASC`,
		postID, userID,
	)
}

// Create はコメントを作成し、親に登録する。
// 親の更新と挿入は同一トランザクションで行い、親がなければ何も残さない。
func (r *PostgresCommentRepo) Create(ctx context.Context, c *model.Comment, parent model.ParentRef) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	switch parent.Kind {
	case model.ParentPost:
		result, err := tx.ExecContext(ctx,
			`UPDATE posts SET comments = array_append(comments, $2) WHERE id = $1`,
			parent.ID, c.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to attach comment to post: %w", err)
		}
		if err := requireAffected(result, "attach comment to post"); err != nil {
			return err
		}
		c.PostID = parent.ID
		c.ParentID = ""

	case model.ParentComment:
		var postID sql.NullString
		err := tx.QueryRowContext(ctx,
			`UPDATE comments SET replies = array_append(replies, $2) WHERE id = $1 RETURNING post_id`,
			parent.ID, c.ID,
		).Scan(&postID)
		if err == sql.ErrNoRows {
			return fmt.Errorf("attach reply to comment: %w", ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to attach reply to comment: %w", err)
		}
		c.PostID = nullStringValue(postID)
		c.ParentID = parent.ID
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO comments (`+commentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.Body, c.PostedBy, nullString(c.PostID), nullString(c.ParentID),
		c.Votes, c.HideVotes, stringArray(c.Replies), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return mapWriteError(err, "failed to insert comment")
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Update はコメント本文と投票表示設定を更新する。
func (r *PostgresCommentRepo) Update(ctx context.Context, c *model.Comment) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE comments SET body = $2, hide_votes = $3, updated_at = $4 WHERE id = $1`,
		c.ID, c.Body, c.HideVotes, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	return requireAffected(result, "update comment")
}

// Delete はコメントを削除し、親の comments/replies から取り除く。
// 返信コメントは削除しない。
func (r *PostgresCommentRepo) Delete(ctx context.Context, c *model.Comment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, c.ID)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	if err := requireAffected(result, "delete comment"); err != nil {
		return err
	}

	parent := c.Parent()
	switch parent.Kind {
	case model.ParentComment:
		_, err = tx.ExecContext(ctx,
			`UPDATE comments SET replies = array_remove(replies, $2) WHERE id = $1`,
			parent.ID, c.ID,
		)
	case model.ParentPost:
		_, err = tx.ExecContext(ctx,
			`UPDATE posts SET comments = array_remove(comments, $2) WHERE id = $1`,
			parent.ID, c.ID,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to detach comment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CommentRepository = (*PostgresCommentRepo)(nil)
