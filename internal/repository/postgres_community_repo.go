package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/hitoshi/agora/internal/model"
	"github.com/lib/pq"
)

const communityColumns = `id, name, username, description, image, cover, privacy,
	members, moderators, invited_moderators, pending_members, banned,
	flairs, rules, categories, theme, posts_count, members_count,
	created_by, created_at, updated_at`

// PostgresCommunityRepo はPostgreSQLを使用したコミュニティリポジトリ。
// メンバー集合はTEXT[]、追放情報や参加申請などの入れ子構造はJSONBで保持する。
type PostgresCommunityRepo struct {
	db *sql.DB
}

// NewPostgresCommunityRepo はPostgresCommunityRepoを生成する。
func NewPostgresCommunityRepo(db *sql.DB) *PostgresCommunityRepo {
	return &PostgresCommunityRepo{db: db}
}

// communityRow はcommunitiesテーブルの1行をスキャンするための中間表現。
// JOINクエリでも同じ列順で再利用する。
type communityRow struct {
	c                                          model.Community
	privacy                                    string
	members, moderators, invited, rules, categ pq.StringArray
	pending, banned, flairs, theme             []byte
}

func (row *communityRow) dest() []interface{} {
	c := &row.c
	return []interface{}{
		&c.ID, &c.Name, &c.Username, &c.Description, &c.Image, &c.Cover, &row.privacy,
		&row.members, &row.moderators, &row.invited, &row.pending, &row.banned,
		&row.flairs, &row.rules, &row.categ, &row.theme, &c.PostsCount, &c.MembersCount,
		&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	}
}

func (row *communityRow) build() (*model.Community, error) {
	c := row.c
	c.Privacy = model.Privacy(row.privacy)
	c.Members = []string(row.members)
	c.Moderators = []string(row.moderators)
	c.InvitedModerators = []string(row.invited)
	c.Rules = []string(row.rules)
	c.Categories = []string(row.categ)

	if err := fromJSONB(row.pending, &c.PendingMembers); err != nil {
		return nil, err
	}
	if err := fromJSONB(row.banned, &c.Banned); err != nil {
		return nil, err
	}
	if err := fromJSONB(row.flairs, &c.Flairs); err != nil {
		return nil, err
	}
	if err := fromJSONB(row.theme, &c.Theme); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanCommunity(s rowScanner) (*model.Community, error) {
	var row communityRow
	if err := s.Scan(row.dest()...); err != nil {
		return nil, err
	}
	return row.build()
}

func (r *PostgresCommunityRepo) findOne(ctx context.Context, where string, arg interface{}) (*model.Community, error) {
	c, err := scanCommunity(r.db.QueryRowContext(ctx,
		`SELECT `+communityColumns+` FROM communities WHERE `+where,
		arg,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find community: %w", err)
	}
	return c, nil
}

// FindByID は指定IDのコミュニティを取得する。見つからない場合はnilを返す。
func (r *PostgresCommunityRepo) FindByID(ctx context.Context, id string) (*model.Community, error) {
	return r.findOne(ctx, `id = $1`, id)
}

// FindByName は名前でコミュニティを検索する。
func (r *PostgresCommunityRepo) FindByName(ctx context.Context, name string) (*model.Community, error) {
	return r.findOne(ctx, `lower(name) = lower($1)`, name)
}

// FindByUsername はユーザー名でコミュニティを検索する。
func (r *PostgresCommunityRepo) FindByUsername(ctx context.Context, username string) (*model.Community, error) {
	return r.findOne(ctx, `lower(username) = lower($1)`, username)
}

// FindByIDOrUsername はrefがUUID形式ならIDで、見つからなければユーザー名で検索する。
func (r *PostgresCommunityRepo) FindByIDOrUsername(ctx context.Context, ref string) (*model.Community, error) {
	if _, err := uuid.Parse(ref); err == nil {
		c, err := r.FindByID(ctx, ref)
		if err != nil || c != nil {
			return c, err
		}
	}
	return r.FindByUsername(ctx, ref)
}

// List は作成日時の降順でコミュニティを返す。
func (r *PostgresCommunityRepo) List(ctx context.Context, page model.PageRequest) ([]*model.Community, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM communities`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count communities: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+communityColumns+` FROM communities
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list communities: %w", err)
	}
	defer rows.Close()

	var communities []*model.Community
	for rows.Next() {
		c, err := scanCommunity(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan community: %w", err)
		}
		communities = append(communities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate communities: %w", err)
	}
	return communities, total, nil
}

// Create はコミュニティを作成する。
func (r *PostgresCommunityRepo) Create(ctx context.Context, c *model.Community) error {
	pending, err := toJSONB(nonNilPending(c.PendingMembers))
	if err != nil {
		return err
	}
	banned, err := toJSONB(nonNilBans(c.Banned))
	if err != nil {
		return err
	}
	flairs, err := toJSONB(nonNilFlairs(c.Flairs))
	if err != nil {
		return err
	}
	theme, err := toJSONB(c.Theme)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO communities (`+communityColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		c.ID, c.Name, c.Username, c.Description, c.Image, c.Cover, string(c.Privacy),
		stringArray(c.Members), stringArray(c.Moderators), stringArray(c.InvitedModerators), pending, banned,
		flairs, stringArray(c.Rules), stringArray(c.Categories), theme, c.PostsCount, c.MembersCount,
		c.CreatedBy, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return mapWriteError(err, "failed to insert community")
	}
	return nil
}

// Update はコミュニティのプロフィール項目を更新する。
func (r *PostgresCommunityRepo) Update(ctx context.Context, c *model.Community) error {
	flairs, err := toJSONB(nonNilFlairs(c.Flairs))
	if err != nil {
		return err
	}
	theme, err := toJSONB(c.Theme)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE communities SET
		   name = $2, username = $3, description = $4, image = $5, cover = $6,
		   privacy = $7, flairs = $8, rules = $9, categories = $10, theme = $11,
		   updated_at = $12
		 WHERE id = $1`,
		c.ID, c.Name, c.Username, c.Description, c.Image, c.Cover,
		string(c.Privacy), flairs, stringArray(c.Rules), stringArray(c.Categories), theme,
		c.UpdatedAt,
	)
	if err != nil {
		return mapWriteError(err, "failed to update community")
	}
	return requireAffected(result, "update community")
}

// Delete はコミュニティを削除する。
func (r *PostgresCommunityRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM communities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete community: %w", err)
	}
	return requireAffected(result, "delete community")
}

// AddMember はuserIDをメンバーに追加する。
func (r *PostgresCommunityRepo) AddMember(ctx context.Context, id, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE communities SET
		   members = array_append(members, $2),
		   members_count = members_count + 1,
		   updated_at = now()
		 WHERE id = $1 AND NOT ($2 = ANY(members))`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to add member: %w", err)
	}
	return affected(result)
}

// RemoveMember はuserIDをメンバーとモデレーターから外す。
func (r *PostgresCommunityRepo) RemoveMember(ctx context.Context, id, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE communities SET
		   members = array_remove(members, $2),
		   moderators = array_remove(moderators, $2),
		   members_count = GREATEST(members_count - 1, 0),
		   updated_at = now()
		 WHERE id = $1 AND $2 = ANY(members)`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove member: %w", err)
	}
	return affected(result)
}

// AddPendingMember は参加申請を追加する。
func (r *PostgresCommunityRepo) AddPendingMember(ctx context.Context, id string, pending model.PendingMember) (bool, error) {
	entry, err := toJSONB([]model.PendingMember{pending})
	if err != nil {
		return false, err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE communities SET
		   pending_members = pending_members || $2::jsonb,
		   updated_at = now()
		 WHERE id = $1
		   AND NOT ($3 = ANY(members))
		   AND NOT pending_members @> jsonb_build_array(jsonb_build_object('user', $3::text))`,
		id, entry, pending.User,
	)
	if err != nil {
		return false, fmt.Errorf("failed to add pending member: %w", err)
	}
	return affected(result)
}

// ApprovePendingMember は参加申請を取り除き、メンバーに追加する。
func (r *PostgresCommunityRepo) ApprovePendingMember(ctx context.Context, id, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE communities SET
		   pending_members = COALESCE(
		     (SELECT jsonb_agg(e) FROM jsonb_array_elements(pending_members) e WHERE e->>'user' <> $2),
		     '[]'::jsonb),
		   members = array_append(members, $2),
		   members_count = members_count + 1,
		   updated_at = now()
		 WHERE id = $1
		   AND NOT ($2 = ANY(members))
		   AND pending_members @> jsonb_build_array(jsonb_build_object('user', $2::text))`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to approve pending member: %w", err)
	}
	return affected(result)
}

// AddBan は追放情報を追加し、対象をメンバー・モデレーター・参加申請から外す。
func (r *PostgresCommunityRepo) AddBan(ctx context.Context, id string, ban model.Ban) error {
	entry, err := toJSONB([]model.Ban{ban})
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE communities SET
		   banned = banned || $2::jsonb,
		   members_count = CASE WHEN $3 = ANY(members) THEN GREATEST(members_count - 1, 0) ELSE members_count END,
		   members = array_remove(members, $3),
		   moderators = array_remove(moderators, $3),
		   pending_members = COALESCE(
		     (SELECT jsonb_agg(e) FROM jsonb_array_elements(pending_members) e WHERE e->>'user' <> $3),
		     '[]'::jsonb),
		   updated_at = now()
		 WHERE id = $1`,
		id, entry, ban.User,
	)
	if err != nil {
		return fmt.Errorf("failed to add ban: %w", err)
	}
	return requireAffected(result, "add ban")
}

func nonNilPending(p []model.PendingMember) []model.PendingMember {
	if p == nil {
		return []model.PendingMember{}
	}
	return p
}

func nonNilBans(b []model.Ban) []model.Ban {
	if b == nil {
		return []model.Ban{}
	}
	return b
}

func nonNilFlairs(f map[string]string) map[string]string {
	if f == nil {
		return map[string]string{}
	}
	return f
}

// compile-time interface check
var _ CommunityRepository = (*PostgresCommunityRepo)(nil)
