// Package memstore はリポジトリインターフェースのインメモリ実装を提供する。
// 並行利用に安全で、主にテストとローカル検証に使用する。
// 読み書きのたびに値をコピーし、呼び出し側の変更がストアに漏れないようにする。
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/agora/internal/model"
	"github.com/hitoshi/agora/internal/repository"
)

// Store はすべてのコレクションを保持するインメモリストア。
type Store struct {
	mu          sync.RWMutex
	users       map[string]model.User
	communities map[string]model.Community
	posts       map[string]model.Post
	comments    map[string]model.Comment
	categories  map[string]model.Category
	auditLogs   []model.AuditLog
}

// New は空のストアを生成する。
func New() *Store {
	return &Store{
		users:       make(map[string]model.User),
		communities: make(map[string]model.Community),
		posts:       make(map[string]model.Post),
		comments:    make(map[string]model.Comment),
		categories:  make(map[string]model.Category),
	}
}

// Users はユーザーリポジトリを返す。
func (s *Store) Users() *UserRepo { return &UserRepo{s} }

// Communities はコミュニティリポジトリを返す。
func (s *Store) Communities() *CommunityRepo { return &CommunityRepo{s} }

// Posts は投稿リポジトリを返す。
func (s *Store) Posts() *PostRepo { return &PostRepo{s} }

// Comments はコメントリポジトリを返す。
func (s *Store) Comments() *CommentRepo { return &CommentRepo{s} }

// Categories はカテゴリリポジトリを返す。
func (s *Store) Categories() *CategoryRepo { return &CategoryRepo{s} }

// AuditLogs は監査ログリポジトリを返す。
func (s *Store) AuditLogs() *AuditLogRepo { return &AuditLogRepo{s} }

var (
	_ repository.UserRepository      = (*UserRepo)(nil)
	_ repository.CommunityRepository = (*CommunityRepo)(nil)
	_ repository.PostRepository      = (*PostRepo)(nil)
	_ repository.CommentRepository   = (*CommentRepo)(nil)
	_ repository.CategoryRepository  = (*CategoryRepo)(nil)
	_ repository.AuditLogRepository  = (*AuditLogRepo)(nil)
)

func key(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func duplicate(what string) error {
	return fmt.Errorf("%s: %w", what, repository.ErrDuplicate)
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, repository.ErrNotFound)
}

func paginate[T any](items []T, page model.PageRequest) []T {
	start := page.Offset()
	if start >= len(items) {
		return nil
	}
	end := min(start+page.Limit, len(items))
	return items[start:end]
}

// --- User ---------------------------------------------------------------

// UserRepo はrepository.UserRepositoryのインメモリ実装。
type UserRepo struct{ s *Store }

func (r *UserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepo) findBy(match func(model.User) bool) *model.User {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if match(u) {
			return &u
		}
	}
	return nil
}

func (r *UserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return r.findBy(func(u model.User) bool { return key(u.Email) == key(email) }), nil
}

func (r *UserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	return r.findBy(func(u model.User) bool { return key(u.Username) == key(username) }), nil
}

func (r *UserRepo) FindProfiles(_ context.Context, ids []string) (map[string]*model.UserProfile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[string]*model.UserProfile, len(ids))
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			out[id] = u.Profile()
		}
	}
	return out, nil
}

func (r *UserRepo) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if key(u.Email) == key(user.Email) || key(u.Username) == key(user.Username) {
			return duplicate("insert user")
		}
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r *UserRepo) UpdateToken(_ context.Context, id, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return notFound("update user token")
	}
	u.Token = token
	u.UpdatedAt = time.Now()
	r.s.users[id] = u
	return nil
}

// --- Community ----------------------------------------------------------

// CommunityRepo はrepository.CommunityRepositoryのインメモリ実装。
type CommunityRepo struct{ s *Store }

func cloneCommunity(c model.Community) *model.Community {
	c.Members = slices.Clone(c.Members)
	c.Moderators = slices.Clone(c.Moderators)
	c.InvitedModerators = slices.Clone(c.InvitedModerators)
	c.PendingMembers = slices.Clone(c.PendingMembers)
	c.Banned = slices.Clone(c.Banned)
	c.Rules = slices.Clone(c.Rules)
	c.Categories = slices.Clone(c.Categories)
	if c.Flairs != nil {
		flairs := make(map[string]string, len(c.Flairs))
		for k, v := range c.Flairs {
			flairs[k] = v
		}
		c.Flairs = flairs
	}
	return &c
}

func (r *CommunityRepo) FindByID(_ context.Context, id string) (*model.Community, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.communities[id]
	if !ok {
		return nil, nil
	}
	return cloneCommunity(c), nil
}

func (r *CommunityRepo) findBy(match func(model.Community) bool) *model.Community {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, c := range r.s.communities {
		if match(c) {
			return cloneCommunity(c)
		}
	}
	return nil
}

func (r *CommunityRepo) FindByName(_ context.Context, name string) (*model.Community, error) {
	return r.findBy(func(c model.Community) bool { return key(c.Name) == key(name) }), nil
}

func (r *CommunityRepo) FindByUsername(_ context.Context, username string) (*model.Community, error) {
	return r.findBy(func(c model.Community) bool { return key(c.Username) == key(username) }), nil
}

func (r *CommunityRepo) FindByIDOrUsername(ctx context.Context, ref string) (*model.Community, error) {
	if c, _ := r.FindByID(ctx, ref); c != nil {
		return c, nil
	}
	return r.FindByUsername(ctx, ref)
}

func (r *CommunityRepo) List(_ context.Context, page model.PageRequest) ([]*model.Community, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	all := make([]*model.Community, 0, len(r.s.communities))
	for _, c := range r.s.communities {
		all = append(all, cloneCommunity(c))
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	return paginate(all, page), len(all), nil
}

func (r *CommunityRepo) uniqueLocked(c *model.Community) error {
	for id, other := range r.s.communities {
		if id == c.ID {
			continue
		}
		if key(other.Name) == key(c.Name) || key(other.Username) == key(c.Username) {
			return duplicate("write community")
		}
	}
	return nil
}

func (r *CommunityRepo) Create(_ context.Context, c *model.Community) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.uniqueLocked(c); err != nil {
		return err
	}
	r.s.communities[c.ID] = *cloneCommunity(*c)
	return nil
}

func (r *CommunityRepo) Update(_ context.Context, c *model.Community) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.communities[c.ID]
	if !ok {
		return notFound("update community")
	}
	if err := r.uniqueLocked(c); err != nil {
		return err
	}
	cur.Name = c.Name
	cur.Username = c.Username
	cur.Description = c.Description
	cur.Image = c.Image
	cur.Cover = c.Cover
	cur.Privacy = c.Privacy
	cur.Flairs = c.Flairs
	cur.Rules = c.Rules
	cur.Categories = c.Categories
	cur.Theme = c.Theme
	cur.UpdatedAt = c.UpdatedAt
	r.s.communities[c.ID] = *cloneCommunity(cur)
	return nil
}

func (r *CommunityRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.communities[id]; !ok {
		return notFound("delete community")
	}
	delete(r.s.communities, id)
	return nil
}

// mutate はid のコミュニティをfnで更新する。fnがfalseを返した場合は保存しない。
func (r *CommunityRepo) mutate(id string, fn func(c *model.Community) bool) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.communities[id]
	if !ok {
		return false, nil
	}
	c := cloneCommunity(cur)
	if !fn(c) {
		return false, nil
	}
	c.UpdatedAt = time.Now()
	r.s.communities[id] = *c
	return true, nil
}

func removePending(p []model.PendingMember, userID string) []model.PendingMember {
	return slices.DeleteFunc(p, func(pm model.PendingMember) bool { return pm.User == userID })
}

func (r *CommunityRepo) AddMember(_ context.Context, id, userID string) (bool, error) {
	return r.mutate(id, func(c *model.Community) bool {
		if c.IsMember(userID) {
			return false
		}
		c.Members = append(c.Members, userID)
		c.MembersCount++
		return true
	})
}

func (r *CommunityRepo) RemoveMember(_ context.Context, id, userID string) (bool, error) {
	return r.mutate(id, func(c *model.Community) bool {
		if !c.IsMember(userID) {
			return false
		}
		c.Members = slices.DeleteFunc(c.Members, func(m string) bool { return m == userID })
		c.Moderators = slices.DeleteFunc(c.Moderators, func(m string) bool { return m == userID })
		c.MembersCount = max(c.MembersCount-1, 0)
		return true
	})
}

func (r *CommunityRepo) AddPendingMember(_ context.Context, id string, pending model.PendingMember) (bool, error) {
	return r.mutate(id, func(c *model.Community) bool {
		if c.IsMember(pending.User) || c.IsPending(pending.User) {
			return false
		}
		c.PendingMembers = append(c.PendingMembers, pending)
		return true
	})
}

func (r *CommunityRepo) ApprovePendingMember(_ context.Context, id, userID string) (bool, error) {
	return r.mutate(id, func(c *model.Community) bool {
		if c.IsMember(userID) || !c.IsPending(userID) {
			return false
		}
		c.PendingMembers = removePending(c.PendingMembers, userID)
		c.Members = append(c.Members, userID)
		c.MembersCount++
		return true
	})
}

func (r *CommunityRepo) AddBan(_ context.Context, id string, ban model.Ban) error {
	ok, _ := r.mutate(id, func(c *model.Community) bool {
		if c.IsMember(ban.User) {
			c.MembersCount = max(c.MembersCount-1, 0)
		}
		c.Banned = append(c.Banned, ban)
		c.Members = slices.DeleteFunc(c.Members, func(m string) bool { return m == ban.User })
		c.Moderators = slices.DeleteFunc(c.Moderators, func(m string) bool { return m == ban.User })
		c.PendingMembers = removePending(c.PendingMembers, ban.User)
		return true
	})
	if !ok {
		return notFound("add ban")
	}
	return nil
}

// --- Post ---------------------------------------------------------------

// PostRepo はrepository.PostRepositoryのインメモリ実装。
type PostRepo struct{ s *Store }

func clonePost(p model.Post) *model.Post {
	p.Categories = slices.Clone(p.Categories)
	p.Comments = slices.Clone(p.Comments)
	return &p
}

func (r *PostRepo) FindByID(_ context.Context, id string) (*model.Post, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.posts[id]
	if !ok {
		return nil, nil
	}
	return clonePost(p), nil
}

func (r *PostRepo) FindByTitle(_ context.Context, title string) (*model.Post, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.posts {
		if key(p.Title) == key(title) {
			return clonePost(p), nil
		}
	}
	return nil, nil
}

func (r *PostRepo) ListVisible(_ context.Context, viewerID string, page model.PageRequest) ([]*model.PostSummary, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var visible []*model.PostSummary
	for _, p := range r.s.posts {
		if p.Drafted {
			continue
		}
		c, ok := r.s.communities[p.PostedTo]
		if !ok || !c.VisibleTo(viewerID) {
			continue
		}
		summary := &model.PostSummary{Post: *clonePost(p), Community: cloneCommunity(c)}
		if u, ok := r.s.users[p.PostedBy]; ok {
			summary.Author = u.Profile()
		}
		visible = append(visible, summary)
	}
	sort.Slice(visible, func(i, j int) bool {
		if !visible[i].CreatedAt.Equal(visible[j].CreatedAt) {
			return visible[i].CreatedAt.After(visible[j].CreatedAt)
		}
		return visible[i].ID > visible[j].ID
	})
	return paginate(visible, page), len(visible), nil
}

func (r *PostRepo) Create(_ context.Context, p *model.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.posts {
		if key(other.Title) == key(p.Title) {
			return duplicate("insert post")
		}
	}
	c, ok := r.s.communities[p.PostedTo]
	if !ok {
		return notFound("increment posts count")
	}
	c.PostsCount++
	r.s.communities[c.ID] = c
	r.s.posts[p.ID] = *clonePost(*p)
	return nil
}

func (r *PostRepo) Update(_ context.Context, p *model.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.posts[p.ID]
	if !ok {
		return notFound("update post")
	}
	for id, other := range r.s.posts {
		if id != p.ID && key(other.Title) == key(p.Title) {
			return duplicate("update post")
		}
	}
	cur.Title = p.Title
	cur.Content = p.Content
	cur.Image = p.Image
	cur.URL = p.URL
	cur.Categories = slices.Clone(p.Categories)
	cur.HideVotes = p.HideVotes
	cur.Drafted = p.Drafted
	cur.UpdatedAt = p.UpdatedAt
	r.s.posts[p.ID] = cur
	return nil
}

func (r *PostRepo) Delete(_ context.Context, p *model.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.posts[p.ID]; !ok {
		return notFound("delete post")
	}
	delete(r.s.posts, p.ID)
	if c, ok := r.s.communities[p.PostedTo]; ok {
		c.PostsCount = max(c.PostsCount-1, 0)
		r.s.communities[c.ID] = c
	}
	return nil
}

// --- Comment ------------------------------------------------------------

// CommentRepo はrepository.CommentRepositoryのインメモリ実装。
type CommentRepo struct{ s *Store }

func cloneComment(c model.Comment) *model.Comment {
	c.Replies = slices.Clone(c.Replies)
	return &c
}

func sortComments(cs []*model.Comment) {
	sort.Slice(cs, func(i, j int) bool {
		if !cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].CreatedAt.Before(cs[j].CreatedAt)
		}
		return cs[i].ID < cs[j].ID
	})
}

func (r *CommentRepo) FindByIDs(_ context.Context, ids []string) ([]*model.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.Comment
	for _, id := range ids {
		if c, ok := r.s.comments[id]; ok {
			out = append(out, cloneComment(c))
		}
	}
	sortComments(out)
	return out, nil
}

func (r *CommentRepo) FindOwned(_ context.Context, id, userID string) (*model.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.comments[id]
	if !ok || c.PostedBy != userID {
		return nil, nil
	}
	return cloneComment(c), nil
}

func (r *CommentRepo) ListByPostAndAuthor(_ context.Context, postID, userID string) ([]*model.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.Comment
	for _, c := range r.s.comments {
		if c.PostID == postID && c.PostedBy == userID {
			out = append(out, cloneComment(c))
		}
	}
	sortComments(out)
	return out, nil
}

func (r *CommentRepo) Create(_ context.Context, c *model.Comment, parent model.ParentRef) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	switch parent.Kind {
	case model.ParentPost:
		p, ok := r.s.posts[parent.ID]
		if !ok {
			return notFound("attach comment to post")
		}
		p.Comments = append(slices.Clone(p.Comments), c.ID)
		r.s.posts[p.ID] = p
		c.PostID = parent.ID
		c.ParentID = ""
	case model.ParentComment:
		pc, ok := r.s.comments[parent.ID]
		if !ok {
			return notFound("attach reply to comment")
		}
		pc.Replies = append(slices.Clone(pc.Replies), c.ID)
		r.s.comments[pc.ID] = pc
		c.PostID = pc.PostID
		c.ParentID = parent.ID
	}

	r.s.comments[c.ID] = *cloneComment(*c)
	return nil
}

func (r *CommentRepo) Update(_ context.Context, c *model.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.comments[c.ID]
	if !ok {
		return notFound("update comment")
	}
	cur.Body = c.Body
	cur.HideVotes = c.HideVotes
	cur.UpdatedAt = c.UpdatedAt
	r.s.comments[c.ID] = cur
	return nil
}

func (r *CommentRepo) Delete(_ context.Context, c *model.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.comments[c.ID]; !ok {
		return notFound("delete comment")
	}
	delete(r.s.comments, c.ID)

	without := func(ids []string) []string {
		return slices.DeleteFunc(slices.Clone(ids), func(id string) bool { return id == c.ID })
	}
	parent := c.Parent()
	switch parent.Kind {
	case model.ParentComment:
		if pc, ok := r.s.comments[parent.ID]; ok {
			pc.Replies = without(pc.Replies)
			r.s.comments[pc.ID] = pc
		}
	case model.ParentPost:
		if p, ok := r.s.posts[parent.ID]; ok {
			p.Comments = without(p.Comments)
			r.s.posts[p.ID] = p
		}
	}
	return nil
}

// --- Category -----------------------------------------------------------

// CategoryRepo はrepository.CategoryRepositoryのインメモリ実装。
type CategoryRepo struct{ s *Store }

func (r *CategoryRepo) FindByID(_ context.Context, id string) (*model.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.categories[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *CategoryRepo) FindByName(_ context.Context, name string) (*model.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, c := range r.s.categories {
		if key(c.Name) == key(name) {
			return &c, nil
		}
	}
	return nil, nil
}

func (r *CategoryRepo) List(_ context.Context) ([]*model.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*model.Category, 0, len(r.s.categories))
	for _, c := range r.s.categories {
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return key(out[i].Name) < key(out[j].Name) })
	return out, nil
}

func (r *CategoryRepo) writeLocked(c *model.Category) error {
	for id, other := range r.s.categories {
		if id != c.ID && key(other.Name) == key(c.Name) {
			return duplicate("write category")
		}
	}
	r.s.categories[c.ID] = *c
	return nil
}

func (r *CategoryRepo) Create(_ context.Context, c *model.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.writeLocked(c)
}

func (r *CategoryRepo) Update(_ context.Context, c *model.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.categories[c.ID]; !ok {
		return notFound("update category")
	}
	return r.writeLocked(c)
}

func (r *CategoryRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.categories[id]; !ok {
		return notFound("delete category")
	}
	delete(r.s.categories, id)
	return nil
}

// --- AuditLog -----------------------------------------------------------

// AuditLogRepo はrepository.AuditLogRepositoryのインメモリ実装。
type AuditLogRepo struct{ s *Store }

func (r *AuditLogRepo) Create(_ context.Context, log *model.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.auditLogs = append(r.s.auditLogs, *log)
	return nil
}

func (r *AuditLogRepo) List(_ context.Context, page model.PageRequest) ([]*model.AuditLog, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	all := make([]*model.AuditLog, 0, len(r.s.auditLogs))
	for i := len(r.s.auditLogs) - 1; i >= 0; i-- {
		l := r.s.auditLogs[i]
		all = append(all, &l)
	}
	return paginate(all, page), len(all), nil
}
