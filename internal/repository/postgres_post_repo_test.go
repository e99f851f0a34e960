package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hitoshi/agora/internal/model"
)

func newTestPost() *model.Post {
	now := time.Now()
	return &model.Post{
		ID:        "p1",
		Title:     "Hi",
		PostedTo:  "c1",
		PostedBy:  "u1",
		URLData:   "http://localhost:8080/post/p1",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TestPostgresPostRepo_Create は投稿の挿入と投稿数の加算が同一トランザクションで行われることを検証する。
func TestPostgresPostRepo_Create(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO posts`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE communities SET posts_count = posts_count + 1 WHERE id = $1`)).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := NewPostgresPostRepo(db).Create(context.Background(), newTestPost()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestPostgresPostRepo_Create_Duplicate はタイトル重複時にロールバックしてErrDuplicateを返すことを検証する。
func TestPostgresPostRepo_Create_Duplicate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO posts`)).
		WillReturnError(uniqueViolationErr())
	mock.ExpectRollback()

	err := NewPostgresPostRepo(db).Create(context.Background(), newTestPost())
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

// TestPostgresPostRepo_Create_CommunityMissing は投稿先がない場合にロールバックしてErrNotFoundを返すことを検証する。
func TestPostgresPostRepo_Create_CommunityMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO posts`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE communities SET posts_count`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := NewPostgresPostRepo(db).Create(context.Background(), newTestPost())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestPostgresPostRepo_Delete は削除と投稿数の減算を検証する。
func TestPostgresPostRepo_Delete(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM posts WHERE id = $1`)).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`GREATEST(posts_count - 1, 0)`)).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := NewPostgresPostRepo(db).Delete(context.Background(), newTestPost()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestPostgresPostRepo_FindByTitle_NotFound は該当がない場合にnilを返すことを検証する。
func TestPostgresPostRepo_FindByTitle_NotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE lower(title) = lower($1)`)).
		WithArgs("hi").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	p, err := NewPostgresPostRepo(db).FindByTitle(context.Background(), "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil post, got %+v", p)
	}
}

// TestPostgresPostRepo_ListVisible_AppliesFilter は件数と一覧の両方に閲覧条件が適用されることを検証する。
func TestPostgresPostRepo_ListVisible_AppliesFilter(t *testing.T) {
	db, mock := newMock(t)
	filter := regexp.QuoteMeta(visiblePostsFilter)
	mock.ExpectQuery(`SELECT count\(\*\) FROM posts p.*` + filter).
		WithArgs("viewer-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(filter + `.*ORDER BY p\.created_at DESC, p\.id DESC`).
		WithArgs("viewer-1", 10, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	docs, total, err := NewPostgresPostRepo(db).ListVisible(context.Background(), "viewer-1", model.PageRequest{Page: 2, Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 12 {
		t.Errorf("total = %d, want 12", total)
	}
	if len(docs) != 0 {
		t.Errorf("len(docs) = %d, want 0", len(docs))
	}
}
