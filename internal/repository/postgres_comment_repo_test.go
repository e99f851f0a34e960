package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hitoshi/agora/internal/model"
)

// TestPostgresCommentRepo_Create_PostParent は投稿へのコメントが投稿のcommentsに追加されることを検証する。
func TestPostgresCommentRepo_Create_PostParent(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE posts SET comments = array_append(comments, $2) WHERE id = $1`)).
		WithArgs("p1", "cm1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO comments`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c := &model.Comment{ID: "cm1", Body: "hello", PostedBy: "u1"}
	if err := NewPostgresCommentRepo(db).Create(context.Background(), c, model.PostParent("p1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.PostID != "p1" {
		t.Errorf("PostID = %q, want %q", c.PostID, "p1")
	}
}

// TestPostgresCommentRepo_Create_ReplyInheritsPost は返信が親コメントの投稿IDを引き継ぐことを検証する。
func TestPostgresCommentRepo_Create_ReplyInheritsPost(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE comments SET replies = array_append(replies, $2) WHERE id = $1 RETURNING post_id`)).
		WithArgs("cm1", "cm2").
		WillReturnRows(sqlmock.NewRows([]string{"post_id"}).AddRow("p1"))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO comments`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c := &model.Comment{ID: "cm2", Body: "reply", PostedBy: "u1"}
	if err := NewPostgresCommentRepo(db).Create(context.Background(), c, model.CommentParent("cm1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.PostID != "p1" || c.ParentID != "cm1" {
		t.Errorf("PostID/ParentID = %q/%q, want p1/cm1", c.PostID, c.ParentID)
	}
}

// TestPostgresCommentRepo_Create_ParentMissing は親がない場合にロールバックしてErrNotFoundを返すことを検証する。
func TestPostgresCommentRepo_Create_ParentMissing(t *testing.T) {
	tests := []struct {
		name   string
		parent model.ParentRef
		expect func(mock sqlmock.Sqlmock)
	}{
		{
			name:   "投稿",
			parent: model.PostParent("p1"),
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE posts SET comments`)).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
		},
		{
			name:   "コメント",
			parent: model.CommentParent("cm1"),
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`UPDATE comments SET replies`)).
					WillReturnRows(sqlmock.NewRows([]string{"post_id"}))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectBegin()
			tt.expect(mock)
			mock.ExpectRollback()

			err := NewPostgresCommentRepo(db).Create(context.Background(), &model.Comment{ID: "cm2"}, tt.parent)
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

// TestPostgresCommentRepo_Create_NoParent は親なしのコメントがそのまま挿入されることを検証する。
func TestPostgresCommentRepo_Create_NoParent(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO comments`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c := &model.Comment{ID: "cm1", Body: "alone", PostedBy: "u1"}
	if err := NewPostgresCommentRepo(db).Create(context.Background(), c, model.NoParent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestPostgresCommentRepo_FindOwned_OtherUser は他人のコメントをnilとして扱うことを検証する。
func TestPostgresCommentRepo_FindOwned_OtherUser(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE id = $1 AND posted_by = $2`)).
		WithArgs("cm1", "u2").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	c, err := NewPostgresCommentRepo(db).FindOwned(context.Background(), "cm1", "u2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != nil {
		t.Errorf("expected nil comment, got %+v", c)
	}
}

// TestPostgresCommentRepo_Delete_DetachesFromPost は削除時に投稿のcommentsから取り除くことを検証する。
func TestPostgresCommentRepo_Delete_DetachesFromPost(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM comments WHERE id = $1`)).
		WithArgs("cm1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE posts SET comments = array_remove(comments, $2) WHERE id = $1`)).
		WithArgs("p1", "cm1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := NewPostgresCommentRepo(db).Delete(context.Background(), &model.Comment{ID: "cm1", PostID: "p1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestPostgresCommentRepo_Delete_DetachesFromParentComment は返信の削除時に親のrepliesから取り除くことを検証する。
func TestPostgresCommentRepo_Delete_DetachesFromParentComment(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM comments WHERE id = $1`)).
		WithArgs("cm2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE comments SET replies = array_remove(replies, $2) WHERE id = $1`)).
		WithArgs("cm1", "cm2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := NewPostgresCommentRepo(db).Delete(context.Background(), &model.Comment{ID: "cm2", PostID: "p1", ParentID: "cm1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
