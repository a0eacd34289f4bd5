package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/confession-platform/internal/platform/db"
)

// SQLCommentStore persists comments through the persistence gateway and works
// against either supported backend.
type SQLCommentStore struct {
	gw *db.Gateway
}

// NewSQLCommentStore creates a store backed by the given gateway.
func NewSQLCommentStore(gw *db.Gateway) *SQLCommentStore {
	return &SQLCommentStore{gw: gw}
}

// Gateway exposes the underlying gateway for read-only collaborators.
func (s *SQLCommentStore) Gateway() *db.Gateway { return s.gw }

func (s *SQLCommentStore) Create(ctx context.Context, postID, userID int64, content string, parentID *int64) (int64, error) {
	uow, err := s.gw.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("comment store: begin: %w", err)
	}
	defer func() { _ = uow.Rollback() }()

	var id int64
	err = uow.QueryRow(ctx, "SELECT post_id FROM posts WHERE post_id = ? AND approved = ?", postID, true).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrPostNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("comment store: post check: %w", err)
	}

	if parentID != nil {
		// Existence only. The parent is not required to belong to the same
		// post; callers always pass a parent from the post they are viewing.
		err = uow.QueryRow(ctx, "SELECT comment_id FROM comments WHERE comment_id = ?", *parentID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrParentNotFound
		}
		if err != nil {
			return 0, fmt.Errorf("comment store: parent check: %w", err)
		}
	}

	commentID, err := uow.InsertID(ctx,
		"INSERT INTO comments (post_id, content, user_id, parent_comment_id, timestamp) VALUES (?, ?, ?, ?, ?)",
		"comment_id",
		postID, content, userID, parentID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("comment store: insert: %w", err)
	}

	if err := uow.Exec(ctx, "UPDATE users SET comments_posted = comments_posted + 1 WHERE user_id = ?", userID); err != nil {
		return 0, fmt.Errorf("comment store: user counter: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("comment store: commit: %w", err)
	}
	return commentID, nil
}

func (s *SQLCommentStore) Get(ctx context.Context, commentID int64) (Comment, error) {
	const q = `SELECT comment_id, post_id, content, user_id, parent_comment_id, timestamp, likes, dislikes, flagged
	           FROM comments WHERE comment_id = ?`
	var c Comment
	err := s.gw.QueryRow(ctx, q, commentID).Scan(
		&c.ID, &c.PostID, &c.Content, &c.UserID, &c.ParentID,
		&c.Timestamp, &c.Likes, &c.Dislikes, &c.Flagged)
	if errors.Is(err, sql.ErrNoRows) {
		return Comment{}, ErrCommentNotFound
	}
	if err != nil {
		return Comment{}, fmt.Errorf("comment store: get: %w", err)
	}
	return c, nil
}

func (s *SQLCommentStore) Post(ctx context.Context, postID int64) (PostSummary, error) {
	const q = `SELECT post_id, content, category, channel_message_id, approved, post_number, is_media, media_caption
	           FROM posts WHERE post_id = ?`
	var p PostSummary
	err := s.gw.QueryRow(ctx, q, postID).Scan(
		&p.ID, &p.Content, &p.Category, &p.ChannelMessageID,
		&p.Approved, &p.PostNumber, &p.IsMedia, &p.MediaCaption)
	if errors.Is(err, sql.ErrNoRows) {
		return PostSummary{}, ErrPostNotFound
	}
	if err != nil {
		return PostSummary{}, fmt.Errorf("comment store: post: %w", err)
	}
	return p, nil
}

func (s *SQLCommentStore) Count(ctx context.Context, postID int64) (int, error) {
	var n int
	if err := s.gw.QueryRow(ctx, "SELECT COUNT(*) FROM comments WHERE post_id = ?", postID).Scan(&n); err != nil {
		return 0, fmt.Errorf("comment store: count: %w", err)
	}
	return n, nil
}

func (s *SQLCommentStore) Flag(ctx context.Context, commentID int64) error {
	affected, err := s.gw.ExecAffected(ctx, "UPDATE comments SET flagged = ? WHERE comment_id = ?", true, commentID)
	if err != nil {
		return fmt.Errorf("comment store: flag: %w", err)
	}
	if affected == 0 {
		return ErrCommentNotFound
	}
	return nil
}
