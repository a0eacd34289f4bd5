// Package thread turns a post's comment rows into the flat, numbered, paged
// view the chat frontend renders. Replies are never nested; a reply carries a
// condensed back-reference to its parent instead.
package thread

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/confession-platform/internal/platform/db"
	"github.com/example/confession-platform/services/comments/internal/store"
)

// DefaultPageSize is used when the configured page size is missing.
const DefaultPageSize = 5

// Item is one rendered row of a comment listing.
type Item struct {
	store.Comment
	// CommentNumber is the 1-based position over the whole post's comment
	// set in timestamp order, not just the current page.
	CommentNumber int `json:"comment_number"`
	IsReply       bool `json:"is_reply"`
	// Original is the condensed parent projection, set when IsReply.
	Original *ParentRef `json:"original_comment,omitempty"`
}

// ParentRef is the condensed projection of a reply's parent.
type ParentRef struct {
	CommentID int64     `json:"comment_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Page is one page of a post's comment listing.
type Page struct {
	Items      []Item `json:"items"`
	Page       int    `json:"page"`
	TotalPages int    `json:"total_pages"`
	TotalCount int    `json:"total_count"`
}

// ParentInfo resolves a reply's parent for quoting.
type ParentInfo struct {
	CommentID        int64     `json:"comment_id"`
	PostID           int64     `json:"post_id"`
	Content          string    `json:"content"`
	Timestamp        time.Time `json:"timestamp"`
	SequentialNumber int       `json:"sequential_number"`
}

// Location tells the frontend which page to open for a deep link.
type Location struct {
	Page int `json:"page"`
	PostID int64 `json:"post_id"`
	// AnchorCommentID is the comment the page count was computed for: the
	// parent when the target is a reply, otherwise the comment itself.
	AnchorCommentID int64 `json:"comment_id"`
}

// Service reads comment rows through the persistence gateway.
type Service struct {
	gw       *db.Gateway
	pageSize int
}

func New(gw *db.Gateway, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Service{gw: gw, pageSize: pageSize}
}

// List returns one page of a post's comments, flat, in timestamp order.
// Pages before 1 are clamped to 1; a post with no comments still has one
// (empty) page.
func (s *Service) List(ctx context.Context, postID int64, page int) (Page, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * s.pageSize

	var total int
	if err := s.gw.QueryRow(ctx, "SELECT COUNT(*) FROM comments WHERE post_id = ?", postID).Scan(&total); err != nil {
		return Page{}, fmt.Errorf("thread: count: %w", err)
	}

	const q = `SELECT comment_id, content, timestamp, likes, dislikes, flagged, parent_comment_id,
	                  ROW_NUMBER() OVER (ORDER BY timestamp ASC, comment_id ASC) AS comment_number
	           FROM comments
	           WHERE post_id = ?
	           ORDER BY timestamp ASC, comment_id ASC
	           LIMIT ? OFFSET ?`
	rows, err := s.gw.Query(ctx, q, postID, s.pageSize, offset)
	if err != nil {
		return Page{}, fmt.Errorf("thread: list: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Content, &it.Timestamp, &it.Likes, &it.Dislikes,
			&it.Flagged, &it.ParentID, &it.CommentNumber); err != nil {
			return Page{}, fmt.Errorf("thread: scan: %w", err)
		}
		it.PostID = postID
		it.IsReply = it.ParentID != nil
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("thread: rows: %w", err)
	}

	// Attach the parent projection to each reply after the listing cursor is
	// drained; the gateway holds a single connection on the embedded backend.
	for i := range items {
		if items[i].ParentID == nil {
			continue
		}
		ref, err := s.parentRef(ctx, *items[i].ParentID)
		if err != nil {
			return Page{}, err
		}
		items[i].Original = ref
	}

	totalPages := (total + s.pageSize - 1) / s.pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	return Page{Items: items, Page: page, TotalPages: totalPages, TotalCount: total}, nil
}

func (s *Service) parentRef(ctx context.Context, parentID int64) (*ParentRef, error) {
	var ref ParentRef
	err := s.gw.QueryRow(ctx,
		"SELECT comment_id, content, timestamp FROM comments WHERE comment_id = ?", parentID).
		Scan(&ref.CommentID, &ref.Content, &ref.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		// Parent disappeared out from under us; render the reply bare.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("thread: parent: %w", err)
	}
	return &ref, nil
}

// SequentialNumber labels a comment with its 1-based position in the post,
// counted as comments with timestamp <= this one's. Timestamp ties share a
// number; see the package tests.
func (s *Service) SequentialNumber(ctx context.Context, commentID int64) (int, error) {
	var (
		postID int64
		ts     time.Time
	)
	err := s.gw.QueryRow(ctx, "SELECT post_id, timestamp FROM comments WHERE comment_id = ?", commentID).
		Scan(&postID, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrCommentNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("thread: comment lookup: %w", err)
	}

	var n int
	err = s.gw.QueryRow(ctx,
		"SELECT COUNT(*) FROM comments WHERE post_id = ? AND timestamp <= ?", postID, ts).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("thread: sequential number: %w", err)
	}
	return n, nil
}

// ParentForReply resolves a reply's parent, including the parent's own
// sequential number. Returns nil for top-level comments.
func (s *Service) ParentForReply(ctx context.Context, commentID int64) (*ParentInfo, error) {
	var parentID *int64
	err := s.gw.QueryRow(ctx, "SELECT parent_comment_id FROM comments WHERE comment_id = ?", commentID).
		Scan(&parentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("thread: reply lookup: %w", err)
	}
	if parentID == nil {
		return nil, nil
	}

	var info ParentInfo
	err = s.gw.QueryRow(ctx,
		"SELECT comment_id, post_id, content, timestamp FROM comments WHERE comment_id = ?", *parentID).
		Scan(&info.CommentID, &info.PostID, &info.Content, &info.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("thread: parent lookup: %w", err)
	}

	seq, err := s.SequentialNumber(ctx, info.CommentID)
	if err != nil {
		return nil, err
	}
	info.SequentialNumber = seq
	return &info, nil
}

// LocatePage finds the page a comment lives on. Replies are located on their
// parent's page. Pages are counted in units of top-level comments, ordered by
// comment id.
func (s *Service) LocatePage(ctx context.Context, commentID int64) (Location, error) {
	var (
		postID   int64
		parentID *int64
	)
	err := s.gw.QueryRow(ctx, "SELECT post_id, parent_comment_id FROM comments WHERE comment_id = ?", commentID).
		Scan(&postID, &parentID)
	if errors.Is(err, sql.ErrNoRows) {
		return Location{}, store.ErrCommentNotFound
	}
	if err != nil {
		return Location{}, fmt.Errorf("thread: locate lookup: %w", err)
	}

	anchor := commentID
	if parentID != nil {
		anchor = *parentID
	}

	var before int
	err = s.gw.QueryRow(ctx,
		"SELECT COUNT(*) FROM comments WHERE post_id = ? AND parent_comment_id IS NULL AND comment_id < ?",
		postID, anchor).Scan(&before)
	if err != nil {
		return Location{}, fmt.Errorf("thread: locate count: %w", err)
	}

	return Location{
		Page:            before/s.pageSize + 1,
		PostID:          postID,
		AnchorCommentID: anchor,
	}, nil
}
