// Package store owns comment persistence: creation with referential checks,
// lookups, the moderation flag, and the reaction state machine that keeps the
// like/dislike counters in step with the reaction rows.
package store

import (
	"context"
	"errors"
	"time"
)

// Comment is a single comment row. Replies are flat: ParentID back-references
// another comment, there is no tree.
type Comment struct {
	ID        int64     `json:"comment_id"`
	PostID    int64     `json:"post_id"`
	Content   string    `json:"content"`
	UserID    int64     `json:"user_id"`
	ParentID  *int64    `json:"parent_comment_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Likes     int       `json:"likes"`
	Dislikes  int       `json:"dislikes"`
	Flagged   bool      `json:"flagged"`
}

// PostSummary is the minimal projection of a post this subsystem reads.
// Posts themselves are owned by the submission/moderation system.
type PostSummary struct {
	ID               int64   `json:"post_id"`
	Content          string  `json:"content"`
	Category         string  `json:"category"`
	ChannelMessageID *int64  `json:"channel_message_id,omitempty"`
	Approved         bool    `json:"approved"`
	PostNumber       int64   `json:"post_number"`
	IsMedia          bool    `json:"is_media"`
	MediaCaption     *string `json:"media_caption,omitempty"`
}

// ReactionType is a user's reaction to a comment.
type ReactionType string

const (
	ReactionLike    ReactionType = "like"
	ReactionDislike ReactionType = "dislike"
)

// Valid reports whether rt is a known reaction type.
func (rt ReactionType) Valid() bool {
	return rt == ReactionLike || rt == ReactionDislike
}

// Action describes what a React call did.
type Action string

const (
	ActionAdded   Action = "added"
	ActionChanged Action = "changed"
	ActionRemoved Action = "removed"
)

// ReactionResult reports the outcome of a React call together with the
// comment's counters after the change.
type ReactionResult struct {
	Action   Action `json:"action"`
	Likes    int    `json:"likes"`
	Dislikes int    `json:"dislikes"`
}

// Sentinel errors. Store failures are wrapped with %w instead.
var (
	ErrPostNotFound    = errors.New("post not found or not approved")
	ErrParentNotFound  = errors.New("parent comment not found")
	ErrCommentNotFound = errors.New("comment not found")
)

// CommentStore defines the contract for comment persistence.
type CommentStore interface {
	// Create validates the post (exists, approved) and the parent (exists),
	// inserts the comment and bumps the author's comment counter in one unit
	// of work, and returns the new comment id.
	Create(ctx context.Context, postID, userID int64, content string, parentID *int64) (int64, error)
	// Get returns a comment by id, or ErrCommentNotFound.
	Get(ctx context.Context, commentID int64) (Comment, error)
	// Post returns the post projection used by formatting and channel sync.
	Post(ctx context.Context, postID int64) (PostSummary, error)
	// Count returns the total number of comments on a post.
	Count(ctx context.Context, postID int64) (int, error)
	// Flag marks a comment for moderator review. Idempotent.
	Flag(ctx context.Context, commentID int64) error
	// React applies one step of the reaction state machine for (user, comment)
	// and returns the action taken plus the updated counters.
	React(ctx context.Context, userID, commentID int64, rt ReactionType) (ReactionResult, error)
	// UserReaction returns the user's current reaction, if any.
	UserReaction(ctx context.Context, userID, commentID int64) (ReactionType, bool, error)
}
