package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const targetComment = "comment"

// transition computes one step of the per-(user, comment) reaction state
// machine. current is the stored reaction, if any; incoming is the pressed
// button. It returns the action taken and the counter deltas to apply.
func transition(current ReactionType, hasCurrent bool, incoming ReactionType) (action Action, likesDelta, dislikesDelta int) {
	switch {
	case !hasCurrent:
		if incoming == ReactionLike {
			return ActionAdded, 1, 0
		}
		return ActionAdded, 0, 1
	case current == incoming:
		if incoming == ReactionLike {
			return ActionRemoved, -1, 0
		}
		return ActionRemoved, 0, -1
	case current == ReactionLike:
		return ActionChanged, -1, 1
	default:
		return ActionChanged, 1, -1
	}
}

// React applies the state machine for (userID, commentID): the reaction-row
// change and the counter adjustment commit together or not at all.
func (s *SQLCommentStore) React(ctx context.Context, userID, commentID int64, rt ReactionType) (ReactionResult, error) {
	if !rt.Valid() {
		return ReactionResult{}, fmt.Errorf("reaction engine: unknown reaction type %q", rt)
	}

	uow, err := s.gw.Begin(ctx)
	if err != nil {
		return ReactionResult{}, fmt.Errorf("reaction engine: begin: %w", err)
	}
	defer func() { _ = uow.Rollback() }()

	var exists int64
	err = uow.QueryRow(ctx, "SELECT comment_id FROM comments WHERE comment_id = ?", commentID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ReactionResult{}, ErrCommentNotFound
	}
	if err != nil {
		return ReactionResult{}, fmt.Errorf("reaction engine: comment check: %w", err)
	}

	var current ReactionType
	hasCurrent := true
	err = uow.QueryRow(ctx,
		"SELECT reaction_type FROM reactions WHERE user_id = ? AND target_type = ? AND target_id = ?",
		userID, targetComment, commentID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		hasCurrent = false
	} else if err != nil {
		return ReactionResult{}, fmt.Errorf("reaction engine: read reaction: %w", err)
	}

	action, likesDelta, dislikesDelta := transition(current, hasCurrent, rt)

	switch action {
	case ActionAdded:
		err = uow.Exec(ctx,
			"INSERT INTO reactions (user_id, target_type, target_id, reaction_type) VALUES (?, ?, ?, ?)",
			userID, targetComment, commentID, string(rt))
	case ActionChanged:
		err = uow.Exec(ctx,
			"UPDATE reactions SET reaction_type = ? WHERE user_id = ? AND target_type = ? AND target_id = ?",
			string(rt), userID, targetComment, commentID)
	case ActionRemoved:
		err = uow.Exec(ctx,
			"DELETE FROM reactions WHERE user_id = ? AND target_type = ? AND target_id = ?",
			userID, targetComment, commentID)
	}
	if err != nil {
		return ReactionResult{}, fmt.Errorf("reaction engine: write reaction: %w", err)
	}

	if err := uow.Exec(ctx,
		"UPDATE comments SET likes = likes + ?, dislikes = dislikes + ? WHERE comment_id = ?",
		likesDelta, dislikesDelta, commentID); err != nil {
		return ReactionResult{}, fmt.Errorf("reaction engine: counters: %w", err)
	}

	res := ReactionResult{Action: action}
	if err := uow.QueryRow(ctx,
		"SELECT likes, dislikes FROM comments WHERE comment_id = ?", commentID).Scan(&res.Likes, &res.Dislikes); err != nil {
		return ReactionResult{}, fmt.Errorf("reaction engine: read counters: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return ReactionResult{}, fmt.Errorf("reaction engine: commit: %w", err)
	}
	return res, nil
}

// UserReaction returns the stored reaction for (userID, commentID), if any.
func (s *SQLCommentStore) UserReaction(ctx context.Context, userID, commentID int64) (ReactionType, bool, error) {
	var rt ReactionType
	err := s.gw.QueryRow(ctx,
		"SELECT reaction_type FROM reactions WHERE user_id = ? AND target_type = ? AND target_id = ?",
		userID, targetComment, commentID).Scan(&rt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reaction engine: read reaction: %w", err)
	}
	return rt, true, nil
}
