package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/confession-platform/internal/platform/api"
	"github.com/example/confession-platform/internal/platform/auth"
	"github.com/example/confession-platform/internal/platform/events"
	"github.com/example/confession-platform/services/comments/internal/channelsync"
	"github.com/example/confession-platform/services/comments/internal/store"
	"github.com/example/confession-platform/services/comments/internal/thread"
)

type createCommentRequest struct {
	Content  string `json:"content"`
	ParentID *int64 `json:"parent_comment_id,omitempty"`
}

type createCommentResponse struct {
	CommentID int64 `json:"comment_id"`
}

type reactRequest struct {
	Reaction string `json:"reaction"`
}

type userReactionResponse struct {
	Reaction string `json:"reaction,omitempty"`
	HasAny   bool   `json:"has_reaction"`
}

type syncCountResponse struct {
	PostID       int64 `json:"post_id"`
	CommentCount int   `json:"comment_count"`
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, name)), 10, 64)
	return id, err == nil && id > 0
}

// CreateComment handles POST /v1/posts/{post_id}/comments. A successful
// create also refreshes the channel comment count and emits a created event;
// neither side effect can fail the request.
func CreateComment(cs store.CommentStore, sync *channelsync.Synchronizer, ev *events.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}

		postID, ok := pathID(r, "post_id")
		if !ok {
			api.BadRequest(w, "INVALID_ID", "post_id must be a positive integer", "", nil)
			return
		}

		var req createCommentRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}
		if strings.TrimSpace(req.Content) == "" {
			api.BadRequest(w, "EMPTY_CONTENT", "content must not be empty", "", nil)
			return
		}

		commentID, err := cs.Create(r.Context(), postID, userID, req.Content, req.ParentID)
		switch {
		case errors.Is(err, store.ErrPostNotFound):
			api.NotFound(w, "POST_NOT_FOUND", "post not found or not approved", "")
			return
		case errors.Is(err, store.ErrParentNotFound):
			api.NotFound(w, "PARENT_NOT_FOUND", "parent comment not found", "")
			return
		case err != nil:
			log.Error("create comment failed", zap.Int64("post_id", postID), zap.Error(err))
			api.Internal(w, "")
			return
		}

		if sync != nil {
			if _, err := sync.SyncCommentCount(r.Context(), postID); err != nil {
				log.Warn("channel count sync after create failed",
					zap.Int64("post_id", postID), zap.Error(err))
			}
		}
		ev.Publish(events.SubjectCommentCreated, "comment_created", userID, map[string]any{
			"post_id":    postID,
			"comment_id": commentID,
			"is_reply":   req.ParentID != nil,
		})

		api.WriteJSON(w, http.StatusCreated, createCommentResponse{CommentID: commentID})
	}
}

// ListComments handles GET /v1/posts/{post_id}/comments?page=N.
func ListComments(ts *thread.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID, ok := pathID(r, "post_id")
		if !ok {
			api.BadRequest(w, "INVALID_ID", "post_id must be a positive integer", "", nil)
			return
		}

		page := 1
		if p := r.URL.Query().Get("page"); p != "" {
			parsed, err := strconv.Atoi(p)
			if err != nil || parsed < 1 {
				api.BadRequest(w, "INVALID_PAGE", "page must be a positive integer", "", nil)
				return
			}
			page = parsed
		}

		listing, err := ts.List(r.Context(), postID, page)
		if err != nil {
			log.Error("list comments failed", zap.Int64("post_id", postID), zap.Error(err))
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusOK, listing)
	}
}

// GetComment handles GET /v1/comments/{comment_id}.
func GetComment(cs store.CommentStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		commentID, ok := pathID(r, "comment_id")
		if !ok {
			api.BadRequest(w, "INVALID_ID", "comment_id must be a positive integer", "", nil)
			return
		}

		c, err := cs.Get(r.Context(), commentID)
		if errors.Is(err, store.ErrCommentNotFound) {
			api.NotFound(w, "COMMENT_NOT_FOUND", "comment not found", "")
			return
		}
		if err != nil {
			log.Error("get comment failed", zap.Int64("comment_id", commentID), zap.Error(err))
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusOK, c)
	}
}

// CommentNumber handles GET /v1/comments/{comment_id}/number.
func CommentNumber(ts *thread.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		commentID, ok := pathID(r, "comment_id")
		if !ok {
			api.BadRequest(w, "INVALID_ID", "comment_id must be a positive integer", "", nil)
			return
		}

		n, err := ts.SequentialNumber(r.Context(), commentID)
		if errors.Is(err, store.ErrCommentNotFound) {
			api.NotFound(w, "COMMENT_NOT_FOUND", "comment not found", "")
			return
		}
		if err != nil {
			log.Error("sequential number failed", zap.Int64("comment_id", commentID), zap.Error(err))
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{
			"comment_id":        commentID,
			"sequential_number": n,
		})
	}
}

// CommentParent handles GET /v1/comments/{comment_id}/parent. Top-level
// comments respond 200 with a null parent.
func CommentParent(ts *thread.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		commentID, ok := pathID(r, "comment_id")
		if !ok {
			api.BadRequest(w, "INVALID_ID", "comment_id must be a positive integer", "", nil)
			return
		}

		info, err := ts.ParentForReply(r.Context(), commentID)
		if errors.Is(err, store.ErrCommentNotFound) {
			api.NotFound(w, "COMMENT_NOT_FOUND", "comment not found", "")
			return
		}
		if err != nil {
			log.Error("parent lookup failed", zap.Int64("comment_id", commentID), zap.Error(err))
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"parent": info})
	}
}

// LocateComment handles GET /v1/comments/{comment_id}/location.
func LocateComment(ts *thread.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		commentID, ok := pathID(r, "comment_id")
		if !ok {
			api.BadRequest(w, "INVALID_ID", "comment_id must be a positive integer", "", nil)
			return
		}

		loc, err := ts.LocatePage(r.Context(), commentID)
		if errors.Is(err, store.ErrCommentNotFound) {
			api.NotFound(w, "COMMENT_NOT_FOUND", "comment not found", "")
			return
		}
		if err != nil {
			log.Error("locate failed", zap.Int64("comment_id", commentID), zap.Error(err))
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusOK, loc)
	}
}

// ReactComment handles POST /v1/comments/{comment_id}/reactions.
func ReactComment(cs store.CommentStore, ev *events.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}

		commentID, ok := pathID(r, "comment_id")
		if !ok {
			api.BadRequest(w, "INVALID_ID", "comment_id must be a positive integer", "", nil)
			return
		}

		var req reactRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}
		rt := store.ReactionType(strings.ToLower(strings.TrimSpace(req.Reaction)))
		if !rt.Valid() {
			api.BadRequest(w, "INVALID_REACTION", `reaction must be "like" or "dislike"`, "", nil)
			return
		}

		res, err := cs.React(r.Context(), userID, commentID, rt)
		if errors.Is(err, store.ErrCommentNotFound) {
			api.NotFound(w, "COMMENT_NOT_FOUND", "comment not found", "")
			return
		}
		if err != nil {
			log.Error("react failed", zap.Int64("comment_id", commentID), zap.Error(err))
			api.Internal(w, "")
			return
		}

		ev.Publish(events.SubjectCommentReacted, "comment_reacted", userID, map[string]any{
			"comment_id": commentID,
			"reaction":   string(rt),
			"action":     string(res.Action),
		})
		api.WriteJSON(w, http.StatusOK, res)
	}
}

// GetUserReaction handles GET /v1/comments/{comment_id}/reactions/me.
func GetUserReaction(cs store.CommentStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}

		commentID, ok := pathID(r, "comment_id")
		if !ok {
			api.BadRequest(w, "INVALID_ID", "comment_id must be a positive integer", "", nil)
			return
		}

		rt, has, err := cs.UserReaction(r.Context(), userID, commentID)
		if err != nil {
			log.Error("user reaction lookup failed", zap.Int64("comment_id", commentID), zap.Error(err))
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusOK, userReactionResponse{Reaction: string(rt), HasAny: has})
	}
}

// FlagComment handles POST /v1/comments/{comment_id}/flag (admin only,
// enforced by middleware). Flagging is idempotent.
func FlagComment(cs store.CommentStore, ev *events.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		commentID, ok := pathID(r, "comment_id")
		if !ok {
			api.BadRequest(w, "INVALID_ID", "comment_id must be a positive integer", "", nil)
			return
		}

		if err := cs.Flag(r.Context(), commentID); err != nil {
			if errors.Is(err, store.ErrCommentNotFound) {
				api.NotFound(w, "COMMENT_NOT_FOUND", "comment not found", "")
				return
			}
			log.Error("flag failed", zap.Int64("comment_id", commentID), zap.Error(err))
			api.Internal(w, "")
			return
		}

		userID, _ := auth.UserIDFromContext(r.Context())
		ev.Publish(events.SubjectCommentFlagged, "comment_flagged", userID, map[string]any{
			"comment_id": commentID,
		})
		api.WriteJSON(w, http.StatusOK, map[string]any{"comment_id": commentID, "flagged": true})
	}
}

// SyncChannelCount handles POST /v1/posts/{post_id}/sync-count (admin only).
func SyncChannelCount(sync *channelsync.Synchronizer, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID, ok := pathID(r, "post_id")
		if !ok {
			api.BadRequest(w, "INVALID_ID", "post_id must be a positive integer", "", nil)
			return
		}

		count, err := sync.SyncCommentCount(r.Context(), postID)
		switch {
		case errors.Is(err, store.ErrPostNotFound):
			api.NotFound(w, "POST_NOT_FOUND", "post not found", "")
			return
		case errors.Is(err, channelsync.ErrNoChannelMessage):
			api.Conflict(w, "NO_CHANNEL_MESSAGE", "post has no channel message", "", nil)
			return
		case errors.Is(err, channelsync.ErrPostNotApproved):
			api.Conflict(w, "POST_NOT_APPROVED", "post is not approved", "", nil)
			return
		case err != nil:
			log.Error("channel sync failed", zap.Int64("post_id", postID), zap.Error(err))
			api.BadGateway(w, "CHANNEL_SYNC_FAILED", "channel publisher unavailable", "")
			return
		}
		api.WriteJSON(w, http.StatusOK, syncCountResponse{PostID: postID, CommentCount: count})
	}
}
