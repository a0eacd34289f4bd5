// Package channelsync keeps the public channel's message for a post in step
// with its live comment count. It builds one edit request per sync and hands
// it to the channel-publishing side over a Publisher.
package channelsync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/confession-platform/services/comments/internal/store"
)

var (
	// ErrNoChannelMessage means the post was never published to the channel.
	ErrNoChannelMessage = errors.New("no channel message found")
	// ErrPostNotApproved means the post exists but is not yet public.
	ErrPostNotApproved = errors.New("post not approved")
)

// Button is one inline deep-link button under the channel message.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// EditRequest is the instruction sent to the channel publisher. IsCaption
// selects caption editing for media posts instead of text editing.
type EditRequest struct {
	ChannelID int64    `json:"channel_id"`
	MessageID int64    `json:"message_id"`
	Text      string   `json:"text"`
	IsCaption bool     `json:"is_caption"`
	Buttons   []Button `json:"buttons"`
}

// Publisher delivers edit requests to the channel-publishing collaborator.
type Publisher interface {
	PublishEdit(ctx context.Context, req EditRequest) error
}

// PostReader is the slice of the comment store the synchronizer needs.
type PostReader interface {
	Post(ctx context.Context, postID int64) (store.PostSummary, error)
	Count(ctx context.Context, postID int64) (int, error)
}

// Synchronizer rebuilds a post's channel message from its current state.
type Synchronizer struct {
	posts       PostReader
	pub         Publisher
	channelID   int64
	botUsername string
	log         *zap.Logger
}

func New(posts PostReader, pub Publisher, channelID int64, botUsername string, log *zap.Logger) *Synchronizer {
	return &Synchronizer{
		posts:       posts,
		pub:         pub,
		channelID:   channelID,
		botUsername: strings.TrimPrefix(botUsername, "@"),
		log:         log,
	}
}

// SyncCommentCount rebuilds the channel message for postID and publishes the
// edit. It returns the comment count the message now reflects.
func (s *Synchronizer) SyncCommentCount(ctx context.Context, postID int64) (int, error) {
	post, err := s.posts.Post(ctx, postID)
	if err != nil {
		return 0, err
	}
	if post.ChannelMessageID == nil {
		return 0, ErrNoChannelMessage
	}
	if !post.Approved {
		return 0, ErrPostNotApproved
	}

	count, err := s.posts.Count(ctx, postID)
	if err != nil {
		return 0, err
	}

	req := EditRequest{
		ChannelID: s.channelID,
		MessageID: *post.ChannelMessageID,
		Text:      s.messageText(post),
		IsCaption: post.IsMedia,
		Buttons: []Button{
			{
				Label: "💬 Add Comment",
				URL:   fmt.Sprintf("https://t.me/%s?start=comment_%d", s.botUsername, post.ID),
			},
			{
				Label: fmt.Sprintf("👀 See Comments (%d)", count),
				URL:   fmt.Sprintf("https://t.me/%s?start=view_%d", s.botUsername, post.ID),
			},
		},
	}

	if s.pub == nil {
		s.log.Warn("channel publisher not configured, skipping edit",
			zap.Int64("post_id", postID))
		return count, nil
	}
	if err := s.pub.PublishEdit(ctx, req); err != nil {
		return 0, fmt.Errorf("channel sync: publish edit: %w", err)
	}

	s.log.Info("channel comment count synced",
		zap.Int64("post_id", postID),
		zap.Int64("message_id", *post.ChannelMessageID),
		zap.Int("comment_count", count))
	return count, nil
}

// messageText reassembles the channel post body. Media posts additionally
// carry their caption when it differs from the post body.
func (s *Synchronizer) messageText(post store.PostSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Confess # %d</b>", post.PostNumber)
	if strings.TrimSpace(post.Content) != "" {
		b.WriteString("\n\n")
		b.WriteString(post.Content)
	}
	if post.IsMedia && post.MediaCaption != nil && *post.MediaCaption != post.Content {
		b.WriteString("\n\n")
		b.WriteString(*post.MediaCaption)
	}
	b.WriteString("\n\n")
	b.WriteString(categoryTags(post.Category))
	return b.String()
}

// categoryTags turns "life, advice" into "#life #advice". Spaces inside a
// category collapse so every tag is a single token.
func categoryTags(category string) string {
	parts := strings.Split(category, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		tags = append(tags, "#"+strings.ReplaceAll(strings.TrimSpace(p), " ", ""))
	}
	return strings.Join(tags, " ")
}
