// Package worker consumes moderation decisions from NATS and applies them to
// stored comments.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/confession-platform/services/comments/internal/store"
)

const (
	subjectFlag = "moderation.comments.flag"
	durableName = "comments_moderation"
	streamName  = "MODERATION"
)

// FlagEvent is the payload emitted by the moderation pipeline when a comment
// is to be hidden.
type FlagEvent struct {
	EventID   string `json:"event_id"`
	CommentID int64  `json:"comment_id"`
	Reason    string `json:"reason,omitempty"`
}

// Flagger is the slice of the comment store the consumer needs.
type Flagger interface {
	Flag(ctx context.Context, commentID int64) error
}

// StartFlagConsumer subscribes to moderation flag events and applies them
// until ctx is cancelled. Errors during setup are logged, not fatal; the
// service runs without the consumer.
func StartFlagConsumer(ctx context.Context, nc *nats.Conn, cs Flagger, log *zap.Logger) {
	js, err := nc.JetStream()
	if err != nil {
		log.Error("flag consumer: jetstream", zap.Error(err))
		return
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{"moderation.>"},
		Storage:  nats.FileStorage,
	})
	if err != nil {
		log.Warn("flag consumer: create stream (may already exist)", zap.Error(err))
	}

	sub, err := js.PullSubscribe(subjectFlag, durableName)
	if err != nil {
		log.Error("flag consumer: subscribe", zap.Error(err))
		return
	}

	go consumeLoop(ctx, sub, cs, log)
}

// applyFlag processes one moderation message. The returned bool is the ack
// decision: true for applied or permanently unprocessable, false for retry.
func applyFlag(ctx context.Context, cs Flagger, data []byte, log *zap.Logger) bool {
	var ev FlagEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		// Malformed payloads will never succeed; drop them.
		log.Warn("flag consumer: invalid event", zap.Error(err))
		return true
	}

	err := cs.Flag(ctx, ev.CommentID)
	switch {
	case errors.Is(err, store.ErrCommentNotFound):
		// The comment may have been purged already.
		log.Warn("flag consumer: comment missing",
			zap.Int64("comment_id", ev.CommentID),
			zap.String("event_id", ev.EventID))
		return true
	case err != nil:
		log.Error("flag consumer: flag failed",
			zap.Int64("comment_id", ev.CommentID), zap.Error(err))
		return false
	}

	log.Info("comment flagged by moderation",
		zap.Int64("comment_id", ev.CommentID),
		zap.String("event_id", ev.EventID))
	return true
}

func consumeLoop(ctx context.Context, sub *nats.Subscription, cs Flagger, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := sub.Fetch(10, nats.MaxWait(2*time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			log.Warn("flag consumer: fetch", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, m := range msgs {
			if applyFlag(ctx, cs, m.Data, log) {
				_ = m.Ack()
			} else {
				_ = m.Nak()
			}
		}
	}
}
