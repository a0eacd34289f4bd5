// Package channelpub delivers channel-message edit requests over NATS
// JetStream. The channel-publishing collaborator owns the bot token and
// performs the actual message edits; this side only enqueues them.
package channelpub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/confession-platform/services/comments/internal/channelsync"
)

const (
	SubjectMessageEdit = "channel.messages.edit"
	streamName         = "CHANNEL"
)

// Publisher publishes edit requests to NATS JetStream. Unlike the analytics
// event path this publish is synchronous: the caller needs to know the edit
// was accepted by the broker.
type Publisher struct {
	js  nats.JetStreamContext
	log *zap.Logger
}

// New wraps an established NATS connection and ensures the CHANNEL stream
// exists.
func New(nc *nats.Conn, log *zap.Logger) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("channelpub: jetstream: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{"channel.>"},
		Storage:  nats.FileStorage,
	})
	if err != nil {
		log.Warn("failed to create NATS stream (may already exist)", zap.Error(err))
	}

	log.Info("channel edit publisher initialised", zap.String("stream", streamName))
	return &Publisher{js: js, log: log}, nil
}

// editEnvelope wraps the request with a correlation id for the consumer side.
type editEnvelope struct {
	RequestID string                  `json:"request_id"`
	Edit      channelsync.EditRequest `json:"edit"`
}

// PublishEdit sends one edit request and waits for the broker ack.
func (p *Publisher) PublishEdit(_ context.Context, req channelsync.EditRequest) error {
	env := editEnvelope{RequestID: uuid.NewString(), Edit: req}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("channelpub: marshal: %w", err)
	}

	ack, err := p.js.Publish(SubjectMessageEdit, data)
	if err != nil {
		return fmt.Errorf("channelpub: publish: %w", err)
	}

	p.log.Debug("channel edit published",
		zap.String("request_id", env.RequestID),
		zap.Int64("message_id", req.MessageID),
		zap.Uint64("seq", ack.Sequence),
	)
	return nil
}
