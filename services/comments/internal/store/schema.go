package store

import (
	"context"
	"fmt"

	"github.com/example/confession-platform/internal/platform/db"
)

// Posts and users are owned by the submission and account systems; their
// tables are created here too so the embedded backend works standalone.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS posts (
		post_id INTEGER PRIMARY KEY AUTOINCREMENT,
		content TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		channel_message_id INTEGER,
		approved INTEGER NOT NULL DEFAULT 0,
		post_number INTEGER NOT NULL DEFAULT 0,
		is_media INTEGER NOT NULL DEFAULT 0,
		media_caption TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		user_id INTEGER PRIMARY KEY,
		comments_posted INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		comment_id INTEGER PRIMARY KEY AUTOINCREMENT,
		post_id INTEGER NOT NULL REFERENCES posts(post_id),
		content TEXT NOT NULL,
		user_id INTEGER NOT NULL,
		parent_comment_id INTEGER REFERENCES comments(comment_id),
		timestamp DATETIME NOT NULL,
		likes INTEGER NOT NULL DEFAULT 0,
		dislikes INTEGER NOT NULL DEFAULT 0,
		flagged INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS reactions (
		user_id INTEGER NOT NULL,
		target_type TEXT NOT NULL,
		target_id INTEGER NOT NULL,
		reaction_type TEXT NOT NULL,
		PRIMARY KEY (user_id, target_type, target_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_post_time ON comments (post_id, timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_parent ON comments (parent_comment_id)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS posts (
		post_id BIGSERIAL PRIMARY KEY,
		content TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		channel_message_id BIGINT,
		approved BOOLEAN NOT NULL DEFAULT FALSE,
		post_number BIGINT NOT NULL DEFAULT 0,
		is_media BOOLEAN NOT NULL DEFAULT FALSE,
		media_caption TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		user_id BIGINT PRIMARY KEY,
		comments_posted BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		comment_id BIGSERIAL PRIMARY KEY,
		post_id BIGINT NOT NULL REFERENCES posts(post_id),
		content TEXT NOT NULL,
		user_id BIGINT NOT NULL,
		parent_comment_id BIGINT REFERENCES comments(comment_id),
		timestamp TIMESTAMPTZ NOT NULL,
		likes INTEGER NOT NULL DEFAULT 0,
		dislikes INTEGER NOT NULL DEFAULT 0,
		flagged BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS reactions (
		user_id BIGINT NOT NULL,
		target_type TEXT NOT NULL,
		target_id BIGINT NOT NULL,
		reaction_type TEXT NOT NULL,
		PRIMARY KEY (user_id, target_type, target_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_post_time ON comments (post_id, timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_parent ON comments (parent_comment_id)`,
}

// Migrate creates the subsystem's tables for the gateway's backend.
func Migrate(ctx context.Context, gw *db.Gateway) error {
	var stmts []string
	switch gw.Dialect() {
	case db.DialectPostgres:
		stmts = postgresSchema
	case db.DialectSQLite:
		stmts = sqliteSchema
	default:
		return fmt.Errorf("store: no schema for dialect %q", gw.Dialect())
	}
	for _, stmt := range stmts {
		if err := gw.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}
