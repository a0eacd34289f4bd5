package main

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/confession-platform/internal/platform/auth"
	"github.com/example/confession-platform/internal/platform/config"
	"github.com/example/confession-platform/internal/platform/db"
	"github.com/example/confession-platform/internal/platform/events"
	"github.com/example/confession-platform/internal/platform/httpserver"
	"github.com/example/confession-platform/internal/platform/logging"
	"github.com/example/confession-platform/internal/platform/natsconn"
	"github.com/example/confession-platform/internal/platform/run"
	"github.com/example/confession-platform/services/comments/internal/channelpub"
	"github.com/example/confession-platform/services/comments/internal/channelsync"
	"github.com/example/confession-platform/services/comments/internal/handlers"
	"github.com/example/confession-platform/services/comments/internal/store"
	"github.com/example/confession-platform/services/comments/internal/thread"
	"github.com/example/confession-platform/services/comments/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	gw, err := openGateway(cfg, log)
	if err != nil {
		log.Error("open database", zap.Error(err))
		run.Exit(1)
	}
	defer func() { _ = gw.Close() }()

	if err := store.Migrate(context.Background(), gw); err != nil {
		log.Error("migrate", zap.Error(err))
		run.Exit(1)
	}

	cs := store.NewSQLCommentStore(gw)
	ts := thread.New(gw, cfg.Comments.PageSize)

	// NATS is optional: without it the service skips channel edits, domain
	// events and the moderation consumer.
	var (
		nc  *nats.Conn
		pub channelsync.Publisher
		ev  *events.Publisher
	)
	nc, err = natsconn.Connect(natsconn.Options{Name: cfg.ServiceName})
	if err != nil {
		log.Warn("nats unavailable, channel sync and events disabled", zap.Error(err))
	} else {
		defer nc.Close()
		if p, err := channelpub.New(nc, log); err != nil {
			log.Warn("channel publisher init failed", zap.Error(err))
		} else {
			pub = p
		}
		if js, err := nc.JetStream(); err != nil {
			log.Warn("jetstream init failed, events disabled", zap.Error(err))
		} else {
			ev = events.New(js, log)
		}
	}

	channelID, err := strconv.ParseInt(cfg.Comments.ChannelID, 10, 64)
	if err != nil && cfg.Comments.ChannelID != "" {
		log.Warn("invalid CHANNEL_ID, channel sync disabled",
			zap.String("channel_id", cfg.Comments.ChannelID))
	}
	sync := channelsync.New(cs, pub, channelID, cfg.Comments.BotUsername, log)

	verifier := auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		ReadyFunc: func() error { return gw.QueryRow(context.Background(), "SELECT 1").Err() },
	})

	r.Get("/v1/posts/{post_id}/comments", handlers.ListComments(ts, log))
	r.Get("/v1/comments/{comment_id}", handlers.GetComment(cs, log))
	r.Get("/v1/comments/{comment_id}/number", handlers.CommentNumber(ts, log))
	r.Get("/v1/comments/{comment_id}/parent", handlers.CommentParent(ts, log))
	r.Get("/v1/comments/{comment_id}/location", handlers.LocateComment(ts, log))

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Post("/v1/posts/{post_id}/comments", handlers.CreateComment(cs, sync, ev, log))
		r.Post("/v1/comments/{comment_id}/reactions", handlers.ReactComment(cs, ev, log))
		r.Get("/v1/comments/{comment_id}/reactions/me", handlers.GetUserReaction(cs, log))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Post("/v1/comments/{comment_id}/flag", handlers.FlagComment(cs, ev, log))
			r.Post("/v1/posts/{post_id}/sync-count", handlers.SyncChannelCount(sync, log))
		})
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		if nc != nil {
			worker.StartFlagConsumer(ctx, nc, cs, log)
		}
		go func() {
			<-ctx.Done()
			_ = srv.Shutdown(context.Background())
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

var errDatabaseURLRequired = errors.New("DATABASE_URL is required in production")

// openGateway selects the backend: Postgres when DATABASE_URL is set, the
// embedded SQLite file otherwise. Production refuses to run on SQLite.
func openGateway(cfg config.AppConfig, log *zap.Logger) (*db.Gateway, error) {
	ctx := context.Background()
	if cfg.DB.URL != "" {
		log.Info("using postgres backend")
		return db.Open(ctx, db.DialectPostgres, cfg.DB.URL)
	}
	if cfg.IsProduction() {
		return nil, errDatabaseURLRequired
	}
	log.Warn("DATABASE_URL not set, using embedded sqlite backend",
		zap.String("path", cfg.DB.SQLitePath))
	return db.Open(ctx, db.DialectSQLite, cfg.DB.SQLitePath)
}
