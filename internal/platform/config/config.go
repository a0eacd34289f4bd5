package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type HTTPConfig struct {
	Addr string
}

type DBConfig struct {
	// URL is a Postgres DSN. When empty the service falls back to the
	// embedded SQLite backend at SQLitePath.
	URL        string
	SQLitePath string
}

type CommentsConfig struct {
	// PageSize is the number of top-level comments per listing page.
	PageSize int
	// ChannelID identifies the channel whose summary messages get edited.
	ChannelID string
	// BotUsername builds the t.me deeplink URLs. A leading '@' is accepted.
	BotUsername string
}

type AppConfig struct {
	ServiceName string
	Env         string
	LogLevel    string
	HTTP        HTTPConfig
	DB          DBConfig
	Comments    CommentsConfig
	JWTSecret   string
}

const DefaultPageSize = 5

func Load() (AppConfig, error) {
	cfg := AppConfig{
		ServiceName: strings.TrimSpace(os.Getenv("SERVICE_NAME")),
		Env:         strings.TrimSpace(os.Getenv("APP_ENV")),
		LogLevel:    strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		HTTP: HTTPConfig{
			Addr: strings.TrimSpace(os.Getenv("HTTP_ADDR")),
		},
		DB: DBConfig{
			URL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
			SQLitePath: strings.TrimSpace(os.Getenv("SQLITE_PATH")),
		},
		Comments: CommentsConfig{
			PageSize:    envInt("COMMENTS_PER_PAGE", DefaultPageSize),
			ChannelID:   strings.TrimSpace(os.Getenv("CHANNEL_ID")),
			BotUsername: strings.TrimSpace(os.Getenv("BOT_USERNAME")),
		},
		JWTSecret: strings.TrimSpace(os.Getenv("JWT_SECRET")),
	}
	if cfg.ServiceName == "" {
		return AppConfig{}, errors.New("SERVICE_NAME is required")
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.DB.SQLitePath == "" {
		cfg.DB.SQLitePath = "confessions.db"
	}
	return cfg, nil
}

// IsProduction reports whether the process runs with APP_ENV=production.
func (c AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
