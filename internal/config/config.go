package config

import (
	"errors"
	"log/slog"
	"strings"
	"time"
)

var ErrNoOperator = errors.New("one of BOT_OPERATOR_USERNAME or BOT_OPERATOR_ID is required")

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN"`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" envDefault:"30m"`
}

type BotConfig struct {
	Token            string        `env:"BOT_TOKEN"`
	OperatorUsername string        `env:"BOT_OPERATOR_USERNAME" envDefault:""`
	OperatorID       int64         `env:"BOT_OPERATOR_ID" envDefault:"0"`
	WebAppURL        string        `env:"BOT_WEBAPP_URL"`
	PollTimeout      time.Duration `env:"BOT_POLL_TIMEOUT" envDefault:"10s"`
}

// Validate checks the rules envconf tags cannot express.
func (c BotConfig) Validate() error {
	if c.OperatorID == 0 && strings.TrimPrefix(strings.TrimSpace(c.OperatorUsername), "@") == "" {
		return ErrNoOperator
	}

	return nil
}

type HTTPConfig struct {
	Port           uint16        `env:"HTTP_PORT" envDefault:"8080"`
	InitDataMaxAge time.Duration `env:"INITDATA_MAX_AGE" envDefault:"24h"`
}

type BroadcastConfig struct {
	Concurrency int           `env:"BROADCAST_CONCURRENCY" envDefault:"8"`
	DraftTTL    time.Duration `env:"BROADCAST_DRAFT_TTL" envDefault:"15m"`
}

// RedisConfig is optional; an empty Addr selects the in-memory draft store.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:""`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type LogConfig struct {
	Level  slog.Level `env:"APP_LOG_LEVEL" envDefault:"INFO"`
	Format string     `env:"APP_LOG_FORMAT" envDefault:"json"`
}
