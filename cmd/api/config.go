package main

import (
	"time"

	"github.com/fleepgift/coinledger/internal/config"
)

type apiConfig struct {
	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Log       config.LogConfig
	Postgres  config.PostgresConfig
	Redis     config.RedisConfig
	Bot       config.BotConfig
	HTTP      config.HTTPConfig
	Broadcast config.BroadcastConfig
}
