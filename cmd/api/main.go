package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/fleepgift/coinledger/internal/api"
	"github.com/fleepgift/coinledger/internal/bot"
	"github.com/fleepgift/coinledger/internal/config"
	"github.com/fleepgift/coinledger/internal/infra/logging"
	"github.com/fleepgift/coinledger/internal/infra/metrics"
	"github.com/fleepgift/coinledger/internal/infra/pgutils"
	"github.com/fleepgift/coinledger/internal/repos/drafts"
	"github.com/fleepgift/coinledger/internal/repos/drafts/memory"
	redisdrafts "github.com/fleepgift/coinledger/internal/repos/drafts/redis"
	"github.com/fleepgift/coinledger/internal/services/broadcast"
	"github.com/fleepgift/coinledger/internal/services/confirmation"
	"github.com/fleepgift/coinledger/internal/services/invoice"
	"github.com/fleepgift/coinledger/internal/services/ledger"
	"github.com/fleepgift/coinledger/pkg/envconf"
	"github.com/fleepgift/coinledger/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v\n", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	_ = godotenv.Load()

	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	err = cfg.Bot.Validate()
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	log := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	queue := shutdownqueue.New()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := queue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	db, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}

	queue.Add("postgres", func(context.Context) error {
		return db.Close()
	})

	store, err := openDraftStore(ctx, cfg.Redis, queue, log)
	if err != nil {
		return err
	}

	m := metrics.New()

	// --- Services ---
	ledgerSvc := ledger.New(db, log)

	tb, err := bot.NewTelebot(cfg.Bot, log)
	if err != nil {
		return fmt.Errorf("init bot: %w", err)
	}

	gateway := bot.NewGateway(tb)

	issuer := invoice.New(gateway, cfg.Bot.Token, log,
		invoice.WithMaxAge(cfg.HTTP.InitDataMaxAge),
		invoice.WithMetrics(m),
	)

	chatBot := bot.New(tb, cfg.Bot, bot.Deps{
		Issuer:      issuer,
		Confirmer:   confirmation.New(ledgerSvc, m, log),
		Accounts:    ledgerSvc,
		Flow:        broadcast.NewFlow(store, cfg.Broadcast.DraftTTL),
		Broadcaster: broadcast.NewDispatcher(ledgerSvc, gateway, cfg.Broadcast.Concurrency, m, log),
	}, log)

	// --- HTTP server ---
	srv := api.NewServer(cfg.HTTP.Port, api.Deps{
		Issuer:  issuer,
		DB:      db,
		Metrics: m,
		Log:     log,
	})

	queue.Add("http", func(c context.Context) error {
		log.Info("shut down server")

		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	log.Info("API started", "port", cfg.HTTP.Port)

	// --- Bot ---
	go chatBot.Start()

	queue.Add("bot", func(c context.Context) error {
		log.Info("shut down bot")

		done := make(chan struct{})

		go func() {
			chatBot.Stop()
			close(done)
		}()

		select {
		case <-done:
			return nil
		case <-c.Done():
			return c.Err()
		}
	})

	// --- Wait until either context cancels or server errors out ---
	select {
	case <-ctx.Done():
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}

// openDraftStore uses Redis when an address is configured and keeps drafts
// in process memory otherwise.
func openDraftStore(ctx context.Context, cfg config.RedisConfig, queue *shutdownqueue.Queue, log *slog.Logger) (drafts.Store, error) {
	if cfg.Addr == "" {
		log.Info("broadcast drafts kept in memory")

		return memory.New(), nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	err := client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("ping redis: %w", err)
	}

	queue.Add("redis", func(context.Context) error {
		return client.Close()
	})

	log.Info("broadcast drafts kept in redis", "addr", cfg.Addr)

	return redisdrafts.New(client), nil
}
