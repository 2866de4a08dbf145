// Command relay-bot runs the conversation relay: it polls Telegram for
// inbound messages, routes them between anonymous users and the configured
// responder roster through one shared bot identity, and serves a read-only
// ops API for inspection.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/councilbot/go-relay-backend/internal/config"
	"github.com/councilbot/go-relay-backend/internal/directory"
	"github.com/councilbot/go-relay-backend/internal/domain"
	"github.com/councilbot/go-relay-backend/internal/gateway"
	"github.com/councilbot/go-relay-backend/internal/httpapi"
	"github.com/councilbot/go-relay-backend/internal/lockfile"
	"github.com/councilbot/go-relay-backend/internal/observability"
	"github.com/councilbot/go-relay-backend/internal/repo"
	"github.com/councilbot/go-relay-backend/internal/services"
	"github.com/councilbot/go-relay-backend/internal/sysutil"
	"github.com/councilbot/go-relay-backend/internal/telegram"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	// Refuse to start next to a running instance: two pollers on one token
	// would steal each other's updates.
	lock, err := lockfile.Acquire(cfg.LockPath)
	if err != nil {
		if errors.Is(err, lockfile.ErrAlreadyRunning) {
			log.Fatal().Str("lock", cfg.LockPath).Msg("another instance is already running")
		}
		log.Fatal().Err(err).Str("lock", cfg.LockPath).Msg("cannot acquire instance lock")
	}
	defer lock.Release()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", cfg.DBPath).Msg("cannot open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	dir, err := directory.Parse(cfg.Responders)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid RESPONDERS roster")
	}
	dir.AdminChatID = cfg.AdminChatID

	roster := make([]domain.Responder, 0, len(dir.Entries()))
	for _, e := range dir.Entries() {
		roster = append(roster, domain.Responder{RoleName: e.RoleName, ChatID: e.ChatID})
	}
	if err := repo.ReplaceResponders(ctx, db, roster); err != nil {
		log.Fatal().Err(err).Msg("cannot seed responders")
	}
	log.Info().Int("responders", len(roster)).Msg("responder roster loaded")

	cache := services.NewMappingCache()
	if n, err := cache.Warm(ctx, db); err != nil {
		log.Warn().Err(err).Msg("mapping cache warm failed, resolver will fall back to storage")
	} else {
		log.Info().Int("mappings", n).Msg("mapping cache warmed")
	}

	client := telegram.NewClient(nil, sysutil.FirstNonEmpty(cfg.APIBaseURL, telegram.DefaultBaseURL), cfg.BotToken)
	if me, err := client.GetMe(ctx); err != nil {
		log.Fatal().Err(err).Msg("bot token verification failed")
	} else {
		log.Info().Str("bot", me).Str("version", version).Msg("starting relay")
	}

	disp := &services.Dispatcher{
		DB:          db,
		Threads:     &services.ThreadService{DB: db, MaxMessageRunes: cfg.MaxMsgRunes},
		Blocks:      &services.BlockService{DB: db},
		Limiter:     services.NewRateLimiter(cfg.RateWindow, cfg.RateMax, cfg.MinInterval),
		States:      services.NewStateStore(),
		Resolver:    &services.ReplyResolver{DB: db, Cache: cache},
		Cache:       cache,
		Sender:      client,
		Dir:         dir,
		Log:         log.With().Str("component", "dispatcher").Logger(),
		AuditChatID: cfg.AuditChatID,
	}

	// Ops HTTP server.
	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, cfg)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("ops api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("ops api server failed")
			stop()
		}
	}()

	// Single consumer: the poller delivers updates in order and the
	// dispatcher runs each one to completion before the next.
	poller := &telegram.Poller{
		Client:  client,
		Timeout: cfg.PollTimeout,
		Log:     log.With().Str("component", "poller").Logger(),
	}
	pollErr := make(chan error, 1)
	go func() {
		pollErr <- poller.Run(ctx, func(ctx context.Context, ev gateway.Event) {
			if err := disp.HandleEvent(ctx, ev); err != nil {
				log.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("event handling failed")
			}
		})
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-pollErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("poller stopped")
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("ops api shutdown")
	}
	log.Info().Msg("relay stopped")
}
