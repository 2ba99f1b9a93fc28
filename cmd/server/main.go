// Command server runs the interview platform's HTTP API: interview and
// candidate management for organizations, plus the candidate-facing live
// session endpoints. The background invite worker runs as a separate binary
// (cmd/worker); the two share the database and the message queue.
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

	"github.com/skillgate/go-interview-backend/internal/cache"
	"github.com/skillgate/go-interview-backend/internal/config"
	httpapi "github.com/skillgate/go-interview-backend/internal/http"
	"github.com/skillgate/go-interview-backend/internal/llm"
	"github.com/skillgate/go-interview-backend/internal/observability"
	"github.com/skillgate/go-interview-backend/internal/queue"
	"github.com/skillgate/go-interview-backend/internal/repo"
	"github.com/skillgate/go-interview-backend/internal/sysutil"
)

var version = "dev"

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup")
	}
	defer func() {
		if err := shutdownOTel(context.Background()); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	rdb, err := cache.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("connect redis")
	}
	defer rdb.Close()
	store := cache.NewConversationCache(rdb, db, cfg.Cache)

	broker, err := queue.NewBroker(cfg.AMQP, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.AMQP.URL).Msg("connect broker")
	}
	defer broker.Close()

	chat, err := llm.NewClient(cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Str("base_url", cfg.LLM.BaseURL).Msg("llm client")
	}

	// Background reaper: flushes transcripts whose active deadline passed.
	sweeper := cache.NewSweeper(store, cfg.Cache.SweepInterval, log.Logger)
	go sweeper.Run(ctx)

	r := gin.New()
	httpapi.RegisterRoutes(r, db, store, chat, broker, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
