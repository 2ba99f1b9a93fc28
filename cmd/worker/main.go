// Command worker consumes invite jobs from the message queue: it transcribes
// the candidate's attachments through the LLM, composes the invitation email,
// and moves the attempt through the invite lifecycle. It shares the database
// and queue with the API server (cmd/server) and can be scaled independently.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/skillgate/go-interview-backend/internal/cache"
	"github.com/skillgate/go-interview-backend/internal/config"
	"github.com/skillgate/go-interview-backend/internal/llm"
	"github.com/skillgate/go-interview-backend/internal/mail"
	"github.com/skillgate/go-interview-backend/internal/queue"
	"github.com/skillgate/go-interview-backend/internal/repo"
	"github.com/skillgate/go-interview-backend/internal/sysutil"
	"github.com/skillgate/go-interview-backend/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	transcriber, err := llm.NewClient(cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Str("base_url", cfg.LLM.BaseURL).Msg("llm client")
	}

	broker, err := queue.NewBroker(cfg.AMQP, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.AMQP.URL).Msg("connect broker")
	}
	defer broker.Close()

	// The worker also hosts a sweeper so abandoned sessions are flushed even
	// when the API server is down.
	rdb, err := cache.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("connect redis")
	}
	defer rdb.Close()
	store := cache.NewConversationCache(rdb, db, cfg.Cache)
	sweeper := cache.NewSweeper(store, cfg.Cache.SweepInterval, log.Logger)
	go sweeper.Run(ctx)

	mailer := mail.NewSMTPMailer(cfg.SMTP)
	w := worker.NewInviteWorker(db, transcriber, mailer, cfg.Worker, cfg.AppBaseURL, log.Logger)

	log.Info().Str("queue", cfg.AMQP.InviteQueue).Int("max_consume", cfg.AMQP.MaxConsume).Msg("worker consuming")
	if err := broker.Consume(ctx, w.Handle); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("consume failed")
	}
	log.Info().Msg("worker exited")
}
