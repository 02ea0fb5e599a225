// cmd/historian/main.go runs the journal writer: it drains the Redis action
// queue into PostgreSQL and marks idle sessions abandoned.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/trivia/internal/cache"
	"github.com/jason-s-yu/trivia/internal/config"
	"github.com/jason-s-yu/trivia/internal/database"
	"github.com/jason-s-yu/trivia/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.PostgresDSN == "" || cfg.RedisAddr == "" {
		logger.Fatal("historian needs DATABASE_URL and REDIS_ADDR")
	}
	pool, err := database.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.WithError(err).Fatal("connect postgres")
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		logger.WithError(err).Fatal("migrate")
	}

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.WithError(err).Fatal("connect redis")
	}
	defer rdb.Close()

	svc := historian.New(
		cache.New(rdb, cfg.ActionQueue),
		database.NewJournal(pool),
		historian.Config{
			BatchSize:  cfg.HistorianBatchSize,
			FlushEvery: cfg.HistorianFlushEvery,
			Inactivity: cfg.AbandonAfter,
			CheckEvery: cfg.AbandonCheckInterval,
		},
		clockwork.NewRealClock(),
		logger.WithField("component", "historian"),
	)
	if err := svc.Run(ctx); err != nil {
		logger.WithError(err).Error("historian exited")
		os.Exit(1)
	}
	logger.Info("historian shutdown complete")
}
