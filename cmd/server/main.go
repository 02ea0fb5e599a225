// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jason-s-yu/trivia/internal/auth"
	"github.com/jason-s-yu/trivia/internal/cache"
	"github.com/jason-s-yu/trivia/internal/config"
	"github.com/jason-s-yu/trivia/internal/database"
	"github.com/jason-s-yu/trivia/internal/game"
	"github.com/jason-s-yu/trivia/internal/generate"
	"github.com/jason-s-yu/trivia/internal/handlers"
	"github.com/jason-s-yu/trivia/internal/localstore"
	"github.com/jason-s-yu/trivia/internal/persist"
	_ "github.com/joho/godotenv/autoload"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cfg.NewLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
}

// remote is the shared store plus the Redis client used for the action queue.
type remote struct {
	backend persist.Backend
	queue   *cache.Client
	close   func()
}

// connectRemote opens Postgres and Redis. Any failure leaves the server on the
// local store only.
func connectRemote(ctx context.Context, cfg config.Config) (*remote, error) {
	if cfg.PostgresDSN == "" || cfg.RedisAddr == "" {
		return nil, errors.New("DATABASE_URL and REDIS_ADDR are both required for the shared store")
	}
	pool, err := database.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		pool.Close()
		return nil, err
	}
	client := cache.New(rdb, cfg.ActionQueue)
	return &remote{
		backend: persist.NewBackend(database.NewStore(pool), client),
		queue:   client,
		close: func() {
			rdb.Close()
			pool.Close()
		},
	}, nil
}

// journalTo pushes every applied transition onto the historian queue once one
// is connected.
func journalTo(ctx context.Context, queue *atomic.Pointer[cache.Client], logger logrus.FieldLogger) func(rec game.ActionRecord) {
	return func(rec game.ActionRecord) {
		q := queue.Load()
		if q == nil {
			return
		}
		msg, err := game.EncodeAction(rec.Action)
		if err != nil {
			logger.WithError(err).Warn("failed to encode action for journal")
			return
		}
		pctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		err = q.PublishAction(pctx, cache.ActionRecord{
			SessionID:     rec.SessionID,
			ActionIndex:   rec.ActionIndex,
			ActorID:       rec.ActorID,
			ActionType:    msg.ActionType,
			ActionPayload: msg.Payload,
			Revision:      rec.Revision,
			Timestamp:     rec.Timestamp.UnixMilli(),
		})
		if err != nil {
			logger.WithError(err).WithField("session_id", rec.SessionID).Debug("failed to journal action")
		}
	}
}

func newIssuer(cfg config.Config, clock clockwork.Clock) (*auth.Issuer, error) {
	ttl, err := auth.ParseTTL(cfg.TokenExpireTime)
	if err != nil {
		return nil, err
	}
	if cfg.JWTKeyPath != "" {
		return auth.LoadIssuer(cfg.JWTKeyPath, ttl, clock)
	}
	return auth.GenerateIssuer(ttl, clock)
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	clock := clockwork.NewRealClock()

	local, err := localstore.Open(cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	defer local.Close()

	var (
		shared persist.Backend
		queue  atomic.Pointer[cache.Client]
		// closers run after the server stops; a late connection adds its own
		closers = make(chan func(), 1)
	)
	rem, err := connectRemote(ctx, cfg)
	if err != nil {
		logger.WithError(err).Warn("shared store unavailable, starting degraded")
	} else {
		shared = rem.backend
		queue.Store(rem.queue)
		closers <- rem.close
	}
	defer func() {
		select {
		case closeRemote := <-closers:
			closeRemote()
		default:
		}
	}()

	fallback := persist.NewFallback(shared, persist.NewBackend(local, localstore.NewBroker()), logger.WithField("component", "store"))
	fallback.LocalOnly = auth.IsGuest

	issuer, err := newIssuer(cfg, clock)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	srv := handlers.NewServer(ctx, handlers.Deps{
		Logger: logger,
		Auth:   issuer,
		Repo:   persist.NewRepository(fallback),
		Games:  game.NewStore(),
		Generator: generate.New(generate.Config{
			ResponsesURL: cfg.GenerateResponsesURL,
			ImagesURL:    cfg.GenerateImagesURL,
			APIKey:       cfg.GenerateAPIKey,
			Model:        cfg.GenerateModel,
			ImageModel:   cfg.GenerateImageModel,
			MinInterval:  cfg.GenerateMinInterval,
			Categories:   cfg.GenerateCategories,
			Clock:        clock,
		}),
		Store:             fallback,
		Journal:           journalTo(ctx, &queue, logger.WithField("component", "journal")),
		Clock:             clock,
		NodeID:            cfg.NodeID,
		ProjectClueStatus: cfg.ProjectClueStatus,
	})
	fallback.OnModeChange = srv.StoreModeChanged

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithFields(logrus.Fields{"addr": httpSrv.Addr, "node": cfg.NodeID, "store": fallback.Mode()}).Info("starting http server")
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(sctx)
	})
	g.Go(func() error {
		fallback.Watch(gctx, clock, cfg.RecoverInterval)
		return nil
	})
	if rem == nil {
		g.Go(func() error {
			late := reconnect(gctx, cfg, clock, logger)
			if late == nil {
				return nil
			}
			closers <- late.close
			queue.Store(late.queue)
			fallback.Attach(late.backend)
			logger.Info("shared store connected, switching over on the next recovery check")
			return nil
		})
	}
	return g.Wait()
}

// reconnect retries connectRemote every RECOVER_INTERVAL until it succeeds or
// ctx is done.
func reconnect(ctx context.Context, cfg config.Config, clock clockwork.Clock, logger logrus.FieldLogger) *remote {
	if cfg.PostgresDSN == "" || cfg.RedisAddr == "" {
		return nil
	}
	ticker := clock.NewTicker(cfg.RecoverInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			cctx, cancel := context.WithTimeout(ctx, cfg.RecoverInterval)
			rem, err := connectRemote(cctx, cfg)
			cancel()
			if err == nil {
				return rem
			}
			logger.WithError(err).Debug("shared store still unavailable")
		}
	}
}
