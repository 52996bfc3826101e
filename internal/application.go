package application

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rocketscienceinc/connectfour-backend/internal/config"
	"github.com/rocketscienceinc/connectfour-backend/internal/repository"
	"github.com/rocketscienceinc/connectfour-backend/internal/repository/storage"
	"github.com/rocketscienceinc/connectfour-backend/internal/transport/websocket"
	"github.com/rocketscienceinc/connectfour-backend/internal/usecase"
	"github.com/rocketscienceinc/connectfour-backend/transport/rest"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *zap.Logger, conf *config.Config) error {
	log := logger.With(zap.String("component", "app"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	stats, closeStats, err := initStats(ctx, log, conf)
	if err != nil {
		return err
	}
	defer closeStats()

	registry := usecase.NewRegistry()
	hub := websocket.NewHub()
	gameManager := usecase.NewGameManager(logger, registry, stats, hub, conf.Session.MaxNameLength)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("Starting HTTP server", zap.String("port", conf.HTTPPort))
		if httpErr := rest.Start(ctx, conf.HTTPPort, rest.NewHandlers(logger, stats, registry)); httpErr != nil {
			return fmt.Errorf("HTTP server error: %w", httpErr)
		}
		return nil
	})

	group.Go(func() error {
		log.Info("Starting WebSocket server", zap.String("port", conf.SocketPort))
		wsServer := websocket.New(logger, conf.Session, hub, gameManager)
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			return fmt.Errorf("WebSocket server error: %w", wsErr)
		}
		return nil
	})

	group.Go(func() error {
		return gameManager.RunSweeper(ctx, conf.Session.SweepInterval, conf.Session.RoomIdleTTL)
	})

	if err = group.Wait(); err != nil {
		return err
	}

	log.Info("Application context canceled, shutting down")

	return nil
}

// initStats picks redis-backed counters when enabled and in-memory ones otherwise.
func initStats(ctx context.Context, log *zap.Logger, conf *config.Config) (repository.StatsRepository, func(), error) {
	if !conf.Redis.Enabled {
		log.Info("redis disabled, keeping stats in memory")
		return repository.NewMemoryStatsRepository(), func() {}, nil
	}

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return nil, nil, ErrAddrNotFound
	}

	redisStorage, err := storage.New(ctx, redisAddrString)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
	}

	closeFn := func() {
		if closeErr := redisStorage.Close(); closeErr != nil {
			log.Error("could not close redis storage", zap.Error(closeErr))
		}
	}

	return repository.NewStatsRepository(redisStorage, conf.Redis.StatsKey), closeFn, nil
}
