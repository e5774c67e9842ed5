package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/wes-io-collab/internal/config"
	"github.com/weiawesome/wes-io-collab/internal/handler"
	"github.com/weiawesome/wes-io-collab/internal/hub"
	"github.com/weiawesome/wes-io-collab/internal/kafka"
	"github.com/weiawesome/wes-io-collab/internal/presence"
	"github.com/weiawesome/wes-io-collab/internal/relay"
	"github.com/weiawesome/wes-io-collab/internal/service"
	"github.com/weiawesome/wes-io-collab/internal/store"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
	"github.com/weiawesome/wes-io-collab/pkg/pubsub"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "collab-service",
		InstanceID:  cfg.Server.InstanceID,
	})
	logger := pkglog.L()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Shared Redis client, needed by any Redis-backed component
	var redisClient *redis.Client
	if cfg.Store.Driver == config.StoreDriverRedis || cfg.Presence.Driver == config.PresenceDriverRedis {
		redisClient, err = store.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		logger.Info().Str("address", cfg.Redis.Address).Msg("redis connected")
	}

	// State store
	var roomStore store.RoomStore
	switch cfg.Store.Driver {
	case config.StoreDriverRedis:
		roomStore = store.NewRedisStore(redisClient, cfg.Store)
	default:
		roomStore = store.NewMemoryStore()
	}
	defer roomStore.Close()

	// Presence tracker
	var tracker presence.Tracker
	switch cfg.Presence.Driver {
	case config.PresenceDriverRedis:
		tracker = presence.NewRedisTracker(redisClient, cfg.Presence.KeyPrefix)
	default:
		tracker = presence.NewMemoryTracker()
	}
	defer tracker.Close()

	// Hub
	wsHub := hub.NewHub(cfg.WebSocket)
	go wsHub.Run()
	defer wsHub.Stop()

	// Broadcast path: the hub alone, or the hub plus the cross-instance relay
	var broadcaster service.Broadcaster = wsHub
	var roomRelay *relay.Relay
	if cfg.Broadcast.Driver != config.BroadcastDriverLocal {
		ps, err := pubsub.NewPubSub(cfg.PubSub())
		if err != nil {
			logger.Fatal().Err(err).Str("driver", cfg.Broadcast.Driver).Msg("failed to initialize pubsub")
		}
		defer ps.Close()

		roomRelay = relay.New(wsHub, ps, cfg.Server.InstanceID)
		if err := roomRelay.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to start relay")
		}
		broadcaster = roomRelay
		logger.Info().Str("driver", cfg.Broadcast.Driver).Msg("cross-instance relay started")
	}

	// Snapshot archive
	var producer kafka.SnapshotProducer
	if cfg.Archive.Enabled {
		producer, err = kafka.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Archive.Topic, cfg.Kafka.Partitions)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize kafka producer")
		}
		logger.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Archive.Topic).Msg("snapshot archive enabled")
	}

	collabSvc := service.NewCollabService(wsHub, broadcaster, roomStore, tracker, producer, cfg.Session)
	defer func() {
		if err := collabSvc.Stop(); err != nil {
			logger.Error().Err(err).Msg("failed to stop collab service")
		}
	}()

	// Setup Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	handler.NewHTTPHandler(collabSvc).RegisterRoutes(r)
	handler.NewWSHandler(wsHub, collabSvc, cfg.WebSocket).RegisterRoutes(r)

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", server.Addr).
			Str("store", cfg.Store.Driver).
			Str("presence", cfg.Presence.Driver).
			Str("broadcast", cfg.Broadcast.Driver).
			Msg("collab-service starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down collab-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	cancel()
	if roomRelay != nil {
		<-roomRelay.Done()
	}

	logger.Info().Msg("collab-service stopped")
}
