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

	"github.com/weiawesome/wes-io-live/party-service/internal/auth"
	"github.com/weiawesome/wes-io-live/party-service/internal/catalog"
	"github.com/weiawesome/wes-io-live/party-service/internal/config"
	"github.com/weiawesome/wes-io-live/party-service/internal/handler"
	"github.com/weiawesome/wes-io-live/party-service/internal/hub"
	"github.com/weiawesome/wes-io-live/party-service/internal/reconcile"
	"github.com/weiawesome/wes-io-live/party-service/internal/roomid"
	"github.com/weiawesome/wes-io-live/party-service/internal/service"
	"github.com/weiawesome/wes-io-live/party-service/internal/store"
	"github.com/weiawesome/wes-io-live/party-service/pkg/database"
	"github.com/weiawesome/wes-io-live/party-service/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-live/party-service/pkg/log"
	"github.com/weiawesome/wes-io-live/party-service/pkg/pubsub"
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
		ServiceName: "party-service",
		InstanceID:  cfg.Server.InstanceID,
	})
	logger := pkglog.L()

	if !cfg.Log.Pretty && cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Token verification
	tokens, err := jwt.NewManager(cfg.Auth)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize token verification")
	}
	guard := auth.NewJWTGuard(tokens)

	// Room store
	roomStore, err := store.NewRedisStore(store.RedisConfig{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
		Prefix:   cfg.Redis.RoomPrefix,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer roomStore.Close()
	logger.Info().Str("addr", cfg.Redis.Address).Msg("room store connected")

	// Fanout bus; the redis driver shares the store's client.
	bus, err := pubsub.NewPubSub(cfg.Bus, roomStore.Client())
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Bus.Driver).Msg("failed to initialize fanout bus")
	}
	defer bus.Close()
	logger.Info().Str("driver", cfg.Bus.Driver).Msg("fanout bus ready")

	// Room catalog
	var repo catalog.Repository
	if cfg.Catalog.Enabled {
		db, err := database.New(&cfg.Catalog.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to catalog database")
		}
		defer database.Close(db)

		if err := catalog.Migrate(db); err != nil {
			logger.Fatal().Err(err).Msg("failed to auto-migrate catalog")
		}
		repo = catalog.NewGormRepository(db)
		logger.Info().Str("driver", cfg.Catalog.Database.Driver).Msg("room catalog ready")
	}

	// Initialize Hub
	wsHub := hub.NewHub(cfg.WebSocket)
	go wsHub.Run(bus.Events())

	// Initialize services
	opts := service.Options{OpTimeout: cfg.Server.OpTimeout}
	engine := reconcile.NewEngine(cfg.Reconcile)
	partySvc := service.NewPartyService(wsHub, guard, roomStore, bus, engine, opts)
	roomSvc := service.NewRoomService(wsHub, guard, roomStore, bus, repo, roomid.NewHexGenerator(), opts)

	// Setup Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	handler.NewWSHandler(wsHub, partySvc, cfg.WebSocket, cfg.Server.OpTimeout).RegisterRoutes(r, cfg.Server.WSPath)
	handler.NewHandler(wsHub, roomSvc, tokens, cfg.Server.InstanceID).RegisterRoutes(r)

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("addr", server.Addr).
			Str("ws_path", cfg.Server.WSPath).
			Msg("party-service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down party-service")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("server forced to shutdown")
	}
	// Sockets are hijacked, so Shutdown does not wait for them. Their
	// disconnect cleanup needs the store and bus, which close on return.
	if err := wsHub.Drain(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("websocket clients did not drain before shutdown")
	}
	wsHub.Stop()

	logger.Info().Msg("party-service stopped")
}
