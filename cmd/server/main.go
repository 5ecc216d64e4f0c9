package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/api"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/auth"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/chat"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/config"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/handlers"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/realtime"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx := context.Background()

	// Users and (by default) messages live in SQL: Postgres when configured,
	// SQLite otherwise.
	var dataStore store.DataStore
	dbCheck := "sqlite"
	if cfg.DatabaseURL != "" {
		logger.Info().Msg("running database migrations...")
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Msg("migrations completed")

		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		dataStore = pgStore
		dbCheck = "postgres"
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		dataStore = sqliteStore
		logger.Info().Str("path", cfg.SQLitePath).Msg("using SQLite")
	}
	defer dataStore.Close()

	checks := map[string]handlers.Pinger{dbCheck: dataStore}

	// Initialize Redis store
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		var err error
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		redisStore.SetLogger(logger)
		checks["redis"] = redisStore
		logger.Info().Msg("connected to Redis")
	}

	var messages interface {
		chat.MessageReader
		chat.MessageAppender
	} = dataStore
	if cfg.MessageBackend == config.BackendRedis {
		messages = redisStore
	}
	logger.Info().Str("backend", cfg.MessageBackend).Msg("message store selected")

	var directory chat.Directory = chat.NewStoreDirectory(dataStore)
	if redisStore != nil {
		directory = chat.NewCachedDirectory(directory, redisStore, logger)
	}

	hub := realtime.NewHub(logger, cfg.Chat.OutboxSize)

	if cfg.NATSURL != "" {
		relay, err := realtime.NewNATSRelay(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("nats connection failed")
		}
		defer relay.Close()
		if err := relay.Start(hub); err != nil {
			logger.Fatal().Err(err).Msg("nats subscribe failed")
		}
		hub.SetRelay(relay)
		checks["nats"] = handlers.PingFunc(func(context.Context) error { return relay.Ping() })
		logger.Info().Str("subject", cfg.NATSSubject).Msg("connected to NATS")
	}

	tokens := auth.NewIssuer(cfg.JWTSecret)

	endpoint := chat.NewEndpoint(hub, messages, chat.Options{
		PersistFirst: cfg.Chat.PersistFirst,
		StrictRooms:  cfg.Chat.StrictRooms,
		SendRate:     rate.Limit(cfg.Chat.SendRate),
		SendBurst:    cfg.Chat.SendBurst,
	}, logger)

	socketServer := api.NewSocketServer(endpoint, api.SocketOptions{
		Tokens:       tokens,
		RequireToken: cfg.Chat.StrictRooms,
		PersistFirst: cfg.Chat.PersistFirst,
		AllowOrigin:  api.OriginChecker(cfg.CORSOrigins),
	}, logger)
	go func() {
		if err := socketServer.Serve(); err != nil {
			logger.Error().Err(err).Msg("socket server stopped")
		}
	}()

	h := handlers.NewHandler(handlers.Deps{
		Users:         dataStore,
		Conversations: chat.NewIndex(messages, directory, logger),
		Tokens:        tokens,
		Checks:        checks,
		StrictRooms:   cfg.Chat.StrictRooms,
		Logger:        logger,
	})

	routerCfg := api.RouterConfig{
		Tokens:           tokens,
		CORSOrigins:      cfg.CORSOrigins,
		RateLimitBypass:  cfg.RateLimitWhitelist,
		AutoBlockEnabled: cfg.AutoBlockEnabled,
		Socket:           socketServer,
	}
	if redisStore != nil {
		routerCfg.Redis = redisStore.Client()
	}

	// Create router
	router := api.NewRouter(logger, h, routerCfg)

	// Create server. Write timeout covers Socket.IO long-polling.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Bool("persist_first", cfg.Chat.PersistFirst).
			Bool("strict_rooms", cfg.Chat.StrictRooms).
			Msg("starting AgrolinkHub chat server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	hub.Close()
	if err := socketServer.Close(); err != nil {
		logger.Warn().Err(err).Msg("socket server close")
	}

	logger.Info().Msg("server stopped")
}
