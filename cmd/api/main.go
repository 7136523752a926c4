package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventstream/config"
	_ "eventstream/docs"
	"eventstream/internal/adapters/auth"
	"eventstream/internal/adapters/cache"
	"eventstream/internal/adapters/email"
	deliveryhttp "eventstream/internal/delivery/http"
	"eventstream/internal/delivery/http/controllers"
	"eventstream/internal/delivery/http/middleware"
	"eventstream/internal/delivery/ws"
	"eventstream/internal/domain"
	"eventstream/internal/realtime"
	"eventstream/internal/repository/postgres"
	"eventstream/internal/services"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"
)

// @title Eventstream API
// @version 1.0
// @description Live event rooms: chat history, registrations and a realtime websocket at /ws.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := config.NewLogger(os.Stdout, cfg.Environment, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		return err
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return err
	}
	if err := postgres.Migrate(pingCtx, db); err != nil {
		return err
	}

	historyCache, closeCache := newHistoryCache(cfg, logger)
	defer closeCache()

	// Repositories
	eventRepo := postgres.NewEventRepository(db)
	chatRepo := postgres.NewChatMessageRepository(db)
	registrationRepo := postgres.NewEventRegistrationRepository(db)

	// Mail
	mailer := email.NewMailer(email.MailerConfig{
		Provider:    cfg.Mail.Provider,
		FromAddress: cfg.Mail.FromAddress,
		FromName:    cfg.Mail.FromName,
		SES: email.SESConfig{
			Region:          cfg.Mail.SESRegion,
			AccessKeyID:     cfg.Mail.SESAccessKeyID,
			SecretAccessKey: cfg.Mail.SESSecretAccessKey,
		},
	}, logger)
	emailService := services.NewEmailService(mailer, email.NewTemplateRenderer(), logger)

	// Services
	registry := realtime.NewRegistry(logger)
	chatService := services.NewChatService(chatRepo, historyCache, registry, cfg.Chat.HistoryReplayLimit, logger)
	presenceService := services.NewPresenceService(registry, logger)
	registrationService := services.NewRegistrationService(eventRepo, registrationRepo, emailService, logger)

	verifier := auth.NewJWTVerifier(cfg.JWTSecret)

	wsHandler := ws.NewHandler(logger, verifier, registry, chatService, presenceService, ws.Config{
		Client: realtime.ClientConfig{
			PingInterval:   cfg.WS.PingInterval,
			PongWait:       cfg.WS.PongWait,
			WriteWait:      cfg.WS.WriteWait,
			MaxMessageSize: cfg.WS.MaxMessageSize,
			SendBuffer:     cfg.WS.SendBuffer,
		},
		OpTimeout:      cfg.RequestTimeout,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	router := deliveryhttp.NewRouter(deliveryhttp.RouterDeps{
		Logger:                 logger,
		Verifier:               verifier,
		ChatController:         controllers.NewChatController(logger, chatService),
		RegistrationController: controllers.NewRegistrationController(logger, registrationService),
		WebSocket:              wsHandler,
	})
	handler := middleware.LoggingMiddleware(logger, middleware.CORS(cfg.AllowedOrigins, router))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", server.Addr, "env", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newHistoryCache connects to Redis when configured. Without Redis, or when it cannot be
// reached at startup, history pages are always read from Postgres.
func newHistoryCache(cfg *config.Config, logger *slog.Logger) (domain.HistoryCache, func()) {
	if cfg.Redis.Address == "" {
		logger.Info("history cache disabled")
		return cache.NoopHistoryCache{}, func() {}
	}
	c, err := cache.NewRedisHistoryCache(cache.RedisConfig{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Chat.HistoryCacheTTL)
	if err != nil {
		logger.Warn("history cache unavailable, reading from postgres", "addr", cfg.Redis.Address, "err", err)
		return cache.NoopHistoryCache{}, func() {}
	}
	logger.Info("history cache connected", "addr", cfg.Redis.Address)
	return c, func() { _ = c.Close() }
}
