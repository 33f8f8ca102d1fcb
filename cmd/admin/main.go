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

	"go.uber.org/zap"

	"github.com/almarpuit/site/internal/admin/dashboard"
	"github.com/almarpuit/site/internal/admin/httpserver"
	"github.com/almarpuit/site/internal/admin/httpserver/middleware"
	"github.com/almarpuit/site/internal/admin/session"
	"github.com/almarpuit/site/internal/bootstrap"
	"github.com/almarpuit/site/internal/content"
	"github.com/almarpuit/site/internal/platform/observability"
)

func main() {
	baseLogger, err := observability.NewLogger(os.Getenv("ALMAR_LOG_LEVEL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("admin")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = observability.WithLogger(ctx, logger)

	cfg, fetcher, err := bootstrap.LoadConfig(ctx, logger)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()
	if err := cfg.ValidateAdmin(); err != nil {
		logger.Fatal("invalid admin configuration", zap.Error(err))
	}

	registry, err := bootstrap.OpenRegistry(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open content store", zap.Error(err), zap.String("driver", cfg.Store.Driver))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := registry.Close(closeCtx); err != nil {
			logger.Warn("content store close error", zap.Error(err))
		}
	}()

	publisher, closeEvents, err := bootstrap.EventPublisher(ctx, cfg, logger)
	if err != nil {
		logger.Warn("content events disabled", zap.Error(err))
	}
	defer func() {
		if err := closeEvents(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}()

	hub, err := content.NewHub(content.Deps{
		Registry: registry,
		Session:  content.ContextSession{},
		Events:   publisher,
		Logger:   logger.Named("content"),
	})
	if err != nil {
		logger.Fatal("failed to initialise content hub", zap.Error(err))
	}
	defer hub.Close()

	signIn, verifier, err := bootstrap.AdminAuth(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialise admin authentication", zap.Error(err), zap.String("mode", cfg.Admin.AuthMode))
	}

	sessions, err := session.NewManager(session.Config{
		HashKey:      []byte(cfg.Session.HashKey),
		BlockKey:     []byte(cfg.Session.BlockKey),
		CookiePath:   cfg.Admin.BasePath,
		CookieSecure: cfg.Session.CookieSecure,
		IdleTimeout:  cfg.Session.IdleTimeout,
		Lifetime:     cfg.Session.Lifetime,
	})
	if err != nil {
		logger.Fatal("failed to initialise session manager", zap.Error(err))
	}

	service, err := dashboard.NewService(registry)
	if err != nil {
		logger.Fatal("failed to initialise dashboard", zap.Error(err))
	}

	serverCfg := httpserver.Config{
		Address:        cfg.Server.AdminAddr,
		BasePath:       cfg.Admin.BasePath,
		Authenticator:  middleware.NewTokenAuthenticator(verifier),
		SignIn:         signIn,
		Sessions:       sessions,
		CookieSecure:   cfg.Session.CookieSecure,
		Content:        hub,
		Dashboard:      service,
		Feed:           registry.Changes(),
		Logger:         logger,
		TraceProjectID: cfg.Firebase.ProjectID,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
	}
	uploader, closeUploader := bootstrap.ImageUploader(ctx, cfg, logger)
	defer func() {
		if err := closeUploader(); err != nil {
			logger.Warn("storage close error", zap.Error(err))
		}
	}()
	if uploader != nil {
		serverCfg.Uploader = uploader
	}

	srv, err := httpserver.New(serverCfg)
	if err != nil {
		logger.Fatal("failed to build http server", zap.Error(err))
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()
	logger.Info("admin server listening",
		zap.String("addr", cfg.Server.AdminAddr),
		zap.String("base_path", cfg.Admin.BasePath),
		zap.String("auth_mode", cfg.Admin.AuthMode),
	)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		return
	}
	logger.Info("admin server stopped")
}
