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

	"github.com/almarpuit/site/internal/bootstrap"
	"github.com/almarpuit/site/internal/content"
	"github.com/almarpuit/site/internal/domain"
	"github.com/almarpuit/site/internal/platform/observability"
	"github.com/almarpuit/site/internal/web"
	"github.com/almarpuit/site/internal/web/handlers"
	"github.com/almarpuit/site/internal/web/i18n"
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
	logger := baseLogger.Named("web")

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

	hub, err := content.NewHub(content.Deps{
		Registry: registry,
		Session:  content.NoSession{},
		Logger:   logger.Named("content"),
	})
	if err != nil {
		logger.Fatal("failed to initialise content hub", zap.Error(err))
	}
	defer hub.Close()
	hub.Preload(ctx, domain.SectionKeys)
	hub.Milestones(ctx, domain.SectionAbout)
	hub.Requirements(ctx, domain.SectionWoodPurchase)

	bundle, err := i18n.Load()
	if err != nil {
		logger.Fatal("failed to load locale bundle", zap.Error(err))
	}

	h, err := handlers.New(handlers.Dependencies{
		Content:   hub,
		Bundle:    bundle,
		Mail:      bootstrap.MailSender(cfg, logger),
		Health:    registry.Health(),
		PublicURL: cfg.Site.PublicURL,
	})
	if err != nil {
		logger.Fatal("failed to initialise handlers", zap.Error(err))
	}

	srv, err := web.New(web.Config{
		Address:        cfg.Server.WebAddr,
		Handlers:       h,
		Locales:        bundle,
		CORSOrigins:    cfg.Site.CORSOrigins,
		Logger:         logger,
		TraceProjectID: cfg.Firebase.ProjectID,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
	})
	if err != nil {
		logger.Fatal("failed to build http server", zap.Error(err))
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()
	logger.Info("web server listening", zap.String("addr", cfg.Server.WebAddr), zap.String("store", cfg.Store.Driver))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		return
	}
	logger.Info("web server stopped")
}
