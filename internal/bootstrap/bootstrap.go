// Package bootstrap assembles the shared runtime dependencies of the web,
// admin and sitectl binaries from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/almarpuit/site/internal/content"
	"github.com/almarpuit/site/internal/platform/config"
	"github.com/almarpuit/site/internal/platform/events"
	pfirestore "github.com/almarpuit/site/internal/platform/firestore"
	"github.com/almarpuit/site/internal/platform/mail"
	"github.com/almarpuit/site/internal/platform/secrets"
	"github.com/almarpuit/site/internal/repositories"
	firestoreRepo "github.com/almarpuit/site/internal/repositories/firestore"
	"github.com/almarpuit/site/internal/repositories/memory"
	"github.com/almarpuit/site/internal/repositories/sqlstore"
)

// LoadConfig builds the secret fetcher and loads configuration through it.
// The caller owns the returned fetcher.
func LoadConfig(ctx context.Context, logger *zap.Logger, opts ...config.Option) (config.Config, *secrets.Fetcher, error) {
	fetcher, err := secrets.NewFetcher(ctx,
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithDefaultProject(secretsProject()),
	)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("bootstrap: secret fetcher: %w", err)
	}
	opts = append([]config.Option{config.WithSecretResolver(fetcher)}, opts...)
	cfg, err := config.Load(ctx, opts...)
	if err != nil {
		_ = fetcher.Close()
		return config.Config{}, nil, err
	}
	return cfg, fetcher, nil
}

func secretsProject() string {
	for _, key := range []string{"ALMAR_SECRETS_PROJECT_ID", "ALMAR_FIREBASE_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

// OpenRegistry opens the content store selected by cfg.Store.Driver.
func OpenRegistry(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.Registry, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory content store; content is lost on restart")
		return memory.New(), nil
	case config.DriverPostgres, config.DriverSQLite:
		store, err := sqlstore.Open(ctx, cfg.Store.Driver, cfg.Store.DSN, sqlstore.WithLogger(logger.Named("sqlstore")))
		if err != nil {
			return nil, err
		}
		if cfg.Store.BootstrapSchema {
			if err := store.CreateSchema(ctx); err != nil {
				_ = store.Close(ctx)
				return nil, fmt.Errorf("bootstrap: create schema: %w", err)
			}
			logger.Info("content schema ensured", zap.String("driver", cfg.Store.Driver))
		}
		return store, nil
	case config.DriverFirestore:
		provider := pfirestore.NewProvider(cfg.Firestore)
		if _, err := provider.Client(ctx); err != nil {
			return nil, fmt.Errorf("bootstrap: firestore client: %w", err)
		}
		return firestoreRepo.NewRegistry(provider)
	default:
		return nil, fmt.Errorf("bootstrap: unsupported store driver %q", cfg.Store.Driver)
	}
}

// EventPublisher returns the Pub/Sub publisher for content events, or nil
// when publishing is disabled. The returned close func is never nil.
func EventPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (content.EventPublisher, func() error, error) {
	if cfg.PubSub.ProjectID == "" {
		logger.Info("content events disabled; no pubsub project configured")
		return nil, func() error { return nil }, nil
	}
	client, err := events.Dial(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Topic)
	if err != nil {
		return nil, func() error { return nil }, err
	}
	return client.Publisher, client.Close, nil
}

// MailSender returns the Resend sender, or a sender that always reports
// mail.ErrNotConfigured when no API key is set.
func MailSender(cfg config.Config, logger *zap.Logger) mail.Sender {
	sender, err := mail.NewResendSender(cfg.Mail.ResendAPIKey, cfg.Mail.From)
	if errors.Is(err, mail.ErrNotConfigured) {
		logger.Warn("contact form mail disabled; resend api key not configured")
		return mail.Discard{}
	}
	return sender
}
