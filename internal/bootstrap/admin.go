package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/almarpuit/site/internal/platform/auth"
	"github.com/almarpuit/site/internal/platform/config"
	"github.com/almarpuit/site/internal/platform/storage"
)

// AdminAuth returns the sign-in and token verification pair for the
// configured admin auth mode.
func AdminAuth(ctx context.Context, cfg config.Config) (auth.PasswordSignIn, auth.TokenVerifier, error) {
	switch cfg.Admin.AuthMode {
	case config.AuthModeLocal:
		authority, err := auth.NewLocalAuthority(cfg.Admin.LocalUsers, cfg.Admin.JWTSecret, auth.WithTokenTTL(cfg.Session.Lifetime))
		if err != nil {
			return nil, nil, err
		}
		return authority, authority, nil
	case config.AuthModeFirebase:
		verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
		if err != nil {
			return nil, nil, err
		}
		signIn, err := auth.NewFirebasePasswordSignIn(ctx, cfg.Firebase.APIKey)
		if err != nil {
			return nil, nil, err
		}
		return signIn, verifier, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unsupported admin auth mode %q", cfg.Admin.AuthMode)
	}
}

// ImageUploader returns the Cloud Storage uploader, or nil when uploads are
// not configured or the storage client cannot be created. The returned close
// func is never nil.
func ImageUploader(ctx context.Context, cfg config.Config, logger *zap.Logger) (*storage.Uploader, func() error) {
	noop := func() error { return nil }
	if cfg.Storage.ImagesBucket == "" {
		logger.Info("image uploads disabled; no bucket configured")
		return nil, noop
	}
	writer, err := storage.NewGCSWriter(ctx)
	if err != nil {
		logger.Warn("image uploads disabled; storage client unavailable", zap.Error(err))
		return nil, noop
	}
	uploader, err := storage.NewUploader(writer, cfg.Storage.ImagesBucket, cfg.Storage.PublicBaseURL, cfg.Storage.MaxUploadBytes)
	if err != nil {
		_ = writer.Close()
		logger.Warn("image uploads disabled", zap.Error(err))
		return nil, noop
	}
	return uploader, writer.Close
}
