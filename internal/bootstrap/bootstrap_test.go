package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/almarpuit/site/internal/platform/config"
	"github.com/almarpuit/site/internal/platform/mail"
	"github.com/almarpuit/site/internal/repositories/memory"
	"github.com/almarpuit/site/internal/repositories/sqlstore"
)

func TestOpenRegistryByDriver(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	reg, err := OpenRegistry(ctx, config.Config{Store: config.StoreConfig{Driver: config.DriverMemory}}, logger)
	require.NoError(t, err)
	require.IsType(t, &memory.Store{}, reg)

	reg, err = OpenRegistry(ctx, config.Config{Store: config.StoreConfig{
		Driver:          config.DriverSQLite,
		DSN:             ":memory:",
		BootstrapSchema: true,
	}}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close(ctx) })
	require.IsType(t, &sqlstore.Store{}, reg)

	sec, err := reg.Sections().Insert(ctx, "hero")
	require.NoError(t, err)
	require.Equal(t, "hero", sec.Key)

	_, err = OpenRegistry(ctx, config.Config{Store: config.StoreConfig{Driver: "mysql"}}, logger)
	require.Error(t, err)
}

func TestOptionalIntegrationsDisabled(t *testing.T) {
	ctx := context.Background()
	publisher, closeFn, err := EventPublisher(ctx, config.Config{}, zap.NewNop())
	require.NoError(t, err)
	require.Nil(t, publisher)
	require.NoError(t, closeFn())

	sender := MailSender(config.Config{}, zap.NewNop())
	require.ErrorIs(t, sender.Send(ctx, mail.Message{To: "info@almarpuit.ee"}), mail.ErrNotConfigured)
}
