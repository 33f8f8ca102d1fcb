//go:build integration

package firestore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/almarpuit/site/internal/domain"
	"github.com/almarpuit/site/internal/platform/config"
	pfirestore "github.com/almarpuit/site/internal/platform/firestore"
	"github.com/almarpuit/site/internal/repositories"
)

func newEmulatorRegistry(t *testing.T) *Registry {
	t.Helper()
	host := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	provider := pfirestore.NewProvider(config.FirestoreConfig{
		ProjectID:    fmt.Sprintf("almar-test-%d", time.Now().UnixNano()),
		EmulatorHost: host,
	})
	registry, err := NewRegistry(provider)
	require.NoError(t, err)
	t.Cleanup(func() { _ = registry.Close(context.Background()) })
	return registry
}

func TestRegistryIntegration(t *testing.T) {
	registry := newEmulatorRegistry(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, registry.Ping(ctx))

	sec, err := registry.Sections().Insert(ctx, domain.SectionHero)
	require.NoError(t, err)
	_, err = registry.Sections().Insert(ctx, domain.SectionHero)
	require.True(t, repositories.IsConflict(err), "got %v", err)

	require.NoError(t, registry.Translations().UpsertValue(ctx, sec.ID, "title", domain.LocaleET, "Tere"))
	require.NoError(t, registry.Translations().UpsertValue(ctx, sec.ID, "title", domain.LocaleEN, "Hello"))
	rows, err := registry.Translations().ListBySection(ctx, sec.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, domain.Text{ET: "Tere", EN: "Hello"}, rows[0].Text())

	_, err = registry.Requirements().FindBySection(ctx, sec.ID)
	require.True(t, repositories.IsNotFound(err))
}

func TestChangeFeedIntegration(t *testing.T) {
	registry := newEmulatorRegistry(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sec, err := registry.Sections().Insert(ctx, domain.SectionAbout)
	require.NoError(t, err)

	changes := make(chan domain.Change, 4)
	unsubscribe, err := registry.Changes().Subscribe(ctx, domain.TableMilestones, sec.ID, func(c domain.Change) {
		changes <- c
	})
	require.NoError(t, err)
	defer unsubscribe()

	// Give the listener time to deliver its initial snapshot.
	time.Sleep(500 * time.Millisecond)
	_, err = registry.Milestones().Insert(ctx, sec.ID, domain.MilestoneDraft{Label: "1998", SortOrder: 1})
	require.NoError(t, err)

	select {
	case c := <-changes:
		require.Equal(t, domain.ChangeInsert, c.Op)
		require.Equal(t, sec.ID, c.SectionID)
	case <-ctx.Done():
		t.Fatal("no change received")
	}
}
