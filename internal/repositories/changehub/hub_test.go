package changehub

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/almarpuit/site/internal/domain"
)

func TestHubFiltersBySectionAndTable(t *testing.T) {
	hub := New()
	var hits atomic.Int32

	unsubscribe, err := hub.Subscribe(context.Background(), domain.TableTranslations, "s1", func(domain.Change) {
		hits.Add(1)
	})
	require.NoError(t, err)

	hub.Publish(domain.Change{Table: domain.TableTranslations, SectionID: "s1"})
	hub.Publish(domain.Change{Table: domain.TableTranslations, SectionID: "s2"})
	hub.Publish(domain.Change{Table: domain.TableImages, SectionID: "s1"})
	hub.Wait()
	require.EqualValues(t, 1, hits.Load())

	unsubscribe()
	unsubscribe()
	hub.Publish(domain.Change{Table: domain.TableTranslations, SectionID: "s1"})
	hub.Wait()
	require.EqualValues(t, 1, hits.Load())
	require.Zero(t, hub.Len())
}

func TestMatchesSettingsByKey(t *testing.T) {
	change := domain.Change{Table: domain.TableSettings, Key: domain.GlobalSettingsKey}
	require.True(t, Matches(domain.TableSettings, domain.GlobalSettingsKey, change))
	require.False(t, Matches(domain.TableSettings, "other", change))
	require.True(t, Matches(domain.TableSettings, "", change))
}
