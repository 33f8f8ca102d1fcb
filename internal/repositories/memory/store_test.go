package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/almarpuit/site/internal/domain"
	"github.com/almarpuit/site/internal/repositories"
)

func TestSectionKeyIsUnique(t *testing.T) {
	ctx := context.Background()
	store := New()

	_, err := store.Sections().Insert(ctx, "hero")
	require.NoError(t, err)
	_, err = store.Sections().Insert(ctx, "hero")
	require.True(t, repositories.IsConflict(err))

	_, err = store.Sections().FindByKey(ctx, "missing")
	require.True(t, repositories.IsNotFound(err))
}

func TestTranslationUpsertValueKeepsOtherLanguage(t *testing.T) {
	ctx := context.Background()
	store := New()
	sec, err := store.Sections().Insert(ctx, "hero")
	require.NoError(t, err)

	require.NoError(t, store.Translations().UpsertValue(ctx, sec.ID, "title", domain.LocaleET, "Tere"))
	require.NoError(t, store.Translations().UpsertValue(ctx, sec.ID, "title", domain.LocaleEN, "Hello"))

	rows, err := store.Translations().ListBySection(ctx, sec.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, domain.Text{ET: "Tere", EN: "Hello"}, rows[0].Text())
}

func TestRequirementSingletonPerSection(t *testing.T) {
	ctx := context.Background()
	store := New()

	_, err := store.Requirements().Insert(ctx, domain.ProductRequirement{SectionID: "s1"})
	require.NoError(t, err)
	_, err = store.Requirements().Insert(ctx, domain.ProductRequirement{SectionID: "s1"})
	require.True(t, repositories.IsConflict(err))
}

func TestFaultsCountCalls(t *testing.T) {
	ctx := context.Background()
	store := New()
	store.Fail(OpSettingsGet, func(call int) error {
		if call == 2 {
			return Unavailable(OpSettingsGet, nil)
		}
		return nil
	})

	_, err := store.Settings().Get(ctx, domain.GlobalSettingsKey)
	require.True(t, repositories.IsNotFound(err))
	_, err = store.Settings().Get(ctx, domain.GlobalSettingsKey)
	require.True(t, repositories.IsUnavailable(err))
	require.Equal(t, 2, store.Calls(OpSettingsGet))
}

func TestWritesPublishChanges(t *testing.T) {
	ctx := context.Background()
	store := New()
	sec, err := store.Sections().Insert(ctx, "about")
	require.NoError(t, err)

	changes := make(chan domain.Change, 4)
	unsubscribe, err := store.Changes().Subscribe(ctx, domain.TableMilestones, sec.ID, func(c domain.Change) {
		changes <- c
	})
	require.NoError(t, err)
	defer unsubscribe()

	_, err = store.Milestones().Insert(ctx, sec.ID, domain.MilestoneDraft{Label: "1998", SortOrder: 1})
	require.NoError(t, err)
	store.Hub().Wait()

	change := <-changes
	require.Equal(t, domain.ChangeInsert, change.Op)
	require.Equal(t, sec.ID, change.SectionID)
}
