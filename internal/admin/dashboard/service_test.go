package dashboard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/almarpuit/site/internal/domain"
	"github.com/almarpuit/site/internal/repositories/memory"
)

func TestWarningsReportMissingContent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	hero, err := store.Sections().Insert(ctx, domain.SectionHero)
	require.NoError(t, err)
	contact, err := store.Sections().Insert(ctx, domain.SectionContact)
	require.NoError(t, err)

	require.NoError(t, store.Translations().Upsert(ctx, hero.ID, "title", domain.Text{ET: "Tere"}))
	require.NoError(t, store.Images().Upsert(ctx, hero.ID, "background", "https://x/y.png", nil))
	require.NoError(t, store.Translations().Upsert(ctx, contact.ID, "contact1Phone", domain.Text{ET: "+372 5555"}))
	require.NoError(t, store.Translations().Upsert(ctx, contact.ID, "title", domain.Text{EN: "Contact"}))

	svc, err := NewService(store)
	require.NoError(t, err)
	warnings, err := svc.Warnings(ctx, 0)
	require.NoError(t, err)

	require.Equal(t, []domain.ContentWarning{
		{Kind: domain.WarningMissingTranslation, SectionKey: domain.SectionHero, Field: "title", Locale: domain.LocaleEN},
		{Kind: domain.WarningMissingTranslation, SectionKey: domain.SectionContact, Field: "title", Locale: domain.LocaleET},
		{Kind: domain.WarningMissingImage, SectionKey: domain.SectionContact, Field: domain.RequiredImage},
	}, warnings)
}

func TestWarningsAreCapped(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	sec, err := store.Sections().Insert(ctx, domain.SectionAbout)
	require.NoError(t, err)
	for _, key := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		require.NoError(t, store.Translations().Upsert(ctx, sec.ID, key, domain.Text{}))
	}

	svc, err := NewService(store)
	require.NoError(t, err)
	warnings, err := svc.Warnings(ctx, WarningLimit)
	require.NoError(t, err)
	require.Len(t, warnings, WarningLimit)
}

func TestRecentActivityCountsRows(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	sec, err := store.Sections().Insert(ctx, domain.SectionProducts)
	require.NoError(t, err)
	require.NoError(t, store.Translations().Upsert(ctx, sec.ID, "title", domain.Text{ET: "Tooted", EN: "Products"}))
	require.NoError(t, store.Images().Upsert(ctx, sec.ID, "fireplaceWood", "https://x/f.jpg", nil))

	svc, err := NewService(store)
	require.NoError(t, err)
	recent, err := svc.RecentActivity(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, domain.SectionProducts, recent[0].Section.Key)
	require.Equal(t, 1, recent[0].TranslationCount)
	require.Equal(t, 1, recent[0].ImageCount)
}
