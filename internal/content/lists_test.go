package content

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/almarpuit/site/internal/domain"
	"github.com/almarpuit/site/internal/repositories/memory"
)

func newMilestoneHandle(t *testing.T, store *memory.Store) *Milestones {
	t.Helper()
	handle, err := NewMilestones(newDeps(store), domain.SectionAbout)
	require.NoError(t, err)
	require.NoError(t, handle.Fetch(editorContext()))
	return handle
}

func sortOrders(cards []domain.MilestoneCard) []int {
	out := make([]int, len(cards))
	for i, c := range cards {
		out[i] = c.SortOrder
	}
	return out
}

func TestMilestonesCreateAppendsInOrder(t *testing.T) {
	ctx := editorContext()
	store := memory.New()
	handle := newMilestoneHandle(t, store)

	for _, label := range []string{"1998", "2005", "2020"} {
		_, err := handle.Create(ctx, domain.MilestoneDraft{Label: label, DescriptionET: "Asutati", DescriptionEN: "Founded"})
		require.NoError(t, err)
	}

	cards := handle.Cards()
	require.Len(t, cards, 3)
	require.Equal(t, []int{1, 2, 3}, sortOrders(cards))
	require.Equal(t, "2020", cards[2].Label)
}

func TestMilestonesUpdateAndDelete(t *testing.T) {
	ctx := editorContext()
	store := memory.New()
	handle := newMilestoneHandle(t, store)

	card, err := handle.Create(ctx, domain.MilestoneDraft{Label: "1998"})
	require.NoError(t, err)

	label := "1999"
	require.NoError(t, handle.Update(ctx, card.ID, domain.MilestonePatch{Label: &label}))
	require.Equal(t, "1999", handle.Cards()[0].Label)

	require.NoError(t, handle.Delete(ctx, card.ID))
	require.Empty(t, handle.Cards())

	err = handle.Delete(ctx, card.ID)
	require.ErrorIs(t, err, ErrCardNotFound)
}

func TestMilestonesWritesRequireSession(t *testing.T) {
	store := memory.New()
	handle, err := NewMilestones(newDeps(store), domain.SectionAbout)
	require.NoError(t, err)

	_, err = handle.Create(context.Background(), domain.MilestoneDraft{Label: "1998"})
	require.ErrorIs(t, err, ErrUnauthenticated)
	require.ErrorIs(t, handle.Reorder(context.Background(), []string{"a"}), ErrUnauthenticated)
}

func TestMilestonesReorderIsDense(t *testing.T) {
	ctx := editorContext()
	store := memory.New()
	handle := newMilestoneHandle(t, store)

	var ids []string
	for i, label := range []string{"a", "b", "c"} {
		card, err := handle.Create(ctx, domain.MilestoneDraft{Label: label, SortOrder: (i + 1) * 10})
		require.NoError(t, err)
		ids = append(ids, card.ID)
	}

	require.NoError(t, handle.Reorder(ctx, []string{ids[2], ids[0], ids[1]}))
	cards := handle.Cards()
	require.Equal(t, []int{1, 2, 3}, sortOrders(cards))
	require.Equal(t, []string{"c", "a", "b"}, []string{cards[0].Label, cards[1].Label, cards[2].Label})
}

func TestMilestonesReorderPartialFailure(t *testing.T) {
	ctx := editorContext()
	store := memory.New()
	handle := newMilestoneHandle(t, store)

	var ids []string
	for _, label := range []string{"a", "b", "c"} {
		card, err := handle.Create(ctx, domain.MilestoneDraft{Label: label})
		require.NoError(t, err)
		ids = append(ids, card.ID)
	}

	store.Fail(memory.OpMilestoneUpdate, func(call int) error {
		if call == 2 {
			return memory.Unavailable(memory.OpMilestoneUpdate, nil)
		}
		return nil
	})

	err := handle.Reorder(ctx, []string{ids[2], ids[1], ids[0]})
	var saveErr *SaveError
	require.ErrorAs(t, err, &saveErr)

	// The first write landed, the rest did not; the handle mirrors the store.
	cards := handle.Cards()
	orders := map[string]int{}
	for _, c := range cards {
		orders[c.Label] = c.SortOrder
	}
	require.Equal(t, map[string]int{"a": 1, "b": 2, "c": 1}, orders)
	require.Equal(t, 2, store.Calls(memory.OpMilestoneUpdate))
}

func TestMilestonesWatch(t *testing.T) {
	ctx := editorContext()
	store := memory.New()
	sec, err := store.Sections().Insert(ctx, domain.SectionAbout)
	require.NoError(t, err)

	handle, err := NewMilestones(newDeps(store), domain.SectionAbout)
	require.NoError(t, err)
	require.NoError(t, handle.Watch(context.Background()))
	defer handle.Close()

	_, err = store.Milestones().Insert(ctx, sec.ID, domain.MilestoneDraft{Label: "2010", SortOrder: 1})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(handle.Cards()) == 1 }, time.Second, 10*time.Millisecond)
}

func newRequirementHandle(t *testing.T, store *memory.Store) *Requirements {
	t.Helper()
	handle, err := NewRequirements(newDeps(store), domain.SectionWoodPurchase)
	require.NoError(t, err)
	require.NoError(t, handle.Fetch(editorContext()))
	return handle
}

func TestRequirementsItemOpsNeedRecord(t *testing.T) {
	store := memory.New()
	handle := newRequirementHandle(t, store)

	_, ok := handle.Requirement()
	require.False(t, ok)
	require.ErrorIs(t, handle.AddItem(editorContext(), domain.Text{ET: "Kask"}), ErrNoRequirement)
}

func TestRequirementsUpdateInsertsWithDefaults(t *testing.T) {
	ctx := editorContext()
	store := memory.New()
	handle := newRequirementHandle(t, store)

	title := "Ostame kasvavat metsa"
	require.NoError(t, handle.Update(ctx, domain.RequirementPatch{TitleET: &title}))

	req, ok := handle.Requirement()
	require.True(t, ok)
	require.Equal(t, title, req.TitleET)
	require.Equal(t, "", req.TitleEN)
	require.Empty(t, req.Items)

	titleEN := "We buy forest"
	require.NoError(t, handle.Update(ctx, domain.RequirementPatch{TitleEN: &titleEN}))
	req, _ = handle.Requirement()
	require.Equal(t, title, req.TitleET)
	require.Equal(t, titleEN, req.TitleEN)
}

func TestRequirementsItemLifecycle(t *testing.T) {
	ctx := editorContext()
	store := memory.New()
	handle := newRequirementHandle(t, store)
	require.NoError(t, handle.Update(ctx, domain.RequirementPatch{}))

	require.NoError(t, handle.AddItem(ctx, domain.Text{ET: "Kuusk", EN: "Spruce"}))
	require.NoError(t, handle.AddItem(ctx, domain.Text{ET: "Mänd", EN: "Pine"}))
	require.NoError(t, handle.AddItem(ctx, domain.Text{ET: "Kask", EN: "Birch"}))

	require.NoError(t, handle.UpdateItem(ctx, 1, domain.Text{ET: "Mänd", EN: "Scots pine"}))
	require.NoError(t, handle.RemoveItem(ctx, 0))
	req, _ := handle.Requirement()
	require.Equal(t, []domain.Text{{ET: "Mänd", EN: "Scots pine"}, {ET: "Kask", EN: "Birch"}}, req.Items)

	require.NoError(t, handle.ReorderItems(ctx, []domain.Text{req.Items[1], req.Items[0]}))
	req, _ = handle.Requirement()
	require.Equal(t, "Kask", req.Items[0].ET)

	require.ErrorIs(t, handle.UpdateItem(ctx, 5, domain.Text{}), ErrItemIndex)
	require.ErrorIs(t, handle.RemoveItem(ctx, -1), ErrItemIndex)
}

func TestRequirementsFailedWriteReconciles(t *testing.T) {
	ctx := editorContext()
	store := memory.New()
	handle := newRequirementHandle(t, store)
	require.NoError(t, handle.Update(ctx, domain.RequirementPatch{}))
	require.NoError(t, handle.AddItem(ctx, domain.Text{ET: "Kask"}))

	store.Fail(memory.OpRequirementUpdate, func(int) error { return memory.Unavailable(memory.OpRequirementUpdate, nil) })
	err := handle.AddItem(ctx, domain.Text{ET: "Lepp"})
	require.Error(t, err)

	req, _ := handle.Requirement()
	require.Len(t, req.Items, 1)
}

func TestSettingsDefaultsWhenAbsent(t *testing.T) {
	store := memory.New()
	handle, err := NewSettings(newDeps(store))
	require.NoError(t, err)

	require.NoError(t, handle.Fetch(context.Background()))
	state, fetchErr := handle.State()
	require.Equal(t, StateReady, state)
	require.NoError(t, fetchErr)
	require.Equal(t, domain.GlobalSettings{}, handle.Current())
	require.Equal(t, domain.DefaultCompanyName, handle.Current().DisplayCompanyName())
}

func TestSettingsUpdateMergesAndPersistsWholeObject(t *testing.T) {
	ctx := editorContext()
	store := memory.New()
	handle, err := NewSettings(newDeps(store))
	require.NoError(t, err)
	require.NoError(t, handle.Fetch(ctx))

	email := "info@almarpuit.ee"
	require.NoError(t, handle.Update(ctx, domain.SettingsPatch{ContactEmail: &email}))
	phone := "+372 5555 5555"
	require.NoError(t, handle.Update(ctx, domain.SettingsPatch{ContactPhone: &phone}))

	raw, err := store.Settings().Get(ctx, domain.GlobalSettingsKey)
	require.NoError(t, err)
	var stored domain.GlobalSettings
	require.NoError(t, json.Unmarshal(raw, &stored))
	require.Equal(t, email, stored.ContactEmail)
	require.Equal(t, phone, stored.ContactPhone)
}

func TestSettingsUpdateRequiresSession(t *testing.T) {
	store := memory.New()
	handle, err := NewSettings(newDeps(store))
	require.NoError(t, err)
	name := "x"
	require.ErrorIs(t, handle.Update(context.Background(), domain.SettingsPatch{CompanyName: &name}), ErrUnauthenticated)
}

func TestSettingsFailedUpdateReconciles(t *testing.T) {
	ctx := editorContext()
	store := memory.New()
	handle, err := NewSettings(newDeps(store))
	require.NoError(t, err)
	store.Fail(memory.OpSettingsUpsert, func(int) error { return memory.Unavailable(memory.OpSettingsUpsert, nil) })

	name := "Uus nimi"
	err = handle.Update(ctx, domain.SettingsPatch{CompanyName: &name})
	require.Error(t, err)
	require.Empty(t, handle.Current().CompanyName)
}

func TestHubSharesHandles(t *testing.T) {
	ctx := editorContext()
	store := memory.New()
	hub, err := NewHub(newDeps(store))
	require.NoError(t, err)
	defer hub.Close()

	first := hub.Section(ctx, domain.SectionHero)
	second := hub.Section(ctx, domain.SectionHero)
	require.Same(t, first, second)
	require.Same(t, hub.Settings(ctx), hub.Settings(ctx))
	require.Same(t, hub.Milestones(ctx, domain.SectionAbout), hub.Milestones(ctx, domain.SectionAbout))
	require.Same(t, hub.Requirements(ctx, domain.SectionWoodPurchase), hub.Requirements(ctx, domain.SectionWoodPurchase))

	require.NoError(t, first.UpdateTranslation(ctx, "title", domain.LocaleET, "Tere"))
	require.Equal(t, "Tere", second.Get("title", domain.LocaleET))
}

func TestMilestonesRejectedUpdateSurvivesFailedReconcile(t *testing.T) {
	ctx := editorContext()
	store := memory.New()
	handle := newMilestoneHandle(t, store)
	card, err := handle.Create(ctx, domain.MilestoneDraft{Label: "1990"})
	require.NoError(t, err)

	store.Fail(memory.OpMilestoneUpdate, func(int) error { return memory.Unavailable(memory.OpMilestoneUpdate, nil) })
	store.Fail(memory.OpMilestoneList, func(call int) error {
		if call > 1 {
			return memory.Unavailable(memory.OpMilestoneList, nil)
		}
		return nil
	})

	label := "REJECTED"
	err = handle.Update(ctx, card.ID, domain.MilestonePatch{Label: &label})
	var saveErr *SaveError
	require.ErrorAs(t, err, &saveErr)

	require.Equal(t, "1990", handle.Cards()[0].Label)
	state, fetchErr := handle.State()
	require.Equal(t, StateFailed, state)
	require.Error(t, fetchErr)
}

func TestMilestonesRejectedReorderSurvivesFailedReconcile(t *testing.T) {
	ctx := editorContext()
	store := memory.New()
	handle := newMilestoneHandle(t, store)
	var ids []string
	for _, label := range []string{"a", "b"} {
		card, err := handle.Create(ctx, domain.MilestoneDraft{Label: label})
		require.NoError(t, err)
		ids = append(ids, card.ID)
	}

	store.Fail(memory.OpMilestoneUpdate, func(int) error { return memory.Unavailable(memory.OpMilestoneUpdate, nil) })
	store.Fail(memory.OpMilestoneList, func(call int) error {
		if call > 1 {
			return memory.Unavailable(memory.OpMilestoneList, nil)
		}
		return nil
	})

	require.Error(t, handle.Reorder(ctx, []string{ids[1], ids[0]}))
	cards := handle.Cards()
	require.Equal(t, []string{"a", "b"}, []string{cards[0].Label, cards[1].Label})
	require.Equal(t, []int{1, 2}, sortOrders(cards))
}

func TestMilestonesWritesStayInsideSection(t *testing.T) {
	ctx := editorContext()
	store := memory.New()
	handle := newMilestoneHandle(t, store)

	var ids []string
	for _, label := range []string{"a", "b", "c"} {
		card, err := handle.Create(ctx, domain.MilestoneDraft{Label: label})
		require.NoError(t, err)
		ids = append(ids, card.ID)
	}
	hero, err := store.SeedSection(domain.SectionHero)
	require.NoError(t, err)
	foreign, err := store.Milestones().Insert(ctx, hero.ID, domain.MilestoneDraft{Label: "hero", SortOrder: 7})
	require.NoError(t, err)

	cases := map[string][]string{
		"partial":   {ids[2], foreign.ID},
		"missing":   {ids[1], ids[0]},
		"duplicate": {ids[0], ids[0], ids[1]},
		"foreign":   {ids[0], ids[1], ids[2], foreign.ID},
		"unknown":   {ids[0], ids[1], "nope"},
	}
	for name, order := range cases {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, handle.Reorder(ctx, order), ErrStaleOrder)
		})
	}

	label := "hijacked"
	require.ErrorIs(t, handle.Update(ctx, foreign.ID, domain.MilestonePatch{Label: &label}), ErrCardNotFound)
	require.ErrorIs(t, handle.Delete(ctx, foreign.ID), ErrCardNotFound)

	require.Equal(t, []int{1, 2, 3}, sortOrders(handle.Cards()))
	heroCards, err := store.Milestones().ListBySection(ctx, hero.ID)
	require.NoError(t, err)
	require.Len(t, heroCards, 1)
	require.Equal(t, "hero", heroCards[0].Label)
	require.Equal(t, 7, heroCards[0].SortOrder)
	require.NotEmpty(t, UserMessage(ErrStaleOrder))
}

func TestHubRetriesFailedHandle(t *testing.T) {
	ctx := editorContext()
	store := memory.New()
	sec, err := store.SeedSection(domain.SectionHero)
	require.NoError(t, err)
	store.Fail(memory.OpTranslationList, func(call int) error {
		if call == 1 {
			return memory.Unavailable(memory.OpTranslationList, nil)
		}
		return nil
	})

	hub, err := NewHub(newDeps(store))
	require.NoError(t, err)
	defer hub.Close()

	first := hub.Section(ctx, domain.SectionHero)
	require.Equal(t, StateFailed, first.State())
	require.Zero(t, store.Hub().Len())

	require.NoError(t, store.Translations().Upsert(ctx, sec.ID, "title", domain.Text{ET: "Tere"}))

	second := hub.Section(ctx, domain.SectionHero)
	require.Same(t, first, second)
	require.Equal(t, StateReady, second.State())
	require.Equal(t, "Tere", second.Get("title", domain.LocaleET))
	require.Equal(t, 2, store.Calls(memory.OpTranslationList))
	require.Equal(t, 2, store.Hub().Len())

	third := hub.Section(ctx, domain.SectionHero)
	require.Same(t, first, third)
	require.Equal(t, 2, store.Calls(memory.OpTranslationList))
}

func TestRequirementsRejectedWriteSurvivesFailedReconcile(t *testing.T) {
	ctx := editorContext()
	store := memory.New()
	handle := newRequirementHandle(t, store)
	title := "Nõuded"
	require.NoError(t, handle.Update(ctx, domain.RequirementPatch{TitleET: &title}))

	store.Fail(memory.OpRequirementUpdate, func(int) error { return memory.Unavailable(memory.OpRequirementUpdate, nil) })
	store.Fail(memory.OpRequirementFind, func(int) error { return memory.Unavailable(memory.OpRequirementFind, nil) })

	rejected := "REJECTED"
	require.Error(t, handle.Update(ctx, domain.RequirementPatch{TitleET: &rejected}))
	req, ok := handle.Requirement()
	require.True(t, ok)
	require.Equal(t, title, req.TitleET)
	state, _ := handle.State()
	require.Equal(t, StateFailed, state)
}

func TestSettingsRejectedUpdateNeverSticks(t *testing.T) {
	ctx := editorContext()
	store := memory.New()
	handle, err := NewSettings(newDeps(store))
	require.NoError(t, err)
	require.NoError(t, handle.Fetch(ctx))

	store.Fail(memory.OpSettingsUpsert, func(int) error { return memory.Unavailable(memory.OpSettingsUpsert, nil) })
	store.Fail(memory.OpSettingsGet, func(int) error { return memory.Unavailable(memory.OpSettingsGet, nil) })

	name := "REJECTED"
	require.Error(t, handle.Update(ctx, domain.SettingsPatch{CompanyName: &name}))
	require.Empty(t, handle.Current().CompanyName)
	state, _ := handle.State()
	require.Equal(t, StateFailed, state)
}
