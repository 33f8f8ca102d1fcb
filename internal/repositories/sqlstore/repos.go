package sqlstore

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/almarpuit/site/internal/domain"
)

type sectionRepo struct{ s *Store }

func (r sectionRepo) FindByKey(ctx context.Context, key string) (domain.Section, error) {
	var m sectionModel
	if err := r.s.db.NewSelect().Model(&m).Where("key = ?", key).Limit(1).Scan(ctx); err != nil {
		return domain.Section{}, wrap("sections.find", err)
	}
	return m.toDomain(), nil
}

func (r sectionRepo) Insert(ctx context.Context, key string) (domain.Section, error) {
	now := r.s.timestamp()
	m := sectionModel{ID: uuid.NewString(), Key: key, CreatedAt: now, UpdatedAt: now}
	if _, err := r.s.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Section{}, wrap("sections.insert", err)
	}
	r.s.publish(ctx, domain.TableSections, domain.ChangeInsert, m.ID, m.Key)
	return m.toDomain(), nil
}

func (r sectionRepo) Touch(ctx context.Context, sectionID string) error {
	return wrap("sections.touch", r.s.touch(ctx, r.s.db, sectionID))
}

func (r sectionRepo) List(ctx context.Context) ([]domain.Section, error) {
	var rows []sectionModel
	if err := r.s.db.NewSelect().Model(&rows).Order("key ASC").Scan(ctx); err != nil {
		return nil, wrap("sections.list", err)
	}
	out := make([]domain.Section, len(rows))
	for i, m := range rows {
		out[i] = m.toDomain()
	}
	return out, nil
}

func (r sectionRepo) RecentlyUpdated(ctx context.Context, limit int) ([]domain.Section, error) {
	var rows []sectionModel
	if err := r.s.db.NewSelect().Model(&rows).Order("updated_at DESC").Limit(limit).Scan(ctx); err != nil {
		return nil, wrap("sections.recent", err)
	}
	out := make([]domain.Section, len(rows))
	for i, m := range rows {
		out[i] = m.toDomain()
	}
	return out, nil
}

type translationRepo struct{ s *Store }

func (r translationRepo) ListBySection(ctx context.Context, sectionID string) ([]domain.Translation, error) {
	var rows []translationModel
	if err := r.s.db.NewSelect().Model(&rows).Where("section_id = ?", sectionID).Order("key ASC").Scan(ctx); err != nil {
		return nil, wrap("translations.list", err)
	}
	return translationsToDomain(rows), nil
}

func (r translationRepo) ListAll(ctx context.Context) ([]domain.Translation, error) {
	var rows []translationModel
	if err := r.s.db.NewSelect().Model(&rows).Order("section_id ASC", "key ASC").Scan(ctx); err != nil {
		return nil, wrap("translations.list_all", err)
	}
	return translationsToDomain(rows), nil
}

// UpsertValue inserts a row with only locale's column set, or updates that
// column alone on conflict.
func (r translationRepo) UpsertValue(ctx context.Context, sectionID, key string, locale domain.Locale, value string) error {
	column := "et"
	if locale == domain.LocaleEN {
		column = "en"
	}
	m := r.newRow(sectionID, key, domain.Text{}.With(locale, value))
	return r.upsert(ctx, &m, "?0 = EXCLUDED.?0", bun.Ident(column))
}

func (r translationRepo) Upsert(ctx context.Context, sectionID, key string, text domain.Text) error {
	m := r.newRow(sectionID, key, text)
	return r.upsert(ctx, &m, "et = EXCLUDED.et, en = EXCLUDED.en")
}

func (r translationRepo) newRow(sectionID, key string, text domain.Text) translationModel {
	now := r.s.timestamp()
	return translationModel{
		ID:        uuid.NewString(),
		SectionID: sectionID,
		Key:       key,
		ET:        text.ET,
		EN:        text.EN,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r translationRepo) upsert(ctx context.Context, m *translationModel, set string, args ...any) error {
	err := r.s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(m).
			On("CONFLICT (section_id, key) DO UPDATE").
			Set(set, args...).
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return err
		}
		return r.s.touch(ctx, tx, m.SectionID)
	})
	if err != nil {
		return wrap("translations.upsert", err)
	}
	r.s.publish(ctx, domain.TableTranslations, domain.ChangeUpdate, m.SectionID, m.Key)
	return nil
}

func translationsToDomain(rows []translationModel) []domain.Translation {
	out := make([]domain.Translation, len(rows))
	for i, m := range rows {
		out[i] = m.toDomain()
	}
	return out
}

type imageRepo struct{ s *Store }

func (r imageRepo) ListBySection(ctx context.Context, sectionID string) ([]domain.Image, error) {
	var rows []imageModel
	if err := r.s.db.NewSelect().Model(&rows).Where("section_id = ?", sectionID).Order("key ASC").Scan(ctx); err != nil {
		return nil, wrap("images.list", err)
	}
	return imagesToDomain(rows), nil
}

func (r imageRepo) ListAll(ctx context.Context) ([]domain.Image, error) {
	var rows []imageModel
	if err := r.s.db.NewSelect().Model(&rows).Order("section_id ASC", "key ASC").Scan(ctx); err != nil {
		return nil, wrap("images.list_all", err)
	}
	return imagesToDomain(rows), nil
}

func (r imageRepo) Upsert(ctx context.Context, sectionID, key, url string, altText *string) error {
	now := r.s.timestamp()
	m := imageModel{
		ID:        uuid.NewString(),
		SectionID: sectionID,
		Key:       key,
		URL:       url,
		AltText:   altText,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := r.s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&m).
			On("CONFLICT (section_id, key) DO UPDATE").
			Set("url = EXCLUDED.url").
			Set("alt_text = EXCLUDED.alt_text").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return err
		}
		return r.s.touch(ctx, tx, sectionID)
	})
	if err != nil {
		return wrap("images.upsert", err)
	}
	r.s.publish(ctx, domain.TableImages, domain.ChangeUpdate, sectionID, key)
	return nil
}

func imagesToDomain(rows []imageModel) []domain.Image {
	out := make([]domain.Image, len(rows))
	for i, m := range rows {
		out[i] = m.toDomain()
	}
	return out
}

type milestoneRepo struct{ s *Store }

func (r milestoneRepo) ListBySection(ctx context.Context, sectionID string) ([]domain.MilestoneCard, error) {
	var rows []milestoneModel
	err := r.s.db.NewSelect().
		Model(&rows).
		Where("section_id = ?", sectionID).
		Order("sort_order ASC", "created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, wrap("milestones.list", err)
	}
	out := make([]domain.MilestoneCard, len(rows))
	for i, m := range rows {
		out[i] = m.toDomain()
	}
	return out, nil
}

func (r milestoneRepo) Insert(ctx context.Context, sectionID string, draft domain.MilestoneDraft) (domain.MilestoneCard, error) {
	now := r.s.timestamp()
	m := milestoneModel{
		ID:            uuid.NewString(),
		SectionID:     sectionID,
		Label:         draft.Label,
		DescriptionET: draft.DescriptionET,
		DescriptionEN: draft.DescriptionEN,
		SortOrder:     draft.SortOrder,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := r.s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&m).Exec(ctx); err != nil {
			return err
		}
		return r.s.touch(ctx, tx, sectionID)
	})
	if err != nil {
		return domain.MilestoneCard{}, wrap("milestones.insert", err)
	}
	r.s.publish(ctx, domain.TableMilestones, domain.ChangeInsert, sectionID, "")
	return m.toDomain(), nil
}

func (r milestoneRepo) Update(ctx context.Context, id string, patch domain.MilestonePatch) error {
	var sectionID string
	err := r.s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var current milestoneModel
		if err := tx.NewSelect().Model(&current).Where("id = ?", id).Scan(ctx); err != nil {
			return err
		}
		card := patch.Apply(current.toDomain())
		sectionID = card.SectionID
		_, err := tx.NewUpdate().
			Model((*milestoneModel)(nil)).
			Set("label = ?", card.Label).
			Set("description_et = ?", card.DescriptionET).
			Set("description_en = ?", card.DescriptionEN).
			Set("sort_order = ?", card.SortOrder).
			Set("updated_at = ?", r.s.timestamp()).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return err
		}
		return r.s.touch(ctx, tx, sectionID)
	})
	if err != nil {
		return wrap("milestones.update", err)
	}
	r.s.publish(ctx, domain.TableMilestones, domain.ChangeUpdate, sectionID, "")
	return nil
}

func (r milestoneRepo) Delete(ctx context.Context, id string) error {
	var current milestoneModel
	err := r.s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().Model(&current).Where("id = ?", id).Scan(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*milestoneModel)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
			return err
		}
		return r.s.touch(ctx, tx, current.SectionID)
	})
	if err != nil {
		return wrap("milestones.delete", err)
	}
	r.s.publish(ctx, domain.TableMilestones, domain.ChangeDelete, current.SectionID, "")
	return nil
}

type requirementRepo struct{ s *Store }

func (r requirementRepo) FindBySection(ctx context.Context, sectionID string) (domain.ProductRequirement, error) {
	var m requirementModel
	if err := r.s.db.NewSelect().Model(&m).Where("section_id = ?", sectionID).Limit(1).Scan(ctx); err != nil {
		return domain.ProductRequirement{}, wrap("requirements.find", err)
	}
	return m.toDomain(), nil
}

func (r requirementRepo) Insert(ctx context.Context, req domain.ProductRequirement) (domain.ProductRequirement, error) {
	now := r.s.timestamp()
	items := req.Items
	if items == nil {
		items = []domain.Text{}
	}
	m := requirementModel{
		ID:        uuid.NewString(),
		SectionID: req.SectionID,
		TitleET:   req.TitleET,
		TitleEN:   req.TitleEN,
		Items:     items,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := r.s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&m).Exec(ctx); err != nil {
			return err
		}
		return r.s.touch(ctx, tx, m.SectionID)
	})
	if err != nil {
		return domain.ProductRequirement{}, wrap("requirements.insert", err)
	}
	r.s.publish(ctx, domain.TableRequirements, domain.ChangeInsert, m.SectionID, "")
	return m.toDomain(), nil
}

func (r requirementRepo) Update(ctx context.Context, id string, patch domain.RequirementPatch) error {
	var sectionID string
	err := r.s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var current requirementModel
		if err := tx.NewSelect().Model(&current).Where("id = ?", id).Scan(ctx); err != nil {
			return err
		}
		next := patch.Apply(current.toDomain())
		sectionID = next.SectionID
		current.TitleET = next.TitleET
		current.TitleEN = next.TitleEN
		current.Items = next.Items
		current.UpdatedAt = r.s.timestamp()
		if _, err := tx.NewUpdate().Model(&current).Column("title_et", "title_en", "items", "updated_at").WherePK().Exec(ctx); err != nil {
			return err
		}
		return r.s.touch(ctx, tx, sectionID)
	})
	if err != nil {
		return wrap("requirements.update", err)
	}
	r.s.publish(ctx, domain.TableRequirements, domain.ChangeUpdate, sectionID, "")
	return nil
}

type settingsRepo struct{ s *Store }

func (r settingsRepo) Get(ctx context.Context, key string) ([]byte, error) {
	var m settingModel
	if err := r.s.db.NewSelect().Model(&m).Where("key = ?", key).Limit(1).Scan(ctx); err != nil {
		return nil, wrap("settings.get", err)
	}
	return []byte(m.Value), nil
}

func (r settingsRepo) Upsert(ctx context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return &Error{op: "settings.upsert", err: errInvalidJSON}
	}
	m := settingModel{Key: key, Value: json.RawMessage(value), UpdatedAt: r.s.timestamp()}
	_, err := r.s.db.NewInsert().
		Model(&m).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return wrap("settings.upsert", err)
	}
	r.s.publish(ctx, domain.TableSettings, domain.ChangeUpdate, "", key)
	return nil
}
