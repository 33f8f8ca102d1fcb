package firestore

import (
	"context"
	"errors"
	"sort"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/almarpuit/site/internal/domain"
	pfirestore "github.com/almarpuit/site/internal/platform/firestore"
)

var errKeyTaken = status.Error(codes.AlreadyExists, "section key already exists")

type sectionRepo struct{ r *Registry }

func (s sectionRepo) FindByKey(ctx context.Context, key string) (domain.Section, error) {
	client, err := s.r.client(ctx)
	if err != nil {
		return domain.Section{}, err
	}
	iter := client.Collection(sectionsCollection).Where("key", "==", key).Limit(1).Documents(ctx)
	defer iter.Stop()
	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return domain.Section{}, pfirestore.WrapError("sections.find", status.Error(codes.NotFound, "section not found"))
	}
	if err != nil {
		return domain.Section{}, pfirestore.WrapError("sections.find", err)
	}
	return decodeSection(snap)
}

// Insert checks and creates in one transaction so concurrent inserts of the
// same key cannot both succeed.
func (s sectionRepo) Insert(ctx context.Context, key string) (domain.Section, error) {
	client, err := s.r.client(ctx)
	if err != nil {
		return domain.Section{}, err
	}
	now := s.r.timestamp()
	id := uuid.NewString()
	coll := client.Collection(sectionsCollection)
	err = client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Documents(coll.Where("key", "==", key).Limit(1)).GetAll()
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return errKeyTaken
		}
		return tx.Create(coll.Doc(id), sectionDocument{Key: key, CreatedAt: now, UpdatedAt: now})
	})
	if err != nil {
		return domain.Section{}, pfirestore.WrapError("sections.insert", err)
	}
	return domain.Section{ID: id, Key: key, CreatedAt: now, UpdatedAt: now}, nil
}

func (s sectionRepo) Touch(ctx context.Context, sectionID string) error {
	client, err := s.r.client(ctx)
	if err != nil {
		return err
	}
	_, err = client.Collection(sectionsCollection).Doc(sectionID).Update(ctx, []firestore.Update{
		{Path: "updatedAt", Value: s.r.timestamp()},
	})
	return pfirestore.WrapError("sections.touch", err)
}

func (s sectionRepo) List(ctx context.Context) ([]domain.Section, error) {
	return s.query(ctx, "sections.list", func(c *firestore.CollectionRef) firestore.Query {
		return c.OrderBy("key", firestore.Asc)
	})
}

func (s sectionRepo) RecentlyUpdated(ctx context.Context, limit int) ([]domain.Section, error) {
	return s.query(ctx, "sections.recent", func(c *firestore.CollectionRef) firestore.Query {
		q := c.OrderBy("updatedAt", firestore.Desc)
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q
	})
}

func (s sectionRepo) query(ctx context.Context, op string, build func(*firestore.CollectionRef) firestore.Query) ([]domain.Section, error) {
	client, err := s.r.client(ctx)
	if err != nil {
		return nil, err
	}
	snaps, err := build(client.Collection(sectionsCollection)).Documents(ctx).GetAll()
	if err != nil {
		return nil, pfirestore.WrapError(op, err)
	}
	out := make([]domain.Section, 0, len(snaps))
	for _, snap := range snaps {
		sec, err := decodeSection(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, sec)
	}
	return out, nil
}

func decodeSection(snap *firestore.DocumentSnapshot) (domain.Section, error) {
	var doc sectionDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Section{}, pfirestore.WrapError("sections.decode", err)
	}
	return domain.Section{ID: snap.Ref.ID, Key: doc.Key, CreatedAt: doc.CreatedAt, UpdatedAt: doc.UpdatedAt}, nil
}

type translationRepo struct{ r *Registry }

func (t translationRepo) ListBySection(ctx context.Context, sectionID string) ([]domain.Translation, error) {
	return t.list(ctx, "translations.list", func(c *firestore.CollectionRef) firestore.Query {
		return c.Where("sectionId", "==", sectionID)
	})
}

func (t translationRepo) ListAll(ctx context.Context) ([]domain.Translation, error) {
	return t.list(ctx, "translations.list_all", func(c *firestore.CollectionRef) firestore.Query {
		return c.Query
	})
}

func (t translationRepo) list(ctx context.Context, op string, build func(*firestore.CollectionRef) firestore.Query) ([]domain.Translation, error) {
	client, err := t.r.client(ctx)
	if err != nil {
		return nil, err
	}
	snaps, err := build(client.Collection(translationsCollection)).Documents(ctx).GetAll()
	if err != nil {
		return nil, pfirestore.WrapError(op, err)
	}
	out := make([]domain.Translation, 0, len(snaps))
	for _, snap := range snaps {
		var doc translationDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, pfirestore.WrapError(op, err)
		}
		out = append(out, domain.Translation{
			ID:        snap.Ref.ID,
			SectionID: doc.SectionID,
			Key:       doc.Key,
			ET:        doc.ET,
			EN:        doc.EN,
			CreatedAt: doc.CreatedAt,
			UpdatedAt: doc.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SectionID != out[j].SectionID {
			return out[i].SectionID < out[j].SectionID
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

// UpsertValue writes one language field; on create the other starts empty.
func (t translationRepo) UpsertValue(ctx context.Context, sectionID, key string, locale domain.Locale, value string) error {
	field := "et"
	if locale == domain.LocaleEN {
		field = "en"
	}
	return t.upsert(ctx, sectionID, key, domain.Text{}.With(locale, value), []string{field})
}

func (t translationRepo) Upsert(ctx context.Context, sectionID, key string, text domain.Text) error {
	return t.upsert(ctx, sectionID, key, text, []string{"et", "en"})
}

func (t translationRepo) upsert(ctx context.Context, sectionID, key string, text domain.Text, fields []string) error {
	client, err := t.r.client(ctx)
	if err != nil {
		return err
	}
	now := t.r.timestamp()
	ref := client.Collection(translationsCollection).Doc(pairID(sectionID, key))
	err = client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
			if err := tx.Create(ref, translationDocument{
				SectionID: sectionID,
				Key:       key,
				ET:        text.ET,
				EN:        text.EN,
				CreatedAt: now,
				UpdatedAt: now,
			}); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			updates := []firestore.Update{{Path: "updatedAt", Value: now}}
			for _, field := range fields {
				updates = append(updates, firestore.Update{Path: field, Value: text.Get(domain.Locale(field))})
			}
			if err := tx.Update(snap.Ref, updates); err != nil {
				return err
			}
		}
		return touch(tx, client, sectionID, now)
	})
	return pfirestore.WrapError("translations.upsert", err)
}

type imageRepo struct{ r *Registry }

func (i imageRepo) ListBySection(ctx context.Context, sectionID string) ([]domain.Image, error) {
	return i.list(ctx, "images.list", func(c *firestore.CollectionRef) firestore.Query {
		return c.Where("sectionId", "==", sectionID)
	})
}

func (i imageRepo) ListAll(ctx context.Context) ([]domain.Image, error) {
	return i.list(ctx, "images.list_all", func(c *firestore.CollectionRef) firestore.Query {
		return c.Query
	})
}

func (i imageRepo) list(ctx context.Context, op string, build func(*firestore.CollectionRef) firestore.Query) ([]domain.Image, error) {
	client, err := i.r.client(ctx)
	if err != nil {
		return nil, err
	}
	snaps, err := build(client.Collection(imagesCollection)).Documents(ctx).GetAll()
	if err != nil {
		return nil, pfirestore.WrapError(op, err)
	}
	out := make([]domain.Image, 0, len(snaps))
	for _, snap := range snaps {
		var doc imageDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, pfirestore.WrapError(op, err)
		}
		out = append(out, domain.Image{
			ID:        snap.Ref.ID,
			SectionID: doc.SectionID,
			Key:       doc.Key,
			URL:       doc.URL,
			AltText:   doc.AltText,
			CreatedAt: doc.CreatedAt,
			UpdatedAt: doc.UpdatedAt,
		})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].SectionID != out[b].SectionID {
			return out[a].SectionID < out[b].SectionID
		}
		return out[a].Key < out[b].Key
	})
	return out, nil
}

func (i imageRepo) Upsert(ctx context.Context, sectionID, key, url string, altText *string) error {
	client, err := i.r.client(ctx)
	if err != nil {
		return err
	}
	now := i.r.timestamp()
	ref := client.Collection(imagesCollection).Doc(pairID(sectionID, key))
	err = client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		createdAt := now
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return err
		default:
			var existing imageDocument
			if err := snap.DataTo(&existing); err == nil {
				createdAt = existing.CreatedAt
			}
		}
		if err := tx.Set(ref, imageDocument{
			SectionID: sectionID,
			Key:       key,
			URL:       url,
			AltText:   altText,
			CreatedAt: createdAt,
			UpdatedAt: now,
		}); err != nil {
			return err
		}
		return touch(tx, client, sectionID, now)
	})
	return pfirestore.WrapError("images.upsert", err)
}

type milestoneRepo struct{ r *Registry }

func (m milestoneRepo) ListBySection(ctx context.Context, sectionID string) ([]domain.MilestoneCard, error) {
	client, err := m.r.client(ctx)
	if err != nil {
		return nil, err
	}
	snaps, err := client.Collection(milestonesCollection).
		Where("sectionId", "==", sectionID).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, pfirestore.WrapError("milestones.list", err)
	}
	out := make([]domain.MilestoneCard, 0, len(snaps))
	for _, snap := range snaps {
		card, err := decodeMilestone(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, card)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m milestoneRepo) Insert(ctx context.Context, sectionID string, draft domain.MilestoneDraft) (domain.MilestoneCard, error) {
	client, err := m.r.client(ctx)
	if err != nil {
		return domain.MilestoneCard{}, err
	}
	now := m.r.timestamp()
	ref := client.Collection(milestonesCollection).Doc(uuid.NewString())
	doc := milestoneDocument{
		SectionID:     sectionID,
		Label:         draft.Label,
		DescriptionET: draft.DescriptionET,
		DescriptionEN: draft.DescriptionEN,
		SortOrder:     draft.SortOrder,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(ref, doc); err != nil {
			return err
		}
		return touch(tx, client, sectionID, now)
	})
	if err != nil {
		return domain.MilestoneCard{}, pfirestore.WrapError("milestones.insert", err)
	}
	return milestoneFromDocument(ref.ID, doc), nil
}

func (m milestoneRepo) Update(ctx context.Context, id string, patch domain.MilestonePatch) error {
	client, err := m.r.client(ctx)
	if err != nil {
		return err
	}
	now := m.r.timestamp()
	ref := client.Collection(milestonesCollection).Doc(id)
	err = client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, err := decodeMilestone(snap)
		if err != nil {
			return err
		}
		card := patch.Apply(current)
		if err := tx.Update(ref, []firestore.Update{
			{Path: "label", Value: card.Label},
			{Path: "descriptionEt", Value: card.DescriptionET},
			{Path: "descriptionEn", Value: card.DescriptionEN},
			{Path: "sortOrder", Value: card.SortOrder},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return err
		}
		return touch(tx, client, card.SectionID, now)
	})
	return pfirestore.WrapError("milestones.update", err)
}

func (m milestoneRepo) Delete(ctx context.Context, id string) error {
	client, err := m.r.client(ctx)
	if err != nil {
		return err
	}
	now := m.r.timestamp()
	ref := client.Collection(milestonesCollection).Doc(id)
	err = client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		card, err := decodeMilestone(snap)
		if err != nil {
			return err
		}
		if err := tx.Delete(ref); err != nil {
			return err
		}
		return touch(tx, client, card.SectionID, now)
	})
	return pfirestore.WrapError("milestones.delete", err)
}

func decodeMilestone(snap *firestore.DocumentSnapshot) (domain.MilestoneCard, error) {
	var doc milestoneDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.MilestoneCard{}, pfirestore.WrapError("milestones.decode", err)
	}
	return milestoneFromDocument(snap.Ref.ID, doc), nil
}

func milestoneFromDocument(id string, doc milestoneDocument) domain.MilestoneCard {
	return domain.MilestoneCard{
		ID:            id,
		SectionID:     doc.SectionID,
		Label:         doc.Label,
		DescriptionET: doc.DescriptionET,
		DescriptionEN: doc.DescriptionEN,
		SortOrder:     doc.SortOrder,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
}

// requirementRepo keys the single requirement document by section id.
type requirementRepo struct{ r *Registry }

func (q requirementRepo) FindBySection(ctx context.Context, sectionID string) (domain.ProductRequirement, error) {
	client, err := q.r.client(ctx)
	if err != nil {
		return domain.ProductRequirement{}, err
	}
	snap, err := client.Collection(requirementsCollection).Doc(sectionID).Get(ctx)
	if err != nil {
		return domain.ProductRequirement{}, pfirestore.WrapError("requirements.find", err)
	}
	return decodeRequirement(snap)
}

func (q requirementRepo) Insert(ctx context.Context, req domain.ProductRequirement) (domain.ProductRequirement, error) {
	client, err := q.r.client(ctx)
	if err != nil {
		return domain.ProductRequirement{}, err
	}
	now := q.r.timestamp()
	doc := requirementDocument{
		SectionID: req.SectionID,
		TitleET:   req.TitleET,
		TitleEN:   req.TitleEN,
		Items:     itemsToDocument(req.Items),
		CreatedAt: now,
		UpdatedAt: now,
	}
	ref := client.Collection(requirementsCollection).Doc(req.SectionID)
	err = client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(ref, doc); err != nil {
			return err
		}
		return touch(tx, client, req.SectionID, now)
	})
	if err != nil {
		return domain.ProductRequirement{}, pfirestore.WrapError("requirements.insert", err)
	}
	return requirementFromDocument(ref.ID, doc), nil
}

func (q requirementRepo) Update(ctx context.Context, id string, patch domain.RequirementPatch) error {
	client, err := q.r.client(ctx)
	if err != nil {
		return err
	}
	now := q.r.timestamp()
	ref := client.Collection(requirementsCollection).Doc(id)
	err = client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, err := decodeRequirement(snap)
		if err != nil {
			return err
		}
		next := patch.Apply(current)
		if err := tx.Update(ref, []firestore.Update{
			{Path: "titleEt", Value: next.TitleET},
			{Path: "titleEn", Value: next.TitleEN},
			{Path: "items", Value: itemsToDocument(next.Items)},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return err
		}
		return touch(tx, client, next.SectionID, now)
	})
	return pfirestore.WrapError("requirements.update", err)
}

func decodeRequirement(snap *firestore.DocumentSnapshot) (domain.ProductRequirement, error) {
	var doc requirementDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.ProductRequirement{}, pfirestore.WrapError("requirements.decode", err)
	}
	return requirementFromDocument(snap.Ref.ID, doc), nil
}

func requirementFromDocument(id string, doc requirementDocument) domain.ProductRequirement {
	return domain.ProductRequirement{
		ID:        id,
		SectionID: doc.SectionID,
		TitleET:   doc.TitleET,
		TitleEN:   doc.TitleEN,
		Items:     itemsFromDocument(doc.Items),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

// settingsRepo stores the JSON value as a string field so the shape matches
// the relational backends byte for byte.
type settingsRepo struct{ r *Registry }

func (s settingsRepo) Get(ctx context.Context, key string) ([]byte, error) {
	client, err := s.r.client(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := client.Collection(settingsCollection).Doc(key).Get(ctx)
	if err != nil {
		return nil, pfirestore.WrapError("settings.get", err)
	}
	var doc settingDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, pfirestore.WrapError("settings.decode", err)
	}
	return []byte(doc.Value), nil
}

func (s settingsRepo) Upsert(ctx context.Context, key string, value []byte) error {
	client, err := s.r.client(ctx)
	if err != nil {
		return err
	}
	_, err = client.Collection(settingsCollection).Doc(key).Set(ctx, settingDocument{
		Value:     string(value),
		UpdatedAt: s.r.timestamp(),
	})
	return pfirestore.WrapError("settings.upsert", err)
}
