// Package memory provides an in-process repositories.Registry used by tests
// and local runs without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/almarpuit/site/internal/domain"
	"github.com/almarpuit/site/internal/repositories"
	"github.com/almarpuit/site/internal/repositories/changehub"
)

// Operation names accepted by Store.Fail.
const (
	OpSectionFind       = "sections.find"
	OpSectionInsert     = "sections.insert"
	OpTranslationList   = "translations.list"
	OpTranslationUpsert = "translations.upsert"
	OpImageList         = "images.list"
	OpImageUpsert       = "images.upsert"
	OpMilestoneList     = "milestones.list"
	OpMilestoneInsert   = "milestones.insert"
	OpMilestoneUpdate   = "milestones.update"
	OpMilestoneDelete   = "milestones.delete"
	OpRequirementFind   = "requirements.find"
	OpRequirementInsert = "requirements.insert"
	OpRequirementUpdate = "requirements.update"
	OpSettingsGet       = "settings.get"
	OpSettingsUpsert    = "settings.upsert"
)

// Fault decides whether the call-th invocation (1-based) of an operation fails.
type Fault func(call int) error

type translationKey struct {
	sectionID string
	key       string
}

// Store is a goroutine-safe in-memory registry with the same constraints as
// the relational schema: unique section keys, unique (section_id, key) for
// translations and images, one requirement per section.
type Store struct {
	mu           sync.Mutex
	sections     map[string]domain.Section
	translations map[translationKey]domain.Translation
	images       map[translationKey]domain.Image
	milestones   map[string]domain.MilestoneCard
	requirements map[string]domain.ProductRequirement
	settings     map[string][]byte

	faults map[string]Fault
	calls  map[string]int

	hub *changehub.Hub
	now func() time.Time
}

var _ repositories.Registry = (*Store)(nil)

// Option customises the store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		sections:     make(map[string]domain.Section),
		translations: make(map[translationKey]domain.Translation),
		images:       make(map[translationKey]domain.Image),
		milestones:   make(map[string]domain.MilestoneCard),
		requirements: make(map[string]domain.ProductRequirement),
		settings:     make(map[string][]byte),
		faults:       make(map[string]Fault),
		calls:        make(map[string]int),
		hub:          changehub.New(),
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Fail installs a fault for the operation; nil removes it.
func (s *Store) Fail(op string, fault Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fault == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = fault
	s.calls[op] = 0
}

// Calls reports how many times the operation has been invoked since its fault was installed.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Hub exposes the change hub so tests can wait for deliveries.
func (s *Store) Hub() *changehub.Hub { return s.hub }

// check runs the operation's fault, if any, outside the store lock so a
// fault may call back into the store.
func (s *Store) check(op string) error {
	s.mu.Lock()
	s.calls[op]++
	call := s.calls[op]
	fault := s.faults[op]
	s.mu.Unlock()
	if fault != nil {
		return fault(call)
	}
	return nil
}

func (s *Store) publish(table domain.Table, op domain.ChangeOp, sectionID, key string) {
	s.hub.Publish(domain.Change{Table: table, Op: op, SectionID: sectionID, Key: key, At: s.now()})
}

func (s *Store) Close(context.Context) error { return nil }

func (s *Store) Sections() repositories.SectionRepository         { return sectionRepo{s} }
func (s *Store) Translations() repositories.TranslationRepository { return translationRepo{s} }
func (s *Store) Images() repositories.ImageRepository             { return imageRepo{s} }
func (s *Store) Milestones() repositories.MilestoneRepository     { return milestoneRepo{s} }
func (s *Store) Requirements() repositories.RequirementRepository { return requirementRepo{s} }
func (s *Store) Settings() repositories.SettingsRepository        { return settingsRepo{s} }
func (s *Store) Changes() repositories.ChangeFeed                 { return s.hub }
func (s *Store) Health() repositories.HealthRepository            { return healthRepo{} }

type healthRepo struct{}

func (healthRepo) Ping(context.Context) error { return nil }

type sectionRepo struct{ s *Store }

func (r sectionRepo) FindByKey(_ context.Context, key string) (domain.Section, error) {
	if err := r.s.check(OpSectionFind); err != nil {
		return domain.Section{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sec := range r.s.sections {
		if sec.Key == key {
			return sec, nil
		}
	}
	return domain.Section{}, NotFound(OpSectionFind)
}

func (r sectionRepo) Insert(_ context.Context, key string) (domain.Section, error) {
	if err := r.s.check(OpSectionInsert); err != nil {
		return domain.Section{}, err
	}
	r.s.mu.Lock()
	sec, err := r.s.insertSectionLocked(key)
	r.s.mu.Unlock()
	if err != nil {
		return domain.Section{}, err
	}
	r.s.publish(domain.TableSections, domain.ChangeInsert, sec.ID, sec.Key)
	return sec, nil
}

// SeedSection inserts a section bypassing faults, simulating another writer.
func (s *Store) SeedSection(key string) (domain.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertSectionLocked(key)
}

func (s *Store) insertSectionLocked(key string) (domain.Section, error) {
	for _, sec := range s.sections {
		if sec.Key == key {
			return domain.Section{}, Conflict(OpSectionInsert)
		}
	}
	now := s.now()
	sec := domain.Section{ID: uuid.NewString(), Key: key, CreatedAt: now, UpdatedAt: now}
	s.sections[sec.ID] = sec
	return sec, nil
}

func (r sectionRepo) Touch(_ context.Context, sectionID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sec, ok := r.s.sections[sectionID]
	if !ok {
		return NotFound("sections.touch")
	}
	sec.UpdatedAt = r.s.now()
	r.s.sections[sectionID] = sec
	return nil
}

func (r sectionRepo) List(context.Context) ([]domain.Section, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.Section, 0, len(r.s.sections))
	for _, sec := range r.s.sections {
		out = append(out, sec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (r sectionRepo) RecentlyUpdated(ctx context.Context, limit int) ([]domain.Section, error) {
	out, _ := r.List(ctx)
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type translationRepo struct{ s *Store }

func (r translationRepo) ListBySection(_ context.Context, sectionID string) ([]domain.Translation, error) {
	if err := r.s.check(OpTranslationList); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Translation
	for k, tr := range r.s.translations {
		if k.sectionID == sectionID {
			out = append(out, tr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (r translationRepo) ListAll(context.Context) ([]domain.Translation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.Translation, 0, len(r.s.translations))
	for _, tr := range r.s.translations {
		out = append(out, tr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SectionID != out[j].SectionID {
			return out[i].SectionID < out[j].SectionID
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func (r translationRepo) UpsertValue(_ context.Context, sectionID, key string, locale domain.Locale, value string) error {
	return r.upsert(sectionID, key, func(tr *domain.Translation) {
		text := tr.Text().With(locale, value)
		tr.ET, tr.EN = text.ET, text.EN
	})
}

func (r translationRepo) Upsert(_ context.Context, sectionID, key string, text domain.Text) error {
	return r.upsert(sectionID, key, func(tr *domain.Translation) {
		tr.ET, tr.EN = text.ET, text.EN
	})
}

func (r translationRepo) upsert(sectionID, key string, apply func(*domain.Translation)) error {
	if err := r.s.check(OpTranslationUpsert); err != nil {
		return err
	}
	r.s.mu.Lock()
	now := r.s.now()
	k := translationKey{sectionID, key}
	tr, exists := r.s.translations[k]
	if !exists {
		tr = domain.Translation{ID: uuid.NewString(), SectionID: sectionID, Key: key, CreatedAt: now}
	}
	apply(&tr)
	tr.UpdatedAt = now
	r.s.translations[k] = tr
	r.s.touchLocked(sectionID)
	r.s.mu.Unlock()

	r.s.publish(domain.TableTranslations, changeOp(exists), sectionID, key)
	return nil
}

func (s *Store) touchLocked(sectionID string) {
	if sec, ok := s.sections[sectionID]; ok {
		sec.UpdatedAt = s.now()
		s.sections[sectionID] = sec
	}
}

func changeOp(exists bool) domain.ChangeOp {
	if exists {
		return domain.ChangeUpdate
	}
	return domain.ChangeInsert
}

type imageRepo struct{ s *Store }

func (r imageRepo) ListBySection(_ context.Context, sectionID string) ([]domain.Image, error) {
	if err := r.s.check(OpImageList); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Image
	for k, img := range r.s.images {
		if k.sectionID == sectionID {
			out = append(out, cloneImage(img))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (r imageRepo) ListAll(context.Context) ([]domain.Image, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.Image, 0, len(r.s.images))
	for _, img := range r.s.images {
		out = append(out, cloneImage(img))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SectionID != out[j].SectionID {
			return out[i].SectionID < out[j].SectionID
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func (r imageRepo) Upsert(_ context.Context, sectionID, key, url string, altText *string) error {
	if err := r.s.check(OpImageUpsert); err != nil {
		return err
	}
	r.s.mu.Lock()
	now := r.s.now()
	k := translationKey{sectionID, key}
	img, exists := r.s.images[k]
	if !exists {
		img = domain.Image{ID: uuid.NewString(), SectionID: sectionID, Key: key, CreatedAt: now}
	}
	img.URL = url
	img.AltText = cloneString(altText)
	img.UpdatedAt = now
	r.s.images[k] = img
	r.s.touchLocked(sectionID)
	r.s.mu.Unlock()

	r.s.publish(domain.TableImages, changeOp(exists), sectionID, key)
	return nil
}

func cloneImage(img domain.Image) domain.Image {
	img.AltText = cloneString(img.AltText)
	return img
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

type milestoneRepo struct{ s *Store }

func (r milestoneRepo) ListBySection(_ context.Context, sectionID string) ([]domain.MilestoneCard, error) {
	if err := r.s.check(OpMilestoneList); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.MilestoneCard
	for _, card := range r.s.milestones {
		if card.SectionID == sectionID {
			out = append(out, card)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r milestoneRepo) Insert(_ context.Context, sectionID string, draft domain.MilestoneDraft) (domain.MilestoneCard, error) {
	if err := r.s.check(OpMilestoneInsert); err != nil {
		return domain.MilestoneCard{}, err
	}
	r.s.mu.Lock()
	now := r.s.now()
	card := domain.MilestoneCard{
		ID:            uuid.NewString(),
		SectionID:     sectionID,
		Label:         draft.Label,
		DescriptionET: draft.DescriptionET,
		DescriptionEN: draft.DescriptionEN,
		SortOrder:     draft.SortOrder,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.s.milestones[card.ID] = card
	r.s.touchLocked(sectionID)
	r.s.mu.Unlock()

	r.s.publish(domain.TableMilestones, domain.ChangeInsert, sectionID, card.ID)
	return card, nil
}

func (r milestoneRepo) Update(_ context.Context, id string, patch domain.MilestonePatch) error {
	if err := r.s.check(OpMilestoneUpdate); err != nil {
		return err
	}
	r.s.mu.Lock()
	card, ok := r.s.milestones[id]
	if !ok {
		r.s.mu.Unlock()
		return NotFound(OpMilestoneUpdate)
	}
	card = patch.Apply(card)
	card.UpdatedAt = r.s.now()
	r.s.milestones[id] = card
	r.s.touchLocked(card.SectionID)
	r.s.mu.Unlock()

	r.s.publish(domain.TableMilestones, domain.ChangeUpdate, card.SectionID, id)
	return nil
}

func (r milestoneRepo) Delete(_ context.Context, id string) error {
	if err := r.s.check(OpMilestoneDelete); err != nil {
		return err
	}
	r.s.mu.Lock()
	card, ok := r.s.milestones[id]
	if !ok {
		r.s.mu.Unlock()
		return NotFound(OpMilestoneDelete)
	}
	delete(r.s.milestones, id)
	r.s.touchLocked(card.SectionID)
	r.s.mu.Unlock()

	r.s.publish(domain.TableMilestones, domain.ChangeDelete, card.SectionID, id)
	return nil
}

type requirementRepo struct{ s *Store }

func (r requirementRepo) FindBySection(_ context.Context, sectionID string) (domain.ProductRequirement, error) {
	if err := r.s.check(OpRequirementFind); err != nil {
		return domain.ProductRequirement{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, req := range r.s.requirements {
		if req.SectionID == sectionID {
			return req.Clone(), nil
		}
	}
	return domain.ProductRequirement{}, NotFound(OpRequirementFind)
}

func (r requirementRepo) Insert(_ context.Context, req domain.ProductRequirement) (domain.ProductRequirement, error) {
	if err := r.s.check(OpRequirementInsert); err != nil {
		return domain.ProductRequirement{}, err
	}
	r.s.mu.Lock()
	for _, existing := range r.s.requirements {
		if existing.SectionID == req.SectionID {
			r.s.mu.Unlock()
			return domain.ProductRequirement{}, Conflict(OpRequirementInsert)
		}
	}
	now := r.s.now()
	req = req.Clone()
	req.ID = uuid.NewString()
	if req.Items == nil {
		req.Items = []domain.Text{}
	}
	req.CreatedAt, req.UpdatedAt = now, now
	r.s.requirements[req.ID] = req
	r.s.touchLocked(req.SectionID)
	r.s.mu.Unlock()

	r.s.publish(domain.TableRequirements, domain.ChangeInsert, req.SectionID, req.ID)
	return req.Clone(), nil
}

func (r requirementRepo) Update(_ context.Context, id string, patch domain.RequirementPatch) error {
	if err := r.s.check(OpRequirementUpdate); err != nil {
		return err
	}
	r.s.mu.Lock()
	req, ok := r.s.requirements[id]
	if !ok {
		r.s.mu.Unlock()
		return NotFound(OpRequirementUpdate)
	}
	req = patch.Apply(req)
	req.UpdatedAt = r.s.now()
	r.s.requirements[id] = req
	r.s.touchLocked(req.SectionID)
	r.s.mu.Unlock()

	r.s.publish(domain.TableRequirements, domain.ChangeUpdate, req.SectionID, id)
	return nil
}

type settingsRepo struct{ s *Store }

func (r settingsRepo) Get(_ context.Context, key string) ([]byte, error) {
	if err := r.s.check(OpSettingsGet); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	value, ok := r.s.settings[key]
	if !ok {
		return nil, NotFound(OpSettingsGet)
	}
	return append([]byte(nil), value...), nil
}

func (r settingsRepo) Upsert(_ context.Context, key string, value []byte) error {
	if err := r.s.check(OpSettingsUpsert); err != nil {
		return err
	}
	r.s.mu.Lock()
	_, exists := r.s.settings[key]
	r.s.settings[key] = append([]byte(nil), value...)
	r.s.mu.Unlock()

	r.s.publish(domain.TableSettings, changeOp(exists), "", key)
	return nil
}
