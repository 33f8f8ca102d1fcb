package content

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/almarpuit/site/internal/domain"
)

// ImageRef is the projected value of an image field.
type ImageRef struct {
	URL     string  `json:"url"`
	AltText *string `json:"alt_text"`
}

// Alt returns the alt text or the empty string.
func (i ImageRef) Alt() string {
	if i.AltText == nil {
		return ""
	}
	return *i.AltText
}

// Snapshot is a point-in-time copy of a section's scalar content.
type Snapshot struct {
	Key          string
	SectionID    string
	Translations map[string]domain.Text
	Images       map[string]ImageRef
	State        State
	Err          error
}

// Get returns the value of field for locale, or "" when absent.
func (s Snapshot) Get(field string, locale domain.Locale) string {
	return s.Translations[field].Get(locale)
}

// Section is the scalar content handle of one site section: a cached
// projection of its translations and images kept in sync with the store.
// It is safe for concurrent use.
type Section struct {
	*core
	watch watch

	mu           sync.RWMutex
	key          string
	sectionID    string
	translations map[string]domain.Text
	images       map[string]ImageRef
	state        State
	err          error
	gen          uint64
}

// NewSection constructs an idle handle for the section key.
func NewSection(deps Deps, key string) (*Section, error) {
	c, err := newCore(deps)
	if err != nil {
		return nil, err
	}
	return newSection(c, key), nil
}

func newSection(c *core, key string) *Section {
	return &Section{
		core:         c,
		key:          strings.TrimSpace(key),
		translations: map[string]domain.Text{},
		images:       map[string]ImageRef{},
		state:        StateIdle,
	}
}

// Key returns the section key the handle is bound to.
func (s *Section) Key() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

// State returns the lifecycle state.
func (s *Section) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot returns a deep copy of the projection.
func (s *Section) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Key:          s.key,
		SectionID:    s.sectionID,
		Translations: make(map[string]domain.Text, len(s.translations)),
		Images:       make(map[string]ImageRef, len(s.images)),
		State:        s.state,
		Err:          s.err,
	}
	for k, v := range s.translations {
		snap.Translations[k] = v
	}
	for k, v := range s.images {
		v.AltText = cloneString(v.AltText)
		snap.Images[k] = v
	}
	return snap
}

// Get returns the cached value of field for locale.
func (s *Section) Get(field string, locale domain.Locale) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.translations[field].Get(locale)
}

// Image returns the cached image field.
func (s *Section) Image(field string) (ImageRef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	img, ok := s.images[field]
	img.AltText = cloneString(img.AltText)
	return img, ok
}

// SetKey rebinds the handle to another section and re-fetches.
func (s *Section) SetKey(ctx context.Context, key string) error {
	s.mu.Lock()
	s.key = strings.TrimSpace(key)
	s.sectionID = ""
	s.translations = map[string]domain.Text{}
	s.images = map[string]ImageRef{}
	s.gen++
	s.state = StateIdle
	s.err = nil
	s.mu.Unlock()
	return s.Fetch(ctx)
}

// Fetch resolves the section and loads translations and images concurrently.
// A section that does not exist yields empty content without error.
func (s *Section) Fetch(ctx context.Context) (err error) {
	s.mu.Lock()
	key := s.key
	s.gen++
	gen := s.gen
	s.state = StateLoading
	s.err = nil
	s.mu.Unlock()

	ctx, span := startSpan(ctx, "content.Section.Fetch", key)
	defer func() { endSpan(span, err) }()

	sec, err := s.resolver.Resolve(ctx, key)
	if err != nil {
		s.fail(gen, err)
		return err
	}
	if sec == nil {
		s.apply(gen, "", map[string]domain.Text{}, map[string]ImageRef{})
		return nil
	}

	var (
		wg            sync.WaitGroup
		rows          []domain.Translation
		imgs          []domain.Image
		trErr, imgErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		rows, trErr = s.registry.Translations().ListBySection(ctx, sec.ID)
	}()
	go func() {
		defer wg.Done()
		imgs, imgErr = s.registry.Images().ListBySection(ctx, sec.ID)
	}()
	wg.Wait()

	if trErr != nil {
		err = fmt.Errorf("content: list translations for %q: %w", key, trErr)
		s.fail(gen, err)
		return err
	}
	if imgErr != nil {
		err = fmt.Errorf("content: list images for %q: %w", key, imgErr)
		s.fail(gen, err)
		return err
	}

	translations := make(map[string]domain.Text, len(rows))
	for _, row := range rows {
		translations[row.Key] = row.Text()
	}
	images := make(map[string]ImageRef, len(imgs))
	for _, img := range imgs {
		images[img.Key] = ImageRef{URL: img.URL, AltText: cloneString(img.AltText)}
	}
	s.apply(gen, sec.ID, translations, images)
	return nil
}

// apply installs a fetch result unless a newer fetch or key change superseded it.
func (s *Section) apply(gen uint64, sectionID string, translations map[string]domain.Text, images map[string]ImageRef) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.sectionID = sectionID
	s.translations = translations
	s.images = images
	s.state = StateReady
	s.err = nil
	key := s.key
	s.mu.Unlock()

	s.bindWatch(key, sectionID)
}

func (s *Section) fail(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.state = StateFailed
	s.err = err
}

// restore undoes an optimistic edit unless a fetch has replaced the
// projection since, so a rejected value survives neither a successful nor a
// failed reconcile.
func (s *Section) restore(gen uint64, undo func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.gen {
		undo()
	}
}

// UpdateTranslation sets one language of a text field. The projection is
// updated before the write; a failed write re-fetches and returns a *SaveError.
func (s *Section) UpdateTranslation(ctx context.Context, field string, locale domain.Locale, value string) (err error) {
	key := s.Key()
	ctx, span := startSpan(ctx, "content.Section.UpdateTranslation", key)
	defer func() { endSpan(span, err) }()

	sec, err := s.resolver.RequireSection(ctx, key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.sectionID = sec.ID
	gen := s.gen
	prev, had := s.translations[field]
	s.translations[field] = prev.With(locale, value)
	s.mu.Unlock()

	if werr := s.registry.Translations().UpsertValue(ctx, sec.ID, field, locale, value); werr != nil {
		s.restore(gen, func() {
			if had {
				s.translations[field] = prev
			} else {
				delete(s.translations, field)
			}
		})
		s.reconcile(ctx, "translations.upsert", key, s.Fetch, werr)
		return &SaveError{Op: "update translation " + field, Err: werr}
	}
	s.emit(ctx, Event{Table: domain.TableTranslations, Op: domain.ChangeUpdate, SectionKey: key, SectionID: sec.ID, Field: field})
	return nil
}

// UpdateImage sets an image field. It follows the same contract as UpdateTranslation.
func (s *Section) UpdateImage(ctx context.Context, field, url string, altText *string) (err error) {
	key := s.Key()
	ctx, span := startSpan(ctx, "content.Section.UpdateImage", key)
	defer func() { endSpan(span, err) }()

	sec, err := s.resolver.RequireSection(ctx, key)
	if err != nil {
		return err
	}
	if altText != nil && *altText == "" {
		altText = nil
	}

	s.mu.Lock()
	s.sectionID = sec.ID
	gen := s.gen
	prev, had := s.images[field]
	s.images[field] = ImageRef{URL: url, AltText: cloneString(altText)}
	s.mu.Unlock()

	if werr := s.registry.Images().Upsert(ctx, sec.ID, field, url, altText); werr != nil {
		s.restore(gen, func() {
			if had {
				s.images[field] = prev
			} else {
				delete(s.images, field)
			}
		})
		s.reconcile(ctx, "images.upsert", key, s.Fetch, werr)
		return &SaveError{Op: "update image " + field, Err: werr}
	}
	s.emit(ctx, Event{Table: domain.TableImages, Op: domain.ChangeUpdate, SectionKey: key, SectionID: sec.ID, Field: field})
	return nil
}

// Watch fetches the section and keeps it in sync with change notifications
// until Close. Any notification triggers a full re-fetch.
func (s *Section) Watch(ctx context.Context) error {
	s.watch.start(ctx)
	return s.Fetch(ctx)
}

// Close stops change notifications.
func (s *Section) Close() {
	s.watch.stop()
}

func (s *Section) bindWatch(key, sectionID string) {
	if !s.watch.isActive() {
		return
	}
	fn := s.onChange(&s.watch, s.Key, s.Fetch)
	var (
		binding string
		topics  []topic
	)
	if sectionID == "" {
		// The section does not exist yet; wait for it to be created.
		binding = "key:" + key
		topics = []topic{{table: domain.TableSections}}
		inner := fn
		fn = func(change domain.Change) {
			if change.Key == key {
				inner(change)
			}
		}
	} else {
		binding = "id:" + sectionID
		topics = []topic{{domain.TableTranslations, sectionID}, {domain.TableImages, sectionID}}
	}
	if err := s.watch.bind(s.registry.Changes(), binding, topics, fn); err != nil {
		s.logger.Warn("content: subscribe failed", zap.String("section", key), zap.Error(err))
	}
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
