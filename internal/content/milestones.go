package content

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/almarpuit/site/internal/domain"
	"github.com/almarpuit/site/internal/repositories"
)

// Milestones is the ordered list handle of a section's milestone cards.
type Milestones struct {
	*core
	watch watch

	mu        sync.RWMutex
	key       string
	sectionID string
	cards     []domain.MilestoneCard
	state     State
	err       error
	gen       uint64
}

// NewMilestones constructs an idle handle for the section key.
func NewMilestones(deps Deps, key string) (*Milestones, error) {
	c, err := newCore(deps)
	if err != nil {
		return nil, err
	}
	return newMilestones(c, key), nil
}

func newMilestones(c *core, key string) *Milestones {
	return &Milestones{core: c, key: strings.TrimSpace(key), state: StateIdle}
}

// Key returns the section key.
func (m *Milestones) Key() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.key
}

// Cards returns a copy of the cards ordered by SortOrder.
func (m *Milestones) Cards() []domain.MilestoneCard {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.MilestoneCard(nil), m.cards...)
}

// State returns the lifecycle state and the last fetch error.
func (m *Milestones) State() (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, m.err
}

// Fetch reloads the cards from the store.
func (m *Milestones) Fetch(ctx context.Context) (err error) {
	m.mu.Lock()
	key := m.key
	m.gen++
	gen := m.gen
	m.state = StateLoading
	m.err = nil
	m.mu.Unlock()

	ctx, span := startSpan(ctx, "content.Milestones.Fetch", key)
	defer func() { endSpan(span, err) }()

	sec, err := m.resolver.Resolve(ctx, key)
	if err != nil {
		m.fail(gen, err)
		return err
	}
	if sec == nil {
		m.apply(gen, "", nil)
		return nil
	}
	cards, err := m.registry.Milestones().ListBySection(ctx, sec.ID)
	if err != nil {
		err = fmt.Errorf("content: list milestones for %q: %w", key, err)
		m.fail(gen, err)
		return err
	}
	m.apply(gen, sec.ID, cards)
	return nil
}

func (m *Milestones) apply(gen uint64, sectionID string, cards []domain.MilestoneCard) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.sectionID = sectionID
	m.cards = cards
	m.state = StateReady
	m.err = nil
	key := m.key
	m.mu.Unlock()

	if sectionID == "" || !m.watch.isActive() {
		return
	}
	fn := m.onChange(&m.watch, m.Key, m.Fetch)
	if err := m.watch.bind(m.registry.Changes(), sectionID, []topic{{domain.TableMilestones, sectionID}}, fn); err != nil {
		m.logger.Warn("content: subscribe failed", zap.String("section", key), zap.Error(err))
	}
}

func (m *Milestones) fail(gen uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == m.gen {
		m.state = StateFailed
		m.err = err
	}
}

// Create inserts a card. A zero SortOrder appends it after the last card.
func (m *Milestones) Create(ctx context.Context, draft domain.MilestoneDraft) (card domain.MilestoneCard, err error) {
	key := m.Key()
	ctx, span := startSpan(ctx, "content.Milestones.Create", key)
	defer func() { endSpan(span, err) }()

	sec, err := m.resolver.RequireSection(ctx, key)
	if err != nil {
		return domain.MilestoneCard{}, err
	}
	if draft.SortOrder == 0 {
		draft.SortOrder = m.nextSortOrder()
	}
	card, err = m.registry.Milestones().Insert(ctx, sec.ID, draft)
	if err != nil {
		m.reconcile(ctx, "milestones.insert", key, m.Fetch, err)
		return domain.MilestoneCard{}, &SaveError{Op: "create milestone", Err: err}
	}
	m.emit(ctx, Event{Table: domain.TableMilestones, Op: domain.ChangeInsert, SectionKey: key, SectionID: sec.ID, Field: card.ID})
	return card, m.Fetch(ctx)
}

func (m *Milestones) nextSortOrder() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	highest := 0
	for _, c := range m.cards {
		if c.SortOrder > highest {
			highest = c.SortOrder
		}
	}
	return highest + 1
}

// Update applies a partial update to one card of the section.
func (m *Milestones) Update(ctx context.Context, id string, patch domain.MilestonePatch) (err error) {
	key := m.Key()
	ctx, span := startSpan(ctx, "content.Milestones.Update", key)
	defer func() { endSpan(span, err) }()

	if !m.resolver.Authenticated(ctx) {
		return ErrUnauthenticated
	}
	sectionID, stored, err := m.storedCards(ctx)
	if err != nil {
		return err
	}
	if indexOf(stored, id) < 0 {
		return ErrCardNotFound
	}

	m.mu.Lock()
	gen, prev := m.gen, m.cards
	if idx := m.indexLocked(id); idx >= 0 {
		next := append([]domain.MilestoneCard(nil), m.cards...)
		next[idx] = patch.Apply(next[idx])
		m.cards = next
	}
	m.mu.Unlock()

	if err = m.registry.Milestones().Update(ctx, id, patch); err != nil {
		m.restore(gen, prev)
		m.reconcile(ctx, "milestones.update", key, m.Fetch, err)
		if repositories.IsNotFound(err) {
			return ErrCardNotFound
		}
		return &SaveError{Op: "update milestone", Err: err}
	}
	m.emit(ctx, Event{Table: domain.TableMilestones, Op: domain.ChangeUpdate, SectionKey: key, SectionID: sectionID, Field: id})
	return m.Fetch(ctx)
}

// Delete removes one card of the section.
func (m *Milestones) Delete(ctx context.Context, id string) (err error) {
	key := m.Key()
	ctx, span := startSpan(ctx, "content.Milestones.Delete", key)
	defer func() { endSpan(span, err) }()

	if !m.resolver.Authenticated(ctx) {
		return ErrUnauthenticated
	}
	sectionID, stored, err := m.storedCards(ctx)
	if err != nil {
		return err
	}
	if indexOf(stored, id) < 0 {
		return ErrCardNotFound
	}

	m.mu.Lock()
	gen, prev := m.gen, m.cards
	if idx := m.indexLocked(id); idx >= 0 {
		m.cards = append(m.cards[:idx:idx], m.cards[idx+1:]...)
	}
	m.mu.Unlock()

	if err = m.registry.Milestones().Delete(ctx, id); err != nil {
		m.restore(gen, prev)
		m.reconcile(ctx, "milestones.delete", key, m.Fetch, err)
		if repositories.IsNotFound(err) {
			return ErrCardNotFound
		}
		return &SaveError{Op: "delete milestone", Err: err}
	}
	m.emit(ctx, Event{Table: domain.TableMilestones, Op: domain.ChangeDelete, SectionKey: key, SectionID: sectionID, Field: id})
	return m.Fetch(ctx)
}

// Reorder assigns SortOrder 1..N following ids, which must name every card
// of the section exactly once; otherwise ErrStaleOrder is returned and the
// handle re-fetches. Each card is written with a separate update, so a
// failure part way leaves earlier cards renumbered; the handle then
// re-fetches and reports the error. Every write emits its own change
// notification; watchers coalesce the burst into at most two refetches.
func (m *Milestones) Reorder(ctx context.Context, ids []string) (err error) {
	key := m.Key()
	ctx, span := startSpan(ctx, "content.Milestones.Reorder", key)
	defer func() { endSpan(span, err) }()

	if !m.resolver.Authenticated(ctx) {
		return ErrUnauthenticated
	}
	sectionID, stored, err := m.storedCards(ctx)
	if err != nil {
		return err
	}
	reordered, ok := applyOrder(stored, ids)
	if !ok {
		if ferr := m.Fetch(ctx); ferr != nil {
			m.logger.Warn("content: refetch after stale order failed", zap.String("section", key), zap.Error(ferr))
		}
		return ErrStaleOrder
	}

	m.mu.Lock()
	gen, prev := m.gen, m.cards
	m.cards = reordered
	m.mu.Unlock()

	for i, id := range ids {
		order := i + 1
		if err = m.registry.Milestones().Update(ctx, id, domain.MilestonePatch{SortOrder: &order}); err != nil {
			m.restore(gen, prev)
			m.reconcile(ctx, "milestones.reorder", key, m.Fetch, err)
			return &SaveError{Op: "reorder milestones", Err: err}
		}
	}
	m.emit(ctx, Event{Table: domain.TableMilestones, Op: domain.ChangeUpdate, SectionKey: key, SectionID: sectionID, Field: "sort_order"})
	return m.Fetch(ctx)
}

// storedCards reads the section's cards from the store. Writes are checked
// against this list because card updates are not scoped by section.
func (m *Milestones) storedCards(ctx context.Context) (string, []domain.MilestoneCard, error) {
	key := m.Key()
	sec, err := m.registry.Sections().FindByKey(ctx, key)
	if repositories.IsNotFound(err) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("content: find section %q: %w", key, err)
	}
	cards, err := m.registry.Milestones().ListBySection(ctx, sec.ID)
	if err != nil {
		return "", nil, fmt.Errorf("content: list milestones for %q: %w", key, err)
	}
	return sec.ID, cards, nil
}

// applyOrder returns cards renumbered 1..N in the order of ids, or false when
// ids is not a permutation of the cards.
func applyOrder(cards []domain.MilestoneCard, ids []string) ([]domain.MilestoneCard, bool) {
	if len(ids) != len(cards) {
		return nil, false
	}
	byID := make(map[string]domain.MilestoneCard, len(cards))
	for _, c := range cards {
		byID[c.ID] = c
	}
	out := make([]domain.MilestoneCard, 0, len(ids))
	for i, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, false
		}
		delete(byID, id)
		c.SortOrder = i + 1
		out = append(out, c)
	}
	return out, true
}

// restore puts back the cards seen before an optimistic edit unless a fetch
// has replaced them since.
func (m *Milestones) restore(gen uint64, prev []domain.MilestoneCard) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == m.gen {
		m.cards = prev
	}
}

func indexOf(cards []domain.MilestoneCard, id string) int {
	for i, c := range cards {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (m *Milestones) indexLocked(id string) int {
	return indexOf(m.cards, id)
}

// Watch fetches the cards and keeps them in sync until Close.
func (m *Milestones) Watch(ctx context.Context) error {
	m.watch.start(ctx)
	return m.Fetch(ctx)
}

// Close stops change notifications.
func (m *Milestones) Close() {
	m.watch.stop()
}
