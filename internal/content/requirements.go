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

// Requirements is the handle of a section's single product requirement record.
type Requirements struct {
	*core
	watch watch

	mu          sync.RWMutex
	key         string
	sectionID   string
	requirement *domain.ProductRequirement
	state       State
	err         error
	gen         uint64
}

// NewRequirements constructs an idle handle for the section key.
func NewRequirements(deps Deps, key string) (*Requirements, error) {
	c, err := newCore(deps)
	if err != nil {
		return nil, err
	}
	return newRequirements(c, key), nil
}

func newRequirements(c *core, key string) *Requirements {
	return &Requirements{core: c, key: strings.TrimSpace(key), state: StateIdle}
}

// Key returns the section key.
func (r *Requirements) Key() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.key
}

// Requirement returns a copy of the record, or false when the section has none.
func (r *Requirements) Requirement() (domain.ProductRequirement, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.requirement == nil {
		return domain.ProductRequirement{}, false
	}
	return r.requirement.Clone(), true
}

// State returns the lifecycle state and the last fetch error.
func (r *Requirements) State() (State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state, r.err
}

// Fetch reloads the record from the store.
func (r *Requirements) Fetch(ctx context.Context) (err error) {
	r.mu.Lock()
	key := r.key
	r.gen++
	gen := r.gen
	r.state = StateLoading
	r.err = nil
	r.mu.Unlock()

	ctx, span := startSpan(ctx, "content.Requirements.Fetch", key)
	defer func() { endSpan(span, err) }()

	sec, err := r.resolver.Resolve(ctx, key)
	if err != nil {
		r.fail(gen, err)
		return err
	}
	if sec == nil {
		r.apply(gen, "", nil)
		return nil
	}
	req, err := r.registry.Requirements().FindBySection(ctx, sec.ID)
	switch {
	case err == nil:
		r.apply(gen, sec.ID, &req)
	case repositories.IsNotFound(err):
		r.apply(gen, sec.ID, nil)
	default:
		err = fmt.Errorf("content: load requirement for %q: %w", key, err)
		r.fail(gen, err)
		return err
	}
	return nil
}

func (r *Requirements) apply(gen uint64, sectionID string, req *domain.ProductRequirement) {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return
	}
	r.sectionID = sectionID
	r.requirement = req
	r.state = StateReady
	r.err = nil
	key := r.key
	r.mu.Unlock()

	if sectionID == "" || !r.watch.isActive() {
		return
	}
	fn := r.onChange(&r.watch, r.Key, r.Fetch)
	if err := r.watch.bind(r.registry.Changes(), sectionID, []topic{{domain.TableRequirements, sectionID}}, fn); err != nil {
		r.logger.Warn("content: subscribe failed", zap.String("section", key), zap.Error(err))
	}
}

func (r *Requirements) fail(gen uint64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen == r.gen {
		r.state = StateFailed
		r.err = err
	}
}

// Update writes a partial update. When the section has no record yet one is
// inserted with empty titles and items, overlaid with the patch.
func (r *Requirements) Update(ctx context.Context, patch domain.RequirementPatch) (err error) {
	key := r.Key()
	ctx, span := startSpan(ctx, "content.Requirements.Update", key)
	defer func() { endSpan(span, err) }()

	sec, err := r.resolver.RequireSection(ctx, key)
	if err != nil {
		return err
	}

	r.mu.Lock()
	gen := r.gen
	current := r.requirement
	if current != nil {
		next := patch.Apply(*current)
		r.requirement = &next
	}
	r.mu.Unlock()

	op := domain.ChangeUpdate
	if current == nil {
		op = domain.ChangeInsert
		draft := patch.Apply(domain.ProductRequirement{SectionID: sec.ID, Items: []domain.Text{}})
		_, err = r.registry.Requirements().Insert(ctx, draft)
	} else {
		err = r.registry.Requirements().Update(ctx, current.ID, patch)
	}
	if err != nil {
		r.mu.Lock()
		if gen == r.gen {
			r.requirement = current
		}
		r.mu.Unlock()
		r.reconcile(ctx, "requirements.write", key, r.Fetch, err)
		return &SaveError{Op: "update requirement", Err: err}
	}
	r.emit(ctx, Event{Table: domain.TableRequirements, Op: op, SectionKey: key, SectionID: sec.ID})
	return r.Fetch(ctx)
}

// AddItem appends an item to the list.
func (r *Requirements) AddItem(ctx context.Context, item domain.Text) error {
	return r.rewriteItems(ctx, func(items []domain.Text) ([]domain.Text, error) {
		return append(items, item), nil
	})
}

// UpdateItem replaces the item at index.
func (r *Requirements) UpdateItem(ctx context.Context, index int, item domain.Text) error {
	return r.rewriteItems(ctx, func(items []domain.Text) ([]domain.Text, error) {
		if index < 0 || index >= len(items) {
			return nil, ErrItemIndex
		}
		items[index] = item
		return items, nil
	})
}

// RemoveItem deletes the item at index.
func (r *Requirements) RemoveItem(ctx context.Context, index int) error {
	return r.rewriteItems(ctx, func(items []domain.Text) ([]domain.Text, error) {
		if index < 0 || index >= len(items) {
			return nil, ErrItemIndex
		}
		return append(items[:index], items[index+1:]...), nil
	})
}

// ReorderItems replaces the list with items in the given order.
func (r *Requirements) ReorderItems(ctx context.Context, items []domain.Text) error {
	return r.rewriteItems(ctx, func([]domain.Text) ([]domain.Text, error) {
		return append([]domain.Text{}, items...), nil
	})
}

// rewriteItems reads the current list, transforms it in memory and writes the
// whole list back as one field update.
func (r *Requirements) rewriteItems(ctx context.Context, transform func([]domain.Text) ([]domain.Text, error)) error {
	if !r.resolver.Authenticated(ctx) {
		return ErrUnauthenticated
	}
	current, ok := r.Requirement()
	if !ok {
		return ErrNoRequirement
	}
	items, err := transform(append([]domain.Text{}, current.Items...))
	if err != nil {
		return err
	}
	return r.Update(ctx, domain.RequirementPatch{Items: items})
}

// Watch fetches the record and keeps it in sync until Close.
func (r *Requirements) Watch(ctx context.Context) error {
	r.watch.start(ctx)
	return r.Fetch(ctx)
}

// Close stops change notifications.
func (r *Requirements) Close() {
	r.watch.stop()
}
