package content

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/almarpuit/site/internal/domain"
	"github.com/almarpuit/site/internal/repositories"
)

const defaultRefetchTimeout = 15 * time.Second

// State is the lifecycle of a content handle.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

// Event describes a successful content write for audit consumers.
type Event struct {
	Table      domain.Table
	Op         domain.ChangeOp
	SectionKey string
	SectionID  string
	Field      string
	Actor      string
	At         time.Time
}

// EventPublisher receives content write events. Failures never fail the write.
type EventPublisher interface {
	PublishContentEvent(ctx context.Context, event Event) error
}

type noopPublisher struct{}

func (noopPublisher) PublishContentEvent(context.Context, Event) error { return nil }

// Deps groups constructor parameters for content handles.
type Deps struct {
	Registry       repositories.Registry
	Session        SessionInspector
	Events         EventPublisher
	Logger         *zap.Logger
	Clock          func() time.Time
	RefetchTimeout time.Duration
}

type core struct {
	registry       repositories.Registry
	resolver       *Resolver
	events         EventPublisher
	logger         *zap.Logger
	clock          func() time.Time
	refetchTimeout time.Duration
	ins            instruments
}

func newCore(deps Deps) (*core, error) {
	if deps.Registry == nil {
		return nil, ErrRegistryMissing
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	events := deps.Events
	if events == nil {
		events = noopPublisher{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	timeout := deps.RefetchTimeout
	if timeout <= 0 {
		timeout = defaultRefetchTimeout
	}
	return &core{
		registry:       deps.Registry,
		resolver:       NewResolver(deps.Registry.Sections(), deps.Session, logger),
		events:         events,
		logger:         logger,
		clock:          func() time.Time { return clock().UTC() },
		refetchTimeout: timeout,
		ins:            newInstruments(logger),
	}, nil
}

func (c *core) emit(ctx context.Context, event Event) {
	if p, ok := PrincipalFromContext(ctx); ok {
		event.Actor = p.UID
	}
	event.At = c.clock()
	if err := c.events.PublishContentEvent(ctx, event); err != nil {
		c.logger.Warn("content: publish event failed",
			zap.String("table", string(event.Table)),
			zap.String("section", event.SectionKey),
			zap.Error(err))
	}
}

// reconcile forces a full re-fetch after a failed write.
func (c *core) reconcile(ctx context.Context, op, key string, fetch func(context.Context) error, cause error) {
	c.ins.reconciled(ctx, op, key)
	c.logger.Warn("content: write failed, reconciling with store",
		zap.String("op", op), zap.String("section", key), zap.Error(cause))
	if err := fetch(context.WithoutCancel(ctx)); err != nil {
		c.logger.Error("content: reconcile fetch failed", zap.String("section", key), zap.Error(err))
	}
}

type topic struct {
	table  domain.Table
	filter string
}

// watch owns the change subscriptions of one handle. Subscriptions are bound
// to a background context that lives until stop.
type watch struct {
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	active  bool
	bound   string
	cancels []func()

	refetching bool
	pending    bool
}

func (w *watch) start(ctx context.Context) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active {
		return false
	}
	w.ctx, w.cancel = context.WithCancel(context.WithoutCancel(ctx))
	w.active = true
	return true
}

func (w *watch) isActive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// bind makes the subscriptions match binding; it is a no-op when already bound.
func (w *watch) bind(feed repositories.ChangeFeed, binding string, topics []topic, fn func(domain.Change)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.active || binding == w.bound {
		return nil
	}
	w.releaseLocked()
	for _, t := range topics {
		cancel, err := feed.Subscribe(w.ctx, t.table, t.filter, fn)
		if err != nil {
			w.releaseLocked()
			return err
		}
		w.cancels = append(w.cancels, cancel)
	}
	w.bound = binding
	return nil
}

func (w *watch) releaseLocked() {
	for _, cancel := range w.cancels {
		cancel()
	}
	w.cancels = nil
	w.bound = ""
}

// baseContext returns the background context of the watch, or nil when inactive.
func (w *watch) baseContext() context.Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.active {
		return nil
	}
	return w.ctx
}

// claim reports whether the caller should run the refetch. A notification
// arriving while one runs is folded into a single follow-up pass.
func (w *watch) claim() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.refetching {
		w.pending = true
		return false
	}
	w.refetching = true
	return true
}

// again reports whether notifications arrived during the last pass and
// releases the claim when none did.
func (w *watch) again() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending && w.active {
		w.pending = false
		return true
	}
	w.refetching = false
	w.pending = false
	return false
}

func (w *watch) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.releaseLocked()
	if w.cancel != nil {
		w.cancel()
	}
	w.active = false
}

// onChange returns a callback that re-fetches the handle when a notification
// arrives. Bursts coalesce: while a refetch runs, further notifications
// schedule at most one more.
func (c *core) onChange(w *watch, key func() string, fetch func(context.Context) error) func(domain.Change) {
	return func(change domain.Change) {
		if !w.claim() {
			return
		}
		for {
			c.refetch(w, key(), change, fetch)
			if !w.again() {
				return
			}
		}
	}
}

func (c *core) refetch(w *watch, sectionKey string, change domain.Change, fetch func(context.Context) error) {
	base := w.baseContext()
	if base == nil {
		return
	}
	ctx, cancel := context.WithTimeout(base, c.refetchTimeout)
	defer cancel()
	c.ins.refetched(ctx, string(change.Table), sectionKey)
	c.logger.Debug("content: change received, refetching",
		zap.String("table", string(change.Table)),
		zap.String("op", string(change.Op)),
		zap.String("section", sectionKey))
	if err := fetch(ctx); err != nil {
		c.logger.Warn("content: refetch after change failed", zap.String("section", sectionKey), zap.Error(err))
	}
}
