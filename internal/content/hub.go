package content

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Hub lazily creates one watched handle per section key and kind, so the
// public site and the admin share a single synchronised projection.
type Hub struct {
	*core

	mu           sync.Mutex
	sections     map[string]*Section
	milestones   map[string]*Milestones
	requirements map[string]*Requirements
	settings     *Settings
	closed       bool
}

// NewHub constructs a hub from the shared dependencies.
func NewHub(deps Deps) (*Hub, error) {
	c, err := newCore(deps)
	if err != nil {
		return nil, err
	}
	return &Hub{
		core:         c,
		sections:     map[string]*Section{},
		milestones:   map[string]*Milestones{},
		requirements: map[string]*Requirements{},
	}, nil
}

// Resolver exposes the hub's section resolver.
func (h *Hub) Resolver() *Resolver { return h.resolver }

// Section returns the watched scalar handle for key, starting it on first use.
// A handle whose last load failed is fetched again.
func (h *Hub) Section(ctx context.Context, key string) *Section {
	key = strings.TrimSpace(key)
	h.mu.Lock()
	handle, ok := h.sections[key]
	if !ok {
		handle = newSection(h.core, key)
		h.sections[key] = handle
	}
	h.mu.Unlock()
	if !ok || handle.State() == StateFailed {
		h.start(ctx, key, handle.Watch)
	}
	return handle
}

// Milestones returns the watched milestone handle for key.
func (h *Hub) Milestones(ctx context.Context, key string) *Milestones {
	key = strings.TrimSpace(key)
	h.mu.Lock()
	handle, ok := h.milestones[key]
	if !ok {
		handle = newMilestones(h.core, key)
		h.milestones[key] = handle
	}
	h.mu.Unlock()
	if !ok || failed(handle.State()) {
		h.start(ctx, key, handle.Watch)
	}
	return handle
}

// Requirements returns the watched requirement handle for key.
func (h *Hub) Requirements(ctx context.Context, key string) *Requirements {
	key = strings.TrimSpace(key)
	h.mu.Lock()
	handle, ok := h.requirements[key]
	if !ok {
		handle = newRequirements(h.core, key)
		h.requirements[key] = handle
	}
	h.mu.Unlock()
	if !ok || failed(handle.State()) {
		h.start(ctx, key, handle.Watch)
	}
	return handle
}

// Settings returns the watched global settings handle.
func (h *Hub) Settings(ctx context.Context) *Settings {
	h.mu.Lock()
	handle := h.settings
	created := handle == nil
	if created {
		handle = newSettings(h.core)
		h.settings = handle
	}
	h.mu.Unlock()
	if created || failed(handle.State()) {
		h.start(ctx, "settings", handle.Watch)
	}
	return handle
}

// Preload starts handles for every key so the first request is served warm.
func (h *Hub) Preload(ctx context.Context, keys []string) {
	for _, key := range keys {
		h.Section(ctx, key)
	}
	h.Settings(ctx)
}

func failed(state State, _ error) bool { return state == StateFailed }

func (h *Hub) start(ctx context.Context, key string, watch func(context.Context) error) {
	if err := watch(ctx); err != nil {
		h.logger.Warn("content: initial fetch failed", zap.String("section", key), zap.Error(err))
	}
}

// Close stops every handle's subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, s := range h.sections {
		s.Close()
	}
	for _, m := range h.milestones {
		m.Close()
	}
	for _, r := range h.requirements {
		r.Close()
	}
	if h.settings != nil {
		h.settings.Close()
	}
}
