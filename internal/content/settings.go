package content

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/almarpuit/site/internal/domain"
	"github.com/almarpuit/site/internal/repositories"
)

// Settings is the handle of the global settings singleton.
type Settings struct {
	*core
	watch watch

	mu       sync.RWMutex
	settings domain.GlobalSettings
	state    State
	err      error
	gen      uint64
}

// NewSettings constructs an idle settings handle holding defaults.
func NewSettings(deps Deps) (*Settings, error) {
	c, err := newCore(deps)
	if err != nil {
		return nil, err
	}
	return newSettings(c), nil
}

func newSettings(c *core) *Settings {
	return &Settings{core: c, state: StateIdle}
}

// Current returns the last known settings.
func (s *Settings) Current() domain.GlobalSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// State returns the lifecycle state and the last fetch error.
func (s *Settings) State() (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.err
}

// Fetch loads the settings row. An absent row yields defaults without error;
// any other failure also resets to defaults and is returned.
func (s *Settings) Fetch(ctx context.Context) (err error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.state = StateLoading
	s.err = nil
	s.mu.Unlock()

	ctx, span := startSpan(ctx, "content.Settings.Fetch", domain.GlobalSettingsKey)
	defer func() { endSpan(span, err) }()

	raw, err := s.registry.Settings().Get(ctx, domain.GlobalSettingsKey)
	if repositories.IsNotFound(err) {
		s.apply(gen, domain.GlobalSettings{}, nil)
		return nil
	}
	if err != nil {
		err = fmt.Errorf("content: load settings: %w", err)
		s.apply(gen, domain.GlobalSettings{}, err)
		return err
	}

	var settings domain.GlobalSettings
	if err = json.Unmarshal(raw, &settings); err != nil {
		err = fmt.Errorf("content: decode settings: %w", err)
		s.apply(gen, domain.GlobalSettings{}, err)
		return err
	}
	s.apply(gen, settings, nil)
	return nil
}

func (s *Settings) apply(gen uint64, settings domain.GlobalSettings, err error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.settings = settings
	s.err = err
	if err != nil {
		s.state = StateFailed
	} else {
		s.state = StateReady
	}
	s.mu.Unlock()

	if !s.watch.isActive() {
		return
	}
	fn := s.onChange(&s.watch, func() string { return domain.GlobalSettingsKey }, s.Fetch)
	topics := []topic{{domain.TableSettings, domain.GlobalSettingsKey}}
	if bindErr := s.watch.bind(s.registry.Changes(), domain.GlobalSettingsKey, topics, fn); bindErr != nil {
		s.logger.Warn("content: subscribe to settings failed", zap.Error(bindErr))
	}
}

// Update merges patch into the last known settings and upserts the whole object.
func (s *Settings) Update(ctx context.Context, patch domain.SettingsPatch) (err error) {
	ctx, span := startSpan(ctx, "content.Settings.Update", domain.GlobalSettingsKey)
	defer func() { endSpan(span, err) }()

	if !s.resolver.Authenticated(ctx) {
		return ErrUnauthenticated
	}

	s.mu.Lock()
	gen, prev := s.gen, s.settings
	merged := patch.Apply(prev)
	s.settings = merged
	s.mu.Unlock()

	raw, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("content: encode settings: %w", err)
	}
	if err = s.registry.Settings().Upsert(ctx, domain.GlobalSettingsKey, raw); err != nil {
		s.mu.Lock()
		if gen == s.gen {
			s.settings = prev
		}
		s.mu.Unlock()
		s.reconcile(ctx, "settings.upsert", domain.GlobalSettingsKey, s.Fetch, err)
		return &SaveError{Op: "update settings", Err: err}
	}
	s.emit(ctx, Event{Table: domain.TableSettings, Op: domain.ChangeUpdate, Field: domain.GlobalSettingsKey})
	return nil
}

// Watch fetches the settings and keeps them in sync until Close.
func (s *Settings) Watch(ctx context.Context) error {
	s.watch.start(ctx)
	return s.Fetch(ctx)
}

// Close stops change notifications.
func (s *Settings) Close() {
	s.watch.stop()
}
