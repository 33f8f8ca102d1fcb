package content

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/almarpuit/site/internal/domain"
	"github.com/almarpuit/site/internal/repositories"
)

// Resolver maps a section key to its persistent section, creating it on
// demand for authenticated callers.
type Resolver struct {
	sections repositories.SectionRepository
	session  SessionInspector
	logger   *zap.Logger
}

// NewResolver constructs a resolver. A nil session inspector means no caller
// is ever authenticated.
func NewResolver(sections repositories.SectionRepository, session SessionInspector, logger *zap.Logger) *Resolver {
	if session == nil {
		session = NoSession{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{sections: sections, session: session, logger: logger}
}

// Resolve returns the section for key. It returns (nil, nil) when the section
// does not exist and the caller has no session. Concurrent creation is
// idempotent: a uniqueness conflict is answered by reading the winner's row.
func (r *Resolver) Resolve(ctx context.Context, key string) (*domain.Section, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("content: section key is required")
	}

	sec, err := r.sections.FindByKey(ctx, key)
	if err == nil {
		return &sec, nil
	}
	if !repositories.IsNotFound(err) {
		return nil, fmt.Errorf("content: lookup section %q: %w", key, err)
	}

	if !r.Authenticated(ctx) {
		return nil, nil
	}
	return r.create(ctx, key)
}

// Authenticated reports whether the call carries a session.
func (r *Resolver) Authenticated(ctx context.Context) bool {
	_, ok := r.session.Principal(ctx)
	return ok
}

// RequireSection is the write-path variant of Resolve: it fails with
// ErrUnauthenticated when there is no session.
func (r *Resolver) RequireSection(ctx context.Context, key string) (domain.Section, error) {
	if !r.Authenticated(ctx) {
		return domain.Section{}, ErrUnauthenticated
	}
	sec, err := r.Resolve(ctx, key)
	if err != nil {
		return domain.Section{}, err
	}
	if sec == nil {
		return domain.Section{}, ErrSectionUnavailable
	}
	return *sec, nil
}

func (r *Resolver) create(ctx context.Context, key string) (*domain.Section, error) {
	sec, err := r.sections.Insert(ctx, key)
	if err == nil {
		r.logger.Info("content: section created", zap.String("section", key), zap.String("section_id", sec.ID))
		return &sec, nil
	}
	if !repositories.IsConflict(err) {
		return nil, fmt.Errorf("content: create section %q: %w", key, err)
	}

	sec, err = r.sections.FindByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("content: lookup section %q after conflict: %w", key, err)
	}
	return &sec, nil
}
