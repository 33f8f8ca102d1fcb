package repositories

import (
	"context"
	"errors"

	"github.com/almarpuit/site/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Sections() SectionRepository
	Translations() TranslationRepository
	Images() ImageRepository
	Milestones() MilestoneRepository
	Requirements() RequirementRepository
	Settings() SettingsRepository
	Changes() ChangeFeed
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// IsNotFound reports whether err is a repository error describing a missing row.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsConflict reports whether err is a repository error describing a uniqueness conflict.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

// IsUnavailable reports whether err is a transient backend failure.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}

// SectionRepository persists sections. Key is unique.
type SectionRepository interface {
	// FindByKey returns a not-found RepositoryError when no section has the key.
	FindByKey(ctx context.Context, key string) (domain.Section, error)
	// Insert returns a conflict RepositoryError when the key already exists.
	Insert(ctx context.Context, key string) (domain.Section, error)
	// Touch bumps UpdatedAt after a change to the section's content.
	Touch(ctx context.Context, sectionID string) error
	List(ctx context.Context) ([]domain.Section, error)
	// RecentlyUpdated returns up to limit sections ordered by UpdatedAt descending.
	RecentlyUpdated(ctx context.Context, limit int) ([]domain.Section, error)
}

// TranslationRepository persists bilingual text fields.
type TranslationRepository interface {
	ListBySection(ctx context.Context, sectionID string) ([]domain.Translation, error)
	// UpsertValue writes a single language column keyed on (section_id, key),
	// leaving the other language untouched on update.
	UpsertValue(ctx context.Context, sectionID, key string, locale domain.Locale, value string) error
	// Upsert writes both languages keyed on (section_id, key).
	Upsert(ctx context.Context, sectionID, key string, text domain.Text) error
	ListAll(ctx context.Context) ([]domain.Translation, error)
}

// ImageRepository persists image fields.
type ImageRepository interface {
	ListBySection(ctx context.Context, sectionID string) ([]domain.Image, error)
	// Upsert writes url and alt text keyed on (section_id, key).
	Upsert(ctx context.Context, sectionID, key, url string, altText *string) error
	ListAll(ctx context.Context) ([]domain.Image, error)
}

// MilestoneRepository persists milestone cards.
type MilestoneRepository interface {
	// ListBySection returns cards ordered by SortOrder ascending.
	ListBySection(ctx context.Context, sectionID string) ([]domain.MilestoneCard, error)
	Insert(ctx context.Context, sectionID string, draft domain.MilestoneDraft) (domain.MilestoneCard, error)
	Update(ctx context.Context, id string, patch domain.MilestonePatch) error
	Delete(ctx context.Context, id string) error
}

// RequirementRepository persists at most one product requirement per section.
type RequirementRepository interface {
	// FindBySection returns a not-found RepositoryError when the section has no record.
	FindBySection(ctx context.Context, sectionID string) (domain.ProductRequirement, error)
	Insert(ctx context.Context, req domain.ProductRequirement) (domain.ProductRequirement, error)
	Update(ctx context.Context, id string, patch domain.RequirementPatch) error
}

// SettingsRepository persists JSON settings rows keyed by name.
type SettingsRepository interface {
	// Get returns a not-found RepositoryError when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Upsert replaces the whole value stored under key.
	Upsert(ctx context.Context, key string, value []byte) error
}

// ChangeFeed delivers row-level change notifications filtered by table and
// section. An empty sectionID receives every change of the table; for the
// settings table the filter matches the settings key instead.
type ChangeFeed interface {
	Subscribe(ctx context.Context, table domain.Table, sectionID string, fn func(domain.Change)) (unsubscribe func(), err error)
}

// HealthRepository reports backend connectivity.
type HealthRepository interface {
	Ping(ctx context.Context) error
}
