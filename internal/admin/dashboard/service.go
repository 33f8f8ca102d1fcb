package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/almarpuit/site/internal/domain"
	"github.com/almarpuit/site/internal/repositories"
)

const (
	// RecentLimit caps the recent activity feed.
	RecentLimit = 5
	// WarningLimit caps the content warnings list.
	WarningLimit = 10
)

// ErrNotConfigured indicates the dashboard service dependency has not been provided.
var ErrNotConfigured = errors.New("dashboard service not configured")

// Service exposes data retrieval for the dashboard.
type Service interface {
	// RecentActivity returns the most recently updated sections.
	RecentActivity(ctx context.Context, limit int) ([]domain.SectionSummary, error)
	// Warnings returns incomplete content: missing translations and missing background images.
	Warnings(ctx context.Context, limit int) ([]domain.ContentWarning, error)
}

// RegistryService computes the dashboard from the repositories.
type RegistryService struct {
	registry repositories.Registry
}

// NewService constructs the dashboard service.
func NewService(registry repositories.Registry) (*RegistryService, error) {
	if registry == nil {
		return nil, ErrNotConfigured
	}
	return &RegistryService{registry: registry}, nil
}

// RecentActivity implements Service.
func (s *RegistryService) RecentActivity(ctx context.Context, limit int) ([]domain.SectionSummary, error) {
	if limit <= 0 {
		limit = RecentLimit
	}
	sections, err := s.registry.Sections().RecentlyUpdated(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("dashboard: recent sections: %w", err)
	}
	translations, images, err := s.rows(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.SectionSummary, 0, len(sections))
	for _, sec := range sections {
		summaries = append(summaries, domain.SectionSummary{
			Section:          sec,
			TranslationCount: len(translations[sec.ID]),
			ImageCount:       len(images[sec.ID]),
		})
	}
	return summaries, nil
}

// Warnings implements Service.
func (s *RegistryService) Warnings(ctx context.Context, limit int) ([]domain.ContentWarning, error) {
	if limit <= 0 {
		limit = WarningLimit
	}
	sections, err := s.registry.Sections().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("dashboard: list sections: %w", err)
	}
	translations, images, err := s.rows(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(sections, func(i, j int) bool { return sectionRank(sections[i].Key) < sectionRank(sections[j].Key) })

	var warnings []domain.ContentWarning
	for _, sec := range sections {
		def, _ := domain.LookupSection(sec.Key)
		rows := translations[sec.ID]
		sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
		for _, tr := range rows {
			if strings.TrimSpace(tr.ET) == "" {
				warnings = append(warnings, missingTranslation(sec.Key, tr.Key, domain.LocaleET))
			}
			field, known := def.Field(tr.Key)
			if known && field.Monolingual {
				continue
			}
			if strings.TrimSpace(tr.EN) == "" {
				warnings = append(warnings, missingTranslation(sec.Key, tr.Key, domain.LocaleEN))
			}
		}
		if !hasImage(images[sec.ID], domain.RequiredImage) {
			warnings = append(warnings, domain.ContentWarning{
				Kind:       domain.WarningMissingImage,
				SectionKey: sec.Key,
				Field:      domain.RequiredImage,
			})
		}
		if len(warnings) >= limit {
			break
		}
	}
	if len(warnings) > limit {
		warnings = warnings[:limit]
	}
	return warnings, nil
}

func (s *RegistryService) rows(ctx context.Context) (map[string][]domain.Translation, map[string][]domain.Image, error) {
	allTranslations, err := s.registry.Translations().ListAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("dashboard: list translations: %w", err)
	}
	allImages, err := s.registry.Images().ListAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("dashboard: list images: %w", err)
	}
	translations := make(map[string][]domain.Translation)
	for _, tr := range allTranslations {
		translations[tr.SectionID] = append(translations[tr.SectionID], tr)
	}
	images := make(map[string][]domain.Image)
	for _, img := range allImages {
		images[img.SectionID] = append(images[img.SectionID], img)
	}
	return translations, images, nil
}

func missingTranslation(section, field string, locale domain.Locale) domain.ContentWarning {
	return domain.ContentWarning{
		Kind:       domain.WarningMissingTranslation,
		SectionKey: section,
		Field:      field,
		Locale:     locale,
	}
}

func hasImage(images []domain.Image, key string) bool {
	for _, img := range images {
		if img.Key == key && strings.TrimSpace(img.URL) != "" {
			return true
		}
	}
	return false
}

func sectionRank(key string) int {
	for i, k := range domain.SectionKeys {
		if k == key {
			return i
		}
	}
	return len(domain.SectionKeys)
}
