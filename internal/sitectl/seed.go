package sitectl

import (
	"context"
	"fmt"

	"github.com/almarpuit/site/internal/domain"
	"github.com/almarpuit/site/internal/repositories"
)

// TextSource yields the bundled bilingual value of a section field.
type TextSource interface {
	SectionText(section, field string) (domain.Text, bool)
}

// SeedReport counts what Seed changed.
type SeedReport struct {
	SectionsCreated     int
	TranslationsWritten int
	TranslationsSkipped int
}

// Seed makes sure every known section exists and copies bundled strings into
// text fields that have no stored translation yet.
func Seed(ctx context.Context, registry repositories.Registry, source TextSource) (SeedReport, error) {
	var report SeedReport
	for _, def := range domain.SectionDefs() {
		section, created, err := ensureSection(ctx, registry, def.Key)
		if err != nil {
			return report, err
		}
		if created {
			report.SectionsCreated++
		}

		existing, err := registry.Translations().ListBySection(ctx, section.ID)
		if err != nil {
			return report, fmt.Errorf("sitectl: list translations of %s: %w", def.Key, err)
		}
		have := make(map[string]struct{}, len(existing))
		for _, tr := range existing {
			have[tr.Key] = struct{}{}
		}

		for _, field := range def.Fields {
			if field.Kind == domain.FieldImage {
				continue
			}
			if _, ok := have[field.Key]; ok {
				report.TranslationsSkipped++
				continue
			}
			text, ok := source.SectionText(def.Key, field.Key)
			if !ok {
				continue
			}
			if field.Monolingual {
				text.EN = ""
			}
			if err := registry.Translations().Upsert(ctx, section.ID, field.Key, text); err != nil {
				return report, fmt.Errorf("sitectl: seed %s.%s: %w", def.Key, field.Key, err)
			}
			report.TranslationsWritten++
		}
	}
	return report, nil
}

func ensureSection(ctx context.Context, registry repositories.Registry, key string) (domain.Section, bool, error) {
	section, err := registry.Sections().FindByKey(ctx, key)
	if err == nil {
		return section, false, nil
	}
	if !repositories.IsNotFound(err) {
		return domain.Section{}, false, fmt.Errorf("sitectl: find section %s: %w", key, err)
	}
	section, err = registry.Sections().Insert(ctx, key)
	if err != nil {
		return domain.Section{}, false, fmt.Errorf("sitectl: create section %s: %w", key, err)
	}
	return section, true, nil
}
