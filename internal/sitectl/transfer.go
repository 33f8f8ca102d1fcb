package sitectl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/almarpuit/site/internal/domain"
	"github.com/almarpuit/site/internal/repositories"
)

// DocumentVersion is the export format version written by Export.
const DocumentVersion = 1

// Document is the YAML export of the whole content store.
type Document struct {
	Version    int                    `yaml:"version"`
	ExportedAt time.Time              `yaml:"exported_at,omitempty"`
	Sections   []SectionDocument      `yaml:"sections"`
	Settings   *domain.GlobalSettings `yaml:"settings,omitempty"`
}

// SectionDocument holds the content of one section.
type SectionDocument struct {
	Key          string                   `yaml:"key"`
	Translations map[string]domain.Text   `yaml:"translations,omitempty"`
	Images       map[string]ImageDocument `yaml:"images,omitempty"`
	Milestones   []MilestoneDocument      `yaml:"milestones,omitempty"`
	Requirement  *RequirementDocument     `yaml:"requirement,omitempty"`
}

type ImageDocument struct {
	URL     string  `yaml:"url"`
	AltText *string `yaml:"alt_text,omitempty"`
}

type MilestoneDocument struct {
	Label       string      `yaml:"label"`
	Description domain.Text `yaml:"description"`
	SortOrder   int         `yaml:"sort_order"`
}

type RequirementDocument struct {
	Title domain.Text   `yaml:"title"`
	Items []domain.Text `yaml:"items"`
}

// Encode writes the document as YAML.
func (d Document) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("sitectl: encode export: %w", err)
	}
	return enc.Close()
}

// Decode reads and validates a YAML export.
func Decode(r io.Reader) (Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Document{}, errors.New("sitectl: empty export document")
		}
		return Document{}, fmt.Errorf("sitectl: decode export: %w", err)
	}
	if doc.Version != DocumentVersion {
		return Document{}, fmt.Errorf("sitectl: unsupported export version %d", doc.Version)
	}
	seen := make(map[string]struct{}, len(doc.Sections))
	for i, sec := range doc.Sections {
		key := strings.TrimSpace(sec.Key)
		if key == "" {
			return Document{}, fmt.Errorf("sitectl: section %d has no key", i)
		}
		if _, dup := seen[key]; dup {
			return Document{}, fmt.Errorf("sitectl: section %q listed twice", key)
		}
		seen[key] = struct{}{}
		doc.Sections[i].Key = key
	}
	return doc, nil
}

// Export reads every section with its fields, lists and the global settings.
func Export(ctx context.Context, registry repositories.Registry) (Document, error) {
	doc := Document{Version: DocumentVersion, ExportedAt: time.Now().UTC()}

	sections, err := registry.Sections().List(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("sitectl: list sections: %w", err)
	}
	for _, section := range sections {
		sec, err := exportSection(ctx, registry, section)
		if err != nil {
			return Document{}, err
		}
		doc.Sections = append(doc.Sections, sec)
	}

	raw, err := registry.Settings().Get(ctx, domain.GlobalSettingsKey)
	switch {
	case err == nil:
		var settings domain.GlobalSettings
		if err := json.Unmarshal(raw, &settings); err != nil {
			return Document{}, fmt.Errorf("sitectl: decode settings: %w", err)
		}
		doc.Settings = &settings
	case repositories.IsNotFound(err):
	default:
		return Document{}, fmt.Errorf("sitectl: read settings: %w", err)
	}
	return doc, nil
}

func exportSection(ctx context.Context, registry repositories.Registry, section domain.Section) (SectionDocument, error) {
	sec := SectionDocument{Key: section.Key}

	translations, err := registry.Translations().ListBySection(ctx, section.ID)
	if err != nil {
		return sec, fmt.Errorf("sitectl: list translations of %s: %w", section.Key, err)
	}
	if len(translations) > 0 {
		sec.Translations = make(map[string]domain.Text, len(translations))
		for _, tr := range translations {
			sec.Translations[tr.Key] = tr.Text()
		}
	}

	images, err := registry.Images().ListBySection(ctx, section.ID)
	if err != nil {
		return sec, fmt.Errorf("sitectl: list images of %s: %w", section.Key, err)
	}
	if len(images) > 0 {
		sec.Images = make(map[string]ImageDocument, len(images))
		for _, img := range images {
			sec.Images[img.Key] = ImageDocument{URL: img.URL, AltText: img.AltText}
		}
	}

	cards, err := registry.Milestones().ListBySection(ctx, section.ID)
	if err != nil {
		return sec, fmt.Errorf("sitectl: list milestones of %s: %w", section.Key, err)
	}
	for _, card := range cards {
		sec.Milestones = append(sec.Milestones, MilestoneDocument{
			Label:       card.Label,
			Description: card.Description(),
			SortOrder:   card.SortOrder,
		})
	}

	req, err := registry.Requirements().FindBySection(ctx, section.ID)
	switch {
	case err == nil:
		sec.Requirement = &RequirementDocument{Title: req.Title(), Items: req.Items}
	case repositories.IsNotFound(err):
	default:
		return sec, fmt.Errorf("sitectl: read requirement of %s: %w", section.Key, err)
	}
	return sec, nil
}

// Import writes a document into the store. Fields present in the document
// overwrite stored values; a section's milestone list is replaced when the
// document carries one.
func Import(ctx context.Context, registry repositories.Registry, doc Document) error {
	for _, sec := range doc.Sections {
		if err := importSection(ctx, registry, sec); err != nil {
			return err
		}
	}
	if doc.Settings != nil {
		raw, err := json.Marshal(doc.Settings)
		if err != nil {
			return fmt.Errorf("sitectl: encode settings: %w", err)
		}
		if err := registry.Settings().Upsert(ctx, domain.GlobalSettingsKey, raw); err != nil {
			return fmt.Errorf("sitectl: write settings: %w", err)
		}
	}
	return nil
}

func importSection(ctx context.Context, registry repositories.Registry, sec SectionDocument) error {
	section, _, err := ensureSection(ctx, registry, sec.Key)
	if err != nil {
		return err
	}
	for key, text := range sec.Translations {
		if err := registry.Translations().Upsert(ctx, section.ID, key, text); err != nil {
			return fmt.Errorf("sitectl: import %s.%s: %w", sec.Key, key, err)
		}
	}
	for key, img := range sec.Images {
		if err := registry.Images().Upsert(ctx, section.ID, key, img.URL, img.AltText); err != nil {
			return fmt.Errorf("sitectl: import image %s.%s: %w", sec.Key, key, err)
		}
	}

	if sec.Milestones != nil {
		existing, err := registry.Milestones().ListBySection(ctx, section.ID)
		if err != nil {
			return fmt.Errorf("sitectl: list milestones of %s: %w", sec.Key, err)
		}
		for _, card := range existing {
			if err := registry.Milestones().Delete(ctx, card.ID); err != nil {
				return fmt.Errorf("sitectl: delete milestone %s: %w", card.ID, err)
			}
		}
		for _, m := range sec.Milestones {
			_, err := registry.Milestones().Insert(ctx, section.ID, domain.MilestoneDraft{
				Label:         m.Label,
				DescriptionET: m.Description.ET,
				DescriptionEN: m.Description.EN,
				SortOrder:     m.SortOrder,
			})
			if err != nil {
				return fmt.Errorf("sitectl: import milestone of %s: %w", sec.Key, err)
			}
		}
	}

	if sec.Requirement != nil {
		if err := importRequirement(ctx, registry, section.ID, *sec.Requirement); err != nil {
			return fmt.Errorf("sitectl: import requirement of %s: %w", sec.Key, err)
		}
	}
	return nil
}

func importRequirement(ctx context.Context, registry repositories.Registry, sectionID string, doc RequirementDocument) error {
	items := append([]domain.Text{}, doc.Items...)
	current, err := registry.Requirements().FindBySection(ctx, sectionID)
	if repositories.IsNotFound(err) {
		_, err = registry.Requirements().Insert(ctx, domain.ProductRequirement{
			SectionID: sectionID,
			TitleET:   doc.Title.ET,
			TitleEN:   doc.Title.EN,
			Items:     items,
		})
		return err
	}
	if err != nil {
		return err
	}
	return registry.Requirements().Update(ctx, current.ID, domain.RequirementPatch{
		TitleET: &doc.Title.ET,
		TitleEN: &doc.Title.EN,
		Items:   items,
	})
}
