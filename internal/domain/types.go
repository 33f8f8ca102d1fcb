package domain

import (
	"strings"
	"time"
)

// Locale identifies one of the two site languages.
type Locale string

const (
	// LocaleET is Estonian, the default and fallback language.
	LocaleET Locale = "et"
	// LocaleEN is English.
	LocaleEN Locale = "en"
)

// DefaultLocale is used when no preference is expressed.
const DefaultLocale = LocaleET

// Locales lists supported locales in preference order.
var Locales = []Locale{LocaleET, LocaleEN}

// ParseLocale normalises a language tag such as "en-GB" to a supported locale.
func ParseLocale(raw string) (Locale, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "", false
	}
	if idx := strings.IndexAny(raw, "-_"); idx > 0 {
		raw = raw[:idx]
	}
	switch Locale(raw) {
	case LocaleET:
		return LocaleET, true
	case LocaleEN:
		return LocaleEN, true
	}
	return "", false
}

// Toggle returns the other site language.
func (l Locale) Toggle() Locale {
	if l == LocaleEN {
		return LocaleET
	}
	return LocaleEN
}

// Text is a bilingual value. A missing language reads as the empty string.
type Text struct {
	ET string `json:"et" yaml:"et"`
	EN string `json:"en" yaml:"en"`
}

// Get returns the value for the locale.
func (t Text) Get(locale Locale) string {
	if locale == LocaleEN {
		return t.EN
	}
	return t.ET
}

// With returns a copy with the locale's value replaced.
func (t Text) With(locale Locale, value string) Text {
	if locale == LocaleEN {
		t.EN = value
	} else {
		t.ET = value
	}
	return t
}

// Section is a named content area of the site. Key is unique.
type Section struct {
	ID        string
	Key       string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Well-known section keys.
const (
	SectionHero         = "hero"
	SectionAbout        = "about"
	SectionProducts     = "products"
	SectionWoodPurchase = "woodPurchase"
	SectionContact      = "contact"
)

// SectionKeys lists the site sections in page order.
var SectionKeys = []string{SectionHero, SectionAbout, SectionProducts, SectionWoodPurchase, SectionContact}

// Translation is a bilingual text field of a section, unique per (SectionID, Key).
type Translation struct {
	ID        string
	SectionID string
	Key       string
	ET        string
	EN        string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Text returns the bilingual value of the row.
func (t Translation) Text() Text {
	return Text{ET: t.ET, EN: t.EN}
}

// Image is an image field of a section, unique per (SectionID, Key).
type Image struct {
	ID        string
	SectionID string
	Key       string
	URL       string
	AltText   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MilestoneCard is an ordered timeline entry shown in the about section.
type MilestoneCard struct {
	ID            string
	SectionID     string
	Label         string
	DescriptionET string
	DescriptionEN string
	SortOrder     int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Description returns the bilingual description.
func (m MilestoneCard) Description() Text {
	return Text{ET: m.DescriptionET, EN: m.DescriptionEN}
}

// MilestoneDraft carries the editable fields of a new card.
type MilestoneDraft struct {
	Label         string
	DescriptionET string
	DescriptionEN string
	SortOrder     int
}

// MilestonePatch carries partial card updates; nil fields are left unchanged.
type MilestonePatch struct {
	Label         *string
	DescriptionET *string
	DescriptionEN *string
	SortOrder     *int
}

// Apply returns a copy of the card with the patch applied.
func (p MilestonePatch) Apply(card MilestoneCard) MilestoneCard {
	if p.Label != nil {
		card.Label = *p.Label
	}
	if p.DescriptionET != nil {
		card.DescriptionET = *p.DescriptionET
	}
	if p.DescriptionEN != nil {
		card.DescriptionEN = *p.DescriptionEN
	}
	if p.SortOrder != nil {
		card.SortOrder = *p.SortOrder
	}
	return card
}

// ProductRequirement is the single requirement list of a section.
type ProductRequirement struct {
	ID        string
	SectionID string
	TitleET   string
	TitleEN   string
	Items     []Text
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Title returns the bilingual title.
func (r ProductRequirement) Title() Text {
	return Text{ET: r.TitleET, EN: r.TitleEN}
}

// Clone returns a deep copy.
func (r ProductRequirement) Clone() ProductRequirement {
	r.Items = append([]Text(nil), r.Items...)
	return r
}

// RequirementPatch carries partial requirement updates; nil fields are left unchanged.
type RequirementPatch struct {
	TitleET *string
	TitleEN *string
	Items   []Text
}

// Apply returns a copy of the requirement with the patch applied.
func (p RequirementPatch) Apply(req ProductRequirement) ProductRequirement {
	req = req.Clone()
	if p.TitleET != nil {
		req.TitleET = *p.TitleET
	}
	if p.TitleEN != nil {
		req.TitleEN = *p.TitleEN
	}
	if p.Items != nil {
		req.Items = append([]Text(nil), p.Items...)
	}
	return req
}

// GlobalSettingsKey is the fixed key of the settings singleton row.
const GlobalSettingsKey = "global_settings"

// DefaultCompanyName is shown when no company name has been configured.
const DefaultCompanyName = "OÜ Almar Puit"

// GlobalSettings holds site-wide contact details and SEO metadata.
type GlobalSettings struct {
	CompanyName     string `json:"company_name" yaml:"company_name"`
	IndustryAddress string `json:"industry_address" yaml:"industry_address"`
	LegalAddress    string `json:"legal_address" yaml:"legal_address"`
	ContactPhone    string `json:"contact_phone" yaml:"contact_phone"`
	ContactEmail    string `json:"contact_email" yaml:"contact_email"`
	FormTargetEmail string `json:"form_target_email" yaml:"form_target_email"`
	MetaTitle       Text   `json:"meta_title" yaml:"meta_title"`
	MetaDescription Text   `json:"meta_description" yaml:"meta_description"`
}

// DisplayCompanyName returns the configured name or the default.
func (s GlobalSettings) DisplayCompanyName() string {
	if name := strings.TrimSpace(s.CompanyName); name != "" {
		return name
	}
	return DefaultCompanyName
}

// ContactTarget returns the address that receives contact form submissions.
func (s GlobalSettings) ContactTarget() string {
	if target := strings.TrimSpace(s.FormTargetEmail); target != "" {
		return target
	}
	return strings.TrimSpace(s.ContactEmail)
}

// SettingsPatch carries partial settings updates; nil fields are left unchanged.
type SettingsPatch struct {
	CompanyName     *string
	IndustryAddress *string
	LegalAddress    *string
	ContactPhone    *string
	ContactEmail    *string
	FormTargetEmail *string
	MetaTitle       *Text
	MetaDescription *Text
}

// Apply merges the patch into the settings.
func (p SettingsPatch) Apply(s GlobalSettings) GlobalSettings {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&s.CompanyName, p.CompanyName)
	set(&s.IndustryAddress, p.IndustryAddress)
	set(&s.LegalAddress, p.LegalAddress)
	set(&s.ContactPhone, p.ContactPhone)
	set(&s.ContactEmail, p.ContactEmail)
	set(&s.FormTargetEmail, p.FormTargetEmail)
	if p.MetaTitle != nil {
		s.MetaTitle = *p.MetaTitle
	}
	if p.MetaDescription != nil {
		s.MetaDescription = *p.MetaDescription
	}
	return s
}

// Table names a remote collection that emits change notifications.
type Table string

const (
	TableSections     Table = "sections"
	TableTranslations Table = "translations"
	TableImages       Table = "images"
	TableMilestones   Table = "milestone_cards"
	TableRequirements Table = "product_requirements"
	TableSettings     Table = "settings"
)

// ChangeOp describes the kind of row change.
type ChangeOp string

const (
	ChangeInsert ChangeOp = "INSERT"
	ChangeUpdate ChangeOp = "UPDATE"
	ChangeDelete ChangeOp = "DELETE"
)

// Change is a row-level change notification. SectionID is empty for tables
// not scoped to a section; Key carries the settings key for the settings table.
type Change struct {
	Table     Table     `json:"table"`
	Op        ChangeOp  `json:"op"`
	SectionID string    `json:"section_id,omitempty"`
	Key       string    `json:"key,omitempty"`
	At        time.Time `json:"at"`
}

// SectionSummary aggregates a section for the admin dashboard.
type SectionSummary struct {
	Section          Section
	TranslationCount int
	ImageCount       int
}

// WarningKind classifies a content warning.
type WarningKind string

const (
	WarningMissingTranslation WarningKind = "missing_translation"
	WarningMissingImage       WarningKind = "missing_image"
)

// ContentWarning flags incomplete content on the dashboard.
type ContentWarning struct {
	Kind       WarningKind
	SectionKey string
	Field      string
	Locale     Locale
}
