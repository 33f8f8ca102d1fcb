package domain

// FieldKind distinguishes text fields from image fields.
type FieldKind string

const (
	FieldText     FieldKind = "text"
	FieldTextarea FieldKind = "textarea"
	FieldImage    FieldKind = "image"
)

// FieldDef describes one editable field of a section.
type FieldDef struct {
	Key   string
	Label string
	Kind  FieldKind
	// Monolingual fields (phone numbers, emails) only carry an Estonian value.
	Monolingual bool
}

// SectionDef describes a section editor.
type SectionDef struct {
	Key          string
	Title        string
	Fields       []FieldDef
	Milestones   bool
	Requirements bool
}

// RequiredImage is the image every section is expected to have.
const RequiredImage = "background"

var sectionDefs = []SectionDef{
	{
		Key:   SectionHero,
		Title: "Avaleht",
		Fields: []FieldDef{
			{Key: "title", Label: "Pealkiri", Kind: FieldTextarea},
			{Key: "subtitle", Label: "Alampealkiri", Kind: FieldTextarea},
			{Key: "cta", Label: "Tegevusnupp", Kind: FieldText},
			{Key: "background", Label: "Taustapilt", Kind: FieldImage},
		},
	},
	{
		Key:   SectionAbout,
		Title: "Meist",
		Fields: []FieldDef{
			{Key: "title", Label: "Pealkiri", Kind: FieldText},
			{Key: "description", Label: "Kirjeldus", Kind: FieldTextarea},
			{Key: "history", Label: "Ettevõtte ajalugu", Kind: FieldTextarea},
			{Key: "background", Label: "Taustapilt", Kind: FieldImage},
		},
		Milestones: true,
	},
	{
		Key:   SectionProducts,
		Title: "Tooted",
		Fields: []FieldDef{
			{Key: "title", Label: "Pealkiri", Kind: FieldText},
			{Key: "fireplaceWoodTitle", Label: "Kaminapuud: pealkiri", Kind: FieldText},
			{Key: "fireplaceWoodDescription", Label: "Kaminapuud: kirjeldus", Kind: FieldTextarea},
			{Key: "fireplaceWood", Label: "Kaminapuud: pilt", Kind: FieldImage},
			{Key: "heatingWoodTitle", Label: "Küttepuud: pealkiri", Kind: FieldText},
			{Key: "heatingWoodDescription", Label: "Küttepuud: kirjeldus", Kind: FieldTextarea},
			{Key: "heatingWood", Label: "Küttepuud: pilt", Kind: FieldImage},
			{Key: "background", Label: "Taustapilt", Kind: FieldImage},
		},
	},
	{
		Key:   SectionWoodPurchase,
		Title: "Puidu kokkuost",
		Fields: []FieldDef{
			{Key: "title", Label: "Pealkiri", Kind: FieldText},
			{Key: "content", Label: "Põhisisu", Kind: FieldTextarea},
			{Key: "cta", Label: "Tegevusnupu tekst", Kind: FieldText},
			{Key: "background", Label: "Taustapilt", Kind: FieldImage},
		},
		Requirements: true,
	},
	{
		Key:   SectionContact,
		Title: "Kontakt",
		Fields: []FieldDef{
			{Key: "title", Label: "Pealkiri", Kind: FieldText},
			{Key: "businessAddress", Label: "Tööstuse aadress", Kind: FieldText},
			{Key: "legalAddress", Label: "Juriidiline aadress", Kind: FieldText},
			{Key: "contact1Name", Label: "Kontaktisik 1: nimi", Kind: FieldText, Monolingual: true},
			{Key: "contact1Phone", Label: "Kontaktisik 1: telefon", Kind: FieldText, Monolingual: true},
			{Key: "contact1Email", Label: "Kontaktisik 1: e-post", Kind: FieldText, Monolingual: true},
			{Key: "contact2Name", Label: "Kontaktisik 2: nimi", Kind: FieldText, Monolingual: true},
			{Key: "contact2Phone", Label: "Kontaktisik 2: telefon", Kind: FieldText, Monolingual: true},
			{Key: "contact2Email", Label: "Kontaktisik 2: e-post", Kind: FieldText, Monolingual: true},
			{Key: "formLabelName", Label: "Vorm: nimi", Kind: FieldText},
			{Key: "formLabelEmail", Label: "Vorm: e-post", Kind: FieldText},
			{Key: "formLabelMessage", Label: "Vorm: sõnum", Kind: FieldText},
			{Key: "formLabelSubmit", Label: "Vorm: saatmisnupp", Kind: FieldText},
			{Key: "background", Label: "Taustapilt", Kind: FieldImage},
		},
	},
}

// SectionDefs returns the editor definitions in page order.
func SectionDefs() []SectionDef {
	out := make([]SectionDef, len(sectionDefs))
	copy(out, sectionDefs)
	return out
}

// LookupSection returns the definition for key.
func LookupSection(key string) (SectionDef, bool) {
	for _, def := range sectionDefs {
		if def.Key == key {
			return def, true
		}
	}
	return SectionDef{}, false
}

// Field returns the named field definition.
func (d SectionDef) Field(key string) (FieldDef, bool) {
	for _, f := range d.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldDef{}, false
}
