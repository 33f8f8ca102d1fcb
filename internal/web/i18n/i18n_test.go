package i18n

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/almarpuit/site/internal/domain"
)

func TestBundleLookup(t *testing.T) {
	b, err := Load()
	require.NoError(t, err)

	require.Equal(t, "Meist", b.T(domain.LocaleET, "about.title"))
	require.Equal(t, "About us", b.T(domain.LocaleEN, "about.title"))

	// Addresses only exist in Estonian; English falls back.
	v, ok := b.Lookup(domain.LocaleEN, "contact.contact1Name")
	require.True(t, ok)
	require.Equal(t, "Margus Alver", v)

	require.Equal(t, "missing.key", b.T(domain.LocaleEN, "missing.key"))
	require.Contains(t, b.Keys(), "hero.title")
}

func TestSectionTextSkipsFallback(t *testing.T) {
	b, err := Load()
	require.NoError(t, err)

	text, ok := b.SectionText("hero", "cta")
	require.True(t, ok)
	require.Equal(t, domain.Text{ET: "Võta ühendust", EN: "Get in touch"}, text)

	text, ok = b.SectionText("contact", "contact1Phone")
	require.True(t, ok)
	require.Equal(t, "+372 51 07 463", text.ET)
	require.Empty(t, text.EN)

	_, ok = b.SectionText("hero", "background")
	require.False(t, ok)
}

func TestMatchAcceptLanguage(t *testing.T) {
	b, err := Load()
	require.NoError(t, err)

	cases := map[string]domain.Locale{
		"":                        domain.LocaleET,
		"en-GB,en;q=0.9":          domain.LocaleEN,
		"fi-FI, en;q=0.5":         domain.LocaleEN,
		"et-EE,et;q=0.9,en;q=0.8": domain.LocaleET,
		"ja":                      domain.LocaleET,
	}
	for header, want := range cases {
		require.Equal(t, want, b.Match(header), "header %q", header)
	}
}
