package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLocale(t *testing.T) {
	cases := map[string]struct {
		want Locale
		ok   bool
	}{
		"et":    {LocaleET, true},
		"EN":    {LocaleEN, true},
		"en-GB": {LocaleEN, true},
		"et_EE": {LocaleET, true},
		"fi":    {"", false},
		"":      {"", false},
	}
	for raw, tc := range cases {
		got, ok := ParseLocale(raw)
		require.Equal(t, tc.ok, ok, raw)
		require.Equal(t, tc.want, got, raw)
	}
	require.Equal(t, LocaleEN, LocaleET.Toggle())
	require.Equal(t, LocaleET, LocaleEN.Toggle())
}

func TestTextWithLeavesOtherLanguage(t *testing.T) {
	text := Text{ET: "Tere", EN: "Hello"}
	updated := text.With(LocaleEN, "Hi")
	require.Equal(t, Text{ET: "Tere", EN: "Hi"}, updated)
	require.Equal(t, "Hello", text.EN)
}

func TestSettingsPatchMergesOnlyProvidedFields(t *testing.T) {
	current := GlobalSettings{CompanyName: "A", ContactEmail: "a@example.com"}
	name := "B"
	merged := SettingsPatch{CompanyName: &name}.Apply(current)
	require.Equal(t, "B", merged.CompanyName)
	require.Equal(t, "a@example.com", merged.ContactEmail)
}

func TestGlobalSettingsFallbacks(t *testing.T) {
	var s GlobalSettings
	require.Equal(t, DefaultCompanyName, s.DisplayCompanyName())
	s.ContactEmail = "info@almarpuit.ee"
	require.Equal(t, "info@almarpuit.ee", s.ContactTarget())
	s.FormTargetEmail = "forms@almarpuit.ee"
	require.Equal(t, "forms@almarpuit.ee", s.ContactTarget())
}

func TestRequirementPatchCopiesItems(t *testing.T) {
	req := ProductRequirement{Items: []Text{{ET: "a"}}}
	items := []Text{{ET: "b"}, {ET: "c"}}
	out := RequirementPatch{Items: items}.Apply(req)
	items[0].ET = "mutated"
	require.Equal(t, "b", out.Items[0].ET)
	require.Equal(t, "a", req.Items[0].ET)
}
