package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSectionDefsCoverEverySection(t *testing.T) {
	defs := SectionDefs()
	require.Len(t, defs, len(SectionKeys))
	for i, key := range SectionKeys {
		require.Equal(t, key, defs[i].Key)
		field, ok := defs[i].Field(RequiredImage)
		require.True(t, ok, "section %s must have a background image", key)
		require.Equal(t, FieldImage, field.Kind)
	}
}

func TestLookupSection(t *testing.T) {
	def, ok := LookupSection(SectionAbout)
	require.True(t, ok)
	require.True(t, def.Milestones)
	require.False(t, def.Requirements)

	_, ok = LookupSection("footer")
	require.False(t, ok)

	_, ok = def.Field("missing")
	require.False(t, ok)
}
