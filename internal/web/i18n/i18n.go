package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/almarpuit/site/internal/domain"
)

//go:embed locales/*.json
var localeFS embed.FS

// Bundle holds the static site strings shipped with the binary. Remote
// content overrides them; the bundle is the fallback when a value is missing.
type Bundle struct {
	bundle     *goi18n.Bundle
	localizers map[domain.Locale]*goi18n.Localizer
	matcher    language.Matcher
	fallback   domain.Locale
	ids        []string
}

var tags = map[domain.Locale]language.Tag{
	domain.LocaleET: language.Estonian,
	domain.LocaleEN: language.English,
}

// Load parses the embedded locale files. Estonian is the fallback language.
func Load() (*Bundle, error) {
	bundle := goi18n.NewBundle(language.Estonian)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	seen := map[string]struct{}{}
	b := &Bundle{
		bundle:     bundle,
		localizers: map[domain.Locale]*goi18n.Localizer{},
		matcher:    language.NewMatcher([]language.Tag{language.Estonian, language.English}),
		fallback:   domain.LocaleET,
	}
	for _, locale := range domain.Locales {
		file, err := bundle.LoadMessageFileFS(localeFS, "locales/"+string(locale)+".json")
		if err != nil {
			return nil, fmt.Errorf("load locale %s: %w", locale, err)
		}
		for _, msg := range file.Messages {
			if _, ok := seen[msg.ID]; !ok {
				seen[msg.ID] = struct{}{}
				b.ids = append(b.ids, msg.ID)
			}
		}
		b.localizers[locale] = goi18n.NewLocalizer(bundle, tags[locale].String())
	}
	sort.Strings(b.ids)
	return b, nil
}

// Fallback returns the language used when nothing else matches.
func (b *Bundle) Fallback() domain.Locale { return b.fallback }

// Lookup returns the bundled string for key. A key missing in the requested
// locale resolves through the fallback language.
func (b *Bundle) Lookup(locale domain.Locale, key string) (string, bool) {
	localizer, ok := b.localizers[locale]
	if !ok {
		localizer = b.localizers[b.fallback]
	}
	msg, err := localizer.Localize(&goi18n.LocalizeConfig{MessageID: key})
	if err != nil || msg == "" {
		return "", false
	}
	return msg, true
}

// T returns the bundled string for key, or the key itself.
func (b *Bundle) T(locale domain.Locale, key string) string {
	if v, ok := b.Lookup(locale, key); ok {
		return v
	}
	return key
}

// Keys lists every message id across all locale files.
func (b *Bundle) Keys() []string {
	return append([]string(nil), b.ids...)
}

// SectionText returns the bundled bilingual value of a section field, keyed
// "<section>.<field>".
func (b *Bundle) SectionText(section, field string) (domain.Text, bool) {
	key := section + "." + field
	var text domain.Text
	found := false
	for _, locale := range domain.Locales {
		if v, ok := b.exact(locale, key); ok {
			text = text.With(locale, v)
			found = true
		}
	}
	return text, found
}

func (b *Bundle) exact(locale domain.Locale, key string) (string, bool) {
	msg, tag, err := b.localizers[locale].LocalizeWithTag(&goi18n.LocalizeConfig{MessageID: key})
	if err != nil || msg == "" || tag != tags[locale] {
		return "", false
	}
	return msg, true
}

// Match picks the best supported locale for an Accept-Language header.
func (b *Bundle) Match(acceptLanguage string) domain.Locale {
	acceptLanguage = strings.TrimSpace(acceptLanguage)
	if acceptLanguage == "" {
		return b.fallback
	}
	prefs, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(prefs) == 0 {
		return b.fallback
	}
	_, idx, confidence := b.matcher.Match(prefs...)
	if confidence == language.No {
		return b.fallback
	}
	return domain.Locales[idx]
}
