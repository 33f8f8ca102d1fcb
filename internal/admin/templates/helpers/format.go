package helpers

import (
	"fmt"
	"time"

	"github.com/almarpuit/site/internal/domain"
)

var tallinn = loadLocation("Europe/Tallinn")

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Date formats the timestamp in Estonian local time.
func Date(ts time.Time) string {
	if ts.IsZero() {
		return "–"
	}
	return ts.In(tallinn).Format("02.01.2006 15:04")
}

// Relative returns a coarse Estonian "time ago" string.
func Relative(ts, now time.Time) string {
	diff := now.Sub(ts)
	switch {
	case diff < time.Minute:
		return "just praegu"
	case diff < time.Hour:
		return fmt.Sprintf("%d min tagasi", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d h tagasi", int(diff.Hours()))
	default:
		return Date(ts)
	}
}

// LocaleLabel names a locale in Estonian.
func LocaleLabel(l domain.Locale) string {
	if l == domain.LocaleEN {
		return "Inglise keeles"
	}
	return "Eesti keeles"
}

// SectionTitle returns the editor title of a section key.
func SectionTitle(key string) string {
	if def, ok := domain.LookupSection(key); ok {
		return def.Title
	}
	return key
}

// NavClass returns sidebar link classes.
func NavClass(active bool) string {
	if active {
		return "flex items-center gap-2 rounded-md bg-forest-700 px-3 py-2 text-sm font-medium text-white shadow-sm"
	}
	return "flex items-center gap-2 rounded-md px-3 py-2 text-sm font-medium text-forest-700 hover:bg-forest-50"
}

// Join builds an admin path below base.
func Join(base string, parts ...string) string {
	out := base
	if out == "/" {
		out = ""
	}
	for _, p := range parts {
		out += "/" + p
	}
	if out == "" {
		return "/"
	}
	return out
}
