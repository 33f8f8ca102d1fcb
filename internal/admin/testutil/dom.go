package testutil

import (
	"bytes"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

// ParseHTML parses a page or htmx fragment for selector assertions.
func ParseHTML(t testing.TB, body []byte) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("testutil: parse html: %v", err)
	}
	return doc
}

// InputValue returns the value of the named form input, failing the test when
// the page has no such input.
func InputValue(t testing.TB, doc *goquery.Document, name string) string {
	t.Helper()
	value, ok := doc.Find(`input[name="` + name + `"]`).First().Attr("value")
	if !ok {
		t.Fatalf("testutil: no input named %q", name)
	}
	return value
}
