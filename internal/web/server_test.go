package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/almarpuit/site/internal/content"
	"github.com/almarpuit/site/internal/domain"
	"github.com/almarpuit/site/internal/platform/mail"
	"github.com/almarpuit/site/internal/repositories/memory"
	"github.com/almarpuit/site/internal/web"
	"github.com/almarpuit/site/internal/web/handlers"
	"github.com/almarpuit/site/internal/web/i18n"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) Sent() []mail.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mail.Message(nil), s.sent...)
}

type site struct {
	handler http.Handler
	store   *memory.Store
	mail    *recordingSender
}

func newSite(t *testing.T, seed func(ctx context.Context, store *memory.Store)) *site {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	if seed != nil {
		seed(ctx, store)
	}

	hub, err := content.NewHub(content.Deps{Registry: store, Logger: zap.NewNop()})
	require.NoError(t, err)
	t.Cleanup(hub.Close)

	bundle, err := i18n.Load()
	require.NoError(t, err)

	sender := &recordingSender{}
	h, err := handlers.New(handlers.Dependencies{
		Content:   hub,
		Bundle:    bundle,
		Mail:      sender,
		Health:    store.Health(),
		PublicURL: "https://almarpuit.ee",
		Now:       func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	router, err := web.NewRouter(web.Config{
		Handlers:    h,
		Locales:     bundle,
		CORSOrigins: []string{"https://partner.example"},
		Logger:      zap.NewNop(),
	})
	require.NoError(t, err)
	return &site{handler: router, store: store, mail: sender}
}

func (s *site) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *site) page(t *testing.T, target string) (*goquery.Document, *httptest.ResponseRecorder) {
	t.Helper()
	rec := s.do(t, httptest.NewRequest(http.MethodGet, target, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	return doc, rec
}

func seedHero(ctx context.Context, store *memory.Store) {
	sec, err := store.SeedSection(domain.SectionHero)
	if err != nil {
		panic(err)
	}
	_ = store.Translations().Upsert(ctx, sec.ID, "title", domain.Text{ET: "Kuivad puud igaks talveks"})
	_ = store.Translations().Upsert(ctx, sec.ID, "subtitle", domain.Text{ET: "Eesti keeles", EN: "In English"})
	alt := "Puuriit"
	_ = store.Images().Upsert(ctx, sec.ID, "background", "https://cdn.example/hero.jpg", &alt)
}

func TestHomeFallsBackToBundledStrings(t *testing.T) {
	s := newSite(t, seedHero)

	doc, rec := s.page(t, "/")
	require.Equal(t, "et", rec.Header().Get("Content-Language"))
	require.Contains(t, rec.Header().Values("Vary"), "Accept-Language")
	require.Equal(t, "Kuivad puud igaks talveks", strings.TrimSpace(doc.Find(`[data-field="hero.title"]`).Text()))
	require.Equal(t, "Eesti keeles", strings.TrimSpace(doc.Find(`[data-field="hero.subtitle"]`).Text()))
	src, _ := doc.Find(`#hero img.section-bg`).Attr("src")
	require.Equal(t, "https://cdn.example/hero.jpg", src)

	// English title is empty remotely, so the bundled English string is shown.
	doc, rec = s.page(t, "/?hl=en")
	require.Equal(t, "en", rec.Header().Get("Content-Language"))
	require.Equal(t, "Quality firewood straight from the producer", strings.TrimSpace(doc.Find(`[data-field="hero.title"]`).Text()))
	require.Equal(t, "In English", strings.TrimSpace(doc.Find(`[data-field="hero.subtitle"]`).Text()))
	require.Equal(t, "About us", strings.TrimSpace(doc.Find(`[data-field="about.title"]`).Text()))
	toggle, _ := doc.Find(`[data-lang-toggle]`).Attr("data-lang-toggle")
	require.Equal(t, "et", toggle)
	require.Contains(t, rec.Header().Get("Set-Cookie"), "hl=en")
}

func TestHomeRendersListsAndSettings(t *testing.T) {
	s := newSite(t, func(ctx context.Context, store *memory.Store) {
		about, _ := store.SeedSection(domain.SectionAbout)
		_, _ = store.Milestones().Insert(ctx, about.ID, domain.MilestoneDraft{Label: "2010", DescriptionET: "Uus saeveski", DescriptionEN: "New sawmill", SortOrder: 2})
		_, _ = store.Milestones().Insert(ctx, about.ID, domain.MilestoneDraft{Label: "2005", DescriptionET: "Asutamine", DescriptionEN: "Founded", SortOrder: 1})
		_ = store.Translations().Upsert(ctx, about.ID, "description", domain.Text{ET: "**Perefirma** <script>alert(1)</script>"})

		wood, _ := store.SeedSection(domain.SectionWoodPurchase)
		_, _ = store.Requirements().Insert(ctx, domain.ProductRequirement{
			SectionID: wood.ID,
			TitleET:   "Nõuded",
			Items:     []domain.Text{{ET: "Pikkus 3 m", EN: "Length 3 m"}, {ET: "Ainult lehtpuu"}},
		})

		raw, _ := json.Marshal(domain.GlobalSettings{
			CompanyName:  "Almar Puit",
			ContactPhone: "+372 5555 5555",
			MetaTitle:    domain.Text{ET: "Almar Puit küttepuud"},
		})
		_ = store.Settings().Upsert(ctx, domain.GlobalSettingsKey, raw)
	})

	doc, _ := s.page(t, "/?hl=en")
	labels := doc.Find(`[data-milestone] strong`).Map(func(_ int, sel *goquery.Selection) string { return sel.Text() })
	require.Equal(t, []string{"2005", "2010"}, labels)
	require.Contains(t, doc.Find(`[data-milestone]`).First().Text(), "Founded")

	description := doc.Find(`[data-field="about.description"]`)
	require.Equal(t, 1, description.Find("strong").Length())
	require.Zero(t, description.Find("script").Length())

	items := doc.Find(`[data-requirement-item]`).Map(func(_ int, sel *goquery.Selection) string { return sel.Text() })
	require.Equal(t, []string{"Length 3 m", "Ainult lehtpuu"}, items)
	// English title missing: the section heading falls back to the bundle.
	require.Equal(t, "Material requirements", strings.TrimSpace(doc.Find(`[data-requirements] h3`).Text()))

	require.Equal(t, "Almar Puit", doc.Find(`[data-company]`).Text())
	require.Equal(t, "+372 5555 5555", doc.Find(`[data-setting="contact_phone"]`).Text())
	require.Equal(t, "OÜ Almar Puit | Firewood and timber purchase", doc.Find("title").Text())

	doc, _ = s.page(t, "/")
	require.Equal(t, "Almar Puit küttepuud", doc.Find("title").Text())
	canonical, _ := doc.Find(`link[rel="canonical"]`).Attr("href")
	require.Equal(t, "https://almarpuit.ee/?hl=et", canonical)
	require.Equal(t, 2, doc.Find(`link[rel="alternate"]`).Length())
}

func postContact(t *testing.T, s *site, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/contact?hl=et", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(t, req)
}

func TestContactForm(t *testing.T) {
	s := newSite(t, func(ctx context.Context, store *memory.Store) {
		raw, _ := json.Marshal(domain.GlobalSettings{ContactEmail: "info@almarpuit.ee", FormTargetEmail: "myyk@almarpuit.ee"})
		_ = store.Settings().Upsert(ctx, domain.GlobalSettingsKey, raw)
	})

	rec := postContact(t, s, url.Values{"name": {"Mari"}, "email": {"mari@example.com"}, "message": {"Soovin 10 ruumi küttepuid."}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/?contact=sent&hl=et#contact", rec.Header().Get("Location"))

	sent := s.mail.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, "myyk@almarpuit.ee", sent[0].To)
	require.Equal(t, "mari@example.com", sent[0].ReplyTo)
	require.Contains(t, sent[0].Text, "Soovin 10 ruumi küttepuid.")

	doc, _ := s.page(t, "/?contact=sent&hl=et")
	require.Equal(t, 1, doc.Find(`[data-banner="success"]`).Length())

	t.Run("invalid input keeps values", func(t *testing.T) {
		rec := postContact(t, s, url.Values{"name": {"Mari"}, "email": {"not-an-email"}, "message": {"Tere"}})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(rec.Body.String()))
		require.NoError(t, err)
		require.Equal(t, 1, doc.Find(`[data-banner="invalid"]`).Length())
		value, _ := doc.Find(`input[name="email"]`).Attr("value")
		require.Equal(t, "not-an-email", value)
		require.Len(t, s.mail.Sent(), 1)
	})

	t.Run("honeypot is silently accepted", func(t *testing.T) {
		rec := postContact(t, s, url.Values{"name": {"Bot"}, "email": {"bot@example.com"}, "message": {"spam"}, "website": {"http://spam"}})
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Len(t, s.mail.Sent(), 1)
	})

	t.Run("delivery failure shows error", func(t *testing.T) {
		s.mail.err = errors.New("resend down")
		defer func() { s.mail.err = nil }()
		rec := postContact(t, s, url.Values{"name": {"Mari"}, "email": {"mari@example.com"}, "message": {"Tere"}})
		require.Equal(t, http.StatusBadGateway, rec.Code)
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(rec.Body.String()))
		require.NoError(t, err)
		require.Equal(t, 1, doc.Find(`[data-banner="error"]`).Length())
	})
}

func TestSectionContentAPI(t *testing.T) {
	s := newSite(t, seedHero)

	req := httptest.NewRequest(http.MethodGet, "/api/content/hero?hl=en", nil)
	req.Header.Set("Origin", "https://partner.example")
	rec := s.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "https://partner.example", rec.Header().Get("Access-Control-Allow-Origin"))

	var payload struct {
		Key          string                      `json:"key"`
		Locale       string                      `json:"locale"`
		Strings      map[string]string           `json:"strings"`
		Translations map[string]domain.Text      `json:"translations"`
		Images       map[string]content.ImageRef `json:"images"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "hero", payload.Key)
	require.Equal(t, "en", payload.Locale)
	require.Equal(t, "Quality firewood straight from the producer", payload.Strings["title"])
	require.Equal(t, "In English", payload.Strings["subtitle"])
	require.Equal(t, "Kuivad puud igaks talveks", payload.Translations["title"].ET)
	require.Equal(t, "https://cdn.example/hero.jpg", payload.Images["background"].URL)
	require.NotContains(t, payload.Strings, "background")

	req = httptest.NewRequest(http.MethodGet, "/api/content/hero", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = s.do(t, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/content/blog", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "section_not_found")

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/settings", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"company_name":"OÜ Almar Puit"`)
}

func TestAssetsHealthAndCompression(t *testing.T) {
	s := newSite(t, nil)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/assets/site.css", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("ETag"))

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec = s.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
}

func TestAcceptLanguageNegotiation(t *testing.T) {
	s := newSite(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	rec := s.do(t, req)
	require.Equal(t, "en", rec.Header().Get("Content-Language"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "en-US")
	req.AddCookie(&http.Cookie{Name: "hl", Value: "et"})
	rec = s.do(t, req)
	require.Equal(t, "et", rec.Header().Get("Content-Language"))
}
