package httpserver_test

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/almarpuit/site/internal/admin/testutil"
	"github.com/almarpuit/site/internal/domain"
	"github.com/almarpuit/site/internal/platform/storage"
	"github.com/almarpuit/site/internal/repositories/memory"
)

func TestDashboardRedirectsWithoutAuth(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.Client(t)

	resp, err := client.Get(ts.URL + "/admin")
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/admin/login", resp.Header.Get("Location"))
}

func TestHTMXRequestWithoutAuthGetsHXRedirect(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/admin/settings", nil)
	require.NoError(t, err)
	req.Header.Set("HX-Request", "true")

	resp, err := testutil.Client(t).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "/admin/login", resp.Header.Get("HX-Redirect"))
}

func TestLoginFlowRendersDashboard(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.Client(t)

	doc := getDocument(t, client, ts.URL+"/admin/login?next=/admin/settings", http.StatusOK)
	csrf := testutil.InputValue(t, doc, "csrf_token")
	require.NotEmpty(t, csrf)
	next := testutil.InputValue(t, doc, "next")
	require.Equal(t, "/admin/settings", next)

	resp, err := client.PostForm(ts.URL+"/admin/login", url.Values{
		"email":      {testutil.EditorEmail},
		"password":   {testutil.EditorPassword},
		"csrf_token": {csrf},
		"next":       {next},
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/admin/settings", resp.Header.Get("Location"))

	doc = getDocument(t, client, ts.URL+"/admin", http.StatusOK)
	require.Equal(t, 1, doc.Find(`[data-empty="warnings"]`).Length())

	getDocument(t, client, ts.URL+"/admin/sections/hero", http.StatusOK)
	doc = getDocument(t, client, ts.URL+"/admin", http.StatusOK)
	require.Equal(t, "Töölaud | Almar Puit admin", doc.Find("title").First().Text())
	require.Equal(t, "Töölaud", doc.Find("h1").First().Text())
	require.Equal(t, testutil.EditorEmail, doc.Find("[data-editor-email]").Text())
	require.Equal(t, len(domain.SectionKeys)+2, doc.Find(`[data-nav="sidebar"] a`).Length())
	require.Equal(t, 1, doc.Find(`[data-table="recent"] tr[data-section="hero"]`).Length())
	warning := doc.Find(`[data-list="warnings"] li[data-kind="missing_image"]`)
	require.Equal(t, 1, warning.Length())
	require.Contains(t, warning.Text(), "background")
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.Client(t)
	csrf := loginPageToken(t, client, ts.URL)

	resp, err := client.PostForm(ts.URL+"/admin/login", url.Values{
		"email":      {testutil.EditorEmail},
		"password":   {"wrong"},
		"csrf_token": {csrf},
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	doc := testutil.ParseHTML(t, body)
	require.Equal(t, "Vale e-post või parool.", doc.Find("[data-login-error]").Text())
}

func TestLoginRequiresCSRFToken(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.Client(t)
	loginPageToken(t, client, ts.URL)

	resp, err := client.PostForm(ts.URL+"/admin/login", url.Values{
		"email":    {testutil.EditorEmail},
		"password": {testutil.EditorPassword},
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestTranslationSaveUpdatesStore(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client, csrf := login(t, ts)

	doc := getDocument(t, client, ts.URL+"/admin/sections/hero", http.StatusOK)
	require.Equal(t, 2, doc.Find(`[data-field="title"] form`).Length())

	body := htmxPost(t, client, ts.URL+"/admin/sections/hero/translations/title", csrf, url.Values{
		"lang":  {"en"},
		"value": {"Quality firewood"},
	}, http.StatusOK)
	frag := testutil.ParseHTML(t, body)
	require.Equal(t, 1, frag.Find(`[data-save-status="success"]`).Length())

	require.Equal(t, "Quality firewood", ts.Hub.Section(context.Background(), domain.SectionHero).Get("title", domain.LocaleEN))
	rows, err := ts.Store.Translations().ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Quality firewood", rows[0].EN)
	require.Empty(t, rows[0].ET)
}

func TestTranslationSaveFailureShowsError(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client, csrf := login(t, ts)
	ts.Store.Fail(memory.OpTranslationUpsert, func(int) error {
		return memory.Unavailable(memory.OpTranslationUpsert, nil)
	})

	body := htmxPost(t, client, ts.URL+"/admin/sections/about/translations/title", csrf, url.Values{
		"lang":  {"et"},
		"value": {"Meist"},
	}, http.StatusOK)
	frag := testutil.ParseHTML(t, body)
	status := frag.Find(`[data-save-status="error"]`)
	require.Equal(t, 1, status.Length())
	require.Contains(t, status.Text(), "Andmebaas")
	require.Empty(t, ts.Hub.Section(context.Background(), domain.SectionAbout).Get("title", domain.LocaleET))
}

func TestMonolingualFieldRejectsEnglish(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client, csrf := login(t, ts)

	htmxPost(t, client, ts.URL+"/admin/sections/contact/translations/contact1Phone", csrf, url.Values{
		"lang":  {"en"},
		"value": {"+372"},
	}, http.StatusBadRequest)
}

func TestUnknownSectionIsNotFound(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client, _ := login(t, ts)
	getDocument(t, client, ts.URL+"/admin/sections/pricing", http.StatusNotFound)
}

func TestMilestoneLifecycle(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client, csrf := login(t, ts)
	base := ts.URL + "/admin/sections/about/milestones"

	for _, label := range []string{"1998", "2010"} {
		htmxPost(t, client, base, csrf, url.Values{"label": {label}, "description_et": {"Asutati"}}, http.StatusOK)
	}
	cards := ts.Hub.Milestones(context.Background(), domain.SectionAbout).Cards()
	require.Len(t, cards, 2)

	body := htmxPost(t, client, base+"/reorder", csrf, url.Values{"order": {cards[1].ID + "," + cards[0].ID}}, http.StatusOK)
	frag := testutil.ParseHTML(t, body)
	labels := frag.Find(`[data-card] input[name="label"]`).Map(func(_ int, s *goquery.Selection) string {
		v, _ := s.Attr("value")
		return v
	})
	require.Equal(t, []string{"2010", "1998"}, labels)

	body = htmxPost(t, client, base+"/"+cards[0].ID+"/delete", csrf, url.Values{}, http.StatusOK)
	frag = testutil.ParseHTML(t, body)
	require.Equal(t, 1, frag.Find(`[data-card]`).Length())

	body = htmxPost(t, client, base, csrf, url.Values{"label": {" "}}, http.StatusOK)
	frag = testutil.ParseHTML(t, body)
	require.Equal(t, "Kontrolli sisestatud andmeid.", frag.Find(`[data-banner="error"]`).Text())
}

func TestMilestonesOnlyOnAbout(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client, csrf := login(t, ts)
	htmxPost(t, client, ts.URL+"/admin/sections/hero/milestones", csrf, url.Values{"label": {"x"}}, http.StatusNotFound)
}

func TestRequirementItems(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client, csrf := login(t, ts)
	base := ts.URL + "/admin/sections/woodPurchase/requirements"

	body := htmxPost(t, client, base+"/items", csrf, url.Values{"et": {"Kask"}}, http.StatusOK)
	require.Contains(t, string(body), "Nõuete kirjet ei leitud.")

	htmxPost(t, client, base, csrf, url.Values{"title_et": {"Ostame metsa"}, "title_en": {"We buy forest"}}, http.StatusOK)
	htmxPost(t, client, base+"/items", csrf, url.Values{"et": {"Kask"}, "en": {"Birch"}}, http.StatusOK)
	htmxPost(t, client, base+"/items", csrf, url.Values{"et": {"Mänd"}, "en": {"Pine"}}, http.StatusOK)
	htmxPost(t, client, base+"/items/1/move", csrf, url.Values{"direction": {"up"}}, http.StatusOK)

	req, ok := ts.Hub.Requirements(context.Background(), domain.SectionWoodPurchase).Requirement()
	require.True(t, ok)
	require.Equal(t, "Ostame metsa", req.TitleET)
	require.Equal(t, []domain.Text{{ET: "Mänd", EN: "Pine"}, {ET: "Kask", EN: "Birch"}}, req.Items)

	body = htmxPost(t, client, base+"/items/7/delete", csrf, url.Values{}, http.StatusOK)
	require.Contains(t, string(body), "Valitud rida ei ole enam olemas.")
}

func TestSettingsUpdate(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client, csrf := login(t, ts)

	body := htmxPost(t, client, ts.URL+"/admin/settings", csrf, url.Values{
		"company_name":      {"OÜ Almar Puit"},
		"contact_email":     {"info@almarpuit.ee"},
		"meta_title_et":     {"Küttepuud"},
		"form_target_email": {"  "},
	}, http.StatusOK)
	frag := testutil.ParseHTML(t, body)
	require.Equal(t, 1, frag.Find(`[data-banner="success"]`).Length())

	current := ts.Hub.Settings(context.Background()).Current()
	require.Equal(t, "info@almarpuit.ee", current.ContactEmail)
	require.Equal(t, "info@almarpuit.ee", current.ContactTarget())
	require.Equal(t, "Küttepuud", current.MetaTitle.ET)
}

func TestImageUpload(t *testing.T) {
	t.Parallel()

	writer := &memoryWriter{}
	uploader, err := storage.NewUploader(writer, "images", "https://storage.googleapis.com/images", 1<<20)
	require.NoError(t, err)
	ts := testutil.NewServer(t, testutil.WithUploader(uploader))
	client, csrf := login(t, ts)

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	resp := multipartPost(t, client, ts.URL+"/admin/sections/hero/images/background/upload", csrf, "bg.png", png)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "true", resp.Header.Get("HX-Refresh"))

	img, ok := ts.Hub.Section(context.Background(), domain.SectionHero).Image("background")
	require.True(t, ok)
	require.True(t, strings.HasPrefix(img.URL, "https://storage.googleapis.com/images/sections/hero/background/"))
	require.Len(t, writer.objects, 1)

	doc := getDocument(t, client, ts.URL+"/admin/sections/hero", http.StatusOK)
	require.Equal(t, "Pilt laaditi üles.", doc.Find(`[data-banner="success"]`).Text())

	resp = multipartPost(t, client, ts.URL+"/admin/sections/hero/images/background/upload", csrf, "notes.txt", []byte("hello"))
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "Lubatud on ainult JPEG, PNG, WebP ja GIF pildid.")
}

func TestLogoutClearsSession(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client, csrf := login(t, ts)

	resp, err := client.PostForm(ts.URL+"/admin/logout", url.Values{"csrf_token": {csrf}})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/admin/login?status=logged_out", resp.Header.Get("Location"))

	resp, err = client.Get(ts.URL + "/admin")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
}

func login(t *testing.T, ts *testutil.Server) (*http.Client, string) {
	t.Helper()
	client := testutil.Client(t)
	csrf := loginPageToken(t, client, ts.URL)
	resp, err := client.PostForm(ts.URL+"/admin/login", url.Values{
		"email":      {testutil.EditorEmail},
		"password":   {testutil.EditorPassword},
		"csrf_token": {csrf},
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	return client, csrf
}

func loginPageToken(t *testing.T, client *http.Client, baseURL string) string {
	t.Helper()
	doc := getDocument(t, client, baseURL+"/admin/login", http.StatusOK)
	return testutil.InputValue(t, doc, "csrf_token")
}

func getDocument(t *testing.T, client *http.Client, target string, status int) *goquery.Document {
	t.Helper()
	resp, err := client.Get(target)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, status, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return testutil.ParseHTML(t, body)
}

func htmxPost(t *testing.T, client *http.Client, target, csrf string, form url.Values, status int) []byte {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	req.Header.Set("X-CSRF-Token", csrf)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, status, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return body
}

func multipartPost(t *testing.T, client *http.Client, target, csrf, filename string, data []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, target, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("HX-Request", "true")
	req.Header.Set("X-CSRF-Token", csrf)
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

type memoryWriter struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryWriter) WriteObject(_ context.Context, _, name, _, _ string, data io.Reader) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[name] = b
	return nil
}
