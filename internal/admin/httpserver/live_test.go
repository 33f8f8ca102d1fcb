package httpserver_test

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/almarpuit/site/internal/admin/testutil"
)

func TestLiveStreamsSectionChanges(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client, csrf := login(t, ts)
	getDocument(t, client, ts.URL+"/admin/sections/hero", http.StatusOK)

	base, err := url.Parse(ts.URL + "/admin/")
	require.NoError(t, err)
	header := http.Header{}
	for _, c := range client.Jar.Cookies(base) {
		header.Add("Cookie", c.String())
	}

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/admin/live/hero"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	htmxPost(t, client, ts.URL+"/admin/sections/hero/translations/subtitle", csrf, url.Values{
		"lang":  {"et"},
		"value": {"Kuivad küttepuud"},
	}, http.StatusOK)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Type  string `json:"type"`
		Table string `json:"table"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "changed", msg.Type)
	require.Equal(t, "translations", msg.Table)
}

func TestLiveRequiresAuth(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/admin/live/hero"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
}
