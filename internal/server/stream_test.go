package server_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rohmanhakim/krishield/internal/community"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommunityStream_DeliversPostedMessages(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)

	rec := do(t, s, http.MethodGet, "/v1/communities", "")
	require.Equal(t, http.StatusOK, rec.Code)
	group := decode[[]community.Community](t, rec)[0]

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/communities/" + group.ID + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var hello community.Message
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, community.SystemSender, hello.Sender)
	assert.Equal(t, "Connected to "+group.Name, hello.Text)

	rec = do(t, s, http.MethodPost, "/v1/communities/"+group.ID+"/messages", `{"text":"Urea stock arrived at the mandi"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var got community.Message
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "Urea stock arrived at the mandi", got.Text)
	assert.Equal(t, community.SelfSender, got.Sender)
}

func TestCommunityStream_UnknownCommunity(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/communities/missing/stream"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSystem(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/v1/system", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.NotEmpty(t, body["os"])
	assert.Greater(t, body["cores"].(float64), 0.0)
	assert.NotContains(t, body, "cacheDiskPath", "memory backend has no cache directory")
}
