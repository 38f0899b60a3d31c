package backend_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"pageguard/internal/backend"
	"pageguard/pkg/model"
)

func TestCheckURLParsesVerdict(t *testing.T) {
	var gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/check-url", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		io.WriteString(w, `{"decision":"BLOCK"}`)
	}))
	defer srv.Close()

	c := backend.New(srv.URL, time.Second, nil)
	dec, err := c.CheckURL(context.Background(), "tok", model.PageSummary{
		Title: "Video", URL: "https://example.com/watch", SearchQuery: "shoes",
	})
	require.NoError(t, err)
	assert.Equal(t, model.DecisionBlock, dec)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "Video", gjson.Get(gotBody, "title").String())
	assert.Equal(t, "shoes", gjson.Get(gotBody, "searchQuery").String())
	assert.True(t, gjson.Get(gotBody, "sentAt").Exists())
	// empty optional fields are omitted from the payload
	assert.False(t, gjson.Get(gotBody, "h1").Exists())
}

func TestCheckURLServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := backend.New(srv.URL, time.Second, nil)
	_, err := c.CheckURL(context.Background(), "tok", model.PageSummary{URL: "https://x"})
	assert.Error(t, err)
}

func TestCheckURLMalformedDecision(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"decision":"MAYBE"}`)
	}))
	defer srv.Close()

	c := backend.New(srv.URL, time.Second, nil)
	_, err := c.CheckURL(context.Background(), "tok", model.PageSummary{URL: "https://x"})
	assert.Error(t, err)
}

func TestCheckURLTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := backend.New(srv.URL, 20*time.Millisecond, nil)
	_, err := c.CheckURL(context.Background(), "tok", model.PageSummary{URL: "https://x"})
	assert.Error(t, err)
}

func TestLogEvent(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/log-event", r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))
	defer srv.Close()

	c := backend.New(srv.URL, time.Second, nil)
	err := c.LogEvent(context.Background(), "tok", model.LogEvent{
		Title:    "Started watching Shorts",
		Reason:   "Shorts Session (Start)",
		Decision: model.DecisionAllow,
		URL:      "https://www.youtube.com/shorts/a",
	})
	require.NoError(t, err)
	assert.Equal(t, "Shorts Session (Start)", gjson.Get(gotBody, "reason").String())
	assert.Equal(t, "ALLOW", gjson.Get(gotBody, "decision").String())
}

func TestHeartbeatCarriesKey(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/heartbeat", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		gotKey = r.URL.Query().Get("key")
	}))
	defer srv.Close()

	c := backend.New(srv.URL, time.Second, nil)
	require.NoError(t, c.Heartbeat(context.Background(), "tok123"))
	assert.Equal(t, "tok123", gotKey)
}
