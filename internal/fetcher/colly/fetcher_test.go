package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/restaurant-pipeline/internal/pipeline"
)

func TestFetchReturnsDocument(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "menu-bot/1.0", r.UserAgent())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><title>Bistro</title></html>"))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{UserAgent: "menu-bot/1.0", Timeout: time.Second}, nil)
	doc, err := f.Fetch(context.Background(), srv.URL+"/menu")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, doc.StatusCode)
	require.Equal(t, srv.URL+"/menu", doc.URL)
	require.Contains(t, string(doc.Body), "Bistro")
	require.Equal(t, "text/html; charset=utf-8", doc.Header.Get("Content-Type"))
	require.False(t, doc.FetchedAt.IsZero())

	again, err := f.Fetch(context.Background(), srv.URL+"/menu")
	require.NoError(t, err)
	require.Equal(t, doc.Body, again.Body)
}

func TestFetchReportsStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	_, err := New(Config{Timeout: time.Second}, nil).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	require.True(t, IsStatus(err, http.StatusNotFound))
}

func TestFetchHonorsContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := New(Config{Timeout: 5 * time.Second}, nil).Fetch(ctx, srv.URL)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) { s.onResponse = cb }
func (s *stubHooks) OnError(cb colly.ErrorCallback)       { s.onError = cb }

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func TestConfigureHooks(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0).UTC()
	f := New(Config{}, fixedClock{now: now})
	var (
		doc      pipeline.Document
		fetchErr error
	)
	hooks := &stubHooks{}
	f.configureHooks(hooks, now.Add(-time.Second), &doc, &fetchErr)

	u, err := url.Parse("https://bistro.fr/")
	require.NoError(t, err)
	req := &colly.Request{URL: u}
	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("ok"),
		Headers:    &http.Header{"Content-Type": {"text/plain"}},
		Request:    req,
	})
	require.Equal(t, "ok", string(doc.Body))
	require.Equal(t, time.Second, doc.Duration)
	require.Equal(t, now, doc.FetchedAt)

	hooks.onError(&colly.Response{StatusCode: http.StatusTooManyRequests}, errors.New("Too Many Requests"))
	require.True(t, IsStatus(fetchErr, http.StatusTooManyRequests))
	require.EqualError(t, fetchErr, "status 429: Too Many Requests")
}
