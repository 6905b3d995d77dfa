package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func robotsServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	hits := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server, hits
}

func TestParseRobots_Rules(t *testing.T) {
	policy, err := ParseRobots([]byte("User-agent: *\nDisallow: /private\nAllow: /private/open\n"))
	require.NoError(t, err)

	tests := []struct {
		path    string
		allowed bool
	}{
		{"/", true},
		{"/docs/page", true},
		{"/private", false},
		{"/private/secret.html", false},
		{"/private/open/page", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.allowed, policy.IsAllowed(mustParseURL(t, "https://example.com"+tt.path)))
		})
	}
}

func TestParseRobots_SitemapDirectives(t *testing.T) {
	body := "SITEMAP: https://example.com/a.xml\n" +
		"User-agent: *\n" +
		"Disallow:\n" +
		"sitemap:https://example.com/b.xml # trailing comment\n" +
		"Sitemap: https://example.com/a.xml\n"
	policy, err := ParseRobots([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://example.com/a.xml",
		"https://example.com/b.xml",
		"https://example.com/a.xml",
	}, policy.Sitemaps())
}

func TestRobotsPolicy_NilAndEmptyAllowAll(t *testing.T) {
	u := mustParseURL(t, "https://example.com/anything?q=1")

	var nilPolicy *RobotsPolicy
	assert.True(t, nilPolicy.IsAllowed(u))
	assert.Nil(t, nilPolicy.Sitemaps())

	assert.True(t, AllowAllPolicy().IsAllowed(u))
	assert.Empty(t, AllowAllPolicy().Sitemaps())
}

func TestRobotsPolicy_QueryIsEvaluated(t *testing.T) {
	policy, err := ParseRobots([]byte("User-agent: *\nDisallow: /search?\n"))
	require.NoError(t, err)

	assert.False(t, policy.IsAllowed(mustParseURL(t, "https://example.com/search?q=go")))
	assert.True(t, policy.IsAllowed(mustParseURL(t, "https://example.com/search")))
}

func TestRobotsGate_LoadsAndCaches(t *testing.T) {
	server, hits := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /admin\nSitemap: /sitemap.xml\n")
	gate := NewRobotsGate(NewFetcher(testClient(), testConfig(0), testLogger()), time.Second, testLogger())

	seed := mustParseURL(t, server.URL+"/start")
	policy := gate.Load(context.Background(), seed)
	require.NotNil(t, policy)
	assert.False(t, policy.IsAllowed(mustParseURL(t, server.URL+"/admin/users")))
	assert.True(t, policy.IsAllowed(mustParseURL(t, server.URL+"/docs")))
	assert.Equal(t, []string{"/sitemap.xml"}, policy.Sitemaps())

	again := gate.Load(context.Background(), mustParseURL(t, server.URL+"/other"))
	assert.Same(t, policy, again)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRobotsGate_FailOpen(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not found", http.StatusNotFound, ""},
		{"server error", http.StatusInternalServerError, "User-agent: *\nDisallow: /\n"},
		{"forbidden", http.StatusForbidden, "User-agent: *\nDisallow: /\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := robotsServer(t, tt.status, tt.body)
			gate := NewRobotsGate(NewFetcher(testClient(), testConfig(0), testLogger()), time.Second, testLogger())

			policy := gate.Load(context.Background(), mustParseURL(t, server.URL))
			assert.True(t, policy.IsAllowed(mustParseURL(t, server.URL+"/anything")))
			assert.Empty(t, policy.Sitemaps())
		})
	}
}

func TestRobotsGate_UnreachableHostAllowsAll(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	gate := NewRobotsGate(NewFetcher(testClient(), testConfig(0), testLogger()), 500*time.Millisecond, testLogger())
	policy := gate.Load(context.Background(), mustParseURL(t, addr))
	assert.True(t, policy.IsAllowed(mustParseURL(t, addr+"/x")))
}

func TestRobotsGate_TimeoutAllowsAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
		_, _ = io.WriteString(w, "User-agent: *\nDisallow: /\n")
	}))
	t.Cleanup(server.Close)

	gate := NewRobotsGate(NewFetcher(testClient(), testConfig(0), testLogger()), 50*time.Millisecond, testLogger())
	start := time.Now()
	policy := gate.Load(context.Background(), mustParseURL(t, server.URL))
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, policy.IsAllowed(mustParseURL(t, server.URL+"/")))
}
