package watch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/site-harvester/pkg/config"
	"github.com/Sriram-PR/site-harvester/pkg/models"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"30s", 30 * time.Second, false},
		{"5m", 5 * time.Minute, false},
		{"24h", 24 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"1d12h", 36 * time.Hour, false},
		{"0s", 0, true},
		{"-5m", 0, true},
		{"1dx", 0, true},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseInterval(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFormatInterval(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{time.Hour, "1h"},
		{90 * time.Minute, "1h30m"},
		{24 * time.Hour, "1d"},
		{36 * time.Hour, "1d12h"},
		{7 * 24 * time.Hour, "7d"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatInterval(tt.input))
	}
}

func TestTickInterval(t *testing.T) {
	assert.Equal(t, time.Minute, tickInterval(30*time.Second))
	assert.Equal(t, 6*time.Minute, tickInterval(time.Hour))
	assert.Equal(t, 10*time.Minute, tickInterval(7*24*time.Hour))
}

func artifact(kind models.ArtifactKind, value string) models.ClassifiedArtifact {
	return models.ClassifiedArtifact{Kind: kind, Value: value, Provenance: []string{"https://example.com"}}
}

func TestStateManager_RecordAndReload(t *testing.T) {
	dir := t.TempDir()
	m := NewStateManager(dir)
	require.NoError(t, m.Load(), "a missing file is an empty state")

	first := &models.CrawlResult{PagesVisited: 3, Artifacts: []models.ClassifiedArtifact{
		artifact(models.ArtifactEmail, "a@example.com"),
	}}
	assert.Empty(t, m.Record("site", first, nil), "the first run sets the baseline")

	failed := m.Record("site", &models.CrawlResult{PagesVisited: 1}, errors.New("boom"))
	assert.Empty(t, failed)
	st, ok := m.Get("site")
	require.True(t, ok)
	assert.False(t, st.LastRunSuccess)
	assert.Equal(t, "boom", st.ErrorMessage)
	assert.Equal(t, []string{"email a@example.com"}, st.Artifacts, "a failed run keeps the baseline")

	require.NoError(t, m.Save())
	_, err := os.Stat(m.Path())
	require.NoError(t, err)

	reloaded := NewStateManager(dir)
	require.NoError(t, reloaded.Load())
	second := &models.CrawlResult{PagesVisited: 4, Artifacts: []models.ClassifiedArtifact{
		artifact(models.ArtifactEmail, "a@example.com"),
		artifact(models.ArtifactPDF, "https://example.com/new.pdf"),
	}}
	fresh := reloaded.Record("site", second, nil)
	require.Len(t, fresh, 1)
	assert.Equal(t, "https://example.com/new.pdf", fresh[0].Value)

	st, _ = reloaded.Get("site")
	assert.True(t, st.LastRunSuccess)
	assert.Equal(t, 4, st.PagesVisited)
	assert.Empty(t, st.ErrorMessage)
}

func TestStateManager_EmptyBaselineSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	m := NewStateManager(dir)
	m.Record("site", &models.CrawlResult{}, nil)
	require.NoError(t, m.Save())

	reloaded := NewStateManager(dir)
	require.NoError(t, reloaded.Load())
	fresh := reloaded.Record("site", &models.CrawlResult{Artifacts: []models.ClassifiedArtifact{
		artifact(models.ArtifactEmail, "new@example.com"),
	}}, nil)
	assert.Len(t, fresh, 1)
}

func TestStateManager_LoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	m := NewStateManager(dir)
	require.NoError(t, os.WriteFile(m.Path(), []byte("targets: [unclosed"), 0644))
	assert.Error(t, m.Load())
}

func TestStateManager_ShouldRun(t *testing.T) {
	m := NewStateManager(t.TempDir())
	assert.True(t, m.ShouldRun("site", time.Hour), "never run")

	m.Record("site", &models.CrawlResult{}, nil)
	assert.False(t, m.ShouldRun("site", time.Hour))
	assert.True(t, m.ShouldRun("site", 0))

	next := m.NextRunTime("site", time.Hour)
	assert.WithinDuration(t, time.Now().Add(time.Hour), next, 5*time.Second)
}

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func TestScheduler_RunDueReportsNewArtifacts(t *testing.T) {
	var published atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		body := "<p>sales@example.org</p>"
		if published.Load() {
			body += "<p>press@example.org</p>"
		}
		_, _ = io.WriteString(w, body)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	depth := 0
	appCfg := &config.AppConfig{
		StateDir: t.TempDir(),
		Targets:  map[string]config.TargetConfig{"site": {SeedURL: server.URL, MaxDepth: &depth}},
	}
	_, err := appCfg.Validate()
	require.NoError(t, err)
	appCfg.MaxRetries = 0

	s := NewScheduler(appCfg, []string{"site"}, time.Hour, testLogger())
	var seen []Change
	s.OnChange = func(c Change) { seen = append(seen, c) }

	changes := s.RunDue(context.Background())
	require.Len(t, changes, 1)
	assert.True(t, changes[0].Success)
	assert.Equal(t, 1, changes[0].PagesVisited)
	assert.Empty(t, changes[0].NewArtifacts)

	assert.Nil(t, s.RunDue(context.Background()), "not due again within the interval")

	published.Store(true)
	s.interval = 0
	changes = s.RunDue(context.Background())
	require.Len(t, changes, 1)
	require.Len(t, changes[0].NewArtifacts, 1)
	assert.Equal(t, "press@example.org", changes[0].NewArtifacts[0].Value)
	assert.Len(t, seen, 2)

	_, err = os.Stat(s.state.Path())
	assert.NoError(t, err, "state is saved after each run")
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	appCfg := &config.AppConfig{StateDir: t.TempDir()}
	_, err := appCfg.Validate()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- NewScheduler(appCfg, nil, time.Hour, testLogger()).Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
