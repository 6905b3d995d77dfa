package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/site-harvester/pkg/models"
	"github.com/Sriram-PR/site-harvester/pkg/utils"
)

func sampleResult() *models.CrawlResult {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return &models.CrawlResult{
		RunID:        "run-1",
		Target:       "example",
		Seed:         "https://example.com",
		Domain:       "example.com",
		Classifiers:  []string{"email", "pdf"},
		StartedAt:    start,
		FinishedAt:   start.Add(1500 * time.Millisecond),
		PagesVisited: 3,
		Visited:      []string{"https://example.com", "https://example.com/a", "https://example.com/missing"},
		BrokenLinks:  []string{"https://example.com/missing"},
		Artifacts: []models.ClassifiedArtifact{
			{Kind: models.ArtifactEmail, Value: "admin@example.com", Provenance: []string{"https://example.com", "https://example.com/a"}},
			{Kind: models.ArtifactPDF, Value: "https://example.com/r.pdf", Provenance: []string{"https://example.com/a"}},
		},
	}
}

func render(t *testing.T, format string, res *models.CrawlResult) string {
	t.Helper()
	r, err := New(format)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, res))
	return buf.String()
}

func TestNew_Formats(t *testing.T) {
	tests := []struct {
		format string
		want   Reporter
	}{
		{"", TextReporter{}},
		{"text", TextReporter{}},
		{"Markdown", MarkdownReporter{}},
		{"md", MarkdownReporter{}},
		{"html", HTMLReporter{}},
		{"json", JSONReporter{}},
		{"yaml", YAMLReporter{}},
		{"yml", YAMLReporter{}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			r, err := New(tt.format)
			require.NoError(t, err)
			assert.IsType(t, tt.want, r)
		})
	}

	_, err := New("pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrConfigValidation))
}

func TestTextReporter(t *testing.T) {
	out := render(t, "text", sampleResult())

	assert.Contains(t, out, "Crawl of https://example.com\n")
	assert.Contains(t, out, "Pages visited: 3\n")
	assert.Contains(t, out, "Broken links:  1\n")
	assert.Contains(t, out, "Emails:        1\n")
	assert.Contains(t, out, "PDF documents: 1\n")
	assert.NotContains(t, out, "Sensitive files", "kinds without a classifier or findings are omitted")
	assert.Contains(t, out, "Duration:      1.5s\n")

	assert.Contains(t, out, "\nEmails\n  admin@example.com\n      found on https://example.com\n      found on https://example.com/a\n")
	assert.Contains(t, out, "\nBroken links\n  https://example.com/missing\n")

	// Emails come before PDFs
	assert.Less(t, strings.Index(out, "admin@example.com"), strings.Index(out, "r.pdf"))
}

func TestTextReporter_EmptyResult(t *testing.T) {
	out := render(t, "text", &models.CrawlResult{Seed: "https://example.com", Classifiers: []string{"email"}})
	assert.Contains(t, out, "Pages visited: 0\n")
	assert.Contains(t, out, "Emails:        0\n")
	assert.NotContains(t, out, "\nBroken links\n")
}

func TestMarkdownReporter(t *testing.T) {
	out := render(t, "markdown", sampleResult())

	assert.True(t, strings.HasPrefix(out, "# Crawl Report"))
	assert.Contains(t, out, "## Summary")
	assert.Contains(t, out, "## Emails")
	assert.Contains(t, out, "## PDF documents")
	assert.Contains(t, out, "`admin@example.com`")
	assert.Contains(t, out, "https://example.com, https://example.com/a")
	assert.Contains(t, out, "## Broken Links")
	assert.Contains(t, out, "- https://example.com/missing")
	assert.NotContains(t, out, "## Sensitive files")
}

func TestMarkdownReporter_NoBrokenLinks(t *testing.T) {
	res := sampleResult()
	res.BrokenLinks = nil
	out := render(t, "markdown", res)
	assert.Contains(t, out, "No broken links found.")
}

func TestHTMLReporter(t *testing.T) {
	out := render(t, "html", sampleResult())

	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, "<title>Crawl Report: example.com</title>")
	assert.Contains(t, out, "<h1>Crawl Report</h1>")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<code>admin@example.com</code>")
	assert.True(t, strings.HasSuffix(out, "</html>\n"))
}

func TestJSONReporter(t *testing.T) {
	out := render(t, "json", sampleResult())

	var decoded models.CrawlResult
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, 3, decoded.PagesVisited)
	assert.Equal(t, []string{"https://example.com/missing"}, decoded.BrokenLinks)
	require.Len(t, decoded.Artifacts, 2)
	assert.Equal(t, models.ArtifactEmail, decoded.Artifacts[0].Kind)
	assert.Contains(t, out, "\n  \"seed\": \"https://example.com\"")
}

func TestYAMLReporter(t *testing.T) {
	out := render(t, "yaml", sampleResult())

	var decoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "example.com", decoded["domain"])
	assert.Equal(t, 3, decoded["pages_visited"])
	artifacts, ok := decoded["artifacts"].([]interface{})
	require.True(t, ok)
	assert.Len(t, artifacts, 2)
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("disk full") }

func TestReporters_PropagateWriteErrors(t *testing.T) {
	for _, format := range []string{"text", "json", "html"} {
		t.Run(format, func(t *testing.T) {
			r, err := New(format)
			require.NoError(t, err)
			assert.Error(t, r.Render(failingWriter{}, sampleResult()))
		})
	}
}
