package sitemap

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/Sriram-PR/site-harvester/pkg/models"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func TestIngest(t *testing.T) {
	tests := []struct {
		name    string
		content string
		depth   int
		want    []models.WorkItem
	}{
		{
			name: "urlset keeps same host at same depth",
			content: `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/a/</loc></url>
  <url><loc>https://EXAMPLE.com:443/b#frag</loc></url>
  <url><loc>https://other.com/c</loc></url>
  <url><loc>https://sub.example.com/d</loc></url>
</urlset>`,
			depth: 2,
			want: []models.WorkItem{
				{URL: "https://example.com/a", Depth: 2},
				{URL: "https://example.com/b", Depth: 2},
			},
		},
		{
			name: "sitemap index yields child sitemaps",
			content: `<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://example.com/sitemap-posts.xml</loc></sitemap>
  <sitemap><loc>https://example.com/sitemap-pages.xml</loc></sitemap>
</sitemapindex>`,
			depth: 0,
			want: []models.WorkItem{
				{URL: "https://example.com/sitemap-posts.xml", Depth: 0},
				{URL: "https://example.com/sitemap-pages.xml", Depth: 0},
			},
		},
		{
			name:    "plain text fallback",
			content: "https://example.com/one\n\n# comment\nhttps://example.com/two\n",
			depth:   1,
			want: []models.WorkItem{
				{URL: "https://example.com/one", Depth: 1},
				{URL: "https://example.com/two", Depth: 1},
			},
		},
		{
			name:    "duplicates after normalization are dropped",
			content: "https://example.com/x\nhttps://example.com/x/\nhttps://example.com/x#top\n",
			want:    []models.WorkItem{{URL: "https://example.com/x", Depth: 0}},
		},
		{
			name:    "relative and non-http locations dropped",
			content: "/relative/path\nftp://example.com/file\nmailto:someone@example.com\n",
			want:    nil,
		},
		{
			name:    "unknown xml schema yields nothing",
			content: `<?xml version="1.0"?><rss><channel><link>https://example.com/feed</link></channel></rss>`,
			want:    nil,
		},
		{
			name:    "empty document",
			content: "",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := NewIngestor("example.com", testLogger())
			assert.Equal(t, tt.want, in.Ingest([]byte(tt.content), tt.depth))
		})
	}
}

func TestIngestURL_MatchesIngest(t *testing.T) {
	in := NewIngestor("example.com", testLogger())
	content := []byte("https://example.com/a\nhttps://other.com/b\n")

	assert.Equal(t, in.Ingest(content, 3), in.IngestURL("https://example.com/sitemap.txt", content, 3))
}

func TestIngest_HostKeyWithPort(t *testing.T) {
	in := NewIngestor("127.0.0.1:8080", testLogger())
	got := in.Ingest([]byte("http://127.0.0.1:8080/a\nhttp://127.0.0.1:9090/b\n"), 0)
	assert.Equal(t, []models.WorkItem{{URL: "http://127.0.0.1:8080/a", Depth: 0}}, got)
}
