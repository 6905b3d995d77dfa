package classify

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/site-harvester/pkg/models"
	"github.com/Sriram-PR/site-harvester/pkg/utils"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestEmailClassifier_ClassifyText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "two addresses",
			text: "Contact us at a.b+c@example.co.uk or spam@x.io",
			want: []string{"a.b+c@example.co.uk", "spam@x.io"},
		},
		{
			name: "duplicates collapsed",
			text: "hello@example.com, again hello@example.com.",
			want: []string{"hello@example.com"},
		},
		{
			name: "case sensitive",
			text: "Hello@Example.com hello@example.com",
			want: []string{"Hello@Example.com", "hello@example.com"},
		},
		{
			name: "single letter tld rejected",
			text: "user@host.c and @nobody.com",
			want: nil,
		},
		{
			name: "none",
			text: "no contact details here",
			want: nil,
		},
	}

	c := NewEmailClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.ClassifyText(tt.text))
		})
	}
}

func TestSensitiveClassifier_MatchLink(t *testing.T) {
	tests := []struct {
		rawURL string
		want   bool
	}{
		{"https://site.com/backup/db.sql.bak", true},
		{"https://site.com/.env", true},
		{"https://site.com/about.html", false},
		{"https://site.com/.git/config", true},
		{"https://site.com/.git", true},
		{"https://site.com/WP-CONFIG.PHP", true},
		{"https://site.com/files/Passwords.xlsx", true},
		{"https://site.com/dump/site.SQL", true},
		{"https://site.com/keys/server.pem", true},
		{"https://site.com/index.php~", true},
		{"https://site.com/home/.bash_history", true},
		{"https://site.com/api/secret.json", true},
		{"https://site.com/sitemap.xml", false},
		{"https://site.com/~alice/page", false},
		{"https://site.com/blog/post-1", false},
		{"https://site.com/", false},
	}

	c := NewSensitiveClassifier()
	for _, tt := range tests {
		t.Run(tt.rawURL, func(t *testing.T) {
			assert.Equal(t, tt.want, c.MatchLink(mustURL(t, tt.rawURL)))
		})
	}
}

func TestPDFClassifier_MatchLink(t *testing.T) {
	tests := []struct {
		rawURL string
		want   bool
	}{
		{"https://site.com/docs/report.PDF", true},
		{"https://site.com/files/pdfdownload", true},
		{"https://site.com/pdfs/index.html", false},
		{"https://site.com/a/report.pdf?download=1", true},
		{"https://site.com/get-pdf.php", true},
		{"https://site.com/docs/report.html", false},
		{"https://site.com/", false},
	}

	c := NewPDFClassifier()
	for _, tt := range tests {
		t.Run(tt.rawURL, func(t *testing.T) {
			assert.Equal(t, tt.want, c.MatchLink(mustURL(t, tt.rawURL)))
		})
	}
}

func TestFromNames(t *testing.T) {
	set, err := FromNames([]string{"PDF", "sensitive", "email", "pdf"})
	require.NoError(t, err)

	assert.Equal(t, []string{"pdf", "sensitive", "email"}, set.Names())
	assert.Len(t, set.TextClassifiers(), 1)
	assert.True(t, set.HasLinkClassifiers())

	// pdf wins over sensitive because it was listed first
	kind, ok := set.ClassifyLink(mustURL(t, "https://site.com/backup.pdf"))
	assert.True(t, ok)
	assert.Equal(t, models.ArtifactPDF, kind)

	kind, ok = set.ClassifyLink(mustURL(t, "https://site.com/.env"))
	assert.True(t, ok)
	assert.Equal(t, models.ArtifactSensitiveFile, kind)

	_, ok = set.ClassifyLink(mustURL(t, "https://site.com/about"))
	assert.False(t, ok)
}

func TestFromNames_Errors(t *testing.T) {
	_, err := FromNames([]string{"email", "phone"})
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
	assert.Contains(t, err.Error(), "phone")

	_, err = FromNames(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
}

func TestEmailOnlySet_HasNoLinkClassifiers(t *testing.T) {
	set, err := FromNames([]string{"email"})
	require.NoError(t, err)
	assert.False(t, set.HasLinkClassifiers())
	_, ok := set.ClassifyLink(mustURL(t, "https://site.com/report.pdf"))
	assert.False(t, ok)
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"email", "pdf", "sensitive"}, Names())
	assert.True(t, IsKnown(" Email "))
	assert.False(t, IsKnown("phone"))
}
