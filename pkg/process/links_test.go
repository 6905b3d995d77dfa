package process

import (
	"errors"
	"io"
	"net/url"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title>Home</title>
  <link rel="stylesheet" href="/static/site.css">
  <style>.hidden { color: red; } /* css@example.com */</style>
  <script>var contact = "script@example.com";</script>
</head>
<body>
  <p>Write to <b>hello@example.com</b></p><p>today</p>
  <a href="/a">A</a>
  <a href="/a/">A again</a>
  <a href="b.html#section">B</a>
  <a href="mailto:skip@x.com">mail</a>
  <a href="tel:+123">call</a>
  <a href="javascript:void(0)">js</a>
  <a href="#top">top</a>
  <a href="https://other.com/page">external</a>
  <a href="https://sub.example.com/page">subdomain</a>
  <a href="ftp://example.com/file">ftp</a>
  <a>no href</a>
  <noscript>noscript@example.com</noscript>
</body>
</html>`

func TestExtract_LinksAndText(t *testing.T) {
	for _, strategy := range DefaultStrategies() {
		t.Run(strategy.Name(), func(t *testing.T) {
			le := NewLinkExtractor("example.com", testLogger()).WithStrategies(strategy)
			links, text := le.Extract(mustURL(t, "https://example.com/docs/index.html"), []byte(samplePage))

			assert.Equal(t, []string{
				"https://example.com/static/site.css",
				"https://example.com/a",
				"https://example.com/docs/b.html",
			}, links)

			assert.Contains(t, text, "hello@example.com")
			assert.Contains(t, text, "Write to hello@example.com today")
			assert.NotContains(t, text, "script@example.com")
			assert.NotContains(t, text, "css@example.com")
			assert.NotContains(t, text, "noscript@example.com")
		})
	}
}

func TestExtract_AdjacentElementsDoNotMerge(t *testing.T) {
	body := []byte(`<div><span>foo</span><span>bar@example.com</span></div>`)
	for _, strategy := range DefaultStrategies() {
		t.Run(strategy.Name(), func(t *testing.T) {
			le := NewLinkExtractor("example.com", testLogger()).WithStrategies(strategy)
			_, text := le.Extract(mustURL(t, "https://example.com"), body)
			assert.Equal(t, "foo bar@example.com", text)
		})
	}
}

func TestExtract_ResolvesAgainstPageURL(t *testing.T) {
	body := []byte(`<a href="../up">up</a><a href="./same">same</a><a href="//example.com/proto">proto</a><a href="?q=1">query</a>`)
	le := NewLinkExtractor("example.com", testLogger())

	links, _ := le.Extract(mustURL(t, "https://example.com/a/b/page"), body)
	assert.Equal(t, []string{
		"https://example.com/a/up",
		"https://example.com/a/b/same",
		"https://example.com/proto",
		"https://example.com/a/b/page?q=1",
	}, links)
}

func TestExtract_EmptyBody(t *testing.T) {
	le := NewLinkExtractor("example.com", testLogger())
	links, text := le.Extract(mustURL(t, "https://example.com"), nil)
	assert.Empty(t, links)
	assert.Empty(t, text)
}

type failingStrategy struct{}

func (failingStrategy) Name() string                      { return "failing" }
func (failingStrategy) Parse(_ []byte) (Document, error) { return Document{}, errors.New("boom") }

func TestExtract_FallsBackToNextStrategy(t *testing.T) {
	le := NewLinkExtractor("example.com", testLogger()).WithStrategies(failingStrategy{}, tokenizerStrategy{})
	links, text := le.Extract(mustURL(t, "https://example.com"), []byte(`<p>hi</p><a href="/x">x</a>`))
	assert.Equal(t, []string{"https://example.com/x"}, links)
	assert.Equal(t, "hi x", text)
}

func TestExtract_AllStrategiesFail(t *testing.T) {
	le := NewLinkExtractor("example.com", testLogger()).WithStrategies(failingStrategy{}, failingStrategy{})
	links, text := le.Extract(mustURL(t, "https://example.com"), []byte(`<a href="/x">x</a>`))
	assert.Nil(t, links)
	assert.Empty(t, text)
}

func TestTokenizerStrategy_SelfClosingLink(t *testing.T) {
	doc, err := tokenizerStrategy{}.Parse([]byte(`<link href="/feed.xml"/><p>after</p>`))
	require.NoError(t, err)
	assert.Equal(t, []string{"/feed.xml"}, doc.Hrefs)
	assert.Equal(t, "after", doc.Text)
}

func TestGoqueryStrategy_MalformedMarkup(t *testing.T) {
	doc, err := goqueryStrategy{}.Parse([]byte(`<div><a href="/open">unclosed <p>text`))
	require.NoError(t, err)
	assert.Equal(t, []string{"/open"}, doc.Hrefs)
	assert.Equal(t, "unclosed text", doc.Text)
}
