package parse

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// --- XML Structs for Sitemap Parsing ---
// Element names carry no namespace so documents with or without the sitemaps.org namespace both match.

// XMLURL represents a <url> element in a sitemap
type XMLURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// XMLURLSet represents a <urlset> element in a sitemap
type XMLURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []XMLURL `xml:"url"`
}

// XMLSitemap represents a <sitemap> element in a sitemap index file
type XMLSitemap struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// XMLSitemapIndex represents a <sitemapindex> element
type XMLSitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []XMLSitemap `xml:"sitemap"`
}

// ParseSitemap extracts the raw URLs listed in a sitemap document.
// Sitemap indexes and urlsets are tried first; content that is not XML at all
// is read as plain text, one URL per line, skipping blanks and '#' comments.
// Well-formed XML of another schema yields no URLs.
// Results are deduplicated, in document order, and not normalized.
func ParseSitemap(content []byte) ([]string, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, nil
	}

	var index XMLSitemapIndex
	indexErr := xml.Unmarshal(content, &index)
	if indexErr == nil {
		locs := make([]string, 0, len(index.Sitemaps))
		for _, sm := range index.Sitemaps {
			locs = append(locs, sm.Loc)
		}
		return uniqueNonEmpty(locs), nil
	}

	var urlSet XMLURLSet
	setErr := xml.Unmarshal(content, &urlSet)
	if setErr == nil {
		locs := make([]string, 0, len(urlSet.URLs))
		for _, u := range urlSet.URLs {
			locs = append(locs, u.Loc)
		}
		return uniqueNonEmpty(locs), nil
	}

	if isNotXML(indexErr) || isNotXML(setErr) {
		return parseTextSitemap(content), nil
	}
	return nil, nil
}

// isNotXML reports whether an unmarshal error means the input was not an XML document.
// A mismatched root element is an *xml.UnmarshalError and does not count.
func isNotXML(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var syntaxErr *xml.SyntaxError
	return errors.As(err, &syntaxErr)
}

func parseTextSitemap(content []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return uniqueNonEmpty(lines)
}

func uniqueNonEmpty(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
