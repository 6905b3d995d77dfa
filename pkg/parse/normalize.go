package parse

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/Sriram-PR/site-harvester/pkg/utils"
)

// ErrSkipHref marks an href that is never followed (mailto:, tel:, javascript:, in-page anchors)
var ErrSkipHref = errors.New("href skipped")

var skipPrefixes = []string{"mailto:", "tel:", "javascript:", "#"}

// NormalizeURL standardizes a URL for comparison and storage.
// It lowercases the scheme and host, removes default ports (80 for http, 443 for https),
// strips trailing slashes from the path and removes the fragment. The query is kept.
// The root path is represented as the empty path, so "https://a.com/" and "https://a.com" are equal.
// Does not modify the input *url.URL
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = HostKey(&normalized)

	normalized.Path = strings.TrimRight(normalized.Path, "/")
	normalized.RawPath = strings.TrimRight(normalized.RawPath, "/")

	normalized.Fragment = ""
	normalized.RawFragment = ""
	normalized.ForceQuery = false

	return normalized.String()
}

// HostKey returns the lowercase host of u with any default port removed.
// Two URLs are in the same crawl scope when their host keys are equal.
func HostKey(u *url.URL) string {
	if u == nil {
		return ""
	}
	host := strings.ToLower(u.Host)
	if h, port, err := net.SplitHostPort(host); err == nil {
		scheme := strings.ToLower(u.Scheme)
		if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
			return h
		}
	}
	return host
}

// Normalize resolves href against base and returns its canonical form.
// Hrefs starting with mailto:, tel:, javascript: or # return ErrSkipHref.
// The result is always an absolute http(s) URL; anything else is an error.
func Normalize(base *url.URL, href string) (string, error) {
	h := strings.TrimSpace(href)
	if h == "" {
		return "", ErrSkipHref
	}
	lower := strings.ToLower(h)
	for _, prefix := range skipPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return "", ErrSkipHref
		}
	}

	ref, err := url.Parse(h)
	if err != nil {
		return "", fmt.Errorf("%w: invalid URL '%s': %v", utils.ErrParsing, href, err)
	}
	if base == nil {
		base = &url.URL{}
	}
	resolved := base.ResolveReference(ref) // Also removes dot segments

	scheme := strings.ToLower(resolved.Scheme)
	if scheme == "" {
		return "", fmt.Errorf("%w: URL '%s' is not absolute", utils.ErrParsing, href)
	}
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme '%s' in '%s'", utils.ErrScopeViolation, scheme, href)
	}
	if resolved.Host == "" {
		return "", fmt.Errorf("%w: URL '%s' has no host", utils.ErrParsing, href)
	}
	return NormalizeURL(resolved), nil
}

// NormalizeString canonicalizes an absolute URL string
func NormalizeString(rawURL string) (string, error) {
	return Normalize(nil, rawURL)
}

// ParseAndNormalize canonicalizes rawURL and also returns the parsed canonical form
func ParseAndNormalize(rawURL string) (string, *url.URL, error) {
	normalized, err := NormalizeString(rawURL)
	if err != nil {
		return "", nil, err
	}
	parsed, err := url.Parse(normalized)
	if err != nil {
		return "", nil, fmt.Errorf("%w: re-parsing URL '%s': %v", utils.ErrParsing, normalized, err)
	}
	return normalized, parsed, nil
}

// SameHost reports whether rawURL belongs to the scope identified by hostKey
func SameHost(rawURL, hostKey string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return HostKey(u) == strings.ToLower(hostKey)
}
