package fetch

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// robotsAgent is the user-agent group evaluated for every URL
const robotsAgent = "*"

// RobotsPolicy is the parsed robots.txt of one origin. It is read-only once built.
// A nil *RobotsPolicy, or one without rules, allows everything.
type RobotsPolicy struct {
	group    *robotstxt.Group
	sitemaps []string
}

// AllowAllPolicy returns a policy with no rules and no sitemaps
func AllowAllPolicy() *RobotsPolicy {
	return &RobotsPolicy{}
}

// ParseRobots builds a policy from a robots.txt body
func ParseRobots(body []byte) (*RobotsPolicy, error) {
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, err
	}
	return &RobotsPolicy{
		group:    data.FindGroup(robotsAgent),
		sitemaps: scanSitemapDirectives(body),
	}, nil
}

// IsAllowed reports whether the "*" group permits u's path and query.
// Any evaluation problem resolves to allowed.
func (p *RobotsPolicy) IsAllowed(u *url.URL) (allowed bool) {
	if p == nil || p.group == nil || u == nil {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			allowed = true
		}
	}()
	return p.group.Test(u.RequestURI())
}

// Sitemaps returns the Sitemap: directives in file order, duplicates included
func (p *RobotsPolicy) Sitemaps() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.sitemaps...)
}

// scanSitemapDirectives collects every "Sitemap:" value; the key is case-insensitive
func scanSitemapDirectives(body []byte) []string {
	var sitemaps []string
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		key, value, found := strings.Cut(line, ":")
		if !found || !strings.EqualFold(strings.TrimSpace(key), "sitemap") {
			continue
		}
		if value = strings.TrimSpace(value); value != "" {
			sitemaps = append(sitemaps, value)
		}
	}
	return sitemaps
}

// RobotsGate loads and caches the robots policy of each origin it is asked about
type RobotsGate struct {
	fetcher *Fetcher
	timeout time.Duration
	cache   map[string]*RobotsPolicy // scheme://host -> policy
	cacheMu sync.Mutex
	log     *logrus.Entry
}

// NewRobotsGate creates a RobotsGate. timeout bounds the single robots.txt request (0 = client timeout).
func NewRobotsGate(fetcher *Fetcher, timeout time.Duration, log *logrus.Entry) *RobotsGate {
	return &RobotsGate{
		fetcher: fetcher,
		timeout: timeout,
		cache:   make(map[string]*RobotsPolicy),
		log:     log,
	}
}

// Load fetches <origin>/robots.txt once per origin and returns its policy.
// It never fails: a non-200 response, transport error or parse error all yield AllowAllPolicy.
func (g *RobotsGate) Load(ctx context.Context, target *url.URL) *RobotsPolicy {
	scheme := strings.ToLower(target.Scheme)
	if scheme != "http" && scheme != "https" {
		scheme = "https"
	}
	origin := scheme + "://" + target.Host

	g.cacheMu.Lock()
	if policy, ok := g.cache[origin]; ok {
		g.cacheMu.Unlock()
		return policy
	}
	g.cacheMu.Unlock()

	policy := g.fetchPolicy(ctx, origin)

	g.cacheMu.Lock()
	g.cache[origin] = policy
	g.cacheMu.Unlock()
	return policy
}

func (g *RobotsGate) fetchPolicy(ctx context.Context, origin string) *RobotsPolicy {
	robotsURL := origin + "/robots.txt"
	robotsLog := g.log.WithField("robots_url", robotsURL)

	fetchCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	page, err := g.fetcher.Get(fetchCtx, robotsURL)
	if err != nil {
		robotsLog.WithField("error", err).Warn("robots.txt unavailable, allowing all")
		return AllowAllPolicy()
	}
	if page.StatusCode != http.StatusOK {
		robotsLog.WithField("status_code", page.StatusCode).Warn("robots.txt not 200, allowing all")
		return AllowAllPolicy()
	}

	policy, err := ParseRobots(page.Body)
	if err != nil {
		robotsLog.WithField("error", err).Warn("robots.txt unparseable, allowing all")
		return AllowAllPolicy()
	}
	robotsLog.WithField("sitemaps", len(policy.sitemaps)).Info("Loaded robots.txt")
	return policy
}
