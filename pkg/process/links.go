package process

import (
	"errors"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-harvester/pkg/parse"
)

// LinkExtractor pulls in-scope links and visible text out of HTML pages
type LinkExtractor struct {
	hostKey    string
	strategies []ParseStrategy
	log        *logrus.Entry
}

// NewLinkExtractor creates an extractor scoped to hostKey that uses DefaultStrategies
func NewLinkExtractor(hostKey string, log *logrus.Entry) *LinkExtractor {
	return &LinkExtractor{hostKey: hostKey, strategies: DefaultStrategies(), log: log}
}

// WithStrategies returns a copy of the extractor using the given strategy chain
func (le *LinkExtractor) WithStrategies(strategies ...ParseStrategy) *LinkExtractor {
	clone := *le
	clone.strategies = strategies
	return &clone
}

// Extract returns the canonical same-host links of body, resolved against
// pageURL and deduplicated in first-seen order, plus the page's visible text.
// Markup no strategy can read yields no links and no text.
func (le *LinkExtractor) Extract(pageURL *url.URL, body []byte) (links []string, text string) {
	pageLog := le.log.WithField("url", pageURL.String())

	doc, ok := le.parse(body, pageLog)
	if !ok {
		return nil, ""
	}

	seen := make(map[string]struct{}, len(doc.Hrefs))
	for _, href := range doc.Hrefs {
		normalized, err := parse.Normalize(pageURL, href)
		if err != nil {
			if !errors.Is(err, parse.ErrSkipHref) {
				pageLog.WithField("href", href).Debugf("Dropping link: %v", err)
			}
			continue
		}
		if !parse.SameHost(normalized, le.hostKey) {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		links = append(links, normalized)
	}
	return links, doc.Text
}

func (le *LinkExtractor) parse(body []byte, pageLog *logrus.Entry) (Document, bool) {
	for _, strategy := range le.strategies {
		doc, err := strategy.Parse(body)
		if err == nil {
			return doc, true
		}
		pageLog.WithFields(logrus.Fields{"strategy": strategy.Name(), "error": err}).Warn("Parse strategy failed, trying next")
	}
	pageLog.Warn("No parse strategy could read the page")
	return Document{}, false
}
