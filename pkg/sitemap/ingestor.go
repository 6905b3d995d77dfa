package sitemap

import (
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-harvester/pkg/models"
	"github.com/Sriram-PR/site-harvester/pkg/parse"
)

// Ingestor turns sitemap documents into frontier entries for a single host
type Ingestor struct {
	hostKey string
	log     *logrus.Entry
}

// NewIngestor creates an Ingestor scoped to hostKey (see parse.HostKey)
func NewIngestor(hostKey string, log *logrus.Entry) *Ingestor {
	return &Ingestor{hostKey: hostKey, log: log}
}

// Ingest parses content as a sitemap (XML index, XML urlset or plain text) and
// returns its in-scope URLs as entries at depth, which is the depth of the
// sitemap itself. Relative, non-http(s) and off-host locations are dropped,
// as are duplicates within the document.
func (in *Ingestor) Ingest(content []byte, depth int) []models.WorkItem {
	items, _ := in.ingest(content, depth)
	return items
}

// IngestURL is Ingest with the counts logged against sitemapURL
func (in *Ingestor) IngestURL(sitemapURL string, content []byte, depth int) []models.WorkItem {
	items, found := in.ingest(content, depth)
	in.log.WithFields(logrus.Fields{
		"sitemap_url": sitemapURL,
		"found":       found,
		"accepted":    len(items),
		"depth":       depth,
	}).Info("Sitemap ingested")
	return items
}

func (in *Ingestor) ingest(content []byte, depth int) ([]models.WorkItem, int) {
	locs, err := parse.ParseSitemap(content)
	if err != nil {
		in.log.WithField("error", err).Warn("Sitemap could not be parsed")
		return nil, 0
	}

	var items []models.WorkItem
	seen := make(map[string]struct{}, len(locs))
	for _, loc := range locs {
		normalized, err := parse.NormalizeString(loc)
		if err != nil {
			in.log.WithField("loc", loc).Debugf("Skipping sitemap entry: %v", err)
			continue
		}
		if !parse.SameHost(normalized, in.hostKey) {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		items = append(items, models.WorkItem{URL: normalized, Depth: depth})
	}
	return items, len(locs)
}
