package storage

import (
	"bufio"
	"fmt"
	"os"

	"github.com/Sriram-PR/site-harvester/pkg/models"
	"github.com/Sriram-PR/site-harvester/pkg/utils"
)

// VisitedStore is the crawl's visited set. It only grows.
type VisitedStore interface {
	// MarkVisited inserts url if absent, as one atomic check-then-insert.
	// Returns true if the URL was newly added, false if it was already visited.
	MarkVisited(url string, depth int) (bool, error)

	// VisitedCount returns the number of visited URLs
	VisitedCount() int

	// Visited returns every visited URL, sorted
	Visited() ([]string, error)
}

// CrawlStore keeps the full state of one crawl run: visited pages with
// their outcome, classified artifacts and broken links
type CrawlStore interface {
	VisitedStore

	// CheckPageStatus returns the stored status of url (PageStatusNotFound if absent)
	CheckPageStatus(url string) (models.PageStatus, *models.PageDBEntry, error)

	// UpdatePageStatus records the outcome of processing url
	UpdatePageStatus(url string, entry *models.PageDBEntry) error

	// SaveArtifact merges a into the stored artifacts, growing its provenance
	SaveArtifact(a models.ClassifiedArtifact) error

	// AddBrokenLink records url as returning 404
	AddBrokenLink(url string) error

	// SaveRunInfo stores the run metadata (seed, domain, classifiers, timestamps, stats).
	// Lists on res are ignored; they are rebuilt from the stored keys.
	SaveRunInfo(res *models.CrawlResult) error

	// LoadResult rebuilds a CrawlResult from the stored state
	LoadResult() (*models.CrawlResult, error)

	// Close releases the underlying resources
	Close() error
}

// WriteVisitedLog writes every visited URL of store to filePath, one per line
func WriteVisitedLog(store VisitedStore, filePath string) error {
	urls, err := store.Visited()
	if err != nil {
		return err
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("%w: create visited log '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, u := range urls {
		if _, err := writer.WriteString(u + "\n"); err != nil {
			return fmt.Errorf("%w: write visited log '%s': %w", utils.ErrFilesystem, filePath, err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("%w: flush visited log '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	return file.Sync()
}
