package storage

import (
	"sort"
	"sync"

	"github.com/Sriram-PR/site-harvester/pkg/classify"
	"github.com/Sriram-PR/site-harvester/pkg/models"
)

// MemoryStore is the default CrawlStore. All state lives for one run.
type MemoryStore struct {
	mu        sync.Mutex
	pages     map[string]*models.PageDBEntry
	broken    map[string]struct{}
	artifacts *classify.ResultSet
	run       models.CrawlResult
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pages:     make(map[string]*models.PageDBEntry),
		broken:    make(map[string]struct{}),
		artifacts: classify.NewResultSet(),
	}
}

func (s *MemoryStore) MarkVisited(url string, depth int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pages[url]; exists {
		return false, nil
	}
	s.pages[url] = &models.PageDBEntry{Status: models.PageStatusPending, Depth: depth}
	return true, nil
}

func (s *MemoryStore) VisitedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages)
}

func (s *MemoryStore) Visited() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.pages), nil
}

func (s *MemoryStore) CheckPageStatus(url string) (models.PageStatus, *models.PageDBEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.pages[url]
	if !ok {
		return models.PageStatusNotFound, nil, nil
	}
	cp := *entry
	return cp.Status, &cp, nil
}

func (s *MemoryStore) UpdatePageStatus(url string, entry *models.PageDBEntry) error {
	cp := *entry
	s.mu.Lock()
	s.pages[url] = &cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) SaveArtifact(a models.ClassifiedArtifact) error {
	s.artifacts.Merge(a)
	return nil
}

func (s *MemoryStore) AddBrokenLink(url string) error {
	s.mu.Lock()
	s.broken[url] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) SaveRunInfo(res *models.CrawlResult) error {
	s.mu.Lock()
	s.run = runInfo(res)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) LoadResult() (*models.CrawlResult, error) {
	s.mu.Lock()
	res := s.run
	res.Visited = sortedKeys(s.pages)
	res.BrokenLinks = sortedKeys(s.broken)
	s.mu.Unlock()

	res.PagesVisited = len(res.Visited)
	res.Artifacts = s.artifacts.Snapshot()
	return &res, nil
}

func (s *MemoryStore) Close() error { return nil }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// runInfo copies the metadata of res without its lists
func runInfo(res *models.CrawlResult) models.CrawlResult {
	info := *res
	info.Visited = nil
	info.BrokenLinks = nil
	info.Artifacts = nil
	info.PagesVisited = 0
	info.Classifiers = append([]string(nil), res.Classifiers...)
	if res.Stats != nil {
		info.Stats = make(map[string]int, len(res.Stats))
		for k, v := range res.Stats {
			info.Stats[k] = v
		}
	}
	return info
}
