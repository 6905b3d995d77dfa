package models

import "time"

// WorkItem is a frontier entry: a canonical URL and the depth it was discovered at
type WorkItem struct {
	URL   string
	Depth int
}

// PageDBEntry stores the outcome of processing a page URL
type PageDBEntry struct {
	Status      PageStatus `json:"status"`
	ErrorType   string     `json:"error_type,omitempty"`   // Error category (on failure)
	StatusCode  int        `json:"status_code,omitempty"`  // HTTP status, when a response was received
	ContentType string     `json:"content_type,omitempty"` // Response content type (on fetch)
	ProcessedAt time.Time  `json:"processed_at,omitempty"` // Timestamp of successful processing
	LastAttempt time.Time  `json:"last_attempt"`           // Timestamp of the last processing attempt
	Depth       int        `json:"depth"`
}

// ArtifactKind identifies what a classifier found
type ArtifactKind string

const (
	ArtifactEmail         ArtifactKind = "email"
	ArtifactSensitiveFile ArtifactKind = "sensitive-file"
	ArtifactPDF           ArtifactKind = "pdf"
)

// String implements fmt.Stringer
func (k ArtifactKind) String() string { return string(k) }

// ClassifiedArtifact is a single finding plus the pages it was observed on.
// Provenance is kept sorted and free of duplicates.
type ClassifiedArtifact struct {
	Kind       ArtifactKind `json:"kind" yaml:"kind"`
	Value      string       `json:"value" yaml:"value"`
	Provenance []string     `json:"provenance" yaml:"provenance"`
}

// CrawlResult is the finalized output of one crawl run
type CrawlResult struct {
	RunID        string               `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Target       string               `json:"target,omitempty" yaml:"target,omitempty"`
	Seed         string               `json:"seed" yaml:"seed"`
	Domain       string               `json:"domain" yaml:"domain"`
	Classifiers  []string             `json:"classifiers" yaml:"classifiers"`
	StartedAt    time.Time            `json:"started_at" yaml:"started_at"`
	FinishedAt   time.Time            `json:"finished_at" yaml:"finished_at"`
	PagesVisited int                  `json:"pages_visited" yaml:"pages_visited"`
	Visited      []string             `json:"visited" yaml:"visited"`
	BrokenLinks  []string             `json:"broken_links" yaml:"broken_links"`
	Artifacts    []ClassifiedArtifact `json:"artifacts" yaml:"artifacts"`
	Stats        map[string]int       `json:"stats,omitempty" yaml:"stats,omitempty"` // Entry state counts
}

// ArtifactsOfKind returns the artifacts with the given kind, preserving order
func (r *CrawlResult) ArtifactsOfKind(kind ArtifactKind) []ClassifiedArtifact {
	var out []ClassifiedArtifact
	for _, a := range r.Artifacts {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// KindCounts returns the number of artifacts per kind
func (r *CrawlResult) KindCounts() map[ArtifactKind]int {
	counts := make(map[ArtifactKind]int)
	for _, a := range r.Artifacts {
		counts[a.Kind]++
	}
	return counts
}
