package classify

import (
	"sort"
	"sync"

	"github.com/Sriram-PR/site-harvester/pkg/models"
)

type artifactKey struct {
	kind  models.ArtifactKind
	value string
}

// ResultSet accumulates artifacts across pages. Safe for concurrent use.
type ResultSet struct {
	mu        sync.Mutex
	artifacts map[artifactKey]map[string]struct{}
}

func NewResultSet() *ResultSet {
	return &ResultSet{artifacts: make(map[artifactKey]map[string]struct{})}
}

// Add records value as seen on sourcePage. Re-observing an artifact only grows its provenance.
// Returns true when the artifact itself is new.
func (r *ResultSet) Add(kind models.ArtifactKind, value, sourcePage string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := artifactKey{kind: kind, value: value}
	sources, exists := r.artifacts[key]
	if !exists {
		sources = make(map[string]struct{})
		r.artifacts[key] = sources
	}
	if sourcePage != "" {
		sources[sourcePage] = struct{}{}
	}
	return !exists
}

// Merge adds every provenance entry of a into the set
func (r *ResultSet) Merge(a models.ClassifiedArtifact) {
	if len(a.Provenance) == 0 {
		r.Add(a.Kind, a.Value, "")
		return
	}
	for _, src := range a.Provenance {
		r.Add(a.Kind, a.Value, src)
	}
}

// Get returns the artifact for (kind, value), if recorded
func (r *ResultSet) Get(kind models.ArtifactKind, value string) (models.ClassifiedArtifact, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sources, ok := r.artifacts[artifactKey{kind: kind, value: value}]
	if !ok {
		return models.ClassifiedArtifact{}, false
	}
	return toArtifact(artifactKey{kind: kind, value: value}, sources), true
}

// Len returns the number of distinct artifacts
func (r *ResultSet) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.artifacts)
}

// Snapshot returns all artifacts sorted by kind then value, with sorted provenance
func (r *ResultSet) Snapshot() []models.ClassifiedArtifact {
	r.mu.Lock()
	out := make([]models.ClassifiedArtifact, 0, len(r.artifacts))
	for key, sources := range r.artifacts {
		out = append(out, toArtifact(key, sources))
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Value < out[j].Value
	})
	return out
}

func toArtifact(key artifactKey, sources map[string]struct{}) models.ClassifiedArtifact {
	prov := make([]string, 0, len(sources))
	for src := range sources {
		prov = append(prov, src)
	}
	sort.Strings(prov)
	return models.ClassifiedArtifact{Kind: key.kind, Value: key.value, Provenance: prov}
}
