// Package classify turns page text and discovered links into artifacts.
//
// Three classifiers exist: "email" scans visible page text, while "sensitive"
// and "pdf" inspect link URLs. A crawl may enable any combination of them.
package classify

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/Sriram-PR/site-harvester/pkg/models"
	"github.com/Sriram-PR/site-harvester/pkg/utils"
)

// Classifier is the common identity of every artifact classifier
type Classifier interface {
	Name() string
	Kind() models.ArtifactKind
}

// TextClassifier finds artifacts inside page text
type TextClassifier interface {
	Classifier
	// ClassifyText returns the distinct matches in text, in first-seen order
	ClassifyText(text string) []string
}

// LinkClassifier decides whether a link target is itself an artifact
type LinkClassifier interface {
	Classifier
	MatchLink(u *url.URL) bool
}

var registry = map[string]func() Classifier{
	"email":     func() Classifier { return NewEmailClassifier() },
	"sensitive": func() Classifier { return NewSensitiveClassifier() },
	"pdf":       func() Classifier { return NewPDFClassifier() },
}

// Names lists the registered classifier names, sorted
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsKnown reports whether name is a registered classifier
func IsKnown(name string) bool {
	_, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// New builds the classifier registered under name
func New(name string) (Classifier, error) {
	factory, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: unknown classifier '%s' (known: %s)",
			utils.ErrConfigValidation, name, strings.Join(Names(), ", "))
	}
	return factory(), nil
}

// Set is an ordered collection of enabled classifiers
type Set struct {
	names []string
	text  []TextClassifier
	link  []LinkClassifier
}

// FromNames builds a Set in the given order. Duplicate names are ignored.
func FromNames(names []string) (*Set, error) {
	s := &Set{}
	seen := make(map[string]bool, len(names))
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" || seen[name] {
			continue
		}
		c, err := New(name)
		if err != nil {
			return nil, err
		}
		seen[name] = true
		s.Add(c)
	}
	if len(s.names) == 0 {
		return nil, fmt.Errorf("%w: no classifiers enabled", utils.ErrConfigValidation)
	}
	return s, nil
}

// Add appends c to the set. A classifier may be both a text and a link classifier.
func (s *Set) Add(c Classifier) {
	s.names = append(s.names, c.Name())
	if tc, ok := c.(TextClassifier); ok {
		s.text = append(s.text, tc)
	}
	if lc, ok := c.(LinkClassifier); ok {
		s.link = append(s.link, lc)
	}
}

// Names returns the enabled classifier names in configuration order
func (s *Set) Names() []string {
	return append([]string(nil), s.names...)
}

// TextClassifiers returns the enabled text classifiers
func (s *Set) TextClassifiers() []TextClassifier { return s.text }

// HasLinkClassifiers reports whether any link classifier is enabled
func (s *Set) HasLinkClassifiers() bool { return len(s.link) > 0 }

// ClassifyLink returns the kind of the first link classifier matching u
func (s *Set) ClassifyLink(u *url.URL) (models.ArtifactKind, bool) {
	if u == nil {
		return "", false
	}
	for _, lc := range s.link {
		if lc.MatchLink(u) {
			return lc.Kind(), true
		}
	}
	return "", false
}

// basename returns the last path segment of the lowercase path
func basename(u *url.URL) (lowerPath, base string) {
	lowerPath = strings.ToLower(u.Path)
	base = lowerPath
	if i := strings.LastIndex(lowerPath, "/"); i >= 0 {
		base = lowerPath[i+1:]
	}
	return lowerPath, base
}
