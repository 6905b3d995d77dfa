// Package report renders a finalized CrawlResult in one of several formats.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/site-harvester/pkg/models"
	"github.com/Sriram-PR/site-harvester/pkg/utils"
)

// Reporter writes a crawl result to w
type Reporter interface {
	Render(w io.Writer, res *models.CrawlResult) error
}

// New returns the Reporter for format. An empty format selects text.
func New(format string) (Reporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return TextReporter{}, nil
	case "markdown", "md":
		return MarkdownReporter{}, nil
	case "html":
		return HTMLReporter{}, nil
	case "json":
		return JSONReporter{}, nil
	case "yaml", "yml":
		return YAMLReporter{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown report format '%s'", utils.ErrConfigValidation, format)
	}
}

// kindOrder is the order artifact sections appear in human-readable reports
var kindOrder = []models.ArtifactKind{models.ArtifactEmail, models.ArtifactSensitiveFile, models.ArtifactPDF}

var kindTitles = map[models.ArtifactKind]string{
	models.ArtifactEmail:         "Emails",
	models.ArtifactSensitiveFile: "Sensitive files",
	models.ArtifactPDF:           "PDF documents",
}

// reportKinds returns the kinds to render: the fixed ones first, then any others seen in res
func reportKinds(res *models.CrawlResult) []models.ArtifactKind {
	kinds := append([]models.ArtifactKind(nil), kindOrder...)
	known := make(map[models.ArtifactKind]bool, len(kindOrder))
	for _, k := range kindOrder {
		known[k] = true
	}
	var extra []models.ArtifactKind
	for k := range res.KindCounts() {
		if !known[k] {
			extra = append(extra, k)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(kinds, extra...)
}

func kindTitle(k models.ArtifactKind) string {
	if t, ok := kindTitles[k]; ok {
		return t
	}
	return string(k)
}

// TextReporter is the default plain-text layout
type TextReporter struct{}

func (TextReporter) Render(w io.Writer, res *models.CrawlResult) error {
	ew := &errWriter{w: w}
	counts := res.KindCounts()

	ew.printf("Crawl of %s\n", res.Seed)
	if res.RunID != "" {
		ew.printf("Run ID:        %s\n", res.RunID)
	}
	if !res.StartedAt.IsZero() && !res.FinishedAt.IsZero() {
		ew.printf("Duration:      %s\n", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	}
	ew.printf("Pages visited: %d\n", res.PagesVisited)
	ew.printf("Broken links:  %d\n", len(res.BrokenLinks))
	for _, k := range reportKinds(res) {
		if counts[k] == 0 && !containsKind(res.Classifiers, k) {
			continue
		}
		ew.printf("%-15s%d\n", kindTitle(k)+":", counts[k])
	}

	for _, k := range reportKinds(res) {
		artifacts := res.ArtifactsOfKind(k)
		if len(artifacts) == 0 {
			continue
		}
		ew.printf("\n%s\n", kindTitle(k))
		for _, a := range artifacts {
			ew.printf("  %s\n", a.Value)
			for _, src := range a.Provenance {
				ew.printf("      found on %s\n", src)
			}
		}
	}

	if len(res.BrokenLinks) > 0 {
		ew.printf("\nBroken links\n")
		for _, u := range res.BrokenLinks {
			ew.printf("  %s\n", u)
		}
	}
	return ew.err
}

// containsKind maps classifier names onto the kinds they produce
func containsKind(classifiers []string, k models.ArtifactKind) bool {
	for _, name := range classifiers {
		switch {
		case name == "email" && k == models.ArtifactEmail,
			name == "sensitive" && k == models.ArtifactSensitiveFile,
			name == "pdf" && k == models.ArtifactPDF:
			return true
		}
	}
	return false
}

// JSONReporter writes the result as indented JSON
type JSONReporter struct{}

func (JSONReporter) Render(w io.Writer, res *models.CrawlResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encoding JSON report: %w", err)
	}
	return nil
}

// YAMLReporter writes the result as YAML
type YAMLReporter struct{}

func (YAMLReporter) Render(w io.Writer, res *models.CrawlResult) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encoding YAML report: %w", err)
	}
	return enc.Close()
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
