package classify

import (
	"regexp"

	"github.com/Sriram-PR/site-harvester/pkg/models"
)

var emailPattern = regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`)

// EmailClassifier finds email addresses in page text
type EmailClassifier struct {
	pattern *regexp.Regexp
}

func NewEmailClassifier() *EmailClassifier {
	return &EmailClassifier{pattern: emailPattern}
}

func (c *EmailClassifier) Name() string              { return "email" }
func (c *EmailClassifier) Kind() models.ArtifactKind { return models.ArtifactEmail }

// ClassifyText returns each distinct address once. Matching is case-sensitive.
func (c *EmailClassifier) ClassifyText(text string) []string {
	matches := c.pattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
