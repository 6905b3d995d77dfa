package classify

import (
	"net/url"
	"strings"

	"github.com/Sriram-PR/site-harvester/pkg/models"
)

// PDFClassifier flags links to PDF documents
type PDFClassifier struct{}

func NewPDFClassifier() *PDFClassifier { return &PDFClassifier{} }

func (c *PDFClassifier) Name() string              { return "pdf" }
func (c *PDFClassifier) Kind() models.ArtifactKind { return models.ArtifactPDF }

// MatchLink matches a path ending in .pdf, or a basename whose stem contains "pdf"
func (c *PDFClassifier) MatchLink(u *url.URL) bool {
	if u == nil {
		return false
	}
	lowerPath, base := basename(u)
	if strings.HasSuffix(lowerPath, ".pdf") {
		return true
	}
	stem, _, _ := strings.Cut(base, ".")
	return strings.Contains(stem, "pdf")
}
