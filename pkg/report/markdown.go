package report

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/Sriram-PR/site-harvester/pkg/models"
)

// MarkdownReporter renders GitHub-flavored markdown with summary and artifact tables
type MarkdownReporter struct{}

func (MarkdownReporter) Render(w io.Writer, res *models.CrawlResult) error {
	md := markdown.NewMarkdown(w)

	writeHeader(md, res)
	writeSummary(md, res)
	writeArtifacts(md, res)
	writeBrokenLinks(md, res)

	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by site-harvester*")

	return md.Build()
}

func writeHeader(md *markdown.Markdown, res *models.CrawlResult) {
	md.H1("Crawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Seed", "`" + res.Seed + "`"},
		{"Domain", "`" + res.Domain + "`"},
		{"Classifiers", strings.Join(res.Classifiers, ", ")},
	}
	if res.RunID != "" {
		rows = append(rows, []string{"Run ID", "`" + res.RunID + "`"})
	}
	if !res.StartedAt.IsZero() {
		rows = append(rows, []string{"Started", res.StartedAt.Format("2006-01-02 15:04:05 MST")})
	}
	if !res.FinishedAt.IsZero() && !res.StartedAt.IsZero() {
		rows = append(rows, []string{"Duration", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond).String()})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func writeSummary(md *markdown.Markdown, res *models.CrawlResult) {
	md.H2("Summary")
	md.PlainText("")

	counts := res.KindCounts()
	rows := [][]string{
		{"Pages visited", strconv.Itoa(res.PagesVisited)},
		{"Broken links", strconv.Itoa(len(res.BrokenLinks))},
	}
	for _, k := range reportKinds(res) {
		if counts[k] == 0 && !containsKind(res.Classifiers, k) {
			continue
		}
		rows = append(rows, []string{kindTitle(k), strconv.Itoa(counts[k])})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows:   rows,
	})
	md.PlainText("")
}

func writeArtifacts(md *markdown.Markdown, res *models.CrawlResult) {
	for _, k := range reportKinds(res) {
		artifacts := res.ArtifactsOfKind(k)
		if len(artifacts) == 0 {
			continue
		}
		md.H2(kindTitle(k))
		md.PlainText("")

		rows := make([][]string, 0, len(artifacts))
		for _, a := range artifacts {
			rows = append(rows, []string{"`" + a.Value + "`", strings.Join(a.Provenance, ", ")})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Value", "Found on"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

func writeBrokenLinks(md *markdown.Markdown, res *models.CrawlResult) {
	md.H2("Broken Links")
	md.PlainText("")
	if len(res.BrokenLinks) == 0 {
		md.PlainText("No broken links found.")
		md.PlainText("")
		return
	}
	md.BulletList(res.BrokenLinks...)
	md.PlainText("")
}

// HTMLReporter renders the markdown report to HTML with goldmark
type HTMLReporter struct{}

func (HTMLReporter) Render(w io.Writer, res *models.CrawlResult) error {
	var src bytes.Buffer
	if err := (MarkdownReporter{}).Render(&src, res); err != nil {
		return err
	}

	var body bytes.Buffer
	converter := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := converter.Convert(src.Bytes(), &body); err != nil {
		return fmt.Errorf("rendering HTML report: %w", err)
	}

	ew := &errWriter{w: w}
	ew.printf("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>Crawl Report: %s</title>\n</head>\n<body>\n", htmlEscape(res.Domain))
	ew.printf("%s", body.String())
	ew.printf("</body>\n</html>\n")
	return ew.err
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func htmlEscape(s string) string { return htmlEscaper.Replace(s) }
