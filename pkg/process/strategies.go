package process

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/Sriram-PR/site-harvester/pkg/utils"
)

// Document is what a strategy recovers from markup: raw hrefs in document
// order and the visible text with whitespace collapsed
type Document struct {
	Hrefs []string
	Text  string
}

// ParseStrategy is one way of reading an HTML body. Strategies are tried in
// order until one succeeds.
type ParseStrategy interface {
	Name() string
	Parse(body []byte) (Document, error)
}

// DefaultStrategies is the goquery DOM parser followed by the streaming tokenizer
func DefaultStrategies() []ParseStrategy {
	return []ParseStrategy{goqueryStrategy{}, tokenizerStrategy{}}
}

// hiddenElements never contribute visible text
var hiddenElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
}

const hiddenSelector = "script, style, noscript, template"

// goqueryStrategy builds a full DOM with goquery
type goqueryStrategy struct{}

func (goqueryStrategy) Name() string { return "goquery" }

func (goqueryStrategy) Parse(body []byte) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Document{}, fmt.Errorf("%w: HTML DOM: %w", utils.ErrParsing, err)
	}

	var out Document
	doc.Find("a[href], link[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			out.Hrefs = append(out.Hrefs, href)
		}
	})

	doc.Find(hiddenSelector).Remove()
	var tb textBuilder
	for _, n := range doc.Nodes {
		tb.collect(n)
	}
	out.Text = tb.String()
	return out, nil
}

// tokenizerStrategy streams tokens with x/net/html and never builds a tree
type tokenizerStrategy struct{}

func (tokenizerStrategy) Name() string { return "tokenizer" }

func (tokenizerStrategy) Parse(body []byte) (Document, error) {
	var out Document
	var tb textBuilder
	hiddenDepth := 0

	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return Document{}, fmt.Errorf("%w: HTML tokenizer: %w", utils.ErrParsing, err)
			}
			out.Text = tb.String()
			return out, nil

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.DataAtom == atom.A || tok.DataAtom == atom.Link {
				for _, attr := range tok.Attr {
					if attr.Key == "href" {
						out.Hrefs = append(out.Hrefs, attr.Val)
						break
					}
				}
			}
			if hiddenElements[tok.DataAtom] && tt == html.StartTagToken {
				hiddenDepth++
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			if hiddenElements[atom.Lookup(name)] && hiddenDepth > 0 {
				hiddenDepth--
			}

		case html.TextToken:
			if hiddenDepth == 0 {
				tb.add(string(z.Text()))
			}
		}
	}
}

// textBuilder joins text fragments with single spaces so adjacent
// elements never run together
type textBuilder struct {
	sb strings.Builder
}

func (tb *textBuilder) add(s string) {
	for _, field := range strings.Fields(s) {
		if tb.sb.Len() > 0 {
			tb.sb.WriteByte(' ')
		}
		tb.sb.WriteString(field)
	}
}

func (tb *textBuilder) collect(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		tb.add(n.Data)
		return
	case html.ElementNode:
		if hiddenElements[n.DataAtom] {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		tb.collect(c)
	}
}

func (tb *textBuilder) String() string { return tb.sb.String() }
