// internal/crawler/parser.go
package crawler

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/romangod6/linkscout/internal/models"
	"golang.org/x/net/html"
)

// SnippetRadius is the number of characters kept on each side of a match.
const SnippetRadius = 80

// invisibleSelector lists elements whose text never reaches the reader.
const invisibleSelector = "script, style, noscript, svg, canvas, iframe, template"

// Extraction is what a page tells us about the target and the keywords.
type Extraction struct {
	HasTargetLink bool
	Matches       []models.Match
}

// MatchExtractor inspects pages for one target URL and keyword list.
type MatchExtractor struct {
	target   string
	keywords []string
	radius   int
}

func NewMatchExtractor(targetURL string, keywords []string) *MatchExtractor {
	kws := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			kws = append(kws, kw)
		}
	}
	return &MatchExtractor{
		target:   NormalizeURL(targetURL),
		keywords: kws,
		radius:   SnippetRadius,
	}
}

// Extract parses an HTML page fetched from pageURL. It reports whether any
// anchor points at the target (after NormalizeURL) and returns the first
// match of every keyword found in the visible text, in keyword order.
func (m *MatchExtractor) Extract(pageURL string, content []byte) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, &Error{Kind: KindPageParse, URL: pageURL, Err: fmt.Errorf("error parsing HTML: %w", err)}
	}

	out := &Extraction{
		HasTargetLink: m.linksToTarget(doc, pageURL),
		Matches:       make([]models.Match, 0),
	}

	text := VisibleText(doc)
	runes := []rune(text)
	folded := foldRunes(runes)
	for _, kw := range m.keywords {
		if snippet, ok := snippetAround(runes, folded, kw, m.radius); ok {
			out.Matches = append(out.Matches, models.Match{Keyword: kw, Snippet: snippet})
		}
	}
	return out, nil
}

// ExtractMatches is a one-shot form of MatchExtractor.Extract.
func ExtractMatches(content []byte, pageURL, targetURL string, keywords []string) (*Extraction, error) {
	return NewMatchExtractor(targetURL, keywords).Extract(pageURL, content)
}

func (m *MatchExtractor) linksToTarget(doc *goquery.Document, pageURL string) bool {
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}
	// Honor <base href> when present
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok && base != nil {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(ref)
		}
	}

	found := false
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || skipHref(href) {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		if NormalizeURL(ref.String()) == m.target {
			found = true
			return false
		}
		return true
	})
	return found
}

func skipHref(href string) bool {
	lower := strings.ToLower(href)
	for _, prefix := range []string{"mailto:", "tel:", "javascript:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// VisibleText returns the document's text with script-like elements
// removed, text nodes joined by spaces and whitespace collapsed.
func VisibleText(doc *goquery.Document) string {
	doc.Find(invisibleSelector).Remove()

	var parts []string
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case html.CommentNode, html.DoctypeNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	for _, n := range doc.Nodes {
		collect(n)
	}

	// Convert multiple spaces to single space
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// foldRunes lower-cases rune by rune so indexes into the result line up
// with indexes into the input.
func foldRunes(runes []rune) []rune {
	folded := make([]rune, len(runes))
	for i, r := range runes {
		folded[i] = unicode.ToLower(r)
	}
	return folded
}

// snippetAround finds the first case-insensitive occurrence of keyword and
// returns the text around it. The match is a plain substring search: "cat"
// is found inside "category".
func snippetAround(runes, folded []rune, keyword string, radius int) (string, bool) {
	needle := string(foldRunes([]rune(keyword)))
	if needle == "" {
		return "", false
	}
	haystack := string(folded)
	byteIdx := strings.Index(haystack, needle)
	if byteIdx < 0 {
		return "", false
	}
	start := utf8.RuneCountInString(haystack[:byteIdx])
	end := start + utf8.RuneCountInString(needle)

	from := max(0, start-radius)
	to := min(len(runes), end+radius)
	snippet := strings.TrimSpace(string(runes[from:to]))
	if from > 0 {
		snippet = "… " + snippet
	}
	if to < len(runes) {
		snippet += " …"
	}
	return snippet, true
}
