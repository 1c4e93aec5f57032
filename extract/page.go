package extract

import (
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/shelfscan/sites"
	"golang.org/x/net/html"
)

// page bundles a document with everything the field cascades share.
type page struct {
	doc       *goquery.Document
	sourceURL string
	site      *sites.Profile

	textOnce sync.Once
	text     string
}

func newPage(doc *goquery.Document, sourceURL string, site *sites.Profile) *page {
	return &page{doc: doc, sourceURL: sourceURL, site: site}
}

// fullText is the page text with one line per text node.
func (p *page) fullText() string {
	p.textOnce.Do(func() {
		root := p.doc.Find("body")
		if root.Length() == 0 {
			root = p.doc.Selection
		}
		var b strings.Builder
		for _, n := range root.Nodes {
			collectText(n, &b)
		}
		p.text = b.String()
	})
	return p.text
}

// firstSiteText returns the normalized text of the first element matched by
// the earliest selector in sels that yields non-empty text.
func (p *page) firstSiteText(sels []sites.Selector) (string, bool) {
	for _, sel := range sels {
		for _, n := range p.siteNodes(sel) {
			if t := normalize(nodeText(n)); t != "" {
				return t, true
			}
		}
	}
	return "", false
}

func (p *page) siteNodes(sel sites.Selector) []*html.Node {
	var nodes []*html.Node
	for _, root := range p.doc.Nodes {
		nodes = append(nodes, sel.QueryAll(root)...)
	}
	return nodes
}

// firstText is firstSiteText for generic selectors.
func (p *page) firstText(selectors []string) (string, bool) {
	for _, sel := range selectors {
		found := ""
		p.doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found = normalize(selectionText(s))
			return found == ""
		})
		if found != "" {
			return found, true
		}
	}
	return "", false
}

// metaContent returns the normalized content of the first meta tag whose
// property or name attribute equals one of keys, trying keys in order.
func (p *page) metaContent(keys ...string) (string, bool) {
	for _, key := range keys {
		found := ""
		p.doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			prop, _ := s.Attr("property")
			name, _ := s.Attr("name")
			if !strings.EqualFold(prop, key) && !strings.EqualFold(name, key) {
				return true
			}
			content, _ := s.Attr("content")
			found = normalize(content)
			return found == ""
		})
		if found != "" {
			return found, true
		}
	}
	return "", false
}
