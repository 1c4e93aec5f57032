package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/use-agent/shelfscan/models"
)

var descriptionSelectors = []string{
	`[class*="description"]`,
	`[class*="product-details"]`,
	`[class*="product-info"]`,
	`[class*="specifications"]`,
	"div.product-details",
	"div.product-info",
	"div.product-specs",
	"div.product-description",
}

func (p *page) description() string {
	if d, ok := p.metaContent("og:description", "description"); ok {
		return d
	}
	if p.site != nil {
		if d, ok := p.firstSiteText(p.site.Description); ok {
			return d
		}
	}
	if d, ok := p.firstText(descriptionSelectors); ok {
		return d
	}
	if d := p.readabilityExcerpt(); d != "" {
		return d
	}
	return models.NoDescription
}

// readabilityExcerpt runs readability over a rendered copy of the document so
// the shared DOM is left untouched.
func (p *page) readabilityExcerpt() string {
	pageURL, err := url.Parse(p.sourceURL)
	if err != nil {
		return ""
	}
	rendered, err := goquery.OuterHtml(p.doc.Selection)
	if err != nil || strings.TrimSpace(rendered) == "" {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(rendered), pageURL)
	if err != nil {
		return ""
	}
	return normalize(article.Excerpt)
}
