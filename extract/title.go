package extract

import "github.com/use-agent/shelfscan/models"

var titleSelectors = []string{
	"h1.product-title",
	`h1[itemprop="name"]`,
	"h1.title",
	"h1.product-name",
	"h1",
}

func (p *page) title() string {
	if p.site != nil {
		if t, ok := p.firstSiteText(p.site.Title); ok {
			return t
		}
	}
	if t, ok := p.metaContent("og:title", "title"); ok {
		return t
	}
	if t, ok := p.firstText(titleSelectors); ok {
		return t
	}
	return models.UnknownTitle
}
