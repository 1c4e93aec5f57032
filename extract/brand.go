package extract

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/use-agent/shelfscan/models"
	"golang.org/x/net/publicsuffix"
)

var brandMetaKeys = []string{"og:site_name", "author", "brand"}

var brandSelectors = []string{
	"span.brand",
	"div.brand",
	"a.brand",
	"span.manufacturer",
	"div.manufacturer",
	`[itemprop="brand"]`,
	`[class*="brand"]`,
	`[id*="brand"]`,
}

func (p *page) brand() string {
	if b, ok := p.metaContent(brandMetaKeys...); ok {
		return b
	}
	if b, ok := p.firstText(brandSelectors); ok {
		return b
	}
	if b := domainBrand(p.sourceURL); b != "" {
		return b
	}
	return models.UnknownValue
}

// domainBrand turns the registrable domain of rawURL into a brand name:
// https://www.zara.com/us/ becomes "Zara".
func domainBrand(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}

	label := host
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		label = etld1
	}
	label, _, _ = strings.Cut(label, ".")
	if label == "" {
		return ""
	}

	r, size := utf8.DecodeRuneInString(label)
	return string(unicode.ToUpper(r)) + label[size:]
}
