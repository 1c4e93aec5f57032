package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/shelfscan/models"
)

var priceSelectors = []string{
	`[class*="price"]`,
	`[id*="price"]`,
	`[itemprop="price"]`,
	`meta[property="product:price:amount"]`,
	"[data-price]",
}

// priceToken matches a number with optional comma thousands separators and
// an optional decimal part.
var priceToken = regexp.MustCompile(`\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?`)

// amount is a price capture; thousands separators are accepted.
const amount = `(\d{1,3}(?:,\d{3})+(?:\.\d{2})?|\d+(?:\.\d{2})?)`

var textPricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$\s*` + amount),
	regexp.MustCompile(`USD\s*` + amount),
	regexp.MustCompile(`Price:\s*\$?\s*` + amount),
	regexp.MustCompile(amount + `\s*USD`),
	regexp.MustCompile(amount + `\s*\$`),
}

// ParsePrice returns the first numeric token in s with thousands separators
// removed. ok is false when s holds no parseable number.
func ParsePrice(s string) (float64, bool) {
	for _, tok := range priceToken.FindAllString(s, -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(tok, ",", ""), 64)
		if err == nil {
			return v, true
		}
	}
	return 0, false
}

func (p *page) price() float64 {
	if p.site != nil {
		for _, sel := range p.site.Price {
			for _, n := range p.siteNodes(sel) {
				if v, ok := ParsePrice(nodeText(n)); ok {
					return v
				}
			}
		}
	}

	for _, sel := range priceSelectors {
		var (
			v     float64
			found bool
		)
		p.doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			v, found = elementPrice(s)
			return !found
		})
		if found {
			return v
		}
	}

	if v, ok := scanTextPrice(p.fullText()); ok {
		return v
	}
	return models.UnknownPrice
}

func elementPrice(s *goquery.Selection) (float64, bool) {
	if goquery.NodeName(s) == "meta" {
		content, _ := s.Attr("content")
		return ParsePrice(content)
	}
	if v, ok := ParsePrice(selectionText(s)); ok {
		return v, true
	}
	if attr, ok := s.Attr("data-price"); ok {
		return ParsePrice(attr)
	}
	return 0, false
}

// scanTextPrice tries each currency pattern in turn against text.
func scanTextPrice(text string) (float64, bool) {
	for _, re := range textPricePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v, ok := ParsePrice(m[1]); ok {
			return v, true
		}
	}
	return 0, false
}
