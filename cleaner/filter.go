package cleaner

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// chromeSelectors are page regions that never carry product data.
var chromeSelectors = []string{
	"script", "style", "noscript", "template", "svg",
	"header", "footer", "nav",
	`[role="navigation"]`, `[aria-hidden="true"]`,
	`[class*="cookie"]`, `[id*="cookie"]`,
}

// StripChrome removes navigation, scripts and consent banners from html.
// Unparseable input is returned unchanged.
func StripChrome(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find(strings.Join(chromeSelectors, ", ")).Remove()

	out, err := doc.Html()
	if err != nil {
		return html
	}
	return out
}
